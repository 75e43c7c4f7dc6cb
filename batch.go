// Copyright (C) The TCGA-Codeletion Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package codeletion

import (
	"bufio"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	log "github.com/sirupsen/logrus"
)

type batcher struct {
	cohortsFilename string
	inputDir        string
	genesFilename   string
	dataDir         string
	chromosomes     string
	cutoff          float64
	minSamples      int
}

type batchResult struct {
	Cohort     string
	Chromosome string
	Samples    int    `json:",omitempty"`
	Genes      int    `json:",omitempty"`
	Calls      int    `json:",omitempty"`
	Skipped    bool   `json:",omitempty"`
	Error      string `json:",omitempty"`
}

func (cmd *batcher) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVar(&cmd.cohortsFilename, "cohorts", "", "`file` listing cohort names, one per line")
	flags.StringVar(&cmd.inputDir, "input-dir", "", "input `directory` containing <cohort>/chr<N>.calls.tsv files")
	flags.StringVar(&cmd.genesFilename, "genes", "", "genome-wide gene annotation tsv `file`")
	flags.StringVar(&cmd.dataDir, "data-dir", "", "processed data `directory`")
	flags.StringVar(&cmd.chromosomes, "chromosomes", "all", "comma-separated `chromosomes` to process, or \"all\"")
	flags.Float64Var(&cmd.cutoff, "deletion-cutoff", DefaultDeletionCutoff, "count alteration values at or below `cutoff` as deletions")
	flags.IntVar(&cmd.minSamples, "min-samples", DefaultMinSamples, "minimum `number` of samples with copy number calls")
	outputFilename := flags.String("o", "-", "output summary `file`")
	pprof := flags.String("pprof", "", "serve Go profile data at http://`[addr]:port`")
	loglevel := flags.String("loglevel", "info", "logging threshold (trace, debug, info, warn, error, fatal, or panic)")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	} else if cmd.cohortsFilename == "" || cmd.inputDir == "" || cmd.genesFilename == "" || cmd.dataDir == "" {
		err = errors.New("-cohorts, -input-dir, -genes, and -data-dir must all be provided")
		return 2
	}

	if *pprof != "" {
		go func() {
			log.Println(http.ListenAndServe(*pprof, nil))
		}()
	}

	lvl, err := log.ParseLevel(*loglevel)
	if err != nil {
		return 2
	}
	log.SetLevel(lvl)

	cohorts, err := cmd.readCohorts()
	if err != nil {
		return 1
	}
	chromosomes, err := cmd.chromosomeList()
	if err != nil {
		return 2
	}

	var output io.WriteCloser
	if *outputFilename == "-" {
		output = nopCloser{stdout}
	} else {
		output, err = os.OpenFile(*outputFilename, os.O_CREATE|os.O_WRONLY, 0777)
		if err != nil {
			return 1
		}
		defer output.Close()
	}

	bufw := bufio.NewWriter(output)
	err = cmd.runBatch(cohorts, chromosomes, bufw)
	if err != nil {
		return 1
	}
	err = bufw.Flush()
	if err != nil {
		return 1
	}
	err = output.Close()
	if err != nil {
		return 1
	}
	return 0
}

func (cmd *batcher) runBatch(cohorts, chromosomes []string, output io.Writer) error {
	genesFile, err := zopen(cmd.genesFilename)
	if err != nil {
		return err
	}
	allGenes, err := ReadGeneInfo(genesFile, "")
	genesFile.Close()
	if err != nil {
		return fmt.Errorf("%s: %w", cmd.genesFilename, err)
	}
	genesByChromosome := map[string][]GeneInfo{}
	for _, gene := range allGenes {
		genesByChromosome[gene.Chromosome] = append(genesByChromosome[gene.Chromosome], gene)
	}

	store := &Store{Dir: cmd.dataDir}
	results := make([]batchResult, len(cohorts)*len(chromosomes))
	throttle := throttle{Max: runtime.GOMAXPROCS(0)}
	for i, cohort := range cohorts {
		for j, chromosome := range chromosomes {
			idx, cohort, chromosome := i*len(chromosomes)+j, cohort, chromosome
			throttle.Acquire()
			go func() {
				defer throttle.Release()
				results[idx] = cmd.processUnit(store, cohort, chromosome, genesByChromosome[chromosome])
			}()
		}
	}
	throttle.Wait()

	var ret struct {
		Cohorts int
		Written int
		Skipped int
		Failed  int
		Results []batchResult
	}
	ret.Cohorts = len(cohorts)
	ret.Results = results
	for _, res := range results {
		switch {
		case res.Skipped:
			ret.Skipped++
		case res.Error != "":
			ret.Failed++
		default:
			ret.Written++
		}
	}
	log.Infof("batch done: %d written, %d skipped, %d failed", ret.Written, ret.Skipped, ret.Failed)
	return json.NewEncoder(output).Encode(ret)
}

func (cmd *batcher) processUnit(store *Store, cohort, chromosome string, genes []GeneInfo) batchResult {
	res := batchResult{Cohort: cohort, Chromosome: chromosome}
	if len(genes) == 0 {
		res.Skipped = true
		res.Error = "no genes annotated on chromosome " + chromosome
		return res
	}
	fnm := filepath.Join(cmd.inputDir, cohort, "chr"+chromosome+".calls.tsv")
	if _, err := os.Stat(fnm); os.IsNotExist(err) {
		fnm += ".gz"
	}
	f, err := zopen(fnm)
	if os.IsNotExist(err) {
		res.Skipped = true
		res.Error = "no copy number calls file"
		return res
	} else if err != nil {
		res.Error = err.Error()
		return res
	}
	calls, err := ReadCNACalls(f)
	f.Close()
	if err != nil {
		res.Error = fmt.Sprintf("%s: %s", fnm, err)
		return res
	}
	data, err := processChromosome(cohort, chromosome, calls, genes, cmd.cutoff, cmd.minSamples)
	var insufficient *InsufficientDataError
	if errors.As(err, &insufficient) {
		log.Warnf("skipping cohort %s chromosome %s: %s", cohort, chromosome, err)
		res.Skipped = true
		res.Error = err.Error()
		return res
	} else if err != nil {
		res.Error = err.Error()
		return res
	}
	err = store.Save(data)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Samples = len(data.Samples)
	res.Genes = len(data.Genes)
	res.Calls = len(calls)
	return res
}

func (cmd *batcher) readCohorts() ([]string, error) {
	buf, err := os.ReadFile(cmd.cohortsFilename)
	if err != nil {
		return nil, err
	}
	var cohorts []string
	for _, line := range strings.Split(string(buf), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		cohorts = append(cohorts, line)
	}
	if len(cohorts) == 0 {
		return nil, fmt.Errorf("no cohorts listed in %s", cmd.cohortsFilename)
	}
	return cohorts, nil
}

func (cmd *batcher) chromosomeList() ([]string, error) {
	if cmd.chromosomes == "all" {
		return Chromosomes, nil
	}
	var out []string
	for _, c := range strings.Split(cmd.chromosomes, ",") {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if !ValidChromosome(c) {
			return nil, fmt.Errorf("invalid chromosome %q (want 1-22, X, or Y)", c)
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil, errors.New("no chromosomes selected")
	}
	return out, nil
}
