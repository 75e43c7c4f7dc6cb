// Copyright (C) The TCGA-Codeletion Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package codeletion

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof"

	log "github.com/sirupsen/logrus"
)

// processChromosome builds the deletion matrix for one cohort
// chromosome and computes its co-deletion statistics.
func processChromosome(cohort, chromosome string, calls []CNACall, genes []GeneInfo, cutoff float64, minSamples int) (*ChromosomeData, error) {
	dm, err := BuildDeletionMatrix(calls, genes, cutoff, minSamples)
	if err != nil {
		return nil, err
	}
	return NewChromosomeData(cohort, chromosome, dm), nil
}

type importer struct {
	callsFilename string
	genesFilename string
	cohort        string
	chromosome    string
	dataDir       string
	cutoff        float64
	minSamples    int
}

func (cmd *importer) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVar(&cmd.callsFilename, "calls", "", "copy number call tsv `file` (columns: sample_id, entrez_id, alteration)")
	flags.StringVar(&cmd.genesFilename, "genes", "", "gene annotation tsv `file` (columns: entrez_id, symbol, chromosome, start, end, cytoband)")
	flags.StringVar(&cmd.cohort, "cohort", "", "cohort `name` (e.g., prad_tcga_pan_can_atlas_2018)")
	flags.StringVar(&cmd.chromosome, "chromosome", "", "`chromosome` to analyze (1-22, X, or Y)")
	flags.StringVar(&cmd.dataDir, "data-dir", "", "processed data `directory`")
	flags.Float64Var(&cmd.cutoff, "deletion-cutoff", DefaultDeletionCutoff, "count alteration values at or below `cutoff` as deletions")
	flags.IntVar(&cmd.minSamples, "min-samples", DefaultMinSamples, "minimum `number` of samples with copy number calls")
	pprof := flags.String("pprof", "", "serve Go profile data at http://`[addr]:port`")
	loglevel := flags.String("loglevel", "info", "logging threshold (trace, debug, info, warn, error, fatal, or panic)")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	} else if cmd.callsFilename == "" || cmd.genesFilename == "" || cmd.cohort == "" || cmd.chromosome == "" || cmd.dataDir == "" {
		err = errors.New("-calls, -genes, -cohort, -chromosome, and -data-dir must all be provided")
		return 2
	} else if !ValidChromosome(cmd.chromosome) {
		err = fmt.Errorf("invalid chromosome %q (want 1-22, X, or Y)", cmd.chromosome)
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

	genes, err := cmd.readGenes()
	if err != nil {
		return 1
	}
	if len(genes) == 0 {
		err = fmt.Errorf("no genes annotated on chromosome %s in %s", cmd.chromosome, cmd.genesFilename)
		return 1
	}
	calls, err := cmd.readCalls()
	if err != nil {
		return 1
	}
	data, err := processChromosome(cmd.cohort, cmd.chromosome, calls, genes, cmd.cutoff, cmd.minSamples)
	if err != nil {
		return 1
	}
	err = (&Store{Dir: cmd.dataDir}).Save(data)
	if err != nil {
		return 1
	}
	log.Infof("cohort %s chromosome %s: %d samples, %d genes, %d calls", cmd.cohort, cmd.chromosome, len(data.Samples), len(data.Genes), len(calls))
	return 0
}

func (cmd *importer) readGenes() ([]GeneInfo, error) {
	f, err := zopen(cmd.genesFilename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	genes, err := ReadGeneInfo(f, cmd.chromosome)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cmd.genesFilename, err)
	}
	return genes, nil
}

func (cmd *importer) readCalls() ([]CNACall, error) {
	f, err := zopen(cmd.callsFilename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	calls, err := ReadCNACalls(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cmd.callsFilename, err)
	}
	return calls, nil
}
