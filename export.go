// Copyright (C) The TCGA-Codeletion Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package codeletion

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	_ "net/http/pprof"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// MaxPairRows caps exported long-form pair tables at one spreadsheet
// worth of data rows. The highest-frequency rows are kept.
const MaxPairRows = 1048575

type exporter struct {
	dataDir     string
	cohort      string
	chromosome  string
	outputDir   string
	geneSubset  string
	top         int
	maxPairRows int
	pvalues     bool
	filter      pairFilter
}

func (cmd *exporter) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVar(&cmd.dataDir, "data-dir", "", "processed data `directory`")
	flags.StringVar(&cmd.cohort, "cohort", "", "cohort `name`")
	flags.StringVar(&cmd.chromosome, "chromosome", "", "`chromosome` to export")
	flags.StringVar(&cmd.outputDir, "output-dir", ".", "output `directory`")
	flags.StringVar(&cmd.geneSubset, "genes-subset", "", "restrict output to comma-separated gene `symbols`")
	flags.IntVar(&cmd.top, "top", 0, "only the `N` most frequently co-deleted pairs (0 = all)")
	flags.IntVar(&cmd.maxPairRows, "max-pair-rows", MaxPairRows, "maximum `number` of rows per exported pair table")
	flags.BoolVar(&cmd.pvalues, "pvalues", false, "annotate ranked pairs with chi-squared association p-values")
	cmd.filter.Flags(flags)
	pprof := flags.String("pprof", "", "serve Go profile data at http://`[addr]:port`")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	} else if cmd.dataDir == "" || cmd.cohort == "" || cmd.chromosome == "" {
		err = errors.New("-data-dir, -cohort, and -chromosome must all be provided")
		return 2
	}

	if *pprof != "" {
		go func() {
			log.Println(http.ListenAndServe(*pprof, nil))
		}()
	}

	data, err := (&Store{Dir: cmd.dataDir}).Load(cmd.cohort, cmd.chromosome)
	if err != nil {
		return 1
	}
	if cmd.geneSubset != "" {
		dm := data.Matrix().SelectSymbols(splitList(cmd.geneSubset))
		if len(dm.Genes) == 0 {
			err = fmt.Errorf("no stored genes match -genes-subset %q", cmd.geneSubset)
			return 1
		}
		data = NewChromosomeData(data.Cohort, data.Chromosome, dm)
	}
	err = cmd.export(data)
	if err != nil {
		return 1
	}
	return 0
}

func (cmd *exporter) export(data *ChromosomeData) error {
	err := os.MkdirAll(cmd.outputDir, 0777)
	if err != nil {
		return err
	}
	prefix := "chr" + data.Chromosome + "."
	err = cmd.writeFile(prefix+"genes.csv", func(w *bufio.Writer) {
		writeGenesCSV(w, data.Genes)
	})
	if err != nil {
		return err
	}
	err = cmd.writeFile(prefix+"deletion_frequencies.csv", func(w *bufio.Writer) {
		writeMarginalsCSV(w, data.Marginals())
	})
	if err != nil {
		return err
	}
	for _, mtx := range []struct {
		base string
		gm   *GeneMatrix
	}{
		{prefix + "codeletion_counts.csv", data.CountsMatrix()},
		{prefix + "codeletion_frequency.csv", data.FrequencyMatrix()},
		{prefix + "codeletion_conditional.csv", data.ConditionalMatrix()},
	} {
		mtx := mtx
		err = cmd.writeFile(mtx.base, func(w *bufio.Writer) {
			writeMatrixCSV(w, mtx.gm)
		})
		if err != nil {
			return err
		}
	}

	top := cmd.top
	if top <= 0 {
		top = -1
	}
	pairs := TopPairs(PairTable(data.FrequencyMatrix()), top)
	err = cmd.writeFile(prefix+"codeletion_pairs.csv", func(w *bufio.Writer) {
		writePairsCSV(w, pairs, cmd.maxPairRows)
	})
	if err != nil {
		return err
	}

	ranked := RankGenePairs(data.Genes, data.FrequencyMatrix(), data.ConditionalMatrix())
	ranked, outcome := cmd.filter.Apply(ranked)
	if outcome != filterOK {
		log.Warnf("ranked pairs: %s", outcome)
	}
	if len(ranked) > cmd.maxPairRows {
		log.Warnf("ranked pair table truncated to %d of %d rows", cmd.maxPairRows, len(ranked))
		ranked = ranked[:cmd.maxPairRows]
	}
	if cmd.pvalues {
		AnnotatePValues(ranked, data.Matrix())
	}
	return cmd.writeFile(prefix+"ranked_pairs.csv", func(w *bufio.Writer) {
		writeRankedPairsCSV(w, ranked, cmd.pvalues)
	})
}

func (cmd *exporter) writeFile(base string, fn func(*bufio.Writer)) error {
	fnm := filepath.Join(cmd.outputDir, base)
	log.Infof("writing %s", fnm)
	f, err := os.Create(fnm)
	if err != nil {
		return err
	}
	defer f.Close()
	bufw := bufio.NewWriterSize(f, 1<<20)
	fn(bufw)
	err = bufw.Flush()
	if err != nil {
		return fmt.Errorf("write %s: %w", fnm, err)
	}
	err = f.Close()
	if err != nil {
		return fmt.Errorf("close %s: %w", fnm, err)
	}
	return nil
}

func writeGenesCSV(w *bufio.Writer, genes []GeneInfo) {
	fmt.Fprintf(w, "gene,entrez_id,symbol,chromosome,start,end,cytoband\n")
	for _, gene := range genes {
		fmt.Fprintf(w, "%q,%d,%q,%s,%d,%d,%q\n", gene.GeneID.String(), gene.Entrez, gene.Symbol, gene.Chromosome, gene.Start, gene.End, gene.Cytoband)
	}
}

func writeMarginalsCSV(w *bufio.Writer, marginals []GeneFrequency) {
	fmt.Fprintf(w, "gene,deletion_frequency\n")
	for _, gf := range marginals {
		fmt.Fprintf(w, "%q,%s\n", gf.Gene.String(), csvFloat(gf.Frequency))
	}
}

func writeMatrixCSV(w *bufio.Writer, gm *GeneMatrix) {
	fmt.Fprintf(w, "gene")
	for _, gene := range gm.Genes {
		fmt.Fprintf(w, ",%q", gene.GeneID.String())
	}
	fmt.Fprintf(w, "\n")
	for i, gene := range gm.Genes {
		fmt.Fprintf(w, "%q", gene.GeneID.String())
		for j := range gm.Genes {
			fmt.Fprintf(w, ",%s", csvFloat(gm.At(i, j)))
		}
		fmt.Fprintf(w, "\n")
	}
}

func writePairsCSV(w *bufio.Writer, pairs []GenePair, max int) {
	if len(pairs) > max {
		log.Warnf("pair table truncated to %d of %d rows", max, len(pairs))
		pairs = pairs[:max]
	}
	fmt.Fprintf(w, "gene_i,gene_j,co_deletion_frequency\n")
	for _, pair := range pairs {
		fmt.Fprintf(w, "%q,%q,%s\n", pair.GeneA.String(), pair.GeneB.String(), csvFloat(pair.Frequency))
	}
}

func writeRankedPairsCSV(w *bufio.Writer, pairs []RankedPair, pvalues bool) {
	fmt.Fprintf(w, "gene_a,gene_b,p_a_given_b,p_b_given_a,freq_a,freq_b,joint_frequency,distance_bp")
	if pvalues {
		fmt.Fprintf(w, ",p_value")
	}
	fmt.Fprintf(w, "\n")
	for _, pair := range pairs {
		distance := ""
		if pair.Distance >= 0 {
			distance = strconv.Itoa(pair.Distance)
		}
		fmt.Fprintf(w, "%q,%q,%s,%s,%s,%s,%s,%s",
			pair.GeneA.String(), pair.GeneB.String(),
			csvFloat(pair.PAGivenB), csvFloat(pair.PBGivenA),
			csvFloat(pair.FreqA), csvFloat(pair.FreqB),
			csvFloat(pair.Joint), distance)
		if pvalues {
			fmt.Fprintf(w, ",%s", csvFloat(pair.PValue))
		}
		fmt.Fprintf(w, "\n")
	}
}

// csvFloat renders a float for CSV output, leaving NaN cells empty.
func csvFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
