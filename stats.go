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
	"os"

	mstats "github.com/montanaflynn/stats"
)

type statsSummary struct {
	dataDir    string
	cohort     string
	chromosome string
	topGenes   int
	list       bool
}

func (cmd *statsSummary) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
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
	flags.StringVar(&cmd.chromosome, "chromosome", "", "`chromosome` to summarize")
	flags.IntVar(&cmd.topGenes, "top-genes", 10, "`number` of most-deleted genes to include")
	flags.BoolVar(&cmd.list, "list", false, "list stored cohorts and chromosomes instead of summarizing")
	outputFilename := flags.String("o", "-", "output `file`")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	} else if cmd.dataDir == "" {
		err = errors.New("-data-dir must be provided")
		return 2
	} else if !cmd.list && (cmd.cohort == "" || cmd.chromosome == "") {
		err = errors.New("-cohort and -chromosome must be provided (or use -list)")
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
	store := &Store{Dir: cmd.dataDir}
	if cmd.list {
		err = cmd.doList(store, bufw)
	} else {
		err = cmd.doStats(store, bufw)
	}
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

func (cmd *statsSummary) doList(store *Store, output io.Writer) error {
	cohorts, err := store.ListCohorts()
	if err != nil {
		return err
	}
	var ret struct {
		Cohorts []struct {
			Cohort      string
			Chromosomes []string
		}
	}
	for _, cohort := range cohorts {
		ret.Cohorts = append(ret.Cohorts, struct {
			Cohort      string
			Chromosomes []string
		}{cohort, store.ListChromosomes(cohort)})
	}
	return json.NewEncoder(output).Encode(ret)
}

func (cmd *statsSummary) doStats(store *Store, output io.Writer) error {
	var ret struct {
		Cohort            string
		Chromosome        string
		Samples           int
		Genes             int
		DeletedCells      int
		GenesNeverDeleted int
		DeletionFrequency struct {
			Mean   float64
			Median float64
			Max    float64
			P90    float64
		}
		TopGenes []GeneFrequency
	}

	data, err := store.Load(cmd.cohort, cmd.chromosome)
	if err != nil {
		return err
	}
	ret.Cohort = data.Cohort
	ret.Chromosome = data.Chromosome
	ret.Samples = len(data.Samples)
	ret.Genes = len(data.Genes)
	for _, v := range data.Deleted {
		if v != 0 {
			ret.DeletedCells++
		}
	}
	marginals := data.Marginals()
	freqs := make([]float64, len(marginals))
	for i, gf := range marginals {
		freqs[i] = gf.Frequency
		if gf.Frequency == 0 {
			ret.GenesNeverDeleted++
		}
	}
	ret.DeletionFrequency.Mean, err = mstats.Mean(freqs)
	if err != nil {
		return fmt.Errorf("mean: %w", err)
	}
	ret.DeletionFrequency.Median, err = mstats.Median(freqs)
	if err != nil {
		return fmt.Errorf("median: %w", err)
	}
	ret.DeletionFrequency.Max, err = mstats.Max(freqs)
	if err != nil {
		return fmt.Errorf("max: %w", err)
	}
	ret.DeletionFrequency.P90, err = mstats.Percentile(freqs, 90)
	if err != nil {
		return fmt.Errorf("percentile: %w", err)
	}
	if cmd.topGenes >= 0 && cmd.topGenes < len(marginals) {
		marginals = marginals[:cmd.topGenes]
	}
	ret.TopGenes = marginals

	return json.NewEncoder(output).Encode(ret)
}
