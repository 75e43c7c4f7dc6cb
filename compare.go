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
	"os"
	"runtime"

	log "github.com/sirupsen/logrus"
)

type cohortComparer struct {
	dataDir         string
	catalogFilename string
	catalogFilter   CatalogFilter
	minDeletionFreq float64
}

func (cmd *cohortComparer) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.Usage = func() {
		fmt.Fprintf(stderr, "usage: %s [options] [cohort ...]\n\nWith no cohort arguments, all stored cohorts are compared.\n\nOptions:\n", prog)
		flags.PrintDefaults()
	}
	flags.StringVar(&cmd.dataDir, "data-dir", "", "processed data `directory`")
	flags.StringVar(&cmd.catalogFilename, "sl-catalog", "", "synthetic lethality catalog csv `file`")
	cmd.catalogFilter.Flags(flags)
	flags.Float64Var(&cmd.minDeletionFreq, "min-deletion-freq", DefaultMinDeletionFreq, "minimum deletion `frequency` for a gene to count as frequently deleted")
	outputFilename := flags.String("o", "-", "output `file`")
	loglevel := flags.String("loglevel", "info", "logging threshold (trace, debug, info, warn, error, fatal, or panic)")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	} else if cmd.dataDir == "" || cmd.catalogFilename == "" {
		err = errors.New("-data-dir and -sl-catalog must both be provided")
		return 2
	}

	lvl, err := log.ParseLevel(*loglevel)
	if err != nil {
		return 2
	}
	log.SetLevel(lvl)

	store := &Store{Dir: cmd.dataDir}
	cohorts := flags.Args()
	if len(cohorts) == 0 {
		cohorts, err = store.ListCohorts()
		if err != nil {
			return 1
		}
	}
	if len(cohorts) == 0 {
		err = fmt.Errorf("no stored cohorts in %s", cmd.dataDir)
		return 1
	}

	catalog, hits, err := loadCatalog(cmd.catalogFilename, cmd.catalogFilter)
	if err != nil {
		return 1
	}

	log.Infof("comparing %d cohorts", len(cohorts))
	opps := CompareCohorts(store, cohorts, catalog, hits, cmd.minDeletionFreq, runtime.GOMAXPROCS(0))
	if len(opps) == 0 {
		log.Warn("no therapeutic opportunities found in any cohort")
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
	fmt.Fprintf(bufw, "study_id,%s\n", opportunityHeader)
	for _, opp := range opps {
		fmt.Fprintf(bufw, "%q,", opp.Cohort)
		writeOpportunityRow(bufw, opp.Opportunity)
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
