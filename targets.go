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

	log "github.com/sirupsen/logrus"
)

type targetFinder struct {
	dataDir         string
	catalogFilename string
	cohort          string
	catalogFilter   CatalogFilter
	minDeletionFreq float64
	essentiality    string
	byTarget        bool
	top             int
}

func (cmd *targetFinder) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVar(&cmd.dataDir, "data-dir", "", "processed data `directory`")
	flags.StringVar(&cmd.catalogFilename, "sl-catalog", "", "synthetic lethality catalog csv `file`")
	flags.StringVar(&cmd.cohort, "cohort", "", "cohort `name`")
	cmd.catalogFilter.Flags(flags)
	flags.Float64Var(&cmd.minDeletionFreq, "min-deletion-freq", DefaultMinDeletionFreq, "minimum deletion `frequency` for a gene to count as frequently deleted")
	flags.StringVar(&cmd.essentiality, "essentiality", "all", "restrict targets by essential status: all, essential, or non-essential")
	flags.BoolVar(&cmd.byTarget, "by-target", false, "aggregate opportunities by target gene")
	flags.IntVar(&cmd.top, "top", 0, "only the `N` best rows (0 = all)")
	outputFilename := flags.String("o", "-", "output `file`")
	loglevel := flags.String("loglevel", "info", "logging threshold (trace, debug, info, warn, error, fatal, or panic)")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	} else if cmd.dataDir == "" || cmd.catalogFilename == "" || cmd.cohort == "" {
		err = errors.New("-data-dir, -sl-catalog, and -cohort must all be provided")
		return 2
	}

	lvl, err := log.ParseLevel(*loglevel)
	if err != nil {
		return 2
	}
	log.SetLevel(lvl)

	catalog, hits, err := loadCatalog(cmd.catalogFilename, cmd.catalogFilter)
	if err != nil {
		return 1
	}

	store := &Store{Dir: cmd.dataDir}
	deletions, err := AggregateGenomeWide(store, cmd.cohort)
	if err != nil {
		return 1
	}
	if len(deletions.Loaded) == 0 {
		err = fmt.Errorf("no processed deletion data for cohort %s in %s", cmd.cohort, cmd.dataDir)
		return 1
	}
	if len(deletions.Missing) > 0 {
		log.Debugf("cohort %s: no stored data for chromosomes %v", cmd.cohort, deletions.Missing)
	}

	opps := JoinOpportunities(deletions, catalog, hits, cmd.minDeletionFreq)
	if len(opps) == 0 {
		log.Warn("no frequently deleted genes have synthetic lethal partners in the catalog")
	}
	opps, err = FilterEssentiality(opps, cmd.essentiality)
	if err != nil {
		return 2
	}
	if len(opps) == 0 {
		log.Warn("no therapeutic opportunities found with current filters")
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
	if cmd.byTarget {
		targets := SummarizeTargets(opps)
		if cmd.top > 0 && cmd.top < len(targets) {
			targets = targets[:cmd.top]
		}
		writeTargetsCSV(bufw, targets)
	} else {
		if cmd.top > 0 && cmd.top < len(opps) {
			opps = opps[:cmd.top]
		}
		writeOpportunitiesCSV(bufw, opps)
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

// loadCatalog reads and filters a synthetic lethality catalog, and
// derives validation hit frequencies from the filtered rows.
func loadCatalog(fnm string, filter CatalogFilter) ([]SLPair, map[string]HitFrequency, error) {
	f, err := zopen(fnm)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	catalog, err := LoadSLCatalog(f, filter)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", fnm, err)
	}
	if len(catalog) == 0 {
		log.Warnf("no synthetic lethal pairs pass the current filters (fdr <= %g)", filter.MaxFDR)
	}
	return catalog, HitFrequencies(catalog), nil
}

const opportunityHeader = "deleted_gene,deleted_gene_chromosome,deleted_gene_cytoband,target_gene,deletion_frequency,gi_score,fdr,target_is_common_essential,target_depmap_dependent_lines,hit_count,hit_fraction,cancer_types_validated,therapeutic_score"

func writeOpportunityRow(w *bufio.Writer, opp Opportunity) {
	fmt.Fprintf(w, "%q,%s,%q,%q,%s,%s,%s,%v,%d,%d,%s,%q,%s\n",
		opp.DeletedGene, opp.DeletedChromosome, opp.DeletedCytoband, opp.TargetGene,
		csvFloat(opp.DeletionFreq), csvFloat(opp.GIScore), csvFloat(opp.FDR),
		opp.TargetEssential, opp.TargetDepMapLines,
		opp.HitCount, csvFloat(opp.HitFraction), opp.CancerTypes, csvFloat(opp.Score))
}

func writeOpportunitiesCSV(w *bufio.Writer, opps []Opportunity) {
	fmt.Fprintf(w, "%s\n", opportunityHeader)
	for _, opp := range opps {
		writeOpportunityRow(w, opp)
	}
}

func writeTargetsCSV(w *bufio.Writer, targets []TargetSummary) {
	fmt.Fprintf(w, "target_gene,n_opportunities,mean_deletion_frequency,mean_abs_gi_score,target_is_common_essential,target_depmap_dependent_lines\n")
	for _, t := range targets {
		fmt.Fprintf(w, "%q,%d,%s,%s,%v,%d\n",
			t.TargetGene, t.Opportunities,
			csvFloat(t.MeanDeletionFreq), csvFloat(t.MeanAbsGIScore),
			t.Essential, t.DepMapLines)
	}
}
