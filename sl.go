// Copyright (C) The TCGA-Codeletion Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package codeletion

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	log "github.com/sirupsen/logrus"
)

const (
	// DefaultMaxFDR is the significance cutoff for catalog rows.
	DefaultMaxFDR = 0.05

	// DefaultMinDeletionFreq is the minimum deletion frequency for a
	// gene to count as "frequently deleted" when crossing deletions
	// with the synthetic lethality catalog.
	DefaultMinDeletionFreq = 0.05

	// The validation screen covered a panel of 27 cancer cell lines.
	slCellLinePanel = 27

	// DepMap dependency counts are reported out of 1086 profiled
	// cell lines.
	depmapTotalLines = 1086
)

// catalogFloat is a float64 CSV cell that tolerates empty and NaN
// values.
type catalogFloat float64

func (f *catalogFloat) UnmarshalCSV(s string) error {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") {
		*f = catalogFloat(math.NaN())
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = catalogFloat(v)
	return nil
}

// catalogBool is a bool CSV cell that tolerates empty values and
// Python-style "True"/"False".
type catalogBool bool

func (b *catalogBool) UnmarshalCSV(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		*b = false
		return nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	*b = catalogBool(v)
	return nil
}

// SLPair is one row of the synthetic lethality catalog: a validated
// gene-gene interaction with its screen statistics and per-target
// essentiality annotations.
type SLPair struct {
	SortedPair string       `csv:"sorted_gene_pair"`
	TargetA    string       `csv:"targetA"`
	TargetB    string       `csv:"targetB"`
	GIScore    catalogFloat `csv:"mean_norm_gi"`
	FDR        catalogFloat `csv:"fdr"`
	CancerType string       `csv:"cancer_type"`
	CellLine   string       `csv:"cell_line_label"`
	AEssential catalogBool  `csv:"targetA__is_common_essential_bagel2"`
	BEssential catalogBool  `csv:"targetB__is_common_essential_bagel2"`
	ADepMap    string       `csv:"targetA__n_depmap_dependent_cell_lines"`
	BDepMap    string       `csv:"targetB__n_depmap_dependent_cell_lines"`
	Source     string       `csv:"sgrna_group.x"`
}

// CatalogFilter restricts synthetic lethality catalog rows at load
// time.
type CatalogFilter struct {
	MaxFDR  float64
	MinGI   float64
	Sources string
}

func (f *CatalogFilter) Flags(flags *flag.FlagSet) {
	flags.Float64Var(&f.MaxFDR, "max-fdr", DefaultMaxFDR, "keep catalog rows with screen FDR at or below `threshold`")
	flags.Float64Var(&f.MinGI, "min-gi", 0, "minimum absolute GI `score` (0 = no minimum)")
	flags.StringVar(&f.Sources, "sources", "", "comma-separated screen `sources` to keep (default all)")
}

func (f *CatalogFilter) sourceSet() map[string]bool {
	if f.Sources == "" {
		return nil
	}
	set := map[string]bool{}
	for _, s := range strings.Split(f.Sources, ",") {
		if s = strings.TrimSpace(s); s != "" {
			set[s] = true
		}
	}
	return set
}

// LoadSLCatalog reads a synthetic lethality catalog CSV and drops the
// rows excluded by filter. Rows with missing FDR never pass the FDR
// cutoff.
func LoadSLCatalog(rdr io.Reader, filter CatalogFilter) ([]SLPair, error) {
	var rows []SLPair
	if err := gocsv.Unmarshal(rdr, &rows); err != nil {
		return nil, fmt.Errorf("parse synthetic lethality catalog: %w", err)
	}
	sources := filter.sourceSet()
	kept := rows[:0]
	for _, row := range rows {
		if !(float64(row.FDR) <= filter.MaxFDR) {
			continue
		}
		if filter.MinGI > 0 && !(math.Abs(float64(row.GIScore)) >= filter.MinGI) {
			continue
		}
		if sources != nil && !sources[row.Source] {
			continue
		}
		kept = append(kept, row)
	}
	return kept, nil
}

// parseDepMapCount parses a DepMap dependency count in "N/1086" form.
// Missing or malformed values degrade to (0, 1086) rather than
// failing the row.
func parseDepMapCount(s string) (dependent, total int) {
	i := strings.IndexByte(s, '/')
	if i < 0 {
		return 0, depmapTotalLines
	}
	d, err1 := strconv.Atoi(strings.TrimSpace(s[:i]))
	t, err2 := strconv.Atoi(strings.TrimSpace(s[i+1:]))
	if err1 != nil || err2 != nil {
		return 0, depmapTotalLines
	}
	return d, t
}

// HitFrequency summarizes how broadly one catalog pair validated
// across the cell line panel.
type HitFrequency struct {
	Pair        string
	HitCount    int
	HitFraction float64
	CancerTypes string
	CellLines   string
}

// HitFrequencies groups catalog rows by sorted gene pair and counts
// the distinct cell lines and cancer types in which each pair
// validated. HitFraction is HitCount over the full panel size.
func HitFrequencies(rows []SLPair) map[string]HitFrequency {
	type group struct {
		cellLines   map[string]bool
		cancerTypes map[string]bool
	}
	groups := map[string]*group{}
	for _, row := range rows {
		g := groups[row.SortedPair]
		if g == nil {
			g = &group{cellLines: map[string]bool{}, cancerTypes: map[string]bool{}}
			groups[row.SortedPair] = g
		}
		if row.CellLine != "" {
			g.cellLines[row.CellLine] = true
		}
		if row.CancerType != "" {
			g.cancerTypes[row.CancerType] = true
		}
	}
	out := make(map[string]HitFrequency, len(groups))
	for pair, g := range groups {
		out[pair] = HitFrequency{
			Pair:        pair,
			HitCount:    len(g.cellLines),
			HitFraction: float64(len(g.cellLines)) / slCellLinePanel,
			CancerTypes: joinSorted(g.cancerTypes),
			CellLines:   joinSorted(g.cellLines),
		}
	}
	return out
}

func joinSorted(set map[string]bool) string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ",")
}

// slSummary is one catalog pair collapsed to a single row: mean GI
// score and best FDR across screen replicates, with essentiality
// annotations taken from the first row of the group.
type slSummary struct {
	Pair       string
	TargetA    string
	TargetB    string
	GIScore    float64
	FDR        float64
	AEssential bool
	BEssential bool
	ADepMap    int
	BDepMap    int
}

func summarizeCatalog(rows []SLPair) []slSummary {
	groups := map[string][]SLPair{}
	for _, row := range rows {
		groups[row.SortedPair] = append(groups[row.SortedPair], row)
	}
	pairs := make([]string, 0, len(groups))
	for pair := range groups {
		pairs = append(pairs, pair)
	}
	sort.Strings(pairs)
	out := make([]slSummary, 0, len(pairs))
	for _, pair := range pairs {
		group := groups[pair]
		first := group[0]
		var giSum float64
		var giN int
		fdr := math.NaN()
		for _, row := range group {
			if gi := float64(row.GIScore); !math.IsNaN(gi) {
				giSum += gi
				giN++
			}
			if f := float64(row.FDR); !math.IsNaN(f) && !(fdr <= f) {
				fdr = f
			}
		}
		gi := math.NaN()
		if giN > 0 {
			gi = giSum / float64(giN)
		}
		aDep, _ := parseDepMapCount(first.ADepMap)
		bDep, _ := parseDepMapCount(first.BDepMap)
		out = append(out, slSummary{
			Pair:       pair,
			TargetA:    first.TargetA,
			TargetB:    first.TargetB,
			GIScore:    gi,
			FDR:        fdr,
			AEssential: bool(first.AEssential),
			BEssential: bool(first.BEssential),
			ADepMap:    aDep,
			BDepMap:    bDep,
		})
	}
	return out
}

// GeneDeletion is one gene's deletion frequency in genome-wide
// context.
type GeneDeletion struct {
	Gene       GeneID
	Chromosome string
	Cytoband   string
	Frequency  float64
}

// GenomeDeletions holds per-gene deletion frequencies aggregated
// across every chromosome with stored results for a cohort. Loaded
// and Missing record which chromosomes contributed, so callers can
// tell a complete aggregation from a partial one.
type GenomeDeletions struct {
	Cohort  string
	Genes   []GeneDeletion
	Loaded  []string
	Missing []string
}

// AggregateGenomeWide collects marginal deletion frequencies for all
// chromosomes of a cohort. Chromosomes without stored results are
// skipped and recorded in Missing; any other storage error aborts.
func AggregateGenomeWide(store *Store, cohort string) (*GenomeDeletions, error) {
	gd := &GenomeDeletions{Cohort: cohort}
	for _, chromosome := range Chromosomes {
		data, err := store.Load(cohort, chromosome)
		if err != nil {
			var notFound *NotFoundError
			if errors.As(err, &notFound) {
				gd.Missing = append(gd.Missing, chromosome)
				continue
			}
			return nil, err
		}
		gd.Loaded = append(gd.Loaded, chromosome)
		info := make(map[int]GeneInfo, len(data.Genes))
		for _, gene := range data.Genes {
			info[gene.Entrez] = gene
		}
		for _, gf := range data.Marginals() {
			gd.Genes = append(gd.Genes, GeneDeletion{
				Gene:       gf.Gene,
				Chromosome: chromosome,
				Cytoband:   info[gf.Gene.Entrez].Cytoband,
				Frequency:  gf.Frequency,
			})
		}
	}
	return gd, nil
}

// Opportunity is one directional therapeutic opportunity: DeletedGene
// is frequently deleted in the cohort, and TargetGene is its
// synthetic lethal partner, druggable in the samples carrying the
// deletion.
type Opportunity struct {
	DeletedGene       string
	DeletedChromosome string
	DeletedCytoband   string
	TargetGene        string
	DeletionFreq      float64
	GIScore           float64
	FDR               float64
	TargetEssential   bool
	TargetDepMapLines int
	HitCount          int
	HitFraction       float64
	CancerTypes       string
	Score             float64
}

// TherapeuticScore scores one opportunity for prioritization:
// deletion frequency × |GI score|, boosted when the target is
// commonly essential (×2) or depended on by most DepMap lines (×1.5),
// and weighted by the fraction of the validation panel that confirmed
// the interaction. hitFraction < 0 means no validation data was
// supplied and leaves the panel weight neutral.
func TherapeuticScore(deletionFreq, giScore float64, essential bool, depmapLines int, hitFraction float64) float64 {
	essWeight := 1.0
	if essential {
		essWeight = 2.0
	} else if float64(depmapLines)/depmapTotalLines > 0.5 {
		essWeight = 1.5
	}
	panelWeight := 1.0
	if hitFraction >= 0 {
		panelWeight = 0.5 + hitFraction*1.5
	}
	return deletionFreq * math.Abs(giScore) * essWeight * panelWeight
}

// JoinOpportunities crosses genome-wide deletion frequencies with the
// synthetic lethality catalog. For each catalog pair, if either
// partner is deleted in at least minDeletionFreq of samples, the
// other partner becomes a therapeutic target; a pair whose partners
// are both frequently deleted yields two records. Results are sorted
// by deletion frequency descending, then GI score ascending (more
// negative = stronger interaction). hits may be nil when no
// validation data is available.
func JoinOpportunities(deletions *GenomeDeletions, rows []SLPair, hits map[string]HitFrequency, minDeletionFreq float64) []Opportunity {
	bySymbol := map[string]GeneDeletion{}
	for _, del := range deletions.Genes {
		if del.Frequency < minDeletionFreq {
			continue
		}
		if _, ok := bySymbol[del.Gene.Symbol]; !ok {
			bySymbol[del.Gene.Symbol] = del
		}
	}
	var out []Opportunity
	for _, sl := range summarizeCatalog(rows) {
		if del, ok := bySymbol[sl.TargetA]; ok {
			out = append(out, makeOpportunity(del, sl.TargetB, sl, sl.BEssential, sl.BDepMap, hits))
		}
		if del, ok := bySymbol[sl.TargetB]; ok {
			out = append(out, makeOpportunity(del, sl.TargetA, sl, sl.AEssential, sl.ADepMap, hits))
		}
	}
	sortOpportunities(out)
	return out
}

func makeOpportunity(del GeneDeletion, target string, sl slSummary, targetEssential bool, targetDepMap int, hits map[string]HitFrequency) Opportunity {
	opp := Opportunity{
		DeletedGene:       del.Gene.Symbol,
		DeletedChromosome: del.Chromosome,
		DeletedCytoband:   del.Cytoband,
		TargetGene:        target,
		DeletionFreq:      del.Frequency,
		GIScore:           sl.GIScore,
		FDR:               sl.FDR,
		TargetEssential:   targetEssential,
		TargetDepMapLines: targetDepMap,
	}
	hitFraction := -1.0
	if hits != nil {
		hitFraction = 0
		if hit, ok := hits[sl.Pair]; ok {
			opp.HitCount = hit.HitCount
			opp.HitFraction = hit.HitFraction
			opp.CancerTypes = hit.CancerTypes
			hitFraction = hit.HitFraction
		}
	}
	opp.Score = TherapeuticScore(del.Frequency, sl.GIScore, targetEssential, targetDepMap, hitFraction)
	return opp
}

func sortOpportunities(opps []Opportunity) {
	sort.SliceStable(opps, func(i, j int) bool {
		if opps[i].DeletionFreq != opps[j].DeletionFreq {
			return opps[i].DeletionFreq > opps[j].DeletionFreq
		}
		return opps[i].GIScore < opps[j].GIScore
	})
}

// FilterEssentiality restricts opportunities by the target gene's
// common-essential status. mode is "all", "essential", or
// "non-essential".
func FilterEssentiality(opps []Opportunity, mode string) ([]Opportunity, error) {
	var want bool
	switch mode {
	case "", "all":
		return opps, nil
	case "essential":
		want = true
	case "non-essential":
		want = false
	default:
		return nil, fmt.Errorf("invalid essentiality filter %q (want all, essential, or non-essential)", mode)
	}
	var out []Opportunity
	for _, opp := range opps {
		if opp.TargetEssential == want {
			out = append(out, opp)
		}
	}
	return out, nil
}

// TargetSummary aggregates opportunities by target gene.
type TargetSummary struct {
	TargetGene       string
	Opportunities    int
	MeanDeletionFreq float64
	MeanAbsGIScore   float64
	Essential        bool
	DepMapLines      int
}

// SummarizeTargets groups opportunities by target gene, averaging
// deletion frequency and |GI score| across each target's deleted
// partners. Results are sorted by mean |GI score| descending.
func SummarizeTargets(opps []Opportunity) []TargetSummary {
	var order []string
	groups := map[string][]Opportunity{}
	for _, opp := range opps {
		if _, ok := groups[opp.TargetGene]; !ok {
			order = append(order, opp.TargetGene)
		}
		groups[opp.TargetGene] = append(groups[opp.TargetGene], opp)
	}
	out := make([]TargetSummary, 0, len(order))
	for _, target := range order {
		group := groups[target]
		var freqSum, giSum float64
		for _, opp := range group {
			freqSum += opp.DeletionFreq
			giSum += math.Abs(opp.GIScore)
		}
		out = append(out, TargetSummary{
			TargetGene:       target,
			Opportunities:    len(group),
			MeanDeletionFreq: freqSum / float64(len(group)),
			MeanAbsGIScore:   giSum / float64(len(group)),
			Essential:        group[0].TargetEssential,
			DepMapLines:      group[0].TargetDepMapLines,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].MeanAbsGIScore > out[j].MeanAbsGIScore })
	return out
}

// CohortOpportunity tags an opportunity with the cohort it was found
// in.
type CohortOpportunity struct {
	Cohort string
	Opportunity
}

// CompareCohorts runs the synthetic lethality join against several
// cohorts and concatenates the results, sorted by deletion frequency
// descending then GI score ascending across all cohorts. Cohorts
// whose stored results cannot be read are skipped with a warning.
func CompareCohorts(store *Store, cohorts []string, rows []SLPair, hits map[string]HitFrequency, minDeletionFreq float64, maxParallel int) []CohortOpportunity {
	results := make([][]CohortOpportunity, len(cohorts))
	throttle := throttle{Max: maxParallel}
	for i, cohort := range cohorts {
		i, cohort := i, cohort
		throttle.Acquire()
		go func() {
			defer throttle.Release()
			deletions, err := AggregateGenomeWide(store, cohort)
			if err != nil {
				log.Warnf("skipping cohort %s: %s", cohort, err)
				return
			}
			opps := JoinOpportunities(deletions, rows, hits, minDeletionFreq)
			tagged := make([]CohortOpportunity, len(opps))
			for j, opp := range opps {
				tagged[j] = CohortOpportunity{Cohort: cohort, Opportunity: opp}
			}
			results[i] = tagged
		}()
	}
	throttle.Wait()
	var out []CohortOpportunity
	for _, r := range results {
		out = append(out, r...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DeletionFreq != out[j].DeletionFreq {
			return out[i].DeletionFreq > out[j].DeletionFreq
		}
		return out[i].GIScore < out[j].GIScore
	})
	return out
}
