// Copyright (C) The TCGA-Codeletion Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package codeletion

import (
	"flag"
	"math"
	"sort"
	"strings"
)

// RankedPair is one analyzed gene pair: conditional probabilities in
// both directions, marginal and joint deletion frequencies, and the
// genomic distance between the two genes. Distance is -1 when either
// gene's position is unknown.
type RankedPair struct {
	GeneA    GeneID
	GeneB    GeneID
	PAGivenB float64 // P(A deleted | B deleted)
	PBGivenA float64 // P(B deleted | A deleted)
	FreqA    float64
	FreqB    float64
	Joint    float64
	Distance int
	PValue   float64 // NaN until annotated
}

// rankKey is the better of the two conditional directions. It orders
// the ranked list but is not part of the output row.
func (p RankedPair) rankKey() float64 {
	switch {
	case math.IsNaN(p.PAGivenB):
		return p.PBGivenA
	case math.IsNaN(p.PBGivenA):
		return p.PAGivenB
	default:
		return math.Max(p.PAGivenB, p.PBGivenA)
	}
}

// RankGenePairs builds the annotated pair list from a frequency matrix
// and its conditional matrix, sorted by the stronger conditional
// direction, descending. Pairs with no usable signal are skipped:
// both conditionals undefined, or either gene never deleted. Ties
// keep matrix iteration order, so repeated calls return identical
// results.
func RankGenePairs(genes []GeneInfo, freq, cond *GeneMatrix) []RankedPair {
	m := len(genes)
	var pairs []RankedPair
	for i := 0; i < m; i++ {
		for j := i + 1; j < m; j++ {
			pab := cond.At(i, j)
			pba := cond.At(j, i)
			if math.IsNaN(pab) && math.IsNaN(pba) {
				continue
			}
			fa := freq.At(i, i)
			fb := freq.At(j, j)
			if !(fa > 0) || !(fb > 0) {
				continue
			}
			distance := -1
			if genes[i].Start > 0 && genes[j].Start > 0 {
				distance = genes[i].Start - genes[j].Start
				if distance < 0 {
					distance = -distance
				}
			}
			pairs = append(pairs, RankedPair{
				GeneA:    genes[i].GeneID,
				GeneB:    genes[j].GeneID,
				PAGivenB: pab,
				PBGivenA: pba,
				FreqA:    fa,
				FreqB:    fb,
				Joint:    freq.At(i, j),
				Distance: distance,
				PValue:   math.NaN(),
			})
		}
	}
	sort.SliceStable(pairs, func(a, b int) bool { return pairs[a].rankKey() > pairs[b].rankKey() })
	return pairs
}

// AnnotatePValues fills in each pair's chi-squared association
// p-value from the underlying deletion matrix. Call it after
// filtering: the test costs one pass over all samples per pair.
func AnnotatePValues(pairs []RankedPair, dm *DeletionMatrix) {
	geneIdx := make(map[int]int, len(dm.Genes))
	for i, gene := range dm.Genes {
		geneIdx[gene.Entrez] = i
	}
	for i, pair := range pairs {
		a, oka := geneIdx[pair.GeneA.Entrez]
		b, okb := geneIdx[pair.GeneB.Entrez]
		if !oka || !okb {
			continue
		}
		pairs[i].PValue = pairPValue(dm, a, b)
	}
}

// filterOutcome distinguishes the ways a pair filter can come back
// empty.
type filterOutcome int

const (
	filterOK filterOutcome = iota
	filterNoPairs
	filterNoGeneMatch
	filterNoThresholdMatch
)

func (o filterOutcome) String() string {
	switch o {
	case filterNoPairs:
		return "no analyzable gene pairs"
	case filterNoGeneMatch:
		return "no pairs match the gene filter"
	case filterNoThresholdMatch:
		return "no pairs satisfy the numeric thresholds"
	default:
		return "ok"
	}
}

// pairFilter restricts a ranked pair list. All conditions are
// AND-combined.
type pairFilter struct {
	Gene        string
	MinDistance int
	MaxDistance int
	MinFreq     float64
	MinPAB      float64
	MinPBA      float64
	MinJoint    float64
}

func (f *pairFilter) Flags(flags *flag.FlagSet) {
	flags.StringVar(&f.Gene, "gene", "", "only pairs where either `symbol` contains this substring (case-insensitive)")
	flags.IntVar(&f.MinDistance, "min-distance", 0, "minimum genomic distance in `bp` between paired genes")
	flags.IntVar(&f.MaxDistance, "max-distance", -1, "maximum genomic distance in `bp` between paired genes (-1 = no limit)")
	flags.Float64Var(&f.MinFreq, "min-freq", 0, "minimum marginal deletion `frequency` for both genes")
	flags.Float64Var(&f.MinPAB, "min-p-ab", 0, "minimum conditional `probability` P(A|B)")
	flags.Float64Var(&f.MinPBA, "min-p-ba", 0, "minimum conditional `probability` P(B|A)")
	flags.Float64Var(&f.MinJoint, "min-joint", 0, "minimum joint co-deletion `frequency`")
}

// Apply filters pairs, preserving order. The outcome tells an empty
// result apart: no pairs at all, nothing matching the gene substring,
// or nothing surviving the numeric thresholds.
func (f *pairFilter) Apply(pairs []RankedPair) ([]RankedPair, filterOutcome) {
	if len(pairs) == 0 {
		return nil, filterNoPairs
	}
	if f.Gene != "" {
		needle := strings.ToLower(f.Gene)
		var matched []RankedPair
		for _, pair := range pairs {
			if strings.Contains(strings.ToLower(pair.GeneA.Symbol), needle) ||
				strings.Contains(strings.ToLower(pair.GeneB.Symbol), needle) {
				matched = append(matched, pair)
			}
		}
		if len(matched) == 0 {
			return nil, filterNoGeneMatch
		}
		pairs = matched
	}
	var out []RankedPair
	for _, pair := range pairs {
		if f.keep(pair) {
			out = append(out, pair)
		}
	}
	if len(out) == 0 {
		return nil, filterNoThresholdMatch
	}
	return out, filterOK
}

func (f *pairFilter) keep(p RankedPair) bool {
	if p.FreqA < f.MinFreq || p.FreqB < f.MinFreq {
		return false
	}
	if p.PAGivenB < f.MinPAB || p.PBGivenA < f.MinPBA {
		return false
	}
	if p.Joint < f.MinJoint {
		return false
	}
	// Pairs with unknown distance pass both distance bounds: a
	// missing annotation should not hide the pair.
	if p.Distance >= 0 {
		if p.Distance < f.MinDistance {
			return false
		}
		if f.MaxDistance >= 0 && p.Distance > f.MaxDistance {
			return false
		}
	}
	return true
}
