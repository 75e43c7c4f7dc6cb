// Copyright (C) The TCGA-Codeletion Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package codeletion

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// GeneMatrix is a square gene × gene matrix with both axes in the same
// order as Genes.
type GeneMatrix struct {
	Genes []GeneInfo
	Data  *mat.Dense
}

func (gm *GeneMatrix) At(i, j int) float64 {
	return gm.Data.At(i, j)
}

// CoDeletionCounts computes the co-deletion count matrix XᵀX, where X
// is the binary deletion matrix: entry (i,j) is the number of samples
// in which genes i and j are both deleted. The diagonal holds
// per-gene deletion counts.
func CoDeletionCounts(dm *DeletionMatrix) *GeneMatrix {
	x := dm.Dense()
	var counts mat.Dense
	counts.Mul(x.T(), x)
	return &GeneMatrix{Genes: dm.Genes, Data: &counts}
}

// CoDeletionFrequencies divides a count matrix by the number of
// samples. Entry (i,j) is the fraction of samples in which genes i
// and j are co-deleted; the diagonal holds marginal deletion
// frequencies. Each entry is divided (not scaled by a reciprocal) so
// the diagonal stays bit-identical to independently computed
// marginals.
func CoDeletionFrequencies(counts *GeneMatrix, nsamples int) *GeneMatrix {
	n := float64(nsamples)
	m := len(counts.Genes)
	freq := mat.NewDense(m, m, nil)
	for i := 0; i < m; i++ {
		for j := 0; j < m; j++ {
			freq.Set(i, j, counts.Data.At(i, j)/n)
		}
	}
	return &GeneMatrix{Genes: counts.Genes, Data: freq}
}

// ConditionalCoDeletion computes conditional co-deletion
// probabilities from a count matrix: entry (i,j) is P(gene i deleted |
// gene j deleted) = counts(i,j) / counts(j,j). If gene j is never
// deleted, its entire column is NaN rather than zero: "undefined" and
// "never co-deleted" are different answers. The diagonal is 1 for
// every gene that is deleted at least once.
func ConditionalCoDeletion(counts *GeneMatrix) *GeneMatrix {
	m := len(counts.Genes)
	cond := mat.NewDense(m, m, nil)
	col := make([]float64, m)
	for j := 0; j < m; j++ {
		mat.Col(col, j, counts.Data)
		d := counts.Data.At(j, j)
		for i := range col {
			if d == 0 {
				col[i] = math.NaN()
			} else {
				col[i] /= d
			}
		}
		cond.SetCol(j, col)
	}
	return &GeneMatrix{Genes: counts.Genes, Data: cond}
}

// GenePair is one entry of the long-form co-deletion table.
type GenePair struct {
	GeneA     GeneID
	GeneB     GeneID
	Frequency float64
}

// PairTable flattens the strict upper triangle of a co-deletion
// frequency matrix into a long-form pair list: m genes yield
// m*(m-1)/2 rows, each unordered pair exactly once, self-pairs
// excluded.
func PairTable(freq *GeneMatrix) []GenePair {
	m := len(freq.Genes)
	pairs := make([]GenePair, 0, m*(m-1)/2)
	for i := 0; i < m; i++ {
		for j := i + 1; j < m; j++ {
			pairs = append(pairs, GenePair{
				GeneA:     freq.Genes[i].GeneID,
				GeneB:     freq.Genes[j].GeneID,
				Frequency: freq.At(i, j),
			})
		}
	}
	return pairs
}

// TopPairs returns the n most frequently co-deleted pairs, sorted by
// frequency descending. Ties keep their PairTable order, so repeated
// calls return identical results. The input slice is not modified.
func TopPairs(pairs []GenePair, n int) []GenePair {
	sorted := make([]GenePair, len(pairs))
	copy(sorted, pairs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Frequency > sorted[j].Frequency })
	if n >= 0 && n < len(sorted) {
		sorted = sorted[:n]
	}
	return sorted
}
