// Copyright (C) The TCGA-Codeletion Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package codeletion

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

var chisquared = distuv.ChiSquared{K: 1, Src: rand.NewSource(rand.Uint64())}

// pvalue returns the chi-squared p-value for the null hypothesis that
// deletions of two genes occur independently, given each gene's
// per-sample deletion status. It returns 1 when either gene is deleted
// in no samples or in all samples.
func pvalue(x, y []bool) float64 {
	var (
		obs [4]float64 // x&y, x&!y, !x&y, !x&!y
		sum float64
		sz  = float64(len(y))
	)
	for i, yi := range y {
		switch {
		case x[i] && yi:
			obs[0]++
		case x[i]:
			obs[1]++
		case yi:
			obs[2]++
		default:
			obs[3]++
		}
	}
	nx := obs[0] + obs[1]
	ny := obs[0] + obs[2]
	if nx == 0 || ny == 0 || nx == sz || ny == sz {
		return 1
	}
	exp := [4]float64{
		nx * ny / sz,
		nx * (sz - ny) / sz,
		(sz - nx) * ny / sz,
		(sz - nx) * (sz - ny) / sz,
	}
	for i := range exp {
		d := obs[i] - exp[i]
		sum += d * d / exp[i]
	}
	return 1 - chisquared.CDF(sum)
}

// pairPValue tests whether deletions of the two given genes are
// associated across samples.
func pairPValue(dm *DeletionMatrix, i, j int) float64 {
	return pvalue(dm.Column(i), dm.Column(j))
}
