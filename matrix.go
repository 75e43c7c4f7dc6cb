// Copyright (C) The TCGA-Codeletion Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package codeletion

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

const (
	// Copy number calls at or below this GISTIC value count as
	// deletions (-2 = deep deletion, -1 = shallow deletion).
	DefaultDeletionCutoff = -1

	// Cohorts with fewer samples than this are rejected: their
	// co-deletion frequencies are too noisy to rank.
	DefaultMinSamples = 10
)

// CNACall is one copy number alteration call for one (sample, gene)
// combination.
type CNACall struct {
	SampleID string
	Entrez   int
	Value    float64
}

var cnaCallHeader = []string{"sample_id", "entrez_id", "alteration"}

// ReadCNACalls loads a tab-separated copy number call table.
func ReadCNACalls(rdr io.Reader) ([]CNACall, error) {
	buf, err := io.ReadAll(rdr)
	if err != nil {
		return nil, err
	}
	lines := bytes.Split(buf, []byte{'\n'})
	if len(lines) == 0 {
		return nil, fmt.Errorf("copy number file is empty")
	}
	header := strings.Split(strings.TrimSuffix(string(lines[0]), "\r"), "\t")
	if !equalStrings(header, cnaCallHeader) {
		return nil, fmt.Errorf("copy number file header %q does not match expected %q", header, cnaCallHeader)
	}
	calls := make([]CNACall, 0, len(lines)-1)
	for lineIdx, line := range lines[1:] {
		if len(line) == 0 {
			continue
		}
		fields := strings.Split(strings.TrimSuffix(string(line), "\r"), "\t")
		if len(fields) != len(cnaCallHeader) {
			return nil, fmt.Errorf("copy number file line %d: expected %d fields, found %d", lineIdx+2, len(cnaCallHeader), len(fields))
		}
		entrez, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("copy number file line %d: entrez_id: %s", lineIdx+2, err)
		}
		value, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, fmt.Errorf("copy number file line %d: alteration: %s", lineIdx+2, err)
		}
		calls = append(calls, CNACall{SampleID: fields[0], Entrez: entrez, Value: value})
	}
	return calls, nil
}

// InsufficientDataError indicates a cohort has too few samples to
// analyze.
type InsufficientDataError struct {
	Samples int
	Min     int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: %d samples with copy number calls, need at least %d", e.Samples, e.Min)
}

// DeletionMatrix is a binary samples × genes matrix: entry (s,g) is 1
// if gene g is deleted in sample s.
type DeletionMatrix struct {
	Samples []string
	Genes   []GeneInfo
	Deleted []int8 // row-major, len(Samples)*len(Genes)
}

// BuildDeletionMatrix converts per-sample copy number calls into a
// deletion matrix over the given gene axis. Calls at or below cutoff
// count as deletions; multiple calls for the same (sample, gene) are
// OR-combined. Genes with no calls at all become all-zero columns, so
// the matrix column order always matches genes. Calls for Entrez IDs
// outside genes are ignored.
func BuildDeletionMatrix(calls []CNACall, genes []GeneInfo, cutoff float64, minSamples int) (*DeletionMatrix, error) {
	sampleSet := map[string]bool{}
	for _, call := range calls {
		sampleSet[call.SampleID] = true
	}
	if len(sampleSet) < minSamples {
		return nil, &InsufficientDataError{Samples: len(sampleSet), Min: minSamples}
	}
	samples := make([]string, 0, len(sampleSet))
	for sample := range sampleSet {
		samples = append(samples, sample)
	}
	sort.Strings(samples)
	sampleIdx := make(map[string]int, len(samples))
	for i, sample := range samples {
		sampleIdx[sample] = i
	}
	geneIdx := make(map[int]int, len(genes))
	for i, gene := range genes {
		geneIdx[gene.Entrez] = i
	}
	dm := &DeletionMatrix{
		Samples: samples,
		Genes:   genes,
		Deleted: make([]int8, len(samples)*len(genes)),
	}
	for _, call := range calls {
		col, ok := geneIdx[call.Entrez]
		if !ok {
			continue
		}
		if call.Value <= cutoff {
			dm.Deleted[sampleIdx[call.SampleID]*len(genes)+col] = 1
		}
	}
	return dm, nil
}

// At reports whether the given gene is deleted in the given sample.
func (dm *DeletionMatrix) At(row, col int) bool {
	return dm.Deleted[row*len(dm.Genes)+col] != 0
}

// Column returns per-sample deletion status for one gene.
func (dm *DeletionMatrix) Column(col int) []bool {
	out := make([]bool, len(dm.Samples))
	for row := range out {
		out[row] = dm.At(row, col)
	}
	return out
}

// Dense returns the matrix as float64 for gonum operations.
func (dm *DeletionMatrix) Dense() *mat.Dense {
	data := make([]float64, len(dm.Deleted))
	for i, v := range dm.Deleted {
		data[i] = float64(v)
	}
	return mat.NewDense(len(dm.Samples), len(dm.Genes), data)
}

// SelectSymbols returns a copy of the matrix restricted to the genes
// whose symbols appear in symbols, preserving column order.
func (dm *DeletionMatrix) SelectSymbols(symbols []string) *DeletionMatrix {
	genes := SelectGenesBySymbol(dm.Genes, symbols)
	geneIdx := make(map[int]int, len(dm.Genes))
	for i, gene := range dm.Genes {
		geneIdx[gene.Entrez] = i
	}
	out := &DeletionMatrix{
		Samples: dm.Samples,
		Genes:   genes,
		Deleted: make([]int8, len(dm.Samples)*len(genes)),
	}
	for row := range dm.Samples {
		for col, gene := range genes {
			out.Deleted[row*len(genes)+col] = dm.Deleted[row*len(dm.Genes)+geneIdx[gene.Entrez]]
		}
	}
	return out
}

// GeneFrequency is one gene's marginal deletion frequency.
type GeneFrequency struct {
	Gene      GeneID
	Frequency float64
}

// DeletionFrequencies returns each gene's deletion frequency (fraction
// of samples in which the gene is deleted), sorted most-deleted first.
func DeletionFrequencies(dm *DeletionMatrix) []GeneFrequency {
	x := dm.Dense()
	out := make([]GeneFrequency, len(dm.Genes))
	col := make([]float64, len(dm.Samples))
	for j := range dm.Genes {
		mat.Col(col, j, x)
		out[j] = GeneFrequency{Gene: dm.Genes[j].GeneID, Frequency: stat.Mean(col, nil)}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Frequency > out[j].Frequency })
	return out
}
