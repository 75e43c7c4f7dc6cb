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
)

// Chromosomes is the canonical chromosome order: autosomes 1-22, then
// X and Y.
var Chromosomes = []string{
	"1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11", "12",
	"13", "14", "15", "16", "17", "18", "19", "20", "21", "22", "X", "Y",
}

// ValidChromosome reports whether name is a recognized chromosome.
func ValidChromosome(name string) bool {
	for _, c := range Chromosomes {
		if c == name {
			return true
		}
	}
	return false
}

// GeneID identifies a gene by HUGO symbol and Entrez ID. Matrix axes
// and exported tables label genes with the combined "SYMBOL (ENTREZ)"
// form so duplicate symbols stay distinguishable.
type GeneID struct {
	Symbol string
	Entrez int
}

func (g GeneID) String() string {
	return fmt.Sprintf("%s (%d)", g.Symbol, g.Entrez)
}

// ParseGeneID parses a "SYMBOL (ENTREZ)" label.
func ParseGeneID(label string) (GeneID, error) {
	open := strings.LastIndex(label, " (")
	if open < 0 || !strings.HasSuffix(label, ")") {
		return GeneID{}, fmt.Errorf("malformed gene label %q", label)
	}
	entrez, err := strconv.Atoi(label[open+2 : len(label)-1])
	if err != nil {
		return GeneID{}, fmt.Errorf("malformed gene label %q: %s", label, err)
	}
	return GeneID{Symbol: label[:open], Entrez: entrez}, nil
}

// GeneInfo is one row of the gene annotation table.
type GeneInfo struct {
	GeneID
	Chromosome string
	Start      int
	End        int
	Cytoband   string
}

var geneInfoHeader = []string{"entrez_id", "symbol", "chromosome", "start", "end", "cytoband"}

// ReadGeneInfo loads a tab-separated gene annotation table. If
// chromosome is non-empty, rows on other chromosomes are dropped.
// Duplicate Entrez IDs keep their first occurrence, and the returned
// slice is ordered by genomic start position, so it can be used
// directly as a matrix axis.
func ReadGeneInfo(rdr io.Reader, chromosome string) ([]GeneInfo, error) {
	buf, err := io.ReadAll(rdr)
	if err != nil {
		return nil, err
	}
	lines := bytes.Split(buf, []byte{'\n'})
	if len(lines) == 0 {
		return nil, fmt.Errorf("gene annotation file is empty")
	}
	header := strings.Split(strings.TrimSuffix(string(lines[0]), "\r"), "\t")
	if !equalStrings(header, geneInfoHeader) {
		return nil, fmt.Errorf("gene annotation file header %q does not match expected %q", header, geneInfoHeader)
	}
	var genes []GeneInfo
	seen := map[int]bool{}
	for lineIdx, line := range lines[1:] {
		if len(line) == 0 {
			continue
		}
		fields := strings.Split(strings.TrimSuffix(string(line), "\r"), "\t")
		if len(fields) != len(geneInfoHeader) {
			return nil, fmt.Errorf("gene annotation file line %d: expected %d fields, found %d", lineIdx+2, len(geneInfoHeader), len(fields))
		}
		entrez, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("gene annotation file line %d: entrez_id: %s", lineIdx+2, err)
		}
		start, err := strconv.Atoi(fields[3])
		if err != nil {
			return nil, fmt.Errorf("gene annotation file line %d: start: %s", lineIdx+2, err)
		}
		end, err := strconv.Atoi(fields[4])
		if err != nil {
			return nil, fmt.Errorf("gene annotation file line %d: end: %s", lineIdx+2, err)
		}
		if chromosome != "" && fields[2] != chromosome {
			continue
		}
		if seen[entrez] {
			continue
		}
		seen[entrez] = true
		genes = append(genes, GeneInfo{
			GeneID:     GeneID{Symbol: fields[1], Entrez: entrez},
			Chromosome: fields[2],
			Start:      start,
			End:        end,
			Cytoband:   fields[5],
		})
	}
	sort.SliceStable(genes, func(i, j int) bool { return genes[i].Start < genes[j].Start })
	return genes, nil
}

// SelectGenesBySymbol returns the subset of genes whose symbol appears
// in symbols, preserving positional order.
func SelectGenesBySymbol(genes []GeneInfo, symbols []string) []GeneInfo {
	want := map[string]bool{}
	for _, symbol := range symbols {
		want[symbol] = true
	}
	var out []GeneInfo
	for _, gene := range genes {
		if want[gene.Symbol] {
			out = append(out, gene)
		}
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
