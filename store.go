// Copyright (C) The TCGA-Codeletion Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package codeletion

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/pgzip"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// ChromosomeData is the processed artifact for one (cohort,
// chromosome): the deletion matrix plus the three derived gene × gene
// matrices, stored row-major.
type ChromosomeData struct {
	Cohort      string
	Chromosome  string
	Samples     []string
	Genes       []GeneInfo
	Deleted     []int8    // samples × genes
	Counts      []float64 // genes × genes
	Frequency   []float64 // genes × genes
	Conditional []float64 // genes × genes
}

// NewChromosomeData computes all derived matrices for a deletion
// matrix and bundles them into a storable artifact.
func NewChromosomeData(cohort, chromosome string, dm *DeletionMatrix) *ChromosomeData {
	counts := CoDeletionCounts(dm)
	freq := CoDeletionFrequencies(counts, len(dm.Samples))
	cond := ConditionalCoDeletion(counts)
	return &ChromosomeData{
		Cohort:      cohort,
		Chromosome:  chromosome,
		Samples:     dm.Samples,
		Genes:       dm.Genes,
		Deleted:     dm.Deleted,
		Counts:      denseData(counts.Data),
		Frequency:   denseData(freq.Data),
		Conditional: denseData(cond.Data),
	}
}

func denseData(m *mat.Dense) []float64 {
	r, c := m.Dims()
	out := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		out = append(out, m.RawRowView(i)...)
	}
	return out
}

// Matrix returns the stored deletion matrix.
func (cd *ChromosomeData) Matrix() *DeletionMatrix {
	return &DeletionMatrix{Samples: cd.Samples, Genes: cd.Genes, Deleted: cd.Deleted}
}

func (cd *ChromosomeData) geneMatrix(data []float64) *GeneMatrix {
	m := len(cd.Genes)
	return &GeneMatrix{Genes: cd.Genes, Data: mat.NewDense(m, m, data)}
}

func (cd *ChromosomeData) CountsMatrix() *GeneMatrix      { return cd.geneMatrix(cd.Counts) }
func (cd *ChromosomeData) FrequencyMatrix() *GeneMatrix   { return cd.geneMatrix(cd.Frequency) }
func (cd *ChromosomeData) ConditionalMatrix() *GeneMatrix { return cd.geneMatrix(cd.Conditional) }

// Marginals returns per-gene deletion frequencies (the frequency
// matrix diagonal), sorted most-deleted first.
func (cd *ChromosomeData) Marginals() []GeneFrequency {
	m := len(cd.Genes)
	out := make([]GeneFrequency, m)
	for j := range out {
		out[j] = GeneFrequency{Gene: cd.Genes[j].GeneID, Frequency: cd.Frequency[j*m+j]}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Frequency > out[j].Frequency })
	return out
}

// NotFoundError indicates no processed results are stored for a
// (cohort, chromosome) combination.
type NotFoundError struct {
	Cohort     string
	Chromosome string
	Path       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no processed data for cohort %s chromosome %s (%s)", e.Cohort, e.Chromosome, e.Path)
}

// A Store reads and writes processed artifacts under a data
// directory, one gzipped gob stream per cohort and chromosome.
type Store struct {
	Dir string
}

func (s *Store) path(cohort, chromosome string) string {
	return filepath.Join(s.Dir, cohort, "chr"+chromosome+".codeletion.gob.gz")
}

func (s *Store) Save(data *ChromosomeData) error {
	fnm := s.path(data.Cohort, data.Chromosome)
	err := os.MkdirAll(filepath.Dir(fnm), 0777)
	if err != nil {
		return err
	}
	log.Infof("writing %s", fnm)
	f, err := os.OpenFile(fnm, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0777)
	if err != nil {
		return err
	}
	defer f.Close()
	bufw := bufio.NewWriterSize(f, 1<<24)
	gzw := pgzip.NewWriter(bufw)
	err = gob.NewEncoder(gzw).Encode(data)
	if err != nil {
		return fmt.Errorf("gob encode %s: %w", fnm, err)
	}
	err = gzw.Close()
	if err != nil {
		return fmt.Errorf("close %s: %w", fnm, err)
	}
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

func (s *Store) Load(cohort, chromosome string) (*ChromosomeData, error) {
	fnm := s.path(cohort, chromosome)
	f, err := os.Open(fnm)
	if os.IsNotExist(err) {
		return nil, &NotFoundError{Cohort: cohort, Chromosome: chromosome, Path: fnm}
	} else if err != nil {
		return nil, err
	}
	defer f.Close()
	gzr, err := pgzip.NewReader(bufio.NewReaderSize(f, 4*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", fnm, err)
	}
	defer gzr.Close()
	var data ChromosomeData
	err = gob.NewDecoder(gzr).Decode(&data)
	if err != nil {
		return nil, fmt.Errorf("gob decode %s: %w", fnm, err)
	}
	return &data, nil
}

// ListCohorts returns the cohorts with stored results, sorted.
func (s *Store) ListCohorts() ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, err
	}
	var cohorts []string
	for _, ent := range entries {
		if ent.IsDir() {
			cohorts = append(cohorts, ent.Name())
		}
	}
	sort.Strings(cohorts)
	return cohorts, nil
}

// ListChromosomes returns the chromosomes with stored results for a
// cohort, in canonical order.
func (s *Store) ListChromosomes(cohort string) []string {
	var out []string
	for _, chromosome := range Chromosomes {
		if _, err := os.Stat(s.path(cohort, chromosome)); err == nil {
			out = append(out, chromosome)
		}
	}
	return out
}

// zopen returns a reader for the given file, transparently
// decompressing the input if fnm ends with ".gz".
func zopen(fnm string) (io.ReadCloser, error) {
	f, err := os.Open(fnm)
	if err != nil || !strings.HasSuffix(fnm, ".gz") {
		return f, err
	}
	rdr, err := pgzip.NewReader(bufio.NewReaderSize(f, 4*1024*1024))
	if err != nil {
		f.Close()
		return nil, err
	}
	return gzipr{rdr, f}, nil
}

// gzipr wraps a ReadCloser and a Closer, presenting a single Close()
// method that closes both wrapped objects.
type gzipr struct {
	io.ReadCloser
	io.Closer
}

func (gr gzipr) Close() error {
	e1 := gr.ReadCloser.Close()
	e2 := gr.Closer.Close()
	if e1 != nil {
		return e1
	}
	return e2
}
