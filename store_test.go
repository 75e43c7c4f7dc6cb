// Copyright (C) The TCGA-Codeletion Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package codeletion

import (
	"bytes"
	"errors"
	"io/ioutil"
	"math"
	"os"
	"path/filepath"

	"github.com/klauspost/pgzip"
	"gopkg.in/check.v1"
)

type storeSuite struct{}

var _ = check.Suite(&storeSuite{})

func checkFloats(c *check.C, got, want []float64) {
	c.Assert(got, check.HasLen, len(want))
	for i := range want {
		if math.IsNaN(want[i]) {
			c.Check(math.IsNaN(got[i]), check.Equals, true, check.Commentf("element %d", i))
		} else {
			c.Check(got[i], check.Equals, want[i], check.Commentf("element %d", i))
		}
	}
}

func (s *storeSuite) TestSaveLoadRoundTrip(c *check.C) {
	store := &Store{Dir: c.MkDir()}
	data := NewChromosomeData("TCGA-LUAD", "13", testDeletionMatrix())
	c.Assert(store.Save(data), check.IsNil)

	loaded, err := store.Load("TCGA-LUAD", "13")
	c.Assert(err, check.IsNil)
	c.Check(loaded.Cohort, check.Equals, "TCGA-LUAD")
	c.Check(loaded.Chromosome, check.Equals, "13")
	c.Check(loaded.Samples, check.DeepEquals, data.Samples)
	c.Check(loaded.Genes, check.DeepEquals, data.Genes)
	c.Check(loaded.Deleted, check.DeepEquals, data.Deleted)
	c.Check(loaded.Counts, check.DeepEquals, data.Counts)
	c.Check(loaded.Frequency, check.DeepEquals, data.Frequency)
	// the conditional matrix has NaN columns for never-deleted genes
	checkFloats(c, loaded.Conditional, data.Conditional)
}

func (s *storeSuite) TestSaveOverwrites(c *check.C) {
	store := &Store{Dir: c.MkDir()}
	dm := testDeletionMatrix()
	c.Assert(store.Save(NewChromosomeData("TCGA-LUAD", "13", dm)), check.IsNil)

	dm2 := dm.SelectSymbols([]string{"GENEA"})
	c.Assert(store.Save(NewChromosomeData("TCGA-LUAD", "13", dm2)), check.IsNil)

	loaded, err := store.Load("TCGA-LUAD", "13")
	c.Assert(err, check.IsNil)
	c.Check(loaded.Genes, check.HasLen, 1)
}

func (s *storeSuite) TestLoadNotFound(c *check.C) {
	store := &Store{Dir: c.MkDir()}
	_, err := store.Load("TCGA-LUAD", "13")
	c.Assert(err, check.NotNil)
	c.Check(err, check.ErrorMatches, `no processed data for cohort TCGA-LUAD chromosome 13 \(.*\)`)
	var notFound *NotFoundError
	c.Assert(errors.As(err, &notFound), check.Equals, true)
	c.Check(notFound.Cohort, check.Equals, "TCGA-LUAD")
	c.Check(notFound.Chromosome, check.Equals, "13")
}

func (s *storeSuite) TestListCohorts(c *check.C) {
	store := &Store{Dir: c.MkDir()}
	dm := testDeletionMatrix()
	c.Assert(store.Save(NewChromosomeData("TCGA-LUAD", "13", dm)), check.IsNil)
	c.Assert(store.Save(NewChromosomeData("TCGA-BRCA", "13", dm)), check.IsNil)
	// stray files are not cohorts
	c.Assert(ioutil.WriteFile(filepath.Join(store.Dir, "README"), []byte("x"), 0666), check.IsNil)

	cohorts, err := store.ListCohorts()
	c.Assert(err, check.IsNil)
	c.Check(cohorts, check.DeepEquals, []string{"TCGA-BRCA", "TCGA-LUAD"})

	bogus := &Store{Dir: filepath.Join(store.Dir, "nonexistent")}
	_, err = bogus.ListCohorts()
	c.Check(err, check.NotNil)
	c.Check(os.IsNotExist(err), check.Equals, true)
}

func (s *storeSuite) TestListChromosomes(c *check.C) {
	store := &Store{Dir: c.MkDir()}
	dm := testDeletionMatrix()
	c.Assert(store.Save(NewChromosomeData("TCGA-LUAD", "13", dm)), check.IsNil)
	c.Assert(store.Save(NewChromosomeData("TCGA-LUAD", "2", dm)), check.IsNil)
	c.Check(store.ListChromosomes("TCGA-LUAD"), check.DeepEquals, []string{"2", "13"})
	c.Check(store.ListChromosomes("TCGA-NONE"), check.HasLen, 0)
}

func (s *storeSuite) TestMarginals(c *check.C) {
	data := NewChromosomeData("TCGA-LUAD", "13", testDeletionMatrix())
	c.Check(data.Marginals(), check.DeepEquals, []GeneFrequency{
		{Gene: GeneID{Symbol: "GENEA", Entrez: 101}, Frequency: 0.6},
		{Gene: GeneID{Symbol: "GENEB", Entrez: 102}, Frequency: 0.6},
		{Gene: GeneID{Symbol: "GENEC", Entrez: 103}, Frequency: 0},
	})
}

func (s *storeSuite) TestMatrixAccessors(c *check.C) {
	dm := testDeletionMatrix()
	data := NewChromosomeData("TCGA-LUAD", "13", dm)
	c.Check(data.Matrix(), check.DeepEquals, dm)
	c.Check(data.CountsMatrix().At(0, 1), check.Equals, 2.0)
	c.Check(data.CountsMatrix().At(1, 1), check.Equals, 3.0)
	c.Check(data.FrequencyMatrix().At(0, 0), check.Equals, 0.6)
	c.Check(data.ConditionalMatrix().At(0, 1), check.Equals, 2.0/3.0)
}

func (s *storeSuite) TestAggregateGenomeWide(c *check.C) {
	store := &Store{Dir: c.MkDir()}
	c.Assert(store.Save(NewChromosomeData("TCGA-LUAD", "13", testDeletionMatrix())), check.IsNil)
	dm2 := &DeletionMatrix{
		Samples: []string{"s1", "s2", "s3", "s4", "s5"},
		Genes: []GeneInfo{{
			GeneID:     GeneID{Symbol: "GENEX", Entrez: 301},
			Chromosome: "2",
			Start:      100000,
			End:        200000,
			Cytoband:   "2p25.3",
		}},
		Deleted: []int8{1, 0, 0, 0, 0},
	}
	c.Assert(store.Save(NewChromosomeData("TCGA-LUAD", "2", dm2)), check.IsNil)

	gd, err := AggregateGenomeWide(store, "TCGA-LUAD")
	c.Assert(err, check.IsNil)
	c.Check(gd.Cohort, check.Equals, "TCGA-LUAD")
	c.Check(gd.Loaded, check.DeepEquals, []string{"2", "13"})
	c.Check(gd.Missing, check.HasLen, len(Chromosomes)-2)
	c.Check(gd.Genes, check.DeepEquals, []GeneDeletion{
		{Gene: GeneID{Symbol: "GENEX", Entrez: 301}, Chromosome: "2", Cytoband: "2p25.3", Frequency: 0.2},
		{Gene: GeneID{Symbol: "GENEA", Entrez: 101}, Chromosome: "13", Cytoband: "13q11", Frequency: 0.6},
		{Gene: GeneID{Symbol: "GENEB", Entrez: 102}, Chromosome: "13", Cytoband: "13q12.11", Frequency: 0.6},
		{Gene: GeneID{Symbol: "GENEC", Entrez: 103}, Chromosome: "13", Cytoband: "13q13.1", Frequency: 0},
	})
}

func (s *storeSuite) TestZopen(c *check.C) {
	dir := c.MkDir()
	content := []byte("sample_id\tentrez_id\talteration\nTCGA-01\t5925\t-2\n")

	plain := filepath.Join(dir, "calls.tsv")
	c.Assert(ioutil.WriteFile(plain, content, 0666), check.IsNil)

	var zbuf bytes.Buffer
	zw := pgzip.NewWriter(&zbuf)
	_, err := zw.Write(content)
	c.Assert(err, check.IsNil)
	c.Assert(zw.Close(), check.IsNil)
	zipped := filepath.Join(dir, "calls.tsv.gz")
	c.Assert(ioutil.WriteFile(zipped, zbuf.Bytes(), 0666), check.IsNil)

	for _, fnm := range []string{plain, zipped} {
		f, err := zopen(fnm)
		c.Assert(err, check.IsNil, check.Commentf("%s", fnm))
		got, err := ioutil.ReadAll(f)
		c.Check(err, check.IsNil)
		c.Check(got, check.DeepEquals, content, check.Commentf("%s", fnm))
		c.Check(f.Close(), check.IsNil)
	}

	_, err = zopen(filepath.Join(dir, "nonexistent.tsv"))
	c.Check(err, check.NotNil)
}
