// Copyright (C) The TCGA-Codeletion Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package codeletion

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"
	"strings"

	"github.com/klauspost/pgzip"
	"gopkg.in/check.v1"
)

type pipelineSuite struct{}

var _ = check.Suite(&pipelineSuite{})

// importGenome loads the chromosome 13 and 9 fixtures into one cohort.
func importGenome(c *check.C, datadir, cohort string) {
	for _, trial := range []struct{ chromosome, calls string }{
		{"13", "testdata/chr13.calls.tsv"},
		{"9", "testdata/chr9.calls.tsv"},
	} {
		exited := (&importer{}).RunCommand("import", []string{
			"-calls", trial.calls,
			"-genes", "testdata/genes.tsv",
			"-cohort", cohort,
			"-chromosome", trial.chromosome,
			"-data-dir", datadir,
		}, &bytes.Buffer{}, os.Stderr, os.Stderr)
		c.Assert(exited, check.Equals, 0)
	}
}

func (s *pipelineSuite) TestStatsList(c *check.C) {
	datadir := c.MkDir()
	importGenome(c, datadir, "prad_tcga")

	var stdout bytes.Buffer
	exited := (&statsSummary{}).RunCommand("stats", []string{
		"-data-dir", datadir, "-list",
	}, &bytes.Buffer{}, &stdout, os.Stderr)
	c.Assert(exited, check.Equals, 0)
	var listed struct {
		Cohorts []struct {
			Cohort      string
			Chromosomes []string
		}
	}
	err := json.Unmarshal(stdout.Bytes(), &listed)
	c.Assert(err, check.IsNil)
	c.Assert(listed.Cohorts, check.HasLen, 1)
	c.Check(listed.Cohorts[0].Cohort, check.Equals, "prad_tcga")
	c.Check(listed.Cohorts[0].Chromosomes, check.DeepEquals, []string{"9", "13"})
}

func (s *pipelineSuite) TestStatsSummary(c *check.C) {
	datadir := c.MkDir()
	importGenome(c, datadir, "prad_tcga")

	var stdout bytes.Buffer
	exited := (&statsSummary{}).RunCommand("stats", []string{
		"-data-dir", datadir, "-cohort", "prad_tcga", "-chromosome", "13",
	}, &bytes.Buffer{}, &stdout, os.Stderr)
	c.Assert(exited, check.Equals, 0)

	var ret struct {
		Cohort            string
		Chromosome        string
		Samples           int
		Genes             int
		DeletedCells      int
		GenesNeverDeleted int
		DeletionFrequency struct {
			Mean   float64
			Median float64
			Max    float64
			P90    float64
		}
		TopGenes []GeneFrequency
	}
	err := json.Unmarshal(stdout.Bytes(), &ret)
	c.Assert(err, check.IsNil)
	c.Check(ret.Cohort, check.Equals, "prad_tcga")
	c.Check(ret.Chromosome, check.Equals, "13")
	c.Check(ret.Samples, check.Equals, 12)
	c.Check(ret.Genes, check.Equals, 3)
	c.Check(ret.DeletedCells, check.Equals, 13)
	c.Check(ret.GenesNeverDeleted, check.Equals, 0)
	c.Check(fmt.Sprintf("%.9f", ret.DeletionFrequency.Mean), check.Equals, "0.361111111")
	c.Check(fmt.Sprintf("%.9f", ret.DeletionFrequency.Median), check.Equals, "0.416666667")
	c.Check(ret.DeletionFrequency.Max, check.Equals, 0.5)
	c.Check(ret.DeletionFrequency.P90 >= ret.DeletionFrequency.Median, check.Equals, true)
	c.Check(ret.DeletionFrequency.P90 <= ret.DeletionFrequency.Max, check.Equals, true)
	c.Assert(ret.TopGenes, check.HasLen, 3)
	c.Check(ret.TopGenes[0], check.DeepEquals, GeneFrequency{Gene: GeneID{Symbol: "RB1", Entrez: 5925}, Frequency: 0.5})
	c.Check(ret.TopGenes[1].Gene.Symbol, check.Equals, "DLEU1")
	c.Check(ret.TopGenes[2].Gene.Symbol, check.Equals, "BRCA2")

	stdout.Reset()
	exited = (&statsSummary{}).RunCommand("stats", []string{
		"-data-dir", datadir, "-cohort", "prad_tcga", "-chromosome", "13", "-top-genes", "1",
	}, &bytes.Buffer{}, &stdout, os.Stderr)
	c.Assert(exited, check.Equals, 0)
	err = json.Unmarshal(stdout.Bytes(), &ret)
	c.Assert(err, check.IsNil)
	c.Check(ret.TopGenes, check.HasLen, 1)
}

func (s *pipelineSuite) TestTargets(c *check.C) {
	datadir := c.MkDir()
	importGenome(c, datadir, "prad_tcga")

	var stdout bytes.Buffer
	exited := (&targetFinder{}).RunCommand("targets", []string{
		"-data-dir", datadir,
		"-sl-catalog", "testdata/slcatalog.csv",
		"-cohort", "prad_tcga",
	}, &bytes.Buffer{}, &stdout, os.Stderr)
	c.Assert(exited, check.Equals, 0)
	c.Check(stdout.String(), check.Equals, opportunityHeader+"\n"+
		`"RB1",13,"13q14.2","E2F1",0.5,-0.75,0.01,false,150,1,0.037037037037037035,"Prostate",0.20833333333333334
"MTAP",9,"9p21.3","PRMT5",0.3333333333333333,-0.5,0.02,true,600,1,0.037037037037037035,"Lung",0.18518518518518517
`)

	stdout.Reset()
	exited = (&targetFinder{}).RunCommand("targets", []string{
		"-data-dir", datadir,
		"-sl-catalog", "testdata/slcatalog.csv",
		"-cohort", "prad_tcga",
		"-essentiality", "essential",
	}, &bytes.Buffer{}, &stdout, os.Stderr)
	c.Assert(exited, check.Equals, 0)
	lines := strings.Split(strings.TrimRight(stdout.String(), "\n"), "\n")
	c.Assert(lines, check.HasLen, 2)
	c.Check(strings.HasPrefix(lines[1], `"MTAP"`), check.Equals, true)

	stdout.Reset()
	exited = (&targetFinder{}).RunCommand("targets", []string{
		"-data-dir", datadir,
		"-sl-catalog", "testdata/slcatalog.csv",
		"-cohort", "prad_tcga",
		"-by-target",
	}, &bytes.Buffer{}, &stdout, os.Stderr)
	c.Assert(exited, check.Equals, 0)
	c.Check(stdout.String(), check.Equals, `target_gene,n_opportunities,mean_deletion_frequency,mean_abs_gi_score,target_is_common_essential,target_depmap_dependent_lines
"E2F1",1,0.5,0.75,false,150
"PRMT5",1,0.3333333333333333,0.5,true,600
`)

	stdout.Reset()
	exited = (&targetFinder{}).RunCommand("targets", []string{
		"-data-dir", datadir,
		"-sl-catalog", "testdata/slcatalog.csv",
		"-cohort", "prad_tcga",
		"-max-fdr", "0.015",
	}, &bytes.Buffer{}, &stdout, os.Stderr)
	c.Assert(exited, check.Equals, 0)
	lines = strings.Split(strings.TrimRight(stdout.String(), "\n"), "\n")
	c.Assert(lines, check.HasLen, 2)
	c.Check(strings.HasPrefix(lines[1], `"RB1"`), check.Equals, true)

	exited = (&targetFinder{}).RunCommand("targets", []string{
		"-data-dir", datadir,
		"-sl-catalog", "testdata/slcatalog.csv",
		"-cohort", "prad_tcga",
		"-essentiality", "bogus",
	}, &bytes.Buffer{}, &bytes.Buffer{}, os.Stderr)
	c.Check(exited, check.Equals, 2)

	exited = (&targetFinder{}).RunCommand("targets", []string{
		"-data-dir", c.MkDir(),
		"-sl-catalog", "testdata/slcatalog.csv",
		"-cohort", "prad_tcga",
	}, &bytes.Buffer{}, &bytes.Buffer{}, os.Stderr)
	c.Check(exited, check.Equals, 1)
}

func (s *pipelineSuite) TestBatchAndCompare(c *check.C) {
	inputdir := c.MkDir()
	datadir := c.MkDir()

	chr13, err := ioutil.ReadFile("testdata/chr13.calls.tsv")
	c.Assert(err, check.IsNil)
	chr9, err := ioutil.ReadFile("testdata/chr9.calls.tsv")
	c.Assert(err, check.IsNil)

	err = os.MkdirAll(inputdir+"/prad_tcga", 0777)
	c.Assert(err, check.IsNil)
	err = ioutil.WriteFile(inputdir+"/prad_tcga/chr13.calls.tsv", chr13, 0644)
	c.Assert(err, check.IsNil)

	err = os.MkdirAll(inputdir+"/gbm_tcga", 0777)
	c.Assert(err, check.IsNil)
	var gz bytes.Buffer
	gzw := pgzip.NewWriter(&gz)
	_, err = gzw.Write(chr13)
	c.Assert(err, check.IsNil)
	c.Assert(gzw.Close(), check.IsNil)
	err = ioutil.WriteFile(inputdir+"/gbm_tcga/chr13.calls.tsv.gz", gz.Bytes(), 0644)
	c.Assert(err, check.IsNil)
	err = ioutil.WriteFile(inputdir+"/gbm_tcga/chr9.calls.tsv", chr9, 0644)
	c.Assert(err, check.IsNil)

	err = os.MkdirAll(inputdir+"/tiny_tcga", 0777)
	c.Assert(err, check.IsNil)
	err = ioutil.WriteFile(inputdir+"/tiny_tcga/chr13.calls.tsv", []byte(""+
		"sample_id\tentrez_id\talteration\n"+
		"s1\t5925\t-2\n"+
		"s2\t5925\t0\n"), 0644)
	c.Assert(err, check.IsNil)

	err = ioutil.WriteFile(inputdir+"/cohorts.txt", []byte(""+
		"# cohorts processed by the nightly batch\n"+
		"prad_tcga\n"+
		"gbm_tcga\n"+
		"\n"+
		"tiny_tcga\n"), 0644)
	c.Assert(err, check.IsNil)

	var stdout bytes.Buffer
	exited := (&batcher{}).RunCommand("batch", []string{
		"-cohorts", inputdir + "/cohorts.txt",
		"-input-dir", inputdir,
		"-genes", "testdata/genes.tsv",
		"-data-dir", datadir,
		"-chromosomes", "13,9",
	}, &bytes.Buffer{}, &stdout, os.Stderr)
	c.Assert(exited, check.Equals, 0)

	var summary struct {
		Cohorts int
		Written int
		Skipped int
		Failed  int
		Results []batchResult
	}
	err = json.Unmarshal(stdout.Bytes(), &summary)
	c.Assert(err, check.IsNil)
	c.Check(summary.Cohorts, check.Equals, 3)
	c.Check(summary.Written, check.Equals, 3)
	c.Check(summary.Skipped, check.Equals, 3)
	c.Check(summary.Failed, check.Equals, 0)
	c.Assert(summary.Results, check.HasLen, 6)
	c.Check(summary.Results[0], check.DeepEquals, batchResult{Cohort: "prad_tcga", Chromosome: "13", Samples: 12, Genes: 3, Calls: 23})
	c.Check(summary.Results[1], check.DeepEquals, batchResult{Cohort: "prad_tcga", Chromosome: "9", Skipped: true, Error: "no copy number calls file"})
	c.Check(summary.Results[2], check.DeepEquals, batchResult{Cohort: "gbm_tcga", Chromosome: "13", Samples: 12, Genes: 3, Calls: 23})
	c.Check(summary.Results[3], check.DeepEquals, batchResult{Cohort: "gbm_tcga", Chromosome: "9", Samples: 12, Genes: 2, Calls: 17})
	c.Check(summary.Results[4].Skipped, check.Equals, true)
	c.Check(summary.Results[4].Error, check.Matches, `insufficient data: 2 samples with copy number calls, need at least 10`)
	c.Check(summary.Results[5], check.DeepEquals, batchResult{Cohort: "tiny_tcga", Chromosome: "9", Skipped: true, Error: "no copy number calls file"})

	stdout.Reset()
	exited = (&cohortComparer{}).RunCommand("compare", []string{
		"-data-dir", datadir,
		"-sl-catalog", "testdata/slcatalog.csv",
	}, &bytes.Buffer{}, &stdout, os.Stderr)
	c.Assert(exited, check.Equals, 0)
	c.Check(stdout.String(), check.Equals, "study_id,"+opportunityHeader+"\n"+
		`"gbm_tcga","RB1",13,"13q14.2","E2F1",0.5,-0.75,0.01,false,150,1,0.037037037037037035,"Prostate",0.20833333333333334
"prad_tcga","RB1",13,"13q14.2","E2F1",0.5,-0.75,0.01,false,150,1,0.037037037037037035,"Prostate",0.20833333333333334
"gbm_tcga","MTAP",9,"9p21.3","PRMT5",0.3333333333333333,-0.5,0.02,true,600,1,0.037037037037037035,"Lung",0.18518518518518517
`)

	stdout.Reset()
	exited = (&cohortComparer{}).RunCommand("compare", []string{
		"-data-dir", datadir,
		"-sl-catalog", "testdata/slcatalog.csv",
		"gbm_tcga",
	}, &bytes.Buffer{}, &stdout, os.Stderr)
	c.Assert(exited, check.Equals, 0)
	c.Check(strings.Count(stdout.String(), "\n"), check.Equals, 3)
	c.Check(strings.Contains(stdout.String(), `"prad_tcga"`), check.Equals, false)

	exited = (&batcher{}).RunCommand("batch", []string{"-cohorts", inputdir + "/cohorts.txt"}, &bytes.Buffer{}, &bytes.Buffer{}, os.Stderr)
	c.Check(exited, check.Equals, 2)
}
