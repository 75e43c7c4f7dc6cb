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
	"net/http"
	_ "net/http/pprof"
	"os"
	"path/filepath"

	"github.com/kshedden/gonpy"
	log "github.com/sirupsen/logrus"
)

type exportNumpy struct {
	dataDir    string
	cohort     string
	chromosome string
	outputDir  string
}

func (cmd *exportNumpy) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVar(&cmd.dataDir, "data-dir", "", "processed data `directory`")
	flags.StringVar(&cmd.cohort, "cohort", "", "cohort `name`")
	flags.StringVar(&cmd.chromosome, "chromosome", "", "`chromosome` to export")
	flags.StringVar(&cmd.outputDir, "output-dir", ".", "output `directory`")
	pprof := flags.String("pprof", "", "serve Go profile data at http://`[addr]:port`")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	} else if cmd.dataDir == "" || cmd.cohort == "" || cmd.chromosome == "" {
		err = errors.New("-data-dir, -cohort, and -chromosome must all be provided")
		return 2
	}

	if *pprof != "" {
		go func() {
			log.Println(http.ListenAndServe(*pprof, nil))
		}()
	}

	data, err := (&Store{Dir: cmd.dataDir}).Load(cmd.cohort, cmd.chromosome)
	if err != nil {
		return 1
	}
	err = os.MkdirAll(cmd.outputDir, 0777)
	if err != nil {
		return 1
	}
	prefix := "chr" + data.Chromosome + "."
	err = cmd.writeNumpyInt8(prefix+"matrix.npy", data.Deleted, len(data.Samples), len(data.Genes))
	if err != nil {
		return 1
	}
	m := len(data.Genes)
	for _, npy := range []struct {
		base string
		data []float64
	}{
		{prefix + "counts.npy", data.Counts},
		{prefix + "frequency.npy", data.Frequency},
		{prefix + "conditional.npy", data.Conditional},
	} {
		err = cmd.writeNumpyFloat64(npy.base, npy.data, m, m)
		if err != nil {
			return 1
		}
	}
	err = cmd.writeLabels(prefix, data)
	if err != nil {
		return 1
	}
	return 0
}

func (cmd *exportNumpy) writeNumpyInt8(base string, data []int8, rows, cols int) error {
	return cmd.writeNumpy(base, rows, cols, func(npw *gonpy.NpyWriter) error {
		return npw.WriteInt8(data)
	})
}

func (cmd *exportNumpy) writeNumpyFloat64(base string, data []float64, rows, cols int) error {
	return cmd.writeNumpy(base, rows, cols, func(npw *gonpy.NpyWriter) error {
		return npw.WriteFloat64(data)
	})
}

func (cmd *exportNumpy) writeNumpy(base string, rows, cols int, write func(*gonpy.NpyWriter) error) error {
	fnm := filepath.Join(cmd.outputDir, base)
	log.Infof("writing %s: %d rows, %d cols", fnm, rows, cols)
	output, err := os.OpenFile(fnm, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0777)
	if err != nil {
		return err
	}
	defer output.Close()
	bufw := bufio.NewWriter(output)
	npw, err := gonpy.NewWriter(nopCloser{bufw})
	if err != nil {
		return fmt.Errorf("gonpy.NewWriter: %w", err)
	}
	npw.Shape = []int{rows, cols}
	err = write(npw)
	if err != nil {
		return fmt.Errorf("write %s: %w", fnm, err)
	}
	err = bufw.Flush()
	if err != nil {
		return fmt.Errorf("write %s: %w", fnm, err)
	}
	err = output.Close()
	if err != nil {
		return fmt.Errorf("close %s: %w", fnm, err)
	}
	return nil
}

// writeLabels emits csv sidecars mapping npy row/column indexes to
// sample and gene identities.
func (cmd *exportNumpy) writeLabels(prefix string, data *ChromosomeData) error {
	fnm := filepath.Join(cmd.outputDir, prefix+"matrix.samples.csv")
	log.Infof("writing %s", fnm)
	f, err := os.Create(fnm)
	if err != nil {
		return err
	}
	defer f.Close()
	bufw := bufio.NewWriter(f)
	fmt.Fprintf(bufw, "index,sample_id\n")
	for i, sample := range data.Samples {
		fmt.Fprintf(bufw, "%d,%q\n", i, sample)
	}
	err = bufw.Flush()
	if err != nil {
		return fmt.Errorf("write %s: %w", fnm, err)
	}
	err = f.Close()
	if err != nil {
		return fmt.Errorf("close %s: %w", fnm, err)
	}

	fnm = filepath.Join(cmd.outputDir, prefix+"matrix.genes.csv")
	log.Infof("writing %s", fnm)
	f, err = os.Create(fnm)
	if err != nil {
		return err
	}
	defer f.Close()
	bufw = bufio.NewWriter(f)
	fmt.Fprintf(bufw, "index,gene\n")
	for i, gene := range data.Genes {
		fmt.Fprintf(bufw, "%d,%q\n", i, gene.GeneID.String())
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

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
