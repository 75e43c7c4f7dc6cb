// Copyright (C) The TCGA-Codeletion Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package codeletion

import (
	"errors"
	"flag"
	"fmt"
	"image/color"
	"io"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

type frequencyPlot struct {
	dataDir    string
	cohort     string
	chromosome string
}

func (cmd *frequencyPlot) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
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
	flags.StringVar(&cmd.chromosome, "chromosome", "", "`chromosome` to plot")
	outputFilename := flags.String("o", "deletion_frequencies.png", "output image `file`")
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

	data, err := (&Store{Dir: cmd.dataDir}).Load(cmd.cohort, cmd.chromosome)
	if err != nil {
		return 1
	}
	err = cmd.plot(data, *outputFilename)
	if err != nil {
		return 1
	}
	return 0
}

// plot draws per-gene deletion frequency against genomic position.
func (cmd *frequencyPlot) plot(data *ChromosomeData, fnm string) error {
	m := len(data.Genes)
	xys := make(plotter.XYs, m)
	for j, gene := range data.Genes {
		xys[j] = plotter.XY{X: float64(gene.Start) / 1e6, Y: data.Frequency[j*m+j]}
	}
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s chr%s deletion frequency", data.Cohort, data.Chromosome)
	p.X.Label.Text = "position (Mb)"
	p.Y.Label.Text = "deletion frequency"
	sc, err := plotter.NewScatter(xys)
	if err != nil {
		return err
	}
	sc.GlyphStyle.Color = color.RGBA{B: 255, A: 255}
	sc.GlyphStyle.Radius = vg.Points(1.5)
	p.Add(sc)
	log.Infof("writing %s", fnm)
	err = p.Save(25*vg.Centimeter, 10*vg.Centimeter, fnm)
	if err != nil {
		return fmt.Errorf("save %s: %w", fnm, err)
	}
	return nil
}
