// Copyright (C) The TCGA-Codeletion Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package codeletion

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

var version = "dev"

// A Handler is one runnable subcommand. RunCommand reads command line
// arguments and stdin, writes output to stdout and stderr, and returns
// an exit code.
type Handler interface {
	RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int
}

var handlers = map[string]Handler{
	"import":           &importer{},
	"batch":            &batcher{},
	"export":           &exporter{},
	"export-numpy":     &exportNumpy{},
	"stats":            &statsSummary{},
	"targets":          &targetFinder{},
	"compare":          &cohortComparer{},
	"plot-frequencies": &frequencyPlot{},
}

func Main() {
	if !isatty.IsTerminal(os.Stderr.Fd()) {
		logrus.StandardLogger().Formatter = &logrus.TextFormatter{DisableTimestamp: true}
	}
	os.Exit(RunCommand(os.Args[0], os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		fmt.Fprintf(stderr, "usage: %s command [options]\n\ncommands:\n%s", prog, commandUsage())
		return 2
	}
	switch args[0] {
	case "version", "-version", "--version":
		fmt.Fprintf(stdout, "%s %s\n", prog, version)
		return 0
	case "help", "-help", "--help", "-h":
		fmt.Fprintf(stdout, "usage: %s command [options]\n\ncommands:\n%s", prog, commandUsage())
		return 0
	}
	handler, ok := handlers[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "%s: unrecognized command %q\n\ncommands:\n%s", prog, args[0], commandUsage())
		return 2
	}
	return handler.RunCommand(prog+" "+args[0], args[1:], stdin, stdout, stderr)
}

func commandUsage() string {
	names := make([]string, 0, len(handlers))
	for name := range handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return "  " + strings.Join(names, "\n  ") + "\n"
}
