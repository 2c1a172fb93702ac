// SPDX-License-Identifier: Apache-2.0
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/fatih/color"

	"kefir/internal/config"
	kerr "kefir/internal/errors"
	"kefir/internal/ir"
	"kefir/internal/irformat"
	"kefir/internal/optimizer"
	"kefir/internal/pipelinespec"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("kefir-opt", flag.ContinueOnError)
	passes := fs.String("passes", "", "pipeline spec, e.g. mem2reg,phi-pull(materialize_consts=false)")
	configPath := fs.String("config", "", "path to a YAML pass-configuration document")
	outPath := fs.String("o", "", "write the optimized debug dump here (default: stdout)")
	asJSON := fs.Bool("json", false, "report pass outcomes as JSON instead of a table")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: kefir-opt [flags] <dump.json>")
		return 2
	}

	module, err := loadModule(fs.Arg(0))
	if err != nil {
		color.Red("%s", err)
		return 1
	}

	pipelineDoc, err := buildPipelineDoc(*passes, *configPath)
	if err != nil {
		color.Red("%s", err)
		return 1
	}

	pipeline, err := optimizer.NewPipeline(pipelineDoc)
	if err != nil {
		color.Red("%s", err)
		return 1
	}

	outcomes := pipeline.Run(module)
	reports := buildReports(module, outcomes)

	reporter := kerr.NewReporter(os.Stdout, *asJSON)
	exitCode := reporter.Render(reports)

	if err := writeModule(module, *outPath); err != nil {
		color.Red("%s", err)
		return 1
	}
	return exitCode
}

func loadModule(path string) (*ir.Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, kerr.Wrap(err, kerr.UserError, "main.loadModule", "failed to read debug dump")
	}
	return irformat.Load(data)
}

func buildPipelineDoc(passes, configPath string) (config.Pipeline, error) {
	base := config.DefaultPassConfig()
	if configPath != "" {
		f, err := os.Open(configPath)
		if err != nil {
			return config.Pipeline{}, kerr.Wrap(err, kerr.UserError, "main.buildPipelineDoc", "failed to open pass configuration")
		}
		defer f.Close()
		doc, err := config.LoadPipeline(f)
		if err != nil {
			return config.Pipeline{}, err
		}
		base = doc.Config
		if passes == "" {
			return doc, nil
		}
	}
	return pipelinespec.BuildPipeline(passes, base)
}

// buildReports turns the pipeline's per-failure outcomes into one Report
// per function: a function on which a pass failed gets its outcome's Report,
// every other function gets a synthetic "ok" Report, so the rendered
// table always accounts for the whole module, not just the trouble spots.
func buildReports(module *ir.Module, outcomes []optimizer.FunctionOutcome) []kerr.Report {
	byFunction := make(map[ir.ID]optimizer.FunctionOutcome, len(outcomes))
	for _, o := range outcomes {
		byFunction[o.FunctionID] = o
	}

	ids := make([]ir.ID, 0, len(module.Functions))
	for id := range module.Functions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	reports := make([]kerr.Report, 0, len(ids))
	for _, id := range ids {
		fn := module.Functions[id]
		if o, ok := byFunction[id]; ok {
			reports = append(reports, kerr.ReportFromError(fn.Name(module), o.FailedPass, o.Err))
			continue
		}
		reports = append(reports, kerr.Report{Function: fn.Name(module), Pass: "-", Kind: "ok"})
	}
	return reports
}

func writeModule(module *ir.Module, outPath string) error {
	data, err := irformat.Dump(module)
	if err != nil {
		return err
	}
	if outPath == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(outPath, data, 0o644)
}
