// Package repl SPDX-License-Identifier: Apache-2.0
package repl

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"

	"kefir/internal/config"
	"kefir/internal/ir"
	"kefir/internal/irformat"
	"kefir/internal/optimizer"
	"kefir/internal/pipelinespec"
)

const PROMPT = ">> "

// session holds the REPL's working state: at most one loaded module,
// mutated in place by run and inspected by print/functions.
type session struct {
	module *ir.Module
	cfg    config.PassConfig
}

// Start runs the interactive loop against in, printing prompts and
// results to out. Each line is one command; unrecognized commands and
// failures are reported without exiting the loop, so one mistake doesn't
// end the session.
func Start(in io.Reader, out io.Writer) {
	scanner := bufio.NewScanner(in)
	s := &session{cfg: config.DefaultPassConfig()}

	for {
		fmt.Fprint(out, PROMPT)
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		cmd, args := fields[0], fields[1:]

		switch cmd {
		case "load":
			s.load(out, args)
		case "run":
			s.run(out, args)
		case "functions":
			s.listFunctions(out)
		case "print":
			s.print(out)
		case "help":
			printHelp(out)
		case "quit", "exit":
			return
		default:
			fmt.Fprintf(out, "unrecognized command %q (try \"help\")\n", cmd)
		}
	}
}

func printHelp(out io.Writer) {
	fmt.Fprintln(out, "commands:")
	fmt.Fprintln(out, "  load <dump.json>        load a module from a debug dump")
	fmt.Fprintln(out, "  run <pipeline spec>     run a pipeline spec over every function")
	fmt.Fprintln(out, "  functions               list the loaded module's functions")
	fmt.Fprintln(out, "  print                   re-dump the loaded module as JSON")
	fmt.Fprintln(out, "  quit                    exit")
}

func (s *session) load(out io.Writer, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(out, "usage: load <dump.json>")
		return
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		color.Red("%s", err)
		return
	}
	module, err := irformat.Load(data)
	if err != nil {
		color.Red("%s", err)
		return
	}
	s.module = module
	fmt.Fprintf(out, "loaded %d function(s)\n", len(module.Functions))
}

func (s *session) run(out io.Writer, args []string) {
	if s.module == nil {
		fmt.Fprintln(out, "no module loaded; try \"load <dump.json>\" first")
		return
	}
	spec := strings.Join(args, " ")
	doc, err := pipelinespec.BuildPipeline(spec, s.cfg)
	if err != nil {
		color.Red("%s", err)
		return
	}
	pipeline, err := optimizer.NewPipeline(doc)
	if err != nil {
		color.Red("%s", err)
		return
	}
	outcomes := pipeline.Run(s.module)
	if len(outcomes) == 0 {
		color.Green("pipeline completed cleanly on every function")
		return
	}
	for _, o := range outcomes {
		fn := s.module.Functions[o.FunctionID]
		color.Yellow("%s: pass %s: %v", fn.Name(s.module), o.FailedPass, o.Err)
	}
}

func (s *session) listFunctions(out io.Writer) {
	if s.module == nil {
		fmt.Fprintln(out, "no module loaded")
		return
	}
	ids := make([]ir.ID, 0, len(s.module.Functions))
	for id := range s.module.Functions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		fn := s.module.Functions[id]
		fmt.Fprintf(out, "  %d  %s\n", id, fn.Name(s.module))
	}
}

func (s *session) print(out io.Writer) {
	if s.module == nil {
		fmt.Fprintln(out, "no module loaded")
		return
	}
	data, err := irformat.Dump(s.module)
	if err != nil {
		color.Red("%s", err)
		return
	}
	fmt.Fprintln(out, string(data))
}
