// SPDX-License-Identifier: Apache-2.0
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"

	"kefir/repl"
)

// main launches the interactive IR/pipeline inspector. Batch use (loading a
// dump, running a pipeline, and writing the result non-interactively) goes
// through cmd/kefir-opt instead; this entrypoint is for exploration.
func main() {
	if len(os.Args) > 1 {
		fmt.Fprintln(os.Stderr, "usage: kefir")
		fmt.Fprintln(os.Stderr, "  an interactive session; type \"help\" once it starts")
		color.Red("unexpected arguments: %v", os.Args[1:])
		os.Exit(1)
	}

	repl.Start(os.Stdin, os.Stdout)
}
