package pipelinespec

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// pipelineLexer tokenizes the pipeline spec DSL: a comma-separated list of
// pass names, each optionally followed by a parenthesized knob=value list
// (the grammar-as-keyword-arguments shape described in spec §6, extended
// with the knob syntax internal/pipelinespec adds on top of it).
var pipelineLexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		{"Ident", `[a-zA-Z_][a-zA-Z0-9_-]*`, nil},
		{"Integer", `[0-9]+`, nil},
		{"Punctuation", `[(),=]`, nil},
		{"Whitespace", `[ \t\r\n]+`, nil},
	},
})
