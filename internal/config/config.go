// Package config decodes the pass-configuration knobs the driver and
// pipeline honor, either built up programmatically or loaded from a YAML
// document handed to the driver by a build system.
package config

import (
	"io"

	"gopkg.in/yaml.v3"

	kerr "kefir/internal/errors"
)

// Syntax selects the assembler dialect inline-assembly text is emitted
// in, when the pipeline is configured to care (it otherwise never
// interprets inline-asm bodies).
type Syntax string

const (
	SyntaxATT   Syntax = "att"
	SyntaxIntel Syntax = "intel"
)

// PassConfig carries the per-function knobs §6 names and hands them to
// every pass. Of these, only PassKnobs is read by a pass in this module
// (phi-pull's materialize_consts); the other fields are carried through
// the pipeline unread, and the register allocator takes no PassConfig.
type PassConfig struct {
	MaxInlineDepth          int    `yaml:"max_inline_depth"`
	MaxInlinesPerFunction   int    `yaml:"max_inlines_per_function"`
	DebugInfo               bool   `yaml:"debug_info"`
	PositionIndependentCode bool   `yaml:"position_independent_code"`
	EmulatedTLS             bool   `yaml:"emulated_tls"`
	OmitFramePointer        bool   `yaml:"omit_frame_pointer"`
	ValgrindCompatibleX87   bool   `yaml:"valgrind_compatible_x87"`
	Syntax                  Syntax `yaml:"syntax"`

	// PassKnobs carries per-pass overrides parsed from the
	// internal/pipelinespec knob syntax, keyed by pass name then knob
	// name. Passes that don't look themselves up here see no override.
	PassKnobs map[string]map[string]string `yaml:"pass_knobs"`
}

// Knob looks up a single knob override for passName, returning ok=false
// if the pass has no override for that knob (or none at all).
func (c PassConfig) Knob(passName, knobName string) (string, bool) {
	pass, ok := c.PassKnobs[passName]
	if !ok {
		return "", false
	}
	v, ok := pass[knobName]
	return v, ok
}

// DefaultPassConfig returns the knob set a driver run with no explicit
// configuration uses.
func DefaultPassConfig() PassConfig {
	return PassConfig{
		MaxInlineDepth:        8,
		MaxInlinesPerFunction: 64,
		Syntax:                SyntaxATT,
	}
}

// Pipeline is the top-level configuration document: the ordered list of
// pass names to run (before internal/pipelinespec's richer per-pass knob
// syntax is applied, this is the plain comma-separated form of §6) plus
// the shared PassConfig every pass sees.
type Pipeline struct {
	Passes []string   `yaml:"passes"`
	Config PassConfig `yaml:"config"`
}

// LoadPipeline decodes a Pipeline document from r.
func LoadPipeline(r io.Reader) (Pipeline, error) {
	var p Pipeline
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&p); err != nil {
		return Pipeline{}, kerr.Wrap(err, kerr.UserError, "config.LoadPipeline", "malformed pipeline configuration document")
	}
	return p, nil
}
