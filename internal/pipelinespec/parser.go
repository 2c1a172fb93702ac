// Package pipelinespec parses the pipeline spec DSL the driver reads its
// pass list from: spec §6's bare comma-separated pass-name list, extended
// with an optional per-pass knob syntax, e.g.
//
//	mem2reg, phi-pull(materialize_consts=false), value-numbering
//
// Unknown pass names are rejected with errors.UserError, exactly as §6
// requires of the bare form.
package pipelinespec

import (
	"strings"

	"github.com/alecthomas/participle/v2"

	"kefir/internal/config"
	kerr "kefir/internal/errors"
	"kefir/internal/optimizer"
)

var parser = participle.MustBuild[Document](
	participle.Lexer(pipelineLexer),
	participle.Elide("Whitespace"),
)

// Entry is one resolved pass entry: its name and its knob overrides, if
// any were given.
type Entry struct {
	Name  string
	Knobs map[string]string
}

// Parse parses spec into an ordered list of entries. Empty elements are
// skipped, and an empty or all-whitespace spec yields no entries.
func Parse(spec string) ([]Entry, error) {
	if strings.TrimSpace(spec) == "" {
		return nil, nil
	}

	doc, err := parser.ParseString("", spec)
	if err != nil {
		return nil, kerr.Wrap(err, kerr.UserError, "pipelinespec.Parse", "malformed pipeline spec")
	}

	entries := make([]Entry, 0, len(doc.Entries))
	for _, p := range doc.Entries {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			continue
		}
		var knobs map[string]string
		if len(p.Knobs) > 0 {
			knobs = make(map[string]string, len(p.Knobs))
			for _, k := range p.Knobs {
				knobs[k.Name] = k.Value
			}
		}
		entries = append(entries, Entry{Name: name, Knobs: knobs})
	}
	return entries, nil
}

// PassNames returns just the ordered pass names from entries, the shape
// config.Pipeline.Passes expects.
func PassNames(entries []Entry) []string {
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names
}

// PassKnobs collects every entry's knob overrides into the per-pass knob
// map config.PassConfig.PassKnobs expects, keyed by pass name.
func PassKnobs(entries []Entry) map[string]map[string]string {
	knobs := make(map[string]map[string]string)
	for _, e := range entries {
		if len(e.Knobs) > 0 {
			knobs[e.Name] = e.Knobs
		}
	}
	return knobs
}

// BuildPipeline parses spec and assembles a config.Pipeline document
// ready for optimizer.NewPipeline, rejecting any pass name the registry
// doesn't recognize (§6: "unknown tokens cause a startup error").
func BuildPipeline(spec string, base config.PassConfig) (config.Pipeline, error) {
	entries, err := Parse(spec)
	if err != nil {
		return config.Pipeline{}, err
	}
	for _, e := range entries {
		if _, err := optimizer.Lookup(e.Name); err != nil {
			return config.Pipeline{}, err
		}
	}

	base.PassKnobs = mergeKnobs(base.PassKnobs, PassKnobs(entries))
	return config.Pipeline{Passes: PassNames(entries), Config: base}, nil
}

func mergeKnobs(base, overlay map[string]map[string]string) map[string]map[string]string {
	if len(base) == 0 {
		return overlay
	}
	merged := make(map[string]map[string]string, len(base)+len(overlay))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range overlay {
		merged[k] = v
	}
	return merged
}
