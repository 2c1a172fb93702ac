package pipelinespec_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"kefir/internal/config"
	"kefir/internal/pipelinespec"
)

func TestParseBareCommaSeparatedForm(t *testing.T) {
	entries, err := pipelinespec.Parse("mem2reg, phi-pull ,dead-block-removal")
	require.NoError(t, err)
	require.Equal(t, []string{"mem2reg", "phi-pull", "dead-block-removal"}, pipelinespec.PassNames(entries))
	require.Empty(t, pipelinespec.PassKnobs(entries))
}

func TestParseEmptySpecYieldsNoEntries(t *testing.T) {
	entries, err := pipelinespec.Parse("   ")
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestParseKnobSyntax(t *testing.T) {
	entries, err := pipelinespec.Parse("mem2reg, phi-pull(materialize_consts=false), value-numbering")
	require.NoError(t, err)
	require.Equal(t, []string{"mem2reg", "phi-pull", "value-numbering"}, pipelinespec.PassNames(entries))

	knobs := pipelinespec.PassKnobs(entries)
	require.Equal(t, map[string]map[string]string{
		"phi-pull": {"materialize_consts": "false"},
	}, knobs)
}

func TestParseMultipleKnobsOnOnePass(t *testing.T) {
	entries, err := pipelinespec.Parse("mem2reg(max_iterations=3,aggressive=true)")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "mem2reg", entries[0].Name)
	require.Equal(t, map[string]string{"max_iterations": "3", "aggressive": "true"}, entries[0].Knobs)
}

func TestParseRejectsMalformedSpec(t *testing.T) {
	_, err := pipelinespec.Parse("mem2reg(")
	require.Error(t, err)
}

func TestBuildPipelineRejectsUnknownPass(t *testing.T) {
	_, err := pipelinespec.BuildPipeline("mem2reg, not-a-real-pass", config.DefaultPassConfig())
	require.Error(t, err)
}

func TestBuildPipelineWiresKnobsIntoConfig(t *testing.T) {
	doc, err := pipelinespec.BuildPipeline("phi-pull(materialize_consts=false)", config.DefaultPassConfig())
	require.NoError(t, err)
	require.Equal(t, []string{"phi-pull"}, doc.Passes)

	v, ok := doc.Config.Knob("phi-pull", "materialize_consts")
	require.True(t, ok)
	require.Equal(t, "false", v)
}
