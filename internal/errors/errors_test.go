package errors_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	kerr "kefir/internal/errors"
)

func TestKindString(t *testing.T) {
	require.Equal(t, "invariant violation", kerr.InvariantViolation.String())
	require.Equal(t, "yield", kerr.Yield.String())
}

func TestIsYield(t *testing.T) {
	err := kerr.New(kerr.Yield, "mem2reg.scan", "public label present")
	require.True(t, kerr.IsYield(err))
	require.False(t, kerr.IsYield(nil))
	require.False(t, kerr.IsYield(kerr.New(kerr.NotFound, "ir.Block", "no such block")))
}

func TestWrapNilCauseReturnsNil(t *testing.T) {
	require.Nil(t, kerr.Wrap(nil, kerr.InvariantViolation, "op", "msg"))
}

func TestReporterRendersTableAndJSON(t *testing.T) {
	reports := []kerr.Report{
		kerr.ReportFromError("main", "mem2reg", nil),
		kerr.ReportFromError("helper", "phi-pull", kerr.New(kerr.Yield, "phi-pull", "nothing to sink")),
		kerr.ReportFromError("broken", "mem2reg", kerr.New(kerr.InvariantViolation, "ir.ReplaceReferences", "dangling ref")),
	}

	var table bytes.Buffer
	code := kerr.NewReporter(&table, false).Render(reports)
	require.Equal(t, 1, code)
	require.Contains(t, table.String(), "broken")

	var js bytes.Buffer
	code = kerr.NewReporter(&js, true).Render(reports)
	require.Equal(t, 1, code)

	var decoded []kerr.Report
	require.NoError(t, json.Unmarshal(js.Bytes(), &decoded))
	require.Len(t, decoded, 3)
	require.Equal(t, "invariant violation", decoded[2].Kind)
}

func TestReporterAllCleanExitsZero(t *testing.T) {
	reports := []kerr.Report{
		kerr.ReportFromError("main", "mem2reg", nil),
		kerr.ReportFromError("main", "phi-pull", kerr.New(kerr.Yield, "phi-pull", "nothing to sink")),
	}
	var buf bytes.Buffer
	code := kerr.NewReporter(&buf, false).Render(reports)
	require.Equal(t, 0, code)
}
