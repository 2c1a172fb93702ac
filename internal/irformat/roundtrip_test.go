package irformat_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"kefir/internal/ir"
	"kefir/internal/irformat"
)

func buildSampleModule(t *testing.T) *ir.Module {
	t.Helper()

	m := ir.NewModule()
	declID := m.DeclareFunction(ir.FunctionDeclaration{Name: "add", ParamTypes: nil, ReturnType: ir.NoRef})
	fn, err := m.DefineFunction(declID)
	require.NoError(t, err)

	c := fn.Code
	entry := fn.EntryBlock

	left, err := c.NewInstruction(entry, ir.Operation{
		Opcode:     ir.OpIntConst,
		Parameters: ir.OperationParameters{Imm: ir.ImmediateValue{Integer: 1}},
	})
	require.NoError(t, err)
	right, err := c.NewInstruction(entry, ir.Operation{
		Opcode:     ir.OpIntConst,
		Parameters: ir.OperationParameters{Imm: ir.ImmediateValue{Integer: 2}},
	})
	require.NoError(t, err)
	sum, err := c.NewInstruction(entry, ir.Operation{
		Opcode:     ir.OpIntAdd,
		Parameters: ir.OperationParameters{Refs: [4]ir.ID{left, right}},
	})
	require.NoError(t, err)
	ret, err := c.NewInstruction(entry, ir.Operation{
		Opcode:     ir.OpReturn,
		Parameters: ir.OperationParameters{Refs: [4]ir.ID{sum, ir.NoRef, ir.NoRef, ir.NoRef}},
	})
	require.NoError(t, err)
	require.NoError(t, c.AddControl(entry, ret))

	_, err = c.NewInstruction(entry, ir.Operation{
		Opcode:     ir.OpCompare,
		Parameters: ir.OperationParameters{Refs: [4]ir.ID{left, right}, Comparison: ir.CmpInt64Greater},
	})
	require.NoError(t, err)

	return m
}

func TestDumpLoadRoundTrip(t *testing.T) {
	m := buildSampleModule(t)

	data, err := irformat.Dump(m)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	reloaded, err := irformat.Load(data)
	require.NoError(t, err)

	redump, err := irformat.Dump(reloaded)
	require.NoError(t, err)
	require.JSONEq(t, string(data), string(redump))
}

func TestLoadRejectsOpcodeRevisionMismatch(t *testing.T) {
	mutated := []byte(`{"meta_info":{"opcode_rev":999999}}`)

	_, err := irformat.Load(mutated)
	require.Error(t, err)
}

func TestDumpPreservesInstructionUses(t *testing.T) {
	m := buildSampleModule(t)
	data, err := irformat.Dump(m)
	require.NoError(t, err)

	reloaded, err := irformat.Load(data)
	require.NoError(t, err)
	require.Len(t, reloaded.Functions, 1)

	var fn *ir.Function
	for _, f := range reloaded.Functions {
		fn = f
	}
	require.NotEqual(t, ir.NoRef, fn.EntryBlock)

	head, err := fn.Code.BlockInstrHead(fn.EntryBlock)
	require.NoError(t, err)
	require.NotEqual(t, ir.NoRef, head)

	uses := fn.Code.InstructionUses(head)
	require.NotEmpty(t, uses)
}
