package optimizer_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"kefir/internal/config"
	"kefir/internal/ir"
	"kefir/internal/optimizer"
)

func TestValueNumberingMergesDuplicateComputation(t *testing.T) {
	m, fn := newTestFunction(t)
	c := fn.Code
	entry := fn.EntryBlock

	a, err := c.NewInstruction(entry, ir.Operation{
		Opcode:     ir.OpIntConst,
		Parameters: ir.OperationParameters{Imm: ir.ImmediateValue{Integer: 3}},
	})
	require.NoError(t, err)
	b, err := c.NewInstruction(entry, ir.Operation{
		Opcode:     ir.OpIntConst,
		Parameters: ir.OperationParameters{Imm: ir.ImmediateValue{Integer: 4}},
	})
	require.NoError(t, err)
	first, err := c.NewInstruction(entry, ir.Operation{
		Opcode:     ir.OpIntAdd,
		Parameters: ir.OperationParameters{Refs: [4]ir.ID{a, b}},
	})
	require.NoError(t, err)
	second, err := c.NewInstruction(entry, ir.Operation{
		Opcode:     ir.OpIntAdd,
		Parameters: ir.OperationParameters{Refs: [4]ir.ID{a, b}},
	})
	require.NoError(t, err)
	ret, err := c.NewInstruction(entry, ir.Operation{
		Opcode:     ir.OpReturn,
		Parameters: ir.OperationParameters{Refs: [4]ir.ID{first, second}},
	})
	require.NoError(t, err)
	require.NoError(t, c.AddControl(entry, ret))

	require.NoError(t, optimizer.ValueNumbering{}.Apply(m, fn, config.DefaultPassConfig()))

	_, err = c.Instr(second)
	require.Error(t, err, "duplicate add should have been merged away")

	retInstr, err := c.Instr(ret)
	require.NoError(t, err)
	require.Equal(t, first, retInstr.Operation.Parameters.Refs[0])
	require.Equal(t, first, retInstr.Operation.Parameters.Refs[1])
}

func TestValueNumberingNeverMergesSideEffectingCalls(t *testing.T) {
	m, fn := newTestFunction(t)
	c := fn.Code
	entry := fn.EntryBlock

	declID := m.DeclareFunction(ir.FunctionDeclaration{Name: "g"})

	_, firstOut, err := c.NewCall(entry, declID, 0, ir.NoRef)
	require.NoError(t, err)
	_, secondOut, err := c.NewCall(entry, declID, 0, ir.NoRef)
	require.NoError(t, err)
	ret, err := c.NewInstruction(entry, ir.Operation{
		Opcode:     ir.OpReturn,
		Parameters: ir.OperationParameters{Refs: [4]ir.ID{firstOut, secondOut}},
	})
	require.NoError(t, err)
	require.NoError(t, c.AddControl(entry, ret))

	require.NoError(t, optimizer.ValueNumbering{}.Apply(m, fn, config.DefaultPassConfig()))

	_, err = c.Instr(firstOut)
	require.NoError(t, err)
	_, err = c.Instr(secondOut)
	require.NoError(t, err, "two independent call sites must never be merged")
}
