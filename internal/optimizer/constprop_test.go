package optimizer_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"kefir/internal/config"
	"kefir/internal/ir"
	"kefir/internal/optimizer"
)

func TestConstantPropagationFoldsArithmetic(t *testing.T) {
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
	sum, err := c.NewInstruction(entry, ir.Operation{
		Opcode:     ir.OpIntAdd,
		Parameters: ir.OperationParameters{Refs: [4]ir.ID{a, b}},
	})
	require.NoError(t, err)
	ret, err := c.NewInstruction(entry, ir.Operation{
		Opcode:     ir.OpReturn,
		Parameters: ir.OperationParameters{Refs: [4]ir.ID{sum}},
	})
	require.NoError(t, err)
	require.NoError(t, c.AddControl(entry, ret))

	require.NoError(t, optimizer.ConstantPropagation{}.Apply(m, fn, config.DefaultPassConfig()))

	_, err = c.Instr(sum)
	require.Error(t, err, "folded add should have been dropped")

	retInstr, err := c.Instr(ret)
	require.NoError(t, err)
	folded, err := c.Instr(retInstr.Operation.Parameters.Refs[0])
	require.NoError(t, err)
	require.Equal(t, ir.OpIntConst, folded.Operation.Opcode)
	require.Equal(t, int64(7), folded.Operation.Parameters.Imm.Integer)
}

func TestConstantPropagationFoldsSignedCompare(t *testing.T) {
	m, fn := newTestFunction(t)
	c := fn.Code
	entry := fn.EntryBlock

	a, err := c.NewInstruction(entry, ir.Operation{
		Opcode:     ir.OpIntConst,
		Parameters: ir.OperationParameters{Imm: ir.ImmediateValue{Integer: 5}},
	})
	require.NoError(t, err)
	b, err := c.NewInstruction(entry, ir.Operation{
		Opcode:     ir.OpIntConst,
		Parameters: ir.OperationParameters{Imm: ir.ImmediateValue{Integer: 2}},
	})
	require.NoError(t, err)
	cmp, err := c.NewInstruction(entry, ir.Operation{
		Opcode: ir.OpCompare,
		Parameters: ir.OperationParameters{
			Refs:       [4]ir.ID{a, b},
			Comparison: ir.CmpInt64Greater,
		},
	})
	require.NoError(t, err)
	ret, err := c.NewInstruction(entry, ir.Operation{
		Opcode:     ir.OpReturn,
		Parameters: ir.OperationParameters{Refs: [4]ir.ID{cmp}},
	})
	require.NoError(t, err)
	require.NoError(t, c.AddControl(entry, ret))

	require.NoError(t, optimizer.ConstantPropagation{}.Apply(m, fn, config.DefaultPassConfig()))

	retInstr, err := c.Instr(ret)
	require.NoError(t, err)
	folded, err := c.Instr(retInstr.Operation.Parameters.Refs[0])
	require.NoError(t, err)
	require.Equal(t, int64(1), folded.Operation.Parameters.Imm.Integer)
}

func TestConstantPropagationLeavesNonConstantAlone(t *testing.T) {
	m, fn := newTestFunction(t)
	c := fn.Code
	entry := fn.EntryBlock

	arg, err := c.NewInstruction(entry, ir.Operation{Opcode: ir.OpGetArgument})
	require.NoError(t, err)
	b, err := c.NewInstruction(entry, ir.Operation{
		Opcode:     ir.OpIntConst,
		Parameters: ir.OperationParameters{Imm: ir.ImmediateValue{Integer: 4}},
	})
	require.NoError(t, err)
	sum, err := c.NewInstruction(entry, ir.Operation{
		Opcode:     ir.OpIntAdd,
		Parameters: ir.OperationParameters{Refs: [4]ir.ID{arg, b}},
	})
	require.NoError(t, err)
	ret, err := c.NewInstruction(entry, ir.Operation{
		Opcode:     ir.OpReturn,
		Parameters: ir.OperationParameters{Refs: [4]ir.ID{sum}},
	})
	require.NoError(t, err)
	require.NoError(t, c.AddControl(entry, ret))

	require.NoError(t, optimizer.ConstantPropagation{}.Apply(m, fn, config.DefaultPassConfig()))

	_, err = c.Instr(sum)
	require.NoError(t, err, "add with a non-constant operand must survive")
}
