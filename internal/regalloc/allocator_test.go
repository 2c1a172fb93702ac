package regalloc_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"kefir/internal/ir"
	"kefir/internal/regalloc"
)

func newTestFunction(t *testing.T) (*ir.Module, *ir.Function) {
	t.Helper()
	m := ir.NewModule()
	declID := m.DeclareFunction(ir.FunctionDeclaration{Name: "f", ParamTypes: []ir.ID{1, 2}})
	fn, err := m.DefineFunction(declID)
	require.NoError(t, err)
	return m, fn
}

func TestAllocateAssignsArgumentsToABIRegisters(t *testing.T) {
	m, fn := newTestFunction(t)
	c := fn.Code
	entry := fn.EntryBlock

	arg0, err := c.NewInstruction(entry, ir.Operation{
		Opcode:     ir.OpGetArgument,
		Parameters: ir.OperationParameters{Index: 0},
	})
	require.NoError(t, err)
	arg1, err := c.NewInstruction(entry, ir.Operation{
		Opcode:     ir.OpGetArgument,
		Parameters: ir.OperationParameters{Index: 1},
	})
	require.NoError(t, err)
	sum, err := c.NewInstruction(entry, ir.Operation{
		Opcode:     ir.OpIntAdd,
		Parameters: ir.OperationParameters{Refs: [4]ir.ID{arg0, arg1}},
	})
	require.NoError(t, err)
	ret, err := c.NewInstruction(entry, ir.Operation{
		Opcode:     ir.OpReturn,
		Parameters: ir.OperationParameters{Refs: [4]ir.ID{sum}},
	})
	require.NoError(t, err)
	require.NoError(t, c.AddControl(entry, ret))

	result, err := regalloc.Allocate(m, fn)
	require.NoError(t, err)

	loc0, ok := result.LocationOf(arg0)
	require.True(t, ok)
	require.Equal(t, regalloc.ResultGeneralPurposeRegister, loc0.Kind)
	rdi, err := indexOfGeneralPurpose("rdi")
	require.NoError(t, err)
	require.Equal(t, rdi, loc0.RegisterIndex)

	loc1, ok := result.LocationOf(arg1)
	require.True(t, ok)
	require.Equal(t, regalloc.ResultGeneralPurposeRegister, loc1.Kind)
	rsi, err := indexOfGeneralPurpose("rsi")
	require.NoError(t, err)
	require.Equal(t, rsi, loc1.RegisterIndex)

	sumLoc, ok := result.LocationOf(sum)
	require.True(t, ok)
	require.Equal(t, regalloc.ResultGeneralPurposeRegister, sumLoc.Kind)
}

func TestAllocateHintsReturnOperandToFirstRegister(t *testing.T) {
	m, fn := newTestFunction(t)
	c := fn.Code
	entry := fn.EntryBlock

	val, err := c.NewInstruction(entry, ir.Operation{
		Opcode:     ir.OpIntConst,
		Parameters: ir.OperationParameters{Imm: ir.ImmediateValue{Integer: 1}},
	})
	require.NoError(t, err)
	ret, err := c.NewInstruction(entry, ir.Operation{
		Opcode:     ir.OpReturn,
		Parameters: ir.OperationParameters{Refs: [4]ir.ID{val}},
	})
	require.NoError(t, err)
	require.NoError(t, c.AddControl(entry, ret))

	result, err := regalloc.Allocate(m, fn)
	require.NoError(t, err)

	loc, ok := result.LocationOf(val)
	require.True(t, ok)
	require.Equal(t, regalloc.ResultGeneralPurposeRegister, loc.Kind)
	require.Equal(t, 0, loc.RegisterIndex, "return operand should be hinted into the conventional result register")
}

func TestAllocateRejectsInlineAssembly(t *testing.T) {
	m, fn := newTestFunction(t)
	c := fn.Code
	entry := fn.EntryBlock

	_, outputRef, err := c.NewInlineAssembly(entry, 1, 0)
	require.NoError(t, err)
	require.NoError(t, c.AddControl(entry, outputRef))

	ret, err := c.NewInstruction(entry, ir.Operation{Opcode: ir.OpReturn})
	require.NoError(t, err)
	require.NoError(t, c.AddControl(entry, ret))

	_, err = regalloc.Allocate(m, fn)
	require.Error(t, err)
}

func TestAllocateAssignsDisjointRegistersToInterferingValues(t *testing.T) {
	m, fn := newTestFunction(t)
	c := fn.Code
	entry := fn.EntryBlock

	a, err := c.NewInstruction(entry, ir.Operation{
		Opcode:     ir.OpIntConst,
		Parameters: ir.OperationParameters{Imm: ir.ImmediateValue{Integer: 1}},
	})
	require.NoError(t, err)
	b, err := c.NewInstruction(entry, ir.Operation{
		Opcode:     ir.OpIntConst,
		Parameters: ir.OperationParameters{Imm: ir.ImmediateValue{Integer: 2}},
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

	result, err := regalloc.Allocate(m, fn)
	require.NoError(t, err)

	locA, ok := result.LocationOf(a)
	require.True(t, ok)
	locB, ok := result.LocationOf(b)
	require.True(t, ok)
	require.NotEqual(t, locA, locB, "a and b are simultaneously live at the add and must not share a register")
}

func indexOfGeneralPurpose(name string) (int, error) {
	for i, r := range regalloc.GeneralPurposeRegisters {
		if r == name {
			return i, nil
		}
	}
	return 0, errNotFound(name)
}

type errNotFound string

func (e errNotFound) Error() string { return "register not found: " + string(e) }
