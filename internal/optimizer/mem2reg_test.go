package optimizer_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"kefir/internal/config"
	"kefir/internal/ir"
	"kefir/internal/optimizer"
)

func newTestFunction(t *testing.T) (*ir.Module, *ir.Function) {
	t.Helper()
	m := ir.NewModule()
	declID := m.DeclareFunction(ir.FunctionDeclaration{Name: "f"})
	fn, err := m.DefineFunction(declID)
	require.NoError(t, err)
	return m, fn
}

func TestMem2RegPromotesStraightLineLocal(t *testing.T) {
	m, fn := newTestFunction(t)
	c := fn.Code
	entry := fn.EntryBlock

	local, err := c.NewInstruction(entry, ir.Operation{Opcode: ir.OpLocalAlloc})
	require.NoError(t, err)

	value, err := c.NewInstruction(entry, ir.Operation{
		Opcode:     ir.OpIntConst,
		Parameters: ir.OperationParameters{Imm: ir.ImmediateValue{Integer: 7}},
	})
	require.NoError(t, err)

	store, err := c.NewInstruction(entry, ir.Operation{
		Opcode:     ir.OpStore,
		Parameters: ir.OperationParameters{Refs: [4]ir.ID{local, value}},
	})
	require.NoError(t, err)
	require.NoError(t, c.AddControl(entry, store))

	load, err := c.NewInstruction(entry, ir.Operation{
		Opcode:     ir.OpLoad,
		Parameters: ir.OperationParameters{Refs: [4]ir.ID{local}},
	})
	require.NoError(t, err)

	result, err := c.NewInstruction(entry, ir.Operation{
		Opcode:     ir.OpIntAdd,
		Parameters: ir.OperationParameters{Refs: [4]ir.ID{load, load}},
	})
	require.NoError(t, err)

	ret, err := c.NewInstruction(entry, ir.Operation{Opcode: ir.OpReturn})
	require.NoError(t, err)
	require.NoError(t, c.AddControl(entry, ret))

	require.NoError(t, optimizer.Mem2Reg{}.Apply(m, fn, config.DefaultPassConfig()))

	_, err = c.Instr(load)
	require.Error(t, err, "load should have been replaced and dropped")
	_, err = c.Instr(store)
	require.Error(t, err, "store should have been dropped")

	resultInstr, err := c.Instr(result)
	require.NoError(t, err)
	require.Equal(t, value, resultInstr.Operation.Parameters.Refs[0])
	require.Equal(t, value, resultInstr.Operation.Parameters.Refs[1])
}

func TestMem2RegInsertsPhiAtMerge(t *testing.T) {
	m, fn := newTestFunction(t)
	c := fn.Code
	entry := fn.EntryBlock

	left, err := c.NewBlock(false)
	require.NoError(t, err)
	right, err := c.NewBlock(false)
	require.NoError(t, err)
	join, err := c.NewBlock(false)
	require.NoError(t, err)

	local, err := c.NewInstruction(entry, ir.Operation{Opcode: ir.OpLocalAlloc})
	require.NoError(t, err)

	cond, err := c.NewInstruction(entry, ir.Operation{Opcode: ir.OpIntConst})
	require.NoError(t, err)
	branch, err := c.NewInstruction(entry, ir.Operation{
		Opcode: ir.OpBranch,
		Parameters: ir.OperationParameters{
			Branch: ir.BranchTarget{
				TargetBlock:      left,
				AlternativeBlock: right,
				ConditionVariant: ir.BranchCondition8Bit,
				ConditionRef:     cond,
			},
		},
	})
	require.NoError(t, err)
	require.NoError(t, c.AddControl(entry, branch))

	leftVal, err := c.NewInstruction(left, ir.Operation{
		Opcode:     ir.OpIntConst,
		Parameters: ir.OperationParameters{Imm: ir.ImmediateValue{Integer: 1}},
	})
	require.NoError(t, err)
	leftStore, err := c.NewInstruction(left, ir.Operation{
		Opcode:     ir.OpStore,
		Parameters: ir.OperationParameters{Refs: [4]ir.ID{local, leftVal}},
	})
	require.NoError(t, err)
	require.NoError(t, c.AddControl(left, leftStore))
	leftJump, err := c.NewInstruction(left, ir.Operation{
		Opcode:     ir.OpJump,
		Parameters: ir.OperationParameters{Imm: ir.ImmediateValue{BlockRef: join}},
	})
	require.NoError(t, err)
	require.NoError(t, c.AddControl(left, leftJump))

	rightVal, err := c.NewInstruction(right, ir.Operation{
		Opcode:     ir.OpIntConst,
		Parameters: ir.OperationParameters{Imm: ir.ImmediateValue{Integer: 2}},
	})
	require.NoError(t, err)
	rightStore, err := c.NewInstruction(right, ir.Operation{
		Opcode:     ir.OpStore,
		Parameters: ir.OperationParameters{Refs: [4]ir.ID{local, rightVal}},
	})
	require.NoError(t, err)
	require.NoError(t, c.AddControl(right, rightStore))
	rightJump, err := c.NewInstruction(right, ir.Operation{
		Opcode:     ir.OpJump,
		Parameters: ir.OperationParameters{Imm: ir.ImmediateValue{BlockRef: join}},
	})
	require.NoError(t, err)
	require.NoError(t, c.AddControl(right, rightJump))

	load, err := c.NewInstruction(join, ir.Operation{
		Opcode:     ir.OpLoad,
		Parameters: ir.OperationParameters{Refs: [4]ir.ID{local}},
	})
	require.NoError(t, err)
	ret, err := c.NewInstruction(join, ir.Operation{Opcode: ir.OpReturn})
	require.NoError(t, err)
	require.NoError(t, c.AddControl(join, ret))
	_ = load

	require.NoError(t, optimizer.Mem2Reg{}.Apply(m, fn, config.DefaultPassConfig()))

	phiHead, err := c.BlockPhiHead(join)
	require.NoError(t, err)
	require.NotEqual(t, ir.NoRef, phiHead, "join block should have received a phi")

	links, err := c.PhiLinks(phiHead)
	require.NoError(t, err)
	require.Len(t, links, 2)
}

func TestMem2RegYieldsOnIndirectJump(t *testing.T) {
	m, fn := newTestFunction(t)
	c := fn.Code
	entry := fn.EntryBlock

	target, err := c.NewInstruction(entry, ir.Operation{Opcode: ir.OpIntConst})
	require.NoError(t, err)
	jmp, err := c.NewInstruction(entry, ir.Operation{
		Opcode:     ir.OpIndirectJump,
		Parameters: ir.OperationParameters{Refs: [4]ir.ID{target}},
	})
	require.NoError(t, err)
	require.NoError(t, c.AddControl(entry, jmp))

	err = optimizer.Mem2Reg{}.Apply(m, fn, config.DefaultPassConfig())
	require.Error(t, err)
}
