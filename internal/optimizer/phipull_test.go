package optimizer_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"kefir/internal/config"
	"kefir/internal/ir"
	"kefir/internal/optimizer"
)

func TestPhiPullSinksUniformConstant(t *testing.T) {
	m, fn := newTestFunction(t)
	c := fn.Code
	entry := fn.EntryBlock

	left, err := c.NewBlock(false)
	require.NoError(t, err)
	right, err := c.NewBlock(false)
	require.NoError(t, err)
	join, err := c.NewBlock(false)
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

	leftJump, err := c.NewInstruction(left, ir.Operation{
		Opcode:     ir.OpJump,
		Parameters: ir.OperationParameters{Imm: ir.ImmediateValue{BlockRef: join}},
	})
	require.NoError(t, err)
	require.NoError(t, c.AddControl(left, leftJump))
	rightJump, err := c.NewInstruction(right, ir.Operation{
		Opcode:     ir.OpJump,
		Parameters: ir.OperationParameters{Imm: ir.ImmediateValue{BlockRef: join}},
	})
	require.NoError(t, err)
	require.NoError(t, c.AddControl(right, rightJump))

	leftVal, err := c.NewInstruction(left, ir.Operation{
		Opcode:     ir.OpIntConst,
		Parameters: ir.OperationParameters{Imm: ir.ImmediateValue{Integer: 9}},
	})
	require.NoError(t, err)
	rightVal, err := c.NewInstruction(right, ir.Operation{
		Opcode:     ir.OpIntConst,
		Parameters: ir.OperationParameters{Imm: ir.ImmediateValue{Integer: 9}},
	})
	require.NoError(t, err)

	phiID, outputRef, err := c.NewPhi(join)
	require.NoError(t, err)
	require.NoError(t, c.PhiAttach(phiID, left, leftVal))
	require.NoError(t, c.PhiAttach(phiID, right, rightVal))

	ret, err := c.NewInstruction(join, ir.Operation{
		Opcode:     ir.OpReturn,
		Parameters: ir.OperationParameters{Refs: [4]ir.ID{outputRef}},
	})
	require.NoError(t, err)
	require.NoError(t, c.AddControl(join, ret))

	require.NoError(t, optimizer.PhiPull{}.Apply(m, fn, config.DefaultPassConfig()))

	_, err = c.Phi(phiID)
	require.Error(t, err, "uniform phi should have been removed")

	retInstr, err := c.Instr(ret)
	require.NoError(t, err)
	rematerialized, err := c.Instr(retInstr.Operation.Parameters.Refs[0])
	require.NoError(t, err)
	require.Equal(t, ir.OpIntConst, rematerialized.Operation.Opcode)
	require.Equal(t, int64(9), rematerialized.Operation.Parameters.Imm.Integer)
	require.Equal(t, join, rematerialized.BlockID)
}

func TestPhiPullLeavesDivergentPhiAlone(t *testing.T) {
	m, fn := newTestFunction(t)
	c := fn.Code
	entry := fn.EntryBlock

	left, err := c.NewBlock(false)
	require.NoError(t, err)
	right, err := c.NewBlock(false)
	require.NoError(t, err)
	join, err := c.NewBlock(false)
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

	leftJump, err := c.NewInstruction(left, ir.Operation{
		Opcode:     ir.OpJump,
		Parameters: ir.OperationParameters{Imm: ir.ImmediateValue{BlockRef: join}},
	})
	require.NoError(t, err)
	require.NoError(t, c.AddControl(left, leftJump))
	rightJump, err := c.NewInstruction(right, ir.Operation{
		Opcode:     ir.OpJump,
		Parameters: ir.OperationParameters{Imm: ir.ImmediateValue{BlockRef: join}},
	})
	require.NoError(t, err)
	require.NoError(t, c.AddControl(right, rightJump))

	leftVal, err := c.NewInstruction(left, ir.Operation{
		Opcode:     ir.OpIntConst,
		Parameters: ir.OperationParameters{Imm: ir.ImmediateValue{Integer: 9}},
	})
	require.NoError(t, err)
	rightVal, err := c.NewInstruction(right, ir.Operation{
		Opcode:     ir.OpIntConst,
		Parameters: ir.OperationParameters{Imm: ir.ImmediateValue{Integer: 10}},
	})
	require.NoError(t, err)

	phiID, outputRef, err := c.NewPhi(join)
	require.NoError(t, err)
	require.NoError(t, c.PhiAttach(phiID, left, leftVal))
	require.NoError(t, c.PhiAttach(phiID, right, rightVal))

	ret, err := c.NewInstruction(join, ir.Operation{
		Opcode:     ir.OpReturn,
		Parameters: ir.OperationParameters{Refs: [4]ir.ID{outputRef}},
	})
	require.NoError(t, err)
	require.NoError(t, c.AddControl(join, ret))

	require.NoError(t, optimizer.PhiPull{}.Apply(m, fn, config.DefaultPassConfig()))

	_, err = c.Phi(phiID)
	require.NoError(t, err, "divergent phi must survive")
}
