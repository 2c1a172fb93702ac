package oracle_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"kefir/internal/ir"
	"kefir/internal/ir/oracle"
)

// buildDiamond builds entry -> {left, right} -> join, with join ending in
// a Return, and returns the block ids plus the container.
func buildDiamond(t *testing.T) (*ir.CodeContainer, ir.ID, ir.ID, ir.ID, ir.ID) {
	t.Helper()
	c := ir.NewCodeContainer()

	entry, err := c.NewBlock(true)
	require.NoError(t, err)
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

	ret, err := c.NewInstruction(join, ir.Operation{Opcode: ir.OpReturn})
	require.NoError(t, err)
	require.NoError(t, c.AddControl(join, ret))

	return c, entry, left, right, join
}

func TestPredecessorsOfJoinBlock(t *testing.T) {
	c, _, left, right, join := buildDiamond(t)
	preds, err := oracle.Predecessors(c)
	require.NoError(t, err)
	require.ElementsMatch(t, []ir.ID{left, right}, preds.Of(join))
}

func TestDominanceDiamond(t *testing.T) {
	c, entry, left, right, join := buildDiamond(t)
	dom, err := oracle.ComputeDominance(c, entry)
	require.NoError(t, err)

	require.True(t, dom.Dominates(entry, left))
	require.True(t, dom.Dominates(entry, right))
	require.True(t, dom.Dominates(entry, join))
	require.False(t, dom.Dominates(left, join))
	require.False(t, dom.Dominates(right, join))

	idom, ok := dom.ImmediateDominator(join)
	require.True(t, ok)
	require.Equal(t, entry, idom)
}

func TestLivenessExtendsAcrossPhiEdge(t *testing.T) {
	c, entry, left, right, join := buildDiamond(t)

	leftVal, err := c.NewInstruction(left, ir.Operation{Opcode: ir.OpIntConst})
	require.NoError(t, err)
	rightVal, err := c.NewInstruction(right, ir.Operation{Opcode: ir.OpIntConst})
	require.NoError(t, err)

	phiID, _, err := c.NewPhi(join)
	require.NoError(t, err)
	require.NoError(t, c.PhiAttach(phiID, left, leftVal))
	require.NoError(t, c.PhiAttach(phiID, right, rightVal))

	dom, err := oracle.ComputeDominance(c, entry)
	require.NoError(t, err)
	liveness, err := oracle.ComputeLiveness(c, dom)
	require.NoError(t, err)

	leftJump, err := c.BlockInstrControlTail(left)
	require.NoError(t, err)
	jumpPos, ok := liveness.Position(leftJump)
	require.True(t, ok)
	require.True(t, liveness.LiveAt(leftVal, jumpPos))
}

func TestDeadCodeIndexPrunesUnreachableBlock(t *testing.T) {
	c := ir.NewCodeContainer()
	entry, err := c.NewBlock(true)
	require.NoError(t, err)
	unreachable, err := c.NewBlock(false)
	require.NoError(t, err)

	ret, err := c.NewInstruction(entry, ir.Operation{Opcode: ir.OpReturn})
	require.NoError(t, err)
	require.NoError(t, c.AddControl(entry, ret))

	_, err = c.NewInstruction(unreachable, ir.Operation{Opcode: ir.OpIntConst})
	require.NoError(t, err)

	idx, err := oracle.ComputeDeadCode(c, entry)
	require.NoError(t, err)

	alive, err := idx.IsBlockAlive(entry)
	require.NoError(t, err)
	require.True(t, alive)

	alive, err = idx.IsBlockAlive(unreachable)
	require.NoError(t, err)
	require.False(t, alive)

	require.NoError(t, c.DropDeadCode(idx))
	_, err = c.Block(unreachable)
	require.Error(t, err)
}

func TestDeadCodeIndexDropsUnusedPureInstruction(t *testing.T) {
	c := ir.NewCodeContainer()
	entry, err := c.NewBlock(true)
	require.NoError(t, err)

	unused, err := c.NewInstruction(entry, ir.Operation{Opcode: ir.OpIntConst})
	require.NoError(t, err)
	ret, err := c.NewInstruction(entry, ir.Operation{Opcode: ir.OpReturn})
	require.NoError(t, err)
	require.NoError(t, c.AddControl(entry, ret))

	idx, err := oracle.ComputeDeadCode(c, entry)
	require.NoError(t, err)
	alive, err := idx.IsInstructionAlive(unused)
	require.NoError(t, err)
	require.False(t, alive)

	require.NoError(t, c.DropDeadCode(idx))
	_, err = c.Instr(unused)
	require.Error(t, err)
	_, err = c.Instr(ret)
	require.NoError(t, err)
}
