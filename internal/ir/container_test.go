package ir_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"kefir/internal/ir"
)

func TestNewBlockRequiresSingleEntry(t *testing.T) {
	c := ir.NewCodeContainer()
	_, err := c.NewBlock(true)
	require.NoError(t, err)
	_, err = c.NewBlock(true)
	require.Error(t, err)
}

func TestNewInstructionTracksUses(t *testing.T) {
	c := ir.NewCodeContainer()
	entry, err := c.NewBlock(true)
	require.NoError(t, err)

	constRef, err := c.NewInstruction(entry, ir.Operation{
		Opcode:     ir.OpIntConst,
		Parameters: ir.OperationParameters{Imm: ir.ImmediateValue{Integer: 42}},
	})
	require.NoError(t, err)

	addRef, err := c.NewInstruction(entry, ir.Operation{
		Opcode:     ir.OpIntAdd,
		Parameters: ir.OperationParameters{Refs: [4]ir.ID{constRef, constRef}},
	})
	require.NoError(t, err)

	uses := c.InstructionUses(constRef)
	require.Equal(t, []ir.ID{addRef}, uses)
}

func TestReplaceReferencesThenDrop(t *testing.T) {
	c := ir.NewCodeContainer()
	entry, err := c.NewBlock(true)
	require.NoError(t, err)

	a, err := c.NewInstruction(entry, ir.Operation{Opcode: ir.OpIntConst})
	require.NoError(t, err)
	b, err := c.NewInstruction(entry, ir.Operation{Opcode: ir.OpIntConst})
	require.NoError(t, err)
	user, err := c.NewInstruction(entry, ir.Operation{
		Opcode:     ir.OpIntAdd,
		Parameters: ir.OperationParameters{Refs: [4]ir.ID{a, ir.NoRef}},
	})
	require.NoError(t, err)

	require.NoError(t, c.ReplaceReferences(a, b))
	require.Empty(t, c.InstructionUses(a))
	require.Equal(t, []ir.ID{user}, c.InstructionUses(b))

	require.NoError(t, c.DropInstr(a))
	_, err = c.Instr(a)
	require.Error(t, err)
}

func TestReplaceReferencesRewritesPhiLink(t *testing.T) {
	c := ir.NewCodeContainer()
	entry, err := c.NewBlock(true)
	require.NoError(t, err)
	pred, err := c.NewBlock(false)
	require.NoError(t, err)

	a, err := c.NewInstruction(pred, ir.Operation{Opcode: ir.OpIntConst})
	require.NoError(t, err)
	b, err := c.NewInstruction(pred, ir.Operation{Opcode: ir.OpIntConst})
	require.NoError(t, err)

	phiID, phiOutput, err := c.NewPhi(entry)
	require.NoError(t, err)
	require.NoError(t, c.PhiAttach(phiID, pred, a))

	require.NoError(t, c.ReplaceReferences(a, b))

	link, err := c.PhiLinkFor(phiID, pred)
	require.NoError(t, err)
	require.Equal(t, b, link)

	require.Empty(t, c.InstructionUses(a))
	require.Equal(t, []ir.ID{phiOutput}, c.InstructionUses(b))

	require.NoError(t, c.DropInstr(a))
	_, err = c.Instr(a)
	require.Error(t, err)
}

func TestDropInstrRefusesWhileStillUsed(t *testing.T) {
	c := ir.NewCodeContainer()
	entry, err := c.NewBlock(true)
	require.NoError(t, err)

	a, err := c.NewInstruction(entry, ir.Operation{Opcode: ir.OpIntConst})
	require.NoError(t, err)
	_, err = c.NewInstruction(entry, ir.Operation{
		Opcode:     ir.OpIntAdd,
		Parameters: ir.OperationParameters{Refs: [4]ir.ID{a, ir.NoRef}},
	})
	require.NoError(t, err)

	require.Error(t, c.DropInstr(a))
}

func TestPhiLinkSetTracksPredecessors(t *testing.T) {
	c := ir.NewCodeContainer()
	entry, err := c.NewBlock(true)
	require.NoError(t, err)
	left, err := c.NewBlock(false)
	require.NoError(t, err)
	right, err := c.NewBlock(false)
	require.NoError(t, err)
	join, err := c.NewBlock(false)
	require.NoError(t, err)
	_ = entry

	leftVal, err := c.NewInstruction(left, ir.Operation{Opcode: ir.OpIntConst})
	require.NoError(t, err)
	rightVal, err := c.NewInstruction(right, ir.Operation{Opcode: ir.OpIntConst})
	require.NoError(t, err)

	phiID, outputRef, err := c.NewPhi(join)
	require.NoError(t, err)
	require.NoError(t, c.PhiAttach(phiID, left, leftVal))
	require.NoError(t, c.PhiAttach(phiID, right, rightVal))

	links, err := c.PhiLinks(phiID)
	require.NoError(t, err)
	require.Len(t, links, 2)

	require.Contains(t, c.InstructionUses(leftVal), outputRef)
	require.Contains(t, c.InstructionUses(rightVal), outputRef)
}

func TestControlFlowListIsSubsequenceOfSiblingList(t *testing.T) {
	c := ir.NewCodeContainer()
	entry, err := c.NewBlock(true)
	require.NoError(t, err)

	_, err = c.NewInstruction(entry, ir.Operation{Opcode: ir.OpIntConst})
	require.NoError(t, err)
	ret, err := c.NewInstruction(entry, ir.Operation{Opcode: ir.OpReturn})
	require.NoError(t, err)
	require.NoError(t, c.AddControl(entry, ret))

	head, err := c.BlockInstrControlHead(entry)
	require.NoError(t, err)
	require.Equal(t, ret, head)
	tail, err := c.BlockInstrControlTail(entry)
	require.NoError(t, err)
	require.Equal(t, ret, tail)
}

type fakeDeadCode struct {
	aliveBlocks map[ir.ID]bool
	aliveInstrs map[ir.ID]bool
}

func (f fakeDeadCode) IsBlockAlive(b ir.ID) (bool, error)       { return f.aliveBlocks[b], nil }
func (f fakeDeadCode) IsInstructionAlive(i ir.ID) (bool, error) { return f.aliveInstrs[i], nil }
func (f fakeDeadCode) IsBlockPredecessor(b, cand ir.ID) (bool, error) {
	return f.aliveBlocks[cand], nil
}

func TestDropDeadCodeRemovesUnreachableBlock(t *testing.T) {
	c := ir.NewCodeContainer()
	entry, err := c.NewBlock(true)
	require.NoError(t, err)
	dead, err := c.NewBlock(false)
	require.NoError(t, err)

	deadInstr, err := c.NewInstruction(dead, ir.Operation{Opcode: ir.OpIntConst})
	require.NoError(t, err)
	entryInstr, err := c.NewInstruction(entry, ir.Operation{Opcode: ir.OpIntConst})
	require.NoError(t, err)

	idx := fakeDeadCode{
		aliveBlocks: map[ir.ID]bool{entry: true, dead: false},
		aliveInstrs: map[ir.ID]bool{entryInstr: true, deadInstr: false},
	}
	require.NoError(t, c.DropDeadCode(idx))

	_, err = c.Block(dead)
	require.Error(t, err)
	_, err = c.Instr(entryInstr)
	require.NoError(t, err)
}
