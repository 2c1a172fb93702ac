// Package oracle implements the optimizer's analysis oracles: pure
// functions of an immutable code-container snapshot that answer questions
// (predecessors, dominance, liveness, reachability) the transformation
// passes need but that the container itself does not track, keeping the
// container a plain data structure rather than a stateful cache.
package oracle

import (
	"sort"

	"kefir/internal/ir"
)

// Successors returns the set of blocks that control can pass to directly
// from the end of block, derived from its terminator instruction (or, for
// a block ending in inline assembly with embedded jump targets, from that
// node's jump-target table).
func Successors(c *ir.CodeContainer, block ir.ID) ([]ir.ID, error) {
	tail, err := c.BlockInstrControlTail(block)
	if err != nil {
		return nil, err
	}
	if tail == ir.NoRef {
		return nil, nil
	}
	instr, err := c.Instr(tail)
	if err != nil {
		return nil, err
	}

	var out []ir.ID
	switch instr.Operation.Opcode {
	case ir.OpJump:
		out = append(out, instr.Operation.Parameters.Imm.BlockRef)
	case ir.OpBranch, ir.OpBranchCompare:
		b := instr.Operation.Parameters.Branch
		out = append(out, b.TargetBlock, b.AlternativeBlock)
	case ir.OpIndirectJump:
		out = append(out, instr.Operation.Parameters.IndirectTargets...)
	case ir.OpInlineAssembly:
		node, err := c.InlineAssembly(instr.Operation.Parameters.InlineAsmRef)
		if err != nil {
			return nil, err
		}
		if node.DefaultJumpTarget != ir.NoRef {
			out = append(out, node.DefaultJumpTarget)
		}
		for _, target := range node.JumpTargets {
			out = append(out, target)
		}
	case ir.OpReturn, ir.OpTailCall, ir.OpUnreachable:
		// no successors
	}

	dedup := make(map[ir.ID]struct{}, len(out))
	result := out[:0]
	for _, b := range out {
		if b == ir.NoRef {
			continue
		}
		if _, seen := dedup[b]; seen {
			continue
		}
		dedup[b] = struct{}{}
		result = append(result, b)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result, nil
}

// AllSuccessors computes Successors for every block in the container.
func AllSuccessors(c *ir.CodeContainer) (map[ir.ID][]ir.ID, error) {
	out := make(map[ir.ID][]ir.ID)
	for _, b := range c.Blocks() {
		succ, err := Successors(c, b)
		if err != nil {
			return nil, err
		}
		out[b] = succ
	}
	return out, nil
}
