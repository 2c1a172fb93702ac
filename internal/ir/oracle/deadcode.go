package oracle

import "kefir/internal/ir"

// DeadCode is a snapshot dead-code index: a block is alive iff reachable
// from the entry point, and an instruction is alive iff its block is
// alive and it is reachable backward, through operand and phi-link edges,
// from some side-effecting or terminating instruction (spec §4.2). This
// satisfies ir.DeadCodeIndex and is what DropDeadCode and the
// DeadBlockRemoval pass consult.
type DeadCode struct {
	c        *ir.CodeContainer
	reach    map[ir.ID]bool
	required map[ir.ID]bool
	preds    *PredecessorMap
}

// ComputeDeadCode builds the dead-code index for c rooted at entry.
func ComputeDeadCode(c *ir.CodeContainer, entry ir.ID) (*DeadCode, error) {
	dom, err := ComputeDominance(c, entry)
	if err != nil {
		return nil, err
	}
	preds, err := Predecessors(c)
	if err != nil {
		return nil, err
	}

	reach := make(map[ir.ID]bool)
	for _, b := range dom.ReachableBlocks() {
		reach[b] = true
	}

	required := make(map[ir.ID]bool)
	var worklist []ir.ID

	for block := range reach {
		head, err := c.BlockInstrHead(block)
		if err != nil {
			return nil, err
		}
		for ref := head; ref != ir.NoRef; {
			instr, err := c.Instr(ref)
			if err != nil {
				return nil, err
			}
			if instr.Operation.Opcode.HasSideEffect() || instr.Operation.Opcode.IsTerminator() {
				if !required[ref] {
					required[ref] = true
					worklist = append(worklist, ref)
				}
			}
			next, err := c.InstructionNextSibling(ref)
			if err != nil {
				return nil, err
			}
			ref = next
		}
	}

	for len(worklist) > 0 {
		ref := worklist[0]
		worklist = worklist[1:]

		instr, err := c.Instr(ref)
		if err != nil {
			continue
		}
		operands := directOperands(instr.Operation)
		switch instr.Operation.Opcode {
		case ir.OpCall, ir.OpTailCall, ir.OpInvoke:
			if call, err := c.Call(instr.Operation.Parameters.FunctionCall.CallRef); err == nil {
				operands = append(append(operands, call.Arguments...), call.ReturnSpace)
			}
		case ir.OpInlineAssembly:
			if node, err := c.InlineAssembly(instr.Operation.Parameters.InlineAsmRef); err == nil {
				for _, param := range node.Parameters {
					operands = append(operands, param.ReadRef)
				}
			}
		}
		for _, operand := range operands {
			if operand == ir.NoRef || required[operand] {
				continue
			}
			if _, err := c.Instr(operand); err != nil {
				continue
			}
			required[operand] = true
			worklist = append(worklist, operand)
		}

		if instr.Operation.Opcode == ir.OpPhi {
			phi, err := c.Phi(instr.Operation.Parameters.PhiRef)
			if err == nil {
				for _, val := range phi.Links {
					if val == ir.NoRef || required[val] {
						continue
					}
					if _, err := c.Instr(val); err != nil {
						continue
					}
					required[val] = true
					worklist = append(worklist, val)
				}
			}
		}
	}

	return &DeadCode{c: c, reach: reach, required: required, preds: preds}, nil
}

func (d *DeadCode) IsBlockAlive(block ir.ID) (bool, error) {
	return d.reach[block], nil
}

func (d *DeadCode) IsInstructionAlive(ref ir.ID) (bool, error) {
	instr, err := d.c.Instr(ref)
	if err != nil {
		return false, nil
	}
	if !d.reach[instr.BlockID] {
		return false, nil
	}
	return d.required[ref], nil
}

func (d *DeadCode) IsBlockPredecessor(block, candidate ir.ID) (bool, error) {
	if !d.reach[candidate] {
		return false, nil
	}
	return d.preds.Contains(block, candidate), nil
}
