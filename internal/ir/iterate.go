package ir

import (
	"sort"

	kerr "kefir/internal/errors"
)

// BlockInstrHead/Tail return the first/last instruction in block's
// sibling list (program order), or NoRef if the block is empty.
func (c *CodeContainer) BlockInstrHead(block ID) (ID, error) {
	b, err := c.Block(block)
	if err != nil {
		return NoRef, err
	}
	return b.Content.Head, nil
}

func (c *CodeContainer) BlockInstrTail(block ID) (ID, error) {
	b, err := c.Block(block)
	if err != nil {
		return NoRef, err
	}
	return b.Content.Tail, nil
}

// BlockInstrControlHead/Tail return the first/last entry of block's
// control-flow sublist.
func (c *CodeContainer) BlockInstrControlHead(block ID) (ID, error) {
	b, err := c.Block(block)
	if err != nil {
		return NoRef, err
	}
	return b.ControlFlow.Head, nil
}

func (c *CodeContainer) BlockInstrControlTail(block ID) (ID, error) {
	b, err := c.Block(block)
	if err != nil {
		return NoRef, err
	}
	return b.ControlFlow.Tail, nil
}

// BlockPhiHead/Tail return the first/last phi node resident in block.
func (c *CodeContainer) BlockPhiHead(block ID) (ID, error) {
	b, err := c.Block(block)
	if err != nil {
		return NoRef, err
	}
	return b.PhiHead, nil
}

func (c *CodeContainer) BlockPhiTail(block ID) (ID, error) {
	b, err := c.Block(block)
	if err != nil {
		return NoRef, err
	}
	return b.PhiTail, nil
}

// BlockCallHead/Tail return the first/last call node resident in block.
func (c *CodeContainer) BlockCallHead(block ID) (ID, error) {
	b, err := c.Block(block)
	if err != nil {
		return NoRef, err
	}
	return b.CallHead, nil
}

func (c *CodeContainer) BlockCallTail(block ID) (ID, error) {
	b, err := c.Block(block)
	if err != nil {
		return NoRef, err
	}
	return b.CallTail, nil
}

// BlockInlineAssemblyHead/Tail return the first/last inline-assembly node
// resident in block.
func (c *CodeContainer) BlockInlineAssemblyHead(block ID) (ID, error) {
	b, err := c.Block(block)
	if err != nil {
		return NoRef, err
	}
	return b.AsmHead, nil
}

func (c *CodeContainer) BlockInlineAssemblyTail(block ID) (ID, error) {
	b, err := c.Block(block)
	if err != nil {
		return NoRef, err
	}
	return b.AsmTail, nil
}

// InstructionNextSibling/PrevSibling walk the program-order list. A
// dropped ref returns NotFound, so callers that drop the instruction just
// visited read its link before the drop, as DropDeadCode and the passes do.
func (c *CodeContainer) InstructionNextSibling(ref ID) (ID, error) {
	instr, err := c.Instr(ref)
	if err != nil {
		return NoRef, err
	}
	return instr.Siblings.Next, nil
}

func (c *CodeContainer) InstructionPrevSibling(ref ID) (ID, error) {
	instr, err := c.Instr(ref)
	if err != nil {
		return NoRef, err
	}
	return instr.Siblings.Prev, nil
}

// InstructionNextControl/PrevControl walk the control-flow sublist.
func (c *CodeContainer) InstructionNextControl(ref ID) (ID, error) {
	instr, err := c.Instr(ref)
	if err != nil {
		return NoRef, err
	}
	return instr.Control.Next, nil
}

func (c *CodeContainer) InstructionPrevControl(ref ID) (ID, error) {
	instr, err := c.Instr(ref)
	if err != nil {
		return NoRef, err
	}
	return instr.Control.Prev, nil
}

// PhiNextSibling/PrevSibling walk a block's phi list.
func (c *CodeContainer) PhiNextSibling(id ID) (ID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	phi, ok := c.phis[id]
	if !ok {
		return NoRef, kerr.New(kerr.NotFound, "ir.PhiNextSibling", "no such phi node")
	}
	return phi.siblingsNext, nil
}

func (c *CodeContainer) PhiPrevSibling(id ID) (ID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	phi, ok := c.phis[id]
	if !ok {
		return NoRef, kerr.New(kerr.NotFound, "ir.PhiPrevSibling", "no such phi node")
	}
	return phi.siblingsPrev, nil
}

// CallNextSibling/PrevSibling walk a block's call-site list.
func (c *CodeContainer) CallNextSibling(id ID) (ID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	call, ok := c.calls[id]
	if !ok {
		return NoRef, kerr.New(kerr.NotFound, "ir.CallNextSibling", "no such call node")
	}
	return call.siblingsNext, nil
}

func (c *CodeContainer) CallPrevSibling(id ID) (ID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	call, ok := c.calls[id]
	if !ok {
		return NoRef, kerr.New(kerr.NotFound, "ir.CallPrevSibling", "no such call node")
	}
	return call.siblingsPrev, nil
}

// InlineAssemblyNextSibling/PrevSibling walk a block's inline-assembly
// node list.
func (c *CodeContainer) InlineAssemblyNextSibling(id ID) (ID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	node, ok := c.inlineAsm[id]
	if !ok {
		return NoRef, kerr.New(kerr.NotFound, "ir.InlineAssemblyNextSibling", "no such inline assembly node")
	}
	return node.siblingsNext, nil
}

func (c *CodeContainer) InlineAssemblyPrevSibling(id ID) (ID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	node, ok := c.inlineAsm[id]
	if !ok {
		return NoRef, kerr.New(kerr.NotFound, "ir.InlineAssemblyPrevSibling", "no such inline assembly node")
	}
	return node.siblingsPrev, nil
}

// PhiLinks returns the phi's (predecessor block, value) pairs sorted by
// predecessor block ID, for deterministic iteration.
func (c *CodeContainer) PhiLinks(phiID ID) ([][2]ID, error) {
	phi, err := c.Phi(phiID)
	if err != nil {
		return nil, err
	}
	out := make([][2]ID, 0, len(phi.Links))
	for pred, val := range phi.Links {
		out = append(out, [2]ID{pred, val})
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out, nil
}

// DropDeadCode first drops now-dangling phi links from any surviving phi
// whose predecessor set shrank, then removes every instruction and block
// the supplied index reports as dead. Blocks are removed in ascending ID
// order so repeated runs over an unchanged container are deterministic.
func (c *CodeContainer) DropDeadCode(index DeadCodeIndex) error {
	blockIDs := c.Blocks()

	var deadBlocks []ID
	for _, b := range blockIDs {
		alive, err := index.IsBlockAlive(b)
		if err != nil {
			return kerr.Wrap(err, kerr.InvariantViolation, "ir.DropDeadCode", "dead code index failed on block")
		}
		if !alive {
			deadBlocks = append(deadBlocks, b)
		}
	}

	for _, b := range blockIDs {
		alive, err := index.IsBlockAlive(b)
		if err != nil || !alive {
			continue
		}
		head, err := c.BlockPhiHead(b)
		if err != nil {
			return err
		}
		for phiID := head; phiID != NoRef; {
			next, err := c.PhiNextSibling(phiID)
			if err != nil {
				return err
			}
			links, err := c.PhiLinks(phiID)
			if err != nil {
				return err
			}
			for _, link := range links {
				pred := link[0]
				stillPred, err := index.IsBlockPredecessor(b, pred)
				if err != nil {
					return kerr.Wrap(err, kerr.InvariantViolation, "ir.DropDeadCode", "dead code index failed on predecessor check")
				}
				if !stillPred {
					if err := c.PhiDropLink(phiID, pred); err != nil {
						return err
					}
				}
			}
			phiID = next
		}
	}

	var deadInstrs []ID
	for ref := range c.liveInstructionIDsSnapshot() {
		alive, err := index.IsInstructionAlive(ref)
		if err != nil {
			return kerr.Wrap(err, kerr.InvariantViolation, "ir.DropDeadCode", "dead code index failed on instruction")
		}
		if !alive {
			deadInstrs = append(deadInstrs, ref)
		}
	}
	// Remove in descending ID order: in well-formed SSA a use's ID is
	// greater than its definition's, so this clears the common case of
	// "dead instruction referenced only by other dead instructions"
	// without needing a fixpoint loop.
	sort.Slice(deadInstrs, func(i, j int) bool { return deadInstrs[i] > deadInstrs[j] })
	for _, ref := range deadInstrs {
		instr, err := c.Instr(ref)
		if err != nil {
			continue
		}
		if instr.Control.Prev != NoRef || instr.Control.Next != NoRef {
			_ = c.DropControl(ref)
		}
		if err := c.DropInstr(ref); err != nil {
			return err
		}
	}

	for _, b := range deadBlocks {
		if err := c.DropBlock(b); err != nil {
			return err
		}
	}
	return nil
}

func (c *CodeContainer) liveInstructionIDsSnapshot() map[ID]struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[ID]struct{}, len(c.instructions))
	for ref := range c.instructions {
		out[ref] = struct{}{}
	}
	return out
}
