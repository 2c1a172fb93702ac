package ir

import kerr "kefir/internal/errors"

// NewPhi allocates a phi node resident in block, together with its
// output instruction (opcode PHI). The phi starts with an empty link
// set; PhiAttach must be called once per predecessor before the phi is
// considered well-formed (invariant 5).
func (c *CodeContainer) NewPhi(block ID) (ID, ID, error) {
	c.mu.Lock()
	b, ok := c.blocks[block]
	if !ok {
		c.mu.Unlock()
		return NoRef, NoRef, kerr.New(kerr.NotFound, "ir.NewPhi", "no such block")
	}

	phiID := c.phiAlloc.alloc()
	phi := &PhiNode{
		BlockID:      block,
		NodeID:       phiID,
		Links:        make(map[ID]ID),
		siblingsPrev: b.PhiTail,
		siblingsNext: NoRef,
	}
	if b.PhiTail != NoRef {
		c.phis[b.PhiTail].siblingsNext = phiID
	} else {
		b.PhiHead = phiID
	}
	b.PhiTail = phiID
	c.phis[phiID] = phi
	c.mu.Unlock()

	outputRef, err := c.NewInstruction(block, Operation{
		Opcode:     OpPhi,
		Parameters: OperationParameters{PhiRef: phiID},
	})
	if err != nil {
		return NoRef, NoRef, err
	}

	c.mu.Lock()
	phi.OutputRef = outputRef
	c.mu.Unlock()
	return phiID, outputRef, nil
}

// Phi returns the phi node with the given ID.
func (c *CodeContainer) Phi(id ID) (*PhiNode, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	phi, ok := c.phis[id]
	if !ok {
		return nil, kerr.New(kerr.NotFound, "ir.Phi", "no such phi node")
	}
	return phi, nil
}

// PhiAttach records that valueRef is the phi's incoming value from
// predBlock, overwriting any existing link for that predecessor and
// registering the use.
func (c *CodeContainer) PhiAttach(phiID, predBlock, valueRef ID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	phi, ok := c.phis[phiID]
	if !ok {
		return kerr.New(kerr.NotFound, "ir.PhiAttach", "no such phi node")
	}
	if old, existed := phi.Links[predBlock]; existed {
		if users := c.uses[old]; users != nil {
			delete(users, phi.OutputRef)
		}
	}
	phi.Links[predBlock] = valueRef
	if valueRef != NoRef {
		if c.uses[valueRef] == nil {
			c.uses[valueRef] = make(map[ID]struct{})
		}
		c.uses[valueRef][phi.OutputRef] = struct{}{}
	}
	return nil
}

// PhiLinkFor returns the value linked to predBlock, or NoRef with
// kerr.NotFound if no link has been attached for that predecessor yet.
func (c *CodeContainer) PhiLinkFor(phiID, predBlock ID) (ID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	phi, ok := c.phis[phiID]
	if !ok {
		return NoRef, kerr.New(kerr.NotFound, "ir.PhiLinkFor", "no such phi node")
	}
	ref, ok := phi.Links[predBlock]
	if !ok {
		return NoRef, kerr.New(kerr.NotFound, "ir.PhiLinkFor", "no link for predecessor")
	}
	return ref, nil
}

// PhiDropLink removes the link for predBlock, used when a predecessor
// block is pruned from the control-flow graph.
func (c *CodeContainer) PhiDropLink(phiID, predBlock ID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	phi, ok := c.phis[phiID]
	if !ok {
		return kerr.New(kerr.NotFound, "ir.PhiDropLink", "no such phi node")
	}
	if old, existed := phi.Links[predBlock]; existed {
		if users := c.uses[old]; users != nil {
			delete(users, phi.OutputRef)
		}
	}
	delete(phi.Links, predBlock)
	return nil
}

// DropPhi removes a phi node with no remaining links and no remaining
// uses of its output, unlinking it from its block's phi sibling list. It
// does not drop the output instruction itself; callers combine this with
// DropInstr once the output's use-set is empty, mirroring DropInstr's own
// contract.
func (c *CodeContainer) DropPhi(phiID ID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	phi, ok := c.phis[phiID]
	if !ok {
		return kerr.New(kerr.NotFound, "ir.DropPhi", "no such phi node")
	}
	if len(phi.Links) > 0 {
		return kerr.New(kerr.InvariantViolation, "ir.DropPhi", "phi still has predecessor links")
	}

	b, ok := c.blocks[phi.BlockID]
	if !ok {
		return kerr.New(kerr.NotFound, "ir.DropPhi", "no such block")
	}
	if phi.siblingsPrev != NoRef {
		c.phis[phi.siblingsPrev].siblingsNext = phi.siblingsNext
	} else {
		b.PhiHead = phi.siblingsNext
	}
	if phi.siblingsNext != NoRef {
		c.phis[phi.siblingsNext].siblingsPrev = phi.siblingsPrev
	} else {
		b.PhiTail = phi.siblingsPrev
	}

	delete(c.phis, phiID)
	return nil
}

// NewCall allocates a call-site node (and its output instruction) with
// argCount argument slots, all initially NoRef.
func (c *CodeContainer) NewCall(block, funcDeclID ID, argCount uint64, indirectRef ID) (ID, ID, error) {
	return c.newCallNode(block, funcDeclID, argCount, indirectRef, false)
}

// NewTailCall is like NewCall but marks the call site as a tail call; its
// output instruction doubles as the block's terminator.
func (c *CodeContainer) NewTailCall(block, funcDeclID ID, argCount uint64, indirectRef ID) (ID, ID, error) {
	return c.newCallNode(block, funcDeclID, argCount, indirectRef, true)
}

func (c *CodeContainer) newCallNode(block, funcDeclID ID, argCount uint64, indirectRef ID, tail bool) (ID, ID, error) {
	c.mu.Lock()
	b, ok := c.blocks[block]
	if !ok {
		c.mu.Unlock()
		return NoRef, NoRef, kerr.New(kerr.NotFound, "ir.NewCall", "no such block")
	}

	callID := c.callAlloc.alloc()
	call := &CallNode{
		BlockID:               block,
		NodeID:                callID,
		FunctionDeclarationID: funcDeclID,
		Arguments:             make([]ID, argCount),
		ReturnSpace:           NoRef,
		IsTailCall:            tail,
		siblingsPrev:          b.CallTail,
		siblingsNext:          NoRef,
	}
	for i := range call.Arguments {
		call.Arguments[i] = NoRef
	}
	if b.CallTail != NoRef {
		c.calls[b.CallTail].siblingsNext = callID
	} else {
		b.CallHead = callID
	}
	b.CallTail = callID
	c.calls[callID] = call
	c.mu.Unlock()

	opcode := OpCall
	if tail {
		opcode = OpTailCall
	} else if indirectRef != NoRef {
		opcode = OpInvoke
	}

	outputRef, err := c.NewInstruction(block, Operation{
		Opcode: opcode,
		Parameters: OperationParameters{
			FunctionCall: FunctionCallRef{CallRef: callID, IndirectRef: indirectRef},
		},
	})
	if err != nil {
		return NoRef, NoRef, err
	}

	c.mu.Lock()
	call.OutputRef = outputRef
	c.mu.Unlock()
	return callID, outputRef, nil
}

// Call returns the call node with the given ID.
func (c *CodeContainer) Call(id ID) (*CallNode, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	call, ok := c.calls[id]
	if !ok {
		return nil, kerr.New(kerr.NotFound, "ir.Call", "no such call node")
	}
	return call, nil
}

// CallSetArgument binds argument index to ref, registering the use.
func (c *CodeContainer) CallSetArgument(callID ID, index uint64, ref ID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	call, ok := c.calls[callID]
	if !ok {
		return kerr.New(kerr.NotFound, "ir.CallSetArgument", "no such call node")
	}
	if index >= uint64(len(call.Arguments)) {
		return kerr.New(kerr.InvalidArgument, "ir.CallSetArgument", "argument index out of range")
	}
	if old := call.Arguments[index]; old != NoRef {
		if users := c.uses[old]; users != nil {
			delete(users, call.OutputRef)
		}
	}
	call.Arguments[index] = ref
	if ref != NoRef {
		if c.uses[ref] == nil {
			c.uses[ref] = make(map[ID]struct{})
		}
		c.uses[ref][call.OutputRef] = struct{}{}
	}
	return nil
}

// CallGetArgument returns the value bound to argument index.
func (c *CodeContainer) CallGetArgument(callID ID, index uint64) (ID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	call, ok := c.calls[callID]
	if !ok {
		return NoRef, kerr.New(kerr.NotFound, "ir.CallGetArgument", "no such call node")
	}
	if index >= uint64(len(call.Arguments)) {
		return NoRef, kerr.New(kerr.InvalidArgument, "ir.CallGetArgument", "argument index out of range")
	}
	return call.Arguments[index], nil
}

// CallSetReturnSpace binds the instruction providing indirect return-value
// storage (used when the ABI returns an aggregate via a hidden pointer).
func (c *CodeContainer) CallSetReturnSpace(callID, ref ID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	call, ok := c.calls[callID]
	if !ok {
		return kerr.New(kerr.NotFound, "ir.CallSetReturnSpace", "no such call node")
	}
	call.ReturnSpace = ref
	if ref != NoRef {
		if c.uses[ref] == nil {
			c.uses[ref] = make(map[ID]struct{})
		}
		c.uses[ref][call.OutputRef] = struct{}{}
	}
	return nil
}

// NewInlineAssembly allocates an inline-assembly site node with
// paramCount operand slots.
func (c *CodeContainer) NewInlineAssembly(block, asmID ID, paramCount uint64) (ID, ID, error) {
	c.mu.Lock()
	b, ok := c.blocks[block]
	if !ok {
		c.mu.Unlock()
		return NoRef, NoRef, kerr.New(kerr.NotFound, "ir.NewInlineAssembly", "no such block")
	}

	iasmID := c.inlineAsmAlloc.alloc()
	node := &InlineAssemblyNode{
		BlockID:           block,
		NodeID:            iasmID,
		InlineAsmID:       asmID,
		Parameters:        make([]InlineAssemblyParameter, paramCount),
		DefaultJumpTarget: NoRef,
		JumpTargets:       make(map[ID]ID),
		siblingsPrev:      b.AsmTail,
		siblingsNext:      NoRef,
	}
	if b.AsmTail != NoRef {
		c.inlineAsm[b.AsmTail].siblingsNext = iasmID
	} else {
		b.AsmHead = iasmID
	}
	b.AsmTail = iasmID
	c.inlineAsm[iasmID] = node
	c.mu.Unlock()

	outputRef, err := c.NewInstruction(block, Operation{
		Opcode:     OpInlineAssembly,
		Parameters: OperationParameters{InlineAsmRef: iasmID},
	})
	if err != nil {
		return NoRef, NoRef, err
	}

	c.mu.Lock()
	node.OutputRef = outputRef
	c.mu.Unlock()
	return iasmID, outputRef, nil
}

// InlineAssembly returns the inline-assembly node with the given ID.
func (c *CodeContainer) InlineAssembly(id ID) (*InlineAssemblyNode, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	node, ok := c.inlineAsm[id]
	if !ok {
		return nil, kerr.New(kerr.NotFound, "ir.InlineAssembly", "no such inline assembly node")
	}
	return node, nil
}

// InlineAssemblyGetParameter returns operand index.
func (c *CodeContainer) InlineAssemblyGetParameter(id ID, index uint64) (InlineAssemblyParameter, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	node, ok := c.inlineAsm[id]
	if !ok {
		return InlineAssemblyParameter{}, kerr.New(kerr.NotFound, "ir.InlineAssemblyGetParameter", "no such inline assembly node")
	}
	if index >= uint64(len(node.Parameters)) {
		return InlineAssemblyParameter{}, kerr.New(kerr.InvalidArgument, "ir.InlineAssemblyGetParameter", "parameter index out of range")
	}
	return node.Parameters[index], nil
}

// InlineAssemblySetParameter binds operand index.
func (c *CodeContainer) InlineAssemblySetParameter(id ID, index uint64, param InlineAssemblyParameter) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	node, ok := c.inlineAsm[id]
	if !ok {
		return kerr.New(kerr.NotFound, "ir.InlineAssemblySetParameter", "no such inline assembly node")
	}
	if index >= uint64(len(node.Parameters)) {
		return kerr.New(kerr.InvalidArgument, "ir.InlineAssemblySetParameter", "parameter index out of range")
	}
	node.Parameters[index] = param
	if param.ReadRef != NoRef {
		if c.uses[param.ReadRef] == nil {
			c.uses[param.ReadRef] = make(map[ID]struct{})
		}
		c.uses[param.ReadRef][node.OutputRef] = struct{}{}
	}
	return nil
}

// InlineAssemblySetDefaultJumpTarget sets the block entered when the
// asm fragment falls through without taking a labeled jump target.
func (c *CodeContainer) InlineAssemblySetDefaultJumpTarget(id, block ID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	node, ok := c.inlineAsm[id]
	if !ok {
		return kerr.New(kerr.NotFound, "ir.InlineAssemblySetDefaultJumpTarget", "no such inline assembly node")
	}
	node.DefaultJumpTarget = block
	return nil
}

// InlineAssemblyAddJumpTarget records that the asm label identified by key
// transfers control to block. Predecessors computed by
// internal/ir/oracle must include every block named this way.
func (c *CodeContainer) InlineAssemblyAddJumpTarget(id, key, block ID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	node, ok := c.inlineAsm[id]
	if !ok {
		return kerr.New(kerr.NotFound, "ir.InlineAssemblyAddJumpTarget", "no such inline assembly node")
	}
	node.JumpTargets[key] = block
	return nil
}

// InlineAssemblyJumpTarget looks up the block a given asm label key jumps
// to.
func (c *CodeContainer) InlineAssemblyJumpTarget(id, key ID) (ID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	node, ok := c.inlineAsm[id]
	if !ok {
		return NoRef, kerr.New(kerr.NotFound, "ir.InlineAssemblyJumpTarget", "no such inline assembly node")
	}
	block, ok := node.JumpTargets[key]
	if !ok {
		return NoRef, kerr.New(kerr.NotFound, "ir.InlineAssemblyJumpTarget", "no such jump target key")
	}
	return block, nil
}
