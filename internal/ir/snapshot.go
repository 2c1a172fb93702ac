package ir

import kerr "kefir/internal/errors"

// The Restore* constructors below exist solely for internal/irformat's
// Load: reconstructing a container from a debug dump must reproduce the
// exact IDs the dump recorded, including the gaps left by entities
// dropped before the dump was taken, since operands and phi links
// reference those IDs directly. The ordinary New* constructors always
// draw the next value off a monotonic counter and cannot be made to
// "skip ahead" to an arbitrary ID, so Restore* bypasses the counter and
// then fast-forwards it past the restored ID.

func bumpPast(a *idAllocator, id ID) {
	if uint64(id) > a.next {
		a.next = uint64(id)
	}
}

func bumpCounterPast(counter *ID, id ID) {
	if id > *counter {
		*counter = id
	}
}

// RestoreType inserts a type-table entry under exactly id.
func (m *Module) RestoreType(entry TypeEntry) {
	m.Types[entry.ID] = &entry
	bumpCounterPast(&m.nextTypeID, entry.ID)
}

// RestoreFunctionDeclaration inserts a function declaration under exactly
// decl.ID, as recorded in a dump.
func (m *Module) RestoreFunctionDeclaration(decl FunctionDeclaration) {
	m.FunctionDeclarations[decl.ID] = &decl
	bumpCounterPast(&m.nextDeclID, decl.ID)
}

// RestoreData inserts a data object under exactly obj.ID.
func (m *Module) RestoreData(obj DataObject) {
	m.Data[obj.ID] = &obj
	bumpCounterPast(&m.nextDataID, obj.ID)
}

// RestoreStringLiteral inserts a string literal under exactly id.
func (m *Module) RestoreStringLiteral(id ID, value string) {
	m.StringLiterals[id] = value
	bumpCounterPast(&m.nextStrID, id)
}

// RestoreInlineAssemblyFragment inserts an inline-assembly source fragment
// under exactly id.
func (m *Module) RestoreInlineAssemblyFragment(id ID, source string) {
	m.InlineAssemblyFragments[id] = source
	bumpCounterPast(&m.nextAsmID, id)
}

// RestoreFunction registers a function under exactly id, bound to an
// already-restored declaration, with a fresh empty code container whose
// blocks/instructions/phis/calls/asm sites the caller populates via the
// other Restore* calls before the container is used.
func (m *Module) RestoreFunction(id, declID ID, localsTypeID ID) (*Function, error) {
	if _, ok := m.FunctionDeclarations[declID]; !ok {
		return nil, kerr.New(kerr.NotFound, "ir.Module.RestoreFunction", "no such function declaration")
	}
	fn := &Function{
		ID:            id,
		DeclarationID: declID,
		LocalsTypeID:  localsTypeID,
		Code:          NewCodeContainer(),
	}
	m.Functions[id] = fn
	bumpCounterPast(&m.nextFuncID, id)
	return fn, nil
}

// RestoreBlock inserts a block under exactly id, fast-forwarding the
// block allocator so the next NewBlock call still yields a fresh ID.
func (c *CodeContainer) RestoreBlock(id ID, asEntry bool, publicLabels []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.blocks[id]; exists {
		return kerr.New(kerr.InvariantViolation, "ir.RestoreBlock", "block ID already present")
	}
	if asEntry && c.hasEntry {
		return kerr.New(kerr.InvariantViolation, "ir.RestoreBlock", "container already has an entry point")
	}

	labels := make(map[string]struct{}, len(publicLabels))
	for _, l := range publicLabels {
		labels[l] = struct{}{}
	}
	c.blocks[id] = &Block{
		ID:           id,
		Content:      instructionList{Head: NoRef, Tail: NoRef},
		ControlFlow:  instructionList{Head: NoRef, Tail: NoRef},
		PublicLabels: labels,
	}
	if asEntry {
		c.entryPoint = id
		c.hasEntry = true
	}
	bumpPast(&c.blockAlloc, id)
	return nil
}

// RestoreInstruction appends an instruction under exactly id to the end
// of block's sibling list (and, if control is true, its control-flow
// sublist), recording its operand references in the use map. The event
// listener is never fired for a restored instruction: a reload is not a
// new mutation any live analysis needs to hear about.
func (c *CodeContainer) RestoreInstruction(id, block ID, op Operation, control bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.blocks[block]
	if !ok {
		return kerr.New(kerr.NotFound, "ir.RestoreInstruction", "no such block")
	}
	if _, exists := c.instructions[id]; exists {
		return kerr.New(kerr.InvariantViolation, "ir.RestoreInstruction", "instruction ID already present")
	}

	instr := &Instruction{
		ID:        id,
		BlockID:   block,
		Operation: op,
		Siblings:  instructionLink{Prev: b.Content.Tail, Next: NoRef},
		Control:   instructionLink{Prev: NoRef, Next: NoRef},
	}
	c.instructions[id] = instr
	if b.Content.Tail != NoRef {
		c.instructions[b.Content.Tail].Siblings.Next = id
	} else {
		b.Content.Head = id
	}
	b.Content.Tail = id

	if control {
		instr.Control.Prev = b.ControlFlow.Tail
		if b.ControlFlow.Tail != NoRef {
			c.instructions[b.ControlFlow.Tail].Control.Next = id
		} else {
			b.ControlFlow.Head = id
		}
		b.ControlFlow.Tail = id
	}

	for _, ref := range operandRefs(op) {
		if ref == NoRef {
			continue
		}
		if c.uses[ref] == nil {
			c.uses[ref] = make(map[ID]struct{})
		}
		c.uses[ref][id] = struct{}{}
	}

	bumpPast(&c.instrAlloc, id)
	return nil
}

// RestorePhi inserts a phi node under exactly id, resident in block and
// materialized as outputRef (an instruction already restored via
// RestoreInstruction), with the given predecessor-to-value link set.
func (c *CodeContainer) RestorePhi(id, block, outputRef ID, links map[ID]ID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.blocks[block]
	if !ok {
		return kerr.New(kerr.NotFound, "ir.RestorePhi", "no such block")
	}
	if _, exists := c.phis[id]; exists {
		return kerr.New(kerr.InvariantViolation, "ir.RestorePhi", "phi ID already present")
	}

	linkCopy := make(map[ID]ID, len(links))
	for k, v := range links {
		linkCopy[k] = v
	}
	node := &PhiNode{
		BlockID:      block,
		NodeID:       id,
		Links:        linkCopy,
		OutputRef:    outputRef,
		siblingsPrev: b.PhiTail,
		siblingsNext: NoRef,
	}
	if b.PhiTail != NoRef {
		c.phis[b.PhiTail].siblingsNext = id
	} else {
		b.PhiHead = id
	}
	b.PhiTail = id
	c.phis[id] = node

	for _, v := range linkCopy {
		if v == NoRef {
			continue
		}
		if c.uses[v] == nil {
			c.uses[v] = make(map[ID]struct{})
		}
		c.uses[v][outputRef] = struct{}{}
	}

	bumpPast(&c.phiAlloc, id)
	return nil
}

// RestoreCall inserts a call-site node under exactly id.
func (c *CodeContainer) RestoreCall(id, block, funcDeclID, outputRef, returnSpace ID, args []ID, isTail bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.blocks[block]
	if !ok {
		return kerr.New(kerr.NotFound, "ir.RestoreCall", "no such block")
	}
	if _, exists := c.calls[id]; exists {
		return kerr.New(kerr.InvariantViolation, "ir.RestoreCall", "call ID already present")
	}

	node := &CallNode{
		BlockID:               block,
		NodeID:                id,
		FunctionDeclarationID:  funcDeclID,
		OutputRef:              outputRef,
		Arguments:              append([]ID(nil), args...),
		ReturnSpace:            returnSpace,
		IsTailCall:             isTail,
		siblingsPrev:           b.CallTail,
		siblingsNext:           NoRef,
	}
	if b.CallTail != NoRef {
		c.calls[b.CallTail].siblingsNext = id
	} else {
		b.CallHead = id
	}
	b.CallTail = id
	c.calls[id] = node

	if outputRef != NoRef {
		for _, ref := range args {
			if ref == NoRef {
				continue
			}
			if c.uses[ref] == nil {
				c.uses[ref] = make(map[ID]struct{})
			}
			c.uses[ref][outputRef] = struct{}{}
		}
		if returnSpace != NoRef {
			if c.uses[returnSpace] == nil {
				c.uses[returnSpace] = make(map[ID]struct{})
			}
			c.uses[returnSpace][outputRef] = struct{}{}
		}
	}

	bumpPast(&c.callAlloc, id)
	return nil
}

// RestoreInlineAssembly inserts an inline-assembly site node under
// exactly id.
func (c *CodeContainer) RestoreInlineAssembly(id, block, asmID, outputRef, defaultJump ID, params []InlineAssemblyParameter, jumpTargets map[ID]ID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.blocks[block]
	if !ok {
		return kerr.New(kerr.NotFound, "ir.RestoreInlineAssembly", "no such block")
	}
	if _, exists := c.inlineAsm[id]; exists {
		return kerr.New(kerr.InvariantViolation, "ir.RestoreInlineAssembly", "inline assembly ID already present")
	}

	targets := make(map[ID]ID, len(jumpTargets))
	for k, v := range jumpTargets {
		targets[k] = v
	}
	node := &InlineAssemblyNode{
		BlockID:           block,
		NodeID:            id,
		InlineAsmID:       asmID,
		OutputRef:         outputRef,
		Parameters:        append([]InlineAssemblyParameter(nil), params...),
		DefaultJumpTarget: defaultJump,
		JumpTargets:       targets,
		siblingsPrev:      b.AsmTail,
		siblingsNext:      NoRef,
	}
	if b.AsmTail != NoRef {
		c.inlineAsm[b.AsmTail].siblingsNext = id
	} else {
		b.AsmHead = id
	}
	b.AsmTail = id
	c.inlineAsm[id] = node

	if outputRef != NoRef {
		for _, p := range node.Parameters {
			if p.ReadRef == NoRef {
				continue
			}
			if c.uses[p.ReadRef] == nil {
				c.uses[p.ReadRef] = make(map[ID]struct{})
			}
			c.uses[p.ReadRef][outputRef] = struct{}{}
		}
	}

	bumpPast(&c.inlineAsmAlloc, id)
	return nil
}
