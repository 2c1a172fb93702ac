// Package ir implements the optimizer's intermediate representation: a
// dense-arena-ID code container with strict structural invariants,
// generalizing the interface-and-switch-dispatch idiom used throughout
// this codebase's front end to the SSA-like value graph the optimizer
// core operates on.
package ir

import (
	"sort"

	"github.com/sasha-s/go-deadlock"

	kerr "kefir/internal/errors"
)

type instructionLink struct {
	Prev ID
	Next ID
}

// Instruction is one arena-allocated IR value or side-effecting action.
type Instruction struct {
	ID        ID
	BlockID   ID
	Operation Operation

	Siblings instructionLink
	Control  instructionLink
}

type instructionList struct {
	Head ID
	Tail ID
}

// Block is a basic block: an ordered sibling list of every instruction
// textually in it, a control-flow sublist of just the side-effecting and
// terminating ones, and separate pooled-entity sublists for its phi, call
// and inline-assembly nodes.
type Block struct {
	ID ID

	Content      instructionList
	ControlFlow  instructionList
	PhiHead      ID
	PhiTail      ID
	CallHead     ID
	CallTail     ID
	AsmHead      ID
	AsmTail      ID
	PublicLabels map[string]struct{}
}

// PhiNode is a pooled phi entity: its link set maps predecessor block ID
// to the value instruction coming from that predecessor, and its
// OutputRef names the PHI-opcode instruction, resident in the phi's own
// block, that the rest of the graph actually references.
type PhiNode struct {
	BlockID        ID
	NodeID         ID
	Links          map[ID]ID
	OutputRef      ID
	siblingsPrev   ID
	siblingsNext   ID
}

// CallNode is a pooled call-site entity carrying its argument array and
// optional return-value storage slot, distinct from a plain Instruction
// because its arity is dynamic.
type CallNode struct {
	BlockID               ID
	NodeID                ID
	FunctionDeclarationID ID
	OutputRef             ID
	Arguments             []ID
	ReturnSpace           ID
	IsTailCall            bool
	siblingsPrev          ID
	siblingsNext          ID
}

// InlineAssemblyParameter pairs the SSA value read by an inline-assembly
// operand with the instruction (if any) that must store its result back.
type InlineAssemblyParameter struct {
	ReadRef      ID
	LoadStoreRef ID
}

// InlineAssemblyNode is a pooled inline-assembly site: its own operand
// array plus a jump-target table for asm fragments with embedded labels.
type InlineAssemblyNode struct {
	BlockID           ID
	NodeID            ID
	InlineAsmID       ID
	OutputRef         ID
	Parameters        []InlineAssemblyParameter
	DefaultJumpTarget ID
	JumpTargets       map[ID]ID
	siblingsPrev      ID
	siblingsNext      ID
}

// EventListener is notified synchronously as new instructions are
// created, letting an incremental analysis keep its own bookkeeping
// current without re-scanning the container after every mutation.
type EventListener interface {
	OnNewInstruction(c *CodeContainer, ref ID) error
}

// DeadCodeIndex is the oracle interface DropDeadCode consults. It is
// supplied by internal/ir/oracle rather than computed by the container
// itself, keeping the container a pure data structure.
type DeadCodeIndex interface {
	IsBlockAlive(block ID) (bool, error)
	IsInstructionAlive(instr ID) (bool, error)
	IsBlockPredecessor(block, candidate ID) (bool, error)
}

// CodeContainer is the arena-backed IR for a single function. Every
// method takes a deadlock-detecting mutex for its duration, so concurrent
// callers are serialized call by call; go-deadlock reports lock-order
// inversions and over-long waits, not two passes interleaving their calls
// on one container (spec §5 allows only one pass at a time).
type CodeContainer struct {
	mu deadlock.Mutex

	instructions map[ID]*Instruction
	instrAlloc   idAllocator

	blocks     map[ID]*Block
	blockAlloc idAllocator

	phis     map[ID]*PhiNode
	phiAlloc idAllocator

	calls     map[ID]*CallNode
	callAlloc idAllocator

	inlineAsm     map[ID]*InlineAssemblyNode
	inlineAsmAlloc idAllocator

	entryPoint ID
	hasEntry   bool

	// uses[x] is the set of instruction IDs whose operation directly
	// references x. Maintained incrementally by every mutation that adds
	// or removes a reference, never recomputed by scanning.
	uses map[ID]map[ID]struct{}

	listener EventListener
}

// NewCodeContainer returns an empty container ready for NewBlock calls.
func NewCodeContainer() *CodeContainer {
	return &CodeContainer{
		instructions: make(map[ID]*Instruction),
		blocks:       make(map[ID]*Block),
		phis:         make(map[ID]*PhiNode),
		calls:        make(map[ID]*CallNode),
		inlineAsm:    make(map[ID]*InlineAssemblyNode),
		uses:         make(map[ID]map[ID]struct{}),
	}
}

// SetEventListener installs (or clears, with nil) the listener notified on
// every NewInstruction call.
func (c *CodeContainer) SetEventListener(l EventListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listener = l
}

// IsEmpty reports whether the container has no blocks yet.
func (c *CodeContainer) IsEmpty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.blocks) == 0
}

// Length returns the number of live instructions.
func (c *CodeContainer) Length() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.instructions)
}

// EntryPoint returns the container's entry block. Returns false if no
// block has been designated as the entry yet.
func (c *CodeContainer) EntryPoint() (ID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entryPoint, c.hasEntry
}

// NewBlock allocates a new, empty basic block. If asEntry is true it
// becomes the container's entry point; a container must have exactly one
// entry point, so a second asEntry=true call is an invariant violation.
func (c *CodeContainer) NewBlock(asEntry bool) (ID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if asEntry && c.hasEntry {
		return NoRef, kerr.New(kerr.InvariantViolation, "ir.NewBlock", "container already has an entry point")
	}

	id := c.blockAlloc.alloc()
	c.blocks[id] = &Block{
		ID:           id,
		Content:      instructionList{Head: NoRef, Tail: NoRef},
		ControlFlow:  instructionList{Head: NoRef, Tail: NoRef},
		PublicLabels: make(map[string]struct{}),
	}
	if asEntry {
		c.entryPoint = id
		c.hasEntry = true
	}
	return id, nil
}

// Block returns the block with the given ID.
func (c *CodeContainer) Block(id ID) (*Block, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.blocks[id]
	if !ok {
		return nil, kerr.New(kerr.NotFound, "ir.Block", "no such block")
	}
	return b, nil
}

// BlockCount returns the number of live blocks.
func (c *CodeContainer) BlockCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.blocks)
}

// Blocks returns every live block ID in ascending order, the container's
// one deterministic iteration order (id allocation order, since ids are
// monotonic and never reused).
func (c *CodeContainer) Blocks() []ID {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]ID, 0, len(c.blocks))
	for id := range c.blocks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// AddBlockPublicLabel marks block as externally addressable under name.
// Mem2Reg's scan phase must refuse to promote a function containing any
// publicly labeled block, since indirect control transfers elsewhere in
// the program may target it directly.
func (c *CodeContainer) AddBlockPublicLabel(block ID, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.blocks[block]
	if !ok {
		return kerr.New(kerr.NotFound, "ir.AddBlockPublicLabel", "no such block")
	}
	b.PublicLabels[name] = struct{}{}
	return nil
}

// DropBlock removes a block and every instruction, phi, call and
// inline-assembly node still resident in it. Callers (DropDeadCode,
// DeadBlockRemoval) are responsible for having already verified nothing
// outside the block still references entities inside it.
func (c *CodeContainer) DropBlock(id ID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.blocks[id]
	if !ok {
		return kerr.New(kerr.NotFound, "ir.DropBlock", "no such block")
	}

	for ref := b.Content.Head; ref != NoRef; {
		instr := c.instructions[ref]
		next := instr.Siblings.Next
		c.removeInstructionLocked(ref)
		ref = next
	}
	for pid := b.PhiHead; pid != NoRef; {
		phi := c.phis[pid]
		next := phi.siblingsNext
		delete(c.phis, pid)
		pid = next
	}
	for cid := b.CallHead; cid != NoRef; {
		call := c.calls[cid]
		next := call.siblingsNext
		delete(c.calls, cid)
		cid = next
	}
	for aid := b.AsmHead; aid != NoRef; {
		asm := c.inlineAsm[aid]
		next := asm.siblingsNext
		delete(c.inlineAsm, aid)
		aid = next
	}

	delete(c.blocks, id)
	if c.hasEntry && c.entryPoint == id {
		c.hasEntry = false
	}
	return nil
}

// Instr returns the instruction with the given reference.
func (c *CodeContainer) Instr(ref ID) (*Instruction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	instr, ok := c.instructions[ref]
	if !ok {
		return nil, kerr.New(kerr.NotFound, "ir.Instr", "no such instruction")
	}
	return instr, nil
}

func operandRefs(op Operation) []ID {
	refs := make([]ID, 0, 8)
	refs = append(refs, op.Parameters.Refs[:]...)
	if op.Parameters.IRRef != NoRef {
		refs = append(refs, op.Parameters.IRRef)
	}
	if op.Parameters.Branch.ConditionRef != NoRef {
		refs = append(refs, op.Parameters.Branch.ConditionRef)
	}
	if op.Parameters.FunctionCall.IndirectRef != NoRef {
		refs = append(refs, op.Parameters.FunctionCall.IndirectRef)
	}
	return refs
}

// NewInstruction appends a new instruction with the given operation to
// the end of block's sibling list, records its operand references in the
// use map, and fires the event listener (if any) before returning.
func (c *CodeContainer) NewInstruction(block ID, op Operation) (ID, error) {
	c.mu.Lock()

	b, ok := c.blocks[block]
	if !ok {
		c.mu.Unlock()
		return NoRef, kerr.New(kerr.NotFound, "ir.NewInstruction", "no such block")
	}

	id := c.instrAlloc.alloc()
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

	for _, ref := range operandRefs(op) {
		if ref == NoRef {
			continue
		}
		if c.uses[ref] == nil {
			c.uses[ref] = make(map[ID]struct{})
		}
		c.uses[ref][id] = struct{}{}
	}

	listener := c.listener
	c.mu.Unlock()

	if listener != nil {
		if err := listener.OnNewInstruction(c, id); err != nil {
			return id, kerr.Wrap(err, kerr.InvariantViolation, "ir.NewInstruction", "event listener rejected new instruction")
		}
	}
	return id, nil
}

// removeInstructionLocked unlinks instr from its sibling and control
// lists and drops its use-map entries. Caller holds c.mu.
func (c *CodeContainer) removeInstructionLocked(ref ID) {
	instr, ok := c.instructions[ref]
	if !ok {
		return
	}
	b := c.blocks[instr.BlockID]

	if instr.Siblings.Prev != NoRef {
		c.instructions[instr.Siblings.Prev].Siblings.Next = instr.Siblings.Next
	} else if b != nil {
		b.Content.Head = instr.Siblings.Next
	}
	if instr.Siblings.Next != NoRef {
		c.instructions[instr.Siblings.Next].Siblings.Prev = instr.Siblings.Prev
	} else if b != nil {
		b.Content.Tail = instr.Siblings.Prev
	}

	c.unlinkControlLocked(instr)

	delete(c.instructions, ref)
	delete(c.uses, ref)
	for _, users := range c.uses {
		delete(users, ref)
	}
}

// DropInstr removes an instruction. The caller must already have replaced
// any remaining uses of it (invariant 1: no live instruction may reference
// a dropped one); DropInstr returns InvariantViolation if uses remain.
func (c *CodeContainer) DropInstr(ref ID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.instructions[ref]; !ok {
		return kerr.New(kerr.NotFound, "ir.DropInstr", "no such instruction")
	}
	if users := c.uses[ref]; len(users) > 0 {
		return kerr.New(kerr.InvariantViolation, "ir.DropInstr", "instruction still has uses")
	}
	c.removeInstructionLocked(ref)
	return nil
}

// CopyInstruction duplicates src's operation into a new instruction
// appended to block, without copying use relationships (the copy starts
// unused). Used by passes that need to rematerialize a value in a
// different block (PhiPull sinking a uniform phi, for instance).
func (c *CodeContainer) CopyInstruction(block, src ID) (ID, error) {
	c.mu.Lock()
	instr, ok := c.instructions[src]
	if !ok {
		c.mu.Unlock()
		return NoRef, kerr.New(kerr.NotFound, "ir.CopyInstruction", "no such source instruction")
	}
	op := instr.Operation
	c.mu.Unlock()
	return c.NewInstruction(block, op)
}

// ReplaceReferences rewrites every remaining use of oldRef to refer to
// newRef instead, merging oldRef's use-set into newRef's. It does not
// drop oldRef itself; callers combine this with DropInstr once oldRef's
// use-set is empty.
func (c *CodeContainer) ReplaceReferences(oldRef, newRef ID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	users, ok := c.uses[oldRef]
	if !ok || len(users) == 0 {
		return nil
	}

	for userRef := range users {
		instr, ok := c.instructions[userRef]
		if !ok {
			continue
		}
		replaceOperandRef(&instr.Operation, oldRef, newRef)
		c.replacePooledOperandRef(instr, userRef, oldRef, newRef)
		if c.uses[newRef] == nil {
			c.uses[newRef] = make(map[ID]struct{})
		}
		c.uses[newRef][userRef] = struct{}{}
	}
	delete(c.uses, oldRef)
	return nil
}

func replaceOperandRef(op *Operation, oldRef, newRef ID) {
	for i := range op.Parameters.Refs {
		if op.Parameters.Refs[i] == oldRef {
			op.Parameters.Refs[i] = newRef
		}
	}
	if op.Parameters.IRRef == oldRef {
		op.Parameters.IRRef = newRef
	}
	if op.Parameters.Branch.ConditionRef == oldRef {
		op.Parameters.Branch.ConditionRef = newRef
	}
	if op.Parameters.FunctionCall.IndirectRef == oldRef {
		op.Parameters.FunctionCall.IndirectRef = newRef
	}
}

// replacePooledOperandRef rewrites oldRef to newRef inside the pooled
// struct backing userRef, if userRef is a phi/call/inline-assembly output
// instruction. Those nodes register their referencing links in c.uses
// keyed by their OutputRef, but the actual referencing fields (phi
// Links, call Arguments/ReturnSpace, asm Parameters[].ReadRef) live on
// the separate pooled struct rather than on userRef's own
// Operation.Parameters, so replaceOperandRef alone never reaches them.
// Caller holds c.mu.
func (c *CodeContainer) replacePooledOperandRef(instr *Instruction, userRef, oldRef, newRef ID) {
	switch instr.Operation.Opcode {
	case OpPhi:
		phi, ok := c.phis[instr.Operation.Parameters.PhiRef]
		if !ok {
			return
		}
		for pred, ref := range phi.Links {
			if ref == oldRef {
				phi.Links[pred] = newRef
			}
		}
	case OpCall, OpTailCall, OpInvoke:
		call, ok := c.calls[instr.Operation.Parameters.FunctionCall.CallRef]
		if !ok {
			return
		}
		for i, ref := range call.Arguments {
			if ref == oldRef {
				call.Arguments[i] = newRef
			}
		}
		if call.ReturnSpace == oldRef {
			call.ReturnSpace = newRef
		}
	case OpInlineAssembly:
		node, ok := c.inlineAsm[instr.Operation.Parameters.InlineAsmRef]
		if !ok {
			return
		}
		for i, param := range node.Parameters {
			if param.ReadRef == oldRef {
				node.Parameters[i].ReadRef = newRef
			}
		}
	}
}

// InstructionUses returns the IDs of every live instruction directly
// referencing ref, in ascending order.
func (c *CodeContainer) InstructionUses(ref ID) []ID {
	c.mu.Lock()
	defer c.mu.Unlock()
	users := c.uses[ref]
	out := make([]ID, 0, len(users))
	for u := range users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// AddControl appends ref to block's control-flow sublist. Every
// side-effecting or terminating instruction must be added to its block's
// control-flow list exactly once (invariant 3: the list is a subsequence
// of the sibling list in the same relative order).
func (c *CodeContainer) AddControl(block, ref ID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.blocks[block]
	if !ok {
		return kerr.New(kerr.NotFound, "ir.AddControl", "no such block")
	}
	instr, ok := c.instructions[ref]
	if !ok {
		return kerr.New(kerr.NotFound, "ir.AddControl", "no such instruction")
	}
	if instr.Control.Prev != NoRef || instr.Control.Next != NoRef || b.ControlFlow.Head == ref {
		return kerr.New(kerr.InvariantViolation, "ir.AddControl", "instruction already on a control-flow list")
	}

	instr.Control = instructionLink{Prev: b.ControlFlow.Tail, Next: NoRef}
	if b.ControlFlow.Tail != NoRef {
		c.instructions[b.ControlFlow.Tail].Control.Next = ref
	} else {
		b.ControlFlow.Head = ref
	}
	b.ControlFlow.Tail = ref
	return nil
}

// InsertControl inserts ref into block's control-flow sublist immediately
// after the entity named by after (NoRef to insert at the head).
func (c *CodeContainer) InsertControl(block, after, ref ID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.blocks[block]
	if !ok {
		return kerr.New(kerr.NotFound, "ir.InsertControl", "no such block")
	}
	instr, ok := c.instructions[ref]
	if !ok {
		return kerr.New(kerr.NotFound, "ir.InsertControl", "no such instruction")
	}

	var nextRef ID
	if after == NoRef {
		nextRef = b.ControlFlow.Head
		b.ControlFlow.Head = ref
	} else {
		afterInstr, ok := c.instructions[after]
		if !ok {
			return kerr.New(kerr.NotFound, "ir.InsertControl", "no such predecessor instruction")
		}
		nextRef = afterInstr.Control.Next
		afterInstr.Control.Next = ref
	}

	instr.Control.Prev = after
	instr.Control.Next = nextRef
	if nextRef != NoRef {
		c.instructions[nextRef].Control.Prev = ref
	} else {
		b.ControlFlow.Tail = ref
	}
	return nil
}

func (c *CodeContainer) unlinkControlLocked(instr *Instruction) {
	b := c.blocks[instr.BlockID]
	if instr.Control.Prev == NoRef && instr.Control.Next == NoRef && (b == nil || b.ControlFlow.Head != instr.ID) {
		return
	}
	if instr.Control.Prev != NoRef {
		c.instructions[instr.Control.Prev].Control.Next = instr.Control.Next
	} else if b != nil && b.ControlFlow.Head == instr.ID {
		b.ControlFlow.Head = instr.Control.Next
	}
	if instr.Control.Next != NoRef {
		c.instructions[instr.Control.Next].Control.Prev = instr.Control.Prev
	} else if b != nil && b.ControlFlow.Tail == instr.ID {
		b.ControlFlow.Tail = instr.Control.Prev
	}
	instr.Control = instructionLink{Prev: NoRef, Next: NoRef}
}

// DropControl removes ref from its block's control-flow sublist without
// removing it from the sibling list or deleting it.
func (c *CodeContainer) DropControl(ref ID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	instr, ok := c.instructions[ref]
	if !ok {
		return kerr.New(kerr.NotFound, "ir.DropControl", "no such instruction")
	}
	c.unlinkControlLocked(instr)
	return nil
}
