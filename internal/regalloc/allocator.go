package regalloc

import (
	kerr "kefir/internal/errors"
	"kefir/internal/ir"
	"kefir/internal/ir/oracle"
)

// allocation is the per-instruction working state the allocator builds up
// across its passes: its register class, whatever hints the hinting
// passes attached, and its eventual Location once allocateRegister (or
// the ABI preallocation table) has run.
type allocation struct {
	class        Class
	registerHint *int
	aliasHint    *ir.ID
	result       Location
}

// Result is the allocator's answer for every instruction of a function:
// where its value lives once code generation needs to read or write it.
type Result struct {
	allocations map[ir.ID]*allocation
}

// LocationOf returns where ref's value was placed. ok is false for refs
// the allocator never saw (or that belong to a different function).
func (r *Result) LocationOf(ref ir.ID) (Location, bool) {
	a, ok := r.allocations[ref]
	if !ok {
		return Location{}, false
	}
	return a.result, true
}

// ClassOf returns the register class ref was allocated under.
func (r *Result) ClassOf(ref ir.ID) (Class, bool) {
	a, ok := r.allocations[ref]
	if !ok {
		return 0, false
	}
	return a.class, true
}

// allocator is the mutable state threaded through one run of Allocate.
type allocator struct {
	order    []ir.ID
	position map[ir.ID]int
	live     *oracle.Liveness
	graph    map[ir.ID]map[ir.ID]struct{}
	allocs   map[ir.ID]*allocation

	gpUsed    []bool
	fpUsed    []bool
	spillUsed []bool

	argPrealloc map[uint64]argumentPreallocation
}

// classOf classifies an opcode into the register class its result (if
// any) must be allocated under. Inline assembly is rejected outright:
// this exemplar allocator has no operand/clobber model for it. Long
// double arithmetic has no dedicated opcode in this IR beyond its
// constant, so there is nothing further to reject there.
func classOf(op ir.Opcode) (Class, error) {
	switch op {
	case ir.OpInlineAssembly:
		return 0, kerr.New(kerr.NotImplemented, "regalloc.classOf", "inline assembly operand allocation is not implemented")

	case ir.OpJump, ir.OpBranch, ir.OpBranchCompare, ir.OpIndirectJump, ir.OpReturn,
		ir.OpStore, ir.OpScopePop, ir.OpVarArgStart, ir.OpVarArgEnd,
		ir.OpAtomicStore, ir.OpUnreachable, ir.OpNoop:
		return ClassSkip, nil

	case ir.OpFloat32Const, ir.OpFloat64Const,
		ir.OpFloatAdd, ir.OpFloatSub, ir.OpFloatMul, ir.OpFloatDiv, ir.OpFloatNeg,
		ir.OpIntToFloat, ir.OpFloatToInt, ir.OpFloatExtend, ir.OpFloatTruncate:
		return ClassFloatingPoint, nil

	default:
		return ClassGeneralPurpose, nil
	}
}

// Allocate assigns a register, ABI-fixed location or spill slot to every
// instruction result of fn, using the function's liveness intervals as
// an interference graph and a set of coalescing hints (phi, return,
// generic two-operand reuse) to steer allocation toward fewer moves.
func Allocate(module *ir.Module, fn *ir.Function) (*Result, error) {
	c := fn.Code

	dom, err := oracle.ComputeDominance(c, fn.EntryBlock)
	if err != nil {
		return nil, kerr.Wrap(err, kerr.InvariantViolation, "regalloc.Allocate", "failed computing dominance")
	}
	live, err := oracle.ComputeLiveness(c, dom)
	if err != nil {
		return nil, kerr.Wrap(err, kerr.InvariantViolation, "regalloc.Allocate", "failed computing liveness")
	}

	a := &allocator{
		order:    live.Linearization(),
		position: make(map[ir.ID]int),
		live:     live,
		graph:    make(map[ir.ID]map[ir.ID]struct{}),
		allocs:   make(map[ir.ID]*allocation),
	}
	for i, ref := range a.order {
		a.position[ref] = i
	}

	if err := a.classify(c); err != nil {
		return nil, err
	}
	a.buildGraph()
	if err := a.insertHints(c); err != nil {
		return nil, err
	}
	a.propagateHints()

	decl := module.FunctionDeclarations[fn.DeclarationID]
	paramCount := 0
	if decl != nil {
		paramCount = len(decl.ParamTypes)
	}
	a.argPrealloc = preallocateArguments(paramCount)

	a.gpUsed = make([]bool, NumGeneralPurposeRegisters)
	a.fpUsed = make([]bool, NumFloatingPointRegisters)

	if err := a.doAllocation(c); err != nil {
		return nil, err
	}

	return &Result{allocations: a.allocs}, nil
}

func (a *allocator) classify(c *ir.CodeContainer) error {
	for _, ref := range a.order {
		instr, err := c.Instr(ref)
		if err != nil {
			return err
		}
		class, err := classOf(instr.Operation.Opcode)
		if err != nil {
			return err
		}
		a.allocs[ref] = &allocation{class: class}
	}
	return nil
}

// buildGraph walks the linearization with a sliding "alive" set, adding a
// bidirectional interference edge between every pair of instructions
// whose live intervals are simultaneously open at a given position.
func (a *allocator) buildGraph() {
	var alive []ir.ID
	addEdge := func(x, y ir.ID) {
		if a.graph[x] == nil {
			a.graph[x] = make(map[ir.ID]struct{})
		}
		if a.graph[y] == nil {
			a.graph[y] = make(map[ir.ID]struct{})
		}
		a.graph[x][y] = struct{}{}
		a.graph[y][x] = struct{}{}
	}

	for idx, ref := range a.order {
		if a.graph[ref] == nil {
			a.graph[ref] = make(map[ir.ID]struct{})
		}

		kept := alive[:0]
		for _, other := range alive {
			iv, _ := a.live.IntervalOf(other)
			if iv.LastUsePosition <= idx {
				continue
			}
			kept = append(kept, other)
		}
		alive = kept

		for _, other := range alive {
			addEdge(ref, other)
		}
		alive = append(alive, ref)
	}
}

func directOperand(op ir.Operation) (ir.ID, bool) {
	for _, ref := range op.Parameters.Refs {
		if ref != ir.NoRef {
			return ref, true
		}
	}
	return ir.NoRef, false
}

func (a *allocator) hintAlias(ref ir.ID, alias ir.ID) {
	dst := a.allocs[ref]
	if dst == nil || dst.aliasHint != nil || dst.class == ClassSkip {
		return
	}
	src, ok := a.allocs[alias]
	if !ok || src.class != dst.class {
		return
	}
	v := alias
	dst.aliasHint = &v
}

func (a *allocator) hintRegister(ref ir.ID, index int) {
	dst := a.allocs[ref]
	if dst == nil || dst.registerHint != nil || dst.class == ClassSkip {
		return
	}
	v := index
	dst.registerHint = &v
}

// hintPhiCoalescing hints a phi's own output toward whichever incoming
// value was already materialized earlier in the linearization, so the
// common case of a loop-carried value needs no extra move.
func (a *allocator) hintPhiCoalescing(c *ir.CodeContainer, phiOutput ir.ID, phiID ir.ID) error {
	links, err := c.PhiLinks(phiID)
	if err != nil {
		return err
	}
	phiPos, ok := a.position[phiOutput]
	if !ok {
		return nil
	}
	for _, link := range links {
		value := link[1]
		if value == ir.NoRef {
			continue
		}
		pos, ok := a.position[value]
		if !ok || pos >= phiPos {
			continue
		}
		a.hintAlias(phiOutput, value)
	}
	return nil
}

// hintReturnCoalescing hints a Return's operand into the class's
// conventional result register (index 0: RAX or XMM0).
func (a *allocator) hintReturnCoalescing(op ir.Operation) {
	operand, ok := directOperand(op)
	if !ok {
		return
	}
	a.hintRegister(operand, 0)
}

// hintInputOutputCoalesce hints a generic instruction's own output
// toward its first operand's register, modeling a two-operand
// destination-equals-source-one target instruction set.
func (a *allocator) hintInputOutputCoalesce(ref ir.ID, op ir.Operation) {
	operand, ok := directOperand(op)
	if !ok {
		return
	}
	a.hintAlias(ref, operand)
}

func (a *allocator) insertHints(c *ir.CodeContainer) error {
	for _, ref := range a.order {
		instr, err := c.Instr(ref)
		if err != nil {
			return err
		}
		op := instr.Operation

		switch op.Opcode {
		case ir.OpPhi:
			if err := a.hintPhiCoalescing(c, ref, op.Parameters.PhiRef); err != nil {
				return err
			}
		case ir.OpInlineAssembly:
			return kerr.New(kerr.NotImplemented, "regalloc.insertHints", "inline assembly operand allocation is not implemented")
		case ir.OpReturn:
			a.hintReturnCoalescing(op)
			a.hintInputOutputCoalesce(ref, op)
		case ir.OpJump, ir.OpBranch, ir.OpBranchCompare, ir.OpIndirectJump,
			ir.OpStore, ir.OpScopePop, ir.OpVarArgStart, ir.OpVarArgGet, ir.OpVarArgEnd,
			ir.OpAtomicStore, ir.OpUnreachable, ir.OpNoop:
			// No register needed, nothing to hint.
		default:
			a.hintInputOutputCoalesce(ref, op)
		}
	}
	return nil
}

// propagateHints sweeps the linearization in reverse so a register hint
// fixed late (a Return pinned to RAX) reaches, through any chain of
// alias hints, the earliest instruction that can still honor it.
func (a *allocator) propagateHints() {
	for i := len(a.order) - 1; i >= 0; i-- {
		ref := a.order[i]
		cur := a.allocs[ref]
		if cur.aliasHint == nil || cur.registerHint == nil {
			continue
		}
		target := a.allocs[*cur.aliasHint]
		if target == nil || target.class == ClassSkip || target.registerHint != nil {
			continue
		}
		v := *cur.registerHint
		target.registerHint = &v
	}
}

// collectConflictHints gathers the register indices that instructions
// still interfering with ref at or after its own linear position would
// like to claim, so ref's own allocation steers clear of them when a
// free choice exists.
func (a *allocator) collectConflictHints(ref ir.ID) map[int]struct{} {
	hints := make(map[int]struct{})
	cur := a.allocs[ref]
	pos := a.position[ref]

	for other := range a.graph[ref] {
		if a.position[other] < pos {
			continue
		}
		otherAlloc := a.allocs[other]
		if otherAlloc.class != cur.class {
			continue
		}
		if otherAlloc.registerHint != nil {
			hints[*otherAlloc.registerHint] = struct{}{}
			continue
		}
		if otherAlloc.aliasHint != nil {
			if aliasAlloc := a.allocs[*otherAlloc.aliasHint]; aliasAlloc != nil {
				switch aliasAlloc.result.Kind {
				case ResultGeneralPurposeRegister, ResultFloatingPointRegister:
					hints[aliasAlloc.result.RegisterIndex] = struct{}{}
				}
			}
		}
	}
	return hints
}

func (a *allocator) regsFor(class Class) []bool {
	if class == ClassFloatingPoint {
		return a.fpUsed
	}
	return a.gpUsed
}

func (a *allocator) resultKindFor(class Class) ResultKind {
	if class == ClassFloatingPoint {
		return ResultFloatingPointRegister
	}
	return ResultGeneralPurposeRegister
}

// attemptSpecifiedRegister tries to claim exactly index for alloc's
// class, succeeding only if it is currently free.
func (a *allocator) attemptSpecifiedRegister(alloc *allocation, index int) bool {
	used := a.regsFor(alloc.class)
	if used[index] {
		return false
	}
	used[index] = true
	alloc.result = Location{Kind: a.resultKindFor(alloc.class), RegisterIndex: index}
	return true
}

// attemptHintAllocation tries, in order, alloc's direct register hint
// and then the register its alias ended up in, succeeding only if that
// register is still free.
func (a *allocator) attemptHintAllocation(alloc *allocation) bool {
	if alloc.registerHint != nil {
		if a.attemptSpecifiedRegister(alloc, *alloc.registerHint) {
			return true
		}
	}
	if alloc.aliasHint != nil {
		if ref := a.allocs[*alloc.aliasHint]; ref != nil {
			switch ref.result.Kind {
			case ResultGeneralPurposeRegister, ResultFloatingPointRegister:
				if ref.class == alloc.class {
					return a.attemptSpecifiedRegister(alloc, ref.result.RegisterIndex)
				}
			}
		}
	}
	return false
}

// allocateRegister picks a free register for alloc's class, preferring
// one that nothing still live and conflicting wants (conflictHints),
// falling back to any free register and finally to a spill slot.
func (a *allocator) allocateRegister(alloc *allocation, conflictHints map[int]struct{}) {
	used := a.regsFor(alloc.class)
	kind := a.resultKindFor(alloc.class)

	for i, taken := range used {
		if taken {
			continue
		}
		if _, conflicted := conflictHints[i]; conflicted {
			continue
		}
		used[i] = true
		alloc.result = Location{Kind: kind, RegisterIndex: i}
		return
	}

	for i, taken := range used {
		if !taken {
			used[i] = true
			alloc.result = Location{Kind: kind, RegisterIndex: i}
			return
		}
	}

	for i, taken := range a.spillUsed {
		if !taken {
			a.spillUsed[i] = true
			alloc.result = Location{Kind: ResultSpill, SpillIndex: i}
			return
		}
	}
	index := len(a.spillUsed)
	a.spillUsed = append(a.spillUsed, true)
	alloc.result = Location{Kind: ResultSpill, SpillIndex: index}
}

// deallocateDead releases every register held by an instruction whose
// interval has already ended by position idx.
func (a *allocator) deallocateDead(idx int) {
	for _, ref := range a.order[:idx] {
		alloc := a.allocs[ref]
		iv, ok := a.live.IntervalOf(ref)
		if !ok || iv.LastUsePosition != idx-1 {
			continue
		}
		switch alloc.result.Kind {
		case ResultGeneralPurposeRegister:
			a.gpUsed[alloc.result.RegisterIndex] = false
		case ResultFloatingPointRegister:
			a.fpUsed[alloc.result.RegisterIndex] = false
		}
	}
}

func (a *allocator) doAllocation(c *ir.CodeContainer) error {
	idx := 0
	for ; idx < len(a.order); idx++ {
		ref := a.order[idx]
		instr, err := c.Instr(ref)
		if err != nil {
			return err
		}
		if instr.Operation.Opcode != ir.OpGetArgument {
			break
		}

		alloc := a.allocs[ref]
		pre, ok := a.argPrealloc[instr.Operation.Parameters.Index]
		if !ok {
			return kerr.New(kerr.InvariantViolation, "regalloc.doAllocation", "missing argument preallocation entry")
		}
		alloc.result = pre.direct
		if pre.isDirect && pre.direct.Kind == ResultGeneralPurposeRegister {
			a.gpUsed[pre.direct.RegisterIndex] = true
		}
	}

	for ; idx < len(a.order); idx++ {
		ref := a.order[idx]
		alloc := a.allocs[ref]

		a.deallocateDead(idx)

		if alloc.result.Kind == ResultNone && alloc.class != ClassSkip {
			conflictHints := a.collectConflictHints(ref)
			if !a.attemptHintAllocation(alloc) {
				a.allocateRegister(alloc, conflictHints)
			}
		}
	}
	return nil
}
