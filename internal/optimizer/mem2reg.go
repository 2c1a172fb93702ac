package optimizer

import (
	"sort"

	"kefir/internal/config"
	kerr "kefir/internal/errors"
	"kefir/internal/ir"
	"kefir/internal/ir/oracle"
)

// Mem2Reg promotes scalar locals whose address never escapes out of
// memory (load/store pairs against a LocalAlloc) into ordinary SSA
// values, inserting phi nodes at control-flow merge points. It runs in
// three phases mirroring the reference implementation: scan classifies
// candidates and bails out (Yield) on constructs that make whole-function
// promotion unsafe, pull rewrites loads/stores into tracked values within
// each block, and propagate fills in phi links that pull could not
// resolve immediately because the predecessor had not been visited yet
// (loop back edges).
type Mem2Reg struct{}

func (Mem2Reg) Name() string { return "mem2reg" }

func (m Mem2Reg) Apply(module *ir.Module, fn *ir.Function, cfg config.PassConfig) error {
	c := fn.Code

	candidates, err := scanCandidates(c)
	if err != nil {
		return err
	}
	if candidates == nil {
		return kerr.New(kerr.Yield, "mem2reg.scan", "function is not safe to promote locals in")
	}
	if len(candidates) == 0 {
		return nil
	}

	preds, err := oracle.Predecessors(c)
	if err != nil {
		return kerr.Wrap(err, kerr.InvariantViolation, "mem2reg", "failed computing predecessors")
	}
	dom, err := ComputeEntryDominance(c, fn.EntryBlock)
	if err != nil {
		return err
	}

	for _, local := range candidates {
		t := &localTracker{
			c:          c,
			local:      local,
			entryBlock: fn.EntryBlock,
			preds:      preds,
			entry:      make(map[ir.ID]ir.ID),
			exit:       make(map[ir.ID]ir.ID),
			pendingPhi: make(map[ir.ID]ir.ID),
			deferred:   nil,
		}
		if err := t.pull(dom.ReversePostOrder()); err != nil {
			return err
		}
		if err := t.propagate(); err != nil {
			return err
		}
	}
	return nil
}

// ComputeEntryDominance is a small convenience wrapper so optimizer passes
// don't need to import oracle's full API surface just to get a reverse
// post order rooted at the function's entry block.
func ComputeEntryDominance(c *ir.CodeContainer, entry ir.ID) (*oracle.Dominance, error) {
	dom, err := oracle.ComputeDominance(c, entry)
	if err != nil {
		return nil, kerr.Wrap(err, kerr.InvariantViolation, "mem2reg", "failed computing dominance")
	}
	return dom, nil
}

// scanCandidates returns the set of LocalAlloc refs whose address never
// escapes beyond direct Load/Store access, or nil (not merely empty) if
// the function contains a publicly labeled block or an indirect jump,
// either of which makes it unsafe to reason about every use of a local
// ahead of time.
func scanCandidates(c *ir.CodeContainer) ([]ir.ID, error) {
	var locals []ir.ID
	addressed := make(map[ir.ID]bool)

	for _, block := range c.Blocks() {
		b, err := c.Block(block)
		if err != nil {
			return nil, err
		}
		if len(b.PublicLabels) > 0 {
			return nil, nil
		}

		head, err := c.BlockInstrHead(block)
		if err != nil {
			return nil, err
		}
		for ref := head; ref != ir.NoRef; {
			instr, err := c.Instr(ref)
			if err != nil {
				return nil, err
			}
			if instr.Operation.Opcode == ir.OpIndirectJump {
				return nil, nil
			}
			if instr.Operation.Opcode == ir.OpLocalAlloc {
				locals = append(locals, ref)
			}
			next, err := c.InstructionNextSibling(ref)
			if err != nil {
				return nil, err
			}
			ref = next
		}
	}

	for _, local := range locals {
		for _, user := range c.InstructionUses(local) {
			instr, err := c.Instr(user)
			if err != nil {
				return nil, err
			}
			op := instr.Operation
			switch op.Opcode {
			case ir.OpLoad:
				if op.Parameters.Refs[ir.RefMemoryAccessLocation] != local {
					addressed[local] = true
				}
			case ir.OpStore:
				if op.Parameters.Refs[ir.RefMemoryAccessLocation] != local {
					addressed[local] = true
				}
			default:
				addressed[local] = true
			}
		}
	}

	var candidates []ir.ID
	for _, local := range locals {
		if !addressed[local] {
			candidates = append(candidates, local)
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i] < candidates[j] })
	return candidates, nil
}

// localTracker runs the pull/propagate phases for exactly one candidate
// local.
type localTracker struct {
	c          *ir.CodeContainer
	local      ir.ID
	entryBlock ir.ID
	preds      *oracle.PredecessorMap

	entry map[ir.ID]ir.ID // block -> value flowing into the block
	exit  map[ir.ID]ir.ID // block -> value flowing out of the block

	pendingPhi map[ir.ID]ir.ID // block -> phi id created as that block's entry value
	deferred   []ir.ID         // blocks whose phi links still need predecessors resolved

	zero   ir.ID
	hasZero bool
}

func (t *localTracker) zeroValue() (ir.ID, error) {
	if t.hasZero {
		return t.zero, nil
	}
	ref, err := t.c.NewInstruction(t.entryBlock, ir.Operation{
		Opcode:     ir.OpIntConst,
		Parameters: ir.OperationParameters{Imm: ir.ImmediateValue{Integer: 0}},
	})
	if err != nil {
		return ir.NoRef, err
	}
	t.zero, t.hasZero = ref, true
	return ref, nil
}

// entryValueOf returns the value flowing into block, creating a phi
// placeholder (and marking the block as deferred for propagate) if it
// cannot be resolved immediately because not every predecessor has been
// visited yet.
func (t *localTracker) entryValueOf(block ir.ID) (ir.ID, error) {
	if v, ok := t.entry[block]; ok {
		return v, nil
	}
	if block == t.entryBlock {
		v, err := t.zeroValue()
		if err != nil {
			return ir.NoRef, err
		}
		t.entry[block] = v
		return v, nil
	}

	preds := t.preds.Of(block)
	if len(preds) == 0 {
		v, err := t.zeroValue()
		if err != nil {
			return ir.NoRef, err
		}
		t.entry[block] = v
		return v, nil
	}

	if len(preds) == 1 {
		if v, ok := t.exit[preds[0]]; ok {
			t.entry[block] = v
			return v, nil
		}
	}

	phiID, outputRef, err := t.c.NewPhi(block)
	if err != nil {
		return ir.NoRef, err
	}
	t.pendingPhi[block] = phiID
	t.entry[block] = outputRef
	t.deferred = append(t.deferred, block)

	for _, pred := range preds {
		if v, ok := t.exit[pred]; ok {
			if err := t.c.PhiAttach(phiID, pred, v); err != nil {
				return ir.NoRef, err
			}
		}
	}
	return outputRef, nil
}

// pull walks blocks in the given order (a reverse post order, so every
// forward-edge predecessor of a block is visited before it), replacing
// loads and stores against the tracked local with tracked SSA values.
func (t *localTracker) pull(order []ir.ID) error {
	for _, block := range order {
		current, err := t.entryValueOf(block)
		if err != nil {
			return err
		}

		head, err := t.c.BlockInstrHead(block)
		if err != nil {
			return err
		}
		for ref := head; ref != ir.NoRef; {
			instr, err := t.c.Instr(ref)
			if err != nil {
				return err
			}
			next, err := t.c.InstructionNextSibling(ref)
			if err != nil {
				return err
			}

			op := instr.Operation
			switch {
			case op.Opcode == ir.OpLoad && op.Parameters.Refs[ir.RefMemoryAccessLocation] == t.local:
				final, err := t.applyLoadExtension(block, op, current)
				if err != nil {
					return err
				}
				if err := t.c.ReplaceReferences(ref, final); err != nil {
					return err
				}
				if err := t.c.DropInstr(ref); err != nil {
					return err
				}
			case op.Opcode == ir.OpStore && op.Parameters.Refs[ir.RefMemoryAccessLocation] == t.local:
				current = op.Parameters.Refs[ir.RefMemoryAccessValue]
				if err := t.c.DropControl(ref); err != nil {
					return err
				}
				if err := t.c.DropInstr(ref); err != nil {
					return err
				}
			}
			ref = next
		}

		t.exit[block] = current
	}
	return nil
}

// applyLoadExtension preserves a narrow load's declared sign/zero
// extension semantics by materializing an extend instruction over the
// tracked value when the load asked for one.
func (t *localTracker) applyLoadExtension(block ir.ID, load ir.Operation, value ir.ID) (ir.ID, error) {
	if load.Parameters.MemFlags.LoadExtension == ir.LoadNoExtend {
		return value, nil
	}
	opcode := ir.OpIntExtend32
	switch load.Parameters.Bitwidth {
	case 8:
		opcode = ir.OpIntExtend8
	case 16:
		opcode = ir.OpIntExtend16
	}
	return t.c.NewInstruction(block, ir.Operation{
		Opcode:     opcode,
		Parameters: ir.OperationParameters{Refs: [4]ir.ID{value}, MemFlags: load.Parameters.MemFlags},
	})
}

// propagate resolves the phi links pull could not fill in immediately:
// each deferred block is visited exactly once, guaranteeing termination
// even over a cyclic control-flow graph.
func (t *localTracker) propagate() error {
	visited := make(map[ir.ID]bool)
	for i := 0; i < len(t.deferred); i++ {
		block := t.deferred[i]
		if visited[block] {
			continue
		}
		visited[block] = true

		phiID := t.pendingPhi[block]
		for _, pred := range t.preds.Of(block) {
			if _, err := t.c.PhiLinkFor(phiID, pred); err == nil {
				continue
			}
			v, err := t.exitValueResolved(pred)
			if err != nil {
				return err
			}
			if err := t.c.PhiAttach(phiID, pred, v); err != nil {
				return err
			}
		}
	}
	return nil
}

// exitValueResolved returns block's exit value, falling back to its
// (by-now fully resolved) entry value if the local was never written in
// it.
func (t *localTracker) exitValueResolved(block ir.ID) (ir.ID, error) {
	if v, ok := t.exit[block]; ok {
		return v, nil
	}
	return t.entryValueOf(block)
}
