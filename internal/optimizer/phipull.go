package optimizer

import (
	"kefir/internal/config"
	"kefir/internal/ir"
)

// PhiPull sinks a phi whose every incoming link is a copy of the same
// "materializable" operation (a constant, or a plain get-local/get-global/
// get-thread-local with matching operands) by deleting the phi and
// rematerializing that one operation at the phi's block instead. This
// undoes the redundant fan-in mem2reg's zero-constant-at-entry convention
// can introduce and keeps cheap values out of register pressure entirely.
type PhiPull struct{}

func (PhiPull) Name() string { return "phi-pull" }

func (p PhiPull) Apply(module *ir.Module, fn *ir.Function, cfg config.PassConfig) error {
	c := fn.Code
	dom, err := ComputeEntryDominance(c, fn.EntryBlock)
	if err != nil {
		return err
	}

	materializeConsts := true
	if v, ok := cfg.Knob("phi-pull", "materialize_consts"); ok {
		materializeConsts = v != "false"
	}

	for _, block := range dom.ReversePostOrder() {
		head, err := c.BlockPhiHead(block)
		if err != nil {
			return err
		}
		for phiRef := head; phiRef != ir.NoRef; {
			next, err := c.PhiNextSibling(phiRef)
			if err != nil {
				return err
			}
			if err := p.tryPull(c, block, phiRef, materializeConsts); err != nil {
				return err
			}
			phiRef = next
		}
	}
	return nil
}

// tryPull attempts to replace one phi with a rematerialized copy of its
// shared source operation. It is a no-op if the phi's links disagree.
// materializeConsts controls whether a shared constant-opcode source
// qualifies, per the phi-pull knob of the same name; storage-location
// reads (get-local/get-global/get-thread-local) always qualify.
func (p PhiPull) tryPull(c *ir.CodeContainer, block, phiRef ir.ID, materializeConsts bool) error {
	phi, err := c.Phi(phiRef)
	if err != nil {
		return err
	}
	if len(phi.Links) == 0 {
		return nil
	}

	var shared *ir.Operation
	for _, valueRef := range phi.Links {
		if valueRef == ir.NoRef {
			return nil
		}
		instr, err := c.Instr(valueRef)
		if err != nil {
			return nil
		}
		if !isMaterializable(instr.Operation.Opcode) {
			return nil
		}
		if !materializeConsts && isConstOpcode(instr.Operation.Opcode) {
			return nil
		}
		if shared == nil {
			shared = &instr.Operation
			continue
		}
		if !sameMaterialization(*shared, instr.Operation) {
			return nil
		}
	}
	if shared == nil {
		return nil
	}

	outputRef := phi.OutputRef
	replacement, err := c.NewInstruction(block, *shared)
	if err != nil {
		return err
	}
	if err := c.ReplaceReferences(outputRef, replacement); err != nil {
		return err
	}
	predBlocks := make([]ir.ID, 0, len(phi.Links))
	for predBlock := range phi.Links {
		predBlocks = append(predBlocks, predBlock)
	}
	for _, predBlock := range predBlocks {
		if err := c.PhiDropLink(phiRef, predBlock); err != nil {
			return err
		}
	}
	if err := c.DropInstr(outputRef); err != nil {
		return err
	}
	if err := c.DropPhi(phiRef); err != nil {
		return err
	}
	return nil
}

// isMaterializable mirrors the original's notion of an operation cheap
// enough to duplicate rather than route through a phi: constants and bare
// storage-location reads, none of which have side effects or depend on
// control-flow position.
func isMaterializable(op ir.Opcode) bool {
	switch op {
	case ir.OpIntConst, ir.OpUintConst, ir.OpFloat32Const, ir.OpFloat64Const, ir.OpLongDoubleConst,
		ir.OpGetLocal, ir.OpGetGlobal, ir.OpGetThreadLocal:
		return true
	default:
		return false
	}
}

// isConstOpcode reports whether op is one of the pure-constant
// materializable opcodes, as opposed to a storage-location read.
func isConstOpcode(op ir.Opcode) bool {
	switch op {
	case ir.OpIntConst, ir.OpUintConst, ir.OpFloat32Const, ir.OpFloat64Const, ir.OpLongDoubleConst:
		return true
	default:
		return false
	}
}

// sameMaterialization reports whether two materializable operations would
// produce the identical value if rematerialized, by comparing opcode and
// operand/immediate fields relevant to each materializable kind.
func sameMaterialization(a, b ir.Operation) bool {
	if a.Opcode != b.Opcode {
		return false
	}
	switch a.Opcode {
	case ir.OpIntConst, ir.OpUintConst:
		return a.Parameters.Imm.Integer == b.Parameters.Imm.Integer &&
			a.Parameters.Imm.Unsigned == b.Parameters.Imm.Unsigned
	case ir.OpFloat32Const:
		return a.Parameters.Imm.Float32 == b.Parameters.Imm.Float32
	case ir.OpFloat64Const:
		return a.Parameters.Imm.Float64 == b.Parameters.Imm.Float64
	case ir.OpLongDoubleConst:
		return a.Parameters.Imm.LongDouble == b.Parameters.Imm.LongDouble
	case ir.OpGetLocal:
		return a.Parameters.Index == b.Parameters.Index &&
			a.Parameters.Offset == b.Parameters.Offset
	case ir.OpGetGlobal, ir.OpGetThreadLocal:
		return a.Parameters.Variable == b.Parameters.Variable
	default:
		return false
	}
}
