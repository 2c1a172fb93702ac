package optimizer

import (
	"kefir/internal/config"
	"kefir/internal/ir"
)

// ValueNumbering merges duplicate computations within a block: two
// pure instructions with the same opcode and the same operand/immediate
// payload always produce the same value, so the second occurrence can be
// replaced by the first. The available-expression table is local to each
// block (reset on block entry) rather than threaded through the
// dominator tree, keeping the pass a single forward scan with no oracle
// dependency.
type ValueNumbering struct{}

func (ValueNumbering) Name() string { return "value-numbering" }

func (ValueNumbering) Apply(module *ir.Module, fn *ir.Function, cfg config.PassConfig) error {
	c := fn.Code
	for _, block := range c.Blocks() {
		table := make(map[valueKey]ir.ID)

		head, err := c.BlockInstrHead(block)
		if err != nil {
			return err
		}
		for ref := head; ref != ir.NoRef; {
			instr, err := c.Instr(ref)
			if err != nil {
				return err
			}
			next, err := c.InstructionNextSibling(ref)
			if err != nil {
				return err
			}

			if key, ok := valueKeyOf(instr.Operation); ok {
				if existing, found := table[key]; found {
					if err := c.ReplaceReferences(ref, existing); err != nil {
						return err
					}
					if err := c.DropInstr(ref); err != nil {
						return err
					}
				} else {
					table[key] = ref
				}
			}
			ref = next
		}
	}
	return nil
}

// valueKey captures exactly the fields that determine a pure
// instruction's result value. It deliberately excludes IndirectTargets
// (a slice, and never present on a pure opcode) so it stays comparable
// and usable as a map key.
type valueKey struct {
	opcode      ir.Opcode
	refs        [4]ir.ID
	typeRef     ir.TypeRef
	index       uint64
	bitwidth    uint64
	sourceWidth uint64
	comparison  ir.ComparisonOperation
	variable    ir.VariableRef
	imm         ir.ImmediateValue
	offset      int64
	irRef       ir.ID
	bitfieldOff uint64
	bitfieldLen uint64
	overflowSig bool
}

// valueKeyOf builds the dedup key for op, declining (ok=false) any
// opcode with side effects, a terminator, or pooled-entity backing (phi,
// call, inline assembly) whose identity isn't captured by Refs/Imm alone.
func valueKeyOf(op ir.Operation) (valueKey, bool) {
	if op.Opcode.HasSideEffect() || op.Opcode.IsTerminator() {
		return valueKey{}, false
	}
	switch op.Opcode.Class() {
	case ir.ClassPhi, ir.ClassCall, ir.ClassInlineAssembly:
		return valueKey{}, false
	}
	return valueKey{
		opcode:      op.Opcode,
		refs:        op.Parameters.Refs,
		typeRef:     op.Parameters.Type,
		index:       op.Parameters.Index,
		bitwidth:    op.Parameters.Bitwidth,
		sourceWidth: op.Parameters.SourceWidth,
		comparison:  op.Parameters.Comparison,
		variable:    op.Parameters.Variable,
		imm:         op.Parameters.Imm,
		offset:      op.Parameters.Offset,
		irRef:       op.Parameters.IRRef,
		bitfieldOff: op.Parameters.BitfieldOffset,
		bitfieldLen: op.Parameters.BitfieldLength,
		overflowSig: op.Parameters.OverflowSigned,
	}, true
}
