package optimizer

import (
	"kefir/internal/config"
	"kefir/internal/ir"
)

// ConstantPropagation folds arithmetic, bitwise, and comparison
// instructions whose operands are all constant into a single constant
// instruction, replacing every use. It runs over the program-order
// sibling list of each block directly: no analysis oracle is needed, since
// folding never depends on control-flow shape.
type ConstantPropagation struct{}

func (ConstantPropagation) Name() string { return "constant-propagation" }

func (ConstantPropagation) Apply(module *ir.Module, fn *ir.Function, cfg config.PassConfig) error {
	c := fn.Code
	for _, block := range c.Blocks() {
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

			folded, ok, err := foldConstant(c, instr.Operation)
			if err != nil {
				return err
			}
			if ok {
				newRef, err := c.NewInstruction(block, folded)
				if err != nil {
					return err
				}
				if err := c.ReplaceReferences(ref, newRef); err != nil {
					return err
				}
				if err := c.DropInstr(ref); err != nil {
					return err
				}
			}
			ref = next
		}
	}
	return nil
}

func constInt(c *ir.CodeContainer, ref ir.ID) (int64, bool) {
	instr, err := c.Instr(ref)
	if err != nil || instr.Operation.Opcode != ir.OpIntConst {
		return 0, false
	}
	return instr.Operation.Parameters.Imm.Integer, true
}

func constUint(c *ir.CodeContainer, ref ir.ID) (uint64, bool) {
	instr, err := c.Instr(ref)
	if err != nil || instr.Operation.Opcode != ir.OpUintConst {
		return 0, false
	}
	return instr.Operation.Parameters.Imm.Unsigned, true
}

func constFloat64(c *ir.CodeContainer, ref ir.ID) (float64, bool) {
	instr, err := c.Instr(ref)
	if err != nil || instr.Operation.Opcode != ir.OpFloat64Const {
		return 0, false
	}
	return instr.Operation.Parameters.Imm.Float64, true
}

// foldConstant evaluates op if every operand it reads is itself a
// constant instruction, returning the replacement constant Operation.
func foldConstant(c *ir.CodeContainer, op ir.Operation) (ir.Operation, bool, error) {
	switch op.Opcode {
	case ir.OpIntAdd, ir.OpIntSub, ir.OpIntMul, ir.OpIntDiv, ir.OpIntMod,
		ir.OpIntAnd, ir.OpIntOr, ir.OpIntXor, ir.OpIntShl, ir.OpIntShr, ir.OpIntSar:
		lhs, ok1 := constInt(c, op.Parameters.Refs[0])
		rhs, ok2 := constInt(c, op.Parameters.Refs[1])
		if !ok1 || !ok2 {
			return ir.Operation{}, false, nil
		}
		result, ok := foldIntBinary(op.Opcode, lhs, rhs)
		if !ok {
			return ir.Operation{}, false, nil
		}
		return intConstOp(result), true, nil

	case ir.OpUintDiv, ir.OpUintMod:
		lhs, ok1 := constUint(c, op.Parameters.Refs[0])
		rhs, ok2 := constUint(c, op.Parameters.Refs[1])
		if !ok1 || !ok2 || rhs == 0 {
			return ir.Operation{}, false, nil
		}
		var result uint64
		if op.Opcode == ir.OpUintDiv {
			result = lhs / rhs
		} else {
			result = lhs % rhs
		}
		return uintConstOp(result), true, nil

	case ir.OpIntNeg:
		v, ok := constInt(c, op.Parameters.Refs[0])
		if !ok {
			return ir.Operation{}, false, nil
		}
		return intConstOp(-v), true, nil

	case ir.OpIntNot:
		v, ok := constInt(c, op.Parameters.Refs[0])
		if !ok {
			return ir.Operation{}, false, nil
		}
		return intConstOp(^v), true, nil

	case ir.OpFloatAdd, ir.OpFloatSub, ir.OpFloatMul, ir.OpFloatDiv:
		lhs, ok1 := constFloat64(c, op.Parameters.Refs[0])
		rhs, ok2 := constFloat64(c, op.Parameters.Refs[1])
		if !ok1 || !ok2 {
			return ir.Operation{}, false, nil
		}
		result, ok := foldFloatBinary(op.Opcode, lhs, rhs)
		if !ok {
			return ir.Operation{}, false, nil
		}
		return float64ConstOp(result), true, nil

	case ir.OpFloatNeg:
		v, ok := constFloat64(c, op.Parameters.Refs[0])
		if !ok {
			return ir.Operation{}, false, nil
		}
		return float64ConstOp(-v), true, nil

	case ir.OpCompare:
		return foldCompare(c, op)

	default:
		return ir.Operation{}, false, nil
	}
}

func foldIntBinary(opcode ir.Opcode, lhs, rhs int64) (int64, bool) {
	switch opcode {
	case ir.OpIntAdd:
		return lhs + rhs, true
	case ir.OpIntSub:
		return lhs - rhs, true
	case ir.OpIntMul:
		return lhs * rhs, true
	case ir.OpIntDiv:
		if rhs == 0 {
			return 0, false
		}
		return lhs / rhs, true
	case ir.OpIntMod:
		if rhs == 0 {
			return 0, false
		}
		return lhs % rhs, true
	case ir.OpIntAnd:
		return lhs & rhs, true
	case ir.OpIntOr:
		return lhs | rhs, true
	case ir.OpIntXor:
		return lhs ^ rhs, true
	case ir.OpIntShl:
		return lhs << uint64(rhs), true
	case ir.OpIntShr:
		return int64(uint64(lhs) >> uint64(rhs)), true
	case ir.OpIntSar:
		return lhs >> uint64(rhs), true
	default:
		return 0, false
	}
}

func foldFloatBinary(opcode ir.Opcode, lhs, rhs float64) (float64, bool) {
	switch opcode {
	case ir.OpFloatAdd:
		return lhs + rhs, true
	case ir.OpFloatSub:
		return lhs - rhs, true
	case ir.OpFloatMul:
		return lhs * rhs, true
	case ir.OpFloatDiv:
		if rhs == 0 {
			return 0, false
		}
		return lhs / rhs, true
	default:
		return 0, false
	}
}

// foldCompare handles the integral and floating comparison families; it
// declines (ok=false) for any comparison kind it does not recognize
// rather than risk folding to the wrong truth value.
func foldCompare(c *ir.CodeContainer, op ir.Operation) (ir.Operation, bool, error) {
	cmp := op.Parameters.Comparison
	if cmp.IsIntegral() {
		lhsI, ok1 := constInt(c, op.Parameters.Refs[0])
		rhsI, ok2 := constInt(c, op.Parameters.Refs[1])
		if ok1 && ok2 {
			result, ok := evalSignedCompare(cmp, lhsI, rhsI)
			if ok {
				return intConstOp(boolToInt(result)), true, nil
			}
		}
		lhsU, ok1 := constUint(c, op.Parameters.Refs[0])
		rhsU, ok2 := constUint(c, op.Parameters.Refs[1])
		if ok1 && ok2 {
			result, ok := evalUnsignedCompare(cmp, lhsU, rhsU)
			if ok {
				return intConstOp(boolToInt(result)), true, nil
			}
		}
		return ir.Operation{}, false, nil
	}

	lhs, ok1 := constFloat64(c, op.Parameters.Refs[0])
	rhs, ok2 := constFloat64(c, op.Parameters.Refs[1])
	if !ok1 || !ok2 {
		return ir.Operation{}, false, nil
	}
	result, ok := evalFloatCompare(cmp, lhs, rhs)
	if !ok {
		return ir.Operation{}, false, nil
	}
	return intConstOp(boolToInt(result)), true, nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func evalSignedCompare(cmp ir.ComparisonOperation, lhs, rhs int64) (bool, bool) {
	switch cmp {
	case ir.CmpInt8Equal, ir.CmpInt16Equal, ir.CmpInt32Equal, ir.CmpInt64Equal:
		return lhs == rhs, true
	case ir.CmpInt8NotEqual, ir.CmpInt16NotEqual, ir.CmpInt32NotEqual, ir.CmpInt64NotEqual:
		return lhs != rhs, true
	case ir.CmpInt8Greater, ir.CmpInt16Greater, ir.CmpInt32Greater, ir.CmpInt64Greater:
		return lhs > rhs, true
	case ir.CmpInt8GreaterOrEqual, ir.CmpInt16GreaterOrEqual, ir.CmpInt32GreaterOrEqual, ir.CmpInt64GreaterOrEqual:
		return lhs >= rhs, true
	case ir.CmpInt8Lesser, ir.CmpInt16Lesser, ir.CmpInt32Lesser, ir.CmpInt64Lesser:
		return lhs < rhs, true
	case ir.CmpInt8LesserOrEqual, ir.CmpInt16LesserOrEqual, ir.CmpInt32LesserOrEqual, ir.CmpInt64LesserOrEqual:
		return lhs <= rhs, true
	default:
		return false, false
	}
}

func evalUnsignedCompare(cmp ir.ComparisonOperation, lhs, rhs uint64) (bool, bool) {
	switch cmp {
	case ir.CmpInt8Above, ir.CmpInt16Above, ir.CmpInt32Above, ir.CmpInt64Above:
		return lhs > rhs, true
	case ir.CmpInt8AboveOrEqual, ir.CmpInt16AboveOrEqual, ir.CmpInt32AboveOrEqual, ir.CmpInt64AboveOrEqual:
		return lhs >= rhs, true
	case ir.CmpInt8Below, ir.CmpInt16Below, ir.CmpInt32Below, ir.CmpInt64Below:
		return lhs < rhs, true
	case ir.CmpInt8BelowOrEqual, ir.CmpInt16BelowOrEqual, ir.CmpInt32BelowOrEqual, ir.CmpInt64BelowOrEqual:
		return lhs <= rhs, true
	default:
		return false, false
	}
}

func evalFloatCompare(cmp ir.ComparisonOperation, lhs, rhs float64) (bool, bool) {
	switch cmp {
	case ir.CmpFloat32Equal, ir.CmpFloat64Equal:
		return lhs == rhs, true
	case ir.CmpFloat32NotEqual, ir.CmpFloat64NotEqual:
		return lhs != rhs, true
	case ir.CmpFloat32Greater, ir.CmpFloat64Greater:
		return lhs > rhs, true
	case ir.CmpFloat32GreaterOrEqual, ir.CmpFloat64GreaterOrEqual:
		return lhs >= rhs, true
	case ir.CmpFloat32Lesser, ir.CmpFloat64Lesser:
		return lhs < rhs, true
	case ir.CmpFloat32LesserOrEqual, ir.CmpFloat64LesserOrEqual:
		return lhs <= rhs, true
	case ir.CmpFloat32NotGreater, ir.CmpFloat64NotGreater:
		return !(lhs > rhs), true
	case ir.CmpFloat32NotGreaterOrEqual, ir.CmpFloat64NotGreaterOrEqual:
		return !(lhs >= rhs), true
	case ir.CmpFloat32NotLesser, ir.CmpFloat64NotLesser:
		return !(lhs < rhs), true
	case ir.CmpFloat32NotLesserOrEqual, ir.CmpFloat64NotLesserOrEqual:
		return !(lhs <= rhs), true
	default:
		return false, false
	}
}

func intConstOp(v int64) ir.Operation {
	return ir.Operation{Opcode: ir.OpIntConst, Parameters: ir.OperationParameters{Imm: ir.ImmediateValue{Integer: v}}}
}

func uintConstOp(v uint64) ir.Operation {
	return ir.Operation{Opcode: ir.OpUintConst, Parameters: ir.OperationParameters{Imm: ir.ImmediateValue{Unsigned: v}}}
}

func float64ConstOp(v float64) ir.Operation {
	return ir.Operation{Opcode: ir.OpFloat64Const, Parameters: ir.OperationParameters{Imm: ir.ImmediateValue{Float64: v}}}
}
