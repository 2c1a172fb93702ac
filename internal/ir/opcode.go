package ir

// Opcode enumerates every instruction kind the optimizer core understands.
// The set and grouping mirrors the opcode class table of the original
// container (constants, integer/float arithmetic, memory access, control
// flow, phi/call/inline-asm markers, and the miscellaneous intrinsics),
// not any particular target's instruction set.
type Opcode int

const (
	OpInvalid Opcode = iota

	// Constants
	OpIntConst
	OpUintConst
	OpFloat32Const
	OpFloat64Const
	OpLongDoubleConst
	OpStringRef
	OpBlockLabel

	// Arithmetic and bitwise (width-parameterized via parameters.type / bitwidth)
	OpIntAdd
	OpIntSub
	OpIntMul
	OpIntDiv
	OpIntMod
	OpUintDiv
	OpUintMod
	OpIntAnd
	OpIntOr
	OpIntXor
	OpIntShl
	OpIntShr
	OpIntSar
	OpIntNeg
	OpIntNot
	OpFloatAdd
	OpFloatSub
	OpFloatMul
	OpFloatDiv
	OpFloatNeg

	// Overflow-checked arithmetic (parameters.overflow_arith.signedness)
	OpIntAddOverflow
	OpIntSubOverflow
	OpIntMulOverflow

	// Conversions
	OpIntExtend8
	OpIntExtend16
	OpIntExtend32
	OpIntTruncate
	OpIntToFloat
	OpFloatToInt
	OpFloatExtend
	OpFloatTruncate

	// Comparison (parameters.comparison selects the exact kind)
	OpCompare

	// Memory access
	OpLoad
	OpStore
	OpGetLocal
	OpGetGlobal
	OpGetThreadLocal
	OpLocalAlloc

	// Control flow
	OpJump
	OpBranch
	OpBranchCompare
	OpIndirectJump
	OpReturn

	// Calls
	OpCall
	OpTailCall
	OpInvoke // indirect call

	// Inline assembly marker (the real operand/clobber data lives on the
	// InlineAssembly pooled entity; this opcode only marks its position)
	OpInlineAssembly

	// Phi marker (the real link set lives on the Phi pooled entity; this
	// opcode only marks the phi's materialized output position)
	OpPhi

	// Misc
	OpGetArgument
	OpScopePop
	OpVarArgStart
	OpVarArgGet
	OpVarArgEnd
	OpAtomicLoad
	OpAtomicStore
	OpUnreachable
	OpNoop

	opcodeCount
)

// OpcodeClass groups opcodes by the shape of behavior the rest of the
// optimizer needs to reason about generically: whether an instruction has
// side effects (and therefore belongs on the control-flow list and must
// survive dead-code elimination), whether it terminates a block, and
// whether it is "pure" in the sense value numbering can deduplicate it.
type OpcodeClass int

const (
	ClassConstant OpcodeClass = iota
	ClassArithmetic
	ClassComparison
	ClassMemory
	ClassTerminator
	ClassCall
	ClassPhi
	ClassInlineAssembly
	ClassMisc
)

type opcodeInfo struct {
	name         string
	class        OpcodeClass
	sideEffect   bool
	isTerminator bool
}

var opcodeTable = map[Opcode]opcodeInfo{
	OpInvalid:         {"invalid", ClassMisc, false, false},
	OpIntConst:        {"int_const", ClassConstant, false, false},
	OpUintConst:       {"uint_const", ClassConstant, false, false},
	OpFloat32Const:    {"float32_const", ClassConstant, false, false},
	OpFloat64Const:    {"float64_const", ClassConstant, false, false},
	OpLongDoubleConst: {"long_double_const", ClassConstant, false, false},
	OpStringRef:       {"string_ref", ClassConstant, false, false},
	OpBlockLabel:      {"block_label", ClassConstant, false, false},

	OpIntAdd:  {"int_add", ClassArithmetic, false, false},
	OpIntSub:  {"int_sub", ClassArithmetic, false, false},
	OpIntMul:  {"int_mul", ClassArithmetic, false, false},
	OpIntDiv:  {"int_div", ClassArithmetic, false, false},
	OpIntMod:  {"int_mod", ClassArithmetic, false, false},
	OpUintDiv: {"uint_div", ClassArithmetic, false, false},
	OpUintMod: {"uint_mod", ClassArithmetic, false, false},
	OpIntAnd:  {"int_and", ClassArithmetic, false, false},
	OpIntOr:   {"int_or", ClassArithmetic, false, false},
	OpIntXor:  {"int_xor", ClassArithmetic, false, false},
	OpIntShl:  {"int_shl", ClassArithmetic, false, false},
	OpIntShr:  {"int_shr", ClassArithmetic, false, false},
	OpIntSar:  {"int_sar", ClassArithmetic, false, false},
	OpIntNeg:  {"int_neg", ClassArithmetic, false, false},
	OpIntNot:  {"int_not", ClassArithmetic, false, false},
	OpFloatAdd: {"float_add", ClassArithmetic, false, false},
	OpFloatSub: {"float_sub", ClassArithmetic, false, false},
	OpFloatMul: {"float_mul", ClassArithmetic, false, false},
	OpFloatDiv: {"float_div", ClassArithmetic, false, false},
	OpFloatNeg: {"float_neg", ClassArithmetic, false, false},

	OpIntAddOverflow: {"int_add_overflow", ClassArithmetic, false, false},
	OpIntSubOverflow: {"int_sub_overflow", ClassArithmetic, false, false},
	OpIntMulOverflow: {"int_mul_overflow", ClassArithmetic, false, false},

	OpIntExtend8:     {"int_extend8", ClassArithmetic, false, false},
	OpIntExtend16:    {"int_extend16", ClassArithmetic, false, false},
	OpIntExtend32:    {"int_extend32", ClassArithmetic, false, false},
	OpIntTruncate:    {"int_truncate", ClassArithmetic, false, false},
	OpIntToFloat:     {"int_to_float", ClassArithmetic, false, false},
	OpFloatToInt:     {"float_to_int", ClassArithmetic, false, false},
	OpFloatExtend:    {"float_extend", ClassArithmetic, false, false},
	OpFloatTruncate:  {"float_truncate", ClassArithmetic, false, false},

	OpCompare: {"compare", ClassComparison, false, false},

	OpLoad:           {"load", ClassMemory, true, false},
	OpStore:          {"store", ClassMemory, true, false},
	OpGetLocal:       {"get_local", ClassMemory, false, false},
	OpGetGlobal:      {"get_global", ClassMemory, false, false},
	OpGetThreadLocal: {"get_thread_local", ClassMemory, false, false},
	OpLocalAlloc:     {"local_alloc", ClassMemory, true, false},

	OpJump:           {"jump", ClassTerminator, true, true},
	OpBranch:         {"branch", ClassTerminator, true, true},
	OpBranchCompare:  {"branch_compare", ClassTerminator, true, true},
	OpIndirectJump:   {"indirect_jump", ClassTerminator, true, true},
	OpReturn:         {"return", ClassTerminator, true, true},

	OpCall:     {"call", ClassCall, true, false},
	OpTailCall: {"tail_call", ClassCall, true, true},
	OpInvoke:   {"invoke", ClassCall, true, false},

	OpInlineAssembly: {"inline_assembly", ClassInlineAssembly, true, false},

	OpPhi: {"phi", ClassPhi, false, false},

	OpGetArgument: {"get_argument", ClassMisc, false, false},
	OpScopePop:    {"scope_pop", ClassMisc, true, false},
	OpVarArgStart: {"vararg_start", ClassMisc, true, false},
	OpVarArgGet:   {"vararg_get", ClassMisc, true, false},
	OpVarArgEnd:   {"vararg_end", ClassMisc, true, false},
	OpAtomicLoad:  {"atomic_load", ClassMemory, true, false},
	OpAtomicStore: {"atomic_store", ClassMemory, true, false},
	OpUnreachable: {"unreachable", ClassTerminator, true, true},
	OpNoop:        {"noop", ClassMisc, false, false},
}

// OpcodeRevision identifies the opcode set and numbering a JSON debug dump
// was produced under. A reload checks this against the running binary's
// own revision and refuses to proceed on mismatch, since an instruction's
// wire encoding is only meaningful relative to a fixed opcode table.
const OpcodeRevision = 1

var opcodeByName map[string]Opcode

func init() {
	opcodeByName = make(map[string]Opcode, len(opcodeTable))
	for op, info := range opcodeTable {
		opcodeByName[info.name] = op
	}
}

// ParseOpcode looks up an opcode by its wire name, the inverse of String.
func ParseOpcode(name string) (Opcode, bool) {
	op, ok := opcodeByName[name]
	return op, ok
}

// String returns the wire/debug name of the opcode, matching the lowercase
// snake_case convention the JSON debug format uses.
func (o Opcode) String() string {
	if info, ok := opcodeTable[o]; ok {
		return info.name
	}
	return "unknown"
}

// Class reports which family of behavior this opcode belongs to.
func (o Opcode) Class() OpcodeClass {
	return opcodeTable[o].class
}

// HasSideEffect reports whether instructions of this opcode must be
// tracked on a block's control-flow list and are never eligible for plain
// dead-code removal without a reachability argument.
func (o Opcode) HasSideEffect() bool {
	return opcodeTable[o].sideEffect
}

// IsTerminator reports whether this opcode ends a basic block. Every
// block must contain exactly one terminator instruction (invariant 4).
func (o Opcode) IsTerminator() bool {
	return opcodeTable[o].isTerminator
}

// MemoryLoadExtension describes how a sub-register-width load is widened.
type MemoryLoadExtension int

const (
	LoadNoExtend MemoryLoadExtension = iota
	LoadSignExtend
	LoadZeroExtend
)

// MemoryOrder is the atomic ordering an atomic memory operation observes.
// The optimizer core only distinguishes sequential consistency; weaker
// orderings are a code-generation concern out of scope here.
type MemoryOrder int

const (
	MemoryOrderSeqCst MemoryOrder = iota
)

// MemoryAccessFlags qualifies a load or store.
type MemoryAccessFlags struct {
	LoadExtension  MemoryLoadExtension
	VolatileAccess bool
}

// ComparisonOperation enumerates every comparison kind the Compare opcode
// can perform, one entry per (width, signedness, relation) combination for
// integers and one per IEEE relation for floats. This matches the
// original container's comparison enum exactly so that front-end-agnostic
// folding and inversion logic never needs a second table.
type ComparisonOperation int

const (
	CmpInt8Equal ComparisonOperation = iota
	CmpInt16Equal
	CmpInt32Equal
	CmpInt64Equal
	CmpInt8NotEqual
	CmpInt16NotEqual
	CmpInt32NotEqual
	CmpInt64NotEqual
	CmpInt8Greater
	CmpInt16Greater
	CmpInt32Greater
	CmpInt64Greater
	CmpInt8GreaterOrEqual
	CmpInt16GreaterOrEqual
	CmpInt32GreaterOrEqual
	CmpInt64GreaterOrEqual
	CmpInt8Lesser
	CmpInt16Lesser
	CmpInt32Lesser
	CmpInt64Lesser
	CmpInt8LesserOrEqual
	CmpInt16LesserOrEqual
	CmpInt32LesserOrEqual
	CmpInt64LesserOrEqual
	CmpInt8Above
	CmpInt16Above
	CmpInt32Above
	CmpInt64Above
	CmpInt8AboveOrEqual
	CmpInt16AboveOrEqual
	CmpInt32AboveOrEqual
	CmpInt64AboveOrEqual
	CmpInt8Below
	CmpInt16Below
	CmpInt32Below
	CmpInt64Below
	CmpInt8BelowOrEqual
	CmpInt16BelowOrEqual
	CmpInt32BelowOrEqual
	CmpInt64BelowOrEqual
	CmpFloat32Equal
	CmpFloat32NotEqual
	CmpFloat32Greater
	CmpFloat32GreaterOrEqual
	CmpFloat32Lesser
	CmpFloat32LesserOrEqual
	CmpFloat32NotGreater
	CmpFloat32NotGreaterOrEqual
	CmpFloat32NotLesser
	CmpFloat32NotLesserOrEqual
	CmpFloat64Equal
	CmpFloat64NotEqual
	CmpFloat64Greater
	CmpFloat64GreaterOrEqual
	CmpFloat64Lesser
	CmpFloat64LesserOrEqual
	CmpFloat64NotGreater
	CmpFloat64NotGreaterOrEqual
	CmpFloat64NotLesser
	CmpFloat64NotLesserOrEqual

	comparisonCount
)

var comparisonInverse = map[ComparisonOperation]ComparisonOperation{
	CmpInt8Equal: CmpInt8NotEqual, CmpInt8NotEqual: CmpInt8Equal,
	CmpInt16Equal: CmpInt16NotEqual, CmpInt16NotEqual: CmpInt16Equal,
	CmpInt32Equal: CmpInt32NotEqual, CmpInt32NotEqual: CmpInt32Equal,
	CmpInt64Equal: CmpInt64NotEqual, CmpInt64NotEqual: CmpInt64Equal,
	CmpInt8Greater: CmpInt8LesserOrEqual, CmpInt8LesserOrEqual: CmpInt8Greater,
	CmpInt16Greater: CmpInt16LesserOrEqual, CmpInt16LesserOrEqual: CmpInt16Greater,
	CmpInt32Greater: CmpInt32LesserOrEqual, CmpInt32LesserOrEqual: CmpInt32Greater,
	CmpInt64Greater: CmpInt64LesserOrEqual, CmpInt64LesserOrEqual: CmpInt64Greater,
	CmpInt8GreaterOrEqual: CmpInt8Lesser, CmpInt8Lesser: CmpInt8GreaterOrEqual,
	CmpInt16GreaterOrEqual: CmpInt16Lesser, CmpInt16Lesser: CmpInt16GreaterOrEqual,
	CmpInt32GreaterOrEqual: CmpInt32Lesser, CmpInt32Lesser: CmpInt32GreaterOrEqual,
	CmpInt64GreaterOrEqual: CmpInt64Lesser, CmpInt64Lesser: CmpInt64GreaterOrEqual,
	CmpInt8Above: CmpInt8BelowOrEqual, CmpInt8BelowOrEqual: CmpInt8Above,
	CmpInt16Above: CmpInt16BelowOrEqual, CmpInt16BelowOrEqual: CmpInt16Above,
	CmpInt32Above: CmpInt32BelowOrEqual, CmpInt32BelowOrEqual: CmpInt32Above,
	CmpInt64Above: CmpInt64BelowOrEqual, CmpInt64BelowOrEqual: CmpInt64Above,
	CmpInt8AboveOrEqual: CmpInt8Below, CmpInt8Below: CmpInt8AboveOrEqual,
	CmpInt16AboveOrEqual: CmpInt16Below, CmpInt16Below: CmpInt16AboveOrEqual,
	CmpInt32AboveOrEqual: CmpInt32Below, CmpInt32Below: CmpInt32AboveOrEqual,
	CmpInt64AboveOrEqual: CmpInt64Below, CmpInt64Below: CmpInt64AboveOrEqual,
	CmpFloat32Equal: CmpFloat32NotEqual, CmpFloat32NotEqual: CmpFloat32Equal,
	CmpFloat32Greater: CmpFloat32NotGreater, CmpFloat32NotGreater: CmpFloat32Greater,
	CmpFloat32GreaterOrEqual: CmpFloat32NotGreaterOrEqual, CmpFloat32NotGreaterOrEqual: CmpFloat32GreaterOrEqual,
	CmpFloat32Lesser: CmpFloat32NotLesser, CmpFloat32NotLesser: CmpFloat32Lesser,
	CmpFloat32LesserOrEqual: CmpFloat32NotLesserOrEqual, CmpFloat32NotLesserOrEqual: CmpFloat32LesserOrEqual,
	CmpFloat64Equal: CmpFloat64NotEqual, CmpFloat64NotEqual: CmpFloat64Equal,
	CmpFloat64Greater: CmpFloat64NotGreater, CmpFloat64NotGreater: CmpFloat64Greater,
	CmpFloat64GreaterOrEqual: CmpFloat64NotGreaterOrEqual, CmpFloat64NotGreaterOrEqual: CmpFloat64GreaterOrEqual,
	CmpFloat64Lesser: CmpFloat64NotLesser, CmpFloat64NotLesser: CmpFloat64Lesser,
	CmpFloat64LesserOrEqual: CmpFloat64NotLesserOrEqual, CmpFloat64NotLesserOrEqual: CmpFloat64LesserOrEqual,
}

// Inverse returns the comparison that is true exactly when c is false. For
// floating-point relations this respects IEEE unordered semantics: the
// inverse of "greater" is "not greater" (which is true for unordered
// operands), not "lesser or equal".
func (c ComparisonOperation) Inverse() (ComparisonOperation, bool) {
	inv, ok := comparisonInverse[c]
	return inv, ok
}

// IsIntegral reports whether c compares integers (as opposed to floats).
func (c ComparisonOperation) IsIntegral() bool {
	return c <= CmpInt64BelowOrEqual
}

// BranchConditionVariant selects the width and polarity of the scalar
// condition a conditional branch tests.
type BranchConditionVariant int

const (
	BranchCondition8Bit BranchConditionVariant = iota
	BranchConditionNegated8Bit
	BranchCondition16Bit
	BranchConditionNegated16Bit
	BranchCondition32Bit
	BranchConditionNegated32Bit
	BranchCondition64Bit
	BranchConditionNegated64Bit
)

// IsDirect reports whether the branch takes its target block when the
// tested condition is nonzero (as opposed to zero, for a Negated variant).
func (v BranchConditionVariant) IsDirect() bool {
	switch v {
	case BranchCondition8Bit, BranchCondition16Bit, BranchCondition32Bit, BranchCondition64Bit:
		return true
	default:
		return false
	}
}

// IsNegated is the complement of IsDirect.
func (v BranchConditionVariant) IsNegated() bool {
	return !v.IsDirect()
}

// OperationReferenceIndex names the slots of Operation.Refs for opcode
// classes that treat them positionally rather than as plain operands
// (bitfield base/value, memory access location/value, stack allocation
// size/alignment all reuse the same four-element array).
type OperationReferenceIndex int

const (
	RefBitfieldBase  OperationReferenceIndex = 0
	RefBitfieldValue OperationReferenceIndex = 1

	RefMemoryAccessLocation OperationReferenceIndex = 0
	RefMemoryAccessValue    OperationReferenceIndex = 1

	RefStackAllocationSize      OperationReferenceIndex = 0
	RefStackAllocationAlignment OperationReferenceIndex = 1
)
