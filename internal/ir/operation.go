package ir

// TypeRef identifies a type within the owning module's type table together
// with an optional index into an aggregate (used by bitfield/member
// accesses on that type).
type TypeRef struct {
	TypeID ID
	Index  uint64
}

// BranchTarget carries the two-way destination and selector of a
// conditional terminator. ComparisonOperation is set instead of
// ConditionVariant when the branch fuses a Compare instruction directly
// (branch_compare), letting the code generator avoid materializing the
// boolean.
type BranchTarget struct {
	TargetBlock      ID
	AlternativeBlock ID
	ConditionVariant BranchConditionVariant
	ConditionRef     ID
	Comparison       ComparisonOperation
	UsesComparison   bool
}

// VariableRef names a global or thread-local plus a byte offset into it.
type VariableRef struct {
	GlobalRef ID
	Offset    int64
}

// ImmediateValue is the literal payload of a constant-class instruction.
// Exactly one field is meaningful, selected by the instruction's opcode;
// the others are zero. Go has no union, so (per DESIGN.md) this is a flat
// struct rather than the original's overlapping union members.
type ImmediateValue struct {
	Integer    int64
	Unsigned   uint64
	Float32    float32
	Float64    float64
	LongDouble float64
	StringRef  ID
	BlockRef   ID
}

// FunctionCallRef ties a Call/TailCall/Invoke instruction back to its
// pooled CallNode, and, for an indirect call, to the instruction producing
// the callee address.
type FunctionCallRef struct {
	CallRef      ID
	IndirectRef  ID
}

// OperationParameters is the flattened equivalent of the original
// container's operand union: every opcode class reads only the fields it
// defines and leaves the rest zero. Refs holds up to four plain operand
// instruction references, reused positionally per OperationReferenceIndex
// for classes that need more structure than "a flat operand list".
type OperationParameters struct {
	Refs [4]ID

	Type TypeRef

	PhiRef       ID
	InlineAsmRef ID
	Index        uint64
	Bitwidth     uint64
	SourceWidth  uint64
	MemFlags     MemoryAccessFlags
	AtomicOrder  MemoryOrder
	Offset       int64
	IRRef        ID
	Comparison   ComparisonOperation
	Variable     VariableRef
	Branch       BranchTarget
	Imm          ImmediateValue
	BitfieldOffset uint64
	BitfieldLength uint64
	StackAllocationWithinScope bool
	FunctionCall   FunctionCallRef
	OverflowSigned bool

	// IndirectTargets holds the possible destination blocks of an
	// IndirectJump, too variable in number to fit the fixed Refs array.
	IndirectTargets []ID
}

// Operation is an opcode paired with its parameters. Every Instruction
// owns exactly one Operation.
type Operation struct {
	Opcode     Opcode
	Parameters OperationParameters
}
