// Package irformat implements the JSON debug-dump format: a human-
// readable, round-trippable rendering of a Module that a developer can
// diff, hand-edit and reload, independent of any in-memory pointer
// layout. Every field name below is the wire name a dump actually uses.
package irformat

// metaInfo carries the one piece of global state the format depends on:
// the opcode revision the dump was produced under.
type metaInfo struct {
	OpcodeRev int `json:"opcode_rev"`
}

type identifierEntry struct {
	Name string `json:"name"`
	Kind string `json:"kind"` // "function" | "data"
	ID   uint64 `json:"id"`
}

type typeRefDump struct {
	TypeID uint64 `json:"type"`
	Index  uint64 `json:"index"`
}

type typeEntryDump struct {
	ID     uint64        `json:"id"`
	Kind   string        `json:"kind"`
	Size   uint64        `json:"size"`
	Align  uint64        `json:"align"`
	Fields []typeRefDump `json:"fields,omitempty"`
}

type dataObjectDump struct {
	ID      uint64 `json:"id"`
	Name    string `json:"name"`
	Content []byte `json:"content"`
}

type functionDeclarationDump struct {
	ID         uint64   `json:"id"`
	Name       string   `json:"name"`
	ParamTypes []uint64 `json:"param_types,omitempty"`
	ReturnType uint64   `json:"return_type"`
	Variadic   bool     `json:"variadic,omitempty"`
}

type variableRefDump struct {
	GlobalRef uint64 `json:"global_ref"`
	Offset    int64  `json:"offset,omitempty"`
}

type branchTargetDump struct {
	TargetBlock      uint64 `json:"target_block"`
	AlternativeBlock uint64 `json:"alternative_block,omitempty"`
	ConditionVariant string `json:"condition_variant,omitempty"`
	ConditionRef     uint64 `json:"condition_ref,omitempty"`
	Comparison       string `json:"comparison,omitempty"`
	UsesComparison   bool   `json:"uses_comparison,omitempty"`
}

type immediateDump struct {
	Integer    int64   `json:"integer,omitempty"`
	Unsigned   uint64  `json:"unsigned,omitempty"`
	Float32    float32 `json:"float32,omitempty"`
	Float64    float64 `json:"float64,omitempty"`
	LongDouble float64 `json:"long_double,omitempty"`
	StringRef  uint64  `json:"string_ref,omitempty"`
	BlockRef   uint64  `json:"block_ref,omitempty"`
}

type memoryFlagsDump struct {
	LoadExtension string `json:"load_extension,omitempty"`
	Volatile      bool   `json:"volatile,omitempty"`
}

type functionCallDump struct {
	CallRef     uint64 `json:"call_ref,omitempty"`
	IndirectRef uint64 `json:"indirect_ref,omitempty"`
}

// operationArgDump is the wire shape of an instruction's "arg" object: the
// flattened parameter set, every field optional since a given opcode only
// reads a handful of them.
type operationArgDump struct {
	Refs                       []uint64          `json:"refs,omitempty"`
	Type                       *typeRefDump      `json:"type,omitempty"`
	PhiRef                     uint64            `json:"phi_ref,omitempty"`
	InlineAsmRef               uint64            `json:"inline_asm_ref,omitempty"`
	Index                      uint64            `json:"index,omitempty"`
	Bitwidth                   uint64            `json:"bitwidth,omitempty"`
	SourceWidth                uint64            `json:"source_width,omitempty"`
	MemoryFlags                *memoryFlagsDump  `json:"memory_flags,omitempty"`
	AtomicOrder                string            `json:"atomic_order,omitempty"`
	Offset                     int64             `json:"offset,omitempty"`
	IRRef                      uint64            `json:"ir_ref,omitempty"`
	Comparison                 string            `json:"comparison,omitempty"`
	Variable                   *variableRefDump  `json:"variable,omitempty"`
	Branch                     *branchTargetDump `json:"branch,omitempty"`
	Imm                        *immediateDump    `json:"imm,omitempty"`
	BitfieldOffset             uint64            `json:"bitfield_offset,omitempty"`
	BitfieldLength             uint64            `json:"bitfield_length,omitempty"`
	StackAllocationWithinScope bool              `json:"stack_allocation_within_scope,omitempty"`
	FunctionCall               *functionCallDump `json:"function_call,omitempty"`
	OverflowSigned             bool              `json:"overflow_signed,omitempty"`
	IndirectTargets            []uint64          `json:"indirect_targets,omitempty"`
}

type instructionDump struct {
	ID      uint64           `json:"id"`
	Opcode  string           `json:"opcode"`
	Arg     operationArgDump `json:"arg"`
	Control bool             `json:"control,omitempty"`
}

type blockDump struct {
	ID           uint64            `json:"id"`
	Entry        bool              `json:"entry,omitempty"`
	PublicLabels []string          `json:"public_labels,omitempty"`
	Instructions []instructionDump `json:"instructions"`
}

type phiDump struct {
	ID        uint64            `json:"id"`
	Block     uint64            `json:"block"`
	OutputRef uint64            `json:"output_ref"`
	Links     map[string]uint64 `json:"links,omitempty"`
}

type callDump struct {
	ID            uint64   `json:"id"`
	Block         uint64   `json:"block"`
	OutputRef     uint64   `json:"output_ref"`
	DeclarationID uint64   `json:"declaration_id"`
	Arguments     []uint64 `json:"arguments,omitempty"`
	ReturnSpace   uint64   `json:"return_space,omitempty"`
	TailCall      bool     `json:"tail_call,omitempty"`
}

type inlineAssemblyParameterDump struct {
	ReadRef      uint64 `json:"read_ref,omitempty"`
	LoadStoreRef uint64 `json:"load_store_ref,omitempty"`
}

type inlineAssemblyDump struct {
	ID                uint64                        `json:"id"`
	Block             uint64                        `json:"block"`
	OutputRef         uint64                        `json:"output_ref"`
	FragmentID        uint64                        `json:"fragment_id"`
	Parameters        []inlineAssemblyParameterDump `json:"parameters,omitempty"`
	DefaultJumpTarget uint64                        `json:"default_jump_target,omitempty"`
	JumpTargets       map[string]uint64             `json:"jump_targets,omitempty"`
}

type functionDump struct {
	ID             uint64               `json:"id"`
	DeclarationID  uint64               `json:"declaration_id"`
	LocalsTypeID   uint64               `json:"locals_type_id,omitempty"`
	Blocks         []blockDump          `json:"blocks"`
	Phis           []phiDump            `json:"phis,omitempty"`
	Calls          []callDump           `json:"calls,omitempty"`
	InlineAssembly []inlineAssemblyDump `json:"inline_assembly,omitempty"`
}

type debugInfoNodeDump struct {
	ID       string   `json:"id"`
	Parent   string   `json:"parent,omitempty"`
	Kind     string   `json:"kind"`
	Payload  []byte   `json:"payload,omitempty"`
	Children []string `json:"children,omitempty"`
}

type debugInfoDump struct {
	Root  string              `json:"root"`
	Nodes []debugInfoNodeDump `json:"nodes"`
}

// moduleDump is the top-level JSON object a debug dump serializes to.
type moduleDump struct {
	MetaInfo                metaInfo                  `json:"meta_info"`
	Identifiers             []identifierEntry         `json:"identifiers,omitempty"`
	Types                   []typeEntryDump           `json:"types,omitempty"`
	Data                    []dataObjectDump          `json:"data,omitempty"`
	StringLiterals          map[string]string         `json:"string_literals,omitempty"`
	FunctionDeclarations    []functionDeclarationDump `json:"function_declarations,omitempty"`
	Functions               []functionDump            `json:"functions,omitempty"`
	InlineAssemblyFragments map[string]string         `json:"inline_assembly,omitempty"`
	DebugInfo               *debugInfoDump            `json:"debug_info,omitempty"`
}
