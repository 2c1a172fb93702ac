// Package regalloc is a linear-scan register allocator that consumes the
// optimizer core's liveness and dominance oracles, exemplifying how a
// real backend would sit downstream of the pipeline without the
// container ever needing to know it exists.
package regalloc

import kerr "kefir/internal/errors"

// Class partitions the two register files a System V AMD64-shaped
// target exposes. An allocation never crosses classes: an integer value
// never lands in an XMM register and vice versa.
type Class int

const (
	// ClassGeneralPurpose is the integer/pointer register file.
	ClassGeneralPurpose Class = iota
	// ClassFloatingPoint is the XMM register file.
	ClassFloatingPoint
	// ClassSkip marks a value that never occupies a register (a
	// terminator, a bare side-effecting op with no result, a scope-pop).
	ClassSkip
)

// GeneralPurposeRegisters lists the integer register file in caller-
// saved-first order, matching the allocator's preference for registers
// that don't need saving across calls.
var GeneralPurposeRegisters = []string{
	"rax", "rcx", "rdx", "rsi", "rdi", "r8", "r9", "r10", "r11",
	"rbx", "r12", "r13", "r14", "r15",
}

// FloatingPointRegisters lists the sixteen XMM registers in index order.
var FloatingPointRegisters = []string{
	"xmm0", "xmm1", "xmm2", "xmm3", "xmm4", "xmm5", "xmm6", "xmm7",
	"xmm8", "xmm9", "xmm10", "xmm11", "xmm12", "xmm13", "xmm14", "xmm15",
}

// NumGeneralPurposeRegisters and NumFloatingPointRegisters size the
// allocator's register bitsets.
const (
	NumGeneralPurposeRegisters = 14
	NumFloatingPointRegisters  = 16
)

func generalPurposeIndexOf(name string) (int, error) {
	for i, r := range GeneralPurposeRegisters {
		if r == name {
			return i, nil
		}
	}
	return 0, kerr.New(kerr.InvalidArgument, "regalloc.generalPurposeIndexOf", "unknown general-purpose register: "+name)
}

func floatingPointIndexOf(name string) (int, error) {
	for i, r := range FloatingPointRegisters {
		if r == name {
			return i, nil
		}
	}
	return 0, kerr.New(kerr.InvalidArgument, "regalloc.floatingPointIndexOf", "unknown floating-point register: "+name)
}

// ResultKind is the concrete outcome of allocating one value.
type ResultKind int

const (
	ResultNone ResultKind = iota
	ResultGeneralPurposeRegister
	ResultFloatingPointRegister
	ResultIndirect // a preallocated argument passed on the stack, read via base+offset
	ResultSpill
)

// Location is where an allocated value ultimately lives.
type Location struct {
	Kind           ResultKind
	RegisterIndex  int    // meaningful for ResultGeneralPurposeRegister / ResultFloatingPointRegister
	IndirectBase   string // meaningful for ResultIndirect, e.g. "rbp"
	IndirectOffset int64  // meaningful for ResultIndirect
	SpillIndex     int    // meaningful for ResultSpill
}

// argumentPreallocation is the calling-convention-fixed location a
// GetArgument instruction must land in, independent of what the rest of
// the function's interference graph would otherwise pick.
type argumentPreallocation struct {
	direct  Location
	isDirect bool
}

// sysvIntegerArgumentRegisters is the System V AMD64 order in which the
// first six integer/pointer arguments are passed.
var sysvIntegerArgumentRegisters = []string{"rdi", "rsi", "rdx", "rcx", "r8", "r9"}

// preallocateArguments assigns each of a function's declared parameters
// either one of the fixed integer argument registers or an indirect
// stack slot, per the System V calling convention this exemplar targets.
// Every parameter type is treated as a general-purpose (integer/pointer)
// value; the original backend's per-typeentry classification (structs by
// member class, vectors in XMM pairs, and so on) is out of scope here.
func preallocateArguments(paramCount int) map[uint64]argumentPreallocation {
	out := make(map[uint64]argumentPreallocation, paramCount)
	for i := 0; i < paramCount; i++ {
		if i < len(sysvIntegerArgumentRegisters) {
			idx, _ := generalPurposeIndexOf(sysvIntegerArgumentRegisters[i])
			out[uint64(i)] = argumentPreallocation{
				direct:   Location{Kind: ResultGeneralPurposeRegister, RegisterIndex: idx},
				isDirect: true,
			}
			continue
		}
		stackIndex := i - len(sysvIntegerArgumentRegisters)
		out[uint64(i)] = argumentPreallocation{
			direct: Location{
				Kind:           ResultIndirect,
				IndirectBase:   "rbp",
				IndirectOffset: int64(16 + 8*stackIndex),
			},
		}
	}
	return out
}
