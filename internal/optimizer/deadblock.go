package optimizer

import (
	"kefir/internal/config"
	kerr "kefir/internal/errors"
	"kefir/internal/ir"
	"kefir/internal/ir/oracle"
)

// DeadBlockRemoval prunes blocks unreachable from the entry point and
// instructions no longer reachable, through operand and phi-link edges,
// from any side-effecting or terminating root. It is a thin driver over
// the dead-code oracle and the container's own DropDeadCode, which does
// the actual graph surgery.
type DeadBlockRemoval struct{}

func (DeadBlockRemoval) Name() string { return "dead-block-removal" }

func (DeadBlockRemoval) Apply(module *ir.Module, fn *ir.Function, cfg config.PassConfig) error {
	idx, err := oracle.ComputeDeadCode(fn.Code, fn.EntryBlock)
	if err != nil {
		return kerr.Wrap(err, kerr.InvariantViolation, "dead-block-removal", "failed computing dead-code index")
	}
	if err := fn.Code.DropDeadCode(idx); err != nil {
		return kerr.Wrap(err, kerr.InvariantViolation, "dead-block-removal", "failed dropping dead code")
	}
	return nil
}
