// Package optimizer implements the transformation passes and the
// pipeline driver that runs them over each function of a module in turn.
package optimizer

import (
	"kefir/internal/config"
	"kefir/internal/ir"
)

// Pass is one transformation that rewrites a single function's code
// container in place. A pass returns a non-nil *errors.Error of kind
// Yield (not a plain error) to decline further processing of the current
// function without that counting as a failure.
type Pass interface {
	Name() string
	Apply(module *ir.Module, fn *ir.Function, cfg config.PassConfig) error
}
