package optimizer

import (
	"sort"

	"github.com/tliron/commonlog"

	"kefir/internal/config"
	kerr "kefir/internal/errors"
	"kefir/internal/ir"
)

// registry maps a pass name to its constructor, letting a Pipeline be
// built from the plain comma-separated pass-name list of a config.Pipeline
// document as well as from the richer pipelinespec DSL.
var registry = map[string]func() Pass{
	"mem2reg":              func() Pass { return Mem2Reg{} },
	"phi-pull":             func() Pass { return PhiPull{} },
	"dead-block-removal":   func() Pass { return DeadBlockRemoval{} },
	"constant-propagation": func() Pass { return ConstantPropagation{} },
	"value-numbering":      func() Pass { return ValueNumbering{} },
}

// Lookup resolves a pass by name, as registered in registry.
func Lookup(name string) (Pass, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, kerr.New(kerr.UserError, "optimizer.Lookup", "unknown pass: "+name)
	}
	return ctor(), nil
}

// Pipeline runs an ordered list of passes over every function of a
// module, once per pass per function. A pass yielding on a function
// (errors.IsYield) stops that function's remaining passes without
// counting as a failure of the overall run; any other error aborts only
// the function currently being processed, continuing on to the rest of
// the module (spec §4.5) so one malformed function doesn't block
// compiling the rest.
type Pipeline struct {
	Passes []Pass
	Config config.PassConfig
	Logger commonlog.Logger
}

// NewPipeline builds a Pipeline from a config.Pipeline document, resolving
// each named pass through the registry.
func NewPipeline(doc config.Pipeline) (*Pipeline, error) {
	passes := make([]Pass, 0, len(doc.Passes))
	for _, name := range doc.Passes {
		pass, err := Lookup(name)
		if err != nil {
			return nil, err
		}
		passes = append(passes, pass)
	}
	return &Pipeline{
		Passes: passes,
		Config: doc.Config,
		Logger: commonlog.GetLogger("kefir.optimizer.pipeline"),
	}, nil
}

// FunctionOutcome records what happened to one function during one Run.
type FunctionOutcome struct {
	FunctionID ir.ID
	FailedPass string
	Err        error
}

// Run executes every pass, in order, against every function currently
// defined in module. It returns one FunctionOutcome per function on which
// a pass failed; a yield is logged but records no outcome, so a nil slice
// means no pass failed on any function.
func (p *Pipeline) Run(module *ir.Module) []FunctionOutcome {
	var outcomes []FunctionOutcome
	logger := p.Logger
	if logger == nil {
		logger = commonlog.GetLogger("kefir.optimizer.pipeline")
	}

	ids := make([]ir.ID, 0, len(module.Functions))
	for id := range module.Functions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		fn := module.Functions[id]
		for _, pass := range p.Passes {
			err := pass.Apply(module, fn, p.Config)
			if err == nil {
				continue
			}
			if kerr.IsYield(err) {
				logger.Infof("pass %s yielded on function %s: %v", pass.Name(), fn.Name(module), err)
				break
			}
			logger.Errorf("pass %s failed on function %s: %v", pass.Name(), fn.Name(module), err)
			outcomes = append(outcomes, FunctionOutcome{
				FunctionID: fn.ID,
				FailedPass: pass.Name(),
				Err:        err,
			})
			break
		}
	}
	return outcomes
}
