package optimizer_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"kefir/internal/config"
	"kefir/internal/ir"
	"kefir/internal/optimizer"
)

func TestPipelineRunsPassesInOrder(t *testing.T) {
	m, fn := newTestFunction(t)
	c := fn.Code
	entry := fn.EntryBlock

	local, err := c.NewInstruction(entry, ir.Operation{Opcode: ir.OpLocalAlloc})
	require.NoError(t, err)
	a, err := c.NewInstruction(entry, ir.Operation{
		Opcode:     ir.OpIntConst,
		Parameters: ir.OperationParameters{Imm: ir.ImmediateValue{Integer: 3}},
	})
	require.NoError(t, err)
	store, err := c.NewInstruction(entry, ir.Operation{
		Opcode:     ir.OpStore,
		Parameters: ir.OperationParameters{Refs: [4]ir.ID{local, a}},
	})
	require.NoError(t, err)
	require.NoError(t, c.AddControl(entry, store))

	load, err := c.NewInstruction(entry, ir.Operation{
		Opcode:     ir.OpLoad,
		Parameters: ir.OperationParameters{Refs: [4]ir.ID{local}},
	})
	require.NoError(t, err)
	b, err := c.NewInstruction(entry, ir.Operation{
		Opcode:     ir.OpIntConst,
		Parameters: ir.OperationParameters{Imm: ir.ImmediateValue{Integer: 4}},
	})
	require.NoError(t, err)
	sum, err := c.NewInstruction(entry, ir.Operation{
		Opcode:     ir.OpIntAdd,
		Parameters: ir.OperationParameters{Refs: [4]ir.ID{load, b}},
	})
	require.NoError(t, err)
	ret, err := c.NewInstruction(entry, ir.Operation{
		Opcode:     ir.OpReturn,
		Parameters: ir.OperationParameters{Refs: [4]ir.ID{sum}},
	})
	require.NoError(t, err)
	require.NoError(t, c.AddControl(entry, ret))

	pipeline, err := optimizer.NewPipeline(config.Pipeline{
		Passes: []string{"mem2reg", "constant-propagation"},
		Config: config.DefaultPassConfig(),
	})
	require.NoError(t, err)

	outcomes := pipeline.Run(m)
	require.Empty(t, outcomes)

	retInstr, err := c.Instr(ret)
	require.NoError(t, err)
	folded, err := c.Instr(retInstr.Operation.Parameters.Refs[0])
	require.NoError(t, err)
	require.Equal(t, ir.OpIntConst, folded.Operation.Opcode)
	require.Equal(t, int64(7), folded.Operation.Parameters.Imm.Integer)
}

func TestPipelineRecordsYieldWithoutFailure(t *testing.T) {
	m, fn := newTestFunction(t)
	c := fn.Code
	entry := fn.EntryBlock

	target, err := c.NewInstruction(entry, ir.Operation{Opcode: ir.OpIntConst})
	require.NoError(t, err)
	jmp, err := c.NewInstruction(entry, ir.Operation{
		Opcode:     ir.OpIndirectJump,
		Parameters: ir.OperationParameters{Refs: [4]ir.ID{target}},
	})
	require.NoError(t, err)
	require.NoError(t, c.AddControl(entry, jmp))

	pipeline, err := optimizer.NewPipeline(config.Pipeline{
		Passes: []string{"mem2reg"},
		Config: config.DefaultPassConfig(),
	})
	require.NoError(t, err)

	outcomes := pipeline.Run(m)
	require.Empty(t, outcomes, "a yield must not be reported as a function failure")
}

func TestLookupRejectsUnknownPass(t *testing.T) {
	_, err := optimizer.Lookup("not-a-real-pass")
	require.Error(t, err)
}
