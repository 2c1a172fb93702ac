package irformat

import (
	"encoding/json"
	"strconv"

	"github.com/segmentio/ksuid"

	kerr "kefir/internal/errors"
	"kefir/internal/ir"
)

// Load parses the JSON debug-dump format back into a Module, checking the
// opcode revision before touching anything else and reproducing every
// original ID exactly (including gaps left by entities already dropped
// before the dump was taken) via the ir package's Restore* constructors.
func Load(data []byte) (*ir.Module, error) {
	var in moduleDump
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, kerr.Wrap(err, kerr.UserError, "irformat.Load", "malformed debug dump JSON")
	}
	if in.MetaInfo.OpcodeRev != ir.OpcodeRevision {
		return nil, kerr.New(kerr.UserError, "irformat.Load", "opcode revision mismatch: dump was produced under a different opcode table")
	}

	m := ir.NewModule()

	for _, t := range in.Types {
		fields := make([]ir.TypeRef, len(t.Fields))
		for i, f := range t.Fields {
			fields[i] = ir.TypeRef{TypeID: ir.ID(f.TypeID), Index: f.Index}
		}
		m.RestoreType(ir.TypeEntry{ID: ir.ID(t.ID), Kind: t.Kind, Size: t.Size, Align: t.Align, Fields: fields})
	}

	for _, d := range in.Data {
		m.RestoreData(ir.DataObject{ID: ir.ID(d.ID), Name: d.Name, Content: d.Content})
	}

	for key, value := range in.StringLiterals {
		id, err := parseID(key)
		if err != nil {
			return nil, err
		}
		m.RestoreStringLiteral(id, value)
	}

	for key, source := range in.InlineAssemblyFragments {
		id, err := parseID(key)
		if err != nil {
			return nil, err
		}
		m.RestoreInlineAssemblyFragment(id, source)
	}

	for _, d := range in.FunctionDeclarations {
		params := make([]ir.ID, len(d.ParamTypes))
		for i, p := range d.ParamTypes {
			params[i] = ir.ID(p)
		}
		m.RestoreFunctionDeclaration(ir.FunctionDeclaration{
			ID: ir.ID(d.ID), Name: d.Name, ParamTypes: params,
			ReturnType: ir.ID(d.ReturnType), Variadic: d.Variadic,
		})
	}

	for _, fd := range in.Functions {
		if err := loadFunction(m, fd); err != nil {
			return nil, err
		}
	}

	if in.DebugInfo != nil {
		tree, err := loadDebugInfo(in.DebugInfo)
		if err != nil {
			return nil, err
		}
		m.DebugInfo = tree
	}

	return m, nil
}

func parseID(key string) (ir.ID, error) {
	v, err := strconv.ParseUint(key, 10, 64)
	if err != nil {
		return ir.NoRef, kerr.Wrap(err, kerr.UserError, "irformat.parseID", "malformed identifier key: "+key)
	}
	return ir.ID(v), nil
}

func loadFunction(m *ir.Module, fd functionDump) error {
	fn, err := m.RestoreFunction(ir.ID(fd.ID), ir.ID(fd.DeclarationID), ir.ID(fd.LocalsTypeID))
	if err != nil {
		return err
	}
	c := fn.Code

	for _, bd := range fd.Blocks {
		if err := c.RestoreBlock(ir.ID(bd.ID), bd.Entry, bd.PublicLabels); err != nil {
			return err
		}
	}
	if entry, ok := c.EntryPoint(); ok {
		fn.EntryBlock = entry
	}

	for _, bd := range fd.Blocks {
		block := ir.ID(bd.ID)
		for _, id := range bd.Instructions {
			op, err := loadOperation(id)
			if err != nil {
				return err
			}
			if err := c.RestoreInstruction(ir.ID(id.ID), block, op, id.Control); err != nil {
				return err
			}
		}
	}

	for _, pd := range fd.Phis {
		links := make(map[ir.ID]ir.ID, len(pd.Links))
		for key, value := range pd.Links {
			predID, err := parseID(key)
			if err != nil {
				return err
			}
			links[predID] = ir.ID(value)
		}
		if err := c.RestorePhi(ir.ID(pd.ID), ir.ID(pd.Block), ir.ID(pd.OutputRef), links); err != nil {
			return err
		}
	}

	for _, cd := range fd.Calls {
		args := make([]ir.ID, len(cd.Arguments))
		for i, a := range cd.Arguments {
			args[i] = ir.ID(a)
		}
		if err := c.RestoreCall(ir.ID(cd.ID), ir.ID(cd.Block), ir.ID(cd.DeclarationID),
			ir.ID(cd.OutputRef), ir.ID(cd.ReturnSpace), args, cd.TailCall); err != nil {
			return err
		}
	}

	for _, ad := range fd.InlineAssembly {
		params := make([]ir.InlineAssemblyParameter, len(ad.Parameters))
		for i, p := range ad.Parameters {
			params[i] = ir.InlineAssemblyParameter{ReadRef: ir.ID(p.ReadRef), LoadStoreRef: ir.ID(p.LoadStoreRef)}
		}
		targets := make(map[ir.ID]ir.ID, len(ad.JumpTargets))
		for key, value := range ad.JumpTargets {
			keyID, err := parseID(key)
			if err != nil {
				return err
			}
			targets[keyID] = ir.ID(value)
		}
		if err := c.RestoreInlineAssembly(ir.ID(ad.ID), ir.ID(ad.Block), ir.ID(ad.FragmentID),
			ir.ID(ad.OutputRef), ir.ID(ad.DefaultJumpTarget), params, targets); err != nil {
			return err
		}
	}

	return nil
}

func loadOperation(id instructionDump) (ir.Operation, error) {
	opcode, ok := ir.ParseOpcode(id.Opcode)
	if !ok {
		return ir.Operation{}, kerr.New(kerr.UserError, "irformat.loadOperation", "unknown opcode: "+id.Opcode)
	}

	p := ir.OperationParameters{
		PhiRef:                     ir.ID(id.Arg.PhiRef),
		InlineAsmRef:               ir.ID(id.Arg.InlineAsmRef),
		Index:                      id.Arg.Index,
		Bitwidth:                   id.Arg.Bitwidth,
		SourceWidth:                id.Arg.SourceWidth,
		Offset:                     id.Arg.Offset,
		IRRef:                      ir.ID(id.Arg.IRRef),
		BitfieldOffset:             id.Arg.BitfieldOffset,
		BitfieldLength:             id.Arg.BitfieldLength,
		StackAllocationWithinScope: id.Arg.StackAllocationWithinScope,
		OverflowSigned:             id.Arg.OverflowSigned,
	}

	for i, r := range id.Arg.Refs {
		if i >= len(p.Refs) {
			break
		}
		p.Refs[i] = ir.ID(r)
	}

	if id.Arg.Type != nil {
		p.Type = ir.TypeRef{TypeID: ir.ID(id.Arg.Type.TypeID), Index: id.Arg.Type.Index}
	}

	if id.Arg.MemoryFlags != nil {
		ext, ok := nameToLoadExtension[id.Arg.MemoryFlags.LoadExtension]
		if id.Arg.MemoryFlags.LoadExtension != "" && !ok {
			return ir.Operation{}, kerr.New(kerr.UserError, "irformat.loadOperation", "unknown load extension: "+id.Arg.MemoryFlags.LoadExtension)
		}
		p.MemFlags = ir.MemoryAccessFlags{LoadExtension: ext, VolatileAccess: id.Arg.MemoryFlags.Volatile}
	}
	if id.Arg.AtomicOrder == atomicOrderSeqCst {
		p.AtomicOrder = ir.MemoryOrderSeqCst
	}

	if opcode == ir.OpCompare {
		cmp, ok := nameToComparison[id.Arg.Comparison]
		if !ok {
			return ir.Operation{}, kerr.New(kerr.UserError, "irformat.loadOperation", "unknown comparison: "+id.Arg.Comparison)
		}
		p.Comparison = cmp
	}

	if id.Arg.Variable != nil {
		p.Variable = ir.VariableRef{GlobalRef: ir.ID(id.Arg.Variable.GlobalRef), Offset: id.Arg.Variable.Offset}
	}

	if id.Arg.Branch != nil {
		variant, ok := nameToBranchVariant[id.Arg.Branch.ConditionVariant]
		if id.Arg.Branch.ConditionVariant != "" && !ok {
			return ir.Operation{}, kerr.New(kerr.UserError, "irformat.loadOperation", "unknown branch condition variant: "+id.Arg.Branch.ConditionVariant)
		}
		p.Branch = ir.BranchTarget{
			TargetBlock:      ir.ID(id.Arg.Branch.TargetBlock),
			AlternativeBlock: ir.ID(id.Arg.Branch.AlternativeBlock),
			ConditionVariant: variant,
			ConditionRef:     ir.ID(id.Arg.Branch.ConditionRef),
			UsesComparison:   id.Arg.Branch.UsesComparison,
		}
		if id.Arg.Branch.UsesComparison {
			cmp, ok := nameToComparison[id.Arg.Branch.Comparison]
			if !ok {
				return ir.Operation{}, kerr.New(kerr.UserError, "irformat.loadOperation", "unknown branch comparison: "+id.Arg.Branch.Comparison)
			}
			p.Branch.Comparison = cmp
		}
	}

	if id.Arg.Imm != nil {
		p.Imm = ir.ImmediateValue{
			Integer: id.Arg.Imm.Integer, Unsigned: id.Arg.Imm.Unsigned, Float32: id.Arg.Imm.Float32,
			Float64: id.Arg.Imm.Float64, LongDouble: id.Arg.Imm.LongDouble,
			StringRef: ir.ID(id.Arg.Imm.StringRef), BlockRef: ir.ID(id.Arg.Imm.BlockRef),
		}
	}

	if id.Arg.FunctionCall != nil {
		p.FunctionCall = ir.FunctionCallRef{
			CallRef: ir.ID(id.Arg.FunctionCall.CallRef), IndirectRef: ir.ID(id.Arg.FunctionCall.IndirectRef),
		}
	}

	if len(id.Arg.IndirectTargets) > 0 {
		targets := make([]ir.ID, len(id.Arg.IndirectTargets))
		for i, t := range id.Arg.IndirectTargets {
			targets[i] = ir.ID(t)
		}
		p.IndirectTargets = targets
	}

	return ir.Operation{Opcode: opcode, Parameters: p}, nil
}

func loadDebugInfo(d *debugInfoDump) (*ir.DebugInfoTree, error) {
	root, err := ksuid.Parse(d.Root)
	if err != nil {
		return nil, kerr.Wrap(err, kerr.UserError, "irformat.loadDebugInfo", "malformed debug info root id")
	}
	tree := &ir.DebugInfoTree{Root: root, Nodes: make(map[ksuid.KSUID]*ir.DebugInfoNode, len(d.Nodes))}

	for _, nd := range d.Nodes {
		id, err := ksuid.Parse(nd.ID)
		if err != nil {
			return nil, kerr.Wrap(err, kerr.UserError, "irformat.loadDebugInfo", "malformed debug info node id")
		}
		var parent ksuid.KSUID
		if nd.Parent != "" {
			parent, err = ksuid.Parse(nd.Parent)
			if err != nil {
				return nil, kerr.Wrap(err, kerr.UserError, "irformat.loadDebugInfo", "malformed debug info parent id")
			}
		}
		children := make([]ksuid.KSUID, len(nd.Children))
		for i, c := range nd.Children {
			childID, err := ksuid.Parse(c)
			if err != nil {
				return nil, kerr.Wrap(err, kerr.UserError, "irformat.loadDebugInfo", "malformed debug info child id")
			}
			children[i] = childID
		}
		tree.Nodes[id] = &ir.DebugInfoNode{ID: id, Parent: parent, Kind: nd.Kind, Payload: nd.Payload, Children: children}
	}

	return tree, nil
}
