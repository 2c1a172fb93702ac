package irformat

import (
	"encoding/json"
	"sort"
	"strconv"

	"github.com/segmentio/ksuid"

	"kefir/internal/ir"
)

// Dump renders module as the JSON debug-dump format (spec §6): every
// table the module owns, plus every function's blocks, phis, calls and
// inline-assembly sites in their exact container order, so Load can
// reconstruct a bit-identical container from the result.
func Dump(module *ir.Module) ([]byte, error) {
	out := moduleDump{
		MetaInfo:                metaInfo{OpcodeRev: ir.OpcodeRevision},
		StringLiterals:          make(map[string]string, len(module.StringLiterals)),
		InlineAssemblyFragments: make(map[string]string, len(module.InlineAssemblyFragments)),
	}

	for id, name := range module.StringLiterals {
		out.StringLiterals[idKey(id)] = name
	}
	for id, src := range module.InlineAssemblyFragments {
		out.InlineAssemblyFragments[idKey(id)] = src
	}

	for _, id := range sortedIDs(module.Types) {
		t := module.Types[id]
		fields := make([]typeRefDump, len(t.Fields))
		for i, f := range t.Fields {
			fields[i] = typeRefDump{TypeID: uint64(f.TypeID), Index: f.Index}
		}
		out.Types = append(out.Types, typeEntryDump{
			ID: uint64(id), Kind: t.Kind, Size: t.Size, Align: t.Align, Fields: fields,
		})
	}

	for _, id := range sortedIDs(module.Data) {
		d := module.Data[id]
		out.Data = append(out.Data, dataObjectDump{ID: uint64(id), Name: d.Name, Content: d.Content})
		out.Identifiers = append(out.Identifiers, identifierEntry{Name: d.Name, Kind: "data", ID: uint64(id)})
	}

	for _, id := range sortedIDs(module.FunctionDeclarations) {
		decl := module.FunctionDeclarations[id]
		params := make([]uint64, len(decl.ParamTypes))
		for i, p := range decl.ParamTypes {
			params[i] = uint64(p)
		}
		out.FunctionDeclarations = append(out.FunctionDeclarations, functionDeclarationDump{
			ID: uint64(id), Name: decl.Name, ParamTypes: params,
			ReturnType: uint64(decl.ReturnType), Variadic: decl.Variadic,
		})
		out.Identifiers = append(out.Identifiers, identifierEntry{Name: decl.Name, Kind: "function", ID: uint64(id)})
	}

	for _, id := range sortedIDs(module.Functions) {
		fd, err := dumpFunction(module.Functions[id])
		if err != nil {
			return nil, err
		}
		out.Functions = append(out.Functions, fd)
	}

	if module.DebugInfo != nil {
		out.DebugInfo = dumpDebugInfo(module.DebugInfo)
	}

	return json.MarshalIndent(out, "", "  ")
}

func idKey(id ir.ID) string {
	return strconv.FormatUint(uint64(id), 10)
}

func sortedIDs[V any](m map[ir.ID]V) []ir.ID {
	ids := make([]ir.ID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func dumpFunction(fn *ir.Function) (functionDump, error) {
	c := fn.Code
	out := functionDump{
		ID:            uint64(fn.ID),
		DeclarationID: uint64(fn.DeclarationID),
		LocalsTypeID:  uint64(fn.LocalsTypeID),
	}

	blockIDs := c.Blocks()
	entry, hasEntry := c.EntryPoint()

	for _, blockID := range blockIDs {
		b, err := c.Block(blockID)
		if err != nil {
			return functionDump{}, err
		}

		controlSet := make(map[ir.ID]struct{})
		for ref, err := c.BlockInstrControlHead(blockID); err == nil && ref != ir.NoRef; {
			controlSet[ref] = struct{}{}
			ref, err = c.InstructionNextControl(ref)
			if err != nil {
				break
			}
		}

		bd := blockDump{
			ID:           uint64(blockID),
			Entry:        hasEntry && entry == blockID,
			PublicLabels: sortedLabels(b.PublicLabels),
		}

		for ref, err := c.BlockInstrHead(blockID); err == nil && ref != ir.NoRef; {
			instr, ierr := c.Instr(ref)
			if ierr != nil {
				return functionDump{}, ierr
			}
			_, isControl := controlSet[ref]
			bd.Instructions = append(bd.Instructions, instructionDump{
				ID:      uint64(ref),
				Opcode:  instr.Operation.Opcode.String(),
				Arg:     dumpArg(instr.Operation.Opcode, instr.Operation.Parameters),
				Control: isControl,
			})
			ref, err = c.InstructionNextSibling(ref)
			if err != nil {
				break
			}
		}
		out.Blocks = append(out.Blocks, bd)

		for phiID, err := c.BlockPhiHead(blockID); err == nil && phiID != ir.NoRef; {
			phi, perr := c.Phi(phiID)
			if perr != nil {
				return functionDump{}, perr
			}
			links := make(map[string]uint64, len(phi.Links))
			for pred, val := range phi.Links {
				links[idKey(pred)] = uint64(val)
			}
			out.Phis = append(out.Phis, phiDump{
				ID: uint64(phiID), Block: uint64(blockID), OutputRef: uint64(phi.OutputRef), Links: links,
			})
			phiID, err = c.PhiNextSibling(phiID)
			if err != nil {
				break
			}
		}

		for callID, err := c.BlockCallHead(blockID); err == nil && callID != ir.NoRef; {
			call, cerr := c.Call(callID)
			if cerr != nil {
				return functionDump{}, cerr
			}
			args := make([]uint64, len(call.Arguments))
			for i, a := range call.Arguments {
				args[i] = uint64(a)
			}
			out.Calls = append(out.Calls, callDump{
				ID: uint64(callID), Block: uint64(blockID), OutputRef: uint64(call.OutputRef),
				DeclarationID: uint64(call.FunctionDeclarationID), Arguments: args,
				ReturnSpace: uint64(call.ReturnSpace), TailCall: call.IsTailCall,
			})
			callID, err = c.CallNextSibling(callID)
			if err != nil {
				break
			}
		}

		for asmID, err := c.BlockInlineAssemblyHead(blockID); err == nil && asmID != ir.NoRef; {
			node, aerr := c.InlineAssembly(asmID)
			if aerr != nil {
				return functionDump{}, aerr
			}
			params := make([]inlineAssemblyParameterDump, len(node.Parameters))
			for i, p := range node.Parameters {
				params[i] = inlineAssemblyParameterDump{ReadRef: uint64(p.ReadRef), LoadStoreRef: uint64(p.LoadStoreRef)}
			}
			targets := make(map[string]uint64, len(node.JumpTargets))
			for k, v := range node.JumpTargets {
				targets[idKey(k)] = uint64(v)
			}
			out.InlineAssembly = append(out.InlineAssembly, inlineAssemblyDump{
				ID: uint64(asmID), Block: uint64(blockID), OutputRef: uint64(node.OutputRef),
				FragmentID: uint64(node.InlineAsmID), Parameters: params,
				DefaultJumpTarget: uint64(node.DefaultJumpTarget), JumpTargets: targets,
			})
			asmID, err = c.InlineAssemblyNextSibling(asmID)
			if err != nil {
				break
			}
		}
	}

	return out, nil
}

func sortedLabels(labels map[string]struct{}) []string {
	if len(labels) == 0 {
		return nil
	}
	out := make([]string, 0, len(labels))
	for l := range labels {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

func dumpArg(opcode ir.Opcode, p ir.OperationParameters) operationArgDump {
	out := operationArgDump{}

	var refs []uint64
	for _, r := range p.Refs {
		refs = append(refs, uint64(r))
	}
	if hasNonZero(refs) {
		out.Refs = refs
	}

	if p.Type.TypeID != ir.NoRef {
		out.Type = &typeRefDump{TypeID: uint64(p.Type.TypeID), Index: p.Type.Index}
	}
	out.PhiRef = uint64(p.PhiRef)
	out.InlineAsmRef = uint64(p.InlineAsmRef)
	out.Index = p.Index
	out.Bitwidth = p.Bitwidth
	out.SourceWidth = p.SourceWidth

	if p.MemFlags.LoadExtension != ir.LoadNoExtend || p.MemFlags.VolatileAccess {
		out.MemoryFlags = &memoryFlagsDump{
			LoadExtension: loadExtensionToName[p.MemFlags.LoadExtension],
			Volatile:      p.MemFlags.VolatileAccess,
		}
	}
	if opcode == ir.OpAtomicLoad || opcode == ir.OpAtomicStore {
		out.AtomicOrder = atomicOrderSeqCst
	}
	out.Offset = p.Offset
	out.IRRef = uint64(p.IRRef)

	if opcode == ir.OpCompare {
		out.Comparison = comparisonToName[p.Comparison]
	}

	if p.Variable.GlobalRef != ir.NoRef {
		out.Variable = &variableRefDump{GlobalRef: uint64(p.Variable.GlobalRef), Offset: p.Variable.Offset}
	}

	if p.Branch.TargetBlock != ir.NoRef || p.Branch.AlternativeBlock != ir.NoRef || p.Branch.ConditionRef != ir.NoRef {
		out.Branch = &branchTargetDump{
			TargetBlock:      uint64(p.Branch.TargetBlock),
			AlternativeBlock: uint64(p.Branch.AlternativeBlock),
			ConditionVariant: branchVariantToName[p.Branch.ConditionVariant],
			ConditionRef:     uint64(p.Branch.ConditionRef),
			UsesComparison:   p.Branch.UsesComparison,
		}
		if p.Branch.UsesComparison {
			out.Branch.Comparison = comparisonToName[p.Branch.Comparison]
		}
	}

	if p.Imm != (ir.ImmediateValue{}) {
		out.Imm = &immediateDump{
			Integer: p.Imm.Integer, Unsigned: p.Imm.Unsigned, Float32: p.Imm.Float32,
			Float64: p.Imm.Float64, LongDouble: p.Imm.LongDouble,
			StringRef: uint64(p.Imm.StringRef), BlockRef: uint64(p.Imm.BlockRef),
		}
	}

	out.BitfieldOffset = p.BitfieldOffset
	out.BitfieldLength = p.BitfieldLength
	out.StackAllocationWithinScope = p.StackAllocationWithinScope

	if p.FunctionCall.CallRef != ir.NoRef || p.FunctionCall.IndirectRef != ir.NoRef {
		out.FunctionCall = &functionCallDump{
			CallRef: uint64(p.FunctionCall.CallRef), IndirectRef: uint64(p.FunctionCall.IndirectRef),
		}
	}

	out.OverflowSigned = p.OverflowSigned

	if len(p.IndirectTargets) > 0 {
		targets := make([]uint64, len(p.IndirectTargets))
		for i, t := range p.IndirectTargets {
			targets[i] = uint64(t)
		}
		out.IndirectTargets = targets
	}

	return out
}

func dumpDebugInfo(tree *ir.DebugInfoTree) *debugInfoDump {
	out := &debugInfoDump{Root: tree.Root.String()}

	keys := make([]ksuid.KSUID, 0, len(tree.Nodes))
	for id := range tree.Nodes {
		keys = append(keys, id)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	for _, id := range keys {
		node := tree.Nodes[id]
		children := make([]string, len(node.Children))
		for i, c := range node.Children {
			children[i] = c.String()
		}
		parent := ""
		if node.Parent != ksuid.Nil {
			parent = node.Parent.String()
		}
		out.Nodes = append(out.Nodes, debugInfoNodeDump{
			ID: node.ID.String(), Parent: parent, Kind: node.Kind, Payload: node.Payload, Children: children,
		})
	}
	return out
}

func hasNonZero(vals []uint64) bool {
	for _, v := range vals {
		if v != 0 {
			return true
		}
	}
	return false
}

