package ir

import (
	"github.com/segmentio/ksuid"

	kerr "kefir/internal/errors"
)

// DebugInfoNode is one node of the debug-info tree the optimizer carries
// on behalf of the code generator but never interprets: passes must treat
// Payload as opaque bytes and never branch on its contents.
type DebugInfoNode struct {
	ID       ksuid.KSUID
	Parent   ksuid.KSUID
	Kind     string
	Payload  []byte
	Children []ksuid.KSUID
}

// DebugInfoTree is an opaque-to-the-optimizer tree of debug-info nodes,
// keyed by ksuid so that nodes created independently (e.g. by different
// front-end translation units) never collide.
type DebugInfoTree struct {
	Root  ksuid.KSUID
	Nodes map[ksuid.KSUID]*DebugInfoNode
}

// NewDebugInfoTree returns an empty tree with a freshly minted root node.
func NewDebugInfoTree() *DebugInfoTree {
	root := ksuid.New()
	return &DebugInfoTree{
		Root: root,
		Nodes: map[ksuid.KSUID]*DebugInfoNode{
			root: {ID: root, Kind: "root"},
		},
	}
}

// AddChild attaches a new node of the given kind under parent and returns
// its ID.
func (t *DebugInfoTree) AddChild(parent ksuid.KSUID, kind string, payload []byte) (ksuid.KSUID, error) {
	if _, ok := t.Nodes[parent]; !ok {
		return ksuid.Nil, kerr.New(kerr.NotFound, "ir.DebugInfoTree.AddChild", "no such parent node")
	}
	id := ksuid.New()
	t.Nodes[id] = &DebugInfoNode{ID: id, Parent: parent, Kind: kind, Payload: payload}
	t.Nodes[parent].Children = append(t.Nodes[parent].Children, id)
	return id, nil
}

// TypeEntry is one entry of the module's type table, referenced by ID from
// operation parameters and declarations.
type TypeEntry struct {
	ID       ID
	Kind     string
	Size     uint64
	Align    uint64
	Fields   []TypeRef
}

// FunctionDeclaration is the calling-convention-relevant signature of a
// function, shared between direct calls (by declaration ID) and the
// function's own definition.
type FunctionDeclaration struct {
	ID         ID
	Name       string
	ParamTypes []ID
	ReturnType ID
	Variadic   bool
}

// DataObject is a module-level initialized data object (the optimizer
// core never inspects its bytes, only threads its ID through loads of
// its address).
type DataObject struct {
	ID      ID
	Name    string
	Content []byte
}

// Module owns every function in a translation unit plus the shared type,
// declaration, data and debug-info tables they reference.
type Module struct {
	Types               map[ID]*TypeEntry
	FunctionDeclarations map[ID]*FunctionDeclaration
	Data                map[ID]*DataObject
	StringLiterals       map[ID]string
	InlineAssemblyFragments map[ID]string
	Functions            map[ID]*Function
	DebugInfo            *DebugInfoTree

	nextTypeID ID
	nextDeclID ID
	nextDataID ID
	nextStrID  ID
	nextAsmID  ID
	nextFuncID ID
}

// NewModule returns an empty module with an empty debug-info tree.
func NewModule() *Module {
	return &Module{
		Types:                   make(map[ID]*TypeEntry),
		FunctionDeclarations:    make(map[ID]*FunctionDeclaration),
		Data:                    make(map[ID]*DataObject),
		StringLiterals:          make(map[ID]string),
		InlineAssemblyFragments: make(map[ID]string),
		Functions:               make(map[ID]*Function),
		DebugInfo:               NewDebugInfoTree(),
	}
}

func allocNext(counter *ID) ID {
	*counter++
	return *counter
}

// DeclareFunction registers a function signature and returns its ID.
func (m *Module) DeclareFunction(decl FunctionDeclaration) ID {
	decl.ID = allocNext(&m.nextDeclID)
	m.FunctionDeclarations[decl.ID] = &decl
	return decl.ID
}

// DefineFunction creates a Function bound to an already-declared
// signature, with a fresh empty code container and entry block.
func (m *Module) DefineFunction(declID ID) (*Function, error) {
	if _, ok := m.FunctionDeclarations[declID]; !ok {
		return nil, kerr.New(kerr.NotFound, "ir.Module.DefineFunction", "no such function declaration")
	}
	code := NewCodeContainer()
	entry, err := code.NewBlock(true)
	if err != nil {
		return nil, err
	}
	fn := &Function{
		ID:            allocNext(&m.nextFuncID),
		DeclarationID: declID,
		Code:          code,
		EntryBlock:    entry,
	}
	m.Functions[fn.ID] = fn
	return fn, nil
}

// Function is a single optimizer unit of work: one code container with
// one entry block, bound to a declared signature.
type Function struct {
	ID            ID
	DeclarationID ID
	LocalsTypeID  ID // 0 (NoRef) if the function has no addressable locals frame
	Code          *CodeContainer
	EntryBlock    ID
}

// Name returns the function's declared name, looking it up through the
// owning module.
func (f *Function) Name(m *Module) string {
	if decl, ok := m.FunctionDeclarations[f.DeclarationID]; ok {
		return decl.Name
	}
	return ""
}
