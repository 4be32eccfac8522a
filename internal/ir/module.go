package ir

import (
	"fmt"
	"sort"
	"strings"
)

// Module is one parsed IR file.
type Module struct {
	Name       string
	SourcePath string

	ctx           *Context
	functions     []*Function
	funcIndex     map[string]*Function
	globals       []string
	metadata      map[int]*MDNode
	namedMetadata map[string]*MDNode
}

// Context returns the owning context.
func (m *Module) Context() *Context {
	return m.ctx
}

// NewFunction creates a function and adds it to the module. Function names
// are unique within a module.
func (m *Module) NewFunction(name string, returnType *Type, params []Param) (*Function, error) {
	if _, exists := m.funcIndex[name]; exists {
		return nil, fmt.Errorf("function @%s redefined", name)
	}

	f := &Function{
		Name:       name,
		ReturnType: returnType,
		Params:     params,
		module:     m,
	}
	m.functions = append(m.functions, f)
	m.funcIndex[name] = f
	return f, nil
}

// Function looks up a function by name (without the leading '@').
func (m *Module) Function(name string) *Function {
	return m.funcIndex[name]
}

// Functions returns the functions in definition order.
func (m *Module) Functions() []*Function {
	return m.functions
}

// FunctionsWithPrefix returns functions whose name starts with prefix, in
// definition order.
func (m *Module) FunctionsWithPrefix(prefix string) []*Function {
	var out []*Function
	for _, f := range m.functions {
		if strings.HasPrefix(f.Name, prefix) {
			out = append(out, f)
		}
	}
	return out
}

// AddGlobal records a global variable name.
func (m *Module) AddGlobal(name string) {
	m.globals = append(m.globals, name)
}

// Globals returns the recorded global variable names.
func (m *Module) Globals() []string {
	return m.globals
}

// MetadataNode returns the numbered node !id, creating an empty placeholder
// when it has not been seen yet. Placeholders are filled by DefineMetadata.
func (m *Module) MetadataNode(id int) *MDNode {
	if n, ok := m.metadata[id]; ok {
		return n
	}
	n := &MDNode{ID: id}
	m.metadata[id] = n
	return n
}

// DefineMetadata marks node !id as defined with the given operands.
func (m *Module) DefineMetadata(id int, distinct bool, kind string, operands []Metadata) (*MDNode, error) {
	n := m.MetadataNode(id)
	if n.defined {
		return nil, fmt.Errorf("metadata !%d redefined", id)
	}
	n.Distinct = distinct
	n.Kind = kind
	n.Operands = operands
	n.defined = true
	return n, nil
}

// UndefinedMetadata lists numbered nodes that were referenced but never
// defined, in ascending order.
func (m *Module) UndefinedMetadata() []int {
	var ids []int
	for id, n := range m.metadata {
		if !n.defined {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids
}

// SetNamedMetadata records a named metadata node such as !llvm.module.flags.
func (m *Module) SetNamedMetadata(name string, node *MDNode) {
	m.namedMetadata[name] = node
}

// NamedMetadata returns a named metadata node, or nil.
func (m *Module) NamedMetadata(name string) *MDNode {
	return m.namedMetadata[name]
}

// release drops all references held by the module. Called by Context.Dispose.
func (m *Module) release() {
	for _, f := range m.functions {
		f.module = nil
	}
	m.functions = nil
	m.funcIndex = nil
	m.metadata = nil
	m.namedMetadata = nil
	m.ctx = nil
}

// String renders the module back to text. Metadata definitions come last,
// ordered by id.
func (m *Module) String() string {
	var sb strings.Builder
	for i, f := range m.functions {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(f.String())
	}

	ids := make([]int, 0, len(m.metadata))
	for id := range m.metadata {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	if len(ids) > 0 && len(m.functions) > 0 {
		sb.WriteString("\n")
	}
	for _, id := range ids {
		fmt.Fprintf(&sb, "!%d = %s\n", id, m.metadata[id].Body())
	}
	return sb.String()
}
