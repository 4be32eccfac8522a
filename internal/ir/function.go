package ir

import (
	"strings"
)

// Param is a formal parameter of a function.
type Param struct {
	Name string
	Type *Type
}

// Function is a named sequence of basic blocks. A function without blocks
// is a declaration.
type Function struct {
	Name       string
	ReturnType *Type
	Params     []Param
	Line       int

	module *Module
	blocks []*BasicBlock
}

// Module returns the owning module, or nil once its context was disposed.
func (f *Function) Module() *Module {
	return f.module
}

// NewBlock appends an empty basic block.
func (f *Function) NewBlock(name string) *BasicBlock {
	b := &BasicBlock{
		Name:   name,
		parent: f,
		index:  len(f.blocks),
	}
	f.blocks = append(f.blocks, b)
	return b
}

// Blocks returns the basic blocks in layout order.
func (f *Function) Blocks() []*BasicBlock {
	return f.blocks
}

// Block looks up a basic block by label.
func (f *Function) Block(name string) *BasicBlock {
	for _, b := range f.blocks {
		if b.Name == name {
			return b
		}
	}
	return nil
}

// IsDeclaration reports whether the function has no body.
func (f *Function) IsDeclaration() bool {
	return len(f.blocks) == 0
}

// EntryInstruction returns the first instruction of the function in layout
// order, or nil for declarations and empty bodies.
func (f *Function) EntryInstruction() *Instruction {
	for _, b := range f.blocks {
		if len(b.insts) > 0 {
			return b.insts[0]
		}
	}
	return nil
}

// Instructions returns every instruction in layout order.
func (f *Function) Instructions() []*Instruction {
	var out []*Instruction
	for _, b := range f.blocks {
		out = append(out, b.insts...)
	}
	return out
}

// Signature renders the return and parameter types, e.g. "i32 (ptr, i64)".
func (f *Function) Signature() string {
	types := make([]string, len(f.Params))
	for i, p := range f.Params {
		types[i] = p.Type.String()
	}
	return f.ReturnType.String() + " (" + strings.Join(types, ", ") + ")"
}

// String renders the function as text.
func (f *Function) String() string {
	var sb strings.Builder

	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		if p.Name != "" {
			params[i] = p.Type.String() + " %" + p.Name
		} else {
			params[i] = p.Type.String()
		}
	}

	if f.IsDeclaration() {
		sb.WriteString("declare " + f.ReturnType.String() + " @" + f.Name + "(" + strings.Join(params, ", ") + ")\n")
		return sb.String()
	}

	sb.WriteString("define " + f.ReturnType.String() + " @" + f.Name + "(" + strings.Join(params, ", ") + ") {\n")
	for i, b := range f.blocks {
		if b.Name != "" {
			if i > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(b.Name + ":\n")
		}
		for _, inst := range b.insts {
			sb.WriteString("  " + inst.String() + "\n")
		}
	}
	sb.WriteString("}\n")
	return sb.String()
}

// BasicBlock is a straight-line sequence of instructions.
type BasicBlock struct {
	Name string

	parent *Function
	index  int
	insts  []*Instruction
}

// Parent returns the function containing the block.
func (b *BasicBlock) Parent() *Function {
	return b.parent
}

// Instructions returns the instructions of the block.
func (b *BasicBlock) Instructions() []*Instruction {
	return b.insts
}

// Append adds an instruction at the end of the block.
func (b *BasicBlock) Append(inst *Instruction) {
	inst.parent = b
	inst.index = len(b.insts)
	b.insts = append(b.insts, inst)
}

// Next returns the following block in layout order, or nil.
func (b *BasicBlock) Next() *BasicBlock {
	if b.parent == nil || b.index+1 >= len(b.parent.blocks) {
		return nil
	}
	return b.parent.blocks[b.index+1]
}

// Terminator returns the last instruction when it is a terminator.
func (b *BasicBlock) Terminator() *Instruction {
	if len(b.insts) == 0 {
		return nil
	}
	last := b.insts[len(b.insts)-1]
	if !last.IsTerminator() {
		return nil
	}
	return last
}
