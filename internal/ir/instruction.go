package ir

import (
	"strings"
)

// Attachment is a named metadata node attached to an instruction, written
// as ", !name !N" after the instruction operands.
type Attachment struct {
	Name string
	Node *MDNode
}

// Instruction is a single IR instruction. Operands are kept as text: the
// loader only needs the opcode, the instruction's position and its metadata.
type Instruction struct {
	Result string // without the leading '%', empty for void instructions
	Opcode string
	Args   string
	Line   int

	attachments []Attachment
	parent      *BasicBlock
	index       int
}

// NewInstruction creates a detached instruction.
func NewInstruction(result, opcode, args string) *Instruction {
	return &Instruction{
		Result: result,
		Opcode: opcode,
		Args:   args,
	}
}

// Attach adds a named metadata attachment, replacing an existing one with
// the same name.
func (i *Instruction) Attach(name string, node *MDNode) {
	for idx := range i.attachments {
		if i.attachments[idx].Name == name {
			i.attachments[idx].Node = node
			return
		}
	}
	i.attachments = append(i.attachments, Attachment{Name: name, Node: node})
}

// Metadata returns the node attached under name, or nil.
func (i *Instruction) Metadata(name string) *MDNode {
	for _, a := range i.attachments {
		if a.Name == name {
			return a.Node
		}
	}
	return nil
}

// Attachments returns all metadata attachments in source order.
func (i *Instruction) Attachments() []Attachment {
	return i.attachments
}

// Parent returns the containing basic block.
func (i *Instruction) Parent() *BasicBlock {
	return i.parent
}

// Function returns the containing function.
func (i *Instruction) Function() *Function {
	if i.parent == nil {
		return nil
	}
	return i.parent.parent
}

// Index returns the position of the instruction inside its block.
func (i *Instruction) Index() int {
	return i.index
}

// Next returns the following instruction in layout order, crossing into the
// next non-empty block at the end of a block. Returns nil past the end of
// the function.
func (i *Instruction) Next() *Instruction {
	if i.parent == nil {
		return nil
	}
	if i.index+1 < len(i.parent.insts) {
		return i.parent.insts[i.index+1]
	}
	for b := i.parent.Next(); b != nil; b = b.Next() {
		if len(b.insts) > 0 {
			return b.insts[0]
		}
	}
	return nil
}

var terminators = map[string]bool{
	"ret":         true,
	"br":          true,
	"switch":      true,
	"indirectbr":  true,
	"invoke":      true,
	"callbr":      true,
	"resume":      true,
	"catchswitch": true,
	"catchret":    true,
	"cleanupret":  true,
	"unreachable": true,
}

// IsTerminator reports whether the instruction ends a basic block.
func (i *Instruction) IsTerminator() bool {
	return terminators[i.Opcode]
}

// IsDebugIntrinsic reports whether the instruction is a call to one of the
// llvm.dbg.* intrinsics.
func (i *Instruction) IsDebugIntrinsic() bool {
	return i.Opcode == "call" && strings.Contains(i.Args, "@llvm.dbg.")
}

// IsAlloca reports whether the instruction is a stack allocation.
func (i *Instruction) IsAlloca() bool {
	return i.Opcode == "alloca"
}

// String renders the instruction as it would appear in a function body.
func (i *Instruction) String() string {
	var sb strings.Builder
	if i.Result != "" {
		sb.WriteString("%" + i.Result + " = ")
	}
	sb.WriteString(i.Opcode)
	if i.Args != "" {
		sb.WriteString(" " + i.Args)
	}
	for _, a := range i.attachments {
		sb.WriteString(", !" + a.Name + " " + a.Node.String())
	}
	return sb.String()
}
