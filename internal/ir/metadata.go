package ir

import (
	"strconv"
	"strings"
)

// Metadata is an operand of a metadata node.
type Metadata interface {
	String() string
	isMetadata()
}

// MDString is a metadata string, written !"value".
type MDString struct {
	Value string
}

func (*MDString) isMetadata() {}

// String returns the textual form.
func (s *MDString) String() string {
	return "!" + strconv.Quote(s.Value)
}

// MDInt is an integer constant used as metadata, written "i32 5".
type MDInt struct {
	Type  *Type
	Value int64
}

func (*MDInt) isMetadata() {}

// String returns the textual form.
func (v *MDInt) String() string {
	return v.Type.String() + " " + strconv.FormatInt(v.Value, 10)
}

// MDNull is the null metadata operand.
type MDNull struct{}

func (*MDNull) isMetadata() {}

// String returns the textual form.
func (*MDNull) String() string { return "null" }

// MDNode is a tuple of metadata operands. Numbered nodes (!N) have ID >= 0,
// inline nodes written directly as !{...} have ID -1. Specialized nodes such
// as !DILocation(...) keep only their Kind.
type MDNode struct {
	ID       int
	Distinct bool
	Kind     string
	Operands []Metadata

	defined bool
}

func (*MDNode) isMetadata() {}

// NewNode creates an inline node.
func NewNode(operands ...Metadata) *MDNode {
	return &MDNode{ID: -1, Operands: operands, defined: true}
}

// NumOperands returns the number of operands.
func (n *MDNode) NumOperands() int {
	return len(n.Operands)
}

// Operand returns operand i, or nil when i is out of range.
func (n *MDNode) Operand(i int) Metadata {
	if i < 0 || i >= len(n.Operands) {
		return nil
	}
	return n.Operands[i]
}

// String renders a reference for numbered nodes and the body otherwise.
func (n *MDNode) String() string {
	if n.ID >= 0 {
		return "!" + strconv.Itoa(n.ID)
	}
	return n.Body()
}

// Body renders the node contents. Nested numbered nodes are printed as
// references, which keeps cyclic graphs finite.
func (n *MDNode) Body() string {
	var sb strings.Builder
	if n.Distinct {
		sb.WriteString("distinct ")
	}
	if n.Kind != "" {
		sb.WriteString("!" + n.Kind + "()")
		return sb.String()
	}
	sb.WriteString("!{")
	for i, op := range n.Operands {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(op.String())
	}
	sb.WriteString("}")
	return sb.String()
}

// NewSpecializedNode creates an inline node standing for a specialized
// metadata record such as !DILocation(...). Its fields are not retained.
func NewSpecializedNode(kind string) *MDNode {
	return &MDNode{ID: -1, Kind: kind, defined: true}
}
