// Package metadata decodes the tolerance annotations that pattern authors
// attach to instructions.
//
// An annotation is a metadata node whose operands form a flat list of tagged
// entries. A tag is a metadata string; some tags are followed by an integer
// value. Nested nodes are decoded recursively, so one instruction may carry
// any number of independent entries:
//
//	!0 = !{!"basic-block-limit", i32 2, !"first-difference"}
//	!1 = !{!{!"basic-block-limit-end"}, !0}
package metadata

import (
	"fmt"
	"strings"

	"github.com/diffkemp/diffpat/internal/errors"
	"github.com/diffkemp/diffpat/internal/ir"
)

// Recognized tags
const (
	TagBasicBlockLimit    = "basic-block-limit"
	TagBasicBlockLimitEnd = "basic-block-limit-end"
	TagFirstDifference    = "first-difference"
)

const (
	// Invalid is returned by DecodeOperand for malformed input.
	Invalid = -1
	// MaxNestingDepth bounds recursion into nested nodes.
	MaxNestingDepth = 16
	// NoLimit is the BasicBlockLimit of an instruction without a limit.
	NoLimit = -1
)

// PatternMetadata holds the tolerances declared for one instruction.
type PatternMetadata struct {
	// BasicBlockLimit is the number of following basic blocks the comparator
	// may skip while resynchronizing, or NoLimit.
	BasicBlockLimit int
	// BasicBlockLimitEnd marks where a previous block limit expires.
	BasicBlockLimitEnd bool
	// FirstDifference marks the first instruction at which the old and new
	// halves of the pattern diverge.
	FirstDifference bool
}

// New returns the neutral annotation.
func New() PatternMetadata {
	return PatternMetadata{BasicBlockLimit: NoLimit}
}

// HasBasicBlockLimit reports whether a block limit was declared.
func (m PatternMetadata) HasBasicBlockLimit() bool {
	return m.BasicBlockLimit != NoLimit
}

// IsDefault reports whether m equals New().
func (m PatternMetadata) IsDefault() bool {
	return m == New()
}

// String renders the declared entries, e.g. "basic-block-limit=2 first-difference".
func (m PatternMetadata) String() string {
	var parts []string
	if m.HasBasicBlockLimit() {
		parts = append(parts, fmt.Sprintf("%s=%d", TagBasicBlockLimit, m.BasicBlockLimit))
	}
	if m.BasicBlockLimitEnd {
		parts = append(parts, TagBasicBlockLimitEnd)
	}
	if m.FirstDifference {
		parts = append(parts, TagFirstDifference)
	}
	if len(parts) == 0 {
		return "default"
	}
	return strings.Join(parts, " ")
}

// DecodeOperand decodes the entry starting at operand index of node into md
// and returns the index of the next entry, or Invalid when the operand is
// malformed. Nested nodes count as a single operand.
func DecodeOperand(md *PatternMetadata, node *ir.MDNode, index int) int {
	next, _ := newDecoder().operand(md, node, index, 0)
	return next
}

// DecodeNode decodes every entry of node into a fresh PatternMetadata.
func DecodeNode(node *ir.MDNode) (PatternMetadata, error) {
	md := New()
	if node == nil {
		return md, nil
	}

	d := newDecoder()
	d.onStack[node] = true
	for index := 0; index < node.NumOperands(); {
		next, failure := d.operand(&md, node, index, 0)
		if next == Invalid {
			return New(), &errors.MetadataDecodeError{
				Code:    failure.code,
				Operand: index,
				Node:    node.Body(),
				Message: failure.message,
			}
		}
		index = next
	}
	return md, nil
}

// Encode builds the annotation node for md. Integer operands use i32
// interned in ctx.
func Encode(ctx *ir.Context, md PatternMetadata) *ir.MDNode {
	var ops []ir.Metadata
	if md.HasBasicBlockLimit() {
		ops = append(ops,
			&ir.MDString{Value: TagBasicBlockLimit},
			&ir.MDInt{Type: ctx.Type("i32"), Value: int64(md.BasicBlockLimit)})
	}
	if md.BasicBlockLimitEnd {
		ops = append(ops, &ir.MDString{Value: TagBasicBlockLimitEnd})
	}
	if md.FirstDifference {
		ops = append(ops, &ir.MDString{Value: TagFirstDifference})
	}
	return ir.NewNode(ops...)
}

type decodeFailure struct {
	code    errors.Code
	message string
}

func fail(code errors.Code, format string, args ...interface{}) (int, decodeFailure) {
	return Invalid, decodeFailure{code: code, message: fmt.Sprintf(format, args...)}
}

// decoder walks one annotation graph. A node referenced from several places
// is decoded once; a node reached again while still being decoded closes a
// reference cycle.
type decoder struct {
	decoded map[*ir.MDNode]bool
	onStack map[*ir.MDNode]bool
}

func newDecoder() *decoder {
	return &decoder{
		decoded: make(map[*ir.MDNode]bool),
		onStack: make(map[*ir.MDNode]bool),
	}
}

func (d *decoder) operand(md *PatternMetadata, node *ir.MDNode, index, depth int) (int, decodeFailure) {
	if node == nil || index < 0 || index >= node.NumOperands() {
		return fail(errors.ErrMetadataMalformed, "operand index %d out of range", index)
	}

	switch op := node.Operand(index).(type) {
	case *ir.MDString:
		return decodeTag(md, node, index, op.Value)
	case *ir.MDNode:
		return d.node(md, op, index, depth)
	case *ir.MDInt:
		return fail(errors.ErrMetadataMalformed, "integer %d without a preceding tag", op.Value)
	case *ir.MDNull:
		return fail(errors.ErrMetadataMalformed, "unexpected null operand")
	default:
		return fail(errors.ErrMetadataMalformed, "unsupported operand %v", op)
	}
}

func (d *decoder) node(md *PatternMetadata, op *ir.MDNode, index, depth int) (int, decodeFailure) {
	switch {
	case d.onStack[op]:
		return fail(errors.ErrMetadataTooDeep, "reference cycle through %s", nodeRef(op))
	case d.decoded[op]:
		return index + 1, decodeFailure{}
	case depth >= MaxNestingDepth:
		return fail(errors.ErrMetadataTooDeep, "nodes nested deeper than %d levels", MaxNestingDepth)
	case op.Kind != "":
		return fail(errors.ErrMetadataMalformed, "unexpected specialized node !%s", op.Kind)
	}

	d.onStack[op] = true
	defer delete(d.onStack, op)
	for inner := 0; inner < op.NumOperands(); {
		next, failure := d.operand(md, op, inner, depth+1)
		if next == Invalid {
			return Invalid, failure
		}
		inner = next
	}
	d.decoded[op] = true
	return index + 1, decodeFailure{}
}

func nodeRef(n *ir.MDNode) string {
	if n.ID >= 0 {
		return fmt.Sprintf("!%d", n.ID)
	}
	return "an inline node"
}

func decodeTag(md *PatternMetadata, node *ir.MDNode, index int, tag string) (int, decodeFailure) {
	switch tag {
	case TagBasicBlockLimit:
		value, ok := node.Operand(index + 1).(*ir.MDInt)
		if !ok {
			return fail(errors.ErrMetadataMalformed, "%q must be followed by an integer", tag)
		}
		if value.Value < 0 {
			return fail(errors.ErrMetadataMalformed, "%q must not be negative, got %d", tag, value.Value)
		}
		md.BasicBlockLimit = int(value.Value)
		return index + 2, decodeFailure{}
	case TagBasicBlockLimitEnd:
		md.BasicBlockLimitEnd = true
		return index + 1, decodeFailure{}
	case TagFirstDifference:
		md.FirstDifference = true
		return index + 1, decodeFailure{}
	default:
		return fail(errors.ErrMetadataMalformed, "unknown tag %q", tag)
	}
}
