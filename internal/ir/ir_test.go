package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildFunction creates define i32 @f(i32 %a) with an empty block between
// two populated ones.
func buildFunction(t *testing.T) (*Context, *Function) {
	t.Helper()

	ctx := NewContext()
	m := ctx.NewModule("test", "")
	i32 := ctx.Type("i32")

	fn, err := m.NewFunction("f", i32, []Param{{Name: "a", Type: i32}})
	require.NoError(t, err)

	entry := fn.NewBlock("entry")
	entry.Append(NewInstruction("x", "alloca", "i32, align 4"))
	entry.Append(NewInstruction("", "call", "void @llvm.dbg.declare(metadata ptr %x, metadata !1, metadata !DIExpression())"))
	entry.Append(NewInstruction("", "br", "label %exit"))

	fn.NewBlock("empty")

	exit := fn.NewBlock("exit")
	exit.Append(NewInstruction("r", "add", "i32 %a, 1"))
	exit.Append(NewInstruction("", "ret", "i32 %r"))

	return ctx, fn
}

func TestInstructionNextCrossesBlocks(t *testing.T) {
	_, fn := buildFunction(t)

	var opcodes []string
	for inst := fn.EntryInstruction(); inst != nil; inst = inst.Next() {
		opcodes = append(opcodes, inst.Opcode)
	}
	assert.Equal(t, []string{"alloca", "call", "br", "add", "ret"}, opcodes)

	insts := fn.Instructions()
	require.Len(t, insts, 5)
	assert.Nil(t, insts[4].Next())
	assert.Nil(t, NewInstruction("", "ret", "void").Next(), "detached instructions have no successor")
}

func TestInstructionClassification(t *testing.T) {
	_, fn := buildFunction(t)
	insts := fn.Instructions()

	assert.True(t, insts[0].IsAlloca())
	assert.True(t, insts[1].IsDebugIntrinsic())
	assert.False(t, insts[3].IsDebugIntrinsic())
	assert.True(t, insts[2].IsTerminator())
	assert.False(t, insts[3].IsTerminator())

	assert.Same(t, insts[2], fn.Block("entry").Terminator())
	assert.Nil(t, fn.Block("empty").Terminator())
	assert.Same(t, fn, insts[3].Function())
	assert.Equal(t, 1, insts[4].Index())
}

func TestInstructionAttach(t *testing.T) {
	inst := NewInstruction("", "ret", "void")
	first := NewNode(&MDString{Value: "first-difference"})
	second := NewNode()

	inst.Attach("diffkemp.pattern", first)
	inst.Attach("dbg", NewSpecializedNode("DILocation"))
	inst.Attach("diffkemp.pattern", second)

	assert.Same(t, second, inst.Metadata("diffkemp.pattern"))
	assert.Len(t, inst.Attachments(), 2)
	assert.Nil(t, inst.Metadata("missing"))
	assert.Equal(t, "ret void, !diffkemp.pattern !{}, !dbg !DILocation()", inst.String())
}

func TestFunctionSignatureAndText(t *testing.T) {
	_, fn := buildFunction(t)

	assert.Equal(t, "i32 (i32)", fn.Signature())
	assert.False(t, fn.IsDeclaration())

	decl, err := fn.Module().NewFunction("g", nil, nil)
	require.NoError(t, err)
	assert.True(t, decl.IsDeclaration())
	assert.Equal(t, "void ()", decl.Signature())
	assert.Equal(t, "declare void @g()\n", decl.String())
	assert.Nil(t, decl.EntryInstruction())

	assert.Contains(t, fn.String(), "define i32 @f(i32 %a) {\nentry:\n  %x = alloca i32, align 4\n")
	assert.Contains(t, fn.String(), "\nexit:\n  %r = add i32 %a, 1\n  ret i32 %r\n}\n")
}

func TestModuleFunctions(t *testing.T) {
	ctx := NewContext()
	m := ctx.NewModule("patterns", "patterns.ll")

	for _, name := range []string{"diffkemp.old.a", "helper", "diffkemp.new.a"} {
		_, err := m.NewFunction(name, nil, nil)
		require.NoError(t, err)
	}
	_, err := m.NewFunction("helper", nil, nil)
	assert.EqualError(t, err, "function @helper redefined")

	names := func(fns []*Function) []string {
		var out []string
		for _, f := range fns {
			out = append(out, f.Name)
		}
		return out
	}
	assert.Equal(t, []string{"diffkemp.old.a", "helper", "diffkemp.new.a"}, names(m.Functions()))
	assert.Equal(t, []string{"diffkemp.new.a"}, names(m.FunctionsWithPrefix("diffkemp.new.")))
	assert.Nil(t, m.Function("missing"))
}

func TestModuleMetadata(t *testing.T) {
	ctx := NewContext()
	m := ctx.NewModule("md", "")

	placeholder := m.MetadataNode(3)
	assert.Equal(t, []int{3}, m.UndefinedMetadata())

	node, err := m.DefineMetadata(3, false, "", []Metadata{&MDString{Value: "first-difference"}})
	require.NoError(t, err)
	assert.Same(t, placeholder, node)
	assert.Empty(t, m.UndefinedMetadata())

	_, err = m.DefineMetadata(3, false, "", nil)
	assert.EqualError(t, err, "metadata !3 redefined")

	assert.Equal(t, "!3", node.String())
	assert.Equal(t, `!{!"first-difference"}`, node.Body())
	assert.Equal(t, "!3 = !{!\"first-difference\"}\n", m.String())

	limit := NewNode(&MDString{Value: "basic-block-limit"}, &MDInt{Type: ctx.Type("i32"), Value: 2}, &MDNull{})
	assert.Equal(t, `!{!"basic-block-limit", i32 2, null}`, limit.String())
	assert.Nil(t, limit.Operand(5))
	assert.Nil(t, limit.Operand(-1))
}

func TestContextDispose(t *testing.T) {
	ctx, fn := buildFunction(t)
	require.False(t, ctx.Disposed())
	require.Len(t, ctx.Modules(), 1)

	i32 := ctx.Type("i32")
	assert.Same(t, i32, ctx.Type("i32"))

	ctx.Dispose()
	assert.True(t, ctx.Disposed())
	assert.Nil(t, fn.Module())
	assert.Empty(t, ctx.Modules())

	assert.NotPanics(t, ctx.Dispose)
}

func TestContextIsolation(t *testing.T) {
	a := NewContext()
	b := NewContext()

	assert.NotEqual(t, a.ID, b.ID)
	assert.NotSame(t, a.Type("i32"), b.Type("i32"))
	assert.Same(t, a, a.Type("i32").Context())
}
