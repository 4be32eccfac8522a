package parser

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diffkemp/diffpat/internal/ir"
)

// Helper function to parse source into a fresh context
func parseTestSource(t *testing.T, source string) *ir.Module {
	t.Helper()

	ctx := ir.NewContext()
	t.Cleanup(ctx.Dispose)

	module, err := ParseString(ctx, "test.ll", source)
	require.NoError(t, err)
	return module
}

// Helper function returning the parse errors for source
func parseErrors(t *testing.T, source string) ErrorList {
	t.Helper()

	ctx := ir.NewContext()
	t.Cleanup(ctx.Dispose)

	module, err := ParseString(ctx, "test.ll", source)
	require.Error(t, err)
	assert.Nil(t, module)

	var list ErrorList
	require.True(t, errors.As(err, &list), "expected an ErrorList, got %T", err)
	return list
}

const boundsCheck = `; ModuleID = 'bounds.c'
source_filename = "bounds.c"
target datalayout = "e-m:e-i64:64-n32:64-S128"

@limit = dso_local global i32 10, align 4
%struct.buf = type { ptr, i64 }

define dso_local noundef i32 @diffkemp.new.check(i32 noundef %i, ptr nocapture readonly %p) local_unnamed_addr #0 {
entry:
  %c = icmp slt i32 %i, 0, !diffkemp.pattern !0
  br i1 %c, label %fail, label %ok

fail:
  ret i32 -1

ok:
  %r = tail call i32 @helper(i32 %i,
                             ptr %p), !diffkemp.pattern !1, !dbg !3
  ret i32 %r
}

declare i32 @helper(i32, ptr)

attributes #0 = { nounwind }

!0 = !{!"first-difference"}
!1 = !{!"basic-block-limit", i32 2, !2}
!2 = !{!"basic-block-limit-end"}
!3 = !DILocation(line: 4, column: 7, scope: !4)
!4 = distinct !DISubprogram(name: "check")
!llvm.ident = !{!5}
!5 = !{!"clang"}
`

func TestParseFunctionStructure(t *testing.T) {
	module := parseTestSource(t, boundsCheck)

	require.Len(t, module.Functions(), 2)
	assert.Equal(t, []string{"limit"}, module.Globals())

	fn := module.Function("diffkemp.new.check")
	require.NotNil(t, fn)
	assert.False(t, fn.IsDeclaration())
	assert.Equal(t, "i32 (i32, ptr)", fn.Signature())
	assert.Equal(t, 8, fn.Line)
	require.Len(t, fn.Params, 2)
	assert.Equal(t, "i", fn.Params[0].Name)
	assert.Equal(t, "p", fn.Params[1].Name)

	blocks := fn.Blocks()
	require.Len(t, blocks, 3)
	assert.Equal(t, "entry", blocks[0].Name)
	assert.Equal(t, "fail", blocks[1].Name)
	assert.Equal(t, "ok", blocks[2].Name)

	insts := fn.Instructions()
	require.Len(t, insts, 5)
	assert.Equal(t, "icmp", insts[0].Opcode)
	assert.Equal(t, "c", insts[0].Result)
	assert.Equal(t, "slt i32 %i, 0", insts[0].Args)
	assert.Equal(t, 10, insts[0].Line)
	assert.Equal(t, "br", insts[1].Opcode)
	assert.True(t, insts[1].IsTerminator())
	assert.Equal(t, "ret", insts[2].Opcode)
	assert.Equal(t, "i32 -1", insts[2].Args)

	call := insts[3]
	assert.Equal(t, "call", call.Opcode)
	assert.Equal(t, "i32 @helper(i32 %i, ptr %p)", call.Args)
	assert.Len(t, call.Attachments(), 2)

	helper := module.Function("helper")
	require.NotNil(t, helper)
	assert.True(t, helper.IsDeclaration())
	assert.Equal(t, "i32 (i32, ptr)", helper.Signature())
}

func TestParseMetadataAttachments(t *testing.T) {
	module := parseTestSource(t, boundsCheck)
	insts := module.Function("diffkemp.new.check").Instructions()

	first := insts[0].Metadata("diffkemp.pattern")
	require.NotNil(t, first)
	assert.Equal(t, 0, first.ID)
	require.Equal(t, 1, first.NumOperands())
	assert.Equal(t, &ir.MDString{Value: "first-difference"}, first.Operand(0))

	limit := insts[3].Metadata("diffkemp.pattern")
	require.NotNil(t, limit)
	require.Equal(t, 3, limit.NumOperands())
	value, ok := limit.Operand(1).(*ir.MDInt)
	require.True(t, ok)
	assert.Equal(t, int64(2), value.Value)
	assert.Equal(t, "i32", value.Type.String())

	nested, ok := limit.Operand(2).(*ir.MDNode)
	require.True(t, ok)
	assert.Equal(t, 2, nested.ID)
	assert.Equal(t, `!{!"basic-block-limit-end"}`, nested.Body())

	dbg := insts[3].Metadata("dbg")
	require.NotNil(t, dbg)
	assert.Equal(t, "DILocation", dbg.Kind)

	assert.Nil(t, insts[1].Metadata("diffkemp.pattern"))
	assert.NotNil(t, module.NamedMetadata("llvm.ident"))
}

func TestParseSharedContextTypes(t *testing.T) {
	module := parseTestSource(t, boundsCheck)
	fn := module.Function("diffkemp.new.check")

	assert.Same(t, fn.ReturnType, fn.Params[0].Type, "types are interned per context")
	assert.Same(t, module.Context(), fn.ReturnType.Context())
}

func TestParseInlineAndSelfReferencingNodes(t *testing.T) {
	module := parseTestSource(t, `define void @f() {
  ret void, !diffkemp.pattern !{!"first-difference", null}
}
!0 = !{!0}
`)
	node := module.Function("f").EntryInstruction().Metadata("diffkemp.pattern")
	require.NotNil(t, node)
	assert.Equal(t, -1, node.ID)
	assert.Equal(t, 2, node.NumOperands())
	assert.IsType(t, &ir.MDNull{}, node.Operand(1))

	self := module.MetadataNode(0)
	require.Equal(t, 1, self.NumOperands())
	assert.Same(t, self, self.Operand(0))
	assert.Equal(t, "!{!0}", self.Body())
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pattern.ll")
	require.NoError(t, os.WriteFile(path, []byte("define void @f() {\n  ret void\n}\n"), 0o644))

	ctx := ir.NewContext()
	defer ctx.Dispose()

	module, err := ParseFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "pattern.ll", module.Name)
	assert.Equal(t, path, module.SourcePath)
	assert.Equal(t, []*ir.Module{module}, ctx.Modules())

	_, err = ParseFile(ctx, filepath.Join(t.TempDir(), "missing.ll"))
	assert.Error(t, err)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		message string
		line    int
	}{
		{
			name:    "undefined metadata",
			source:  "define void @f() {\n  ret void, !diffkemp.pattern !7\n}\n",
			message: "Metadata !7 is referenced but never defined",
		},
		{
			name:    "redefined function",
			source:  "declare void @f()\ndeclare void @f()\n",
			message: "function @f redefined",
			line:    2,
		},
		{
			name:    "redefined metadata",
			source:  "!0 = !{}\n!0 = !{}\n",
			message: "metadata !0 redefined",
			line:    2,
		},
		{
			name:    "unterminated body",
			source:  "define void @f() {\n  ret void\n",
			message: "Unterminated body of function @f",
		},
		{
			name:    "missing return type",
			source:  "define @f() {\n}\n",
			message: "Expected return type for @f",
			line:    1,
		},
		{
			name:    "unexpected top level token",
			source:  "42\n",
			message: "Unexpected token at top level",
			line:    1,
		},
		{
			name:    "integer without type",
			source:  "!0 = !{!\"basic-block-limit\", 3}\n",
			message: "Expected metadata operand",
			line:    1,
		},
		{
			name:    "lexical error",
			source:  "define void @f() {\n  ret void ^\n}\n",
			message: "Unexpected character",
			line:    2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list := parseErrors(t, tt.source)
			require.NotEmpty(t, list)
			assert.Contains(t, list[0].Message, tt.message)
			if tt.line > 0 {
				assert.Equal(t, tt.line, list[0].Line)
			}
		})
	}
}

func TestErrorListFormatting(t *testing.T) {
	list := ErrorList{
		{Message: "first", File: "a.ll", Line: 1, Column: 2, Lexeme: "x"},
		{Message: "second", Line: 3, Column: 4},
		{Message: "third", Line: 5, Column: 6},
	}
	assert.Equal(t, "a.ll:1:2: first (near 'x') (and 2 more errors)", list.Error())
	assert.Equal(t, "3:4: second", list[1].Error())
	assert.Equal(t, "no errors", ErrorList{}.Error())
}
