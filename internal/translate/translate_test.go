package translate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mesonmir/internal/frontend"
	"mesonmir/internal/mir"
)

// --- tiny AST builders -------------------------------------------------------
//
// The parser itself isn't exercised here (internal/mir's endtoend_test.go
// drives it); these helpers build just enough of frontend's flat
// precedence-chain AST by hand to drive internal/translate's lowering directly.

func numberExpr(n string) *frontend.Expr {
	return primaryExpr(&frontend.PrimaryExpr{Number: &n})
}

// stringExpr takes the literal's text without quotes and stores it quoted,
// the way the lexer's String token carries it.
func stringExpr(s string) *frontend.Expr {
	quoted := "'" + s + "'"
	return primaryExpr(&frontend.PrimaryExpr{String: &quoted})
}

func identExpr(name string) *frontend.Expr {
	return primaryExpr(&frontend.PrimaryExpr{Ident: &name})
}

func primaryExpr(p *frontend.PrimaryExpr) *frontend.Expr {
	postfix := &frontend.PostfixExpr{Primary: p}
	unary := &frontend.UnaryExpr{Value: postfix}
	mul := &frontend.MulExpr{Left: unary}
	add := &frontend.AddExpr{Left: mul}
	cmp := &frontend.CompareExpr{Left: add}
	not := &frontend.NotExpr{Value: cmp}
	and := &frontend.AndExpr{Left: not}
	or := &frontend.OrExpr{Left: and}
	return &frontend.Expr{Or: or}
}

// addExpr builds `left + right` out of two already-built leaf expressions.
// leafAdd pulls the *AddExpr out of an Expr built by one of the primary
// constructors above (Or -> AndExpr -> NotExpr -> CompareExpr -> AddExpr).
func leafAdd(e *frontend.Expr) *frontend.AddExpr {
	return e.Or.Left.Left.Value.Left
}

func addExpr(left, right *frontend.Expr) *frontend.Expr {
	add := &frontend.AddExpr{
		Left: leafAdd(left).Left,
		Rest: []*frontend.AddOp{{Operator: "+", Right: leafAdd(right).Left}},
	}
	cmp := &frontend.CompareExpr{Left: add}
	not := &frontend.NotExpr{Value: cmp}
	and := &frontend.AndExpr{Left: not}
	or := &frontend.OrExpr{Left: and}
	return &frontend.Expr{Or: or}
}

func callExpr(name string, args ...*frontend.Argument) *frontend.Expr {
	var argList *frontend.Arguments
	if len(args) > 0 {
		argList = &frontend.Arguments{List: args}
	}
	return primaryExpr(&frontend.PrimaryExpr{Call: &frontend.FunctionCall{Name: name, Args: argList}})
}

func posArg(e *frontend.Expr) *frontend.Argument   { return &frontend.Argument{Value: e} }
func kwArg(name string, e *frontend.Expr) *frontend.Argument {
	return &frontend.Argument{Keyword: &frontend.KeywordArg{Name: name, Value: e}}
}

func TestTranslateAssignmentOfBinaryExpr(t *testing.T) {
	prog := &frontend.Program{Statements: []*frontend.Statement{
		{Assg: &frontend.Assignment{Name: "x", Value: addExpr(numberExpr("1"), numberExpr("2"))}},
	}}

	cfg, err := New("/src").Translate(prog)
	require.NoError(t, err)

	entry := cfg.Entry.Block
	require.Len(t, entry.Instrs, 1)

	instr := entry.Instrs[0]
	assert.Equal(t, mir.KindFunctionCall, instr.Kind)
	assert.Equal(t, "+", instr.Call.Name)
	assert.Equal(t, "x", instr.Var.Name)
	require.Len(t, instr.Call.Pos, 2)
	assert.Equal(t, int64(1), instr.Call.Pos[0].Num)
	assert.Equal(t, int64(2), instr.Call.Pos[1].Num)
}

func TestTranslateCallArgumentsPositionalAndKeyword(t *testing.T) {
	prog := &frontend.Program{Statements: []*frontend.Statement{
		{Expr: &frontend.ExprStmt{Value: callExpr("executable",
			posArg(stringExpr("app")),
			kwArg("install", identExpr("true_flag")),
		)}},
	}}

	cfg, err := New("/src").Translate(prog)
	require.NoError(t, err)

	entry := cfg.Entry.Block
	require.Len(t, entry.Instrs, 1)

	instr := entry.Instrs[0]
	require.Equal(t, mir.KindFunctionCall, instr.Kind)
	assert.Equal(t, "executable", instr.Call.Name)
	assert.Equal(t, "/src", instr.Call.SourceDir)
	require.Len(t, instr.Call.Pos, 1)
	assert.Equal(t, "app", instr.Call.Pos[0].Str)
	require.Contains(t, instr.Call.Kw, "install")
	assert.Equal(t, mir.KindIdentifier, instr.Call.Kw["install"].Kind)
}

func TestTranslateIfElseBuildsBranchWithSynthesizedElse(t *testing.T) {
	prog := &frontend.Program{Statements: []*frontend.Statement{
		{If: &frontend.IfStmt{
			Cond: identExpr("cond"),
			Body: []*frontend.Statement{
				{Assg: &frontend.Assignment{Name: "x", Value: numberExpr("1")}},
			},
			// no Elifs, no Else: lowerIf must synthesize an always-true else arm.
		}},
	}}

	cfg, err := New("/src").Translate(prog)
	require.NoError(t, err)

	entry := cfg.Entry.Block
	term := entry.Terminator()
	require.NotNil(t, term)
	require.Equal(t, mir.KindBranch, term.Kind)
	require.Len(t, term.Branch.Entries, 2)

	ifArm := term.Branch.Entries[0]
	assert.Equal(t, mir.KindIdentifier, ifArm.Predicate.Kind)
	assert.Equal(t, "cond", ifArm.Predicate.IdentName)

	elseArm := term.Branch.Entries[1]
	assert.Equal(t, mir.KindBoolean, elseArm.Predicate.Kind)
	assert.True(t, elseArm.Predicate.Bool)

	// Both arms' body blocks jump to the same synthesized join block.
	ifBody := ifArm.Target
	elseBody := elseArm.Target
	require.Len(t, ifBody.Instrs, 2) // the x=1 assignment, then the Jump
	ifJump := ifBody.Instrs[len(ifBody.Instrs)-1]
	elseJump := elseBody.Instrs[len(elseBody.Instrs)-1]
	require.Equal(t, mir.KindJump, ifJump.Kind)
	require.Equal(t, mir.KindJump, elseJump.Kind)
	assert.Equal(t, ifJump.Jump.Target.Index, elseJump.Jump.Target.Index)

	assert.NotNil(t, cfg.Node(ifBody))
	assert.NotNil(t, cfg.Node(elseBody))
	assert.NotNil(t, cfg.Node(ifJump.Jump.Target))
}
