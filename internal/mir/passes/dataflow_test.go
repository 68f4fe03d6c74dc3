package passes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mesonmir/internal/mir"
)

func TestConstantFoldingFoldsPureBinaryOp(t *testing.T) {
	folding := NewConstantFolding()
	pass := folding.Pass()

	instr := mir.NewFunctionCall(&mir.FunctionCall{
		Name: "+",
		Pos:  []*mir.Instruction{mir.NewNumber(2), mir.NewNumber(3)},
	})

	repl, err := pass(instr)
	require.NoError(t, err)
	require.NotNil(t, repl)
	assert.Equal(t, mir.KindNumber, repl.Kind)
	assert.Equal(t, int64(5), repl.Num)
}

func TestConstantPropagationInlinesNestedHolder(t *testing.T) {
	propagation := NewConstantPropagation()
	pass := propagation.Pass()

	// cc = meson.get_compiler('c')   (stands in for a Compiler-kind def)
	def := &mir.Instruction{Kind: mir.KindString, Str: "gnu", Var: mir.Variable{Name: "cc", Version: 1}}
	_, err := pass(def)
	require.NoError(t, err)

	// cc.get_id() — cc is nested inside Call.Holder, not the top-level
	// instruction instruction_walker hands to the pass.
	call := mir.NewFunctionCall(&mir.FunctionCall{
		Name:   "get_id",
		Holder: mir.NewIdentifier("cc", 1),
	})

	repl, err := pass(call)
	require.NoError(t, err)
	assert.Nil(t, repl, "the top-level call itself isn't resolved by propagation")
	require.Equal(t, mir.KindString, call.Call.Holder.Kind, "nested Holder identifier must be inlined in place")
	assert.Equal(t, "gnu", call.Call.Holder.Str)
}

func TestConstantPropagationInlinesNestedBranchPredicate(t *testing.T) {
	propagation := NewConstantPropagation()
	pass := propagation.Pass()

	def := &mir.Instruction{Kind: mir.KindBoolean, Bool: true, Var: mir.Variable{Name: "x", Version: 1}}
	_, err := pass(def)
	require.NoError(t, err)

	branch := &mir.Instruction{
		Kind: mir.KindBranch,
		Branch: &mir.BranchValue{Entries: []mir.BranchEntry{
			{Predicate: mir.NewIdentifier("x", 1), Target: nil},
		}},
	}

	_, err = pass(branch)
	require.NoError(t, err)
	require.Equal(t, mir.KindBoolean, branch.Branch.Entries[0].Predicate.Kind)
	assert.True(t, branch.Branch.Entries[0].Predicate.Bool)
}

func TestFoldPureOpComparisonAndLogic(t *testing.T) {
	eq, ok := foldPureOp(&mir.FunctionCall{Name: "==", Pos: []*mir.Instruction{mir.NewString("a"), mir.NewString("a")}})
	require.True(t, ok)
	assert.True(t, eq.Bool)

	lt, ok := foldPureOp(&mir.FunctionCall{Name: "<", Pos: []*mir.Instruction{mir.NewNumber(1), mir.NewNumber(2)}})
	require.True(t, ok)
	assert.True(t, lt.Bool)

	div, ok := foldPureOp(&mir.FunctionCall{Name: "/", Pos: []*mir.Instruction{mir.NewNumber(1), mir.NewNumber(0)}})
	assert.False(t, ok)
	assert.Nil(t, div)

	andVal, ok := foldPureOp(&mir.FunctionCall{Name: "and", Pos: []*mir.Instruction{mir.NewBoolean(true), mir.NewBoolean(false)}})
	require.True(t, ok)
	assert.False(t, andVal.Bool)
}
