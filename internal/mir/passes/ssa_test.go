package passes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mesonmir/internal/mir"
)

func TestValueNumberingAssignsVersionsAndResolvesIdentifiers(t *testing.T) {
	state := NewSSAState()
	pass := state.ValueNumbering()

	cfg := mir.NewCFG()
	b := cfg.Entry.Block
	def := &mir.Instruction{Kind: mir.KindString, Str: "x", Var: mir.Variable{Name: "v"}}
	use := mir.NewIdentifier("v", 0)
	b.Instrs = append(b.Instrs, def, use)

	progress, err := pass(cfg, cfg.Node(b))
	require.NoError(t, err)
	assert.True(t, progress)
	assert.Equal(t, uint32(1), def.Var.Version)
	assert.Equal(t, uint32(1), use.IdentVersion)

	// Running again on the now-stable block makes no further progress (P2).
	progress, err = pass(cfg, cfg.Node(b))
	require.NoError(t, err)
	assert.False(t, progress)
}

func TestPhiInsertionAtJoinWithTwoDefiningParents(t *testing.T) {
	cfg, _, ifBlock, elseBlock, join := buildIfElse(mir.NewIdentifier("cond", 1))

	ifBlock.Instrs = append([]*mir.Instruction{
		{Kind: mir.KindNumber, Num: 1, Var: mir.Variable{Name: "x", Version: 1}},
	}, ifBlock.Instrs...)
	elseBlock.Instrs = append([]*mir.Instruction{
		{Kind: mir.KindNumber, Num: 2, Var: mir.Variable{Name: "x", Version: 2}},
	}, elseBlock.Instrs...)

	state := NewSSAState()
	pass := state.PhiInsertion()

	progress, err := pass(cfg, cfg.Node(join))
	require.NoError(t, err)
	assert.True(t, progress)

	require.Len(t, join.Instrs, 1)
	phi := join.Instrs[0]
	assert.Equal(t, mir.KindPhi, phi.Kind)
	assert.Equal(t, "x", phi.Var.Name)
	assert.Equal(t, uint32(1), phi.PhiLeft)
	assert.Equal(t, uint32(2), phi.PhiRight)

	// A second insertion pass over the same, now-phi-bearing block must not
	// duplicate the phi.
	progress, err = pass(cfg, cfg.Node(join))
	require.NoError(t, err)
	assert.False(t, progress)
	assert.Len(t, join.Instrs, 1)
}

func TestPhiInsertionSkipsBlocksWithFewerThanTwoParents(t *testing.T) {
	cfg := mir.NewCFG()
	b := cfg.Entry.Block
	s := cfg.NewBlock()
	b.PushJump(s, nil)
	cfg.LinkNodes(b, s)

	state := NewSSAState()
	progress, err := state.PhiInsertion()(cfg, cfg.Node(s))
	require.NoError(t, err)
	assert.False(t, progress)
}

func TestPhiFixupCollapsesToIdentifierWhenOneParentPruned(t *testing.T) {
	cfg, _, ifBlock, elseBlock, join := buildIfElse(mir.NewBoolean(true))
	_ = elseBlock

	phi := &mir.Instruction{
		Kind:     mir.KindPhi,
		Var:      mir.Variable{Name: "x", Version: 3},
		PhiLeft:  1,
		PhiRight: 2,
	}
	join.Instrs = append([]*mir.Instruction{phi}, join.Instrs...)

	// branch_pruning has already run: only ifBlock remains as a parent, and
	// it defines x at version 1 (PhiLeft); elseBlock (and version 2) is gone.
	ifBlock.Instrs = append([]*mir.Instruction{
		{Kind: mir.KindNumber, Num: 1, Var: mir.Variable{Name: "x", Version: 1}},
	}, ifBlock.Instrs...)
	cfg.UnlinkNodes(elseBlock, join)

	progress, err := PhiFixup(cfg, cfg.Node(join))
	require.NoError(t, err)
	assert.True(t, progress)

	require.Equal(t, mir.KindIdentifier, join.Instrs[0].Kind)
	assert.Equal(t, "x", join.Instrs[0].IdentName)
	assert.Equal(t, uint32(1), join.Instrs[0].IdentVersion)
	assert.Equal(t, mir.Variable{Name: "x", Version: 3}, join.Instrs[0].Var)
}

func TestPhiFixupLeavesPhiWhenBothOperandsLive(t *testing.T) {
	cfg, _, ifBlock, elseBlock, join := buildIfElse(mir.NewIdentifier("cond", 1))

	phi := &mir.Instruction{
		Kind:     mir.KindPhi,
		Var:      mir.Variable{Name: "x", Version: 3},
		PhiLeft:  1,
		PhiRight: 2,
	}
	join.Instrs = append([]*mir.Instruction{phi}, join.Instrs...)

	ifBlock.Instrs = append([]*mir.Instruction{
		{Kind: mir.KindNumber, Num: 1, Var: mir.Variable{Name: "x", Version: 1}},
	}, ifBlock.Instrs...)
	elseBlock.Instrs = append([]*mir.Instruction{
		{Kind: mir.KindNumber, Num: 2, Var: mir.Variable{Name: "x", Version: 2}},
	}, elseBlock.Instrs...)

	progress, err := PhiFixup(cfg, cfg.Node(join))
	require.NoError(t, err)
	assert.False(t, progress)
	assert.Equal(t, mir.KindPhi, join.Instrs[0].Kind)
}
