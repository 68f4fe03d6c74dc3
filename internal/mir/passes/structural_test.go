package passes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mesonmir/internal/mir"
)

// buildIfElse constructs entry --Branch(cond)--> {ifBlock, elseBlock} -->
// joinBlock, the shape lower_if produces for `if cond ... else ... end`.
func buildIfElse(predicate *mir.Instruction) (cfg *mir.CFG, entry, ifBlock, elseBlock, join *mir.BasicBlock) {
	cfg = mir.NewCFG()
	entry = cfg.Entry.Block
	ifBlock = cfg.NewBlock()
	elseBlock = cfg.NewBlock()
	join = cfg.NewBlock()

	ifBlock.PushJump(join, nil)
	elseBlock.PushJump(join, nil)

	entry.PushBranch([]mir.BranchEntry{
		{Predicate: predicate, Target: ifBlock},
		{Predicate: nil, Target: elseBlock},
	})

	cfg.LinkNodes(entry, ifBlock)
	cfg.LinkNodes(entry, elseBlock)
	cfg.LinkNodes(ifBlock, join)
	cfg.LinkNodes(elseBlock, join)

	return cfg, entry, ifBlock, elseBlock, join
}

func TestBranchPruningTrueConditionCascadesUnlink(t *testing.T) {
	cfg, entry, ifBlock, elseBlock, join := buildIfElse(mir.NewBoolean(true))

	progress, err := BranchPruning(cfg, cfg.Node(entry))
	require.NoError(t, err)
	assert.True(t, progress)

	// Entry's terminator collapses to an unconditional Jump into ifBlock.
	term := entry.Terminator()
	require.Equal(t, mir.KindJump, term.Kind)
	assert.Equal(t, ifBlock.Index, term.Jump.Target.Index)

	// elseBlock is unreachable now: it had one parent (entry), which was
	// unlinked, so cascadeUnlink must also have unlinked elseBlock->join and
	// deleted elseBlock from the graph entirely.
	assert.Nil(t, cfg.Node(elseBlock))
	assert.Len(t, join.Parents, 1)
	assert.Equal(t, ifBlock.Index, join.Parents[0].Index)
}

func TestBranchPruningFalseConditionUnlinksOnlyThatArm(t *testing.T) {
	cfg, entry, ifBlock, elseBlock, join := buildIfElse(mir.NewBoolean(false))

	progress, err := BranchPruning(cfg, cfg.Node(entry))
	require.NoError(t, err)
	assert.True(t, progress)

	term := entry.Terminator()
	require.Equal(t, mir.KindJump, term.Kind)
	assert.Equal(t, elseBlock.Index, term.Jump.Target.Index)

	assert.Nil(t, cfg.Node(ifBlock))
	assert.Len(t, join.Parents, 1)
	assert.Equal(t, elseBlock.Index, join.Parents[0].Index)
}

func TestBranchPruningUnresolvedPredicateMakesNoProgress(t *testing.T) {
	cfg, entry, _, _, _ := buildIfElse(mir.NewIdentifier("cond", 1))

	progress, err := BranchPruning(cfg, cfg.Node(entry))
	require.NoError(t, err)
	assert.False(t, progress)
	assert.Equal(t, mir.KindBranch, entry.Terminator().Kind)
}

func TestJoinBlocksSplicesSoleSuccessor(t *testing.T) {
	cfg := mir.NewCFG()
	b := cfg.Entry.Block
	s := cfg.NewBlock()
	tail := cfg.NewBlock()

	b.Instrs = append(b.Instrs, mir.NewString("in-b"))
	b.PushJump(s, nil)
	s.Instrs = append(s.Instrs, mir.NewString("in-s"))
	s.PushJump(tail, nil)

	cfg.LinkNodes(b, s)
	cfg.LinkNodes(s, tail)

	progress, err := JoinBlocks(cfg, cfg.Node(b))
	require.NoError(t, err)
	assert.True(t, progress)

	assert.Len(t, b.Instrs, 3)
	assert.Equal(t, "in-b", b.Instrs[0].Str)
	assert.Equal(t, "in-s", b.Instrs[1].Str)
	assert.Equal(t, mir.KindJump, b.Instrs[2].Kind)
	assert.Equal(t, tail.Index, b.Instrs[2].Jump.Target.Index)

	assert.Nil(t, cfg.Node(s))
	assert.Len(t, tail.Parents, 1)
	assert.Equal(t, b.Index, tail.Parents[0].Index)
}

func TestDeleteUnreachableTruncatesAfterErrorMessage(t *testing.T) {
	cfg := mir.NewCFG()
	b := cfg.Entry.Block
	succ := cfg.NewBlock()

	b.Instrs = append(b.Instrs,
		mir.NewString("kept"),
		mir.NewMessage(mir.MessageError, "boom"),
		mir.NewString("discarded"),
	)
	b.PushJump(succ, nil)
	cfg.LinkNodes(b, succ)

	progress, err := DeleteUnreachable(cfg, cfg.Node(b))
	require.NoError(t, err)
	assert.True(t, progress)

	assert.Len(t, b.Instrs, 2)
	assert.Equal(t, mir.KindMessage, b.Instrs[1].Kind)
	assert.Nil(t, cfg.Node(succ))
	assert.Empty(t, succ.Parents)
}
