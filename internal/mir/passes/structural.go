// Package passes implements the structural, SSA, dataflow, and semantic
// lowering passes of §4.3-§4.6, each exposed as a mir.BlockPass (structural,
// SSA) or bundled mir.InstrPass list (dataflow, semantic) the pipeline
// driver in cmd/mesonmir assembles into the fixed-point loop of §4.1.
package passes

import "mesonmir/internal/mir"

// BranchPruning implements §4.3's branch_pruning: for a block whose
// terminator's predicate(s) have been folded to constants, prune dead
// edges and simplify Jump/Branch in place. Repeats on the same block
// while it keeps making progress, matching spec.md's "The pass repeats on
// the same block while it keeps making progress before moving on."
func BranchPruning(cfg *mir.CFG, node *mir.CFGNode) (bool, error) {
	progress := false
	for pruneOnce(cfg, node.Block) {
		progress = true
	}
	return progress, nil
}

func pruneOnce(cfg *mir.CFG, block *mir.BasicBlock) bool {
	term := block.Terminator()
	if term == nil {
		return false
	}

	switch term.Kind {
	case mir.KindJump:
		return pruneJump(cfg, block, term)
	case mir.KindBranch:
		return pruneBranch(cfg, block, term)
	default:
		return false
	}
}

func pruneJump(cfg *mir.CFG, block *mir.BasicBlock, term *mir.Instruction) bool {
	pred := term.Jump.Predicate
	if pred == nil || pred.Kind != mir.KindBoolean {
		return false
	}

	if pred.Bool {
		// Jump{predicate=true}: keep the jump, clear the predicate, erase
		// every instruction following it in this block (there is nothing
		// else to unlink — a lone Jump only ever has one successor).
		term.Jump.Predicate = nil
		truncateAfter(block, term)
		return true
	}

	// Jump{predicate=false}: unlink the target, erase the jump instruction.
	if term.Jump.Target != nil {
		cascadeUnlink(cfg, block, term.Jump.Target)
	}
	removeInstruction(block, term)
	return true
}

// cascadeUnlink unlinks the from->to edge and, if that leaves to with no
// remaining parents (and to isn't the entry block), recursively unlinks
// to's own outgoing edges and deletes it from the graph. Without this, a
// block pruned out of one arm of a branch would still "parent" whatever it
// jumps to, so phi insertion/fixup downstream would see its definitions as
// live even though nothing reachable from entry still runs it.
func cascadeUnlink(cfg *mir.CFG, from, to *mir.BasicBlock) {
	cfg.UnlinkNodes(from, to)
	if len(to.Parents) > 0 || to.Index == cfg.Entry.Block.Index {
		return
	}
	for _, succ := range to.Successors() {
		cascadeUnlink(cfg, to, succ)
	}
	cfg.DeleteNode(to)
}

func pruneBranch(cfg *mir.CFG, block *mir.BasicBlock, term *mir.Instruction) bool {
	entries := term.Branch.Entries
	var kept []mir.BranchEntry
	changed := false
	stop := false

	for _, e := range entries {
		if stop {
			if e.Target != nil {
				cascadeUnlink(cfg, block, e.Target)
			}
			changed = true
			continue
		}

		if e.Predicate != nil && e.Predicate.Kind == mir.KindBoolean {
			if e.Predicate.Bool {
				kept = append(kept, mir.BranchEntry{Predicate: nil, Target: e.Target})
				stop = true
				changed = true
				continue
			}
			// constant false: drop this entry, unlink its target.
			if e.Target != nil {
				cascadeUnlink(cfg, block, e.Target)
			}
			changed = true
			continue
		}

		kept = append(kept, e)
	}

	if !changed {
		return false
	}

	switch len(kept) {
	case 0:
		removeInstruction(block, term)
	case 1:
		block.Instrs[len(block.Instrs)-1] = &mir.Instruction{
			Kind: mir.KindJump,
			Jump: &mir.JumpValue{Target: kept[0].Target, Predicate: kept[0].Predicate},
		}
	default:
		term.Branch.Entries = kept
	}
	return true
}

func truncateAfter(block *mir.BasicBlock, term *mir.Instruction) {
	for i, instr := range block.Instrs {
		if instr == term {
			block.Instrs = block.Instrs[:i+1]
			return
		}
	}
}

func removeInstruction(block *mir.BasicBlock, target *mir.Instruction) {
	for i, instr := range block.Instrs {
		if instr == target {
			block.Instrs = append(block.Instrs[:i], block.Instrs[i+1:]...)
			return
		}
	}
}

// JoinBlocks implements §4.3's join_blocks: if block B has a single
// successor S and S has a single predecessor (B), splice S's instructions
// onto the end of B, adopt S's outgoing edge, and remove S.
func JoinBlocks(cfg *mir.CFG, node *mir.CFGNode) (bool, error) {
	block := node.Block
	succs := block.Successors()
	if len(succs) != 1 {
		return false, nil
	}
	s := succs[0]
	if len(s.Parents) != 1 || s.Parents[0].Index != block.Index {
		return false, nil
	}
	if s.Index == block.Index {
		return false, nil
	}

	// Drop B's own terminator (a Jump to S) before splicing S's body in.
	if term := block.Terminator(); term != nil {
		block.Instrs = block.Instrs[:len(block.Instrs)-1]
	}

	block.Instrs = append(block.Instrs, s.Instrs...)
	cfg.UnlinkNodes(block, s)

	// Re-point S's own successors' parent back-references at B, and register
	// B as their new predecessor/source in the explicit CFGNode mirrors.
	for _, succ := range s.Successors() {
		succ.RemoveParent(s)
		succ.AddParent(block)
		cfg.UnlinkNodes(s, succ)
		cfg.LinkNodes(block, succ)
	}

	cfg.DeleteNode(s)
	return true, nil
}

// DeleteUnreachable implements §4.3's delete_unreachable: within a block,
// find the first Message instruction at ERROR level; if found, the error's
// effect is terminal — unlink every outgoing edge, erase everything after
// the message (including any terminator).
func DeleteUnreachable(cfg *mir.CFG, node *mir.CFGNode) (bool, error) {
	block := node.Block

	errIdx := -1
	for i, instr := range block.Instrs {
		if instr.Kind == mir.KindMessage && instr.MessageLevel == mir.MessageError {
			errIdx = i
			break
		}
	}
	if errIdx == -1 {
		return false, nil
	}

	if errIdx == len(block.Instrs)-1 {
		return false, nil
	}

	for _, succ := range block.Successors() {
		cascadeUnlink(cfg, block, succ)
	}
	block.Instrs = block.Instrs[:errIdx+1]
	return true, nil
}
