package mir

// BasicBlock is an ordered sequence of instructions plus its incoming edges
// and an outgoing edge descriptor (§3: nothing / unconditional next /
// conditional). Index is a monotonically assigned, stable identity used by
// passes and printers instead of pointer identity so sets/maps stay
// deterministic across runs.
//
// Design note (resolves an ambiguity between §3's separate "Condition" type
// and the Jump/Branch entries of the Instruction tagged union): this
// implementation represents a block's outgoing edge as its *terminator
// instruction* — the last instruction in Instrs, of Kind Jump or Branch, or
// none at all for a block with no outgoing edge. A Branch's Entries list is
// the flattened form of the if/elif/else chain §4.2 describes (I2: if_true
// is Entries[0].Target; the "if_false" chain is Entries[1:]); the CFG
// builder constructs it left-to-right while descending an if/elif/else
// statement and only ever emits the flat form, so no separate chained
// Condition type is needed in the IR itself. This keeps branch_pruning and
// join_blocks operating uniformly on "the last instruction of the block" —
// scanning instructions, per spec.md's literal description of
// branch_pruning — rather than on a second, parallel edge representation
// that would have to be kept in sync with the instruction list by hand.
type BasicBlock struct {
	Index  int
	Instrs []*Instruction

	// Parents is the set of blocks with an edge into this one. Back-references
	// are weak: they describe a relation, not ownership (§3 Ownership).
	Parents []*BasicBlock
}

// Terminator returns the block's last instruction if it is a Jump or
// Branch, and nil otherwise (a block with no outgoing edge, §3 case (a)).
func (b *BasicBlock) Terminator() *Instruction {
	if len(b.Instrs) == 0 {
		return nil
	}
	last := b.Instrs[len(b.Instrs)-1]
	if last.Kind == KindJump || last.Kind == KindBranch {
		return last
	}
	return nil
}

// Successors returns the set of blocks reachable from b in exactly one hop,
// in source order. This is the "successor set" of I3, computed on demand
// from the terminator rather than cached, so it can never drift out of
// sync with the real edges.
func (b *BasicBlock) Successors() []*BasicBlock {
	term := b.Terminator()
	if term == nil {
		return nil
	}

	switch term.Kind {
	case KindJump:
		if term.Jump.Target == nil {
			return nil
		}
		return []*BasicBlock{term.Jump.Target}
	case KindBranch:
		seen := map[int]bool{}
		var out []*BasicBlock
		for _, e := range term.Branch.Entries {
			if e.Target != nil && !seen[e.Target.Index] {
				seen[e.Target.Index] = true
				out = append(out, e.Target)
			}
		}
		return out
	default:
		return nil
	}
}

// AddParent records from as a predecessor of b if not already present.
func (b *BasicBlock) AddParent(from *BasicBlock) {
	for _, p := range b.Parents {
		if p.Index == from.Index {
			return
		}
	}
	b.Parents = append(b.Parents, from)
}

// RemoveParent removes from the predecessor set of b.
func (b *BasicBlock) RemoveParent(from *BasicBlock) {
	for i, p := range b.Parents {
		if p.Index == from.Index {
			b.Parents = append(b.Parents[:i], b.Parents[i+1:]...)
			return
		}
	}
}

// LastDef returns the last instruction in b (scanning backward, optionally
// bounded by upTo exclusive) that defines name, or nil if none does. Used by
// phi insertion and phi fixup to find the version live at a join.
func (b *BasicBlock) LastDef(name string, upTo int) *Instruction {
	if upTo < 0 || upTo > len(b.Instrs) {
		upTo = len(b.Instrs)
	}
	for i := upTo - 1; i >= 0; i-- {
		if b.Instrs[i].Var.Name == name && b.Instrs[i].Var.Version != 0 {
			return b.Instrs[i]
		}
	}
	return nil
}

// PushJump appends an unconditional (or not-yet-resolved conditional) Jump
// terminator to the block.
func (b *BasicBlock) PushJump(target *BasicBlock, predicate *Instruction) *Instruction {
	j := &Instruction{Kind: KindJump, Jump: &JumpValue{Target: target, Predicate: predicate}}
	b.Instrs = append(b.Instrs, j)
	return j
}

// PushBranch appends a Branch terminator built from an ordered list of
// (predicate, target) entries.
func (b *BasicBlock) PushBranch(entries []BranchEntry) *Instruction {
	br := &Instruction{Kind: KindBranch, Branch: &BranchValue{Entries: entries}}
	b.Instrs = append(b.Instrs, br)
	return br
}
