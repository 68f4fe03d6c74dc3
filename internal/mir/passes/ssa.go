package passes

import "mesonmir/internal/mir"

// SSAState threads the per-variable version counter across the value
// numbering, phi insertion, and phi fixup passes for the lifetime of one
// Pipeline (§4.4: "the counter is threaded by block-walk order"). The three
// passes share one SSAState so phi-assigned versions and ordinary
// definition versions never collide (P1, SSA uniqueness).
type SSAState struct {
	gvn map[string]uint32
}

func NewSSAState() *SSAState {
	return &SSAState{gvn: map[string]uint32{}}
}

func (s *SSAState) next(name string) uint32 {
	s.gvn[name]++
	return s.gvn[name]
}

// ValueNumbering assigns a fresh version to every instruction whose
// Variable is set (Name != "") but still carries Version 0, and resolves
// Identifier uses whose IdentVersion is still 0 to the counter's current
// value for that name. Already-versioned instructions are left untouched,
// so re-running this pass on a stable CFG makes no further progress (P2).
func (s *SSAState) ValueNumbering() mir.BlockPass {
	return func(cfg *mir.CFG, node *mir.CFGNode) (bool, error) {
		progress := false

		for _, instr := range node.Block.Instrs {
			if instr.Kind == mir.KindIdentifier && instr.IdentVersion == 0 {
				if v, ok := s.gvn[instr.IdentName]; ok && v != 0 {
					instr.IdentVersion = v
					progress = true
				}
			}

			if instr.Var.Name != "" && instr.Var.Version == 0 {
				instr.Var.Version = s.next(instr.Var.Name)
				progress = true
			}
		}

		return progress, nil
	}
}

// PhiInsertion implements §4.4's phi insertion: at a block with ≥2
// parents, for every name defined by more than one parent, walk parents in
// order and chain new Phi instructions merging each parent's last
// definition into the previous phi's result. Already-present phis
// (matched by name, left, right) are not re-emitted.
func (s *SSAState) PhiInsertion() mir.BlockPass {
	return func(cfg *mir.CFG, node *mir.CFGNode) (bool, error) {
		block := node.Block
		if len(block.Parents) < 2 {
			return false, nil
		}

		names := namesDefinedInMultipleParents(block.Parents)
		if len(names) == 0 {
			return false, nil
		}

		progress := false
		var newPhis []*mir.Instruction

		for _, name := range names {
			var prevVersion uint32
			haveFirst := false

			for _, parent := range block.Parents {
				def := parent.LastDef(name, -1)
				if def == nil {
					continue
				}

				if !haveFirst {
					prevVersion = def.Var.Version
					haveFirst = true
					continue
				}

				if phiAlreadyPresent(block, name, prevVersion, def.Var.Version) {
					prevVersion = existingPhiVersion(block, name, prevVersion, def.Var.Version)
					continue
				}

				version := s.next(name)
				phi := &mir.Instruction{
					Kind:     mir.KindPhi,
					Var:      mir.Variable{Name: name, Version: version},
					PhiLeft:  prevVersion,
					PhiRight: def.Var.Version,
				}
				newPhis = append(newPhis, phi)
				prevVersion = version
				progress = true
			}
		}

		if len(newPhis) > 0 {
			block.Instrs = append(newPhis, block.Instrs...)
		}

		return progress, nil
	}
}

// namesDefinedInMultipleParents returns, in a stable (first-seen) order,
// every variable name defined by at least two of the given parent blocks.
func namesDefinedInMultipleParents(parents []*mir.BasicBlock) []string {
	count := map[string]int{}
	var order []string

	for _, parent := range parents {
		seenInThisParent := map[string]bool{}
		for _, instr := range parent.Instrs {
			name := instr.Var.Name
			if name == "" || instr.Var.Version == 0 || seenInThisParent[name] {
				continue
			}
			seenInThisParent[name] = true
			if count[name] == 0 {
				order = append(order, name)
			}
			count[name]++
		}
	}

	var out []string
	for _, name := range order {
		if count[name] >= 2 {
			out = append(out, name)
		}
	}
	return out
}

func phiAlreadyPresent(block *mir.BasicBlock, name string, left, right uint32) bool {
	for _, instr := range block.Instrs {
		if instr.Kind == mir.KindPhi && instr.Var.Name == name &&
			instr.PhiLeft == left && instr.PhiRight == right {
			return true
		}
	}
	return false
}

func existingPhiVersion(block *mir.BasicBlock, name string, left, right uint32) uint32 {
	for _, instr := range block.Instrs {
		if instr.Kind == mir.KindPhi && instr.Var.Name == name &&
			instr.PhiLeft == left && instr.PhiRight == right {
			return instr.Var.Version
		}
	}
	return 0
}

// PhiFixup implements §4.4's phi fixup: collapse a Phi to a plain
// Identifier carrying the Phi's Variable when only one of its two operands
// is actually reachable — via the block's (possibly pruned) parents, or a
// preceding definition earlier in the same block. This is the monotone
// collapse used after branch_pruning/join_blocks have pruned one incoming
// path (§9: "do not guess a different policy" — emit the phi regardless on
// insertion, rely on this pass to collapse it).
func PhiFixup(cfg *mir.CFG, node *mir.CFGNode) (bool, error) {
	block := node.Block
	progress := false

	for i, instr := range block.Instrs {
		if instr.Kind != mir.KindPhi {
			continue
		}

		leftLive := versionLive(block, instr.Var.Name, instr.PhiLeft)
		rightLive := versionLive(block, instr.Var.Name, instr.PhiRight)

		if leftLive && rightLive {
			continue
		}

		var live uint32
		switch {
		case leftLive:
			live = instr.PhiLeft
		case rightLive:
			live = instr.PhiRight
		default:
			// Neither operand traces to a live parent: the defining name is
			// unreachable here too; leave the phi for a later iteration once
			// more structural pruning has happened.
			continue
		}

		block.Instrs[i] = &mir.Instruction{
			Kind:         mir.KindIdentifier,
			Var:          instr.Var,
			IdentName:    instr.Var.Name,
			IdentVersion: live,
		}
		progress = true
	}

	return progress, nil
}

// versionLive reports whether `name.version` is reachable at this phi: it
// is live if some parent of block last-defines name at exactly that
// version, or if an earlier instruction in the same block (another phi,
// already collapsed) defines it.
func versionLive(block *mir.BasicBlock, name string, version uint32) bool {
	for _, parent := range block.Parents {
		if def := parent.LastDef(name, -1); def != nil && def.Var.Version == version {
			return true
		}
	}
	for _, instr := range block.Instrs {
		if instr.Var.Name == name && instr.Var.Version == version {
			return true
		}
	}
	return false
}
