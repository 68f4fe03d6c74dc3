package mir

// BlockPass is a block-level rewriter (§4.1): branch_pruning, join_blocks,
// delete_unreachable, and the SSA passes are all block passes. It reports
// whether it made progress and may return an error (InvalidArguments /
// MesonException bubble up through here from nested instruction passes).
type BlockPass func(cfg *CFG, node *CFGNode) (progress bool, err error)

// InstrPass is an instruction-level rewriter. If it returns a non-nil
// replacement, instruction_walker substitutes it in place, preserving the
// original instruction's Variable (§4.1).
type InstrPass func(instr *Instruction) (replacement *Instruction, err error)

// BlockWalker visits every block reachable from entry exactly once per
// invocation (DFS, tracking visited indices), applying each pass in order
// to each block. It does not itself iterate to a fixed point — callers
// (Pipeline) loop until no pass reports progress (§4.1).
func BlockWalker(cfg *CFG, passes []BlockPass) (bool, error) {
	visited := map[int]bool{}
	progress := false

	var visit func(node *CFGNode) error
	visit = func(node *CFGNode) error {
		if node == nil || visited[node.Block.Index] {
			return nil
		}
		visited[node.Block.Index] = true

		for _, pass := range passes {
			p, err := pass(cfg, node)
			if err != nil {
				return err
			}
			progress = progress || p
		}

		for _, succ := range node.Block.Successors() {
			if err := visit(cfg.Node(succ)); err != nil {
				return err
			}
		}
		return nil
	}

	if err := visit(cfg.Entry); err != nil {
		return false, err
	}
	return progress, nil
}

// InstructionWalker applies each instruction pass, in order, to each
// instruction in block's list. A pass that returns a replacement causes an
// in-place substitution that preserves the original instruction's Variable.
// Progress is true iff at least one substitution happened.
func InstructionWalker(block *BasicBlock, passes []InstrPass) (bool, error) {
	progress := false

	for i, instr := range block.Instrs {
		for _, pass := range passes {
			repl, err := pass(instr)
			if err != nil {
				return progress, err
			}
			if repl != nil {
				repl.Var = instr.Var
				block.Instrs[i] = repl
				instr = repl
				progress = true
			}
		}
	}

	return progress, nil
}

// InstructionWalkerAsBlockPass adapts a list of instruction passes into a
// single BlockPass, which is how the pipeline splices instruction-level
// rewrites into the block-walking fixed-point loop (§4.1: "instruction
// walker ... applies instruction-level rewriters").
func InstructionWalkerAsBlockPass(passes ...InstrPass) BlockPass {
	return func(cfg *CFG, node *CFGNode) (bool, error) {
		return InstructionWalker(node.Block, passes)
	}
}
