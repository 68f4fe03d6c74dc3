package mir

// CFGNode wraps a BasicBlock with the explicit predecessor/successor sets
// the structural passes mutate directly (§3 CFGNode). Preds/Succs are kept
// in lock-step with the block's real edges (Parents and the terminator) by
// LinkNodes/UnlinkNodes; nothing else is permitted to touch them, so I3
// ("the successor set equals the set of blocks reachable in one hop")
// always holds between calls.
type CFGNode struct {
	Block *BasicBlock
	Preds []*BasicBlock
	Succs []*BasicBlock
}

// CFG is the whole control-flow graph produced by the AST→MIR boundary: one
// entry block and a set of nodes reachable from it, terminating at an exit
// with no outgoing edge.
type CFG struct {
	Entry *CFGNode
	Nodes map[int]*CFGNode

	nextIndex int
}

// NewCFG creates an empty graph whose entry block is index 0.
func NewCFG() *CFG {
	cfg := &CFG{Nodes: map[int]*CFGNode{}}
	entryBlock := cfg.allocBlock()
	entryNode := &CFGNode{Block: entryBlock}
	cfg.Nodes[entryBlock.Index] = entryNode
	cfg.Entry = entryNode
	return cfg
}

// NewBlock allocates a fresh block with the next monotonic index, registers
// its node in the graph, and returns it. Newly allocated blocks start with
// no edges; callers wire them up with LinkNodes.
func (cfg *CFG) NewBlock() *BasicBlock {
	b := cfg.allocBlock()
	cfg.Nodes[b.Index] = &CFGNode{Block: b}
	return b
}

func (cfg *CFG) allocBlock() *BasicBlock {
	b := &BasicBlock{Index: cfg.nextIndex}
	cfg.nextIndex++
	return b
}

func (cfg *CFG) Node(b *BasicBlock) *CFGNode {
	if b == nil {
		return nil
	}
	return cfg.Nodes[b.Index]
}

// LinkNodes establishes an edge from -> to in both the block-level
// Parents set and the CFGNode's explicit Preds/Succs mirrors. It does not
// itself push a terminator on from's block — callers set the real edge
// first (it's the source of
// truth the Successors() derivation reads), then call LinkNodes so the
// explicit sets agree with it.
func (cfg *CFG) LinkNodes(from, to *BasicBlock) {
	to.AddParent(from)

	fn := cfg.Node(from)
	tn := cfg.Node(to)
	if fn == nil || tn == nil {
		return
	}
	if !containsBlock(fn.Succs, to) {
		fn.Succs = append(fn.Succs, to)
	}
	if !containsBlock(tn.Preds, from) {
		tn.Preds = append(tn.Preds, from)
	}
}

// UnlinkNodes removes the from -> to edge from both representations. It does
// not erase whatever terminator entry on from's block pointed at to — the
// caller (a structural pass) is expected to have already rewritten or
// cleared that entry; UnlinkNodes only keeps the explicit mirrors honest.
func (cfg *CFG) UnlinkNodes(from, to *BasicBlock) {
	to.RemoveParent(from)

	fn := cfg.Node(from)
	tn := cfg.Node(to)
	if fn != nil {
		fn.Succs = removeBlock(fn.Succs, to)
	}
	if tn != nil {
		tn.Preds = removeBlock(tn.Preds, from)
	}
}

// DeleteNode removes a block from the graph entirely (used by
// delete_unreachable/join_blocks once every edge to it has been unlinked).
func (cfg *CFG) DeleteNode(b *BasicBlock) {
	delete(cfg.Nodes, b.Index)
}

func containsBlock(blocks []*BasicBlock, target *BasicBlock) bool {
	for _, b := range blocks {
		if b.Index == target.Index {
			return true
		}
	}
	return false
}

func removeBlock(blocks []*BasicBlock, target *BasicBlock) []*BasicBlock {
	out := blocks[:0]
	for _, b := range blocks {
		if b.Index != target.Index {
			out = append(out, b)
		}
	}
	return out
}
