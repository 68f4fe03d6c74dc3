// Package translate implements the AST→MIR boundary (§4.2, §4.11): it walks
// an internal/frontend.Program and builds a mir.CFG one statement at a time.
// Grounded on ComedicChimera-chai's AST-to-HIR lowering walk (one lowering
// method per AST node kind, a running "current block" threaded through
// statement lists) adapted to this repo's tagged-union Instruction and
// terminator-based block edges instead of chai's typed HIR node tree.
package translate

import (
	"fmt"

	"github.com/alecthomas/participle/v2/lexer"

	"mesonmir/internal/frontend"
	"mesonmir/internal/mir"
	"mesonmir/internal/report"
)

// Translator holds the per-program state needed while lowering: the CFG
// under construction and a counter for the synthetic temporaries used to
// hoist nested sub-expressions out of argument lists and branch predicates.
type Translator struct {
	cfg         *mir.CFG
	sourceDir   string
	tempCounter int
}

// New creates a Translator that will build a fresh CFG for one source file
// rooted at sourceDir (the directory its files()/executable() calls resolve
// relative paths against, mirroring FunctionCall.SourceDir).
func New(sourceDir string) *Translator {
	return &Translator{cfg: mir.NewCFG(), sourceDir: sourceDir}
}

// Translate lowers prog's statement sequence into the entry block (and
// whatever blocks if/elif/else introduces), returning the finished CFG.
func (t *Translator) Translate(prog *frontend.Program) (*mir.CFG, error) {
	if _, err := t.lowerStatements(t.cfg.Entry.Block, prog.Statements); err != nil {
		return nil, err
	}
	return t.cfg, nil
}

// lowerStatements lowers a sequence of statements into block, returning the
// block execution continues in afterward — the same block, unless the
// sequence contained an if/elif/else, which forks into body blocks and
// rejoins at a synthesized next_block (§4.2).
func (t *Translator) lowerStatements(block *mir.BasicBlock, stmts []*frontend.Statement) (*mir.BasicBlock, error) {
	cur := block
	for _, stmt := range stmts {
		var err error
		cur, err = t.lowerStatement(cur, stmt)
		if err != nil {
			return nil, err
		}
	}
	return cur, nil
}

func (t *Translator) lowerStatement(block *mir.BasicBlock, stmt *frontend.Statement) (*mir.BasicBlock, error) {
	switch {
	case stmt.If != nil:
		return t.lowerIf(block, stmt.If)

	case stmt.Assg != nil:
		// The grammar only admits a bare Ident on the left of "=" (ast.go's
		// Assignment rule), so the "Object is not callable" MesonException
		// §6 describes for a non-identifier LHS can't arise from this
		// frontend; it would only be reachable from a richer grammar.
		val, err := t.lowerExprValue(block, stmt.Assg.Value)
		if err != nil {
			return nil, err
		}
		val.Var = mir.Variable{Name: stmt.Assg.Name}
		block.Instrs = append(block.Instrs, val)
		return block, nil

	case stmt.Expr != nil:
		val, err := t.lowerExprValue(block, stmt.Expr.Value)
		if err != nil {
			return nil, err
		}
		block.Instrs = append(block.Instrs, val)
		return block, nil

	default:
		block.Instrs = append(block.Instrs, mir.NewString("placeholder: unsupported statement"))
		return block, nil
	}
}

// lowerIf implements §4.2's if/elif/else construction: a next_block every
// arm eventually jumps to, one body block per if/elif arm plus a
// synthesized always-true else when the source has none, assembled into a
// single Branch terminator on the entry block of the construct.
func (t *Translator) lowerIf(block *mir.BasicBlock, ifStmt *frontend.IfStmt) (*mir.BasicBlock, error) {
	nextBlock := t.cfg.NewBlock()

	type arm struct {
		cond *frontend.Expr // nil for the (explicit or synthesized) else arm
		body []*frontend.Statement
	}
	arms := make([]arm, 0, 2+len(ifStmt.Elifs))
	arms = append(arms, arm{ifStmt.Cond, ifStmt.Body})
	for _, el := range ifStmt.Elifs {
		arms = append(arms, arm{el.Cond, el.Body})
	}
	var elseBody []*frontend.Statement
	if ifStmt.Else != nil {
		elseBody = ifStmt.Else.Body
	}
	arms = append(arms, arm{nil, elseBody})

	entries := make([]mir.BranchEntry, 0, len(arms))
	starts := make([]*mir.BasicBlock, 0, len(arms))
	ends := make([]*mir.BasicBlock, 0, len(arms))

	for _, a := range arms {
		var pred *mir.Instruction
		if a.cond == nil {
			pred = mir.NewBoolean(true)
		} else {
			v, err := t.lowerExprValue(block, a.cond)
			if err != nil {
				return nil, err
			}
			pred = t.materialize(block, v)
		}

		bodyBlock := t.cfg.NewBlock()
		end, err := t.lowerStatements(bodyBlock, a.body)
		if err != nil {
			return nil, err
		}
		end.PushJump(nextBlock, nil)

		entries = append(entries, mir.BranchEntry{Predicate: pred, Target: bodyBlock})
		starts = append(starts, bodyBlock)
		ends = append(ends, end)
	}

	block.PushBranch(entries)

	// Wire the explicit CFGNode mirrors only after every terminator in the
	// construct is in place (cfg.go: "callers set the real edge first...
	// then call LinkNodes").
	for i, start := range starts {
		t.cfg.LinkNodes(block, start)
		t.cfg.LinkNodes(ends[i], nextBlock)
	}

	return nextBlock, nil
}

// --- expression lowering -----------------------------------------------------
//
// lowerExprValue and its precedence-chain helpers return an *Instruction
// *value* representing the expression's result; they do not append it to
// block themselves. The caller decides what to do with it: a statement
// appends it directly (possibly after attaching a Variable), while an
// operator or call argument hoists it via materialize first if it is
// itself a FunctionCall, so semantic/dataflow passes — which only ever
// rewrite top-level block.Instrs entries — get a chance to resolve it.

func (t *Translator) lowerExprValue(block *mir.BasicBlock, e *frontend.Expr) (*mir.Instruction, error) {
	return t.lowerOr(block, e.Or)
}

func (t *Translator) lowerOr(block *mir.BasicBlock, e *frontend.OrExpr) (*mir.Instruction, error) {
	left, err := t.lowerAnd(block, e.Left)
	if err != nil {
		return nil, err
	}
	for _, r := range e.Rest {
		right, err := t.lowerAnd(block, r)
		if err != nil {
			return nil, err
		}
		left = t.emitBinary(block, "or", left, right)
	}
	return left, nil
}

func (t *Translator) lowerAnd(block *mir.BasicBlock, e *frontend.AndExpr) (*mir.Instruction, error) {
	left, err := t.lowerNot(block, e.Left)
	if err != nil {
		return nil, err
	}
	for _, r := range e.Rest {
		right, err := t.lowerNot(block, r)
		if err != nil {
			return nil, err
		}
		left = t.emitBinary(block, "and", left, right)
	}
	return left, nil
}

func (t *Translator) lowerNot(block *mir.BasicBlock, e *frontend.NotExpr) (*mir.Instruction, error) {
	val, err := t.lowerCompare(block, e.Value)
	if err != nil {
		return nil, err
	}
	if !e.Not {
		return val, nil
	}
	return t.emitUnary(block, "not", val), nil
}

func (t *Translator) lowerCompare(block *mir.BasicBlock, e *frontend.CompareExpr) (*mir.Instruction, error) {
	left, err := t.lowerAdd(block, e.Left)
	if err != nil {
		return nil, err
	}
	if e.Op == "" {
		return left, nil
	}
	right, err := t.lowerAdd(block, e.Right)
	if err != nil {
		return nil, err
	}
	return t.emitBinary(block, e.Op, left, right), nil
}

func (t *Translator) lowerAdd(block *mir.BasicBlock, e *frontend.AddExpr) (*mir.Instruction, error) {
	left, err := t.lowerMul(block, e.Left)
	if err != nil {
		return nil, err
	}
	for _, op := range e.Rest {
		right, err := t.lowerMul(block, op.Right)
		if err != nil {
			return nil, err
		}
		left = t.emitBinary(block, op.Operator, left, right)
	}
	return left, nil
}

func (t *Translator) lowerMul(block *mir.BasicBlock, e *frontend.MulExpr) (*mir.Instruction, error) {
	left, err := t.lowerUnary(block, e.Left)
	if err != nil {
		return nil, err
	}
	for _, op := range e.Rest {
		right, err := t.lowerUnary(block, op.Right)
		if err != nil {
			return nil, err
		}
		left = t.emitBinary(block, op.Operator, left, right)
	}
	return left, nil
}

func (t *Translator) lowerUnary(block *mir.BasicBlock, e *frontend.UnaryExpr) (*mir.Instruction, error) {
	val, err := t.lowerPostfix(block, e.Value)
	if err != nil {
		return nil, err
	}
	if !e.Neg {
		return val, nil
	}
	return t.emitUnary(block, "neg", val), nil
}

func (t *Translator) lowerPostfix(block *mir.BasicBlock, e *frontend.PostfixExpr) (*mir.Instruction, error) {
	val, err := t.lowerPrimary(block, e.Primary)
	if err != nil {
		return nil, err
	}
	for _, mc := range e.Calls {
		holder := t.materialize(block, val)
		pos, kw, err := t.lowerArguments(block, mc.Args)
		if err != nil {
			return nil, err
		}
		val = mir.NewFunctionCall(&mir.FunctionCall{
			Name:      mc.Name,
			Pos:       pos,
			Kw:        kw,
			Holder:    holder,
			SourceDir: t.sourceDir,
		})
	}
	return val, nil
}

func (t *Translator) lowerPrimary(block *mir.BasicBlock, p *frontend.PrimaryExpr) (*mir.Instruction, error) {
	switch {
	case p.Bool != nil:
		return mir.NewBoolean(*p.Bool == "true"), nil

	case p.Number != nil:
		n, err := parseInt(*p.Number)
		if err != nil {
			return nil, report.NewInvalidArguments("<number literal>", spanOf(p.Pos), "%s", err.Error())
		}
		return mir.NewNumber(n), nil

	case p.String != nil:
		return mir.NewString(unquote(*p.String)), nil

	case p.Ident != nil:
		return mir.NewIdentifier(*p.Ident, 0), nil

	case p.Call != nil:
		pos, kw, err := t.lowerArguments(block, p.Call.Args)
		if err != nil {
			return nil, err
		}
		return mir.NewFunctionCall(&mir.FunctionCall{
			Name:      p.Call.Name,
			Pos:       pos,
			Kw:        kw,
			SourceDir: t.sourceDir,
		}), nil

	case p.Array != nil:
		elems := make([]*mir.Instruction, 0, len(p.Array.Elems))
		for _, e := range p.Array.Elems {
			v, err := t.lowerExprValue(block, e)
			if err != nil {
				return nil, err
			}
			elems = append(elems, t.materialize(block, v))
		}
		return mir.NewArray(elems), nil

	case p.Dict != nil:
		d := make(map[string]*mir.Instruction, len(p.Dict.Entries))
		for _, entry := range p.Dict.Entries {
			v, err := t.lowerExprValue(block, entry.Value)
			if err != nil {
				return nil, err
			}
			d[entry.Key] = t.materialize(block, v)
		}
		return mir.NewDict(d), nil

	case p.Paren != nil:
		return t.lowerExprValue(block, p.Paren)

	default:
		return mir.NewString("placeholder: unsupported expression"), nil
	}
}

// lowerArguments lowers a call's argument list into Pos/Kw instruction
// slices/maps, hoisting any non-trivial (FunctionCall) argument into its
// own top-level instruction first — the same treatment operator operands
// get, for the same reason (§4.6's argument extractors expect concrete
// values or plain Identifier references, not nested calls).
func (t *Translator) lowerArguments(block *mir.BasicBlock, args *frontend.Arguments) ([]*mir.Instruction, map[string]*mir.Instruction, error) {
	if args == nil {
		return nil, nil, nil
	}

	var pos []*mir.Instruction
	var kw map[string]*mir.Instruction

	for _, a := range args.List {
		switch {
		case a.Keyword != nil:
			v, err := t.lowerExprValue(block, a.Keyword.Value)
			if err != nil {
				return nil, nil, err
			}
			if kw == nil {
				kw = map[string]*mir.Instruction{}
			}
			kw[a.Keyword.Name] = t.materialize(block, v)

		case a.Value != nil:
			v, err := t.lowerExprValue(block, a.Value)
			if err != nil {
				return nil, nil, err
			}
			pos = append(pos, t.materialize(block, v))
		}
	}

	return pos, kw, nil
}

// emitBinary builds a binary-operator FunctionCall instruction (value only,
// not appended) out of two already-lowered operands, hoisting either side
// that is itself a FunctionCall result.
func (t *Translator) emitBinary(block *mir.BasicBlock, op string, left, right *mir.Instruction) *mir.Instruction {
	l := t.materialize(block, left)
	r := t.materialize(block, right)
	return mir.NewFunctionCall(&mir.FunctionCall{Name: op, Pos: []*mir.Instruction{l, r}, SourceDir: t.sourceDir})
}

func (t *Translator) emitUnary(block *mir.BasicBlock, op string, val *mir.Instruction) *mir.Instruction {
	v := t.materialize(block, val)
	return mir.NewFunctionCall(&mir.FunctionCall{Name: op, Pos: []*mir.Instruction{v}, SourceDir: t.sourceDir})
}

// materialize hoists v into its own top-level instruction in block if it is
// a FunctionCall (a call or operator that still needs resolving), assigning
// it a fresh synthetic temporary name so later semantic/dataflow passes see
// it as an ordinary top-level definition, and returns an Identifier
// reference to that temporary in its place. Terminal values (literals,
// existing Identifiers) pass through unchanged — they need no instruction
// of their own.
func (t *Translator) materialize(block *mir.BasicBlock, v *mir.Instruction) *mir.Instruction {
	if v.Kind != mir.KindFunctionCall {
		return v
	}
	name := t.nextTemp()
	v.Var = mir.Variable{Name: name}
	block.Instrs = append(block.Instrs, v)
	return mir.NewIdentifier(name, 0)
}

func (t *Translator) nextTemp() string {
	t.tempCounter++
	return fmt.Sprintf("%%t%d", t.tempCounter)
}

func spanOf(pos lexer.Position) *report.Span {
	return &report.Span{StartLine: pos.Line - 1, StartCol: pos.Column - 1, EndLine: pos.Line - 1, EndCol: pos.Column - 1}
}
