package passes

import "mesonmir/internal/mir"

// ConstantFolding implements §4.5's constant folding: pure operations over
// already-constant operands reduce to their result, and identifiers that
// the fold has previously proven equal to a canonical variable are rewritten
// to point at it directly. State (the replacements table) is shared across
// the whole pipeline run the way spec.md describes ("Maintains
// replacements: map<Variable, Variable>").
type ConstantFolding struct {
	replacements map[mir.Variable]mir.Variable
}

func NewConstantFolding() *ConstantFolding {
	return &ConstantFolding{replacements: map[mir.Variable]mir.Variable{}}
}

func (c *ConstantFolding) Pass() mir.InstrPass {
	return func(instr *mir.Instruction) (*mir.Instruction, error) {
		rewriteNestedIdentifiers(instr, func(id *mir.Instruction) *mir.Instruction {
			key := mir.Variable{Name: id.IdentName, Version: id.IdentVersion}
			canonical, ok := c.replacements[key]
			if !ok || canonical == key {
				return nil
			}
			return &mir.Instruction{Kind: mir.KindIdentifier, IdentName: canonical.Name, IdentVersion: canonical.Version}
		})

		if instr.Kind == mir.KindFunctionCall && instr.Call != nil {
			if folded, ok := foldPureOp(instr.Call); ok {
				if instr.Var.Name != "" {
					c.replacements[instr.Var] = instr.Var
				}
				return folded, nil
			}
			return nil, nil
		}

		if instr.Kind == mir.KindIdentifier {
			key := mir.Variable{Name: instr.IdentName, Version: instr.IdentVersion}
			if canonical, ok := c.replacements[key]; ok && canonical != key {
				return &mir.Instruction{
					Kind:         mir.KindIdentifier,
					IdentName:    canonical.Name,
					IdentVersion: canonical.Version,
				}, nil
			}
		}

		return nil, nil
	}
}

// ConstantPropagation implements §4.5's constant propagation: when a
// propagatable constant-ish instruction is defined, remember it; when an
// Identifier referencing that definition is seen, replace it with a clone
// of the definition (preserving the identifier's own Variable). Function
// calls and other non-propagatable results are never substituted in.
type ConstantPropagation struct {
	defs map[mir.Variable]*mir.Instruction
}

func NewConstantPropagation() *ConstantPropagation {
	return &ConstantPropagation{defs: map[mir.Variable]*mir.Instruction{}}
}

func (c *ConstantPropagation) Pass() mir.InstrPass {
	return func(instr *mir.Instruction) (*mir.Instruction, error) {
		if instr.Var.Name != "" && instr.Kind != mir.KindIdentifier && instr.IsPropagatable() {
			c.defs[instr.Var] = instr
		}

		if instr.Kind == mir.KindIdentifier {
			key := mir.Variable{Name: instr.IdentName, Version: instr.IdentVersion}
			if def, ok := c.defs[key]; ok {
				clone := def.Clone()
				return clone, nil
			}
		}

		// A use site can be buried inside a FunctionCall's Pos/Kw/Holder or an
		// Array/Dict's elements rather than be the top-level instruction itself
		// (e.g. `x.method()`'s Holder, or `executable('a', src)`'s Pos[1]).
		// instruction_walker only ever sees the top-level instruction, so
		// nested identifier uses are inlined here, in place, rather than
		// through the top-level replacement protocol above.
		rewriteNestedIdentifiers(instr, func(id *mir.Instruction) *mir.Instruction {
			key := mir.Variable{Name: id.IdentName, Version: id.IdentVersion}
			def, ok := c.defs[key]
			if !ok {
				return nil
			}
			return def.Clone()
		})

		return nil, nil
	}
}

// rewriteNestedIdentifiers walks instr's Pos/Kw/Holder (for a FunctionCall)
// or Elems/Dict (for an Array/Dict), replacing any Identifier instruction
// reachable at any depth for which resolve returns a non-nil replacement.
// Replacement happens in place by mutating the containing slice/map/field;
// it never touches instr itself, since instruction_walker already owns the
// top-level substitution protocol for that.
func rewriteNestedIdentifiers(instr *mir.Instruction, resolve func(*mir.Instruction) *mir.Instruction) {
	switch instr.Kind {
	case mir.KindFunctionCall:
		if instr.Call == nil {
			return
		}
		for i, p := range instr.Call.Pos {
			instr.Call.Pos[i] = resolveOrDescend(p, resolve)
		}
		for k, v := range instr.Call.Kw {
			instr.Call.Kw[k] = resolveOrDescend(v, resolve)
		}
		if instr.Call.Holder != nil {
			instr.Call.Holder = resolveOrDescend(instr.Call.Holder, resolve)
		}
	case mir.KindArray:
		for i, e := range instr.Elems {
			instr.Elems[i] = resolveOrDescend(e, resolve)
		}
	case mir.KindDict:
		for k, v := range instr.Dict {
			instr.Dict[k] = resolveOrDescend(v, resolve)
		}
	case mir.KindJump:
		if instr.Jump != nil && instr.Jump.Predicate != nil {
			instr.Jump.Predicate = resolveOrDescend(instr.Jump.Predicate, resolve)
		}
	case mir.KindBranch:
		if instr.Branch == nil {
			return
		}
		for i, e := range instr.Branch.Entries {
			if e.Predicate != nil {
				instr.Branch.Entries[i].Predicate = resolveOrDescend(e.Predicate, resolve)
			}
		}
	}
}

func resolveOrDescend(instr *mir.Instruction, resolve func(*mir.Instruction) *mir.Instruction) *mir.Instruction {
	if instr.Kind == mir.KindIdentifier {
		if repl := resolve(instr); repl != nil {
			return repl
		}
		return instr
	}
	rewriteNestedIdentifiers(instr, resolve)
	return instr
}

// foldPureOp is the operator-evaluation core shared by ConstantFolding and
// lower_free_functions (§4.6 explicitly folds the same unary/binary
// operators on constants that §4.5 does; this single implementation backs
// both passes rather than duplicating the arithmetic).
func foldPureOp(call *mir.FunctionCall) (*mir.Instruction, bool) {
	if call.Holder != nil {
		return nil, false
	}

	switch call.Name {
	case "not":
		if len(call.Pos) != 1 || call.Pos[0].Kind != mir.KindBoolean {
			return nil, false
		}
		return mir.NewBoolean(!call.Pos[0].Bool), true

	case "neg":
		if len(call.Pos) != 1 || call.Pos[0].Kind != mir.KindNumber {
			return nil, false
		}
		return mir.NewNumber(-call.Pos[0].Num), true

	case "==", "!=":
		if len(call.Pos) != 2 {
			return nil, false
		}
		eq, ok := equalPrimitives(call.Pos[0], call.Pos[1])
		if !ok {
			return nil, false
		}
		if call.Name == "!=" {
			eq = !eq
		}
		return mir.NewBoolean(eq), true

	case "+", "-", "*", "/", "%":
		if len(call.Pos) != 2 || call.Pos[0].Kind != mir.KindNumber || call.Pos[1].Kind != mir.KindNumber {
			return nil, false
		}
		a, b := call.Pos[0].Num, call.Pos[1].Num
		switch call.Name {
		case "+":
			return mir.NewNumber(a + b), true
		case "-":
			return mir.NewNumber(a - b), true
		case "*":
			return mir.NewNumber(a * b), true
		case "/":
			if b == 0 {
				return nil, false
			}
			return mir.NewNumber(a / b), true
		case "%":
			if b == 0 {
				return nil, false
			}
			return mir.NewNumber(a % b), true
		}

	case "<", ">", "<=", ">=":
		if len(call.Pos) != 2 || call.Pos[0].Kind != mir.KindNumber || call.Pos[1].Kind != mir.KindNumber {
			return nil, false
		}
		a, b := call.Pos[0].Num, call.Pos[1].Num
		switch call.Name {
		case "<":
			return mir.NewBoolean(a < b), true
		case ">":
			return mir.NewBoolean(a > b), true
		case "<=":
			return mir.NewBoolean(a <= b), true
		case ">=":
			return mir.NewBoolean(a >= b), true
		}

	case "and", "or":
		if len(call.Pos) != 2 || call.Pos[0].Kind != mir.KindBoolean || call.Pos[1].Kind != mir.KindBoolean {
			return nil, false
		}
		if call.Name == "and" {
			return mir.NewBoolean(call.Pos[0].Bool && call.Pos[1].Bool), true
		}
		return mir.NewBoolean(call.Pos[0].Bool || call.Pos[1].Bool), true
	}

	return nil, false
}

// equalPrimitives compares two resolved primitive instructions for ==/!=.
// Mismatched kinds are not an error here (spec.md §4.5 only lists
// "equality/inequality on matching primitive types"): mismatched kinds
// simply fail to fold so the call is left for a later pass iteration, or
// never folds if the program genuinely compares mismatched types (Meson
// itself rejects that at a higher layer, outside the core's scope).
func equalPrimitives(a, b *mir.Instruction) (bool, bool) {
	if a.Kind != b.Kind {
		return false, false
	}
	switch a.Kind {
	case mir.KindString:
		return a.Str == b.Str, true
	case mir.KindNumber:
		return a.Num == b.Num, true
	case mir.KindBoolean:
		return a.Bool == b.Bool, true
	default:
		return false, false
	}
}
