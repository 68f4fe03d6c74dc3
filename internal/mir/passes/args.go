package passes

import (
	"mesonmir/internal/mir"
	"mesonmir/internal/report"
)

// callArgs wraps a FunctionCall with the argument-extraction helpers §4.6
// describes: "extract positional by type, extract positional as a sum of
// types, extract keyword by name, extract keyword as array, extract
// keyword as sum." Every extractor either returns a concrete value and
// ok=true, or (zero, false, nil) meaning "not ready yet, leave the call for
// a later iteration" (unresolved argument), or (zero, false, err) meaning
// the shape is wrong and can never resolve (InvalidArguments, §4.7).
type callArgs struct {
	fn   string
	call *mir.FunctionCall
}

func args(fn string, call *mir.FunctionCall) callArgs {
	return callArgs{fn: fn, call: call}
}

// posString extracts the i'th positional argument as a String. An
// Identifier argument is not yet a type error — it is a variable
// reference constant propagation hasn't inlined yet — so it reports
// "not ready" rather than InvalidArguments, leaving the call for a later
// pipeline iteration once propagation resolves it.
func (a callArgs) posString(i int) (string, bool, error) {
	if i >= len(a.call.Pos) {
		return "", false, nil
	}
	v := a.call.Pos[i]
	if v.Kind == mir.KindIdentifier {
		return "", false, nil
	}
	if v.Kind != mir.KindString {
		return "", false, report.NewInvalidArguments(a.fn, nil, "expected a string for positional argument %d", i)
	}
	return v.Str, true, nil
}

// posStringOrStringArray extracts the i'th positional argument as a sum of
// String | Array<String>, always returning a flat []string.
func (a callArgs) posStringOrStringArray(i int) ([]string, bool, error) {
	if i >= len(a.call.Pos) {
		return nil, false, nil
	}
	v := a.call.Pos[i]
	switch v.Kind {
	case mir.KindString:
		return []string{v.Str}, true, nil
	case mir.KindArray:
		out := make([]string, 0, len(v.Elems))
		for _, e := range v.Elems {
			if e.Kind != mir.KindString {
				return nil, false, report.NewInvalidArguments(a.fn, nil, "expected an array of strings for positional argument %d", i)
			}
			out = append(out, e.Str)
		}
		return out, true, nil
	default:
		return nil, false, report.NewInvalidArguments(a.fn, nil, "expected a string or array of strings for positional argument %d", i)
	}
}

// posStrings extracts every positional argument as a String, for variadic
// free functions whose whole positional list is one flat bag of strings
// (add_project_arguments/add_global_arguments, once flatten has spliced any
// Array positionals away).
func (a callArgs) posStrings() ([]string, error) {
	out := make([]string, 0, len(a.call.Pos))
	for i, v := range a.call.Pos {
		if v.Kind != mir.KindString {
			return nil, report.NewInvalidArguments(a.fn, nil, "expected a string for positional argument %d", i)
		}
		out = append(out, v.Str)
	}
	return out, nil
}

// posFilesFrom extracts every positional argument from index i as File
// instructions (used once files(...) calls have already been lowered).
func (a callArgs) posFilesFrom(i int) ([]*mir.Instruction, bool) {
	var out []*mir.Instruction
	for _, v := range a.call.Pos[i:] {
		if v.Kind != mir.KindFile && v.Kind != mir.KindArray {
			return nil, false
		}
		if v.Kind == mir.KindArray {
			out = append(out, v.Elems...)
		} else {
			out = append(out, v)
		}
	}
	return out, true
}

// kw looks up a keyword argument by name; the second return is false when
// absent ("missing keyword → returns 'absent'", §4.6) — absence is not an
// error, callers decide whether a default applies.
func (a callArgs) kw(name string) (*mir.Instruction, bool) {
	if a.call.Kw == nil {
		return nil, false
	}
	v, ok := a.call.Kw[name]
	return v, ok
}

// kwStringArray extracts a keyword argument as an array of strings, with
// sum-type tolerance for a bare String (Meson often accepts either).
func (a callArgs) kwStringArray(name string) ([]string, bool, error) {
	v, present := a.kw(name)
	if !present {
		return nil, false, nil
	}
	switch v.Kind {
	case mir.KindString:
		return []string{v.Str}, true, nil
	case mir.KindArray:
		out := make([]string, 0, len(v.Elems))
		for _, e := range v.Elems {
			if e.Kind != mir.KindString {
				return nil, false, report.NewInvalidArguments(a.fn, nil, "keyword argument %q must be a string or array of strings", name)
			}
			out = append(out, e.Str)
		}
		return out, true, nil
	default:
		return nil, false, report.NewInvalidArguments(a.fn, nil, "keyword argument %q must be a string or array of strings", name)
	}
}

// kwArray extracts a keyword argument as a raw instruction array (used for
// keywords whose element type varies, e.g. declare_dependency's
// dependencies:).
func (a callArgs) kwArray(name string) ([]*mir.Instruction, bool, error) {
	v, present := a.kw(name)
	if !present {
		return nil, false, nil
	}
	if v.Kind != mir.KindArray {
		return []*mir.Instruction{v}, true, nil
	}
	return v.Elems, true, nil
}

// allResolved reports whether every positional and keyword argument has
// reached a concrete (non-FunctionCall) value — semantic passes only fire
// "if every argument has been reduced to a concrete value" (§4.6).
func (a callArgs) allResolved() bool {
	for _, p := range a.call.Pos {
		if !isResolved(p) {
			return false
		}
	}
	for _, v := range a.call.Kw {
		if !isResolved(v) {
			return false
		}
	}
	return true
}

// isResolved reports whether instr has already been reduced to a concrete
// value. A FunctionCall obviously hasn't; neither has a bare Identifier —
// it is a variable reference that constant propagation inlines separately
// (dataflow.go's rewriteNestedIdentifiers), and a semantic pass that runs
// before that inlining happens must wait rather than type-check the
// reference itself and fail.
func isResolved(instr *mir.Instruction) bool {
	switch instr.Kind {
	case mir.KindFunctionCall, mir.KindIdentifier:
		return false
	case mir.KindArray:
		for _, e := range instr.Elems {
			if !isResolved(e) {
				return false
			}
		}
		return true
	default:
		return true
	}
}
