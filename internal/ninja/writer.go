// Package ninja implements the backend collaborator of §6: it consumes
// the pipeline's final CFG and emits a Ninja build file, plus the
// illustrative Test sub-record ASCII format spec.md §6 describes
// verbatim. Grounded on spec.md's own format description; the teacher has
// no backend emission code of this shape to draw from.
package ninja

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"mesonmir/internal/mir"
)

// Writer accumulates build rules/edges discovered while walking the final
// CFG and serializes them as a Ninja build file.
type Writer struct {
	rules    map[string]bool
	edges    []edge
	buildDir string
}

type edge struct {
	rule    string
	outputs []string
	inputs  []string
	vars    map[string]string
}

func NewWriter(buildDir string) *Writer {
	return &Writer{rules: map[string]bool{}, buildDir: buildDir}
}

// Target emits the rules/edges for a resolved Executable, StaticLibrary or
// CustomTarget instruction. It ignores any other Kind so callers can pass every
// instruction in a block without pre-filtering.
func (w *Writer) Target(instr *mir.Instruction) error {
	switch instr.Kind {
	case mir.KindExecutable:
		return w.addCompileLink(instr.Executable, "link_executable", instr.Executable.Name)
	case mir.KindStaticLibrary:
		return w.addCompileLink(instr.StaticLibrary, "archive_static_library", "lib"+instr.StaticLibrary.Name+".a")
	case mir.KindCustomTarget:
		return w.addCustomTarget(instr.CustomTarget)
	default:
		return nil
	}
}

func (w *Writer) addCompileLink(t *mir.TargetValue, linkRule, output string) error {
	var objects []string
	for _, src := range t.Sources {
		if src.Kind != mir.KindFile {
			return fmt.Errorf("ninja: target %s has a non-File source instruction", t.Name)
		}
		objRule := "compile_c"
		objExt := ".o"
		obj := filepath.Join(t.Subdir, src.File.Name+objExt)

		w.rules[objRule] = true
		w.edges = append(w.edges, edge{
			rule:    objRule,
			outputs: []string{obj},
			inputs:  []string{filepath.Join(src.File.SourceRoot, src.File.Subdir, src.File.Name)},
		})
		objects = append(objects, obj)
	}

	for _, link := range t.StaticLinks {
		switch link.Kind {
		case mir.KindStaticLibrary:
			objects = append(objects, "lib"+link.StaticLibrary.Name+".a")
		case mir.KindExecutable:
			objects = append(objects, link.Executable.Name)
		}
	}

	w.rules[linkRule] = true
	w.edges = append(w.edges, edge{
		rule:    linkRule,
		outputs: []string{output},
		inputs:  objects,
	})
	return nil
}

func (w *Writer) addCustomTarget(ct *mir.CustomTargetValue) error {
	var command []string
	for _, c := range ct.Command {
		switch c.Kind {
		case mir.KindString:
			command = append(command, c.Str)
		case mir.KindProgram:
			command = append(command, c.Program.Path)
		default:
			return fmt.Errorf("ninja: custom_target %s has an unresolved command element", ct.Name)
		}
	}

	var inputs []string
	for _, in := range ct.Inputs {
		if in.Kind == mir.KindFile {
			inputs = append(inputs, filepath.Join(in.File.SourceRoot, in.File.Subdir, in.File.Name))
		}
	}

	ruleName := "custom_" + ct.Name
	w.rules[ruleName] = true
	w.edges = append(w.edges, edge{
		rule:    ruleName,
		outputs: ct.Outputs,
		inputs:  inputs,
		vars:    map[string]string{"command": strings.Join(command, " ")},
	})
	return nil
}

// ruleCommands gives the canonical command line for each built-in rule
// name; custom_target rules carry their own command via edge.vars.
var ruleCommands = map[string]string{
	"compile_c":              "cc -c $in -o $out",
	"link_executable":        "cc $in -o $out",
	"archive_static_library": "ar rcs $out $in",
}

// WriteTo serializes the accumulated rules and edges as a Ninja build
// file using Ninja's plain-text rule/build syntax.
func (w *Writer) WriteTo(out io.Writer) error {
	for _, rule := range sortedKeys(w.rules) {
		command, ok := ruleCommands[rule]
		if !ok {
			command = "$command"
		}
		if _, err := fmt.Fprintf(out, "rule %s\n  command = %s\n\n", rule, command); err != nil {
			return err
		}
	}

	for _, e := range w.edges {
		if _, err := fmt.Fprintf(out, "build %s: %s %s\n", strings.Join(e.outputs, " "), e.rule, strings.Join(e.inputs, " ")); err != nil {
			return err
		}
		for k, v := range e.vars {
			if _, err := fmt.Fprintf(out, "  %s = %s\n", k, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}
