package passes

import (
	"strings"

	"mesonmir/internal/mir"
	"mesonmir/internal/report"
)

// ToolchainDetector is the boundary insert_compilers and lower_project call
// through to discover a concrete Toolchain for a (language, machine) pair.
// internal/hostprobe supplies the real implementation; tests supply a fake.
type ToolchainDetector interface {
	Detect(lang mir.Language, machine mir.Machine) (*mir.Toolchain, error)
}

// ProgramLocator resolves a program name to a path on the host PATH, the
// §4.9 PATH lookup collaborator lower_program_objects depends on.
type ProgramLocator interface {
	LookPath(name string) (path string, found bool)
}

// SemanticState bundles the collaborators and persistent state the twelve
// semantic lowering passes of §4.6 close over. One instance is constructed
// per pipeline run, mirroring SSAState/ConstantFolding/ConstantPropagation's
// shared-state pattern, so toolchain insertion and find_program caching
// stay consistent across the whole fixed-point loop.
type SemanticState struct {
	State    *mir.PersistentState
	Detector ToolchainDetector
	Locator  ProgramLocator
	Threaded *ThreadedLowering
}

func NewSemanticState(state *mir.PersistentState, detector ToolchainDetector, locator ProgramLocator, threaded *ThreadedLowering) *SemanticState {
	return &SemanticState{State: state, Detector: detector, Locator: locator, Threaded: threaded}
}

// LowerProject implements §4.6's lower_project: project(name, langs=[])
// sets the persistent project name (once) and ensures a toolchain entry
// exists, per requested language, for both the build and host machines.
// Toolchain detection is an I/O-bound compiler probe (§4.6, §5), so it goes
// through threaded_lowering's fingerprint cache the same way
// LowerProgramObjects resolves find_program, instead of blocking the
// single-threaded pipeline on Detector.Detect inline.
func (s *SemanticState) LowerProject() mir.InstrPass {
	return func(instr *mir.Instruction) (*mir.Instruction, error) {
		if instr.Kind != mir.KindFunctionCall || instr.Call == nil || instr.Call.Holder != nil || instr.Call.Name != "project" {
			return nil, nil
		}
		call := instr.Call
		a := args("project", call)
		if !a.allResolved() {
			return nil, nil
		}

		name, ok, err := a.posString(0)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, report.NewInvalidArguments("project", nil, "project() requires a name")
		}

		langs, _, err := a.posStringOrStringArray(1)
		if err != nil {
			return nil, err
		}

		if !s.State.ProjectSet {
			s.State.SetProjectName(name)
		}

		allReady := true
		for _, lang := range langs {
			language := mir.Language(lang)
			for _, machine := range []mir.Machine{mir.MachineBuild, mir.MachineHost} {
				if _, exists := s.State.Toolchains.Get(language, machine); exists {
					continue
				}

				fingerprint := "toolchain:" + lang + ":" + machine.String()
				if cached, ready := s.Threaded.Get(fingerprint); ready {
					s.State.Toolchains.Insert(language, machine, cached.Compiler.Toolchain)
					continue
				}

				allReady = false
				detector, detectLang, detectMachine := s.Detector, language, machine
				s.Threaded.Dispatch(fingerprint, func() (*mir.Instruction, error) {
					tc, err := detector.Detect(detectLang, detectMachine)
					if err != nil {
						return nil, err
					}
					return &mir.Instruction{Kind: mir.KindCompiler, Compiler: &mir.CompilerValue{Toolchain: tc}}, nil
				})
			}
		}

		// Stay unresolved (return nil) until every requested toolchain has
		// landed in State.Toolchains; a later pipeline iteration, after
		// threaded_lowering's Drain installs the probe results, revisits this
		// same call and finds allReady true.
		if !allReady {
			return nil, nil
		}

		return mir.NewEmpty(), nil
	}
}

// variadicFreeFunctions names the free functions whose positional argument
// list is conceptually varargs, the set flatten (§4.6) splices Arrays into.
var variadicFreeFunctions = map[string]bool{
	"files":                 true,
	"message":               true,
	"warning":               true,
	"error":                 true,
	"executable":            true,
	"static_library":        true,
	"add_project_arguments": true,
	"add_global_arguments":  true,
}

// Flatten implements §4.6's flatten: splice Array positional arguments into
// the call's flat positional list, recursively, for the functions above.
// Monotone: it strictly reduces the number of Array-kind positional
// arguments, so repeating it on a stable call makes no further progress.
func Flatten() mir.InstrPass {
	return func(instr *mir.Instruction) (*mir.Instruction, error) {
		if instr.Kind != mir.KindFunctionCall || instr.Call == nil || instr.Call.Holder != nil {
			return nil, nil
		}
		if !variadicFreeFunctions[instr.Call.Name] {
			return nil, nil
		}

		spliced, changed := flattenPositional(instr.Call.Pos)
		if !changed {
			return nil, nil
		}

		clone := *instr.Call
		clone.Pos = spliced
		return mir.NewFunctionCall(&clone), nil
	}
}

func flattenPositional(pos []*mir.Instruction) ([]*mir.Instruction, bool) {
	changed := false
	var out []*mir.Instruction
	for _, p := range pos {
		if p.Kind == mir.KindArray {
			changed = true
			inner, _ := flattenPositional(p.Elems)
			out = append(out, inner...)
			continue
		}
		out = append(out, p)
	}
	return out, changed
}

// LowerFreeFunctions implements §4.6's lower_free_functions: files,
// message/warning/error, assert, the primitive unary/binary operators
// (shared with constant folding via foldPureOp), executable,
// static_library, custom_target, and declare_dependency.
func (s *SemanticState) LowerFreeFunctions() mir.InstrPass {
	return func(instr *mir.Instruction) (*mir.Instruction, error) {
		if instr.Kind != mir.KindFunctionCall || instr.Call == nil || instr.Call.Holder != nil {
			return nil, nil
		}
		call := instr.Call
		a := args(call.Name, call)
		if !a.allResolved() {
			return nil, nil
		}

		switch call.Name {
		case "files":
			return s.lowerFiles(call)
		case "message":
			return lowerMessage(mir.MessageInfo, call), nil
		case "warning":
			return lowerMessage(mir.MessageWarn, call), nil
		case "error":
			return lowerMessage(mir.MessageError, call), nil
		case "assert":
			return lowerAssert(call)
		case "not", "neg", "==", "!=", "+", "-", "*", "/", "%", "<", ">", "<=", ">=", "and", "or":
			if folded, ok := foldPureOp(call); ok {
				return folded, nil
			}
			return nil, nil
		case "executable":
			return s.lowerTarget(mir.KindExecutable, call)
		case "static_library":
			return s.lowerTarget(mir.KindStaticLibrary, call)
		case "custom_target":
			return lowerCustomTarget(call)
		case "declare_dependency":
			return lowerDeclareDependency(call)
		}

		return nil, nil
	}
}

func (s *SemanticState) lowerFiles(call *mir.FunctionCall) (*mir.Instruction, error) {
	elems := make([]*mir.Instruction, 0, len(call.Pos))
	for _, p := range call.Pos {
		if p.Kind != mir.KindString {
			return nil, report.NewInvalidArguments("files", nil, "files() arguments must be strings")
		}
		elems = append(elems, &mir.Instruction{
			Kind: mir.KindFile,
			File: &mir.FileValue{
				Name:       p.Str,
				Subdir:     call.SourceDir,
				Built:      false,
				SourceRoot: s.State.SourceRoot,
				BuildRoot:  s.State.BuildRoot,
			},
		})
	}
	return mir.NewArray(elems), nil
}

func lowerMessage(level mir.MessageLevel, call *mir.FunctionCall) *mir.Instruction {
	parts := make([]string, 0, len(call.Pos))
	for _, p := range call.Pos {
		if p.Kind == mir.KindString {
			parts = append(parts, p.Str)
		}
	}
	return mir.NewMessage(level, strings.Join(parts, " "))
}

func lowerAssert(call *mir.FunctionCall) (*mir.Instruction, error) {
	if len(call.Pos) < 1 || call.Pos[0].Kind != mir.KindBoolean {
		return nil, report.NewInvalidArguments("assert", nil, "assert() requires a boolean condition")
	}
	if call.Pos[0].Bool {
		return mir.NewEmpty(), nil
	}
	msg := ""
	if len(call.Pos) > 1 && call.Pos[1].Kind == mir.KindString {
		msg = call.Pos[1].Str
	}
	return mir.NewMessage(mir.MessageError, "Assertion failed: "+msg), nil
}

// lowerTarget implements executable()/static_library()'s shared shape:
// name, variadic File sources, <lang>_args: String|Array<String> keywords,
// link_with: Target|Array<Target>. ArgsByLang starts from whatever
// combine_add_arguments has merged into the persistent global/project
// accumulators so far, then layers the target's own inline <lang>_args: on
// top — the keyword list is target-specific and takes precedence, but never
// replaces the project- and global-wide flags (spec.md's combine_add_arguments:
// "so target creation sees the full argument set").
func (s *SemanticState) lowerTarget(kind mir.Kind, call *mir.FunctionCall) (*mir.Instruction, error) {
	a := args(call.Name, call)

	name, ok, err := a.posString(0)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, report.NewInvalidArguments(call.Name, nil, "%s() requires a name", call.Name)
	}

	sources, ok := a.posFilesFrom(1)
	if !ok {
		return nil, report.NewInvalidArguments(call.Name, nil, "%s() sources must be files", call.Name)
	}

	argsByLang := map[string][]string{}
	for lang, flags := range s.State.GlobalArgs {
		argsByLang[lang] = append(argsByLang[lang], flags...)
	}
	for lang, flags := range s.State.ProjectArgs {
		argsByLang[lang] = append(argsByLang[lang], flags...)
	}
	for key := range call.Kw {
		if key == "link_with" || !strings.HasSuffix(key, "_args") {
			continue
		}
		lang := strings.TrimSuffix(key, "_args")
		vals, _, err := a.kwStringArray(key)
		if err != nil {
			return nil, err
		}
		argsByLang[lang] = append(argsByLang[lang], vals...)
	}

	var links []*mir.Instruction
	raw, present, err := a.kwArray("link_with")
	if err != nil {
		return nil, err
	}
	if present {
		for _, l := range raw {
			if l.Kind != mir.KindExecutable && l.Kind != mir.KindStaticLibrary {
				return nil, report.NewInvalidArguments(call.Name, nil, "link_with: expected a target")
			}
			links = append(links, l)
		}
	}

	target := &mir.TargetValue{
		Name:        name,
		Sources:     sources,
		Machine:     mir.MachineHost,
		Subdir:      call.SourceDir,
		ArgsByLang:  argsByLang,
		StaticLinks: links,
	}

	instr := &mir.Instruction{Kind: kind}
	if kind == mir.KindExecutable {
		instr.Executable = target
	} else {
		instr.StaticLibrary = target
	}
	return instr, nil
}

func lowerCustomTarget(call *mir.FunctionCall) (*mir.Instruction, error) {
	a := args("custom_target", call)

	name, ok, err := a.posString(0)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, report.NewInvalidArguments("custom_target", nil, "custom_target() requires a name")
	}

	inputs, _, err := a.kwArray("input")
	if err != nil {
		return nil, err
	}
	outputs, _, err := a.kwStringArray("output")
	if err != nil {
		return nil, err
	}
	command, _, err := a.kwArray("command")
	if err != nil {
		return nil, err
	}

	return &mir.Instruction{
		Kind: mir.KindCustomTarget,
		CustomTarget: &mir.CustomTargetValue{
			Name:    name,
			Inputs:  inputs,
			Outputs: outputs,
			Command: command,
			Subdir:  call.SourceDir,
		},
	}, nil
}

// lowerDeclareDependency implements declare_dependency's recursive
// flattening: a nested Dependency passed under dependencies: has its own
// Args folded into the outer Dependency's Args.
func lowerDeclareDependency(call *mir.FunctionCall) (*mir.Instruction, error) {
	a := args("declare_dependency", call)

	compileArgs, _, err := a.kwStringArray("compile_args")
	if err != nil {
		return nil, err
	}

	deps, _, err := a.kwArray("dependencies")
	if err != nil {
		return nil, err
	}
	for _, d := range deps {
		if d.Kind != mir.KindDependency {
			return nil, report.NewInvalidArguments("declare_dependency", nil, "dependencies: expects Dependency values")
		}
		compileArgs = append(compileArgs, d.Dependency.Args...)
	}

	if incl, present, err := a.kwArray("include_directories"); err != nil {
		return nil, err
	} else if present {
		for _, inc := range incl {
			if inc.Kind != mir.KindIncludeDirectories {
				return nil, report.NewInvalidArguments("declare_dependency", nil, "include_directories: expects IncludeDirectories values")
			}
		}
	}

	return &mir.Instruction{
		Kind: mir.KindDependency,
		Dependency: &mir.DependencyValue{
			Found: true,
			Args:  compileArgs,
			Type:  "declared",
		},
	}, nil
}

// InsertCompilers implements §4.6's insert_compilers:
// meson.get_compiler(lang, native=false) → Compiler{toolchain_table[lang][
// native?BUILD:HOST]}. "meson" is the one reserved built-in holder this
// pipeline recognizes by identifier name, per §9's tag-match dispatch.
func (s *SemanticState) InsertCompilers() mir.InstrPass {
	return func(instr *mir.Instruction) (*mir.Instruction, error) {
		if instr.Kind != mir.KindFunctionCall || instr.Call == nil {
			return nil, nil
		}
		call := instr.Call
		if call.Name != "get_compiler" || !isBuiltinHolder(call.Holder, "meson") {
			return nil, nil
		}

		a := args("meson.get_compiler", call)
		if !a.allResolved() {
			return nil, nil
		}

		lang, ok, err := a.posString(0)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, report.NewInvalidArguments("meson.get_compiler", nil, "get_compiler() requires a language name")
		}

		native := false
		if v, present := a.kw("native"); present {
			if v.Kind != mir.KindBoolean {
				return nil, report.NewInvalidArguments("meson.get_compiler", nil, "native: must be a boolean")
			}
			native = v.Bool
		}

		machine := mir.MachineHost
		if native {
			machine = mir.MachineBuild
		}

		tc, found := s.State.Toolchains.Get(mir.Language(lang), machine)
		if !found {
			return nil, report.NewMesonException(nil, "No compiler for language")
		}

		return &mir.Instruction{Kind: mir.KindCompiler, Compiler: &mir.CompilerValue{Toolchain: tc}}, nil
	}
}

func isBuiltinHolder(holder *mir.Instruction, name string) bool {
	return holder != nil && holder.Kind == mir.KindIdentifier && holder.IdentName == name
}

// LowerCompilerMethods implements §4.6's lower_compiler_methods:
// compiler.get_id() → String(toolchain.compiler.id()). An extensible
// method-dispatch point — unknown methods simply yield no replacement.
func LowerCompilerMethods() mir.InstrPass {
	return func(instr *mir.Instruction) (*mir.Instruction, error) {
		if instr.Kind != mir.KindFunctionCall || instr.Call == nil {
			return nil, nil
		}
		call := instr.Call
		if call.Holder == nil || call.Holder.Kind != mir.KindCompiler {
			return nil, nil
		}
		switch call.Name {
		case "get_id":
			return mir.NewString(call.Holder.Compiler.Toolchain.Compiler.ID), nil
		default:
			return nil, nil
		}
	}
}

// LowerStringObjects implements §4.6's lower_string_objects:
// String.version_compare(cmp) → Boolean.
func LowerStringObjects() mir.InstrPass {
	return func(instr *mir.Instruction) (*mir.Instruction, error) {
		if instr.Kind != mir.KindFunctionCall || instr.Call == nil {
			return nil, nil
		}
		call := instr.Call
		if call.Name != "version_compare" || call.Holder == nil || call.Holder.Kind != mir.KindString {
			return nil, nil
		}
		if len(call.Pos) != 1 || call.Pos[0].Kind != mir.KindString {
			return nil, report.NewInvalidArguments("version_compare", nil, "version_compare() requires a string comparison expression")
		}

		result, ok := mir.VersionCompare(call.Holder.Str, call.Pos[0].Str)
		if !ok {
			return nil, report.NewInvalidArguments("version_compare", nil, "unrecognized comparison operator in %q", call.Pos[0].Str)
		}
		return mir.NewBoolean(result), nil
	}
}

// LowerProgramObjects implements §4.6's lower_program_objects:
// find_program(name) → Program{name, for_machine=HOST, path}, resolved
// through threaded_lowering's worker pool; Program.found() → Boolean. A
// CustomTarget's Command[0] find_program(...) call (left nested there by
// custom_target_program_replacement) is resolved the same way.
func (s *SemanticState) LowerProgramObjects() mir.InstrPass {
	var lower mir.InstrPass
	lower = func(instr *mir.Instruction) (*mir.Instruction, error) {
		if instr.Kind == mir.KindCustomTarget && instr.CustomTarget != nil && len(instr.CustomTarget.Command) > 0 {
			prog, err := lower(instr.CustomTarget.Command[0])
			if prog == nil || err != nil {
				return nil, err
			}
			clone := *instr.CustomTarget
			clone.Command = append([]*mir.Instruction{prog}, clone.Command[1:]...)
			return &mir.Instruction{Kind: mir.KindCustomTarget, CustomTarget: &clone}, nil
		}
		if instr.Kind != mir.KindFunctionCall || instr.Call == nil {
			return nil, nil
		}
		call := instr.Call

		if call.Name == "found" && call.Holder != nil && call.Holder.Kind == mir.KindProgram {
			return mir.NewBoolean(call.Holder.Program.Found), nil
		}

		if call.Name != "find_program" || call.Holder != nil {
			return nil, nil
		}

		a := args("find_program", call)
		if !a.allResolved() {
			return nil, nil
		}
		name, ok, err := a.posString(0)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, report.NewInvalidArguments("find_program", nil, "find_program() requires a program name")
		}

		fingerprint := "find_program:" + name
		if cached, ready := s.Threaded.Get(fingerprint); ready {
			return cached, nil
		}

		locator := s.Locator
		s.Threaded.Dispatch(fingerprint, func() (*mir.Instruction, error) {
			path, found := locator.LookPath(name)
			return &mir.Instruction{
				Kind:    mir.KindProgram,
				Program: &mir.ProgramValue{Name: name, ForMachine: mir.MachineHost, Path: path, Found: found},
			}, nil
		})
		return nil, nil
	}
	return lower
}

// LowerDependencyObjects implements §4.6's lower_dependency_objects:
// Dependency.found() → Boolean; Dependency.version() → String.
func LowerDependencyObjects() mir.InstrPass {
	return func(instr *mir.Instruction) (*mir.Instruction, error) {
		if instr.Kind != mir.KindFunctionCall || instr.Call == nil {
			return nil, nil
		}
		call := instr.Call
		if call.Holder == nil || call.Holder.Kind != mir.KindDependency {
			return nil, nil
		}
		switch call.Name {
		case "found":
			return mir.NewBoolean(call.Holder.Dependency.Found), nil
		case "version":
			return mir.NewString(call.Holder.Dependency.Version), nil
		default:
			return nil, nil
		}
	}
}

// MachineLower implements §4.6's machine_lower: host_machine.*,
// build_machine.*, target_machine.* calls resolve to constants drawn from
// the per-machine Info record.
func (s *SemanticState) MachineLower() mir.InstrPass {
	return func(instr *mir.Instruction) (*mir.Instruction, error) {
		if instr.Kind != mir.KindFunctionCall || instr.Call == nil {
			return nil, nil
		}
		call := instr.Call
		if call.Holder == nil || call.Holder.Kind != mir.KindIdentifier {
			return nil, nil
		}

		var machine mir.Machine
		switch call.Holder.IdentName {
		case "host_machine":
			machine = mir.MachineHost
		case "build_machine":
			machine = mir.MachineBuild
		case "target_machine":
			machine = mir.MachineTarget
		default:
			return nil, nil
		}

		info := s.State.Machines[machine]
		if info == nil {
			return nil, report.NewMesonException(nil, "no machine info recorded for %s", machine.String())
		}

		switch call.Name {
		case "system":
			return mir.NewString(info.System), nil
		case "cpu_family":
			return mir.NewString(info.CPUFamily), nil
		case "cpu":
			return mir.NewString(info.CPU), nil
		case "endian":
			return mir.NewString(info.Endian), nil
		default:
			return nil, nil
		}
	}
}

// CustomTargetProgramReplacement implements §4.6's
// custom_target_program_replacement: if a CustomTarget's Command[0] is
// still a raw String, rewrite it as a find_program(...) call so
// lower_program_objects resolves it uniformly with any other program
// reference. Monotone: fires once per CustomTarget (after resolution,
// Command[0] is a Program, not a String).
func CustomTargetProgramReplacement() mir.InstrPass {
	return func(instr *mir.Instruction) (*mir.Instruction, error) {
		if instr.Kind != mir.KindCustomTarget || instr.CustomTarget == nil {
			return nil, nil
		}
		ct := instr.CustomTarget
		if len(ct.Command) == 0 || ct.Command[0].Kind != mir.KindString {
			return nil, nil
		}

		newCommand := make([]*mir.Instruction, len(ct.Command))
		copy(newCommand, ct.Command)
		newCommand[0] = mir.NewFunctionCall(&mir.FunctionCall{
			Name: "find_program",
			Pos:  []*mir.Instruction{mir.NewString(ct.Command[0].Str)},
		})

		clone := *ct
		clone.Command = newCommand
		return &mir.Instruction{Kind: mir.KindCustomTarget, CustomTarget: &clone}, nil
	}
}

// CombineAddArguments implements §4.6's combine_add_arguments: merge every
// resolved add_project_arguments/add_global_arguments call's per-language
// flag list into the persistent GlobalArgs/ProjectArgs accumulator and
// consume the call (§2's closure invariant — it must not linger as an
// unresolved FunctionCall). Merging into shared state, rather than rewriting
// the call in place, is what makes the effect visible to every target
// creation anywhere in the graph regardless of source order (spec.md:
// "so target creation sees the full argument set"). Must run ahead of
// LowerFreeFunctions's executable()/static_library() handling in the
// semantic_lowering instruction list so a merge lands before the same round
// lowers any target.
func (s *SemanticState) CombineAddArguments() mir.InstrPass {
	return func(instr *mir.Instruction) (*mir.Instruction, error) {
		if !isAddArgumentsCall(instr) {
			return nil, nil
		}
		call := instr.Call
		a := args(call.Name, call)
		if !a.allResolved() {
			return nil, nil
		}

		flags, err := a.posStrings()
		if err != nil {
			return nil, err
		}
		langs, ok, err := a.kwStringArray("language")
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, report.NewInvalidArguments(call.Name, nil, "%s() requires language:", call.Name)
		}

		accumulator := s.State.ProjectArgs
		if call.Name == "add_global_arguments" {
			accumulator = s.State.GlobalArgs
		}
		for _, lang := range langs {
			accumulator[lang] = append(accumulator[lang], flags...)
		}

		return mir.NewEmpty(), nil
	}
}

func isAddArgumentsCall(instr *mir.Instruction) bool {
	return instr.Kind == mir.KindFunctionCall && instr.Call != nil && instr.Call.Holder == nil &&
		(instr.Call.Name == "add_project_arguments" || instr.Call.Name == "add_global_arguments")
}
