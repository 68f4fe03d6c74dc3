// Command mesonmir drives the whole pipeline end to end: it loads a
// project manifest, parses a build description, translates it to MIR,
// runs the pass pipeline to a fixed point, and emits a Ninja build file.
// Grounded on the teacher's cmd/driver.go + cmd/args.go split: a small
// flag parser builds a driver value, then RunCompiler-style top-level
// function runs each phase and returns an exit code.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/pterm/pterm"

	"mesonmir/internal/config"
	"mesonmir/internal/frontend"
	"mesonmir/internal/hostprobe"
	"mesonmir/internal/mir"
	"mesonmir/internal/mir/passes"
	"mesonmir/internal/ninja"
	"mesonmir/internal/report"
	"mesonmir/internal/translate"
)

// withPhase wraps one compilation phase with a spinner, the way the
// teacher's logging.displayBeginPhase/displayEndPhase bracket CodeGen and
// friends. A failing phase leaves the spinner in its Fail state.
func withPhase(name string, fn func() error) error {
	spinner, _ := pterm.DefaultSpinner.WithText(name + "...").Start()
	if err := fn(); err != nil {
		spinner.Fail(name + " failed")
		return err
	}
	spinner.Success(name)
	return nil
}

func main() {
	os.Exit(run(os.Args[1:]))
}

const usage = `Usage: mesonmir [flags] <project directory>

Flags:
------
-h, --help       Displays usage information (ie. this text).
-ll, --loglevel  Sets the reporter's log-level: silent, error, warn, verbose (default).
`

func run(args []string) int {
	rootPath, logLevel, ok := parseArgs(args)
	if !ok {
		return 1
	}

	reporter := report.NewReporter(logLevel)

	manifest, err := config.Load(rootPath)
	if err != nil {
		reporter.Error(err)
		return 1
	}

	source, buildPath, err := readBuildDescription(manifest)
	if err != nil {
		reporter.Error(err)
		return 1
	}

	parser, err := frontend.NewParser()
	if err != nil {
		reporter.Error(err)
		return 1
	}

	var prog *frontend.Program
	if perr := withPhase("Parsing", func() error {
		p, e := parser.ParseString(buildPath, source)
		prog = p
		return e
	}); perr != nil {
		reporter.Error(perr)
		return 1
	}

	var cfg *mir.CFG
	if terr := withPhase("Translating", func() error {
		c, e := translate.New(manifest.SourceRoot).Translate(prog)
		cfg = c
		return e
	}); terr != nil {
		reporter.Error(terr)
		return 1
	}

	state := mir.NewPersistentState(manifest.SourceRoot, manifest.BuildRoot, hostInfo())

	cache := hostprobe.NewCache(manifest.BuildRoot)
	if err := cache.Load(state.Toolchains); err != nil {
		reporter.Error(err)
		return 1
	}

	if perr := withPhase("Lowering", func() error {
		return runPipeline(cfg, state, reporter)
	}); perr != nil {
		reporter.Error(perr)
		return 1
	}

	if err := cache.Save(state.Toolchains); err != nil {
		reporter.Error(err)
		return 1
	}

	if reporter.AnyErrors() {
		reporter.Summary()
		return 1
	}

	if berr := withPhase("Generating build files", func() error {
		return emitBackend(cfg, manifest.BuildRoot, reporter)
	}); berr != nil {
		reporter.Error(berr)
		reporter.Summary()
		return 1
	}

	reporter.Summary()
	if reporter.AnyErrors() {
		return 1
	}
	return 0
}

// readBuildDescription loads the root build description file next to the
// manifest, the conventional "meson.build" name Meson itself uses.
func readBuildDescription(manifest *config.Manifest) (source, path string, err error) {
	path = filepath.Join(manifest.SourceRoot, "meson.build")
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("reading build description: %w", err)
	}
	return string(data), path, nil
}

// lookPathAdapter satisfies passes.ProgramLocator over the package-level
// hostprobe.LookPath function (find_program's PATH lookup, §4.9).
type lookPathAdapter struct{}

func (lookPathAdapter) LookPath(name string) (string, bool) { return hostprobe.LookPath(name) }

const threadedWorkers = 4

// runPipeline assembles the structural/SSA/dataflow/semantic passes into
// one NamedPass list and runs mir.Pipeline.Run to convergence, draining
// threaded_lowering between outer rounds so a probe still in flight when
// the instruction-rewrite passes stabilize gets one more round once it
// completes (§4.1, §5).
func runPipeline(cfg *mir.CFG, state *mir.PersistentState, reporter *report.Reporter) error {
	ssaState := passes.NewSSAState()
	folding := passes.NewConstantFolding()
	propagation := passes.NewConstantPropagation()
	threaded := passes.NewThreadedLowering(threadedWorkers)
	defer threaded.Close()

	semState := passes.NewSemanticState(state, hostprobe.NewDetector(), lookPathAdapter{}, threaded)

	pipeline := &mir.Pipeline{
		Passes: []mir.NamedPass{
			{Name: "branch_pruning", Pass: passes.BranchPruning},
			{Name: "join_blocks", Pass: passes.JoinBlocks},
			{Name: "delete_unreachable", Pass: passes.DeleteUnreachable},
			{Name: "value_numbering", Pass: ssaState.ValueNumbering()},
			{Name: "phi_insertion", Pass: ssaState.PhiInsertion()},
			{Name: "phi_fixup", Pass: passes.PhiFixup},
			{Name: "constant_folding", Pass: mir.InstructionWalkerAsBlockPass(folding.Pass())},
			{Name: "constant_propagation", Pass: mir.InstructionWalkerAsBlockPass(propagation.Pass())},
			{Name: "semantic_lowering", Pass: mir.InstructionWalkerAsBlockPass(
				passes.Flatten(),
				semState.CombineAddArguments(),
				semState.LowerFreeFunctions(),
				semState.LowerProject(),
				semState.InsertCompilers(),
				passes.LowerCompilerMethods(),
				passes.LowerStringObjects(),
				semState.LowerProgramObjects(),
				passes.LowerDependencyObjects(),
				semState.MachineLower(),
				passes.CustomTargetProgramReplacement(),
			)},
		},
	}

	for {
		_, err := pipeline.Run(cfg)
		if err != nil {
			return err
		}
		if !threaded.Pending() {
			break
		}
		if err := threaded.Drain(); err != nil {
			return err
		}
	}

	reportMessages(cfg, reporter)
	return nil
}

// reportMessages walks the final CFG surfacing every Message instruction
// left standing (delete_unreachable has already discarded anything after
// a terminal error) through the reporter, matching §7's "Message{ERROR}
// is data, not an exception" — the driver, not a pass, decides it fails
// the build.
func reportMessages(cfg *mir.CFG, reporter *report.Reporter) {
	for _, node := range cfg.Nodes {
		for _, instr := range node.Block.Instrs {
			if instr.Kind != mir.KindMessage {
				continue
			}
			switch instr.MessageLevel {
			case mir.MessageError:
				reporter.Error(report.NewMesonException(nil, "%s", instr.MessageText))
			case mir.MessageWarn:
				reporter.Warn(instr.MessageText)
			default:
				reporter.Info(instr.MessageText)
			}
		}
	}
}

// emitBackend walks the final CFG's resolved targets into a Ninja writer
// and writes build.ninja plus the (currently always-empty, since this
// grammar has no test() builtin) test sub-record file next to it.
func emitBackend(cfg *mir.CFG, buildRoot string, reporter *report.Reporter) error {
	writer := ninja.NewWriter(buildRoot)
	for _, node := range cfg.Nodes {
		for _, instr := range node.Block.Instrs {
			if err := writer.Target(instr); err != nil {
				return err
			}
		}
	}

	if err := os.MkdirAll(buildRoot, 0o755); err != nil {
		return err
	}

	ninjaFile, err := os.Create(filepath.Join(buildRoot, "build.ninja"))
	if err != nil {
		return err
	}
	defer ninjaFile.Close()
	if err := writer.WriteTo(ninjaFile); err != nil {
		return err
	}

	testFile, err := os.Create(filepath.Join(buildRoot, "meson-test-run.txt"))
	if err != nil {
		return err
	}
	defer testFile.Close()
	if err := ninja.WriteTestRecords(testFile, nil); err != nil {
		return err
	}

	reporter.Info(fmt.Sprintf("wrote %s", filepath.Join(buildRoot, "build.ninja")))
	return nil
}

// hostInfo describes the machine mesonmir itself runs on, used for all
// three machine roles under the host==build Non-goal (§1).
func hostInfo() *mir.Info {
	return &mir.Info{
		System:      runtime.GOOS,
		CPUFamily:   cpuFamily(runtime.GOARCH),
		CPU:         runtime.GOARCH,
		Endian:      "little",
		PointerSize: pointerSize(),
	}
}

// cpuFamily maps a GOARCH value to Meson's cpu_family() vocabulary,
// mirroring the teacher's wintool/arch_names.go GOARCH lookup tables.
func cpuFamily(goarch string) string {
	switch goarch {
	case "amd64":
		return "x86_64"
	case "386":
		return "x86"
	case "arm64":
		return "aarch64"
	case "arm":
		return "arm"
	default:
		return goarch
	}
}

func pointerSize() int {
	return 32 << (^uintptr(0) >> 63)
}

func parseArgs(args []string) (rootPath string, logLevel report.LogLevel, ok bool) {
	logLevel = report.LogLevelVerbose

	i := 0
	for i < len(args) {
		arg := args[i]
		switch arg {
		case "-h", "--help":
			fmt.Print(usage)
			return "", 0, false
		case "-ll", "--loglevel":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "argument error: --loglevel requires a value")
				return "", 0, false
			}
			switch args[i+1] {
			case "silent":
				logLevel = report.LogLevelSilent
			case "error":
				logLevel = report.LogLevelError
			case "warn":
				logLevel = report.LogLevelWarn
			case "verbose":
				logLevel = report.LogLevelVerbose
			default:
				fmt.Fprintf(os.Stderr, "argument error: invalid log level %q\n", args[i+1])
				return "", 0, false
			}
			i += 2
		default:
			if rootPath != "" {
				fmt.Fprintln(os.Stderr, "argument error: project directory specified multiple times")
				return "", 0, false
			}
			abs, err := filepath.Abs(arg)
			if err != nil {
				fmt.Fprintf(os.Stderr, "argument error: invalid project directory: %v\n", err)
				return "", 0, false
			}
			rootPath = abs
			i++
		}
	}

	if rootPath == "" {
		fmt.Print(usage)
		return "", 0, false
	}

	return rootPath, logLevel, true
}
