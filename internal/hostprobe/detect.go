// Package hostprobe implements the toolchain-detection collaborator §6
// describes: probing the host PATH for a compiler, running it with
// --version, and classifying the result into a mir.Toolchain. Grounded
// directly on spec.md's "Toolchain collaborator" interface description,
// since the teacher has no analogous probing code of its own.
package hostprobe

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"mesonmir/internal/mir"
)

// candidates lists, per language, the PATH names probed in order. The
// first one found wins.
var candidates = map[mir.Language][]string{
	mir.LangC:   {"cc", "gcc", "clang"},
	mir.LangCPP: {"c++", "g++", "clang++"},
}

// LookPath resolves name to an absolute path on the host PATH, or reports
// not found. This is the single PATH-lookup primitive §4.9 says
// find_program and toolchain detection both go through.
func LookPath(name string) (path string, found bool) {
	p, err := exec.LookPath(name)
	if err != nil {
		return "", false
	}
	return p, true
}

// Detector implements passes.ToolchainDetector by probing the host PATH
// and memoizing results per (Language, Machine) for its lifetime
// (discovery is idempotent per §6).
type Detector struct {
	mu     sync.Mutex
	cached map[detectKey]*mir.Toolchain
}

type detectKey struct {
	lang    mir.Language
	machine mir.Machine
}

func NewDetector() *Detector {
	return &Detector{cached: map[detectKey]*mir.Toolchain{}}
}

func (d *Detector) Detect(lang mir.Language, machine mir.Machine) (*mir.Toolchain, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := detectKey{lang, machine}
	if tc, ok := d.cached[key]; ok {
		return tc, nil
	}

	names, ok := candidates[lang]
	if !ok {
		names = []string{string(lang)}
	}

	var compiler *mir.Compiler
	for _, name := range names {
		path, found := LookPath(name)
		if !found {
			path, found = lookInExtraDirs(name, windowsSDKBinDirs())
		}
		if !found {
			continue
		}
		id, version := probeVersion(path)
		compiler = &mir.Compiler{ID: id, Path: path, Version: version}
		break
	}
	if compiler == nil {
		compiler = &mir.Compiler{ID: "unknown", Path: "", Version: ""}
	}

	tc := &mir.Toolchain{
		Language: lang,
		Machine:  machine,
		Compiler: compiler,
		Linker:   &mir.Linker{ID: compiler.ID, Path: compiler.Path},
		Archiver: &mir.Archiver{ID: "ar", Path: mustLookPath("ar")},
	}

	d.cached[key] = tc
	return tc, nil
}

func mustLookPath(name string) string {
	path, _ := LookPath(name)
	return path
}

// lookInExtraDirs checks a short list of extra directories (the Windows SDK
// bin directories windowsSDKBinDirs resolves via the registry) for name
// before giving up, the way the teacher's wintool builder appends SDK bin
// paths ahead of a plain PATH search.
func lookInExtraDirs(name string, dirs []string) (string, bool) {
	for _, dir := range dirs {
		candidate := filepath.Join(dir, name+".exe")
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}
	}
	return "", false
}

// probeVersion runs `path --version` and classifies the compiler id from
// the banner text.
func probeVersion(path string) (id, version string) {
	out, err := exec.Command(path, "--version").Output()
	if err != nil {
		return "unknown", ""
	}
	text := string(out)
	lower := strings.ToLower(text)

	switch {
	case strings.Contains(lower, "clang"):
		id = "clang"
	case strings.Contains(lower, "gcc") || strings.Contains(lower, "gnu"):
		id = "gnu"
	default:
		id = "unknown"
	}

	if line := strings.SplitN(text, "\n", 2)[0]; line != "" {
		version = extractVersion(line)
	}
	return id, version
}

// extractVersion pulls the first dotted-number token out of a version
// banner line ("cc (GCC) 13.2.0" -> "13.2.0").
func extractVersion(line string) string {
	fields := strings.Fields(line)
	for _, f := range fields {
		if strings.ContainsAny(f, "0123456789") && strings.Contains(f, ".") {
			return strings.Trim(f, "()")
		}
	}
	return ""
}
