package hostprobe

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml"

	"mesonmir/internal/mir"
)

// CacheFileName sits next to the build root, the concrete form of §3's
// "Persistent state ... mutated only by lower_project and by external
// toolchain detection".
const CacheFileName = "toolchains.toml"

type tomlCache struct {
	Toolchains []tomlCacheEntry `toml:"toolchain"`
}

type tomlCacheEntry struct {
	Language     string `toml:"language"`
	Machine      string `toml:"machine"`
	CompilerID   string `toml:"compiler_id"`
	CompilerPath string `toml:"compiler_path"`
	Version      string `toml:"version"`
	LinkerID     string `toml:"linker_id"`
	LinkerPath   string `toml:"linker_path"`
	ArchiverID   string `toml:"archiver_id"`
	ArchiverPath string `toml:"archiver_path"`
}

// Cache persists a ToolchainTable as TOML next to the build root so
// repeated invocations of the pipeline over the same build tree skip
// re-probing the host PATH and re-running every compiler's --version.
type Cache struct {
	path string
}

func NewCache(buildRoot string) *Cache {
	return &Cache{path: filepath.Join(buildRoot, CacheFileName)}
}

// Load populates table with every toolchain recorded in the cache file.
// A missing cache file is not an error — it simply means nothing has been
// detected yet.
func (c *Cache) Load(table *mir.ToolchainTable) error {
	data, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	tc := &tomlCache{}
	if err := toml.Unmarshal(data, tc); err != nil {
		return err
	}

	for _, e := range tc.Toolchains {
		table.Insert(mir.Language(e.Language), machineFromString(e.Machine), &mir.Toolchain{
			Language: mir.Language(e.Language),
			Machine:  machineFromString(e.Machine),
			Compiler: &mir.Compiler{ID: e.CompilerID, Path: e.CompilerPath, Version: e.Version},
			Linker:   &mir.Linker{ID: e.LinkerID, Path: e.LinkerPath},
			Archiver: &mir.Archiver{ID: e.ArchiverID, Path: e.ArchiverPath},
		})
	}
	return nil
}

// Save writes every toolchain currently in table to the cache file,
// creating the build root directory if necessary.
func (c *Cache) Save(table *mir.ToolchainTable) error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return err
	}

	tc := &tomlCache{}
	for _, lang := range table.Languages() {
		for _, machine := range []mir.Machine{mir.MachineBuild, mir.MachineHost, mir.MachineTarget} {
			t, ok := table.Get(lang, machine)
			if !ok {
				continue
			}
			tc.Toolchains = append(tc.Toolchains, tomlCacheEntry{
				Language:     string(lang),
				Machine:      machine.String(),
				CompilerID:   t.Compiler.ID,
				CompilerPath: t.Compiler.Path,
				Version:      t.Compiler.Version,
				LinkerID:     t.Linker.ID,
				LinkerPath:   t.Linker.Path,
				ArchiverID:   t.Archiver.ID,
				ArchiverPath: t.Archiver.Path,
			})
		}
	}

	data, err := toml.Marshal(tc)
	if err != nil {
		return err
	}
	return os.WriteFile(c.path, data, 0o644)
}

func machineFromString(s string) mir.Machine {
	switch s {
	case "build":
		return mir.MachineBuild
	case "target":
		return mir.MachineTarget
	default:
		return mir.MachineHost
	}
}
