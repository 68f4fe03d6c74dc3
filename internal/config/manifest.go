// Package config loads the project manifest and the on-disk toolchain
// cache, grounded on the teacher's mods.LoadModule (TOML module file +
// profile selection) adapted to a Meson project manifest instead of a
// Chai module/profile file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml"
)

// ManifestFileName is the project manifest's fixed filename, sitting next
// to the top-level build description the way chai.mod sits next to a Chai
// module root.
const ManifestFileName = "mesonmir.toml"

// tomlManifest is the manifest as it is encoded in TOML.
type tomlManifest struct {
	Project *tomlProject `toml:"project"`
}

type tomlProject struct {
	Name       string   `toml:"name"`
	Languages  []string `toml:"languages,omitempty"`
	SourceRoot string   `toml:"source-root,omitempty"`
	BuildRoot  string   `toml:"build-root,omitempty"`
}

// Manifest is the validated, in-memory project manifest.
type Manifest struct {
	Name       string
	Languages  []string
	SourceRoot string
	BuildRoot  string
}

// Load reads and validates the manifest at dir/mesonmir.toml, mirroring
// LoadModule's open-unmarshal-validate sequence.
func Load(dir string) (*Manifest, error) {
	f, err := os.Open(filepath.Join(dir, ManifestFileName))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tm := &tomlManifest{}
	if err := toml.NewDecoder(f).Decode(tm); err != nil {
		return nil, fmt.Errorf("config: malformed manifest: %w", err)
	}

	if err := validate(tm); err != nil {
		return nil, err
	}

	p := tm.Project
	sourceRoot := p.SourceRoot
	if sourceRoot == "" {
		sourceRoot = dir
	}
	buildRoot := p.BuildRoot
	if buildRoot == "" {
		buildRoot = filepath.Join(dir, "build")
	}

	sourceRoot, err = filepath.Abs(sourceRoot)
	if err != nil {
		return nil, err
	}
	buildRoot, err = filepath.Abs(buildRoot)
	if err != nil {
		return nil, err
	}

	return &Manifest{
		Name:       p.Name,
		Languages:  p.Languages,
		SourceRoot: sourceRoot,
		BuildRoot:  buildRoot,
	}, nil
}

func validate(tm *tomlManifest) error {
	if tm.Project == nil {
		return fmt.Errorf("config: manifest is missing a [project] table")
	}
	if tm.Project.Name == "" {
		return fmt.Errorf("config: manifest [project] is missing a name")
	}
	return nil
}
