package mir

// Info describes one machine role's identity for machine_lower (host_machine
// / build_machine / target_machine method calls).
type Info struct {
	System     string // "linux", "windows", "darwin", ...
	CPUFamily  string
	CPU        string
	Endian     string
	PointerSize int
}

// PersistentState is the plain record threaded through every pass: source
// and build roots, the project name (set exactly once, by lower_project),
// per-machine Info, and the toolchain table. No ambient singletons — every
// pass that needs it receives it explicitly (§9 "Global state").
type PersistentState struct {
	SourceRoot string
	BuildRoot  string

	// ProjectName is empty until lower_project runs; subsequent calls to
	// lower_project must not overwrite it (set exactly once, §6).
	ProjectName string
	ProjectSet  bool

	Machines map[Machine]*Info

	Toolchains *ToolchainTable

	// GlobalArgs and ProjectArgs accumulate add_global_arguments/
	// add_project_arguments's per-language flag lists as combine_add_arguments
	// merges them in, keyed by language name. Every target lowered after a
	// merge picks up the full set regardless of where in the source the
	// add_*_arguments call appeared (§4.6 combine_add_arguments).
	GlobalArgs  map[string][]string
	ProjectArgs map[string][]string
}

// NewPersistentState constructs the state record for one pipeline run. The
// host==build assumption (§1 Non-goals: no cross-compilation beyond
// host==build) means the BUILD and HOST Info records are identical unless
// the caller overrides TARGET explicitly.
func NewPersistentState(sourceRoot, buildRoot string, host *Info) *PersistentState {
	return &PersistentState{
		SourceRoot: sourceRoot,
		BuildRoot:  buildRoot,
		Machines: map[Machine]*Info{
			MachineBuild:  host,
			MachineHost:   host,
			MachineTarget: host,
		},
		Toolchains:  NewToolchainTable(),
		GlobalArgs:  map[string][]string{},
		ProjectArgs: map[string][]string{},
	}
}

// SetProjectName installs the project name exactly once; a second call is
// an InternalAssertion-class bug in the caller (lower_project guards this
// itself by checking ProjectSet before calling).
func (s *PersistentState) SetProjectName(name string) {
	s.ProjectName = name
	s.ProjectSet = true
}
