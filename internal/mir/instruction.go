package mir

// Kind tags the single variant of an Instruction that is populated.
// Kind.String panics on a value it has no case for; the passes switch on
// the Kinds they handle and leave every other Kind unchanged.
type Kind int

const (
	KindString Kind = iota
	KindBoolean
	KindNumber
	KindIdentifier
	KindArray
	KindDict
	KindFunctionCall
	KindPhi
	KindMessage
	KindFile
	KindCompiler
	KindProgram
	KindDependency
	KindIncludeDirectories
	KindExecutable
	KindStaticLibrary
	KindCustomTarget
	KindJump
	KindBranch
	KindEmpty
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "String"
	case KindBoolean:
		return "Boolean"
	case KindNumber:
		return "Number"
	case KindIdentifier:
		return "Identifier"
	case KindArray:
		return "Array"
	case KindDict:
		return "Dict"
	case KindFunctionCall:
		return "FunctionCall"
	case KindPhi:
		return "Phi"
	case KindMessage:
		return "Message"
	case KindFile:
		return "File"
	case KindCompiler:
		return "Compiler"
	case KindProgram:
		return "Program"
	case KindDependency:
		return "Dependency"
	case KindIncludeDirectories:
		return "IncludeDirectories"
	case KindExecutable:
		return "Executable"
	case KindStaticLibrary:
		return "StaticLibrary"
	case KindCustomTarget:
		return "CustomTarget"
	case KindJump:
		return "Jump"
	case KindBranch:
		return "Branch"
	case KindEmpty:
		return "Empty"
	default:
		panic("mir: unhandled Kind in String()")
	}
}

// MessageLevel distinguishes message/warning/error-raising instructions.
type MessageLevel int

const (
	MessageInfo MessageLevel = iota
	MessageWarn
	MessageError
)

// Machine is one of the three machine roles Meson distinguishes.
type Machine int

const (
	MachineBuild Machine = iota
	MachineHost
	MachineTarget
)

func (m Machine) String() string {
	switch m {
	case MachineBuild:
		return "build"
	case MachineHost:
		return "host"
	case MachineTarget:
		return "target"
	default:
		panic("mir: unhandled Machine")
	}
}

// Instruction is the tagged union ("one-of") described in the data model: a
// single struct with one populated payload field selected by Kind, never an
// interface hierarchy, so every rewriting pass pattern-matches exhaustively.
type Instruction struct {
	Var  Variable
	Kind Kind

	Str  string
	Bool bool
	Num  int64

	IdentName    string
	IdentVersion uint32

	Elems []*Instruction
	Dict  map[string]*Instruction

	Call *FunctionCall

	PhiLeft  uint32
	PhiRight uint32

	MessageLevel MessageLevel
	MessageText  string

	File               *FileValue
	Compiler           *CompilerValue
	Program            *ProgramValue
	Dependency         *DependencyValue
	IncludeDirectories *IncludeDirsValue
	Executable         *TargetValue
	StaticLibrary      *TargetValue
	CustomTarget       *CustomTargetValue

	Jump   *JumpValue
	Branch *BranchValue
}

// FunctionCall is the payload of KindFunctionCall: an unresolved DSL call
// (free function or method, when Holder is non-nil).
type FunctionCall struct {
	Name      string
	Pos       []*Instruction
	Kw        map[string]*Instruction
	Holder    *Instruction
	SourceDir string
}

// FileValue is the payload of KindFile.
type FileValue struct {
	Name       string
	Subdir     string
	Built      bool
	SourceRoot string
	BuildRoot  string
}

// CompilerValue is the payload of KindCompiler.
type CompilerValue struct {
	Toolchain *Toolchain
}

// ProgramValue is the payload of KindProgram.
type ProgramValue struct {
	Name      string
	ForMachine Machine
	Path      string
	Found     bool
}

// DependencyValue is the payload of KindDependency.
type DependencyValue struct {
	Name    string
	Found   bool
	Version string
	Args    []string
	Type    string
}

// IncludeDirsValue is the payload of KindIncludeDirectories.
type IncludeDirsValue struct {
	Dirs     []string
	IsSystem bool
}

// TargetValue is the shared payload shape for KindExecutable and
// KindStaticLibrary (spec.md: "…same shape…").
type TargetValue struct {
	Name        string
	Sources     []*Instruction // File instructions
	Machine     Machine
	Subdir      string
	ArgsByLang  map[string][]string
	StaticLinks []*Instruction // nested Executable/StaticLibrary instructions
}

// CustomTargetValue is the payload of KindCustomTarget.
type CustomTargetValue struct {
	Name    string
	Inputs  []*Instruction
	Outputs []string
	Command []*Instruction
	Subdir  string
}

// JumpValue is the payload of KindJump: an unconditional transfer, or a
// conditional one before branch_pruning has resolved its predicate.
type JumpValue struct {
	Target    *BasicBlock
	Predicate *Instruction // nil once unconditional
}

// BranchValue is the payload of KindBranch: an ordered if/elif/else ladder
// that has not yet been reduced by branch_pruning.
type BranchValue struct {
	Entries []BranchEntry
}

// BranchEntry is one predicate/target pair of a Branch instruction.
type BranchEntry struct {
	Predicate *Instruction
	Target    *BasicBlock
}

// --- constructors -----------------------------------------------------------

func NewString(s string) *Instruction  { return &Instruction{Kind: KindString, Str: s} }
func NewBoolean(b bool) *Instruction   { return &Instruction{Kind: KindBoolean, Bool: b} }
func NewNumber(n int64) *Instruction   { return &Instruction{Kind: KindNumber, Num: n} }
func NewEmpty() *Instruction           { return &Instruction{Kind: KindEmpty} }

func NewIdentifier(name string, version uint32) *Instruction {
	return &Instruction{Kind: KindIdentifier, IdentName: name, IdentVersion: version}
}

func NewArray(elems []*Instruction) *Instruction {
	return &Instruction{Kind: KindArray, Elems: elems}
}

func NewDict(d map[string]*Instruction) *Instruction {
	return &Instruction{Kind: KindDict, Dict: d}
}

func NewFunctionCall(call *FunctionCall) *Instruction {
	return &Instruction{Kind: KindFunctionCall, Call: call}
}

func NewMessage(level MessageLevel, text string) *Instruction {
	return &Instruction{Kind: KindMessage, MessageLevel: level, MessageText: text}
}

// Clone returns a shallow copy of the instruction, preserving its Variable.
// Used by constant propagation to duplicate primitive values at each use
// site instead of sharing one instruction object across blocks.
func (i *Instruction) Clone() *Instruction {
	clone := *i
	return &clone
}

// IsConstant reports whether the instruction is a resolved primitive value
// that passes like constant folding/propagation may duplicate or fold over.
func (i *Instruction) IsConstant() bool {
	switch i.Kind {
	case KindString, KindBoolean, KindNumber:
		return true
	default:
		return false
	}
}

// IsPropagatable reports whether the instruction is safe to duplicate across
// use sites (spec.md §4.5: "strings, numbers, booleans, files, compilers,
// programs, dependencies, include-directories"; function calls are not).
func (i *Instruction) IsPropagatable() bool {
	switch i.Kind {
	case KindString, KindBoolean, KindNumber, KindFile, KindCompiler,
		KindProgram, KindDependency, KindIncludeDirectories:
		return true
	default:
		return false
	}
}
