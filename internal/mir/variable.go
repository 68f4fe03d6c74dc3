// Package mir implements the Mid-Level IR: an SSA-style control-flow graph
// over a tagged-union instruction set, plus the pass driver and the
// structural, SSA, dataflow, and semantic-lowering passes that reduce it to
// a resolved build graph.
package mir

import "fmt"

// Variable identifies the SSA definition carried by an Instruction. Version 0
// means "unnamed/unset": the instruction is an intermediate value that has
// not been bound to a name.
type Variable struct {
	Name    string
	Version uint32
}

// Less orders variables lexicographically on (Name, Version), matching the
// equality rule in the data model: variable identity is the pair, not just
// the name.
func (v Variable) Less(o Variable) bool {
	if v.Name != o.Name {
		return v.Name < o.Name
	}
	return v.Version < o.Version
}

func (v Variable) IsSet() bool {
	return v.Version != 0
}

func (v Variable) String() string {
	if v.Version == 0 {
		return v.Name
	}
	return fmt.Sprintf("%s.%d", v.Name, v.Version)
}
