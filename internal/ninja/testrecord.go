package ninja

import (
	"fmt"
	"io"
)

// Test is one test sub-record of the illustrative serialization format
// spec.md §6 gives for the backend boundary: a named test bound to the
// executable path that runs it.
type Test struct {
	Name string
	Exe  string
}

// WriteTestRecords serializes tests exactly per spec.md §6: a
// "SERIAL_VERSION:0" header followed by zero or more BEGIN_TEST/END_TEST
// blocks, each carrying the test's name and executable path.
func WriteTestRecords(out io.Writer, tests []Test) error {
	if _, err := fmt.Fprint(out, "SERIAL_VERSION:0\n"); err != nil {
		return err
	}
	for _, t := range tests {
		if _, err := fmt.Fprintf(out, "BEGIN_TEST\n  name:%s\n  exe:%s\nEND_TEST\n", t.Name, t.Exe); err != nil {
			return err
		}
	}
	return nil
}
