// Package diffing specifies the line-diff oracle the response record
// consumes. The core never implements a diff algorithm itself; it asks a
// Differ for the list of lines that differ between two texts.
package diffing

import "github.com/pmezard/go-difflib/difflib"

// Differ returns the lines that differ between a and b. Each returned
// line carries a marker identifying which side it came from, matching the
// external-interface contract in the spec ("list of differing lines, with
// markers identifying side").
type Differ interface {
	Diff(a, b string) ([]string, error)
}

// LineDiffer implements Differ with github.com/pmezard/go-difflib, the
// same line-diff library already present (indirectly, via testify) in the
// retrieval pack.
type LineDiffer struct{}

// NewLineDiffer constructs the default Differ.
func NewLineDiffer() *LineDiffer {
	return &LineDiffer{}
}

// Diff reports every line present in a but not b ("-" prefix) or present
// in b but not a ("+" prefix), in the order go-difflib's opcode stream
// produces them.
func (LineDiffer) Diff(a, b string) ([]string, error) {
	matcher := difflib.NewMatcher(splitLines(a), splitLines(b))

	var out []string
	for _, op := range matcher.GetOpCodes() {
		switch op.Tag {
		case 'd': // lines only in a
			out = append(out, prefixed("-", matcher.A[op.I1:op.I2])...)
		case 'i': // lines only in b
			out = append(out, prefixed("+", matcher.B[op.J1:op.J2])...)
		case 'r': // replaced: both sides contribute distinct lines
			out = append(out, prefixed("-", matcher.A[op.I1:op.I2])...)
			out = append(out, prefixed("+", matcher.B[op.J1:op.J2])...)
		}
	}
	return out, nil
}

func prefixed(marker string, lines []string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = marker + l
	}
	return out
}

func splitLines(s string) []string {
	return difflib.SplitLines(s)
}
