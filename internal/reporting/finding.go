// Package reporting turns confirmed findings into durable output: a
// per-finding file on disk, and an optional live feed over a WebSocket
// for a watching UI.
package reporting

import (
	"context"

	"github.com/google/uuid"
)

// Reason names why a candidate parameter was reported as a finding.
type Reason int

const (
	CodeChange Reason = iota
	TextDiff
	Reflected
	NotReflected
)

func (r Reason) String() string {
	switch r {
	case CodeChange:
		return "code-change"
	case TextDiff:
		return "text-diff"
	case Reflected:
		return "reflected"
	case NotReflected:
		return "not-reflected"
	default:
		return "unknown"
	}
}

// Finding is one confirmed hidden parameter, with enough context to
// reproduce and triage it.
type Finding struct {
	ID       string
	Host     string
	Name     string
	Reason   Reason
	Diffs    []string
	Request  string
	Response string
}

// NewFinding stamps a Finding with a fresh ID.
func NewFinding(host, name string, reason Reason, diffs []string, request, response string) Finding {
	return Finding{
		ID:       uuid.NewString(),
		Host:     host,
		Name:     name,
		Reason:   reason,
		Diffs:    diffs,
		Request:  request,
		Response: response,
	}
}

// Reporter is the output sink: emit {name, reason, diffs,
// response-serialization} for each finding, with an optional raw
// request+response side effect.
type Reporter interface {
	Report(ctx context.Context, f Finding) error
}
