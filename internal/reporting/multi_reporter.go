package reporting

import "context"

// MultiReporter fans one finding out to every wrapped Reporter,
// collecting (not short-circuiting on) errors.
type MultiReporter struct {
	reporters []Reporter
}

// NewMultiReporter composes reporters into one.
func NewMultiReporter(reporters ...Reporter) *MultiReporter {
	return &MultiReporter{reporters: reporters}
}

func (m *MultiReporter) Report(ctx context.Context, f Finding) error {
	var firstErr error
	for _, r := range m.reporters {
		if err := r.Report(ctx, f); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
