// Package discovery implements the scan orchestration loop: baseline
// learning, a stability probe, a bounded-concurrency batched scan with
// bisection down to individual parameter names, an optional
// verification pass, and an optional replay of confirmed findings.
package discovery

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/bcfsec/paramhunt/internal/analyzer"
	"github.com/bcfsec/paramhunt/internal/diffing"
	"github.com/bcfsec/paramhunt/internal/randline"
	"github.com/bcfsec/paramhunt/internal/reporting"
	"github.com/bcfsec/paramhunt/internal/reqtemplate"
	"github.com/bcfsec/paramhunt/internal/request"
	"github.com/bcfsec/paramhunt/internal/response"
	"github.com/bcfsec/paramhunt/internal/transport"
)

// Config carries every tuning and feature knob a run can set, beyond
// the tuning Limits.
type Config struct {
	Limits Limits

	// Verify re-sends every emerging finding alone before reporting it,
	// dropping it if the symptom no longer reproduces.
	Verify bool
	// Strict makes diff-line dedup apply across the whole run (a diff
	// line reported once for one candidate never triggers a second
	// finding for a different candidate); non-strict evaluates every
	// response's diff against the baseline alone, so repeated diff
	// lines across unrelated candidates can each be reported.
	Strict bool
	// ReflectedOnly skips the code/diff bisection path entirely and
	// only reports findings the reflection analyzer confirms.
	ReflectedOnly bool
	// MineBaseline folds Response.PossibleParameters() and
	// FormParameterNames() from the learned baseline into the
	// candidate list before the first batch.
	MineBaseline bool

	// CustomParameters pins specific candidate names to a short list of
	// probe values, rendered through the "name%=%value" syntax, unless
	// DisableCustomParameters is set.
	CustomParameters        map[string][]string
	DisableCustomParameters bool

	// ReplayClient, if set, receives a copy of every confirmed finding
	// after the run (or just the first, if ReplayOnce is set).
	ReplayClient transport.Client
	ReplayOnce   bool
}

// Loop owns one scan run against a single Template.
type Loop struct {
	Template *reqtemplate.Template
	Client   transport.Client
	Config   Config
	Reporter reporting.Reporter
	Wordlist []string

	Log *zap.Logger

	differ diffing.Differ

	mu           sync.Mutex
	seenDiffLine map[string]struct{}

	bodyStable        bool
	reflectionsStable bool
}

// NewLoop builds a Loop ready to Run. log may be nil, in which case a
// no-op logger is used.
func NewLoop(tmpl *reqtemplate.Template, client transport.Client, cfg Config, reporter reporting.Reporter, wordlist []string, log *zap.Logger) *Loop {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Limits == (Limits{}) {
		cfg.Limits = DefaultLimits()
	}
	return &Loop{
		Template:     tmpl,
		Client:       client,
		Config:       cfg,
		Reporter:     reporter,
		Wordlist:     wordlist,
		Log:          log,
		differ:       diffing.NewLineDiffer(),
		seenDiffLine: map[string]struct{}{},
	}
}

// Run executes the full discovery loop and returns every confirmed
// finding, reporting each one once the scan and the optional
// verification pass are done.
func (l *Loop) Run(ctx context.Context) ([]reporting.Finding, error) {
	if err := l.Config.Limits.Validate(); err != nil {
		return nil, err
	}

	if err := l.learnBaseline(ctx); err != nil {
		return nil, err
	}
	l.bodyStable, l.reflectionsStable = l.probeStability(ctx)

	candidates := l.buildCandidates()

	findings, recheck := l.scan(ctx, candidates)
	if len(recheck) > 0 {
		more, _ := l.scan(ctx, recheck)
		findings = append(findings, more...)
	}

	if l.Config.Verify {
		findings = l.verify(ctx, findings)
	}

	for _, f := range findings {
		if err := l.Reporter.Report(ctx, f); err != nil {
			l.Log.Warn("failed to report finding", zap.String("name", f.Name), zap.Error(err))
		}
	}

	l.replay(ctx, findings)

	return findings, nil
}

// learnBaseline sends the zero-parameter request and records it as the
// Template's baseline, then sends a single-sentinel request to measure
// how many times a fresh random value echoes in a generic response.
func (l *Loop) learnBaseline(ctx context.Context) error {
	baseline := request.New(l.Template, nil).Send(ctx, l.Client)
	l.Template.Baseline = baseline

	sentinel := randline.Line(5)
	probe := request.NewWithSentinel(l.Template, nil, sentinel)
	probeRecord := probe.Send(ctx, l.Client)
	sentinelValue := probeRecord.Request.PreparedParameters[sentinel]
	l.Template.BaselineReflectionCount = probeRecord.DeltaFor(baseline, sentinelValue)

	return nil
}

// probeStability sends LearnRequestsCount repeated baseline requests,
// recording whether response code and body length stay constant.
func (l *Loop) probeStability(ctx context.Context) (bodyStable, reflectionsStable bool) {
	bodyStable = true
	reflectionsStable = true

	baseLen := len(l.Template.Baseline.Text)
	baseCode := l.Template.Baseline.Code

	for i := 0; i < l.Config.Limits.LearnRequestsCount; i++ {
		record := request.New(l.Template, nil).Send(ctx, l.Client)
		if record.IsEmpty() {
			continue
		}
		if record.Code != baseCode {
			reflectionsStable = false
		}
		if len(record.Text) != baseLen {
			bodyStable = false
		}
	}
	return bodyStable, reflectionsStable
}

// buildCandidates assembles the full candidate-name list for the first
// scan pass: the wordlist, any pinned custom parameters, and (if
// MineBaseline is set) names mined from the learned baseline response.
func (l *Loop) buildCandidates() []string {
	candidates := append([]string{}, l.Wordlist...)

	if !l.Config.DisableCustomParameters {
		for name, values := range l.Config.CustomParameters {
			for _, v := range values {
				candidates = append(candidates, name+"%=%"+v)
			}
		}
	}

	if l.Config.MineBaseline && l.Template.Baseline != nil {
		candidates = append(candidates, l.Template.Baseline.PossibleParameters()...)
		candidates = append(candidates, l.Template.Baseline.FormParameterNames()...)
	}

	return dedupPreservingOrder(candidates)
}

func dedupPreservingOrder(names []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// scan dispatches candidates in ChunkSize batches, up to Concurrency at
// a time, and returns every finding produced plus the set of names that
// need a later recheck pass.
func (l *Loop) scan(ctx context.Context, candidates []string) ([]reporting.Finding, []string) {
	chunks := chunk(candidates, l.Config.Limits.ChunkSize)

	sem := semaphore.NewWeighted(int64(l.Config.Limits.Concurrency))
	var wg sync.WaitGroup
	var mu sync.Mutex
	var findings []reporting.Finding
	var recheck []string

	for _, names := range chunks {
		names := names
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)

			chunkFindings, chunkRecheck := l.processChunk(ctx, names)

			mu.Lock()
			findings = append(findings, chunkFindings...)
			recheck = append(recheck, chunkRecheck...)
			mu.Unlock()
		}()
	}
	wg.Wait()

	return findings, recheck
}

func chunk(names []string, size int) [][]string {
	if size <= 0 {
		size = len(names)
	}
	var chunks [][]string
	for i := 0; i < len(names); i += size {
		end := i + size
		if end > len(names) {
			end = len(names)
		}
		chunks = append(chunks, names[i:end])
	}
	return chunks
}

// processChunk sends one batch with a fresh sentinel, runs the
// reflection analyzer, and bisects on code/diff anomalies.
func (l *Loop) processChunk(ctx context.Context, names []string) ([]reporting.Finding, []string) {
	if len(names) == 0 {
		return nil, nil
	}

	sentinel := randline.Line(5)
	record := l.send(ctx, names, sentinel)
	if record.IsEmpty() {
		return nil, nil
	}

	record.FillReflectedParameters(l.Template.Baseline, l.Template.BaselineReflectionCount)

	var findings []reporting.Finding
	var recheck []string

	verdict := analyzer.Analyze(record, sentinel, len(names)+1)
	if verdict.Found && l.reflectionsStable {
		findings = append(findings, l.finding(verdict.Name, reporting.Reflected, nil, record))
	}
	if verdict.Recheck || (verdict.Found && !l.reflectionsStable) {
		for name := range record.ReflectedParameters {
			reported := verdict.Found && l.reflectionsStable && name == verdict.Name
			if name != sentinel && !reported {
				recheck = append(recheck, name)
			}
		}
	}

	if !l.Config.ReflectedOnly {
		findings = append(findings, l.bisect(ctx, names, record)...)
	}

	return findings, recheck
}

// bisect decides, from an already-sent batch response, whether the
// batch shows a code or text anomaly; at a single-name leaf it reports
// the finding, otherwise it splits the batch in half and recurses, each
// half sent as its own request.
func (l *Loop) bisect(ctx context.Context, names []string, record *response.Record) []reporting.Finding {
	isCodeDiff, diffs, err := record.Compare(l.Template.Baseline, l.oldDiffs(), l.differ)
	if err != nil {
		l.Log.Warn("diff comparison failed", zap.Error(err))
		return nil
	}
	// When the body proved unstable across the stability probe, a text
	// diff alone is unreliable signal - only a code change still counts.
	if !l.bodyStable {
		diffs = nil
	}

	if !isCodeDiff && len(diffs) == 0 {
		return nil
	}

	if len(names) == 1 {
		reason := reporting.TextDiff
		if isCodeDiff {
			reason = reporting.CodeChange
		}
		if l.Config.Strict {
			l.rememberDiffs(diffs)
		}
		return []reporting.Finding{l.finding(names[0], reason, diffs, record)}
	}

	mid := len(names) / 2
	left, right := names[:mid], names[mid:]

	var findings []reporting.Finding
	for _, half := range [][]string{left, right} {
		sentinel := randline.Line(5)
		halfRecord := l.send(ctx, half, sentinel)
		if halfRecord.IsEmpty() {
			continue
		}
		findings = append(findings, l.bisect(ctx, half, halfRecord)...)
	}
	return findings
}

func (l *Loop) send(ctx context.Context, names []string, sentinel string) *response.Record {
	record := request.NewWithSentinel(l.Template, names, sentinel).Send(ctx, l.Client)
	if record.IsEmpty() {
		l.Log.Warn("transport failed after retry, skipping batch", zap.Int("batch_size", len(names)))
	}
	return record
}

func (l *Loop) oldDiffs() []string {
	if !l.Config.Strict {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.seenDiffLine))
	for d := range l.seenDiffLine {
		out = append(out, d)
	}
	return out
}

func (l *Loop) rememberDiffs(diffs []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, d := range diffs {
		l.seenDiffLine[d] = struct{}{}
	}
}

func (l *Loop) finding(name string, reason reporting.Reason, diffs []string, record *response.Record) reporting.Finding {
	return reporting.NewFinding(l.Template.Host, name, reason, diffs, record.PrintRequest(), record.Print())
}

// verify re-sends each finding alone; findings whose symptom no longer
// reproduces are dropped.
func (l *Loop) verify(ctx context.Context, findings []reporting.Finding) []reporting.Finding {
	var verified []reporting.Finding
	for _, f := range findings {
		sentinel := randline.Line(5)
		record := l.send(ctx, []string{f.Name}, sentinel)
		if record.IsEmpty() {
			continue
		}
		record.FillReflectedParameters(l.Template.Baseline, l.Template.BaselineReflectionCount)

		reproduced := false
		switch f.Reason {
		case reporting.Reflected:
			_, reproduced = record.ReflectedParameters[f.Name]
		default:
			isCodeDiff, diffs, err := record.Compare(l.Template.Baseline, nil, l.differ)
			reproduced = err == nil && (isCodeDiff || len(diffs) > 0)
		}

		if reproduced {
			verified = append(verified, f)
		}
	}
	return verified
}

// replay re-sends each confirmed finding through Config.ReplayClient,
// once per finding unless ReplayOnce restricts the whole run to a
// single replayed request.
func (l *Loop) replay(ctx context.Context, findings []reporting.Finding) {
	if l.Config.ReplayClient == nil {
		return
	}
	for i, f := range findings {
		if l.Config.ReplayOnce && i > 0 {
			return
		}
		request.New(l.Template, []string{f.Name}).Send(ctx, l.Config.ReplayClient)
	}
}
