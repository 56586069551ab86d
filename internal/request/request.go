// Package request builds one concrete HTTP request out of a
// *reqtemplate.Template and a chosen batch of candidate parameter names,
// then sends it and turns the result into a *response.Record.
package request

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/bcfsec/paramhunt/internal/headerlist"
	"github.com/bcfsec/paramhunt/internal/randline"
	"github.com/bcfsec/paramhunt/internal/reqtemplate"
	"github.com/bcfsec/paramhunt/internal/response"
	"github.com/bcfsec/paramhunt/internal/transport"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// retryDelay is how long Send waits before retrying once after a
// transport error, matching the reference implementation's fixed
// 10-second backoff.
const retryDelay = 10 * time.Second

// fragment is the percent-encoding set applied to the rendered query when
// Template.Encode is set: controls plus the characters that would break
// out of the surrounding syntax.
var fragment = map[byte]bool{
	' ': true, '"': true, '<': true, '>': true, '`': true,
	'&': true, '#': true, ';': true, '/': true, '=': true, '%': true,
}

// Instance is one materialized request built against a shared Template.
// It is owned by the task that sends it; the Template outlives every
// Instance derived from it.
type Instance struct {
	Template   *reqtemplate.Template
	Parameters []string
	// Sentinel, if non-empty, is the additional random parameter name
	// injected alongside Parameters purely so the reflection analyzer has
	// something to compare asymmetric reflection against. An empty
	// Sentinel means none is injected at all - intentional, not a gap.
	Sentinel string

	prepared            bool
	path                string
	body                string
	headers             *headerlist.List
	preparedParameters  map[string]string
	nonRandomParameters map[string]string
}

// New builds an Instance carrying the given candidate names with no
// sentinel.
func New(t *reqtemplate.Template, parameters []string) *Instance {
	return &Instance{Template: t, Parameters: parameters}
}

// NewWithSentinel builds an Instance carrying the given candidate names
// plus one additional random sentinel name, used during the actual scan
// so the reflection analyzer can detect asymmetric reflection.
func NewWithSentinel(t *reqtemplate.Template, parameters []string, sentinel string) *Instance {
	return &Instance{Template: t, Parameters: parameters, Sentinel: sentinel}
}

// NewRandom builds an Instance carrying max freshly generated random
// names and no sentinel: a request shaped like a real scan batch without
// named candidates.
func NewRandom(t *reqtemplate.Template, max int) *Instance {
	names := make([]string, max)
	for i := range names {
		names[i] = randline.Line(5)
	}
	return New(t, names)
}

// Prepare materializes the request: splits "name%=%value" pins from
// random candidates, samples independent random values for every
// {{random}} occurrence and every non-pinned candidate, renders the
// query, and splices it into the declared injection site. Idempotent -
// calling it twice is a no-op.
func (r *Instance) Prepare() {
	if r.prepared {
		return
	}
	r.prepared = true

	r.nonRandomParameters = map[string]string{}
	var randomNames []string
	for _, p := range r.Parameters {
		if name, value, pinned := splitPinned(p); pinned {
			r.nonRandomParameters[name] = value
		} else if p != "" {
			randomNames = append(randomNames, p)
		}
	}
	if r.Sentinel != "" {
		randomNames = append(randomNames, r.Sentinel)
	}

	r.preparedParameters = map[string]string{}
	for _, name := range randomNames {
		r.preparedParameters[name] = randline.Line(5)
	}
	for name, value := range r.nonRandomParameters {
		r.preparedParameters[name] = value
	}

	r.headers = r.Template.Headers.Clone()
	if r.Template.InjectionPlace != reqtemplate.HeaderValue {
		r.headers = replaceRandomInHeaders(r.headers)
	}

	r.path = replaceRandom(r.Template.Path)
	r.body = replaceRandom(r.Template.Body)

	switch r.Template.InjectionPlace {
	case reqtemplate.Path:
		r.path = strings.Replace(r.path, "%s", r.makeQuery(), 1)
	case reqtemplate.Body:
		r.body = strings.Replace(r.body, "%s", r.makeQuery(), 1)
		if !r.headers.HasFold("Content-Type") {
			if r.Template.IsJSON {
				r.headers.Add("Content-Type", "application/json")
			} else {
				r.headers.Add("Content-Type", "application/x-www-form-urlencoded")
			}
		}
	case reqtemplate.HeaderValue:
		query := r.makeQuery()
		rendered := headerlist.New()
		for _, p := range r.Template.Headers.Pairs() {
			v := replaceRandom(p.Value)
			v = strings.Replace(v, "%s", query, 1)
			rendered.Add(p.Name, v)
		}
		r.headers = rendered
	case reqtemplate.Headers:
		for _, name := range r.Parameters {
			value, ok := r.preparedParameters[name]
			if !ok {
				value = randline.Line(5)
			}
			r.headers.Add(name, value)
		}
	}

	r.headers = withUserAgent(r.headers)
}

func withUserAgent(h *headerlist.List) *headerlist.List {
	out := headerlist.New(headerlist.Pair{Name: "User-Agent", Value: userAgent})
	for _, p := range h.Pairs() {
		out.Add(p.Name, p.Value)
	}
	return out
}

func replaceRandomInHeaders(h *headerlist.List) *headerlist.List {
	out := headerlist.New()
	for _, p := range h.Pairs() {
		out.Add(p.Name, replaceRandom(p.Value))
	}
	return out
}

// replaceRandom substitutes each {{random}} occurrence in s with its own
// freshly sampled value.
func replaceRandom(s string) string {
	for strings.Contains(s, "{{random}}") {
		s = strings.Replace(s, "{{random}}", randline.Line(5), 1)
	}
	return s
}

// splitPinned recognizes the "name%=%value" injection syntax: the
// candidate's value is pinned rather than randomized, which also
// excludes it from reflection-anomaly counting.
func splitPinned(raw string) (name, value string, pinned bool) {
	idx := strings.Index(raw, "%=%")
	if idx < 0 {
		return raw, "", false
	}
	return raw[:idx], raw[idx+len("%=%"):], true
}

// makeQuery renders every prepared parameter through the Template's
// ParamTemplate, joins with Joiner, and percent-encodes the result if
// Template.Encode is set.
func (r *Instance) makeQuery() string {
	parts := make([]string, 0, len(r.preparedParameters))
	for k, v := range r.preparedParameters {
		rendered := strings.ReplaceAll(r.Template.ParamTemplate, "{k}", k)
		rendered = strings.ReplaceAll(rendered, "{v}", v)
		parts = append(parts, rendered)
	}
	query := strings.Join(parts, r.Template.Joiner)
	if r.Template.Encode {
		return percentEncode(query)
	}
	return query
}

func percentEncode(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 0x20 || c == 0x7f || fragment[c] {
			b.WriteByte('%')
			if c < 0x10 {
				b.WriteByte('0')
			}
			b.WriteString(strings.ToUpper(strconv.FormatUint(uint64(c), 16)))
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// URL reconstructs this instance's absolute URL from the Template plus
// its materialized path.
func (r *Instance) URL() string {
	return r.Template.Scheme + "://" + r.Template.Host + ":" + strconv.Itoa(r.Template.Port) + r.path
}

// Send issues the prepared request through client, sleeping the
// Template's configured delay first. On a transport error it sleeps
// retryDelay and tries exactly once more; a second failure yields
// response.Empty() rather than an error, so the discovery loop can treat
// an unreachable target as "no reflection" instead of aborting the scan.
func (r *Instance) Send(ctx context.Context, client transport.Client) *response.Record {
	r.Prepare()

	if r.Template.Delay > 0 {
		if !sleep(ctx, r.Template.Delay) {
			return response.Empty(r.snapshot())
		}
	}

	raw, err := r.doSend(ctx, client)
	if err != nil {
		if !sleep(ctx, retryDelay) {
			return response.Empty(r.snapshot())
		}
		raw, err = r.doSend(ctx, client)
		if err != nil {
			return response.Empty(r.snapshot())
		}
	}

	return response.New(raw.Code, raw.Headers, string(raw.Body), raw.Elapsed.Milliseconds(), r.additionalParameterValue(), r.snapshot())
}

func (r *Instance) doSend(ctx context.Context, client transport.Client) (transport.RawResponse, error) {
	return client.Do(ctx, transport.RawRequest{
		Method:  r.Template.Method,
		URL:     r.URL(),
		Headers: r.headers,
		Body:    []byte(r.body),
	})
}

// additionalParameterValue reports the random value assigned to the
// sentinel parameter, if one was injected, for display purposes.
func (r *Instance) additionalParameterValue() string {
	if r.Sentinel == "" {
		return ""
	}
	return r.preparedParameters[r.Sentinel]
}

func (r *Instance) snapshot() response.RequestSnapshot {
	return response.RequestSnapshot{
		Method:              r.Template.Method,
		URL:                 r.URL(),
		Path:                r.path,
		Body:                r.body,
		Headers:             r.headers,
		PreparedParameters:  r.preparedParameters,
		NonRandomParameters: r.nonRandomParameters,
	}
}

// sleep waits for d or returns false early if ctx is cancelled first.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
