// Package response implements the Response Record: the captured
// status/headers/body of one HTTP exchange, beautified for stable line
// diffing, queryable for substring reflection counts, and comparable
// against a learned baseline.
package response

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/bcfsec/paramhunt/internal/diffing"
	"github.com/bcfsec/paramhunt/internal/headerlist"
)

// RequestSnapshot is the minimal view of the originating request a
// Response Record needs: enough to print the full request/response pair
// and to know which candidate names were sent with which values. A Go
// package cycle would result from response holding a *request.Instance
// directly (request already depends on response to build one), so the
// snapshot is a plain value copied out of the Instance at send time -
// the "holds the Request by value, lifetimes enforced by loop structure"
// model the design notes call for.
type RequestSnapshot struct {
	Method  string
	URL     string
	Path    string
	Body    string
	Headers *headerlist.List

	// PreparedParameters is every candidate (plus the sentinel) mapped to
	// the value it was sent with.
	PreparedParameters map[string]string
	// NonRandomParameters is the subset pinned via "name%=%value" syntax;
	// reflection analysis excludes them (their values may legitimately
	// echo static page content).
	NonRandomParameters map[string]string
}

// Record is one captured HTTP response plus the derived analysis the
// rest of the core needs: reflection counts and a printable form for
// diffing.
type Record struct {
	Code                 uint16
	Headers              *headerlist.List
	Text                 string
	ElapsedMillis        int64
	ReflectedParameters  map[string]int
	AdditionalParameter  string
	Request              RequestSnapshot
}

// New builds a Record from a raw transport response, beautifying the
// body and prepending a sorted header block so that later diffing covers
// headers and body uniformly (spec: "prepending a sorted serialization of
// response headers followed by a blank line").
func New(code uint16, headers *headerlist.List, rawBody string, elapsedMillis int64, additionalParameter string, req RequestSnapshot) *Record {
	r := &Record{
		Code:                code,
		Headers:             headers,
		Text:                rawBody,
		ElapsedMillis:       elapsedMillis,
		ReflectedParameters: map[string]int{},
		AdditionalParameter: additionalParameter,
		Request:             req,
	}
	r.beautify()
	r.prependHeaders()
	return r
}

// Empty produces the synthetic placeholder returned when a transport
// error survives the single retry: status 0, no headers, no body. It
// preserves batch shape so the scan can continue, but must never itself
// produce a finding (callers must not feed it into Compare/reflection
// logic that would report "findings").
func Empty(req RequestSnapshot) *Record {
	return &Record{
		Headers:             headerlist.New(),
		ReflectedParameters: map[string]int{},
		Request:             req,
	}
}

// IsEmpty reports whether this Record is a transport-error placeholder.
func (r *Record) IsEmpty() bool {
	return r.Code == 0 && r.Text == "" && r.Headers.Len() == 0
}

var (
	reJSONBrackets       = regexp.MustCompile(`(\{"|"\}|\[["0-9]|["0-9]\])`)
	reJSONCommaAfterNum  = regexp.MustCompile(`("[\w.-]*"):(\d+),`)
	reJSONCommaAfterBool = regexp.MustCompile(`("[\w.-]*"):(false|null|true),`)
)

// beautify inserts newlines to make single-line bodies diff cleanly. JSON
// (declared by content-type or braces-delimited) gets bracket/comma-aware
// breaks; anything else gets a break after every closing angle bracket.
func (r *Record) beautify() {
	contentType, _ := r.Headers.GetFold("content-type")
	looksJSON := strings.Contains(contentType, "json") ||
		(strings.HasPrefix(r.Text, "{") && strings.HasSuffix(r.Text, "}"))

	if !looksJSON {
		r.Text = strings.ReplaceAll(r.Text, ">", ">\n")
		return
	}

	body := strings.ReplaceAll(r.Text, `\"`, "'")
	body = strings.ReplaceAll(body, `",`, "\",\n")
	body = reJSONBrackets.ReplaceAllString(body, "$1\n")
	body = reJSONCommaAfterNum.ReplaceAllString(body, "$1:$2,\n")
	body = reJSONCommaAfterBool.ReplaceAllString(body, "$1:$2,\n")
	r.Text = body
}

func (r *Record) prependHeaders() {
	var b strings.Builder
	for _, p := range r.Headers.Sorted() {
		b.WriteString(p.Name)
		b.WriteString(": ")
		b.WriteString(p.Value)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	b.WriteString(r.Text)
	r.Text = b.String()
}

// Count reports the number of non-overlapping occurrences of s in the
// lowercased body. Only the haystack is lowercased, not the needle -
// preserved deliberately from the reference implementation (an uppercase
// randomized value would then fail to match its own reflection); fixing
// it would change which parameters get flagged as reflected.
func (r *Record) Count(s string) int {
	return strings.Count(strings.ToLower(r.Text), s)
}

// DeltaFor reports how many more times value appears in this response
// than in baseline - the building block both baseline learning and
// FillReflectedParameters use to decide whether a value echoed back.
func (r *Record) DeltaFor(baseline *Record, value string) int {
	if baseline == nil {
		panic("response: DeltaFor called before a baseline was learned")
	}
	return r.Count(value) - baseline.Count(value)
}

// FillReflectedParameters computes, for every prepared parameter except
// the pinned non-random ones, the delta between this response's
// reflection count and the baseline's count of the same value. Deltas
// that differ from the learned baselineReflectionCount are recorded.
func (r *Record) FillReflectedParameters(baseline *Record, baselineReflectionCount int) {
	for name, value := range r.Request.PreparedParameters {
		if _, pinned := r.Request.NonRandomParameters[name]; pinned {
			continue
		}
		if delta := r.DeltaFor(baseline, value); delta != baselineReflectionCount {
			r.ReflectedParameters[name] = delta
		}
	}
}

// Print renders the response as "HTTP/x <code>\n<headers-and-body-text>",
// the canonical text the diff oracle compares between baseline and
// candidate responses.
func (r *Record) Print() string {
	return "HTTP/x " + strconv.Itoa(int(r.Code)) + " \n" + r.Text
}

// PrintRequest renders the originating request the same way the
// reference implementation's Request::print does, for save-to-disk
// reporting.
func (r *Record) PrintRequest() string {
	var b strings.Builder
	b.WriteString(r.Request.Method)
	b.WriteByte(' ')
	b.WriteString(r.Request.Path)
	b.WriteString(" HTTP/x\n")
	for _, p := range r.Request.Headers.Sorted() {
		b.WriteString(p.Name)
		b.WriteString(": ")
		b.WriteString(p.Value)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	b.WriteString(r.Request.Body)
	return b.String()
}

// PrintAll concatenates the request and the response, matching
// Response::print_all in the reference implementation.
func (r *Record) PrintAll() string {
	return r.PrintRequest() + r.Print()
}

// Compare reports whether the status code differs from the baseline and
// returns the sorted, deduplicated list of diff lines between the two
// Print() outputs. Lines already present in oldDiffs are omitted; a diff
// line that repeats within this comparison (but wasn't in oldDiffs) gets
// a disambiguating " (k)" suffix, k being the lowest integer that makes
// the tagged line unique within diffs.
func (r *Record) Compare(baseline *Record, oldDiffs []string, differ diffing.Differ) (bool, []string, error) {
	if baseline == nil {
		panic("response: Compare called before a baseline was learned")
	}

	isCodeDiff := r.Code != baseline.Code

	rawDiffs, err := differ.Diff(baseline.Print(), r.Print())
	if err != nil {
		return false, nil, err
	}

	old := make(map[string]bool, len(oldDiffs))
	for _, d := range oldDiffs {
		old[d] = true
	}

	seen := map[string]bool{}
	var diffs []string
	for _, d := range rawDiffs {
		if old[d] {
			continue
		}
		if !seen[d] {
			diffs = append(diffs, d)
			seen[d] = true
			continue
		}
		c := 1
		for seen[d+" ("+strconv.Itoa(c)+")"] {
			c++
		}
		tagged := d + " (" + strconv.Itoa(c) + ")"
		diffs = append(diffs, tagged)
		seen[tagged] = true
	}

	sortStrings(diffs)
	return isCodeDiff, diffs, nil
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		j := i
		for j > 0 && s[j] < s[j-1] {
			s[j], s[j-1] = s[j-1], s[j]
			j--
		}
	}
}
