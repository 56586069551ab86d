package response

import (
	"testing"

	"github.com/bcfsec/paramhunt/internal/diffing"
	"github.com/bcfsec/paramhunt/internal/headerlist"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBeautifyJSON(t *testing.T) {
	headers := headerlist.New(headerlist.Pair{Name: "Content-Type", Value: "application/json"})
	a := New(200, headers, `{"a":1,"b":true}`, 0, "", RequestSnapshot{Headers: headerlist.New()})
	b := New(200, headers, `{"a":2,"b":true}`, 0, "", RequestSnapshot{Headers: headerlist.New()})

	diffs, err := diffing.NewLineDiffer().Diff(a.Print(), b.Print())
	require.NoError(t, err)
	assert.Len(t, diffs, 2, "beautify must split differing fields onto their own lines for a clean single-line diff")
}

func TestBeautifyHTML(t *testing.T) {
	r := New(200, headerlist.New(), "<html><body>hi</body></html>", 0, "", RequestSnapshot{Headers: headerlist.New()})
	assert.Contains(t, r.Text, ">\n")
}

func TestCountLowercasesHaystackOnly(t *testing.T) {
	r := New(200, headerlist.New(), "Reflected VALUE here and value again", 0, "", RequestSnapshot{Headers: headerlist.New()})
	assert.Equal(t, 2, r.Count("value"))
	assert.Equal(t, 0, r.Count("VALUE"), "needle is not lowercased, preserved from the reference implementation")
}

func TestFillReflectedParametersExcludesNonRandom(t *testing.T) {
	baseline := New(200, headerlist.New(), "base", 0, "", RequestSnapshot{Headers: headerlist.New()})

	req := RequestSnapshot{
		Headers: headerlist.New(),
		PreparedParameters: map[string]string{
			"a":     "zx9q1",
			"admin": "true",
		},
		NonRandomParameters: map[string]string{
			"admin": "true",
		},
	}
	r := New(200, headerlist.New(), "echo zx9q1 zx9q1 and true true true", 0, "sentinel", req)
	r.FillReflectedParameters(baseline, 0)

	_, adminPresent := r.ReflectedParameters["admin"]
	assert.False(t, adminPresent, "pinned non-random parameters must be excluded from reflection analysis")

	delta, ok := r.ReflectedParameters["a"]
	require.True(t, ok)
	assert.Equal(t, 2, delta)
}

func TestCompareDedupesAgainstOldDiffsAndDisambiguatesRepeats(t *testing.T) {
	baseline := New(200, headerlist.New(), "one\ntwo\n", 0, "", RequestSnapshot{Headers: headerlist.New()})
	candidate := New(200, headerlist.New(), "one\ntwo\nthree\nthree\n", 0, "", RequestSnapshot{Headers: headerlist.New()})

	isCodeDiff, diffs, err := candidate.Compare(baseline, nil, diffing.NewLineDiffer())
	require.NoError(t, err)
	assert.False(t, isCodeDiff)
	require.NotEmpty(t, diffs)

	isCodeDiff, diffsAgain, err := candidate.Compare(baseline, diffs, diffing.NewLineDiffer())
	require.NoError(t, err)
	assert.False(t, isCodeDiff)
	assert.Empty(t, diffsAgain, "a response compared against its own prior diffs as old_diffs should yield nothing new")
}

func TestCompareReportsCodeChange(t *testing.T) {
	baseline := New(200, headerlist.New(), "ok", 0, "", RequestSnapshot{Headers: headerlist.New()})
	candidate := New(500, headerlist.New(), "ok", 0, "", RequestSnapshot{Headers: headerlist.New()})

	isCodeDiff, _, err := candidate.Compare(baseline, nil, diffing.NewLineDiffer())
	require.NoError(t, err)
	assert.True(t, isCodeDiff)
}

func TestPossibleParametersFindsNameAttributesAndObjectKeys(t *testing.T) {
	r := New(200, headerlist.New(), `<input name="username"> var csrfToken = 1; {userId: 5}`, 0, "", RequestSnapshot{Headers: headerlist.New()})
	found := r.PossibleParameters()
	assert.Contains(t, found, "username")
	assert.Contains(t, found, "userId")
}

func TestFormParameterNames(t *testing.T) {
	r := New(200, headerlist.New(), `<form><input name="login"><input name="password" type="password"></form>`, 0, "", RequestSnapshot{Headers: headerlist.New()})
	found := r.FormParameterNames()
	assert.ElementsMatch(t, []string{"login", "password"}, found)
}

func TestEmptyResponseIsMarkedEmpty(t *testing.T) {
	r := Empty(RequestSnapshot{Headers: headerlist.New()})
	assert.True(t, r.IsEmpty())
}
