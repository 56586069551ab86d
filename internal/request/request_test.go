package request

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bcfsec/paramhunt/internal/headerlist"
	"github.com/bcfsec/paramhunt/internal/reqtemplate"
	"github.com/bcfsec/paramhunt/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTemplate(t *testing.T, place reqtemplate.InjectionPlace) *reqtemplate.Template {
	t.Helper()
	tmpl, err := reqtemplate.New("GET", "https://example.com/path", reqtemplate.Options{
		InjectionPlace: place,
	})
	require.NoError(t, err)
	return tmpl
}

func TestPrepareIsIdempotent(t *testing.T) {
	tmpl := mustTemplate(t, reqtemplate.Path)
	inst := New(tmpl, []string{"a", "b"})

	inst.Prepare()
	first := inst.URL()
	firstParams := map[string]string{}
	for k, v := range inst.preparedParameters {
		firstParams[k] = v
	}

	inst.Prepare()
	assert.Equal(t, first, inst.URL())
	assert.Equal(t, firstParams, inst.preparedParameters)
}

func TestPrepareSplitsPinnedValues(t *testing.T) {
	tmpl := mustTemplate(t, reqtemplate.Path)
	inst := New(tmpl, []string{"admin%=%true", "other"})
	inst.Prepare()

	assert.Equal(t, "true", inst.preparedParameters["admin"])
	assert.Equal(t, "true", inst.nonRandomParameters["admin"])
	assert.NotEmpty(t, inst.preparedParameters["other"])
	_, isPinned := inst.nonRandomParameters["other"]
	assert.False(t, isPinned)
}

func TestPrepareWithEmptySentinelInjectsNothingExtra(t *testing.T) {
	tmpl := mustTemplate(t, reqtemplate.Path)
	inst := New(tmpl, []string{"a"})
	inst.Prepare()

	assert.Len(t, inst.preparedParameters, 1)
}

func TestPrepareWithSentinelAddsExtraRandomParameter(t *testing.T) {
	tmpl := mustTemplate(t, reqtemplate.Path)
	inst := NewWithSentinel(tmpl, []string{"a"}, "sentinel123")
	inst.Prepare()

	assert.Len(t, inst.preparedParameters, 2)
	assert.NotEmpty(t, inst.preparedParameters["sentinel123"])
}

func TestPrepareHeadersInjectionAddsOneHeaderPerCandidate(t *testing.T) {
	tmpl := mustTemplate(t, reqtemplate.Headers)
	inst := New(tmpl, []string{"x-candidate-one", "x-candidate-two"})
	inst.Prepare()

	assert.True(t, inst.headers.Has("x-candidate-one"))
	assert.True(t, inst.headers.Has("x-candidate-two"))
}

func TestPrepareBodyInjectionAddsContentType(t *testing.T) {
	tmpl, err := reqtemplate.New("POST", "https://example.com/", reqtemplate.Options{
		InjectionPlace: reqtemplate.Body,
		DataType:       reqtemplate.Json,
	})
	require.NoError(t, err)

	inst := New(tmpl, []string{"a"})
	inst.Prepare()

	ct, ok := inst.headers.GetFold("Content-Type")
	require.True(t, ok)
	assert.Equal(t, "application/json", ct)
	assert.True(t, strings.Contains(inst.body, "\"a\""))
}

func TestPrepareEncodesReservedCharacters(t *testing.T) {
	tmpl, err := reqtemplate.New("GET", "https://example.com/", reqtemplate.Options{
		InjectionPlace: reqtemplate.Path,
		Encode:         true,
	})
	require.NoError(t, err)

	inst := New(tmpl, []string{"a%=%b=c"})
	inst.Prepare()

	assert.Contains(t, inst.path, "%3D")
	assert.NotContains(t, inst.path, "a=b=c")
}

func TestSendRetriesOnceAfterTransportError(t *testing.T) {
	tmpl := mustTemplate(t, reqtemplate.Path)
	inst := New(tmpl, []string{"a"})

	fake := &transport.Fake{
		Err: errors.New("connection reset"),
		Responses: []transport.RawResponse{
			{Code: 200, Headers: headerlist.New(), Body: []byte("ok")},
		},
	}
	record := inst.Send(context.Background(), fake)

	assert.False(t, record.IsEmpty())
	assert.Equal(t, uint16(200), record.Code)
	assert.Len(t, fake.Requests, 2, "first attempt must fail and be retried exactly once")
}

// alwaysFails is a transport.Client that fails every call, used to exercise
// the "both the original attempt and its single retry fail" path.
type alwaysFails struct{ calls int }

func (a *alwaysFails) Do(_ context.Context, _ transport.RawRequest) (transport.RawResponse, error) {
	a.calls++
	return transport.RawResponse{}, errors.New("connection reset")
}

func TestSendEmptyAfterRetryAlsoFails(t *testing.T) {
	tmpl := mustTemplate(t, reqtemplate.Path)
	inst := New(tmpl, []string{"a"})

	client := &alwaysFails{}
	record := inst.Send(context.Background(), client)

	assert.True(t, record.IsEmpty())
	assert.Equal(t, 2, client.calls)
}

func TestSendReturnsResponseOnSuccess(t *testing.T) {
	tmpl := mustTemplate(t, reqtemplate.Path)
	inst := New(tmpl, []string{"a"})

	fake := &transport.Fake{Responses: []transport.RawResponse{
		{Code: 200, Headers: headerlist.New(), Body: []byte("ok")},
	}}
	record := inst.Send(context.Background(), fake)

	assert.False(t, record.IsEmpty())
	assert.Equal(t, uint16(200), record.Code)
}

func TestSendCancelledDuringDelayYieldsEmpty(t *testing.T) {
	tmpl, err := reqtemplate.New("GET", "https://example.com/", reqtemplate.Options{
		InjectionPlace: reqtemplate.Path,
		Delay:          time.Hour,
	})
	require.NoError(t, err)

	inst := New(tmpl, []string{"a"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fake := &transport.Fake{}
	record := inst.Send(ctx, fake)

	assert.True(t, record.IsEmpty())
	assert.Empty(t, fake.Requests)
}
