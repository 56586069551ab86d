package reqtemplate

import (
	"testing"

	"github.com/bcfsec/paramhunt/internal/headerlist"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathInjectionDefaultsToQuerySentinel(t *testing.T) {
	tmpl, err := New("GET", "https://example.com:8443/path", Options{
		Headers:        []headerlist.Pair{{Name: "X-Header", Value: "Value"}},
		InjectionPlace: Path,
	})
	require.NoError(t, err)

	assert.Equal(t, "https", tmpl.Scheme)
	assert.Equal(t, "example.com", tmpl.Host)
	assert.Equal(t, 8443, tmpl.Port)
	assert.Equal(t, "/path?%s", tmpl.Path)
	v, ok := tmpl.Headers.Get("X-Header")
	require.True(t, ok)
	assert.Equal(t, "Value", v)
	assert.Equal(t, "{k}={v}", tmpl.ParamTemplate)
	assert.Equal(t, "&", tmpl.Joiner)
	assert.Equal(t, Path, tmpl.InjectionPlace)
}

func TestBodyInjectionJSONEmptyBody(t *testing.T) {
	tmpl, err := New("POST", "https://example.com/", Options{
		InjectionPlace: Body,
		DataType:       Json,
	})
	require.NoError(t, err)

	assert.True(t, tmpl.IsJSON)
	assert.Equal(t, "{%s}", tmpl.Body)
	assert.Equal(t, `"{k}": {v}`, tmpl.ParamTemplate)
}

func TestBodyInjectionJSONExistingBody(t *testing.T) {
	tmpl, err := New("POST", "https://example.com/", Options{
		InjectionPlace: Body,
		Body:           `{"something":1}`,
	})
	require.NoError(t, err)

	assert.Equal(t, `{"something":1, %s}`, tmpl.Body)
	assert.Equal(t, `"{k}": {v}`, tmpl.ParamTemplate)
}

func TestBodyInjectionUrlencodedExistingBody(t *testing.T) {
	tmpl, err := New("POST", "https://example.com/", Options{
		InjectionPlace: Body,
		Body:           "a=b",
	})
	require.NoError(t, err)

	assert.Equal(t, "a=b&%s", tmpl.Body)
}

func TestRecreateRoundTrips(t *testing.T) {
	tmpl, err := New("GET", "https://example.com/", Options{InjectionPlace: Path})
	require.NoError(t, err)

	recreated, err := tmpl.Recreate(DataTypeUnset, "", "")
	require.NoError(t, err)
	assert.Equal(t, tmpl.Path, recreated.Path)
	assert.Equal(t, tmpl.Host, recreated.Host)
	assert.Equal(t, tmpl.Port, recreated.Port)
}

func TestMissingHostFails(t *testing.T) {
	_, err := New("GET", "/just/a/path", Options{InjectionPlace: Path})
	assert.ErrorIs(t, err, ErrMissingHost)
}

func TestUnknownSchemeFails(t *testing.T) {
	_, err := New("GET", "ftp://example.com/", Options{InjectionPlace: Path})
	assert.ErrorIs(t, err, ErrUnknownScheme)
}

func TestBadURLFails(t *testing.T) {
	_, err := New("GET", "://not a url", Options{InjectionPlace: Path})
	assert.ErrorIs(t, err, ErrBadURL)
}
