// Package reqtemplate implements the immutable request blueprint
// ("RequestDefaults" in the prior art this engine is modeled on): method,
// scheme, host, port, path/body skeleton carrying a single %s injection
// sentinel, per-parameter rendering rules, and the learned baseline
// response a run compares every subsequent response against.
package reqtemplate

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bcfsec/paramhunt/internal/headerlist"
	"github.com/bcfsec/paramhunt/internal/response"
)

// InjectionPlace names where candidate parameters are spliced into the
// request.
type InjectionPlace int

const (
	Path InjectionPlace = iota
	Body
	HeaderValue
	Headers
)

func (p InjectionPlace) String() string {
	switch p {
	case Path:
		return "path"
	case Body:
		return "body"
	case HeaderValue:
		return "header-value"
	case Headers:
		return "headers"
	default:
		return "unknown"
	}
}

// DataType names the body encoding a Template assumes when it wasn't
// told explicitly.
type DataType int

const (
	// DataTypeUnset means "infer from context" (or "headers injection,
	// no body encoding applies").
	DataTypeUnset DataType = iota
	Json
	Urlencoded
)

var defaultPortByScheme = map[string]int{
	"http":  80,
	"https": 443,
}

// Template is immutable once constructed by New. All request instances
// built against it share it by pointer; nothing in this package mutates a
// Template after New returns.
type Template struct {
	Method  string
	Scheme  string
	Host    string
	Port    int
	Path    string
	Body    string
	Headers *headerlist.List

	ParamTemplate string
	Joiner        string
	Encode        bool
	IsJSON        bool

	InjectionPlace InjectionPlace
	Delay          time.Duration

	// Baseline is filled in by the discovery loop once learned; every
	// comparison/reflection path requires it to be set first (the
	// "BaselineMissing" invariant from the error model - a programming
	// error if violated, not a recoverable condition).
	Baseline                *response.Record
	BaselineReflectionCount int
}

// Options carries the optional construction inputs that have sensible
// defaults or get inferred when omitted.
type Options struct {
	Headers        []headerlist.Pair
	Delay          time.Duration
	ParamTemplate  string // empty => infer
	Joiner         string // empty => infer
	DataType       DataType
	InjectionPlace InjectionPlace
	Body           string
	Encode         bool
}

// New parses rawURL and builds an immutable Template, inferring the body
// format, inserting the %s sentinel at the declared injection site, and
// validating the URL.
func New(method, rawURL string, opts Options) (*Template, error) {
	guessedTemplate, guessedJoiner, isJSON, dataType := guessDataFormat(opts.Body, opts.InjectionPlace, opts.DataType)

	paramTemplate := opts.ParamTemplate
	if paramTemplate == "" {
		paramTemplate = guessedTemplate
	}
	joiner := opts.Joiner
	if joiner == "" {
		joiner = guessedJoiner
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, ErrBadURL
	}
	if u.Host == "" {
		return nil, ErrMissingHost
	}

	port, err := resolvePort(u)
	if err != nil {
		return nil, err
	}

	urlPath := u.EscapedPath()
	if urlPath == "" {
		urlPath = "/"
	}

	var path, body string
	if dataType != DataTypeUnset {
		rawPath := urlPath
		if opts.InjectionPlace == Path && u.RawQuery != "" {
			// fixPathAndBody's "path already has a query" branch needs
			// to see it.
			rawPath += "?" + u.RawQuery
		}
		path, body = fixPathAndBody(rawPath, opts.Body, joiner, opts.InjectionPlace, dataType)
	} else {
		// HeaderValue/Headers injection leaves path and body untouched.
		path, body = urlPath, opts.Body
	}

	return &Template{
		Method:         strings.ToUpper(method),
		Scheme:         u.Scheme,
		Host:           u.Hostname(),
		Port:           port,
		Path:           path,
		Body:           body,
		Headers:        headerlist.New(opts.Headers...),
		ParamTemplate:  paramTemplate,
		Joiner:         joiner,
		Encode:         opts.Encode,
		IsJSON:         isJSON,
		InjectionPlace: opts.InjectionPlace,
		Delay:          opts.Delay,
	}, nil
}

func resolvePort(u *url.URL) (int, error) {
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return 0, ErrUnknownScheme
		}
		return port, nil
	}
	port, ok := defaultPortByScheme[u.Scheme]
	if !ok {
		return 0, ErrUnknownScheme
	}
	return port, nil
}

// guessDataFormat returns the parameter template, joiner, is_json flag,
// and resolved DataType to use, honoring an explicitly supplied DataType
// first and inferring from the injection place and body contents
// otherwise.
func guessDataFormat(body string, place InjectionPlace, dataType DataType) (paramTemplate, joiner string, isJSON bool, resolved DataType) {
	if dataType != DataTypeUnset {
		switch dataType {
		case Json:
			return `"{k}": {v}`, ", ", true, Json
		case Urlencoded:
			return "{k}={v}", "&", false, Urlencoded
		}
	}

	switch place {
	case Body:
		if strings.HasPrefix(body, "{") {
			return `"{k}": {v}`, ", ", true, Json
		}
		return "{k}={v}", "&", false, Urlencoded
	case HeaderValue:
		return "{k}={v}", ";", false, DataTypeUnset
	case Path:
		return "{k}={v}", "&", false, Urlencoded
	case Headers:
		return "", "", false, DataTypeUnset
	default:
		return "{k}={v}", "&", false, DataTypeUnset
	}
}

// fixPathAndBody inserts the single %s injection sentinel at the
// declared site, following the exact branch order and behavior of the
// reference implementation this engine reproduces - including the two
// deliberately-preserved oddities noted in the spec: the Path branch
// prepends "<joiner>%s" (not appends) when the path already has a query,
// and the non-"&"-joiner fallback appends a bare "%s" with no separator.
func fixPathAndBody(path, body, joiner string, place InjectionPlace, dataType DataType) (string, string) {
	switch place {
	case Body:
		switch {
		case strings.Contains(body, "%s"):
			return path, body
		case body == "":
			if dataType == Json {
				return path, "{%s}"
			}
			return path, "%s"
		default:
			if dataType == Json {
				trimmed := strings.TrimSuffix(body, "}")
				return path, trimmed + ", %s}"
			}
			return path, body + joiner + "%s"
		}
	case Path:
		switch {
		case strings.Contains(path, "%s"):
			return path, body
		case strings.Contains(path, "?"):
			return joiner + "%s" + path, body
		case joiner == "&":
			return path + "?%s", body
		default:
			return path + "%s", body
		}
	default:
		return path, body
	}
}

// URL reconstructs the absolute URL the Template targets, always
// rendering the explicit port.
func (t *Template) URL() string {
	return t.Scheme + "://" + t.Host + ":" + strconv.Itoa(t.Port) + t.Path
}

// Recreate rebuilds a Template from this one's URL and custom headers
// with a different ParamTemplate/Joiner/DataType, for tests that need to
// exercise guessDataFormat/fixPathAndBody against a fixed body/injection
// place.
func (t *Template) Recreate(dataType DataType, paramTemplate, joiner string) (*Template, error) {
	return New(t.Method, t.URL(), Options{
		Headers:        t.Headers.Pairs(),
		Delay:          t.Delay,
		ParamTemplate:  paramTemplate,
		Joiner:         joiner,
		DataType:       dataType,
		InjectionPlace: t.InjectionPlace,
		Body:           t.Body,
		Encode:         t.Encode,
	})
}
