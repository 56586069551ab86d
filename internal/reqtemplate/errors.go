package reqtemplate

import "errors"

// Construction errors. These are fatal and surface directly to the
// caller; the engine never retries a malformed Template.
var (
	ErrBadURL        = errors.New("reqtemplate: could not parse url")
	ErrMissingHost   = errors.New("reqtemplate: url has no host")
	ErrUnknownScheme = errors.New("reqtemplate: scheme has no known default port")
)
