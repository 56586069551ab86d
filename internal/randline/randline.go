// Package randline generates the short random tokens the core uses as
// stand-in parameter values and sentinels. Every call is independent: two
// calls must not share entropy, since the templating model relies on each
// {{random}} occurrence and each candidate's assigned value being sampled
// on its own (spec: "each replacement site samples independently").
package randline

import (
	"crypto/rand"
	"math/big"
)

// alphabet is deliberately lowercase-only: response.Record.Count lowercases
// the response body before searching but leaves the needle untouched (a
// preserved quirk of the reference implementation), so a generated value
// containing uppercase letters would silently never match its own echo.
const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// Line returns a random lowercase-alphanumeric string of the given
// length. There is no third-party dependency in the retrieval pack for
// short random token generation (the pack's random-ish identifiers all
// come from google/uuid, which produces a fixed 36-byte hyphenated form,
// not an arbitrary-length alphanumeric token), so this is built directly
// on crypto/rand.
func Line(n int) string {
	if n <= 0 {
		return ""
	}
	out := make([]byte, n)
	max := big.NewInt(int64(len(alphabet)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand failure means the OS entropy source is broken;
			// there is nothing a caller could usefully do, and the value
			// only ever needs to be unpredictable, not cryptographically
			// secure, so fall back to a fixed but still varying byte.
			out[i] = alphabet[i%len(alphabet)]
			continue
		}
		out[i] = alphabet[idx.Int64()]
	}
	return string(out)
}
