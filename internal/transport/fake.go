package transport

import "context"

// Fake is a Client the core's own tests drive directly, with no network
// involved. Responses is consumed in order; Err, if set, is returned
// instead of popping a response (and is not re-armed, matching a
// single transient failure).
type Fake struct {
	Responses []RawResponse
	Err       error
	Requests  []RawRequest

	calls int
}

// Do records the request and returns the next queued response, or Err
// once if set and not yet consumed.
func (f *Fake) Do(_ context.Context, req RawRequest) (RawResponse, error) {
	f.Requests = append(f.Requests, req)
	f.calls++

	if f.Err != nil {
		err := f.Err
		f.Err = nil
		return RawResponse{}, err
	}

	if len(f.Responses) == 0 {
		return RawResponse{}, nil
	}
	resp := f.Responses[0]
	f.Responses = f.Responses[1:]
	return resp, nil
}
