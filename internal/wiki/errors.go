package wiki

import (
	"errors"
	"fmt"
)

// Failure classes reported by the lookup pipeline. Every error returned by Fetch or
// passed to Delegate.OnFailure matches exactly one of them with errors.Is
// (ErrPageNotFound additionally matches ErrMalformedResponse).
var (
	ErrEncoding          = errors.New("label cannot be encoded into a request url")
	ErrTransport         = errors.New("wikipedia request failed")
	ErrDecoding          = errors.New("wikipedia response does not match the expected schema")
	ErrMalformedResponse = errors.New("wikipedia response is incomplete")
	ErrPageNotFound      = fmt.Errorf("%w: page does not exist", ErrMalformedResponse)
)

// StatusError is the transport failure reported for a non-2xx HTTP answer.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// Kind maps err onto a stable label for logs, metrics and persisted history.
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrEncoding):
		return "encoding"
	case errors.Is(err, ErrTransport):
		return "transport"
	case errors.Is(err, ErrDecoding):
		return "decoding"
	case errors.Is(err, ErrPageNotFound):
		return "not_found"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed"
	default:
		return "unknown"
	}
}
