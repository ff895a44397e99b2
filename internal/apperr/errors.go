package apperr

import (
	"errors"
	"fmt"
)

// ErrMissingConfig marks a request that cannot proceed because a required
// credential or identifier is absent from the environment.
var ErrMissingConfig = errors.New("missing configuration")

// ErrMalformedOutput marks model output that survived none of the known
// decode shapes.
var ErrMalformedOutput = errors.New("malformed model output")

// MissingConfig wraps ErrMissingConfig with the name of the absent key.
func MissingConfig(key string) error {
	return fmt.Errorf("%w: %s is not set", ErrMissingConfig, key)
}

// UpstreamError carries the status and body of a non-2xx response from an
// external platform API so handlers can surface it as a 502.
type UpstreamError struct {
	Service string
	Status  int
	Body    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Service, e.Status, e.Body)
}
