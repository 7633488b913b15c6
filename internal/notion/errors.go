package notion

import (
	"errors"
	"fmt"
)

// RemoteError is a non-2xx response from the Notion API. Message carries
// the upstream message verbatim, or the raw body when it was not JSON.
type RemoteError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *RemoteError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("notion: HTTP %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("notion: HTTP %d: %s", e.StatusCode, e.Message)
}

// TransportError is a failure to complete the HTTP exchange at all:
// connection refused, timeout, cancelled context.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("notion: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var remote *RemoteError
	return errors.As(err, &remote) && remote.StatusCode == 404
}

// IsUnauthorized reports whether err is a 401 from the API, usually a
// missing or revoked integration token.
func IsUnauthorized(err error) bool {
	var remote *RemoteError
	return errors.As(err, &remote) && remote.StatusCode == 401
}
