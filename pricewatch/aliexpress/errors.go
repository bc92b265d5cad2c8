package aliexpress

import (
	"errors"
	"fmt"
)

// ErrorKind classifies API failures. The client never lets transport or
// decoding errors escape untyped; callers switch on the kind.
type ErrorKind int

const (
	KindTransient ErrorKind = iota
	KindRateLimited
	KindNotFound
	KindNoPrice
	KindTimeout
	KindInvalidResponse
)

func (k ErrorKind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindNotFound:
		return "not_found"
	case KindNoPrice:
		return "no_price"
	case KindTimeout:
		return "timeout"
	case KindInvalidResponse:
		return "invalid_response"
	default:
		return "transient"
	}
}

type APIError struct {
	Kind    ErrorKind
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("aliexpress: %s: %s", e.Kind, e.Message)
}

func newAPIError(kind ErrorKind, format string, args ...any) *APIError {
	return &APIError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// IsKind reports whether err is an *APIError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}
