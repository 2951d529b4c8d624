package backend

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for backend operations.
var (
	// ErrBackendUnreachable is returned on transport failures and timeouts.
	ErrBackendUnreachable = errors.New("backend unreachable")

	// ErrBackendRejected is matched by every *RejectedError.
	ErrBackendRejected = errors.New("backend rejected request")

	// ErrInvalidSpec is returned before any network call when an ItemSpec
	// lacks fields the vendor requires.
	ErrInvalidSpec = errors.New("invalid item spec")

	// ErrConfigMissing is returned when no endpoint is configured for a kind.
	ErrConfigMissing = errors.New("service not configured")

	// ErrUnsupported is returned when a kind lacks the requested capability.
	ErrUnsupported = errors.New("operation not supported by service")
)

// RejectedError carries a vendor's non-success response.
type RejectedError struct {
	Status int
	Body   string
}

func (e *RejectedError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("%s: HTTP %d", ErrBackendRejected, e.Status)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", ErrBackendRejected, e.Status, body)
}

// Unwrap lets errors.Is match ErrBackendRejected.
func (e *RejectedError) Unwrap() error {
	return ErrBackendRejected
}

// Unreachable wraps a transport error as ErrBackendUnreachable.
func Unreachable(err error) error {
	return fmt.Errorf("%w: %v", ErrBackendUnreachable, err)
}

// MissingFields returns an ErrInvalidSpec naming the missing fields,
// or nil if none are missing.
func MissingFields(fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	return fmt.Errorf("%w: missing %s", ErrInvalidSpec, strings.Join(fields, ", "))
}
