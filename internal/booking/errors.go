package booking

import (
	"errors"
	"fmt"
	"strings"

	"github.com/wolfman30/clinicbook/internal/clinicapi"
)

// ValidationError means the request was incomplete. No network call was made.
type ValidationError struct {
	Message string
	Missing []string
}

func (e *ValidationError) Error() string {
	if len(e.Missing) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (missing: %s)", e.Message, strings.Join(e.Missing, ", "))
}

// ConflictError means the slot was taken between the availability fetch and
// the submit. Detail is the server's message.
type ConflictError struct {
	Detail string
	Err    error
}

func (e *ConflictError) Error() string { return e.Detail }
func (e *ConflictError) Unwrap() error { return e.Err }

// NetworkError covers transport failures and any other rejection. StatusCode
// is zero when no response arrived.
type NetworkError struct {
	StatusCode int
	Detail     string
	Err        error
}

func (e *NetworkError) Error() string { return e.Detail }
func (e *NetworkError) Unwrap() error { return e.Err }

// classify maps an API failure onto the booking error kinds.
func classify(err error) error {
	var apiErr *clinicapi.APIError
	if errors.As(err, &apiErr) {
		if clinicapi.IsConflict(err) {
			return &ConflictError{Detail: apiErr.Detail, Err: err}
		}
		return &NetworkError{StatusCode: apiErr.StatusCode, Detail: apiErr.Detail, Err: err}
	}
	return &NetworkError{Detail: "Failed to reach the booking service: " + err.Error(), Err: err}
}

// Detail returns the message to show for a booking failure.
func Detail(err error) string {
	var (
		v *ValidationError
		c *ConflictError
		n *NetworkError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &v):
		return v.Message
	case errors.As(err, &c):
		return c.Detail
	case errors.As(err, &n):
		return n.Detail
	default:
		return err.Error()
	}
}
