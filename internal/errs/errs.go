// Package errs holds the user-facing error type shared by every command.
package errs

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
)

// UserErrorf is a user-facing error.
// This helper exists mostly to avoid linters complaining about errors starting
// with a capitalized letter.
func UserErrorf(format string, a ...any) error {
	return fmt.Errorf(format, a...)
}

// Error wraps an underlying error with a user-facing reason.
//
// Reason is meant to be short and actionable; Err may contain technical details.
// When Err is nil, Error() falls back to Reason.
type Error struct {
	Err    error
	Reason string
}

// Wrap creates an Error with the given underlying error and user-facing reason.
func Wrap(err error, reason string) Error {
	return Error{Err: err, Reason: reason}
}

// Wrapf creates an Error with the given underlying error and a formatted reason.
func Wrapf(err error, format string, a ...any) Error {
	return Error{Err: err, Reason: fmt.Sprintf(format, a...)}
}

func (e Error) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Reason
}

func (e Error) Unwrap() error {
	return e.Err
}

// ReasonText returns the user-facing reason for the error.
func (e Error) ReasonText() string {
	return e.Reason
}

// Remote wraps a failed call to the agent service. When the service
// answered with an error response the reason names the status, so the most
// common faults (bad endpoint, missing role assignment, unknown deployment)
// are recognizable without reading the payload.
func Remote(err error, op string) Error {
	var respErr *azcore.ResponseError
	if !errors.As(err, &respErr) {
		return Error{Err: err, Reason: fmt.Sprintf("Could not %s.", op)}
	}
	switch respErr.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return Error{Err: err, Reason: fmt.Sprintf("Not authorized to %s. Check your Azure login and project role assignment.", op)}
	case http.StatusNotFound:
		return Error{Err: err, Reason: fmt.Sprintf("Could not %s: resource not found. Check PROJECT_ENDPOINT.", op)}
	}
	if respErr.ErrorCode != "" {
		return Error{Err: err, Reason: fmt.Sprintf("Could not %s (%s).", op, respErr.ErrorCode)}
	}
	return Error{Err: err, Reason: fmt.Sprintf("Could not %s (HTTP %d).", op, respErr.StatusCode)}
}
