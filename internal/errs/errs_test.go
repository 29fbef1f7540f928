package errs

import (
	"errors"
	"net/http"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/stretchr/testify/require"
)

func TestError(t *testing.T) {
	t.Run("falls back to reason", func(t *testing.T) {
		err := Error{Reason: "Something broke."}
		require.Equal(t, "Something broke.", err.Error())
		require.NoError(t, err.Unwrap())
	})

	t.Run("prefers underlying error", func(t *testing.T) {
		cause := errors.New("boom")
		err := Wrapf(cause, "Could not %s.", "work")
		require.Equal(t, "boom", err.Error())
		require.Equal(t, "Could not work.", err.ReasonText())
		require.ErrorIs(t, err, cause)
	})
}

func TestRemote(t *testing.T) {
	tests := map[string]struct {
		err    error
		reason string
	}{
		"transport error": {
			err:    errors.New("dial tcp: no such host"),
			reason: "Could not create agent.",
		},
		"forbidden": {
			err:    &azcore.ResponseError{StatusCode: http.StatusForbidden},
			reason: "Not authorized to create agent. Check your Azure login and project role assignment.",
		},
		"not found": {
			err:    &azcore.ResponseError{StatusCode: http.StatusNotFound},
			reason: "Could not create agent: resource not found. Check PROJECT_ENDPOINT.",
		},
		"service error code": {
			err:    &azcore.ResponseError{StatusCode: http.StatusBadRequest, ErrorCode: "invalid_model"},
			reason: "Could not create agent (invalid_model).",
		},
		"bare status": {
			err:    &azcore.ResponseError{StatusCode: http.StatusBadGateway},
			reason: "Could not create agent (HTTP 502).",
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			err := Remote(tc.err, "create agent")
			require.Equal(t, tc.reason, err.Reason)
			require.ErrorIs(t, err, tc.err)
		})
	}
}
