package posix_server

import (
	"errors"
	"fmt"
	"testing"

	"github.com/AnishMulay/sandfs/internal/communication"
	ss "github.com/AnishMulay/sandfs/internal/storage_service"
	"github.com/stretchr/testify/require"
)

func TestErrorResponse_RoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode communication.SandCode
	}{
		{name: "not found", err: ss.ErrNotFound, wantCode: communication.CodeNotFound},
		{name: "parent not found", err: ss.ErrParentNotFound, wantCode: communication.CodeNotFound},
		{name: "exists", err: ss.ErrAlreadyExists, wantCode: communication.CodeAlreadyExists},
		{name: "exhausted", err: fmt.Errorf("%w: disk", ss.ErrExhausted), wantCode: communication.CodeNoSpace},
		{name: "is dir", err: ss.ErrIsDirectory, wantCode: communication.CodeIsDirectory},
		{name: "not dir", err: ss.ErrNotDirectory, wantCode: communication.CodeNotDirectory},
		{name: "not empty", err: ss.ErrNotEmpty, wantCode: communication.CodeNotEmpty},
		{name: "invalid path", err: ss.ErrInvalidPath, wantCode: communication.CodeBadRequest},
		{name: "invalid argument", err: ss.ErrInvalidArgument, wantCode: communication.CodeBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ErrorResponse(tt.err)
			require.Equal(t, tt.wantCode, resp.Code)
			require.ErrorIs(t, ErrorForResponse(resp), unwrapBase(tt.err))
		})
	}
}

func TestErrorResponse_Unknown(t *testing.T) {
	resp := ErrorResponse(errors.New("disk on fire"))
	require.Equal(t, communication.CodeInternal, resp.Code)
	err := ErrorForResponse(resp)
	require.ErrorContains(t, err, "disk on fire")
	require.NoError(t, ErrorForResponse(&communication.Response{Code: communication.CodeOK}))
}

func unwrapBase(err error) error {
	for _, ce := range codeErrors {
		if errors.Is(err, ce.err) {
			return ce.err
		}
	}
	return err
}
