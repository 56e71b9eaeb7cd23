package posix_server

import (
	"errors"
	"fmt"

	"github.com/AnishMulay/sandfs/internal/communication"
	ss "github.com/AnishMulay/sandfs/internal/storage_service"
)

var codeErrors = []struct {
	code communication.SandCode
	err  error
}{
	{communication.CodeNotFound, ss.ErrNotFound},
	{communication.CodeNotFound, ss.ErrParentNotFound},
	{communication.CodeAlreadyExists, ss.ErrAlreadyExists},
	{communication.CodeNoSpace, ss.ErrExhausted},
	{communication.CodeIsDirectory, ss.ErrIsDirectory},
	{communication.CodeNotDirectory, ss.ErrNotDirectory},
	{communication.CodeNotEmpty, ss.ErrNotEmpty},
	{communication.CodeBadRequest, ss.ErrInvalidPath},
	{communication.CodeBadRequest, ss.ErrInvalidArgument},
}

// CodeForError picks the response code for a storage error.
func CodeForError(err error) communication.SandCode {
	if err == nil {
		return communication.CodeOK
	}
	for _, ce := range codeErrors {
		if errors.Is(err, ce.err) {
			return ce.code
		}
	}
	return communication.CodeInternal
}

// ErrorForResponse rebuilds a storage error from a failed response. The
// parent-not-found header distinguishes the two not-found cases.
func ErrorForResponse(resp *communication.Response) error {
	msg := string(resp.Body)
	var base error
	switch resp.Code {
	case communication.CodeOK:
		return nil
	case communication.CodeNotFound:
		base = ss.ErrNotFound
		if resp.Headers[HeaderErrorKind] == kindParentNotFound {
			base = ss.ErrParentNotFound
		}
	case communication.CodeAlreadyExists:
		base = ss.ErrAlreadyExists
	case communication.CodeNoSpace:
		base = ss.ErrExhausted
	case communication.CodeIsDirectory:
		base = ss.ErrIsDirectory
	case communication.CodeNotDirectory:
		base = ss.ErrNotDirectory
	case communication.CodeNotEmpty:
		base = ss.ErrNotEmpty
	case communication.CodeBadRequest:
		base = ss.ErrInvalidArgument
		if resp.Headers[HeaderErrorKind] == kindInvalidPath {
			base = ss.ErrInvalidPath
		}
	default:
		return fmt.Errorf("remote error (%s): %s", resp.Code, msg)
	}
	return fmt.Errorf("%w (remote: %s)", base, msg)
}

const (
	HeaderErrorKind    = "error-kind"
	kindParentNotFound = "parent-not-found"
	kindInvalidPath    = "invalid-path"
)

// errorHeaders adds detail that the response code alone cannot carry.
func errorHeaders(err error) map[string]string {
	switch {
	case errors.Is(err, ss.ErrParentNotFound):
		return map[string]string{HeaderErrorKind: kindParentNotFound}
	case errors.Is(err, ss.ErrInvalidPath):
		return map[string]string{HeaderErrorKind: kindInvalidPath}
	}
	return nil
}

// ErrorResponse builds the response for a failed storage call.
func ErrorResponse(err error) *communication.Response {
	return &communication.Response{
		Code:    CodeForError(err),
		Body:    []byte(err.Error()),
		Headers: errorHeaders(err),
	}
}
