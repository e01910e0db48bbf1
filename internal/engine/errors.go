package engine

// errors.go defines the processing error taxonomy and its mapping to
// user-facing messages with support codes.
//
// Request-shape and pattern errors are raised synchronously, before any file
// is touched, and abort the whole request. Acquisition, parse, field and
// storage errors are per-file: they surface as error events on the progress
// stream and the batch continues, always reaching its complete event.

import (
	"errors"
	"fmt"
	"strings"
)

// RequestError reports missing or malformed request input.
type RequestError struct {
	Reason string
}

func (e *RequestError) Error() string {
	return "invalid request: " + e.Reason
}

// PatternError reports a regular expression that failed to compile. It is a
// configuration mistake, reported once for the whole request rather than
// skipped per row or per file.
type PatternError struct {
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("invalid pattern %q: %v", e.Pattern, e.Err)
}

func (e *PatternError) Unwrap() error { return e.Err }

// AcquisitionError reports a failure retrieving one file's bytes.
type AcquisitionError struct {
	Filename string
	Err      error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("acquire %s: %v", e.Filename, e.Err)
}

func (e *AcquisitionError) Unwrap() error { return e.Err }

// ParseError reports structural problems in one file's tabular text.
type ParseError struct {
	Filename string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Filename, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// FieldNotFoundError reports replace operations naming fields absent from a
// file's headers. It aborts that file before any row is touched.
type FieldNotFoundError struct {
	Filename string
	Fields   []string
}

func (e *FieldNotFoundError) Error() string {
	return fmt.Sprintf("fields not found in %s: %s", e.Filename, strings.Join(e.Fields, ", "))
}

// StorageError reports an artifact persistence or retrieval failure.
type StorageError struct {
	Name string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Name, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// UserMessage provides user-facing error information with actionable
// guidance and a stable code for support reference.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// MapError converts a processing error to its user-facing message. Errors
// outside the taxonomy fall back to GEN001.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var (
		reqErr   *RequestError
		patErr   *PatternError
		acqErr   *AcquisitionError
		parseErr *ParseError
		fieldErr *FieldNotFoundError
		storeErr *StorageError
	)

	switch {
	case errors.As(err, &reqErr):
		return UserMessage{
			Message: reqErr.Reason,
			Action:  "Adjust the request and try again",
			Code:    "REQ001",
		}
	case errors.As(err, &patErr):
		return UserMessage{
			Message: "The search pattern is not a valid regular expression",
			Action:  "Fix the pattern or turn off regex matching",
			Code:    "PAT001",
		}
	case errors.As(err, &acqErr):
		return UserMessage{
			Message: fmt.Sprintf("Could not retrieve %s", acqErr.Filename),
			Action:  "Check that the file is still available and try again",
			Code:    "ACQ001",
		}
	case errors.As(err, &parseErr):
		return UserMessage{
			Message: fmt.Sprintf("Could not read %s as delimited text", parseErr.Filename),
			Action:  "Check that the file is valid CSV",
			Code:    "PAR001",
		}
	case errors.As(err, &fieldErr):
		return UserMessage{
			Message: fmt.Sprintf("Fields not found: %s", strings.Join(fieldErr.Fields, ", ")),
			Action:  "Pick fields that exist in the file's headers",
			Code:    "FLD001",
		}
	case errors.As(err, &storeErr):
		return UserMessage{
			Message: "Saving the output file failed",
			Action:  "Try again in a few moments",
			Code:    "STO001",
		}
	case errors.Is(err, ErrTooManyProcesses):
		return UserMessage{
			Message: "Too many operations are running right now",
			Action:  "Wait for running operations to finish, then retry",
			Code:    "LIM001",
		}
	}

	return UserMessage{
		Message: "An unexpected error occurred",
		Action:  "Try again; quote the code to support if it persists",
		Code:    "GEN001",
	}
}
