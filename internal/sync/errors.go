package sync

import (
	"errors"
	"fmt"
)

// Service identifies the external system an error originated from.
type Service string

const (
	ServiceIMAP       Service = "imap"
	ServiceRemarkable Service = "remarkable"
)

// AuthError indicates that a service rejected the configured
// credentials. It is fatal for the run.
type AuthError struct {
	Service Service
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.Service, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// ConnectionError indicates that a service could not be reached.
// It is fatal for the run.
type ConnectionError struct {
	Service Service
	Addr    string
	Err     error
}

func (e *ConnectionError) Error() string {
	if e.Addr != "" {
		return fmt.Sprintf("connection error (%s): %s: %v", e.Service, e.Addr, e.Err)
	}
	return fmt.Sprintf("connection error (%s): %v", e.Service, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// IsConnectionError reports whether err (or any error in its chain)
// is a ConnectionError.
func IsConnectionError(err error) bool {
	var connErr *ConnectionError
	return errors.As(err, &connErr)
}

// ExtractionError indicates that a message body could not be parsed
// for attachments. It fails the message, not the run.
type ExtractionError struct {
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extracting attachments: %v", e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// IsExtractionError reports whether err (or any error in its chain)
// is an ExtractionError.
func IsExtractionError(err error) bool {
	var extractErr *ExtractionError
	return errors.As(err, &extractErr)
}

// UploadError indicates that a single attachment failed to reach the
// document store. It fails the attachment's message, not the run.
type UploadError struct {
	Filename string
	Err      error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("uploading %s: %v", e.Filename, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// IsUploadError reports whether err (or any error in its chain) is an
// UploadError.
func IsUploadError(err error) bool {
	var uploadErr *UploadError
	return errors.As(err, &uploadErr)
}
