package services

import (
	"errors"
	"fmt"
)

// ValidationError reports a malformed save or read request. No writes have
// happened when it is returned.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NewValidationError builds a ValidationError from a format string.
func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// NotFoundError reports that a referenced resource does not exist.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// UploadError wraps an object-storage failure with the file it concerned.
// It propagates out of the save transaction, aborting the whole save.
type UploadError struct {
	FileName string
	Err      error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("failed to upload asset %s: %v", e.FileName, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nfe *NotFoundError
	return errors.As(err, &nfe)
}

// IsUpload reports whether err is an UploadError.
func IsUpload(err error) bool {
	var ue *UploadError
	return errors.As(err, &ue)
}
