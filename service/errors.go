package service

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound                  = errors.New("not found")
	ErrInvalidState              = errors.New("invalid state")
	ErrValidation                = errors.New("validation failed")
	ErrConflict                  = errors.New("conflict")
	ErrInvalidCredentials        = errors.New("invalid credentials")
	ErrUpstreamUnavailable       = errors.New("ocr service unavailable")
	ErrMalformedUpstreamResponse = errors.New("malformed ocr response")
	ErrPersistence               = errors.New("persistence failure")
	ErrStorage                   = errors.New("storage failure")
	ErrStorageForbidden          = errors.New("storage access denied")
	ErrStorageUnavailable        = errors.New("storage unavailable")
	ErrImportInProgress          = errors.New("ocr import already in progress")
	ErrLLM                       = errors.New("llm request failed")
)

// OCRGatewayError describes a failed exchange with the OCR service. Status
// and Raw are set when the service answered with a non-success status.
type OCRGatewayError struct {
	Op     string
	Status int
	Raw    string
	Err    error
}

func (e *OCRGatewayError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %v (status %d)", e.Op, e.Err, e.Status)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *OCRGatewayError) Unwrap() error {
	return e.Err
}

// validationError wraps ErrValidation with a client-facing message.
func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// DetailMessage strips the sentinel prefix from a wrapped validation or state
// error so handlers can return the bare reason.
func DetailMessage(err error) string {
	for _, sentinel := range []error{ErrValidation, ErrInvalidState, ErrConflict} {
		if errors.Is(err, sentinel) {
			msg := err.Error()
			prefix := sentinel.Error() + ": "
			if len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
				return msg[len(prefix):]
			}
			return msg
		}
	}
	return err.Error()
}
