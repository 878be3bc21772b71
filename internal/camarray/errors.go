package camarray

import (
	"errors"
	"fmt"
)

// ArrayError is a camera array failure, optionally tied to one camera.
type ArrayError struct {
	Code    string
	Index   int // physical camera index, -1 for array-wide failures
	Message string
	Cause   error
}

func (e *ArrayError) Error() string {
	msg := e.Message
	if e.Index >= 0 {
		msg = fmt.Sprintf("camera %d: %s", e.Index, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *ArrayError) Unwrap() error {
	return e.Cause
}

// Error codes
const (
	ErrCodeNoCameras          = "NO_CAMERAS_FOUND"
	ErrCodeInitialization     = "INITIALIZATION_FAILURE"
	ErrCodeRegisterIO         = "REGISTER_IO_FAILURE"
	ErrCodeRetrieveTimeout    = "RETRIEVE_TIMEOUT"
	ErrCodeRetrieve           = "RETRIEVE_FAILURE"
	ErrCodePropertyRead       = "PROPERTY_READ_FAILURE"
	ErrCodePropertyWrite      = "PROPERTY_WRITE_FAILURE"
	ErrCodeUnsupportedTrigger = "UNSUPPORTED_TRIGGER"
	ErrCodePowerUpTimeout     = "POWER_UP_TIMEOUT"
	ErrCodeInvalidIndex       = "INVALID_INDEX"
	ErrCodeSessionClosed      = "SESSION_CLOSED"
)

// NewArrayError creates a new array error
func NewArrayError(code string, index int, message string, cause error) *ArrayError {
	return &ArrayError{
		Code:    code,
		Index:   index,
		Message: message,
		Cause:   cause,
	}
}

// HasCode reports whether an ArrayError with code appears anywhere in err's
// tree, including errors combined with errors.Join.
func HasCode(err error, code string) bool {
	switch e := err.(type) {
	case nil:
		return false
	case *ArrayError:
		return e.Code == code || HasCode(e.Cause, code)
	case interface{ Unwrap() []error }:
		for _, inner := range e.Unwrap() {
			if HasCode(inner, code) {
				return true
			}
		}
		return false
	}
	return HasCode(errors.Unwrap(err), code)
}
