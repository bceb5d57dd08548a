package errors

import (
	"errors"
	"fmt"
)

// SetupError is a startup failure that makes running the bot unsafe,
// such as a missing blacklist or an unwritable artifact directory.
type SetupError struct {
	Component string
	Err       error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("setup %s: %v", e.Component, e.Err)
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

// NewSetupError wraps err as a fatal setup failure of component.
func NewSetupError(component string, err error) *SetupError {
	return &SetupError{Component: component, Err: err}
}

// IsSetupError reports whether err is a SetupError (even when wrapped).
func IsSetupError(err error) bool {
	var setupErr *SetupError
	return errors.As(err, &setupErr)
}
