package asset

import (
	"fmt"

	"github.com/pkg/errors"
)

// FormatError reports a malformed or unsupported byte layout.
type FormatError struct {
	Format string
	Path   string
	Err    error
}

func NewFormatError(format, path string, err error) *FormatError {
	return &FormatError{Format: format, Path: path, Err: err}
}

func FormatErrorf(format, path, msg string, args ...interface{}) *FormatError {
	return &FormatError{Format: format, Path: path, Err: errors.Errorf(msg, args...)}
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("[%s] bad format of %q: %v", e.Format, e.Path, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// NotFoundError reports a missing sub-resource. It is recoverable: the
// caller substitutes a placeholder and continues.
type NotFoundError struct {
	Resource string
	Path     string
	Referrer string
}

func (e *NotFoundError) Error() string {
	if e.Referrer != "" {
		return fmt.Sprintf("%s %q referenced by %q not found", e.Resource, e.Path, e.Referrer)
	}
	return fmt.Sprintf("%s %q not found", e.Resource, e.Path)
}

// UnsupportedFormatError means no codec is registered for the extension and kind.
type UnsupportedFormatError struct {
	Ext       string
	Kind      Kind
	Direction string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("Cannot find %s for '%s' extension (%v)", e.Direction, e.Ext, e.Kind)
}

// IOError wraps a filesystem failure.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func NewIOError(op, path string, err error) *IOError {
	return &IOError{Op: op, Path: path, Err: err}
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// ValidationError rejects a mutation that would break a scene-graph invariant.
// State is untouched when it is returned.
type ValidationError struct {
	Op     string
	Reason string
}

func Validationf(op, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Op: op, Reason: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func IsFormat(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}

func IsUnsupported(err error) bool {
	var ue *UnsupportedFormatError
	return errors.As(err, &ue)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsIO(err error) bool {
	var ie *IOError
	return errors.As(err, &ie)
}
