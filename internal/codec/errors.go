package codec

import (
	"fmt"

	"github.com/indygreg/pyembed-go/internal/errcode"
)

// FormatError is the typed error returned by Parse and Emit. Code is one of
// the CDC### constants in internal/errcode.
type FormatError struct {
	Code    string
	Message string
	Field   string // optional: the field name involved, when applicable
}

func (e *FormatError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field=%s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap lets errors.As reach the underlying structured report.
func (e *FormatError) Unwrap() error {
	data := map[string]any{}
	if e.Field != "" {
		data["field"] = e.Field
	}
	rep := &errcode.Report{
		Schema:  "pyembed.error/v1",
		Code:    e.Code,
		Phase:   "codec",
		Message: e.Message,
		Data:    data,
	}
	return errcode.WrapReport(rep)
}

func newFormatError(code, message string) *FormatError {
	return &FormatError{Code: code, Message: message}
}

func newFormatErrorf(code, field, format string, args ...any) *FormatError {
	return &FormatError{Code: code, Message: fmt.Sprintf(format, args...), Field: field}
}
