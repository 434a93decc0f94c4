package errcode

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Report is the canonical structured error type for pyembed. Errors from
// the codec, index, resolver and importer carry one, wrapped via
// WrapReport or reachable through an Unwrap method; errors from collector,
// policy and distmeta, and record-validation errors, are plain errors.
type Report struct {
	Schema  string         `json:"schema"` // Always "pyembed.error/v1"
	Code    string         `json:"code"`   // CDC001, RES404, etc.
	Phase   string         `json:"phase"`  // "codec", "resindex", "resolve", "importer", "distmeta", "collector"
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"` // extra structured context, e.g. {"name": "foo.bar"}
}

// ReportError wraps a Report as an error so it survives errors.As unwrapping
// through fmt.Errorf("%w", ...) chains.
type ReportError struct {
	Rep *Report
}

func (e *ReportError) Error() string {
	if e.Rep == nil {
		return "unknown error"
	}
	return e.Rep.Code + ": " + e.Rep.Message
}

// AsReport extracts a *Report from an error chain, if present.
func AsReport(err error) (*Report, bool) {
	var re *ReportError
	if errors.As(err, &re) {
		return re.Rep, true
	}
	return nil, false
}

// WrapReport wraps a Report as an error.
func WrapReport(r *Report) error {
	if r == nil {
		return nil
	}
	return &ReportError{Rep: r}
}

// New builds and wraps a Report in one call.
func New(phase, code, message string, data map[string]any) error {
	return WrapReport(&Report{
		Schema:  "pyembed.error/v1",
		Code:    code,
		Phase:   phase,
		Message: message,
		Data:    data,
	})
}

// Newf is New with fmt.Sprintf-style formatting for Message.
func Newf(phase, code, format string, args ...any) error {
	return New(phase, code, fmt.Sprintf(format, args...), nil)
}

// ToJSON renders a Report as deterministic JSON.
func (r *Report) ToJSON(compact bool) (string, error) {
	var data []byte
	var err error
	if compact {
		data, err = json.Marshal(r)
	} else {
		data, err = json.MarshalIndent(r, "", "  ")
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}
