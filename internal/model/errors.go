package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrPassInProgress is returned when another invocation holds the pass lock.
var ErrPassInProgress = errors.New("another pass is in progress")

// ResolutionError reports a target that is neither mapped nor a raw identifier.
type ResolutionError struct {
	Target string
	Known  []string
}

func (e *ResolutionError) Error() string {
	msg := fmt.Sprintf("target %q is not a known name or a raw identifier", e.Target)
	if len(e.Known) > 0 {
		msg += fmt.Sprintf(" (available targets: %s)", strings.Join(e.Known, ", "))
	}
	return msg
}

type TemplateNotFoundError struct {
	Name string
}

func (e *TemplateNotFoundError) Error() string {
	return fmt.Sprintf("template %q not found", e.Name)
}

// MalformedRecordError is raised before any remote call for documents whose
// header cannot be parsed or lacks required fields.
type MalformedRecordError struct {
	Path   string
	Reason string
	Err    error
}

func (e *MalformedRecordError) Error() string {
	var b strings.Builder
	b.WriteString("malformed request")
	if e.Path != "" {
		b.WriteString(" ")
		b.WriteString(e.Path)
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *MalformedRecordError) Unwrap() error {
	return e.Err
}
