package model

import (
	"fmt"
	"strings"
)

type Operation string

const (
	OpCreatePage     Operation = "create-page"
	OpCreateDatabase Operation = "create-db"
	OpUpdatePage     Operation = "update-page"
	OpAppendBlocks   Operation = "append-blocks"
)

var validOperations = map[Operation]bool{
	OpCreatePage:     true,
	OpCreateDatabase: true,
	OpUpdatePage:     true,
	OpAppendBlocks:   true,
}

func ValidOperation(op Operation) bool {
	return validOperations[op]
}

// Record is the parsed header of one request document. Body holds the text
// after the header exactly as it appears on disk.
type Record struct {
	Status      Status    `yaml:"status"`
	Target      string    `yaml:"target"`
	ExplicitID  string    `yaml:"explicit_id"`
	Template    string    `yaml:"template"`
	Priority    Priority  `yaml:"priority"`
	Operation   Operation `yaml:"operation"`
	Title       string    `yaml:"title"`
	Icon        string    `yaml:"icon"`
	CompletedAt *string   `yaml:"completed_at"`
	Error       *string   `yaml:"error"`

	Body string `yaml:"-"`
}

// EffectiveOperation returns the operation, defaulting to create-page.
func (r *Record) EffectiveOperation() Operation {
	if r.Operation == "" {
		return OpCreatePage
	}
	return r.Operation
}

func (r *Record) EffectivePriority() Priority {
	if r.Priority == "" {
		return PriorityNormal
	}
	return r.Priority
}

// Validate checks the fields the engine needs before any remote call.
// Every problem is reported, not only the first.
func (r *Record) Validate() error {
	var problems []string
	if r.Status == "" {
		problems = append(problems, "missing status")
	} else if !IsPersistable(r.Status) {
		problems = append(problems, fmt.Sprintf("unknown status %q", r.Status))
	}
	if strings.TrimSpace(r.Target) == "" && strings.TrimSpace(r.ExplicitID) == "" {
		problems = append(problems, "missing target")
	}
	if r.Priority != "" && !ValidPriority(r.Priority) {
		problems = append(problems, fmt.Sprintf("unknown priority %q", r.Priority))
	}
	if r.Operation != "" && !ValidOperation(r.Operation) {
		problems = append(problems, fmt.Sprintf("unknown operation %q", r.Operation))
	}
	if len(problems) > 0 {
		return &MalformedRecordError{Reason: strings.Join(problems, "; ")}
	}
	return nil
}
