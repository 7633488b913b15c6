package model

import "fmt"

type Status string

const (
	StatusPending Status = "pending"
	StatusDone    Status = "done"
	StatusError   Status = "error"

	// StatusProcessing only ever exists in memory while a pass works on a
	// record. It is never written to a request document.
	StatusProcessing Status = "processing"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

var validStatuses = map[Status]bool{
	StatusPending: true,
	StatusDone:    true,
	StatusError:   true,
}

var terminalStatuses = map[Status]bool{
	StatusDone:  true,
	StatusError: true,
}

var priorityRank = map[Priority]int{
	PriorityLow:    0,
	PriorityNormal: 1,
	PriorityHigh:   2,
}

// Record transitions within a pass: pending → processing → done|error.
// Nothing leads back to pending; that is an operator's manual edit.
var validRecordTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusProcessing: true,
	},
	StatusProcessing: {
		StatusDone:  true,
		StatusError: true,
	},
}

func IsTerminal(s Status) bool {
	return terminalStatuses[s]
}

// IsPersistable reports whether s may appear in a request document.
func IsPersistable(s Status) bool {
	return validStatuses[s]
}

func ValidPriority(p Priority) bool {
	_, ok := priorityRank[p]
	return ok
}

// Rank orders priorities for selection; higher runs first. An empty or
// unknown priority ranks as normal.
func (p Priority) Rank() int {
	if r, ok := priorityRank[p]; ok {
		return r
	}
	return priorityRank[PriorityNormal]
}

func ValidateRecordTransition(from, to Status) error {
	if IsTerminal(from) {
		return fmt.Errorf("cannot transition from terminal status %q", from)
	}
	allowed, ok := validRecordTransitions[from]
	if !ok {
		return fmt.Errorf("unknown status %q", from)
	}
	if !allowed[to] {
		return fmt.Errorf("invalid record transition: %q → %q", from, to)
	}
	return nil
}
