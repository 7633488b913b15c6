package engine

import (
	"fmt"
	"time"

	"github.com/msageha/docket/internal/model"
)

// Stage names where a record failed. The stage prefixes the error message
// persisted into the document.
type Stage string

const (
	StageParse    Stage = "parse"
	StageResolve  Stage = "resolve"
	StageRender   Stage = "render"
	StageDispatch Stage = "dispatch"
	StagePersist  Stage = "persist"
)

// Outcome is what happened to one document during a pass.
type Outcome struct {
	Path      string
	Status    model.Status
	Stage     Stage
	Operation model.Operation
	Target    string
	// ResolvedID is the identifier the request was sent to.
	ResolvedID string
	// RemoteID is the identifier of the created object, when the API
	// returned one.
	RemoteID string
	Err      error
	// Persisted is false for dry runs, for documents that could not be
	// annotated and when the rewrite itself failed.
	Persisted bool
	// Outline summarizes the rendered payload.
	Outline []string
}

// Message is the text persisted into the document's error key.
func (o Outcome) Message() string {
	if o.Err == nil {
		return ""
	}
	return fmt.Sprintf("%s: %v", o.Stage, o.Err)
}

// PassReport summarizes one pass. Done and Failed count pending records
// that reached done or error. Skipped counts documents that were not
// pending. Malformed counts documents whose header could not be used.
type PassReport struct {
	PassID    string
	DryRun    bool
	Started   time.Time
	Finished  time.Time
	Done      int
	Failed    int
	Skipped   int
	Malformed int
	Outcomes  []Outcome
}

func (r *PassReport) add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
}

// Summary is a one-line description for logs and the command line.
func (r PassReport) Summary() string {
	prefix := "pass"
	if r.DryRun {
		prefix = "dry run"
	}
	return fmt.Sprintf("%s %s: %d done, %d failed, %d malformed, %d skipped",
		prefix, r.PassID, r.Done, r.Failed, r.Malformed, r.Skipped)
}
