package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/msageha/docket/internal/model"
	"github.com/msageha/docket/internal/render"
	"github.com/msageha/docket/internal/request"
	"github.com/msageha/docket/internal/resolve"
)

var (
	errKindMismatch = errors.New("template kind does not match operation")
	errNothingToDo  = errors.New("template renders nothing for this operation")
)

// process runs one pending record through resolve, render and dispatch and
// persists the result. It never returns an error; failures become the
// outcome.
func (e *Engine) process(ctx context.Context, doc *request.Document, table resolve.Table, renderer *render.Renderer) Outcome {
	rec := &doc.Record
	o := Outcome{
		Path:      doc.Path,
		Operation: rec.EffectiveOperation(),
		Target:    rec.Target,
	}

	state := rec.Status
	if err := model.ValidateRecordTransition(state, model.StatusProcessing); err != nil {
		o.Status, o.Stage, o.Err = model.StatusError, StageParse, err
		return e.persist(doc, o)
	}
	state = model.StatusProcessing
	e.log.Debugf("record_processing path=%s status=%s op=%s", doc.Path, state, o.Operation)

	id, err := resolve.Resolve(rec.Target, rec.ExplicitID, table)
	if err != nil {
		return e.fail(doc, o, state, StageResolve, err)
	}
	o.ResolvedID = id

	params := render.Params{
		Title: rec.Title,
		Icon:  rec.Icon,
		Date:  e.opts.Now(),
		Kind:  render.KindPage,
	}
	if params.Title == "" {
		params.Title = request.TitleFromBody(rec.Body)
	}
	if o.Operation == model.OpCreateDatabase {
		params.Kind = render.KindDatabase
	}
	payload, err := renderer.Render(rec.Template, params)
	if err != nil {
		return e.fail(doc, o, state, StageRender, err)
	}
	if err := checkKind(o.Operation, payload); err != nil {
		return e.fail(doc, o, state, StageRender, err)
	}
	o.Outline = payload.Outline()

	if e.opts.DryRun {
		o.Status = model.StatusDone
		e.log.Infof("record_dry_run path=%s op=%s id=%s", doc.Path, o.Operation, id)
		return o
	}

	remoteID, err := e.dispatch(ctx, o.Operation, id, payload, params.Title != "")
	if err != nil {
		return e.fail(doc, o, state, StageDispatch, err)
	}
	o.RemoteID = remoteID

	if err := model.ValidateRecordTransition(state, model.StatusDone); err != nil {
		return e.fail(doc, o, state, StagePersist, err)
	}
	o.Status = model.StatusDone
	if err := doc.MarkDone(e.opts.Now()); err != nil {
		o.Stage, o.Err = StagePersist, err
		e.log.Errorf("persist_failed path=%s error=%v", doc.Path, err)
		return o
	}
	o = e.save(doc, o)
	if o.Persisted {
		e.log.Infof("record_done path=%s op=%s id=%s remote_id=%s", doc.Path, o.Operation, id, remoteID)
	}
	return o
}

func (e *Engine) fail(doc *request.Document, o Outcome, state model.Status, stage Stage, err error) Outcome {
	if terr := model.ValidateRecordTransition(state, model.StatusError); terr != nil {
		err = errors.Join(err, terr)
	}
	o.Status, o.Stage, o.Err = model.StatusError, stage, err
	e.log.Warnf("record_failed path=%s stage=%s error=%v", doc.Path, stage, err)
	return e.persist(doc, o)
}

// persist writes an error outcome into the document.
func (e *Engine) persist(doc *request.Document, o Outcome) Outcome {
	if e.opts.DryRun {
		return o
	}
	if err := doc.MarkError(o.Message()); err != nil {
		e.log.Errorf("persist_failed path=%s error=%v", doc.Path, err)
		return o
	}
	return e.save(doc, o)
}

func (e *Engine) save(doc *request.Document, o Outcome) Outcome {
	if err := doc.Save(); err != nil {
		e.log.Errorf("persist_failed path=%s error=%v", doc.Path, err)
		if o.Err == nil {
			o.Stage, o.Err = StagePersist, err
		}
		return o
	}
	o.Persisted = true
	return o
}

func checkKind(op model.Operation, p *render.Payload) error {
	want := render.KindPage
	if op == model.OpCreateDatabase {
		want = render.KindDatabase
	}
	if p.Kind != want {
		return fmt.Errorf("%w: template %q renders a %s, %s needs a %s",
			errKindMismatch, p.Template, p.Kind, op, want)
	}
	return nil
}

// dispatch routes the payload to the remote operation. keepTitle controls
// whether update-page sends the title property.
func (e *Engine) dispatch(ctx context.Context, op model.Operation, id string, p *render.Payload, keepTitle bool) (string, error) {
	if e.opts.DispatchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.DispatchTimeout)
		defer cancel()
	}

	switch op {
	case model.OpCreatePage:
		obj, err := e.dispatcher.CreatePage(ctx, id, p)
		if err != nil {
			return "", err
		}
		return obj.ID, nil
	case model.OpCreateDatabase:
		obj, err := e.dispatcher.CreateDatabase(ctx, id, p)
		if err != nil {
			return "", err
		}
		return obj.ID, nil
	case model.OpUpdatePage:
		props := p.Properties
		if !keepTitle {
			props = withoutTitle(props)
		}
		if len(props) == 0 {
			return "", fmt.Errorf("update-page: %w", errNothingToDo)
		}
		obj, err := e.dispatcher.UpdatePage(ctx, id, props)
		if err != nil {
			return "", err
		}
		return obj.ID, nil
	case model.OpAppendBlocks:
		if len(p.Children) == 0 {
			return "", fmt.Errorf("append-blocks: %w", errNothingToDo)
		}
		if _, err := e.dispatcher.AppendBlocks(ctx, id, p.Children); err != nil {
			return "", err
		}
		return id, nil
	default:
		return "", fmt.Errorf("unsupported operation %q", op)
	}
}

// withoutTitle drops title-typed properties so an untitled update does not
// rename the page.
func withoutTitle(props map[string]any) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		if m, ok := v.(map[string]any); ok {
			if _, isTitle := m["title"]; isTitle {
				continue
			}
		}
		out[k] = v
	}
	return out
}
