// Package request reads and rewrites request documents: Markdown files whose
// YAML front matter carries the request record. Rewrites touch only the
// outcome keys of the header; the body is kept byte-for-byte.
package request

import (
	"errors"
	"fmt"
	"os"
	"time"

	yamlv3 "gopkg.in/yaml.v3"

	"github.com/msageha/docket/internal/model"
	yamlutil "github.com/msageha/docket/internal/yaml"
)

const (
	keyStatus      = "status"
	keyCompletedAt = "completed_at"
	keyError       = "error"
)

// Document is one request file held in memory between read and rewrite.
type Document struct {
	Path   string
	Record model.Record

	fm     *yamlutil.FrontMatter
	header *yamlv3.Node
	dirty  bool
}

// Load reads and parses the document at path.
func Load(path string) (*Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Parse(path, content)
}

// Parse parses content as a request document.
//
// A nil Document means the header could not be read at all and the file
// cannot be annotated. A non-nil Document together with a
// *model.MalformedRecordError means the header is a mapping but its fields
// are invalid; such documents can still be marked as failed.
func Parse(path string, content []byte) (*Document, error) {
	fm, err := yamlutil.SplitFrontMatter(content)
	if err != nil {
		return nil, &model.MalformedRecordError{Path: path, Err: err}
	}
	header, err := fm.HeaderNode()
	if err != nil {
		return nil, &model.MalformedRecordError{Path: path, Err: err}
	}

	doc := &Document{Path: path, fm: fm, header: header}
	if err := header.Decode(&doc.Record); err != nil {
		doc.Record = model.Record{Status: scalarValue(header, keyStatus)}
		doc.Record.Body = string(fm.Body)
		return doc, &model.MalformedRecordError{Path: path, Reason: "decode header", Err: err}
	}
	doc.Record.Body = string(fm.Body)

	if err := doc.Record.Validate(); err != nil {
		var malformed *model.MalformedRecordError
		if errors.As(err, &malformed) {
			malformed.Path = path
		}
		return doc, err
	}
	return doc, nil
}

// MarkDone records a successful pass. Only pending records can complete.
func (d *Document) MarkDone(at time.Time) error {
	if d.Record.Status != model.StatusPending {
		return fmt.Errorf("mark done %s: status is %q, not pending", d.Path, d.Record.Status)
	}
	ts := at.UTC().Format(time.RFC3339)
	yamlutil.SetString(d.header, keyStatus, string(model.StatusDone), 0)
	yamlutil.SetString(d.header, keyCompletedAt, ts, yamlv3.DoubleQuotedStyle)
	d.Record.Status = model.StatusDone
	d.Record.CompletedAt = &ts
	d.dirty = true
	return nil
}

// MarkError records a failed pass with the originating message. Records
// already done or failed are never rewritten.
func (d *Document) MarkError(msg string) error {
	if model.IsTerminal(d.Record.Status) {
		return fmt.Errorf("mark error %s: status is already %q", d.Path, d.Record.Status)
	}
	yamlutil.SetString(d.header, keyStatus, string(model.StatusError), 0)
	yamlutil.SetString(d.header, keyError, msg, yamlv3.DoubleQuotedStyle)
	d.Record.Status = model.StatusError
	d.Record.Error = &msg
	d.dirty = true
	return nil
}

// Bytes renders the document as it would be written.
func (d *Document) Bytes() ([]byte, error) {
	if d.dirty {
		if err := d.fm.SetHeader(d.header); err != nil {
			return nil, err
		}
	}
	return d.fm.Bytes(), nil
}

// Save atomically rewrites the file if the record changed.
func (d *Document) Save() error {
	if !d.dirty {
		return nil
	}
	content, err := d.Bytes()
	if err != nil {
		return fmt.Errorf("render %s: %w", d.Path, err)
	}
	if err := yamlutil.AtomicWriteRaw(d.Path, content, yamlutil.ValidateFrontMatter); err != nil {
		return fmt.Errorf("write %s: %w", d.Path, err)
	}
	d.dirty = false
	return nil
}

func scalarValue(mapping *yamlv3.Node, key string) model.Status {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key && mapping.Content[i+1].Kind == yamlv3.ScalarNode {
			return model.Status(mapping.Content[i+1].Value)
		}
	}
	return ""
}
