package yaml

import (
	"bytes"
	"errors"
	"fmt"

	yamlv3 "gopkg.in/yaml.v3"
)

var (
	ErrNoFrontMatter    = errors.New("document does not start with a --- header")
	ErrUnterminated     = errors.New("front matter is not terminated by ---")
	ErrHeaderNotMapping = errors.New("front matter is not a key/value mapping")
)

// FrontMatter is a document split into its YAML header and the untouched
// remainder. Open and Close hold the delimiter lines byte-for-byte.
type FrontMatter struct {
	Open   []byte
	Header []byte
	Close  []byte
	Body   []byte

	doc *yamlv3.Node
}

// SplitFrontMatter splits content of the form
//
//	---
//	key: value
//	---
//	body...
//
// The closing delimiter may also be "...". Body is everything after the
// closing line, returned as-is.
func SplitFrontMatter(content []byte) (*FrontMatter, error) {
	first, rest, ok := cutLine(content)
	if !ok && len(first) == 0 {
		return nil, ErrNoFrontMatter
	}
	if string(trimEOL(first)) != "---" {
		return nil, ErrNoFrontMatter
	}

	offset := len(first)
	for len(rest) > 0 {
		line, next, _ := cutLine(rest)
		trimmed := string(trimEOL(line))
		if trimmed == "---" || trimmed == "..." {
			headerEnd := offset
			return &FrontMatter{
				Open:   content[:len(first)],
				Header: content[len(first):headerEnd],
				Close:  content[headerEnd : headerEnd+len(line)],
				Body:   content[headerEnd+len(line):],
			}, nil
		}
		offset += len(line)
		rest = next
	}
	return nil, ErrUnterminated
}

// Bytes reassembles the document.
func (fm *FrontMatter) Bytes() []byte {
	out := make([]byte, 0, len(fm.Open)+len(fm.Header)+len(fm.Close)+len(fm.Body))
	out = append(out, fm.Open...)
	out = append(out, fm.Header...)
	out = append(out, fm.Close...)
	out = append(out, fm.Body...)
	return out
}

// HeaderNode parses the header into a mapping node, keeping key order and
// comments. An empty header yields an empty mapping.
func (fm *FrontMatter) HeaderNode() (*yamlv3.Node, error) {
	var doc yamlv3.Node
	if err := yamlv3.Unmarshal(fm.Header, &doc); err != nil {
		return nil, fmt.Errorf("parse header: %w", err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return &yamlv3.Node{Kind: yamlv3.MappingNode, Tag: "!!map"}, nil
	}
	root := doc.Content[0]
	if root.Kind != yamlv3.MappingNode {
		return nil, ErrHeaderNotMapping
	}
	fm.doc = &doc
	return root, nil
}

// SetHeader re-encodes mapping as the header. Open, Close and Body are not
// touched. When mapping came from HeaderNode the enclosing document is
// encoded so document-level comments survive. Keys, values, order and
// comments are kept; the encoder's own layout replaces the author's spacing
// before comments, blank lines between keys and folded scalar wrapping.
func (fm *FrontMatter) SetHeader(mapping *yamlv3.Node) error {
	var node any = mapping
	if fm.doc != nil && len(fm.doc.Content) > 0 && fm.doc.Content[0] == mapping {
		node = fm.doc
	}

	var buf bytes.Buffer
	enc := yamlv3.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	header := buf.Bytes()
	if len(mapping.Content) == 0 {
		header = nil
	}
	fm.Header = header
	return nil
}

// SetString sets key to a string value in mapping, replacing the value in
// place when the key exists and appending it otherwise.
func SetString(mapping *yamlv3.Node, key, value string, style yamlv3.Style) {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			v := mapping.Content[i+1]
			lineComment := v.LineComment
			*v = yamlv3.Node{Kind: yamlv3.ScalarNode, Tag: "!!str", Value: value, Style: style, LineComment: lineComment}
			return
		}
	}
	mapping.Content = append(mapping.Content,
		&yamlv3.Node{Kind: yamlv3.ScalarNode, Tag: "!!str", Value: key},
		&yamlv3.Node{Kind: yamlv3.ScalarNode, Tag: "!!str", Value: value, Style: style},
	)
}

// ValidateFrontMatter accepts documents whose header is a YAML mapping.
func ValidateFrontMatter(content []byte) error {
	fm, err := SplitFrontMatter(content)
	if err != nil {
		return err
	}
	_, err = fm.HeaderNode()
	return err
}

// cutLine returns the first line including its terminator, and the rest.
// ok is false when no newline was found.
func cutLine(b []byte) (line, rest []byte, ok bool) {
	i := bytes.IndexByte(b, '\n')
	if i < 0 {
		return b, nil, false
	}
	return b[:i+1], b[i+1:], true
}

func trimEOL(line []byte) []byte {
	line = bytes.TrimSuffix(line, []byte("\n"))
	line = bytes.TrimSuffix(line, []byte("\r"))
	return bytes.TrimRight(line, " \t")
}
