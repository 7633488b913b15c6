package render

import (
	"fmt"
	"sort"
	"strings"
)

// Payload is a rendered template, ready to be sent for a target.
type Payload struct {
	Kind       Kind
	Template   string
	Title      string
	Icon       string
	Properties map[string]any
	// Children is nil for databases.
	Children []Block
}

// setTitleProperty writes Title into the page's title property, reusing a
// template-declared title column if there is one.
func (p *Payload) setTitleProperty() {
	key := "title"
	for k, v := range p.Properties {
		if m, ok := v.(map[string]any); ok {
			if _, ok := m["title"]; ok {
				key = k
				break
			}
		}
	}
	p.Properties[key] = map[string]any{"title": richText(p.Title)}
}

// PageRequest is the body of a create-page call under parentID.
func (p *Payload) PageRequest(parentID string) map[string]any {
	req := map[string]any{
		"parent":     map[string]any{"page_id": parentID},
		"properties": p.Properties,
	}
	if len(p.Children) > 0 {
		req["children"] = p.Children
	}
	if p.Icon != "" {
		req["icon"] = emoji(p.Icon)
	}
	return req
}

// DatabaseRequest is the body of a create-database call under parentID.
func (p *Payload) DatabaseRequest(parentID string) map[string]any {
	req := map[string]any{
		"parent":     map[string]any{"page_id": parentID},
		"title":      richText(p.Title),
		"properties": p.Properties,
	}
	if p.Icon != "" {
		req["icon"] = emoji(p.Icon)
	}
	return req
}

// Outline is a line-per-element summary of the payload, used for
// diagnostics and golden tests.
func (p *Payload) Outline() []string {
	lines := []string{fmt.Sprintf("%s: %s", p.Kind, p.Title)}
	if p.Icon != "" {
		lines = append(lines, "icon: "+p.Icon)
	}

	keys := make([]string, 0, len(p.Properties))
	for k := range p.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("property: %s (%s)", k, propertyType(p.Properties[k])))
	}

	for _, b := range p.Children {
		lines = append(lines, outlineBlock(b, "")...)
	}
	return lines
}

func propertyType(v any) string {
	m, ok := v.(map[string]any)
	if !ok {
		return "?"
	}
	if t, ok := m["type"].(string); ok {
		return t
	}
	if len(m) == 1 {
		for k := range m {
			return k
		}
	}
	return "?"
}

func outlineBlock(b Block, indent string) []string {
	kind, _ := b["type"].(string)
	body, _ := b[kind].(map[string]any)

	switch kind {
	case "table":
		lines := []string{fmt.Sprintf("%stable: %vx%d", indent, body["table_width"], countChildren(body))}
		children, _ := body["children"].([]any)
		for _, c := range children {
			if row, ok := c.(Block); ok {
				lines = append(lines, outlineBlock(row, indent+"  ")...)
			}
		}
		return lines
	case "table_row":
		cells, _ := body["cells"].([]any)
		texts := make([]string, 0, len(cells))
		for _, c := range cells {
			texts = append(texts, plainText(c))
		}
		return []string{indent + "table_row: " + strings.Join(texts, " | ")}
	}

	text := plainText(body["rich_text"])
	if kind == "to_do" {
		mark := "[ ]"
		if checked, _ := body["checked"].(bool); checked {
			mark = "[x]"
		}
		text = strings.TrimSpace(mark + " " + text)
	}
	if text == "" {
		return []string{indent + kind}
	}
	return []string{indent + kind + ": " + text}
}

func countChildren(body map[string]any) int {
	children, _ := body["children"].([]any)
	return len(children)
}

func plainText(rich any) string {
	parts, _ := rich.([]any)
	var sb strings.Builder
	for _, part := range parts {
		m, _ := part.(map[string]any)
		text, _ := m["text"].(map[string]any)
		content, _ := text["content"].(string)
		sb.WriteString(content)
	}
	return sb.String()
}
