package render

import (
	"fmt"
)

// Block is one Notion block object.
type Block = map[string]any

type blockFunc func(b BlockSpec, sub replacer) []Block

// blockKinds maps each descriptor tag to its renderer.
var blockKinds = map[string]blockFunc{
	"heading":   renderHeading,
	"paragraph": renderParagraph,
	"bullets":   renderBullets,
	"checklist": renderChecklist,
	"table":     renderTable,
	"subpage":   renderSubpage,
	"callout":   renderCallout,
	"divider":   renderDivider,
	"quote":     renderQuote,
}

func (b BlockSpec) validate() error {
	if _, ok := blockKinds[b.Type]; !ok {
		return fmt.Errorf("unknown block type %q", b.Type)
	}
	switch b.Type {
	case "heading":
		if b.Level < 0 || b.Level > 3 {
			return fmt.Errorf("heading level must be 1-3, got %d", b.Level)
		}
	case "table":
		if len(b.Rows) == 0 {
			return fmt.Errorf("table needs at least one row")
		}
		width := len(b.Rows[0])
		if width == 0 {
			return fmt.Errorf("table rows cannot be empty")
		}
		for i, row := range b.Rows {
			if len(row) != width {
				return fmt.Errorf("table row %d has %d cells, want %d", i, len(row), width)
			}
		}
	}
	return nil
}

func (b BlockSpec) render(sub replacer) []Block {
	return blockKinds[b.Type](b, sub)
}

func richText(content string) []any {
	if content == "" {
		return []any{}
	}
	return []any{
		map[string]any{
			"type": "text",
			"text": map[string]any{"content": content},
		},
	}
}

func block(kind string, body map[string]any) Block {
	return Block{
		"object": "block",
		"type":   kind,
		kind:     body,
	}
}

func headingBlock(level int, text string) Block {
	if level == 0 {
		level = 2
	}
	return block(fmt.Sprintf("heading_%d", level), map[string]any{
		"rich_text": richText(text),
	})
}

func renderHeading(b BlockSpec, sub replacer) []Block {
	return []Block{headingBlock(b.Level, sub(b.Text))}
}

func renderParagraph(b BlockSpec, sub replacer) []Block {
	return []Block{block("paragraph", map[string]any{"rich_text": richText(sub(b.Text))})}
}

func renderBullets(b BlockSpec, sub replacer) []Block {
	out := make([]Block, 0, len(b.Items))
	for _, item := range b.Items {
		out = append(out, block("bulleted_list_item", map[string]any{
			"rich_text": richText(sub(item)),
		}))
	}
	return out
}

func renderChecklist(b BlockSpec, sub replacer) []Block {
	out := make([]Block, 0, len(b.Items))
	for _, item := range b.Items {
		out = append(out, block("to_do", map[string]any{
			"rich_text": richText(sub(item)),
			"checked":   false,
		}))
	}
	return out
}

func renderTable(b BlockSpec, sub replacer) []Block {
	rows := make([]any, 0, len(b.Rows))
	for _, row := range b.Rows {
		cells := make([]any, 0, len(row))
		for _, cell := range row {
			cells = append(cells, richText(sub(cell)))
		}
		rows = append(rows, block("table_row", map[string]any{"cells": cells}))
	}
	return []Block{block("table", map[string]any{
		"table_width":       len(b.Rows[0]),
		"has_column_header": b.Header,
		"has_row_header":    false,
		"children":          rows,
	})}
}

// Child pages cannot be created through a parent's children list, so a
// subpage renders as a marked paragraph the user can convert.
func renderSubpage(b BlockSpec, sub replacer) []Block {
	title := sub(b.Title)
	if title == "" {
		title = sub(b.Text)
	}
	return []Block{block("paragraph", map[string]any{
		"rich_text": []any{
			map[string]any{
				"type":        "text",
				"text":        map[string]any{"content": "📄 " + title},
				"annotations": map[string]any{"italic": true},
			},
		},
	})}
}

func renderCallout(b BlockSpec, sub replacer) []Block {
	body := map[string]any{"rich_text": richText(sub(b.Text))}
	if icon := sub(b.Icon); icon != "" {
		body["icon"] = emoji(icon)
	}
	return []Block{block("callout", body)}
}

func renderDivider(BlockSpec, replacer) []Block {
	return []Block{block("divider", map[string]any{})}
}

func renderQuote(b BlockSpec, sub replacer) []Block {
	return []Block{block("quote", map[string]any{"rich_text": richText(sub(b.Text))})}
}

func emoji(e string) map[string]any {
	return map[string]any{"type": "emoji", "emoji": e}
}
