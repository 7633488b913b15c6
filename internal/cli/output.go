package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

// parseJSONFlag decodes a flag holding a JSON value.
func parseJSONFlag(name, value string, dst any) error {
	if err := json.Unmarshal([]byte(value), dst); err != nil {
		return fmt.Errorf("--%s: invalid JSON: %w", name, err)
	}
	return nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
