// Package templates embeds the builtin page templates and the workspace
// scaffold written by docket init.
package templates

import "embed"

//go:embed builtin scaffold
var FS embed.FS

// BuiltinDir is the directory inside FS holding builtin templates.
const BuiltinDir = "builtin"

// ScaffoldDir is the directory inside FS holding workspace files.
const ScaffoldDir = "scaffold"
