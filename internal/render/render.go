// Package render implements the deterministic {{key}} template expansion of
// spec.md §4.4. Templates are a trivial in-process map per spec.md §1's
// non-goals (no template storage); stdlib regexp is sufficient for this and
// no third-party templating library appears anywhere in the example corpus
// (see DESIGN.md).
package render

import (
	"fmt"
	"regexp"
)

var placeholder = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

const genericTemplate = "Hello,\n\n{{body}}\n\nThanks."

// templates is the trivial in-process map spec.md §1 calls for.
var templates = map[string]string{
	"welcome_v1": "Hi {{name}}, welcome! Confirm at {{link}}.",
	"reset_v1":   "Hi {{name}}, reset your password here: {{link}}.",
	"alert_v1":   "{{title}}: {{body}}",
}

// Renderer expands template_code against variables. It has no I/O and no
// failure mode beyond malformed template syntax, which cannot happen for
// the in-process map above and is therefore not represented as an error
// return — a future template source with user-supplied syntax would need
// one.
type Renderer struct{}

// New builds a Renderer.
func New() *Renderer {
	return &Renderer{}
}

// Render expands templateCode against variables. Unknown keys expand to the
// empty string; an unknown templateCode falls back to a generic template.
func (r *Renderer) Render(templateCode string, variables map[string]interface{}) string {
	tpl, ok := templates[templateCode]
	if !ok {
		tpl = genericTemplate
	}

	return placeholder.ReplaceAllStringFunc(tpl, func(match string) string {
		key := placeholder.FindStringSubmatch(match)[1]

		val, ok := variables[key]
		if !ok || val == nil {
			return ""
		}

		return fmt.Sprintf("%v", val)
	})
}
