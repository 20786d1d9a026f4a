package distribution

import (
	"bytes"
	"fmt"
	"text/template"
)

// Built-in offer templates, keyed by template key. Vars come from the
// dispatcher: subject_type, subject_id, attempt_order.
var builtinTemplates = map[string]string{
	"lead_offer":  "Novo {{.subject_type}} #{{.subject_id}} disponível. Responda 1 para aceitar ou 2 para recusar.",
	"visit_offer": "Nova visita #{{.subject_id}} disponível. Responda 1 para aceitar ou 2 para recusar.",
}

// DefaultRenderer renders offer text from the built-in template set. An
// unknown key falls back to the lead_offer template rather than failing
// the dispatch.
type DefaultRenderer struct{}

// Render implements TemplateRenderer.
func (DefaultRenderer) Render(templateKey string, vars map[string]string) (string, error) {
	text, ok := builtinTemplates[templateKey]
	if !ok {
		text = builtinTemplates["lead_offer"]
	}
	tmpl, err := template.New(templateKey).Parse(text)
	if err != nil {
		return "", fmt.Errorf("distribution: parse template %q: %w", templateKey, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("distribution: render template %q: %w", templateKey, err)
	}
	return buf.String(), nil
}
