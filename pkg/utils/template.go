package utils

import (
	"bytes"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// NewTemplate parses tmpl with the sprig text function set available
func NewTemplate(name, tmpl string) (*template.Template, error) {
	return template.New(name).Funcs(sprig.TxtFuncMap()).Parse(tmpl)
}

// Execute renders a parsed template into a string
func Execute(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderTemplate parses and renders tmpl in one step
func RenderTemplate(tmpl string, data any) (string, error) {
	t, err := NewTemplate("", tmpl)
	if err != nil {
		return "", err
	}
	return Execute(t, data)
}
