package template

import (
	"bytes"
	"fmt"
	"sync"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// Engine renders Go text/template strings with the sprig function set.
//
// Parsed templates are cached by source text, so rendering the same daemon
// argument or message template for every instance parses it once.
type Engine struct {
	mu    sync.Mutex
	cache map[string]*template.Template
}

// New creates a new template engine
func New() *Engine {
	return &Engine{
		cache: make(map[string]*template.Template),
	}
}

// Parse compiles text, reporting syntax errors without rendering.
func (e *Engine) Parse(text string) error {
	_, err := e.lookup(text)
	return err
}

// Render executes text against context. Referencing a key missing from
// context is an error.
func (e *Engine) Render(text string, context map[string]interface{}) (string, error) {
	tmpl, err := e.lookup(text)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, context); err != nil {
		return "", fmt.Errorf("failed to render template %q: %w", text, err)
	}
	return buf.String(), nil
}

// RenderAll renders every entry of texts with the same context.
func (e *Engine) RenderAll(texts []string, context map[string]interface{}) ([]string, error) {
	out := make([]string, 0, len(texts))
	for i, text := range texts {
		rendered, err := e.Render(text, context)
		if err != nil {
			return nil, fmt.Errorf("error at index %d: %w", i, err)
		}
		out = append(out, rendered)
	}
	return out, nil
}

func (e *Engine) lookup(text string) (*template.Template, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if tmpl, ok := e.cache[text]; ok {
		return tmpl, nil
	}

	tmpl, err := template.New("botherd").
		Funcs(sprig.TxtFuncMap()).
		Option("missingkey=error").
		Parse(text)
	if err != nil {
		return nil, fmt.Errorf("invalid template %q: %w", text, err)
	}
	e.cache[text] = tmpl
	return tmpl, nil
}
