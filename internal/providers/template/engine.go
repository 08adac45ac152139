// Package template compiles widget templates into render functions.
//
// Templates use Go's html/template syntax with widget helpers added
// (formatDate, formatTime, formatAgo, formatNumber, formatCurrency, eq, in,
// repeat, renderChat, chatToText). Compilation is memoized by template
// text for the life of the Engine. Locale-bound helper sets are attached
// to a per-locale clone of each compiled template, also memoized.
//
// Rendering differs from a logic-less template language in one visible
// way: inside {{range}} the dot is the element, so reach the widget state
// through $ (e.g. {{range repeat 3}}{{$.name}}{{end}}).
package template

import (
	"bytes"
	htmltemplate "html/template"
	"sync"
	texttemplate "text/template"

	"github.com/microcosm-cc/bluemonday"

	"github.com/GriffinCanCode/widgetkit/internal/providers/format"
	"github.com/GriffinCanCode/widgetkit/internal/shared/types"
)

// RenderFunc turns a widget state into markup wrapped in a single <div>
type RenderFunc func(state interface{}) (string, error)

// Engine compiles and caches widget templates
type Engine struct {
	formats       *format.Registry
	policy        *bluemonday.Policy
	defaultLocale string

	mu   sync.Mutex
	html map[string]*Template
	css  map[string]*Stylesheet
}

// Option configures an Engine
type Option func(*Engine)

// WithFormats shares a formatter registry with the engine
func WithFormats(r *format.Registry) Option {
	return func(e *Engine) { e.formats = r }
}

// WithDefaultLocale sets the locale used when settings carry none
func WithDefaultLocale(locale string) Option {
	return func(e *Engine) { e.defaultLocale = locale }
}

// NewEngine creates an empty engine
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		policy:        chatPolicy(),
		defaultLocale: format.DefaultLocale,
		html:          make(map[string]*Template),
		css:           make(map[string]*Stylesheet),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.formats == nil {
		e.formats = format.NewRegistry()
	}
	return e
}

// Template is a compiled widget template
type Template struct {
	engine *Engine
	base   *htmltemplate.Template

	mu    sync.Mutex
	bound map[string]*htmltemplate.Template
}

// Compile parses text, returning the cached result when the same text was
// compiled before. Parse failures are not cached.
func (e *Engine) Compile(text string) (*Template, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if t, ok := e.html[text]; ok {
		return t, nil
	}

	base, err := htmltemplate.New("widget").
		Option("missingkey=default").
		Funcs(e.helpers(e.defaultLocale)).
		Parse(text)
	if err != nil {
		return nil, err
	}

	t := &Template{engine: e, base: base, bound: make(map[string]*htmltemplate.Template)}
	e.html[text] = t
	return t, nil
}

// Len returns how many distinct templates are cached
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.html)
}

// forLocale returns a clone of the template whose helpers format for locale.
// The base template is never executed so it stays cloneable.
func (t *Template) forLocale(locale string) (*htmltemplate.Template, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if b, ok := t.bound[locale]; ok {
		return b, nil
	}
	clone, err := t.base.Clone()
	if err != nil {
		return nil, err
	}
	clone.Funcs(t.engine.helpers(locale))
	t.bound[locale] = clone
	return clone, nil
}

// Renderer compiles text and returns a render function bound to assets
// and settings. The locale comes from settings["locale"].
func (e *Engine) Renderer(text string, assets types.Assets, settings types.Settings) (RenderFunc, error) {
	t, err := e.Compile(text)
	if err != nil {
		return nil, err
	}
	tmpl, err := t.forLocale(settings.Locale(e.defaultLocale))
	if err != nil {
		return nil, err
	}

	return func(state interface{}) (string, error) {
		var buf bytes.Buffer
		buf.WriteString("<div>")
		if err := tmpl.Execute(&buf, renderContext(state, assets, settings)); err != nil {
			return "", err
		}
		buf.WriteString("</div>")
		return buf.String(), nil
	}, nil
}

// renderContext shallow-copies an object state and adds assets and
// settings. Non-object states are exposed as .state.
func renderContext(state interface{}, assets types.Assets, settings types.Settings) map[string]interface{} {
	ctx := make(map[string]interface{})
	switch s := state.(type) {
	case map[string]interface{}:
		for k, v := range s {
			ctx[k] = v
		}
	case nil:
	default:
		ctx["state"] = s
	}
	ctx["assets"] = map[string]interface{}(assets)
	ctx["settings"] = map[string]interface{}(settings)
	return ctx
}

// ============================================================================
// CSS
// ============================================================================

// Stylesheet is a compiled widget stylesheet. CSS is processed as plain
// text: settings are substituted verbatim, not escaped.
type Stylesheet struct {
	engine *Engine
	base   *texttemplate.Template

	mu    sync.Mutex
	bound map[string]*texttemplate.Template
}

// CSS renders a stylesheet template against assets and settings
func (e *Engine) CSS(text string, assets types.Assets, settings types.Settings) (string, error) {
	s, err := e.compileCSS(text)
	if err != nil {
		return "", err
	}

	locale := settings.Locale(e.defaultLocale)
	s.mu.Lock()
	tmpl, ok := s.bound[locale]
	if !ok {
		tmpl, err = s.base.Clone()
		if err == nil {
			tmpl.Funcs(e.textHelpers(locale))
			s.bound[locale] = tmpl
		}
	}
	s.mu.Unlock()
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, renderContext(nil, assets, settings)); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (e *Engine) compileCSS(text string) (*Stylesheet, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if s, ok := e.css[text]; ok {
		return s, nil
	}
	base, err := texttemplate.New("widget.css").
		Option("missingkey=zero").
		Funcs(e.textHelpers(e.defaultLocale)).
		Parse(text)
	if err != nil {
		return nil, err
	}
	s := &Stylesheet{engine: e, base: base, bound: make(map[string]*texttemplate.Template)}
	e.css[text] = s
	return s, nil
}
