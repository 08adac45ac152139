package template

import (
	"fmt"
	htmltemplate "html/template"
	"reflect"
	"strconv"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/GriffinCanCode/widgetkit/internal/providers/format"
	"github.com/GriffinCanCode/widgetkit/internal/shared/types"
)

// HelperError reports a helper called with bad arguments
type HelperError struct {
	Helper string
	Msg    string
	Err    error
}

func (e *HelperError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", e.Helper, e.Msg, e.Err)
	}
	return e.Helper + " " + e.Msg
}

func (e *HelperError) Unwrap() error { return e.Err }

func helperErr(helper, msg string, err error) error {
	return &HelperError{Helper: helper, Msg: msg, Err: err}
}

func (e *Engine) helpers(locale string) htmltemplate.FuncMap {
	return htmltemplate.FuncMap(e.funcs(locale))
}

func (e *Engine) textHelpers(locale string) texttemplate.FuncMap {
	return texttemplate.FuncMap(e.funcs(locale))
}

func (e *Engine) funcs(locale string) map[string]interface{} {
	l := e.formats.For(locale)
	return map[string]interface{}{
		"formatDate":     dateHelper("formatDate", l.Date),
		"formatTime":     dateHelper("formatTime", l.Time),
		"formatAgo":      dateHelper("formatAgo", l.Ago),
		"formatNumber":   numberHelper(l),
		"formatCurrency": currencyHelper(l),
		"eq":             eqHelper,
		"in":             inHelper,
		"repeat":         repeatHelper,
		"renderChat":     e.renderChat,
		"chatToText":     chatToTextHelper,
	}
}

// ============================================================================
// Formatting helpers
// ============================================================================

func dateHelper(name string, fn func(t time.Time, style string) (string, error)) func(interface{}, ...string) (string, error) {
	return func(raw interface{}, style ...string) (string, error) {
		if len(style) > 1 {
			return "", helperErr(name, "only takes one or two arguments", nil)
		}
		t, err := format.ParseDate(raw)
		if err != nil {
			return "", helperErr(name, "received an invalid date", err)
		}
		s, err := fn(t, first(style))
		if err != nil {
			return "", helperErr(name, "failed", err)
		}
		return s, nil
	}
}

func numberHelper(l *format.Locale) func(interface{}, ...string) (string, error) {
	return func(raw interface{}, notation ...string) (string, error) {
		if len(notation) > 1 {
			return "", helperErr("formatNumber", "only takes one or two arguments", nil)
		}
		n, err := format.ParseInt(raw)
		if err != nil {
			return "", helperErr("formatNumber", "received an invalid number", err)
		}
		s, err := l.Number(n, first(notation))
		if err != nil {
			return "", helperErr("formatNumber", "failed", err)
		}
		return s, nil
	}
}

func currencyHelper(l *format.Locale) func(...interface{}) (string, error) {
	return func(args ...interface{}) (string, error) {
		if len(args) != 2 {
			return "", helperErr("formatCurrency", "takes two arguments", nil)
		}
		n, err := format.ParseInt(args[0])
		if err != nil {
			return "", helperErr("formatCurrency", "received an invalid number", err)
		}
		code, ok := args[1].(string)
		if !ok {
			return "", helperErr("formatCurrency", "received an invalid currency", format.ErrInvalidCurrency)
		}
		s, err := l.Currency(n, code)
		if err != nil {
			return "", helperErr("formatCurrency", "received an invalid currency", err)
		}
		return s, nil
	}
}

func first(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}

// ============================================================================
// Conditional and utility helpers
// ============================================================================

// eqHelper compares with loose equality so a number in state matches a
// numeric or string literal in the template.
func eqHelper(args ...interface{}) (bool, error) {
	if len(args) != 2 {
		return false, helperErr("eq", "requires exactly two arguments", nil)
	}
	return looseEqual(args[0], args[1]), nil
}

// inHelper reports whether value equals any of the options
func inHelper(value interface{}, options ...interface{}) (bool, error) {
	if len(options) == 0 {
		return false, helperErr("in", "requires at least one option", nil)
	}
	for _, opt := range options {
		if strictEqual(value, opt) {
			return true, nil
		}
	}
	return false, nil
}

// repeatHelper returns 0..n-1 for use with range. Non-positive counts
// yield nothing.
func repeatHelper(raw interface{}) ([]int, error) {
	n, err := format.ParseInt(raw)
	if err != nil {
		return nil, helperErr("repeat", "received an invalid number", err)
	}
	if n <= 0 {
		return []int{}, nil
	}
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out, nil
}

func chatToTextHelper(raw interface{}) (string, error) {
	nodes, err := types.DecodeChatNodes(raw)
	if err != nil {
		return "", helperErr("chatToText", "received invalid chat nodes", err)
	}
	return types.ChatToText(nodes), nil
}

// ============================================================================
// Equality
// ============================================================================

func toNumber(v interface{}) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

func strictEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	af, aNum := toNumber(a)
	bf, bNum := toNumber(b)
	if aNum && bNum {
		return af == bf
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}

func looseEqual(a, b interface{}) bool {
	if strictEqual(a, b) {
		return true
	}
	if a == nil || b == nil {
		return false
	}

	af, aok := looseNumber(a)
	bf, bok := looseNumber(b)
	_, aStr := a.(string)
	_, bStr := b.(string)
	if aok && bok && !(aStr && bStr) {
		return af == bf
	}
	return false
}

func looseNumber(v interface{}) (float64, bool) {
	if f, ok := toNumber(v); ok {
		return f, true
	}
	switch x := v.(type) {
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, true
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	}
	return 0, false
}
