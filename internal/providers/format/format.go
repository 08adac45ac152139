// Package format renders dates, times, relative times, numbers and
// currency amounts for a locale. Calendar text and plural rules come from
// the CLDR tables in go-playground/locales, digits and currency symbols
// from x/text. Formatters are built once per (locale, kind) and cached for
// the life of the Registry.
package format

import (
	"errors"
	"sync"
	"time"

	ut "github.com/go-playground/universal-translator"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidNumber   = errors.New("invalid number")
	ErrInvalidCurrency = errors.New("invalid currency")
	ErrInvalidStyle    = errors.New("invalid style")
)

// DefaultLocale is used when a locale string cannot be parsed
const DefaultLocale = "en-US"

// Kind identifies a formatter family in the cache
type Kind string

const (
	KindDate     Kind = "date"
	KindTime     Kind = "time"
	KindAgo      Kind = "ago"
	KindNumber   Kind = "number"
	KindCurrency Kind = "currency"
)

type cacheKey struct {
	locale string
	kind   Kind
}

// Registry caches formatters per (locale, kind). Safe for concurrent use.
type Registry struct {
	cache       sync.Map
	translators *ut.UniversalTranslator
	location    *time.Location
	now         func() time.Time
}

// loadTranslators builds the shared CLDR translators once. The phrase
// tables are static, so an error here is a bug.
var loadTranslators = sync.OnceValues(newTranslators)

// Option configures a Registry
type Option func(*Registry)

// WithLocation renders dates and times in loc instead of time.Local
func WithLocation(loc *time.Location) Option {
	return func(r *Registry) { r.location = loc }
}

// WithClock overrides the clock used by Ago
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// NewRegistry creates an empty formatter cache
func NewRegistry(opts ...Option) *Registry {
	uni, err := loadTranslators()
	if err != nil {
		panic("format: " + err.Error())
	}
	r := &Registry{translators: uni, location: time.Local, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Len returns how many formatters have been built
func (r *Registry) Len() int {
	n := 0
	r.cache.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}

// For returns a view of the registry bound to one locale
func (r *Registry) For(locale string) *Locale {
	return &Locale{registry: r, name: locale}
}

func (r *Registry) load(locale string, kind Kind) interface{} {
	key := cacheKey{locale: locale, kind: kind}
	if v, ok := r.cache.Load(key); ok {
		return v
	}
	v, _ := r.cache.LoadOrStore(key, r.build(locale, kind))
	return v
}

func (r *Registry) build(locale string, kind Kind) interface{} {
	tag := parseTag(locale)
	trans := translatorFor(r.translators, tag)
	switch kind {
	case KindDate:
		return newDateFormatter(trans, r.location)
	case KindTime:
		return newTimeFormatter(trans, r.location)
	case KindAgo:
		return &agoFormatter{
			trans:    trans,
			fallback: r.translators.GetFallback(),
			printer:  message.NewPrinter(tag),
		}
	case KindNumber:
		return &numberFormatter{printer: message.NewPrinter(tag)}
	case KindCurrency:
		return newCurrencyFormatter(trans, message.NewPrinter(tag), r.load(locale, KindNumber).(*numberFormatter))
	}
	panic("format: unknown kind " + string(kind))
}

func parseTag(locale string) language.Tag {
	tag, err := language.Parse(locale)
	if err != nil || tag == language.Und {
		return language.MustParse(DefaultLocale)
	}
	return tag
}

// Locale formats values for one locale
type Locale struct {
	registry *Registry
	name     string
}

// Name returns the locale string this view was created with
func (l *Locale) Name() string {
	return l.name
}

// Date formats the calendar date of t. Styles: short (default), medium,
// long, full.
func (l *Locale) Date(t time.Time, style string) (string, error) {
	return l.registry.load(l.name, KindDate).(*dateFormatter).format(t, style)
}

// Time formats the clock time of t. Styles: short (default), medium,
// long, full.
func (l *Locale) Time(t time.Time, style string) (string, error) {
	return l.registry.load(l.name, KindTime).(*dateFormatter).format(t, style)
}

// Ago formats t relative to now. Styles: short (default), long, narrow.
func (l *Locale) Ago(t time.Time, style string) (string, error) {
	return l.registry.load(l.name, KindAgo).(*agoFormatter).format(t, l.registry.now(), style)
}

// Number formats n. Notations: standard (default), compact, scientific,
// engineering.
func (l *Locale) Number(n int64, notation string) (string, error) {
	return l.registry.load(l.name, KindNumber).(*numberFormatter).format(n, notation)
}

// Currency formats an amount given in minor units of code.
func (l *Locale) Currency(minor int64, code string) (string, error) {
	return l.registry.load(l.name, KindCurrency).(*currencyFormatter).format(minor, code)
}
