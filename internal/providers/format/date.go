package format

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/locales"
)

// Date and time styles
const (
	StyleShort  = "short"
	StyleMedium = "medium"
	StyleLong   = "long"
	StyleFull   = "full"
)

// dateFormatter renders one of the four CLDR date or time lengths of a
// locale
type dateFormatter struct {
	styles   map[string]func(time.Time) string
	location *time.Location
}

func newDateFormatter(trans locales.Translator, loc *time.Location) *dateFormatter {
	return &dateFormatter{
		styles: map[string]func(time.Time) string{
			StyleShort:  trans.FmtDateShort,
			StyleMedium: trans.FmtDateMedium,
			StyleLong:   trans.FmtDateLong,
			StyleFull:   trans.FmtDateFull,
		},
		location: loc,
	}
}

func newTimeFormatter(trans locales.Translator, loc *time.Location) *dateFormatter {
	return &dateFormatter{
		styles: map[string]func(time.Time) string{
			StyleShort:  trans.FmtTimeShort,
			StyleMedium: trans.FmtTimeMedium,
			StyleLong:   trans.FmtTimeLong,
			StyleFull:   trans.FmtTimeFull,
		},
		location: loc,
	}
}

func (f *dateFormatter) format(t time.Time, style string) (string, error) {
	if style == "" {
		style = StyleShort
	}
	fn, ok := f.styles[style]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidStyle, style)
	}
	return fn(t.In(f.location)), nil
}

// ParseDate interprets v the way a JavaScript Date constructor would:
// time.Time values pass through, numbers are epoch milliseconds, strings
// are ISO 8601 dates or datetimes.
func ParseDate(v interface{}) (time.Time, error) {
	switch d := v.(type) {
	case time.Time:
		return d, nil
	case *time.Time:
		if d != nil {
			return *d, nil
		}
	case int:
		return time.UnixMilli(int64(d)), nil
	case int64:
		return time.UnixMilli(d), nil
	case float64:
		if !math.IsNaN(d) && !math.IsInf(d, 0) {
			return time.UnixMilli(int64(d)), nil
		}
	case json.Number:
		if f, err := d.Float64(); err == nil {
			return time.UnixMilli(int64(f)), nil
		}
	case string:
		return parseDateString(d)
	}
	return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidDate, v)
}

var dateStringLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

func parseDateString(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateStringLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}
