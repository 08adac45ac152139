package format

import (
	"errors"
	"fmt"
	"time"

	ut "github.com/go-playground/universal-translator"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Relative time styles
const (
	StyleNarrow = "narrow"
)

type agoFormatter struct {
	trans    ut.Translator
	fallback ut.Translator
	printer  *message.Printer
}

// format buckets the distance: under a minute in seconds, under a day in
// hours, under thirty days in days, months otherwise.
func (f *agoFormatter) format(t, now time.Time, style string) (string, error) {
	switch style {
	case "":
		style = StyleShort
	case StyleLong, StyleShort, StyleNarrow:
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStyle, style)
	}

	seconds := floorDiv(now.Sub(t).Milliseconds(), 1000)
	minutes := floorDiv(seconds, 60)
	hours := floorDiv(minutes, 60)
	days := floorDiv(hours, 24)
	months := floorDiv(days, 30)

	switch {
	case abs(seconds) < 60:
		return f.phrase(style, "second", seconds)
	case abs(hours) < 24:
		return f.phrase(style, "hour", hours)
	case abs(days) < 30:
		return f.phrase(style, "day", days)
	}
	return f.phrase(style, "month", months)
}

// phrase renders a past distance (n >= 0) or a future one (n < 0) with
// the plural form the locale picks for the amount
func (f *agoFormatter) phrase(style, unit string, n int64) (string, error) {
	key := agoKey{style: style, unit: unit, future: n < 0}
	amount := abs(n)
	param := f.printer.Sprint(number.Decimal(amount))

	s, err := f.trans.C(key, float64(amount), 0, param)
	if errors.Is(err, ut.ErrUnknowTranslation) {
		s, err = f.fallback.C(key, float64(amount), 0, param)
	}
	return s, err
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
