package format

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Number notations
const (
	NotationStandard    = "standard"
	NotationCompact     = "compact"
	NotationScientific  = "scientific"
	NotationEngineering = "engineering"
)

type numberFormatter struct {
	printer *message.Printer
}

func (f *numberFormatter) format(n int64, notation string) (string, error) {
	switch notation {
	case "", NotationStandard:
		return f.printer.Sprint(number.Decimal(n)), nil
	case NotationCompact:
		return f.compact(n), nil
	case NotationScientific:
		return f.printer.Sprint(number.Scientific(n)), nil
	case NotationEngineering:
		return f.printer.Sprint(number.Engineering(n)), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStyle, notation)
}

// decimal formats v with exactly digits fraction digits
func (f *numberFormatter) decimal(v float64, digits int) string {
	return f.printer.Sprint(number.Decimal(v,
		number.MinFractionDigits(digits),
		number.MaxFractionDigits(digits),
	))
}

var compactUnits = []struct {
	size   float64
	suffix string
}{
	{1e3, "K"},
	{1e6, "M"},
	{1e9, "B"},
	{1e12, "T"},
}

// compact renders short-scale abbreviations: 1234 -> 1.2K, 12345 -> 12K.
// Values under ten units keep one fraction digit.
func (f *numberFormatter) compact(n int64) string {
	abs := math.Abs(float64(n))
	if abs < compactUnits[0].size {
		return f.printer.Sprint(number.Decimal(n))
	}

	unit := 0
	for unit+1 < len(compactUnits) && abs >= compactUnits[unit+1].size {
		unit++
	}

	v := roundCompact(abs / compactUnits[unit].size)
	if v >= 1000 && unit+1 < len(compactUnits) {
		unit++
		v = roundCompact(abs / compactUnits[unit].size)
	}

	s := f.printer.Sprint(number.Decimal(v, number.MaxFractionDigits(1))) + compactUnits[unit].suffix
	if n < 0 {
		return "-" + s
	}
	return s
}

func roundCompact(v float64) float64 {
	if v < 10 {
		return math.Round(v*10) / 10
	}
	return math.Round(v)
}

// ParseInt reads an integer the way JavaScript parseInt(String(v), 10)
// does: leading digits win and trailing garbage is ignored.
func ParseInt(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint32:
		return int64(n), nil
	case float32:
		return truncate(float64(n))
	case float64:
		return truncate(n)
	case json.Number:
		return parseIntPrefix(n.String())
	case string:
		return parseIntPrefix(n)
	}
	return 0, fmt.Errorf("%w: %v", ErrInvalidNumber, v)
}

func truncate(f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) >= math.MaxInt64 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidNumber, f)
	}
	return int64(f), nil
}

func parseIntPrefix(s string) (int64, error) {
	s = strings.TrimSpace(s)
	neg := false
	if s != "" && (s[0] == '-' || s[0] == '+') {
		neg = s[0] == '-'
		s = s[1:]
	}

	var n int64
	digits := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			break
		}
		if n > (math.MaxInt64-9)/10 {
			return 0, fmt.Errorf("%w: %q out of range", ErrInvalidNumber, s)
		}
		n = n*10 + int64(r-'0')
		digits++
	}
	if digits == 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidNumber, s)
	}
	if neg {
		n = -n
	}
	return n, nil
}
