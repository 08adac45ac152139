package format

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/go-playground/locales"
	loccurrency "github.com/go-playground/locales/currency"
	"golang.org/x/text/currency"
	"golang.org/x/text/message"

	minor "github.com/GriffinCanCode/widgetkit/internal/providers/currency"
)

type currencyFormatter struct {
	printer *message.Printer
	number  *numberFormatter

	trails bool   // symbol follows the amount (5,50 €)
	gap    string // text between amount and symbol
}

func newCurrencyFormatter(trans locales.Translator, printer *message.Printer, number *numberFormatter) *currencyFormatter {
	f := &currencyFormatter{printer: printer, number: number}
	f.trails, f.gap = symbolPlacement(trans)
	return f
}

// symbolPlacement reads the locale's CLDR currency pattern off a sample
// amount
func symbolPlacement(trans locales.Translator) (trails bool, gap string) {
	sample := trans.FmtCurrency(1, 2, loccurrency.USD)
	first := strings.IndexFunc(sample, unicode.IsDigit)
	if first == 0 {
		last := strings.LastIndexFunc(sample, unicode.IsDigit)
		rest := sample[last+1:]
		return true, rest[:len(rest)-len(strings.TrimLeftFunc(rest, unicode.IsSpace))]
	}
	if first < 0 {
		return false, ""
	}
	prefix := sample[:first]
	return false, prefix[len(strings.TrimRightFunc(prefix, unicode.IsSpace)):]
}

// format renders an amount held in minor units. Whole amounts drop the
// fraction digits; bits render as a plain number with a "bits" suffix.
func (f *currencyFormatter) format(amount int64, code string) (string, error) {
	major := minor.ToMajorUnits(float64(amount), code)
	if minor.IsMicroPayment(code) {
		s, err := f.number.format(int64(major), NotationStandard)
		if err != nil {
			return "", err
		}
		return s + " bits", nil
	}

	iso := strings.ToUpper(strings.TrimSpace(code))
	if len(iso) != 3 {
		return "", fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
	}
	unit, err := currency.ParseISO(iso)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
	}

	digits := minor.Decimals(code)
	if major == math.Trunc(major) {
		digits = 0
	}
	sign := ""
	if major < 0 {
		sign = "-"
		major = -major
	}
	value := f.number.decimal(major, digits)
	symbol := f.printer.Sprint(currency.Symbol(unit))
	if f.trails {
		return sign + value + f.gap + symbol, nil
	}
	return sign + symbol + f.gap + value, nil
}
