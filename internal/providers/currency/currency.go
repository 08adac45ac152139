// Package currency converts between minor units (cents, yen, fils) and
// major units for the currencies widgets receive in donation and
// subscription events.
package currency

import (
	"math"
	"strings"
)

// MicroPayment is the pseudo-currency for cheers/bits. One bit is one unit.
const MicroPayment = "bits"

var zeroDecimal = map[string]bool{
	MicroPayment: true,
	"bif":        true,
	"clp":        true,
	"djf":        true,
	"gnf":        true,
	"jpy":        true,
	"kmf":        true,
	"krw":        true,
	"mga":        true,
	"pyg":        true,
	"rwf":        true,
	"ugx":        true,
	"vnd":        true,
	"vuv":        true,
	"xaf":        true,
	"xof":        true,
	"xpf":        true,
}

var threeDecimal = map[string]bool{
	"bhd": true,
	"jod": true,
	"kwd": true,
	"omr": true,
	"tnd": true,
}

// Normalize lowercases and trims a currency code
func Normalize(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

// Decimals returns how many fraction digits the currency's minor unit has
func Decimals(code string) int {
	c := Normalize(code)
	switch {
	case zeroDecimal[c]:
		return 0
	case threeDecimal[c]:
		return 3
	default:
		return 2
	}
}

// MinorUnits returns how many minor units make one major unit
func MinorUnits(code string) int64 {
	switch Decimals(code) {
	case 0:
		return 1
	case 3:
		return 1000
	default:
		return 100
	}
}

// ToMajorUnits converts an amount in minor units to major units
func ToMajorUnits(amount float64, code string) float64 {
	return amount / float64(MinorUnits(code))
}

// ToMinorUnits converts an amount in major units to minor units, rounded
// to the nearest whole minor unit.
func ToMinorUnits(amount float64, code string) int64 {
	return int64(math.Round(amount * float64(MinorUnits(code))))
}

// IsMicroPayment reports whether code is the bits pseudo-currency
func IsMicroPayment(code string) bool {
	return Normalize(code) == MicroPayment
}
