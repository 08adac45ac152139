package format

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixed = time.Date(2024, time.March, 5, 14, 7, 9, 0, time.UTC)

func newTestRegistry() *Registry {
	return NewRegistry(WithLocation(time.UTC), WithClock(func() time.Time { return fixed }))
}

func TestDateStyles(t *testing.T) {
	us := newTestRegistry().For("en-US")

	tests := []struct {
		style string
		want  string
	}{
		{"", "3/5/24"},
		{"short", "3/5/24"},
		{"medium", "Mar 5, 2024"},
		{"long", "March 5, 2024"},
		{"full", "Tuesday, March 5, 2024"},
	}

	for _, tt := range tests {
		t.Run(tt.style, func(t *testing.T) {
			got, err := us.Date(fixed, tt.style)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := us.Date(fixed, "tiny")
	assert.ErrorIs(t, err, ErrInvalidStyle)
}

func TestDateLocales(t *testing.T) {
	r := newTestRegistry()

	got, err := r.For("en-GB").Date(fixed, "short")
	require.NoError(t, err)
	assert.Equal(t, "05/03/2024", got)

	got, err = r.For("de-DE").Date(fixed, "medium")
	require.NoError(t, err)
	assert.Equal(t, "05.03.2024", got)

	got, err = r.For("not a locale!").Date(fixed, "short")
	require.NoError(t, err)
	assert.Equal(t, "3/5/24", got)
}

func TestDateNamesAreLocalized(t *testing.T) {
	r := newTestRegistry()
	tests := []struct {
		locale string
		style  string
		want   string
	}{
		{"de-DE", "full", "Dienstag, 5. März 2024"},
		{"de", "long", "5. März 2024"},
		{"fr-FR", "long", "5 mars 2024"},
		{"ja-JP", "full", "2024年3月5日火曜日"},
		{"es-ES", "full", "martes, 5 de marzo de 2024"},
	}
	for _, tt := range tests {
		t.Run(tt.locale+"/"+tt.style, func(t *testing.T) {
			got, err := r.For(tt.locale).Date(fixed, tt.style)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTimeStyles(t *testing.T) {
	r := newTestRegistry()

	got, err := r.For("en-US").Time(fixed, "")
	require.NoError(t, err)
	assert.Equal(t, "2:07 pm", got)

	got, err = r.For("en-US").Time(fixed, "medium")
	require.NoError(t, err)
	assert.Equal(t, "2:07:09 pm", got)

	got, err = r.For("fr-FR").Time(fixed, "short")
	require.NoError(t, err)
	assert.Equal(t, "14:07", got)
}

func TestAgo(t *testing.T) {
	us := newTestRegistry().For("en-US")

	tests := []struct {
		name  string
		at    time.Time
		style string
		want  string
	}{
		{"seconds short", fixed.Add(-5 * time.Second), "", "5 sec. ago"},
		{"seconds long", fixed.Add(-1 * time.Second), "long", "1 second ago"},
		{"hours long", fixed.Add(-3 * time.Hour), "long", "3 hours ago"},
		{"days narrow", fixed.Add(-48 * time.Hour), "narrow", "2d ago"},
		{"months", fixed.Add(-65 * 24 * time.Hour), "long", "2 months ago"},
		{"future", fixed.Add(2 * time.Hour), "long", "in 2 hours"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := us.Ago(tt.at, tt.style)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := us.Ago(fixed, "medium")
	assert.ErrorIs(t, err, ErrInvalidStyle)
}

func TestAgoLocales(t *testing.T) {
	r := newTestRegistry()
	tests := []struct {
		locale string
		at     time.Time
		style  string
		want   string
	}{
		{"de-DE", fixed.Add(-2 * time.Hour), "long", "vor 2 Stunden"},
		{"de-DE", fixed.Add(-24 * time.Hour), "long", "vor 1 Tag"},
		{"de-DE", fixed.Add(2 * time.Hour), "long", "in 2 Stunden"},
		{"fr-FR", fixed.Add(-2 * time.Hour), "long", "il y a 2 heures"},
		{"fr-FR", fixed.Add(-time.Second), "long", "il y a 1 seconde"},
		{"es-ES", fixed.Add(-72 * time.Hour), "long", "hace 3 días"},
		{"ja-JP", fixed.Add(-2 * time.Hour), "long", "2 時間前"},
		{"it", fixed.Add(-2 * time.Hour), "long", "2 ore fa"},
		// no phrase table; English phrases with the locale's plural rules
		{"pt-BR", fixed.Add(-2 * time.Hour), "long", "2 hours ago"},
	}
	for _, tt := range tests {
		t.Run(tt.locale+"/"+tt.want, func(t *testing.T) {
			got, err := r.For(tt.locale).Ago(tt.at, tt.style)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNumber(t *testing.T) {
	us := newTestRegistry().For("en-US")

	got, err := us.Number(1234567, "")
	require.NoError(t, err)
	assert.Equal(t, "1,234,567", got)

	got, err = us.Number(42, "standard")
	require.NoError(t, err)
	assert.Equal(t, "42", got)

	got, err = us.Number(1234567, "scientific")
	require.NoError(t, err)
	assert.NotEmpty(t, got)

	_, err = us.Number(1, "roman")
	assert.ErrorIs(t, err, ErrInvalidStyle)
}

func TestNumberCompact(t *testing.T) {
	us := newTestRegistry().For("en-US")

	tests := []struct {
		n    int64
		want string
	}{
		{999, "999"},
		{1000, "1K"},
		{1234, "1.2K"},
		{12345, "12K"},
		{123456, "123K"},
		{999999, "1M"},
		{1500000, "1.5M"},
		{-2500, "-2.5K"},
		{3000000000, "3B"},
	}

	for _, tt := range tests {
		got, err := us.Number(tt.n, "compact")
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%d", tt.n)
	}
}

func TestCurrency(t *testing.T) {
	us := newTestRegistry().For("en-US")

	got, err := us.Currency(550, "USD")
	require.NoError(t, err)
	assert.Equal(t, "$5.50", got)

	got, err = us.Currency(500, "usd")
	require.NoError(t, err)
	assert.Equal(t, "$5", got)

	got, err = us.Currency(1, "BITS")
	require.NoError(t, err)
	assert.Equal(t, "1 bits", got)

	got, err = us.Currency(1500, "bits")
	require.NoError(t, err)
	assert.Equal(t, "1,500 bits", got)

	got, err = us.Currency(1234, "BHD")
	require.NoError(t, err)
	assert.Contains(t, got, "1.234")

	_, err = us.Currency(100, "DOLLARS")
	assert.ErrorIs(t, err, ErrInvalidCurrency)

	_, err = us.Currency(100, "ZZZ")
	assert.ErrorIs(t, err, ErrInvalidCurrency)
}

func TestCurrencyTrailingSymbol(t *testing.T) {
	got, err := newTestRegistry().For("de-DE").Currency(550, "EUR")
	require.NoError(t, err)
	assert.Contains(t, got, "5,50")
	assert.Contains(t, got, "€")
	assert.Less(t, 0, len(got))
	assert.Equal(t, "5", got[:1])
}

func TestCurrencySymbolPlacement(t *testing.T) {
	r := newTestRegistry()

	got, err := r.For("fr-FR").Currency(550, "EUR")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, "5"), got)
	assert.True(t, strings.HasSuffix(got, "€"), got)

	got, err = r.For("pt-BR").Currency(550, "BRL")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, "R$"), got)
	assert.Contains(t, got, "5,50")

	got, err = r.For("ja-JP").Currency(500, "JPY")
	require.NoError(t, err)
	assert.False(t, strings.HasPrefix(got, "5"), got)
}

func TestFormatterCache(t *testing.T) {
	r := newTestRegistry()
	assert.Equal(t, 0, r.Len())

	_, _ = r.For("en-US").Number(1, "")
	_, _ = r.For("en-US").Number(2, "compact")
	assert.Equal(t, 1, r.Len())

	_, _ = r.For("en-US").Date(fixed, "")
	_, _ = r.For("de-DE").Date(fixed, "")
	assert.Equal(t, 3, r.Len())

	_, _ = r.For("en-US").Currency(100, "USD")
	assert.Equal(t, 4, r.Len())
}

func TestParseDate(t *testing.T) {
	got, err := ParseDate("2024-03-05T14:07:09Z")
	require.NoError(t, err)
	assert.True(t, fixed.Equal(got))

	got, err = ParseDate(float64(fixed.UnixMilli()))
	require.NoError(t, err)
	assert.True(t, fixed.Equal(got))

	got, err = ParseDate("2024-03-05")
	require.NoError(t, err)
	assert.Equal(t, 5, got.Day())

	got, err = ParseDate(fixed)
	require.NoError(t, err)
	assert.Equal(t, fixed, got)

	for _, bad := range []interface{}{"yesterday", nil, true, map[string]interface{}{}} {
		_, err := ParseDate(bad)
		assert.ErrorIs(t, err, ErrInvalidDate, "%v", bad)
	}
}

func TestParseInt(t *testing.T) {
	tests := []struct {
		in      interface{}
		want    int64
		wantErr bool
	}{
		{42, 42, false},
		{12.9, 12, false},
		{-3.5, -3, false},
		{"17", 17, false},
		{" 12abc", 12, false},
		{"-8", -8, false},
		{"abc", 0, true},
		{"", 0, true},
		{nil, 0, true},
		{true, 0, true},
	}

	for _, tt := range tests {
		got, err := ParseInt(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidNumber, "%v", tt.in)
			continue
		}
		require.NoError(t, err, "%v", tt.in)
		assert.Equal(t, tt.want, got)
	}
}
