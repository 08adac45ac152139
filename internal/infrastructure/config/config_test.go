package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsMatchDefault(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9100")
	t.Setenv("WIDGET_TICK_INTERVAL", "250ms")
	t.Setenv("WIDGET_LOCALE", "de-DE")
	t.Setenv("STORAGE_PATH", "/var/lib/widgets.db")
	t.Setenv("BUNDLE_WATCH", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9100", cfg.Server.Port)
	assert.Equal(t, 250*time.Millisecond, cfg.Widget.TickInterval)
	assert.Equal(t, "de-DE", cfg.Widget.Locale)
	assert.Equal(t, "/var/lib/widgets.db", cfg.Storage.Path)
	assert.True(t, cfg.Bundle.Watch)
	assert.Equal(t, time.Second, cfg.Widget.PersistInterval)
}

func TestLoadOrDefaultOnBadValue(t *testing.T) {
	t.Setenv("WIDGET_TICK_INTERVAL", "soon")

	_, err := Load()
	assert.Error(t, err)
	assert.Equal(t, Default(), LoadOrDefault())
}
