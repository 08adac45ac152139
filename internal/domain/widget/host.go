package widget

import (
	"time"

	"github.com/GriffinCanCode/widgetkit/internal/domain/bus"
	"github.com/GriffinCanCode/widgetkit/internal/infrastructure/logging"
	"github.com/GriffinCanCode/widgetkit/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/widgetkit/internal/providers/browser/sandbox"
	"github.com/GriffinCanCode/widgetkit/internal/providers/browser/surface"
	"github.com/GriffinCanCode/widgetkit/internal/providers/storage"
	"github.com/GriffinCanCode/widgetkit/internal/providers/template"
)

// Config holds controller timing
type Config struct {
	Sandbox         sandbox.Config
	PersistInterval time.Duration
	PersistTimeout  time.Duration // bound on the final persist during Stop
	RemovalGrace    time.Duration
}

// DefaultConfig returns the default controller timing
func DefaultConfig() Config {
	return Config{
		Sandbox:         sandbox.DefaultConfig(),
		PersistInterval: time.Second,
		PersistTimeout:  time.Second,
		RemovalGrace:    surface.DefaultRemovalGrace,
	}
}

// Host bundles the process-wide services every controller shares
type Host struct {
	Engine  *template.Engine
	Bus     *bus.Bus
	Spawner sandbox.Spawner    // nil builds a fresh runtime per mount
	Store   storage.Store      // nil disables persistence
	Logger  *logging.Logger    // nil discards
	Metrics *monitoring.Metrics // nil disables metrics
	Config  Config
	Now     func() time.Time // nil uses time.Now
}

func (h *Host) logger() *logging.Logger {
	if h.Logger == nil {
		return logging.NewNop()
	}
	return h.Logger
}

func (h *Host) now() time.Time {
	if h.Now == nil {
		return time.Now()
	}
	return h.Now()
}

func (h *Host) config() Config {
	cfg := h.Config
	def := DefaultConfig()
	if cfg.Sandbox.HandlerTimeout <= 0 {
		cfg.Sandbox = def.Sandbox
	}
	if cfg.PersistInterval <= 0 {
		cfg.PersistInterval = def.PersistInterval
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = def.PersistTimeout
	}
	if cfg.RemovalGrace <= 0 {
		cfg.RemovalGrace = def.RemovalGrace
	}
	return cfg
}
