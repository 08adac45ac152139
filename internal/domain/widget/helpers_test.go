package widget

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/GriffinCanCode/widgetkit/internal/domain/bus"
	"github.com/GriffinCanCode/widgetkit/internal/infrastructure/logging"
	"github.com/GriffinCanCode/widgetkit/internal/providers/browser/morph"
	"github.com/GriffinCanCode/widgetkit/internal/providers/bundle"
	"github.com/GriffinCanCode/widgetkit/internal/providers/storage"
	"github.com/GriffinCanCode/widgetkit/internal/providers/template"
	"github.com/GriffinCanCode/widgetkit/internal/shared/types"
)

func newTestHost(t *testing.T) (*Host, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	cfg := DefaultConfig()
	cfg.PersistInterval = time.Hour
	cfg.RemovalGrace = 10 * time.Millisecond
	h := &Host{
		Engine: template.NewEngine(),
		Bus:    bus.New(nil),
		Store:  storage.NewMemory(),
		Logger: logging.Wrap(zap.New(core)),
		Config: cfg,
	}
	t.Cleanup(h.Bus.Dispose)
	return h, logs
}

// flush waits until the worker has handled everything posted so far,
// including the renders those messages caused
func flush(t *testing.T, c *Controller) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := c.worker.Snapshot(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded)
}

type recorder struct {
	mu       sync.Mutex
	states   []interface{}
	patches  [][]morph.Op
	logs     []*types.LogMessage
	persists []interface{}
}

func (r *recorder) options() Options {
	return Options{
		OnPersist: func(state interface{}, _ []byte) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.persists = append(r.persists, state)
		},
		OnLog: func(msg *types.LogMessage) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.logs = append(r.logs, msg)
		},
		OnPatch: func(ops []morph.Op) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.patches = append(r.patches, ops)
		},
		OnState: func(state interface{}) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.states = append(r.states, state)
		},
	}
}

func (r *recorder) stateList() []interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]interface{}(nil), r.states...)
}

func (r *recorder) logList() []*types.LogMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*types.LogMessage(nil), r.logs...)
}

func (r *recorder) persistList() []interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]interface{}(nil), r.persists...)
}

func (r *recorder) allOps() []morph.Op {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []morph.Op
	for _, p := range r.patches {
		out = append(out, p...)
	}
	return out
}

func chat(id, text string) types.Event {
	return types.Event{
		ID:   id,
		Type: "ekg.chat.sent",
		Data: map[string]interface{}{
			"message": []interface{}{map[string]interface{}{"type": "text", "text": text}},
		},
	}
}

const counterJS = `
EKG.registerWidget({
	name: 'Counter',
	initialState: (ctx) => ctx.persistedState || { counter: 0 },
	handleEvent(event, state) {
		if (event.type === 'ekg.chat.sent') return { counter: state.counter + 1 }
		return state
	},
})
`

const counterTemplate = `<span class="count">{{.counter}}</span>`

func counterBundle() Bundle {
	return Bundle{
		Name:     "counter",
		Template: counterTemplate,
		JS:       counterJS,
		CSS:      `.count { color: {{.settings.color}}; }`,
		Settings: types.Settings{"color": "red"},
	}
}

// fakeLoader serves bundles from memory. Paths listed in block wait for
// ctx before failing.
type fakeLoader struct {
	mu       sync.Mutex
	bundles  map[string]*bundle.Bundle
	block    map[string]bool
	canceled []string
	settings []types.Settings
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{bundles: make(map[string]*bundle.Bundle), block: make(map[string]bool)}
}

func (l *fakeLoader) add(path, name, js, tmpl string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.bundles[path] = &bundle.Bundle{
		Manifest: bundle.Manifest{Name: name},
		Template: tmpl,
		JS:       js,
		CSS:      `.count { color: {{.settings.color}}; }`,
		Assets:   types.Assets{"logo": "data:image/png;base64,AA=="},
		Settings: types.Settings{},
		Source:   path,
	}
}

func (l *fakeLoader) Load(ctx context.Context, path string, settings types.Settings) (*bundle.Bundle, error) {
	l.mu.Lock()
	b, ok := l.bundles[path]
	blocked := l.block[path]
	l.settings = append(l.settings, settings)
	l.mu.Unlock()

	if blocked {
		<-ctx.Done()
		l.mu.Lock()
		l.canceled = append(l.canceled, path)
		l.mu.Unlock()
		return nil, ctx.Err()
	}
	if !ok {
		return nil, errors.New("no bundle at " + path)
	}
	return b.WithSettings(settings), nil
}

func (l *fakeLoader) canceledPaths() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.canceled...)
}

func (l *fakeLoader) calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.settings)
}

func (l *fakeLoader) lastSettings() types.Settings {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.settings) == 0 {
		return nil
	}
	return l.settings[len(l.settings)-1]
}
