package widget

import (
	"context"
	"errors"
	"sync"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/widgetkit/internal/providers/browser/morph"
	"github.com/GriffinCanCode/widgetkit/internal/providers/browser/surface"
	"github.com/GriffinCanCode/widgetkit/internal/providers/bundle"
	"github.com/GriffinCanCode/widgetkit/internal/shared/queue"
	"github.com/GriffinCanCode/widgetkit/internal/shared/types"
)

// Container attributes a Mounter reads
const (
	AttrPath     = "data-path"
	AttrAssets   = "data-assets"
	AttrSettings = "data-settings"
)

var (
	ErrMountClosed = errors.New("mount is closed")
	ErrNoPath      = errors.New("container has no " + AttrPath + " attribute")
)

// Loader fetches the bundle a container points at. Loads are abandoned
// when ctx is canceled.
type Loader interface {
	Load(ctx context.Context, path string, settings types.Settings) (*bundle.Bundle, error)
}

// Mounter keeps containers running the widget their attributes describe
type Mounter struct {
	host     *Host
	loader   Loader
	registry *Registry
}

// NewMounter creates a mounter. Controllers it starts are registered in
// registry.
func NewMounter(host *Host, loader Loader, registry *Registry) *Mounter {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Mounter{host: host, loader: loader, registry: registry}
}

// Setup loads and starts the widget named by container's data-path,
// returning the error if that first start fails. Afterwards any change to
// data-path, data-assets or data-settings stops the running widget and
// starts it again with the new values. Close the returned Mount to stop.
func (m *Mounter) Setup(ctx context.Context, container *surface.Container) (*Mount, error) {
	mt := &Mount{m: m, container: container, feed: newFeed()}
	if err := mt.restart(ctx); err != nil {
		mt.Close()
		return nil, err
	}
	mt.unobserve = container.ObserveAttributes(func(name string) {
		switch name {
		case AttrPath, AttrAssets, AttrSettings:
			mt.Reload()
		}
	})
	return mt, nil
}

// ============================================================================
// Mount
// ============================================================================

// Mount is one container under a Mounter's control
type Mount struct {
	m         *Mounter
	container *surface.Container
	feed      *feed
	unobserve func()

	mu     sync.Mutex
	ctrl   *Controller
	bundle *bundle.Bundle
	cancel context.CancelFunc
	gen    uint64
	closed bool
	err    error
}

// Container returns the mounted container
func (mt *Mount) Container() *surface.Container { return mt.container }

// Controller returns the running controller, nil while reloading
func (mt *Mount) Controller() *Controller {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	return mt.ctrl
}

// Bundle returns the bundle of the running widget
func (mt *Mount) Bundle() *bundle.Bundle {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	return mt.bundle
}

// Err returns the error of the last failed reload
func (mt *Mount) Err() error {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	return mt.err
}

// Subscribe streams the widget's renders, logs and persists until the
// returned cancel is called or the mount closes.
func (mt *Mount) Subscribe() (*queue.Mailbox[Update], func()) {
	return mt.feed.subscribe()
}

// Reload restarts the widget in the background, cancelling any load in
// flight.
func (mt *Mount) Reload() {
	go func() {
		err := mt.restart(context.Background())
		if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, ErrMountClosed) {
			return
		}
		mt.m.host.logger().Error("Widget reload failed", zap.Error(err))
		mt.mu.Lock()
		mt.err = err
		mt.mu.Unlock()
	}()
}

// Close stops the widget and stops watching the container. Closing twice
// is harmless.
func (mt *Mount) Close() {
	mt.mu.Lock()
	if mt.closed {
		mt.mu.Unlock()
		return
	}
	mt.closed = true
	if mt.cancel != nil {
		mt.cancel()
	}
	ctrl := mt.ctrl
	mt.ctrl = nil
	mt.mu.Unlock()

	if mt.unobserve != nil {
		mt.unobserve()
	}
	if ctrl != nil {
		mt.m.registry.Unregister(mt.container, ctrl)
	}
	mt.feed.close()
}

func (mt *Mount) restart(parent context.Context) error {
	mt.mu.Lock()
	if mt.closed {
		mt.mu.Unlock()
		return ErrMountClosed
	}
	mt.gen++
	gen := mt.gen
	if mt.cancel != nil {
		mt.cancel()
	}
	ctx, cancel := context.WithCancel(parent)
	mt.cancel = cancel
	prev := mt.ctrl
	mt.ctrl = nil
	mt.mu.Unlock()

	if prev != nil {
		mt.m.registry.Unregister(mt.container, prev)
	}

	path, ok := mt.container.Attribute(AttrPath)
	if !ok || path == "" {
		return ErrNoPath
	}
	assets := mt.jsonAttribute(AttrAssets)
	settings := mt.jsonAttribute(AttrSettings)

	b, err := mt.m.loader.Load(ctx, path, types.Settings(settings))
	if err != nil {
		return err
	}
	if len(assets) > 0 {
		merged := make(types.Assets, len(b.Assets)+len(assets))
		for k, v := range b.Assets {
			merged[k] = v
		}
		for k, v := range assets {
			merged[k] = v
		}
		b.Assets = merged
	}
	persisted := mt.m.loadPersisted(ctx, b.Name())

	ctrl := NewController(mt.m.host, mt.options(b.Name()))

	mt.mu.Lock()
	defer mt.mu.Unlock()
	if mt.closed {
		return ErrMountClosed
	}
	if gen != mt.gen || ctx.Err() != nil {
		return context.Canceled
	}

	mt.m.registry.Register(mt.container, ctrl)
	err = ctrl.Start(ctx, mt.container, Bundle{
		Name:           b.Name(),
		Template:       b.Template,
		JS:             b.JS,
		CSS:            b.CSS,
		Assets:         b.Assets,
		Settings:       b.Settings,
		PersistedState: persisted,
	})
	if err != nil {
		mt.m.registry.Unregister(mt.container, ctrl)
		return err
	}
	mt.ctrl = ctrl
	mt.bundle = b
	mt.err = nil
	return nil
}

// jsonAttribute parses a JSON object attribute. Malformed values are
// logged and treated as empty.
func (mt *Mount) jsonAttribute(name string) map[string]interface{} {
	raw, ok := mt.container.Attribute(name)
	if !ok || raw == "" {
		return nil
	}
	var out map[string]interface{}
	if err := sonic.UnmarshalString(raw, &out); err != nil {
		mt.m.host.logger().Warn("Failed to parse widget attribute", zap.String("attribute", name), zap.Error(err))
		return nil
	}
	return out
}

func (mt *Mount) options(key string) Options {
	return Options{
		OnPersist: func(state interface{}, data []byte) {
			mt.m.savePersisted(key, data)
			mt.feed.publish(Update{Type: UpdatePersist, State: state})
		},
		OnLog: func(msg *types.LogMessage) {
			mt.feed.publish(Update{Type: UpdateLog, Log: msg})
		},
		OnPatch: func(ops []morph.Op) {
			mt.feed.publish(Update{Type: UpdatePatch, Ops: ops})
		},
		OnState: func(state interface{}) {
			mt.feed.publish(Update{Type: UpdateState, State: state})
		},
	}
}

func (m *Mounter) loadPersisted(ctx context.Context, key string) interface{} {
	if m.host.Store == nil {
		return nil
	}
	data, ok, err := m.host.Store.Load(ctx, key)
	if err != nil {
		m.host.logger().Warn("Failed to load persisted state", zap.String("widget", key), zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}
	var state interface{}
	if err := sonic.Unmarshal(data, &state); err != nil {
		m.host.logger().Warn("Discarding unreadable persisted state", zap.String("widget", key), zap.Error(err))
		return nil
	}
	return state
}

func (m *Mounter) savePersisted(key string, data []byte) {
	if m.host.Store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.host.config().PersistTimeout)
	defer cancel()
	if err := m.host.Store.Save(ctx, key, data); err != nil {
		m.host.logger().Warn("Failed to save persisted state", zap.String("widget", key), zap.Error(err))
	}
}
