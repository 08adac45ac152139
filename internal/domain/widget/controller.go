package widget

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/widgetkit/internal/providers/browser/morph"
	"github.com/GriffinCanCode/widgetkit/internal/providers/browser/sandbox"
	"github.com/GriffinCanCode/widgetkit/internal/providers/browser/surface"
	"github.com/GriffinCanCode/widgetkit/internal/providers/template"
	"github.com/GriffinCanCode/widgetkit/internal/shared/types"
)

var (
	ErrAlreadyStarted = errors.New("widget controller already started")
	ErrNotActive      = errors.New("widget controller is not active")
	ErrInvalidBundle  = errors.New("invalid widget bundle")
)

// Phase is the lifecycle position of a controller
type Phase int32

const (
	PhaseUnmounted Phase = iota
	PhaseLoading
	PhaseActive
	PhaseStopped
)

func (p Phase) String() string {
	switch p {
	case PhaseUnmounted:
		return "unmounted"
	case PhaseLoading:
		return "loading"
	case PhaseActive:
		return "active"
	case PhaseStopped:
		return "stopped"
	default:
		return fmt.Sprintf("phase(%d)", int32(p))
	}
}

// Bundle is what a controller needs to start a widget
type Bundle struct {
	Name           string
	Template       string
	JS             string
	CSS            string
	Assets         types.Assets
	Settings       types.Settings
	PersistedState interface{}
}

// Options are the controller's outward callbacks. All are optional.
type Options struct {
	// OnPersist receives a snapshot that differs from the last persisted one
	OnPersist func(state interface{}, data []byte)
	OnLog     func(msg *types.LogMessage)
	// OnPatch receives every batch of tree mutations, including deferred
	// removals
	OnPatch func(ops []morph.Op)
	OnState func(state interface{})
}

// Controller runs one widget: a sandbox worker feeding states into a
// rendering surface attached to a container.
type Controller struct {
	host *Host
	opts Options
	cfg  Config

	phase atomic.Int32

	// mu serializes Start against Stop; fields below are fixed once
	// Start returns
	mu          sync.Mutex
	container   *surface.Container
	surface     *surface.Surface
	worker      *sandbox.Worker
	render      template.RenderFunc
	name        string
	unsubscribe func()
	unobserve   func()
	stopPersist chan struct{}
	persistDone chan struct{}

	persistMu sync.Mutex
	persisted []byte

	stateMu sync.RWMutex
	state   interface{}
}

// NewController creates an unmounted controller
func NewController(host *Host, opts Options) *Controller {
	return &Controller{host: host, opts: opts, cfg: host.config()}
}

// Phase returns the lifecycle phase
func (c *Controller) Phase() Phase {
	return Phase(c.phase.Load())
}

// Name returns the widget name given to Start
func (c *Controller) Name() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.name
}

// Surface returns the rendering surface, nil before Start
func (c *Controller) Surface() *surface.Surface {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.surface
}

// State returns the last state rendered
func (c *Controller) State() interface{} {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

// Start mounts the widget into container. Template and stylesheet errors
// are returned and leave nothing running; the controller is then stopped.
func (c *Controller) Start(ctx context.Context, container *surface.Container, b Bundle) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.phase.CompareAndSwap(int32(PhaseUnmounted), int32(PhaseLoading)) {
		return ErrAlreadyStarted
	}
	if err := ctx.Err(); err != nil {
		c.phase.Store(int32(PhaseStopped))
		return err
	}

	logger := c.host.logger().ForWidget(b.Name)
	c.name = b.Name
	c.container = container

	c.surface = surface.New(
		surface.WithRemovalGrace(c.cfg.RemovalGrace),
		surface.WithOnPatch(c.deferredPatch),
	)
	container.Attach(c.surface)

	css, err := c.host.Engine.CSS(b.CSS, b.Assets, b.Settings)
	if err != nil {
		c.abort()
		return fmt.Errorf("%w: %s stylesheet: %w", ErrInvalidBundle, b.Name, err)
	}
	c.surface.SetStyle(css)

	c.render, err = c.host.Engine.Renderer(b.Template, b.Assets, b.Settings)
	if err != nil {
		c.abort()
		return fmt.Errorf("%w: %s template: %w", ErrInvalidBundle, b.Name, err)
	}

	if b.PersistedState != nil {
		c.persisted, _ = encodeState(b.PersistedState)
	}

	opts := []sandbox.Option{
		sandbox.WithLogger(logger),
		sandbox.WithClock(c.host.now),
	}
	if c.host.Spawner != nil {
		opts = append(opts, sandbox.WithSpawner(c.host.Spawner))
	}
	c.worker = sandbox.NewWorker(c.cfg.Sandbox, c.receive, opts...)
	size := container.Size()
	c.worker.Post(&types.InitMessage{Init: types.InitPayload{
		JSSource:       b.JS,
		Size:           size,
		Assets:         orEmptyAssets(b.Assets),
		Settings:       orEmptySettings(b.Settings),
		PersistedState: b.PersistedState,
	}})

	worker := c.worker
	c.unsubscribe = c.host.Bus.Subscribe(func(event types.Event) {
		worker.Post(&types.EventMessage{Event: event})
	})
	// a resize between reading size and subscribing is replayed here
	c.unobserve = container.ObserveSince(size, func(size types.Size) {
		worker.Post(&types.ResizeMessage{Size: size})
	})

	c.stopPersist = make(chan struct{})
	c.persistDone = make(chan struct{})
	go c.persistLoop(c.stopPersist, c.persistDone)

	c.phase.Store(int32(PhaseActive))
	if m := c.host.Metrics; m != nil {
		m.IncMountsTotal()
	}
	logger.Info("Widget started", zap.Float64("width", size.Width), zap.Float64("height", size.Height))
	return nil
}

// abort undoes a partial Start; called with mu held
func (c *Controller) abort() {
	c.surface.Close()
	c.container.Detach(c.surface)
	c.phase.Store(int32(PhaseStopped))
}

// Stop persists a final snapshot, then unsubscribes from the bus,
// terminates the worker and detaches the surface. Repeated calls are
// no-ops.
func (c *Controller) Stop() {
	c.mu.Lock()
	prev := Phase(c.phase.Swap(int32(PhaseStopped)))
	c.mu.Unlock()
	if prev != PhaseActive {
		return
	}

	close(c.stopPersist)
	<-c.persistDone

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.PersistTimeout)
	if _, _, err := c.persist(ctx); err != nil && !errors.Is(err, sandbox.ErrNotRunning) {
		c.host.logger().Warn("Final persist failed", zap.String("widget", c.name), zap.Error(err))
	}
	cancel()

	c.unsubscribe()
	c.unobserve()
	c.worker.Terminate()
	<-c.worker.Done()

	c.surface.Close()
	c.container.Detach(c.surface)
	c.host.logger().Info("Widget stopped", zap.String("widget", c.name))
}

// Persist snapshots the widget's persistable state. changed reports
// whether it differs from the last persisted value; only then is
// OnPersist called.
func (c *Controller) Persist(ctx context.Context) (state interface{}, changed bool, err error) {
	if c.Phase() != PhaseActive {
		return nil, false, ErrNotActive
	}
	return c.persist(ctx)
}

func (c *Controller) persist(ctx context.Context) (interface{}, bool, error) {
	state, err := c.worker.Snapshot(ctx)
	if err != nil {
		c.recordPersist("error")
		return nil, false, err
	}
	data, err := encodeState(state)
	if err != nil {
		c.recordPersist("error")
		return nil, false, fmt.Errorf("encode snapshot: %w", err)
	}

	c.persistMu.Lock()
	if bytes.Equal(data, c.persisted) {
		c.persistMu.Unlock()
		c.recordPersist("unchanged")
		return state, false, nil
	}
	c.persisted = data
	c.persistMu.Unlock()

	c.recordPersist("changed")
	if c.opts.OnPersist != nil {
		c.opts.OnPersist(state, data)
	}
	return state, true, nil
}

func (c *Controller) persistLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(c.cfg.PersistInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), c.cfg.PersistInterval)
			_, _, err := c.persist(ctx)
			cancel()
			if err != nil && !errors.Is(err, sandbox.ErrNotRunning) {
				c.host.logger().Debug("Persist skipped", zap.String("widget", c.name), zap.Error(err))
			}
		}
	}
}

func (c *Controller) recordPersist(status string) {
	if m := c.host.Metrics; m != nil {
		m.RecordPersist(status)
	}
}

// ============================================================================
// Worker output
// ============================================================================

// receive runs on the worker goroutine, so renders are serialized in the
// order the guest produced them
func (c *Controller) receive(msg types.Outgoing) {
	msg.Accept(outputVisitor{c})
}

type outputVisitor struct{ c *Controller }

func (v outputVisitor) VisitLog(m *types.LogMessage) {
	c := v.c
	tag, text := FormatLog(m.Content)
	c.host.logger().Guest(m.Level, text,
		zap.String("widget", c.name),
		zap.String("tag", tag),
		zap.String("level", string(m.Level)))
	if metrics := c.host.Metrics; metrics != nil {
		metrics.RecordGuestLog(string(m.Level))
	}
	if c.opts.OnLog != nil {
		c.opts.OnLog(m)
	}
}

func (v outputVisitor) VisitState(m *types.StateMessage) {
	c := v.c
	start := c.host.now()

	markup, err := c.render(m.State)
	if err != nil {
		c.recordRender("error", start, nil)
		c.host.logger().Error("Widget render failed", zap.String("widget", c.name), zap.Error(err))
		return
	}
	ops, err := c.surface.Render(markup)
	if err != nil {
		c.recordRender("error", start, nil)
		if !errors.Is(err, surface.ErrClosed) {
			c.host.logger().Error("Widget reconcile failed", zap.String("widget", c.name), zap.Error(err))
		}
		return
	}
	c.recordRender("ok", start, ops)

	c.stateMu.Lock()
	c.state = m.State
	c.stateMu.Unlock()

	if c.opts.OnState != nil {
		c.opts.OnState(m.State)
	}
	if len(ops) > 0 && c.opts.OnPatch != nil {
		c.opts.OnPatch(ops)
	}
}

func (c *Controller) deferredPatch(ops []morph.Op) {
	if m := c.host.Metrics; m != nil {
		m.RecordRender("deferred", 0, countOps(ops))
	}
	if c.opts.OnPatch != nil {
		c.opts.OnPatch(ops)
	}
}

func (c *Controller) recordRender(status string, start time.Time, ops []morph.Op) {
	if m := c.host.Metrics; m != nil {
		m.RecordRender(status, c.host.now().Sub(start), countOps(ops))
	}
}

// encodeState sorts map keys so equal states encode to equal bytes
func encodeState(state interface{}) ([]byte, error) {
	return sonic.ConfigStd.Marshal(state)
}

func countOps(ops []morph.Op) map[string]int {
	counts := make(map[string]int)
	for _, op := range ops {
		counts[string(op.Kind)]++
	}
	return counts
}

// FormatLog splits guest log content into its "Widget (<name>)" tag and
// a single line of text. Non-string parts are rendered as JSON.
func FormatLog(content []interface{}) (tag, text string) {
	tag, rest := splitTag(content)
	return tag, guestText(rest)
}

func splitTag(content []interface{}) (string, []interface{}) {
	if len(content) == 0 {
		return "", nil
	}
	if tag, ok := content[0].(string); ok {
		return tag, content[1:]
	}
	return "", content
}

func guestText(parts []interface{}) string {
	var b bytes.Buffer
	for i, p := range parts {
		if i > 0 {
			b.WriteByte(' ')
		}
		if s, ok := p.(string); ok {
			b.WriteString(s)
			continue
		}
		data, err := sonic.Marshal(p)
		if err != nil {
			fmt.Fprint(&b, p)
			continue
		}
		b.Write(data)
	}
	return b.String()
}

func orEmptyAssets(a types.Assets) types.Assets {
	if a == nil {
		return types.Assets{}
	}
	return a
}

func orEmptySettings(s types.Settings) types.Settings {
	if s == nil {
		return types.Settings{}
	}
	return s
}
