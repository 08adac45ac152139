package sandbox

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/widgetkit/internal/infrastructure/logging"
	"github.com/GriffinCanCode/widgetkit/internal/shared/queue"
	"github.com/GriffinCanCode/widgetkit/internal/shared/types"
)

const (
	scriptName       = "widget.js"
	unnamedWidget    = "[unknown name]"
	uninitializedTag = "uninitialized"
)

// Spawner hands out fresh runtimes
type Spawner interface {
	Spawn(ctx context.Context) (*Runtime, error)
}

type freshSpawner struct{ config Config }

func (s freshSpawner) Spawn(context.Context) (*Runtime, error) { return New(s.config) }

// Option configures a Worker
type Option func(*Worker)

// WithSpawner sets where runtimes come from
func WithSpawner(s Spawner) Option {
	return func(w *Worker) { w.spawner = s }
}

// WithClock overrides the clock behind ctx.now and RESIZE timestamps
func WithClock(now func() time.Time) Option {
	return func(w *Worker) { w.now = now }
}

// WithLogger sets the host-side logger
func WithLogger(l *logging.Logger) Option {
	return func(w *Worker) { w.logger = l }
}

// Worker owns one guest program. Messages posted to it are handled in
// order on a dedicated goroutine; outgoing messages are delivered through
// the emit callback on that same goroutine.
type Worker struct {
	config  Config
	spawner Spawner
	now     func() time.Time
	logger  *logging.Logger
	emit    func(types.Outgoing)

	inbox  *queue.Mailbox[types.Incoming]
	phase  atomic.Int32
	rt     atomic.Pointer[Runtime]
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	termOnce sync.Once
	errMu    sync.Mutex
	err      error
}

// NewWorker starts a worker goroutine. emit receives every log and state
// message the guest produces until the worker terminates.
func NewWorker(config Config, emit func(types.Outgoing), opts ...Option) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		config: config,
		now:    time.Now,
		emit:   emit,
		inbox:  queue.New[types.Incoming](),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.spawner == nil {
		w.spawner = freshSpawner{config: config}
	}
	if w.logger == nil {
		w.logger = logging.NewNop()
	}
	if w.emit == nil {
		w.emit = func(types.Outgoing) {}
	}

	go w.run()
	return w
}

// Post queues a message. It returns false once the worker has terminated.
func (w *Worker) Post(msg types.Incoming) bool {
	if w.Phase() == PhaseTerminated {
		return false
	}
	return w.inbox.Put(msg)
}

// Snapshot asks the guest for its persistable state. A widget that
// defines persist(state) controls what is returned; otherwise the current
// state is.
func (w *Worker) Snapshot(ctx context.Context) (interface{}, error) {
	req := &types.SnapshotRequest{Reply: make(chan types.SnapshotReply, 1)}
	if !w.Post(req) {
		return nil, ErrTerminated
	}
	select {
	case reply := <-req.Reply:
		return reply.State, reply.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-w.done:
		return nil, ErrTerminated
	}
}

// Terminate stops the worker and aborts any running guest code. It
// reports whether this call did the terminating.
func (w *Worker) Terminate() bool {
	terminated := false
	w.termOnce.Do(func() {
		terminated = true
		w.phase.Store(int32(PhaseTerminated))
		w.cancel()
		w.inbox.Close()
		if rt := w.rt.Load(); rt != nil {
			rt.Interrupt(ErrTerminated)
		}
	})
	return terminated
}

// Phase returns the current lifecycle phase
func (w *Worker) Phase() Phase {
	return Phase(w.phase.Load())
}

// Done is closed when the worker goroutine has exited
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Err returns the error that terminated the worker, if any
func (w *Worker) Err() error {
	w.errMu.Lock()
	defer w.errMu.Unlock()
	return w.err
}

func (w *Worker) run() {
	defer close(w.done)

	g := &guest{w: w, state: goja.Undefined()}
	defer g.release()

	for {
		msg, ok := w.inbox.Get(w.ctx)
		if !ok {
			return
		}
		if err := msg.Accept(g); err != nil {
			var pe *ProtocolError
			if errors.As(err, &pe) {
				w.errMu.Lock()
				w.err = err
				w.errMu.Unlock()
				w.logger.Error("Sandbox protocol violation", zap.Error(err))
				g.log(types.LevelError, err.Error())
				w.Terminate()
				return
			}
			w.logger.Warn("Sandbox message failed", zap.Error(err))
		}
	}
}

func (w *Worker) send(msg types.Outgoing) {
	if w.Phase() == PhaseTerminated {
		return
	}
	w.emit(msg)
}

// ============================================================================
// Guest side
// ============================================================================

// guest holds the state only the worker goroutine touches
type guest struct {
	w  *Worker
	rt *Runtime

	widget    *goja.Object
	pending   *goja.Object
	state     goja.Value
	size      types.Size
	assets    types.Assets
	settings  types.Settings
	persisted interface{}
}

func (g *guest) release() {
	if g.rt != nil {
		g.w.rt.Store(nil)
		g.rt.Close()
		g.rt = nil
	}
}

// RegisterWidget stores the definition handle; the last registration in a
// script wins.
func (g *guest) RegisterWidget(def *goja.Object) {
	g.pending = def
}

// ConsoleLog forwards console.* calls as log messages
func (g *guest) ConsoleLog(level types.LogLevel, args []goja.Value) {
	content := make([]interface{}, 0, len(args))
	for _, arg := range args {
		v, err := g.rt.export(arg)
		if err != nil {
			content = append(content, arg.String())
			continue
		}
		content = append(content, v)
	}
	g.log(level, content...)
}

func (g *guest) name() string {
	if g.widget == nil {
		return ""
	}
	if v := g.widget.Get("name"); v != nil && !goja.IsUndefined(v) && !goja.IsNull(v) {
		return v.String()
	}
	return ""
}

func (g *guest) log(level types.LogLevel, content ...interface{}) {
	tag := g.name()
	if tag == "" {
		tag = uninitializedTag
		if g.widget != nil {
			tag = unnamedWidget
		}
	}
	g.w.send(&types.LogMessage{
		Level:   level,
		Content: append([]interface{}{"Widget (" + tag + ")"}, content...),
	})
}

func (g *guest) VisitInit(m *types.InitMessage) error {
	w := g.w
	if !w.phase.CompareAndSwap(int32(PhaseIdle), int32(PhaseRunning)) {
		if w.Phase() == PhaseTerminated {
			return nil
		}
		return &ProtocolError{Phase: w.Phase(), Reason: "init received twice"}
	}

	g.size = m.Init.Size
	g.assets = m.Init.Assets
	g.settings = m.Init.Settings
	g.persisted = m.Init.PersistedState

	if err := g.boot(m.Init.JSSource); err != nil {
		g.log(types.LevelError, "Failed to start VM", ErrorText(err))
		w.logger.Warn("Widget failed to start", zap.Error(err))
		g.release()
		g.widget, g.pending = nil, nil
		w.phase.CompareAndSwap(int32(PhaseRunning), int32(PhaseIdle))
		return nil
	}
	return nil
}

func (g *guest) boot(source string) error {
	rt, err := g.w.spawner.Spawn(g.w.ctx)
	if err != nil {
		return err
	}
	g.rt = rt
	g.w.rt.Store(rt)
	if g.w.Phase() == PhaseTerminated {
		rt.Interrupt(ErrTerminated)
	}

	if err := rt.Bind(g, source); err != nil {
		return err
	}
	if err := rt.Run(scriptName, source); err != nil {
		return err
	}

	if g.pending == nil {
		g.log(types.LevelWarn, "script did not register a widget")
		return nil
	}
	g.widget, g.pending = g.pending, nil

	name := g.name()
	if name == "" {
		name = unnamedWidget
	}
	g.w.logger.Debug("Widget registered", zap.String("widget", name))

	init := g.widget.Get("initialState")
	switch {
	case init == nil || goja.IsUndefined(init):
		g.state = goja.Undefined()
	default:
		if fn, ok := goja.AssertFunction(init); ok {
			ctx, err := g.context(name, true)
			if err != nil {
				return err
			}
			v, err := rt.Call(fn, g.widget, ctx)
			if err != nil {
				return err
			}
			g.state = v
		} else {
			g.state = init
		}
	}

	out, err := rt.ToHost(g.state)
	if err != nil {
		g.log(types.LevelError, "initial state could not be serialized", ErrorText(err))
		return nil
	}
	g.w.send(&types.StateMessage{State: out})
	return nil
}

func (g *guest) VisitResize(m *types.ResizeMessage) error {
	g.size = m.Size
	g.dispatch(types.ResizeEvent(m.Size, g.w.now()))
	return nil
}

func (g *guest) VisitEvent(m *types.EventMessage) error {
	g.dispatch(m.Event)
	return nil
}

func (g *guest) VisitSnapshot(m *types.SnapshotRequest) error {
	reply := func(state interface{}, err error) {
		select {
		case m.Reply <- types.SnapshotReply{State: state, Err: err}:
		default:
		}
	}
	if g.widget == nil {
		reply(nil, ErrNotRunning)
		return nil
	}

	v := g.state
	if fn, ok := goja.AssertFunction(g.widget.Get("persist")); ok {
		res, err := g.rt.Call(fn, g.widget, g.state)
		if err != nil {
			reply(nil, err)
			return nil
		}
		v = res
	}
	out, err := g.rt.ToHost(v)
	reply(out, err)
	return nil
}

// dispatch runs handleEvent and adopts a changed result
func (g *guest) dispatch(ev types.Event) {
	if g.widget == nil || g.rt == nil {
		return
	}
	fn, ok := goja.AssertFunction(g.widget.Get("handleEvent"))
	if !ok {
		return
	}

	name := g.name()
	if name == "" {
		name = unnamedWidget
	}
	event, err := g.rt.ToGuest(ev.Value())
	if err != nil {
		g.log(types.LevelError, ErrorText(err))
		return
	}
	ctx, err := g.context(ev.Seed(name), false)
	if err != nil {
		g.log(types.LevelError, ErrorText(err))
		return
	}

	res, err := g.rt.Call(fn, g.widget, event, g.state, ctx)
	if err != nil {
		if errors.Is(err, ErrTerminated) {
			return
		}
		g.log(types.LevelError, ErrorText(err))
		return
	}
	if res == nil || goja.IsUndefined(res) || goja.IsNull(res) || res.SameAs(g.state) {
		return
	}

	out, err := g.rt.ToHost(res)
	if err != nil {
		g.log(types.LevelError, "state could not be serialized", ErrorText(err))
		return
	}
	g.state = res
	g.w.send(&types.StateMessage{State: out})
}

// context builds the per-invocation WidgetContext
func (g *guest) context(seed string, withPersisted bool) (*goja.Object, error) {
	rt := g.rt
	obj := rt.NewObject()

	assets, err := rt.ToGuest(orEmpty(g.assets))
	if err != nil {
		return nil, err
	}
	settings, err := rt.ToGuest(orEmpty(g.settings))
	if err != nil {
		return nil, err
	}

	size := rt.NewObject()
	_ = size.Set("width", g.size.Width)
	_ = size.Set("height", g.size.Height)

	prng := NewAlea(seed)
	_ = obj.Set("assets", assets)
	_ = obj.Set("settings", settings)
	_ = obj.Set("now", g.w.now().UnixMilli())
	_ = obj.Set("random", func(goja.FunctionCall) goja.Value {
		return rt.ToValue(prng.Float64())
	})
	_ = obj.Set("size", size)

	if withPersisted && g.persisted != nil {
		persisted, err := rt.ToGuest(g.persisted)
		if err != nil {
			return nil, err
		}
		_ = obj.Set("persistedState", persisted)
	}
	return obj, nil
}

func orEmpty(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return map[string]interface{}{}
	}
	return m
}
