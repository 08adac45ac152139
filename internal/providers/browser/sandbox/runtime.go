package sandbox

import (
	"errors"
	"fmt"
	"time"

	"github.com/dop251/goja"

	"github.com/GriffinCanCode/widgetkit/internal/shared/types"
)

// Globals removed from every guest runtime. Anything with ambient time,
// scheduling or host reach goes.
var strippedGlobals = []string{
	"Date",
	"Promise",
	"WeakRef",
	"FinalizationRegistry",
	"SharedArrayBuffer",
	"Atomics",
	"Proxy",
	"Reflect",
}

// Host receives the calls a guest program makes into the SDK bindings.
// Both methods run on the goroutine that is executing guest code.
type Host interface {
	RegisterWidget(def *goja.Object)
	ConsoleLog(level types.LogLevel, args []goja.Value)
}

// Runtime wraps goja VM with security controls
type Runtime struct {
	vm     *goja.Runtime
	config Config

	// Captured before any guest code runs so a guest cannot swap them out
	stringify goja.Callable
	parse     goja.Callable

	bound bool
}

// New creates a new sandboxed runtime with the base globals installed.
// SDK bindings are added later by Bind.
func New(config Config) (*Runtime, error) {
	vm := goja.New()

	r := &Runtime{
		vm:     vm,
		config: config,
	}

	if config.MaxCallStackSize > 0 {
		vm.SetMaxCallStackSize(config.MaxCallStackSize)
	}

	if err := r.setupGlobals(); err != nil {
		return nil, err
	}

	return r, nil
}

// setupGlobals configures global objects and security
func (r *Runtime) setupGlobals() error {
	// Remove dangerous globals
	for _, name := range []string{"require", "process", "module", "exports"} {
		if err := r.vm.Set(name, goja.Undefined()); err != nil {
			return err
		}
	}
	global := r.vm.GlobalObject()
	for _, name := range strippedGlobals {
		global.Delete(name)
	}

	// Setup timers (no-op for security)
	noop := func(goja.FunctionCall) goja.Value { return goja.Undefined() }
	for _, name := range []string{"setTimeout", "setInterval", "clearTimeout", "clearInterval", "queueMicrotask"} {
		if err := r.vm.Set(name, noop); err != nil {
			return err
		}
	}

	json := global.Get("JSON")
	if json == nil {
		return errors.New("sandbox: JSON intrinsic missing")
	}
	jsonObj := json.ToObject(r.vm)

	var ok bool
	if r.stringify, ok = goja.AssertFunction(jsonObj.Get("stringify")); !ok {
		return errors.New("sandbox: JSON.stringify is not callable")
	}
	if r.parse, ok = goja.AssertFunction(jsonObj.Get("parse")); !ok {
		return errors.New("sandbox: JSON.parse is not callable")
	}

	return nil
}

// Bind installs the SDK bindings for host and replaces Math.random with a
// generator seeded from seed. A runtime can be bound once.
func (r *Runtime) Bind(host Host, seed string) error {
	if r.bound {
		return errors.New("sandbox: runtime already bound")
	}
	r.bound = true

	r.vm.SetRandSource(NewAlea(seed).Float64)

	ekg := r.vm.NewObject()
	if err := ekg.Set("registerWidget", func(call goja.FunctionCall) goja.Value {
		def, ok := call.Argument(0).(*goja.Object)
		if !ok {
			panic(r.vm.NewTypeError("registerWidget expects a widget definition object"))
		}
		host.RegisterWidget(def)
		return goja.Undefined()
	}); err != nil {
		return err
	}

	utils := r.vm.NewObject()
	if err := utils.Set("chatToText", r.chatToText); err != nil {
		return err
	}
	if err := ekg.Set("utils", utils); err != nil {
		return err
	}
	if err := r.vm.Set("EKG", ekg); err != nil {
		return err
	}

	console := r.vm.NewObject()
	for _, level := range []types.LogLevel{types.LevelLog, types.LevelInfo, types.LevelWarn, types.LevelError, types.LevelDebug} {
		if err := console.Set(string(level), r.makeConsoleFunc(host, level)); err != nil {
			return err
		}
	}
	return r.vm.Set("console", console)
}

// makeConsoleFunc creates a console function
func (r *Runtime) makeConsoleFunc(host Host, level types.LogLevel) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		if r.config.EnableConsole {
			host.ConsoleLog(level, call.Arguments)
		}
		return goja.Undefined()
	}
}

func (r *Runtime) chatToText(call goja.FunctionCall) goja.Value {
	raw, err := r.export(call.Argument(0))
	if err != nil {
		panic(r.vm.NewTypeError(err.Error()))
	}
	nodes, err := types.DecodeChatNodes(raw)
	if err != nil {
		panic(r.vm.NewTypeError(err.Error()))
	}
	return r.vm.ToValue(types.ChatToText(nodes))
}

// Run evaluates a guest program
func (r *Runtime) Run(name, source string) error {
	_, err := r.guard(func() (goja.Value, error) {
		return r.vm.RunScript(name, source)
	})
	return err
}

// Call invokes a guest function under the handler time budget
func (r *Runtime) Call(fn goja.Callable, this goja.Value, args ...goja.Value) (goja.Value, error) {
	return r.guard(func() (goja.Value, error) {
		return fn(this, args...)
	})
}

// Interrupt aborts whatever guest code is running. Safe from any goroutine.
func (r *Runtime) Interrupt(reason error) {
	r.vm.Interrupt(reason)
}

// NewObject allocates an empty guest object
func (r *Runtime) NewObject() *goja.Object {
	return r.vm.NewObject()
}

// ToValue wraps a Go primitive or function for the guest
func (r *Runtime) ToValue(v interface{}) goja.Value {
	return r.vm.ToValue(v)
}

// guard runs fn with the handler timeout armed and converts panics and
// interrupts into errors.
func (r *Runtime) guard(fn func() (goja.Value, error)) (val goja.Value, err error) {
	var timer *time.Timer
	if r.config.HandlerTimeout > 0 {
		timer = time.AfterFunc(r.config.HandlerTimeout, func() {
			r.vm.Interrupt(ErrTimeout)
		})
	}

	defer func() {
		if timer != nil && !timer.Stop() {
			r.vm.ClearInterrupt()
		}
		if rec := recover(); rec != nil {
			val, err = nil, fmt.Errorf("sandbox: guest call panicked: %v", rec)
		}
	}()

	val, err = fn()

	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if reason, ok := interrupted.Value().(error); ok {
			return nil, reason
		}
		return nil, fmt.Errorf("sandbox: interrupted: %v", interrupted.Value())
	}
	return val, err
}

// Close releases resources
func (r *Runtime) Close() error {
	r.vm.Interrupt(ErrTerminated)
	return nil
}

// ErrorText renders a guest failure the way it is reported in log content
func ErrorText(err error) string {
	var ex *goja.Exception
	if errors.As(err, &ex) {
		return ex.String()
	}
	return err.Error()
}
