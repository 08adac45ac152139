package sandbox

import (
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/dop251/goja"
)

// ============================================================================
// Serialization boundary
// ============================================================================
//
// Values cross between host and guest only as JSON text. The guest side
// uses the interpreter's own JSON so cycles, functions and symbols follow
// JSON.stringify rules; the host side decodes with sonic into plain
// map/slice/float64 trees.

// ToGuest copies a host value into the guest heap
func (r *Runtime) ToGuest(v interface{}) (goja.Value, error) {
	if v == nil {
		return goja.Null(), nil
	}
	text, err := sonic.MarshalString(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotSerializable, err)
	}
	return r.parse(goja.Undefined(), r.vm.ToValue(text))
}

// ToHost copies a guest value out of the guest heap. toJSON hooks run
// under the handler time budget.
func (r *Runtime) ToHost(v goja.Value) (interface{}, error) {
	var out interface{}
	_, err := r.guard(func() (goja.Value, error) {
		var err error
		out, err = r.export(v)
		return nil, err
	})
	return out, err
}

// export is ToHost without the time budget, for bindings that already
// run inside a guarded call.
func (r *Runtime) export(v goja.Value) (interface{}, error) {
	if v == nil || goja.IsUndefined(v) {
		return nil, nil
	}
	text, err := r.stringify(goja.Undefined(), v)
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", ErrNotSerializable, ErrorText(err))
	}
	if goja.IsUndefined(text) {
		return nil, nil
	}

	var out interface{}
	if err := sonic.UnmarshalString(text.String(), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotSerializable, err)
	}
	return out, nil
}
