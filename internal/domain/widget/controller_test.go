package widget

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/widgetkit/internal/providers/browser/morph"
	"github.com/GriffinCanCode/widgetkit/internal/providers/browser/surface"
	"github.com/GriffinCanCode/widgetkit/internal/shared/types"
)

func startController(t *testing.T, h *Host, size types.Size, b Bundle) (*Controller, *surface.Container, *recorder) {
	t.Helper()
	rec := &recorder{}
	container := surface.NewContainer(size)
	c := NewController(h, rec.options())
	require.NoError(t, c.Start(context.Background(), container, b))
	t.Cleanup(c.Stop)
	return c, container, rec
}

func surfaceHTML(t *testing.T, c *Controller) string {
	t.Helper()
	out, err := c.Surface().HTML()
	require.NoError(t, err)
	return out
}

func TestControllerCounter(t *testing.T) {
	h, _ := newTestHost(t)
	c, container, rec := startController(t, h, types.Size{Width: 800, Height: 600}, counterBundle())

	assert.Equal(t, PhaseActive, c.Phase())
	assert.Equal(t, "counter", c.Name())
	assert.Equal(t, []*surface.Surface{c.Surface()}, container.Surfaces())
	assert.Equal(t, ".count { color: red; }", c.Surface().Style())

	flush(t, c)
	assert.Equal(t, `<div><span class="count">0</span></div>`, surfaceHTML(t, c))

	h.Bus.Publish(chat("a", "hello"))
	h.Bus.Publish(types.Event{Type: types.EventTick, Timestamp: 1})
	h.Bus.Publish(chat("b", "again"))
	flush(t, c)

	assert.Equal(t, `<div><span class="count">2</span></div>`, surfaceHTML(t, c))
	assert.Equal(t, map[string]interface{}{"counter": float64(2)}, c.State())
	assert.Equal(t, []interface{}{
		map[string]interface{}{"counter": float64(0)},
		map[string]interface{}{"counter": float64(1)},
		map[string]interface{}{"counter": float64(2)},
	}, rec.stateList())
	assert.Contains(t, rec.allOps(), morph.Op{Kind: morph.OpText, Path: []int{0, 0}, Value: "2"})
}

func TestControllerMessageLimit(t *testing.T) {
	h, _ := newTestHost(t)
	b := Bundle{
		Name: "chat",
		JS: `
EKG.registerWidget({
	name: 'Chat',
	initialState: () => ({ messages: [] }),
	handleEvent(event, state, ctx) {
		if (event.type !== 'ekg.chat.sent') return state
		const text = EKG.utils.chatToText(event.data.message)
		return { ...state, messages: [...state.messages.slice(1 - ctx.settings.messageLimit), { id: event.id, text }] }
	},
})`,
		Template: `<ul>{{range .messages}}<li id="{{.id}}">{{.text}}</li>{{end}}</ul>`,
		Settings: types.Settings{"messageLimit": 2},
	}
	c, _, _ := startController(t, h, types.Size{Width: 800, Height: 600}, b)

	h.Bus.Publish(chat("a", "first"))
	h.Bus.Publish(chat("b", "second"))
	h.Bus.Publish(chat("c", "third"))
	flush(t, c)

	assert.Equal(t, `<div><ul><li id="b">second</li><li id="c">third</li></ul></div>`, surfaceHTML(t, c))
	assert.Equal(t, 2, c.Surface().Find("li").Length())
}

func TestControllerResize(t *testing.T) {
	h, _ := newTestHost(t)
	b := Bundle{
		Name: "sizer",
		JS: `
EKG.registerWidget({
	name: 'Sizer',
	initialState: (ctx) => ({ w: ctx.size.width, h: ctx.size.height, resizes: 0 }),
	handleEvent(event, state) {
		if (event.type !== 'RESIZE') return state
		return { w: event.data.width, h: event.data.height, resizes: state.resizes + 1 }
	},
})`,
		Template: `<p>{{.w}}x{{.h}}</p>`,
	}
	c, container, _ := startController(t, h, types.Size{Width: 800, Height: 600}, b)
	flush(t, c)
	assert.Equal(t, `<div><p>800x600</p></div>`, surfaceHTML(t, c))

	assert.True(t, container.Resize(types.Size{Width: 400, Height: 300}))
	assert.False(t, container.Resize(types.Size{Width: 400, Height: 300}))
	flush(t, c)

	assert.Equal(t, map[string]interface{}{
		"w": float64(400), "h": float64(300), "resizes": float64(1),
	}, c.State())
	assert.Equal(t, `<div><p>400x300</p></div>`, surfaceHTML(t, c))
}

func TestControllerStop(t *testing.T) {
	h, _ := newTestHost(t)
	c, container, _ := startController(t, h, types.Size{Width: 100, Height: 100}, counterBundle())
	flush(t, c)
	require.Equal(t, 1, h.Bus.Len())

	s := c.Surface()
	c.Stop()
	c.Stop()

	assert.Equal(t, PhaseStopped, c.Phase())
	assert.Empty(t, container.Surfaces())
	assert.Equal(t, 0, h.Bus.Len())
	_, err := s.Render(`<div></div>`)
	assert.ErrorIs(t, err, surface.ErrClosed)

	// Events after stop reach nobody
	h.Bus.Publish(chat("late", "x"))
	assert.Equal(t, map[string]interface{}{"counter": float64(0)}, c.State())

	_, _, err = c.Persist(context.Background())
	assert.ErrorIs(t, err, ErrNotActive)
}

func TestControllerStartTwice(t *testing.T) {
	h, _ := newTestHost(t)
	c, container, _ := startController(t, h, types.Size{Width: 100, Height: 100}, counterBundle())
	assert.ErrorIs(t, c.Start(context.Background(), container, counterBundle()), ErrAlreadyStarted)
}

func TestControllerStartErrors(t *testing.T) {
	tests := []struct {
		name   string
		bundle Bundle
	}{
		{"bad template", Bundle{Name: "t", JS: counterJS, Template: `{{if}}`}},
		{"bad stylesheet", Bundle{Name: "s", JS: counterJS, Template: counterTemplate, CSS: `{{.x`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestHost(t)
			container := surface.NewContainer(types.Size{Width: 10, Height: 10})
			c := NewController(h, Options{})

			err := c.Start(context.Background(), container, tt.bundle)
			require.ErrorIs(t, err, ErrInvalidBundle)
			assert.Equal(t, PhaseStopped, c.Phase())
			assert.Empty(t, container.Surfaces())
			assert.Equal(t, 0, h.Bus.Len())
			c.Stop()
		})
	}

	t.Run("canceled context", func(t *testing.T) {
		h, _ := newTestHost(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		c := NewController(h, Options{})
		err := c.Start(ctx, surface.NewContainer(types.Size{}), counterBundle())
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, PhaseStopped, c.Phase())
	})
}

func TestControllerPersist(t *testing.T) {
	h, _ := newTestHost(t)
	c, _, rec := startController(t, h, types.Size{Width: 100, Height: 100}, counterBundle())

	state, changed, err := c.Persist(context.Background())
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, map[string]interface{}{"counter": float64(0)}, state)

	_, changed, err = c.Persist(context.Background())
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Len(t, rec.persistList(), 1)

	// Stop persists whatever changed since the last snapshot
	h.Bus.Publish(chat("a", "x"))
	c.Stop()
	assert.Equal(t, []interface{}{
		map[string]interface{}{"counter": float64(0)},
		map[string]interface{}{"counter": float64(1)},
	}, rec.persistList())
}

func TestControllerPersistedStateIsBaseline(t *testing.T) {
	h, _ := newTestHost(t)
	b := counterBundle()
	b.PersistedState = map[string]interface{}{"counter": float64(7)}
	c, _, rec := startController(t, h, types.Size{Width: 100, Height: 100}, b)

	flush(t, c)
	assert.Equal(t, `<div><span class="count">7</span></div>`, surfaceHTML(t, c))

	_, changed, err := c.Persist(context.Background())
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Empty(t, rec.persistList())
}

func TestControllerPersistLoop(t *testing.T) {
	h, _ := newTestHost(t)
	h.Config.PersistInterval = 10 * time.Millisecond
	_, _, rec := startController(t, h, types.Size{Width: 100, Height: 100}, counterBundle())

	assert.Eventually(t, func() bool { return len(rec.persistList()) == 1 }, 2*time.Second, 5*time.Millisecond)
	h.Bus.Publish(chat("a", "x"))
	assert.Eventually(t, func() bool { return len(rec.persistList()) == 2 }, 2*time.Second, 5*time.Millisecond)
}

func TestControllerGuestLogs(t *testing.T) {
	h, logs := newTestHost(t)
	b := Bundle{
		Name: "noisy",
		JS: `
EKG.registerWidget({
	name: 'Noisy',
	initialState: 0,
	handleEvent(event, state) {
		console.warn('saw', event.type)
		return state
	},
})`,
		Template: `<b>{{.state}}</b>`,
	}
	c, _, rec := startController(t, h, types.Size{Width: 100, Height: 100}, b)

	h.Bus.Publish(types.Event{ID: "1", Type: "ping"})
	flush(t, c)

	require.Len(t, rec.logList(), 1)
	msg := rec.logList()[0]
	assert.Equal(t, types.LevelWarn, msg.Level)
	assert.Equal(t, []interface{}{"Widget (Noisy)", "saw", "ping"}, msg.Content)

	entries := logs.FilterMessage("saw ping").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "noisy", fields["widget"])
	assert.Equal(t, "Widget (Noisy)", fields["tag"])
	assert.Equal(t, `<div><b>0</b></div>`, surfaceHTML(t, c))
}

func TestControllerExitTransition(t *testing.T) {
	h, _ := newTestHost(t)
	b := Bundle{
		Name: "toast",
		JS: `
EKG.registerWidget({
	initialState: { show: true },
	handleEvent(event) {
		if (event.type === 'hide') return { show: false }
	},
})`,
		Template: `{{if .show}}<p id="toast" ekg-removed="fade">hi</p>{{end}}`,
	}
	c, _, rec := startController(t, h, types.Size{Width: 100, Height: 100}, b)
	flush(t, c)

	h.Bus.Publish(types.Event{ID: "1", Type: "hide"})
	flush(t, c)
	assert.Equal(t, "true", c.Surface().Find("#toast").AttrOr(morph.RemovingAttr, ""))

	assert.Eventually(t, func() bool {
		return c.Surface().Find("#toast").Length() == 0
	}, time.Second, 5*time.Millisecond)
	assert.Contains(t, rec.allOps(), morph.Op{Kind: morph.OpRemove, Path: []int{0}})
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "active", PhaseActive.String())
	assert.Equal(t, "phase(9)", Phase(9).String())
}

func TestFormatLog(t *testing.T) {
	tests := []struct {
		name    string
		content []interface{}
		tag     string
		text    string
	}{
		{"tagged", []interface{}{"Widget (X)", "n", float64(2), map[string]interface{}{"a": true}}, "Widget (X)", `n 2 {"a":true}`},
		{"untagged", []interface{}{float64(1), "x"}, "", "1 x"},
		{"empty", nil, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tag, text := FormatLog(tt.content)
			assert.Equal(t, tt.tag, tag)
			assert.Equal(t, tt.text, text)
		})
	}
}
