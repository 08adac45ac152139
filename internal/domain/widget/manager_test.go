package widget

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/widgetkit/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/widgetkit/internal/shared/id"
	"github.com/GriffinCanCode/widgetkit/internal/shared/types"
)

func newTestManager(t *testing.T) (*Manager, *Host) {
	t.Helper()
	h, _ := newTestHost(t)
	return newTestManagerWith(t, h)
}

func newTestManagerWith(t *testing.T, h *Host) (*Manager, *Host) {
	t.Helper()
	h.Metrics = monitoring.NewMetricsWith(prometheus.NewRegistry())
	t.Cleanup(h.Metrics.Close)

	loader := newFakeLoader()
	loader.add("counter", "counter", counterJS, counterTemplate)
	m := NewManager(h, loader)
	t.Cleanup(m.Shutdown)
	return m, h
}

func TestManagerMount(t *testing.T) {
	m, h := newTestManager(t)

	info, err := m.Mount(context.Background(), MountRequest{
		Path:     "counter",
		Size:     types.Size{Width: 800, Height: 600},
		Settings: types.Settings{"color": "teal"},
	})
	require.NoError(t, err)
	assert.Equal(t, "counter", info.Name)
	assert.Equal(t, "counter", info.Source)
	assert.Equal(t, "active", info.Phase)
	assert.Equal(t, types.Size{Width: 800, Height: 600}, info.Size)
	assert.Empty(t, info.Error)
	_, err = id.ParseMountID(info.ID.String())
	assert.NoError(t, err)

	mount, ok := m.Get(info.ID)
	require.True(t, ok)
	assert.Equal(t, ".count { color: teal; }", mount.Controller().Surface().Style())
	assert.Equal(t, float64(1), testutil.ToFloat64(h.Metrics.WidgetsActive))
	assert.Equal(t, float64(1), testutil.ToFloat64(h.Metrics.MountsTotal))

	_, err = m.Mount(context.Background(), MountRequest{Path: "missing"})
	assert.Error(t, err)
	assert.Len(t, m.List(), 1)
}

func TestManagerListAndStats(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	a, err := m.Mount(ctx, MountRequest{Path: "counter"})
	require.NoError(t, err)
	b, err := m.Mount(ctx, MountRequest{Path: "counter"})
	require.NoError(t, err)

	list := m.List()
	require.Len(t, list, 2)
	assert.Equal(t, a.ID, list[0].ID)
	assert.Equal(t, b.ID, list[1].ID)

	assert.Equal(t, Stats{Total: 2, Active: 2, Subscribers: 2}, m.Stats())

	got, ok := m.Info(b.ID)
	require.True(t, ok)
	assert.Equal(t, b.ID, got.ID)
	_, ok = m.Info("nope")
	assert.False(t, ok)
}

func TestManagerResize(t *testing.T) {
	m, _ := newTestManager(t)
	info, err := m.Mount(context.Background(), MountRequest{Path: "counter", Size: types.Size{Width: 800, Height: 600}})
	require.NoError(t, err)

	changed, err := m.Resize(info.ID, types.Size{Width: 400, Height: 300})
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = m.Resize(info.ID, types.Size{Width: 400, Height: 300})
	require.NoError(t, err)
	assert.False(t, changed)

	got, _ := m.Info(info.ID)
	assert.Equal(t, types.Size{Width: 400, Height: 300}, got.Size)

	_, err = m.Resize("nope", types.Size{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManagerPublish(t *testing.T) {
	h, _ := newTestHost(t)
	h.Now = func() time.Time { return time.UnixMilli(1700000000000) }
	m, h := newTestManagerWith(t, h)
	info, err := m.Mount(context.Background(), MountRequest{Path: "counter"})
	require.NoError(t, err)

	ev := m.Publish(types.Event{Type: "ekg.chat.sent", Data: map[string]interface{}{"message": []interface{}{}}})
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, int64(1700000000000), ev.Timestamp)

	kept := m.Publish(types.Event{ID: "given", Type: "custom", Timestamp: 5})
	assert.Equal(t, "given", kept.ID)
	assert.Equal(t, int64(5), kept.Timestamp)

	tick := m.Publish(types.Event{Type: types.EventTick})
	assert.Empty(t, tick.ID)

	mount, _ := m.Get(info.ID)
	flush(t, mount.Controller())
	assert.Equal(t, map[string]interface{}{"counter": float64(1)}, mount.Controller().State())
	assert.Equal(t, float64(1), testutil.ToFloat64(h.Metrics.EventsTotal.WithLabelValues("ekg.chat.sent")))
}

func TestManagerClose(t *testing.T) {
	m, h := newTestManager(t)
	info, err := m.Mount(context.Background(), MountRequest{Path: "counter"})
	require.NoError(t, err)
	mount, _ := m.Get(info.ID)
	ctrl := mount.Controller()

	assert.True(t, m.Close(info.ID))
	assert.False(t, m.Close(info.ID))
	assert.Equal(t, PhaseStopped, ctrl.Phase())
	assert.Equal(t, 0, h.Bus.Len())
	assert.Empty(t, m.List())
	assert.Equal(t, float64(0), testutil.ToFloat64(h.Metrics.WidgetsActive))
}

func TestManagerShutdown(t *testing.T) {
	m, h := newTestManager(t)
	for i := 0; i < 3; i++ {
		_, err := m.Mount(context.Background(), MountRequest{Path: "counter"})
		require.NoError(t, err)
	}
	require.Equal(t, 3, h.Bus.Len())

	m.Shutdown()
	assert.Empty(t, m.List())
	assert.Equal(t, 0, h.Bus.Len())
	assert.Equal(t, Stats{}, m.Stats())
}

func TestIsRemote(t *testing.T) {
	assert.True(t, isRemote("https://cdn.example.com/w.json"))
	assert.True(t, isRemote("http://x"))
	assert.False(t, isRemote("widgets/counter"))
	assert.False(t, isRemote("ht"))
}
