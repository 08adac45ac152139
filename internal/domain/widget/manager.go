package widget

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/widgetkit/internal/providers/browser/surface"
	"github.com/GriffinCanCode/widgetkit/internal/providers/bundle"
	"github.com/GriffinCanCode/widgetkit/internal/shared/id"
	"github.com/GriffinCanCode/widgetkit/internal/shared/types"
)

var ErrNotFound = errors.New("widget not found")

// MountRequest describes a widget to mount
type MountRequest struct {
	Path     string         `json:"path" binding:"required"`
	Size     types.Size     `json:"size"`
	Assets   types.Assets   `json:"assets,omitempty"`
	Settings types.Settings `json:"settings,omitempty"`
}

// Info is the public view of a mounted widget
type Info struct {
	ID        id.MountID `json:"id"`
	Name      string     `json:"name"`
	Source    string     `json:"source"`
	Phase     string     `json:"phase"`
	Size      types.Size `json:"size"`
	CreatedAt time.Time  `json:"created_at"`
	Error     string     `json:"error,omitempty"`
}

// Stats summarises the mounted widgets
type Stats struct {
	Total       int `json:"total"`
	Active      int `json:"active"`
	Loading     int `json:"loading"`
	Stopped     int `json:"stopped"`
	Subscribers int `json:"bus_subscribers"`
}

type entry struct {
	id        id.MountID
	mount     *Mount
	createdAt time.Time
	stopWatch context.CancelFunc
}

// Manager owns every widget mounted through the API
type Manager struct {
	mu      sync.RWMutex
	mounts  map[id.MountID]*entry // Protected by mu
	host    *Host
	mounter *Mounter
	watch   bool
}

// NewManager creates a manager loading bundles through loader
func NewManager(host *Host, loader Loader) *Manager {
	return &Manager{
		mounts:  make(map[id.MountID]*entry),
		host:    host,
		mounter: NewMounter(host, loader, NewRegistry()),
	}
}

// WithWatch reloads local bundles when their files change
func (m *Manager) WithWatch(enabled bool) *Manager {
	m.watch = enabled
	return m
}

// Mount starts a widget in a new container of the requested size
func (m *Manager) Mount(ctx context.Context, req MountRequest) (Info, error) {
	container := surface.NewContainer(req.Size)
	container.SetAttribute(AttrPath, req.Path)
	if len(req.Assets) > 0 {
		raw, err := sonic.MarshalString(req.Assets)
		if err != nil {
			return Info{}, err
		}
		container.SetAttribute(AttrAssets, raw)
	}
	if len(req.Settings) > 0 {
		raw, err := sonic.MarshalString(req.Settings)
		if err != nil {
			return Info{}, err
		}
		container.SetAttribute(AttrSettings, raw)
	}

	mount, err := m.mounter.Setup(ctx, container)
	if err != nil {
		return Info{}, err
	}

	e := &entry{id: id.NewMountID(), mount: mount, createdAt: m.host.now()}
	if m.watch {
		e.stopWatch = m.watchBundle(mount)
	}

	m.mu.Lock()
	m.mounts[e.id] = e
	count := len(m.mounts)
	m.mu.Unlock()

	m.recordActive(count)
	m.host.logger().Info("Widget mounted", zap.String("id", e.id.String()), zap.String("path", req.Path))
	return e.info(), nil
}

func (m *Manager) watchBundle(mount *Mount) context.CancelFunc {
	b := mount.Bundle()
	if b == nil || isRemote(b.Source) {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		err := bundle.Watch(ctx, b.Source, bundle.DefaultDebounce, m.host.logger(), mount.Reload)
		if err != nil {
			m.host.logger().Warn("Bundle watch stopped", zap.String("path", b.Source), zap.Error(err))
		}
	}()
	return cancel
}

// Get returns the mount with the given id
func (m *Manager) Get(mountID id.MountID) (*Mount, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.mounts[mountID]
	if !ok {
		return nil, false
	}
	return e.mount, true
}

// Info returns the public view of a mount
func (m *Manager) Info(mountID id.MountID) (Info, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.mounts[mountID]
	if !ok {
		return Info{}, false
	}
	return e.info(), true
}

// List returns every mount, oldest first
func (m *Manager) List() []Info {
	m.mu.RLock()
	out := make([]Info, 0, len(m.mounts))
	for _, e := range m.mounts {
		out = append(out, e.info())
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Resize changes a mount's container size. changed is false when the
// size was already current, in which case the widget hears nothing.
func (m *Manager) Resize(mountID id.MountID, size types.Size) (changed bool, err error) {
	mount, ok := m.Get(mountID)
	if !ok {
		return false, ErrNotFound
	}
	return mount.Container().Resize(size), nil
}

// Publish puts an event on the bus. Events other than ticks get an id
// and timestamp when they have none.
func (m *Manager) Publish(event types.Event) types.Event {
	if !event.IsTick() {
		if event.ID == "" {
			event.ID = id.NewEventID().String()
		}
		if event.Timestamp == 0 {
			event.Timestamp = m.host.now().UnixMilli()
		}
	}
	m.host.Bus.Publish(event)
	if metrics := m.host.Metrics; metrics != nil {
		metrics.RecordEvent(event.Type)
	}
	return event
}

// Close unmounts a widget
func (m *Manager) Close(mountID id.MountID) bool {
	m.mu.Lock()
	e, ok := m.mounts[mountID]
	if ok {
		delete(m.mounts, mountID)
	}
	count := len(m.mounts)
	m.mu.Unlock()

	if !ok {
		return false
	}
	e.close()
	m.recordActive(count)
	m.host.logger().Info("Widget unmounted", zap.String("id", mountID.String()))
	return true
}

// Shutdown unmounts every widget
func (m *Manager) Shutdown() {
	m.mu.Lock()
	all := make([]*entry, 0, len(m.mounts))
	for mountID, e := range m.mounts {
		all = append(all, e)
		delete(m.mounts, mountID)
	}
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, e := range all {
		wg.Add(1)
		go func(e *entry) {
			defer wg.Done()
			e.close()
		}(e)
	}
	wg.Wait()
	m.recordActive(0)
}

// Stats returns manager statistics
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Stats{Total: len(m.mounts), Subscribers: m.host.Bus.Len()}
	for _, e := range m.mounts {
		ctrl := e.mount.Controller()
		if ctrl == nil {
			s.Loading++
			continue
		}
		switch ctrl.Phase() {
		case PhaseActive:
			s.Active++
		case PhaseStopped:
			s.Stopped++
		default:
			s.Loading++
		}
	}
	return s
}

func (m *Manager) recordActive(count int) {
	if metrics := m.host.Metrics; metrics != nil {
		metrics.SetWidgetsActive(count)
	}
}

func (e *entry) close() {
	if e.stopWatch != nil {
		e.stopWatch()
	}
	e.mount.Close()
}

func (e *entry) info() Info {
	info := Info{
		ID:        e.id,
		Size:      e.mount.Container().Size(),
		CreatedAt: e.createdAt,
		Phase:     PhaseLoading.String(),
	}
	if b := e.mount.Bundle(); b != nil {
		info.Name = b.Name()
		info.Source = b.Source
	}
	if ctrl := e.mount.Controller(); ctrl != nil {
		info.Phase = ctrl.Phase().String()
	}
	if err := e.mount.Err(); err != nil {
		info.Error = err.Error()
	}
	return info
}

func isRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}
