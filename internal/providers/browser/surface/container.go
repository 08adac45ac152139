package surface

import (
	"sync"

	"github.com/GriffinCanCode/widgetkit/internal/shared/types"
)

// Container is the host element a widget is mounted into. It tracks its
// content-box size and attributes and notifies observers when either
// changes.
type Container struct {
	// notify serializes size changes with their observer calls
	notify sync.Mutex

	mu       sync.Mutex
	size     types.Size
	attrs    map[string]string
	surfaces []*Surface

	nextID  int
	sizeObs map[int]func(types.Size)
	attrObs map[int]func(name string)
}

// NewContainer creates a container with the given box size
func NewContainer(size types.Size) *Container {
	return &Container{
		size:    size,
		attrs:   make(map[string]string),
		sizeObs: make(map[int]func(types.Size)),
		attrObs: make(map[int]func(string)),
	}
}

// Size returns the current content-box size
func (c *Container) Size() types.Size {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Resize sets the box size. Observers run only when the size actually
// changed; the return value reports whether it did. Concurrent resizes
// reach observers in the order they were applied, so observers must not
// call Resize themselves.
func (c *Container) Resize(size types.Size) bool {
	c.notify.Lock()
	defer c.notify.Unlock()

	c.mu.Lock()
	if c.size == size {
		c.mu.Unlock()
		return false
	}
	c.size = size
	observers := make([]func(types.Size), 0, len(c.sizeObs))
	for _, fn := range c.sizeObs {
		observers = append(observers, fn)
	}
	c.mu.Unlock()

	for _, fn := range observers {
		fn(size)
	}
	return true
}

// Observe registers fn for size changes
func (c *Container) Observe(fn func(types.Size)) (stop func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addSizeObserver(fn)
}

// ObserveSince registers fn for size changes made after since was read.
// If the size already moved on, fn is called with the current size
// before ObserveSince returns.
func (c *Container) ObserveSince(since types.Size, fn func(types.Size)) (stop func()) {
	c.notify.Lock()
	defer c.notify.Unlock()

	c.mu.Lock()
	stop = c.addSizeObserver(fn)
	current := c.size
	c.mu.Unlock()

	if current != since {
		fn(current)
	}
	return stop
}

// addSizeObserver is called with mu held
func (c *Container) addSizeObserver(fn func(types.Size)) (stop func()) {
	id := c.nextID
	c.nextID++
	c.sizeObs[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.sizeObs, id)
	}
}

// Attribute returns an attribute value
func (c *Container) Attribute(name string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.attrs[name]
	return v, ok
}

// SetAttribute sets an attribute, notifying observers on change
func (c *Container) SetAttribute(name, value string) {
	c.mu.Lock()
	if old, ok := c.attrs[name]; ok && old == value {
		c.mu.Unlock()
		return
	}
	c.attrs[name] = value
	c.mu.Unlock()
	c.notifyAttr(name)
}

// RemoveAttribute deletes an attribute, notifying observers if it existed
func (c *Container) RemoveAttribute(name string) {
	c.mu.Lock()
	if _, ok := c.attrs[name]; !ok {
		c.mu.Unlock()
		return
	}
	delete(c.attrs, name)
	c.mu.Unlock()
	c.notifyAttr(name)
}

// ObserveAttributes registers fn for attribute changes
func (c *Container) ObserveAttributes(fn func(name string)) (stop func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.attrObs[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.attrObs, id)
	}
}

func (c *Container) notifyAttr(name string) {
	c.mu.Lock()
	observers := make([]func(string), 0, len(c.attrObs))
	for _, fn := range c.attrObs {
		observers = append(observers, fn)
	}
	c.mu.Unlock()

	for _, fn := range observers {
		fn(name)
	}
}

// Attach appends a surface to the container
func (c *Container) Attach(s *Surface) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.surfaces = append(c.surfaces, s)
}

// Detach removes a surface, reporting whether it was attached
func (c *Container) Detach(s *Surface) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, cur := range c.surfaces {
		if cur == s {
			c.surfaces = append(c.surfaces[:i], c.surfaces[i+1:]...)
			return true
		}
	}
	return false
}

// Surfaces returns the attached surfaces in attach order
func (c *Container) Surfaces() []*Surface {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Surface(nil), c.surfaces...)
}
