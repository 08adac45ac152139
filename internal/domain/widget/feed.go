package widget

import (
	"sync"

	"github.com/GriffinCanCode/widgetkit/internal/providers/browser/morph"
	"github.com/GriffinCanCode/widgetkit/internal/shared/queue"
	"github.com/GriffinCanCode/widgetkit/internal/shared/types"
)

// UpdateType discriminates Update
type UpdateType string

const (
	UpdatePatch   UpdateType = "patch"
	UpdateState   UpdateType = "state"
	UpdateLog     UpdateType = "log"
	UpdatePersist UpdateType = "persist"
)

// Update is one observable change of a mounted widget
type Update struct {
	Type  UpdateType        `json:"type"`
	Ops   []morph.Op        `json:"ops,omitempty"`
	State interface{}       `json:"state,omitempty"`
	Log   *types.LogMessage `json:"log,omitempty"`
}

// feed fans updates out to subscribers without ever blocking the
// publisher
type feed struct {
	mu     sync.Mutex
	subs   map[int]*queue.Mailbox[Update]
	next   int
	closed bool
}

func newFeed() *feed {
	return &feed{subs: make(map[int]*queue.Mailbox[Update])}
}

func (f *feed) subscribe() (*queue.Mailbox[Update], func()) {
	box := queue.New[Update]()

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		box.Close()
		return box, func() {}
	}
	id := f.next
	f.next++
	f.subs[id] = box

	return box, func() {
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
		box.Close()
	}
}

func (f *feed) publish(u Update) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, box := range f.subs {
		box.Put(u)
	}
}

func (f *feed) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	for id, box := range f.subs {
		box.Close()
		delete(f.subs, id)
	}
}
