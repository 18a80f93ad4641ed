package docdb

import (
	"fmt"
	"slices"
	"sync"
)

type Op int

const (
	OpNone   Op = 0
	OpPut    Op = 1
	OpDelete Op = 2
)

func (op Op) String() string {
	switch op {
	case OpNone:
		return "none"
	case OpPut:
		return "put"
	case OpDelete:
		return "delete"
	default:
		return fmt.Sprintf("Op(%d)", int(op))
	}
}

// Change describes a committed write, as seen by watchers.
type Change struct {
	Collection string
	Op         Op
	ID         string
	// Fields lists indexed fields whose value was replaced. Inserts and
	// deletes report no fields.
	Fields []string
}

// Subscription identifies a registered watcher. Stop unregisters it.
type Subscription struct {
	reg *watchRegistry
	id  uint64
}

func (s *Subscription) Stop() {
	if s == nil || s.reg == nil {
		return
	}
	s.reg.remove(s.id)
}

type watcher struct {
	id      uint64
	fields  []string // nil means all records
	onID    func(id string)
	onField func(id, field string)
}

type watchRegistry struct {
	mu       sync.Mutex
	nextID   uint64
	watchers []*watcher
}

func (r *watchRegistry) add(w *watcher) *Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	w.id = r.nextID
	r.watchers = append(r.watchers, w)
	return &Subscription{reg: r, id: w.id}
}

func (r *watchRegistry) remove(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.watchers = slices.DeleteFunc(r.watchers, func(w *watcher) bool { return w.id == id })
}

// notify runs callbacks synchronously, in registration order. Callbacks
// registered or removed while notifying take effect on the next change.
func (r *watchRegistry) notify(chg *Change) {
	r.mu.Lock()
	ws := slices.Clone(r.watchers)
	r.mu.Unlock()

	for _, w := range ws {
		if w.onID != nil {
			w.onID(chg.ID)
		}
	}
	for _, field := range chg.Fields {
		for _, w := range ws {
			if w.onField != nil && slices.Contains(w.fields, field) {
				w.onField(chg.ID, field)
			}
		}
	}
}
