package monitor

import (
	"sync"
)

// EventKind identifies what changed in the capture store.
type EventKind int

const (
	// EventAppended means one exchange was retained.
	EventAppended EventKind = iota + 1
	// EventCleared means the store was emptied by arm or disarm.
	EventCleared
)

func (k EventKind) String() string {
	switch k {
	case EventAppended:
		return "appended"
	case EventCleared:
		return "cleared"
	default:
		return "unknown"
	}
}

// Event signals that any rendered view of the store is stale.
type Event struct {
	Kind       EventKind
	Index      int // EventAppended only
	Count      int // EventAppended only
	Generation uint64
}

// notifier fans events out to subscribers. Each subscriber channel holds at
// most one pending event; a newer event replaces an unread one so a slow
// subscriber never blocks the capture path.
type notifier struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Event
}

func (n *notifier) subscribe() (<-chan Event, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.subs == nil {
		n.subs = make(map[int]chan Event)
	}
	id := n.nextID
	n.nextID++
	ch := make(chan Event, 1)
	n.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()

			delete(n.subs, id)
			close(ch)
		})
	}
}

func (n *notifier) publish(ev Event) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, ch := range n.subs {
		select {
		case ch <- ev:
			continue
		default:
		}
		// slot is full: keep whichever of the two events must not be lost
		next := ev
		select {
		case pending := <-ch:
			if !supersedes(ev, pending) {
				next = pending
			}
		default:
		}
		select {
		case ch <- next:
		default:
		}
	}
}

// supersedes reports whether ev may replace an unread pending event. A clear
// is only replaced by a clear of the same or a later generation, and no event
// is replaced by one from an older generation.
func supersedes(ev, pending Event) bool {
	if ev.Generation < pending.Generation {
		return false
	} else if pending.Kind == EventCleared {
		return ev.Kind == EventCleared
	}
	return true
}
