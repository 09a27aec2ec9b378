// Package monitor owns the arm/disarm lifecycle and decides which observed
// exchanges are retained.
package monitor

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/go-appsec/patterngrep/patterngrep/service/match"
	"github.com/go-appsec/patterngrep/patterngrep/service/store"
)

// State is the monitor lifecycle state.
type State int

const (
	StateIdle State = iota
	StateArmed
)

func (s State) String() string {
	switch s {
	case StateArmed:
		return "armed"
	default:
		return "idle"
	}
}

// Observation is one delivery from the capture source.
type Observation struct {
	// RequestOnly marks a delivery without a completed response.
	RequestOnly bool
	Request     store.Request
	Response    *store.Response
}

// Status is a point-in-time view of the controller.
type Status struct {
	State      State
	Pattern    string
	Syntax     string
	SessionID  string
	ArmedAt    time.Time
	Count      int
	Generation uint64
}

// Option configures a Controller.
type Option func(*Controller)

// WithMatchOptions sets the options used to compile armed patterns.
func WithMatchOptions(opts match.Options) Option {
	return func(c *Controller) { c.matchOpts = opts }
}

// WithClock replaces time.Now for capture timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// Controller serializes every mutation of the monitor session and the
// capture store. Reads of the store may happen concurrently elsewhere.
type Controller struct {
	mu        sync.Mutex
	state     State
	engine    *match.Engine
	sessionID string
	armedAt   time.Time
	nextSeq   uint64
	// epoch changes on every arm/disarm; a match evaluated under an older
	// epoch is discarded.
	epoch uint64

	store     *store.CaptureStore
	matchOpts match.Options
	now       func() time.Time
	notifier  notifier
}

// New creates an idle controller writing to st.
func New(st *store.CaptureStore, opts ...Option) *Controller {
	c := &Controller{
		store: st,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Arm starts filtering with pattern, discarding previous captures.
// An empty pattern is ignored without error. A pattern that does not
// compile returns a *match.PatternError and changes nothing.
// Arming while armed replaces the pattern in one step.
func (c *Controller) Arm(pattern string) error {
	engine, err := match.New(pattern, c.matchOpts)
	if errors.Is(err, match.ErrEmptyPattern) {
		return nil
	} else if err != nil {
		return err
	}

	c.mu.Lock()
	c.store.Clear()
	c.state = StateArmed
	c.engine = engine
	c.sessionID = uuid.NewString()
	c.armedAt = c.now().UTC()
	c.nextSeq = 0
	c.epoch++
	gen := c.store.Generation()
	sessionID := c.sessionID
	c.mu.Unlock()

	log.Printf("monitor: armed session=%s pattern=%q syntax=%s", sessionID, pattern, engine.Syntax())
	c.notifier.publish(Event{Kind: EventCleared, Generation: gen})
	return nil
}

// Disarm stops filtering and discards captures. Disarming while idle is a no-op.
func (c *Controller) Disarm() {
	c.mu.Lock()
	if c.state == StateIdle {
		c.mu.Unlock()
		return
	}
	c.store.Clear()
	c.state = StateIdle
	c.engine = nil
	c.sessionID = ""
	c.armedAt = time.Time{}
	c.nextSeq = 0
	c.epoch++
	gen := c.store.Generation()
	c.mu.Unlock()

	log.Printf("monitor: disarmed")
	c.notifier.publish(Event{Kind: EventCleared, Generation: gen})
}

// Observe evaluates one delivery and retains it when the response body
// matches the armed pattern. It reports whether the exchange was retained.
// Request-only deliveries and deliveries while idle are dropped.
func (c *Controller) Observe(obs Observation) bool {
	if obs.RequestOnly || obs.Response == nil {
		return false
	}

	c.mu.Lock()
	if c.state != StateArmed {
		c.mu.Unlock()
		return false
	}
	engine, epoch := c.engine, c.epoch
	c.mu.Unlock()

	// search outside the lock so slow bodies do not stall other connections
	if !engine.Matches(obs.Response.Body) {
		return false
	}

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return false
	}
	c.nextSeq++
	ex := &store.Exchange{
		Seq:        c.nextSeq,
		SessionID:  c.sessionID,
		CapturedAt: c.now().UTC(),
		Request:    obs.Request,
		Response:   *obs.Response,
	}
	index, err := c.store.Append(ex)
	gen := c.store.Generation()
	c.mu.Unlock()

	if err != nil {
		log.Printf("monitor: failed to retain %s %s: %v", obs.Request.Method, obs.Request.URL, err)
		return false
	}
	c.notifier.publish(Event{Kind: EventAppended, Index: index, Count: index + 1, Generation: gen})
	return true
}

// Status returns the current state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{
		State:      c.state,
		SessionID:  c.sessionID,
		ArmedAt:    c.armedAt,
		Count:      c.store.Count(),
		Generation: c.store.Generation(),
	}
	if c.engine != nil {
		st.Pattern = c.engine.Pattern()
		st.Syntax = c.engine.Syntax()
	}
	return st
}

// Store returns the capture store for read access.
func (c *Controller) Store() *store.CaptureStore {
	return c.store
}

// Subscribe registers for store change events. The returned function
// unsubscribes and closes the channel.
func (c *Controller) Subscribe() (<-chan Event, func()) {
	return c.notifier.subscribe()
}
