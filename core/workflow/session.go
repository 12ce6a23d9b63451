package workflow

import (
	"context"
	"sync"
	"time"

	"soundscene/core/persist"
	"soundscene/core/pricing"
)

// LocatorFunc receives step/projectId locator updates, the backend rendition
// of the URL bar. Updates are throttled so rapid transitions cannot saturate
// the receiver.
type LocatorFunc func(step int, projectID string)

// DefaultLocatorThrottle is the minimum interval between locator updates.
const DefaultLocatorThrottle = 100 * time.Millisecond

type locatorNotifier struct {
	fn       LocatorFunc
	interval time.Duration

	mu          sync.Mutex
	last        time.Time
	timer       *time.Timer
	pendingStep int
	pendingID   string
}

func newLocatorNotifier(fn LocatorFunc, interval time.Duration) *locatorNotifier {
	if interval <= 0 {
		interval = DefaultLocatorThrottle
	}
	return &locatorNotifier{fn: fn, interval: interval}
}

// notify fires immediately when outside the throttle window, otherwise
// arranges a trailing update carrying the latest values.
func (n *locatorNotifier) notify(step int, projectID string) {
	if n.fn == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	n.pendingStep = step
	n.pendingID = projectID

	now := time.Now()
	if now.Sub(n.last) >= n.interval {
		n.last = now
		step, id := n.pendingStep, n.pendingID
		go n.fn(step, id)
		return
	}
	if n.timer == nil {
		wait := n.interval - now.Sub(n.last)
		n.timer = time.AfterFunc(wait, n.fire)
	}
}

func (n *locatorNotifier) fire() {
	n.mu.Lock()
	n.timer = nil
	n.last = time.Now()
	step, id := n.pendingStep, n.pendingID
	fn := n.fn
	n.mu.Unlock()
	fn(step, id)
}

// Session serializes action dispatch for one project workflow. State
// transitions are synchronous and atomic; effects (price recompute, autosave
// scheduling, locator updates) run after the reducer, observing its output.
type Session struct {
	mu    sync.Mutex
	state State

	store   *persist.Store
	pricer  *pricing.Engine
	locator *locatorNotifier
}

// NewSession creates a session with the initial state for a user.
func NewSession(userID int64, store *persist.Store, pricer *pricing.Engine, locator LocatorFunc, locatorInterval time.Duration) *Session {
	return &Session{
		state:   NewState(userID),
		store:   store,
		pricer:  pricer,
		locator: newLocatorNotifier(locator, locatorInterval),
	}
}

// State returns a snapshot of the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Dispatch applies an action and runs the follow-on effects. It returns the
// resulting state snapshot.
func (s *Session) Dispatch(ctx context.Context, a Action) State {
	s.mu.Lock()
	old := s.state
	next := Reduce(old, a)
	s.state = next
	s.mu.Unlock()

	if priceInputsChanged(old, next) && s.pricer != nil {
		credits := s.pricer.Estimate(ctx, next.Settings, next.Durations())
		if credits != next.Price {
			return s.Dispatch(ctx, PriceComputed{Credits: credits})
		}
	}

	if next.ProjectID != "" && s.store != nil {
		s.store.Record(ctx, next.Project())
	}

	if s.locator != nil && (old.CurrentStep != next.CurrentStep || old.ProjectID != next.ProjectID) {
		s.locator.notify(next.CurrentStep, next.ProjectID)
	}

	return next
}

// replace swaps in a reconciled state without running mutation effects,
// used by project load.
func (s *Session) replace(next State) {
	s.mu.Lock()
	s.state = next
	s.mu.Unlock()
	if s.locator != nil {
		s.locator.notify(next.CurrentStep, next.ProjectID)
	}
}

func priceInputsChanged(old, next State) bool {
	if old.Settings.GraphicsType != next.Settings.GraphicsType ||
		old.Settings.UseSameVideoForAll != next.Settings.UseSameVideoForAll {
		return true
	}
	if len(old.Tracks) != len(next.Tracks) {
		return true
	}
	for i := range next.Tracks {
		if old.Tracks[i].Duration != next.Tracks[i].Duration {
			return true
		}
	}
	return false
}
