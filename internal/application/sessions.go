package application

import (
	"fmt"
	"sort"
	"time"

	"github.com/bnema/chimenet/internal/domain"
	"github.com/bnema/chimenet/internal/ports"
)

// Resolution is a session that has just been answered.
type Resolution struct {
	Session   domain.RingSession
	Request   domain.RingRequest
	Response  domain.ResponseKind
	NextState string
	Auto      bool
}

// SessionHooks connect the tracker to its owner. Post must run the function
// on the goroutine that owns the tracker; timer callbacks go through it.
type SessionHooks struct {
	Post     func(func())
	OnAuto   func(Resolution)
	OnExpire func(domain.RingSession)
}

type trackedSession struct {
	session    domain.RingSession
	request    domain.RingRequest
	nextState  string
	generation uint64
	timer      ports.Timer
}

// SessionTracker keeps the pending rings of one chime. Each session resolves
// exactly once: by a manual answer, by its auto-response timer, or by
// expiring. Settled request ids are remembered for a while so redelivered
// rings are not answered twice. It is not safe for concurrent use.
type SessionTracker struct {
	clock    ports.Clock
	ttl      time.Duration
	retain   time.Duration
	hooks    SessionHooks
	sessions map[string]*trackedSession
	settled  map[string]time.Time
	nextGen  uint64
}

func NewSessionTracker(clock ports.Clock, ttl time.Duration, hooks SessionHooks) *SessionTracker {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if hooks.Post == nil {
		hooks.Post = func(f func()) { f() }
	}

	// A redelivery older than the discovery window is from a peer we would
	// already have forgotten.
	retain := max(ttl, domain.DiscoveryStaleness)

	return &SessionTracker{
		clock:    clock,
		ttl:      ttl,
		retain:   retain,
		hooks:    hooks,
		sessions: map[string]*trackedSession{},
		settled:  map[string]time.Time{},
	}
}

// Seen reports whether requestID is pending or was settled recently.
func (t *SessionTracker) Seen(requestID string) bool {
	t.prune()
	if _, ok := t.sessions[requestID]; ok {
		return true
	}
	_, ok := t.settled[requestID]

	return ok
}

// Settle remembers requestID without opening a session, for rings that were
// handled without one.
func (t *SessionTracker) Settle(requestID string) {
	t.settled[requestID] = t.clock.Now()
}

// Start opens a session for req. An immediate decision returns the
// resolution directly and opens nothing. A request id that is pending or
// settled is rejected with ErrDuplicateRequest.
func (t *SessionTracker) Start(req domain.RingRequest, decision domain.GateDecision) (*Resolution, error) {
	if t.Seen(req.RequestID) {
		return nil, fmt.Errorf("%w: %s", domain.ErrDuplicateRequest, req.RequestID)
	}

	now := t.clock.Now()
	session := domain.RingSession{
		RequestID:    req.RequestID,
		ChimeID:      req.ChimeID,
		FromNode:     req.FromNode,
		FromUser:     req.FromUser,
		CreatedAt:    now,
		AutoResponse: decision.AutoResponse,
		Status:       domain.SessionPending,
	}

	if decision.Immediate() {
		session.Status = domain.SessionResolved
		t.Settle(req.RequestID)
		return &Resolution{
			Session:   session,
			Request:   req,
			Response:  decision.AutoResponse,
			NextState: decision.NextState,
			Auto:      true,
		}, nil
	}

	t.nextGen++
	tracked := &trackedSession{
		session:    session,
		request:    req,
		nextState:  decision.NextState,
		generation: t.nextGen,
	}

	requestID, generation := req.RequestID, tracked.generation
	switch {
	case decision.HasAutoResponse():
		deadline := now.Add(decision.Delay)
		tracked.session.Deadline = &deadline
		tracked.timer = t.clock.AfterFunc(decision.Delay, func() {
			t.hooks.Post(func() { t.fire(requestID, generation) })
		})
	case t.ttl > 0:
		deadline := now.Add(t.ttl)
		tracked.session.Deadline = &deadline
		tracked.timer = t.clock.AfterFunc(t.ttl, func() {
			t.hooks.Post(func() { t.expire(requestID, generation) })
		})
	}

	t.sessions[req.RequestID] = tracked

	return nil, nil
}

// ResolveManual answers the named session, or with an empty requestID the
// most recently created pending session of chimeID. The state transition
// recorded for the automatic answer does not apply to manual ones.
func (t *SessionTracker) ResolveManual(chimeID, requestID string, kind domain.ResponseKind) (Resolution, error) {
	tracked := t.find(chimeID, requestID)
	if tracked == nil {
		return Resolution{}, domain.ErrNoPendingSession
	}

	t.remove(tracked)

	return Resolution{
		Session:  tracked.session,
		Request:  tracked.request,
		Response: kind,
	}, nil
}

func (t *SessionTracker) Pending() []domain.RingSession {
	ordered := t.ordered()
	out := make([]domain.RingSession, 0, len(ordered))
	for _, tracked := range ordered {
		out = append(out, tracked.session)
	}

	return out
}

func (t *SessionTracker) Len() int {
	return len(t.sessions)
}

// CancelAll stops every timer and forgets all pending sessions without
// answering. Settled ids are kept.
func (t *SessionTracker) CancelAll() []domain.RingSession {
	cancelled := t.Pending()
	for _, tracked := range t.sessions {
		if tracked.timer != nil {
			tracked.timer.Stop()
		}
	}
	t.sessions = map[string]*trackedSession{}

	return cancelled
}

func (t *SessionTracker) fire(requestID string, generation uint64) {
	tracked, ok := t.sessions[requestID]
	if !ok || tracked.generation != generation || tracked.session.Status != domain.SessionPending {
		return
	}

	t.remove(tracked)
	if t.hooks.OnAuto != nil {
		t.hooks.OnAuto(Resolution{
			Session:   tracked.session,
			Request:   tracked.request,
			Response:  tracked.session.AutoResponse,
			NextState: tracked.nextState,
			Auto:      true,
		})
	}
}

func (t *SessionTracker) expire(requestID string, generation uint64) {
	tracked, ok := t.sessions[requestID]
	if !ok || tracked.generation != generation {
		return
	}

	t.remove(tracked)
	if t.hooks.OnExpire != nil {
		t.hooks.OnExpire(tracked.session)
	}
}

func (t *SessionTracker) find(chimeID, requestID string) *trackedSession {
	if requestID != "" {
		tracked, ok := t.sessions[requestID]
		if !ok || tracked.session.Status != domain.SessionPending {
			return nil
		}
		if chimeID != "" && tracked.session.ChimeID != chimeID {
			return nil
		}
		return tracked
	}

	var latest *trackedSession
	for _, tracked := range t.sessions {
		if tracked.session.ChimeID != chimeID || tracked.session.Status != domain.SessionPending {
			continue
		}
		if latest == nil || tracked.generation > latest.generation {
			latest = tracked
		}
	}

	return latest
}

func (t *SessionTracker) remove(tracked *trackedSession) {
	if tracked.timer != nil {
		tracked.timer.Stop()
	}
	tracked.session.Status = domain.SessionResolved
	delete(t.sessions, tracked.session.RequestID)
	t.Settle(tracked.session.RequestID)
}

func (t *SessionTracker) prune() {
	cutoff := t.clock.Now().Add(-t.retain)
	for requestID, at := range t.settled {
		if at.Before(cutoff) {
			delete(t.settled, requestID)
		}
	}
}

func (t *SessionTracker) ordered() []*trackedSession {
	out := make([]*trackedSession, 0, len(t.sessions))
	for _, tracked := range t.sessions {
		out = append(out, tracked)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].generation < out[j].generation
	})

	return out
}
