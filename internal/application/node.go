package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bnema/chimenet/internal/domain"
	"github.com/bnema/chimenet/internal/ports"
	"github.com/bnema/chimenet/internal/protocol"
)

const shutdownPublishTimeout = 2 * time.Second

type NodeConfig struct {
	User              string
	NodeID            string
	Chime             domain.ChimeInfo
	HeartbeatInterval time.Duration
	SessionTTL        time.Duration
}

func (c NodeConfig) Validate() error {
	if strings.TrimSpace(c.User) == "" {
		return errors.New("node user is required")
	}
	if strings.ContainsAny(c.User, "/+#") {
		return fmt.Errorf("node user %q contains a topic separator", c.User)
	}
	if strings.TrimSpace(c.NodeID) == "" {
		return errors.New("node id is required")
	}
	if err := c.Chime.Validate(); err != nil {
		return fmt.Errorf("validate chime: %w", err)
	}
	if c.HeartbeatInterval < 0 || c.SessionTTL < 0 {
		return errors.New("node intervals must not be negative")
	}

	return nil
}

type NodeEventKind string

const (
	EventRingReceived NodeEventKind = "ring_received"
	EventRingDropped  NodeEventKind = "ring_dropped"
	EventSessionOpen  NodeEventKind = "session_open"
	EventResponded    NodeEventKind = "responded"
	EventExpired      NodeEventKind = "expired"
	EventModeChanged  NodeEventKind = "mode_changed"
)

// NodeEvent is reported to the observer on the node goroutine. Observers must
// not block.
type NodeEvent struct {
	Kind     NodeEventKind
	Request  domain.RingRequest
	Decision domain.GateDecision
	Response domain.ResponseKind
	Auto     bool
	Mode     domain.Mode
}

type NodeSnapshot struct {
	User       string
	NodeID     string
	Chime      domain.ChimeInfo
	State      domain.ResolvedState
	Override   *domain.Mode
	Fallback   domain.Mode
	Conditions domain.Conditions
	States     []domain.CustomState
	Pending    []domain.RingSession
}

type NodeOption func(*Node) error

func WithClock(clock ports.Clock) NodeOption {
	return func(n *Node) error {
		if clock != nil {
			n.clock = clock
		}
		return nil
	}
}

func WithLogger(logger *slog.Logger) NodeOption {
	return func(n *Node) error {
		if logger != nil {
			n.logger = logger
		}
		return nil
	}
}

func WithJournal(journal ports.Journal) NodeOption {
	return func(n *Node) error {
		n.journal = journal
		return nil
	}
}

func WithObserver(observer func(NodeEvent)) NodeOption {
	return func(n *Node) error {
		n.observer = observer
		return nil
	}
}

func WithCustomStates(states ...domain.CustomState) NodeOption {
	return func(n *Node) error {
		for _, state := range states {
			if err := n.registry.Register(state); err != nil {
				return fmt.Errorf("register custom state %q: %w", state.Name, err)
			}
		}
		return nil
	}
}

func WithBehavior(name string, behavior Behavior) NodeOption {
	return func(n *Node) error {
		n.registry.SetBehavior(name, behavior)
		return nil
	}
}

// WithInitialMode applies a standard mode as the fallback and a custom mode
// as a manual override. Apply it after WithCustomStates.
func WithInitialMode(mode domain.Mode) NodeOption {
	return func(n *Node) error {
		if mode.IsZero() {
			return nil
		}
		if mode.IsCustom() {
			return n.registry.SetMode(mode)
		}
		return n.registry.SetFallback(mode)
	}
}

// Node is one chime endpoint. All gating state lives on the goroutine running
// Run; the exported methods hand work to it and wait for the result.
type Node struct {
	cfg       NodeConfig
	transport ports.Transport
	renderer  ports.Renderer
	clock     ports.Clock
	journal   ports.Journal
	logger    *slog.Logger
	observer  func(NodeEvent)

	registry *ModeRegistry
	engine   *GatingEngine
	sessions *SessionTracker

	events    chan func()
	ready     chan struct{}
	stopped   chan struct{}
	started   atomic.Bool
	inflight  sync.WaitGroup
	heartbeat sync.WaitGroup

	runCtx   context.Context
	lastMode domain.Mode
}

func NewNode(cfg NodeConfig, transport ports.Transport, renderer ports.Renderer, opts ...NodeOption) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if transport == nil {
		return nil, errors.New("node transport is required")
	}
	if cfg.HeartbeatInterval == 0 {
		cfg.HeartbeatInterval = domain.HeartbeatInterval
	}
	if cfg.Chime.CreatedAt.IsZero() {
		cfg.Chime.CreatedAt = time.Now().UTC()
	}

	registry := NewModeRegistry()
	n := &Node{
		cfg:       cfg,
		transport: transport,
		renderer:  renderer,
		clock:     ports.SystemClock{},
		logger:    slog.Default(),
		registry:  registry,
		engine:    NewGatingEngine(registry),
		events:    make(chan func()),
		ready:     make(chan struct{}),
		stopped:   make(chan struct{}),
		runCtx:    context.Background(),
	}

	for _, opt := range opts {
		if err := opt(n); err != nil {
			return nil, err
		}
	}

	n.logger = n.logger.With("user", cfg.User, "chime_id", cfg.Chime.ID, "node_id", cfg.NodeID)
	n.sessions = NewSessionTracker(n.clock, cfg.SessionTTL, SessionHooks{
		Post:     n.post,
		OnAuto:   n.finish,
		OnExpire: n.expired,
	})

	return n, nil
}

func (n *Node) Config() NodeConfig {
	return n.cfg
}

// Ready is closed once the node has subscribed and announced itself.
func (n *Node) Ready() <-chan struct{} {
	return n.ready
}

// Run serves rings until ctx is cancelled. It announces the chime on start
// and marks it offline on the way out.
func (n *Node) Run(ctx context.Context) error {
	if !n.started.CompareAndSwap(false, true) {
		return errors.New("node already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rings, err := n.transport.Subscribe(ctx, protocol.ChimeRingTopic(n.cfg.User, n.cfg.Chime.ID))
	if err != nil {
		close(n.stopped)
		return fmt.Errorf("subscribe ring topic: %w: %w", domain.ErrTransportUnavailable, err)
	}
	discovery, err := n.transport.Subscribe(ctx, protocol.AllRingerDiscoverTopic)
	if err != nil {
		close(n.stopped)
		return fmt.Errorf("subscribe discovery topic: %w: %w", domain.ErrTransportUnavailable, err)
	}

	n.runCtx = ctx
	n.lastMode = n.registry.Resolve(n.clock.Now()).Mode
	for _, publication := range n.announcements() {
		if err := n.publish(ctx, publication.topic, publication.payload, true); err != nil {
			n.logger.Warn("announce failed", "topic", publication.topic, "error", err)
		}
	}

	heartbeatCtx, stopHeartbeat := context.WithCancel(ctx)
	heartbeat := NewHeartbeat(n.clock, n.cfg.HeartbeatInterval, n.emitHeartbeat, n.logger)
	n.heartbeat.Add(1)
	go func() {
		defer n.heartbeat.Done()
		heartbeat.Run(heartbeatCtx)
	}()

	n.logger.Info("chime node running", "mode", n.lastMode.String())
	close(n.ready)
	defer n.shutdown(stopHeartbeat)

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-rings:
			if !ok {
				return nil
			}
			n.handleRing(msg)
		case msg, ok := <-discovery:
			if !ok {
				discovery = nil
				continue
			}
			n.handleDiscoveryRequest(msg)
		case event := <-n.events:
			event()
		}
	}
}

func (n *Node) Respond(ctx context.Context, requestID string, kind domain.ResponseKind) (domain.RingSession, error) {
	if !kind.Valid() {
		return domain.RingSession{}, fmt.Errorf("%w: %q", domain.ErrInvalidResponse, kind)
	}

	var (
		session domain.RingSession
		err     error
	)
	callErr := n.do(ctx, func() {
		var resolution Resolution
		resolution, err = n.sessions.ResolveManual(n.cfg.Chime.ID, requestID, kind)
		if err != nil {
			return
		}
		state := n.registry.Resolve(n.clock.Now())
		if next := n.engine.UserResponded(kind, state); next != "" {
			resolution.NextState = next
		}
		session = resolution.Session
		n.finish(resolution)
	})
	if callErr != nil {
		return domain.RingSession{}, callErr
	}

	return session, err
}

func (n *Node) SetMode(ctx context.Context, mode domain.Mode) error {
	var err error
	if callErr := n.do(ctx, func() {
		if err = n.registry.SetMode(mode); err == nil {
			n.modeMaybeChanged()
		}
	}); callErr != nil {
		return callErr
	}

	return err
}

func (n *Node) ClearOverride(ctx context.Context) error {
	return n.do(ctx, func() {
		n.registry.ClearOverride()
		n.modeMaybeChanged()
	})
}

func (n *Node) SetCondition(ctx context.Context, key string, value domain.ConditionValue) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("condition key is required")
	}

	return n.do(ctx, func() {
		n.registry.SetCondition(key, value)
		n.modeMaybeChanged()
	})
}

func (n *Node) ClearCondition(ctx context.Context, key string) error {
	return n.do(ctx, func() {
		n.registry.ClearCondition(key)
		n.modeMaybeChanged()
	})
}

func (n *Node) RegisterCustomState(ctx context.Context, state domain.CustomState) error {
	var err error
	if callErr := n.do(ctx, func() {
		if err = n.registry.Register(state); err == nil {
			n.modeMaybeChanged()
		}
	}); callErr != nil {
		return callErr
	}

	return err
}

func (n *Node) RemoveCustomState(ctx context.Context, name string) error {
	var err error
	if callErr := n.do(ctx, func() {
		if err = n.registry.Unregister(name); err == nil {
			n.modeMaybeChanged()
		}
	}); callErr != nil {
		return callErr
	}

	return err
}

func (n *Node) ActiveState(ctx context.Context) (domain.ResolvedState, error) {
	var state domain.ResolvedState
	err := n.do(ctx, func() {
		state = n.registry.Resolve(n.clock.Now())
	})

	return state, err
}

func (n *Node) PendingSessions(ctx context.Context) ([]domain.RingSession, error) {
	var pending []domain.RingSession
	err := n.do(ctx, func() {
		pending = n.sessions.Pending()
	})

	return pending, err
}

func (n *Node) Snapshot(ctx context.Context) (NodeSnapshot, error) {
	var snapshot NodeSnapshot
	err := n.do(ctx, func() {
		snapshot = NodeSnapshot{
			User:       n.cfg.User,
			NodeID:     n.cfg.NodeID,
			Chime:      n.cfg.Chime,
			State:      n.registry.Resolve(n.clock.Now()),
			Fallback:   n.registry.Fallback(),
			Conditions: n.registry.Conditions(),
			States:     n.registry.States(),
			Pending:    n.sessions.Pending(),
		}
		if override, ok := n.registry.Override(); ok {
			snapshot.Override = &override
		}
	})

	return snapshot, err
}

func (n *Node) handleRing(msg ports.Message) {
	if len(msg.Payload) == 0 {
		return
	}

	req, err := protocol.DecodeRingRequest(msg.Payload)
	if err != nil {
		n.logger.Warn("dropping malformed ring", "topic", msg.Topic, "error", err)
		return
	}
	if req.User != n.cfg.User || req.ChimeID != n.cfg.Chime.ID {
		n.logger.Debug("dropping ring for unknown chime", "error", domain.ErrUnknownChime, "target_user", req.User, "target_chime", req.ChimeID)
		return
	}

	if n.sessions.Seen(req.RequestID) {
		n.logger.Debug("ignoring redelivered ring", "request_id", req.RequestID, "error", domain.ErrDuplicateRequest)
		return
	}

	state := n.registry.Resolve(n.clock.Now())
	decision := n.engine.Evaluate(req, state)
	n.notify(NodeEvent{Kind: EventRingReceived, Request: req, Decision: decision, Mode: state.Mode})
	n.record(domain.JournalEntry{Event: domain.JournalReceived, RequestID: req.RequestID, Peer: req.FromNode, Mode: state.Mode.String()})

	if decision.Dropped() {
		n.logger.Info("ring dropped by gate", "request_id", req.RequestID, "from", req.FromNode, "mode", state.Mode.String())
		n.notify(NodeEvent{Kind: EventRingDropped, Request: req, Decision: decision, Mode: state.Mode})
		n.record(domain.JournalEntry{Event: domain.JournalDropped, RequestID: req.RequestID, Peer: req.FromNode, Mode: state.Mode.String()})
		n.sessions.Settle(req.RequestID)
		return
	}

	immediate, err := n.sessions.Start(req, decision)
	if err != nil {
		n.logger.Debug("ignoring ring", "request_id", req.RequestID, "error", err)
		return
	}

	if decision.ShouldRender {
		n.render(req)
	}

	if immediate != nil {
		n.finish(*immediate)
		return
	}

	n.logger.Info("ring pending", "request_id", req.RequestID, "from", req.FromNode, "auto_response", string(decision.AutoResponse), "delay", decision.Delay)
	n.notify(NodeEvent{Kind: EventSessionOpen, Request: req, Decision: decision, Mode: state.Mode})
}

func (n *Node) handleDiscoveryRequest(msg ports.Message) {
	if len(msg.Payload) == 0 {
		return
	}
	request, err := protocol.DecodeRingerDiscovery(msg.Payload)
	if err != nil {
		n.logger.Debug("ignoring discovery request", "error", err)
		return
	}

	n.logger.Debug("answering discovery request", "ringer_id", request.RingerID)
	for _, publication := range n.announcements() {
		n.publishAsync(publication.topic, publication.payload, true)
	}
}

// finish publishes the response for a resolved session and applies any
// requested state transition.
func (n *Node) finish(resolution Resolution) {
	now := n.clock.Now()
	response := domain.Response{
		RequestID: resolution.Request.RequestID,
		ChimeID:   n.cfg.Chime.ID,
		NodeID:    n.cfg.NodeID,
		Kind:      resolution.Response,
		Timestamp: now,
	}
	n.publishAsync(protocol.ChimeResponseTopic(n.cfg.User, n.cfg.Chime.ID), protocol.NewResponse(response), false)

	detail := "manual"
	if resolution.Auto {
		detail = "auto"
	}
	n.logger.Info("ring answered", "request_id", response.RequestID, "response", string(response.Kind), "how", detail)
	n.record(domain.JournalEntry{
		Event:     domain.JournalResolved,
		RequestID: response.RequestID,
		Peer:      resolution.Request.FromNode,
		Response:  response.Kind,
		Detail:    detail,
	})
	n.notify(NodeEvent{Kind: EventResponded, Request: resolution.Request, Response: response.Kind, Auto: resolution.Auto})

	if resolution.NextState != "" {
		n.transition(resolution.NextState)
	}
}

func (n *Node) expired(session domain.RingSession) {
	n.logger.Info("ring expired unanswered", "request_id", session.RequestID)
	n.record(domain.JournalEntry{Event: domain.JournalExpired, RequestID: session.RequestID, Peer: session.FromNode})
	n.notify(NodeEvent{Kind: EventExpired, Request: domain.RingRequest{RequestID: session.RequestID, ChimeID: session.ChimeID, FromNode: session.FromNode}})
}

func (n *Node) transition(next string) {
	mode, err := domain.ParseMode(next)
	if err == nil {
		err = n.registry.SetMode(mode)
	}
	if err != nil {
		n.logger.Warn("ignoring state transition", "next_state", next, "error", err)
		return
	}

	n.modeMaybeChanged()
}

// modeMaybeChanged republishes status and mode when the resolved mode moved.
func (n *Node) modeMaybeChanged() {
	state := n.registry.Resolve(n.clock.Now())
	if state.Mode == n.lastMode {
		return
	}

	n.logger.Info("mode changed", "from", n.lastMode.String(), "to", state.Mode.String())
	n.lastMode = state.Mode
	n.publishAsync(protocol.ChimeStatusTopic(n.cfg.User, n.cfg.Chime.ID), n.status(state.Mode, true), true)
	n.publishAsync(protocol.ChimeModeTopic(n.cfg.User, n.cfg.Chime.ID), protocol.NewModeUpdate(n.cfg.NodeID, state, n.clock.Now()), true)
	n.notify(NodeEvent{Kind: EventModeChanged, Mode: state.Mode})
}

// emitHeartbeat runs on the heartbeat goroutine. The state is resolved on
// the node goroutine and published from here so failures are reported back.
func (n *Node) emitHeartbeat(ctx context.Context) error {
	var state domain.ResolvedState
	var now time.Time
	if err := n.do(ctx, func() {
		n.modeMaybeChanged()
		now = n.clock.Now()
		state = n.registry.Resolve(now)
	}); err != nil {
		return err
	}

	var errs []error
	if err := n.publish(ctx, protocol.ChimeModeTopic(n.cfg.User, n.cfg.Chime.ID), protocol.NewModeUpdate(n.cfg.NodeID, state, now), true); err != nil {
		errs = append(errs, err)
	}
	if err := n.publish(ctx, protocol.ChimeStatusTopic(n.cfg.User, n.cfg.Chime.ID), n.status(state.Mode, true), true); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

type publication struct {
	topic   string
	payload any
}

// announcements describe the chime on its retained topics.
func (n *Node) announcements() []publication {
	chime := n.cfg.Chime
	now := n.clock.Now()
	state := n.registry.Resolve(now)

	list := protocol.ChimeList{
		User:      n.cfg.User,
		Chimes:    []protocol.ChimeInfo{protocol.NewChimeInfo(chime)},
		Timestamp: now.UTC(),
	}

	return []publication{
		{topic: protocol.ChimeListTopic(n.cfg.User), payload: list},
		{topic: protocol.ChimeNotesTopic(n.cfg.User, chime.ID), payload: list.Chimes[0].Notes},
		{topic: protocol.ChimeChordsTopic(n.cfg.User, chime.ID), payload: list.Chimes[0].Chords},
		{topic: protocol.ChimeStatusTopic(n.cfg.User, chime.ID), payload: n.status(state.Mode, true)},
		{topic: protocol.ChimeModeTopic(n.cfg.User, chime.ID), payload: protocol.NewModeUpdate(n.cfg.NodeID, state, now)},
	}
}

func (n *Node) shutdown(stopHeartbeat context.CancelFunc) {
	close(n.stopped)
	stopHeartbeat()
	n.heartbeat.Wait()

	for _, session := range n.sessions.CancelAll() {
		n.logger.Debug("dropping pending ring on shutdown", "request_id", session.RequestID)
	}
	n.inflight.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownPublishTimeout)
	defer cancel()
	if err := n.publish(ctx, protocol.ChimeStatusTopic(n.cfg.User, n.cfg.Chime.ID), n.status(n.lastMode, false), true); err != nil {
		n.logger.Warn("publish offline status failed", "error", err)
	}
	n.logger.Info("chime node stopped")
}

func (n *Node) status(mode domain.Mode, online bool) protocol.Status {
	return protocol.Status{
		ChimeID:  n.cfg.Chime.ID,
		Online:   online,
		Mode:     protocol.NewWireMode(mode),
		LastSeen: n.clock.Now().UTC(),
		NodeID:   n.cfg.NodeID,
	}
}

func (n *Node) render(req domain.RingRequest) {
	if n.renderer == nil {
		return
	}

	notes, chords, duration := req.Notes, req.Chords, req.Duration
	ctx := n.runCtx
	n.inflight.Add(1)
	go func() {
		defer n.inflight.Done()
		if err := n.renderer.Render(ctx, notes, chords, duration); err != nil {
			n.logger.Warn("render failed", "request_id", req.RequestID, "error", fmt.Errorf("%w: %w", domain.ErrRenderFailed, err))
		}
	}()
}

func (n *Node) publish(ctx context.Context, topic string, v any, retain bool) error {
	payload, err := protocol.Encode(v)
	if err != nil {
		return err
	}
	if err := n.transport.Publish(ctx, topic, payload, retain); err != nil {
		return fmt.Errorf("publish %s: %w: %w", topic, domain.ErrTransportUnavailable, err)
	}

	return nil
}

func (n *Node) publishAsync(topic string, v any, retain bool) {
	ctx := n.runCtx
	n.inflight.Add(1)
	go func() {
		defer n.inflight.Done()
		if err := n.publish(ctx, topic, v, retain); err != nil {
			n.logger.Warn("publish failed", "topic", topic, "error", err)
		}
	}()
}

func (n *Node) record(entry domain.JournalEntry) {
	if n.journal == nil {
		return
	}

	entry.User = n.cfg.User
	entry.ChimeID = n.cfg.Chime.ID
	if entry.At.IsZero() {
		entry.At = n.clock.Now()
	}

	ctx := n.runCtx
	n.inflight.Add(1)
	go func() {
		defer n.inflight.Done()
		if err := n.journal.Append(ctx, entry); err != nil {
			n.logger.Warn("journal append failed", "event", string(entry.Event), "error", err)
		}
	}()
}

func (n *Node) notify(event NodeEvent) {
	if n.observer != nil {
		n.observer(event)
	}
}

// do runs fn on the node goroutine and waits for it.
func (n *Node) do(ctx context.Context, fn func()) error {
	select {
	case <-n.ready:
	default:
		return domain.ErrNodeStopped
	}

	done := make(chan struct{})
	select {
	case n.events <- func() { fn(); close(done) }:
	case <-n.stopped:
		return domain.ErrNodeStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-n.stopped:
		return domain.ErrNodeStopped
	}
}

// post queues fn for the node goroutine without waiting. Timer callbacks use
// it, so it must never block the caller.
func (n *Node) post(fn func()) {
	go func() {
		select {
		case n.events <- fn:
		case <-n.stopped:
		}
	}()
}
