package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bnema/chimenet/internal/domain"
	"github.com/bnema/chimenet/internal/ports"
	"github.com/bnema/chimenet/internal/protocol"
	"github.com/google/uuid"
)

var ErrNoResponse = errors.New("no response before deadline")

// RingTarget names a chime on the mesh.
type RingTarget struct {
	User    string
	ChimeID string
}

func (t RingTarget) Validate() error {
	if strings.TrimSpace(t.User) == "" || strings.TrimSpace(t.ChimeID) == "" {
		return errors.New("ring target needs a user and a chime id")
	}
	if strings.ContainsAny(t.User+t.ChimeID, "/+#") {
		return fmt.Errorf("ring target %s/%s contains a topic separator", t.User, t.ChimeID)
	}

	return nil
}

// ParseRingTarget reads "user/chime".
func ParseRingTarget(raw string) (RingTarget, error) {
	user, chimeID, ok := strings.Cut(strings.TrimSpace(raw), "/")
	if !ok {
		return RingTarget{}, fmt.Errorf("ring target %q: expected user/chime", raw)
	}
	target := RingTarget{User: user, ChimeID: chimeID}

	return target, target.Validate()
}

type RingOptions struct {
	Notes    []string
	Chords   []string
	Duration time.Duration
}

// RingerService sends rings and discovery requests on behalf of a local
// user.
type RingerService struct {
	transport ports.Transport
	clock     ports.Clock
	journal   ports.Journal
	logger    *slog.Logger
	user      string
	ringerID  string
	newID     func() string
}

type RingerOption func(*RingerService)

func WithRingerJournal(journal ports.Journal) RingerOption {
	return func(s *RingerService) { s.journal = journal }
}

func WithRingerLogger(logger *slog.Logger) RingerOption {
	return func(s *RingerService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithRequestIDs(newID func() string) RingerOption {
	return func(s *RingerService) {
		if newID != nil {
			s.newID = newID
		}
	}
}

func NewRingerService(transport ports.Transport, clock ports.Clock, user, ringerID string, opts ...RingerOption) *RingerService {
	if clock == nil {
		clock = ports.SystemClock{}
	}

	service := &RingerService{
		transport: transport,
		clock:     clock,
		logger:    slog.Default(),
		user:      user,
		ringerID:  ringerID,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(service)
	}

	return service
}

// Ring publishes a request on the target's ring topic. Outbound rings always
// carry a request id.
func (s *RingerService) Ring(ctx context.Context, target RingTarget, opts RingOptions) (domain.RingRequest, error) {
	if err := target.Validate(); err != nil {
		return domain.RingRequest{}, err
	}

	req := domain.RingRequest{
		RequestID: s.newID(),
		User:      target.User,
		ChimeID:   target.ChimeID,
		FromNode:  s.ringerID,
		FromUser:  s.user,
		Notes:     opts.Notes,
		Chords:    opts.Chords,
		Duration:  opts.Duration,
		Timestamp: s.clock.Now(),
	}

	payload, err := protocol.Encode(protocol.NewRingRequest(req))
	if err != nil {
		return domain.RingRequest{}, err
	}
	topic := protocol.ChimeRingTopic(target.User, target.ChimeID)
	if err := s.transport.Publish(ctx, topic, payload, false); err != nil {
		return domain.RingRequest{}, fmt.Errorf("publish ring: %w: %w", domain.ErrTransportUnavailable, err)
	}

	s.logger.Info("ring sent", "target_user", target.User, "target_chime", target.ChimeID, "request_id", req.RequestID)
	s.record(ctx, domain.JournalEntry{
		Event:     domain.JournalSent,
		RequestID: req.RequestID,
		User:      target.User,
		ChimeID:   target.ChimeID,
		Peer:      s.ringerID,
		At:        req.Timestamp,
	})

	return req, nil
}

// RingAndWait rings and waits for the matching response. It subscribes
// before publishing so a fast answer is not missed. The timeout runs on the
// service clock.
func (s *RingerService) RingAndWait(ctx context.Context, target RingTarget, opts RingOptions, timeout time.Duration) (domain.RingRequest, domain.Response, error) {
	if err := target.Validate(); err != nil {
		return domain.RingRequest{}, domain.Response{}, err
	}

	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	responses, err := s.transport.Subscribe(waitCtx, protocol.ChimeResponseTopic(target.User, target.ChimeID))
	if err != nil {
		return domain.RingRequest{}, domain.Response{}, fmt.Errorf("subscribe responses: %w: %w", domain.ErrTransportUnavailable, err)
	}

	req, err := s.Ring(ctx, target, opts)
	if err != nil {
		return domain.RingRequest{}, domain.Response{}, err
	}

	var deadline <-chan struct{}
	if timeout > 0 {
		expired := make(chan struct{})
		timer := s.clock.AfterFunc(timeout, func() { close(expired) })
		defer timer.Stop()
		deadline = expired
	}

	for {
		select {
		case <-ctx.Done():
			return req, domain.Response{}, ctx.Err()
		case <-deadline:
			return req, domain.Response{}, fmt.Errorf("%w: %s", ErrNoResponse, req.RequestID)
		case msg, ok := <-responses:
			if !ok {
				return req, domain.Response{}, fmt.Errorf("%w: subscription closed", ErrNoResponse)
			}
			response, err := protocol.DecodeResponse(msg.Payload)
			if err != nil {
				s.logger.Debug("ignoring response", "error", err)
				continue
			}
			if response.RequestID != "" && response.RequestID != req.RequestID {
				continue
			}
			s.record(ctx, domain.JournalEntry{
				Event:     domain.JournalResolved,
				RequestID: req.RequestID,
				User:      target.User,
				ChimeID:   target.ChimeID,
				Peer:      response.NodeID,
				Response:  response.Kind,
				Detail:    "received",
				At:        s.clock.Now(),
			})
			return req, response, nil
		}
	}
}

// Discover asks every chime to re-announce itself.
func (s *RingerService) Discover(ctx context.Context) error {
	payload, err := protocol.Encode(protocol.RingerDiscovery{
		RingerID:  s.ringerID,
		User:      s.user,
		Timestamp: s.clock.Now().UTC(),
	})
	if err != nil {
		return err
	}
	if err := s.transport.Publish(ctx, protocol.RingerDiscoverTopic(s.user), payload, false); err != nil {
		return fmt.Errorf("publish discovery request: %w: %w", domain.ErrTransportUnavailable, err)
	}

	return nil
}

// AnnounceAvailable publishes which chimes this ringer can reach.
func (s *RingerService) AnnounceAvailable(ctx context.Context, chimes []string) error {
	payload, err := protocol.Encode(protocol.RingerAvailable{
		RingerID:        s.ringerID,
		User:            s.user,
		AvailableChimes: chimes,
		Timestamp:       s.clock.Now().UTC(),
	})
	if err != nil {
		return err
	}
	if err := s.transport.Publish(ctx, protocol.RingerAvailableTopic(s.user), payload, true); err != nil {
		return fmt.Errorf("publish ringer availability: %w: %w", domain.ErrTransportUnavailable, err)
	}

	return nil
}

func (s *RingerService) record(ctx context.Context, entry domain.JournalEntry) {
	if s.journal == nil {
		return
	}
	if err := s.journal.Append(ctx, entry); err != nil {
		s.logger.Warn("journal append failed", "event", string(entry.Event), "error", err)
	}
}
