package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bnema/chimenet/internal/domain"
	"github.com/bnema/chimenet/internal/ports"
	"github.com/bnema/chimenet/internal/protocol"
)

// DiscoveryRegistry is the local view of remote chimes. Records are replaced
// whole on every update, so readers never observe a half-written record.
type DiscoveryRegistry struct {
	mu        sync.RWMutex
	clock     ports.Clock
	staleness time.Duration
	records   map[domain.RemoteChimeKey]domain.RemoteChimeRecord
	offline   []func(domain.RemoteChimeRecord)
}

func NewDiscoveryRegistry(clock ports.Clock, staleness time.Duration) *DiscoveryRegistry {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if staleness <= 0 {
		staleness = domain.DiscoveryStaleness
	}

	return &DiscoveryRegistry{
		clock:     clock,
		staleness: staleness,
		records:   map[domain.RemoteChimeKey]domain.RemoteChimeRecord{},
	}
}

// Observe stores record as the current view of its chime.
func (r *DiscoveryRegistry) Observe(record domain.RemoteChimeRecord) {
	record.LastSeen = r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[record.Key()] = record
}

// Update derives a new record from the current one, or from an empty record
// for a chime not seen before, and stores it.
func (r *DiscoveryRegistry) Update(user, chimeID string, mutate func(*domain.RemoteChimeRecord)) domain.RemoteChimeRecord {
	key := domain.RemoteChimeKey{User: user, ChimeID: chimeID}
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[key]
	if !ok {
		record = domain.RemoteChimeRecord{User: user, ChimeID: chimeID, Online: true}
	}
	mutate(&record)
	record.User, record.ChimeID = user, chimeID
	record.LastSeen = now
	r.records[key] = record

	return record
}

// Sweep drops records not refreshed within the staleness window. Observers
// see each dropped record marked offline.
func (r *DiscoveryRegistry) Sweep(now time.Time) []domain.RemoteChimeRecord {
	r.mu.Lock()
	var removed []domain.RemoteChimeRecord
	for key, record := range r.records {
		if record.IsStale(now, r.staleness) {
			record.Online = false
			removed = append(removed, record)
			delete(r.records, key)
		}
	}
	observers := slices.Clone(r.offline)
	r.mu.Unlock()

	sortRecords(removed)
	for _, record := range removed {
		for _, observer := range observers {
			observer(record)
		}
	}

	return removed
}

// List returns the known chimes, of one user when user is not empty.
// Records past the staleness window are hidden even before Sweep drops them.
func (r *DiscoveryRegistry) List(user string) []domain.RemoteChimeRecord {
	now := r.clock.Now()

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.RemoteChimeRecord, 0, len(r.records))
	for _, record := range r.records {
		if user != "" && record.User != user {
			continue
		}
		if record.IsStale(now, r.staleness) {
			continue
		}
		out = append(out, record)
	}
	sortRecords(out)

	return out
}

func (r *DiscoveryRegistry) Users() []string {
	now := r.clock.Now()

	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := map[string]struct{}{}
	for key, record := range r.records {
		if record.IsStale(now, r.staleness) {
			continue
		}
		seen[key.User] = struct{}{}
	}
	users := make([]string, 0, len(seen))
	for user := range seen {
		users = append(users, user)
	}
	sort.Strings(users)

	return users
}

func (r *DiscoveryRegistry) Get(user, chimeID string) (domain.RemoteChimeRecord, bool) {
	now := r.clock.Now()

	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[domain.RemoteChimeKey{User: user, ChimeID: chimeID}]
	if !ok || record.IsStale(now, r.staleness) {
		return domain.RemoteChimeRecord{}, false
	}

	return record, true
}

// FindByName matches a chime id exactly or a display name case-insensitively.
func (r *DiscoveryRegistry) FindByName(user, name string) (domain.RemoteChimeRecord, bool) {
	if record, ok := r.Get(user, name); ok {
		return record, true
	}
	for _, record := range r.List(user) {
		if strings.EqualFold(record.Name, name) {
			return record, true
		}
	}

	return domain.RemoteChimeRecord{}, false
}

func (r *DiscoveryRegistry) OnOffline(observer func(domain.RemoteChimeRecord)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.offline = append(r.offline, observer)
}

// Len counts stored records, including stale ones Sweep has not dropped yet.
func (r *DiscoveryRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

func sortRecords(records []domain.RemoteChimeRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].User != records[j].User {
			return records[i].User < records[j].User
		}
		return records[i].ChimeID < records[j].ChimeID
	})
}

// DiscoveryService feeds the registry from the retained chime topics and
// sweeps it periodically.
type DiscoveryService struct {
	registry   *DiscoveryRegistry
	transport  ports.Transport
	clock      ports.Clock
	logger     *slog.Logger
	skipUser   string
	sweepEvery time.Duration
}

type DiscoveryOption func(*DiscoveryService)

// SkipUser ignores announcements from the given user, usually the local one.
func SkipUser(user string) DiscoveryOption {
	return func(s *DiscoveryService) { s.skipUser = user }
}

func SweepEvery(interval time.Duration) DiscoveryOption {
	return func(s *DiscoveryService) {
		if interval > 0 {
			s.sweepEvery = interval
		}
	}
}

func NewDiscoveryService(registry *DiscoveryRegistry, transport ports.Transport, clock ports.Clock, logger *slog.Logger, opts ...DiscoveryOption) *DiscoveryService {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	service := &DiscoveryService{
		registry:   registry,
		transport:  transport,
		clock:      clock,
		logger:     logger,
		sweepEvery: domain.SweepInterval,
	}
	for _, opt := range opts {
		opt(service)
	}

	return service
}

func (s *DiscoveryService) Registry() *DiscoveryRegistry {
	return s.registry
}

// Subscribe starts listening and returns the merged message stream. Run uses
// it; callers that drive Handle themselves can too.
func (s *DiscoveryService) Subscribe(ctx context.Context) (<-chan ports.Message, error) {
	patterns := []string{
		protocol.AllChimeListsPattern,
		protocol.AllChimeStatusPattern,
		protocol.AllChimeNotesPattern,
		protocol.AllChimeChordsPattern,
		protocol.AllChimeModesPattern,
	}

	merged := make(chan ports.Message)
	var wg sync.WaitGroup
	for _, pattern := range patterns {
		messages, err := s.transport.Subscribe(ctx, pattern)
		if err != nil {
			return nil, fmt.Errorf("subscribe %s: %w: %w", pattern, domain.ErrTransportUnavailable, err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for msg := range messages {
				select {
				case merged <- msg:
				case <-ctx.Done():
					return
				}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(merged)
	}()

	return merged, nil
}

// Run ingests announcements and sweeps stale records until ctx ends.
func (s *DiscoveryService) Run(ctx context.Context) error {
	messages, err := s.Subscribe(ctx)
	if err != nil {
		return err
	}

	ticker := s.clock.NewTicker(s.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C():
			for _, record := range s.registry.Sweep(now) {
				s.logger.Info("chime went offline", "user", record.User, "chime_id", record.ChimeID)
			}
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			if err := s.Handle(msg); err != nil {
				s.logger.Debug("ignoring discovery message", "topic", msg.Topic, "error", err)
			}
		}
	}
}

// Handle applies one announcement to the registry.
func (s *DiscoveryService) Handle(msg ports.Message) error {
	topic, ok := protocol.ParseTopic(msg.Topic)
	if !ok {
		return fmt.Errorf("%w: unexpected topic %q", domain.ErrMalformedMessage, msg.Topic)
	}
	if s.skipUser != "" && topic.User == s.skipUser {
		return nil
	}
	if len(msg.Payload) == 0 {
		return nil
	}

	switch topic.Kind {
	case protocol.TopicChimeList:
		list, err := protocol.DecodeChimeList(msg.Payload)
		if err != nil {
			return err
		}
		if list.User != topic.User {
			return fmt.Errorf("%w: chime list for %q on %q", domain.ErrMalformedMessage, list.User, msg.Topic)
		}
		for _, chime := range list.Chimes {
			s.registry.Update(topic.User, chime.ID, func(record *domain.RemoteChimeRecord) {
				record.Name = chime.Name
				record.Description = ""
				if chime.Description != nil {
					record.Description = *chime.Description
				}
				record.Notes = chime.Notes
				record.Chords = chime.Chords
			})
		}
	case protocol.TopicChimeStatus:
		status, err := protocol.DecodeStatus(msg.Payload)
		if err != nil {
			return err
		}
		s.registry.Update(topic.User, topic.ChimeID, func(record *domain.RemoteChimeRecord) {
			record.Online = status.Online
			record.Mode = status.Mode.Mode
			record.NodeID = status.NodeID
		})
	case protocol.TopicChimeNotes, protocol.TopicChimeChords:
		values, err := protocol.DecodeStrings(msg.Payload)
		if err != nil {
			return err
		}
		s.registry.Update(topic.User, topic.ChimeID, func(record *domain.RemoteChimeRecord) {
			if topic.Kind == protocol.TopicChimeNotes {
				record.Notes = values
			} else {
				record.Chords = values
			}
		})
	case protocol.TopicChimeMode:
		update, err := protocol.DecodeModeUpdate(msg.Payload)
		if err != nil {
			return err
		}
		s.registry.Update(topic.User, topic.ChimeID, func(record *domain.RemoteChimeRecord) {
			record.Mode = update.Mode.Mode
			record.NodeID = update.NodeID
		})
	default:
		return errors.New("not a discovery topic")
	}

	return nil
}
