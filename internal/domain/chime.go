package domain

import (
	"fmt"
	"strings"
	"time"
)

const (
	// HeartbeatInterval is the default period between mode broadcasts.
	HeartbeatInterval = 5 * time.Minute
	// DiscoveryStaleness is how long a remote chime stays known without news.
	DiscoveryStaleness = 5 * time.Minute
	// SweepInterval is how often the discovery registry looks for stale records.
	SweepInterval = 30 * time.Second
	// DefaultNoteDuration is used when a ring carries no duration.
	DefaultNoteDuration = 500 * time.Millisecond
)

// DefaultMelody plays when a ring names neither notes nor chords.
var DefaultMelody = []string{"C4", "E4", "G4"}

// ChimeInfo describes a local chime as advertised on its list topic.
type ChimeInfo struct {
	ID          string
	Name        string
	Description string
	Notes       []string
	Chords      []string
	CreatedAt   time.Time
}

func (c ChimeInfo) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("chime id is required")
	}
	if strings.ContainsAny(c.ID, "/+#") {
		return fmt.Errorf("chime id %q contains a topic separator", c.ID)
	}
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("chime name is required")
	}

	return nil
}

// RemoteChimeKey identifies a chime across the mesh.
type RemoteChimeKey struct {
	User    string
	ChimeID string
}

func (k RemoteChimeKey) String() string {
	return k.User + "/" + k.ChimeID
}

// RemoteChimeRecord is the locally cached view of another node's chime.
type RemoteChimeRecord struct {
	User        string
	ChimeID     string
	Name        string
	Description string
	Notes       []string
	Chords      []string
	Mode        Mode
	NodeID      string
	LastSeen    time.Time
	Online      bool
}

func (r RemoteChimeRecord) Key() RemoteChimeKey {
	return RemoteChimeKey{User: r.User, ChimeID: r.ChimeID}
}

func (r RemoteChimeRecord) IsStale(now time.Time, maxAge time.Duration) bool {
	if r.LastSeen.IsZero() {
		return true
	}

	if maxAge <= 0 {
		return false
	}

	return now.Sub(r.LastSeen) > maxAge
}

// DisplayName falls back to the chime id when no name was advertised.
func (r RemoteChimeRecord) DisplayName() string {
	if strings.TrimSpace(r.Name) != "" {
		return r.Name
	}

	return r.ChimeID
}
