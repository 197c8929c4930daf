package domain

import (
	"fmt"
	"strings"
	"time"
)

type ResponseKind string

const (
	ResponsePositive ResponseKind = "Positive"
	ResponseNegative ResponseKind = "Negative"
)

func (k ResponseKind) Valid() bool {
	return k == ResponsePositive || k == ResponseNegative
}

func ParseResponseKind(raw string) (ResponseKind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "positive", "yes", "y", "accept", "ok":
		return ResponsePositive, nil
	case "negative", "no", "n", "decline":
		return ResponseNegative, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidResponse, raw)
	}
}

// RingRequest asks User's chime ChimeID to ring on behalf of FromNode.
// FromUser is optional and only used for display.
type RingRequest struct {
	RequestID string
	User      string
	ChimeID   string
	FromNode  string
	FromUser  string
	Notes     []string
	Chords    []string
	Duration  time.Duration
	Timestamp time.Time
}

// SynthesizeRequestID derives a stable id for requests that arrive without
// one. The same origin node and timestamp always produce the same id.
func SynthesizeRequestID(fromNode string, ts time.Time) string {
	return fmt.Sprintf("%s@%d", fromNode, ts.UTC().UnixNano())
}

type Response struct {
	RequestID string
	ChimeID   string
	NodeID    string
	Kind      ResponseKind
	Timestamp time.Time
}

type SessionStatus string

const (
	SessionPending  SessionStatus = "pending"
	SessionResolved SessionStatus = "resolved"
)

// RingSession tracks one ring awaiting a manual or automatic response.
type RingSession struct {
	RequestID    string
	ChimeID      string
	FromNode     string
	FromUser     string
	CreatedAt    time.Time
	Deadline     *time.Time
	AutoResponse ResponseKind
	Status       SessionStatus
}

func (s RingSession) HasDeadline() bool {
	return s.Deadline != nil
}
