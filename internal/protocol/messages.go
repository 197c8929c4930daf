package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bnema/chimenet/internal/domain"
)

type ModeUpdate struct {
	Timestamp   time.Time    `json:"timestamp"`
	NodeID      string       `json:"node_id"`
	Mode        WireMode     `json:"mode"`
	CustomState *CustomState `json:"custom_state"`
}

type RingRequest struct {
	RequestID  string    `json:"request_id,omitempty"`
	ChimeID    string    `json:"chime_id"`
	User       string    `json:"user"`
	FromNode   string    `json:"from_node,omitempty"`
	FromUser   string    `json:"from_user,omitempty"`
	Notes      []string  `json:"notes"`
	Chords     []string  `json:"chords"`
	DurationMS *uint64   `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

type Response struct {
	Timestamp       time.Time `json:"timestamp"`
	Response        string    `json:"response"`
	NodeID          string    `json:"node_id"`
	OriginalChimeID *string   `json:"original_chime_id"`
	RequestID       string    `json:"request_id,omitempty"`
}

type Status struct {
	ChimeID  string    `json:"chime_id"`
	Online   bool      `json:"online"`
	Mode     WireMode  `json:"mode"`
	LastSeen time.Time `json:"last_seen"`
	NodeID   string    `json:"node_id"`
}

type ChimeInfo struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	Notes       []string  `json:"notes"`
	Chords      []string  `json:"chords"`
	CreatedAt   time.Time `json:"created_at"`
}

type ChimeList struct {
	User      string      `json:"user"`
	Chimes    []ChimeInfo `json:"chimes"`
	Timestamp time.Time   `json:"timestamp"`
}

type RingerDiscovery struct {
	RingerID  string    `json:"ringer_id"`
	User      string    `json:"user"`
	Timestamp time.Time `json:"timestamp"`
}

type RingerAvailable struct {
	RingerID        string    `json:"ringer_id"`
	User            string    `json:"user"`
	AvailableChimes []string  `json:"available_chimes"`
	Timestamp       time.Time `json:"timestamp"`
}

func NewRingRequest(req domain.RingRequest) RingRequest {
	wire := RingRequest{
		RequestID: req.RequestID,
		ChimeID:   req.ChimeID,
		User:      req.User,
		FromNode:  req.FromNode,
		FromUser:  req.FromUser,
		Notes:     req.Notes,
		Chords:    req.Chords,
		Timestamp: req.Timestamp.UTC(),
	}
	if req.Duration > 0 {
		millis := uint64(req.Duration.Milliseconds())
		wire.DurationMS = &millis
	}

	return wire
}

func NewResponse(resp domain.Response) Response {
	wire := Response{
		Timestamp: resp.Timestamp.UTC(),
		Response:  string(resp.Kind),
		NodeID:    resp.NodeID,
		RequestID: resp.RequestID,
	}
	if resp.ChimeID != "" {
		chimeID := resp.ChimeID
		wire.OriginalChimeID = &chimeID
	}

	return wire
}

func NewChimeInfo(info domain.ChimeInfo) ChimeInfo {
	wire := ChimeInfo{
		ID:        info.ID,
		Name:      info.Name,
		Notes:     nonNil(info.Notes),
		Chords:    nonNil(info.Chords),
		CreatedAt: info.CreatedAt.UTC(),
	}
	if info.Description != "" {
		description := info.Description
		wire.Description = &description
	}

	return wire
}

func NewModeUpdate(nodeID string, state domain.ResolvedState, now time.Time) ModeUpdate {
	update := ModeUpdate{
		Timestamp: now.UTC(),
		NodeID:    nodeID,
		Mode:      NewWireMode(state.Mode),
	}
	if state.Custom != nil {
		custom := NewCustomState(*state.Custom)
		update.CustomState = &custom
	}

	return update
}

func Encode(v any) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}

	return payload, nil
}

// DecodeRingRequest validates required fields and fills in the request id
// when the sender left it out.
func DecodeRingRequest(payload []byte) (domain.RingRequest, error) {
	var wire RingRequest
	if err := json.Unmarshal(payload, &wire); err != nil {
		return domain.RingRequest{}, fmt.Errorf("%w: ring request: %w", domain.ErrMalformedMessage, err)
	}

	switch {
	case strings.TrimSpace(wire.ChimeID) == "":
		return domain.RingRequest{}, fmt.Errorf("%w: ring request without chime_id", domain.ErrMalformedMessage)
	case strings.TrimSpace(wire.User) == "":
		return domain.RingRequest{}, fmt.Errorf("%w: ring request without user", domain.ErrMalformedMessage)
	case wire.Timestamp.IsZero():
		return domain.RingRequest{}, fmt.Errorf("%w: ring request without timestamp", domain.ErrMalformedMessage)
	}

	req := domain.RingRequest{
		RequestID: wire.RequestID,
		User:      wire.User,
		ChimeID:   wire.ChimeID,
		FromNode:  wire.FromNode,
		FromUser:  wire.FromUser,
		Notes:     wire.Notes,
		Chords:    wire.Chords,
		Timestamp: wire.Timestamp,
	}
	if wire.DurationMS != nil {
		req.Duration = time.Duration(*wire.DurationMS) * time.Millisecond
	}
	if req.FromNode == "" {
		req.FromNode = "unknown"
	}
	if req.RequestID == "" {
		req.RequestID = domain.SynthesizeRequestID(req.FromNode, req.Timestamp)
	}

	return req, nil
}

func DecodeResponse(payload []byte) (domain.Response, error) {
	var wire Response
	if err := json.Unmarshal(payload, &wire); err != nil {
		return domain.Response{}, fmt.Errorf("%w: response: %w", domain.ErrMalformedMessage, err)
	}

	kind := domain.ResponseKind(wire.Response)
	if !kind.Valid() {
		return domain.Response{}, fmt.Errorf("%w: response kind %q", domain.ErrMalformedMessage, wire.Response)
	}
	if strings.TrimSpace(wire.NodeID) == "" {
		return domain.Response{}, fmt.Errorf("%w: response without node_id", domain.ErrMalformedMessage)
	}

	resp := domain.Response{
		RequestID: wire.RequestID,
		NodeID:    wire.NodeID,
		Kind:      kind,
		Timestamp: wire.Timestamp,
	}
	if wire.OriginalChimeID != nil {
		resp.ChimeID = *wire.OriginalChimeID
	}

	return resp, nil
}

func DecodeModeUpdate(payload []byte) (ModeUpdate, error) {
	var update ModeUpdate
	if err := json.Unmarshal(payload, &update); err != nil {
		return ModeUpdate{}, fmt.Errorf("%w: mode update: %w", domain.ErrMalformedMessage, err)
	}
	if update.NodeID == "" {
		return ModeUpdate{}, fmt.Errorf("%w: mode update without node_id", domain.ErrMalformedMessage)
	}
	if update.Mode.IsZero() {
		return ModeUpdate{}, fmt.Errorf("%w: mode update without mode", domain.ErrMalformedMessage)
	}

	return update, nil
}

func DecodeStatus(payload []byte) (Status, error) {
	var status Status
	if err := json.Unmarshal(payload, &status); err != nil {
		return Status{}, fmt.Errorf("%w: status: %w", domain.ErrMalformedMessage, err)
	}
	if status.ChimeID == "" {
		return Status{}, fmt.Errorf("%w: status without chime_id", domain.ErrMalformedMessage)
	}

	return status, nil
}

func DecodeChimeList(payload []byte) (ChimeList, error) {
	var list ChimeList
	if err := json.Unmarshal(payload, &list); err != nil {
		return ChimeList{}, fmt.Errorf("%w: chime list: %w", domain.ErrMalformedMessage, err)
	}
	if list.User == "" {
		return ChimeList{}, fmt.Errorf("%w: chime list without user", domain.ErrMalformedMessage)
	}
	for _, chime := range list.Chimes {
		if chime.ID == "" {
			return ChimeList{}, fmt.Errorf("%w: chime list entry without id", domain.ErrMalformedMessage)
		}
	}

	return list, nil
}

// DecodeStrings reads the notes and chords topics.
func DecodeStrings(payload []byte) ([]string, error) {
	var values []string
	if err := json.Unmarshal(payload, &values); err != nil {
		return nil, fmt.Errorf("%w: string list: %w", domain.ErrMalformedMessage, err)
	}

	return values, nil
}

func DecodeRingerDiscovery(payload []byte) (RingerDiscovery, error) {
	var discovery RingerDiscovery
	if err := json.Unmarshal(payload, &discovery); err != nil {
		return RingerDiscovery{}, fmt.Errorf("%w: ringer discovery: %w", domain.ErrMalformedMessage, err)
	}
	if discovery.RingerID == "" {
		return RingerDiscovery{}, fmt.Errorf("%w: ringer discovery without ringer_id", domain.ErrMalformedMessage)
	}

	return discovery, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}

	return values
}
