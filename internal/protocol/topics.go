package protocol

import (
	"fmt"
	"strings"
)

type TopicKind string

const (
	TopicChimeList       TopicKind = "list"
	TopicChimeNotes      TopicKind = "notes"
	TopicChimeChords     TopicKind = "chords"
	TopicChimeStatus     TopicKind = "status"
	TopicChimeRing       TopicKind = "ring"
	TopicChimeResponse   TopicKind = "response"
	TopicChimeMode       TopicKind = "mode"
	TopicRingerDiscover  TopicKind = "discover"
	TopicRingerAvailable TopicKind = "available"
)

func ChimeListTopic(user string) string {
	return fmt.Sprintf("/%s/chime/list", user)
}

func ChimeNotesTopic(user, chimeID string) string {
	return chimeTopic(user, chimeID, TopicChimeNotes)
}

func ChimeChordsTopic(user, chimeID string) string {
	return chimeTopic(user, chimeID, TopicChimeChords)
}

func ChimeStatusTopic(user, chimeID string) string {
	return chimeTopic(user, chimeID, TopicChimeStatus)
}

// ChimeRingTopic is derived from the target of the ring, never the sender.
func ChimeRingTopic(targetUser, chimeID string) string {
	return chimeTopic(targetUser, chimeID, TopicChimeRing)
}

func ChimeResponseTopic(user, chimeID string) string {
	return chimeTopic(user, chimeID, TopicChimeResponse)
}

func ChimeModeTopic(user, chimeID string) string {
	return chimeTopic(user, chimeID, TopicChimeMode)
}

func RingerDiscoverTopic(user string) string {
	return fmt.Sprintf("/%s/ringer/discover", user)
}

func RingerAvailableTopic(user string) string {
	return fmt.Sprintf("/%s/ringer/available", user)
}

func chimeTopic(user, chimeID string, kind TopicKind) string {
	return fmt.Sprintf("/%s/chime/%s/%s", user, chimeID, kind)
}

// Subscription patterns used by discovery.
var (
	AllChimeListsPattern   = "/+/chime/list"
	AllChimeStatusPattern  = "/+/chime/+/status"
	AllChimeNotesPattern   = "/+/chime/+/notes"
	AllChimeChordsPattern  = "/+/chime/+/chords"
	AllChimeModesPattern   = "/+/chime/+/mode"
	AllRingerDiscoverTopic = "/+/ringer/discover"
)

// Topic is a parsed chimenet topic. ChimeID is empty for list and ringer
// topics.
type Topic struct {
	User    string
	ChimeID string
	Kind    TopicKind
}

func ParseTopic(topic string) (Topic, bool) {
	if !strings.HasPrefix(topic, "/") {
		return Topic{}, false
	}
	parts := strings.Split(strings.TrimPrefix(topic, "/"), "/")

	switch {
	case len(parts) == 3 && parts[1] == "chime" && parts[2] == string(TopicChimeList):
		return Topic{User: parts[0], Kind: TopicChimeList}, parts[0] != ""
	case len(parts) == 3 && parts[1] == "ringer":
		kind := TopicKind(parts[2])
		if kind != TopicRingerDiscover && kind != TopicRingerAvailable {
			return Topic{}, false
		}
		return Topic{User: parts[0], Kind: kind}, parts[0] != ""
	case len(parts) == 4 && parts[1] == "chime":
		kind := TopicKind(parts[3])
		switch kind {
		case TopicChimeNotes, TopicChimeChords, TopicChimeStatus, TopicChimeRing, TopicChimeResponse, TopicChimeMode:
		default:
			return Topic{}, false
		}
		if parts[0] == "" || parts[2] == "" {
			return Topic{}, false
		}
		return Topic{User: parts[0], ChimeID: parts[2], Kind: kind}, true
	default:
		return Topic{}, false
	}
}

// MatchTopic applies MQTT wildcard rules: "+" matches exactly one level and
// a final "#" matches any remaining levels, including none.
func MatchTopic(pattern, topic string) bool {
	if pattern == topic {
		return true
	}

	patternParts := strings.Split(pattern, "/")
	topicParts := strings.Split(topic, "/")

	for i, part := range patternParts {
		if part == "#" {
			return i == len(patternParts)-1
		}
		if i >= len(topicParts) {
			return false
		}
		if part != "+" && part != topicParts[i] {
			return false
		}
	}

	return len(patternParts) == len(topicParts)
}
