package chat

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SessionTracker maps inbound events to conversation session ids.
type SessionTracker struct {
	window time.Duration
	newID  func() string
}

func NewSessionTracker(window time.Duration) *SessionTracker {
	if window <= 0 {
		window = 30 * time.Minute
	}
	return &SessionTracker{
		window: window,
		newID:  func() string { return uuid.NewString() },
	}
}

// Resolve returns existing verbatim when given. Otherwise web sessions get a
// fresh random id and every other channel derives one from (channel,
// participant, at truncated to the window), so bursts from the same sender
// land in one session.
func (t *SessionTracker) Resolve(channel Channel, participantID, existing string, at time.Time) string {
	if existing = strings.TrimSpace(existing); existing != "" {
		return existing
	}

	if channel == ChannelWeb || participantID == "" {
		return fmt.Sprintf("%s_%s", prefix(channel), t.newID())
	}

	bucket := at.UTC().Truncate(t.window).Unix()
	return fmt.Sprintf("%s_%s_%d", prefix(channel), participantID, bucket)
}

func prefix(channel Channel) string {
	switch channel {
	case ChannelWhatsApp:
		return "wa"
	case "":
		return "web"
	default:
		return string(channel)
	}
}

// Conversation is one session's messages in playback order.
type Conversation struct {
	SessionSummary
	Messages []Message
}

// GroupSessions buckets messages by session id. Sessions are ordered by last
// activity, newest first; messages inside a session oldest first.
func GroupSessions(msgs []Message) []Conversation {
	index := make(map[string]int)
	var out []Conversation

	for _, m := range msgs {
		i, ok := index[m.SessionID]
		if !ok {
			i = len(out)
			index[m.SessionID] = i
			out = append(out, Conversation{SessionSummary: SessionSummary{
				SessionID:     m.SessionID,
				Channel:       m.Channel,
				ParticipantID: m.ParticipantID,
				StartedAt:     m.CreatedAt,
				LastActivity:  m.CreatedAt,
			}})
		}
		c := &out[i]
		c.Messages = append(c.Messages, m)
		c.SessionSummary.Messages++
		if m.CreatedAt.Before(c.StartedAt) {
			c.StartedAt = m.CreatedAt
		}
		if m.CreatedAt.After(c.LastActivity) {
			c.LastActivity = m.CreatedAt
		}
		if c.ContactName == "" && m.ContactName != "" {
			c.ContactName = m.ContactName
		}
	}

	for i := range out {
		sort.SliceStable(out[i].Messages, func(a, b int) bool {
			return out[i].Messages[a].CreatedAt.Before(out[i].Messages[b].CreatedAt)
		})
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].LastActivity.After(out[b].LastActivity)
	})
	return out
}
