package whatsapp

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidPayload = errors.New("invalid webhook payload")

// Verify answers the subscription handshake: the challenge is echoed only
// when mode is "subscribe" and the token matches.
func Verify(mode, token, challenge, expected string) (string, bool) {
	if expected == "" || mode != "subscribe" || token != expected {
		return "", false
	}
	return challenge, true
}

type EventType string

const (
	EventMessage EventType = "message"
	EventStatus  EventType = "status"
	// EventInvalid marks a single unusable entry; the rest of the batch is kept.
	EventInvalid EventType = "invalid"
)

type Event struct {
	Type    EventType
	Message *InboundMessage
	Status  *StatusUpdate
	Reason  string // set for EventInvalid
}

type InboundMessage struct {
	ID          string
	From        string
	Timestamp   string
	Type        string // text, interactive, button, image, ...
	Text        string // body text, or the reply id for button/list answers
	ContactName string
}

type StatusUpdate struct {
	MessageID   string
	Status      string
	Timestamp   string
	RecipientID string
}

type payload struct {
	Object string `json:"object"`
	Entry  []struct {
		Changes []struct {
			Field string `json:"field"`
			Value struct {
				Contacts []struct {
					WaID    string `json:"wa_id"`
					Profile struct {
						Name string `json:"name"`
					} `json:"profile"`
				} `json:"contacts"`
				Messages []struct {
					ID        string `json:"id"`
					From      string `json:"from"`
					Timestamp string `json:"timestamp"`
					Type      string `json:"type"`
					Text      *struct {
						Body string `json:"body"`
					} `json:"text"`
					Interactive *struct {
						Type        string      `json:"type"`
						ButtonReply *replyField `json:"button_reply"`
						ListReply   *replyField `json:"list_reply"`
					} `json:"interactive"`
					Button *struct {
						Payload string `json:"payload"`
						Text    string `json:"text"`
					} `json:"button"`
				} `json:"messages"`
				Statuses []struct {
					ID          string `json:"id"`
					Status      string `json:"status"`
					Timestamp   string `json:"timestamp"`
					RecipientID string `json:"recipient_id"`
				} `json:"statuses"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type replyField struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Parse extracts every message and status event from a webhook body.
// An empty result with a nil error means there was nothing to handle.
func Parse(body []byte) ([]Event, error) {
	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if len(p.Entry) == 0 {
		return nil, fmt.Errorf("%w: no entry", ErrInvalidPayload)
	}

	var events []Event
	for _, entry := range p.Entry {
		for _, change := range entry.Changes {
			v := change.Value

			names := make(map[string]string, len(v.Contacts))
			for _, c := range v.Contacts {
				names[c.WaID] = c.Profile.Name
			}

			for _, m := range v.Messages {
				if m.ID == "" || m.From == "" {
					events = append(events, Event{Type: EventInvalid, Reason: "message without id or sender"})
					continue
				}

				msg := &InboundMessage{
					ID:          m.ID,
					From:        m.From,
					Timestamp:   m.Timestamp,
					Type:        m.Type,
					ContactName: names[m.From],
				}
				if msg.ContactName == "" {
					msg.ContactName = "Unknown"
				}

				switch {
				case m.Text != nil:
					msg.Text = m.Text.Body
				case m.Interactive != nil && m.Interactive.ButtonReply != nil:
					msg.Text = m.Interactive.ButtonReply.ID
				case m.Interactive != nil && m.Interactive.ListReply != nil:
					msg.Text = m.Interactive.ListReply.ID
				case m.Button != nil:
					msg.Text = firstNonEmpty(m.Button.Payload, m.Button.Text)
				}
				msg.Text = strings.TrimSpace(msg.Text)

				events = append(events, Event{Type: EventMessage, Message: msg})
			}

			for _, s := range v.Statuses {
				events = append(events, Event{Type: EventStatus, Status: &StatusUpdate{
					MessageID:   s.ID,
					Status:      s.Status,
					Timestamp:   s.Timestamp,
					RecipientID: s.RecipientID,
				}})
			}
		}
	}

	return events, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
