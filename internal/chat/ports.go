package chat

import (
	"context"
	"errors"
	"time"

	"github.com/Vovarama1992/faq-bot-bridge/internal/knowledge"
)

type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

type Channel string

const (
	ChannelWeb      Channel = "web"
	ChannelWhatsApp Channel = "whatsapp"
)

var (
	ErrPersistence = errors.New("persistence failed")
	ErrTransport   = errors.New("transport failed")
)

// Message is immutable once saved. All messages of a session share SessionID.
type Message struct {
	ID                string
	SessionID         string
	ParticipantID     string
	Channel           Channel
	Sender            Sender
	Text              string
	PlatformMessageID string
	ContactName       string
	CreatedAt         time.Time
}

// AnalyticsEvent is appended once per completed pipeline run.
type AnalyticsEvent struct {
	ID                int64
	SessionID         string
	Query             string
	Response          string
	Escalated         bool
	Intent            Intent
	SatisfactionScore *int
	ResponseTime      *time.Duration
	CreatedAt         time.Time
}

// SessionSummary is a session as seen by display surfaces.
type SessionSummary struct {
	SessionID     string
	Channel       Channel
	ParticipantID string
	ContactName   string
	Messages      int
	StartedAt     time.Time
	LastActivity  time.Time
}

type Stats struct {
	Since              time.Time
	TotalConversations int
	TotalMessages      int
	EscalationRate     float64 // percent of analytics events
	AvgSatisfaction    float64
	AvgResponseTime    time.Duration
	IntentDistribution map[Intent]int
	DailyActivity      []DailyCount
}

type DailyCount struct {
	Date     string `json:"date"` // YYYY-MM-DD, UTC
	Messages int    `json:"messages"`
}

// MessageStore — persistence of conversation messages.
type MessageStore interface {
	SaveMessage(ctx context.Context, msg *Message) error
	// SessionMessages returns a session's messages oldest first.
	SessionMessages(ctx context.Context, sessionID string) ([]Message, error)
	// RecentMessages returns at most limit messages, newest first.
	RecentMessages(ctx context.Context, sessionID string, limit int) ([]Message, error)
	ListSessions(ctx context.Context, limit int) ([]SessionSummary, error)
}

// KnowledgeBase is read-only from the pipeline side.
type KnowledgeBase interface {
	ActiveEntries(ctx context.Context) ([]knowledge.Entry, error)
}

// AnalyticsStore is append-only from the pipeline side; Stats serves reporting.
type AnalyticsStore interface {
	RecordAnalytics(ctx context.Context, ev *AnalyticsEvent) error
	Stats(ctx context.Context, since time.Time) (Stats, error)
}

// Repo is the full persistence surface used by the service and the jobs.
type Repo interface {
	MessageStore
	KnowledgeBase
	AnalyticsStore
	Migrate(ctx context.Context) error
	SeedEntries(ctx context.Context, entries []knowledge.Entry) (int, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
	Close() error
}

// Outbound is what a channel adapter hands the pipeline to deliver the answer.
type Outbound struct {
	Recipient    string
	Text         string
	QuickReplies []knowledge.QuickReply
}

type Dispatcher interface {
	Dispatch(ctx context.Context, out Outbound) error
}

// DispatchFunc adapts a function to Dispatcher.
type DispatchFunc func(ctx context.Context, out Outbound) error

func (f DispatchFunc) Dispatch(ctx context.Context, out Outbound) error {
	return f(ctx, out)
}

// Escalation is what the notification channel receives.
type Escalation struct {
	SessionID     string
	Channel       Channel
	ParticipantID string
	ContactName   string
	Reason        Reason
	Query         string
	Recent        []Message // newest first, bounded
	At            time.Time
}

type Notifier interface {
	NotifyEscalation(ctx context.Context, e Escalation) error
}
