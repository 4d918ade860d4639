package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/Vovarama1992/faq-bot-bridge/internal/chat"
)

// LogNotifier stands in for the mailer when SMTP is not configured, so
// escalations and reports still reach the operator log.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogNotifier{log: log}
}

func (n *LogNotifier) NotifyEscalation(_ context.Context, e chat.Escalation) error {
	n.log.Warn("escalation requires a human",
		zap.String("session_id", e.SessionID),
		zap.String("channel", string(e.Channel)),
		zap.String("participant", e.ParticipantID),
		zap.String("contact", e.ContactName),
		zap.String("reason", string(e.Reason)),
		zap.String("query", e.Query),
		zap.Int("history", len(e.Recent)))
	return nil
}

func (n *LogNotifier) SendDailyReport(_ context.Context, s chat.Stats) error {
	n.log.Info("daily report",
		zap.Int("conversations", s.TotalConversations),
		zap.Int("messages", s.TotalMessages),
		zap.Float64("escalation_rate", s.EscalationRate),
		zap.Float64("avg_satisfaction", s.AvgSatisfaction),
		zap.Duration("avg_response_time", s.AvgResponseTime))
	return nil
}
