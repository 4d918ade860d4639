package chat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Vovarama1992/faq-bot-bridge/internal/dedup"
	"github.com/Vovarama1992/faq-bot-bridge/internal/knowledge"
	"github.com/Vovarama1992/faq-bot-bridge/internal/whatsapp"
)

const (
	maxWebhookBody  = 1 << 20
	maxReplyButtons = 3
)

// WhatsAppSender is the outbound transport for the webhook adapter.
type WhatsAppSender interface {
	SendText(ctx context.Context, to, text string) error
	SendButtons(ctx context.Context, to, header, body string, buttons []whatsapp.Button) error
	SendList(ctx context.Context, to, header, body, buttonText string, sections []whatsapp.Section) error
	MarkRead(ctx context.Context, messageID string) error
}

type HandlerOptions struct {
	Service     Service
	Store       MessageStore
	Analytics   AnalyticsStore
	WhatsApp    WhatsAppSender // nil when the channel is not configured
	VerifyToken string
	Dedup       dedup.Store // may be nil
	Features    map[string]bool
	Now         func() time.Time
	Log         *zap.Logger
}

type Handler struct {
	svc         Service
	store       MessageStore
	analytics   AnalyticsStore
	wa          WhatsAppSender
	verifyToken string
	dedup       dedup.Store
	features    map[string]bool
	now         func() time.Time
	log         *zap.Logger
}

func NewHandler(o HandlerOptions) *Handler {
	h := &Handler{
		svc:         o.Service,
		store:       o.Store,
		analytics:   o.Analytics,
		wa:          o.WhatsApp,
		verifyToken: o.VerifyToken,
		dedup:       o.Dedup,
		features:    o.Features,
		now:         o.Now,
		log:         o.Log,
	}
	if h.now == nil {
		h.now = time.Now
	}
	if h.log == nil {
		h.log = zap.NewNop()
	}
	return h
}

// VerifyWebhook — subscription handshake from the platform.
func (h *Handler) VerifyWebhook(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	challenge, ok := whatsapp.Verify(q.Get("hub.mode"), q.Get("hub.verify_token"), q.Get("hub.challenge"), h.verifyToken)
	if !ok {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(challenge))
}

// HandleWebhook — inbound events. Always acknowledged with 200 so the
// platform does not retry; failures are logged.
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.log.Warn("read webhook body failed", zap.Error(err))
		ack(w)
		return
	}

	events, err := whatsapp.Parse(body)
	if err != nil {
		h.log.Warn("dropping webhook payload", zap.Error(err))
		ack(w)
		return
	}

	for _, ev := range events {
		switch ev.Type {
		case whatsapp.EventStatus:
			h.log.Debug("delivery status",
				zap.String("message_id", ev.Status.MessageID),
				zap.String("status", ev.Status.Status))
		case whatsapp.EventMessage:
			h.handleWhatsAppMessage(r.Context(), ev.Message)
		case whatsapp.EventInvalid:
			h.log.Warn("skipping webhook entry", zap.String("reason", ev.Reason))
		}
	}

	ack(w)
}

func (h *Handler) handleWhatsAppMessage(ctx context.Context, m *whatsapp.InboundMessage) {
	log := h.log.With(zap.String("message_id", m.ID), zap.String("from", m.From))

	if h.dedup != nil {
		first, err := h.dedup.FirstSeen(ctx, "wa:"+m.ID)
		if err != nil {
			log.Warn("dedup lookup failed, processing anyway", zap.Error(err))
		} else if !first {
			log.Info("duplicate delivery skipped")
			return
		}
	}

	text := m.Text
	if text == "" {
		// media and other bodiless messages are kept as a typed placeholder
		text = placeholderText(m.Type)
		log.Info("message without text", zap.String("type", m.Type))
	}

	if h.wa != nil {
		if err := h.wa.MarkRead(ctx, m.ID); err != nil {
			log.Warn("mark as read failed", zap.Error(err))
		}
	}

	res, err := h.svc.Process(ctx, Inbound{
		Channel:           ChannelWhatsApp,
		ParticipantID:     m.From,
		Text:              text,
		PlatformMessageID: m.ID,
		ContactName:       m.ContactName,
		ReceivedAt:        parseUnix(m.Timestamp, h.now()),
	}, DispatchFunc(h.dispatchWhatsApp))
	if err != nil {
		log.Error("pipeline run failed", zap.String("session_id", res.SessionID), zap.Error(err))
		return
	}
	if res.DispatchErr != nil {
		log.Error("reply not delivered", zap.String("session_id", res.SessionID), zap.Error(res.DispatchErr))
	}
}

func placeholderText(msgType string) string {
	if msgType == "" {
		msgType = "unknown"
	}
	return "[" + msgType + "]"
}

func (h *Handler) dispatchWhatsApp(ctx context.Context, out Outbound) error {
	if h.wa == nil {
		return errors.New("whatsapp transport not configured")
	}

	// interactive bodies are capped at 1024 characters by the platform
	if len(out.QuickReplies) == 0 || len(out.Text) > 1024 {
		return h.wa.SendText(ctx, out.Recipient, out.Text)
	}

	if len(out.QuickReplies) <= maxReplyButtons {
		buttons := make([]whatsapp.Button, 0, len(out.QuickReplies))
		for _, q := range out.QuickReplies {
			buttons = append(buttons, whatsapp.Button{ID: q.ID, Title: q.Title})
		}
		return h.wa.SendButtons(ctx, out.Recipient, "", out.Text, buttons)
	}

	rows := make([]whatsapp.Row, 0, len(out.QuickReplies))
	for _, q := range out.QuickReplies {
		rows = append(rows, whatsapp.Row{ID: q.ID, Title: q.Title})
	}
	return h.wa.SendList(ctx, out.Recipient, "", out.Text, "Options", []whatsapp.Section{
		{Title: "Topics", Rows: rows},
	})
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
}

type chatResponse struct {
	SessionID    string                 `json:"sessionId"`
	Text         string                 `json:"text"`
	HTML         string                 `json:"html"`
	Intent       Intent                 `json:"intent"`
	Escalated    bool                   `json:"escalated"`
	QuickReplies []knowledge.QuickReply `json:"quickReplies,omitempty"`
}

// HandleChat — simulated in-browser chat. The reply is the HTTP response.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		respondError(w, http.StatusBadRequest, "message is required")
		return
	}
	if req.UserID == "" {
		req.UserID = "anonymous"
	}

	var sent Outbound
	res, err := h.svc.Process(r.Context(), Inbound{
		Channel:       ChannelWeb,
		ParticipantID: req.UserID,
		SessionID:     req.SessionID,
		Text:          req.Message,
	}, DispatchFunc(func(_ context.Context, out Outbound) error {
		sent = out
		return nil
	}))
	if err != nil {
		h.log.Error("pipeline run failed", zap.String("session_id", res.SessionID), zap.Error(err))
	}
	if sent.Text == "" {
		sent.Text = res.Response
	}

	respondJSON(w, http.StatusOK, chatResponse{
		SessionID:    res.SessionID,
		Text:         sent.Text,
		HTML:         knowledge.RenderHTML(sent.Text),
		Intent:       res.Classification.Intent,
		Escalated:    res.Decision.Escalate,
		QuickReplies: sent.QuickReplies,
	})
}

type messageView struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"sessionId"`
	UserID      string    `json:"userId"`
	Platform    Channel   `json:"platform"`
	Sender      Sender    `json:"sender"`
	Message     string    `json:"message"`
	MessageID   string    `json:"messageId,omitempty"`
	ContactName string    `json:"contactName,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

type sessionView struct {
	SessionID    string    `json:"sessionId"`
	Platform     Channel   `json:"platform"`
	UserID       string    `json:"userId"`
	ContactName  string    `json:"contactName,omitempty"`
	Messages     int       `json:"messages"`
	StartedAt    time.Time `json:"startedAt"`
	LastActivity time.Time `json:"lastActivity"`
}

// ListConversations returns a session's playback (oldest first) when
// sessionId is given, otherwise the session list (latest activity first).
func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	limit := queryInt(r, "limit", 50)

	if sessionID != "" {
		msgs, err := h.store.SessionMessages(r.Context(), sessionID)
		if err != nil {
			h.log.Error("load session failed", zap.Error(err))
			respondError(w, http.StatusInternalServerError, "failed to fetch conversation")
			return
		}
		out := make([]messageView, 0, len(msgs))
		for _, m := range msgs {
			out = append(out, messageView{
				ID:          m.ID,
				SessionID:   m.SessionID,
				UserID:      m.ParticipantID,
				Platform:    m.Channel,
				Sender:      m.Sender,
				Message:     m.Text,
				MessageID:   m.PlatformMessageID,
				ContactName: m.ContactName,
				Timestamp:   m.CreatedAt.UTC(),
			})
		}
		respondJSON(w, http.StatusOK, out)
		return
	}

	sessions, err := h.store.ListSessions(r.Context(), limit)
	if err != nil {
		h.log.Error("list sessions failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to fetch conversations")
		return
	}
	out := make([]sessionView, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, sessionView{
			SessionID:    s.SessionID,
			Platform:     s.Channel,
			UserID:       s.ParticipantID,
			ContactName:  s.ContactName,
			Messages:     s.Messages,
			StartedAt:    s.StartedAt.UTC(),
			LastActivity: s.LastActivity.UTC(),
		})
	}
	respondJSON(w, http.StatusOK, out)
}

type statsView struct {
	PeriodDays         int            `json:"periodDays"`
	TotalConversations int            `json:"totalConversations"`
	TotalMessages      int            `json:"totalMessages"`
	EscalationRate     float64        `json:"escalationRate"`
	AvgSatisfaction    float64        `json:"avgSatisfaction"`
	AvgResponseTimeMS  int64          `json:"avgResponseTimeMs"`
	IntentDistribution map[Intent]int `json:"intentDistribution"`
	RecentActivity     []DailyCount   `json:"recentActivity"`
}

// Analytics returns read aggregates over the trailing period (days).
func (h *Handler) Analytics(w http.ResponseWriter, r *http.Request) {
	period := queryInt(r, "period", 7)
	if period < 1 || period > 365 {
		respondError(w, http.StatusBadRequest, "period must be between 1 and 365")
		return
	}

	stats, err := h.analytics.Stats(r.Context(), h.now().AddDate(0, 0, -period))
	if err != nil {
		h.log.Error("analytics query failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to fetch analytics")
		return
	}

	respondJSON(w, http.StatusOK, statsView{
		PeriodDays:         period,
		TotalConversations: stats.TotalConversations,
		TotalMessages:      stats.TotalMessages,
		EscalationRate:     stats.EscalationRate,
		AvgSatisfaction:    stats.AvgSatisfaction,
		AvgResponseTimeMS:  stats.AvgResponseTime.Milliseconds(),
		IntentDistribution: stats.IntentDistribution,
		RecentActivity:     stats.DailyActivity,
	})
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": h.now().UTC().Format(time.RFC3339),
		"features":  h.features,
		"queue":     map[string]int{"activeSessions": h.svc.ActiveSessions()},
	})
}

func ack(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func parseUnix(raw string, def time.Time) time.Time {
	sec, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || sec <= 0 {
		return def
	}
	return time.Unix(sec, 0)
}
