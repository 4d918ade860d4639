// Package notify delivers escalation alerts and daily reports to operators.
package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/Vovarama1992/faq-bot-bridge/internal/chat"
)

var ErrNotConfigured = errors.New("smtp not configured")

type SMTPConfig struct {
	Host string
	Port int
	User string
	Pass string
	From string // defaults to User
	To   string
}

// SendFunc delivers one message.
type SendFunc func(ctx context.Context, msg *mail.Msg) error

// Mailer implements chat.Notifier and the daily report over SMTP.
type Mailer struct {
	cfg  SMTPConfig
	send SendFunc
	now  func() time.Time
	log  *zap.Logger
}

type Option func(*Mailer)

// WithSendFunc replaces the SMTP transport.
func WithSendFunc(fn SendFunc) Option {
	return func(m *Mailer) { m.send = fn }
}

func WithClock(now func() time.Time) Option {
	return func(m *Mailer) { m.now = now }
}

func NewMailer(cfg SMTPConfig, log *zap.Logger, opts ...Option) (*Mailer, error) {
	if cfg.Host == "" || cfg.To == "" {
		return nil, ErrNotConfigured
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.From == "" {
		cfg.From = cfg.User
	}

	if log == nil {
		log = zap.NewNop()
	}

	m := &Mailer{cfg: cfg, now: time.Now, log: log}
	m.send = m.smtpSend
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

type recentLine struct {
	Sender string
	Text   string
	At     string
}

type escalationView struct {
	Name        string
	Participant string
	Channel     string
	SessionID   string
	Reason      string
	Query       string
	At          string
	Recent      []recentLine
}

func (m *Mailer) NotifyEscalation(ctx context.Context, e chat.Escalation) error {
	v := escalationView{
		Name:        firstNonEmpty(e.ContactName, "Unknown"),
		Participant: e.ParticipantID,
		Channel:     string(e.Channel),
		SessionID:   e.SessionID,
		Reason:      string(e.Reason),
		Query:       e.Query,
		At:          e.At.Format(time.RFC1123),
	}
	// oldest first reads naturally in a mail
	for i := len(e.Recent) - 1; i >= 0; i-- {
		msg := e.Recent[i]
		v.Recent = append(v.Recent, recentLine{
			Sender: string(msg.Sender),
			Text:   msg.Text,
			At:     msg.CreatedAt.Format(time.RFC1123),
		})
	}

	var body bytes.Buffer
	if err := escalationTmpl.Execute(&body, v); err != nil {
		return fmt.Errorf("render escalation: %w", err)
	}

	subject := "🚨 Customer Escalation Required - " + v.Name
	if err := m.deliver(ctx, subject, body.String()); err != nil {
		return err
	}
	m.log.Info("escalation mail sent", zap.String("session_id", e.SessionID), zap.String("reason", v.Reason))
	return nil
}

type intentLine struct {
	Name  string
	Count int
}

type reportView struct {
	Date               string
	TotalConversations int
	TotalMessages      int
	EscalationRate     float64
	AvgSatisfaction    float64
	AvgResponseTime    time.Duration
	Intents            []intentLine
}

func (m *Mailer) SendDailyReport(ctx context.Context, stats chat.Stats) error {
	v := reportView{
		Date:               m.now().Format("2006-01-02"),
		TotalConversations: stats.TotalConversations,
		TotalMessages:      stats.TotalMessages,
		EscalationRate:     stats.EscalationRate,
		AvgSatisfaction:    stats.AvgSatisfaction,
		AvgResponseTime:    stats.AvgResponseTime.Round(time.Millisecond),
	}
	for in, n := range stats.IntentDistribution {
		v.Intents = append(v.Intents, intentLine{Name: string(in), Count: n})
	}
	sort.Slice(v.Intents, func(i, j int) bool {
		if v.Intents[i].Count != v.Intents[j].Count {
			return v.Intents[i].Count > v.Intents[j].Count
		}
		return v.Intents[i].Name < v.Intents[j].Name
	})

	var body bytes.Buffer
	if err := reportTmpl.Execute(&body, v); err != nil {
		return fmt.Errorf("render report: %w", err)
	}

	if err := m.deliver(ctx, "📊 Daily Bot Report - "+v.Date, body.String()); err != nil {
		return err
	}
	m.log.Info("daily report sent", zap.String("date", v.Date))
	return nil
}

// deliver builds the message with quoted-printable HTML so long transcript
// lines stay within SMTP line limits.
func (m *Mailer) deliver(ctx context.Context, subject, html string) error {
	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := msg.To(m.cfg.To); err != nil {
		return fmt.Errorf("mail to: %w", err)
	}
	msg.Subject(subject)
	msg.SetDateWithValue(m.now())
	msg.SetMessageID()
	msg.SetBodyString(mail.TypeTextHTML, html)

	if err := m.send(ctx, msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

// smtpSend opens one SMTP session per message. Port 465 is implicit TLS;
// other ports upgrade with STARTTLS when the server offers it.
func (m *Mailer) smtpSend(ctx context.Context, msg *mail.Msg) error {
	opts := []mail.Option{
		mail.WithPort(m.cfg.Port),
		mail.WithTimeout(30 * time.Second),
	}
	if m.cfg.Port == 465 {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	if m.cfg.User != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.User),
			mail.WithPassword(m.cfg.Pass),
		)
	}

	client, err := mail.NewClient(m.cfg.Host, opts...)
	if err != nil {
		return err
	}
	return client.DialAndSendWithContext(ctx, msg)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
