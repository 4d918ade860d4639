package chat

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/Vovarama1992/faq-bot-bridge/internal/knowledge"
)

type dialect struct {
	driver   string
	serialPK string
	dayExpr  string // created_at (unix ms) -> YYYY-MM-DD, UTC
	dollar   bool
}

var (
	postgresDialect = dialect{
		driver:   "postgres",
		serialPK: "BIGSERIAL PRIMARY KEY",
		dayExpr:  "to_char(to_timestamp(created_at / 1000.0) AT TIME ZONE 'UTC', 'YYYY-MM-DD')",
		dollar:   true,
	}
	sqliteDialect = dialect{
		driver:   "sqlite",
		serialPK: "INTEGER PRIMARY KEY AUTOINCREMENT",
		dayExpr:  "strftime('%Y-%m-%d', created_at / 1000, 'unixepoch')",
	}
)

// rebind rewrites ? placeholders to $n for Postgres.
func (d dialect) rebind(q string) string {
	if !d.dollar {
		return q
	}
	var sb strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			sb.WriteString("$" + strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

type repo struct {
	db *sql.DB
	d  dialect
}

// OpenRepo opens the store for driver "postgres", "sqlite" or "memory" and
// makes sure the schema exists.
func OpenRepo(ctx context.Context, driver, dsn string) (Repo, error) {
	var r Repo
	switch driver {
	case "memory":
		r = NewMemoryRepo()
	case "postgres", "sqlite":
		db, err := sql.Open(driver, dsn)
		if err != nil {
			return nil, fmt.Errorf("db open: %w", err)
		}
		if driver == "sqlite" {
			// one writer; also keeps ":memory:" on a single database
			db.SetMaxOpenConns(1)
		}

		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := db.PingContext(pctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("db ping: %w", err)
		}
		r = NewRepo(db, driver)
	default:
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}

	if err := r.Migrate(ctx); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

func NewRepo(db *sql.DB, driver string) Repo {
	d := postgresDialect
	if driver == "sqlite" {
		d = sqliteDialect
	}
	return &repo{db: db, d: d}
}

func (r *repo) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
			seq ` + r.d.serialPK + `,
			id TEXT NOT NULL UNIQUE,
			session_id TEXT NOT NULL,
			user_id TEXT NOT NULL DEFAULT '',
			platform TEXT NOT NULL DEFAULT 'whatsapp',
			sender TEXT NOT NULL,
			message TEXT NOT NULL,
			message_id TEXT,
			contact_name TEXT,
			created_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_session ON conversations (session_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_created ON conversations (created_at)`,
		`CREATE TABLE IF NOT EXISTS faqs (
			id ` + r.d.serialPK + `,
			category TEXT NOT NULL,
			question TEXT NOT NULL,
			answer TEXT NOT NULL,
			keywords TEXT NOT NULL DEFAULT '',
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS analytics (
			id ` + r.d.serialPK + `,
			session_id TEXT NOT NULL,
			user_query TEXT NOT NULL,
			bot_response TEXT NOT NULL,
			escalated BOOLEAN NOT NULL DEFAULT FALSE,
			satisfaction_score INTEGER,
			intent TEXT,
			response_time_ms BIGINT,
			created_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_analytics_created ON analytics (created_at)`,
	}

	for _, s := range stmts {
		if _, err := r.db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (r *repo) SaveMessage(ctx context.Context, msg *Message) error {
	_, err := r.db.ExecContext(ctx, r.d.rebind(`
		INSERT INTO conversations (id, session_id, user_id, platform, sender, message, message_id, contact_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`),
		msg.ID,
		msg.SessionID,
		msg.ParticipantID,
		string(msg.Channel),
		string(msg.Sender),
		msg.Text,
		nullString(msg.PlatformMessageID),
		nullString(msg.ContactName),
		msg.CreatedAt.UnixMilli(),
	)
	return err
}

const messageColumns = `id, session_id, user_id, platform, sender, message, message_id, contact_name, created_at`

func (r *repo) SessionMessages(ctx context.Context, sessionID string) ([]Message, error) {
	return r.queryMessages(ctx, `
		SELECT `+messageColumns+`
		FROM conversations
		WHERE session_id = ?
		ORDER BY created_at ASC, seq ASC
	`, sessionID)
}

func (r *repo) RecentMessages(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	return r.queryMessages(ctx, `
		SELECT `+messageColumns+`
		FROM conversations
		WHERE session_id = ?
		ORDER BY created_at DESC, seq DESC
		LIMIT ?
	`, sessionID, limit)
}

func (r *repo) queryMessages(ctx context.Context, q string, args ...any) ([]Message, error) {
	rows, err := r.db.QueryContext(ctx, r.d.rebind(q), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var (
			m                   Message
			channel, sender     string
			platformID, contact sql.NullString
			createdAt           int64
		)
		if err := rows.Scan(
			&m.ID,
			&m.SessionID,
			&m.ParticipantID,
			&channel,
			&sender,
			&m.Text,
			&platformID,
			&contact,
			&createdAt,
		); err != nil {
			return nil, err
		}
		m.Channel = Channel(channel)
		m.Sender = Sender(sender)
		m.PlatformMessageID = platformID.String
		m.ContactName = contact.String
		m.CreatedAt = time.UnixMilli(createdAt)
		out = append(out, m)
	}

	return out, rows.Err()
}

func (r *repo) ListSessions(ctx context.Context, limit int) ([]SessionSummary, error) {
	rows, err := r.db.QueryContext(ctx, r.d.rebind(`
		SELECT session_id, MIN(platform), MIN(user_id), MAX(COALESCE(contact_name, '')),
		       COUNT(*), MIN(created_at), MAX(created_at)
		FROM conversations
		GROUP BY session_id
		ORDER BY MAX(created_at) DESC
		LIMIT ?
	`), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var (
			s             SessionSummary
			channel       string
			first, latest int64
		)
		if err := rows.Scan(&s.SessionID, &channel, &s.ParticipantID, &s.ContactName, &s.Messages, &first, &latest); err != nil {
			return nil, err
		}
		s.Channel = Channel(channel)
		s.StartedAt = time.UnixMilli(first)
		s.LastActivity = time.UnixMilli(latest)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *repo) ActiveEntries(ctx context.Context) ([]knowledge.Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, category, question, answer, keywords, active, created_at, updated_at
		FROM faqs
		WHERE active = TRUE
		ORDER BY category, created_at, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []knowledge.Entry
	for rows.Next() {
		var (
			e        knowledge.Entry
			keywords string
		)
		if err := rows.Scan(&e.ID, &e.Category, &e.Question, &e.Answer, &keywords, &e.Active, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		e.Keywords = knowledge.SplitKeywords(keywords)
		out = append(out, e)
	}
	return out, rows.Err()
}

// SeedEntries inserts entries only into an empty faqs table.
func (r *repo) SeedEntries(ctx context.Context, entries []knowledge.Entry) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM faqs`).Scan(&count); err != nil {
		return 0, err
	}
	if count > 0 {
		return 0, nil
	}

	now := time.Now().UnixMilli()
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, r.d.rebind(`
			INSERT INTO faqs (category, question, answer, keywords, active, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`), e.Category, e.Question, e.Answer, knowledge.JoinKeywords(e.Keywords), e.Active, now, now); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(entries), nil
}

func (r *repo) RecordAnalytics(ctx context.Context, ev *AnalyticsEvent) error {
	var responseMS sql.NullInt64
	if ev.ResponseTime != nil {
		responseMS = sql.NullInt64{Int64: ev.ResponseTime.Milliseconds(), Valid: true}
	}
	var score sql.NullInt64
	if ev.SatisfactionScore != nil {
		score = sql.NullInt64{Int64: int64(*ev.SatisfactionScore), Valid: true}
	}

	return r.db.QueryRowContext(ctx, r.d.rebind(`
		INSERT INTO analytics (session_id, user_query, bot_response, escalated, satisfaction_score, intent, response_time_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`),
		ev.SessionID,
		ev.Query,
		ev.Response,
		ev.Escalated,
		score,
		nullString(string(ev.Intent)),
		responseMS,
		ev.CreatedAt.UnixMilli(),
	).Scan(&ev.ID)
}

func (r *repo) Stats(ctx context.Context, since time.Time) (Stats, error) {
	from := since.UnixMilli()
	s := Stats{Since: since, IntentDistribution: make(map[Intent]int)}

	if err := r.db.QueryRowContext(ctx, r.d.rebind(`
		SELECT COUNT(DISTINCT session_id), COUNT(*) FROM conversations WHERE created_at >= ?
	`), from).Scan(&s.TotalConversations, &s.TotalMessages); err != nil {
		return Stats{}, fmt.Errorf("stats messages: %w", err)
	}

	var (
		events, escalated int64
		avgScore, avgMS   sql.NullFloat64
	)
	if err := r.db.QueryRowContext(ctx, r.d.rebind(`
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN escalated THEN 1 ELSE 0 END), 0),
		       AVG(satisfaction_score),
		       AVG(response_time_ms)
		FROM analytics
		WHERE created_at >= ?
	`), from).Scan(&events, &escalated, &avgScore, &avgMS); err != nil {
		return Stats{}, fmt.Errorf("stats analytics: %w", err)
	}
	if events > 0 {
		s.EscalationRate = float64(escalated) * 100 / float64(events)
	}
	s.AvgSatisfaction = avgScore.Float64
	s.AvgResponseTime = time.Duration(avgMS.Float64 * float64(time.Millisecond))

	rows, err := r.db.QueryContext(ctx, r.d.rebind(`
		SELECT intent, COUNT(*) FROM analytics
		WHERE intent IS NOT NULL AND created_at >= ?
		GROUP BY intent
	`), from)
	if err != nil {
		return Stats{}, fmt.Errorf("stats intents: %w", err)
	}
	for rows.Next() {
		var (
			intent string
			n      int
		)
		if err := rows.Scan(&intent, &n); err != nil {
			rows.Close()
			return Stats{}, err
		}
		s.IntentDistribution[Intent(intent)] = n
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return Stats{}, fmt.Errorf("stats intents: %w", err)
	}

	days, err := r.db.QueryContext(ctx, r.d.rebind(`
		SELECT `+r.d.dayExpr+` AS day, COUNT(*) FROM conversations
		WHERE created_at >= ?
		GROUP BY day
		ORDER BY day
	`), from)
	if err != nil {
		return Stats{}, fmt.Errorf("stats activity: %w", err)
	}
	defer days.Close()
	for days.Next() {
		var dc DailyCount
		if err := days.Scan(&dc.Date, &dc.Messages); err != nil {
			return Stats{}, err
		}
		s.DailyActivity = append(s.DailyActivity, dc)
	}

	return s, days.Err()
}

// DeleteBefore removes messages and analytics older than cutoff. Used by
// the retention job only.
func (r *repo) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var total int64
	for _, table := range []string{"conversations", "analytics"} {
		res, err := tx.ExecContext(ctx, r.d.rebind(`DELETE FROM `+table+` WHERE created_at < ?`), cutoff.UnixMilli())
		if err != nil {
			return 0, fmt.Errorf("delete %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}

	return total, tx.Commit()
}

func (r *repo) Close() error {
	return r.db.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
