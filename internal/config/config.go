// Package config loads service configuration from the environment and an optional .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	LogLevel string

	Server    ServerConfig
	Database  DatabaseConfig
	AI        AIConfig
	WhatsApp  WhatsAppConfig
	SMTP      SMTPConfig
	Redis     RedisConfig
	Pipeline  PipelineConfig
	Jobs      JobsConfig
	BotTables string
}

type ServerConfig struct {
	Addr        string
	CORSOrigins []string
}

type DatabaseConfig struct {
	Driver string // postgres | sqlite | memory
	URL    string
}

type AIConfig struct {
	APIKey            string
	Model             string
	BaseURL           string
	ClassifierTimeout time.Duration
	ResponderTimeout  time.Duration
}

func (c AIConfig) Enabled() bool {
	return c.APIKey != ""
}

type WhatsAppConfig struct {
	PhoneNumberID string
	AccessToken   string
	VerifyToken   string
	APIVersion    string
	BaseURL       string
	Timeout       time.Duration
}

func (c WhatsAppConfig) Enabled() bool {
	return c.PhoneNumberID != "" && c.AccessToken != ""
}

type SMTPConfig struct {
	Host       string
	Port       int
	User       string
	Pass       string
	AdminEmail string
	Timeout    time.Duration
}

func (c SMTPConfig) Enabled() bool {
	return c.Host != "" && c.AdminEmail != ""
}

type RedisConfig struct {
	URL      string
	DedupTTL time.Duration
}

type PipelineConfig struct {
	SessionWindow time.Duration
	KnowledgeTopN int
	RecentWindow  int
}

type JobsConfig struct {
	RetentionDays int
	ReportHour    int
}

// Load reads the env files (default .env, missing files are ignored) and
// builds Config from the environment. Variables already set in the
// environment win over the files.
func Load(envFiles ...string) (*Config, error) {
	_ = godotenv.Load(envFiles...)
	return FromEnv()
}

// FromEnv builds Config from the current environment without touching .env.
func FromEnv() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	db, err := loadDatabaseConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	wa, err := loadWhatsAppConfig()
	if err != nil {
		return nil, err
	}

	smtp, err := loadSMTPConfig()
	if err != nil {
		return nil, err
	}

	dedupTTL, err := parseDurationEnv("DEDUP_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}

	pipeline, err := loadPipelineConfig()
	if err != nil {
		return nil, err
	}

	jobs, err := loadJobsConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Env:       getEnvOrDefault("APP_ENV", "production"),
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		Server:    server,
		Database:  db,
		AI:        ai,
		WhatsApp:  wa,
		SMTP:      smtp,
		Redis:     RedisConfig{URL: strings.TrimSpace(os.Getenv("REDIS_URL")), DedupTTL: dedupTTL},
		Pipeline:  pipeline,
		Jobs:      jobs,
		BotTables: strings.TrimSpace(os.Getenv("BOT_TABLES_FILE")),
	}, nil
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "3001"
	}

	addr := port
	if !strings.Contains(port, ":") {
		if _, err := strconv.Atoi(port); err != nil {
			return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
		}
		addr = ":" + port
	}

	origins := []string{"*"}
	if raw := strings.TrimSpace(os.Getenv("CORS_ORIGINS")); raw != "" {
		origins = splitList(raw)
	}

	return ServerConfig{Addr: addr, CORSOrigins: origins}, nil
}

func loadDatabaseConfig() (DatabaseConfig, error) {
	driver := strings.ToLower(getEnvOrDefault("DATABASE_DRIVER", "postgres"))
	url := strings.TrimSpace(os.Getenv("DATABASE_URL"))

	switch driver {
	case "postgres":
		if url == "" {
			return DatabaseConfig{}, fmt.Errorf("DATABASE_URL is not set")
		}
	case "sqlite":
		if url == "" {
			url = "./bot_data.db"
		}
	case "memory":
	default:
		return DatabaseConfig{}, fmt.Errorf("invalid DATABASE_DRIVER value: %q", driver)
	}

	return DatabaseConfig{Driver: driver, URL: url}, nil
}

func loadAIConfig() (AIConfig, error) {
	classifierTimeout, err := parseDurationEnv("CLASSIFIER_TIMEOUT", 5*time.Second)
	if err != nil {
		return AIConfig{}, err
	}
	responderTimeout, err := parseDurationEnv("RESPONDER_TIMEOUT", 8*time.Second)
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		APIKey:            strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		Model:             getEnvOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
		BaseURL:           strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")),
		ClassifierTimeout: classifierTimeout,
		ResponderTimeout:  responderTimeout,
	}, nil
}

func loadWhatsAppConfig() (WhatsAppConfig, error) {
	timeout, err := parseDurationEnv("TRANSPORT_TIMEOUT", 10*time.Second)
	if err != nil {
		return WhatsAppConfig{}, err
	}

	return WhatsAppConfig{
		PhoneNumberID: strings.TrimSpace(os.Getenv("WHATSAPP_PHONE_NUMBER_ID")),
		AccessToken:   strings.TrimSpace(os.Getenv("WHATSAPP_ACCESS_TOKEN")),
		VerifyToken:   strings.TrimSpace(os.Getenv("WHATSAPP_WEBHOOK_VERIFY_TOKEN")),
		APIVersion:    getEnvOrDefault("WHATSAPP_API_VERSION", "v18.0"),
		BaseURL:       getEnvOrDefault("WHATSAPP_BASE_URL", "https://graph.facebook.com"),
		Timeout:       timeout,
	}, nil
}

func loadSMTPConfig() (SMTPConfig, error) {
	port, err := parseIntEnv("SMTP_PORT", 587)
	if err != nil {
		return SMTPConfig{}, err
	}
	timeout, err := parseDurationEnv("NOTIFY_TIMEOUT", 15*time.Second)
	if err != nil {
		return SMTPConfig{}, err
	}

	return SMTPConfig{
		Host:       strings.TrimSpace(os.Getenv("SMTP_HOST")),
		Port:       port,
		User:       strings.TrimSpace(os.Getenv("SMTP_USER")),
		Pass:       os.Getenv("SMTP_PASS"),
		AdminEmail: strings.TrimSpace(os.Getenv("ADMIN_EMAIL")),
		Timeout:    timeout,
	}, nil
}

func loadPipelineConfig() (PipelineConfig, error) {
	window, err := parseDurationEnv("SESSION_WINDOW", 30*time.Minute)
	if err != nil {
		return PipelineConfig{}, err
	}
	if window <= 0 {
		return PipelineConfig{}, fmt.Errorf("SESSION_WINDOW must be positive")
	}

	topN, err := parseIntEnv("KNOWLEDGE_TOP_N", 5)
	if err != nil {
		return PipelineConfig{}, err
	}

	recent, err := parseIntEnv("RECENT_WINDOW", 10)
	if err != nil {
		return PipelineConfig{}, err
	}
	if recent < 1 {
		recent = 1
	}

	return PipelineConfig{SessionWindow: window, KnowledgeTopN: topN, RecentWindow: recent}, nil
}

func loadJobsConfig() (JobsConfig, error) {
	days, err := parseIntEnv("RETENTION_DAYS", 90)
	if err != nil {
		return JobsConfig{}, err
	}

	hour, err := parseIntEnv("REPORT_HOUR", 9)
	if err != nil {
		return JobsConfig{}, err
	}
	if hour < 0 || hour > 23 {
		return JobsConfig{}, fmt.Errorf("invalid REPORT_HOUR value: %d", hour)
	}

	return JobsConfig{RetentionDays: days, ReportHour: hour}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
