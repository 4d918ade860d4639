package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "memory")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":3001", cfg.Server.Addr)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, 5*time.Second, cfg.AI.ClassifierTimeout)
	assert.Equal(t, 30*time.Minute, cfg.Pipeline.SessionWindow)
	assert.Equal(t, 10, cfg.Pipeline.RecentWindow)
	assert.Equal(t, 90, cfg.Jobs.RetentionDays)
	assert.Equal(t, 9, cfg.Jobs.ReportHour)
	assert.False(t, cfg.AI.Enabled())
	assert.False(t, cfg.WhatsApp.Enabled())
	assert.False(t, cfg.SMTP.Enabled())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("PORT", "127.0.0.1:9000")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("SESSION_WINDOW", "10m")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("WHATSAPP_PHONE_NUMBER_ID", "123")
	t.Setenv("WHATSAPP_ACCESS_TOKEN", "token")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "./bot_data.db", cfg.Database.URL)
	assert.Equal(t, 10*time.Minute, cfg.Pipeline.SessionWindow)
	assert.True(t, cfg.AI.Enabled())
	assert.True(t, cfg.WhatsApp.Enabled())
}

func TestFromEnvErrors(t *testing.T) {
	cases := map[string]map[string]string{
		"postgres without url": {"DATABASE_DRIVER": "postgres", "DATABASE_URL": ""},
		"unknown driver":       {"DATABASE_DRIVER": "mongo"},
		"bad port":             {"DATABASE_DRIVER": "memory", "PORT": "80 80"},
		"bad duration":         {"DATABASE_DRIVER": "memory", "CLASSIFIER_TIMEOUT": "soon"},
		"bad report hour":      {"DATABASE_DRIVER": "memory", "REPORT_HOUR": "25"},
	}

	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := FromEnv()
			assert.Error(t, err)
		})
	}
}

func TestLoadReadsEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("DATABASE_DRIVER=memory\nRETENTION_DAYS=30\n"), 0o600))
	// registers restore, then leaves the keys unset for godotenv
	t.Setenv("DATABASE_DRIVER", "")
	t.Setenv("RETENTION_DAYS", "")
	os.Unsetenv("DATABASE_DRIVER")
	os.Unsetenv("RETENTION_DAYS")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, 30, cfg.Jobs.RetentionDays)
}
