package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	t.Setenv("DATABASE_DRIVER", "memory")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("SMTP_HOST", "")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(append(args, "--env-file", filepath.Join(t.TempDir(), "missing.env")))
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestMigrateCommand(t *testing.T) {
	assert.Contains(t, execute(t, "migrate"), "5 faq entries seeded")
}

func TestReportCommand(t *testing.T) {
	assert.Contains(t, execute(t, "report"), "report sent")
}

func TestCleanupCommand(t *testing.T) {
	assert.Contains(t, execute(t, "cleanup", "--days", "30"), "0 rows older than 30 days deleted")
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "migrate", "report", "cleanup"} {
		assert.True(t, names[want], want)
	}
}
