package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
telegram:
  bot_token: "token"
  bot_username: "kino_bot"
  full_channel: "@full"
  preview_channel: "@preview"
curators:
  phones:
    - "+998901234567"
storage:
  data_dir: "data"
server:
  port: ":8080"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "token", cfg.Telegram.BotToken)
	assert.Equal(t, "@full", cfg.Telegram.FullChannel)
	assert.Equal(t, []string{"+998901234567"}, cfg.Curators.Phones)
	assert.Equal(t, "data", cfg.Storage.DataDir)
	assert.Equal(t, "kinolar", cfg.Storage.DownloadsDir, "downloads dir defaults")
	assert.Equal(t, ":8080", cfg.Server.Port)
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
telegram:
  bot_token: "token"
  full_channel: "@full"
  preview_channel: "@preview"
curators:
  ids: [42]
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ".", cfg.Storage.DataDir)
	assert.Equal(t, []int64{42}, cfg.Curators.IDs)
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing token", "telegram:\n  full_channel: \"@a\"\n  preview_channel: \"@b\"\ncurators:\n  ids: [1]\n"},
		{"missing channels", "telegram:\n  bot_token: \"t\"\ncurators:\n  ids: [1]\n"},
		{"no curators", "telegram:\n  bot_token: \"t\"\n  full_channel: \"@a\"\n  preview_channel: \"@b\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}
