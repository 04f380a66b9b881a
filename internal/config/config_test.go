package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "voxcode.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "ws://127.0.0.1:8092", cfg.Host.URL)
	assert.Equal(t, "en-US", cfg.Speech.Language)
	assert.Equal(t, 1.0, cfg.Speech.Rate)
	assert.Equal(t, "panel", cfg.Speech.Input)
	assert.Equal(t, "openai", cfg.Delegate.Backend)
	assert.Equal(t, "sk-env", cfg.Delegate.APIKey)
	assert.Equal(t, 30*time.Second, cfg.Delegate.TimeoutDuration())
	assert.Equal(t, 32, cfg.Session.QueueSize)
	assert.True(t, cfg.Commands.BuiltinsEnabled())
	assert.True(t, cfg.UI.StatusMessages())
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("VOXCODE_TEST_KEY", "sk-file")

	path := writeConfig(t, `
delegate:
  backend: openai
  api_key: ${VOXCODE_TEST_KEY}
  timeout: "0"
speech:
  input: inbox
  inbox_dir: /var/spool/voxcode
  rate: 1.5
commands:
  enabled: false
  file: commands.yaml
ui:
  show_status_messages: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sk-file", cfg.Delegate.APIKey)
	assert.Zero(t, cfg.Delegate.TimeoutDuration())
	assert.Equal(t, "inbox", cfg.Speech.Input)
	assert.Equal(t, "/var/spool/voxcode", cfg.Speech.InboxDir)
	assert.Equal(t, 1.5, cfg.Speech.Rate)
	assert.Equal(t, 1.0, cfg.Speech.Pitch)
	assert.False(t, cfg.Commands.BuiltinsEnabled())
	assert.Equal(t, "commands.yaml", cfg.Commands.File)
	assert.False(t, cfg.UI.StatusMessages())
	assert.Equal(t, 500*time.Millisecond, cfg.Speech.InboxIntervalDuration())
}

func TestLoadRejectsUnknownValues(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"backend":  "delegate:\n  backend: gemini\n",
		"input":    "speech:\n  input: telepathy\n",
		"output":   "speech:\n  output: morse\n",
		"duration": "host:\n  reconnect: soon\n",
		"negative": "delegate:\n  timeout: -1s\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	t.Parallel()

	_, err := Load(writeConfig(t, "log: [unclosed"))
	assert.Error(t, err)
}
