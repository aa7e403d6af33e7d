package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoadMissingFileUsesDefaults tests that an absent file yields the defaults
func TestLoadMissingFileUsesDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, exists, err := Load("")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Equal(t, 50*time.Millisecond, cfg.ReconcileInterval())
	assert.Equal(t, 20*time.Millisecond, cfg.PositionInterval())
	assert.Equal(t, log.InfoLevel, cfg.LogLevel())
	assert.False(t, cfg.Remote.Enabled)
	assert.Equal(t, filepath.Join(home, ".local", "share", "cueforge", "journal.db"), cfg.Journal.Path)
}

// TestLoadFile tests decoding and normalisation of a full file
func TestLoadFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "cueforge.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[engine]
reconcile_ms = 25
queue_size = 16

[remote]
enabled = true
listen = " 0.0.0.0:53535 "
workspace_id = "show"
feedback = ["127.0.0.1:53001", "  "]

[journal]
enabled = true
path = "show.db"

[metrics]
enabled = true
listen = "127.0.0.1:9100"

[log]
level = "WARNING"

[workspace]
default_path = "shows/tonight.cueforge"
`), 0o644))

	cfg, exists, err := Load(path)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, 25*time.Millisecond, cfg.ReconcileInterval())
	assert.Equal(t, 20*time.Millisecond, cfg.PositionInterval(), "unset keys keep their defaults")
	assert.Equal(t, 16, cfg.Engine.QueueSize)
	assert.Equal(t, "0.0.0.0:53535", cfg.Remote.Listen)
	assert.Equal(t, []string{"127.0.0.1:53001"}, cfg.Remote.Feedback)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, log.WarnLevel, cfg.LogLevel())
	assert.True(t, filepath.IsAbs(cfg.Journal.Path))
	assert.True(t, filepath.IsAbs(cfg.Workspace.DefaultPath))
}

// TestLoadRejectsUnknownKeys tests that typos in the file are reported
func TestLoadRejectsUnknownKeys(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "cueforge.toml")
	require.NoError(t, os.WriteFile(path, []byte("[engine]\nreconcile = 10\n"), 0o644))

	_, _, err := Load(path)
	require.Error(t, err)
}

// TestValidate tests the rejected values
func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		toml string
	}{
		{"zero reconcile", "[engine]\nreconcile_ms = 0"},
		{"huge position", "[engine]\nposition_ms = 60000"},
		{"empty queue", "[engine]\nqueue_size = 0"},
		{"bad level", "[log]\nlevel = \"loud\""},
		{"remote without listen", "[remote]\nenabled = true\nlisten = \"\""},
		{"bad listen", "[remote]\nenabled = true\nlisten = \"nowhere\""},
		{"bad feedback", "[remote]\nfeedback = [\"localhost\"]"},
		{"slash in workspace id", "[remote]\nworkspace_id = \"a/b\""},
		{"journal without path", "[journal]\nenabled = true\npath = \"\""},
		{"metrics bad listen", "[metrics]\nenabled = true\nlisten = \":x\""},
		{"not toml", "[engine"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.toml))
			assert.Error(t, err)
		})
	}

	cfg, err := Parse([]byte("[remote]\nenabled = true\nfeedback = [\"127.0.0.1:53001\"]"))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:53000", cfg.Remote.Listen)
}
