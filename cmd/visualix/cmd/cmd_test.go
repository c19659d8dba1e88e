package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visualix/visualix/internal/config"
)

func TestCommandTree(t *testing.T) {
	want := []string{"serve", "run", "plan", "tools", "jobs", "cleanup", "watch", "config", "doctor", "version"}
	for _, name := range want {
		c, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, c.Name())
	}

	sub, _, err := rootCmd.Find([]string{"jobs", "show"})
	require.NoError(t, err)
	assert.Equal(t, "show", sub.Name())
}

func TestVersionCommand(t *testing.T) {
	SetVersion("1.2.3", "abc123", "2026-01-02")
	defer SetVersion("dev", "none", "unknown")

	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	versionCmd.Run(versionCmd, nil)

	assert.Contains(t, buf.String(), "visualix 1.2.3")
	assert.Contains(t, buf.String(), "commit abc123")
}

func TestHumanBytes(t *testing.T) {
	assert.Equal(t, "512 B", humanBytes(512))
	assert.Equal(t, "1.5 KiB", humanBytes(1536))
	assert.Equal(t, "2.0 MiB", humanBytes(2*1024*1024))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	got := truncate("make it look like an old film", 10)
	assert.Equal(t, 10, len([]rune(got)))
	assert.True(t, strings.HasSuffix(got, "…"))
}

func TestDoctorChecks_MissingBinaries(t *testing.T) {
	cfg := config.Defaults()
	cfg.FFmpeg.FFmpegPath = "visualix-no-such-ffmpeg"
	cfg.FFmpeg.FFprobePath = "visualix-no-such-ffprobe"
	cfg.Planner.Backend = "genai"
	cfg.Planner.APIKey = ""
	cfg.FFmpeg.MinFreeDiskMB = 0
	dir := t.TempDir()
	cfg.Storage.UploadDir, cfg.Storage.OutputDir, cfg.Storage.TempDir = dir, dir, dir

	checks := doctorChecks(cfg)
	byName := map[string]check{}
	for _, c := range checks {
		byName[c.Name] = c
	}
	assert.False(t, byName["ffmpeg"].OK)
	assert.False(t, byName["ffprobe"].OK)
	assert.False(t, byName["planner"].OK)
	assert.Contains(t, byName["planner"].Detail, "API key")
	assert.Contains(t, byName, "resources")
}
