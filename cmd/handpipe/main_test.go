package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/sova-tungnv/web-ai/internal/gesture"
	"github.com/sova-tungnv/web-ai/internal/store"
)

// execute runs the root command with args against a config file in a
// temporary directory whose database lives next to it.
func execute(t *testing.T, args ...string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "handpipe.db")
	cfgPath := filepath.Join(dir, "config.yaml")
	body := "store:\n  path: " + dbPath + "\nhooks:\n  dir: " + filepath.Join(dir, "hooks") + "\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(body), 0644))

	return runCommand(t, append([]string{"--config", cfgPath}, args...)...), dbPath
}

func runCommand(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
		configPath, verbose = "", false
		sessionsLimit, sessionsTarget, sessionsJSON = 20, "", false
	})
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestConfigCommand_PrintsResolvedYAML(t *testing.T) {
	out, dbPath := execute(t, "config")

	var got map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	storeSection, ok := got["store"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, dbPath, storeSection["path"])
	assert.Contains(t, out, "replace-oldest")
}

func TestSessionsCommand_ListsJournal(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "handpipe.db")
	s, err := store.New(dbPath)
	require.NoError(t, err)
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, s.Sessions().Create(gesture.DragSession{
		ID:        "s1",
		TargetID:  "card",
		StartedAt: start,
		EndedAt:   start.Add(1500 * time.Millisecond),
		EndReason: gesture.EndReleased,
	}))
	require.NoError(t, s.Close())

	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("store:\n  path: "+dbPath+"\n"), 0644))

	out := runCommand(t, "--config", cfgPath, "sessions")
	assert.Contains(t, out, "TARGET")
	assert.Contains(t, out, "card")
	assert.Contains(t, out, "released")
	assert.Contains(t, out, "1.5s")

	out = runCommand(t, "--config", cfgPath, "sessions", "--target", "other")
	assert.NotContains(t, out, "card")
}

func TestHooksCommand_EmptyDir(t *testing.T) {
	out, _ := execute(t, "hooks")
	assert.Contains(t, out, "NAME")
}
