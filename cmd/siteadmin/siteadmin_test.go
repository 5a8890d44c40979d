package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	uploads := filepath.Join(dir, "uploads")
	raw, err := json.Marshal(map[string]any{
		"DBDriver":  "sqlite",
		"DBPath":    filepath.Join(dir, "site.db"),
		"UploadDir": uploads,
		"LogLevel":  "error",
	})
	require.NoError(t, err)
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, raw, 0o600))
	return path, uploads
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestUserCreateAndList(t *testing.T) {
	cfg, _ := writeConfig(t)

	out, err := run(t, "", "--config", cfg, "user", "create", "-u", "admin", "-p", "s3cret")
	require.NoError(t, err)
	assert.Contains(t, out, `created user "admin"`)

	out, err = run(t, "hunter2\n", "--config", cfg, "user", "create", "-u", "editor")
	require.NoError(t, err)
	assert.Contains(t, out, `created user "editor"`)

	out, err = run(t, "", "--config", cfg, "user", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "USERNAME")
	assert.Contains(t, out, "admin")
	assert.Contains(t, out, "editor")
}

func TestUserCreate_Duplicate(t *testing.T) {
	cfg, _ := writeConfig(t)

	_, err := run(t, "", "--config", cfg, "user", "create", "-u", "admin", "-p", "one")
	require.NoError(t, err)
	_, err = run(t, "", "--config", cfg, "user", "create", "-u", "admin", "-p", "two")
	assert.Error(t, err)
}

func TestUserCreate_RequiresUsername(t *testing.T) {
	cfg, _ := writeConfig(t)
	_, err := run(t, "", "--config", cfg, "user", "create", "-p", "x")
	assert.Error(t, err)
}

func TestAssetsSweep(t *testing.T) {
	cfg, uploads := writeConfig(t)
	require.NoError(t, os.MkdirAll(uploads, 0o755))

	old := filepath.Join(uploads, "0123456789abcdef0123456789abcdef_old.png")
	fresh := filepath.Join(uploads, "fedcba9876543210fedcba9876543210_new.png")
	require.NoError(t, os.WriteFile(old, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(fresh, []byte("x"), 0o644))
	past := time.Now().Add(-3 * time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))

	out, err := run(t, "", "--config", cfg, "assets", "sweep", "--grace", "1h")
	require.NoError(t, err)
	assert.Contains(t, out, "removed 1 file(s)")

	_, err = os.Stat(old)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(fresh)
	assert.NoError(t, err)
}

func TestMigrate(t *testing.T) {
	cfg, _ := writeConfig(t)
	out, err := run(t, "", "--config", cfg, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "schema up to date (sqlite)")
}
