package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFields(t *testing.T) {
	got, err := parseFields([]string{"seat=4", "name=alice", "ready=true", "tags=[\"a\"]", "note=a=b"})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"seat":  float64(4),
		"name":  "alice",
		"ready": true,
		"tags":  []any{"a"},
		"note":  "a=b",
	}, got)
}

func TestParseFields_Invalid(t *testing.T) {
	for _, pair := range []string{"seat", "=4"} {
		_, err := parseFields([]string{pair})
		assert.Error(t, err, pair)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()

	assert.NoError(t, loadDotEnv(filepath.Join(dir, "missing.env")), "a missing file is skipped")

	good := filepath.Join(dir, "good.env")
	require.NoError(t, os.WriteFile(good, []byte("EMIT_TEST_ROOM=r7\n"), 0o600))
	t.Setenv("EMIT_TEST_ROOM", "")
	os.Unsetenv("EMIT_TEST_ROOM")
	require.NoError(t, loadDotEnv(good))
	assert.Equal(t, "r7", os.Getenv("EMIT_TEST_ROOM"))

	bad := filepath.Join(dir, "bad.env")
	require.NoError(t, os.WriteFile(bad, []byte("BAD$KEY=1\n"), 0o600))
	assert.Error(t, loadDotEnv(bad))
}
