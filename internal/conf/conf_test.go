package conf

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenLayersOverDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.toml")
	require.NoError(t, os.WriteFile(path, []byte("race_length = 20\nmax_players = 4\n"), 0o644))

	c, err := Open(path)
	require.NoError(t, err)

	assert.Equal(t, uint(20), c.RaceLength)
	assert.Equal(t, uint(4), c.MaxPlayers)
	assert.Equal(t, Default().Listen, c.Listen, "unset fields keep the default")
}

func TestOpenMissingFileReturnsDefault(t *testing.T) {
	c, err := Open(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
	assert.Equal(t, Default(), c)
}

func TestDumpRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Default().Dump(&buf))

	dir := t.TempDir()
	path := filepath.Join(dir, "server.toml")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	c, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}
