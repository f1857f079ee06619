package serial

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, nil, 0644))
}

func TestDetectPort(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "ttyUSB1"))
	touch(t, filepath.Join(dir, "ttyUSB0"))
	touch(t, filepath.Join(dir, "unrelated"))

	port, err := DetectPort([]string{filepath.Join(dir, "ttyUSB*")})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "ttyUSB0"), port, "lowest-sorted match wins")
}

func TestDetectPortGlobOrder(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "ttyACM0"))
	touch(t, filepath.Join(dir, "ttyUSB0"))

	// Earlier globs take precedence over later ones.
	port, err := DetectPort([]string{
		filepath.Join(dir, "ttyUSB*"),
		filepath.Join(dir, "ttyACM*"),
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "ttyUSB0"), port)
}

func TestDetectPortNoMatch(t *testing.T) {
	dir := t.TempDir()
	_, err := DetectPort([]string{filepath.Join(dir, "ttyUSB*")})
	assert.ErrorIs(t, err, ErrNoPortFound)
}

func TestListPorts(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "ttyUSB0"))
	touch(t, filepath.Join(dir, "ttyACM0"))

	ports := ListPorts([]string{
		filepath.Join(dir, "ttyUSB*"),
		filepath.Join(dir, "ttyACM*"),
	})
	assert.Equal(t, []string{
		filepath.Join(dir, "ttyACM0"),
		filepath.Join(dir, "ttyUSB0"),
	}, ports)
}
