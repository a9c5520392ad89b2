//go:build linux

package sysfs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proxnode-go/drivers/edge"
	"proxnode-go/types"
)

var _ edge.IRQPin = (*Pin)(nil)

func writeFile(t *testing.T, path, v string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(v), 0o644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func TestPin_ExportedPinReadsAndConfigures(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "gpio10", "value"), "1\n")
	writeFile(t, filepath.Join(root, "gpio10", "direction"), "out\n")

	p, err := OpenPin(root, 10)
	require.NoError(t, err)
	defer p.value.Close()

	assert.Equal(t, 10, p.Number())
	assert.True(t, p.Get())
	require.NoError(t, p.ConfigureInput(edge.PullUp))
	assert.Equal(t, "in", readFile(t, filepath.Join(root, "gpio10", "direction")))

	writeFile(t, filepath.Join(root, "gpio10", "value"), "0\n")
	assert.False(t, p.Get())
}

func TestPin_ExportsWhenMissing(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "export"), "")

	_, err := OpenPin(root, 17)
	require.Error(t, err, "no gpio17 node appears in a plain directory")
	assert.Equal(t, "17", readFile(t, filepath.Join(root, "export")))
}

func TestEdgeString(t *testing.T) {
	assert.Equal(t, "falling", edgeString(edge.EdgeFalling))
	assert.Equal(t, "rising", edgeString(edge.EdgeRising))
	assert.Equal(t, "both", edgeString(edge.EdgeBoth))
	assert.Equal(t, "none", edgeString(edge.EdgeNone))
}

func TestLED_WritesChannelsInIndexOrder(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "rgb:status")
	writeFile(t, filepath.Join(dir, "multi_index"), "green red blue\n")
	writeFile(t, filepath.Join(dir, "max_brightness"), "255\n")
	writeFile(t, filepath.Join(dir, "multi_intensity"), "")
	writeFile(t, filepath.Join(dir, "brightness"), "")

	l, err := OpenLED(root, "rgb:status")
	require.NoError(t, err)

	require.NoError(t, l.Write([]types.Color{{R: 10}}))
	assert.Equal(t, "0 10 0", readFile(t, filepath.Join(dir, "multi_intensity")))
	assert.Equal(t, "255", readFile(t, filepath.Join(dir, "brightness")))

	require.NoError(t, l.Write([]types.Color{types.Black}))
	assert.Equal(t, "0", readFile(t, filepath.Join(dir, "brightness")))
}

func TestLED_ScalesToMaxBrightness(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "led0")
	writeFile(t, filepath.Join(dir, "multi_index"), "red green blue")
	writeFile(t, filepath.Join(dir, "max_brightness"), "1")

	l, err := OpenLED(root, "led0")
	require.NoError(t, err)
	require.NoError(t, l.Write([]types.Color{{G: 255}}))
	assert.Equal(t, "0 1 0", readFile(t, filepath.Join(dir, "multi_intensity")))
}

func TestLED_RejectsBadClassDir(t *testing.T) {
	_, err := OpenLED(t.TempDir(), "missing")
	assert.Error(t, err)
}
