//go:build linux

package i2cdev

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tinygo.org/x/drivers"
)

var _ drivers.I2C = (*Bus)(nil)

func TestBuildMsgs(t *testing.T) {
	assert.Empty(t, buildMsgs(0x29, nil, nil))

	w := []byte{0x01, 0x0f}
	r := make([]byte, 2)
	msgs := buildMsgs(0x29, w, r)
	require.Len(t, msgs, 2)
	assert.Equal(t, uint16(0x29), msgs[0].addr)
	assert.Equal(t, uint16(0), msgs[0].flags)
	assert.Equal(t, uint16(2), msgs[0].len)
	assert.Equal(t, uint16(flagRead), msgs[1].flags)
	assert.Equal(t, uint16(2), msgs[1].len)

	readOnly := buildMsgs(0x29, nil, r)
	require.Len(t, readOnly, 1)
	assert.Equal(t, uint16(flagRead), readOnly[0].flags)
}

func TestOpenMissingDevice(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "i2c-9"))
	assert.Error(t, err)
}

func TestClosedBus(t *testing.T) {
	b := &Bus{fd: -1, path: "/dev/i2c-1"}
	assert.Error(t, b.Tx(0x29, []byte{0}, nil))
	assert.NoError(t, b.Close())
}
