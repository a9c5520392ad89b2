package tof

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proxnode-go/errcode"
)

type fakeRanger struct {
	vals []uint16
	reqs []bool
}

func (f *fakeRanger) Read(blocking bool) uint16 {
	f.reqs = append(f.reqs, blocking)
	v := f.vals[0]
	f.vals = f.vals[1:]
	return v
}

// silentBus answers every transfer with zeros.
type silentBus struct{ addrs []uint16 }

func (b *silentBus) Tx(addr uint16, w, r []byte) error {
	b.addrs = append(b.addrs, addr)
	for i := range r {
		r[i] = 0
	}
	return nil
}

func TestReadRangeMM(t *testing.T) {
	f := &fakeRanger{vals: []uint16{150, 0, 4000}}
	s := newSensor(f)

	mm, err := s.ReadRangeMM()
	require.NoError(t, err)
	assert.Equal(t, uint32(150), mm)

	_, err = s.ReadRangeMM()
	assert.Equal(t, errcode.SensorReadFailed, errcode.Of(err))

	mm, err = s.ReadRangeMM()
	require.NoError(t, err)
	assert.Equal(t, uint32(4000), mm)
	assert.Equal(t, []bool{true, true, true}, f.reqs)
}

func TestOpen_NoDevice(t *testing.T) {
	bus := &silentBus{}
	_, err := Open(bus, Options{Addr: 0x30})
	require.Error(t, err)
	assert.Equal(t, errcode.SensorReadFailed, errcode.Of(err))
	assert.Contains(t, err.Error(), "not found at 0x30")
	require.NotEmpty(t, bus.addrs)
	assert.Equal(t, uint16(0x30), bus.addrs[0])
}
