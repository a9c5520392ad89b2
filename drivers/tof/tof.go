// Package tof reads distances from a VL53L1X time-of-flight sensor on any
// drivers.I2C bus.
//
// ReadRangeMM blocks until the next continuous-mode measurement is ready.
// On TinyGo that holds the cooperative scheduler for the whole I²C
// transaction, so keep timing budgets short on the MCU.
package tof

import (
	"errors"
	"sync"

	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/vl53l1x"

	"proxnode-go/errcode"
	"proxnode-go/x/conv"
)

// DefaultAddr is the sensor's power-on 7-bit address.
const DefaultAddr = 0x29

var errNoRange = errors.New("no valid range")

type Options struct {
	Addr           uint16
	TimingBudgetUs uint32 // default 200000
	PeriodMs       uint32 // default budget + 4ms
	Use2v8         bool
}

// ranger is the part of *vl53l1x.Device the sensor loop touches.
type ranger interface {
	Read(blocking bool) uint16
}

type Sensor struct {
	mu  sync.Mutex
	dev ranger
}

// Open probes, configures and starts continuous ranging.
func Open(bus drivers.I2C, opts Options) (*Sensor, error) {
	if opts.Addr == 0 {
		opts.Addr = DefaultAddr
	}
	if opts.TimingBudgetUs == 0 {
		opts.TimingBudgetUs = 200000
	}
	if opts.PeriodMs == 0 {
		opts.PeriodMs = opts.TimingBudgetUs/1000 + 4
	}

	d := vl53l1x.New(bus)
	d.Address = opts.Addr
	if !d.Connected() {
		return nil, &errcode.E{C: errcode.SensorReadFailed, Op: "tof.open", Msg: "vl53l1x not found at " + string(conv.AppendHex(nil, uint64(opts.Addr), 2))}
	}
	if !d.Configure(opts.Use2v8) {
		return nil, &errcode.E{C: errcode.SensorReadFailed, Op: "tof.open", Msg: "configure failed"}
	}
	if !d.SetMeasurementTimingBudget(opts.TimingBudgetUs) {
		return nil, &errcode.E{C: errcode.InvalidConfig, Op: "tof.open", Msg: "timing budget rejected"}
	}
	d.StartContinuous(opts.PeriodMs)
	return newSensor(&d), nil
}

func newSensor(r ranger) *Sensor { return &Sensor{dev: r} }

// ReadRangeMM returns the latest distance in millimetres. A zero reading
// means the device timed out or had no valid target data.
func (s *Sensor) ReadRangeMM() (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mm := s.dev.Read(true)
	if mm == 0 {
		return 0, errcode.Wrap(errcode.SensorReadFailed, "tof.read", errNoRange)
	}
	return uint32(mm), nil
}
