//go:build rp2040 && (challenger_rp2040 || ninafw || comboat_fw)

package platform

import (
	"image/color"
	"machine"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"
	"tinygo.org/x/drivers/netlink/probe"
	"tinygo.org/x/drivers/ws2812"

	"proxnode-go/drivers/edge"
	"proxnode-go/drivers/linkradio"
	"proxnode-go/drivers/tof"
	"proxnode-go/errcode"
	"proxnode-go/services/config"
	"proxnode-go/types"
	"proxnode-go/x/logx"
)

// Name is set for RP2040 boards with a netlink wifi co-processor; plain
// Picos build the fallback.
const Name = "rp2040"

// NewLogger prints to UART0 at 115200 8N1.
func NewLogger(level string) (logx.Logger, func(), error) {
	if err := uartx.UART0.Configure(uartx.UARTConfig{
		BaudRate: 115200,
		TX:       machine.UART0_TX_PIN,
		RX:       machine.UART0_RX_PIN,
	}); err != nil {
		return nil, nil, err
	}
	return logx.NewPrinter(uartx.UART0, logx.ParseLevel(level)), func() {}, nil
}

// LoadConfig returns the compiled-in policy; there is no YAML decoder on
// the MCU.
func LoadConfig() (*config.Config, error) {
	cfg := config.Default()
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	config.Normalize(cfg)
	return cfg, nil
}

func Open(cfg *config.Config, log logx.Logger) (*Board, error) {
	if !validPin(cfg.Board.SDAPin) || !validPin(cfg.Board.SCLPin) ||
		!validPin(cfg.Board.TriggerPin) || !validPin(cfg.Board.LEDPin) {
		return nil, &errcode.E{C: errcode.UnknownPin, Op: "platform.open"}
	}
	b := &Board{}

	link, dev := probe.Probe()
	r := linkradio.New(link, dev, linkradio.Options{
		ConnectTimeout: cfg.Wifi.ConnectTimeout(),
	})
	b.Radio, b.Net = r, r

	sda, scl := machine.Pin(cfg.Board.SDAPin), machine.Pin(cfg.Board.SCLPin)
	i2c := i2cFor(sda)
	if i2c == nil {
		return nil, &errcode.E{C: errcode.UnknownBus, Op: "platform.i2c", Msg: "sda pin has no i2c function"}
	}
	if err := i2c.Configure(machine.I2CConfig{SDA: sda, SCL: scl, Frequency: cfg.Board.I2CHz}); err != nil {
		return nil, errcode.Wrap(errcode.UnknownBus, "platform.i2c", err)
	}
	rs, err := tof.Open(i2c, tof.Options{
		Addr:           cfg.Board.I2CAddr,
		TimingBudgetUs: cfg.Sensor.TimingBudgetUs,
		PeriodMs:       cfg.Sensor.PeriodMs,
	})
	if err != nil {
		return nil, err
	}
	b.Range = rs

	trig, err := edge.New(&rp2Pin{p: machine.Pin(cfg.Board.TriggerPin), n: cfg.Board.TriggerPin},
		edge.Options{Queue: cfg.Sensor.EdgeQueue})
	if err != nil {
		return nil, err
	}
	b.Trigger = trig

	led := machine.Pin(cfg.Board.LEDPin)
	led.Configure(machine.PinConfig{Mode: machine.PinOutput})
	b.Strip = &strip{dev: ws2812.New(led)}

	log.Infow("board opened", "target", Name, "radio", r.Capabilities())
	return b, nil
}

func validPin(n int) bool { return n >= 0 && n <= 28 }

// i2cFor picks the controller that owns an SDA pin (GP0/4/8/.. on I2C0,
// GP2/6/10/.. on I2C1).
func i2cFor(sda machine.Pin) *machine.I2C {
	switch sda % 4 {
	case 0:
		return machine.I2C0
	case 2:
		return machine.I2C1
	}
	return nil
}

// ---- rp2Pin: machine.Pin as edge.IRQPin ----

type rp2Pin struct {
	p machine.Pin
	n int
}

func (r *rp2Pin) ConfigureInput(p edge.Pull) error {
	var mode machine.PinMode
	switch p {
	case edge.PullUp:
		mode = machine.PinInputPullup
	case edge.PullDown:
		mode = machine.PinInputPulldown
	default:
		mode = machine.PinInput
	}
	r.p.Configure(machine.PinConfig{Mode: mode})
	return nil
}

func (r *rp2Pin) Get() bool   { return r.p.Get() }
func (r *rp2Pin) Number() int { return r.n }

func (r *rp2Pin) SetIRQ(e edge.Edge, handler func()) error {
	var ch machine.PinChange
	switch e {
	case edge.EdgeRising:
		ch = machine.PinRising
	case edge.EdgeFalling:
		ch = machine.PinFalling
	case edge.EdgeBoth:
		ch = machine.PinToggle
	default:
		return errcode.Unsupported
	}
	return r.p.SetInterrupt(ch, func(machine.Pin) { handler() })
}

func (r *rp2Pin) ClearIRQ() error { return r.p.SetInterrupt(0, nil) }

// ---- strip: ws2812 as sensor.Strip ----

type strip struct {
	dev ws2812.Device
	buf []color.RGBA
}

func (s *strip) Write(colors []types.Color) error {
	if cap(s.buf) < len(colors) {
		s.buf = make([]color.RGBA, len(colors))
	}
	s.buf = s.buf[:len(colors)]
	for i, c := range colors {
		s.buf[i] = color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff}
	}
	return s.dev.WriteColors(s.buf)
}
