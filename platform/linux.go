//go:build linux && !tinygo

package platform

import (
	"proxnode-go/drivers/dhcp4"
	"proxnode-go/drivers/edge"
	"proxnode-go/drivers/i2cdev"
	"proxnode-go/drivers/sysfs"
	"proxnode-go/drivers/tof"
	"proxnode-go/drivers/wpa"
	"proxnode-go/errcode"
	"proxnode-go/services/config"
	"proxnode-go/x/logx"
)

const Name = "linux"

func NewLogger(level string) (logx.Logger, func(), error) { return logx.NewZap(level) }

func LoadConfig() (*config.Config, error) { return config.Embedded() }

// Open brings up wpa_supplicant, the DHCP client, the I²C sensor, the
// trigger GPIO and the LED. On error everything opened so far is closed.
func Open(cfg *config.Config, log logx.Logger) (*Board, error) {
	b := &Board{}
	ok := false
	defer func() {
		if !ok {
			_ = b.Close()
		}
	}()

	radio, err := wpa.Open(cfg.Wifi.Interface, wpa.Options{
		ConnectTimeout: cfg.Wifi.ConnectTimeout(),
		Log:            log,
	})
	if err != nil {
		return nil, errcode.Wrap(errcode.RadioStartFailed, "platform.wpa", err)
	}
	b.Radio = radio
	b.onClose(radio.Close)

	b.Net = dhcp4.New(cfg.Wifi.Interface, dhcp4.Options{
		Poll:         cfg.Net.ObservePeriod(),
		RequestLimit: cfg.Net.LeaseTimeout(),
		RetryDelay:   cfg.Wifi.RetryBackoff(),
		Log:          log,
	})

	bus, err := i2cdev.Open(cfg.Board.I2CDevice)
	if err != nil {
		return nil, errcode.Wrap(errcode.UnknownBus, "platform.i2c", err)
	}
	b.onClose(bus.Close)

	rs, err := tof.Open(bus, tof.Options{
		Addr:           cfg.Board.I2CAddr,
		TimingBudgetUs: cfg.Sensor.TimingBudgetUs,
		PeriodMs:       cfg.Sensor.PeriodMs,
	})
	if err != nil {
		return nil, err
	}
	b.Range = rs

	pin, err := sysfs.OpenPin(cfg.Board.GPIOChipDir, cfg.Board.TriggerPin)
	if err != nil {
		return nil, errcode.Wrap(errcode.UnknownPin, "platform.gpio", err)
	}
	b.onClose(pin.Close)

	trig, err := edge.New(pin, edge.Options{Queue: cfg.Sensor.EdgeQueue})
	if err != nil {
		return nil, err
	}
	b.Trigger = trig

	led, err := sysfs.OpenLED(cfg.Board.LEDClassDir, cfg.Board.LEDName)
	if err != nil {
		return nil, errcode.Wrap(errcode.IndicatorWriteFailed, "platform.led", err)
	}
	b.Strip = led

	ok = true
	log.Infow("board opened", "target", Name, "iface", cfg.Wifi.Interface, "i2c", cfg.Board.I2CDevice)
	return b, nil
}
