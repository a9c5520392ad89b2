// Command node joins the wifi network, waits for an address and then lights
// the status LED according to the range sensor each time the trigger pin
// falls.
//
// Credentials are fixed at link time:
//
//	go build -ldflags "-X main.ssid=lab -X main.passphrase=secret" ./cmd/node
package main

import (
	"context"
	"os"

	"proxnode-go/bus"
	"proxnode-go/errcode"
	"proxnode-go/platform"
	"proxnode-go/services/config"
	"proxnode-go/services/heartbeat"
	"proxnode-go/services/netstack"
	"proxnode-go/services/node"
	"proxnode-go/services/sensor"
	"proxnode-go/services/wifi"
	"proxnode-go/types"
)

var (
	ssid       string
	passphrase string
)

func main() {
	if err := run(); err != nil {
		println("[main] fatal:", err.Error())
		os.Exit(1)
	}
}

func run() error {
	cfg, err := platform.LoadConfig()
	if err != nil {
		return err
	}
	log, flush, err := platform.NewLogger(cfg.Log.Level)
	if err != nil {
		return err
	}
	defer flush()
	mlog := log.Named("main")

	if ssid == "" {
		return &errcode.E{C: errcode.InvalidConfig, Op: "main", Msg: "no ssid linked in"}
	}

	ctx, stop := signalContext(context.Background())
	defer stop()

	b := bus.NewBus(8)
	config.NewService(cfg, log).Publish(b.NewConnection("config"))

	board, err := platform.Open(cfg, log)
	if err != nil {
		mlog.Errorw("failed to open board", "target", platform.Name, "code", string(errcode.Of(err)), "err", err)
		return err
	}
	defer func() { _ = board.Close() }()
	board.Start(ctx)

	cred := types.Credential{SSID: ssid, Passphrase: passphrase}
	mgr := wifi.New(board.Radio, cred, wifi.Options{
		RetryBackoff:       cfg.Wifi.RetryBackoff(),
		DisconnectCooldown: cfg.Wifi.DisconnectCooldown(),
		Log:                log,
		Conn:               b.NewConnection("wifi"),
	})
	stack := netstack.New(board.Net, netstack.Options{
		ObservePeriod: cfg.Net.ObservePeriod(),
		RestartDelay:  cfg.Net.RestartDelay(),
		Log:           log,
		Conn:          b.NewConnection("net"),
	})
	loop := sensor.New(board.Trigger, board.Range, board.Strip, sensor.Options{
		ThresholdMM:  cfg.Sensor.ThresholdMM,
		Pixels:       cfg.Indicator.Pixels,
		Brightness:   cfg.Indicator.Brightness,
		Gamma:        cfg.Indicator.Gamma,
		AlertColor:   cfg.Indicator.Alert.Color(),
		ClearColor:   cfg.Indicator.Clear.Color(),
		FailFast:     cfg.Sensor.FailFast,
		RecoverDelay: cfg.Sensor.RecoverDelay(),
		Log:          log,
		Conn:         b.NewConnection("sensor"),
	})
	hb := heartbeat.New(b.NewConnection("heartbeat"), heartbeat.Options{Log: log})

	n := node.New(node.Parts{Wifi: mgr, Net: stack, Sensor: loop, Heartbeat: hb}, node.Options{
		ReadyPoll: cfg.Net.ReadyPoll(),
		Log:       log,
		Conn:      b.NewConnection("node"),
	})

	mlog.Infow("starting", "target", platform.Name, "ssid", ssid, "threshold_mm", cfg.Sensor.ThresholdMM)
	n.Start(ctx)
	if _, err := n.WaitReady(ctx); err != nil {
		// The task group carries the cause, if there is one.
		mlog.Warnw("stopped before ready", "code", string(errcode.Of(err)), "err", err)
	}
	return n.Wait()
}
