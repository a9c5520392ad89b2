// cmd/boardtest/main.go
//
// boardtest exercises the sensor, LED and trigger without touching the
// radio: it cycles the indicator colours, then prints a range reading on
// every trigger edge.
package main

import (
	"context"
	"os"
	"time"

	"proxnode-go/errcode"
	"proxnode-go/platform"
	"proxnode-go/services/sensor"
	"proxnode-go/types"
)

// ---------- Configuration ----------

const (
	dwell       = 1500 * time.Millisecond
	colorCycles = 2
	edgesToRun  = 0 // 0 = loop forever
)

func main() {
	time.Sleep(2 * time.Second) // let USB CDC enumerate on the MCU

	cfg, err := platform.LoadConfig()
	if err != nil {
		fail("config", err)
	}
	log, flush, err := platform.NewLogger(cfg.Log.Level)
	if err != nil {
		fail("logger", err)
	}
	defer flush()

	board, err := platform.Open(cfg, log.Named("boardtest"))
	if err != nil {
		fail("open", err)
	}
	defer func() { _ = board.Close() }()

	ctx := context.Background()
	board.Start(ctx)

	r := sensor.NewRenderer(cfg.Indicator.Pixels, cfg.Indicator.Brightness, cfg.Indicator.Gamma,
		cfg.Indicator.Alert.Color(), cfg.Indicator.Clear.Color())
	seq := []types.IndicatorColor{types.IndicatorAlert, types.IndicatorClear, types.IndicatorOff}

	println("[boardtest] colour cycle …")
	for i := 0; i < colorCycles; i++ {
		for _, c := range seq {
			if err := board.Strip.Write(r.Render(c)); err != nil {
				println("[boardtest] write", c.String(), "failed:", err.Error())
			} else {
				println("[boardtest] showing", c.String())
			}
			time.Sleep(dwell)
		}
	}

	println("[boardtest] waiting for trigger edges …")
	for n := 0; edgesToRun == 0 || n < edgesToRun; n++ {
		if err := board.Trigger.WaitFallingEdge(ctx); err != nil {
			fail("edge", err)
		}
		mm, err := board.Range.ReadRangeMM()
		if err != nil {
			println("[boardtest] read failed:", string(errcode.Of(err)))
			continue
		}
		c := sensor.Classify(mm, cfg.Sensor.ThresholdMM)
		_ = board.Strip.Write(r.Render(c))
		println("[boardtest] range_mm", mm, c.String())
	}
	st := board.Trigger.Stats()
	println("[boardtest] isr_drops", st.ISRDrops, "queue_drops", st.QueueDrops, "bounces", st.Bounces)
}

func fail(step string, err error) {
	println("[boardtest]", step, "failed:", err.Error())
	os.Exit(1)
}
