// Package sensor runs the edge-triggered ranging loop: wait for a falling
// edge, take one distance reading, classify it against the threshold and
// write the indicator.
package sensor

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"proxnode-go/bus"
	"proxnode-go/errcode"
	"proxnode-go/types"
	"proxnode-go/x/logx"
	"proxnode-go/x/timex"
)

// RangeSensor blocks for one measurement. On TinyGo the call holds the
// scheduler for the whole bus transaction.
type RangeSensor interface {
	ReadRangeMM() (uint32, error)
}

type Trigger interface {
	WaitFallingEdge(ctx context.Context) error
}

type Strip interface {
	Write(colors []types.Color) error
}

var (
	TopicRange     = bus.T("sensor", "range", "value")
	TopicIndicator = bus.T("sensor", "indicator", "state")
)

// Classify is Alert strictly below the threshold and Clear otherwise.
func Classify(mm, thresholdMM uint32) types.IndicatorColor {
	if mm < thresholdMM {
		return types.IndicatorAlert
	}
	return types.IndicatorClear
}

type Options struct {
	ThresholdMM  uint32  // default 200
	Pixels       int     // default 1
	Brightness   uint8   // 0 renders every pixel black
	Gamma        float64 // default 2.8
	AlertColor   types.Color
	ClearColor   types.Color
	FailFast     bool
	RecoverDelay time.Duration
	Clock        clockwork.Clock
	Log          logx.Logger
	Conn         *bus.Connection // optional
}

type Stats struct {
	Edges    uint32
	Writes   uint32
	Failures uint32
}

type Loop struct {
	trig   Trigger
	rs     RangeSensor
	strip  Strip
	render *Renderer

	threshold uint32
	failFast  bool
	recover   time.Duration
	clk       clockwork.Clock
	log       logx.Logger
	conn      *bus.Connection

	mu    sync.Mutex
	stats Stats
	last  types.IndicatorStatus
}

func New(trig Trigger, rs RangeSensor, strip Strip, opts Options) *Loop {
	if opts.ThresholdMM == 0 {
		opts.ThresholdMM = 200
	}
	if opts.Gamma <= 0 {
		opts.Gamma = 2.8
	}
	if opts.AlertColor == types.Black && opts.ClearColor == types.Black {
		opts.AlertColor, opts.ClearColor = types.Green, types.Red
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Log == nil {
		opts.Log = logx.Nop()
	}
	return &Loop{
		trig:      trig,
		rs:        rs,
		strip:     strip,
		render:    NewRenderer(opts.Pixels, opts.Brightness, opts.Gamma, opts.AlertColor, opts.ClearColor),
		threshold: opts.ThresholdMM,
		failFast:  opts.FailFast,
		recover:   opts.RecoverDelay,
		clk:       opts.Clock,
		log:       opts.Log.Named("sensor"),
		conn:      opts.Conn,
	}
}

func (l *Loop) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}

// Init turns the indicator off.
func (l *Loop) Init() error {
	if err := l.strip.Write(l.render.Render(types.IndicatorOff)); err != nil {
		return errcode.Wrap(errcode.IndicatorWriteFailed, "sensor.init", err)
	}
	l.publishStatus(types.IndicatorStatus{Color: types.IndicatorOff})
	return nil
}

// Run initialises the indicator, then serves one edge at a time until ctx
// is cancelled (nil) or, in fail-fast mode, the first I/O failure.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.Init(); err != nil {
		if l.failFast {
			l.log.Errorw("indicator init failed", "err", err)
			return err
		}
		l.log.Warnw("indicator init failed", "err", err)
	}
	l.log.Infow("sensor loop started", "threshold_mm", l.threshold)

	for {
		err := l.cycle(ctx)
		if ctx.Err() != nil {
			l.log.Infow("sensor loop stopping")
			return nil
		}
		if err == nil {
			continue
		}

		l.mu.Lock()
		l.stats.Failures++
		last := l.last
		l.mu.Unlock()
		last.Err = err.Error()
		l.publishStatus(last)

		if l.failFast {
			l.log.Errorw("sensor loop aborted", "err", err, "code", string(errcode.Of(err)))
			return err
		}
		l.log.Warnw("sensor cycle failed", "err", err, "retry_in", l.recover)
		if timex.Sleep(ctx, l.clk, l.recover) != nil {
			return nil
		}
	}
}

func (l *Loop) cycle(ctx context.Context) error {
	if err := l.trig.WaitFallingEdge(ctx); err != nil {
		return errcode.Wrap(errcode.TriggerFailed, "sensor.wait_edge", err)
	}
	l.mu.Lock()
	l.stats.Edges++
	l.mu.Unlock()

	mm, err := l.rs.ReadRangeMM()
	if err != nil {
		return errcode.Wrap(errcode.SensorReadFailed, "sensor.read_range", err)
	}
	if l.conn != nil {
		l.conn.Publish(l.conn.NewMessage(TopicRange, types.RangeSample{MM: mm, TSms: timex.NowMs()}, false))
	}

	c := Classify(mm, l.threshold)
	if c == types.IndicatorAlert {
		l.log.Infow("object in range", "mm", mm)
	} else {
		l.log.Debugw("range", "mm", mm)
	}

	if err := l.strip.Write(l.render.Render(c)); err != nil {
		return errcode.Wrap(errcode.IndicatorWriteFailed, "sensor.write_indicator", err)
	}
	l.mu.Lock()
	l.stats.Writes++
	l.mu.Unlock()
	l.publishStatus(types.IndicatorStatus{Color: c, RangeMM: mm})
	return nil
}

func (l *Loop) publishStatus(st types.IndicatorStatus) {
	st.TSms = timex.NowMs()
	l.mu.Lock()
	if st.Err == "" {
		l.last = st
	}
	l.mu.Unlock()
	if l.conn != nil {
		l.conn.Publish(l.conn.NewMessage(TopicIndicator, st, true))
	}
}
