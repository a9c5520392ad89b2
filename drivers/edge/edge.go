// Package edge turns an interrupt-capable input pin into a falling-edge
// trigger.
//
// The ISR only samples the pin and does a non-blocking send; a worker
// goroutine queues edges for WaitFallingEdge. With Debounce set it also
// drops bounces; without it every interrupt is an edge. Edges that
// arrive while the consumer is busy are queued (up to the queue length);
// anything beyond that is dropped and counted.
package edge

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"proxnode-go/errcode"
)

type Pull uint8

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

type Edge uint8

const (
	EdgeNone Edge = iota
	EdgeRising
	EdgeFalling
	EdgeBoth
)

// IRQPin is an input pin with interrupt support.
type IRQPin interface {
	ConfigureInput(pull Pull) error
	Get() bool
	Number() int
	SetIRQ(edge Edge, handler func()) error
	ClearIRQ() error
}

type Options struct {
	Pull     Pull          // default PullUp
	Debounce time.Duration // 0 disables
	ISRQueue int           // default 16
	Queue    int           // default 4
	Clock    clockwork.Clock
}

type Trigger struct {
	pin IRQPin
	clk clockwork.Clock

	// Written by ISR; must not block it.
	isrQ chan bool
	outQ chan time.Time

	debounce  time.Duration
	lastEvent time.Time

	isrDrops   uint32
	queueDrops uint32
	bounces    uint32
}

// New configures the pin and arms the falling-edge interrupt. Edges are not
// delivered until Start.
func New(pin IRQPin, opts Options) (*Trigger, error) {
	if opts.Pull == PullNone {
		opts.Pull = PullUp
	}
	if opts.ISRQueue <= 0 {
		opts.ISRQueue = 16
	}
	if opts.Queue <= 0 {
		opts.Queue = 4
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	t := &Trigger{
		pin:      pin,
		clk:      opts.Clock,
		isrQ:     make(chan bool, opts.ISRQueue),
		outQ:     make(chan time.Time, opts.Queue),
		debounce: opts.Debounce,
	}

	if err := pin.ConfigureInput(opts.Pull); err != nil {
		return nil, errcode.Wrap(errcode.TriggerFailed, "edge.configure", err)
	}
	// ISR handler: fast register read + non-blocking channel send.
	handler := func() {
		select {
		case t.isrQ <- pin.Get():
		default:
			atomic.AddUint32(&t.isrDrops, 1)
		}
	}
	if err := pin.SetIRQ(EdgeFalling, handler); err != nil {
		return nil, errcode.Wrap(errcode.TriggerFailed, "edge.set_irq", err)
	}

	return t, nil
}

// Start runs the worker. It stops, and the interrupt is cleared, when ctx
// ends.
func (t *Trigger) Start(ctx context.Context) {
	go func() {
		defer func() { _ = t.pin.ClearIRQ() }()
		for {
			select {
			case <-ctx.Done():
				return
			case level := <-t.isrQ:
				t.handleISR(level)
			}
		}
	}()
}

func (t *Trigger) handleISR(level bool) {
	now := t.clk.Now()
	if t.debounce > 0 {
		// A falling edge that reads high again by the time the ISR samples
		// it is contact bounce.
		if level {
			atomic.AddUint32(&t.bounces, 1)
			return
		}
		if !t.lastEvent.IsZero() && now.Sub(t.lastEvent) < t.debounce {
			atomic.AddUint32(&t.bounces, 1)
			return
		}
	}
	t.lastEvent = now

	select {
	case t.outQ <- now:
	default:
		atomic.AddUint32(&t.queueDrops, 1)
	}
}

// WaitFallingEdge blocks until the next queued edge. Each edge is consumed
// exactly once.
func (t *Trigger) WaitFallingEdge(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.outQ:
		return nil
	}
}

type Stats struct {
	ISRDrops   uint32
	QueueDrops uint32
	Bounces    uint32
}

func (t *Trigger) Stats() Stats {
	return Stats{
		ISRDrops:   atomic.LoadUint32(&t.isrDrops),
		QueueDrops: atomic.LoadUint32(&t.queueDrops),
		Bounces:    atomic.LoadUint32(&t.bounces),
	}
}
