// Package platform opens the drivers one build target provides and hands
// them to the services as a Board.
//
// Exactly one of the build-tagged files supplies Open, NewLogger and
// LoadConfig: the Linux host, the RP2040 MCU, or a fallback that reports
// the target as unsupported.
package platform

import (
	"context"

	"go.uber.org/multierr"

	"proxnode-go/drivers/edge"
	"proxnode-go/services/netstack"
	"proxnode-go/services/sensor"
	"proxnode-go/services/wifi"
)

type Board struct {
	Radio   wifi.Radio
	Net     netstack.Driver
	Range   sensor.RangeSensor
	Trigger *edge.Trigger
	Strip   sensor.Strip

	closers []func() error
}

// Start runs the background workers the drivers need (the edge worker).
func (b *Board) Start(ctx context.Context) {
	if b.Trigger != nil {
		b.Trigger.Start(ctx)
	}
}

// Close releases the drivers in reverse open order.
func (b *Board) Close() error {
	var err error
	for i := len(b.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, b.closers[i]())
	}
	b.closers = nil
	return err
}

func (b *Board) onClose(fn func() error) { b.closers = append(b.closers, fn) }
