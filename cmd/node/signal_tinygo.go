//go:build tinygo

package main

import "context"

// The MCU runs until reset.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithCancel(parent)
}
