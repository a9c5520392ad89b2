package types

import (
	"net/netip"
	"time"
)

// ------------------------
// Connectivity
// ------------------------

// LinkState is the association state published by the connectivity manager.
type LinkState uint8

const (
	LinkDisconnected LinkState = iota
	LinkConnecting
	LinkConnected
	LinkAwaitingDisconnect
)

func (s LinkState) String() string {
	switch s {
	case LinkDisconnected:
		return "disconnected"
	case LinkConnecting:
		return "connecting"
	case LinkConnected:
		return "connected"
	case LinkAwaitingDisconnect:
		return "awaiting_disconnect"
	default:
		return "unknown"
	}
}

// RadioState is what a radio driver reports about itself.
type RadioState uint8

const (
	RadioUnknown RadioState = iota
	RadioStopped
	RadioStarted
	RadioConnecting
	RadioConnected
	RadioDisconnected
)

func (s RadioState) String() string {
	switch s {
	case RadioStopped:
		return "stopped"
	case RadioStarted:
		return "started"
	case RadioConnecting:
		return "connecting"
	case RadioConnected:
		return "connected"
	case RadioDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// RadioEvent names an asynchronous notification a radio driver can wait on.
type RadioEvent uint8

const (
	RadioEventDisconnected RadioEvent = iota + 1
)

// Credential is the network identity and secret used to associate.
// It is fixed at build time.
type Credential struct {
	SSID       string
	Passphrase string
}

// Lease is a bound IPv4 configuration.
type Lease struct {
	Address    netip.Prefix  `json:"address"`
	Gateway    netip.Addr    `json:"gateway"`
	DNS        []netip.Addr  `json:"dns,omitempty"`
	Duration   time.Duration `json:"duration"`
	AcquiredAt time.Time     `json:"acquired_at"`
}

// Bound reports whether the lease carries an address.
func (l Lease) Bound() bool { return l.Address.IsValid() }

// ------------------------
// Sensing & indication
// ------------------------

// RangeSample is one distance reading in millimetres.
type RangeSample struct {
	MM   uint32 `json:"mm"`
	TSms int64  `json:"ts_ms"`
}

// IndicatorColor is the classified indicator output.
type IndicatorColor uint8

const (
	IndicatorOff IndicatorColor = iota
	IndicatorAlert
	IndicatorClear
)

func (c IndicatorColor) String() string {
	switch c {
	case IndicatorAlert:
		return "alert"
	case IndicatorClear:
		return "clear"
	default:
		return "off"
	}
}

// Color is one RGB8 pixel value as written to the strip.
type Color struct {
	R, G, B uint8
}

var (
	Black = Color{}
	Red   = Color{R: 255}
	Green = Color{G: 255}
)

// ------------------------
// Bus payloads
// ------------------------

type LinkStatus struct {
	State       LinkState `json:"state"`
	Attempts    uint32    `json:"attempts"`
	Failures    uint32    `json:"failures"`
	Disconnects uint32    `json:"disconnects"`
	TSms        int64     `json:"ts_ms"`
}

type LeaseStatus struct {
	LinkUp bool  `json:"link_up"`
	Bound  bool  `json:"bound"`
	Lease  Lease `json:"lease"`
	TSms   int64 `json:"ts_ms"`
}

type IndicatorStatus struct {
	Color   IndicatorColor `json:"color"`
	RangeMM uint32         `json:"range_mm"`
	Err     string         `json:"error,omitempty"`
	TSms    int64          `json:"ts_ms"`
}

type NodeState struct {
	Level string `json:"level"` // "booting","link_up","ready","stopped"
	TSms  int64  `json:"ts_ms"`
}
