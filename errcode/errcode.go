package errcode

import "errors"

// Code is a stable, log-facing error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK            Code = "ok"
	Timeout       Code = "timeout"
	Unsupported   Code = "unsupported"
	InvalidConfig Code = "invalid_config"
	NotReady      Code = "not_ready"

	// Connectivity
	RadioConfigFailed Code = "radio_config_failed"
	RadioStartFailed  Code = "radio_start_failed"
	AssocFailed       Code = "assoc_failed"
	LinkDown          Code = "link_down"
	LeaseFailed       Code = "lease_failed"

	// Reflex loop
	TriggerFailed        Code = "trigger_failed"
	SensorReadFailed     Code = "sensor_read_failed"
	IndicatorWriteFailed Code = "indicator_write_failed"

	// Platform
	UnknownPin Code = "unknown_pin"
	UnknownBus Code = "unknown_bus"

	Error Code = "error" // generic fallback
)

// E keeps an operation name and a cause next to the code.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

// Wrap is shorthand for &E{C: c, Op: op, Err: err}.
func Wrap(c Code, op string, err error) *E { return &E{C: c, Op: op, Err: err} }

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Of extracts a Code from an error chain, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	type coder interface{ Code() Code }
	var x coder
	if errors.As(err, &x) {
		return x.Code()
	}
	var c Code
	if errors.As(err, &c) {
		return c
	}
	return Error
}
