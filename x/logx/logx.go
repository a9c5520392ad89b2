// Package logx is the logging seam shared by host and MCU builds.
//
// Components log with key/value pairs through Logger. Host builds back it
// with zap (see FromZap); TinyGo builds use the line Printer, which avoids
// fmt and writes "[name] LEVEL msg k=v" lines to any io.Writer (typically a
// UART).
package logx

import (
	"io"
	"sync"
	"time"

	"proxnode-go/x/conv"
)

// Logger is the subset of *zap.SugaredLogger the node uses.
type Logger interface {
	Debugw(msg string, keysAndValues ...any)
	Infow(msg string, keysAndValues ...any)
	Warnw(msg string, keysAndValues ...any)
	Errorw(msg string, keysAndValues ...any)
	Named(name string) Logger
}

type Level int8

const (
	DebugLevel Level = iota - 1
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "INFO"
	}
}

// ParseLevel maps "debug","info","warn","error" to a Level (default info).
func ParseLevel(s string) Level {
	switch s {
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// -----------------------------------------------------------------------------
// Nop
// -----------------------------------------------------------------------------

type nop struct{}

// Nop returns a Logger that discards everything.
func Nop() Logger { return nop{} }

func (nop) Debugw(string, ...any) {}
func (nop) Infow(string, ...any)  {}
func (nop) Warnw(string, ...any)  {}
func (nop) Errorw(string, ...any) {}
func (n nop) Named(string) Logger { return n }

// -----------------------------------------------------------------------------
// Printer
// -----------------------------------------------------------------------------

type printerOut struct {
	mu  sync.Mutex
	w   io.Writer
	buf []byte
}

// Printer writes one line per entry. Safe for concurrent use.
type Printer struct {
	out   *printerOut
	name  string
	level Level
}

func NewPrinter(w io.Writer, level Level) *Printer {
	return &Printer{out: &printerOut{w: w}, level: level}
}

func (p *Printer) Named(name string) Logger {
	n := name
	if p.name != "" {
		n = p.name + "." + name
	}
	return &Printer{out: p.out, name: n, level: p.level}
}

func (p *Printer) Debugw(msg string, kv ...any) { p.log(DebugLevel, msg, kv) }
func (p *Printer) Infow(msg string, kv ...any)  { p.log(InfoLevel, msg, kv) }
func (p *Printer) Warnw(msg string, kv ...any)  { p.log(WarnLevel, msg, kv) }
func (p *Printer) Errorw(msg string, kv ...any) { p.log(ErrorLevel, msg, kv) }

func (p *Printer) log(l Level, msg string, kv []any) {
	if l < p.level {
		return
	}
	o := p.out
	o.mu.Lock()
	defer o.mu.Unlock()

	b := o.buf[:0]
	if p.name != "" {
		b = append(b, '[')
		b = append(b, p.name...)
		b = append(b, "] "...)
	}
	b = append(b, l.String()...)
	b = append(b, ' ')
	b = append(b, msg...)
	for i := 0; i < len(kv); i += 2 {
		b = append(b, ' ')
		k, _ := kv[i].(string)
		if k == "" {
			k = "?"
		}
		b = append(b, k...)
		b = append(b, '=')
		if i+1 < len(kv) {
			b = appendValue(b, kv[i+1])
		}
	}
	b = append(b, '\n')
	_, _ = o.w.Write(b)
	o.buf = b
}

type stringer interface{ String() string }

func appendValue(b []byte, v any) []byte {
	switch x := v.(type) {
	case nil:
		return append(b, "nil"...)
	case string:
		return append(b, x...)
	case bool:
		return conv.AppendBool(b, x)
	case int:
		return conv.AppendInt(b, int64(x))
	case int32:
		return conv.AppendInt(b, int64(x))
	case int64:
		return conv.AppendInt(b, x)
	case uint8:
		return conv.AppendUint(b, uint64(x))
	case uint16:
		return conv.AppendUint(b, uint64(x))
	case uint32:
		return conv.AppendUint(b, uint64(x))
	case uint64:
		return conv.AppendUint(b, x)
	case time.Duration:
		return append(b, x.String()...)
	case error:
		return append(b, x.Error()...)
	case stringer:
		return append(b, x.String()...)
	default:
		return append(b, '?')
	}
}
