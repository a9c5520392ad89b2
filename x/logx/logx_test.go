package logx

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestPrinterLineFormat(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, InfoLevel)
	l := p.Named("wifi")

	l.Infow("wifi connected", "attempt", 3, "backoff", 5*time.Second)
	l.Warnw("connect failed", "err", errors.New("auth timeout"), "ok", false)
	l.Debugw("hidden")

	assert.Equal(t,
		"[wifi] INFO wifi connected attempt=3 backoff=5s\n"+
			"[wifi] WARN connect failed err=auth timeout ok=false\n",
		buf.String())
}

func TestPrinterNestedNamesAndOddPairs(t *testing.T) {
	var buf bytes.Buffer
	l := NewPrinter(&buf, DebugLevel).Named("node").Named("sensor")
	l.Debugw("range", "mm", uint32(150), "dangling")
	assert.Equal(t, "[node.sensor] DEBUG range mm=150 dangling=\n", buf.String())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLevel("debug"))
	assert.Equal(t, WarnLevel, ParseLevel("warning"))
	assert.Equal(t, InfoLevel, ParseLevel("bogus"))
}

func TestFromZapKeepsFieldsAndNames(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	l := FromZap(zap.New(core)).Named("netstack")

	l.Infow("got ip", "address", "192.168.1.20/24")

	require.Equal(t, 1, logs.Len())
	e := logs.All()[0]
	assert.Equal(t, "got ip", e.Message)
	assert.Equal(t, "netstack", e.LoggerName)
	assert.Equal(t, "192.168.1.20/24", e.ContextMap()["address"])
}

func TestNewZapRejectsUnknownLevel(t *testing.T) {
	_, _, err := NewZap("loud")
	assert.Error(t, err)
}
