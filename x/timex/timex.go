package timex

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// NowMs returns Unix milliseconds as int64.
func NowMs() int64 { return time.Now().UnixMilli() }

// Ms converts a millisecond count from configuration into a Duration.
// Negative values are treated as zero.
func Ms(ms int) time.Duration {
	if ms < 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}

// Sleep waits d on clk or until ctx is done, whichever comes first.
// It returns ctx.Err() when interrupted.
func Sleep(ctx context.Context, clk clockwork.Clock, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-clk.After(d):
		return nil
	}
}
