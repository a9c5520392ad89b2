// Package node wires the long-running tasks together: it starts them in one
// errgroup, gates on network readiness and then waits for the group.
package node

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"proxnode-go/bus"
	"proxnode-go/errcode"
	"proxnode-go/types"
	"proxnode-go/x/logx"
	"proxnode-go/x/timex"
)

var TopicState = bus.T("node", "state")

const (
	LevelBooting = "booting"
	LevelLinkUp  = "link_up"
	LevelReady   = "ready"
	LevelStopped = "stopped"
)

type Task interface {
	Run(ctx context.Context) error
}

// Network is what the readiness gate polls.
type Network interface {
	Task
	IsLinkUp() bool
	BoundAddress() (types.Lease, bool)
}

// Parts are the node's tasks. Heartbeat may be nil.
type Parts struct {
	Wifi      Task
	Net       Network
	Sensor    Task
	Heartbeat Task
}

type Options struct {
	ReadyPoll time.Duration // default 500ms
	Clock     clockwork.Clock
	Log       logx.Logger
	Conn      *bus.Connection // optional
}

type Node struct {
	parts Parts
	clk   clockwork.Clock
	log   logx.Logger
	conn  *bus.Connection
	poll  time.Duration

	g    *errgroup.Group
	gctx context.Context
}

func New(parts Parts, opts Options) *Node {
	if opts.ReadyPoll <= 0 {
		opts.ReadyPoll = 500 * time.Millisecond
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Log == nil {
		opts.Log = logx.Nop()
	}
	return &Node{
		parts: parts,
		clk:   opts.Clock,
		log:   opts.Log.Named("node"),
		conn:  opts.Conn,
		poll:  opts.ReadyPoll,
	}
}

// Start spawns every task. The first task to fail cancels the others.
func (n *Node) Start(ctx context.Context) {
	n.publish(LevelBooting)
	n.g, n.gctx = errgroup.WithContext(ctx)

	n.spawn("wifi", n.parts.Wifi)
	n.spawn("net", n.parts.Net)
	n.spawn("sensor", n.parts.Sensor)
	if n.parts.Heartbeat != nil {
		n.spawn("heartbeat", n.parts.Heartbeat)
	}
}

func (n *Node) spawn(name string, t Task) {
	n.g.Go(func() error {
		err := t.Run(n.gctx)
		switch {
		case err != nil:
			n.log.Errorw("task failed", "task", name, "err", err)
		case n.gctx.Err() == nil:
			n.log.Warnw("task returned early", "task", name)
		}
		return err
	})
}

// WaitReady blocks until the link is up and an address is bound. There is
// no timeout other than ctx; it also gives up when the task group dies.
func (n *Node) WaitReady(ctx context.Context) (types.Lease, error) {
	if n.g == nil {
		return types.Lease{}, &errcode.E{C: errcode.NotReady, Op: "node.wait_ready", Msg: "not started"}
	}
	for !n.parts.Net.IsLinkUp() {
		if err := n.pause(ctx); err != nil {
			return types.Lease{}, err
		}
	}
	n.publish(LevelLinkUp)

	n.log.Infow("waiting to get IP address")
	for {
		if l, ok := n.parts.Net.BoundAddress(); ok {
			n.log.Infow("got IP", "address", l.Address.String(), "gateway", l.Gateway.String())
			n.publish(LevelReady)
			return l, nil
		}
		if err := n.pause(ctx); err != nil {
			return types.Lease{}, err
		}
	}
}

func (n *Node) pause(ctx context.Context) error {
	if err := n.gctx.Err(); err != nil {
		return errcode.Wrap(errcode.NotReady, "node.wait_ready", err)
	}
	if err := timex.Sleep(ctx, n.clk, n.poll); err != nil {
		return errcode.Wrap(errcode.NotReady, "node.wait_ready", err)
	}
	return nil
}

// Wait blocks until every task has returned and reports the first failure.
// Cancellation is not a failure.
func (n *Node) Wait() error {
	if n.g == nil {
		return nil
	}
	err := n.g.Wait()
	n.publish(LevelStopped)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (n *Node) publish(level string) {
	if n.conn == nil {
		return
	}
	n.conn.Publish(n.conn.NewMessage(TopicState, types.NodeState{Level: level, TSms: timex.NowMs()}, true))
}
