// bus.go
package bus

import (
	"strings"
	"sync"

	"proxnode-go/x/timex"
)

// -----------------------------------------------------------------------------
// Topics
// -----------------------------------------------------------------------------

// Wildcards accepted in subscription topics. "+" matches exactly one level,
// "#" matches the remaining levels (including none) and must come last.
const (
	WildOne  = "+"
	WildRest = "#"
)

// Topic is a sequence of path tokens, e.g. {"net", "wifi", "state"}.
type Topic []string

// T builds a topic from tokens.
func T(tokens ...string) Topic { return Topic(tokens) }

// Append returns a new topic with extra tokens; t is not modified.
func (t Topic) Append(tokens ...string) Topic {
	out := make(Topic, 0, len(t)+len(tokens))
	out = append(out, t...)
	return append(out, tokens...)
}

func (t Topic) String() string { return strings.Join(t, "/") }

// Match reports whether a concrete topic matches a subscription pattern.
func Match(pattern, topic Topic) bool {
	for i, p := range pattern {
		if p == WildRest {
			return true
		}
		if i >= len(topic) {
			return false
		}
		if p != WildOne && p != topic[i] {
			return false
		}
	}
	return len(pattern) == len(topic)
}

// -----------------------------------------------------------------------------
// Message
// -----------------------------------------------------------------------------

type Message struct {
	Topic    Topic
	Payload  any
	Retained bool
	TSms     int64
}

// -----------------------------------------------------------------------------
// Subscription
// -----------------------------------------------------------------------------

type Subscription struct {
	topic Topic
	ch    chan *Message
	conn  *Connection
}

func (s *Subscription) Topic() Topic             { return s.topic }
func (s *Subscription) Channel() <-chan *Message { return s.ch }
func (s *Subscription) Unsubscribe()             { s.conn.Unsubscribe(s) }

// -----------------------------------------------------------------------------
// Trie node
// -----------------------------------------------------------------------------

type node struct {
	children map[string]*node
	subs     []*Subscription
	retained *Message
}

func (n *node) child(tok string, create bool) *node {
	if c, ok := n.children[tok]; ok {
		return c
	}
	if !create {
		return nil
	}
	if n.children == nil {
		n.children = make(map[string]*node)
	}
	c := &node{}
	n.children[tok] = c
	return c
}

func (n *node) empty() bool {
	return len(n.subs) == 0 && len(n.children) == 0 && n.retained == nil
}

// -----------------------------------------------------------------------------
// Bus
// -----------------------------------------------------------------------------

// Bus is an in-process pub/sub broker. Subscriptions live in one trie keyed
// by pattern; retained messages live in a second trie keyed by exact topic.
type Bus struct {
	mu       sync.Mutex
	subs     *node
	retained *node
	qLen     int
}

// NewBus creates a new bus with the given subscription queue length.
func NewBus(queueLen int) *Bus {
	if queueLen <= 0 {
		queueLen = 8
	}
	return &Bus{
		subs:     &node{},
		retained: &node{},
		qLen:     queueLen,
	}
}

// NewMessage stamps a message with the current time.
func (b *Bus) NewMessage(topic Topic, payload any, retained bool) *Message {
	return &Message{Topic: topic, Payload: payload, Retained: retained, TSms: timex.NowMs()}
}

func (b *Bus) addSubscription(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.subs
	for _, tok := range sub.topic {
		n = n.child(tok, true)
	}
	n.subs = append(n.subs, sub)

	// Replay retained state that matches the new pattern.
	walkRetained(b.retained, func(m *Message) {
		if Match(sub.topic, m.Topic) {
			deliver(sub, m)
		}
	})
}

// Publish delivers a message to all matching subscribers. A retained message
// with a nil payload clears the retained slot for its topic.
func (b *Bus) Publish(msg *Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if msg.Retained {
		b.storeRetained(msg)
	}
	collect(b.subs, msg.Topic, 0, func(s *Subscription) { deliver(s, msg) })
}

func (b *Bus) storeRetained(msg *Message) {
	if msg.Payload != nil {
		n := b.retained
		for _, tok := range msg.Topic {
			n = n.child(tok, true)
		}
		n.retained = msg
		return
	}
	path := make([]*node, 0, len(msg.Topic)+1)
	n := b.retained
	path = append(path, n)
	for _, tok := range msg.Topic {
		if n = n.child(tok, false); n == nil {
			return
		}
		path = append(path, n)
	}
	n.retained = nil
	prune(path, msg.Topic)
}

// Retained returns the retained message stored at an exact topic, if any.
func (b *Bus) Retained(topic Topic) (*Message, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := b.retained
	for _, tok := range topic {
		if n = n.child(tok, false); n == nil {
			return nil, false
		}
	}
	return n.retained, n.retained != nil
}

func (b *Bus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	path := make([]*node, 0, len(sub.topic)+1)
	n := b.subs
	path = append(path, n)
	for _, tok := range sub.topic {
		if n = n.child(tok, false); n == nil {
			return
		}
		path = append(path, n)
	}
	for i, s := range n.subs {
		if s == sub {
			n.subs = append(n.subs[:i], n.subs[i+1:]...)
			break
		}
	}
	prune(path, sub.topic)
}

// collect walks the subscription trie for a concrete topic, honouring
// wildcards at every level.
func collect(n *node, topic Topic, i int, fn func(*Subscription)) {
	if hash := n.children[WildRest]; hash != nil {
		for _, s := range hash.subs {
			fn(s)
		}
	}
	if i == len(topic) {
		for _, s := range n.subs {
			fn(s)
		}
		return
	}
	if c := n.children[topic[i]]; c != nil {
		collect(c, topic, i+1, fn)
	}
	if c := n.children[WildOne]; c != nil {
		collect(c, topic, i+1, fn)
	}
}

func walkRetained(n *node, fn func(*Message)) {
	if n.retained != nil {
		fn(n.retained)
	}
	for _, c := range n.children {
		walkRetained(c, fn)
	}
}

// prune removes empty nodes bottom-up along path (path[0] is the root).
func prune(path []*node, topic Topic) {
	for i := len(topic) - 1; i >= 0; i-- {
		if !path[i+1].empty() {
			return
		}
		delete(path[i].children, topic[i])
	}
}

// deliver never blocks the publisher: when the queue is full the oldest
// pending message is dropped.
func deliver(sub *Subscription, msg *Message) {
	for {
		select {
		case sub.ch <- msg:
			return
		default:
		}
		select {
		case <-sub.ch:
		default:
		}
	}
}

// -----------------------------------------------------------------------------
// Connection
// -----------------------------------------------------------------------------

// Connection groups the subscriptions of one component so they can be
// released together.
type Connection struct {
	bus  *Bus
	id   string
	mu   sync.Mutex
	subs []*Subscription
}

// NewConnection creates a new connection bound to this bus.
func (b *Bus) NewConnection(id string) *Connection {
	return &Connection{bus: b, id: id}
}

func (c *Connection) ID() string { return c.id }

func (c *Connection) NewMessage(topic Topic, payload any, retained bool) *Message {
	return c.bus.NewMessage(topic, payload, retained)
}

// Publish sends a message via the bus.
func (c *Connection) Publish(msg *Message) { c.bus.Publish(msg) }

// Retained reads the retained message at an exact topic.
func (c *Connection) Retained(topic Topic) (*Message, bool) { return c.bus.Retained(topic) }

// Subscribe registers a subscription owned by this connection.
func (c *Connection) Subscribe(topic Topic) *Subscription {
	sub := &Subscription{
		topic: topic,
		ch:    make(chan *Message, c.bus.qLen),
		conn:  c,
	}
	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	c.bus.addSubscription(sub)
	return sub
}

// Unsubscribe removes a subscription owned by this connection and closes its
// channel.
func (c *Connection) Unsubscribe(sub *Subscription) {
	c.mu.Lock()
	found := false
	for i, s := range c.subs {
		if s == sub {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			found = true
			break
		}
	}
	c.mu.Unlock()
	if !found {
		return
	}
	c.bus.unsubscribe(sub)
	close(sub.ch)
}

// Disconnect closes all subscriptions of this connection.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for _, sub := range subs {
		c.bus.unsubscribe(sub)
		close(sub.ch)
	}
}
