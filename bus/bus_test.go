// bus/bus_test.go
package bus

import (
	"sort"
	"testing"
	"time"
)

func TestBasicPubSub(t *testing.T) {
	b := NewBus(4)
	conn := b.NewConnection("test")

	sub := conn.Subscribe(T("net", "wifi", "state"))
	conn.Publish(conn.NewMessage(T("net", "wifi", "state"), "hello", false))

	select {
	case got := <-sub.Channel():
		if got.Payload.(string) != "hello" {
			t.Errorf("expected payload 'hello', got %v", got.Payload)
		}
		if got.TSms == 0 {
			t.Error("message not timestamped")
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for message")
	}
}

func TestRetainedMessage(t *testing.T) {
	b := NewBus(2)
	conn := b.NewConnection("test")

	conn.Publish(conn.NewMessage(T("net", "ipv4", "lease"), "persist", true))

	sub := conn.Subscribe(T("net", "ipv4", "lease"))
	expectOneOf(t, sub, "persist")

	m, ok := conn.Retained(T("net", "ipv4", "lease"))
	if !ok || m.Payload.(string) != "persist" {
		t.Fatalf("Retained lookup = %v, %v", m, ok)
	}
	if _, ok := conn.Retained(T("net", "ipv4")); ok {
		t.Fatal("unexpected retained message on parent topic")
	}
}

func TestWildcard_SingleLevel(t *testing.T) {
	b := NewBus(16)
	c := b.NewConnection("test")

	s1 := c.Subscribe(T("a", "+", "c"))
	s2 := c.Subscribe(T("a", "+", "+"))
	s3 := c.Subscribe(T("a", "b", "+"))
	sNo := c.Subscribe(T("a", "+", "d"))

	c.Publish(b.NewMessage(T("a", "b", "c"), "m1", false))
	expectOneOf(t, s1, "m1")
	expectOneOf(t, s2, "m1")
	expectOneOf(t, s3, "m1")
	expectNoMessage(t, sNo)

	c.Publish(b.NewMessage(T("a", "x", "y"), "m2", false))
	expectOneOf(t, s2, "m2")
	expectNoMessage(t, s1)
	expectNoMessage(t, s3)

	c.Publish(b.NewMessage(T("a", "c"), "m3", false))
	expectNoMessage(t, s1)
	expectNoMessage(t, s2)
}

func TestWildcard_MultiLevel(t *testing.T) {
	b := NewBus(16)
	c := b.NewConnection("test")

	sAHash := c.Subscribe(T("a", "#"))
	sHash := c.Subscribe(T("#"))
	sABHash := c.Subscribe(T("a", "b", "#"))
	sAExact := c.Subscribe(T("a"))

	c.Publish(b.NewMessage(T("a"), "p1", false))
	expectOneOf(t, sAHash, "p1")
	expectOneOf(t, sHash, "p1")
	expectOneOf(t, sAExact, "p1")
	expectNoMessage(t, sABHash)

	c.Publish(b.NewMessage(T("a", "b", "c"), "p3", false))
	expectOneOf(t, sAHash, "p3")
	expectOneOf(t, sHash, "p3")
	expectOneOf(t, sABHash, "p3")
	expectNoMessage(t, sAExact)
}

func TestWildcard_RetainedDelivery(t *testing.T) {
	b := NewBus(32)
	c := b.NewConnection("test")

	c.Publish(b.NewMessage(T("a"), "r0", true))
	c.Publish(b.NewMessage(T("a", "b"), "r1", true))
	c.Publish(b.NewMessage(T("a", "b", "c"), "r2", true))
	c.Publish(b.NewMessage(T("a", "x"), "r3", true))

	assertUnorderedEqual(t, drainPayloads(t, c.Subscribe(T("a", "#")), 4), []string{"r0", "r1", "r2", "r3"})
	assertUnorderedEqual(t, drainPayloads(t, c.Subscribe(T("a", "+", "#")), 3), []string{"r1", "r2", "r3"})
	assertUnorderedEqual(t, drainPayloads(t, c.Subscribe(T("a", "+")), 2), []string{"r1", "r3"})
}

func TestRetainedClear(t *testing.T) {
	b := NewBus(16)
	c := b.NewConnection("test")

	c.Publish(b.NewMessage(T("a", "b"), "keep", true))
	c.Publish(b.NewMessage(T("a", "y"), "other", true))
	c.Publish(b.NewMessage(T("a", "b"), nil, true))

	got := drainPayloads(t, c.Subscribe(T("a", "#")), 1)
	if got[0] != "other" {
		t.Fatalf("expected only 'other' after clear, got %v", got)
	}
	if _, ok := b.Retained(T("a", "b")); ok {
		t.Fatal("cleared topic still retained")
	}
}

func TestFullQueueDropsOldest(t *testing.T) {
	b := NewBus(2)
	c := b.NewConnection("test")
	s := c.Subscribe(T("sensor", "range", "value"))

	for _, p := range []string{"1", "2", "3"} {
		c.Publish(b.NewMessage(T("sensor", "range", "value"), p, false))
	}
	expectOneOf(t, s, "2")
	expectOneOf(t, s, "3")
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := NewBus(4)
	c := b.NewConnection("test")
	s := c.Subscribe(T("node", "state"))
	s.Unsubscribe()

	if _, ok := <-s.Channel(); ok {
		t.Fatal("channel still open after Unsubscribe")
	}
	// Publishing after unsubscribe must not panic on the closed channel.
	c.Publish(b.NewMessage(T("node", "state"), "x", false))
	// Double unsubscribe is a no-op.
	c.Unsubscribe(s)
}

func TestDisconnectReleasesAll(t *testing.T) {
	b := NewBus(4)
	c := b.NewConnection("hb")
	s1 := c.Subscribe(T("net", "#"))
	s2 := c.Subscribe(T("sensor", "+", "state"))
	c.Disconnect()

	for _, s := range []*Subscription{s1, s2} {
		if _, ok := <-s.Channel(); ok {
			t.Fatalf("subscription %v still open", s.Topic())
		}
	}
}

func TestMatch(t *testing.T) {
	cases := []struct {
		pattern, topic Topic
		want           bool
	}{
		{T("a", "b"), T("a", "b"), true},
		{T("a", "+"), T("a", "b"), true},
		{T("a", "+"), T("a"), false},
		{T("a", "#"), T("a"), true},
		{T("#"), T("x", "y", "z"), true},
		{T("a", "b"), T("a", "b", "c"), false},
	}
	for _, tc := range cases {
		if got := Match(tc.pattern, tc.topic); got != tc.want {
			t.Errorf("Match(%v, %v) = %v, want %v", tc.pattern, tc.topic, got, tc.want)
		}
	}
}

func TestTopicAppendDoesNotAlias(t *testing.T) {
	base := make(Topic, 2, 8)
	base[0], base[1] = "sensor", "indicator"
	a := base.Append("state")
	b := base.Append("value")
	if a.String() != "sensor/indicator/state" || b.String() != "sensor/indicator/value" {
		t.Fatalf("append aliased: %v %v", a, b)
	}
}

// -----------------------------------------------------------------------------
// helpers
// -----------------------------------------------------------------------------

func expectOneOf(t *testing.T, sub *Subscription, want string) {
	t.Helper()
	select {
	case got := <-sub.Channel():
		s, ok := got.Payload.(string)
		if !ok || s != want {
			t.Fatalf("unexpected payload: %v (want %q)", got.Payload, want)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatalf("timeout waiting for %q", want)
	}
}

func expectNoMessage(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case got := <-sub.Channel():
		t.Fatalf("unexpected message: %#v", got)
	case <-time.After(30 * time.Millisecond):
	}
}

func drainPayloads(t *testing.T, sub *Subscription, n int) []string {
	t.Helper()
	var out []string
	deadline := time.Now().Add(300 * time.Millisecond)
	for len(out) < n && time.Now().Before(deadline) {
		select {
		case m := <-sub.Channel():
			s, ok := m.Payload.(string)
			if !ok {
				t.Fatalf("non-string payload in drain: %#v", m.Payload)
			}
			out = append(out, s)
		case <-time.After(10 * time.Millisecond):
		}
	}
	if len(out) != n {
		t.Fatalf("drainPayloads: expected %d messages, got %d (%v)", n, len(out), out)
	}
	return out
}

func assertUnorderedEqual(t *testing.T, got, want []string) {
	t.Helper()
	sort.Strings(got)
	sort.Strings(want)
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("mismatch at %d: got %v, want %v", i, got, want)
		}
	}
}
