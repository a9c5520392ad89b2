//go:build linux

// Package sysfs provides the Linux board I/O: a GPIO input with edge
// interrupts from /sys/class/gpio, and a multicolor LED from
// /sys/class/leds.
package sysfs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"proxnode-go/drivers/edge"
)

// Pin is a sysfs GPIO. The kernel signals edges with POLLPRI on the value
// file; a goroutine per armed pin turns those into handler calls.
type Pin struct {
	dir string // e.g. /sys/class/gpio/gpio10
	n   int

	mu    sync.Mutex
	value *os.File
	stop  chan struct{}
	done  chan struct{}
}

// OpenPin exports GPIO n under root (normally /sys/class/gpio) if needed.
func OpenPin(root string, n int) (*Pin, error) {
	dir := filepath.Join(root, "gpio"+strconv.Itoa(n))
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		if err := os.WriteFile(filepath.Join(root, "export"), []byte(strconv.Itoa(n)), 0o644); err != nil {
			return nil, fmt.Errorf("export gpio%d: %w", n, err)
		}
		// udev may need a moment to fix permissions on the new node.
		for i := 0; i < 20; i++ {
			if _, err := os.Stat(filepath.Join(dir, "value")); err == nil {
				break
			}
			time.Sleep(10 * time.Millisecond)
		}
	}
	f, err := os.OpenFile(filepath.Join(dir, "value"), os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open gpio%d: %w", n, err)
	}
	return &Pin{dir: dir, n: n, value: f}, nil
}

func (p *Pin) Number() int { return p.n }

// ConfigureInput sets the direction. sysfs cannot set bias; pull-ups come
// from the board or device tree.
func (p *Pin) ConfigureInput(edge.Pull) error {
	return p.write("direction", "in")
}

func (p *Pin) Get() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, err := readLevel(p.value)
	return err == nil && v
}

func (p *Pin) SetIRQ(e edge.Edge, handler func()) error {
	if err := p.write("edge", edgeString(e)); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop != nil {
		return errors.New("irq already armed")
	}
	// Consume the current value so the first poll only reports new edges.
	_, _ = readLevel(p.value)
	p.stop, p.done = make(chan struct{}), make(chan struct{})
	go p.watch(int(p.value.Fd()), handler, p.stop, p.done)
	return nil
}

func (p *Pin) ClearIRQ() error {
	p.mu.Lock()
	stop, done := p.stop, p.done
	p.stop, p.done = nil, nil
	p.mu.Unlock()
	if stop != nil {
		close(stop)
		<-done
	}
	return p.write("edge", "none")
}

func (p *Pin) Close() error {
	_ = p.ClearIRQ()
	return p.value.Close()
}

func (p *Pin) watch(fd int, handler func(), stop, done chan struct{}) {
	defer close(done)
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLPRI | unix.POLLERR}}
	for {
		select {
		case <-stop:
			return
		default:
		}
		n, err := unix.Poll(fds, 250)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return
		}
		if n == 0 || fds[0].Revents&unix.POLLPRI == 0 {
			continue
		}
		// Re-arm by reading from the start; the handler samples the level.
		p.mu.Lock()
		_, _ = readLevel(p.value)
		p.mu.Unlock()
		handler()
	}
}

func (p *Pin) write(attr, v string) error {
	if err := os.WriteFile(filepath.Join(p.dir, attr), []byte(v), 0o644); err != nil {
		return fmt.Errorf("gpio%d %s=%s: %w", p.n, attr, v, err)
	}
	return nil
}

func readLevel(f *os.File) (bool, error) {
	var b [2]byte
	n, err := f.ReadAt(b[:], 0)
	if n == 0 {
		if err == nil {
			err = errors.New("empty value")
		}
		return false, err
	}
	return b[0] == '1', nil
}

func edgeString(e edge.Edge) string {
	switch e {
	case edge.EdgeRising:
		return "rising"
	case edge.EdgeFalling:
		return "falling"
	case edge.EdgeBoth:
		return "both"
	default:
		return "none"
	}
}
