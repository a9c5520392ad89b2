//go:build linux

// Package i2cdev implements tinygo's drivers.I2C on a Linux /dev/i2c-N
// character device, so MCU drivers run unchanged on the host.
package i2cdev

import (
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// From <linux/i2c-dev.h> and <linux/i2c.h>.
const (
	ioctlRDWR = 0x0707
	flagRead  = 0x0001
)

// i2cMsg mirrors struct i2c_msg.
type i2cMsg struct {
	addr  uint16
	flags uint16
	len   uint16
	buf   uintptr
}

// rdwrData mirrors struct i2c_rdwr_ioctl_data.
type rdwrData struct {
	msgs  uintptr
	nmsgs uint32
}

type Bus struct {
	mu   sync.Mutex
	fd   int
	path string
}

func Open(path string) (*Bus, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &Bus{fd: fd, path: path}, nil
}

func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fd < 0 {
		return nil
	}
	err := unix.Close(b.fd)
	b.fd = -1
	return err
}

// Tx writes w then reads len(r) bytes as one combined transaction (repeated
// start), matching the MCU I2C semantics.
func (b *Bus) Tx(addr uint16, w, r []byte) error {
	msgs := buildMsgs(addr, w, r)
	if len(msgs) == 0 {
		return nil
	}
	data := rdwrData{msgs: uintptr(unsafe.Pointer(&msgs[0])), nmsgs: uint32(len(msgs))}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fd < 0 {
		return fmt.Errorf("%s: closed", b.path)
	}
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(b.fd), ioctlRDWR, uintptr(unsafe.Pointer(&data)))
	runtime.KeepAlive(w)
	runtime.KeepAlive(r)
	runtime.KeepAlive(msgs)
	if errno != 0 {
		return fmt.Errorf("%s addr %#02x: %w", b.path, addr, errno)
	}
	return nil
}

func buildMsgs(addr uint16, w, r []byte) []i2cMsg {
	msgs := make([]i2cMsg, 0, 2)
	if len(w) > 0 {
		msgs = append(msgs, i2cMsg{addr: addr, len: uint16(len(w)), buf: uintptr(unsafe.Pointer(&w[0]))})
	}
	if len(r) > 0 {
		msgs = append(msgs, i2cMsg{addr: addr, flags: flagRead, len: uint16(len(r)), buf: uintptr(unsafe.Pointer(&r[0]))})
	}
	return msgs
}
