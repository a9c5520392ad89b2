//go:build linux

package dhcp4

import (
	"fmt"
	"net"
	"net/netip"

	"golang.org/x/sys/unix"
)

// installAddr sets the interface address and netmask with SIOCSIFADDR and
// SIOCSIFNETMASK. Needs CAP_NET_ADMIN.
func installAddr(ifname string, p netip.Prefix) error {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return fmt.Errorf("socket: %w", err)
	}
	defer unix.Close(fd)

	a4 := p.Addr().As4()
	if err := setInet4(fd, ifname, unix.SIOCSIFADDR, a4[:]); err != nil {
		return fmt.Errorf("set address: %w", err)
	}
	mask := net.CIDRMask(p.Bits(), 32)
	if err := setInet4(fd, ifname, unix.SIOCSIFNETMASK, mask); err != nil {
		return fmt.Errorf("set netmask: %w", err)
	}
	return nil
}

func setInet4(fd int, ifname string, req uint, v []byte) error {
	ifr, err := unix.NewIfreq(ifname)
	if err != nil {
		return err
	}
	if err := ifr.SetInet4Addr(v); err != nil {
		return err
	}
	return unix.IoctlIfreq(fd, req, ifr)
}
