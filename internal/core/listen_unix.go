//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package core

import (
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// listenConfig sets SO_REUSEADDR so a restarted server can bind while old
// sockets sit in TIME_WAIT, and SO_REUSEPORT when several processes share
// the port.
func listenConfig(reusePort bool) net.ListenConfig {
	return net.ListenConfig{
		Control: func(network, address string, rc syscall.RawConn) error {
			var sockErr error
			err := rc.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
				if sockErr == nil && reusePort {
					sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
				}
			})
			if err != nil {
				return err
			}
			return sockErr
		},
	}
}
