package proxy

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// ListenTCP opens a non-blocking IPv4 listening socket on port,
// applying SO_REUSEPORT when reusePort is true so that every
// accept-worker can bind the same address:port and let the kernel
// load-balance incoming connections across them (spec §5's
// address-sharing requirement). Falls back to a plain SO_REUSEADDR
// bind, matching original_source's "main thread accepts alone when
// the platform lacks SO_REUSEPORT" behavior, when reusePort is false.
//
// Returns the raw file descriptor; callers own it and must Close it
// themselves (typically by registering it with a reactor.Loop and
// closing it on shutdown).
func ListenTCP(port int, reusePort bool) (fd int, err error) {
	fd, err = unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		return -1, fmt.Errorf("proxy: socket: %w", err)
	}

	if err = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("proxy: SO_REUSEADDR: %w", err)
	}
	if reusePort {
		if err = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
			unix.Close(fd)
			return -1, fmt.Errorf("proxy: SO_REUSEPORT: %w", err)
		}
	}

	addr := &unix.SockaddrInet4{Port: port}
	if err = unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("proxy: bind :%d: %w", port, err)
	}
	if err = unix.Listen(fd, unix.SOMAXCONN); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("proxy: listen :%d: %w", port, err)
	}

	return fd, nil
}

// ApplyKeepAlive turns on TCP keepalive on an accepted connection fd
// with the given idle duration, matching the effect of teacher's
// KeepAliveListener but against a raw fd instead of a *net.TCPConn
// (the accept-worker never materializes one).
func ApplyKeepAlive(fd int, idle int) error {
	if idle <= 0 {
		return nil
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1); err != nil {
		return err
	}
	return unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPIDLE, idle)
}
