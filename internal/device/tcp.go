// -*- Mode: Go; indent-tabs-mode: t -*-
//
// SPDX-License-Identifier: Apache-2.0

package device

import (
	"net"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Endpoint is a TCP (host, service) pair, per section 3's
// Device.endpoint for the TCP-host-service device type.
type Endpoint struct {
	Host    string
	Service string // port name or numeric string
}

// tcpConn is a raw, non-blocking stream socket. It is built directly
// on golang.org/x/sys/unix rather than net.Conn because the engine
// needs the underlying file descriptor for unix.Poll readiness
// multiplexing (section 4.10) and explicit control over connect's
// EINPROGRESS/SO_ERROR handshake (section 4.3), neither of which
// net.Conn exposes.
type tcpConn struct {
	fd int
}

// dialNonblockingTCP resolves ep via DNS, opens a non-blocking stream
// socket, sets SO_REUSEADDR, and issues connect(). If connect returns
// immediately (loopback, cached route) ready is true and the caller
// should proceed straight to finishConnect; otherwise the connect is
// in flight and the caller must wait for writability.
func dialNonblockingTCP(ep Endpoint) (c *tcpConn, ready bool, err error) {
	port, err := net.LookupPort("tcp", ep.Service)
	if err != nil {
		return nil, false, errors.Wrapf(err, "resolve service %q", ep.Service)
	}

	ipAddr, err := net.ResolveIPAddr("ip", ep.Host)
	if err != nil {
		return nil, false, errors.Wrapf(err, "resolve host %q", ep.Host)
	}

	domain := unix.AF_INET
	if ipAddr.IP.To4() == nil {
		domain = unix.AF_INET6
	}

	fd, err := unix.Socket(domain, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return nil, false, errors.Wrap(err, "socket")
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, false, errors.Wrap(err, "setsockopt SO_REUSEADDR")
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, false, errors.Wrap(err, "set nonblocking")
	}

	var sa unix.Sockaddr
	if domain == unix.AF_INET {
		var addr [4]byte
		copy(addr[:], ipAddr.IP.To4())
		sa = &unix.SockaddrInet4{Port: port, Addr: addr}
	} else {
		var addr [16]byte
		copy(addr[:], ipAddr.IP.To16())
		sa = &unix.SockaddrInet6{Port: port, Addr: addr}
	}

	err = unix.Connect(fd, sa)
	c = &tcpConn{fd: fd}
	if err == nil {
		return c, true, nil
	}
	if err == unix.EINPROGRESS {
		return c, false, nil
	}
	unix.Close(fd)
	return nil, false, errors.Wrap(err, "connect")
}

// finishTCPConnect reads SO_ERROR off the socket once the event loop
// observes writability, per section 4.3's finish_connect. A zero
// value means the connect succeeded.
func finishTCPConnect(fd int) error {
	val, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		// Some getsockopt implementations signal failure via the
		// syscall error itself rather than a populated SO_ERROR value.
		return errors.Wrap(err, "getsockopt SO_ERROR")
	}
	if val != 0 {
		return errors.Wrap(unix.Errno(val), "connect failed")
	}
	return nil
}

func (c *tcpConn) Read(p []byte) (int, error) {
	n, err := unix.Read(c.fd, p)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (c *tcpConn) Write(p []byte) (int, error) {
	n, err := unix.Write(c.fd, p)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (c *tcpConn) Close() error {
	return unix.Close(c.fd)
}

func (c *tcpConn) PollFD() (int, bool) {
	return c.fd, true
}
