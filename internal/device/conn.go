// -*- Mode: Go; indent-tabs-mode: t -*-
//
// SPDX-License-Identifier: Apache-2.0

package device

import "golang.org/x/sys/unix"

// Conn is the minimal non-blocking transport seam a Device drives.
// Both the raw TCP socket (tcpConn) and the serial port (serialConn)
// implement it so the rest of the engine (buffers, script interpreter,
// event loop) is transport-agnostic behind one conn abstraction.
type Conn interface {
	// Read performs one non-blocking read attempt. n==0, err==nil
	// means EOF (peer closed). A would-block condition is reported
	// via IsWouldBlock(err).
	Read(p []byte) (n int, err error)

	// Write performs one non-blocking write attempt.
	Write(p []byte) (n int, err error)

	Close() error

	// PollFD returns the descriptor the event loop should register
	// with unix.Poll, and whether this Conn exposes one at all
	// (serial ports opened via goburrow/serial do not on every
	// platform, so they fall back to a per-iteration poll attempt;
	// see internal/eventloop).
	PollFD() (fd int, pollable bool)
}

// IsWouldBlock reports whether err indicates "no data/space available
// right now, try again later" rather than a real failure.
func IsWouldBlock(err error) bool {
	return err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINPROGRESS || err == errWouldBlockSerial
}

// IsReset reports whether err indicates the peer tore down the
// connection (section 4.9: "EOF or ECONNRESET => disconnect").
func IsReset(err error) bool {
	return err == unix.ECONNRESET || err == unix.EPIPE || err == unix.ETIMEDOUT
}
