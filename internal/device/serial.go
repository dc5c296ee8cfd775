// -*- Mode: Go; indent-tabs-mode: t -*-
//
// SPDX-License-Identifier: Apache-2.0

package device

import (
	"io"
	"time"

	"github.com/goburrow/serial"
	"github.com/pkg/errors"
)

// SerialEndpoint names a local serial port device, the "...extensible"
// device type alongside TCP-host-service from section 3
// (the ellipsis in section 3's device-type enumeration).
type SerialEndpoint struct {
	Address  string
	BaudRate int
	DataBits int
	StopBits int
	Parity   string
}

// pollInterval is the read deadline serialConn uses to emulate
// non-blocking reads: goburrow/serial ports are blocking-with-timeout
// rather than pollable file descriptors, so each Read call is given a
// short timeout and a timeout-with-zero-bytes is treated as
// would-block (see PollFD's false return and internal/eventloop's
// fallback poll for non-pollable conns).
const pollInterval = 5 * time.Millisecond

// serialConn wraps a goburrow/serial.Port to satisfy Conn.
type serialConn struct {
	port io.ReadWriteCloser
}

func dialSerial(ep SerialEndpoint) (*serialConn, error) {
	cfg := &serial.Config{
		Address:  ep.Address,
		BaudRate: ep.BaudRate,
		DataBits: ep.DataBits,
		StopBits: ep.StopBits,
		Parity:   ep.Parity,
		Timeout:  pollInterval,
	}
	port, err := serial.Open(cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "open serial port %q", ep.Address)
	}
	return &serialConn{port: port}, nil
}

func (c *serialConn) Read(p []byte) (int, error) {
	n, err := c.port.Read(p)
	if err != nil {
		if isSerialTimeout(err) {
			return 0, errWouldBlockSerial
		}
		return n, err
	}
	return n, nil
}

func (c *serialConn) Write(p []byte) (int, error) {
	return c.port.Write(p)
}

func (c *serialConn) Close() error {
	return c.port.Close()
}

// PollFD reports false: serial ports carry no descriptor this engine
// can hand to unix.Poll portably, so the event loop drives them via a
// direct per-iteration read/write attempt instead (see
// internal/eventloop).
func (c *serialConn) PollFD() (int, bool) {
	return 0, false
}

// errWouldBlockSerial is returned in place of a serial read timeout so
// IsWouldBlock's caller set stays uniform across transports; it is not
// a real errno so IsWouldBlock special-cases it directly.
var errWouldBlockSerial = errors.New("serial read timeout")

func isSerialTimeout(err error) bool {
	type timeouter interface{ Timeout() bool }
	if te, ok := err.(timeouter); ok {
		return te.Timeout()
	}
	return false
}
