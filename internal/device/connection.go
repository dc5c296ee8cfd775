// -*- Mode: Go; indent-tabs-mode: t -*-
//
// SPDX-License-Identifier: Apache-2.0

package device

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/powermand/engine/internal/action"
	"github.com/powermand/engine/internal/bytebuffer"
	"github.com/powermand/engine/internal/common"
)

// Now is overridable in tests.
var Now = time.Now

// DisconnectReason names why a device went down, driving the
// reconnect_count reset-vs-increment rule from section 3/4.3. This
// replaces a pair of out-of-band boolean flags with one named enum.
type DisconnectReason int

const (
	ReasonExplicit      DisconnectReason = iota // clean disconnect requested through Disconnect()
	ReasonIOError                               // EOF/ECONNRESET on the data path (section 4.9)
	ReasonConnectFailed                         // finish_connect observed SO_ERROR != 0
	ReasonExpectTimeout                         // section 4.5's timeout path
)

// Reconnect is section 4.3's reconnect(device). It must only be
// called with ConnectStatus == NotConnected.
func (d *Device) Reconnect() error {
	if d.ConnectStatus != NotConnected {
		return errors.New("reconnect called while not NotConnected")
	}

	d.ReconnectCount++
	d.LastEventTime = Now()

	var c Conn
	var ready bool
	var err error

	switch d.Kind {
	case TransportTCP:
		c, ready, err = dialNonblockingTCP(d.TCP)
	case TransportSerial:
		var sc *serialConn
		sc, err = dialSerial(d.Serial)
		c, ready = sc, true
	}
	if err != nil {
		common.Logf(d.Log, "warn", "device %s: reconnect failed: %v", d.Name, err)
		return err
	}

	d.conn = c
	d.SendBuffer = bytebuffer.New(d.telemetryHook)
	d.RecvBuffer = bytebuffer.New(d.telemetryHook)

	if ready {
		return d.FinishConnect()
	}
	d.ConnectStatus = Connecting
	return nil
}

// FinishConnect is section 4.3's finish_connect(device).
func (d *Device) FinishConnect() error {
	if d.Kind == TransportTCP {
		tc, ok := d.conn.(*tcpConn)
		if ok {
			if err := finishTCPConnect(tc.fd); err != nil {
				common.Logf(d.Log, "warn", "device %s: connect failed: %v", d.Name, err)
				d.disconnect(ReasonConnectFailed)
				if d.timeToReconnect() {
					return d.Reconnect()
				}
				return nil
			}
		}
	}

	d.ConnectStatus = Connected
	common.Logf(d.Log, "info", "device %s: connected", d.Name)

	d.EnqueueLogin()
	return nil
}

// EnqueueLogin implements the PM_LOG_IN branch of section 4.2's
// apply_action: if a head action already exists its cursor is
// rewound so it restarts after login completes, then a fresh login
// action is prepended. Used both by finish_connect (synthesised
// login) and by internal/targeting for a client-issued LOG_IN.
func (d *Device) EnqueueLogin() *action.Action {
	if head := d.Queue.Head(); head != nil {
		head.Rewind()
	}
	login := action.New(common.PmLogIn, "", 0)
	login.CorrelationID = uuid.New().String()
	d.Queue.PushFront(login)
	return login
}

// Disconnect is section 4.3's disconnect(device): idempotent, because
// a second call observes ConnectStatus already NotConnected and is a
// no-op.
func (d *Device) Disconnect() {
	d.disconnect(ReasonExplicit)
}

func (d *Device) disconnect(reason DisconnectReason) {
	if d.ConnectStatus == NotConnected {
		return // idempotent
	}

	if d.conn != nil {
		_ = d.conn.Close()
		d.conn = nil
	}
	d.SendBuffer = nil
	d.RecvBuffer = nil
	d.ConnectStatus = NotConnected
	d.ScriptStatusSet = 0 // clears LoggedIn and Expecting/Sending/Delaying
	d.Queue.DropLoginHead()

	switch reason {
	case ReasonIOError, ReasonExpectTimeout:
		if reason == ReasonIOError || d.FastRetryAfterTimeout {
			d.ReconnectCount = 0
		}
	case ReasonConnectFailed, ReasonExplicit:
		// reconnect_count keeps incrementing across failed attempts
	}
	d.LastEventTime = Now()
}

// timeToReconnect is section 4.3's time_to_reconnect(device): true
// iff now >= last_event_time + R[min(k-1,6)].
func (d *Device) timeToReconnect() bool {
	remaining := d.backoffRemaining()
	return remaining <= 0
}

// backoffRemaining returns the duration until the next reconnect
// attempt is permitted; zero or negative means "permitted now".
// ReconnectCount == 0 (a fresh device, or one just reset by an
// IOError/timeout disconnect) always permits an immediate attempt --
// the backoff schedule only applies once a real retry has failed.
func (d *Device) backoffRemaining() time.Duration {
	if d.ReconnectCount == 0 {
		return 0
	}
	wait := time.Duration(common.BackoffSeconds(d.ReconnectCount)) * time.Second
	deadline := d.LastEventTime.Add(wait)
	return deadline.Sub(Now())
}

// BackoffRemaining exposes backoffRemaining to internal/eventloop,
// which folds it into the aggregate select timeout (section 4.10) for
// NotConnected devices whose backoff hasn't elapsed yet.
func (d *Device) BackoffRemaining() time.Duration {
	return d.backoffRemaining()
}

// telemetryHook is the Buffer telemetry callback (section 4.1),
// logging each send/recv the way the original C daemon's logging did.
func (d *Device) telemetryHook(dir bytebuffer.Direction, p []byte) {
	common.Logf(d.Log, "debug", "device %s: %s %q", d.Name, dir, string(p))
}
