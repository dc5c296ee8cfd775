// -*- Mode: Go; indent-tabs-mode: t -*-
//
// SPDX-License-Identifier: Apache-2.0

// Package device implements section 3's Device entity and the
// bulk of section 4: connection management (4.3), the script
// interpreter (4.4-4.8), I/O handlers (4.9), and semantic dispatch
// (4.6). This is deliberately the largest package in the module,
// mirroring the ~30% implementation share the System Overview
// assigns to it.
package device

import (
	"regexp"
	"time"

	"github.com/powermand/engine/internal/action"
	"github.com/powermand/engine/internal/bytebuffer"
	"github.com/powermand/engine/internal/common"
	"github.com/powermand/engine/internal/plug"
	"github.com/powermand/engine/internal/script"
)

// ConnectStatus is section 3's connect_status.
type ConnectStatus int

const (
	NotConnected ConnectStatus = iota
	Connecting
	Connected
)

// ScriptStatus is the flag set from section 3: {LoggedIn, Expecting,
// Sending, Delaying}. It's a bitmask since LoggedIn persists across
// many actions while Expecting/Sending/Delaying are transient and
// mutually exclusive within one element's progression (section 3
// invariant).
type ScriptStatus uint8

const (
	LoggedIn ScriptStatus = 1 << iota
	Expecting
	Sending
	Delaying
)

func (s ScriptStatus) Has(f ScriptStatus) bool { return s&f != 0 }

// TransportKind distinguishes the device type variant from section 3:
// {TCP-host-service, ...extensible}.
type TransportKind int

const (
	TransportTCP TransportKind = iota
	TransportSerial
)

// Notifier is the upward interface to the client layer (section 6):
// cli_reply/cli_errmsg. Implemented elsewhere; the engine only
// depends on this boundary.
type Notifier interface {
	Reply(a *action.Action)
	ErrMsg(a *action.Action, code common.ErrCode)
}

// Device owns one appliance end to end: identity, connection
// lifecycle, buffers, action queue, and per-device classification
// regexes, exactly matching section 3's Device entity.
type Device struct {
	Name     string
	Kind     TransportKind
	TCP      Endpoint
	Serial   SerialEndpoint
	Protocol *script.Protocol
	Plugs    plug.Table

	AllShorthand      string
	OnRegexSource     string
	OffRegexSource    string
	OnRegex           *regexp.Regexp
	OffRegex          *regexp.Regexp
	PerCommandTimeout time.Duration

	// FastRetryAfterTimeout controls whether an expect timeout should
	// reset reconnect_count to 0 (fast-recovery, the documented
	// default) or preserve it (avoids thrashing a sick device).
	// Default true matches section 7's literal behaviour; operators
	// needing the safer variant flip it per device.
	FastRetryAfterTimeout bool

	ConnectStatus   ConnectStatus
	ScriptStatusSet ScriptStatus
	ReconnectCount  int
	LastEventTime   time.Time

	conn       Conn
	SendBuffer *bytebuffer.Buffer
	RecvBuffer *bytebuffer.Buffer
	Queue      action.Queue

	Notifier Notifier
	Log      common.LoggingClient
}

// Connected reports the fd==none iff NotConnected invariant (I1) by
// construction: conn is only ever non-nil while ConnectStatus !=
// NotConnected.
func (d *Device) Connected() bool { return d.ConnectStatus == Connected }

// LoggedInNow reports script_status.LoggedIn.
func (d *Device) LoggedInNow() bool { return d.ScriptStatusSet.Has(LoggedIn) }

// PollFD exposes the underlying transport's pollable descriptor, for
// section 4.10's pre_select. pollable is false while NotConnected or
// for transports (serial) that expose no descriptor the event loop
// can hand to a readiness multiplexer.
func (d *Device) PollFD() (fd int, pollable bool) {
	if d.conn == nil {
		return 0, false
	}
	return d.conn.PollFD()
}

// WantWrite reports whether section 4.10's pre_select should include
// this device in the write-interest set: "iff Connecting or Sending".
func (d *Device) WantWrite() bool {
	return d.ConnectStatus == Connecting || d.ScriptStatusSet.Has(Sending)
}

// QueueLen reports the device's pending-action count, used by
// internal/introspect's read-only status surface.
func (d *Device) QueueLen() int { return d.Queue.Len() }

// New constructs a Device in its initial NotConnected state. Buffers
// and fd are created on connect, not here, per section 3's Lifecycle
// ("Buffers created on connect, destroyed on connect-replace or
// device destruction").
func New(name string, kind TransportKind, proto *script.Protocol, plugs plug.Table, notifier Notifier, lc common.LoggingClient) *Device {
	if lc == nil {
		lc = common.NopLoggingClient{}
	}
	return &Device{
		Name:                  name,
		Kind:                  kind,
		Protocol:              proto,
		Plugs:                 plugs,
		ConnectStatus:         NotConnected,
		FastRetryAfterTimeout: true,
		Notifier:              notifier,
		Log:                   lc,
	}
}
