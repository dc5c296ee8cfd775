// -*- Mode: Go; indent-tabs-mode: t -*-
//
// SPDX-License-Identifier: Apache-2.0

// Package client is the external collaborator boundary named in
// section 6's "Upward interface to client layer": cli_reply
// and cli_errmsg. The client-facing socket protocol, authentication,
// and admin CLI are explicitly out of scope (section 1); this package
// only defines the seam internal/device calls through and a default
// implementation that logs completions, for use until a real
// client-protocol layer is wired in.
package client

import (
	"github.com/powermand/engine/internal/action"
	"github.com/powermand/engine/internal/common"
)

// Notifier delivers action completions to the client that issued them,
// keyed by (ClientID, Seq), matching section 6.
type Notifier interface {
	// Reply delivers a successful completion.
	Reply(a *action.Action)
	// ErrMsg delivers a failure with its error code.
	ErrMsg(a *action.Action, code common.ErrCode)
}

// LoggingNotifier is a Notifier that logs every completion instead of
// speaking a real client wire protocol. It is the engine's default
// until a socket-layer Notifier is wired in by the owning daemon.
type LoggingNotifier struct {
	Log common.LoggingClient
}

// NewLoggingNotifier builds a LoggingNotifier; lc may be nil, in which
// case completions are discarded.
func NewLoggingNotifier(lc common.LoggingClient) *LoggingNotifier {
	if lc == nil {
		lc = common.NopLoggingClient{}
	}
	return &LoggingNotifier{Log: lc}
}

func (n *LoggingNotifier) Reply(a *action.Action) {
	common.Logf(n.Log, "info", "client %s seq %d: %s ok", a.ClientID, a.Seq, a.Command)
}

func (n *LoggingNotifier) ErrMsg(a *action.Action, code common.ErrCode) {
	common.Logf(n.Log, "warn", "client %s seq %d: %s failed: %s", a.ClientID, a.Seq, a.Command, code)
}
