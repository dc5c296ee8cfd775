// -*- Mode: Go; indent-tabs-mode: t -*-
//
// SPDX-License-Identifier: Apache-2.0

// Package targeting implements section 4.2's apply_action: it
// expands one client-issued command into zero or more per-device
// actions, according to the command's target mode (none, all-implicit
// via PM_LOG_IN/PM_LOG_OUT, or hostlist-selective fan-out).
package targeting

import (
	"github.com/google/uuid"

	"github.com/powermand/engine/internal/action"
	"github.com/powermand/engine/internal/common"
	"github.com/powermand/engine/internal/device"
	"github.com/powermand/engine/internal/hostset"
)

// Request is a client's inbound command, prior to per-device
// expansion: the command code, the originating client/sequence for
// reply correlation, and (for everything but LOG_IN/LOG_OUT) a target
// host-list.
type Request struct {
	Command  common.Command
	ClientID string
	Seq      uint64
	Target   hostset.Set // nil for LOG_IN/LOG_OUT
}

// Devices is the minimal slice of the device registry apply_action
// needs: the full list of configured devices in declaration order.
// internal/registry.Registry satisfies this directly.
type Devices interface {
	All() []*device.Device
}

// Apply is section 4.2's apply_action. It returns the total
// number of per-device actions queued across all devices.
func Apply(devices Devices, req Request, lc common.LoggingClient) int {
	if lc == nil {
		lc = common.NopLoggingClient{}
	}

	total := 0
	for _, d := range devices.All() {
		if !d.LoggedInNow() && req.Command != common.PmLogIn {
			common.Logf(lc, "error", "device %s: rejecting %s, not logged in", d.Name, req.Command)
			continue
		}
		if _, ok := d.Protocol.ScriptFor(int(req.Command)); !ok {
			continue // unsupported command on this device model: silent skip
		}

		switch req.Command {
		case common.PmLogIn:
			d.EnqueueLogin()
			total++
		case common.PmLogOut:
			a := action.New(common.PmLogOut, req.ClientID, req.Seq)
			a.CorrelationID = uuid.New().String()
			d.Queue.PushBack(a)
			total++
		default:
			total += applySelectiveFanOut(d, req)
		}
	}
	return total
}

// applySelectiveFanOut is the per-device branch of section 4.2's
// "selective fan-out": it classifies each plug against the target
// host-list H and decides between one "all" action and one action per
// matched plug.
func applySelectiveFanOut(d *device.Device, req Request) int {
	allMatch := true
	anyMatch := false
	var pending []*action.Action

	for _, p := range d.Plugs {
		if !p.Bound() {
			allMatch = false
			continue
		}
		if req.Target != nil && req.Target.Contains(p.Node) {
			anyMatch = true
			a := action.New(req.Command, req.ClientID, req.Seq).WithPlugTarget(p.Name)
			a.CorrelationID = uuid.New().String()
			pending = append(pending, a)
		} else {
			allMatch = false
		}
	}

	switch {
	case allMatch:
		a := action.New(req.Command, req.ClientID, req.Seq).WithAllShorthand(d.AllShorthand)
		a.CorrelationID = uuid.New().String()
		d.Queue.PushBack(a)
		return 1
	case anyMatch:
		for _, a := range pending {
			d.Queue.PushBack(a)
		}
		return len(pending)
	default:
		return 0
	}
}
