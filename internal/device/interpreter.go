// -*- Mode: Go; indent-tabs-mode: t -*-
//
// SPDX-License-Identifier: Apache-2.0

package device

import (
	"time"

	"github.com/powermand/engine/internal/action"
	"github.com/powermand/engine/internal/common"
	"github.com/powermand/engine/internal/plug"
	"github.com/powermand/engine/internal/script"
)

// ProcessScript is section 4.4's process_script: it drains as much
// progress as possible out of the head-of-queue action, updating
// timeout (the caller's aggregate select deadline, section 4.10) along
// the way, and stops the moment a step stalls or the queue empties.
func (d *Device) ProcessScript(timeout *time.Duration) {
	for {
		a := d.Queue.Head()
		if a == nil {
			return
		}

		steps, _ := d.Protocol.ScriptFor(int(a.Command))
		if a.ScriptCursor < 0 {
			a.ScriptCursor = 0
		}
		if a.ScriptCursor >= len(steps) {
			// Empty or already-exhausted script: nothing to run,
			// finish immediately (section 4.4 step 4's "advancing the
			// cursor yields no next element" with no step taken).
			d.finishAction(a)
			continue
		}

		el := steps[a.ScriptCursor]
		var stalled bool
		switch el.Kind {
		case script.KindExpect:
			stalled = d.processExpect(a, el, timeout)
		case script.KindDelay:
			stalled = d.processDelay(a, el, timeout)
		case script.KindSend:
			d.processSend(a, el)
			stalled = false
		}

		if stalled {
			return
		}

		if a.Error != common.ErrCodeNone || a.ScriptCursor+1 >= len(steps) {
			d.finishAction(a)
			continue
		}
		a.ScriptCursor++
	}
}

// finishAction implements section 4.4 step 4's completion branch. The
// client notification happens exactly once, here, regardless of which
// step set a.Error -- process_expect's timeout path only records the
// error and lets this single call site speak to the client, modeling
// completion as one sum type rather than scattering out-of-band
// notifications.
func (d *Device) finishAction(a *action.Action) {
	if a.Command == common.PmLogIn {
		if a.Error == common.ErrCodeNone {
			d.ScriptStatusSet |= LoggedIn
		}
		// PM_LOG_IN never replies to the client (section 4.4 step 4).
	} else if a.Error != common.ErrCodeNone {
		d.Notifier.ErrMsg(a, a.Error)
	} else {
		d.Notifier.Reply(a)
	}
	if d.Queue.Head() == a {
		d.Queue.PopHead()
		return
	}
	// a's own step reconnected synchronously (processExpect's timeout
	// path) and EnqueueLogin pushed a login in front of it: remove a
	// from just behind that login and keep the login queued.
	login := d.Queue.Head()
	d.Queue.PopHead()
	d.Queue.PopHead()
	d.Queue.PushFront(login)
}

// processExpect is section 4.5's process_expect. Returns true iff the
// step stalled (no match yet, not timed out).
func (d *Device) processExpect(a *action.Action, el script.Element, timeout *time.Duration) bool {
	if !d.ScriptStatusSet.Has(Expecting) {
		d.ScriptStatusSet |= Expecting
		a.TimeStamp = Now()
	}

	if loc, ok := d.RecvBuffer.PeekRegexSubmatch(el.Regex); ok {
		if len(el.Interpretations) > 0 {
			d.doDeviceSemantics(a, el, loc)
		}
		d.RecvBuffer.Consume(loc[1] - loc[0])
		d.ScriptStatusSet &^= Expecting
		return false
	}

	elapsed := Now().Sub(a.TimeStamp)
	if elapsed >= d.PerCommandTimeout {
		a.Error = common.ErrCodeTimeout
		d.ScriptStatusSet &^= Expecting
		d.disconnect(ReasonExpectTimeout)
		if d.timeToReconnect() {
			_ = d.Reconnect()
		}
		return false
	}

	*timeout = common.UpdateTimeout(*timeout, d.PerCommandTimeout-elapsed)
	return true
}

// doDeviceSemantics is section 4.6's do_device_semantics, invoked only
// when the current command is a query and an interpretation matched.
// loc is the FindSubmatchIndex result from the triggering PeekRegex
// call: loc[2*g:2*g+2] gives the byte offsets of capture group g
// within d.RecvBuffer.Bytes().
//
// The C source null-terminates the captured token in place and
// restores the overwritten byte afterwards so its on/off regexes see
// a bounded C string; a Go byte slice is already bounded, so that
// restore step has no counterpart here.
func (d *Device) doDeviceSemantics(a *action.Action, el script.Element, loc []int) {
	data := d.RecvBuffer.Bytes()
	for _, interp := range el.Interpretations {
		lo := interp.CaptureIndex * 2
		if lo+1 >= len(loc) || loc[lo] < 0 {
			continue
		}
		start, end := loc[lo], loc[lo+1]

		if interp.PlugIndex < 0 || interp.PlugIndex >= len(d.Plugs) {
			continue
		}
		p := d.Plugs[interp.PlugIndex]
		if !p.Bound() {
			continue
		}

		trimEnd := end
		for i, b := range data[start:end] {
			if b == ' ' || b == '\t' || b == '\r' || b == '\n' {
				trimEnd = start + i
				break
			}
		}
		token := data[start:trimEnd]

		var state *plug.State
		switch a.Command {
		case common.PmUpdatePlugs:
			state = &p.PlugState
		case common.PmUpdateNodes:
			state = &p.NodeState
		default:
			continue
		}

		*state = plug.Unknown
		if d.OnRegex != nil && d.OnRegex.Match(token) {
			*state = plug.On
		}
		// Off takes precedence only because it runs last -- this
		// tie-break is part of the contract (section 4.6/9).
		if d.OffRegex != nil && d.OffRegex.Match(token) {
			*state = plug.Off
		}
	}
}

// processSend is section 4.7's process_send. It never stalls: bytes
// land in the send buffer and draining is the event loop's job
// (section 4.9's handle_write).
func (d *Device) processSend(a *action.Action, el script.Element) {
	d.SendBuffer.Printf(el.SendTemplate, a.TargetArg())
	d.ScriptStatusSet |= Sending
}

// processDelay is section 4.8's process_delay. Returns true iff the
// step stalled (duration not yet elapsed).
func (d *Device) processDelay(a *action.Action, el script.Element, timeout *time.Duration) bool {
	if !d.ScriptStatusSet.Has(Delaying) {
		a.TimeStamp = Now()
		d.ScriptStatusSet |= Delaying
	}

	elapsed := Now().Sub(a.TimeStamp)
	if elapsed >= el.Duration {
		d.ScriptStatusSet &^= Delaying
		return false
	}

	*timeout = common.UpdateTimeout(*timeout, el.Duration-elapsed)
	return true
}

// HandleRead is section 4.9's handle_read: drain the socket into the
// recv buffer. EOF or ECONNRESET disconnects and (per section 7's
// "data-path loss" rule) retries immediately when backoff allows.
func (d *Device) HandleRead() {
	if d.conn == nil {
		return
	}
	n, err := d.RecvBuffer.Read(d.conn)
	if err != nil {
		if IsWouldBlock(err) {
			return
		}
		if IsReset(err) {
			common.Logf(d.Log, "warn", "device %s: connection reset: %v", d.Name, err)
		}
		d.noteIOLoss()
		return
	}
	if n == 0 {
		d.noteIOLoss()
	}
}

// HandleWrite is section 4.9's handle_write: drain the send buffer to
// the socket, clearing Sending once it empties.
func (d *Device) HandleWrite() {
	if d.conn == nil {
		return
	}
	_, err := d.SendBuffer.Write(d.conn)
	if err != nil && !IsWouldBlock(err) {
		if IsReset(err) {
			common.Logf(d.Log, "warn", "device %s: connection reset: %v", d.Name, err)
		}
		d.noteIOLoss()
		return
	}
	if d.SendBuffer.IsEmpty() {
		d.ScriptStatusSet &^= Sending
	}
}

// noteIOLoss disconnects with ReasonIOError (which resets
// reconnect_count to 0) and attempts an immediate reconnect when
// backoff allows.
func (d *Device) noteIOLoss() {
	d.disconnect(ReasonIOError)
	if d.timeToReconnect() {
		_ = d.Reconnect()
	}
}
