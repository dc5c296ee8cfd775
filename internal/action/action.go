// -*- Mode: Go; indent-tabs-mode: t -*-
//
// SPDX-License-Identifier: Apache-2.0

// Package action implements section 3's Action entity and the
// per-device FIFO queue it lives on. An Action may only ever exist on
// exactly one device's queue.
package action

import (
	"time"

	"github.com/powermand/engine/internal/common"
)

// TargetKind distinguishes the three target modes from section
// 4.2: none (LOG_IN/LOG_OUT), a concrete plug name, or a device's
// "all" shorthand token. Both PlugName and AllShorthand are carried
// as plain strings; Kind disambiguates "no target" from "target is
// the empty string" (which never legitimately occurs but is guarded
// against regardless).
type TargetKind int

const (
	TargetNone TargetKind = iota
	TargetPlug
	TargetAllShorthand
)

// Action is a single unit of work queued on a device.
type Action struct {
	Command Command

	TargetKind TargetKind
	TargetName string // plug name or the device's all_shorthand token

	// ClientID/Seq identify the originating client request for
	// cli_reply/cli_errmsg correlation (section 6).
	ClientID      string
	Seq           uint64
	CorrelationID string // uuid stamped at fan-out time

	// ScriptCursor indexes into the bound Script; -1 means
	// "not yet initialised" (section 4.4 step 2). It becomes
	// non-negative as soon as any step on this action has begun.
	ScriptCursor int

	// TimeStamp is stamped at the start of the current Expect/Delay
	// element (sections 4.5/4.8) and reused across Read() calls as
	// the reference point for timeout/expiry arithmetic.
	TimeStamp time.Time

	// Error records that the action's outcome is a client-visible
	// failure (currently always common.ErrCodeTimeout in normal
	// operation; see section 7).
	Error common.ErrCode
}

// Command is a local alias to avoid an import cycle between action
// and common beyond what's already used; kept distinct so call sites
// read as action.Command values.
type Command = common.Command

// New constructs an Action with an uninitialised script cursor, as
// section 4.4 step 2 requires ("If A.cursor is null, initialise to
// the first element").
func New(cmd Command, clientID string, seq uint64) *Action {
	return &Action{
		Command:      cmd,
		ClientID:     clientID,
		Seq:          seq,
		ScriptCursor: -1,
	}
}

// WithPlugTarget sets the action's target to a concrete plug name.
func (a *Action) WithPlugTarget(name string) *Action {
	a.TargetKind = TargetPlug
	a.TargetName = name
	return a
}

// WithAllShorthand sets the action's target to the device's "all"
// shorthand token.
func (a *Action) WithAllShorthand(token string) *Action {
	a.TargetKind = TargetAllShorthand
	a.TargetName = token
	return a
}

// TargetArg returns the *string to substitute into a Send template's
// single %s slot, or nil when the action carries no target (section
// 4.7: "If A.target is none, emit the template verbatim").
func (a *Action) TargetArg() *string {
	if a.TargetKind == TargetNone {
		return nil
	}
	name := a.TargetName
	return &name
}

// Rewind resets the script cursor to uninitialised, used when a
// PM_LOG_IN preempts the head action (section 4.2/9: "rewind its
// cursor so it restarts after login completes").
func (a *Action) Rewind() {
	a.ScriptCursor = -1
}

// Queue is a device's FIFO of pending actions; the head (index 0) is
// the single active action, per section 3's "only one action
// is active per device (queue head)".
type Queue struct {
	items []*Action
}

// Head returns the active action, or nil if the queue is empty.
func (q *Queue) Head() *Action {
	if len(q.items) == 0 {
		return nil
	}
	return q.items[0]
}

// Len reports the queue depth.
func (q *Queue) Len() int { return len(q.items) }

// PushBack appends an action to the tail (used by LOG_OUT and normal
// command fan-out).
func (q *Queue) PushBack(a *Action) {
	q.items = append(q.items, a)
}

// PushFront prepends an action, used exclusively by PM_LOG_IN
// preemption (section 4.2).
func (q *Queue) PushFront(a *Action) {
	q.items = append([]*Action{a}, q.items...)
}

// PopHead removes and discards the current head action, called when
// process_script finishes or aborts it (section 4.4 step 4).
func (q *Queue) PopHead() {
	if len(q.items) == 0 {
		return
	}
	q.items = q.items[1:]
}

// DropLoginHead removes the head action iff it is a PM_LOG_IN,
// used by disconnect (section 4.3: "drop any queued PM_LOG_IN at the
// head; it will be resynthesised on reconnect").
func (q *Queue) DropLoginHead() {
	h := q.Head()
	if h != nil && h.Command == common.PmLogIn {
		q.PopHead()
	}
}

// All returns the full backing slice for iteration (e.g. scheduler
// depth introspection). Callers must not mutate the returned slice.
func (q *Queue) All() []*Action { return q.items }
