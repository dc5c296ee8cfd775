// -*- Mode: Go; indent-tabs-mode: t -*-
//
// SPDX-License-Identifier: Apache-2.0

// Package script implements section 3's Script Model: an
// immutable, in-memory representation of per-command scripts as
// ordered sequences of Send/Expect/Delay elements, plus the
// Interpretation mapping used by semantic dispatch (section 4.6).
package script

import (
	"regexp"
	"time"
)

// ElementKind tags the variant an Element holds. Re-architecture
// guidance (section 9) calls for one tagged union dispatched by
// exhaustive match rather than an interface per element kind, since
// elements are cloned by value and never extended at runtime.
type ElementKind int

const (
	KindSend ElementKind = iota
	KindExpect
	KindDelay
)

// Interpretation maps one regex capture group from an Expect element
// to a plug or node state slot. CaptureIndex is the regexp capture
// group index (1-based, matching regexp.Regexp submatch indexing).
// PlugIndex identifies which plug in the owning device's plug table
// the captured value updates; a value of -1 means "resolve via the
// action's own target plug" is not used here — interpretations always
// name a concrete plug index, matching section 4.6's "for each
// Interpretation whose plug is bound to a node".
type Interpretation struct {
	CaptureIndex int
	PlugIndex    int
}

// Element is one step of a Script: exactly one of the three payload
// fields is meaningful, selected by Kind.
type Element struct {
	Kind ElementKind

	// Send
	SendTemplate string // at most one %s slot, validated at config load

	// Expect
	Regex           *regexp.Regexp
	RegexSource     string // kept for diagnostics/logging
	Interpretations []Interpretation

	// Delay
	Duration time.Duration
}

// Send builds a Send element.
func Send(template string) Element {
	return Element{Kind: KindSend, SendTemplate: template}
}

// Expect builds an Expect element with no interpretation.
func Expect(re *regexp.Regexp, source string) Element {
	return Element{Kind: KindExpect, Regex: re, RegexSource: source}
}

// ExpectWithInterpretation builds an Expect element carrying a
// capture-to-state mapping, used for PM_UPDATE_PLUGS/PM_UPDATE_NODES.
func ExpectWithInterpretation(re *regexp.Regexp, source string, interp []Interpretation) Element {
	return Element{Kind: KindExpect, Regex: re, RegexSource: source, Interpretations: interp}
}

// Delay builds a Delay element.
func Delay(d time.Duration) Element {
	return Element{Kind: KindDelay, Duration: d}
}

// Script is an ordered, immutable sequence of elements implementing
// one command on one device model.
type Script []Element

// Protocol is a shared-immutable map from command code to an optional
// Script; absent entries mean "command silently unsupported on this
// device" per section 6. Protocol values are shared across
// every Device constructed from the same device model (section 3
// Lifecycle).
type Protocol struct {
	Name    string
	Scripts map[int]Script // keyed by common.Command, avoiding an import cycle
}

// ScriptFor returns the script bound to command c and whether one
// exists.
func (p *Protocol) ScriptFor(c int) (Script, bool) {
	if p == nil {
		return nil, false
	}
	s, ok := p.Scripts[c]
	return s, ok
}
