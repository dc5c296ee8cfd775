// -*- Mode: Go; indent-tabs-mode: t -*-
//
// SPDX-License-Identifier: Apache-2.0

package common

import "github.com/pkg/errors"

// Sentinel errors surfaced by the engine. Callers compare with
// errors.Cause(err) == ErrXxx since every layer wraps with
// github.com/pkg/errors for context.
var (
	ErrNotConnected       = errors.New("device not connected")
	ErrUnsupportedCommand = errors.New("command unsupported for device")
	ErrNotLoggedIn        = errors.New("device not logged in")
	ErrNoTarget           = errors.New("command requires a target")
	ErrBufferFull         = errors.New("byte buffer at capacity")
	ErrNoMatch            = errors.New("no regex match at buffer head")
)

// ErrCode is the taxonomy of failure codes delivered to clients via
// cli_errmsg (section 6/7). Only ErrTimeout is reachable in normal
// operation for non-login actions; the others exist for completeness
// and for login-path failures.
type ErrCode int

const (
	ErrCodeNone ErrCode = iota
	ErrCodeTimeout
	ErrCodeUnsupported
	ErrCodeNotLoggedIn
	ErrCodeDisconnected
)

func (c ErrCode) String() string {
	switch c {
	case ErrCodeTimeout:
		return "ERR_TIMEOUT"
	case ErrCodeUnsupported:
		return "ERR_UNSUPPORTED"
	case ErrCodeNotLoggedIn:
		return "ERR_NOT_LOGGED_IN"
	case ErrCodeDisconnected:
		return "ERR_DISCONNECTED"
	default:
		return "ERR_NONE"
	}
}
