// -*- Mode: Go; indent-tabs-mode: t -*-
//
// SPDX-License-Identifier: Apache-2.0

// Package eventloop implements section 4.10's Event-Loop
// Adapter: it publishes read/write readiness interest per device to
// golang.org/x/sys/unix's Poll, consumes post-readiness callbacks,
// applies reconnect backoff, and computes the aggregate timeout the
// next poll should block for.
//
// This is the one piece of this engine that is inescapably OS-level
// (section 1 calls out "event-loop integration" as core, in-scope
// work, unlike the client socket protocol). golang.org/x/sys/unix is
// used directly, the same tier of dependency the rest of the example
// pack reaches for when it needs real syscalls rather than net.Conn's
// higher-level blocking model.
package eventloop

import (
	"time"

	"golang.org/x/sys/unix"

	"github.com/powermand/engine/internal/common"
	"github.com/powermand/engine/internal/device"
)

// defaultPollTimeout bounds how long one Step blocks when no device
// has a pending deadline, so newly queued actions (arriving from
// outside this goroutine) and newly registered devices are still
// noticed promptly.
const defaultPollTimeout = time.Second

// requestQueueSize bounds how many pending cross-goroutine requests
// (autopoll ticks, introspect reads) Enqueue will buffer before it
// blocks the calling goroutine.
const requestQueueSize = 64

// Devices is the slice of the registry the loop iterates every Step.
type Devices interface {
	All() []*device.Device
}

// Loop drives every device's connection lifecycle, I/O, and script
// interpreter through repeated calls to Step, single-threaded and
// cooperative per section 5: "single-threaded cooperative... no locks
// are required because the discipline is single-threaded." Devices,
// the registry, and action queues are only ever touched from the Step
// goroutine; every other goroutine (autopoll's cron ticks, introspect's
// HTTP handlers) must go through Enqueue instead of calling into them
// directly.
type Loop struct {
	Devices Devices
	Log     common.LoggingClient

	requests chan func()
}

// New builds a Loop. lc may be nil.
func New(devices Devices, lc common.LoggingClient) *Loop {
	if lc == nil {
		lc = common.NopLoggingClient{}
	}
	return &Loop{Devices: devices, Log: lc, requests: make(chan func(), requestQueueSize)}
}

// Enqueue schedules fn to run on the Step goroutine, before the next
// iteration's reconnect/poll/script work. It is the one synchronization
// point any goroutine other than the loop's own must use to read or
// mutate device/registry state; fn itself runs without further
// locking, the same way Step's own per-device work does. Enqueue may
// be called concurrently from any number of goroutines; it only
// blocks if the request queue is full.
func (l *Loop) Enqueue(fn func()) {
	l.requests <- fn
}

// drainRequests runs every request queued since the last Step,
// synchronously and in order, before this iteration touches any
// device.
func (l *Loop) drainRequests() {
	for {
		select {
		case fn := <-l.requests:
			fn()
		default:
			return
		}
	}
}

// Step runs one iteration: draining queued cross-goroutine requests,
// reconnect attempts, a single poll syscall, post-readiness dispatch,
// and script-interpreter progress, returning the aggregate timeout
// computed during this iteration (never negative; zero means no
// deadline was proposed). Step itself already waits for up to that
// deadline in poll or sleep, so callers can call it again right away.
func (l *Loop) Step() time.Duration {
	l.drainRequests()

	var timeout time.Duration // section 4.10's shared out-parameter; zero == unset

	devices := l.Devices.All()
	pollFDs := make([]unix.PollFd, 0, len(devices))
	fdOwner := make(map[int]*device.Device, len(devices))
	var unpollable []*device.Device

	for _, d := range devices {
		l.preConnect(d, &timeout)

		fd, pollable := d.PollFD()
		switch {
		case d.ConnectStatus == device.NotConnected:
			// no descriptor to poll; preConnect already accounted for
			// the backoff deadline above.
		case pollable:
			var events int16 = unix.POLLIN
			if d.WantWrite() {
				events |= unix.POLLOUT
			}
			pollFDs = append(pollFDs, unix.PollFd{Fd: int32(fd), Events: events})
			fdOwner[fd] = d
		default:
			// Connected/Connecting but the transport (serial) exposes
			// no descriptor: drive it unconditionally every Step
			// instead of waiting on poll for it.
			unpollable = append(unpollable, d)
		}
	}

	switch {
	case len(pollFDs) > 0:
		pollTimeoutMs := pollTimeoutMillis(timeout)
		n, err := unix.Poll(pollFDs, pollTimeoutMs)
		if err != nil && err != unix.EINTR {
			common.Logf(l.Log, "error", "poll: %v", err)
		}
		if n > 0 {
			for _, pfd := range pollFDs {
				d := fdOwner[int(pfd.Fd)]
				// POLLHUP/POLLERR are folded into "readable" so a
				// peer-closed socket surfaces through HandleRead's
				// EOF path, matching pre_select's rationale for
				// always including the fd in rset.
				readable := pfd.Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0
				writable := pfd.Revents&unix.POLLOUT != 0
				l.postReady(d, readable, writable)
			}
		}
	case len(unpollable) == 0:
		// Nothing pollable and nothing to drive unconditionally: this
		// Step paces itself on the aggregate timeout (the caller is
		// not expected to sleep again on the return value) so an
		// all-NotConnected fleet waiting out backoff doesn't busy-spin.
		time.Sleep(sleepDuration(timeout))
	}

	for _, d := range unpollable {
		l.postReady(d, true, true)
	}

	for _, d := range devices {
		d.ProcessScript(&timeout)
	}

	return timeout
}

// preConnect is post_select step 1 from section 4.10: attempt a
// reconnect for any NotConnected device whose backoff has elapsed,
// folding the remaining backoff into timeout otherwise.
func (l *Loop) preConnect(d *device.Device, timeout *time.Duration) {
	if d.ConnectStatus != device.NotConnected {
		return
	}
	if remaining := d.BackoffRemaining(); remaining > 0 {
		*timeout = common.UpdateTimeout(*timeout, remaining)
		return
	}
	if err := d.Reconnect(); err != nil {
		common.Logf(l.Log, "warn", "device %s: reconnect: %v", d.Name, err)
	}
}

// postReady is post_select steps 2-4: finish an in-flight connect,
// then run the read/write handlers readiness indicates.
func (l *Loop) postReady(d *device.Device, readable, writable bool) {
	if d.ConnectStatus == device.Connecting && (readable || writable) {
		if err := d.FinishConnect(); err != nil {
			common.Logf(l.Log, "warn", "device %s: finish connect: %v", d.Name, err)
		}
	}
	if d.ConnectStatus != device.Connected {
		return
	}
	if readable {
		d.HandleRead()
	}
	if writable {
		d.HandleWrite()
	}
}

// sleepDuration substitutes defaultPollTimeout when the aggregate
// timeout is unset, mirroring pollTimeoutMillis but for the no-fd
// case where there is no poll syscall to carry the wait.
func sleepDuration(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return defaultPollTimeout
	}
	return timeout
}

// pollTimeoutMillis converts the aggregate timeout into the
// millisecond argument unix.Poll expects, substituting
// defaultPollTimeout when nothing has proposed a deadline yet.
func pollTimeoutMillis(timeout time.Duration) int {
	if timeout <= 0 {
		timeout = defaultPollTimeout
	}
	ms := timeout.Milliseconds()
	if ms <= 0 {
		return 1
	}
	if ms > int64(^uint32(0)>>1) {
		return int(^uint32(0) >> 1)
	}
	return int(ms)
}
