// -*- Mode: Go; indent-tabs-mode: t -*-
//
// SPDX-License-Identifier: Apache-2.0

// Package autopoll generalizes an EdgeX-style cron scheduler
// (gopkg.in/robfig/cron.v2, EdgeX "autoevents" schedule-event manager)
// from periodic telemetry-reading schedules to periodic power-state
// polling: a cron-scheduled fan-out of PM_UPDATE_PLUGS and
// PM_UPDATE_NODES across the whole fleet, so plug_state/node_state
// stay fresh between client-driven queries instead of only updating
// when a client happens to ask.
package autopoll

import (
	cron "gopkg.in/robfig/cron.v2"

	"github.com/powermand/engine/internal/common"
	"github.com/powermand/engine/internal/hostset"
	"github.com/powermand/engine/internal/targeting"
)

// Enqueuer hands fn to the single goroutine allowed to touch device
// and registry state (internal/eventloop.Loop). cron.Cron runs each
// job on its own goroutine, so a tick can never call targeting.Apply
// directly -- it must go through this seam instead.
type Enqueuer interface {
	Enqueue(fn func())
}

// Poller owns one cron.Cron instance, matching the prior
// scheduler.manager pattern but as a value the caller owns instead of
// a package-level global guarded by sync.Once (section 9's
// "no thread-local or hidden globals" guidance applies here too).
type Poller struct {
	cr      *cron.Cron
	entries map[string]cron.EntryID
	log     common.LoggingClient
	loop    Enqueuer
}

// New builds a stopped Poller. Every scheduled job runs through loop,
// never directly on cron's own goroutine.
func New(lc common.LoggingClient, loop Enqueuer) *Poller {
	if lc == nil {
		lc = common.NopLoggingClient{}
	}
	return &Poller{cr: cron.New(), entries: make(map[string]cron.EntryID), log: lc, loop: loop}
}

// Start begins running scheduled jobs.
func (p *Poller) Start() { p.cr.Start() }

// Stop halts the scheduler.
func (p *Poller) Stop() {
	p.cr.Stop()
	common.Logf(p.log, "info", "autopoll: stopped")
}

// updateJob is the cron.Job invoked on each tick. Run fires on cron's
// own goroutine, so it only ever hands the actual fan-out work to the
// event loop via Enqueue; it never calls targeting.Apply itself.
type updateJob struct {
	cmd     common.Command
	devices targeting.Devices
	log     common.LoggingClient
	loop    Enqueuer
}

func (j *updateJob) Run() {
	j.loop.Enqueue(func() {
		n := targeting.Apply(j.devices, targeting.Request{Command: j.cmd, Target: hostset.All{}}, j.log)
		common.Logf(j.log, "debug", "autopoll: %s fanned out to %d actions", j.cmd, n)
	})
}

// SchedulePlugsUpdate registers a recurring PM_UPDATE_PLUGS fan-out at
// the given cron spec (e.g. "@every 30s").
func (p *Poller) SchedulePlugsUpdate(spec string, devices targeting.Devices) error {
	return p.schedule("plugs", spec, &updateJob{cmd: common.PmUpdatePlugs, devices: devices, log: p.log, loop: p.loop})
}

// ScheduleNodesUpdate registers a recurring PM_UPDATE_NODES fan-out.
func (p *Poller) ScheduleNodesUpdate(spec string, devices targeting.Devices) error {
	return p.schedule("nodes", spec, &updateJob{cmd: common.PmUpdateNodes, devices: devices, log: p.log, loop: p.loop})
}

func (p *Poller) schedule(name, spec string, job cron.Job) error {
	p.cr.Stop()
	defer p.cr.Start()

	if _, exists := p.entries[name]; exists {
		return nil
	}
	entry, err := p.cr.AddJob(spec, job)
	if err != nil {
		return err
	}
	p.entries[name] = entry
	common.Logf(p.log, "info", "autopoll: scheduled %s at %q", name, spec)
	return nil
}
