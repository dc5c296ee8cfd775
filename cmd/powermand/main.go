// -*- Mode: Go; indent-tabs-mode: t -*-
//
// SPDX-License-Identifier: Apache-2.0

// Command powermand wires the device-driver engine together: it loads
// the device/protocol configuration, starts the read-only introspection
// HTTP surface and the autopoll scheduler, and drives the cooperative
// event loop until a termination signal arrives. Daemonization, process
// bookkeeping, and the real client-facing control protocol are out of
// scope per section 1; this is the minimal wiring a real
// daemon would sit on top of.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"

	"github.com/powermand/engine/internal/autopoll"
	"github.com/powermand/engine/internal/client"
	"github.com/powermand/engine/internal/common"
	"github.com/powermand/engine/internal/config"
	"github.com/powermand/engine/internal/eventloop"
	"github.com/powermand/engine/internal/introspect"
)

func main() {
	configPath := flag.String("config", "powermand.toml", "path to the device/protocol TOML config")
	httpAddr := flag.String("http", ":9191", "address for the read-only introspection HTTP surface")
	plugsPollSpec := flag.String("poll-plugs", "@every 1m", "cron spec for periodic PM_UPDATE_PLUGS fan-out")
	nodesPollSpec := flag.String("poll-nodes", "@every 1m", "cron spec for periodic PM_UPDATE_NODES fan-out")
	flag.Parse()

	lc := common.NewLoggingClient("powermand")

	reg, err := config.Load(*configPath, client.NewLoggingNotifier(lc), lc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "powermand: load config: %v\n", err)
		os.Exit(1)
	}
	common.Logf(lc, "info", "loaded %d devices from %s", reg.Len(), *configPath)

	// loop is the single goroutine allowed to touch reg/device state
	// (section 5). autopoll's cron jobs and introspect's HTTP handlers
	// both go through loop.Enqueue rather than reading/mutating it
	// directly from their own goroutines.
	loop := eventloop.New(reg, lc)

	r := mux.NewRouter()
	introspect.Register(r, reg, loop)
	httpSrv := &http.Server{Addr: *httpAddr, Handler: r}
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			common.Logf(lc, "error", "introspection http server: %v", err)
		}
	}()

	poller := autopoll.New(lc, loop)
	if err := poller.SchedulePlugsUpdate(*plugsPollSpec, reg); err != nil {
		common.Logf(lc, "error", "schedule plugs poll: %v", err)
	}
	if err := poller.ScheduleNodesUpdate(*nodesPollSpec, reg); err != nil {
		common.Logf(lc, "error", "schedule nodes poll: %v", err)
	}
	poller.Start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	stop := make(chan struct{})
	go func() {
		<-sigCh
		close(stop)
	}()

	common.Logf(lc, "info", "powermand: running")
	for {
		select {
		case <-stop:
			common.Logf(lc, "info", "powermand: shutting down")
			poller.Stop()
			_ = httpSrv.Close()
			return
		default:
		}
		// Step paces itself: it blocks in the underlying poll syscall
		// (or an internal sleep when there's nothing to poll) for up
		// to the aggregate deadline, so this loop never busy-spins.
		loop.Step()
	}
}
