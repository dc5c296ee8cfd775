// -*- Mode: Go; indent-tabs-mode: t -*-
//
// SPDX-License-Identifier: Apache-2.0

// Package introspect exposes a read-only HTTP status surface over the
// device registry: GET /devices and GET /devices/{name}, reporting
// connect_status, logged_in, reconnect_count, and queue depth for
// operators. Of script_status only the LoggedIn flag is reported; the
// transient Expecting/Sending/Delaying flags are not. This is NOT the client-facing control protocol (section 1
// keeps that out of scope) -- purely a diagnostic view, the same shape
// as an EdgeX-style "/callback" endpoint, built on
// github.com/gorilla/mux.
//
// net/http serves each handler on its own goroutine, so reading device
// state directly here would race with the event loop's Step goroutine
// (section 5's single-threaded discipline). Every handler instead
// hands its read to the loop via Enqueuer and waits for the result on
// a response channel.
package introspect

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/powermand/engine/internal/device"
)

// Devices is the slice of the registry this surface reads.
type Devices interface {
	All() []*device.Device
	ByName(name string) *device.Device
}

// Enqueuer hands fn to the single goroutine allowed to touch device
// and registry state (internal/eventloop.Loop).
type Enqueuer interface {
	Enqueue(fn func())
}

// Status is the read-only view of one device served as JSON.
type Status struct {
	Name           string `json:"name"`
	ConnectStatus  string `json:"connect_status"`
	LoggedIn       bool   `json:"logged_in"`
	ReconnectCount int    `json:"reconnect_count"`
	QueueDepth     int    `json:"queue_depth"`
}

func statusOf(d *device.Device) Status {
	return Status{
		Name:           d.Name,
		ConnectStatus:  connectStatusString(d),
		LoggedIn:       d.LoggedInNow(),
		ReconnectCount: d.ReconnectCount,
		QueueDepth:     d.QueueLen(),
	}
}

func connectStatusString(d *device.Device) string {
	switch d.ConnectStatus {
	case device.Connected:
		return "connected"
	case device.Connecting:
		return "connecting"
	default:
		return "not_connected"
	}
}

// Register mounts the status routes onto r. Every handler reads
// device state only inside a closure run on loop's own goroutine.
func Register(r *mux.Router, devices Devices, loop Enqueuer) {
	r.HandleFunc("/devices", func(w http.ResponseWriter, req *http.Request) {
		resp := make(chan []Status, 1)
		loop.Enqueue(func() {
			all := devices.All()
			out := make([]Status, 0, len(all))
			for _, d := range all {
				out = append(out, statusOf(d))
			}
			resp <- out
		})
		writeJSON(w, <-resp)
	}).Methods(http.MethodGet)

	r.HandleFunc("/devices/{name}", func(w http.ResponseWriter, req *http.Request) {
		name := mux.Vars(req)["name"]
		resp := make(chan *Status, 1)
		loop.Enqueue(func() {
			d := devices.ByName(name)
			if d == nil {
				resp <- nil
				return
			}
			s := statusOf(d)
			resp <- &s
		})
		s := <-resp
		if s == nil {
			http.Error(w, "device not found", http.StatusNotFound)
			return
		}
		writeJSON(w, s)
	}).Methods(http.MethodGet)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
