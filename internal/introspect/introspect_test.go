package introspect

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"

	"github.com/powermand/engine/internal/action"
	"github.com/powermand/engine/internal/common"
	"github.com/powermand/engine/internal/device"
	"github.com/powermand/engine/internal/script"
)

type nopNotifier struct{}

func (nopNotifier) Reply(*action.Action)                  {}
func (nopNotifier) ErrMsg(*action.Action, common.ErrCode) {}

type fakeRegistry struct {
	devices []*device.Device
}

func (f *fakeRegistry) All() []*device.Device { return f.devices }
func (f *fakeRegistry) ByName(name string) *device.Device {
	for _, d := range f.devices {
		if d.Name == name {
			return d
		}
	}
	return nil
}

// syncEnqueuer runs fn immediately on the calling goroutine, standing
// in for the loop goroutine in tests that don't need real concurrency.
type syncEnqueuer struct{}

func (syncEnqueuer) Enqueue(fn func()) { fn() }

func newTestDevice(name string) *device.Device {
	d := device.New(name, device.TransportTCP, &script.Protocol{}, nil, nopNotifier{}, nil)
	d.ConnectStatus = device.Connected
	d.ScriptStatusSet |= device.LoggedIn
	return d
}

func TestRegisterListsDevices(t *testing.T) {
	reg := &fakeRegistry{devices: []*device.Device{newTestDevice("d0")}}
	r := mux.NewRouter()
	Register(r, reg, syncEnqueuer{})

	req := httptest.NewRequest(http.MethodGet, "/devices", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"d0"`)
	assert.Contains(t, rec.Body.String(), `"connect_status":"connected"`)
}

func TestRegisterDeviceNotFound(t *testing.T) {
	reg := &fakeRegistry{}
	r := mux.NewRouter()
	Register(r, reg, syncEnqueuer{})

	req := httptest.NewRequest(http.MethodGet, "/devices/missing", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// Handlers must route every read through Enqueue rather than calling
// devices.All()/ByName directly on the HTTP goroutine.
func TestRegisterRoutesReadsThroughEnqueuer(t *testing.T) {
	reg := &fakeRegistry{devices: []*device.Device{newTestDevice("d0")}}
	calls := 0
	counting := enqueuerFunc(func(fn func()) {
		calls++
		fn()
	})

	r := mux.NewRouter()
	Register(r, reg, counting)

	req := httptest.NewRequest(http.MethodGet, "/devices", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, calls, "the handler's only read must go through Enqueue")
}

type enqueuerFunc func(fn func())

func (f enqueuerFunc) Enqueue(fn func()) { f(fn) }
