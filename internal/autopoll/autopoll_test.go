package autopoll

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/powermand/engine/internal/action"
	"github.com/powermand/engine/internal/common"
	"github.com/powermand/engine/internal/device"
	"github.com/powermand/engine/internal/plug"
	"github.com/powermand/engine/internal/script"
)

type nopNotifier struct{}

func (nopNotifier) Reply(*action.Action)                  {}
func (nopNotifier) ErrMsg(*action.Action, common.ErrCode) {}

type fakeEnqueuer struct {
	pending []func()
}

func (f *fakeEnqueuer) Enqueue(fn func()) { f.pending = append(f.pending, fn) }

func (f *fakeEnqueuer) run() {
	for _, fn := range f.pending {
		fn()
	}
	f.pending = nil
}

type deviceSlice []*device.Device

func (d deviceSlice) All() []*device.Device { return d }

func newLoggedInDevice(t *testing.T) *device.Device {
	t.Helper()
	proto := &script.Protocol{Scripts: map[int]script.Script{
		int(common.PmUpdatePlugs): {script.Send("GETSTATUS\r\n")},
	}}
	d := device.New("d0", device.TransportTCP, proto, plug.Table{{Name: "p1", Node: "n1"}}, nopNotifier{}, nil)
	d.ScriptStatusSet |= device.LoggedIn
	return d
}

// updateJob.Run must not touch the registry itself -- it only hands a
// closure to the Enqueuer, so cron's own goroutine never calls
// targeting.Apply directly.
func TestUpdateJobRunDoesNotMutateSynchronously(t *testing.T) {
	d := newLoggedInDevice(t)
	enq := &fakeEnqueuer{}
	p := New(common.NopLoggingClient{}, enq)

	require.NoError(t, p.SchedulePlugsUpdate("@every 1h", deviceSlice{d}))
	p.cr.Stop() // SchedulePlugsUpdate leaves the cron goroutine running; this test drives the job by hand

	job := &updateJob{cmd: common.PmUpdatePlugs, devices: deviceSlice{d}, log: common.NopLoggingClient{}, loop: enq}
	job.Run()

	assert.Equal(t, 0, d.Queue.Len(), "Run must defer the fan-out to the enqueued closure")
	require.Len(t, enq.pending, 1)

	enq.run()
	assert.Equal(t, 1, d.Queue.Len(), "the enqueued closure performs the actual fan-out")
}
