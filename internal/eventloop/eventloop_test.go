package eventloop

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/powermand/engine/internal/device"
)

type stubDevices struct{}

func (stubDevices) All() []*device.Device { return nil }

// Enqueue is the only seam autopoll's cron goroutine and introspect's
// HTTP goroutines may use to touch device/registry state; drainRequests
// is what Step calls to run those closures on its own goroutine.
func TestEnqueueRunsOnDrain(t *testing.T) {
	l := New(stubDevices{}, nil)
	ran := false
	l.Enqueue(func() { ran = true })

	assert.False(t, ran, "Enqueue alone must not run fn synchronously")
	l.drainRequests()
	assert.True(t, ran)
}

func TestDrainRequestsRunsQueuedWorkInOrder(t *testing.T) {
	l := New(stubDevices{}, nil)
	var order []int
	for i := 0; i < 3; i++ {
		i := i
		l.Enqueue(func() { order = append(order, i) })
	}

	l.drainRequests()
	assert.Equal(t, []int{0, 1, 2}, order)
}

func TestDrainRequestsIsANoOpWhenQueueEmpty(t *testing.T) {
	l := New(stubDevices{}, nil)
	assert.NotPanics(t, func() { l.drainRequests() })
}

// A request enqueued concurrently from another goroutine (the shape
// autopoll and introspect use) is still picked up by drainRequests.
func TestEnqueueFromAnotherGoroutine(t *testing.T) {
	l := New(stubDevices{}, nil)
	enqueued := make(chan struct{})
	ran := false
	go func() {
		l.Enqueue(func() { ran = true })
		close(enqueued)
	}()

	<-enqueued
	l.drainRequests()
	assert.True(t, ran)
}
