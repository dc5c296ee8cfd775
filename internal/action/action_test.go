package action

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/powermand/engine/internal/common"
)

func TestQueueHeadFIFOOrder(t *testing.T) {
	var q Queue
	assert.Nil(t, q.Head())

	a1 := New(common.PmPowerOn, "c1", 1)
	a2 := New(common.PmPowerOff, "c1", 2)
	q.PushBack(a1)
	q.PushBack(a2)

	require.Equal(t, a1, q.Head())
	assert.Equal(t, 2, q.Len())

	q.PopHead()
	require.Equal(t, a2, q.Head())
	assert.Equal(t, 1, q.Len())
}

func TestQueuePushFrontPreemptsHead(t *testing.T) {
	var q Queue
	powerOff := New(common.PmPowerOff, "c1", 1)
	q.PushBack(powerOff)

	login := New(common.PmLogIn, "", 0)
	q.PushFront(login)

	assert.Equal(t, login, q.Head())
	assert.Equal(t, 2, q.Len())
}

func TestDropLoginHeadOnlyDropsLogin(t *testing.T) {
	var q Queue
	powerOff := New(common.PmPowerOff, "c1", 1)
	q.PushBack(powerOff)
	q.DropLoginHead()
	assert.Equal(t, powerOff, q.Head(), "non-login head must survive DropLoginHead")

	login := New(common.PmLogIn, "", 0)
	q.PushFront(login)
	q.DropLoginHead()
	assert.Equal(t, powerOff, q.Head(), "login head must be dropped, exposing the preempted action")
}

func TestRewindResetsCursor(t *testing.T) {
	a := New(common.PmPowerOff, "c1", 1)
	a.ScriptCursor = 1
	a.Rewind()
	assert.Equal(t, -1, a.ScriptCursor)
}

func TestTargetArg(t *testing.T) {
	a := New(common.PmPowerOn, "c1", 1)
	assert.Nil(t, a.TargetArg(), "no target means nil substitution arg")

	a.WithPlugTarget("p1")
	require.NotNil(t, a.TargetArg())
	assert.Equal(t, "p1", *a.TargetArg())

	a.WithAllShorthand("ALL")
	require.NotNil(t, a.TargetArg())
	assert.Equal(t, "ALL", *a.TargetArg())
}

func TestNewActionHasUninitialisedCursor(t *testing.T) {
	a := New(common.PmPowerOn, "c1", 1)
	assert.Equal(t, -1, a.ScriptCursor, "cursor starts null until a step begins")
}
