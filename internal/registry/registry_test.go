package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/powermand/engine/internal/device"
	"github.com/powermand/engine/internal/script"
)

func newNamedDevice(name string) *device.Device {
	return device.New(name, device.TransportTCP, &script.Protocol{}, nil, nil, nil)
}

func TestAddAndByName(t *testing.T) {
	r := New()
	d0 := newNamedDevice("d0")
	require.NoError(t, r.Add(d0))

	assert.Same(t, d0, r.ByName("d0"))
	assert.Nil(t, r.ByName("missing"))
	assert.Equal(t, 1, r.Len())
}

func TestAddDuplicateNameFails(t *testing.T) {
	r := New()
	require.NoError(t, r.Add(newNamedDevice("d0")))
	err := r.Add(newNamedDevice("d0"))
	assert.Error(t, err)
	assert.Equal(t, 1, r.Len(), "failed add must not grow the registry")
}

func TestAllPreservesDeclarationOrder(t *testing.T) {
	r := New()
	names := []string{"c", "a", "b"}
	for _, n := range names {
		require.NoError(t, r.Add(newNamedDevice(n)))
	}

	all := r.All()
	require.Len(t, all, 3)
	for i, n := range names {
		assert.Equal(t, n, all[i].Name)
	}
}
