package plug

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBound(t *testing.T) {
	bound := &Plug{Name: "p1", Node: "n1"}
	unbound := &Plug{Name: "p2"}
	assert.True(t, bound.Bound())
	assert.False(t, unbound.Bound())
}

func TestTableIndexOfNode(t *testing.T) {
	table := Table{
		{Name: "p1", Node: "n1"},
		{Name: "p2", Node: "n2"},
		{Name: "p3"},
	}
	assert.Equal(t, 1, table.IndexOfNode("n2"))
	assert.Equal(t, -1, table.IndexOfNode("n3"), "unknown node")
	assert.Equal(t, -1, table.IndexOfNode(""), "empty node never matches an unbound plug")
}

func TestTableByName(t *testing.T) {
	p2 := &Plug{Name: "p2", Node: "n2"}
	table := Table{{Name: "p1", Node: "n1"}, p2}
	assert.Same(t, p2, table.ByName("p2"))
	assert.Nil(t, table.ByName("missing"))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "on", On.String())
	assert.Equal(t, "off", Off.String())
	assert.Equal(t, "unknown", Unknown.String())
}
