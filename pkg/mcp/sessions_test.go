package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionRegistryRegisterAndLookup(t *testing.T) {
	r := NewSessionRegistry()

	_, ok := r.ClientFor("sess-1")
	assert.False(t, ok)

	r.Register("sess-1", "client-a")
	cid, ok := r.ClientFor("sess-1")
	assert.True(t, ok)
	assert.Equal(t, "client-a", cid)
}

func TestSessionRegistryReconnectOverwrites(t *testing.T) {
	r := NewSessionRegistry()

	r.Register("sess-1", "client-a")
	r.Register("sess-1", "client-b")

	cid, ok := r.ClientFor("sess-1")
	assert.True(t, ok)
	assert.Equal(t, "client-b", cid)
}

func TestSessionRegistryRemoveByClient(t *testing.T) {
	r := NewSessionRegistry()

	r.Register("sess-1", "client-a")
	r.Register("sess-2", "client-a")
	r.Register("sess-3", "client-b")

	r.Remove("client-a")

	_, ok := r.ClientFor("sess-1")
	assert.False(t, ok)
	_, ok = r.ClientFor("sess-2")
	assert.False(t, ok)

	cid, ok := r.ClientFor("sess-3")
	assert.True(t, ok)
	assert.Equal(t, "client-b", cid)
}
