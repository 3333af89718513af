package fakedb

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedAndFields(t *testing.T) {
	s := NewServer("127.0.0.1:0")

	s.Seed("jobs/current", map[string]any{"state": "running"})

	got := s.Fields("jobs/current")
	require.NotNil(t, got)
	assert.Equal(t, "running", got["state"])

	// Mutating the returned copy must not leak into the store.
	got["state"] = "tampered"
	assert.Equal(t, "running", s.Fields("jobs/current")["state"])

	assert.Nil(t, s.Fields("jobs/other"), "unseeded documents must not exist")
}

func TestSeedReplacesDocument(t *testing.T) {
	s := NewServer("127.0.0.1:0")

	s.Seed("a/b", map[string]any{"x": "1", "y": "2"})
	s.Seed("a/b", map[string]any{"z": "3"})

	got := s.Fields("a/b")
	assert.Equal(t, map[string]any{"z": "3"}, got)
}

func TestStartAssignsAddress(t *testing.T) {
	s := NewServer("127.0.0.1:0")
	require.NoError(t, s.Start())
	defer s.Stop()

	addr := s.Address()
	assert.NotEqual(t, "127.0.0.1:0", addr, "a concrete port should have been assigned")
	assert.True(t, strings.HasPrefix(s.URL(), "ws://"))
	assert.True(t, strings.HasSuffix(s.URL(), "/rpc"))
}

func TestFreshServerSawNoTraffic(t *testing.T) {
	s := NewServer("127.0.0.1:0")
	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Empty(t, s.Requests())
	assert.Zero(t, s.Connections())
}
