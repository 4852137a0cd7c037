// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package server

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nova-telemetry/nova/internal/auth"
	"github.com/nova-telemetry/nova/internal/fencing"
)

func TestConnection_AdmitsOnlyActivePlayback(t *testing.T) {
	c := newConnection("c1", auth.NewPrincipal("tok", "alice", []string{"read"}), fencing.NewMemoryCache())

	require.False(t, c.admits("p1"))

	c.setActivePlayback("p1")
	require.True(t, c.admits("p1"))
	require.False(t, c.admits("stale"))

	c.setActivePlayback("p2")
	require.False(t, c.admits("p1"))
	require.True(t, c.admits("p2"))
}

func TestConnection_HasScope(t *testing.T) {
	reader := newConnection("c1", auth.NewPrincipal("tok", "alice", []string{"read"}), fencing.NewMemoryCache())
	require.True(t, reader.hasScope("read"))
	require.False(t, reader.hasScope("command"))

	admin := newConnection("c2", auth.NewPrincipal("tok2", "bob", []string{"ALL"}), fencing.NewMemoryCache())
	require.True(t, admin.hasScope("command"))
	require.True(t, admin.hasScope("anything"))
}

func TestRegistry_BroadcastReachesAllConnections(t *testing.T) {
	r := newRegistry()
	c1 := newConnection("c1", auth.NewPrincipal("t1", "a", []string{"read"}), fencing.NewMemoryCache())
	c2 := newConnection("c2", auth.NewPrincipal("t2", "b", []string{"read"}), fencing.NewMemoryCache())
	r.add(c1)
	r.add(c2)

	r.broadcast(serverMessage{Type: msgChatBroadcast, Text: "hi"})

	require.Len(t, c1.send, 1)
	require.Len(t, c2.send, 1)

	r.remove("c1")
	_, ok := r.get("c1")
	require.False(t, ok)
}
