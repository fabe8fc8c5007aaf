// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package graph

import (
	"testing"

	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/substrate/types"
)

func idOf(b byte) types.NodeID {
	var id ids.ID
	id[0] = b
	return id
}

func TestUpsertNodeIsIdempotentByID(t *testing.T) {
	a := New()
	n := &types.Node{ID: idOf(1), Name: "n1"}
	a.UpsertNode(n)
	a.UpsertNode(&types.Node{ID: idOf(1), Name: "n1-updated"})

	require.Equal(t, 1, a.NodeCount())
	got, ok := a.Node(idOf(1))
	require.True(t, ok)
	require.Equal(t, "n1-updated", got.Name)
}

func TestOutLinksIndexedByEndpoint(t *testing.T) {
	a := New()
	a.UpsertNode(&types.Node{ID: idOf(1)})
	a.UpsertNode(&types.Node{ID: idOf(2)})
	l := &types.Link{ID: idOf(10), Source: idOf(1), Target: idOf(2), TypeName: "ENABLES"}
	a.UpsertLink(l)

	out := a.OutLinks(idOf(1))
	require.Len(t, out, 1)
	require.Equal(t, idOf(2), out[0].Target)

	require.Empty(t, a.OutLinks(idOf(2)))
}

func TestSetMembershipExactlyOneEdgePerPair(t *testing.T) {
	a := New()
	a.UpsertNode(&types.Node{ID: idOf(1)})
	sub := idOf(100)

	a.SetMembership(idOf(1), types.Membership{SubEntity: sub, Weight: 0.4})
	a.SetMembership(idOf(1), types.Membership{SubEntity: sub, Weight: 0.9, PrimaryEntity: true})

	m := a.Memberships(idOf(1))
	require.Len(t, m, 1)
	require.Equal(t, 0.9, m[0].Weight)
	require.True(t, m[0].PrimaryEntity)

	node, ok := a.Node(idOf(1))
	require.True(t, ok)
	require.Len(t, node.Memberships, 1)
}
