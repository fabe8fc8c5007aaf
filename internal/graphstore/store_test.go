// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package graphstore

import (
	"testing"

	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/substrate/types"
)

func idOf(b byte) ids.ID {
	var id ids.ID
	id[0] = b
	return id
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUpsertNodeIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	const citizen = "citizen-a"

	require.NoError(t, s.UpsertNode(citizen, &types.Node{ID: idOf(1), Name: "n1"}))
	require.NoError(t, s.UpsertNode(citizen, &types.Node{ID: idOf(1), Name: "n1-updated"}))

	nodes, err := s.LoadNodes(citizen)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	require.Equal(t, "n1-updated", nodes[0].Name)
}

func TestLoadNodesScopesByCitizen(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.UpsertNode("citizen-a", &types.Node{ID: idOf(1)}))
	require.NoError(t, s.UpsertNode("citizen-b", &types.Node{ID: idOf(2)}))

	nodes, err := s.LoadNodes("citizen-a")
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	require.Equal(t, idOf(1), nodes[0].ID)
}

func TestBatchUpsertNodes(t *testing.T) {
	s := openTestStore(t)
	const citizen = "citizen-a"
	nodes := []*types.Node{{ID: idOf(1)}, {ID: idOf(2)}, {ID: idOf(3)}}

	require.NoError(t, s.BatchUpsertNodes(citizen, nodes))

	loaded, err := s.LoadNodes(citizen)
	require.NoError(t, err)
	require.Len(t, loaded, 3)
}

func TestUpsertAndLoadLinks(t *testing.T) {
	s := openTestStore(t)
	const citizen = "citizen-a"
	link := &types.Link{ID: idOf(10), Source: idOf(1), Target: idOf(2), TypeName: "ENABLES"}

	require.NoError(t, s.UpsertLink(citizen, link))

	links, err := s.LoadLinks(citizen)
	require.NoError(t, err)
	require.Len(t, links, 1)
	require.Equal(t, "ENABLES", links[0].TypeName)
}
