// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package graphstore is the key/value-ish graph store the tick engine
// assumes: batched reads of a citizen's nodes/links/sub-entities and
// idempotent upserts of node energy/weights, link weights, and membership
// edges, backed by a pebble LSM tree.
package graphstore

import (
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/luxfi/substrate/types"
)

// Store persists one process's citizens' graphs, keyed by citizen_id so a
// single pebble instance can back every tenant on the host.
type Store struct {
	db *pebble.DB
}

// Open opens (creating if absent) a pebble database rooted at dir.
func Open(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying pebble handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func nodeKey(citizenID string, id types.NodeID) []byte {
	return []byte(fmt.Sprintf("n/%s/%s", citizenID, id.String()))
}

func linkKey(citizenID string, id types.LinkID) []byte {
	return []byte(fmt.Sprintf("l/%s/%s", citizenID, id.String()))
}

func subEntityKey(citizenID string, id types.SubEntityID) []byte {
	return []byte(fmt.Sprintf("s/%s/%s", citizenID, id.String()))
}

func prefixUpperBound(prefix []byte) []byte {
	upper := append([]byte(nil), prefix...)
	for i := len(upper) - 1; i >= 0; i-- {
		upper[i]++
		if upper[i] != 0 {
			return upper[:i+1]
		}
	}
	return nil
}

// UpsertNode writes (creating or overwriting) one node. Writing the same
// node again with the same ID is idempotent by construction: it is a plain
// key overwrite, not an append.
func (s *Store) UpsertNode(citizenID string, n *types.Node) error {
	b, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return s.db.Set(nodeKey(citizenID, n.ID), b, pebble.Sync)
}

// UpsertLink writes (creating or overwriting) one link.
func (s *Store) UpsertLink(citizenID string, l *types.Link) error {
	b, err := json.Marshal(l)
	if err != nil {
		return err
	}
	return s.db.Set(linkKey(citizenID, l.ID), b, pebble.Sync)
}

// UpsertSubEntity writes (creating or overwriting) one sub-entity, which
// also carries its RELATES_TO boundary edges.
func (s *Store) UpsertSubEntity(citizenID string, e *types.SubEntity) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return s.db.Set(subEntityKey(citizenID, e.ID), b, pebble.Sync)
}

// BatchUpsertNodes coalesces many node writes into a single pebble batch,
// the shape the scheduler's lower-cadence flush uses instead of one fsync
// per node.
func (s *Store) BatchUpsertNodes(citizenID string, nodes []*types.Node) error {
	batch := s.db.NewBatch()
	defer batch.Close()
	for _, n := range nodes {
		b, err := json.Marshal(n)
		if err != nil {
			return err
		}
		if err := batch.Set(nodeKey(citizenID, n.ID), b, nil); err != nil {
			return err
		}
	}
	return batch.Commit(pebble.Sync)
}

// BatchUpsertLinks is BatchUpsertNodes's counterpart for links.
func (s *Store) BatchUpsertLinks(citizenID string, links []*types.Link) error {
	batch := s.db.NewBatch()
	defer batch.Close()
	for _, l := range links {
		b, err := json.Marshal(l)
		if err != nil {
			return err
		}
		if err := batch.Set(linkKey(citizenID, l.ID), b, nil); err != nil {
			return err
		}
	}
	return batch.Commit(pebble.Sync)
}

// LoadNodes reads every node belonging to citizenID in one prefix scan.
func (s *Store) LoadNodes(citizenID string) ([]*types.Node, error) {
	prefix := []byte(fmt.Sprintf("n/%s/", citizenID))
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: prefixUpperBound(prefix)})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var nodes []*types.Node
	for iter.First(); iter.Valid(); iter.Next() {
		var n types.Node
		if err := json.Unmarshal(iter.Value(), &n); err != nil {
			return nil, err
		}
		nodes = append(nodes, &n)
	}
	return nodes, iter.Error()
}

// LoadLinks reads every link belonging to citizenID in one prefix scan.
func (s *Store) LoadLinks(citizenID string) ([]*types.Link, error) {
	prefix := []byte(fmt.Sprintf("l/%s/", citizenID))
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: prefixUpperBound(prefix)})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var links []*types.Link
	for iter.First(); iter.Valid(); iter.Next() {
		var l types.Link
		if err := json.Unmarshal(iter.Value(), &l); err != nil {
			return nil, err
		}
		links = append(links, &l)
	}
	return links, iter.Error()
}

// LoadSubEntities reads every sub-entity belonging to citizenID in one
// prefix scan.
func (s *Store) LoadSubEntities(citizenID string) ([]*types.SubEntity, error) {
	prefix := []byte(fmt.Sprintf("s/%s/", citizenID))
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: prefixUpperBound(prefix)})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var entities []*types.SubEntity
	for iter.First(); iter.Valid(); iter.Next() {
		var e types.SubEntity
		if err := json.Unmarshal(iter.Value(), &e); err != nil {
			return nil, err
		}
		entities = append(entities, &e)
	}
	return entities, iter.Error()
}
