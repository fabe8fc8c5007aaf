// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package graph is the citizen's own graph store: nodes, links and
// sub-entities live in parallel slices keyed by stable IDs, with all
// cross-references held as IDs rather than pointers. This is the
// arena/index pattern spec.md §9 calls for in place of the teacher's
// pointer-heavy DAG (dag/dag.go), which cannot express MEMBER_OF/RELATES_TO
// edges without introducing reference cycles between nodes, links and
// sub-entities.
package graph

import (
	"sync"

	"github.com/luxfi/substrate/types"
)

// Arena owns one citizen's graph. All mutation happens through Arena's
// methods; callers never hold a *types.Node across a lock boundary.
type Arena struct {
	mu sync.RWMutex

	nodes    []*types.Node
	nodeIdx  map[types.NodeID]int
	links    []*types.Link
	linkIdx  map[types.LinkID]int
	// outLinks/inLinks index link positions by endpoint for O(degree) walks.
	outLinks map[types.NodeID][]int
	inLinks  map[types.NodeID][]int

	subEntities []*types.SubEntity
	subIdx      map[types.SubEntityID]int

	// nodeToEntities mirrors spec.md §4.4's node_to_entities map, updated
	// incrementally on MEMBER_OF changes rather than rebuilt per tick.
	nodeToEntities map[types.NodeID][]types.Membership
}

// New returns an empty Arena.
func New() *Arena {
	return &Arena{
		nodeIdx:        make(map[types.NodeID]int),
		linkIdx:        make(map[types.LinkID]int),
		outLinks:       make(map[types.NodeID][]int),
		inLinks:        make(map[types.NodeID][]int),
		subIdx:         make(map[types.SubEntityID]int),
		nodeToEntities: make(map[types.NodeID][]types.Membership),
	}
}

// UpsertNode inserts or replaces a node by ID (idempotent MERGE semantics).
func (a *Arena) UpsertNode(n *types.Node) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if i, ok := a.nodeIdx[n.ID]; ok {
		a.nodes[i] = n
		return
	}
	a.nodeIdx[n.ID] = len(a.nodes)
	a.nodes = append(a.nodes, n)
}

// Node returns a node by ID.
func (a *Arena) Node(id types.NodeID) (*types.Node, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	i, ok := a.nodeIdx[id]
	if !ok {
		return nil, false
	}
	return a.nodes[i], true
}

// Nodes returns a snapshot slice of all nodes. Callers must not mutate the
// returned nodes outside the Arena's own methods.
func (a *Arena) Nodes() []*types.Node {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]*types.Node, len(a.nodes))
	copy(out, a.nodes)
	return out
}

// UpsertLink inserts or replaces a link by ID and indexes it by endpoint.
func (a *Arena) UpsertLink(l *types.Link) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if i, ok := a.linkIdx[l.ID]; ok {
		a.links[i] = l
		return
	}
	i := len(a.links)
	a.links = append(a.links, l)
	a.linkIdx[l.ID] = i
	a.outLinks[l.Source] = append(a.outLinks[l.Source], i)
	a.inLinks[l.Target] = append(a.inLinks[l.Target], i)
}

// Links returns a snapshot slice of all links, for batched persistence flush.
func (a *Arena) Links() []*types.Link {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]*types.Link, len(a.links))
	copy(out, a.links)
	return out
}

// Link returns a link by ID.
func (a *Arena) Link(id types.LinkID) (*types.Link, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	i, ok := a.linkIdx[id]
	if !ok {
		return nil, false
	}
	return a.links[i], true
}

// OutLinks returns the outgoing links from a node.
func (a *Arena) OutLinks(id types.NodeID) []*types.Link {
	a.mu.RLock()
	defer a.mu.RUnlock()
	idxs := a.outLinks[id]
	out := make([]*types.Link, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, a.links[i])
	}
	return out
}

// UpsertSubEntity inserts or replaces a sub-entity by ID.
func (a *Arena) UpsertSubEntity(e *types.SubEntity) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if i, ok := a.subIdx[e.ID]; ok {
		a.subEntities[i] = e
		return
	}
	a.subIdx[e.ID] = len(a.subEntities)
	a.subEntities = append(a.subEntities, e)
}

// SubEntity returns a sub-entity by ID.
func (a *Arena) SubEntity(id types.SubEntityID) (*types.SubEntity, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	i, ok := a.subIdx[id]
	if !ok {
		return nil, false
	}
	return a.subEntities[i], true
}

// SubEntities returns a snapshot of all sub-entities.
func (a *Arena) SubEntities() []*types.SubEntity {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]*types.SubEntity, len(a.subEntities))
	copy(out, a.subEntities)
	return out
}

// SetMembership idempotently upserts the single MEMBER_OF edge for
// (node, subEntity): exactly one edge per pair, per spec.md §3's invariant.
// primary_entity transitions only when hysteresis in the caller has already
// decided the challenger wins; this method just records the outcome.
func (a *Arena) SetMembership(nodeID types.NodeID, m types.Membership) {
	a.mu.Lock()
	defer a.mu.Unlock()

	memberships := a.nodeToEntities[nodeID]
	for i, existing := range memberships {
		if existing.SubEntity == m.SubEntity {
			memberships[i] = m
			a.nodeToEntities[nodeID] = memberships
			a.syncNodeMemberships(nodeID, memberships)
			return
		}
	}
	memberships = append(memberships, m)
	a.nodeToEntities[nodeID] = memberships
	a.syncNodeMemberships(nodeID, memberships)
}

// Memberships returns the node's current MEMBER_OF edges.
func (a *Arena) Memberships(nodeID types.NodeID) []types.Membership {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]types.Membership, len(a.nodeToEntities[nodeID]))
	copy(out, a.nodeToEntities[nodeID])
	return out
}

// syncNodeMemberships mirrors the membership list onto the Node struct
// itself; callers already hold a.mu.
func (a *Arena) syncNodeMemberships(nodeID types.NodeID, memberships []types.Membership) {
	if i, ok := a.nodeIdx[nodeID]; ok {
		cp := make([]types.Membership, len(memberships))
		copy(cp, memberships)
		a.nodes[i].Memberships = cp
	}
}

// NodeCount and LinkCount back EngineMetrics' nodes_total/links_total.
func (a *Arena) NodeCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.nodes)
}

func (a *Arena) LinkCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.links)
}

func (a *Arena) SubEntityCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.subEntities)
}
