// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package retriever implements the Semantic Retriever: an entropy-coverage
// ANN search wrapper that enforces unit-norm query vectors and filters
// self-hits and near-duplicate results before handing hits to the Stimulus
// Injector. It never decides how much energy a hit receives; that is the
// injector's job.
package retriever

import (
	"context"
	"math"

	"github.com/luxfi/substrate/internal/cohort"
	"github.com/luxfi/substrate/types"
)

// Hit is one ANN search result.
type Hit struct {
	NodeID     types.NodeID
	Similarity float64
}

// Index is the external ANN collaborator. Implementations own their own
// storage and indexing strategy; this package only shapes the search loop.
type Index interface {
	Search(ctx context.Context, embedding []float32, k int) ([]Hit, error)
}

const (
	selfHitThreshold    = 0.999 // similarity this close to 1 is the query's own vector
	nearDuplicateEps    = 1e-3
	minK                = 2
)

var entropyCohortKey = cohort.Key{TypeName: "retrieval_entropy", Scope: types.ScopeProtocol}

// Retriever runs entropy-coverage search against an Index.
type Retriever struct {
	index   Index
	cohorts *cohort.Stats
	maxK    int
}

// New returns a Retriever. maxK bounds the entropy-coverage search's growth,
// not the target coverage itself, which is cohort-derived and never a
// fixed literal.
func New(index Index, cohorts *cohort.Stats, maxK int) *Retriever {
	if maxK <= 0 {
		maxK = 64
	}
	return &Retriever{index: index, cohorts: cohorts, maxK: maxK}
}

// Search normalizes embedding to unit length, grows k until the similarity
// distribution's coverage 1-exp(-H) meets an adaptive target, then filters
// self-hits and near-duplicates from the result.
func (r *Retriever) Search(ctx context.Context, embedding []float32) ([]Hit, error) {
	query := Normalize(embedding)

	k := minK
	var hits []Hit
	var h float64
	for {
		var err error
		hits, err = r.index.Search(ctx, query, k)
		if err != nil {
			return nil, err
		}
		h = shannonEntropy(similarities(hits))
		coverage := 1 - math.Exp(-h)
		target := sigmoid(r.cohorts.ZScore(entropyCohortKey, h))
		if coverage >= target || len(hits) < k || k >= r.maxK {
			break
		}
		k *= 2
		if k > r.maxK {
			k = r.maxK
		}
	}
	r.cohorts.Observe(entropyCohortKey, h)

	return filterSelfAndNearDuplicates(hits), nil
}

// Normalize rescales embedding to unit L2 norm. A zero vector is returned
// unchanged since it has no direction to normalize to.
func Normalize(embedding []float32) []float32 {
	var sumSq float64
	for _, v := range embedding {
		sumSq += float64(v) * float64(v)
	}
	if sumSq == 0 {
		return embedding
	}
	norm := math.Sqrt(sumSq)
	out := make([]float32, len(embedding))
	for i, v := range embedding {
		out[i] = float32(float64(v) / norm)
	}
	return out
}

func similarities(hits []Hit) []float64 {
	out := make([]float64, len(hits))
	for i, h := range hits {
		out[i] = h.Similarity
	}
	return out
}

// shannonEntropy treats the similarities as unnormalized weights of a
// discrete distribution over hits and returns its entropy in nats.
func shannonEntropy(sims []float64) float64 {
	var total float64
	for _, s := range sims {
		if s > 0 {
			total += s
		}
	}
	if total <= 0 {
		return 0
	}
	var h float64
	for _, s := range sims {
		if s <= 0 {
			continue
		}
		p := s / total
		h -= p * math.Log(p)
	}
	return h
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func filterSelfAndNearDuplicates(hits []Hit) []Hit {
	seen := make(map[types.NodeID]bool, len(hits))
	out := make([]Hit, 0, len(hits))
	lastSim := math.Inf(1)
	for _, h := range hits {
		if h.Similarity >= selfHitThreshold {
			continue
		}
		if seen[h.NodeID] {
			continue
		}
		if len(out) > 0 && lastSim-h.Similarity < nearDuplicateEps {
			continue
		}
		seen[h.NodeID] = true
		out = append(out, h)
		lastSim = h.Similarity
	}
	return out
}
