package core

import (
	"fmt"
	"sort"

	"fungiatlas/pkg/domain"
)

// LookalikeGraph is the undirected confusion graph of a dataset. It is built
// once by the loader and never mutated.
type LookalikeGraph struct {
	species   map[string]SpeciesRecord
	edges     map[EdgeKey]LookalikeEdge
	ordered   []LookalikeEdge
	neighbors map[string][]string
}

// newLookalikeGraph indexes canonical, de-duplicated edges.
func newLookalikeGraph(species map[string]SpeciesRecord, edges []LookalikeEdge) *LookalikeGraph {
	g := &LookalikeGraph{
		species:   species,
		edges:     make(map[EdgeKey]LookalikeEdge, len(edges)),
		ordered:   make([]LookalikeEdge, 0, len(edges)),
		neighbors: make(map[string][]string),
	}
	for _, edge := range edges {
		g.edges[edge.Key()] = edge
		g.ordered = append(g.ordered, edge)
		g.neighbors[edge.SpeciesA] = append(g.neighbors[edge.SpeciesA], edge.SpeciesB)
		g.neighbors[edge.SpeciesB] = append(g.neighbors[edge.SpeciesB], edge.SpeciesA)
	}
	sort.Slice(g.ordered, func(i, j int) bool {
		a, b := g.ordered[i], g.ordered[j]
		if a.SpeciesA != b.SpeciesA {
			return a.SpeciesA < b.SpeciesA
		}
		return a.SpeciesB < b.SpeciesB
	})
	for id := range g.neighbors {
		sort.Strings(g.neighbors[id])
	}
	return g
}

// Len returns the number of edges.
func (g *LookalikeGraph) Len() int { return len(g.ordered) }

// Edges returns every edge ordered by species pair.
func (g *LookalikeGraph) Edges() []LookalikeEdge {
	out := make([]LookalikeEdge, 0, len(g.ordered))
	for _, edge := range g.ordered {
		out = append(out, edge.Clone())
	}
	return out
}

// Neighbors returns the sorted ids of species sharing an edge with id.
func (g *LookalikeGraph) Neighbors(id string) []string {
	ids := g.neighbors[id]
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// EdgeBetween returns the edge joining a and b in either order.
func (g *LookalikeGraph) EdgeBetween(a, b string) (LookalikeEdge, error) {
	edge, ok := g.edges[domain.KeyFor(a, b)]
	if !ok {
		return LookalikeEdge{}, fmt.Errorf("lookalike edge %s<->%s: %w", a, b, domain.ErrNotFound)
	}
	return edge.Clone(), nil
}

// EdgesOf returns the edges touching id ordered by the id of the other species.
func (g *LookalikeGraph) EdgesOf(id string) []LookalikeEdge {
	ids := g.neighbors[id]
	out := make([]LookalikeEdge, 0, len(ids))
	for _, other := range ids {
		out = append(out, g.edges[domain.KeyFor(id, other)].Clone())
	}
	return out
}

// Discriminating returns the values both species record for feature and
// reports whether they differ. Either side missing the feature counts as not
// discriminating.
func (g *LookalikeGraph) Discriminating(edge LookalikeEdge, feature string) (string, string, bool) {
	va, okA := g.species[edge.SpeciesA].Value(feature)
	vb, okB := g.species[edge.SpeciesB].Value(feature)
	if !okA || !okB {
		return va, vb, false
	}
	return va, vb, va != vb
}

// IsResolved checks whether obs separates the two species of edge. A feature
// takes part only when it is observed and recorded on both sides. Matching
// exactly one side resolves the edge consistently and ends the check; matching
// neither marks it inconsistent unless a later feature resolves it
// consistently; matching both leaves that feature ambiguous.
func (g *LookalikeGraph) IsResolved(edge LookalikeEdge, obs Observation) Resolution {
	outcome := Unresolved
	for _, feature := range edge.DistinguishingFeatures {
		observed, ok := obs.Observed(feature)
		if !ok {
			continue
		}
		va, okA := g.species[edge.SpeciesA].Value(feature)
		vb, okB := g.species[edge.SpeciesB].Value(feature)
		if !okA || !okB {
			continue
		}
		matchA, matchB := observed == va, observed == vb
		switch {
		case matchA != matchB:
			return ResolvedConsistent
		case !matchA && !matchB:
			outcome = ResolvedInconsistent
		}
	}
	return outcome
}

// ResolvingFeatures lists the distinguishing features of edge that are not
// yet observed and whose recorded values differ between the two species.
// Observing any one of them settles the pair.
func (g *LookalikeGraph) ResolvingFeatures(edge LookalikeEdge, obs Observation) []string {
	var out []string
	for _, feature := range edge.DistinguishingFeatures {
		if _, observed := obs.Observed(feature); observed {
			continue
		}
		if _, _, ok := g.Discriminating(edge, feature); ok {
			out = append(out, feature)
		}
	}
	return out
}
