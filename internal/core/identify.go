package core

import (
	"sort"

	"fungiatlas/pkg/domain"
)

// conflictWeight is how many matching features one contradiction cancels.
const conflictWeight = 3

// Identify ranks candidate species against obs. With no candidate ids every
// species loosely overlapping the observation's habitat and month hints is
// considered. The observation is validated before anything is scored; an
// empty candidate set is reported through NoCandidates, not an error.
func (d *Dataset) Identify(obs Observation, candidateIDs ...string) (Identification, error) {
	if err := d.ValidateObservation(obs); err != nil {
		return Identification{}, err
	}
	candidates, err := d.candidates(obs, candidateIDs)
	if err != nil {
		return Identification{}, err
	}
	out := Identification{DatasetID: d.id}
	if len(candidates) == 0 {
		out.NoCandidates = true
		return out, nil
	}

	matches := make([]Match, 0, len(candidates))
	for _, id := range candidates {
		matches = append(matches, d.score(id, obs))
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].SpeciesID < matches[j].SpeciesID
	})
	d.eliminate(matches, obs)
	d.attachLookalikes(matches, obs)
	out.Matches = matches
	return out, nil
}

func (d *Dataset) candidates(obs Observation, requested []string) ([]string, error) {
	if len(requested) > 0 {
		seen := make(map[string]struct{}, len(requested))
		out := make([]string, 0, len(requested))
		for _, name := range requested {
			id, ok := d.Resolve(name)
			if !ok {
				return nil, domain.UnknownSpeciesReferenceError{SpeciesID: name, Context: "candidate set"}
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
		return out, nil
	}
	out := make([]string, 0, len(d.ids))
	for _, id := range d.ids {
		if looselyOverlaps(d.species[id], obs) {
			out = append(out, id)
		}
	}
	return out, nil
}

// looselyOverlaps is true when either hint is missing, a habitat tag is
// shared, or the month falls inside the species season.
func looselyOverlaps(rec SpeciesRecord, obs Observation) bool {
	if len(obs.HabitatHint) == 0 || obs.Month == 0 {
		return true
	}
	return rec.HasHabitat(obs.HabitatHint) || rec.Season.Contains(obs.Month)
}

func (d *Dataset) score(id string, obs Observation) Match {
	rec := d.species[id]
	m := Match{SpeciesID: id}
	for feature := range obs.Features {
		observed, ok := obs.Observed(feature)
		if !ok {
			continue
		}
		recorded, ok := rec.Value(feature)
		if !ok {
			continue
		}
		if observed == recorded {
			m.MatchCount++
		} else {
			m.ConflictCount++
		}
	}
	m.Score = m.MatchCount - conflictWeight*m.ConflictCount
	return m
}

// conflicts reports whether obs contradicts the recorded value of feature.
func (d *Dataset) conflicts(id, feature string, obs Observation) bool {
	observed, ok := obs.Observed(feature)
	if !ok {
		return false
	}
	recorded, ok := d.species[id].Value(feature)
	return ok && recorded != observed
}

// eliminate flags candidates contradicted on the sole distinguishing feature
// of an edge to a better ranked candidate. Scores and order are untouched.
func (d *Dataset) eliminate(matches []Match, obs Observation) {
	for i := range matches {
		for j := 0; j < i; j++ {
			edge, err := d.graph.EdgeBetween(matches[i].SpeciesID, matches[j].SpeciesID)
			if err != nil || len(edge.DistinguishingFeatures) != 1 {
				continue
			}
			if d.conflicts(matches[i].SpeciesID, edge.DistinguishingFeatures[0], obs) {
				matches[i].Eliminated = true
				matches[i].EliminatedBy = matches[j].SpeciesID
				break
			}
		}
	}
}

// attachLookalikes reports, for every candidate tied on the top score, the
// lookalikes the observation leaves open and those it contradicts on both
// sides.
func (d *Dataset) attachLookalikes(matches []Match, obs Observation) {
	top := matches[0].Score
	for i := range matches {
		if matches[i].Score != top {
			break
		}
		id := matches[i].SpeciesID
		for _, edge := range d.graph.EdgesOf(id) {
			switch d.graph.IsResolved(edge, obs) {
			case Unresolved:
				matches[i].UnresolvedLookalikes = append(matches[i].UnresolvedLookalikes, UnresolvedLookalike{
					SpeciesID:         edge.Other(id),
					ResolvingFeatures: d.graph.ResolvingFeatures(edge, obs),
					Note:              edge.Note,
				})
			case ResolvedInconsistent:
				matches[i].InconsistentLookalikes = append(matches[i].InconsistentLookalikes, edge.Other(id))
			}
		}
	}
}
