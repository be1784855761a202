// Package domain defines the atlas entities, feature vocabulary, identification
// results, and content rule primitives used by fungiatlas.
package domain

import (
	"sort"
	"strconv"
)

// Unknown is the explicit observation value for a feature that was looked at
// but could not be determined. It is never a member of a feature domain.
const Unknown = "unknown"

// Boolean feature values.
const (
	ValueTrue  = "true"
	ValueFalse = "false"
)

// BoolDomain returns the value domain used for yes/no features.
func BoolDomain() []string {
	return []string{ValueTrue, ValueFalse}
}

// EntityType identifies the kind of atlas record a violation refers to.
type EntityType string

// Atlas entity types.
const (
	EntityFeature EntityType = "feature"
	EntitySpecies EntityType = "species"
	EntityEdge    EntityType = "lookalike_edge"
)

// Edibility classifies a species for the reader's safety.
type Edibility string

// Edibility classes recorded by the atlas.
const (
	EdibilityEdible       Edibility = "edible"
	EdibilityPoisonous    Edibility = "poisonous"
	EdibilityDeadly       Edibility = "deadly"
	EdibilityPsychoactive Edibility = "psychoactive-illegal"
)

// Valid reports whether e is one of the recognised edibility classes.
func (e Edibility) Valid() bool {
	switch e {
	case EdibilityEdible, EdibilityPoisonous, EdibilityDeadly, EdibilityPsychoactive:
		return true
	}
	return false
}

// Feature is a named observable trait with a finite domain of mutually
// exclusive values.
type Feature struct {
	Name   string   `json:"name"`
	Domain []string `json:"domain"`
}

// Has reports whether value is a member of the feature domain.
func (f Feature) Has(value string) bool {
	for _, v := range f.Domain {
		if v == value {
			return true
		}
	}
	return false
}

// Season is a closed month-of-year interval. From may be greater than To, in
// which case the window wraps across the year boundary (Oct..Jan). The zero
// value means no season was recorded.
type Season struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// Recorded reports whether a season window is present.
func (s Season) Recorded() bool { return s.From != 0 || s.To != 0 }

// Valid reports whether both bounds are calendar months.
func (s Season) Valid() bool {
	return validMonth(s.From) && validMonth(s.To)
}

// Contains reports whether month falls inside the window. An unrecorded
// season contains every month.
func (s Season) Contains(month int) bool {
	if !s.Recorded() {
		return true
	}
	if s.From <= s.To {
		return month >= s.From && month <= s.To
	}
	return month >= s.From || month <= s.To
}

func (s Season) String() string {
	if !s.Recorded() {
		return "unrecorded"
	}
	return strconv.Itoa(s.From) + ".." + strconv.Itoa(s.To)
}

func validMonth(m int) bool { return m >= 1 && m <= 12 }

// SpeciesRecord is one atlas entry. Features is partial: a missing key means
// the value was not recorded for the species.
type SpeciesRecord struct {
	ID             string            `json:"id"`
	ScientificName string            `json:"scientific_name"`
	CommonName     string            `json:"common_name"`
	Synonyms       []string          `json:"synonyms,omitempty"`
	Features       map[string]string `json:"features"`
	Habitat        []string          `json:"habitat,omitempty"`
	Season         Season            `json:"season"`
	Edibility      Edibility         `json:"edibility"`
	Images         []string          `json:"images,omitempty"`
	Note           string            `json:"note,omitempty"`
}

// Value returns the recorded value for feature and whether one was recorded.
func (s SpeciesRecord) Value(feature string) (string, bool) {
	v, ok := s.Features[feature]
	return v, ok
}

// HasHabitat reports whether any of tags appears in the species habitat.
func (s SpeciesRecord) HasHabitat(tags []string) bool {
	for _, tag := range tags {
		for _, h := range s.Habitat {
			if h == tag {
				return true
			}
		}
	}
	return false
}

// Clone returns a deep copy of the record.
func (s SpeciesRecord) Clone() SpeciesRecord {
	out := s
	out.Synonyms = cloneStrings(s.Synonyms)
	out.Habitat = cloneStrings(s.Habitat)
	out.Images = cloneStrings(s.Images)
	if s.Features != nil {
		out.Features = make(map[string]string, len(s.Features))
		for k, v := range s.Features {
			out.Features[k] = v
		}
	}
	return out
}

// LookalikeEdge records a confusion risk between two species together with
// the features that separate them. Edges are undirected; NewLookalikeEdge
// stores them with SpeciesA < SpeciesB so (a,b) and (b,a) compare equal.
type LookalikeEdge struct {
	SpeciesA               string   `json:"species_a"`
	SpeciesB               string   `json:"species_b"`
	DistinguishingFeatures []string `json:"distinguishing_features"`
	Note                   string   `json:"note,omitempty"`
}

// NewLookalikeEdge returns the canonical form of an edge between a and b.
// Features are de-duplicated and sorted.
func NewLookalikeEdge(a, b string, features []string, note string) LookalikeEdge {
	if b < a {
		a, b = b, a
	}
	return LookalikeEdge{SpeciesA: a, SpeciesB: b, DistinguishingFeatures: sortedSet(features), Note: note}
}

// Key returns the canonical pair key of the edge.
func (e LookalikeEdge) Key() EdgeKey { return EdgeKey{A: e.SpeciesA, B: e.SpeciesB} }

// Other returns the species on the opposite end of the edge from id.
func (e LookalikeEdge) Other(id string) string {
	if e.SpeciesA == id {
		return e.SpeciesB
	}
	return e.SpeciesA
}

// Touches reports whether id is one of the edge endpoints.
func (e LookalikeEdge) Touches(id string) bool { return e.SpeciesA == id || e.SpeciesB == id }

// Clone returns a deep copy of the edge.
func (e LookalikeEdge) Clone() LookalikeEdge {
	out := e
	out.DistinguishingFeatures = cloneStrings(e.DistinguishingFeatures)
	return out
}

// EdgeKey is the canonical unordered species pair of an edge.
type EdgeKey struct {
	A string
	B string
}

// KeyFor returns the canonical key for the pair a, b.
func KeyFor(a, b string) EdgeKey {
	if b < a {
		a, b = b, a
	}
	return EdgeKey{A: a, B: b}
}

// Observation is a caller supplied, possibly incomplete, set of field
// characteristics. Month 0 means no month hint.
type Observation struct {
	Features    map[string]string `json:"features,omitempty"`
	HabitatHint []string          `json:"habitat_hint,omitempty"`
	Month       int               `json:"month,omitempty"`
}

// Observed returns the observed value for feature, ignoring absent and
// unknown entries.
func (o Observation) Observed(feature string) (string, bool) {
	v, ok := o.Features[feature]
	if !ok || v == Unknown {
		return "", false
	}
	return v, true
}

// With returns a copy of the observation with feature set to value.
func (o Observation) With(feature, value string) Observation {
	out := o
	out.HabitatHint = cloneStrings(o.HabitatHint)
	out.Features = make(map[string]string, len(o.Features)+1)
	for k, v := range o.Features {
		out.Features[k] = v
	}
	out.Features[feature] = value
	return out
}

// Resolution is the outcome of checking a lookalike edge against an observation.
type Resolution string

// Edge resolution outcomes.
const (
	// Unresolved means no distinguishing feature separates the pair yet.
	Unresolved Resolution = "unresolved"
	// ResolvedConsistent means a distinguishing feature matches exactly one side.
	ResolvedConsistent Resolution = "resolved_consistent"
	// ResolvedInconsistent means a distinguishing feature matches neither side.
	ResolvedInconsistent Resolution = "resolved_inconsistent"
)

// Resolved reports whether the outcome separates the pair.
func (r Resolution) Resolved() bool { return r != Unresolved }

// UnresolvedLookalike names a lookalike the observation cannot yet rule out and
// the features that would settle it. Observing any one of them is enough.
type UnresolvedLookalike struct {
	SpeciesID         string   `json:"species_id"`
	ResolvingFeatures []string `json:"resolving_features"`
	Note              string   `json:"note,omitempty"`
}

// Match is one ranked candidate in an identification.
type Match struct {
	SpeciesID            string                `json:"species_id"`
	Score                int                   `json:"score"`
	MatchCount           int                   `json:"match_count"`
	ConflictCount        int                   `json:"conflict_count"`
	Eliminated           bool                  `json:"eliminated"`
	EliminatedBy         string                `json:"eliminated_by,omitempty"`
	UnresolvedLookalikes []UnresolvedLookalike `json:"unresolved_lookalikes,omitempty"`
	// InconsistentLookalikes lists lookalikes whose edge the observation
	// resolved by matching neither side.
	InconsistentLookalikes []string `json:"inconsistent_lookalikes,omitempty"`
}

// UnresolvedIDs returns the species ids of the unresolved lookalikes.
func (m Match) UnresolvedIDs() []string {
	if len(m.UnresolvedLookalikes) == 0 {
		return nil
	}
	out := make([]string, 0, len(m.UnresolvedLookalikes))
	for _, u := range m.UnresolvedLookalikes {
		out = append(out, u.SpeciesID)
	}
	return out
}

// Identification is the ranked answer to an observation. NoCandidates marks
// the inconclusive outcome where nothing overlapped the observation; it is not
// an error.
type Identification struct {
	DatasetID    string  `json:"dataset_id"`
	Matches      []Match `json:"matches"`
	NoCandidates bool    `json:"no_candidates"`
}

// Top returns the first ranked match, if any.
func (i Identification) Top() (Match, bool) {
	if len(i.Matches) == 0 {
		return Match{}, false
	}
	return i.Matches[0], true
}

// Find returns the match for species id.
func (i Identification) Find(id string) (Match, bool) {
	for _, m := range i.Matches {
		if m.SpeciesID == id {
			return m, true
		}
	}
	return Match{}, false
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func sortedSet(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
