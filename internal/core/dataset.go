package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"fungiatlas/internal/content"
	"fungiatlas/pkg/domain"
)

// Dataset is an immutable, fully validated atlas snapshot. Every method is
// safe for concurrent use because nothing mutates a dataset after
// LoadDataset returns it.
type Dataset struct {
	id       string
	loadedAt time.Time
	version  string
	title    string
	vocab    *Vocabulary
	species  map[string]SpeciesRecord
	ids      []string
	names    map[string]string
	graph    *LookalikeGraph
	report   Result
}

// LoadOption configures LoadDataset.
type LoadOption func(*loadConfig)

type loadConfig struct {
	rules *RulesEngine
	now   func() time.Time
}

// WithLoadRules replaces the default content rules evaluated during a load.
// A nil engine disables rule evaluation.
func WithLoadRules(engine *RulesEngine) LoadOption {
	return func(cfg *loadConfig) {
		cfg.rules = engine
	}
}

// WithLoadClock overrides the clock used to stamp the dataset.
func WithLoadClock(now func() time.Time) LoadOption {
	return func(cfg *loadConfig) {
		if now != nil {
			cfg.now = now
		}
	}
}

// LoadDataset validates doc and builds a frozen dataset from it. The load is
// all-or-nothing: any error returns a nil dataset.
func LoadDataset(ctx context.Context, doc content.Document, opts ...LoadOption) (*Dataset, error) {
	cfg := loadConfig{rules: NewDefaultRulesEngine(), now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := checkFeatureKeys(doc); err != nil {
		return nil, err
	}
	doc = content.Normalize(doc)
	if err := content.Validate(doc); err != nil {
		return nil, err
	}

	ds := &Dataset{
		id:      uuid.NewString(),
		version: doc.Version,
		title:   doc.Title,
		vocab:   domain.NewVocabulary(),
		species: make(map[string]SpeciesRecord, len(doc.Species)),
		names:   make(map[string]string, len(doc.Species)*2),
	}
	for _, row := range doc.Features {
		if err := ds.vocab.Define(row.Name, row.Values); err != nil {
			return nil, err
		}
	}
	for _, row := range doc.Species {
		if err := ds.addSpecies(row); err != nil {
			return nil, err
		}
	}
	sort.Strings(ds.ids)

	edges, err := ds.buildEdges(doc.Edges)
	if err != nil {
		return nil, err
	}
	ds.graph = newLookalikeGraph(ds.species, edges)
	ds.vocab.Freeze()

	res, err := cfg.rules.Evaluate(ctx, ds)
	if err != nil {
		return nil, err
	}
	if res.HasBlocking() {
		return nil, RuleViolationError{Result: res}
	}
	ds.report = res
	ds.loadedAt = cfg.now().UTC()
	return ds, nil
}

// checkFeatureKeys rejects species whose feature keys only differ by
// surrounding whitespace.
func checkFeatureKeys(doc content.Document) error {
	for _, row := range doc.Species {
		dups := content.FeatureKeyCollisions(row.Features)
		if len(dups) == 0 {
			continue
		}
		id := strings.TrimSpace(row.ID)
		if id == "" {
			name, _ := content.ParseNameLabel(row.ScientificName)
			id = content.Slugify(name)
		}
		return domain.MalformedSpeciesError{SpeciesID: id, Reason: fmt.Sprintf("feature %q recorded more than once", dups[0])}
	}
	return nil
}

func (d *Dataset) addSpecies(row content.SpeciesRow) error {
	if _, exists := d.species[row.ID]; exists {
		return domain.MalformedSpeciesError{SpeciesID: row.ID, Reason: "duplicate species id"}
	}
	rec := SpeciesRecord{
		ID:             row.ID,
		ScientificName: row.ScientificName,
		CommonName:     row.CommonName,
		Synonyms:       append([]string(nil), row.Synonyms...),
		Features:       make(map[string]string, len(row.Features)),
		Habitat:        append([]string(nil), row.Habitat...),
		Edibility:      domain.Edibility(row.Edibility),
		Images:         append([]string(nil), row.Images...),
		Note:           row.Note,
	}
	if !rec.Edibility.Valid() {
		return domain.MalformedSpeciesError{SpeciesID: row.ID, Reason: fmt.Sprintf("unknown edibility %q", row.Edibility)}
	}
	if row.Season != nil {
		rec.Season = domain.Season{From: row.Season.From, To: row.Season.To}
		if !rec.Season.Valid() {
			return domain.MalformedSpeciesError{SpeciesID: row.ID, Reason: "season months must be 1..12"}
		}
	}
	features := make([]string, 0, len(row.Features))
	for name := range row.Features {
		features = append(features, name)
	}
	sort.Strings(features)
	for _, name := range features {
		value := row.Features[name]
		if value == domain.Unknown {
			continue
		}
		if err := d.vocab.Check(name, value); err != nil {
			return fmt.Errorf("species %s: %w", row.ID, err)
		}
		rec.Features[name] = value
	}
	if len(rec.Features) == 0 {
		return domain.MalformedSpeciesError{SpeciesID: row.ID, Reason: "no recorded feature values"}
	}

	keys := append([]string{rec.ID, rec.ScientificName}, rec.Synonyms...)
	for _, key := range keys {
		norm := strings.ToLower(key)
		if owner, taken := d.names[norm]; taken && owner != rec.ID {
			return domain.MalformedSpeciesError{SpeciesID: row.ID, Reason: fmt.Sprintf("name %q already used by %s", key, owner)}
		}
		d.names[norm] = rec.ID
	}
	d.species[rec.ID] = rec
	d.ids = append(d.ids, rec.ID)
	return nil
}

func (d *Dataset) buildEdges(rows []content.EdgeRow) ([]LookalikeEdge, error) {
	merged := make(map[EdgeKey]LookalikeEdge, len(rows))
	order := make([]EdgeKey, 0, len(rows))
	for _, row := range rows {
		a, ok := d.Resolve(row.A)
		if !ok {
			return nil, domain.UnknownSpeciesReferenceError{SpeciesID: row.A, Context: "lookalike edge"}
		}
		b, ok := d.Resolve(row.B)
		if !ok {
			return nil, domain.UnknownSpeciesReferenceError{SpeciesID: row.B, Context: "lookalike edge"}
		}
		if a == b {
			return nil, domain.MalformedEdgeError{SpeciesA: a, SpeciesB: b, Reason: "edge joins a species to itself"}
		}
		if len(row.Features) == 0 {
			return nil, domain.MalformedEdgeError{SpeciesA: a, SpeciesB: b, Reason: "no distinguishing features"}
		}
		for _, feature := range row.Features {
			if _, ok := d.vocab.Lookup(feature); !ok {
				return nil, domain.MalformedEdgeError{SpeciesA: a, SpeciesB: b, Reason: fmt.Sprintf("unregistered feature %q", feature)}
			}
		}
		edge := domain.NewLookalikeEdge(a, b, row.Features, row.Note)
		prev, seen := merged[edge.Key()]
		if !seen {
			merged[edge.Key()] = edge
			order = append(order, edge.Key())
			continue
		}
		note := prev.Note
		if note == "" {
			note = edge.Note
		}
		features := append(prev.DistinguishingFeatures, edge.DistinguishingFeatures...)
		merged[edge.Key()] = domain.NewLookalikeEdge(prev.SpeciesA, prev.SpeciesB, features, note)
	}
	out := make([]LookalikeEdge, 0, len(order))
	for _, key := range order {
		out = append(out, merged[key])
	}
	return out, nil
}

// ID is a unique identifier assigned to each successful load.
func (d *Dataset) ID() string { return d.id }

// LoadedAt returns the UTC time the load completed.
func (d *Dataset) LoadedAt() time.Time { return d.loadedAt }

// Version returns the content version string.
func (d *Dataset) Version() string { return d.version }

// Title returns the content title.
func (d *Dataset) Title() string { return d.title }

// Vocabulary returns the frozen feature vocabulary.
func (d *Dataset) Vocabulary() *Vocabulary { return d.vocab }

// Graph returns the lookalike graph.
func (d *Dataset) Graph() *LookalikeGraph { return d.graph }

// Report returns the non-blocking rule findings recorded at load time.
func (d *Dataset) Report() Result {
	return Result{Violations: append([]Violation(nil), d.report.Violations...)}
}

// Len returns the number of species.
func (d *Dataset) Len() int { return len(d.ids) }

// SpeciesIDs returns all species ids in ascending order.
func (d *Dataset) SpeciesIDs() []string {
	out := make([]string, len(d.ids))
	copy(out, d.ids)
	return out
}

// Species returns a copy of the record for id.
func (d *Dataset) Species(id string) (SpeciesRecord, error) {
	rec, ok := d.species[id]
	if !ok {
		return SpeciesRecord{}, domain.UnknownSpeciesReferenceError{SpeciesID: id}
	}
	return rec.Clone(), nil
}

// FindSpecies implements RuleView.
func (d *Dataset) FindSpecies(id string) (SpeciesRecord, bool) {
	rec, ok := d.species[id]
	if !ok {
		return SpeciesRecord{}, false
	}
	return rec.Clone(), true
}

// ListSpecies returns copies of all records ordered by id.
func (d *Dataset) ListSpecies() []SpeciesRecord {
	out := make([]SpeciesRecord, 0, len(d.ids))
	for _, id := range d.ids {
		out = append(out, d.species[id].Clone())
	}
	return out
}

// ListEdges returns all lookalike edges ordered by species pair.
func (d *Dataset) ListEdges() []LookalikeEdge { return d.graph.Edges() }

// Resolve maps a species id, scientific name, or synonym to its id. Matching
// ignores case.
func (d *Dataset) Resolve(name string) (string, bool) {
	id, ok := d.names[strings.ToLower(strings.TrimSpace(name))]
	return id, ok
}

// ValidateObservation checks every observed value against the vocabulary and
// the month hint against the calendar.
func (d *Dataset) ValidateObservation(obs Observation) error {
	if obs.Month < 0 || obs.Month > 12 {
		return domain.InvalidFeatureValueError{Feature: "month", Value: fmt.Sprint(obs.Month), Reason: "month must be 0..12"}
	}
	names := make([]string, 0, len(obs.Features))
	for name := range obs.Features {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := d.vocab.Check(name, obs.Features[name]); err != nil {
			return err
		}
	}
	return nil
}
