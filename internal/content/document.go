// Package content defines the raw, row-shaped atlas document exchanged with
// content stores, together with its codecs, row validation, and sources.
// Nothing in this package interprets the rows; the dataset loader in
// internal/core does.
package content

import (
	"errors"
	"maps"
	"slices"
	"strings"
)

// ErrNoContent is returned by stores that have not been given a document yet.
var ErrNoContent = errors.New("no atlas content stored")

// Document is a complete atlas content payload: feature definitions, species
// rows, and lookalike edges.
type Document struct {
	Version  string       `yaml:"version,omitempty" json:"version,omitempty"`
	Title    string       `yaml:"title,omitempty" json:"title,omitempty"`
	Features []FeatureRow `yaml:"features" json:"features" validate:"dive"`
	Species  []SpeciesRow `yaml:"species" json:"species" validate:"dive"`
	Edges    []EdgeRow    `yaml:"edges" json:"edges" validate:"dive"`
}

// FeatureRow defines one feature and its value domain.
type FeatureRow struct {
	Name        string   `yaml:"name" json:"name" validate:"required"`
	Values      []string `yaml:"values" json:"values" validate:"min=1,dive,required"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
}

// SeasonRow is a month interval; From > To wraps the year boundary.
type SeasonRow struct {
	From int `yaml:"from" json:"from" validate:"min=1,max=12"`
	To   int `yaml:"to" json:"to" validate:"min=1,max=12"`
}

// SpeciesRow is one species entry as stored.
type SpeciesRow struct {
	ID             string            `yaml:"id,omitempty" json:"id,omitempty"`
	ScientificName string            `yaml:"scientific_name" json:"scientific_name" validate:"required"`
	CommonName     string            `yaml:"common_name,omitempty" json:"common_name,omitempty"`
	Synonyms       []string          `yaml:"synonyms,omitempty" json:"synonyms,omitempty" validate:"dive,required"`
	Features       map[string]string `yaml:"features" json:"features"`
	Habitat        []string          `yaml:"habitat,omitempty" json:"habitat,omitempty" validate:"dive,required"`
	Season         *SeasonRow        `yaml:"season,omitempty" json:"season,omitempty"`
	Edibility      string            `yaml:"edibility" json:"edibility" validate:"required,oneof=edible poisonous deadly psychoactive-illegal"`
	Images         []string          `yaml:"images,omitempty" json:"images,omitempty"`
	Note           string            `yaml:"note,omitempty" json:"note,omitempty"`
}

// EdgeRow is one lookalike edge as stored.
type EdgeRow struct {
	A        string   `yaml:"a" json:"a"`
	B        string   `yaml:"b" json:"b"`
	Features []string `yaml:"features" json:"features"`
	Note     string   `yaml:"note,omitempty" json:"note,omitempty"`
}

// Clone returns a deep copy of d.
func (d Document) Clone() Document {
	out := Document{Version: d.Version, Title: d.Title}
	for _, f := range d.Features {
		f.Values = slices.Clone(f.Values)
		out.Features = append(out.Features, f)
	}
	for _, s := range d.Species {
		s.Synonyms = slices.Clone(s.Synonyms)
		s.Features = maps.Clone(s.Features)
		s.Habitat = slices.Clone(s.Habitat)
		s.Images = slices.Clone(s.Images)
		if s.Season != nil {
			season := *s.Season
			s.Season = &season
		}
		out.Species = append(out.Species, s)
	}
	for _, e := range d.Edges {
		e.Features = slices.Clone(e.Features)
		out.Edges = append(out.Edges, e)
	}
	return out
}

// Normalize trims whitespace, expands "Name (syn. Other)" scientific names
// into a name plus synonyms, and derives missing species ids from the
// scientific name slug. It returns a new document. Feature keys that collide
// after trimming keep the value of the first key in sorted order; see
// FeatureKeyCollisions.
func Normalize(doc Document) Document {
	out := Document{Version: strings.TrimSpace(doc.Version), Title: strings.TrimSpace(doc.Title)}
	for _, f := range doc.Features {
		row := FeatureRow{Name: strings.TrimSpace(f.Name), Description: strings.TrimSpace(f.Description)}
		for _, v := range f.Values {
			row.Values = append(row.Values, strings.TrimSpace(v))
		}
		out.Features = append(out.Features, row)
	}
	for _, s := range doc.Species {
		name, synonyms := ParseNameLabel(s.ScientificName)
		row := SpeciesRow{
			ID:             strings.TrimSpace(s.ID),
			ScientificName: name,
			CommonName:     strings.TrimSpace(s.CommonName),
			Edibility:      strings.TrimSpace(s.Edibility),
			Note:           strings.TrimSpace(s.Note),
			Synonyms:       appendUnique(nil, synonyms...),
		}
		row.Synonyms = appendUnique(row.Synonyms, trimAll(s.Synonyms)...)
		if row.ID == "" {
			row.ID = Slugify(name)
		}
		if s.Features != nil {
			row.Features = make(map[string]string, len(s.Features))
			for _, k := range slices.Sorted(maps.Keys(s.Features)) {
				name := strings.TrimSpace(k)
				if _, taken := row.Features[name]; !taken {
					row.Features[name] = strings.TrimSpace(s.Features[k])
				}
			}
		}
		row.Habitat = trimAll(s.Habitat)
		row.Images = trimAll(s.Images)
		if s.Season != nil {
			season := *s.Season
			row.Season = &season
		}
		out.Species = append(out.Species, row)
	}
	for _, e := range doc.Edges {
		out.Edges = append(out.Edges, EdgeRow{
			A:        strings.TrimSpace(e.A),
			B:        strings.TrimSpace(e.B),
			Features: trimAll(e.Features),
			Note:     strings.TrimSpace(e.Note),
		})
	}
	return out
}

// FeatureKeyCollisions returns the feature names that appear under more than
// one key once whitespace is trimmed, sorted. Normalize keeps only one of them.
func FeatureKeyCollisions(features map[string]string) []string {
	seen := make(map[string]int, len(features))
	for k := range features {
		seen[strings.TrimSpace(k)]++
	}
	var out []string
	for name, n := range seen {
		if n > 1 {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}

// Merge concatenates documents in order. The first non-empty version and
// title win. Conflicts (duplicate ids or features) are left for the loader
// to report.
func Merge(docs ...Document) Document {
	var out Document
	for _, doc := range docs {
		if out.Version == "" {
			out.Version = doc.Version
		}
		if out.Title == "" {
			out.Title = doc.Title
		}
		out.Features = append(out.Features, doc.Features...)
		out.Species = append(out.Species, doc.Species...)
		out.Edges = append(out.Edges, doc.Edges...)
	}
	return out
}

func trimAll(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, v := range in {
		out = append(out, strings.TrimSpace(v))
	}
	return out
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		if v == "" {
			continue
		}
		dup := false
		for _, existing := range dst {
			if strings.EqualFold(existing, v) {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, v)
		}
	}
	return dst
}
