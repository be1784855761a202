// Package tables maps atlas documents onto normalized SQL rows shared by the
// sqlite and postgres content stores. Row order inside each table is carried
// by explicit position columns so a document round-trips unchanged.
package tables

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"fungiatlas/internal/content"
)

// Names lists every atlas table, parents first.
var Names = []string{
	"atlas_meta",
	"features",
	"feature_values",
	"species",
	"species_features",
	"species_habitats",
	"species_synonyms",
	"species_images",
	"edges",
	"edge_features",
}

// Schema returns the CREATE TABLE statements for every atlas table. The column
// types are understood by both SQLite and Postgres.
func Schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS atlas_meta (
			field TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS features (
			name TEXT PRIMARY KEY,
			description TEXT NOT NULL,
			position INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS feature_values (
			feature TEXT NOT NULL,
			value TEXT NOT NULL,
			position INTEGER NOT NULL,
			PRIMARY KEY (feature, value)
		)`,
		`CREATE TABLE IF NOT EXISTS species (
			id TEXT PRIMARY KEY,
			scientific_name TEXT NOT NULL,
			common_name TEXT NOT NULL,
			edibility TEXT NOT NULL,
			season_from INTEGER NOT NULL,
			season_to INTEGER NOT NULL,
			note TEXT NOT NULL,
			position INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS species_features (
			species_id TEXT NOT NULL,
			feature TEXT NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (species_id, feature)
		)`,
		`CREATE TABLE IF NOT EXISTS species_habitats (
			species_id TEXT NOT NULL,
			habitat TEXT NOT NULL,
			position INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS species_synonyms (
			species_id TEXT NOT NULL,
			synonym TEXT NOT NULL,
			position INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS species_images (
			species_id TEXT NOT NULL,
			image_key TEXT NOT NULL,
			position INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS edges (
			position INTEGER PRIMARY KEY,
			species_a TEXT NOT NULL,
			species_b TEXT NOT NULL,
			note TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS edge_features (
			edge_position INTEGER NOT NULL,
			feature TEXT NOT NULL,
			position INTEGER NOT NULL
		)`,
	}
}

// Execer is satisfied by *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Queryer is satisfied by *sql.DB and *sql.Tx.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Dialect captures the statement differences between SQL backends.
type Dialect struct {
	Name string
	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder func(n int) string
	// Clear returns the statements that empty the given tables.
	Clear func(tables []string) []string
}

// SQLite uses ? placeholders and per-table deletes.
var SQLite = Dialect{
	Name:        "sqlite",
	Placeholder: func(int) string { return "?" },
	Clear: func(tables []string) []string {
		stmts := make([]string, 0, len(tables))
		for i := len(tables) - 1; i >= 0; i-- {
			stmts = append(stmts, "DELETE FROM "+tables[i])
		}
		return stmts
	},
}

// Postgres uses numbered placeholders and a single truncate.
var Postgres = Dialect{
	Name:        "postgres",
	Placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	Clear: func(tables []string) []string {
		return []string{"TRUNCATE TABLE " + strings.Join(tables, ", ")}
	},
}

// Insert renders an INSERT for table and columns.
func (d Dialect) Insert(table string, cols ...string) string {
	marks := make([]string, len(cols))
	for i := range cols {
		marks[i] = d.Placeholder(i + 1)
	}
	return "INSERT INTO " + table + "(" + strings.Join(cols, ",") + ") VALUES(" + strings.Join(marks, ",") + ")"
}

// Apply executes stmts in order.
func Apply(ctx context.Context, exec Execer, stmts []string) error {
	for _, stmt := range stmts {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := exec.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute ddl: %w", err)
		}
	}
	return nil
}

// Write replaces the stored atlas with doc. Callers run it inside a
// transaction.
func Write(ctx context.Context, exec Execer, d Dialect, doc content.Document) error {
	for _, stmt := range d.Clear(Names) {
		if _, err := exec.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clear atlas tables: %w", err)
		}
	}
	w := writer{ctx: ctx, exec: exec, d: d}
	w.row("atlas_meta", []string{"field", "value"}, "version", doc.Version)
	w.row("atlas_meta", []string{"field", "value"}, "title", doc.Title)
	for i, f := range doc.Features {
		w.row("features", []string{"name", "description", "position"}, f.Name, f.Description, i)
		for j, v := range f.Values {
			w.row("feature_values", []string{"feature", "value", "position"}, f.Name, v, j)
		}
	}
	for i, s := range doc.Species {
		var from, to int
		if s.Season != nil {
			from, to = s.Season.From, s.Season.To
		}
		w.row("species",
			[]string{"id", "scientific_name", "common_name", "edibility", "season_from", "season_to", "note", "position"},
			s.ID, s.ScientificName, s.CommonName, s.Edibility, from, to, s.Note, i)
		keys := make([]string, 0, len(s.Features))
		for k := range s.Features {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			w.row("species_features", []string{"species_id", "feature", "value"}, s.ID, k, s.Features[k])
		}
		for j, h := range s.Habitat {
			w.row("species_habitats", []string{"species_id", "habitat", "position"}, s.ID, h, j)
		}
		for j, syn := range s.Synonyms {
			w.row("species_synonyms", []string{"species_id", "synonym", "position"}, s.ID, syn, j)
		}
		for j, img := range s.Images {
			w.row("species_images", []string{"species_id", "image_key", "position"}, s.ID, img, j)
		}
	}
	for i, e := range doc.Edges {
		w.row("edges", []string{"position", "species_a", "species_b", "note"}, i, e.A, e.B, e.Note)
		for j, f := range e.Features {
			w.row("edge_features", []string{"edge_position", "feature", "position"}, i, f, j)
		}
	}
	return w.err
}

type writer struct {
	ctx  context.Context
	exec Execer
	d    Dialect
	err  error
}

func (w *writer) row(table string, cols []string, args ...any) {
	if w.err != nil {
		return
	}
	if _, err := w.exec.ExecContext(w.ctx, w.d.Insert(table, cols...), args...); err != nil {
		w.err = fmt.Errorf("insert %s: %w", table, err)
	}
}

type positioned[T any] struct {
	pos   int
	value T
}

func ordered[T any](in []positioned[T]) []T {
	if len(in) == 0 {
		return nil
	}
	sort.SliceStable(in, func(i, j int) bool { return in[i].pos < in[j].pos })
	out := make([]T, len(in))
	for i, p := range in {
		out[i] = p.value
	}
	return out
}

// Read loads the stored atlas. It returns content.ErrNoContent when nothing
// was saved.
func Read(ctx context.Context, q Queryer) (content.Document, error) {
	var doc content.Document

	if err := scan(ctx, q, "SELECT field, value FROM atlas_meta", func(rows *sql.Rows) error {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return err
		}
		switch key {
		case "version":
			doc.Version = value
		case "title":
			doc.Title = value
		}
		return nil
	}); err != nil {
		return content.Document{}, err
	}

	values := map[string][]positioned[string]{}
	if err := scan(ctx, q, "SELECT feature, value, position FROM feature_values", func(rows *sql.Rows) error {
		var feature, value string
		var pos int
		if err := rows.Scan(&feature, &value, &pos); err != nil {
			return err
		}
		values[feature] = append(values[feature], positioned[string]{pos, value})
		return nil
	}); err != nil {
		return content.Document{}, err
	}
	var features []positioned[content.FeatureRow]
	if err := scan(ctx, q, "SELECT name, description, position FROM features", func(rows *sql.Rows) error {
		var row content.FeatureRow
		var pos int
		if err := rows.Scan(&row.Name, &row.Description, &pos); err != nil {
			return err
		}
		row.Values = ordered(values[row.Name])
		features = append(features, positioned[content.FeatureRow]{pos, row})
		return nil
	}); err != nil {
		return content.Document{}, err
	}
	doc.Features = ordered(features)

	speciesFeatures := map[string]map[string]string{}
	if err := scan(ctx, q, "SELECT species_id, feature, value FROM species_features", func(rows *sql.Rows) error {
		var id, feature, value string
		if err := rows.Scan(&id, &feature, &value); err != nil {
			return err
		}
		if speciesFeatures[id] == nil {
			speciesFeatures[id] = map[string]string{}
		}
		speciesFeatures[id][feature] = value
		return nil
	}); err != nil {
		return content.Document{}, err
	}
	habitats, err := scanList(ctx, q, "SELECT species_id, habitat, position FROM species_habitats")
	if err != nil {
		return content.Document{}, err
	}
	synonyms, err := scanList(ctx, q, "SELECT species_id, synonym, position FROM species_synonyms")
	if err != nil {
		return content.Document{}, err
	}
	images, err := scanList(ctx, q, "SELECT species_id, image_key, position FROM species_images")
	if err != nil {
		return content.Document{}, err
	}
	var species []positioned[content.SpeciesRow]
	if err := scan(ctx, q, "SELECT id, scientific_name, common_name, edibility, season_from, season_to, note, position FROM species", func(rows *sql.Rows) error {
		var row content.SpeciesRow
		var from, to, pos int
		if err := rows.Scan(&row.ID, &row.ScientificName, &row.CommonName, &row.Edibility, &from, &to, &row.Note, &pos); err != nil {
			return err
		}
		if from != 0 && to != 0 {
			row.Season = &content.SeasonRow{From: from, To: to}
		}
		row.Features = speciesFeatures[row.ID]
		row.Habitat = ordered(habitats[row.ID])
		row.Synonyms = ordered(synonyms[row.ID])
		row.Images = ordered(images[row.ID])
		species = append(species, positioned[content.SpeciesRow]{pos, row})
		return nil
	}); err != nil {
		return content.Document{}, err
	}
	doc.Species = ordered(species)

	edgeFeatures := map[int][]positioned[string]{}
	if err := scan(ctx, q, "SELECT edge_position, feature, position FROM edge_features", func(rows *sql.Rows) error {
		var edge, pos int
		var feature string
		if err := rows.Scan(&edge, &feature, &pos); err != nil {
			return err
		}
		edgeFeatures[edge] = append(edgeFeatures[edge], positioned[string]{pos, feature})
		return nil
	}); err != nil {
		return content.Document{}, err
	}
	var edges []positioned[content.EdgeRow]
	if err := scan(ctx, q, "SELECT position, species_a, species_b, note FROM edges", func(rows *sql.Rows) error {
		var row content.EdgeRow
		var pos int
		if err := rows.Scan(&pos, &row.A, &row.B, &row.Note); err != nil {
			return err
		}
		row.Features = ordered(edgeFeatures[pos])
		edges = append(edges, positioned[content.EdgeRow]{pos, row})
		return nil
	}); err != nil {
		return content.Document{}, err
	}
	doc.Edges = ordered(edges)

	if len(doc.Features) == 0 && len(doc.Species) == 0 {
		return content.Document{}, content.ErrNoContent
	}
	return doc, nil
}

func scan(ctx context.Context, q Queryer, query string, fn func(*sql.Rows) error) error {
	table := query[strings.LastIndex(query, " ")+1:]
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("select %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		if err := fn(rows); err != nil {
			return fmt.Errorf("scan %s: %w", table, err)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate %s: %w", table, err)
	}
	return nil
}

func scanList(ctx context.Context, q Queryer, query string) (map[string][]positioned[string], error) {
	out := map[string][]positioned[string]{}
	err := scan(ctx, q, query, func(rows *sql.Rows) error {
		var id, value string
		var pos int
		if err := rows.Scan(&id, &value, &pos); err != nil {
			return err
		}
		out[id] = append(out[id], positioned[string]{pos, value})
		return nil
	})
	return out, err
}
