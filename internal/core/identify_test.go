package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fungiatlas/pkg/domain"
)

func TestIdentifyPsilocybeTie(t *testing.T) {
	ds := loadDefault(t)
	obs := Observation{Features: map[string]string{"spore_color": "purple-brown", "bruises_blue": "true"}}

	res, err := ds.Identify(obs, "Psilocybe semilanceata", "psilocybe-cyanescens")
	require.NoError(t, err)
	require.Len(t, res.Matches, 2)
	assert.Equal(t, ds.ID(), res.DatasetID)

	// Both record the observed values, so the tie falls back to id order.
	first, second := res.Matches[0], res.Matches[1]
	assert.Equal(t, "psilocybe-cyanescens", first.SpeciesID)
	assert.Equal(t, "psilocybe-semilanceata", second.SpeciesID)
	for _, m := range res.Matches {
		assert.Equal(t, 2, m.Score)
		assert.Equal(t, 2, m.MatchCount)
		assert.Equal(t, 0, m.ConflictCount)
		assert.False(t, m.Eliminated)
	}

	require.Len(t, first.UnresolvedLookalikes, 1)
	assert.Equal(t, UnresolvedLookalike{
		SpeciesID:         "psilocybe-semilanceata",
		ResolvingFeatures: []string{"cap_shape", "substrate"},
	}, first.UnresolvedLookalikes[0])

	// Spore colour already separates semilanceata from both mottlegills.
	assert.Equal(t, []string{"psilocybe-cyanescens", "psilocybe-strictipes"}, second.UnresolvedIDs())
	strictipes := second.UnresolvedLookalikes[1]
	assert.Equal(t, []string{"cap_shape"}, strictipes.ResolvingFeatures)
	assert.Equal(t, "strictipes lacks the pointed papilla", strictipes.Note)
	assert.Empty(t, second.InconsistentLookalikes)
}

func TestIdentifyAmanitaElimination(t *testing.T) {
	ds := loadDefault(t)
	obs := Observation{Features: map[string]string{"ring_striate": "false", "volva_rimmed": "true"}}

	res, err := ds.Identify(obs, "amanita-pantherina", "amanita-excelsa")
	require.NoError(t, err)
	require.Len(t, res.Matches, 2)

	pantherina, excelsa := res.Matches[0], res.Matches[1]
	assert.Equal(t, "amanita-pantherina", pantherina.SpeciesID)
	assert.Equal(t, 2, pantherina.Score)
	assert.False(t, pantherina.Eliminated)

	assert.Equal(t, "amanita-excelsa", excelsa.SpeciesID)
	assert.Equal(t, 2, excelsa.ConflictCount)
	assert.Equal(t, -6, excelsa.Score)
	assert.True(t, excelsa.Eliminated)
	assert.Equal(t, "amanita-pantherina", excelsa.EliminatedBy)

	// The striate ring resolves both pantherina edges.
	assert.Empty(t, pantherina.UnresolvedLookalikes)
	assert.Empty(t, excelsa.UnresolvedLookalikes, "only top ranked candidates carry lookalikes")
}

func TestIdentifyEmptyObservation(t *testing.T) {
	ds := loadDefault(t)
	res, err := ds.Identify(Observation{})
	require.NoError(t, err)
	require.False(t, res.NoCandidates)
	require.Len(t, res.Matches, ds.Len())

	for i, m := range res.Matches {
		assert.Equal(t, 0, m.Score)
		if i > 0 {
			assert.Less(t, res.Matches[i-1].SpeciesID, m.SpeciesID)
		}
		want := ds.Graph().Neighbors(m.SpeciesID)
		assert.Equal(t, want, m.UnresolvedIDs(), m.SpeciesID)
		for j, u := range m.UnresolvedLookalikes {
			edge, err := ds.Graph().EdgeBetween(m.SpeciesID, u.SpeciesID)
			require.NoError(t, err)
			assert.Equal(t, edge.DistinguishingFeatures, m.UnresolvedLookalikes[j].ResolvingFeatures)
		}
	}
}

func TestIdentifyInvalidValue(t *testing.T) {
	ds := loadDefault(t)
	engine := NewEngine(ds)
	before := engine.Dataset()

	_, err := engine.Identify(Observation{Features: map[string]string{"bruises_blue": "maybe"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidFeatureValue))
	var invalid domain.InvalidFeatureValueError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "bruises_blue", invalid.Feature)
	assert.Equal(t, "maybe", invalid.Value)
	assert.Same(t, before, engine.Dataset())

	_, err = engine.Identify(Observation{Features: map[string]string{"odor": "anise"}})
	assert.True(t, errors.Is(err, domain.ErrInvalidFeatureValue))

	_, err = engine.Identify(Observation{Month: 13})
	assert.True(t, errors.Is(err, domain.ErrInvalidFeatureValue))

	// A valid query afterwards is unaffected.
	res, err := engine.Identify(Observation{Features: map[string]string{"spore_color": "white"}})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Matches)
}

func TestIdentifyUnknownCandidate(t *testing.T) {
	ds := loadDefault(t)
	_, err := ds.Identify(Observation{}, "amanita-muscaria", "boletus-edulis")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnknownSpeciesReference))
}

func TestIdentifyNoCandidates(t *testing.T) {
	ds := loadDefault(t)
	// No species grows on glaciers and none fruits in March.
	res, err := ds.Identify(Observation{HabitatHint: []string{"glacier"}, Month: 3})
	require.NoError(t, err)
	assert.True(t, res.NoCandidates)
	assert.Empty(t, res.Matches)
	_, ok := res.Top()
	assert.False(t, ok)
}

func TestIdentifyLooseOverlap(t *testing.T) {
	ds := loadDefault(t)
	res, err := ds.Identify(Observation{HabitatHint: []string{"woodchip-mulch"}, Month: 12})
	require.NoError(t, err)
	// Only cyanescens lists woodchip mulch, and only its season wraps into December.
	require.Len(t, res.Matches, 1)
	assert.Equal(t, "psilocybe-cyanescens", res.Matches[0].SpeciesID)

	res, err = ds.Identify(Observation{HabitatHint: []string{"glacier"}})
	require.NoError(t, err)
	assert.Len(t, res.Matches, ds.Len(), "a missing month hint keeps every species")
}

func TestIdentifyDuplicateCandidatesCollapse(t *testing.T) {
	ds := loadDefault(t)
	res, err := ds.Identify(Observation{}, "Amanita spissa", "amanita-excelsa", "AMANITA EXCELSA")
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, "amanita-excelsa", res.Matches[0].SpeciesID)
}

func TestIdentifyIsIdempotentAndDeterministic(t *testing.T) {
	ds := loadDefault(t)
	obs := Observation{Features: map[string]string{"spore_color": "black", "ring_present": "false"}}
	first, err := ds.Identify(obs)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := ds.Identify(obs)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}

	reloaded := loadDefault(t)
	other, err := reloaded.Identify(obs)
	require.NoError(t, err)
	first.DatasetID, other.DatasetID = "", ""
	assert.Equal(t, first, other, "identical content yields identical rankings")
}

func TestIdentifyConflictNeverRaisesScore(t *testing.T) {
	ds := loadDefault(t)
	base := Observation{Features: map[string]string{"spore_color": "white"}}
	before, err := ds.Identify(base)
	require.NoError(t, err)

	for _, rec := range ds.ListSpecies() {
		recorded, ok := rec.Value("cap_color")
		if !ok {
			continue
		}
		conflicting := "red"
		if recorded == "red" {
			conflicting = "brown"
		}
		after, err := ds.Identify(base.With("cap_color", conflicting), rec.ID)
		require.NoError(t, err)
		prev, ok := before.Find(rec.ID)
		require.True(t, ok)
		assert.LessOrEqual(t, after.Matches[0].Score, prev.Score, rec.ID)
	}
}

func TestIdentifyInconsistentLookalikes(t *testing.T) {
	ds := loadDefault(t)
	// Black spores match neither semilanceata (purple-brown) nor foenisecii (dark-brown).
	obs := Observation{Features: map[string]string{"spore_color": "black"}}
	res, err := ds.Identify(obs, "psilocybe-semilanceata")
	require.NoError(t, err)
	m := res.Matches[0]
	assert.Equal(t, -3, m.Score)
	assert.Equal(t, []string{"panaeolina-foenisecii"}, m.InconsistentLookalikes)
	assert.Equal(t, []string{"psilocybe-cyanescens", "psilocybe-strictipes"}, m.UnresolvedIDs())
}
