package core

import (
	"context"
	"fmt"

	"fungiatlas/pkg/domain"
)

// NewIsolatedSpeciesRule logs species without any lookalike edge. Such species
// are treated as unmistakable by identification.
func NewIsolatedSpeciesRule() domain.Rule {
	return isolatedSpeciesRule{}
}

type isolatedSpeciesRule struct{}

func (isolatedSpeciesRule) Name() string { return "species_isolated" }

func (isolatedSpeciesRule) Evaluate(_ context.Context, view domain.RuleView) (domain.Result, error) {
	linked := make(map[string]bool)
	for _, edge := range view.ListEdges() {
		linked[edge.SpeciesA] = true
		linked[edge.SpeciesB] = true
	}
	res := domain.Result{}
	for _, sp := range view.ListSpecies() {
		if linked[sp.ID] {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     "species_isolated",
			Severity: domain.SeverityLog,
			Message:  fmt.Sprintf("species %s has no lookalike edges", sp.ID),
			Entity:   domain.EntitySpecies,
			EntityID: sp.ID,
		})
	}
	return res, nil
}

// NewSeasonRecordedRule warns about species without a season window; they
// overlap every month hint.
func NewSeasonRecordedRule() domain.Rule {
	return seasonRecordedRule{}
}

type seasonRecordedRule struct{}

func (seasonRecordedRule) Name() string { return "season_recorded" }

func (seasonRecordedRule) Evaluate(_ context.Context, view domain.RuleView) (domain.Result, error) {
	res := domain.Result{}
	for _, sp := range view.ListSpecies() {
		if sp.Season.Recorded() {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     "season_recorded",
			Severity: domain.SeverityWarn,
			Message:  fmt.Sprintf("species %s has no season window", sp.ID),
			Entity:   domain.EntitySpecies,
			EntityID: sp.ID,
		})
	}
	return res, nil
}

// NewUnusedFeatureRule logs vocabulary features no species records.
func NewUnusedFeatureRule() domain.Rule {
	return unusedFeatureRule{}
}

type unusedFeatureRule struct{}

func (unusedFeatureRule) Name() string { return "feature_unused" }

func (unusedFeatureRule) Evaluate(_ context.Context, view domain.RuleView) (domain.Result, error) {
	used := make(map[string]bool)
	for _, sp := range view.ListSpecies() {
		for name := range sp.Features {
			used[name] = true
		}
	}
	res := domain.Result{}
	for _, feature := range view.Vocabulary().Features() {
		if used[feature.Name] {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     "feature_unused",
			Severity: domain.SeverityLog,
			Message:  fmt.Sprintf("feature %s is not recorded on any species", feature.Name),
			Entity:   domain.EntityFeature,
			EntityID: feature.Name,
		})
	}
	return res, nil
}
