package core

import (
	"context"
	"fmt"

	"fungiatlas/pkg/domain"
)

// NewEdgeDiscriminationRule warns about distinguishing features that cannot
// separate the pair because a side does not record them or both record the
// same value.
func NewEdgeDiscriminationRule() domain.Rule {
	return edgeDiscriminationRule{}
}

type edgeDiscriminationRule struct{}

func (edgeDiscriminationRule) Name() string { return "edge_feature_discriminates" }

func (edgeDiscriminationRule) Evaluate(_ context.Context, view domain.RuleView) (domain.Result, error) {
	res := domain.Result{}
	for _, edge := range view.ListEdges() {
		a, _ := view.FindSpecies(edge.SpeciesA)
		b, _ := view.FindSpecies(edge.SpeciesB)
		for _, feature := range edge.DistinguishingFeatures {
			va, okA := a.Value(feature)
			vb, okB := b.Value(feature)
			var problem string
			switch {
			case !okA || !okB:
				problem = "is not recorded on both species"
			case va == vb:
				problem = fmt.Sprintf("has the same value %q on both species", va)
			default:
				continue
			}
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "edge_feature_discriminates",
				Severity: domain.SeverityWarn,
				Message:  fmt.Sprintf("feature %s on edge %s<->%s %s", feature, edge.SpeciesA, edge.SpeciesB, problem),
				Entity:   domain.EntityEdge,
				EntityID: edge.SpeciesA + "|" + edge.SpeciesB,
			})
		}
	}
	return res, nil
}
