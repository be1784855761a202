package core

import "fungiatlas/pkg/domain"

type (
	EntityType          = domain.EntityType
	Severity            = domain.Severity
	Feature             = domain.Feature
	Vocabulary          = domain.Vocabulary
	SpeciesRecord       = domain.SpeciesRecord
	LookalikeEdge       = domain.LookalikeEdge
	EdgeKey             = domain.EdgeKey
	Observation         = domain.Observation
	Resolution          = domain.Resolution
	Match               = domain.Match
	UnresolvedLookalike = domain.UnresolvedLookalike
	Identification      = domain.Identification
	Violation           = domain.Violation
	Result              = domain.Result
	Rule                = domain.Rule
	RuleView            = domain.RuleView
	RulesEngine         = domain.RulesEngine
	RuleViolationError  = domain.RuleViolationError
)

const (
	EntityFeature = domain.EntityFeature
	EntitySpecies = domain.EntitySpecies
	EntityEdge    = domain.EntityEdge
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const (
	Unresolved           = domain.Unresolved
	ResolvedConsistent   = domain.ResolvedConsistent
	ResolvedInconsistent = domain.ResolvedInconsistent
)

// NewRulesEngine constructs an empty rules engine.
func NewRulesEngine() *RulesEngine {
	return domain.NewRulesEngine()
}
