package core

// NewDefaultRulesEngine builds a rules engine with the built-in content checks.
// None of them block a load; their findings are kept on the dataset report.
func NewDefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(NewEdgeDiscriminationRule())
	engine.Register(NewIsolatedSpeciesRule())
	engine.Register(NewUnusedFeatureRule())
	engine.Register(NewSeasonRecordedRule())
	return engine
}
