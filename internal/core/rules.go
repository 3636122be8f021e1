package core

import "planningsync/pkg/domain"

// NewDefaultRulesEngine builds a rules engine with the built-in invariant set.
func NewDefaultRulesEngine() *RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(NewLockConsistencyRule())
	engine.Register(NewListMembershipRule())
	engine.Register(NewEtagPresenceRule())
	return engine
}
