package core

import (
	"context"
	"fmt"

	"planningsync/pkg/domain"
)

// NewEtagPresenceRule returns the in-transaction rule warning on entities
// admitted to the store without the server version token they were last
// observed with. Saves against such an entity cannot thread an If-Match
// header and would bypass optimistic locking.
func NewEtagPresenceRule() domain.Rule {
	return etagPresenceRule{}
}

type etagPresenceRule struct{}

func (etagPresenceRule) Name() string { return "etag_presence" }

func (etagPresenceRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	missing := func(entity domain.EntityType, id string) {
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     "etag_presence",
			Severity: domain.SeverityWarn,
			Message:  fmt.Sprintf("%s %s cached without an etag", entity, id),
			Entity:   entity,
			EntityID: id,
		})
	}
	for _, event := range view.ListEvents() {
		if event.ETag == "" {
			missing(domain.EntityEvent, event.ID)
		}
	}
	for _, plan := range view.ListPlannings() {
		if plan.ETag == "" {
			missing(domain.EntityPlanning, plan.ID)
		}
	}
	for _, assignment := range view.ListAssignments() {
		if assignment.ETag == "" {
			missing(domain.EntityAssignment, assignment.ID)
		}
	}
	return res, nil
}
