package core

import (
	"context"
	"fmt"

	"planningsync/pkg/domain"
)

// NewListMembershipRule returns the in-transaction rule enforcing that the
// visible id lists never reference ids absent from the entity maps. The lists
// are views, not sources of truth.
func NewListMembershipRule() domain.Rule {
	return listMembershipRule{}
}

type listMembershipRule struct{}

func (listMembershipRule) Name() string { return "list_membership" }

func (listMembershipRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, id := range view.EventsInList() {
		if _, ok := view.FindEvent(id); !ok {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "list_membership",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("event list references uncached id %s", id),
				Entity:   domain.EntityEvent,
				EntityID: id,
			})
		}
	}
	for _, id := range view.PlanningsInList() {
		if _, ok := view.FindPlanning(id); !ok {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "list_membership",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("planning list references uncached id %s", id),
				Entity:   domain.EntityPlanning,
				EntityID: id,
			})
		}
	}
	return res, nil
}
