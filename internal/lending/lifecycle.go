package lending

import "github.com/mrlokans/librarian/internal/entities"

// Transition names one edge of the borrow lifecycle.
type Transition string

const (
	TransitionRequest Transition = "request"
	TransitionApprove Transition = "approve"
	TransitionReject  Transition = "reject"
	TransitionReturn  Transition = "return"
)

// Rule describes a transition. From is empty for the initial request; a
// Removes rule deletes the record instead of moving it to To.
type Rule struct {
	From    entities.BorrowStatus
	To      entities.BorrowStatus
	Removes bool
}

var lifecycle = map[Transition]Rule{
	TransitionRequest: {To: entities.BorrowStatusPending},
	TransitionApprove: {From: entities.BorrowStatusPending, To: entities.BorrowStatusBorrowed},
	TransitionReject:  {From: entities.BorrowStatusPending, Removes: true},
	TransitionReturn:  {From: entities.BorrowStatusBorrowed, To: entities.BorrowStatusReturned},
}

// RuleFor returns the rule of t. Unknown transitions report false.
func RuleFor(t Transition) (Rule, bool) {
	r, ok := lifecycle[t]
	return r, ok
}

// CanTransition reports whether some transition moves a record from one
// status to another. Returned is terminal.
func CanTransition(from, to entities.BorrowStatus) bool {
	for _, r := range lifecycle {
		if !r.Removes && r.From == from && r.To == to {
			return true
		}
	}
	return false
}

func mustRule(t Transition) Rule {
	r, ok := lifecycle[t]
	if !ok {
		panic("lending: unknown transition " + string(t))
	}
	return r
}
