package model

type CommissionStatus string

const (
	CommissionHeld     CommissionStatus = "held"
	CommissionApproved CommissionStatus = "approved"
	CommissionPaid     CommissionStatus = "paid"
	CommissionRejected CommissionStatus = "rejected"
	CommissionFailed   CommissionStatus = "failed"
)

// legal transitions of the commission ledger
var commissionTransitions = map[CommissionStatus][]CommissionStatus{
	CommissionHeld:     {CommissionApproved, CommissionRejected},
	CommissionApproved: {CommissionPaid, CommissionFailed, CommissionRejected},
	CommissionFailed:   {CommissionApproved},
}

func (s CommissionStatus) Valid() bool {
	switch s {
	case CommissionHeld, CommissionApproved, CommissionPaid, CommissionRejected, CommissionFailed:
		return true
	}
	return false
}

func (s CommissionStatus) CanTransitionTo(next CommissionStatus) bool {
	for _, allowed := range commissionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s CommissionStatus) Terminal() bool {
	return s == CommissionPaid || s == CommissionRejected
}

type ActorKind string

const (
	ActorSystem ActorKind = "system"
	ActorAdmin  ActorKind = "admin"
)

type Actor struct {
	ID   string
	Kind ActorKind
}

var SystemActor = Actor{ID: "system", Kind: ActorSystem}

func AdminActor(id string) Actor {
	if id == "" {
		id = "anonymous-admin"
	}
	return Actor{ID: id, Kind: ActorAdmin}
}
