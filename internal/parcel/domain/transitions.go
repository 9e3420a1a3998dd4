package domain

// happyPath maps each status to its direct successor on the delivery path.
var happyPath = map[Status]Status{
	StatusRequested:      StatusPickingUp,
	StatusPickingUp:      StatusPickedUp,
	StatusPickedUp:       StatusAtAreaHub,
	StatusAtAreaHub:      StatusInTransit,
	StatusInTransit:      StatusAtDistrictHub,
	StatusAtDistrictHub:  StatusOutForDelivery,
	StatusOutForDelivery: StatusDelivered,
}

// CanTransition validates one edge of the lifecycle graph. prev is the status
// a held or disputed parcel branched from; it is only consulted when resuming.
func CanTransition(current, target Status, prev *Status) bool {
	if current.Terminal() {
		return false
	}
	if current == target {
		// Same-status retries are handled as idempotent no-ops upstream.
		return false
	}

	switch current {
	case StatusOnHold, StatusDisputed:
		if target == StatusReturned {
			return true
		}
		// Resume only to the state the parcel branched from.
		return prev != nil && target == *prev
	}

	switch target {
	case StatusOnHold, StatusDisputed, StatusReturned:
		return true
	}

	return happyPath[current] == target
}
