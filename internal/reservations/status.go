package reservations

// Status represents the lifecycle state of a reservation
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusPaid      Status = "PAID"
	StatusCancelled Status = "CANCELLED"
)

// allowedTransitions encodes the reservation state machine. PAID and
// CANCELLED are terminal; held inventory is only ever released on the
// single PENDING -> CANCELLED edge.
var allowedTransitions = map[Status][]Status{
	StatusPending:   {StatusPaid, StatusCancelled},
	StatusPaid:      {},
	StatusCancelled: {},
}

// IsValid checks if the status is a valid reservation status
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of the status
func (s Status) String() string {
	return string(s)
}

// IsTerminal reports whether the status admits no further transitions
func (s Status) IsTerminal() bool {
	return len(allowedTransitions[s]) == 0
}

// CanTransitionTo checks if a transition to the target status is allowed
func (s Status) CanTransitionTo(target Status) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}
