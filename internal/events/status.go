package events

type Status string

const (
	StatusScheduled Status = "SCHEDULED"
	StatusCancelled Status = "CANCELLED"
	StatusFinished  Status = "FINISHED"
)

// allowedTransitions is the event status transition table. FINISHED is
// terminal; a cancelled event can be put back on the schedule.
var allowedTransitions = map[Status][]Status{
	StatusScheduled: {StatusCancelled, StatusFinished},
	StatusCancelled: {StatusScheduled},
}

func (s Status) IsValid() bool {
	switch s {
	case StatusScheduled, StatusCancelled, StatusFinished:
		return true
	}
	return false
}

func (s Status) String() string {
	return string(s)
}

// IsTerminal reports whether no further transition is permitted
func (s Status) IsTerminal() bool {
	return s == StatusFinished
}

// CanTransitionTo checks the transition table for the given edge
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
