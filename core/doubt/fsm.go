package doubt

// transitions holds the allowed status edges. resolved -> in_progress is the
// single reopen edge and only applies to ai sessions (checked in CanTransition);
// closed and cancelled are terminal.
var transitions = map[Status][]Status{
	StatusPending:    {StatusInProgress, StatusClosed, StatusCancelled},
	StatusInProgress: {StatusResolved, StatusClosed, StatusCancelled},
	StatusResolved:   {StatusInProgress, StatusClosed},
	StatusClosed:     {},
	StatusCancelled:  {},
}

// CanTransition reports whether a session of the given type may move from -> to.
func CanTransition(typ Type, from, to Status) bool {
	if from == to {
		return false
	}
	// reopen is reserved for ai sessions
	if from == StatusResolved && to == StatusInProgress && typ != TypeAI {
		return false
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionSources lists every status a session of the given type may reach
// `to` from; used to build conditional status updates.
func TransitionSources(typ Type, to Status) []Status {
	var from []Status
	for s := range transitions {
		if CanTransition(typ, s, to) {
			from = append(from, s)
		}
	}
	return from
}

// InitialStatus is pending for trainer sessions (awaiting the first trainer
// reply) and in_progress for ai sessions (the responder is already scheduled).
func InitialStatus(typ Type) Status {
	if typ == TypeAI {
		return StatusInProgress
	}
	return StatusPending
}
