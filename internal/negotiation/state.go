package negotiation

import "fmt"

// Role is decided structurally: receiving ready makes a link the Offerer,
// receiving an offer makes it the Answerer.
type Role int

const (
	Offerer Role = iota
	Answerer
)

func (r Role) String() string {
	switch r {
	case Offerer:
		return "offerer"
	case Answerer:
		return "answerer"
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

// State of a Link.
type State int

const (
	Idle State = iota
	Offering
	AwaitingAnswer
	Answering
	Connecting
	Connected
	Closed
)

var stateNames = [...]string{
	Idle:           "idle",
	Offering:       "offering",
	AwaitingAnswer: "awaiting-answer",
	Answering:      "answering",
	Connecting:     "connecting",
	Connected:      "connected",
	Closed:         "closed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// transitions lists the legal successors of every state. Closed is reachable
// from anywhere and handled separately. Offering and AwaitingAnswer fall
// back to Idle when the link yields during glare.
var transitions = map[State][]State{
	Idle:           {Offering, Answering},
	Offering:       {AwaitingAnswer, Idle},
	AwaitingAnswer: {Connecting, Idle},
	Answering:      {Connecting},
	Connecting:     {Connected},
	Connected:      {},
}

// CanTransition reports whether a link in s may move to next.
func (s State) CanTransition(next State) bool {
	if s == Closed {
		return false
	}
	if next == Closed {
		return true
	}
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
