package payment

import "fmt"

// State is the current belief about an order's payment.
type State string

const (
	StatePending    State = "pending"
	StateProcessing State = "processing"
	StateSuccess    State = "success"
	StateFailed     State = "failed"
	StateVerified   State = "verified"
	StateCancelled  State = "cancelled"
)

var openTargets = []State{StatePending, StateProcessing, StateSuccess, StateFailed, StateVerified, StateCancelled}

var transitions = map[State][]State{
	StatePending:    openTargets,
	StateProcessing: openTargets,
	StateFailed:     openTargets,
	StateSuccess:    {StateVerified, StateCancelled},
	StateVerified:   {StateVerified, StateCancelled},
	StateCancelled:  nil,
}

func (s State) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// IsOpen reports whether a charge may still be attempted.
func (s State) IsOpen() bool {
	return s == StatePending || s == StateProcessing || s == StateFailed
}

func (s State) IsTerminal() bool {
	return s == StateCancelled
}

func CanTransition(from, to State) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

func checkTransition(from, to State) error {
	if !to.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, to)
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}
	return nil
}
