package checkout

type State string

const (
	StateCartReview     State = "cart_review"
	StateAddressPending State = "address_pending"
	StatePaymentPending State = "payment_pending"
	StateSubmitting     State = "submitting"
	StateConfirmed      State = "confirmed"
	StateFailed         State = "failed"
	StateAbandoned      State = "abandoned"
)

var transitions = map[State][]State{
	StateCartReview:     {StateAddressPending, StateAbandoned},
	StateAddressPending: {StatePaymentPending, StateAbandoned},
	StatePaymentPending: {StateSubmitting, StateAbandoned},
	StateSubmitting:     {StateConfirmed, StateFailed},
	StateFailed:         {StatePaymentPending},
}

func CanTransitionTo(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (s State) IsTerminal() bool {
	return s == StateConfirmed || s == StateAbandoned
}

func (s State) String() string {
	return string(s)
}
