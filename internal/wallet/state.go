package wallet

// State is the lifecycle position of a wallet session.
type State string

const (
	StateIdle               State = "IDLE"
	StateStarted            State = "STARTED"
	StateMerchantValidating State = "MERCHANT_VALIDATING"
	StateAwaitingSelection  State = "AWAITING_SELECTION"
	StateAuthorizing        State = "AUTHORIZING"
	StateCompleted          State = "COMPLETED"
	StateCancelled          State = "CANCELLED"
	StateFailed             State = "FAILED"
)

// IsTerminal reports whether no further event is accepted.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateFailed
}

// CanTransitionTo checks if a state transition is valid.
func (s State) CanTransitionTo(to State) bool {
	switch s {
	case StateIdle:
		return to == StateStarted
	case StateStarted:
		return to == StateMerchantValidating ||
			to == StateAwaitingSelection ||
			to == StateAuthorizing ||
			to == StateCancelled ||
			to == StateFailed
	case StateMerchantValidating:
		return to == StateAwaitingSelection ||
			to == StateAuthorizing ||
			to == StateCancelled ||
			to == StateFailed
	case StateAwaitingSelection:
		return to == StateAwaitingSelection ||
			to == StateAuthorizing ||
			to == StateCancelled ||
			to == StateFailed
	case StateAuthorizing:
		return to == StateCompleted ||
			to == StateCancelled ||
			to == StateFailed
	case StateCompleted, StateCancelled, StateFailed:
		return false // Terminal states
	default:
		return false
	}
}

// Event is a wallet SDK callback delivered to a session.
type Event string

const (
	EventStart                 Event = "start"
	EventValidateMerchant      Event = "validate-merchant"
	EventSelectShippingContact Event = "shipping-contact"
	EventSelectShippingMethod  Event = "shipping-method"
	EventSelectPaymentMethod   Event = "payment-method"
	EventPaymentDataChanged    Event = "payment-data"
	EventAuthorize             Event = "authorize"
	EventCancel                Event = "cancel"
)

// Target is the state an event moves a session to when it is accepted.
func (e Event) Target() State {
	switch e {
	case EventStart:
		return StateStarted
	case EventValidateMerchant:
		return StateMerchantValidating
	case EventSelectShippingContact, EventSelectShippingMethod, EventSelectPaymentMethod, EventPaymentDataChanged:
		return StateAwaitingSelection
	case EventAuthorize:
		return StateAuthorizing
	case EventCancel:
		return StateCancelled
	default:
		return ""
	}
}

// needsShipping reports whether the event only makes sense for orders that
// are shipped.
func (e Event) needsShipping() bool {
	switch e {
	case EventSelectShippingContact, EventSelectShippingMethod, EventPaymentDataChanged:
		return true
	default:
		return false
	}
}
