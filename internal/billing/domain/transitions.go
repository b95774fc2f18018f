package domain

// paymentTransitions is the allowed payment state machine. paid can only move
// to refunded; failed, cancelled and refunded are terminal.
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending: {PaymentStatusPaid, PaymentStatusFailed, PaymentStatusCancelled, PaymentStatusOverdue},
	PaymentStatusOverdue: {PaymentStatusPaid, PaymentStatusFailed, PaymentStatusCancelled},
	PaymentStatusPaid:    {PaymentStatusRefunded},
}

// CanTransition reports whether a payment may move from one status to another.
func CanTransition(from, to PaymentStatus) bool {
	for _, allowed := range paymentTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is allowed from a status.
func IsTerminal(status PaymentStatus) bool {
	return len(paymentTransitions[status]) == 0
}
