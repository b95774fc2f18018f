package domain

import "time"

// Summarize computes the account summary for one patient from the full payment
// set and the active subscription, if any. It is pure and deterministic for
// identical input regardless of slice ordering.
//
// Pending payments without a due date count toward TotalPending but are never
// selected as the next payment. Refunded payments do not count toward
// TotalPaid: a reversed settlement is no longer money held.
func Summarize(payments []Payment, sub *Subscription) PaymentSummary {
	var summary PaymentSummary
	var next *Payment

	for i := range payments {
		p := &payments[i]
		switch p.Status {
		case PaymentStatusPaid:
			summary.TotalPaid += p.Amount
		case PaymentStatusPending:
			summary.TotalPending += p.Amount
			if p.DueDate != nil && earlierDue(p, next) {
				next = p
			}
		case PaymentStatusOverdue:
			summary.TotalOverdue += p.Amount
		}
	}

	if next != nil {
		summary.NextPaymentAmount = next.Amount
		due := *next.DueDate
		summary.NextPaymentDate = &due
	}
	summary.CurrentBalance = summary.TotalPending + summary.TotalOverdue

	if sub != nil {
		status := sub.Status
		summary.SubscriptionStatus = &status
	}
	return summary
}

// earlierDue reports whether candidate should replace current as the next
// payment. Ties on due date break by ascending ID for determinism.
func earlierDue(candidate, current *Payment) bool {
	if current == nil {
		return true
	}
	if candidate.DueDate.Before(*current.DueDate) {
		return true
	}
	if current.DueDate.Before(*candidate.DueDate) {
		return false
	}
	return candidate.ID < current.ID
}

// ApplyOverdue reclassifies pending payments whose due date has elapsed as
// overdue, without mutating the input. This is the read-time counterpart of
// the scheduled transition worker: summaries stay correct even between runs.
func ApplyOverdue(payments []Payment, now time.Time) []Payment {
	out := make([]Payment, len(payments))
	copy(out, payments)
	for i := range out {
		if out[i].Status == PaymentStatusPending && out[i].DueDate != nil && out[i].DueDate.Before(now) {
			out[i].Status = PaymentStatusOverdue
		}
	}
	return out
}
