package enum

// Cart / order lifecycle. A row in order_table starts as an open cart and
// becomes an order the moment checkout moves it past StatusCart; the
// order_number never changes across that transition.
const (
	StatusCart      = "cart"
	StatusPreparing = "preparing"
	StatusReady     = "ready"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

const (
	PaymentStatusPending   = "pending"
	PaymentStatusSucceeded = "succeeded"
	PaymentStatusFailed    = "failed"
)

// allowedTransitions defines valid status transitions.
// Key is current status, value is the set of statuses it can transition to.
var allowedTransitions = map[string][]string{
	StatusCart:      {StatusPreparing},
	StatusPreparing: {StatusReady, StatusCancelled},
	StatusReady:     {StatusCompleted, StatusCancelled},
}

// CanTransition reports whether an order may move from current to next.
func CanTransition(current, next string) bool {
	for _, s := range allowedTransitions[current] {
		if s == next {
			return true
		}
	}
	return false
}

// IsOrderStatus reports whether s is a known lifecycle status.
func IsOrderStatus(s string) bool {
	switch s {
	case StatusCart, StatusPreparing, StatusReady, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}
