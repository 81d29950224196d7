package book

import "fmt"

// RejectReason enumerates the structured submit-rejection kinds from §4.4,
// surfaced to the caller as a structured error rather than an exit-code
// difference (§6.1).
type RejectReason int

const (
	ReasonNonPositiveQuantity RejectReason = iota
	ReasonUnknownOrderType
	ReasonMissingPrice
	ReasonUnexpectedPrice
	ReasonMissingStopPrice
	ReasonInsufficientShares
	ReasonUnknownTicker
	ReasonMissingField
	ReasonFutureTimestamp
)

func (r RejectReason) String() string {
	switch r {
	case ReasonNonPositiveQuantity:
		return "quantity must be positive"
	case ReasonUnknownOrderType:
		return "unknown order type"
	case ReasonMissingPrice:
		return "limit price is required for this order type"
	case ReasonUnexpectedPrice:
		return "market orders must not carry a price"
	case ReasonMissingStopPrice:
		return "stop price is required for this order type"
	case ReasonInsufficientShares:
		return "account does not hold enough shares to sell"
	case ReasonUnknownTicker:
		return "unknown ticker"
	case ReasonMissingField:
		return "missing required field"
	case ReasonFutureTimestamp:
		return "timestamp is in the future"
	default:
		return "rejected"
	}
}

// RejectError is returned by Submit when an order fails validation. State
// is left unchanged on rejection.
type RejectError struct {
	Reason RejectReason
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("order rejected: %s", e.Reason)
}

func reject(reason RejectReason) error {
	return &RejectError{Reason: reason}
}

// NotFoundError is returned by Cancel when the targeted order does not
// exist on the indicated side.
type NotFoundError struct {
	OrderID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("order not found: %s", e.OrderID)
}
