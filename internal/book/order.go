// Package book is the order book (C4): per-ticker resting buy/sell queues
// and stop-order side-queues, submit/cancel validation, and persistence of
// the unmatched state.
package book

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of an order.
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Sell {
		return "sell"
	}
	return "buy"
}

func (s Side) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Side) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	switch str {
	case "buy":
		*s = Buy
	case "sell":
		*s = Sell
	default:
		return fmt.Errorf("book: invalid action %q", str)
	}
	return nil
}

// Kind is the order type variant, per §9's "Dynamic order shape" design note:
// orders are modeled as a tagged variant over
// {Market, Limit{price}, StopMarket{stop}, StopLimit{stop, limit}} so that
// validation is total on the variant rather than on loose optional fields.
type Kind int

const (
	Market Kind = iota
	Limit
	StopMarket
	StopLimit
)

func (k Kind) String() string {
	switch k {
	case Market:
		return "market"
	case Limit:
		return "limit"
	case StopMarket:
		return "stop_market"
	case StopLimit:
		return "stop_limit"
	default:
		return "unknown"
	}
}

func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func (k *Kind) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	switch str {
	case "market":
		*k = Market
	case "limit":
		*k = Limit
	case "stop_market":
		*k = StopMarket
	case "stop_limit":
		*k = StopLimit
	default:
		return fmt.Errorf("book: invalid order_type %q", str)
	}
	return nil
}

// IsStop reports whether the kind starts life on a stop side-queue.
func (k Kind) IsStop() bool {
	return k == StopMarket || k == StopLimit
}

// Order is a single buy or sell instruction. Quantity is the remaining
// quantity, decremented by fills; Price is present iff Kind is Limit or
// StopLimit (the post-trigger limit price for StopLimit); StopPrice is
// present iff Kind is StopMarket or StopLimit.
type Order struct {
	OrderID   string
	AccountID string
	Ticker    string
	Side      Side
	Kind      Kind
	Quantity  decimal.Decimal
	Price     *decimal.Decimal
	StopPrice *decimal.Decimal
	Timestamp time.Time

	// sequence breaks ties between orders sharing a timestamp, per the
	// design note that second-granularity timestamps alone are not a safe
	// uniqueness or ordering key.
	sequence uint64
}

type orderWire struct {
	OrderID   string           `json:"order_id"`
	AccountID string           `json:"account_id"`
	Ticker    string           `json:"ticker"`
	Action    Side             `json:"action"`
	OrderType Kind             `json:"order_type"`
	Quantity  decimal.Decimal  `json:"quantity"`
	Price     *decimal.Decimal `json:"price"`
	StopPrice *decimal.Decimal `json:"stop_price"`
	Timestamp time.Time        `json:"timestamp"`
}

func (o Order) MarshalJSON() ([]byte, error) {
	return json.Marshal(orderWire{
		OrderID:   o.OrderID,
		AccountID: o.AccountID,
		Ticker:    o.Ticker,
		Action:    o.Side,
		OrderType: o.Kind,
		Quantity:  o.Quantity,
		Price:     o.Price,
		StopPrice: o.StopPrice,
		Timestamp: o.Timestamp,
	})
}

func (o *Order) UnmarshalJSON(data []byte) error {
	var w orderWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*o = Order{
		OrderID:   w.OrderID,
		AccountID: w.AccountID,
		Ticker:    w.Ticker,
		Side:      w.Action,
		Kind:      w.OrderType,
		Quantity:  w.Quantity,
		Price:     w.Price,
		StopPrice: w.StopPrice,
		Timestamp: w.Timestamp,
	}
	return nil
}

// Ptr returns a pointer to a copy of v, a small helper for building the
// optional Price/StopPrice fields without an addressable local variable.
func Ptr(v decimal.Decimal) *decimal.Decimal {
	return &v
}
