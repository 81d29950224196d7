// Package stopactivator is the stop-order activator (C6): it scans a
// ticker's stop side-queues on every fill and triggers crossings, converting
// stop orders into resting market/limit orders and re-invoking the matching
// engine.
package stopactivator

import (
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"fenrir/internal/book"
)

// Matcher re-invokes matching for a ticker after a stop activation inserts
// a new resting order. Defined here instead of imported from
// internal/matching so the two packages can hold handles to each other
// without an import cycle; the exchange façade satisfies this with
// *matching.Engine.
type Matcher interface {
	Match(ticker string) error
}

// Activator borrows a non-owning handle to the shared book state and the
// matching engine (§9's "one owner, two operators" design).
type Activator struct {
	Books   *book.Manager
	Matcher Matcher
	Log     zerolog.Logger
}

func New(books *book.Manager, matcher Matcher, log zerolog.Logger) *Activator {
	return &Activator{Books: books, Matcher: matcher, Log: log}
}

// OnFill is called after every fill that changes ticker's last trade price
// to p. Every stop-buy with stop_price <= p and every stop-sell with
// stop_price >= p triggers (inclusive comparison, per §8's boundary
// behavior). Recursion through Matcher.Match is bounded because each
// activation removes at least one order from a stop queue and activations
// never add to a stop queue (§4.6).
func (a *Activator) OnFill(ticker string, p decimal.Decimal) error {
	if err := a.triggerSide(ticker, a.Books.StopBuys(ticker), p, func(stop decimal.Decimal) bool {
		return stop.LessThanOrEqual(p)
	}); err != nil {
		return err
	}
	if err := a.triggerSide(ticker, a.Books.StopSells(ticker), p, func(stop decimal.Decimal) bool {
		return stop.GreaterThanOrEqual(p)
	}); err != nil {
		return err
	}
	return nil
}

func (a *Activator) triggerSide(ticker string, stops []*book.Order, p decimal.Decimal, crosses func(decimal.Decimal) bool) error {
	for _, stop := range stops {
		if stop.StopPrice == nil || !crosses(*stop.StopPrice) {
			continue
		}

		a.Log.Info().
			Str("ticker", ticker).
			Str("order_id", stop.OrderID).
			Str("stop_price", stop.StopPrice.String()).
			Str("last_trade_price", p.String()).
			Msg("stop order triggered")

		a.Books.RemoveStopOrder(ticker, stop)

		converted := convert(stop)
		a.Books.InsertResting(ticker, converted)
		if err := a.Books.Persist(); err != nil {
			return err
		}

		if err := a.Matcher.Match(ticker); err != nil {
			return err
		}
	}
	return nil
}

// convert turns a triggered stop order into the resting order it becomes:
// stop_market -> market (drop price and stop_price), stop_limit -> limit
// (keep price as the limit price, drop stop_price). The original timestamp
// is preserved so price-time priority against pre-existing orders holds.
func convert(stop *book.Order) *book.Order {
	converted := *stop
	converted.StopPrice = nil
	switch stop.Kind {
	case book.StopMarket:
		converted.Kind = book.Market
		converted.Price = nil
	case book.StopLimit:
		converted.Kind = book.Limit
		// Price is already the post-trigger limit price.
	}
	return &converted
}
