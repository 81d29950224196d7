// Package matching is the matching engine (C5): price-time priority,
// execution-price selection, self-trade prevention, partial fills, and
// balance/position settlement through the account store and trade ledger.
package matching

import (
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"fenrir/internal/account"
	"fenrir/internal/book"
	"fenrir/internal/clock"
	"fenrir/internal/ledger"
)

// StopActivator is invoked after every fill that changes a ticker's last
// trade price, so stop orders can be triggered. Defined here (rather than
// imported from internal/stopactivator) so the two packages can hold
// non-owning handles to each other without an import cycle — the exchange
// façade wires the concrete types together.
type StopActivator interface {
	OnFill(ticker string, lastTradePrice decimal.Decimal) error
}

// Engine runs the §4.5 matching loop for a single book. It borrows
// non-owning references to the book, account store, and ledger; the
// exchange façade is the sole owner of that shared state (§9).
type Engine struct {
	Books     *book.Manager
	Accounts  *account.Store
	Ledger    *ledger.Ledger
	Clock     clock.Clock
	Activator StopActivator
	Log       zerolog.Logger
}

// New builds an Engine. Activator may be set after construction via
// SetActivator once the stop activator itself is built, breaking the
// construction cycle between the two components.
func New(books *book.Manager, accounts *account.Store, tradeLedger *ledger.Ledger, clk clock.Clock, log zerolog.Logger) *Engine {
	return &Engine{Books: books, Accounts: accounts, Ledger: tradeLedger, Clock: clk, Log: log}
}

// SetActivator wires the stop activator in after both it and the engine
// have been constructed (they hold handles to each other).
func (e *Engine) SetActivator(activator StopActivator) {
	e.Activator = activator
}

// Match runs the §4.5 algorithm to completion for ticker: it repeatedly
// selects the highest-priority crossing buy/sell pair (skipping self-trades
// per step 2), prices the pair per the 2×2 table, evicts orders that fail
// balance/position checks, and settles every fill atomically through the
// account store and trade ledger until no further match is possible.
func (e *Engine) Match(ticker string) error {
	for {
		buys := e.Books.BuyPriority(ticker)
		sells := e.Books.SellPriority(ticker)
		if len(buys) == 0 || len(sells) == 0 {
			return nil
		}

		bi, si, found := selectDistinctPair(buys, sells)
		if !found {
			// Every remaining pair shares an account: self-trade prevention
			// halts matching rather than crossing them (invariant 5).
			return nil
		}
		buyOrder, sellOrder := buys[bi], sells[si]

		last := e.Books.LastTradePrice(ticker)
		price, matched := executionPrice(buyOrder, sellOrder, last)
		if !matched {
			return nil
		}

		quantity := decimal.Min(buyOrder.Quantity, sellOrder.Quantity)

		buyerAcct, err := e.Accounts.Get(buyOrder.AccountID)
		if err != nil {
			return err
		}
		if buyerAcct.Balance.LessThan(quantity.Mul(price)) {
			e.Log.Debug().
				Str("ticker", ticker).
				Str("order_id", buyOrder.OrderID).
				Msg("evicting buy order: insufficient funds at match time")
			e.Books.RemoveOrder(ticker, buyOrder)
			if err := e.Books.Persist(); err != nil {
				return err
			}
			continue
		}

		sellerAcct, err := e.Accounts.Get(sellOrder.AccountID)
		if err != nil {
			return err
		}
		if sellerAcct.Position(ticker).LessThan(quantity) {
			e.Log.Debug().
				Str("ticker", ticker).
				Str("order_id", sellOrder.OrderID).
				Msg("evicting sell order: insufficient shares at match time")
			e.Books.RemoveOrder(ticker, sellOrder)
			if err := e.Books.Persist(); err != nil {
				return err
			}
			continue
		}

		if err := e.settle(ticker, buyOrder, sellOrder, buyerAcct, sellerAcct, quantity, price); err != nil {
			return err
		}

		if e.Activator != nil && (last == nil || !last.Equal(price)) {
			if err := e.Activator.OnFill(ticker, price); err != nil {
				return err
			}
		}
	}
}

// settle applies one fill: debits/credits both accounts, records the
// executed trade, decrements both order quantities, removes any order that
// reached zero, updates the last trade price, and persists every mutated
// aggregate (invariant 3, 4, 6).
func (e *Engine) settle(
	ticker string,
	buyOrder, sellOrder *book.Order,
	buyerAcct, sellerAcct account.Account,
	quantity, price decimal.Decimal,
) error {
	cost := quantity.Mul(price)

	buyerAcct.Balance = buyerAcct.Balance.Sub(cost)
	if buyerAcct.Positions == nil {
		buyerAcct.Positions = map[string]decimal.Decimal{}
	}
	buyerAcct.Positions[ticker] = buyerAcct.Position(ticker).Add(quantity)

	sellerAcct.Balance = sellerAcct.Balance.Add(cost)
	sellerAcct.Positions[ticker] = sellerAcct.Position(ticker).Sub(quantity)

	if err := e.Accounts.Update(buyOrder.AccountID, buyerAcct); err != nil {
		return err
	}
	if err := e.Accounts.Update(sellOrder.AccountID, sellerAcct); err != nil {
		return err
	}

	trade := ledger.ExecutedTrade{
		Ticker:        ticker,
		Price:         price,
		Quantity:      quantity,
		BuyAccountID:  buyOrder.AccountID,
		SellAccountID: sellOrder.AccountID,
		Timestamp:     e.Clock.Now(),
	}
	if _, err := e.Ledger.Record(trade); err != nil {
		return err
	}

	buyOrder.Quantity = buyOrder.Quantity.Sub(quantity)
	sellOrder.Quantity = sellOrder.Quantity.Sub(quantity)
	if buyOrder.Quantity.IsZero() {
		e.Books.RemoveOrder(ticker, buyOrder)
	}
	if sellOrder.Quantity.IsZero() {
		e.Books.RemoveOrder(ticker, sellOrder)
	}
	e.Books.SetLastTradePrice(ticker, price)

	return e.Books.Persist()
}

// selectDistinctPair finds the lexicographically first (buyIdx, sellIdx)
// pair, scanning buy indices outer and sell indices inner in priority
// order, whose accounts differ (§5 ordering guarantees, §4.5 step 2).
func selectDistinctPair(buys, sells []*book.Order) (buyIdx, sellIdx int, found bool) {
	for i, b := range buys {
		for j, s := range sells {
			if b.AccountID != s.AccountID {
				return i, j, true
			}
		}
	}
	return 0, 0, false
}

// executionPrice implements the §4.5 2×2 table. matched is false when the
// pair cannot trade: market-vs-market with no established last trade price,
// or non-crossing limit-vs-limit.
func executionPrice(buyOrder, sellOrder *book.Order, lastTradePrice *decimal.Decimal) (decimal.Decimal, bool) {
	buyIsMarket := buyOrder.Kind == book.Market
	sellIsMarket := sellOrder.Kind == book.Market

	switch {
	case buyIsMarket && sellIsMarket:
		if lastTradePrice == nil {
			return decimal.Zero, false
		}
		return *lastTradePrice, true
	case buyIsMarket && !sellIsMarket:
		return *sellOrder.Price, true
	case !buyIsMarket && sellIsMarket:
		return *buyOrder.Price, true
	default:
		if buyOrder.Price.GreaterThanOrEqual(*sellOrder.Price) {
			return *sellOrder.Price, true
		}
		return decimal.Zero, false
	}
}
