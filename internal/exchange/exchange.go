// Package exchange is the order lifecycle API (C7): it validates,
// identifies, and routes submissions, owns the shared book/account/ledger
// state, and wires the matching engine and stop activator together as two
// non-owning operators over that state (§9).
package exchange

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"fenrir/internal/account"
	"fenrir/internal/book"
	"fenrir/internal/clock"
	"fenrir/internal/ledger"
	"fenrir/internal/matching"
	"fenrir/internal/refdata"
	"fenrir/internal/stopactivator"
)

// Exchange is the single owner of the per-ticker book state, the account
// store, and the trade ledger. It hands out non-owning references to the
// matching engine and the stop activator so that neither owns the other.
type Exchange struct {
	RefData    *refdata.Store
	Accounts   *account.Store
	Ledger     *ledger.Ledger
	Books      *book.Manager
	Engine     *matching.Engine
	Activator  *stopactivator.Activator
	Clock      clock.Clock
	Log        zerolog.Logger
}

// Config bundles the persisted-file paths and behavior flags covered by the
// §9 open questions.
type Config struct {
	AccountsPath        string
	BookPath            string
	TradesPath          string
	DefaultBalance      decimal.Decimal
	StrictAccounts      bool
}

// New constructs an Exchange wired end to end: C1 reference data, C2
// account store, C3 ledger, C4 book manager, C5 matching engine, C6 stop
// activator, all sharing the same clock and logger.
func New(cfg Config, ref *refdata.Store, clk clock.Clock, log zerolog.Logger) (*Exchange, error) {
	var acctOpts []account.Option
	acctOpts = append(acctOpts, account.WithDefaultBalance(cfg.DefaultBalance))
	if cfg.StrictAccounts {
		acctOpts = append(acctOpts, account.WithStrictAccounts())
	}

	accounts, err := account.NewStore(cfg.AccountsPath, acctOpts...)
	if err != nil {
		return nil, err
	}

	tradeLedger, err := ledger.NewLedger(cfg.TradesPath)
	if err != nil {
		return nil, err
	}

	books, err := book.NewManager(cfg.BookPath, ref, accounts, clk)
	if err != nil {
		return nil, err
	}

	engine := matching.New(books, accounts, tradeLedger, clk, log)
	activator := stopactivator.New(books, engine, log)
	engine.SetActivator(activator)

	return &Exchange{
		RefData:   ref,
		Accounts:  accounts,
		Ledger:    tradeLedger,
		Books:     books,
		Engine:    engine,
		Activator: activator,
		Clock:     clk,
		Log:       log,
	}, nil
}

// SubmitOrder validates and routes order per §6.1. Non-stop orders are
// matched synchronously as part of submission, per §9's resolution of the
// add-vs-match ordering question; stop orders simply land on the stop
// side-queue until triggered.
func (e *Exchange) SubmitOrder(o book.Order) (orderID string, err error) {
	orderID, err = e.Books.Submit(o)
	if err != nil {
		return "", err
	}
	if !o.Kind.IsStop() {
		if err := e.Engine.Match(o.Ticker); err != nil {
			return orderID, err
		}
	}
	return orderID, nil
}

// CancelOrder removes a resting or stop order synchronously, per §4.7/§5.
func (e *Exchange) CancelOrder(accountID, orderID string, isStop bool) error {
	return e.Books.Cancel(accountID, orderID, isStop)
}

// ListOrders returns every resting (non-stop) order, optionally filtered to
// a single ticker.
func (e *Exchange) ListOrders(ticker string) []*book.Order {
	return e.listSide(ticker, false)
}

// ListStopOrders returns every stop order, optionally filtered to a single
// ticker.
func (e *Exchange) ListStopOrders(ticker string) []*book.Order {
	return e.listSide(ticker, true)
}

func (e *Exchange) listSide(ticker string, stop bool) []*book.Order {
	tickers := []string{ticker}
	if ticker == "" {
		tickers = e.Books.Tickers()
	}

	var out []*book.Order
	for _, t := range tickers {
		if stop {
			out = append(out, e.Books.StopBuys(t)...)
			out = append(out, e.Books.StopSells(t)...)
		} else {
			out = append(out, e.Books.BuyPriority(t)...)
			out = append(out, e.Books.SellPriority(t)...)
		}
	}
	return out
}

// ListTrades returns every executed trade still in the ledger.
func (e *Exchange) ListTrades() []ledger.ExecutedTrade {
	return e.Ledger.List()
}

// DeleteTrade reverses an executed trade per §4.7: it re-credits the
// seller's shares and the buyer's cash and symmetrically debits the
// buyer's shares and the seller's cash. A reversal that would drive any
// balance or position negative is rejected and the ledger is left
// unchanged; on success the trade is removed from the ledger.
func (e *Exchange) DeleteTrade(tradeID string) error {
	trade, ok := e.Ledger.Lookup(tradeID)
	if !ok {
		return ledger.ErrNotFound
	}

	buyerAcct, err := e.Accounts.Get(trade.BuyAccountID)
	if err != nil {
		return err
	}
	sellerAcct, err := e.Accounts.Get(trade.SellAccountID)
	if err != nil {
		return err
	}

	cost := trade.Quantity.Mul(trade.Price)

	reversedBuyer := buyerAcct
	reversedBuyer.Balance = buyerAcct.Balance.Add(cost)
	reversedBuyer.Positions = clonePositions(buyerAcct.Positions)
	reversedBuyer.Positions[trade.Ticker] = reversedBuyer.Positions[trade.Ticker].Sub(trade.Quantity)

	reversedSeller := sellerAcct
	reversedSeller.Balance = sellerAcct.Balance.Sub(cost)
	reversedSeller.Positions = clonePositions(sellerAcct.Positions)
	reversedSeller.Positions[trade.Ticker] = reversedSeller.Positions[trade.Ticker].Add(trade.Quantity)

	if reversedBuyer.Balance.IsNegative() || reversedBuyer.Positions[trade.Ticker].IsNegative() {
		return ErrReversalConflict
	}
	if reversedSeller.Balance.IsNegative() || reversedSeller.Positions[trade.Ticker].IsNegative() {
		return ErrReversalConflict
	}

	if _, err := e.Ledger.Remove(tradeID); err != nil {
		return err
	}
	if err := e.Accounts.Update(trade.BuyAccountID, reversedBuyer); err != nil {
		return err
	}
	if err := e.Accounts.Update(trade.SellAccountID, reversedSeller); err != nil {
		return err
	}
	return nil
}

func clonePositions(positions map[string]decimal.Decimal) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(positions)+1)
	for ticker, qty := range positions {
		out[ticker] = qty
	}
	return out
}

// ClearAll removes the persisted books and trades and resets accounts to
// defaultBalance, per §6.1.
func (e *Exchange) ClearAll(defaultBalance decimal.Decimal) error {
	if err := e.Books.Reset(); err != nil {
		return err
	}
	if err := e.Ledger.Clear(); err != nil {
		return err
	}
	return e.Accounts.Reset(defaultBalance)
}

// Account returns the account for accountID, auto-creating it unless
// strict mode is enabled (§4.2).
func (e *Exchange) Account(accountID string) (account.Account, error) {
	return e.Accounts.Get(accountID)
}

// Quote is the §4.4 best_bid_ask/best_price pair for a single ticker: the
// raw top-of-book limit prices, plus each side's best_price under the
// fallback chain (best opposing limit, else last trade price, else the
// reference-data initial price). The fallback values are reference prices;
// a market order does not execute at the initial price.
type Quote struct {
	Bid           *decimal.Decimal
	Ask           *decimal.Decimal
	BestBuyPrice  *decimal.Decimal
	BestSellPrice *decimal.Decimal
}

// Quote returns the current book quote for ticker.
func (e *Exchange) Quote(ticker string) Quote {
	bid, ask := e.Books.BestBidAsk(ticker)
	return Quote{
		Bid:           bid,
		Ask:           ask,
		BestBuyPrice:  e.Books.BestPrice(book.Buy, ticker),
		BestSellPrice: e.Books.BestPrice(book.Sell, ticker),
	}
}

// NewOrderID mirrors the §4.4 canonical scheme for callers constructing an
// order outside of the book package (e.g. the CLI), using the exchange's
// shared clock for the monotonic tie-breaker.
func (e *Exchange) NewOrderID(accountID, ticker string, timestamp time.Time) string {
	return fmt.Sprintf("%s_%s_%d_%d", accountID, ticker, timestamp.Unix(), e.Clock.Sequence())
}
