// Package ledger is the executed-trade ledger (C3): an append-only,
// persisted list of fills supporting lookup and reversal-by-removal.
package ledger

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fenrir/internal/storage"
)

// ErrNotFound is returned by Remove when tradeID is not in the ledger.
var ErrNotFound = errors.New("ledger: trade not found")

// ExecutedTrade is a single fill between a buy order and a sell order.
type ExecutedTrade struct {
	TradeID       string          `json:"trade_id"`
	Ticker        string          `json:"ticker"`
	Price         decimal.Decimal `json:"price"`
	Quantity      decimal.Decimal `json:"quantity"`
	BuyAccountID  string          `json:"buy_account_id"`
	SellAccountID string          `json:"sell_account_id"`
	Timestamp     time.Time       `json:"timestamp"`
}

// Ledger is the persisted, append-only executed-trade log.
type Ledger struct {
	mu     sync.Mutex
	repo   *storage.Repository[[]ExecutedTrade]
	trades []ExecutedTrade
}

// NewLedger loads trades from path, treating a missing file as an empty
// ledger.
func NewLedger(path string) (*Ledger, error) {
	l := &Ledger{repo: storage.NewRepository[[]ExecutedTrade](path)}

	var loaded []ExecutedTrade
	ok, err := l.repo.Load(&loaded)
	if err != nil {
		return nil, err
	}
	if ok {
		l.trades = loaded
	}
	return l, nil
}

// Record appends t to the ledger, assigning a version-4 UUID trade ID if one
// is not already set, and persists the ledger before returning.
func (l *Ledger) Record(t ExecutedTrade) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if t.TradeID == "" {
		t.TradeID = uuid.NewString()
	}
	l.trades = append(l.trades, t)
	if err := l.persistLocked(); err != nil {
		// Roll back the in-memory append so state matches disk on failure.
		l.trades = l.trades[:len(l.trades)-1]
		return "", err
	}
	return t.TradeID, nil
}

// List returns a snapshot of every recorded trade, oldest first.
func (l *Ledger) List() []ExecutedTrade {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]ExecutedTrade, len(l.trades))
	copy(out, l.trades)
	return out
}

// Lookup returns the trade for tradeID without removing it.
func (l *Ledger) Lookup(tradeID string) (ExecutedTrade, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, t := range l.trades {
		if t.TradeID == tradeID {
			return t, true
		}
	}
	return ExecutedTrade{}, false
}

// Remove deletes tradeID from the ledger and persists the result. Returns
// ErrNotFound if no such trade exists; the ledger is left unchanged.
func (l *Ledger) Remove(tradeID string) (ExecutedTrade, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, t := range l.trades {
		if t.TradeID != tradeID {
			continue
		}
		removed := l.trades[i]
		remaining := make([]ExecutedTrade, 0, len(l.trades)-1)
		remaining = append(remaining, l.trades[:i]...)
		remaining = append(remaining, l.trades[i+1:]...)

		prior := l.trades
		l.trades = remaining
		if err := l.persistLocked(); err != nil {
			l.trades = prior
			return ExecutedTrade{}, err
		}
		return removed, nil
	}
	return ExecutedTrade{}, ErrNotFound
}

// Clear empties the ledger, used by clear_all.
func (l *Ledger) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.trades = nil
	return l.persistLocked()
}

func (l *Ledger) persistLocked() error {
	return l.repo.Save(l.trades)
}
