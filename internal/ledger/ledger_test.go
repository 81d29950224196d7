package ledger

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := NewLedger(filepath.Join(t.TempDir(), "trades.json"))
	require.NoError(t, err)
	return l
}

func TestLedger_RecordAssignsTradeID(t *testing.T) {
	l := newTestLedger(t)

	tradeID, err := l.Record(ExecutedTrade{
		Ticker:        "AAPL",
		Price:         decimal.NewFromInt(150),
		Quantity:      decimal.NewFromInt(10),
		BuyAccountID:  "A",
		SellAccountID: "B",
		Timestamp:     time.Unix(0, 0).UTC(),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, tradeID)

	got, ok := l.Lookup(tradeID)
	require.True(t, ok)
	assert.Equal(t, tradeID, got.TradeID)
}

func TestLedger_RecordThenRemoveRestoresEmptyLedger(t *testing.T) {
	l := newTestLedger(t)

	tradeID, err := l.Record(ExecutedTrade{Ticker: "AAPL", Price: decimal.NewFromInt(1), Quantity: decimal.NewFromInt(1)})
	require.NoError(t, err)

	removed, err := l.Remove(tradeID)
	require.NoError(t, err)
	assert.Equal(t, tradeID, removed.TradeID)
	assert.Empty(t, l.List())
}

func TestLedger_RemoveUnknownTradeIsNotFound(t *testing.T) {
	l := newTestLedger(t)
	_, err := l.Remove("nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLedger_ClearEmptiesAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.json")
	l, err := NewLedger(path)
	require.NoError(t, err)

	_, err = l.Record(ExecutedTrade{Ticker: "AAPL", Price: decimal.NewFromInt(1), Quantity: decimal.NewFromInt(1)})
	require.NoError(t, err)
	require.NoError(t, l.Clear())

	reloaded, err := NewLedger(path)
	require.NoError(t, err)
	assert.Empty(t, reloaded.List())
}

func TestLedger_ListReturnsOldestFirstSnapshot(t *testing.T) {
	l := newTestLedger(t)

	id1, err := l.Record(ExecutedTrade{Ticker: "AAPL", Price: decimal.NewFromInt(1), Quantity: decimal.NewFromInt(1)})
	require.NoError(t, err)
	id2, err := l.Record(ExecutedTrade{Ticker: "MSFT", Price: decimal.NewFromInt(2), Quantity: decimal.NewFromInt(2)})
	require.NoError(t, err)

	trades := l.List()
	require.Len(t, trades, 2)
	assert.Equal(t, id1, trades[0].TradeID)
	assert.Equal(t, id2, trades[1].TradeID)

	// Mutating the returned snapshot must not affect the ledger's own state.
	trades[0].Ticker = "TAMPERED"
	fresh := l.List()
	assert.Equal(t, "AAPL", fresh[0].Ticker)
}
