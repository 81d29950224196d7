package stopactivator

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fenrir/internal/account"
	"fenrir/internal/book"
	"fenrir/internal/clock"
	"fenrir/internal/refdata"
)

type recordingMatcher struct {
	matchedTickers []string
}

func (m *recordingMatcher) Match(ticker string) error {
	m.matchedTickers = append(m.matchedTickers, ticker)
	return nil
}

func newTestBooks(t *testing.T) *book.Manager {
	t.Helper()
	ref := refdata.New(map[string]decimal.Decimal{"AAPL": decimal.NewFromInt(150)})
	accounts, err := account.NewStore(filepath.Join(t.TempDir(), "accounts.json"))
	require.NoError(t, err)
	// B holds the shares its stop sells need to pass submit validation.
	require.NoError(t, accounts.Update("B", account.Account{
		Balance:   decimal.Zero,
		Positions: map[string]decimal.Decimal{"AAPL": decimal.NewFromInt(10)},
	}))
	clk := clock.NewFixed(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	books, err := book.NewManager(filepath.Join(t.TempDir(), "book.json"), ref, accounts, clk)
	require.NoError(t, err)
	return books
}

func TestConvert_StopMarketBecomesMarketOrder(t *testing.T) {
	stopPrice := decimal.NewFromInt(145)
	stop := &book.Order{OrderID: "x", Kind: book.StopMarket, StopPrice: &stopPrice, Timestamp: time.Unix(100, 0)}

	converted := convert(stop)
	assert.Equal(t, book.Market, converted.Kind)
	assert.Nil(t, converted.Price)
	assert.Nil(t, converted.StopPrice)
	assert.Equal(t, stop.Timestamp, converted.Timestamp)
}

func TestConvert_StopLimitBecomesLimitOrderKeepingPrice(t *testing.T) {
	stopPrice := decimal.NewFromInt(145)
	limitPrice := decimal.NewFromInt(144)
	stop := &book.Order{OrderID: "x", Kind: book.StopLimit, Price: &limitPrice, StopPrice: &stopPrice}

	converted := convert(stop)
	assert.Equal(t, book.Limit, converted.Kind)
	require.NotNil(t, converted.Price)
	assert.True(t, converted.Price.Equal(limitPrice))
	assert.Nil(t, converted.StopPrice)
}

func TestOnFill_TriggersStopSellAtExactStopPrice(t *testing.T) {
	books := newTestBooks(t)
	stopPrice := decimal.NewFromInt(145)
	_, err := books.Submit(book.Order{
		AccountID: "B", Ticker: "AAPL", Side: book.Sell, Kind: book.StopMarket,
		Quantity: decimal.NewFromInt(10), StopPrice: &stopPrice, Timestamp: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	matcher := &recordingMatcher{}
	a := New(books, matcher, zerolog.Nop())

	require.NoError(t, a.OnFill("AAPL", decimal.NewFromInt(145)))

	assert.Empty(t, books.StopSells("AAPL"))
	assert.Len(t, books.SellPriority("AAPL"), 1)
	assert.Equal(t, []string{"AAPL"}, matcher.matchedTickers)
}

func TestOnFill_DoesNotTriggerStopSellAbovePrice(t *testing.T) {
	books := newTestBooks(t)
	stopPrice := decimal.NewFromInt(145)
	_, err := books.Submit(book.Order{
		AccountID: "B", Ticker: "AAPL", Side: book.Sell, Kind: book.StopMarket,
		Quantity: decimal.NewFromInt(10), StopPrice: &stopPrice, Timestamp: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	matcher := &recordingMatcher{}
	a := New(books, matcher, zerolog.Nop())

	require.NoError(t, a.OnFill("AAPL", decimal.NewFromInt(146)))

	assert.Len(t, books.StopSells("AAPL"), 1)
	assert.Empty(t, matcher.matchedTickers)
}

func TestOnFill_TriggersStopBuyAtExactStopPrice(t *testing.T) {
	books := newTestBooks(t)
	stopPrice := decimal.NewFromInt(155)
	_, err := books.Submit(book.Order{
		AccountID: "A", Ticker: "AAPL", Side: book.Buy, Kind: book.StopMarket,
		Quantity: decimal.NewFromInt(10), StopPrice: &stopPrice, Timestamp: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	matcher := &recordingMatcher{}
	a := New(books, matcher, zerolog.Nop())

	require.NoError(t, a.OnFill("AAPL", decimal.NewFromInt(155)))

	assert.Empty(t, books.StopBuys("AAPL"))
	assert.Len(t, books.BuyPriority("AAPL"), 1)
}
