package matching

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"fenrir/internal/book"
)

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func limit(account string, side book.Side, qty, price string) *book.Order {
	p := dec(price)
	return &book.Order{AccountID: account, Side: side, Kind: book.Limit, Quantity: dec(qty), Price: &p, Timestamp: time.Unix(0, 0)}
}

func market(account string, side book.Side, qty string) *book.Order {
	return &book.Order{AccountID: account, Side: side, Kind: book.Market, Quantity: dec(qty), Timestamp: time.Unix(0, 0)}
}

func TestSelectDistinctPair_SkipsSelfTrade(t *testing.T) {
	buys := []*book.Order{limit("A", book.Buy, "1", "150"), limit("B", book.Buy, "1", "150")}
	sells := []*book.Order{limit("A", book.Sell, "1", "150"), limit("B", book.Sell, "1", "150")}

	bi, si, found := selectDistinctPair(buys, sells)
	assert.True(t, found)
	// A's buy can't trade against A's sell (index 0), so it pairs with B's
	// sell (index 1) before falling through to B's buy.
	assert.Equal(t, 0, bi)
	assert.Equal(t, 1, si)
}

func TestSelectDistinctPair_NoneWhenEveryPairSharesAnAccount(t *testing.T) {
	buys := []*book.Order{limit("A", book.Buy, "1", "150")}
	sells := []*book.Order{limit("A", book.Sell, "1", "150")}

	_, _, found := selectDistinctPair(buys, sells)
	assert.False(t, found)
}

func TestExecutionPrice_MarketVsMarketWithNoLastTradeDoesNotMatch(t *testing.T) {
	buy := market("A", book.Buy, "1")
	sell := market("B", book.Sell, "1")

	_, matched := executionPrice(buy, sell, nil)
	assert.False(t, matched)
}

func TestExecutionPrice_MarketVsMarketUsesLastTradePrice(t *testing.T) {
	buy := market("A", book.Buy, "1")
	sell := market("B", book.Sell, "1")
	last := dec("142.50")

	price, matched := executionPrice(buy, sell, &last)
	require := assert.New(t)
	require.True(matched)
	require.True(price.Equal(last))
}

func TestExecutionPrice_MarketBuyTakesSellLimitPrice(t *testing.T) {
	buy := market("A", book.Buy, "1")
	sell := limit("B", book.Sell, "1", "148")

	price, matched := executionPrice(buy, sell, nil)
	assert.True(t, matched)
	assert.True(t, price.Equal(dec("148")))
}

func TestExecutionPrice_MarketSellTakesBuyLimitPrice(t *testing.T) {
	buy := limit("A", book.Buy, "1", "152")
	sell := market("B", book.Sell, "1")

	price, matched := executionPrice(buy, sell, nil)
	assert.True(t, matched)
	assert.True(t, price.Equal(dec("152")))
}

func TestExecutionPrice_CrossingLimitOrdersTradeAtSellPrice(t *testing.T) {
	buy := limit("A", book.Buy, "1", "150")
	sell := limit("B", book.Sell, "1", "150")

	price, matched := executionPrice(buy, sell, nil)
	assert.True(t, matched)
	assert.True(t, price.Equal(dec("150")))
}

func TestExecutionPrice_NonCrossingLimitOrdersDoNotMatch(t *testing.T) {
	buy := limit("A", book.Buy, "1", "149")
	sell := limit("B", book.Sell, "1", "150")

	_, matched := executionPrice(buy, sell, nil)
	assert.False(t, matched)
}
