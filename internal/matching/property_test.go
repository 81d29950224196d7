package matching

import (
	"fmt"
	"math/rand"
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
	"fenrir/internal/ledger"
	"fenrir/internal/refdata"
)

// TestMatch_RandomOrderStreamsPreserveInvariants drives the engine through
// random buy/sell order streams and checks, after every submission, the two
// invariants spec.md §8 cares about: no balance or position ever goes
// negative, and total cash across every account is conserved (cash only
// moves between a buyer and a seller; matching never creates or destroys
// it). The stream is generated from a locally seeded *rand.Rand rather than
// the math/rand package-level source, so runs are reproducible without
// mutating any shared global state.
func TestMatch_RandomOrderStreamsPreserveInvariants(t *testing.T) {
	const (
		accounts = 6
		tickers  = 2
		rounds   = 400
		seed     = 20260731
	)

	rng := rand.New(rand.NewSource(seed))
	tickerUniverse := []string{"AAPL", "MSFT"}[:tickers]

	seedPrices := map[string]decimal.Decimal{}
	for _, ticker := range tickerUniverse {
		seedPrices[ticker] = decimal.NewFromInt(100)
	}
	ref := refdata.New(seedPrices)

	dir := t.TempDir()
	clk := clock.NewFixed(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	acctStore, err := account.NewStore(filepath.Join(dir, "accounts.json"), account.WithDefaultBalance(decimal.NewFromInt(1_000_000)))
	require.NoError(t, err)

	accountIDs := make([]string, accounts)
	startingTotal := decimal.Zero
	for i := range accountIDs {
		accountIDs[i] = fmt.Sprintf("acct-%d", i)
		acct, err := acctStore.Get(accountIDs[i])
		require.NoError(t, err)
		startingTotal = startingTotal.Add(acct.Balance)

		// Seed every account with a modest starting position so sells have
		// something to draw down without every order being rejected at
		// submit time for insufficient shares.
		positions := map[string]decimal.Decimal{}
		for _, ticker := range tickerUniverse {
			positions[ticker] = decimal.NewFromInt(500)
		}
		require.NoError(t, acctStore.Update(accountIDs[i], account.Account{Balance: acct.Balance, Positions: positions}))
	}

	books, err := book.NewManager(filepath.Join(dir, "book.json"), ref, acctStore, clk)
	require.NoError(t, err)
	tradeLedger, err := ledger.NewLedger(filepath.Join(dir, "trades.json"))
	require.NoError(t, err)
	engine := New(books, acctStore, tradeLedger, clk, zerolog.Nop())

	for round := 0; round < rounds; round++ {
		ticker := tickerUniverse[rng.Intn(len(tickerUniverse))]
		acctID := accountIDs[rng.Intn(len(accountIDs))]

		var side book.Side
		if rng.Intn(2) == 0 {
			side = book.Buy
		} else {
			side = book.Sell
		}

		var kind book.Kind
		if rng.Intn(2) == 0 {
			kind = book.Market
		} else {
			kind = book.Limit
		}

		qty := decimal.NewFromInt(int64(1 + rng.Intn(20)))
		o := book.Order{
			AccountID: acctID,
			Ticker:    ticker,
			Side:      side,
			Kind:      kind,
			Quantity:  qty,
			Timestamp: clk.Now(),
		}
		if kind == book.Limit {
			// Spread prices around the seed price so some orders cross and
			// some rest, exercising both the eviction and the resting path.
			price := decimal.NewFromInt(int64(90 + rng.Intn(21)))
			o.Price = &price
		}

		_, err := books.Submit(o)
		if err != nil {
			// Rejections (e.g. insufficient shares at submit time) are
			// expected noise in a random stream; the invariants must still
			// hold on the unchanged state.
			assertInvariants(t, acctStore, accountIDs, startingTotal)
			continue
		}
		if !kind.IsStop() {
			require.NoError(t, engine.Match(ticker))
		}

		assertInvariants(t, acctStore, accountIDs, startingTotal)
	}
}

func assertInvariants(t *testing.T, acctStore *account.Store, accountIDs []string, startingTotal decimal.Decimal) {
	t.Helper()

	total := decimal.Zero
	for _, id := range accountIDs {
		acct, err := acctStore.Get(id)
		require.NoError(t, err)

		assert.Falsef(t, acct.Balance.IsNegative(), "account %s has negative balance %s", id, acct.Balance)
		for ticker, qty := range acct.Positions {
			assert.Falsef(t, qty.IsNegative(), "account %s has negative %s position %s", id, ticker, qty)
		}
		total = total.Add(acct.Balance)
	}

	assert.Truef(t, total.Equal(startingTotal), "total cash drifted: want %s, got %s", startingTotal, total)
}
