// Package refdata is the reference-data collaborator (C1): a fixed universe
// of tradable tickers with a seed price each. It is pure and never mutates.
package refdata

import "github.com/shopspring/decimal"

// Store answers ticker validity and initial-price queries against a fixed
// universe, built once at construction.
type Store struct {
	prices map[string]decimal.Decimal
}

// Default mirrors the teacher's Equities asset type with a small, literal
// universe in place of a market-data feed.
func Default() *Store {
	return New(map[string]decimal.Decimal{
		"AAPL": decimal.NewFromInt(150),
		"MSFT": decimal.NewFromInt(300),
		"GOOG": decimal.NewFromInt(120),
		"AMZN": decimal.NewFromInt(130),
		"TSLA": decimal.NewFromInt(250),
	})
}

// New builds a Store from an explicit ticker → seed price map.
func New(seedPrices map[string]decimal.Decimal) *Store {
	prices := make(map[string]decimal.Decimal, len(seedPrices))
	for ticker, price := range seedPrices {
		prices[ticker] = price
	}
	return &Store{prices: prices}
}

// IsValidTicker reports whether ticker belongs to the fixed universe.
func (s *Store) IsValidTicker(ticker string) bool {
	_, ok := s.prices[ticker]
	return ok
}

// InitialPrice returns the seed price for ticker and whether it is known.
func (s *Store) InitialPrice(ticker string) (decimal.Decimal, bool) {
	p, ok := s.prices[ticker]
	return p, ok
}

// Tickers lists the supported universe, sorted is left to the caller.
func (s *Store) Tickers() []string {
	tickers := make([]string, 0, len(s.prices))
	for ticker := range s.prices {
		tickers = append(tickers, ticker)
	}
	return tickers
}
