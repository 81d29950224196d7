// Package account is the account store (C2): per-account cash balance and
// share positions, persisted after every mutation.
package account

import (
	"errors"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"fenrir/internal/storage"
)

// ErrUnknownAccount is returned by Get in strict mode when the account has
// never been created, per the §9 open question on auto-creation.
var ErrUnknownAccount = errors.New("account: unknown account")

// Account is the per-account ledger state. Positions holding a zero quantity
// are removed rather than kept as an explicit zero entry (invariant 2-adjacent
// bookkeeping rule carried from the order-quantity invariant).
type Account struct {
	Balance   decimal.Decimal            `json:"balance"`
	Positions map[string]decimal.Decimal `json:"positions"`
}

func newAccount(defaultBalance decimal.Decimal) Account {
	return Account{
		Balance:   defaultBalance,
		Positions: make(map[string]decimal.Decimal),
	}
}

// Position returns the held quantity for ticker, zero if none is held.
func (a Account) Position(ticker string) decimal.Decimal {
	if qty, ok := a.Positions[ticker]; ok {
		return qty
	}
	return decimal.Zero
}

// file is the on-disk shape of the accounts file: a flat object keyed by
// account ID, per §6.2.
type file map[string]Account

// Store wraps a JSON repository with the auto-create-or-fail semantics
// described in §4.2 and §9.
type Store struct {
	mu             sync.Mutex
	repo           *storage.Repository[file]
	accounts       file
	DefaultBalance decimal.Decimal
	Strict         bool
}

// Option configures a Store at construction.
type Option func(*Store)

// WithDefaultBalance sets the balance assigned to an auto-created account.
func WithDefaultBalance(balance decimal.Decimal) Option {
	return func(s *Store) { s.DefaultBalance = balance }
}

// WithStrictAccounts makes Get return ErrUnknownAccount instead of
// auto-creating, per the §9 design note that auto-create is the default
// but an implementation MAY opt into strict mode.
func WithStrictAccounts() Option {
	return func(s *Store) { s.Strict = true }
}

// NewStore loads accounts from path (treating a missing file as empty state)
// and returns a ready Store.
func NewStore(path string, opts ...Option) (*Store, error) {
	s := &Store{
		repo:           storage.NewRepository[file](path),
		DefaultBalance: decimal.NewFromInt(10000),
	}
	for _, opt := range opts {
		opt(s)
	}

	var loaded file
	ok, err := s.repo.Load(&loaded)
	if err != nil {
		return nil, err
	}
	if ok {
		s.accounts = loaded
	} else {
		s.accounts = file{}
	}
	return s, nil
}

// Get returns the account for accountID, auto-creating and persisting it
// with DefaultBalance unless Strict is set, in which case an unknown
// account yields ErrUnknownAccount.
func (s *Store) Get(accountID string) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if acct, ok := s.accounts[accountID]; ok {
		if acct.Positions == nil {
			acct.Positions = make(map[string]decimal.Decimal)
			s.accounts[accountID] = acct
		}
		return acct, nil
	}
	if s.Strict {
		return Account{}, ErrUnknownAccount
	}

	acct := newAccount(s.DefaultBalance)
	s.accounts[accountID] = acct
	if err := s.persistLocked(); err != nil {
		// Roll back the in-memory insert so state matches disk on failure.
		delete(s.accounts, accountID)
		return Account{}, err
	}
	log.Debug().Str("account_id", accountID).Msg("auto-created account")
	return acct, nil
}

// Update replaces the stored record for accountID and persists it. Positions
// at exactly zero are pruned before the write, per invariant 2's sibling
// rule for account bookkeeping.
func (s *Store) Update(accountID string, acct Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pruned := make(map[string]decimal.Decimal, len(acct.Positions))
	for ticker, qty := range acct.Positions {
		if qty.IsZero() {
			continue
		}
		pruned[ticker] = qty
	}
	acct.Positions = pruned

	s.accounts[accountID] = acct
	return s.persistLocked()
}

// AccountView pairs an account ID with its state, used by All for
// diagnostics enumeration.
type AccountView struct {
	AccountID string
	Account   Account
}

// All enumerates every known account, sorted by ID for deterministic output.
func (s *Store) All() []AccountView {
	s.mu.Lock()
	defer s.mu.Unlock()

	views := make([]AccountView, 0, len(s.accounts))
	for id, acct := range s.accounts {
		views = append(views, AccountView{AccountID: id, Account: acct})
	}
	sort.Slice(views, func(i, j int) bool { return views[i].AccountID < views[j].AccountID })
	return views
}

// Reset clears every account and sets defaultBalance as the balance of
// accounts auto-created afterwards, used by clear_all.
func (s *Store) Reset(defaultBalance decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.DefaultBalance = defaultBalance
	s.accounts = file{}
	return s.persistLocked()
}

func (s *Store) persistLocked() error {
	return s.repo.Save(s.accounts)
}
