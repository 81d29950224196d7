package book

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"fenrir/internal/account"
	"fenrir/internal/clock"
	"fenrir/internal/refdata"
	"fenrir/internal/storage"
)

// bookFile is the persisted shape from §6.2: each queue is keyed by ticker,
// each value a list of orders.
type bookFile struct {
	BuyOrders      map[string][]*Order `json:"buy_orders"`
	SellOrders     map[string][]*Order `json:"sell_orders"`
	StopBuyOrders  map[string][]*Order `json:"stop_buy_orders"`
	StopSellOrders map[string][]*Order `json:"stop_sell_orders"`
}

// Manager owns the resting-order state for every ticker and persists the
// whole set to a single file after every mutation (§4.4, §6.2).
type Manager struct {
	mu       sync.Mutex
	repo     *storage.Repository[bookFile]
	refdata  *refdata.Store
	accounts *account.Store
	clock    clock.Clock
	tickers  map[string]*tickerState
}

// NewManager constructs a Manager and loads any persisted book state from
// path, treating a missing file as empty state.
func NewManager(path string, ref *refdata.Store, accounts *account.Store, clk clock.Clock) (*Manager, error) {
	m := &Manager{
		repo:     storage.NewRepository[bookFile](path),
		refdata:  ref,
		accounts: accounts,
		clock:    clk,
		tickers:  make(map[string]*tickerState),
	}
	for _, ticker := range ref.Tickers() {
		m.tickers[ticker] = newTickerState()
	}

	var loaded bookFile
	ok, err := m.repo.Load(&loaded)
	if err != nil {
		return nil, err
	}
	if ok {
		m.restore(loaded)
	}
	return m, nil
}

func (m *Manager) restore(f bookFile) {
	load := func(byTicker map[string][]*Order, stop bool) {
		for ticker, orders := range byTicker {
			state := m.stateFor(ticker)
			for _, o := range orders {
				o := o
				if o.OrderID == "" {
					o.OrderID = m.nextOrderID(o.AccountID, o.Ticker, o.Timestamp)
				}
				o.sequence = m.clock.Sequence()
				if stop {
					state.insertStop(o)
				} else {
					state.insertResting(o)
				}
			}
		}
	}
	load(f.BuyOrders, false)
	load(f.SellOrders, false)
	load(f.StopBuyOrders, true)
	load(f.StopSellOrders, true)
}

func (m *Manager) stateFor(ticker string) *tickerState {
	state, ok := m.tickers[ticker]
	if !ok {
		state = newTickerState()
		m.tickers[ticker] = state
	}
	return state
}

func (m *Manager) nextOrderID(accountID, ticker string, timestamp time.Time) string {
	return fmt.Sprintf("%s_%s_%d_%d", accountID, ticker, timestamp.Unix(), m.clock.Sequence())
}

// Submit validates and inserts order per the §4.4 rejection rules. Stop
// orders land on the stop side-queue; everything else lands on the resting
// market/limit queues. Submit does not itself invoke matching — the
// Order Lifecycle API (C7) does that for non-stop orders immediately after
// a successful Submit, per §9's resolution of the add/match ordering
// question.
func (m *Manager) Submit(o Order) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.validate(o); err != nil {
		return "", err
	}

	if o.OrderID == "" {
		o.OrderID = m.nextOrderID(o.AccountID, o.Ticker, o.Timestamp)
	}
	o.sequence = m.clock.Sequence()

	order := o
	state := m.stateFor(order.Ticker)
	if order.Kind.IsStop() {
		state.insertStop(&order)
	} else {
		state.insertResting(&order)
	}

	if err := m.persistLocked(); err != nil {
		state.removeResting(&order)
		state.removeStop(&order)
		return "", err
	}
	return order.OrderID, nil
}

func (m *Manager) validate(o Order) error {
	if o.AccountID == "" || o.Ticker == "" {
		return reject(ReasonMissingField)
	}
	if !o.Quantity.IsPositive() {
		return reject(ReasonNonPositiveQuantity)
	}
	switch o.Kind {
	case Market:
		if o.Price != nil {
			return reject(ReasonUnexpectedPrice)
		}
	case Limit:
		if o.Price == nil || !o.Price.IsPositive() {
			return reject(ReasonMissingPrice)
		}
	case StopMarket:
		if o.StopPrice == nil || !o.StopPrice.IsPositive() {
			return reject(ReasonMissingStopPrice)
		}
	case StopLimit:
		if o.Price == nil || !o.Price.IsPositive() {
			return reject(ReasonMissingPrice)
		}
		if o.StopPrice == nil || !o.StopPrice.IsPositive() {
			return reject(ReasonMissingStopPrice)
		}
	default:
		return reject(ReasonUnknownOrderType)
	}

	if !m.refdata.IsValidTicker(o.Ticker) {
		return reject(ReasonUnknownTicker)
	}

	if o.Timestamp.After(m.clock.Now()) {
		return reject(ReasonFutureTimestamp)
	}

	if o.Side == Sell {
		acct, err := m.accounts.Get(o.AccountID)
		if err != nil {
			return err
		}
		if acct.Position(o.Ticker).LessThan(o.Quantity) {
			return reject(ReasonInsufficientShares)
		}
	}
	return nil
}

// Cancel removes the order matching (accountID, orderID) from the
// indicated side (resting if !isStop, else the stop side-queue) across
// every ticker, since the cancel call does not carry a ticker.
func (m *Manager) Cancel(accountID, orderID string, isStop bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, state := range m.tickers {
		var candidates []*Order
		if isStop {
			candidates = append(append([]*Order{}, state.stopBuys...), state.stopSells...)
		} else {
			candidates = append(state.buyPriority(), state.sellPriority()...)
		}
		for _, o := range candidates {
			if o.AccountID != accountID || o.OrderID != orderID {
				continue
			}
			if isStop {
				state.removeStop(o)
			} else {
				state.removeResting(o)
			}
			return m.persistLocked()
		}
	}
	return &NotFoundError{OrderID: orderID}
}

// BestBidAsk returns the best resting limit buy and sell prices for
// ticker, limit orders only.
func (m *Manager) BestBidAsk(ticker string) (bid, ask *decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := m.stateFor(ticker)
	return best(state.bids), best(state.asks)
}

// BestPrice implements §4.4's fallback chain: for a buy, the lowest resting
// sell-limit price; for a sell, the highest resting buy-limit price;
// falling back to last_trade_price, then to the reference-data initial
// price.
func (m *Manager) BestPrice(side Side, ticker string) *decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := m.stateFor(ticker)
	var p *decimal.Decimal
	if side == Buy {
		p = best(state.asks)
	} else {
		p = best(state.bids)
	}
	if p != nil {
		return p
	}
	if state.lastTradePrice != nil {
		return state.lastTradePrice
	}
	if initial, ok := m.refdata.InitialPrice(ticker); ok {
		return &initial
	}
	return nil
}

// --- Accessors used by the matching engine and the stop activator ---
// These operate directly on live *Order pointers held by the book, and the
// caller is expected to persist afterward via Persist.

func (m *Manager) BuyPriority(ticker string) []*Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateFor(ticker).buyPriority()
}

func (m *Manager) SellPriority(ticker string) []*Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateFor(ticker).sellPriority()
}

func (m *Manager) RemoveOrder(ticker string, o *Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stateFor(ticker).removeResting(o)
}

func (m *Manager) InsertResting(ticker string, o *Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stateFor(ticker).insertResting(o)
}

func (m *Manager) StopBuys(ticker string) []*Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Order, len(m.stateFor(ticker).stopBuys))
	copy(out, m.stateFor(ticker).stopBuys)
	return out
}

func (m *Manager) StopSells(ticker string) []*Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Order, len(m.stateFor(ticker).stopSells))
	copy(out, m.stateFor(ticker).stopSells)
	return out
}

func (m *Manager) RemoveStopOrder(ticker string, o *Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stateFor(ticker).removeStop(o)
}

func (m *Manager) LastTradePrice(ticker string) *decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateFor(ticker).lastTradePrice
}

func (m *Manager) SetLastTradePrice(ticker string, price decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stateFor(ticker).lastTradePrice = &price
}

// Persist writes the whole book state to disk, per the invariant that
// persisted state equals in-memory state at every quiescent point.
func (m *Manager) Persist() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.persistLocked()
}

func (m *Manager) persistLocked() error {
	f := bookFile{
		BuyOrders:      make(map[string][]*Order),
		SellOrders:     make(map[string][]*Order),
		StopBuyOrders:  make(map[string][]*Order),
		StopSellOrders: make(map[string][]*Order),
	}
	for ticker, state := range m.tickers {
		f.BuyOrders[ticker] = state.buyPriority()
		f.SellOrders[ticker] = state.sellPriority()
		f.StopBuyOrders[ticker] = append([]*Order{}, state.stopBuys...)
		f.StopSellOrders[ticker] = append([]*Order{}, state.stopSells...)
	}
	return m.repo.Save(f)
}

// Reset clears every ticker's book and persists the emptied state, used by
// clear_all.
func (m *Manager) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for ticker := range m.tickers {
		m.tickers[ticker] = newTickerState()
	}
	return m.persistLocked()
}

// Tickers lists every ticker the manager tracks state for, sorted.
func (m *Manager) Tickers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.tickers))
	for ticker := range m.tickers {
		out = append(out, ticker)
	}
	sort.Strings(out)
	return out
}
