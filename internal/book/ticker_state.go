package book

import "github.com/shopspring/decimal"

// tickerState is the per-ticker resting-order state: market-order FIFO
// queues (which always outrank limit orders on their side, per §4.5), a
// limit-order book on each side, and the two stop side-queues.
type tickerState struct {
	buyMarket  []*Order
	sellMarket []*Order
	bids       *priceLevels // limit buys, highest price first
	asks       *priceLevels // limit sells, lowest price first
	stopBuys   []*Order
	stopSells  []*Order

	lastTradePrice *decimal.Decimal
}

func newTickerState() *tickerState {
	return &tickerState{
		bids: newBidLevels(),
		asks: newAskLevels(),
	}
}

// insertResting places a non-stop order into the correct market queue or
// limit book for its side.
func (t *tickerState) insertResting(o *Order) {
	switch {
	case o.Kind == Market && o.Side == Buy:
		t.buyMarket = insertByArrival(t.buyMarket, o)
	case o.Kind == Market && o.Side == Sell:
		t.sellMarket = insertByArrival(t.sellMarket, o)
	case o.Side == Buy:
		insertOrder(t.bids, o)
	default:
		insertOrder(t.asks, o)
	}
}

// removeResting removes o from wherever it rests, reporting whether it was
// found.
func (t *tickerState) removeResting(o *Order) bool {
	switch {
	case o.Kind == Market && o.Side == Buy:
		return removeFromSlice(&t.buyMarket, o)
	case o.Kind == Market && o.Side == Sell:
		return removeFromSlice(&t.sellMarket, o)
	case o.Side == Buy:
		return removeFromLevels(t.bids, o)
	default:
		return removeFromLevels(t.asks, o)
	}
}

func removeFromSlice(orders *[]*Order, o *Order) bool {
	for i, candidate := range *orders {
		if candidate != o {
			continue
		}
		*orders = append((*orders)[:i], (*orders)[i+1:]...)
		return true
	}
	return false
}

// buyPriority returns every resting buy order (market, then limit) in
// best-first priority order: market orders precede all limit buys; among
// limit buys, higher price first, ties by earlier arrival.
func (t *tickerState) buyPriority() []*Order {
	out := make([]*Order, 0, len(t.buyMarket))
	out = append(out, t.buyMarket...)
	out = append(out, flatten(t.bids)...)
	return out
}

// sellPriority mirrors buyPriority for the sell side: market orders first,
// then limit sells lowest price first.
func (t *tickerState) sellPriority() []*Order {
	out := make([]*Order, 0, len(t.sellMarket))
	out = append(out, t.sellMarket...)
	out = append(out, flatten(t.asks)...)
	return out
}

func (t *tickerState) insertStop(o *Order) {
	if o.Side == Buy {
		t.stopBuys = append(t.stopBuys, o)
	} else {
		t.stopSells = append(t.stopSells, o)
	}
}

func (t *tickerState) removeStop(o *Order) bool {
	if o.Side == Buy {
		return removeFromSlice(&t.stopBuys, o)
	}
	return removeFromSlice(&t.stopSells, o)
}
