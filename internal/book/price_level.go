package book

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/tidwall/btree"
)

// priceLevel holds every resting limit order at a single price, in
// time-priority order. This generalizes the teacher's engine.PriceLevel
// (float64 price, []*Order) to decimal-safe prices with timestamp-ordered
// insertion instead of pure append, which matters once stop activation
// re-inserts a converted order preserving its original arrival timestamp.
type priceLevel struct {
	price  decimal.Decimal
	orders []*Order
}

type priceLevels = btree.BTreeG[*priceLevel]

// newBidLevels sorts price levels highest-first, so Min() is best bid.
func newBidLevels() *priceLevels {
	return btree.NewBTreeG(func(a, b *priceLevel) bool {
		return a.price.GreaterThan(b.price)
	})
}

// newAskLevels sorts price levels lowest-first, so Min() is best ask.
func newAskLevels() *priceLevels {
	return btree.NewBTreeG(func(a, b *priceLevel) bool {
		return a.price.LessThan(b.price)
	})
}

// insertOrder places o into levels at its price, preserving the order's
// position in arrival-timestamp order within the level.
func insertOrder(levels *priceLevels, o *Order) {
	key := &priceLevel{price: *o.Price}
	level, ok := levels.GetMut(key)
	if !ok {
		levels.Set(&priceLevel{price: *o.Price, orders: []*Order{o}})
		return
	}
	level.orders = insertByArrival(level.orders, o)
}

// insertByArrival inserts o into orders keeping ascending
// (timestamp, sequence) order, so price-time priority against pre-existing
// orders holds even when o's timestamp predates some already-resting order
// (the stop-activation re-insertion case).
func insertByArrival(orders []*Order, o *Order) []*Order {
	idx := sort.Search(len(orders), func(i int) bool {
		if orders[i].Timestamp.Equal(o.Timestamp) {
			return orders[i].sequence > o.sequence
		}
		return orders[i].Timestamp.After(o.Timestamp)
	})
	orders = append(orders, nil)
	copy(orders[idx+1:], orders[idx:])
	orders[idx] = o
	return orders
}

// removeFromLevels removes o from whichever level holds it, deleting the
// level entirely once it empties.
func removeFromLevels(levels *priceLevels, o *Order) bool {
	if o.Price == nil {
		return false
	}
	key := &priceLevel{price: *o.Price}
	level, ok := levels.GetMut(key)
	if !ok {
		return false
	}
	for i, candidate := range level.orders {
		if candidate != o {
			continue
		}
		level.orders = append(level.orders[:i], level.orders[i+1:]...)
		if len(level.orders) == 0 {
			levels.Delete(key)
		}
		return true
	}
	return false
}

// flatten returns every order across every level, in best-price-first,
// time-priority order within each level.
func flatten(levels *priceLevels) []*Order {
	var out []*Order
	levels.Scan(func(level *priceLevel) bool {
		out = append(out, level.orders...)
		return true
	})
	return out
}

// best returns the top-of-book price, or nil if the side is empty.
func best(levels *priceLevels) *decimal.Decimal {
	level, ok := levels.Min()
	if !ok {
		return nil
	}
	price := level.price
	return &price
}
