package exchange

import "errors"

// ErrReversalConflict is returned by DeleteTrade when reversing a trade
// would drive an account's balance or position negative (§4.7, invariant 4).
var ErrReversalConflict = errors.New("exchange: reversal would violate non-negativity")
