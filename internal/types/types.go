package types

type OrderSide string

type OrderStatus string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

const (
	// OrderStatusPending marks an order placed but not yet filled. Pending
	// buys have already debited the account; pending sells reserve quantity.
	OrderStatusPending  OrderStatus = "pending"
	OrderStatusComplete OrderStatus = "complete"
	OrderStatusCanceled OrderStatus = "canceled"
)

func (s OrderSide) Valid() bool {
	return s == OrderSideBuy || s == OrderSideSell
}

// ValidInitial reports whether a status is acceptable on a newly placed
// order. Orders are never created already canceled.
func (s OrderStatus) ValidInitial() bool {
	return s == OrderStatusPending || s == OrderStatusComplete
}
