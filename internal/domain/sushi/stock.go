package sushi

// Operation names a stock mutation.
type Operation string

const (
	OperationPurchase Operation = "purchase"
	OperationRestock  Operation = "restock"
)

// Outcome describes the state a stock mutation left behind.
type Outcome struct {
	Key       string
	Requested int
	Applied   int
	Stock     int
	Sold      int
	Attempts  int
}

// Clamped reports whether fewer units were applied than requested.
func (o Outcome) Clamped() bool { return o.Applied < o.Requested }

// PlanPurchase decides how many units a purchase takes from stock.
// No partial purchase is ever planned.
func PlanPurchase(key string, stock, quantity int) (int, error) {
	if quantity <= 0 {
		return 0, ErrInvalidQuantity
	}
	switch {
	case stock <= 0:
		return 0, &StockError{Kind: KindOutOfStock, Key: key, Requested: quantity}
	case stock < quantity:
		return 0, &StockError{Kind: KindTooMuchDemand, Key: key, Requested: quantity, Available: stock}
	}
	return quantity, nil
}

// PlanRestock decides how many units a restock adds.
//
// When stock+quantity overflows maxStock the returned amount fills the record
// to maxStock and the error is KindNoPlaceAvailable; the caller must still
// apply the returned amount.
func PlanRestock(key string, stock, maxStock, quantity int) (int, error) {
	if quantity <= 0 {
		return 0, ErrInvalidQuantity
	}
	if stock >= maxStock {
		return 0, &StockError{Kind: KindTooMuchStock, Key: key, Requested: quantity, Available: stock}
	}
	if room := maxStock - stock; quantity > room {
		return room, &StockError{Kind: KindNoPlaceAvailable, Key: key, Requested: quantity, Available: stock, Applied: room}
	}
	return quantity, nil
}
