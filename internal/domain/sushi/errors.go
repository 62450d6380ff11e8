package sushi

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("sushi: record not found")
	ErrInvalidKey      = errors.New("sushi: invalid key")
	ErrInvalidStock    = errors.New("sushi: stock must be within [0, max_stock] and max_stock positive")
	ErrInvalidQuantity = errors.New("sushi: quantity must be greater than zero")

	ErrOutOfStock          = errors.New("sushi: out of stock")
	ErrTooMuchDemand       = errors.New("sushi: demand exceeds available stock")
	ErrTooMuchStock        = errors.New("sushi: stock already at maximum")
	ErrNoPlaceAvailable    = errors.New("sushi: restock clamped to maximum stock")
	ErrContentionExhausted = errors.New("sushi: too many concurrent updates")
)

// Kind enumerates the stock failures a purchase or restock can report.
type Kind uint8

const (
	KindOutOfStock Kind = iota + 1
	KindTooMuchDemand
	KindTooMuchStock
	KindNoPlaceAvailable
	KindContentionExhausted
)

func (k Kind) String() string {
	switch k {
	case KindOutOfStock:
		return FailureReasonOutOfStock
	case KindTooMuchDemand:
		return FailureReasonTooMuchDemand
	case KindTooMuchStock:
		return FailureReasonTooMuchStock
	case KindNoPlaceAvailable:
		return FailureReasonNoPlaceAvailable
	case KindContentionExhausted:
		return FailureReasonContention
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindOutOfStock:
		return ErrOutOfStock
	case KindTooMuchDemand:
		return ErrTooMuchDemand
	case KindTooMuchStock:
		return ErrTooMuchStock
	case KindNoPlaceAvailable:
		return ErrNoPlaceAvailable
	case KindContentionExhausted:
		return ErrContentionExhausted
	default:
		return nil
	}
}

// StockError is the failure of a stock mutation on a single record.
//
// Applied is only non-zero for KindNoPlaceAvailable, where the restock was
// written clamped to the record's maximum stock.
type StockError struct {
	Kind      Kind
	Key       string
	Requested int
	Available int
	Applied   int
	Attempts  int
}

func (e *StockError) Error() string {
	switch e.Kind {
	case KindOutOfStock:
		return fmt.Sprintf("%s is out of stock", e.Key)
	case KindTooMuchDemand:
		return fmt.Sprintf("%s: requested %d but only %d left", e.Key, e.Requested, e.Available)
	case KindTooMuchStock:
		return fmt.Sprintf("%s is already at maximum stock (%d)", e.Key, e.Available)
	case KindNoPlaceAvailable:
		return fmt.Sprintf("%s: restocked %d of %d requested, stock filled to maximum", e.Key, e.Applied, e.Requested)
	case KindContentionExhausted:
		return fmt.Sprintf("%s: gave up after %d conflicting attempts", e.Key, e.Attempts)
	default:
		return fmt.Sprintf("%s: stock error", e.Key)
	}
}

func (e *StockError) Unwrap() error { return e.Kind.sentinel() }

// KindOf returns the stock failure kind carried by err, if any.
func KindOf(err error) (Kind, bool) {
	var se *StockError
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return 0, false
}

const (
	FailureReasonNotFound         = "not_found"
	FailureReasonInvalidQuantity  = "invalid_quantity"
	FailureReasonOutOfStock       = "out_of_stock"
	FailureReasonTooMuchDemand    = "too_much_demand"
	FailureReasonTooMuchStock     = "too_much_stock"
	FailureReasonNoPlaceAvailable = "no_place_available"
	FailureReasonContention       = "contention_exhausted"
	FailureReasonStoreError       = "store_error"
)

// FailureReason maps an error to a low-cardinality label.
func FailureReason(err error) string {
	if kind, ok := KindOf(err); ok {
		return kind.String()
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return FailureReasonNotFound
	case errors.Is(err, ErrInvalidQuantity):
		return FailureReasonInvalidQuantity
	default:
		return FailureReasonStoreError
	}
}
