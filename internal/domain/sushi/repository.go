package sushi

import "context"

// StockRepository performs race-free stock mutations on stored records.
type StockRepository interface {
	Purchase(ctx context.Context, key string, quantity int) (Outcome, error)
	Restock(ctx context.Context, key string, quantity int) (Outcome, error)
}

// CatalogRepository loads and reads back catalog records.
type CatalogRepository interface {
	Load(ctx context.Context, records []Sushi) error
	Levels(ctx context.Context, keys []string) ([]Level, error)
	Snapshot(ctx context.Context, keys []string) ([]Sushi, error)
}
