package sushi

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// KeyPrefix namespaces every sushi record in the store.
const KeyPrefix = "sushi:"

// Hash field names of a sushi record.
const (
	FieldID          = "id"
	FieldIngredients = "ingredients"
	FieldStock       = "stock"
	FieldMaxStock    = "max_stock"
	FieldSold        = "sold"
)

// IngredientSeparator joins ingredient names inside the ingredients field.
const IngredientSeparator = ","

// Sushi is one product record of the catalog.
type Sushi struct {
	ID          int
	Ingredients []string
	Stock       int
	MaxStock    int
	Sold        int
}

func New(id int, ingredients []string, stock, maxStock int) (*Sushi, error) {
	s := &Sushi{
		ID:          id,
		Ingredients: slices.Clone(ingredients),
		Stock:       stock,
		MaxStock:    maxStock,
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks 0 <= Stock <= MaxStock, MaxStock > 0 and Sold >= 0.
func (s Sushi) Validate() error {
	if s.ID < 0 || s.MaxStock <= 0 || s.Stock < 0 || s.Stock > s.MaxStock || s.Sold < 0 {
		return fmt.Errorf("%s: stock %d, max %d, sold %d: %w", s.Key(), s.Stock, s.MaxStock, s.Sold, ErrInvalidStock)
	}
	return nil
}

// ValidateAll returns the first invalid record's error.
func ValidateAll(records []Sushi) error {
	for _, rec := range records {
		if err := rec.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (s Sushi) Key() string { return Key(s.ID) }

// HasAll reports whether every requested ingredient is part of the recipe.
func (s Sushi) HasAll(ingredients []string) bool {
	for _, want := range ingredients {
		if !slices.Contains(s.Ingredients, want) {
			return false
		}
	}
	return true
}

func (s Sushi) Clone() Sushi {
	s.Ingredients = slices.Clone(s.Ingredients)
	return s
}

// Key returns the store key of the sushi with the given id.
func Key(id int) string { return KeyPrefix + strconv.Itoa(id) }

// Keys returns the keys sushi:0 .. sushi:n-1.
func Keys(n int) []string {
	if n <= 0 {
		return nil
	}
	keys := make([]string, n)
	for i := range keys {
		keys[i] = Key(i)
	}
	return keys
}

// ParseKey extracts the numeric id from a sushi key.
func ParseKey(key string) (int, error) {
	raw, ok := strings.CutPrefix(key, KeyPrefix)
	if !ok {
		return 0, ErrInvalidKey
	}
	id, err := strconv.Atoi(raw)
	if err != nil || id < 0 {
		return 0, ErrInvalidKey
	}
	return id, nil
}

// JoinIngredients encodes an ingredient list for the ingredients field.
func JoinIngredients(ingredients []string) string {
	return strings.Join(ingredients, IngredientSeparator)
}

// SplitIngredients decodes the ingredients field.
func SplitIngredients(raw string) []string {
	if raw == "" {
		return nil
	}
	return strings.Split(raw, IngredientSeparator)
}

// Level is the stock/sales state of one record at read time.
type Level struct {
	Key   string
	Stock int
	Sold  int
}
