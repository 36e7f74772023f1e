package domain

import "errors"

var (
	// ErrOutOfStockOrNotFound does not tell a missing product apart from an
	// exhausted one, so callers cannot probe stock levels.
	ErrOutOfStockOrNotFound = errors.New("out of stock or product not found")
	ErrInvalidQuantity      = errors.New("quantity must be a positive integer")
)
