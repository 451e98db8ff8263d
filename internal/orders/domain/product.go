package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// PriceScale is the number of decimal places a stored price may carry.
const PriceScale = 2

// Product is the inventory aggregate. The catalog owns it; placement only
// reads it and conditionally writes its stock.
type Product struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Stock int             `json:"stock"`
}

// Reserve returns a copy of the product with quantity taken out of stock.
// Stock never drops below zero.
func (p Product) Reserve(quantity int) (Product, error) {
	if quantity < 1 {
		return p, NewInvalidQuantityError(-1, p.ID, "quantity must be a positive integer")
	}
	if p.Stock < quantity {
		return p, NewInsufficientStockError(p, quantity)
	}

	reserved := p
	reserved.Stock = p.Stock - quantity
	return reserved, nil
}

// Validate checks catalog constraints before a product is stored.
func (p Product) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return errors.New("product id is required")
	}
	if p.Price.IsNegative() {
		return fmt.Errorf("product %s: price must be non-negative", p.ID)
	}
	if !p.Price.Equal(p.Price.Round(PriceScale)) {
		return fmt.Errorf("product %s: price must have at most %d decimal places", p.ID, PriceScale)
	}
	if p.Stock < 0 {
		return fmt.Errorf("product %s: stock must be non-negative", p.ID)
	}
	return nil
}
