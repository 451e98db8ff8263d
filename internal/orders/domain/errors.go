package domain

import (
	"errors"
	"fmt"
)

// ErrorKind is the machine-readable failure category surfaced to callers.
type ErrorKind string

const (
	KindUnauthorized      ErrorKind = "Unauthorized"
	KindEmptyOrder        ErrorKind = "EmptyOrder"
	KindInvalidProductID  ErrorKind = "InvalidProductId"
	KindInvalidQuantity   ErrorKind = "InvalidQuantity"
	KindProductNotFound   ErrorKind = "ProductNotFound"
	KindInsufficientStock ErrorKind = "InsufficientStock"
	KindStoreFailure      ErrorKind = "StoreFailure"
)

// Error is the structured failure returned by order placement.
// Index is -1 when the failure is not tied to a single cart line.
type Error struct {
	Kind      ErrorKind
	Message   string
	Details   []string
	ProductID string
	Index     int
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any Error of the same kind, so errors.Is(err, ErrInsufficientStock)
// holds for every insufficient-stock failure.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrUnauthorized      = &Error{Kind: KindUnauthorized, Message: "buyer not authenticated", Index: -1}
	ErrEmptyOrder        = &Error{Kind: KindEmptyOrder, Message: "order must include at least one product", Index: -1}
	ErrInvalidProductID  = &Error{Kind: KindInvalidProductID, Message: "invalid product id", Index: -1}
	ErrInvalidQuantity   = &Error{Kind: KindInvalidQuantity, Message: "invalid quantity", Index: -1}
	ErrProductNotFound   = &Error{Kind: KindProductNotFound, Message: "product not found", Index: -1}
	ErrInsufficientStock = &Error{Kind: KindInsufficientStock, Message: "insufficient stock", Index: -1}
	ErrStoreFailure      = &Error{Kind: KindStoreFailure, Message: "store failure", Index: -1}
)

var (
	// ErrStockConflict is returned by a conditional stock write whose
	// precondition no longer holds at write time.
	ErrStockConflict = errors.New("stock changed concurrently")

	// ErrStoreConflict marks transient contention (serialization failure,
	// deadlock) that a caller may retry unchanged.
	ErrStoreConflict = errors.New("store contention")

	// ErrOrderNotFound is returned by order lookups.
	ErrOrderNotFound = errors.New("order not found")
)

// NewUnauthorizedError reports a missing buyer identity.
func NewUnauthorizedError() error {
	return &Error{Kind: KindUnauthorized, Message: "buyer not authenticated", Index: -1}
}

// NewEmptyOrderError reports a cart with no lines.
func NewEmptyOrderError() error {
	return &Error{
		Kind:    KindEmptyOrder,
		Message: "order must include at least one product",
		Details: []string{"order must include at least one product"},
		Index:   -1,
	}
}

// NewInvalidProductIDError reports a malformed product id at index.
func NewInvalidProductIDError(index int, reason string) error {
	msg := fmt.Sprintf("invalid productId at index %d: %s", index, reason)
	return &Error{Kind: KindInvalidProductID, Message: msg, Details: []string{msg}, Index: index}
}

// NewInvalidQuantityError reports a malformed quantity for a line.
func NewInvalidQuantityError(index int, productID, reason string) error {
	ref := productID
	if ref == "" {
		ref = fmt.Sprintf("index %d", index)
	}
	msg := fmt.Sprintf("invalid quantity for product %s: %s", ref, reason)
	return &Error{Kind: KindInvalidQuantity, Message: msg, Details: []string{msg}, ProductID: productID, Index: index}
}

// NewProductNotFoundError reports a product absent at read time.
func NewProductNotFoundError(productID string) error {
	return &Error{
		Kind:      KindProductNotFound,
		Message:   fmt.Sprintf("product not found: %s", productID),
		ProductID: productID,
		Index:     -1,
	}
}

// NewInsufficientStockError reports a requested quantity above current stock.
func NewInsufficientStockError(p Product, requested int) error {
	name := p.Name
	if name == "" {
		name = p.ID
	}
	return &Error{
		Kind:      KindInsufficientStock,
		Message:   fmt.Sprintf("insufficient stock for product %s (%s): requested %d, available %d", name, p.ID, requested, p.Stock),
		ProductID: p.ID,
		Index:     -1,
	}
}

// NewStoreFailure wraps an underlying store error. The message stays opaque;
// the cause is kept for logs and errors.Is.
func NewStoreFailure(op string, err error) error {
	var de *Error
	if errors.As(err, &de) && de.Kind == KindStoreFailure {
		return err
	}
	return &Error{
		Kind:    KindStoreFailure,
		Message: fmt.Sprintf("store failure during %s", op),
		Index:   -1,
		Err:     err,
	}
}

// KindOf reports the kind of err. Errors outside the taxonomy are store failures.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindStoreFailure
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var de *Error
	return errors.As(err, &de) && de.Kind == kind
}

// IsClientError reports whether kind is a pre-transaction input failure.
func IsClientError(kind ErrorKind) bool {
	switch kind {
	case KindUnauthorized, KindEmptyOrder, KindInvalidProductID, KindInvalidQuantity:
		return true
	default:
		return false
	}
}
