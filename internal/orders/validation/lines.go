// Package validation checks the shape of a requested cart before any store
// is touched.
package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dejobratic/orderflow/internal/orders/domain"
)

// MaxQuantity bounds a single line's quantity.
const MaxQuantity = math.MaxInt32

// RawLine is one requested line as received from a caller. Fields are left
// untyped so that malformed input can be reported precisely.
type RawLine struct {
	ProductID any `json:"productId"`
	Quantity  any `json:"quantity"`
}

// Line is a normalized, well-formed cart line.
type Line struct {
	ProductID string
	Quantity  int
}

// ParseLines decodes a raw JSON items value. A missing, null or non-array
// value is an empty order.
func ParseLines(data json.RawMessage) ([]RawLine, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, domain.NewEmptyOrderError()
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(trimmed, &elements); err != nil {
		return nil, domain.NewEmptyOrderError()
	}

	lines := make([]RawLine, len(elements))
	for i, element := range elements {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(element, &fields); err != nil || fields == nil {
			continue
		}
		lines[i] = RawLine{
			ProductID: decodeValue(fields["productId"]),
			Quantity:  decodeValue(fields["quantity"]),
		}
	}
	return lines, nil
}

func decodeValue(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil
	}
	return v
}

// Normalize validates lines in cart order. Every offending line contributes a
// message to the error's Details; the kind and position come from the first.
func Normalize(lines []RawLine) ([]Line, error) {
	if len(lines) == 0 {
		return nil, domain.NewEmptyOrderError()
	}

	normalized := make([]Line, 0, len(lines))
	var first *domain.Error
	var details []string

	record := func(err error) {
		var de *domain.Error
		if !errors.As(err, &de) {
			return
		}
		details = append(details, de.Message)
		if first == nil {
			first = de
		}
	}

	for i, raw := range lines {
		productID, reason := productIDOf(raw.ProductID)
		if reason != "" {
			record(domain.NewInvalidProductIDError(i, reason))
		}

		quantity, reason := quantityOf(raw.Quantity)
		if reason != "" {
			record(domain.NewInvalidQuantityError(i, productID, reason))
		}

		if first == nil {
			normalized = append(normalized, Line{ProductID: productID, Quantity: quantity})
		}
	}

	if first != nil {
		failure := *first
		failure.Details = details
		return nil, &failure
	}
	return normalized, nil
}

func productIDOf(v any) (string, string) {
	if v == nil {
		return "", "productId is required"
	}
	s, ok := v.(string)
	if !ok {
		return "", "productId must be a string"
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", "productId must not be blank"
	}
	return s, ""
}

func quantityOf(v any) (int, string) {
	var f float64

	switch q := v.(type) {
	case nil:
		return 0, "quantity is required"
	case int:
		return checkInt(int64(q))
	case int8:
		return checkInt(int64(q))
	case int16:
		return checkInt(int64(q))
	case int32:
		return checkInt(int64(q))
	case int64:
		return checkInt(q)
	case uint:
		return checkUint(uint64(q))
	case uint8:
		return checkUint(uint64(q))
	case uint16:
		return checkUint(uint64(q))
	case uint32:
		return checkUint(uint64(q))
	case uint64:
		return checkUint(q)
	case float32:
		f = float64(q)
	case float64:
		f = q
	case json.Number:
		if n, err := q.Int64(); err == nil {
			return checkInt(n)
		}
		parsed, err := q.Float64()
		if err != nil {
			return 0, "quantity must be a number"
		}
		f = parsed
	case string:
		s := strings.TrimSpace(q)
		if s == "" {
			return 0, "quantity must be a number"
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, "quantity must be a number"
		}
		f = parsed
	default:
		return 0, "quantity must be a number"
	}

	return checkFloat(f)
}

func checkFloat(f float64) (int, string) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, "quantity must be a number"
	}
	if f != math.Trunc(f) {
		return 0, fmt.Sprintf("quantity must be a positive integer, got %v", f)
	}
	if f <= 0 {
		return 0, "quantity must be a positive integer"
	}
	if f > MaxQuantity {
		return 0, fmt.Sprintf("quantity must not exceed %d", MaxQuantity)
	}
	return int(f), ""
}

func checkInt(n int64) (int, string) {
	if n <= 0 {
		return 0, "quantity must be a positive integer"
	}
	if n > MaxQuantity {
		return 0, fmt.Sprintf("quantity must not exceed %d", MaxQuantity)
	}
	return int(n), ""
}

func checkUint(n uint64) (int, string) {
	if n > MaxQuantity {
		return 0, fmt.Sprintf("quantity must not exceed %d", MaxQuantity)
	}
	return checkInt(int64(n))
}
