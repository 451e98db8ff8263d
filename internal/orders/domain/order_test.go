package domain_test

import (
	"testing"
	"time"

	"github.com/dejobratic/orderflow/internal/orders/domain"
	"github.com/shopspring/decimal"
)

func line(productID string, qty int, price int64) domain.OrderLine {
	return domain.OrderLine{ProductID: productID, Quantity: qty, Price: decimal.NewFromInt(price)}
}

func TestNewPendingOrder(t *testing.T) {
	t.Run("derives total from line prices and quantities", func(t *testing.T) {
		now := time.Now().UTC()
		order := domain.NewPendingOrder("order-1", "u1", []domain.OrderLine{
			line("p1", 2, 10),
			line("p2", 3, 5),
		}, now)

		if !order.TotalPrice.Equal(decimal.NewFromInt(35)) {
			t.Errorf("expected total 35, got %s", order.TotalPrice)
		}
		if order.Status != domain.StatusPending {
			t.Errorf("expected status %s, got %s", domain.StatusPending, order.Status)
		}
		if order.Description != nil {
			t.Errorf("expected nil description, got %v", *order.Description)
		}
		if !order.CreatedAt.Equal(now) || !order.UpdatedAt.Equal(now) {
			t.Error("expected timestamps to equal creation time")
		}
	})

	t.Run("keeps fractional prices exact", func(t *testing.T) {
		order := domain.NewPendingOrder("order-2", "u1", []domain.OrderLine{
			{ProductID: "p1", Quantity: 3, Price: decimal.RequireFromString("0.10")},
		}, time.Now())

		if !order.TotalPrice.Equal(decimal.RequireFromString("0.30")) {
			t.Errorf("expected total 0.30, got %s", order.TotalPrice)
		}
	})
}

func TestOrderValidate(t *testing.T) {
	valid := domain.NewPendingOrder("test-id", "u1", []domain.OrderLine{line("p1", 2, 10)}, time.Now())

	tests := []struct {
		name    string
		mutate  func(o *domain.Order)
		wantErr bool
	}{
		{name: "valid order", mutate: func(o *domain.Order) {}, wantErr: false},
		{name: "missing id", mutate: func(o *domain.Order) { o.ID = "" }, wantErr: true},
		{name: "whitespace only buyer", mutate: func(o *domain.Order) { o.BuyerID = "   " }, wantErr: true},
		{name: "no lines", mutate: func(o *domain.Order) { o.Lines = nil; o.TotalPrice = decimal.Zero }, wantErr: true},
		{name: "zero quantity line", mutate: func(o *domain.Order) {
			o.Lines = []domain.OrderLine{line("p1", 0, 10)}
			o.TotalPrice = decimal.Zero
		}, wantErr: true},
		{name: "negative price line", mutate: func(o *domain.Order) {
			o.Lines = []domain.OrderLine{line("p1", 1, -10)}
			o.TotalPrice = decimal.NewFromInt(-10)
		}, wantErr: true},
		{name: "total does not match lines", mutate: func(o *domain.Order) { o.TotalPrice = decimal.NewFromInt(21) }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := valid
			order.Lines = append([]domain.OrderLine(nil), valid.Lines...)
			tt.mutate(&order)

			err := order.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestOrderSummary(t *testing.T) {
	order := domain.NewPendingOrder("order-1", "u1", []domain.OrderLine{line("p1", 2, 20)}, time.Now())

	summary := order.Summary()

	if summary.ID != order.ID || summary.BuyerID != order.BuyerID {
		t.Errorf("expected summary to carry id and buyer, got %+v", summary)
	}
	if !summary.TotalPrice.Equal(decimal.NewFromInt(40)) {
		t.Errorf("expected total 40, got %s", summary.TotalPrice)
	}

	summary.Lines[0].Quantity = 99
	if order.Lines[0].Quantity != 2 {
		t.Error("expected summary lines to be a copy")
	}
}

func TestProductReserve(t *testing.T) {
	product := domain.Product{ID: "p1", Name: "Widget", Price: decimal.NewFromInt(20), Stock: 5}

	t.Run("decrements stock", func(t *testing.T) {
		reserved, err := product.Reserve(2)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if reserved.Stock != 3 {
			t.Errorf("expected stock 3, got %d", reserved.Stock)
		}
		if product.Stock != 5 {
			t.Error("expected original product to be untouched")
		}
	})

	t.Run("allows reserving exactly the remaining stock", func(t *testing.T) {
		reserved, err := product.Reserve(5)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if reserved.Stock != 0 {
			t.Errorf("expected stock 0, got %d", reserved.Stock)
		}
	})

	t.Run("rejects quantity above stock", func(t *testing.T) {
		_, err := product.Reserve(6)
		if !domain.IsKind(err, domain.KindInsufficientStock) {
			t.Errorf("expected InsufficientStock, got %v", err)
		}
	})

	t.Run("rejects non-positive quantity", func(t *testing.T) {
		_, err := product.Reserve(0)
		if !domain.IsKind(err, domain.KindInvalidQuantity) {
			t.Errorf("expected InvalidQuantity, got %v", err)
		}
	})
}
