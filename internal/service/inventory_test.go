package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/snackattack-pos/api/internal/database"
)

func newTestInventoryService() (*InventoryService, *fakeStore, *mockTx) {
	store := newFakeStore()
	store.nextID = 10
	store.addProduct(database.Product{ID: friesID, Name: "Fries (Regular)", Price: makeNumeric("50.00"), Cost: makeNumeric("25.00"), Active: true, TrackStock: true}, 3)
	tx := &mockTx{}
	svc := NewInventoryService(&mockTxBeginner{tx: tx}, func(db database.DBTX) InventoryStore { return store }, nil)
	return svc, store, tx
}

func TestAdjust_AppliesDeltaAndLogs(t *testing.T) {
	svc, store, tx := newTestInventoryService()

	inv, err := svc.Adjust(context.Background(), AdjustRequest{ProductID: friesID, Delta: 10, Reason: "Delivery", UserID: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inv.Quantity != 13 {
		t.Errorf("quantity: got %d, want 13", inv.Quantity)
	}
	if len(store.logs) != 1 {
		t.Fatalf("logs: got %d, want 1", len(store.logs))
	}
	l := store.logs[0]
	if l.Delta != 10 || l.Reason != "Delivery" || !l.UserID.Valid || l.UserID.Int64 != 1 {
		t.Errorf("log: got %+v", l)
	}
	if tx.committed != 1 {
		t.Errorf("commits: got %d, want 1", tx.committed)
	}
}

func TestAdjust_DefaultReason(t *testing.T) {
	svc, store, _ := newTestInventoryService()

	if _, err := svc.Adjust(context.Background(), AdjustRequest{ProductID: friesID, Delta: -1, Reason: "   "}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.logs[0].Reason != "Manual adjustment" {
		t.Errorf("reason: got %q, want %q", store.logs[0].Reason, "Manual adjustment")
	}
	if store.logs[0].UserID.Valid {
		t.Error("user should be null when no user id is given")
	}
}

func TestAdjust_Rejections(t *testing.T) {
	tests := []struct {
		name string
		req  AdjustRequest
		want error
	}{
		{"below zero", AdjustRequest{ProductID: friesID, Delta: -4}, ErrNegativeStock},
		{"zero delta", AdjustRequest{ProductID: friesID, Delta: 0}, ErrZeroDelta},
		{"unknown product", AdjustRequest{ProductID: 404, Delta: 1}, ErrUnknownProduct},
		{"reason too long", AdjustRequest{ProductID: friesID, Delta: 1, Reason: strings.Repeat("x", 201)}, ErrReasonTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, tx := newTestInventoryService()

			_, err := svc.Adjust(context.Background(), tt.req)
			if !errors.Is(err, tt.want) {
				t.Fatalf("error: got %v, want %v", err, tt.want)
			}
			if store.inventory[friesID].Quantity != 3 {
				t.Errorf("quantity: got %d, want 3", store.inventory[friesID].Quantity)
			}
			if len(store.logs) != 0 {
				t.Errorf("logs: got %d, want 0", len(store.logs))
			}
			if tx.committed != 0 {
				t.Errorf("commits: got %d, want 0", tx.committed)
			}
		})
	}
}

func TestAdjust_ExactlyToZero(t *testing.T) {
	svc, store, _ := newTestInventoryService()

	inv, err := svc.Adjust(context.Background(), AdjustRequest{ProductID: friesID, Delta: -3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inv.Quantity != 0 || store.inventory[friesID].Quantity != 0 {
		t.Errorf("quantity: got %d, want 0", inv.Quantity)
	}
}

func TestCreateProduct_LogsInitialStock(t *testing.T) {
	svc, store, _ := newTestInventoryService()

	row, err := svc.CreateProduct(context.Background(), ProductInput{
		Name:              "  Cheese Sticks (5pcs) ",
		Category:          "Extras",
		Price:             decimal.RequireFromString("30"),
		Cost:              decimal.RequireFromString("15"),
		Active:            true,
		TrackStock:        true,
		Quantity:          60,
		LowStockThreshold: 5,
	}, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if row.Product.Name != "Cheese Sticks (5pcs)" {
		t.Errorf("name: got %q", row.Product.Name)
	}
	if row.Quantity != 60 || row.LowStockThreshold != 5 {
		t.Errorf("stock: got %d/%d, want 60/5", row.Quantity, row.LowStockThreshold)
	}
	if len(store.logs) != 1 || store.logs[0].Reason != "Initial stock" || store.logs[0].Delta != 60 {
		t.Errorf("logs: got %+v, want one Initial stock log of 60", store.logs)
	}
}

func TestCreateProduct_ZeroStockNoLog(t *testing.T) {
	svc, store, _ := newTestInventoryService()

	if _, err := svc.CreateProduct(context.Background(), ProductInput{
		Name: "Special", Category: "Food", Price: decimal.RequireFromString("10"), Active: true,
	}, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.logs) != 0 {
		t.Errorf("logs: got %d, want 0", len(store.logs))
	}
}

func TestCreateProduct_ValidatesInput(t *testing.T) {
	tests := []struct {
		name string
		in   ProductInput
		want error
	}{
		{"negative quantity", ProductInput{Name: "a", Category: "b", Quantity: -1}, ErrNegativeQuantity},
		{"negative threshold", ProductInput{Name: "a", Category: "b", LowStockThreshold: -1}, ErrNegativeThreshold},
		{"negative price", ProductInput{Name: "a", Category: "b", Price: decimal.NewFromInt(-1)}, ErrNegativePrice},
		{"negative cost", ProductInput{Name: "a", Category: "b", Cost: decimal.NewFromInt(-1)}, ErrNegativePrice},
		{"price too large", ProductInput{Name: "a", Category: "b", Price: decimal.RequireFromString("100000000")}, ErrPriceTooLarge},
		{"cost too large", ProductInput{Name: "a", Category: "b", Cost: decimal.RequireFromString("1e10")}, ErrPriceTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newTestInventoryService()
			if _, err := svc.CreateProduct(context.Background(), tt.in, 1); !errors.Is(err, tt.want) {
				t.Errorf("error: got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestUpdateProduct_QuantityChangeIsLogged(t *testing.T) {
	svc, store, _ := newTestInventoryService()

	row, err := svc.UpdateProduct(context.Background(), friesID, ProductInput{
		Name:              "Fries (Large)",
		Category:          "Extras",
		Price:             decimal.RequireFromString("65"),
		Cost:              decimal.RequireFromString("30"),
		Active:            true,
		TrackStock:        true,
		Quantity:          1,
		LowStockThreshold: 8,
	}, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if row.Quantity != 1 || row.LowStockThreshold != 8 {
		t.Errorf("stock: got %d/%d, want 1/8", row.Quantity, row.LowStockThreshold)
	}
	if store.inventory[friesID].LowStockThreshold != 8 {
		t.Errorf("stored threshold: got %d, want 8", store.inventory[friesID].LowStockThreshold)
	}
	if len(store.logs) != 1 || store.logs[0].Delta != -2 || store.logs[0].Reason != "Product edit" {
		t.Errorf("logs: got %+v, want one Product edit log of -2", store.logs)
	}
	if !numericEquals(store.products[friesID].Price, "65") {
		t.Errorf("price: got %s, want 65", numericToDecimal(store.products[friesID].Price))
	}
}

func TestUpdateProduct_SameQuantityNoLog(t *testing.T) {
	svc, store, _ := newTestInventoryService()

	if _, err := svc.UpdateProduct(context.Background(), friesID, ProductInput{
		Name: "Fries (Regular)", Category: "Extras", Price: decimal.RequireFromString("50"), Active: true, TrackStock: true,
		Quantity: 3, LowStockThreshold: 5,
	}, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.logs) != 0 {
		t.Errorf("logs: got %d, want 0", len(store.logs))
	}
}

func TestUpdateProduct_NotFound(t *testing.T) {
	svc, _, _ := newTestInventoryService()

	_, err := svc.UpdateProduct(context.Background(), 999, ProductInput{Name: "x", Category: "y"}, 1)
	if !errors.Is(err, ErrUnknownProduct) {
		t.Fatalf("error: got %v, want %v", err, ErrUnknownProduct)
	}
}
