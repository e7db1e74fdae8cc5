package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/snackattack-pos/api/internal/database"
)

const maxReasonLength = 200

// Errors returned by the inventory service.
var (
	ErrUnknownProduct    = errors.New("product not found")
	ErrZeroDelta         = errors.New("delta must not be zero")
	ErrReasonTooLong     = errors.New("reason must be at most 200 characters")
	ErrNegativeStock     = errors.New("stock cannot go below zero")
	ErrNegativeQuantity  = errors.New("quantity must be >= 0")
	ErrNegativeThreshold = errors.New("low stock threshold must be >= 0")
	ErrNegativePrice     = errors.New("price and cost must be >= 0")
	ErrPriceTooLarge     = errors.New("price and cost must be at most 99999999.99")
)

// InventoryStore defines the DB methods needed for stock and product writes.
// Satisfied by *database.Queries (and its WithTx variant).
type InventoryStore interface {
	GetProduct(ctx context.Context, id int64) (database.Product, error)
	CreateProduct(ctx context.Context, arg database.CreateProductParams) (database.Product, error)
	UpdateProduct(ctx context.Context, arg database.UpdateProductParams) (database.Product, error)
	EnsureInventory(ctx context.Context, productID int64) error
	GetInventoryForUpdate(ctx context.Context, productID int64) (database.Inventory, error)
	CreateInventory(ctx context.Context, arg database.CreateInventoryParams) (database.Inventory, error)
	UpdateLowStockThreshold(ctx context.Context, arg database.UpdateLowStockThresholdParams) error
	ApplyInventoryDelta(ctx context.Context, arg database.ApplyInventoryDeltaParams) (database.Inventory, error)
	CreateInventoryLog(ctx context.Context, arg database.CreateInventoryLogParams) (database.InventoryLog, error)
}

// NewInventoryStore creates an InventoryStore from a DBTX (pool or tx).
type NewInventoryStore func(db database.DBTX) InventoryStore

// AdjustRequest applies a signed stock delta on behalf of UserID.
type AdjustRequest struct {
	ProductID int64
	Delta     int32
	Reason    string
	UserID    int64
}

// ProductInput is the validated body of a product create or update.
type ProductInput struct {
	Name              string
	Category          string
	Price             decimal.Decimal
	Cost              decimal.Decimal
	Sku               string
	ImageUrl          string
	Active            bool
	TrackStock        bool
	Quantity          int32
	LowStockThreshold int32
}

// InventoryService owns every write to inventory quantities outside of
// order intake, so each change is paired with an inventory log row.
type InventoryService struct {
	pool     TxBeginner
	newStore NewInventoryStore
	recorder Recorder
}

// NewInventoryService creates a new InventoryService.
func NewInventoryService(pool TxBeginner, newStore NewInventoryStore, recorder Recorder) *InventoryService {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &InventoryService{pool: pool, newStore: newStore, recorder: recorder}
}

// Adjust applies req.Delta to the product's stock. Nothing is written when
// the result would be negative.
func (s *InventoryService) Adjust(ctx context.Context, req AdjustRequest) (database.Inventory, error) {
	if req.Delta == 0 {
		return database.Inventory{}, ErrZeroDelta
	}
	reason := strings.TrimSpace(req.Reason)
	if len([]rune(reason)) > maxReasonLength {
		return database.Inventory{}, ErrReasonTooLong
	}
	if reason == "" {
		reason = "Manual adjustment"
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Inventory{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	if _, err := store.GetProduct(ctx, req.ProductID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Inventory{}, ErrUnknownProduct
		}
		return database.Inventory{}, fmt.Errorf("get product: %w", err)
	}

	if err := store.EnsureInventory(ctx, req.ProductID); err != nil {
		return database.Inventory{}, fmt.Errorf("ensure inventory: %w", err)
	}
	current, err := store.GetInventoryForUpdate(ctx, req.ProductID)
	if err != nil {
		return database.Inventory{}, fmt.Errorf("lock inventory: %w", err)
	}
	if current.Quantity+req.Delta < 0 {
		return database.Inventory{}, ErrNegativeStock
	}

	inv, err := store.ApplyInventoryDelta(ctx, database.ApplyInventoryDeltaParams{
		ProductID: req.ProductID,
		Delta:     req.Delta,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Inventory{}, ErrNegativeStock
		}
		return database.Inventory{}, fmt.Errorf("apply delta: %w", err)
	}

	if _, err := store.CreateInventoryLog(ctx, database.CreateInventoryLogParams{
		ProductID: req.ProductID,
		Delta:     req.Delta,
		Reason:    reason,
		UserID:    userRef(req.UserID),
	}); err != nil {
		return database.Inventory{}, fmt.Errorf("create inventory log: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Inventory{}, fmt.Errorf("commit tx: %w", err)
	}

	s.recorder.InventoryAdjusted(req.Delta)
	return inv, nil
}

// CreateProduct inserts the product with its inventory row. A non-zero
// opening quantity is logged as "Initial stock".
func (s *InventoryService) CreateProduct(ctx context.Context, in ProductInput, userID int64) (database.ProductWithStockRow, error) {
	if err := validateProductInput(in); err != nil {
		return database.ProductWithStockRow{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.ProductWithStockRow{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	product, err := store.CreateProduct(ctx, database.CreateProductParams{
		Name:       strings.TrimSpace(in.Name),
		Category:   strings.TrimSpace(in.Category),
		Price:      decimalToNumeric(in.Price),
		Cost:       decimalToNumeric(in.Cost),
		Sku:        optionalText(in.Sku),
		ImageUrl:   optionalText(in.ImageUrl),
		Active:     in.Active,
		TrackStock: in.TrackStock,
	})
	if err != nil {
		return database.ProductWithStockRow{}, fmt.Errorf("create product: %w", err)
	}

	inv, err := store.CreateInventory(ctx, database.CreateInventoryParams{
		ProductID:         product.ID,
		Quantity:          in.Quantity,
		LowStockThreshold: in.LowStockThreshold,
	})
	if err != nil {
		return database.ProductWithStockRow{}, fmt.Errorf("create inventory: %w", err)
	}

	if in.Quantity > 0 {
		if _, err := store.CreateInventoryLog(ctx, database.CreateInventoryLogParams{
			ProductID: product.ID,
			Delta:     in.Quantity,
			Reason:    "Initial stock",
			UserID:    userRef(userID),
		}); err != nil {
			return database.ProductWithStockRow{}, fmt.Errorf("create inventory log: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return database.ProductWithStockRow{}, fmt.Errorf("commit tx: %w", err)
	}

	return database.ProductWithStockRow{
		Product:           product,
		Quantity:          inv.Quantity,
		LowStockThreshold: inv.LowStockThreshold,
	}, nil
}

// UpdateProduct rewrites the product fields. A changed quantity is applied
// through the inventory ledger with reason "Product edit".
func (s *InventoryService) UpdateProduct(ctx context.Context, id int64, in ProductInput, userID int64) (database.ProductWithStockRow, error) {
	if err := validateProductInput(in); err != nil {
		return database.ProductWithStockRow{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.ProductWithStockRow{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	product, err := store.UpdateProduct(ctx, database.UpdateProductParams{
		ID:         id,
		Name:       strings.TrimSpace(in.Name),
		Category:   strings.TrimSpace(in.Category),
		Price:      decimalToNumeric(in.Price),
		Cost:       decimalToNumeric(in.Cost),
		Sku:        optionalText(in.Sku),
		ImageUrl:   optionalText(in.ImageUrl),
		Active:     in.Active,
		TrackStock: in.TrackStock,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.ProductWithStockRow{}, ErrUnknownProduct
		}
		return database.ProductWithStockRow{}, fmt.Errorf("update product: %w", err)
	}

	if err := store.EnsureInventory(ctx, id); err != nil {
		return database.ProductWithStockRow{}, fmt.Errorf("ensure inventory: %w", err)
	}
	inv, err := store.GetInventoryForUpdate(ctx, id)
	if err != nil {
		return database.ProductWithStockRow{}, fmt.Errorf("lock inventory: %w", err)
	}

	if delta := in.Quantity - inv.Quantity; delta != 0 {
		inv, err = store.ApplyInventoryDelta(ctx, database.ApplyInventoryDeltaParams{
			ProductID: id,
			Delta:     delta,
		})
		if err != nil {
			return database.ProductWithStockRow{}, fmt.Errorf("apply delta: %w", err)
		}
		if _, err := store.CreateInventoryLog(ctx, database.CreateInventoryLogParams{
			ProductID: id,
			Delta:     delta,
			Reason:    "Product edit",
			UserID:    userRef(userID),
		}); err != nil {
			return database.ProductWithStockRow{}, fmt.Errorf("create inventory log: %w", err)
		}
	}

	if inv.LowStockThreshold != in.LowStockThreshold {
		if err := store.UpdateLowStockThreshold(ctx, database.UpdateLowStockThresholdParams{
			ProductID:         id,
			LowStockThreshold: in.LowStockThreshold,
		}); err != nil {
			return database.ProductWithStockRow{}, fmt.Errorf("update threshold: %w", err)
		}
		inv.LowStockThreshold = in.LowStockThreshold
	}

	if err := tx.Commit(ctx); err != nil {
		return database.ProductWithStockRow{}, fmt.Errorf("commit tx: %w", err)
	}

	return database.ProductWithStockRow{
		Product:           product,
		Quantity:          inv.Quantity,
		LowStockThreshold: inv.LowStockThreshold,
	}, nil
}

func validateProductInput(in ProductInput) error {
	if in.Quantity < 0 {
		return ErrNegativeQuantity
	}
	if in.LowStockThreshold < 0 {
		return ErrNegativeThreshold
	}
	if in.Price.IsNegative() || in.Cost.IsNegative() {
		return ErrNegativePrice
	}
	if in.Price.GreaterThan(MaxAmount) || in.Cost.GreaterThan(MaxAmount) {
		return ErrPriceTooLarge
	}
	return nil
}

func userRef(id int64) pgtype.Int8 {
	return pgtype.Int8{Int64: id, Valid: id > 0}
}
