package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

func scanInventory(row interface{ Scan(...any) error }) (Inventory, error) {
	var i Inventory
	err := row.Scan(&i.ProductID, &i.Quantity, &i.LowStockThreshold)
	return i, err
}

const ensureInventory = `-- name: EnsureInventory :exec
INSERT INTO inventory (product_id, quantity, low_stock_threshold)
VALUES ($1, 0, 5)
ON CONFLICT (product_id) DO NOTHING`

func (q *Queries) EnsureInventory(ctx context.Context, productID int64) error {
	_, err := q.db.Exec(ctx, ensureInventory, productID)
	return err
}

const getInventoryForUpdate = `-- name: GetInventoryForUpdate :one
SELECT product_id, quantity, low_stock_threshold
FROM inventory
WHERE product_id = $1
FOR UPDATE`

func (q *Queries) GetInventoryForUpdate(ctx context.Context, productID int64) (Inventory, error) {
	return scanInventory(q.db.QueryRow(ctx, getInventoryForUpdate, productID))
}

const createInventory = `-- name: CreateInventory :one
INSERT INTO inventory (product_id, quantity, low_stock_threshold)
VALUES ($1, $2, $3)
RETURNING product_id, quantity, low_stock_threshold`

type CreateInventoryParams struct {
	ProductID         int64
	Quantity          int32
	LowStockThreshold int32
}

func (q *Queries) CreateInventory(ctx context.Context, arg CreateInventoryParams) (Inventory, error) {
	return scanInventory(q.db.QueryRow(ctx, createInventory, arg.ProductID, arg.Quantity, arg.LowStockThreshold))
}

const updateLowStockThreshold = `-- name: UpdateLowStockThreshold :exec
UPDATE inventory SET low_stock_threshold = $2 WHERE product_id = $1`

type UpdateLowStockThresholdParams struct {
	ProductID         int64
	LowStockThreshold int32
}

func (q *Queries) UpdateLowStockThreshold(ctx context.Context, arg UpdateLowStockThresholdParams) error {
	_, err := q.db.Exec(ctx, updateLowStockThreshold, arg.ProductID, arg.LowStockThreshold)
	return err
}

const applyInventoryDelta = `-- name: ApplyInventoryDelta :one
UPDATE inventory
SET quantity = quantity + $2
WHERE product_id = $1 AND quantity + $2 >= 0
RETURNING product_id, quantity, low_stock_threshold`

type ApplyInventoryDeltaParams struct {
	ProductID int64
	Delta     int32
}

// ApplyInventoryDelta adds a signed delta to a product's quantity.
// It returns pgx.ErrNoRows when the row is missing or the result would be negative.
func (q *Queries) ApplyInventoryDelta(ctx context.Context, arg ApplyInventoryDeltaParams) (Inventory, error) {
	return scanInventory(q.db.QueryRow(ctx, applyInventoryDelta, arg.ProductID, arg.Delta))
}

const createInventoryLog = `-- name: CreateInventoryLog :one
INSERT INTO inventory_logs (product_id, delta, reason, user_id)
VALUES ($1, $2, $3, $4)
RETURNING id, product_id, delta, reason, user_id, created_at`

type CreateInventoryLogParams struct {
	ProductID int64
	Delta     int32
	Reason    string
	UserID    pgtype.Int8
}

func (q *Queries) CreateInventoryLog(ctx context.Context, arg CreateInventoryLogParams) (InventoryLog, error) {
	row := q.db.QueryRow(ctx, createInventoryLog,
		arg.ProductID,
		arg.Delta,
		arg.Reason,
		arg.UserID,
	)
	var i InventoryLog
	err := row.Scan(
		&i.ID,
		&i.ProductID,
		&i.Delta,
		&i.Reason,
		&i.UserID,
		&i.CreatedAt,
	)
	return i, err
}

const listInventory = `-- name: ListInventory :many
SELECT p.id, p.name, p.category, p.active, p.track_stock,
       COALESCE(i.quantity, 0)::int AS quantity,
       COALESCE(i.low_stock_threshold, 5)::int AS low_stock_threshold
FROM products p
LEFT JOIN inventory i ON i.product_id = p.id
ORDER BY p.category, p.name`

type ListInventoryRow struct {
	ProductID         int64
	Name              string
	Category          string
	Active            bool
	TrackStock        bool
	Quantity          int32
	LowStockThreshold int32
}

func (q *Queries) ListInventory(ctx context.Context) ([]ListInventoryRow, error) {
	rows, err := q.db.Query(ctx, listInventory)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []ListInventoryRow{}
	for rows.Next() {
		var i ListInventoryRow
		if err := rows.Scan(
			&i.ProductID,
			&i.Name,
			&i.Category,
			&i.Active,
			&i.TrackStock,
			&i.Quantity,
			&i.LowStockThreshold,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listInventoryLogs = `-- name: ListInventoryLogs :many
SELECT l.id, l.product_id, p.name, l.delta, l.reason, u.username, l.created_at
FROM inventory_logs l
JOIN products p ON p.id = l.product_id
LEFT JOIN users u ON u.id = l.user_id
WHERE ($1::bigint IS NULL OR l.product_id = $1)
ORDER BY l.id DESC
LIMIT $2`

type ListInventoryLogsParams struct {
	ProductID pgtype.Int8
	Limit     int32
}

type ListInventoryLogsRow struct {
	ID          int64
	ProductID   int64
	ProductName string
	Delta       int32
	Reason      string
	Username    pgtype.Text
	CreatedAt   time.Time
}

func (q *Queries) ListInventoryLogs(ctx context.Context, arg ListInventoryLogsParams) ([]ListInventoryLogsRow, error) {
	rows, err := q.db.Query(ctx, listInventoryLogs, arg.ProductID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []ListInventoryLogsRow{}
	for rows.Next() {
		var i ListInventoryLogsRow
		if err := rows.Scan(
			&i.ID,
			&i.ProductID,
			&i.ProductName,
			&i.Delta,
			&i.Reason,
			&i.Username,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
