package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const productColumns = `id, name, category, price, cost, sku, image_url, active, track_stock, created_at`

func scanProduct(row interface{ Scan(...any) error }) (Product, error) {
	var i Product
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Category,
		&i.Price,
		&i.Cost,
		&i.Sku,
		&i.ImageUrl,
		&i.Active,
		&i.TrackStock,
		&i.CreatedAt,
	)
	return i, err
}

// ProductWithStockRow is a product joined with its inventory row.
// Products without an inventory row report zero quantity.
type ProductWithStockRow struct {
	Product           Product
	Quantity          int32
	LowStockThreshold int32
}

const productWithStockSelect = `SELECT p.id, p.name, p.category, p.price, p.cost, p.sku, p.image_url,
       p.active, p.track_stock, p.created_at,
       COALESCE(i.quantity, 0)::int AS quantity,
       COALESCE(i.low_stock_threshold, 5)::int AS low_stock_threshold
FROM products p
LEFT JOIN inventory i ON i.product_id = p.id`

func scanProductWithStock(row interface{ Scan(...any) error }) (ProductWithStockRow, error) {
	var i ProductWithStockRow
	err := row.Scan(
		&i.Product.ID,
		&i.Product.Name,
		&i.Product.Category,
		&i.Product.Price,
		&i.Product.Cost,
		&i.Product.Sku,
		&i.Product.ImageUrl,
		&i.Product.Active,
		&i.Product.TrackStock,
		&i.Product.CreatedAt,
		&i.Quantity,
		&i.LowStockThreshold,
	)
	return i, err
}

func (q *Queries) queryProductsWithStock(ctx context.Context, sql string, args ...interface{}) ([]ProductWithStockRow, error) {
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []ProductWithStockRow{}
	for rows.Next() {
		i, err := scanProductWithStock(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listActiveProducts = `-- name: ListActiveProducts :many
` + productWithStockSelect + `
WHERE p.active = true
ORDER BY p.category, p.name`

func (q *Queries) ListActiveProducts(ctx context.Context) ([]ProductWithStockRow, error) {
	return q.queryProductsWithStock(ctx, listActiveProducts)
}

const listProducts = `-- name: ListProducts :many
` + productWithStockSelect + `
ORDER BY p.id DESC`

func (q *Queries) ListProducts(ctx context.Context) ([]ProductWithStockRow, error) {
	return q.queryProductsWithStock(ctx, listProducts)
}

const getProductWithStock = `-- name: GetProductWithStock :one
` + productWithStockSelect + `
WHERE p.id = $1`

func (q *Queries) GetProductWithStock(ctx context.Context, id int64) (ProductWithStockRow, error) {
	return scanProductWithStock(q.db.QueryRow(ctx, getProductWithStock, id))
}

const getProductsForOrder = `-- name: GetProductsForOrder :many
` + productWithStockSelect + `
WHERE p.id = ANY($1::bigint[])
ORDER BY p.id
FOR UPDATE OF p`

// GetProductsForOrder locks the product rows for the rest of the transaction
// so concurrent orders for the same product serialize on the stock check.
func (q *Queries) GetProductsForOrder(ctx context.Context, ids []int64) ([]ProductWithStockRow, error) {
	return q.queryProductsWithStock(ctx, getProductsForOrder, ids)
}

const getProduct = `-- name: GetProduct :one
SELECT ` + productColumns + ` FROM products WHERE id = $1`

func (q *Queries) GetProduct(ctx context.Context, id int64) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, getProduct, id))
}

const createProduct = `-- name: CreateProduct :one
INSERT INTO products (name, category, price, cost, sku, image_url, active, track_stock)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + productColumns

type CreateProductParams struct {
	Name       string
	Category   string
	Price      pgtype.Numeric
	Cost       pgtype.Numeric
	Sku        pgtype.Text
	ImageUrl   pgtype.Text
	Active     bool
	TrackStock bool
}

func (q *Queries) CreateProduct(ctx context.Context, arg CreateProductParams) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, createProduct,
		arg.Name,
		arg.Category,
		arg.Price,
		arg.Cost,
		arg.Sku,
		arg.ImageUrl,
		arg.Active,
		arg.TrackStock,
	))
}

const updateProduct = `-- name: UpdateProduct :one
UPDATE products
SET name = $2,
    category = $3,
    price = $4,
    cost = $5,
    sku = $6,
    image_url = $7,
    active = $8,
    track_stock = $9
WHERE id = $1
RETURNING ` + productColumns

type UpdateProductParams struct {
	ID         int64
	Name       string
	Category   string
	Price      pgtype.Numeric
	Cost       pgtype.Numeric
	Sku        pgtype.Text
	ImageUrl   pgtype.Text
	Active     bool
	TrackStock bool
}

func (q *Queries) UpdateProduct(ctx context.Context, arg UpdateProductParams) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, updateProduct,
		arg.ID,
		arg.Name,
		arg.Category,
		arg.Price,
		arg.Cost,
		arg.Sku,
		arg.ImageUrl,
		arg.Active,
		arg.TrackStock,
	))
}
