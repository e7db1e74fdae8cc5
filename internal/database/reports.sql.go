package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// DateRangeParams bounds a report by created_at. A NULL bound is open.
// To is exclusive.
type DateRangeParams struct {
	From pgtype.Timestamptz
	To   pgtype.Timestamptz
}

const getSalesTotals = `-- name: GetSalesTotals :one
SELECT COUNT(*)::bigint AS order_count,
       COALESCE(SUM(subtotal), 0)::numeric(12,2) AS sales
FROM orders
WHERE status = 'completed'
  AND ($1::timestamptz IS NULL OR created_at >= $1)
  AND ($2::timestamptz IS NULL OR created_at < $2)`

type GetSalesTotalsRow struct {
	OrderCount int64
	Sales      pgtype.Numeric
}

func (q *Queries) GetSalesTotals(ctx context.Context, arg DateRangeParams) (GetSalesTotalsRow, error) {
	row := q.db.QueryRow(ctx, getSalesTotals, arg.From, arg.To)
	var i GetSalesTotalsRow
	err := row.Scan(&i.OrderCount, &i.Sales)
	return i, err
}

const getSalesProfit = `-- name: GetSalesProfit :one
SELECT COALESCE(SUM((oi.price_snapshot - COALESCE(p.cost, 0)) * oi.qty), 0)::numeric(12,2) AS profit
FROM order_items oi
JOIN orders o ON o.id = oi.order_id
LEFT JOIN products p ON p.id = oi.product_id
WHERE o.status = 'completed'
  AND ($1::timestamptz IS NULL OR o.created_at >= $1)
  AND ($2::timestamptz IS NULL OR o.created_at < $2)`

// GetSalesProfit uses the product's current cost, not a cost snapshot.
func (q *Queries) GetSalesProfit(ctx context.Context, arg DateRangeParams) (pgtype.Numeric, error) {
	row := q.db.QueryRow(ctx, getSalesProfit, arg.From, arg.To)
	var profit pgtype.Numeric
	err := row.Scan(&profit)
	return profit, err
}

const getPaymentBreakdown = `-- name: GetPaymentBreakdown :many
SELECT payment_method,
       COUNT(*)::bigint AS order_count,
       COALESCE(SUM(subtotal), 0)::numeric(12,2) AS sales
FROM orders
WHERE status = 'completed'
  AND ($1::timestamptz IS NULL OR created_at >= $1)
  AND ($2::timestamptz IS NULL OR created_at < $2)
GROUP BY payment_method
ORDER BY payment_method`

type GetPaymentBreakdownRow struct {
	PaymentMethod string
	OrderCount    int64
	Sales         pgtype.Numeric
}

func (q *Queries) GetPaymentBreakdown(ctx context.Context, arg DateRangeParams) ([]GetPaymentBreakdownRow, error) {
	rows, err := q.db.Query(ctx, getPaymentBreakdown, arg.From, arg.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []GetPaymentBreakdownRow{}
	for rows.Next() {
		var i GetPaymentBreakdownRow
		if err := rows.Scan(&i.PaymentMethod, &i.OrderCount, &i.Sales); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getTopItems = `-- name: GetTopItems :many
SELECT oi.name_snapshot,
       SUM(oi.qty)::bigint AS qty,
       SUM(oi.price_snapshot * oi.qty)::numeric(12,2) AS sales
FROM order_items oi
JOIN orders o ON o.id = oi.order_id
WHERE o.status = 'completed'
  AND ($1::timestamptz IS NULL OR o.created_at >= $1)
  AND ($2::timestamptz IS NULL OR o.created_at < $2)
GROUP BY oi.name_snapshot
ORDER BY qty DESC, oi.name_snapshot
LIMIT $3`

type GetTopItemsParams struct {
	From  pgtype.Timestamptz
	To    pgtype.Timestamptz
	Limit int32
}

type GetTopItemsRow struct {
	Name  string
	Qty   int64
	Sales pgtype.Numeric
}

func (q *Queries) GetTopItems(ctx context.Context, arg GetTopItemsParams) ([]GetTopItemsRow, error) {
	rows, err := q.db.Query(ctx, getTopItems, arg.From, arg.To, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []GetTopItemsRow{}
	for rows.Next() {
		var i GetTopItemsRow
		if err := rows.Scan(&i.Name, &i.Qty, &i.Sales); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listOrdersForExport = `-- name: ListOrdersForExport :many
SELECT o.order_no, o.created_at, o.order_type, o.payment_method, o.subtotal, o.status, o.source,
       COALESCE(string_agg(oi.name_snapshot || ' x' || oi.qty, '; ' ORDER BY oi.id), '') AS items
FROM orders o
LEFT JOIN order_items oi ON oi.order_id = o.id
WHERE ($1::timestamptz IS NULL OR o.created_at >= $1)
  AND ($2::timestamptz IS NULL OR o.created_at < $2)
GROUP BY o.id
ORDER BY o.created_at ASC, o.id ASC`

type ListOrdersForExportRow struct {
	OrderNo       string
	CreatedAt     time.Time
	OrderType     string
	PaymentMethod string
	Subtotal      pgtype.Numeric
	Status        string
	Source        string
	Items         string
}

func (q *Queries) ListOrdersForExport(ctx context.Context, arg DateRangeParams) ([]ListOrdersForExportRow, error) {
	rows, err := q.db.Query(ctx, listOrdersForExport, arg.From, arg.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []ListOrdersForExportRow{}
	for rows.Next() {
		var i ListOrdersForExportRow
		if err := rows.Scan(
			&i.OrderNo,
			&i.CreatedAt,
			&i.OrderType,
			&i.PaymentMethod,
			&i.Subtotal,
			&i.Status,
			&i.Source,
			&i.Items,
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
