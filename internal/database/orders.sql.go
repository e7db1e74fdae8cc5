package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, order_no, source, customer_name, phone, address, order_type,
       payment_method, payment_status, gcash_ref, cash_received, change_due,
       status, subtotal, created_at, updated_at, served_by_user_id`

func scanOrder(row interface{ Scan(...any) error }) (Order, error) {
	var i Order
	err := row.Scan(
		&i.ID,
		&i.OrderNo,
		&i.Source,
		&i.CustomerName,
		&i.Phone,
		&i.Address,
		&i.OrderType,
		&i.PaymentMethod,
		&i.PaymentStatus,
		&i.GcashRef,
		&i.CashReceived,
		&i.ChangeDue,
		&i.Status,
		&i.Subtotal,
		&i.CreatedAt,
		&i.UpdatedAt,
		&i.ServedByUserID,
	)
	return i, err
}

func (q *Queries) queryOrders(ctx context.Context, sql string, args ...interface{}) ([]Order, error) {
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Order{}
	for rows.Next() {
		i, err := scanOrder(rows)
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

const createOrder = `-- name: CreateOrder :one
INSERT INTO orders (
    order_no, source, customer_name, phone, address, order_type,
    payment_method, payment_status, gcash_ref, cash_received, change_due,
    status, subtotal, served_by_user_id
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
RETURNING ` + orderColumns

type CreateOrderParams struct {
	OrderNo        string
	Source         string
	CustomerName   pgtype.Text
	Phone          pgtype.Text
	Address        pgtype.Text
	OrderType      string
	PaymentMethod  string
	PaymentStatus  string
	GcashRef       pgtype.Text
	CashReceived   pgtype.Numeric
	ChangeDue      pgtype.Numeric
	Status         string
	Subtotal       pgtype.Numeric
	ServedByUserID pgtype.Int8
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, createOrder,
		arg.OrderNo,
		arg.Source,
		arg.CustomerName,
		arg.Phone,
		arg.Address,
		arg.OrderType,
		arg.PaymentMethod,
		arg.PaymentStatus,
		arg.GcashRef,
		arg.CashReceived,
		arg.ChangeDue,
		arg.Status,
		arg.Subtotal,
		arg.ServedByUserID,
	))
}

const orderItemColumns = `id, order_id, product_id, name_snapshot, price_snapshot, qty, notes, stock_deducted`

func scanOrderItem(row interface{ Scan(...any) error }) (OrderItem, error) {
	var i OrderItem
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.ProductID,
		&i.NameSnapshot,
		&i.PriceSnapshot,
		&i.Qty,
		&i.Notes,
		&i.StockDeducted,
	)
	return i, err
}

const createOrderItem = `-- name: CreateOrderItem :one
INSERT INTO order_items (order_id, product_id, name_snapshot, price_snapshot, qty, notes, stock_deducted)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + orderItemColumns

type CreateOrderItemParams struct {
	OrderID       int64
	ProductID     pgtype.Int8
	NameSnapshot  string
	PriceSnapshot pgtype.Numeric
	Qty           int32
	Notes         pgtype.Text
	StockDeducted bool
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	return scanOrderItem(q.db.QueryRow(ctx, createOrderItem,
		arg.OrderID,
		arg.ProductID,
		arg.NameSnapshot,
		arg.PriceSnapshot,
		arg.Qty,
		arg.Notes,
		arg.StockDeducted,
	))
}

const createOrderEvent = `-- name: CreateOrderEvent :one
INSERT INTO order_events (order_id, status, user_id)
VALUES ($1, $2, $3)
RETURNING id, order_id, status, user_id, created_at`

type CreateOrderEventParams struct {
	OrderID int64
	Status  string
	UserID  pgtype.Int8
}

func (q *Queries) CreateOrderEvent(ctx context.Context, arg CreateOrderEventParams) (OrderEvent, error) {
	row := q.db.QueryRow(ctx, createOrderEvent, arg.OrderID, arg.Status, arg.UserID)
	var i OrderEvent
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.Status,
		&i.UserID,
		&i.CreatedAt,
	)
	return i, err
}

const getOrder = `-- name: GetOrder :one
SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

func (q *Queries) GetOrder(ctx context.Context, id int64) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, id))
}

const getOrderForUpdate = `-- name: GetOrderForUpdate :one
SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`

func (q *Queries) GetOrderForUpdate(ctx context.Context, id int64) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderForUpdate, id))
}

const getOrderByNo = `-- name: GetOrderByNo :one
SELECT ` + orderColumns + ` FROM orders WHERE order_no = $1`

func (q *Queries) GetOrderByNo(ctx context.Context, orderNo string) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderByNo, orderNo))
}

const listActiveOrders = `-- name: ListActiveOrders :many
SELECT ` + orderColumns + `
FROM orders
WHERE status IN ('pending', 'preparing', 'ready')
ORDER BY created_at ASC, id ASC`

func (q *Queries) ListActiveOrders(ctx context.Context) ([]Order, error) {
	return q.queryOrders(ctx, listActiveOrders)
}

const updateOrderStatus = `-- name: UpdateOrderStatus :one
UPDATE orders
SET status = $2,
    payment_status = $3,
    updated_at = now()
WHERE id = $1
RETURNING ` + orderColumns

type UpdateOrderStatusParams struct {
	ID            int64
	Status        string
	PaymentStatus string
}

func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderStatus, arg.ID, arg.Status, arg.PaymentStatus))
}

const listOrderItemsByOrder = `-- name: ListOrderItemsByOrder :many
SELECT ` + orderItemColumns + ` FROM order_items WHERE order_id = $1 ORDER BY id`

func (q *Queries) ListOrderItemsByOrder(ctx context.Context, orderID int64) ([]OrderItem, error) {
	return q.queryOrderItems(ctx, listOrderItemsByOrder, orderID)
}

const listOrderItemsByOrders = `-- name: ListOrderItemsByOrders :many
SELECT ` + orderItemColumns + ` FROM order_items WHERE order_id = ANY($1::bigint[]) ORDER BY id`

func (q *Queries) ListOrderItemsByOrders(ctx context.Context, orderIDs []int64) ([]OrderItem, error) {
	return q.queryOrderItems(ctx, listOrderItemsByOrders, orderIDs)
}

func (q *Queries) queryOrderItems(ctx context.Context, sql string, args ...interface{}) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []OrderItem{}
	for rows.Next() {
		i, err := scanOrderItem(rows)
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

const listOrderEvents = `-- name: ListOrderEvents :many
SELECT e.id, e.order_id, e.status, u.username, e.created_at
FROM order_events e
LEFT JOIN users u ON u.id = e.user_id
WHERE e.order_id = $1
ORDER BY e.id`

type ListOrderEventsRow struct {
	ID        int64
	OrderID   int64
	Status    string
	Username  pgtype.Text
	CreatedAt time.Time
}

func (q *Queries) ListOrderEvents(ctx context.Context, orderID int64) ([]ListOrderEventsRow, error) {
	rows, err := q.db.Query(ctx, listOrderEvents, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []ListOrderEventsRow{}
	for rows.Next() {
		var i ListOrderEventsRow
		if err := rows.Scan(
			&i.ID,
			&i.OrderID,
			&i.Status,
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

const listOrderHistory = `-- name: ListOrderHistory :many
SELECT o.id, o.order_no, o.source, o.customer_name, o.phone, o.address, o.order_type,
       o.payment_method, o.payment_status, o.gcash_ref, o.cash_received, o.change_due,
       o.status, o.subtotal, o.created_at, o.updated_at, o.served_by_user_id,
       (SELECT COALESCE(SUM(oi.qty), 0) FROM order_items oi WHERE oi.order_id = o.id)::bigint AS item_count
FROM orders o
WHERE ($1::timestamptz IS NULL OR o.created_at >= $1)
  AND ($2::timestamptz IS NULL OR o.created_at < $2)
  AND ($3::text IS NULL OR o.status = $3)
  AND ($4::text IS NULL OR o.order_no ILIKE '%' || $4 || '%' OR o.customer_name ILIKE '%' || $4 || '%')
ORDER BY o.created_at DESC, o.id DESC
LIMIT $5`

type ListOrderHistoryParams struct {
	From   pgtype.Timestamptz
	To     pgtype.Timestamptz
	Status pgtype.Text
	Search pgtype.Text
	Limit  int32
}

type ListOrderHistoryRow struct {
	Order     Order
	ItemCount int64
}

func (q *Queries) ListOrderHistory(ctx context.Context, arg ListOrderHistoryParams) ([]ListOrderHistoryRow, error) {
	rows, err := q.db.Query(ctx, listOrderHistory,
		arg.From,
		arg.To,
		arg.Status,
		arg.Search,
		arg.Limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []ListOrderHistoryRow{}
	for rows.Next() {
		var i ListOrderHistoryRow
		o := &i.Order
		if err := rows.Scan(
			&o.ID,
			&o.OrderNo,
			&o.Source,
			&o.CustomerName,
			&o.Phone,
			&o.Address,
			&o.OrderType,
			&o.PaymentMethod,
			&o.PaymentStatus,
			&o.GcashRef,
			&o.CashReceived,
			&o.ChangeDue,
			&o.Status,
			&o.Subtotal,
			&o.CreatedAt,
			&o.UpdatedAt,
			&o.ServedByUserID,
			&i.ItemCount,
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
