package database

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Role         string
	Active       bool
	CreatedAt    time.Time
}

type Product struct {
	ID         int64
	Name       string
	Category   string
	Price      pgtype.Numeric
	Cost       pgtype.Numeric
	Sku        pgtype.Text
	ImageUrl   pgtype.Text
	Active     bool
	TrackStock bool
	CreatedAt  time.Time
}

type Inventory struct {
	ProductID         int64
	Quantity          int32
	LowStockThreshold int32
}

type InventoryLog struct {
	ID        int64
	ProductID int64
	Delta     int32
	Reason    string
	UserID    pgtype.Int8
	CreatedAt time.Time
}

type Setting struct {
	Key   string
	Value string
}

type Order struct {
	ID             int64
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
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ServedByUserID pgtype.Int8
}

type OrderItem struct {
	ID            int64
	OrderID       int64
	ProductID     pgtype.Int8
	NameSnapshot  string
	PriceSnapshot pgtype.Numeric
	Qty           int32
	Notes         pgtype.Text
	StockDeducted bool
}

type OrderEvent struct {
	ID        int64
	OrderID   int64
	Status    string
	UserID    pgtype.Int8
	CreatedAt time.Time
}
