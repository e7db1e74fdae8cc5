package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/snackattack-pos/api/internal/database"
	"github.com/snackattack-pos/api/internal/enum"
)

const maxOrderNumberRetries = 3

// MaxAmount is the largest money value the NUMERIC(10,2) columns hold.
var MaxAmount = decimal.RequireFromString("99999999.99")

// Errors returned by the order service.
var (
	ErrEmptyItems           = errors.New("at least one item is required")
	ErrInvalidQuantity      = errors.New("quantity must be > 0")
	ErrInvalidSource        = errors.New("invalid source")
	ErrInvalidOrderType     = errors.New("invalid order type")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrGCashRefRequired     = errors.New("GCash reference number is required")
	ErrProductNotFound      = errors.New("invalid product in cart")
	ErrProductUnavailable   = errors.New("product is not available")
	ErrInsufficientStock    = errors.New("out of stock")
	ErrCashShort            = errors.New("cash received is less than total")
	ErrOrderTooLarge        = errors.New("order total exceeds 99999999.99")
	ErrCashTooLarge         = errors.New("cash received exceeds 99999999.99")
	ErrOrderNotFound        = errors.New("order not found")
	ErrInvalidStatus        = errors.New("invalid status")
	ErrInvalidTransition    = errors.New("cannot transition")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods needed to create orders and move them
// through their lifecycle. Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	GetProductsForOrder(ctx context.Context, ids []int64) ([]database.ProductWithStockRow, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	CreateOrderEvent(ctx context.Context, arg database.CreateOrderEventParams) (database.OrderEvent, error)
	ApplyInventoryDelta(ctx context.Context, arg database.ApplyInventoryDeltaParams) (database.Inventory, error)
	CreateInventoryLog(ctx context.Context, arg database.CreateInventoryLogParams) (database.InventoryLog, error)
	GetOrderForUpdate(ctx context.Context, id int64) (database.Order, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID int64) ([]database.OrderItem, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
// This allows the service to create store instances from transactions.
type NewOrderStore func(db database.DBTX) OrderStore

// Recorder receives business events for metrics. A nil Recorder is ignored.
type Recorder interface {
	OrderCreated(source string)
	OrderStatusChanged(status string)
	InventoryAdjusted(delta int32)
}

type noopRecorder struct{}

func (noopRecorder) OrderCreated(string)       {}
func (noopRecorder) OrderStatusChanged(string) {}
func (noopRecorder) InventoryAdjusted(int32)   {}

// CreateOrderRequest is the validated input for creating an order.
type CreateOrderRequest struct {
	Source        string
	CustomerName  string
	Phone         string
	Address       string
	OrderType     string
	PaymentMethod string
	GcashRef      string
	// CashReceived is only used for POS cash payments.
	CashReceived *decimal.Decimal
	// ServedBy is the session user; nil for anonymous customer orders.
	ServedBy *int64
	Items    []CreateOrderItemRequest
}

// CreateOrderItemRequest is a single cart line.
type CreateOrderItemRequest struct {
	ProductID int64
	Qty       int32
	Notes     string
}

// CreateOrderResult is the full created order with items.
type CreateOrderResult struct {
	Order database.Order
	Items []database.OrderItem
}

// UpdateStatusRequest moves an order to a new status on behalf of UserID.
type UpdateStatusRequest struct {
	OrderID int64
	Status  string
	UserID  int64
}

// UpdateStatusResult reports the order after the transition. Changed is
// false when the request was an idempotent no-op (re-cancelling).
type UpdateStatusResult struct {
	Order   database.Order
	Changed bool
}

// OrderService handles order business logic.
type OrderService struct {
	pool     TxBeginner
	newStore NewOrderStore
	recorder Recorder
	orderNo  func() string
}

// NewOrderService creates a new OrderService.
func NewOrderService(pool TxBeginner, newStore NewOrderStore, recorder Recorder) *OrderService {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &OrderService{
		pool:     pool,
		newStore: newStore,
		recorder: recorder,
		orderNo:  NewOrderNumber,
	}
}

// WithOrderNumberFunc overrides order number generation. Used by tests.
func (s *OrderService) WithOrderNumberFunc(fn func() string) *OrderService {
	s.orderNo = fn
	return s
}

// pricedLine is a cart line resolved against the product row.
type pricedLine struct {
	product database.Product
	qty     int32
	notes   string
}

// CreateOrder validates stock, snapshots prices, deducts inventory and
// records the initial event atomically. Retries up to maxOrderNumberRetries
// times on order_no unique constraint violations.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error) {
	if err := validateCreateOrder(req); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < maxOrderNumberRetries; attempt++ {
		result, err := s.createOrderTx(ctx, req)
		if err == nil {
			s.recorder.OrderCreated(req.Source)
			return result, nil
		}
		if isOrderNumberConflict(err) {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

func validateCreateOrder(req CreateOrderRequest) error {
	switch req.Source {
	case enum.OrderSourceCustomer, enum.OrderSourcePOS:
	default:
		return ErrInvalidSource
	}
	switch req.OrderType {
	case enum.OrderTypeDineIn, enum.OrderTypeTakeout:
	default:
		return ErrInvalidOrderType
	}
	switch req.PaymentMethod {
	case enum.PaymentMethodCash, enum.PaymentMethodGCash:
	default:
		return ErrInvalidPaymentMethod
	}
	if req.PaymentMethod == enum.PaymentMethodGCash && strings.TrimSpace(req.GcashRef) == "" {
		return ErrGCashRefRequired
	}
	if len(req.Items) == 0 {
		return ErrEmptyItems
	}
	for i, item := range req.Items {
		if item.Qty <= 0 {
			return fmt.Errorf("item[%d]: %w", i, ErrInvalidQuantity)
		}
		if item.ProductID <= 0 {
			return fmt.Errorf("item[%d]: %w", i, ErrProductNotFound)
		}
	}
	return nil
}

// isOrderNumberConflict checks if the error is a unique constraint violation
// on the order number (pgconn error code 23505).
func isOrderNumberConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == "orders_order_no_key"
	}
	return false
}

// createOrderTx executes the full order creation in a single transaction.
func (s *OrderService) createOrderTx(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	// --- Aggregate quantities per product ---
	needed := make(map[int64]int32)
	var ids []int64
	for _, item := range req.Items {
		if _, seen := needed[item.ProductID]; !seen {
			ids = append(ids, item.ProductID)
		}
		needed[item.ProductID] += item.Qty
	}

	rows, err := store.GetProductsForOrder(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}
	byID := make(map[int64]database.ProductWithStockRow, len(rows))
	for _, row := range rows {
		byID[row.Product.ID] = row
	}

	// --- Validate products and stock ---
	for _, id := range ids {
		row, ok := byID[id]
		if !ok {
			return nil, ErrProductNotFound
		}
		if !row.Product.Active {
			return nil, fmt.Errorf("%w: %s", ErrProductUnavailable, row.Product.Name)
		}
		if row.Product.TrackStock && row.Quantity < needed[id] {
			return nil, fmt.Errorf("%w: %s (available %d)", ErrInsufficientStock, row.Product.Name, row.Quantity)
		}
	}

	// --- Price lines ---
	subtotal := decimal.Zero
	lines := make([]pricedLine, len(req.Items))
	for i, item := range req.Items {
		p := byID[item.ProductID].Product
		price := numericToDecimal(p.Price)
		subtotal = subtotal.Add(price.Mul(decimal.NewFromInt32(item.Qty)))
		lines[i] = pricedLine{product: p, qty: item.Qty, notes: strings.TrimSpace(item.Notes)}
	}
	subtotal = subtotal.Round(2)
	if subtotal.GreaterThan(MaxAmount) {
		return nil, ErrOrderTooLarge
	}

	// --- Payment ---
	paymentStatus := enum.PaymentStatusUnpaid
	cashReceived := pgtype.Numeric{}
	changeDue := pgtype.Numeric{}
	if req.Source == enum.OrderSourcePOS {
		paymentStatus = enum.PaymentStatusPaid
		if req.PaymentMethod == enum.PaymentMethodCash {
			cash := decimal.Zero
			if req.CashReceived != nil {
				cash = req.CashReceived.Round(2)
			}
			if cash.LessThan(subtotal) {
				return nil, ErrCashShort
			}
			if cash.GreaterThan(MaxAmount) {
				return nil, ErrCashTooLarge
			}
			cashReceived = decimalToNumeric(cash)
			changeDue = decimalToNumeric(cash.Sub(subtotal))
		}
	}

	servedBy := pgtype.Int8{}
	if req.ServedBy != nil {
		servedBy = pgtype.Int8{Int64: *req.ServedBy, Valid: true}
	}

	orderNo := s.orderNo()

	// --- Insert order ---
	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		OrderNo:        orderNo,
		Source:         req.Source,
		CustomerName:   optionalText(req.CustomerName),
		Phone:          optionalText(req.Phone),
		Address:        optionalText(req.Address),
		OrderType:      req.OrderType,
		PaymentMethod:  req.PaymentMethod,
		PaymentStatus:  paymentStatus,
		GcashRef:       optionalText(req.GcashRef),
		CashReceived:   cashReceived,
		ChangeDue:      changeDue,
		Status:         enum.OrderStatusPending,
		Subtotal:       decimalToNumeric(subtotal),
		ServedByUserID: servedBy,
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	// --- Insert items ---
	items := make([]database.OrderItem, 0, len(lines))
	for _, line := range lines {
		item, err := store.CreateOrderItem(ctx, database.CreateOrderItemParams{
			OrderID:       order.ID,
			ProductID:     pgtype.Int8{Int64: line.product.ID, Valid: true},
			NameSnapshot:  line.product.Name,
			PriceSnapshot: line.product.Price,
			Qty:           line.qty,
			Notes:         optionalText(line.notes),
			StockDeducted: line.product.TrackStock,
		})
		if err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}
		items = append(items, item)
	}

	// --- Deduct stock ---
	// Inventory rows are locked in ascending product order so concurrent
	// orders and cancels cannot deadlock on each other.
	for _, line := range sortedByProduct(lines) {
		if !line.product.TrackStock {
			continue
		}
		if _, err := store.ApplyInventoryDelta(ctx, database.ApplyInventoryDeltaParams{
			ProductID: line.product.ID,
			Delta:     -line.qty,
		}); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("%w: %s", ErrInsufficientStock, line.product.Name)
			}
			return nil, fmt.Errorf("deduct stock: %w", err)
		}
		if _, err := store.CreateInventoryLog(ctx, database.CreateInventoryLogParams{
			ProductID: line.product.ID,
			Delta:     -line.qty,
			Reason:    "Order " + orderNo,
			UserID:    servedBy,
		}); err != nil {
			return nil, fmt.Errorf("create inventory log: %w", err)
		}
	}

	if _, err := store.CreateOrderEvent(ctx, database.CreateOrderEventParams{
		OrderID: order.ID,
		Status:  enum.OrderStatusPending,
		UserID:  servedBy,
	}); err != nil {
		return nil, fmt.Errorf("create order event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &CreateOrderResult{Order: order, Items: items}, nil
}

// allowedTransitions defines valid status transitions.
// Terminal states (completed, cancelled) have no outgoing edges.
var allowedTransitions = map[string][]string{
	enum.OrderStatusPending:   {enum.OrderStatusPreparing, enum.OrderStatusCancelled},
	enum.OrderStatusPreparing: {enum.OrderStatusReady, enum.OrderStatusCancelled},
	enum.OrderStatusReady:     {enum.OrderStatusCompleted, enum.OrderStatusCancelled},
}

func validateStatusTransition(current, next string) error {
	for _, s := range allowedTransitions[current] {
		if s == next {
			return nil
		}
	}
	return fmt.Errorf("%w from %s to %s", ErrInvalidTransition, current, next)
}

// IsValidOrderStatus reports whether s is a known order status.
func IsValidOrderStatus(s string) bool {
	switch s {
	case enum.OrderStatusPending, enum.OrderStatusPreparing, enum.OrderStatusReady,
		enum.OrderStatusCompleted, enum.OrderStatusCancelled:
		return true
	}
	return false
}

// UpdateStatus moves an order to req.Status. Cancelling restores stock for
// every line that was deducted; cancelling an already cancelled order is a
// no-op. The order row is locked so concurrent cancels restore stock once.
func (s *OrderService) UpdateStatus(ctx context.Context, req UpdateStatusRequest) (*UpdateStatusResult, error) {
	if !IsValidOrderStatus(req.Status) {
		return nil, ErrInvalidStatus
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, req.OrderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	if order.Status == enum.OrderStatusCancelled && req.Status == enum.OrderStatusCancelled {
		return &UpdateStatusResult{Order: order, Changed: false}, nil
	}

	if err := validateStatusTransition(order.Status, req.Status); err != nil {
		return nil, err
	}

	paymentStatus := order.PaymentStatus
	if req.Status == enum.OrderStatusCompleted {
		paymentStatus = enum.PaymentStatusPaid
	}

	userID := pgtype.Int8{Int64: req.UserID, Valid: req.UserID > 0}

	updated, err := store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
		ID:            order.ID,
		Status:        req.Status,
		PaymentStatus: paymentStatus,
	})
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}

	if _, err := store.CreateOrderEvent(ctx, database.CreateOrderEventParams{
		OrderID: order.ID,
		Status:  req.Status,
		UserID:  userID,
	}); err != nil {
		return nil, fmt.Errorf("create order event: %w", err)
	}

	if req.Status == enum.OrderStatusCancelled {
		if err := restoreStock(ctx, store, order, userID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	s.recorder.OrderStatusChanged(req.Status)
	return &UpdateStatusResult{Order: updated, Changed: true}, nil
}

func restoreStock(ctx context.Context, store OrderStore, order database.Order, userID pgtype.Int8) error {
	items, err := store.ListOrderItemsByOrder(ctx, order.ID)
	if err != nil {
		return fmt.Errorf("list order items: %w", err)
	}
	// Same lock order as order creation.
	slices.SortStableFunc(items, func(a, b database.OrderItem) int {
		return cmp.Compare(a.ProductID.Int64, b.ProductID.Int64)
	})
	for _, item := range items {
		if !item.StockDeducted || !item.ProductID.Valid {
			continue
		}
		if _, err := store.ApplyInventoryDelta(ctx, database.ApplyInventoryDeltaParams{
			ProductID: item.ProductID.Int64,
			Delta:     item.Qty,
		}); err != nil {
			return fmt.Errorf("restore stock for product %d: %w", item.ProductID.Int64, err)
		}
		if _, err := store.CreateInventoryLog(ctx, database.CreateInventoryLogParams{
			ProductID: item.ProductID.Int64,
			Delta:     item.Qty,
			Reason:    "Cancel " + order.OrderNo,
			UserID:    userID,
		}); err != nil {
			return fmt.Errorf("create inventory log: %w", err)
		}
	}
	return nil
}

// --- Helpers ---

// sortedByProduct returns a copy of lines ordered by product ID, keeping
// cart order among lines of the same product.
func sortedByProduct(lines []pricedLine) []pricedLine {
	out := slices.Clone(lines)
	slices.SortStableFunc(out, func(a, b pricedLine) int {
		return cmp.Compare(a.product.ID, b.product.ID)
	})
	return out
}

func optionalText(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}
