package service

import (
	"context"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/snackattack-pos/api/internal/database"
)

// --- Mock implementations ---

// mockTx implements pgx.Tx with only the methods we need.
// The unused methods panic so we catch accidental calls.
type mockTx struct {
	commitErr error
	committed int
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (m *mockTx) Commit(ctx context.Context) error {
	if m.commitErr != nil {
		return m.commitErr
	}
	m.committed++
	return nil
}
func (m *mockTx) Rollback(ctx context.Context) error { return nil }
func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (m *mockTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (m *mockTx) Conn() *pgx.Conn { panic("not implemented") }

// mockTxBeginner implements TxBeginner.
type mockTxBeginner struct {
	tx  pgx.Tx
	err error
}

func (m *mockTxBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	return m.tx, m.err
}

// fakeStore is an in-memory OrderStore and InventoryStore. It keeps enough
// state to check stock and audit invariants across a sequence of calls.
// Hook fields inject failures.
type fakeStore struct {
	products  map[int64]database.Product
	inventory map[int64]database.Inventory
	orders    map[int64]database.Order
	items     []database.OrderItem
	events    []database.OrderEvent
	logs      []database.InventoryLog
	nextID    int64

	// deltaOrder records the product ID of every ApplyInventoryDelta call.
	deltaOrder []int64

	createOrderFn func(arg database.CreateOrderParams) error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		products:  make(map[int64]database.Product),
		inventory: make(map[int64]database.Inventory),
		orders:    make(map[int64]database.Order),
	}
}

func (f *fakeStore) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeStore) addProduct(p database.Product, qty int32) {
	f.products[p.ID] = p
	f.inventory[p.ID] = database.Inventory{ProductID: p.ID, Quantity: qty, LowStockThreshold: 5}
}

func (f *fakeStore) GetProductsForOrder(ctx context.Context, ids []int64) ([]database.ProductWithStockRow, error) {
	var rows []database.ProductWithStockRow
	for _, id := range ids {
		p, ok := f.products[id]
		if !ok {
			continue
		}
		inv := f.inventory[id]
		rows = append(rows, database.ProductWithStockRow{Product: p, Quantity: inv.Quantity, LowStockThreshold: inv.LowStockThreshold})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Product.ID < rows[j].Product.ID })
	return rows, nil
}

func (f *fakeStore) CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
	if f.createOrderFn != nil {
		if err := f.createOrderFn(arg); err != nil {
			return database.Order{}, err
		}
	}
	o := database.Order{
		ID:             f.id(),
		OrderNo:        arg.OrderNo,
		Source:         arg.Source,
		CustomerName:   arg.CustomerName,
		Phone:          arg.Phone,
		Address:        arg.Address,
		OrderType:      arg.OrderType,
		PaymentMethod:  arg.PaymentMethod,
		PaymentStatus:  arg.PaymentStatus,
		GcashRef:       arg.GcashRef,
		CashReceived:   arg.CashReceived,
		ChangeDue:      arg.ChangeDue,
		Status:         arg.Status,
		Subtotal:       arg.Subtotal,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
		ServedByUserID: arg.ServedByUserID,
	}
	f.orders[o.ID] = o
	return o, nil
}

func (f *fakeStore) CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error) {
	item := database.OrderItem{
		ID:            f.id(),
		OrderID:       arg.OrderID,
		ProductID:     arg.ProductID,
		NameSnapshot:  arg.NameSnapshot,
		PriceSnapshot: arg.PriceSnapshot,
		Qty:           arg.Qty,
		Notes:         arg.Notes,
		StockDeducted: arg.StockDeducted,
	}
	f.items = append(f.items, item)
	return item, nil
}

func (f *fakeStore) CreateOrderEvent(ctx context.Context, arg database.CreateOrderEventParams) (database.OrderEvent, error) {
	ev := database.OrderEvent{ID: f.id(), OrderID: arg.OrderID, Status: arg.Status, UserID: arg.UserID, CreatedAt: time.Now()}
	f.events = append(f.events, ev)
	return ev, nil
}

func (f *fakeStore) ApplyInventoryDelta(ctx context.Context, arg database.ApplyInventoryDeltaParams) (database.Inventory, error) {
	f.deltaOrder = append(f.deltaOrder, arg.ProductID)
	inv, ok := f.inventory[arg.ProductID]
	if !ok || inv.Quantity+arg.Delta < 0 {
		return database.Inventory{}, pgx.ErrNoRows
	}
	inv.Quantity += arg.Delta
	f.inventory[arg.ProductID] = inv
	return inv, nil
}

func (f *fakeStore) CreateInventoryLog(ctx context.Context, arg database.CreateInventoryLogParams) (database.InventoryLog, error) {
	l := database.InventoryLog{ID: f.id(), ProductID: arg.ProductID, Delta: arg.Delta, Reason: arg.Reason, UserID: arg.UserID, CreatedAt: time.Now()}
	f.logs = append(f.logs, l)
	return l, nil
}

func (f *fakeStore) GetOrderForUpdate(ctx context.Context, id int64) (database.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return database.Order{}, pgx.ErrNoRows
	}
	return o, nil
}

func (f *fakeStore) UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error) {
	o, ok := f.orders[arg.ID]
	if !ok {
		return database.Order{}, pgx.ErrNoRows
	}
	o.Status = arg.Status
	o.PaymentStatus = arg.PaymentStatus
	o.UpdatedAt = time.Now()
	f.orders[arg.ID] = o
	return o, nil
}

func (f *fakeStore) ListOrderItemsByOrder(ctx context.Context, orderID int64) ([]database.OrderItem, error) {
	var out []database.OrderItem
	for _, it := range f.items {
		if it.OrderID == orderID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (f *fakeStore) GetProduct(ctx context.Context, id int64) (database.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return database.Product{}, pgx.ErrNoRows
	}
	return p, nil
}

func (f *fakeStore) CreateProduct(ctx context.Context, arg database.CreateProductParams) (database.Product, error) {
	p := database.Product{
		ID:         f.id(),
		Name:       arg.Name,
		Category:   arg.Category,
		Price:      arg.Price,
		Cost:       arg.Cost,
		Sku:        arg.Sku,
		ImageUrl:   arg.ImageUrl,
		Active:     arg.Active,
		TrackStock: arg.TrackStock,
	}
	f.products[p.ID] = p
	return p, nil
}

func (f *fakeStore) UpdateProduct(ctx context.Context, arg database.UpdateProductParams) (database.Product, error) {
	if _, ok := f.products[arg.ID]; !ok {
		return database.Product{}, pgx.ErrNoRows
	}
	p := database.Product{
		ID:         arg.ID,
		Name:       arg.Name,
		Category:   arg.Category,
		Price:      arg.Price,
		Cost:       arg.Cost,
		Sku:        arg.Sku,
		ImageUrl:   arg.ImageUrl,
		Active:     arg.Active,
		TrackStock: arg.TrackStock,
	}
	f.products[arg.ID] = p
	return p, nil
}

func (f *fakeStore) EnsureInventory(ctx context.Context, productID int64) error {
	if _, ok := f.inventory[productID]; !ok {
		f.inventory[productID] = database.Inventory{ProductID: productID, LowStockThreshold: 5}
	}
	return nil
}

func (f *fakeStore) GetInventoryForUpdate(ctx context.Context, productID int64) (database.Inventory, error) {
	inv, ok := f.inventory[productID]
	if !ok {
		return database.Inventory{}, pgx.ErrNoRows
	}
	return inv, nil
}

func (f *fakeStore) CreateInventory(ctx context.Context, arg database.CreateInventoryParams) (database.Inventory, error) {
	inv := database.Inventory{ProductID: arg.ProductID, Quantity: arg.Quantity, LowStockThreshold: arg.LowStockThreshold}
	f.inventory[arg.ProductID] = inv
	return inv, nil
}

func (f *fakeStore) UpdateLowStockThreshold(ctx context.Context, arg database.UpdateLowStockThresholdParams) error {
	inv := f.inventory[arg.ProductID]
	inv.LowStockThreshold = arg.LowStockThreshold
	f.inventory[arg.ProductID] = inv
	return nil
}

// --- Test helpers ---

func makeNumeric(val string) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(val)
	return n
}

func numericEquals(n pgtype.Numeric, expected string) bool {
	d := numericToDecimal(n)
	exp, _ := decimal.NewFromString(expected)
	return d.Equal(exp)
}

// logSum returns the total logged delta for a product.
func (f *fakeStore) logSum(productID int64) int32 {
	var sum int32
	for _, l := range f.logs {
		if l.ProductID == productID {
			sum += l.Delta
		}
	}
	return sum
}
