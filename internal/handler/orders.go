package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/snackattack-pos/api/internal/database"
	"github.com/snackattack-pos/api/internal/enum"
	"github.com/snackattack-pos/api/internal/middleware"
	"github.com/snackattack-pos/api/internal/qrcode"
	"github.com/snackattack-pos/api/internal/service"
)

const maxHistoryRows = 300

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*service.CreateOrderResult, error)
	UpdateStatus(ctx context.Context, req service.UpdateStatusRequest) (*service.UpdateStatusResult, error)
}

// OrderStore defines the database methods needed by order read handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type OrderStore interface {
	GetOrder(ctx context.Context, id int64) (database.Order, error)
	GetOrderByNo(ctx context.Context, orderNo string) (database.Order, error)
	ListActiveOrders(ctx context.Context) ([]database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID int64) ([]database.OrderItem, error)
	ListOrderItemsByOrders(ctx context.Context, orderIDs []int64) ([]database.OrderItem, error)
	ListOrderEvents(ctx context.Context, orderID int64) ([]database.ListOrderEventsRow, error)
	ListOrderHistory(ctx context.Context, arg database.ListOrderHistoryParams) ([]database.ListOrderHistoryRow, error)
}

// QREncoder renders content as a PNG QR code. Satisfied by qrcode.Generator.
type QREncoder interface {
	PNG(content string) ([]byte, error)
}

// OrderHandler handles order intake, tracking, the kitchen board and history.
type OrderHandler struct {
	svc       OrderServicer
	store     OrderStore
	qr        QREncoder
	publicURL string
	loc       *time.Location
}

// NewOrderHandler creates a new OrderHandler. publicURL prefixes tracking
// links; when empty it is derived from the request. loc interprets the
// history date filters.
func NewOrderHandler(svc OrderServicer, store OrderStore, qr QREncoder, publicURL string, loc *time.Location) *OrderHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &OrderHandler{
		svc:       svc,
		store:     store,
		qr:        qr,
		publicURL: strings.TrimRight(publicURL, "/"),
		loc:       loc,
	}
}

// --- Request / Response types ---

type createOrderRequest struct {
	Source        string                   `json:"source" validate:"required,oneof=customer pos"`
	CustomerName  string                   `json:"customerName" validate:"required_if=Source customer,max=80"`
	Phone         string                   `json:"phone" validate:"max=30,phone"`
	Address       string                   `json:"address" validate:"max=200"`
	OrderType     string                   `json:"orderType" validate:"required,oneof=dine-in takeout"`
	PaymentMethod string                   `json:"paymentMethod" validate:"required,oneof=cash gcash"`
	GcashRef      string                   `json:"gcashRef" validate:"required_if=PaymentMethod gcash,max=64"`
	CashReceived  *decimal.Decimal         `json:"cashReceived"`
	Items         []createOrderItemRequest `json:"items" validate:"required,min=1,max=100,dive"`
}

type createOrderItemRequest struct {
	ProductID int64  `json:"productId" validate:"required,gt=0"`
	Qty       int32  `json:"qty" validate:"required,min=1,max=999"`
	Notes     string `json:"notes" validate:"max=200"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending preparing ready completed cancelled"`
}

type orderResponse struct {
	ID             int64     `json:"id"`
	OrderNo        string    `json:"orderNo"`
	Source         string    `json:"source"`
	CustomerName   string    `json:"customerName"`
	Phone          string    `json:"phone"`
	Address        string    `json:"address"`
	OrderType      string    `json:"orderType"`
	PaymentMethod  string    `json:"paymentMethod"`
	PaymentStatus  string    `json:"paymentStatus"`
	GcashRef       string    `json:"gcashRef"`
	CashReceived   *string   `json:"cashReceived"`
	ChangeDue      *string   `json:"changeDue"`
	Status         string    `json:"status"`
	Subtotal       string    `json:"subtotal"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
	ServedByUserID *int64    `json:"servedByUserId"`
}

// trackOrderResponse is the public view of an order. Contact details are
// never exposed to the tracking page.
type trackOrderResponse struct {
	OrderNo       string    `json:"orderNo"`
	CustomerName  string    `json:"customerName"`
	OrderType     string    `json:"orderType"`
	PaymentMethod string    `json:"paymentMethod"`
	PaymentStatus string    `json:"paymentStatus"`
	Status        string    `json:"status"`
	Subtotal      string    `json:"subtotal"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type orderItemResponse struct {
	ID        int64  `json:"id"`
	ProductID *int64 `json:"productId"`
	Name      string `json:"name"`
	Price     string `json:"price"`
	Qty       int32  `json:"qty"`
	Notes     string `json:"notes"`
	LineTotal string `json:"lineTotal"`
}

type orderWithItemsResponse struct {
	Order orderResponse       `json:"order"`
	Items []orderItemResponse `json:"items"`
}

type orderHistoryResponse struct {
	orderResponse
	ItemCount int64 `json:"itemCount"`
}

type orderEventResponse struct {
	ID        int64     `json:"id"`
	Status    string    `json:"status"`
	Username  *string   `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
}

func toOrderResponse(o database.Order) orderResponse {
	return orderResponse{
		ID:             o.ID,
		OrderNo:        o.OrderNo,
		Source:         o.Source,
		CustomerName:   o.CustomerName.String,
		Phone:          o.Phone.String,
		Address:        o.Address.String,
		OrderType:      o.OrderType,
		PaymentMethod:  o.PaymentMethod,
		PaymentStatus:  o.PaymentStatus,
		GcashRef:       o.GcashRef.String,
		CashReceived:   optionalMoney(o.CashReceived),
		ChangeDue:      optionalMoney(o.ChangeDue),
		Status:         o.Status,
		Subtotal:       numericToString(o.Subtotal),
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
		ServedByUserID: optionalInt8(o.ServedByUserID),
	}
}

func toTrackOrderResponse(o database.Order) trackOrderResponse {
	return trackOrderResponse{
		OrderNo:       o.OrderNo,
		CustomerName:  o.CustomerName.String,
		OrderType:     o.OrderType,
		PaymentMethod: o.PaymentMethod,
		PaymentStatus: o.PaymentStatus,
		Status:        o.Status,
		Subtotal:      numericToString(o.Subtotal),
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}

func toOrderItemResponse(item database.OrderItem) orderItemResponse {
	price := numericToDecimal(item.PriceSnapshot)
	return orderItemResponse{
		ID:        item.ID,
		ProductID: optionalInt8(item.ProductID),
		Name:      item.NameSnapshot,
		Price:     price.StringFixed(2),
		Qty:       item.Qty,
		Notes:     item.Notes.String,
		LineTotal: price.Mul(decimal.NewFromInt32(item.Qty)).StringFixed(2),
	}
}

func toOrderItemResponses(items []database.OrderItem) []orderItemResponse {
	resp := make([]orderItemResponse, len(items))
	for i, item := range items {
		resp[i] = toOrderItemResponse(item)
	}
	return resp
}

// --- Handlers ---

// Create places a customer or POS order. POS orders require an admin or
// staff session and are recorded as served by that user.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	p := middleware.PrincipalFromContext(r.Context())
	if req.Source == enum.OrderSourcePOS {
		switch {
		case p == nil:
			writeError(w, http.StatusUnauthorized, "Not authenticated")
			return
		case !p.Active:
			writeError(w, http.StatusForbidden, "Account disabled")
			return
		case !p.HasRole(enum.UserRoleAdmin, enum.UserRoleStaff):
			writeError(w, http.StatusForbidden, "Forbidden")
			return
		}
	}
	if req.CashReceived != nil {
		switch {
		case req.CashReceived.IsNegative():
			writeError(w, http.StatusBadRequest, "cashReceived must be at least 0")
			return
		case req.CashReceived.Round(2).GreaterThan(service.MaxAmount):
			writeError(w, http.StatusBadRequest, "cashReceived must be at most 99999999.99")
			return
		}
	}

	var servedBy *int64
	if p != nil && p.Active {
		id := p.UserID
		servedBy = &id
	}

	items := make([]service.CreateOrderItemRequest, len(req.Items))
	for i, item := range req.Items {
		items[i] = service.CreateOrderItemRequest{
			ProductID: item.ProductID,
			Qty:       item.Qty,
			Notes:     item.Notes,
		}
	}

	result, err := h.svc.CreateOrder(r.Context(), service.CreateOrderRequest{
		Source:        req.Source,
		CustomerName:  req.CustomerName,
		Phone:         req.Phone,
		Address:       req.Address,
		OrderType:     req.OrderType,
		PaymentMethod: req.PaymentMethod,
		GcashRef:      req.GcashRef,
		CashReceived:  req.CashReceived,
		ServedBy:      servedBy,
		Items:         items,
	})
	if err != nil {
		// Map known service errors to appropriate HTTP status codes.
		if isValidationError(err) {
			writeError(w, http.StatusBadRequest, errorMessage(err))
			return
		}
		writeInternal(w, r, "create order", err)
		return
	}

	o := result.Order
	writeJSON(w, http.StatusCreated, map[string]any{
		"ok":            true,
		"orderId":       o.ID,
		"orderNo":       o.OrderNo,
		"subtotal":      numericToString(o.Subtotal),
		"cashReceived":  optionalMoney(o.CashReceived),
		"changeDue":     optionalMoney(o.ChangeDue),
		"paymentStatus": o.PaymentStatus,
		"order":         toOrderResponse(o),
		"items":         toOrderItemResponses(result.Items),
	})
}

// Track returns the public status of an order by its number.
func (h *OrderHandler) Track(w http.ResponseWriter, r *http.Request) {
	order, ok := h.orderByNo(w, r)
	if !ok {
		return
	}

	items, err := h.store.ListOrderItemsByOrder(r.Context(), order.ID)
	if err != nil {
		writeInternal(w, r, "list order items", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"order": toTrackOrderResponse(order),
		"items": toOrderItemResponses(items),
	})
}

// TrackQR renders a PNG QR code linking to the order's tracking page.
func (h *OrderHandler) TrackQR(w http.ResponseWriter, r *http.Request) {
	order, ok := h.orderByNo(w, r)
	if !ok {
		return
	}

	png, err := h.qr.PNG(qrcode.TrackingURL(h.baseURL(r), order.OrderNo))
	if err != nil {
		writeInternal(w, r, "tracking qr", err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// Active returns pending, preparing and ready orders oldest first, each
// with its items, for the kitchen board.
func (h *OrderHandler) Active(w http.ResponseWriter, r *http.Request) {
	orders, err := h.store.ListActiveOrders(r.Context())
	if err != nil {
		writeInternal(w, r, "list active orders", err)
		return
	}

	ids := make([]int64, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}

	byOrder := make(map[int64][]orderItemResponse, len(orders))
	if len(ids) > 0 {
		items, err := h.store.ListOrderItemsByOrders(r.Context(), ids)
		if err != nil {
			writeInternal(w, r, "list active order items", err)
			return
		}
		for _, item := range items {
			byOrder[item.OrderID] = append(byOrder[item.OrderID], toOrderItemResponse(item))
		}
	}

	resp := make([]orderWithItemsResponse, len(orders))
	for i, o := range orders {
		items := byOrder[o.ID]
		if items == nil {
			items = []orderItemResponse{}
		}
		resp[i] = orderWithItemsResponse{Order: toOrderResponse(o), Items: items}
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": resp})
}

// UpdateStatus moves an order through its lifecycle.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	var req updateStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.svc.UpdateStatus(r.Context(), service.UpdateStatusRequest{
		OrderID: id,
		Status:  req.Status,
		UserID:  actorID(r),
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			writeError(w, http.StatusNotFound, "Order not found")
		case errors.Is(err, service.ErrInvalidTransition), errors.Is(err, service.ErrInvalidStatus):
			writeError(w, http.StatusBadRequest, errorMessage(err))
		default:
			writeInternal(w, r, "update order status", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"changed": result.Changed,
		"order":   toOrderResponse(result.Order),
	})
}

// Receipt returns the full order with items for printing.
func (h *OrderHandler) Receipt(w http.ResponseWriter, r *http.Request) {
	order, ok := h.orderByID(w, r)
	if !ok {
		return
	}

	items, err := h.store.ListOrderItemsByOrder(r.Context(), order.ID)
	if err != nil {
		writeInternal(w, r, "list order items", err)
		return
	}

	writeJSON(w, http.StatusOK, orderWithItemsResponse{
		Order: toOrderResponse(order),
		Items: toOrderItemResponses(items),
	})
}

// History lists orders for the admin console, newest first, filtered by
// date range, status and a search over order number and customer name.
func (h *OrderHandler) History(w http.ResponseWriter, r *http.Request) {
	dr, err := parseDateRange(r, h.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	params := database.ListOrderHistoryParams{Limit: maxHistoryRows}
	if !dr.From.IsZero() {
		params.From = pgtype.Timestamptz{Time: dr.From, Valid: true}
	}
	if !dr.To.IsZero() {
		params.To = pgtype.Timestamptz{Time: dr.To, Valid: true}
	}
	if s := r.URL.Query().Get("status"); s != "" {
		if !service.IsValidOrderStatus(s) {
			writeError(w, http.StatusBadRequest, "invalid status")
			return
		}
		params.Status = pgtype.Text{String: s, Valid: true}
	}
	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		params.Search = pgtype.Text{String: q, Valid: true}
	}

	rows, err := h.store.ListOrderHistory(r.Context(), params)
	if err != nil {
		writeInternal(w, r, "list order history", err)
		return
	}

	resp := make([]orderHistoryResponse, len(rows))
	for i, row := range rows {
		resp[i] = orderHistoryResponse{
			orderResponse: toOrderResponse(row.Order),
			ItemCount:     row.ItemCount,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": resp})
}

// Detail returns an order with its items and status history.
func (h *OrderHandler) Detail(w http.ResponseWriter, r *http.Request) {
	order, ok := h.orderByID(w, r)
	if !ok {
		return
	}

	items, err := h.store.ListOrderItemsByOrder(r.Context(), order.ID)
	if err != nil {
		writeInternal(w, r, "list order items", err)
		return
	}
	events, err := h.store.ListOrderEvents(r.Context(), order.ID)
	if err != nil {
		writeInternal(w, r, "list order events", err)
		return
	}

	eventResp := make([]orderEventResponse, len(events))
	for i, e := range events {
		eventResp[i] = orderEventResponse{ID: e.ID, Status: e.Status, CreatedAt: e.CreatedAt}
		if e.Username.Valid {
			u := e.Username.String
			eventResp[i].Username = &u
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"order":  toOrderResponse(order),
		"items":  toOrderItemResponses(items),
		"events": eventResp,
	})
}

// --- Helpers ---

// isValidationError checks if the error is a known validation error
// from the service layer that should result in 400 Bad Request.
func isValidationError(err error) bool {
	return errors.Is(err, service.ErrEmptyItems) ||
		errors.Is(err, service.ErrInvalidQuantity) ||
		errors.Is(err, service.ErrInvalidSource) ||
		errors.Is(err, service.ErrInvalidOrderType) ||
		errors.Is(err, service.ErrInvalidPaymentMethod) ||
		errors.Is(err, service.ErrGCashRefRequired) ||
		errors.Is(err, service.ErrProductNotFound) ||
		errors.Is(err, service.ErrProductUnavailable) ||
		errors.Is(err, service.ErrInsufficientStock) ||
		errors.Is(err, service.ErrCashShort) ||
		errors.Is(err, service.ErrCashTooLarge) ||
		errors.Is(err, service.ErrOrderTooLarge)
}

func (h *OrderHandler) orderByNo(w http.ResponseWriter, r *http.Request) (database.Order, bool) {
	orderNo := strings.TrimSpace(chi.URLParam(r, "orderNo"))
	if orderNo == "" {
		writeError(w, http.StatusBadRequest, "order number is required")
		return database.Order{}, false
	}
	order, err := h.store.GetOrderByNo(r.Context(), orderNo)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "Order not found")
			return database.Order{}, false
		}
		writeInternal(w, r, "get order by number", err)
		return database.Order{}, false
	}
	return order, true
}

func (h *OrderHandler) orderByID(w http.ResponseWriter, r *http.Request) (database.Order, bool) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order ID")
		return database.Order{}, false
	}
	order, err := h.store.GetOrder(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "Order not found")
			return database.Order{}, false
		}
		writeInternal(w, r, "get order", err)
		return database.Order{}, false
	}
	return order, true
}

func (h *OrderHandler) baseURL(r *http.Request) string {
	if h.publicURL != "" {
		return h.publicURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto == "http" || proto == "https" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}
