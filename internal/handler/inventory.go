package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/snackattack-pos/api/internal/database"
	"github.com/snackattack-pos/api/internal/service"
)

const (
	defaultLogLimit = 100
	maxLogLimit     = 500
)

// InventoryStore defines the database methods needed by inventory reads.
// Satisfied by *database.Queries; narrow interface for testability.
type InventoryStore interface {
	ListInventory(ctx context.Context) ([]database.ListInventoryRow, error)
	ListInventoryLogs(ctx context.Context, arg database.ListInventoryLogsParams) ([]database.ListInventoryLogsRow, error)
}

// InventoryAdjuster applies manual stock changes.
// Satisfied by *service.InventoryService.
type InventoryAdjuster interface {
	Adjust(ctx context.Context, req service.AdjustRequest) (database.Inventory, error)
}

// InventoryHandler handles stock levels, adjustments and the audit log.
type InventoryHandler struct {
	store InventoryStore
	svc   InventoryAdjuster
}

// NewInventoryHandler creates a new InventoryHandler.
func NewInventoryHandler(store InventoryStore, svc InventoryAdjuster) *InventoryHandler {
	return &InventoryHandler{store: store, svc: svc}
}

// RegisterRoutes registers inventory endpoints on the given Chi router.
// Expected to be mounted at /api/admin/inventory behind admin or staff.
func (h *InventoryHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/adjust", h.Adjust)
	r.Get("/logs", h.Logs)
}

// --- Request / Response types ---

type adjustRequest struct {
	ProductID int64  `json:"productId" validate:"required,gt=0"`
	Delta     int32  `json:"delta" validate:"required,min=-100000,max=100000"`
	Reason    string `json:"reason" validate:"max=200"`
}

type inventoryResponse struct {
	ProductID         int64  `json:"productId"`
	Name              string `json:"name"`
	Category          string `json:"category"`
	Active            bool   `json:"active"`
	TrackStock        bool   `json:"trackStock"`
	Quantity          int32  `json:"quantity"`
	LowStockThreshold int32  `json:"lowStockThreshold"`
	LowStock          bool   `json:"lowStock"`
}

type inventoryLogResponse struct {
	ID          int64     `json:"id"`
	ProductID   int64     `json:"productId"`
	ProductName string    `json:"productName"`
	Delta       int32     `json:"delta"`
	Reason      string    `json:"reason"`
	Username    *string   `json:"username"`
	CreatedAt   time.Time `json:"createdAt"`
}

// --- Handlers ---

// List returns stock for every product ordered by category and name.
func (h *InventoryHandler) List(w http.ResponseWriter, r *http.Request) {
	rows, err := h.store.ListInventory(r.Context())
	if err != nil {
		writeInternal(w, r, "list inventory", err)
		return
	}

	resp := make([]inventoryResponse, len(rows))
	for i, row := range rows {
		resp[i] = inventoryResponse{
			ProductID:         row.ProductID,
			Name:              row.Name,
			Category:          row.Category,
			Active:            row.Active,
			TrackStock:        row.TrackStock,
			Quantity:          row.Quantity,
			LowStockThreshold: row.LowStockThreshold,
			LowStock:          isLowStock(row.TrackStock, row.Quantity, row.LowStockThreshold),
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"inventory": resp})
}

// Adjust applies a signed delta with a reason. Nothing is written when the
// result would go below zero.
func (h *InventoryHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	inv, err := h.svc.Adjust(r.Context(), service.AdjustRequest{
		ProductID: req.ProductID,
		Delta:     req.Delta,
		Reason:    req.Reason,
		UserID:    actorID(r),
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnknownProduct):
			writeError(w, http.StatusNotFound, "Product not found")
		case errors.Is(err, service.ErrNegativeStock),
			errors.Is(err, service.ErrZeroDelta),
			errors.Is(err, service.ErrReasonTooLong):
			writeError(w, http.StatusBadRequest, errorMessage(err))
		default:
			writeInternal(w, r, "adjust inventory", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":        true,
		"productId": inv.ProductID,
		"quantity":  inv.Quantity,
	})
}

// Logs returns the newest inventory log entries, optionally for one product.
func (h *InventoryHandler) Logs(w http.ResponseWriter, r *http.Request) {
	params := database.ListInventoryLogsParams{Limit: defaultLogLimit}

	if s := r.URL.Query().Get("productId"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil || id <= 0 {
			writeError(w, http.StatusBadRequest, "invalid productId")
			return
		}
		params.ProductID = pgtype.Int8{Int64: id, Valid: true}
	}
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		if n > maxLogLimit {
			n = maxLogLimit
		}
		params.Limit = int32(n)
	}

	rows, err := h.store.ListInventoryLogs(r.Context(), params)
	if err != nil {
		writeInternal(w, r, "list inventory logs", err)
		return
	}

	resp := make([]inventoryLogResponse, len(rows))
	for i, row := range rows {
		resp[i] = inventoryLogResponse{
			ID:          row.ID,
			ProductID:   row.ProductID,
			ProductName: row.ProductName,
			Delta:       row.Delta,
			Reason:      row.Reason,
			CreatedAt:   row.CreatedAt,
		}
		if row.Username.Valid {
			u := row.Username.String
			resp[i].Username = &u
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": resp})
}
