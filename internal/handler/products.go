package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/snackattack-pos/api/internal/database"
	"github.com/snackattack-pos/api/internal/middleware"
	"github.com/snackattack-pos/api/internal/service"
)

// ProductStore defines the database methods needed by product list handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type ProductStore interface {
	ListActiveProducts(ctx context.Context) ([]database.ProductWithStockRow, error)
	ListProducts(ctx context.Context) ([]database.ProductWithStockRow, error)
}

// ProductWriter creates and edits products together with their stock.
// Satisfied by *service.InventoryService.
type ProductWriter interface {
	CreateProduct(ctx context.Context, in service.ProductInput, userID int64) (database.ProductWithStockRow, error)
	UpdateProduct(ctx context.Context, id int64, in service.ProductInput, userID int64) (database.ProductWithStockRow, error)
}

// ProductHandler handles the public menu and admin product endpoints.
type ProductHandler struct {
	store ProductStore
	svc   ProductWriter
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(store ProductStore, svc ProductWriter) *ProductHandler {
	return &ProductHandler{store: store, svc: svc}
}

// RegisterPublicRoutes registers the customer menu at /api/products.
func (h *ProductHandler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/", h.ListActive)
}

// --- Request / Response types ---

type productRequest struct {
	Name              string           `json:"name" validate:"required,max=100"`
	Category          string           `json:"category" validate:"required,max=50"`
	Price             *decimal.Decimal `json:"price" validate:"required"`
	Cost              *decimal.Decimal `json:"cost"`
	Sku               string           `json:"sku" validate:"max=50"`
	ImageURL          string           `json:"imageUrl" validate:"max=500"`
	Active            *bool            `json:"active"`
	TrackStock        *bool            `json:"trackStock"`
	Quantity          *int32           `json:"quantity" validate:"required,min=0,max=1000000"`
	LowStockThreshold *int32           `json:"lowStockThreshold" validate:"omitempty,min=0,max=1000000"`
}

func (req productRequest) toInput() service.ProductInput {
	in := service.ProductInput{
		Name:              req.Name,
		Category:          req.Category,
		Price:             req.Price.Round(2),
		Sku:               req.Sku,
		ImageUrl:          req.ImageURL,
		Active:            true,
		TrackStock:        true,
		Quantity:          *req.Quantity,
		LowStockThreshold: 5,
	}
	if req.Cost != nil {
		in.Cost = req.Cost.Round(2)
	}
	if req.Active != nil {
		in.Active = *req.Active
	}
	if req.TrackStock != nil {
		in.TrackStock = *req.TrackStock
	}
	if req.LowStockThreshold != nil {
		in.LowStockThreshold = *req.LowStockThreshold
	}
	return in
}

// menuProductResponse is the public view of a product. Cost is omitted.
type menuProductResponse struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Category   string `json:"category"`
	Price      string `json:"price"`
	Sku        string `json:"sku"`
	ImageURL   string `json:"imageUrl"`
	TrackStock bool   `json:"trackStock"`
	Quantity   int32  `json:"quantity"`
	LowStock   bool   `json:"lowStock"`
	SoldOut    bool   `json:"soldOut"`
}

type productResponse struct {
	ID                int64     `json:"id"`
	Name              string    `json:"name"`
	Category          string    `json:"category"`
	Price             string    `json:"price"`
	Cost              string    `json:"cost"`
	Sku               string    `json:"sku"`
	ImageURL          string    `json:"imageUrl"`
	Active            bool      `json:"active"`
	TrackStock        bool      `json:"trackStock"`
	Quantity          int32     `json:"quantity"`
	LowStockThreshold int32     `json:"lowStockThreshold"`
	LowStock          bool      `json:"lowStock"`
	CreatedAt         time.Time `json:"createdAt"`
}

func isLowStock(trackStock bool, qty, threshold int32) bool {
	return trackStock && qty <= threshold
}

func toMenuProductResponse(row database.ProductWithStockRow) menuProductResponse {
	p := row.Product
	return menuProductResponse{
		ID:         p.ID,
		Name:       p.Name,
		Category:   p.Category,
		Price:      numericToString(p.Price),
		Sku:        p.Sku.String,
		ImageURL:   p.ImageUrl.String,
		TrackStock: p.TrackStock,
		Quantity:   row.Quantity,
		LowStock:   isLowStock(p.TrackStock, row.Quantity, row.LowStockThreshold) && row.Quantity > 0,
		SoldOut:    p.TrackStock && row.Quantity <= 0,
	}
}

func toProductResponse(row database.ProductWithStockRow) productResponse {
	p := row.Product
	return productResponse{
		ID:                p.ID,
		Name:              p.Name,
		Category:          p.Category,
		Price:             numericToString(p.Price),
		Cost:              numericToString(p.Cost),
		Sku:               p.Sku.String,
		ImageURL:          p.ImageUrl.String,
		Active:            p.Active,
		TrackStock:        p.TrackStock,
		Quantity:          row.Quantity,
		LowStockThreshold: row.LowStockThreshold,
		LowStock:          isLowStock(p.TrackStock, row.Quantity, row.LowStockThreshold),
		CreatedAt:         p.CreatedAt,
	}
}

// --- Handlers ---

// ListActive returns the public menu: active products by category and name.
func (h *ProductHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	rows, err := h.store.ListActiveProducts(r.Context())
	if err != nil {
		writeInternal(w, r, "list active products", err)
		return
	}

	resp := make([]menuProductResponse, len(rows))
	for i, row := range rows {
		resp[i] = toMenuProductResponse(row)
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": resp})
}

// List returns every product with stock levels, newest first.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	rows, err := h.store.ListProducts(r.Context())
	if err != nil {
		writeInternal(w, r, "list products", err)
		return
	}

	resp := make([]productResponse, len(rows))
	for i, row := range rows {
		resp[i] = toProductResponse(row)
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": resp})
}

// Create adds a product with its inventory row.
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	row, err := h.svc.CreateProduct(r.Context(), req.toInput(), actorID(r))
	if err != nil {
		if isProductValidationError(err) {
			writeError(w, http.StatusBadRequest, errorMessage(err))
			return
		}
		writeInternal(w, r, "create product", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"ok":      true,
		"id":      row.Product.ID,
		"product": toProductResponse(row),
	})
}

// Update edits a product. A changed quantity goes through the inventory ledger.
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product ID")
		return
	}

	var req productRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	row, err := h.svc.UpdateProduct(r.Context(), id, req.toInput(), actorID(r))
	if err != nil {
		if errors.Is(err, service.ErrUnknownProduct) {
			writeError(w, http.StatusNotFound, "Product not found")
			return
		}
		if isProductValidationError(err) {
			writeError(w, http.StatusBadRequest, errorMessage(err))
			return
		}
		writeInternal(w, r, "update product", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "product": toProductResponse(row)})
}

// --- Helpers ---

func isProductValidationError(err error) bool {
	return errors.Is(err, service.ErrNegativeQuantity) ||
		errors.Is(err, service.ErrNegativeThreshold) ||
		errors.Is(err, service.ErrNegativePrice) ||
		errors.Is(err, service.ErrPriceTooLarge)
}

// actorID returns the signed-in user's ID, or 0 for anonymous requests.
func actorID(r *http.Request) int64 {
	if p := middleware.PrincipalFromContext(r.Context()); p != nil {
		return p.UserID
	}
	return 0
}
