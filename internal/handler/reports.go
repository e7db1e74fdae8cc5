package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/snackattack-pos/api/internal/database"
	"github.com/snackattack-pos/api/internal/export"
	"github.com/snackattack-pos/api/internal/service"
)

const (
	csvContentType  = "text/csv; charset=utf-8"
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// ReportServicer defines the service methods needed by report handlers.
// Satisfied by *service.ReportService; narrow interface for testability.
type ReportServicer interface {
	Summary(ctx context.Context, r service.DateRange, topN int) (*service.Summary, error)
	ExportRows(ctx context.Context, r service.DateRange) ([]database.ListOrdersForExportRow, error)
}

// ReportsHandler handles sales summary and export endpoints.
type ReportsHandler struct {
	svc ReportServicer
	loc *time.Location
}

// NewReportsHandler creates a new ReportsHandler. loc is the shop's
// timezone; date filters and exported timestamps use it.
func NewReportsHandler(svc ReportServicer, loc *time.Location) *ReportsHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &ReportsHandler{svc: svc, loc: loc}
}

// RegisterRoutes registers report endpoints on the given Chi router.
// Expected to be mounted at /api/reports behind the admin role.
func (h *ReportsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/summary", h.Summary)
	r.Get("/export.csv", h.ExportCSV)
	r.Get("/export.xlsx", h.ExportXLSX)
}

// --- Response types ---

type totalsResponse struct {
	Orders int64  `json:"orders"`
	Sales  string `json:"sales"`
	Profit string `json:"profit"`
}

type paymentBreakdownResponse struct {
	PaymentMethod string `json:"paymentMethod"`
	Orders        int64  `json:"orders"`
	Sales         string `json:"sales"`
}

type topItemResponse struct {
	Name  string `json:"name"`
	Qty   int64  `json:"qty"`
	Sales string `json:"sales"`
}

type summaryResponse struct {
	From      string                     `json:"from"`
	To        string                     `json:"to"`
	Totals    totalsResponse             `json:"totals"`
	ByPayment []paymentBreakdownResponse `json:"byPayment"`
	TopItems  []topItemResponse          `json:"topItems"`
}

// --- Handlers ---

// Summary returns completed-order totals, the payment breakdown and the
// best sellers for the requested range.
func (h *ReportsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	dr, err := parseDateRange(r, h.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	topN := service.DefaultTopItems
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		topN = n
	}

	summary, err := h.svc.Summary(r.Context(), dr, topN)
	if err != nil {
		writeInternal(w, r, "report summary", err)
		return
	}

	resp := summaryResponse{
		From: r.URL.Query().Get("from"),
		To:   r.URL.Query().Get("to"),
		Totals: totalsResponse{
			Orders: summary.Orders,
			Sales:  summary.Sales.StringFixed(2),
			Profit: summary.Profit.StringFixed(2),
		},
		ByPayment: make([]paymentBreakdownResponse, len(summary.ByPayment)),
		TopItems:  make([]topItemResponse, len(summary.TopItems)),
	}
	for i, p := range summary.ByPayment {
		resp.ByPayment[i] = paymentBreakdownResponse{
			PaymentMethod: p.Method,
			Orders:        p.Orders,
			Sales:         p.Sales.StringFixed(2),
		}
	}
	for i, t := range summary.TopItems {
		resp.TopItems[i] = topItemResponse{Name: t.Name, Qty: t.Qty, Sales: t.Sales.StringFixed(2)}
	}

	writeJSON(w, http.StatusOK, resp)
}

// ExportCSV downloads every order created in the range as CSV.
func (h *ReportsHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "sales_export.csv", csvContentType, export.WriteOrdersCSV)
}

// ExportXLSX downloads every order created in the range as a workbook.
func (h *ReportsHandler) ExportXLSX(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "sales_export.xlsx", xlsxContentType, export.WriteOrdersXLSX)
}

type exportWriter func(w io.Writer, rows []export.OrderRow, loc *time.Location) error

func (h *ReportsHandler) export(w http.ResponseWriter, r *http.Request, filename, contentType string, write exportWriter) {
	dr, err := parseDateRange(r, h.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rows, err := h.svc.ExportRows(r.Context(), dr)
	if err != nil {
		writeInternal(w, r, "export rows", err)
		return
	}

	out := make([]export.OrderRow, len(rows))
	for i, row := range rows {
		out[i] = export.OrderRow{
			OrderNo:       row.OrderNo,
			CreatedAt:     row.CreatedAt,
			OrderType:     row.OrderType,
			PaymentMethod: row.PaymentMethod,
			Subtotal:      numericToDecimal(row.Subtotal),
			Status:        row.Status,
			Source:        row.Source,
			Items:         row.Items,
		}
	}

	var buf bytes.Buffer
	if err := write(&buf, out, h.loc); err != nil {
		writeInternal(w, r, "write export", err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// --- Helpers ---

// parseDateRange parses the optional from and to query params (YYYY-MM-DD)
// in loc. Both bounds are inclusive days; the returned To is the next
// midnight so it can be used as an exclusive bound. Missing bounds stay open.
func parseDateRange(r *http.Request, loc *time.Location) (service.DateRange, error) {
	const layout = "2006-01-02"

	var dr service.DateRange
	if s := r.URL.Query().Get("from"); s != "" {
		t, err := time.ParseInLocation(layout, s, loc)
		if err != nil {
			return service.DateRange{}, errors.New("invalid from date, expected YYYY-MM-DD")
		}
		dr.From = t
	}
	if s := r.URL.Query().Get("to"); s != "" {
		t, err := time.ParseInLocation(layout, s, loc)
		if err != nil {
			return service.DateRange{}, errors.New("invalid to date, expected YYYY-MM-DD")
		}
		dr.To = t.AddDate(0, 0, 1)
	}

	if !dr.From.IsZero() && !dr.To.IsZero() && !dr.From.Before(dr.To) {
		return service.DateRange{}, errors.New("from must not be after to")
	}
	return dr, nil
}
