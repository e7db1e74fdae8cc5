package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/snackattack-pos/api/internal/database"
)

type mockReportStore struct {
	totals   database.GetSalesTotalsRow
	profit   pgtype.Numeric
	payments []database.GetPaymentBreakdownRow
	top      []database.GetTopItemsRow
	export   []database.ListOrdersForExportRow
	err      error

	gotRange database.DateRangeParams
	gotLimit int32
}

func (m *mockReportStore) GetSalesTotals(ctx context.Context, arg database.DateRangeParams) (database.GetSalesTotalsRow, error) {
	return m.totals, m.err
}

func (m *mockReportStore) GetSalesProfit(ctx context.Context, arg database.DateRangeParams) (pgtype.Numeric, error) {
	return m.profit, nil
}

func (m *mockReportStore) GetPaymentBreakdown(ctx context.Context, arg database.DateRangeParams) ([]database.GetPaymentBreakdownRow, error) {
	m.gotRange = arg
	return m.payments, nil
}

func (m *mockReportStore) GetTopItems(ctx context.Context, arg database.GetTopItemsParams) ([]database.GetTopItemsRow, error) {
	m.gotLimit = arg.Limit
	return m.top, nil
}

func (m *mockReportStore) ListOrdersForExport(ctx context.Context, arg database.DateRangeParams) ([]database.ListOrdersForExportRow, error) {
	m.gotRange = arg
	return m.export, m.err
}

func TestSummary_Empty(t *testing.T) {
	store := &mockReportStore{totals: database.GetSalesTotalsRow{Sales: makeNumeric("0")}, profit: makeNumeric("0")}
	svc := NewReportService(store)

	s, err := svc.Summary(context.Background(), DateRange{}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Orders != 0 {
		t.Errorf("orders: got %d, want 0", s.Orders)
	}
	if s.Sales.StringFixed(2) != "0.00" || s.Profit.StringFixed(2) != "0.00" {
		t.Errorf("sales/profit: got %s/%s, want 0.00/0.00", s.Sales.StringFixed(2), s.Profit.StringFixed(2))
	}
	if s.TopItems == nil || len(s.TopItems) != 0 {
		t.Errorf("top items: got %v, want empty non-nil slice", s.TopItems)
	}
	if store.gotLimit != DefaultTopItems {
		t.Errorf("limit: got %d, want %d", store.gotLimit, DefaultTopItems)
	}
	if store.gotRange.From.Valid || store.gotRange.To.Valid {
		t.Errorf("open range should pass null bounds, got %+v", store.gotRange)
	}
}

func TestSummary_MapsRows(t *testing.T) {
	store := &mockReportStore{
		totals: database.GetSalesTotalsRow{OrderCount: 3, Sales: makeNumeric("187.00")},
		profit: makeNumeric("92.50"),
		payments: []database.GetPaymentBreakdownRow{
			{PaymentMethod: "cash", OrderCount: 2, Sales: makeNumeric("108.00")},
			{PaymentMethod: "gcash", OrderCount: 1, Sales: makeNumeric("79.00")},
		},
		top: []database.GetTopItemsRow{
			{Name: "Hotdog Sandwich", Qty: 4, Sales: makeNumeric("116.00")},
		},
	}
	svc := NewReportService(store)

	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s, err := svc.Summary(context.Background(), DateRange{From: from}, 500)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.gotLimit != MaxTopItems {
		t.Errorf("limit: got %d, want %d", store.gotLimit, MaxTopItems)
	}
	if !store.gotRange.From.Valid || !store.gotRange.From.Time.Equal(from) || store.gotRange.To.Valid {
		t.Errorf("range: got %+v", store.gotRange)
	}
	if s.Orders != 3 || s.Sales.StringFixed(2) != "187.00" || s.Profit.StringFixed(2) != "92.50" {
		t.Errorf("totals: got %d/%s/%s", s.Orders, s.Sales, s.Profit)
	}
	if len(s.ByPayment) != 2 || s.ByPayment[1].Method != "gcash" || s.ByPayment[1].Sales.StringFixed(2) != "79.00" {
		t.Errorf("by payment: got %+v", s.ByPayment)
	}
	if len(s.TopItems) != 1 || s.TopItems[0].Qty != 4 {
		t.Errorf("top items: got %+v", s.TopItems)
	}
}

func TestSummary_PropagatesError(t *testing.T) {
	svc := NewReportService(&mockReportStore{err: errors.New("db down")})

	if _, err := svc.Summary(context.Background(), DateRange{}, 5); err == nil {
		t.Fatal("expected error")
	}
}

func TestExportRows(t *testing.T) {
	store := &mockReportStore{export: []database.ListOrdersForExportRow{{OrderNo: "SA-1-AAAA", Status: "cancelled"}}}
	svc := NewReportService(store)

	to := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	rows, err := svc.ExportRows(context.Background(), DateRange{To: to})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 || rows[0].Status != "cancelled" {
		t.Errorf("rows: got %+v", rows)
	}
	if store.gotRange.From.Valid || !store.gotRange.To.Valid {
		t.Errorf("range: got %+v", store.gotRange)
	}
}
