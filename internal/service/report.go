package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/snackattack-pos/api/internal/database"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultTopItems = 10
	MaxTopItems     = 50
)

// ReportStore defines the aggregate queries behind the sales reports.
// Satisfied by *database.Queries.
type ReportStore interface {
	GetSalesTotals(ctx context.Context, arg database.DateRangeParams) (database.GetSalesTotalsRow, error)
	GetSalesProfit(ctx context.Context, arg database.DateRangeParams) (pgtype.Numeric, error)
	GetPaymentBreakdown(ctx context.Context, arg database.DateRangeParams) ([]database.GetPaymentBreakdownRow, error)
	GetTopItems(ctx context.Context, arg database.GetTopItemsParams) ([]database.GetTopItemsRow, error)
	ListOrdersForExport(ctx context.Context, arg database.DateRangeParams) ([]database.ListOrdersForExportRow, error)
}

// DateRange is a half-open [From, To) interval. A zero bound is open.
type DateRange struct {
	From time.Time
	To   time.Time
}

func (r DateRange) params() database.DateRangeParams {
	var p database.DateRangeParams
	if !r.From.IsZero() {
		p.From = pgtype.Timestamptz{Time: r.From, Valid: true}
	}
	if !r.To.IsZero() {
		p.To = pgtype.Timestamptz{Time: r.To, Valid: true}
	}
	return p
}

// Summary aggregates completed orders in a date range.
type Summary struct {
	Orders    int64
	Sales     decimal.Decimal
	Profit    decimal.Decimal
	ByPayment []PaymentTotal
	TopItems  []TopItem
}

type PaymentTotal struct {
	Method string
	Orders int64
	Sales  decimal.Decimal
}

type TopItem struct {
	Name  string
	Qty   int64
	Sales decimal.Decimal
}

// ReportService builds sales summaries and exports.
type ReportService struct {
	store ReportStore
}

// NewReportService creates a new ReportService.
func NewReportService(store ReportStore) *ReportService {
	return &ReportService{store: store}
}

// Summary runs the four report aggregates concurrently.
// Profit is computed against each product's current cost.
func (s *ReportService) Summary(ctx context.Context, r DateRange, topN int) (*Summary, error) {
	if topN <= 0 {
		topN = DefaultTopItems
	}
	if topN > MaxTopItems {
		topN = MaxTopItems
	}
	params := r.params()

	var (
		totals   database.GetSalesTotalsRow
		profit   pgtype.Numeric
		payments []database.GetPaymentBreakdownRow
		top      []database.GetTopItemsRow
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		totals, err = s.store.GetSalesTotals(gctx, params)
		if err != nil {
			return fmt.Errorf("sales totals: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		profit, err = s.store.GetSalesProfit(gctx, params)
		if err != nil {
			return fmt.Errorf("sales profit: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		payments, err = s.store.GetPaymentBreakdown(gctx, params)
		if err != nil {
			return fmt.Errorf("payment breakdown: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		top, err = s.store.GetTopItems(gctx, database.GetTopItemsParams{
			From:  params.From,
			To:    params.To,
			Limit: int32(topN),
		})
		if err != nil {
			return fmt.Errorf("top items: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary := &Summary{
		Orders:    totals.OrderCount,
		Sales:     numericToDecimal(totals.Sales),
		Profit:    numericToDecimal(profit),
		ByPayment: make([]PaymentTotal, len(payments)),
		TopItems:  make([]TopItem, len(top)),
	}
	for i, p := range payments {
		summary.ByPayment[i] = PaymentTotal{
			Method: p.PaymentMethod,
			Orders: p.OrderCount,
			Sales:  numericToDecimal(p.Sales),
		}
	}
	for i, t := range top {
		summary.TopItems[i] = TopItem{
			Name:  t.Name,
			Qty:   t.Qty,
			Sales: numericToDecimal(t.Sales),
		}
	}
	return summary, nil
}

// ExportRows returns every order created in the range, any status.
func (s *ReportService) ExportRows(ctx context.Context, r DateRange) ([]database.ListOrdersForExportRow, error) {
	rows, err := s.store.ListOrdersForExport(ctx, r.params())
	if err != nil {
		return nil, fmt.Errorf("list orders for export: %w", err)
	}
	return rows, nil
}
