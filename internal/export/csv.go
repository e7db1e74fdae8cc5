package export

import (
	"encoding/csv"
	"io"
	"time"

	"github.com/shopspring/decimal"
)

// Header is the column order shared by the CSV and XLSX order exports.
var Header = []string{"Order No", "Created At", "Order Type", "Payment", "Subtotal", "Status", "Source", "Items"}

// TimeLayout renders CreatedAt in the shop's local time.
const TimeLayout = "2006-01-02 15:04:05"

// OrderRow is one order line in an export.
type OrderRow struct {
	OrderNo       string
	CreatedAt     time.Time
	OrderType     string
	PaymentMethod string
	Subtotal      decimal.Decimal
	Status        string
	Source        string
	Items         string
}

func (r OrderRow) record(loc *time.Location) []string {
	return []string{
		r.OrderNo,
		r.CreatedAt.In(loc).Format(TimeLayout),
		r.OrderType,
		r.PaymentMethod,
		r.Subtotal.StringFixed(2),
		r.Status,
		r.Source,
		r.Items,
	}
}

// WriteOrdersCSV streams the order export as CSV. Times are rendered in loc.
func WriteOrdersCSV(w io.Writer, rows []OrderRow, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write(Header); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writer.Write(row.record(loc)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
