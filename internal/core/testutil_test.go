package core

import (
	"testing"
	"time"
)

// salesRow is one raw extracted row. Empty strings become nulls.
type salesRow struct {
	orderID, customerID, product, quantity, price, date, region string
}

var rawColumns = []Column{
	{Name: "order_id", Kind: KindInt},
	{Name: "customer_id", Kind: KindText},
	{Name: "product_name", Kind: KindText},
	{Name: "quantity", Kind: KindText},
	{Name: "price", Kind: KindText},
	{Name: "order_date", Kind: KindText},
	{Name: "region", Kind: KindText},
}

// rawDataset builds a dataset shaped like extractor output.
func rawDataset(t *testing.T, rows ...salesRow) *Dataset {
	t.Helper()
	ds := NewDataset(rawColumns...)
	for _, r := range rows {
		id := Null(KindInt)
		if r.orderID != "" {
			n, ok := ParseNumber(r.orderID)
			if !ok {
				t.Fatalf("bad order id %q", r.orderID)
			}
			id = IntValue(int64(n))
		}
		err := ds.AppendRow(id, text(r.customerID), text(r.product), text(r.quantity), text(r.price), text(r.date), text(r.region))
		if err != nil {
			t.Fatalf("AppendRow() error = %v", err)
		}
	}
	return ds
}

func text(s string) Value {
	if s == "" {
		return Null(KindText)
	}
	return TextValue(s)
}

// recorder collects observer events.
type recorder struct {
	events []Event
}

func (r *recorder) Observe(e Event) { r.events = append(r.events, e) }

func fixedClock() time.Time {
	return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
}

func goodRows() []salesRow {
	return []salesRow{
		{"1", "C001", "  wireless mouse ", "2", "25.50", "2024-01-15", "North"},
		{"2", "C002", "USB CABLE", "3", "2.5", "2024-01-16", "South"},
		{"3", "C003", "laptop stand", "1", "45.00", "2024-01-17", "East"},
	}
}
