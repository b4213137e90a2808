package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"ezshop/terminal/internal/domain"
)

func sampleSales() []domain.Sale {
	created := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	return []domain.Sale{
		{
			ID:           7,
			Status:       domain.SaleStatusPaid,
			DiscountRate: decimal.RequireFromString("0.1"),
			CreatedAt:    &created,
			Lines: []domain.SaleLine{
				{ProductBarcode: "4006381333931", Quantity: 2, PricePerUnit: decimal.RequireFromString("1.50"), DiscountRate: decimal.Zero},
			},
		},
		{ID: 8, Status: domain.SaleStatusOpen, DiscountRate: decimal.Zero},
	}
}

func TestSalesCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, Sales(sampleSales()), FormatCSV); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	want := "ID,Date,Status,Discount,Total\n" +
		"7,2026-03-14T09:30:00Z,PAID,10%,2.70\n" +
		"8,,OPEN,0%,0.00\n"
	if buf.String() != want {
		t.Fatalf("unexpected csv:\n%s", buf.String())
	}
}

func TestReturnsAndOrdersCSV(t *testing.T) {
	var buf bytes.Buffer
	returns := []domain.Return{{
		ID:     3,
		SaleID: 7,
		Status: domain.ReturnStatusClosed,
		Lines:  []domain.ReturnLine{{ProductBarcode: "a", Quantity: 1, PricePerUnit: decimal.RequireFromString("1.35")}},
	}}
	if err := WriteCSV(&buf, Returns(returns)); err != nil {
		t.Fatalf("write returns: %v", err)
	}
	if want := "ID,Sale ID,Date,Status,Total Refund\n3,7,,CLOSED,1.35\n"; buf.String() != want {
		t.Fatalf("unexpected returns csv:\n%s", buf.String())
	}

	buf.Reset()
	orders := []domain.Order{{ID: 1, ProductBarcode: "5449000000996", Quantity: 24, PricePerUnit: decimal.RequireFromString("0.45"), Status: domain.OrderStatusIssued, IssueDate: "2026-03-01"}}
	if err := WriteCSV(&buf, Orders(orders)); err != nil {
		t.Fatalf("write orders: %v", err)
	}
	if want := "Order ID,Product,Quantity,Status,Total Price,Issue Date\n1,5449000000996,24,ISSUED,10.80,2026-03-01\n"; buf.String() != want {
		t.Fatalf("unexpected orders csv:\n%s", buf.String())
	}
}

func TestSalesXLSX(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, Sales(sampleSales()), FormatXLSX); err != nil {
		t.Fatalf("write xlsx: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header and 2 rows, got %d", len(rows))
	}
	if rows[0][4] != "Total" || rows[1][0] != "7" || rows[1][4] != "2.70" {
		t.Fatalf("unexpected rows %v", rows)
	}
}

func TestFilename(t *testing.T) {
	day := time.Date(2026, 10, 17, 23, 0, 0, 0, time.UTC)
	if got := Filename(KindSales, FormatCSV, day); got != "sales_report_2026-10-17.csv" {
		t.Fatalf("unexpected sales filename %q", got)
	}
	if got := Filename(KindOrders, FormatXLSX, day); got != "orders_export_2026-10-17.xlsx" {
		t.Fatalf("unexpected orders filename %q", got)
	}
}

func TestParse(t *testing.T) {
	if k, err := ParseKind(" Returns "); err != nil || k != KindReturns {
		t.Fatalf("expected returns, got %q (%v)", k, err)
	}
	if _, err := ParseKind("customers"); err == nil {
		t.Fatalf("expected unknown kind error")
	}
	if _, err := ParseFormat("pdf"); err == nil {
		t.Fatalf("expected unknown format error")
	}
}
