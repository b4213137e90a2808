// Package report turns transaction history into CSV or XLSX exports.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"ezshop/terminal/internal/cart"
	"ezshop/terminal/internal/domain"
)

type Kind string

const (
	KindSales   Kind = "sales"
	KindReturns Kind = "returns"
	KindOrders  Kind = "orders"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

const sheetName = "Sheet1"

func ParseKind(raw string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(raw))); k {
	case KindSales, KindReturns, KindOrders:
		return k, nil
	}
	return "", fmt.Errorf("unknown report kind %q", raw)
}

func ParseFormat(raw string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(raw))); f {
	case FormatCSV, FormatXLSX:
		return f, nil
	}
	return "", fmt.Errorf("unknown report format %q", raw)
}

// Table is a header row plus data rows. Cells are strings or ints.
type Table struct {
	Kind    Kind
	Headers []string
	Rows    [][]any
}

func Sales(sales []domain.Sale) Table {
	t := Table{Kind: KindSales, Headers: []string{"ID", "Date", "Status", "Discount", "Total"}}
	for _, s := range sales {
		t.Rows = append(t.Rows, []any{
			s.ID,
			formatTime(s.CreatedAt),
			string(s.Status),
			cart.Percent(s.DiscountRate),
			cart.Format(cart.Total(s)),
		})
	}
	return t
}

func Returns(returns []domain.Return) Table {
	t := Table{Kind: KindReturns, Headers: []string{"ID", "Sale ID", "Date", "Status", "Total Refund"}}
	for _, r := range returns {
		t.Rows = append(t.Rows, []any{
			r.ID,
			r.SaleID,
			formatTime(r.CreatedAt),
			string(r.Status),
			cart.Format(cart.RefundTotal(r)),
		})
	}
	return t
}

func Orders(orders []domain.Order) Table {
	t := Table{Kind: KindOrders, Headers: []string{"Order ID", "Product", "Quantity", "Status", "Total Price", "Issue Date"}}
	for _, o := range orders {
		t.Rows = append(t.Rows, []any{
			o.ID,
			o.ProductBarcode,
			o.Quantity,
			string(o.Status),
			cart.Format(cart.OrderTotal(o)),
			o.IssueDate,
		})
	}
	return t
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// Filename is the download name used for a report of kind produced on day.
func Filename(kind Kind, format Format, day time.Time) string {
	prefix := string(kind) + "_report_"
	if kind == KindOrders {
		prefix = "orders_export_"
	}
	return prefix + day.Format(time.DateOnly) + "." + string(format)
}

func Write(w io.Writer, t Table, format Format) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, t)
	case FormatXLSX:
		return WriteXLSX(w, t)
	}
	return fmt.Errorf("unknown report format %q", format)
}

func WriteCSV(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Headers); err != nil {
		return fmt.Errorf("write %s header: %w", t.Kind, err)
	}
	record := make([]string, len(t.Headers))
	for _, row := range t.Rows {
		for i, cell := range row {
			record[i] = cellString(cell)
		}
		if err := cw.Write(record[:len(row)]); err != nil {
			return fmt.Errorf("write %s row: %w", t.Kind, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func cellString(cell any) string {
	switch v := cell.(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	}
	return fmt.Sprint(cell)
}

func WriteXLSX(w io.Writer, t Table) error {
	f := excelize.NewFile()
	defer f.Close()

	for col, header := range t.Headers {
		if err := setCell(f, col, 1, header); err != nil {
			return err
		}
	}
	for r, row := range t.Rows {
		for col, cell := range row {
			if err := setCell(f, col, r+2, cell); err != nil {
				return err
			}
		}
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write %s workbook: %w", t.Kind, err)
	}
	return nil
}

func setCell(f *excelize.File, col int, row int, value any) error {
	cell, err := excelize.CoordinatesToCellName(col+1, row)
	if err != nil {
		return err
	}
	return f.SetCellValue(sheetName, cell, value)
}
