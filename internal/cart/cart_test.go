package cart

import (
	"testing"

	"github.com/shopspring/decimal"

	"ezshop/terminal/internal/domain"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("parse decimal %q: %v", s, err)
	}
	return d
}

func TestSaleTotalWithoutDiscounts(t *testing.T) {
	lines := []domain.SaleLine{
		{ProductBarcode: "4006381333931", Quantity: 2, PricePerUnit: dec(t, "10"), DiscountRate: decimal.Zero},
	}

	total := SaleTotal(lines, decimal.Zero)
	if Format(total) != "20.00" {
		t.Fatalf("expected 20.00, got %s", Format(total))
	}
}

func TestSaleTotalAppliesLineThenSaleDiscount(t *testing.T) {
	lines := []domain.SaleLine{
		{ProductBarcode: "4006381333931", Quantity: 3, PricePerUnit: dec(t, "5"), DiscountRate: dec(t, "0.1")},
	}

	total := SaleTotal(lines, dec(t, "0.2"))
	if !total.Equal(dec(t, "10.8")) {
		t.Fatalf("expected 10.80, got %s", total)
	}
}

func TestFullLineDiscountTotalsZero(t *testing.T) {
	lines := []domain.SaleLine{
		{ProductBarcode: "a", Quantity: 4, PricePerUnit: dec(t, "2.5"), DiscountRate: dec(t, "1")},
		{ProductBarcode: "b", Quantity: 1, PricePerUnit: dec(t, "3"), DiscountRate: decimal.Zero},
	}

	if got := SaleLineTotal(lines[0]); !got.IsZero() {
		t.Fatalf("expected free line, got %s", got)
	}
	if got := SaleTotal(lines, decimal.Zero); !got.Equal(dec(t, "3")) {
		t.Fatalf("expected 3, got %s", got)
	}
	if got := SaleTotal(lines, dec(t, "1")); !got.IsZero() {
		t.Fatalf("expected zero with full sale discount, got %s", got)
	}
}

func TestSaleTotalSumsMixedLines(t *testing.T) {
	sale := domain.Sale{
		DiscountRate: dec(t, "0.5"),
		Lines: []domain.SaleLine{
			{ProductBarcode: "a", Quantity: 1, PricePerUnit: dec(t, "4"), DiscountRate: dec(t, "0.25")},
			{ProductBarcode: "b", Quantity: 2, PricePerUnit: dec(t, "1.5"), DiscountRate: decimal.Zero},
		},
	}

	// (1*4*0.75 + 2*1.5) * 0.5 = 3
	if got := Total(sale); !got.Equal(dec(t, "3")) {
		t.Fatalf("expected 3, got %s", got)
	}
	if got := SaleSubtotal(sale.Lines); !got.Equal(dec(t, "6")) {
		t.Fatalf("expected subtotal 6, got %s", got)
	}
	if got := ItemCount(sale.Lines); got != 3 {
		t.Fatalf("expected 3 items, got %d", got)
	}
}

func TestEmptyLinesTotalZero(t *testing.T) {
	if got := SaleTotal(nil, dec(t, "0.3")); !got.IsZero() {
		t.Fatalf("expected zero sale total, got %s", got)
	}
	if got := ReturnTotal(nil); !got.IsZero() {
		t.Fatalf("expected zero return total, got %s", got)
	}
	if got := ReturnTotal([]domain.ReturnLine{}); !got.IsZero() {
		t.Fatalf("expected zero return total, got %s", got)
	}
}

func TestReturnTotalIgnoresDiscounts(t *testing.T) {
	lines := []domain.ReturnLine{
		{ProductBarcode: "a", Quantity: 1, PricePerUnit: dec(t, "15")},
		{ProductBarcode: "b", Quantity: 2, PricePerUnit: dec(t, "7.5")},
	}

	total := ReturnTotal(lines)
	if Format(total) != "30.00" {
		t.Fatalf("expected 30.00, got %s", Format(total))
	}
	if got := RefundTotal(domain.Return{Lines: lines}); !got.Equal(total) {
		t.Fatalf("expected refund total %s, got %s", total, got)
	}
}

func TestOutOfRangeDiscountDoesNotPanic(t *testing.T) {
	lines := []domain.SaleLine{
		{ProductBarcode: "a", Quantity: 1, PricePerUnit: dec(t, "10"), DiscountRate: dec(t, "1.5")},
	}

	// 10 * (1-1.5) = -5; -5 * (1-(-1)) = -10
	total := SaleTotal(lines, dec(t, "-1"))
	if !total.Equal(dec(t, "-10")) {
		t.Fatalf("expected -10, got %s", total)
	}
}

func TestSaleTotalIsDeterministic(t *testing.T) {
	lines := []domain.SaleLine{
		{ProductBarcode: "a", Quantity: 7, PricePerUnit: dec(t, "0.1"), DiscountRate: dec(t, "0.3")},
	}
	first := SaleTotal(lines, dec(t, "0.05"))
	for i := 0; i < 10; i++ {
		if got := SaleTotal(lines, dec(t, "0.05")); !got.Equal(first) {
			t.Fatalf("expected stable total %s, got %s", first, got)
		}
	}
}

func TestOrderTotalAndPercent(t *testing.T) {
	order := domain.Order{Quantity: 4, PricePerUnit: dec(t, "2.25")}
	if got := Format(OrderTotal(order)); got != "9.00" {
		t.Fatalf("expected 9.00, got %s", got)
	}
	if got := Percent(dec(t, "0.15")); got != "15%" {
		t.Fatalf("expected 15%%, got %s", got)
	}
}
