// Package cart derives monetary totals from sale and return lines.
//
// Totals are never stored: they are recomputed from the current lines every
// time they are shown. Discount rates are trusted as sent by the backend and
// are not clamped, so out-of-range rates produce negative or inflated totals
// instead of errors.
package cart

import (
	"github.com/shopspring/decimal"

	"ezshop/terminal/internal/domain"
)

var one = decimal.NewFromInt(1)

// SaleLineTotal is quantity × unit price × (1 − line discount).
func SaleLineTotal(line domain.SaleLine) decimal.Decimal {
	return decimal.NewFromInt(int64(line.Quantity)).
		Mul(line.PricePerUnit).
		Mul(one.Sub(line.DiscountRate))
}

// SaleSubtotal sums discounted line totals before the sale-level discount.
func SaleSubtotal(lines []domain.SaleLine) decimal.Decimal {
	sum := decimal.Zero
	for _, line := range lines {
		sum = sum.Add(SaleLineTotal(line))
	}
	return sum
}

// SaleTotal applies the sale discount to the subtotal.
func SaleTotal(lines []domain.SaleLine, saleDiscount decimal.Decimal) decimal.Decimal {
	if len(lines) == 0 {
		return decimal.Zero
	}
	return SaleSubtotal(lines).Mul(one.Sub(saleDiscount))
}

// Total is SaleTotal for a whole sale.
func Total(sale domain.Sale) decimal.Decimal {
	return SaleTotal(sale.Lines, sale.DiscountRate)
}

func ReturnLineTotal(line domain.ReturnLine) decimal.Decimal {
	return decimal.NewFromInt(int64(line.Quantity)).Mul(line.PricePerUnit)
}

// ReturnTotal is the refund owed for the lines; no discount layer applies.
func ReturnTotal(lines []domain.ReturnLine) decimal.Decimal {
	sum := decimal.Zero
	for _, line := range lines {
		sum = sum.Add(ReturnLineTotal(line))
	}
	return sum
}

func RefundTotal(ret domain.Return) decimal.Decimal {
	return ReturnTotal(ret.Lines)
}

// OrderTotal is quantity × unit price for a supplier order.
func OrderTotal(order domain.Order) decimal.Decimal {
	return decimal.NewFromInt(int64(order.Quantity)).Mul(order.PricePerUnit)
}

// ItemCount sums line quantities.
func ItemCount(lines []domain.SaleLine) int {
	count := 0
	for _, line := range lines {
		count += line.Quantity
	}
	return count
}

// Format renders an amount with two decimals for display and export.
func Format(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}

// Percent renders a rate such as 0.15 as "15%".
func Percent(rate decimal.Decimal) string {
	return rate.Mul(decimal.NewFromInt(100)).StringFixed(0) + "%"
}
