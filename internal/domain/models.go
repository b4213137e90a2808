package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type UserType string

const (
	UserTypeAdministrator UserType = "Administrator"
	UserTypeShopManager   UserType = "ShopManager"
	UserTypeCashier       UserType = "Cashier"
)

func (t UserType) Valid() bool {
	switch t {
	case UserTypeAdministrator, UserTypeShopManager, UserTypeCashier:
		return true
	}
	return false
}

// CanManageUsers reports whether the role may list, create, update or delete users.
func (t UserType) CanManageUsers() bool {
	return t == UserTypeAdministrator
}

// CanManageBackOffice covers orders, accounting and reports.
func (t UserType) CanManageBackOffice() bool {
	return t == UserTypeAdministrator || t == UserTypeShopManager
}

type User struct {
	ID       int      `json:"id"`
	Username string   `json:"username"`
	Type     UserType `json:"type"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

type UserCreateRequest struct {
	Username string   `json:"username"`
	Password string   `json:"password"`
	Type     UserType `json:"type"`
}

type UserUpdateRequest struct {
	Username *string   `json:"username,omitempty"`
	Password *string   `json:"password,omitempty"`
	Type     *UserType `json:"type,omitempty"`
}

type Product struct {
	ID           int             `json:"id,omitempty"`
	Description  string          `json:"description"`
	Barcode      string          `json:"barcode"`
	PricePerUnit decimal.Decimal `json:"price_per_unit"`
	Note         string          `json:"note,omitempty"`
	Quantity     int             `json:"quantity,omitempty"`
	Position     string          `json:"position,omitempty"`
}

type ProductUpdateRequest struct {
	Description  *string          `json:"description,omitempty"`
	Barcode      *string          `json:"barcode,omitempty"`
	PricePerUnit *decimal.Decimal `json:"price_per_unit,omitempty"`
	Note         *string          `json:"note,omitempty"`
	Quantity     *int             `json:"quantity,omitempty"`
	Position     *string          `json:"position,omitempty"`
}

type OrderStatus string

const (
	OrderStatusIssued    OrderStatus = "ISSUED"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusCompleted OrderStatus = "COMPLETED"
)

type Order struct {
	ID             int             `json:"id,omitempty"`
	ProductBarcode string          `json:"product_barcode"`
	Quantity       int             `json:"quantity"`
	PricePerUnit   decimal.Decimal `json:"price_per_unit"`
	Status         OrderStatus     `json:"status,omitempty"`
	IssueDate      string          `json:"issue_date,omitempty"`
}

type CustomerCard struct {
	CardID string `json:"card_id"`
	Points int    `json:"points"`
}

type Customer struct {
	ID   int           `json:"id,omitempty"`
	Name string        `json:"name"`
	Card *CustomerCard `json:"card,omitempty"`
}

type CardResponse struct {
	CardID string `json:"card_id"`
}

type SaleStatus string

const (
	SaleStatusOpen    SaleStatus = "OPEN"
	SaleStatusPending SaleStatus = "PENDING"
	SaleStatusPaid    SaleStatus = "PAID"
)

type SaleLine struct {
	ID             int             `json:"id,omitempty"`
	SaleID         int             `json:"sale_id"`
	ProductBarcode string          `json:"product_barcode"`
	Quantity       int             `json:"quantity"`
	PricePerUnit   decimal.Decimal `json:"price_per_unit"`
	DiscountRate   decimal.Decimal `json:"discount_rate"`
}

type Sale struct {
	ID           int             `json:"id,omitempty"`
	Status       SaleStatus      `json:"status"`
	DiscountRate decimal.Decimal `json:"discount_rate"`
	CreatedAt    *time.Time      `json:"created_at,omitempty"`
	ClosedAt     *time.Time      `json:"closed_at,omitempty"`
	Lines        []SaleLine      `json:"lines,omitempty"`
}

// Editable reports whether lines and discounts may still change.
func (s Sale) Editable() bool {
	return s.Status == SaleStatusOpen
}

// Payable is true until the sale is paid; an OPEN sale is closed before payment.
func (s Sale) Payable() bool {
	return s.Status == SaleStatusOpen || s.Status == SaleStatusPending
}

// Line returns the line for barcode, if any.
func (s Sale) Line(barcode string) (SaleLine, bool) {
	for _, line := range s.Lines {
		if line.ProductBarcode == barcode {
			return line, true
		}
	}
	return SaleLine{}, false
}

type ReturnStatus string

const (
	ReturnStatusOpen       ReturnStatus = "OPEN"
	ReturnStatusClosed     ReturnStatus = "CLOSED"
	ReturnStatusReimbursed ReturnStatus = "REIMBURSED"
)

// rank orders return statuses so transitions can be checked for monotonicity.
func (s ReturnStatus) rank() int {
	switch s {
	case ReturnStatusOpen:
		return 0
	case ReturnStatusClosed:
		return 1
	case ReturnStatusReimbursed:
		return 2
	}
	return -1
}

// Precedes reports whether s comes strictly before next in OPEN → CLOSED → REIMBURSED.
func (s ReturnStatus) Precedes(next ReturnStatus) bool {
	return s.rank() >= 0 && s.rank() < next.rank()
}

type ReturnLine struct {
	ID             int             `json:"id,omitempty"`
	ReturnID       int             `json:"return_id"`
	ProductBarcode string          `json:"product_barcode"`
	Quantity       int             `json:"quantity"`
	PricePerUnit   decimal.Decimal `json:"price_per_unit"`
}

type Return struct {
	ID        int          `json:"id,omitempty"`
	SaleID    int          `json:"sale_id"`
	Status    ReturnStatus `json:"status"`
	CreatedAt *time.Time   `json:"created_at,omitempty"`
	ClosedAt  *time.Time   `json:"closed_at,omitempty"`
	Lines     []ReturnLine `json:"lines,omitempty"`
}

func (r Return) Editable() bool {
	return r.Status == ReturnStatusOpen
}

type BalanceResponse struct {
	Balance decimal.Decimal `json:"balance"`
}

type BalanceSetRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}

type KPI struct {
	Value  float64 `json:"value"`
	Change float64 `json:"change"`
}

type ChartDataPoint struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

type ProductStat struct {
	Barcode      string  `json:"barcode"`
	Description  string  `json:"description"`
	QuantitySold int     `json:"quantity_sold"`
	Revenue      float64 `json:"revenue"`
}

type Dashboard struct {
	TotalRevenue  KPI              `json:"total_revenue"`
	TotalSales    KPI              `json:"total_sales"`
	ActiveOrders  KPI              `json:"active_orders"`
	TotalProducts KPI              `json:"total_products"`
	EarningsTrend []ChartDataPoint `json:"earnings_trend"`
	TopProducts   []ProductStat    `json:"top_products"`
}

// ErrorResponse is the body every backend error carries.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Name    string `json:"name"`
}
