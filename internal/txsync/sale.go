package txsync

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"ezshop/terminal/internal/cart"
	"ezshop/terminal/internal/domain"
)

// SaleBackend is the subset of the sales API a POS view drives.
type SaleBackend interface {
	Get(ctx context.Context, id int) (domain.Sale, error)
	AddItem(ctx context.Context, saleID int, barcode string, amount int) error
	RemoveItem(ctx context.Context, saleID int, barcode string, amount int) error
	SetDiscount(ctx context.Context, saleID int, rate decimal.Decimal) error
	SetLineDiscount(ctx context.Context, saleID int, barcode string, rate decimal.Decimal) error
	Close(ctx context.Context, saleID int) error
	Pay(ctx context.Context, saleID int, cash decimal.Decimal) error
}

// Prefetcher warms product details for barcodes seen in a transaction.
type Prefetcher interface {
	Prefetch(ctx context.Context, barcodes []string)
}

// SaleView is the point-of-sale screen for one sale.
type SaleView struct {
	ctrl    *Controller[domain.Sale]
	backend SaleBackend
	details Prefetcher
	id      int
	onDone  func()
}

func NewSaleView(backend SaleBackend, sale domain.Sale, details Prefetcher, opts ...Option) *SaleView {
	return &SaleView{
		ctrl:    NewController(sale, opts...),
		backend: backend,
		details: details,
		id:      sale.ID,
	}
}

// OnDone registers fn to run once the sale has been paid.
func (v *SaleView) OnDone(fn func()) {
	v.onDone = fn
}

func (v *SaleView) OnChange(fn func(Snapshot[domain.Sale])) {
	v.ctrl.OnChange(fn)
}

func (v *SaleView) Snapshot() Snapshot[domain.Sale] {
	return v.ctrl.Snapshot()
}

func (v *SaleView) Sale() domain.Sale {
	return v.ctrl.Value()
}

func (v *SaleView) State() State {
	return v.ctrl.State()
}

func (v *SaleView) Close() {
	v.ctrl.Close()
}

func (v *SaleView) fetch(ctx context.Context) (domain.Sale, error) {
	sale, err := v.backend.Get(ctx, v.id)
	if err != nil {
		return domain.Sale{}, err
	}
	v.prefetch(ctx, sale)
	return sale, nil
}

func (v *SaleView) prefetch(ctx context.Context, sale domain.Sale) {
	if v.details == nil || len(sale.Lines) == 0 {
		return
	}
	barcodes := make([]string, 0, len(sale.Lines))
	for _, line := range sale.Lines {
		barcodes = append(barcodes, line.ProductBarcode)
	}
	go v.details.Prefetch(context.WithoutCancel(ctx), barcodes)
}

func (v *SaleView) Reload(ctx context.Context) error {
	return v.ctrl.Run(ctx, "Failed to load sale", nil, v.fetch)
}

func (v *SaleView) requireEditable() error {
	if !v.Sale().Editable() {
		return ErrNotEditable
	}
	return nil
}

// AddProduct adds one unit of product.
func (v *SaleView) AddProduct(ctx context.Context, product domain.Product) error {
	if err := v.requireEditable(); err != nil {
		return err
	}
	return v.ctrl.Run(ctx, "Failed to add item", func(ctx context.Context) error {
		return v.backend.AddItem(ctx, v.id, product.Barcode, 1)
	}, v.fetch)
}

// UpdateQuantity adds delta units of barcode, or removes them when delta is
// negative.
func (v *SaleView) UpdateQuantity(ctx context.Context, barcode string, delta int) error {
	if delta == 0 {
		return nil
	}
	if err := v.requireEditable(); err != nil {
		return err
	}
	return v.ctrl.Run(ctx, "Failed to update quantity", func(ctx context.Context) error {
		if delta > 0 {
			return v.backend.AddItem(ctx, v.id, barcode, delta)
		}
		return v.backend.RemoveItem(ctx, v.id, barcode, -delta)
	}, v.fetch)
}

func (v *SaleView) ApplyDiscount(ctx context.Context, rate decimal.Decimal) error {
	if err := v.requireEditable(); err != nil {
		return err
	}
	return v.ctrl.Run(ctx, "Failed to apply discount", func(ctx context.Context) error {
		return v.backend.SetDiscount(ctx, v.id, rate)
	}, v.fetch)
}

func (v *SaleView) ApplyLineDiscount(ctx context.Context, barcode string, rate decimal.Decimal) error {
	if err := v.requireEditable(); err != nil {
		return err
	}
	return v.ctrl.Run(ctx, "Failed to apply discount", func(ctx context.Context) error {
		return v.backend.SetLineDiscount(ctx, v.id, barcode, rate)
	}, v.fetch)
}

// CloseSale moves the sale to PENDING.
func (v *SaleView) CloseSale(ctx context.Context) error {
	sale := v.Sale()
	if !sale.Editable() {
		return ErrNotClosable
	}
	if len(sale.Lines) == 0 {
		return ErrEmpty
	}
	return v.ctrl.Run(ctx, "Failed to close sale", func(ctx context.Context) error {
		return v.backend.Close(ctx, v.id)
	}, v.fetch)
}

// Pay settles the sale, closing it first if it is still OPEN. On a backend
// failure the sale is refetched in the background so the view reflects a
// close that succeeded before the payment was refused.
func (v *SaleView) Pay(ctx context.Context, cash decimal.Decimal) error {
	sale := v.Sale()
	if !sale.Payable() {
		return ErrNotPayable
	}
	if len(sale.Lines) == 0 {
		return ErrEmpty
	}
	if cash.LessThan(cart.Total(sale)) {
		return ErrInsufficient
	}

	err := v.ctrl.Run(ctx, "Payment failed", func(ctx context.Context) error {
		if sale.Status == domain.SaleStatusOpen {
			if err := v.backend.Close(ctx, v.id); err != nil {
				return err
			}
		}
		return v.backend.Pay(ctx, v.id, cash)
	}, v.fetch)
	if err != nil {
		if !errors.Is(err, ErrBusy) && !errors.Is(err, ErrClosed) {
			v.ctrl.Refresh(ctx, v.fetch)
		}
		return err
	}

	if v.onDone != nil {
		v.onDone()
	}
	return nil
}

// Total is recomputed from the current lines on every call.
func (v *SaleView) Total() decimal.Decimal {
	return cart.Total(v.Sale())
}

// Change is the cash to hand back for the given tender.
func (v *SaleView) Change(cash decimal.Decimal) decimal.Decimal {
	return cash.Sub(v.Total())
}

func (v *SaleView) CanEditLines() bool {
	snap := v.ctrl.Snapshot()
	return snap.State != Loading && snap.Value.Editable()
}

func (v *SaleView) CanPay() bool {
	snap := v.ctrl.Snapshot()
	return snap.State != Loading && snap.Value.Payable() && len(snap.Value.Lines) > 0
}
