package txsync

import (
	"context"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"ezshop/terminal/internal/cart"
	"ezshop/terminal/internal/domain"
)

type ReturnBackend interface {
	Get(ctx context.Context, id int) (domain.Return, error)
	AddItem(ctx context.Context, returnID int, barcode string, amount int) error
	RemoveItem(ctx context.Context, returnID int, barcode string, amount int) error
	Close(ctx context.Context, returnID int) error
	Reimburse(ctx context.Context, returnID int) error
}

type SaleGetter interface {
	Get(ctx context.Context, id int) (domain.Sale, error)
}

// ReturnDetails pairs a return with the sale it was opened against.
type ReturnDetails struct {
	Return domain.Return
	Sale   domain.Sale
}

// ReturnView is the details screen of one return.
type ReturnView struct {
	ctrl    *Controller[ReturnDetails]
	backend ReturnBackend
	sales   SaleGetter
	id      int
	saleID  int
	onDone  func()
}

func NewReturnView(backend ReturnBackend, sales SaleGetter, ret domain.Return, opts ...Option) *ReturnView {
	return &ReturnView{
		ctrl:    NewController(ReturnDetails{Return: ret}, opts...),
		backend: backend,
		sales:   sales,
		id:      ret.ID,
		saleID:  ret.SaleID,
	}
}

// OnDone registers fn to run after the return is closed or reimbursed.
func (v *ReturnView) OnDone(fn func()) {
	v.onDone = fn
}

func (v *ReturnView) OnChange(fn func(Snapshot[ReturnDetails])) {
	v.ctrl.OnChange(fn)
}

func (v *ReturnView) Snapshot() Snapshot[ReturnDetails] {
	return v.ctrl.Snapshot()
}

func (v *ReturnView) Details() ReturnDetails {
	return v.ctrl.Value()
}

func (v *ReturnView) State() State {
	return v.ctrl.State()
}

func (v *ReturnView) Close() {
	v.ctrl.Close()
}

func (v *ReturnView) fetch(ctx context.Context) (ReturnDetails, error) {
	var details ReturnDetails
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ret, err := v.backend.Get(gctx, v.id)
		details.Return = ret
		return err
	})
	g.Go(func() error {
		sale, err := v.sales.Get(gctx, v.saleID)
		details.Sale = sale
		return err
	})
	if err := g.Wait(); err != nil {
		return ReturnDetails{}, err
	}
	return details, nil
}

func (v *ReturnView) Reload(ctx context.Context) error {
	return v.ctrl.Run(ctx, "Failed to load details", nil, v.fetch)
}

// AddItem returns one more unit of barcode.
func (v *ReturnView) AddItem(ctx context.Context, barcode string) error {
	if !v.Details().Return.Editable() {
		return ErrNotEditable
	}
	return v.ctrl.Run(ctx, "Failed to add item", func(ctx context.Context) error {
		return v.backend.AddItem(ctx, v.id, barcode, 1)
	}, v.fetch)
}

// RemoveItem takes one unit of barcode off the return.
func (v *ReturnView) RemoveItem(ctx context.Context, barcode string) error {
	if !v.Details().Return.Editable() {
		return ErrNotEditable
	}
	return v.ctrl.Run(ctx, "Failed to remove item", func(ctx context.Context) error {
		return v.backend.RemoveItem(ctx, v.id, barcode, 1)
	}, v.fetch)
}

func (v *ReturnView) CloseReturn(ctx context.Context) error {
	ret := v.Details().Return
	if !ret.Editable() {
		return ErrNotClosable
	}
	if len(ret.Lines) == 0 {
		return ErrEmpty
	}
	err := v.ctrl.Run(ctx, "Failed to close return", func(ctx context.Context) error {
		return v.backend.Close(ctx, v.id)
	}, v.fetch)
	if err != nil {
		return err
	}
	v.done()
	return nil
}

func (v *ReturnView) Reimburse(ctx context.Context) error {
	if v.Details().Return.Status != domain.ReturnStatusClosed {
		return ErrNotPayable
	}
	err := v.ctrl.Run(ctx, "Reimbursement failed", func(ctx context.Context) error {
		return v.backend.Reimburse(ctx, v.id)
	}, v.fetch)
	if err != nil {
		return err
	}
	v.done()
	return nil
}

func (v *ReturnView) done() {
	if v.onDone != nil {
		v.onDone()
	}
}

func (v *ReturnView) RefundTotal() decimal.Decimal {
	return cart.RefundTotal(v.Details().Return)
}

func (v *ReturnView) CanEditLines() bool {
	snap := v.ctrl.Snapshot()
	return snap.State != Loading && snap.Value.Return.Editable()
}

func (v *ReturnView) CanClose() bool {
	snap := v.ctrl.Snapshot()
	return snap.State != Loading && snap.Value.Return.Editable() && len(snap.Value.Return.Lines) > 0
}

func (v *ReturnView) CanReimburse() bool {
	snap := v.ctrl.Snapshot()
	return snap.State != Loading && snap.Value.Return.Status == domain.ReturnStatusClosed
}
