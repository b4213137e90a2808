package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/urfave/cli/v2"

	"ezshop/terminal/internal/cart"
	"ezshop/terminal/internal/domain"
	"ezshop/terminal/internal/form"
	"ezshop/terminal/internal/search"
	"ezshop/terminal/internal/txsync"
)

const (
	posHelp = `Commands:
  <barcode>                 add one unit
  find <text>               search products as you type
  add <barcode>             add one unit
  qty <barcode> <delta>     change a line by delta units
  discount <rate>           sale discount, e.g. 0.1
  line <barcode> <rate>     line discount
  close                     close the sale for payment
  pay <cash>                take payment (closes the sale first)
  show                      print the sale
  quit                      leave the terminal`
	maxSearchHits = 8
)

var errQuit = errors.New("quit")

func (a *app) posCommand() *cli.Command {
	return &cli.Command{
		Name:  "pos",
		Usage: "interactive point-of-sale terminal",
		Flags: []cli.Flag{&cli.IntFlag{Name: "sale", Usage: "resume an existing sale"}},
		Before: func(c *cli.Context) error {
			_, err := a.requireUser()
			return err
		},
		Action: func(c *cli.Context) error {
			t := &terminal{app: a, expired: make(chan struct{})}
			return t.run(c.Context, c.Int("sale"))
		},
	}
}

// terminal is one pos loop: a sale view fed by typed commands, with the
// search box running beside it.
type terminal struct {
	app      *app
	view     *txsync.SaleView
	debounce *search.Debouncer
	expired  chan struct{}
	once     sync.Once
}

func (t *terminal) run(ctx context.Context, saleID int) error {
	a := t.app
	a.session.OnExpired(func() { t.once.Do(func() { close(t.expired) }) })

	t.debounce = search.NewDebouncer(a.client.Products, t.showResults,
		search.WithDelay(a.cfg.SearchDelay()),
		search.WithMinChars(a.cfg.Search.MinChars),
		search.WithClock(a.clock),
		search.WithLogger(a.logger),
	)
	defer t.debounce.Close()

	if err := t.open(ctx, saleID); err != nil {
		return err
	}
	defer func() { t.view.Close() }()

	fmt.Fprintln(a.out, "Type help for commands.")
	for {
		select {
		case <-t.expired:
			return errors.New("session expired, log in again")
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := a.readLine("> ")
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := t.exec(ctx, strings.Fields(line)); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			fmt.Fprintf(a.out, "! %v\n", viewError(err, t.view.Snapshot()))
		}
	}
}

// open starts a view on saleID, or on a fresh sale when saleID is zero.
func (t *terminal) open(ctx context.Context, saleID int) error {
	a := t.app
	var (
		sale domain.Sale
		err  error
	)
	if saleID > 0 {
		sale, err = a.client.Sales.Get(ctx, saleID)
	} else {
		sale, err = a.client.Sales.Create(ctx)
	}
	if err != nil {
		return apiError(err)
	}

	if t.view != nil {
		t.view.Close()
	}
	t.view = txsync.NewSaleView(a.client.Sales, sale, a.details, a.syncOptions()...)
	if err := t.view.Reload(ctx); err != nil {
		return viewError(err, t.view.Snapshot())
	}
	fmt.Fprintf(a.out, "Sale #%d (%s)\n", sale.ID, t.view.Sale().Status)
	return nil
}

func (t *terminal) exec(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return nil
	}
	a := t.app
	view := t.view

	switch cmd := strings.ToLower(args[0]); {
	case cmd == "help":
		fmt.Fprintln(a.out, posHelp)
		return nil
	case cmd == "quit" || cmd == "exit":
		return errQuit
	case cmd == "show":
		a.printSale(ctx, view.Sale())
		return nil
	case cmd == "find":
		t.debounce.Type(strings.Join(args[1:], " "))
		return nil
	case cmd == "add" && len(args) == 2:
		return t.add(ctx, args[1])
	case search.LooksLikeBarcode(cmd) && len(args) == 1:
		return t.add(ctx, cmd)
	case cmd == "qty" && len(args) == 3:
		delta, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("delta must be a whole number, got %q", args[2])
		}
		return t.after(ctx, view.UpdateQuantity(ctx, args[1], delta))
	case cmd == "discount" && len(args) == 2:
		rate, err := form.Discount{Rate: args[1]}.Value()
		if err != nil {
			return err
		}
		return t.after(ctx, view.ApplyDiscount(ctx, rate))
	case cmd == "line" && len(args) == 3:
		rate, err := form.Discount{Rate: args[2]}.Value()
		if err != nil {
			return err
		}
		return t.after(ctx, view.ApplyLineDiscount(ctx, args[1], rate))
	case cmd == "close":
		return t.after(ctx, view.CloseSale(ctx))
	case cmd == "pay" && len(args) == 2:
		return t.pay(ctx, args[1])
	}
	return fmt.Errorf("unknown command %q, type help", strings.Join(args, " "))
}

func (t *terminal) add(ctx context.Context, barcode string) error {
	product, ok := t.app.details.Lookup(ctx, barcode)
	if !ok {
		var err error
		product, err = t.app.client.Products.GetByBarcode(ctx, barcode)
		if err != nil {
			return apiError(err)
		}
	}
	return t.after(ctx, t.view.AddProduct(ctx, product))
}

func (t *terminal) after(ctx context.Context, err error) error {
	if err != nil {
		return err
	}
	sale := t.view.Sale()
	fmt.Fprintf(t.app.out, "Items: %d  Total: %s  (%s)\n", cart.ItemCount(sale.Lines), cart.Format(cart.Total(sale)), sale.Status)
	return nil
}

func (t *terminal) pay(ctx context.Context, raw string) error {
	cash, err := form.Payment{Cash: raw}.Value()
	if err != nil {
		return err
	}
	view := t.view
	paid := false
	view.OnDone(func() { paid = true })
	if err := view.Pay(ctx, cash); err != nil {
		return err
	}
	if !paid {
		return nil
	}
	fmt.Fprintf(t.app.out, "Sale #%d paid. Change: %s\n", view.Sale().ID, cart.Format(view.Change(cash)))
	return t.open(ctx, 0)
}

func (t *terminal) showResults(res search.Result) {
	out := t.app.out
	switch {
	case res.Searching:
		fmt.Fprintf(out, "searching %q...\n", res.Query)
	case res.Err != nil:
		fmt.Fprintf(out, "! %s\n", apiError(res.Err))
	case utf8.RuneCountInString(res.Query) < t.app.cfg.Search.MinChars:
	case len(res.Products) == 0:
		fmt.Fprintf(out, "no products match %q\n", res.Query)
	default:
		hits := res.Products
		if len(hits) > maxSearchHits {
			hits = hits[:maxSearchHits]
		}
		tw := newTable(out)
		for _, p := range hits {
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%d left\n", p.Barcode, p.Description, cart.Format(p.PricePerUnit), p.Quantity)
		}
		_ = tw.Flush()
	}
}
