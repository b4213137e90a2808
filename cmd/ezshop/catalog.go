package main

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"ezshop/terminal/internal/cart"
	"ezshop/terminal/internal/form"
	"ezshop/terminal/internal/search"
)

func (a *app) productsCommand() *cli.Command {
	return &cli.Command{
		Name:  "products",
		Usage: "browse the catalogue",
		Before: func(c *cli.Context) error {
			_, err := a.requireUser()
			return err
		},
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list every product",
				Action: func(c *cli.Context) error {
					products, err := a.client.Products.List(c.Context)
					if err != nil {
						return apiError(err)
					}
					a.printProducts(products)
					return nil
				},
			},
			{
				Name:      "show",
				Usage:     "show one product by barcode",
				ArgsUsage: "BARCODE",
				Action: func(c *cli.Context) error {
					barcode, err := argString(c, 0, "barcode")
					if err != nil {
						return err
					}
					p, err := a.client.Products.GetByBarcode(c.Context, barcode)
					if err != nil {
						return apiError(err)
					}
					fmt.Fprintf(a.out, "%s\n  barcode:  %s\n  price:    %s\n  quantity: %d\n", p.Description, p.Barcode, cart.Format(p.PricePerUnit), p.Quantity)
					if p.Position != "" {
						fmt.Fprintf(a.out, "  position: %s\n", p.Position)
					}
					if p.Note != "" {
						fmt.Fprintf(a.out, "  note:     %s\n", p.Note)
					}
					return nil
				},
			},
			{
				Name:  "add",
				Usage: "create a product",
				Flags: productFlags(),
				Before: func(c *cli.Context) error {
					return a.requireRole(backOffice...)
				},
				Action: func(c *cli.Context) error {
					p, err := form.Product{
						Description: c.String("description"),
						Barcode:     c.String("barcode"),
						Price:       c.String("price"),
						Quantity:    c.Int("quantity"),
						Position:    c.String("position"),
						Note:        c.String("note"),
					}.ToProduct()
					if err != nil {
						return err
					}
					created, err := a.client.Products.Create(c.Context, p)
					if err != nil {
						return apiError(err)
					}
					fmt.Fprintf(a.out, "Created product #%d %s\n", created.ID, created.Barcode)
					return nil
				},
			},
			{
				Name:      "update",
				Usage:     "change the fields given as flags",
				ArgsUsage: "PRODUCT_ID",
				Flags:     productFlags(),
				Before: func(c *cli.Context) error {
					return a.requireRole(backOffice...)
				},
				Action: func(c *cli.Context) error {
					id, err := argInt(c, 0, "product id")
					if err != nil {
						return err
					}
					f := form.ProductUpdate{
						Description: setString(c, "description"),
						Barcode:     setString(c, "barcode"),
						Price:       c.String("price"),
						Position:    setString(c, "position"),
						Note:        setString(c, "note"),
					}
					if c.IsSet("quantity") {
						qty := c.Int("quantity")
						f.Quantity = &qty
					}
					req, err := f.ToRequest()
					if err != nil {
						return err
					}
					p, err := a.client.Products.Update(c.Context, id, req)
					if err != nil {
						return apiError(err)
					}
					fmt.Fprintf(a.out, "Updated product #%d %s\n", p.ID, p.Barcode)
					return nil
				},
			},
			{
				Name:      "delete",
				Usage:     "delete a product",
				ArgsUsage: "PRODUCT_ID",
				Before: func(c *cli.Context) error {
					return a.requireRole(backOffice...)
				},
				Action: func(c *cli.Context) error {
					id, err := argInt(c, 0, "product id")
					if err != nil {
						return err
					}
					if err := a.client.Products.Delete(c.Context, id); err != nil {
						return apiError(err)
					}
					fmt.Fprintf(a.out, "Deleted product #%d\n", id)
					return nil
				},
			},
			{
				Name:      "search",
				Usage:     "search by barcode or description",
				ArgsUsage: "QUERY",
				Action: func(c *cli.Context) error {
					query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
					if query == "" {
						return fmt.Errorf("missing query")
					}
					products, err := search.Lookup(c.Context, a.client.Products, query)
					if err != nil {
						return apiError(err)
					}
					a.printProducts(products)
					return nil
				},
			},
		},
	}
}

func (a *app) customersCommand() *cli.Command {
	return &cli.Command{
		Name:  "customers",
		Usage: "customers and loyalty cards",
		Before: func(c *cli.Context) error {
			_, err := a.requireUser()
			return err
		},
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list every customer",
				Action: func(c *cli.Context) error {
					customers, err := a.client.Customers.List(c.Context)
					if err != nil {
						return apiError(err)
					}
					tw := newTable(a.out)
					fmt.Fprintln(tw, "ID\tNAME\tCARD\tPOINTS")
					for _, cu := range customers {
						card, points := "-", "-"
						if cu.Card != nil {
							card, points = cu.Card.CardID, fmt.Sprint(cu.Card.Points)
						}
						fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", cu.ID, cu.Name, card, points)
					}
					return tw.Flush()
				},
			},
			{
				Name:      "add",
				Usage:     "register a customer",
				ArgsUsage: "NAME",
				Action: func(c *cli.Context) error {
					f := form.Customer{Name: strings.TrimSpace(strings.Join(c.Args().Slice(), " "))}
					if err := form.Validate(f); err != nil {
						return err
					}
					cu, err := a.client.Customers.Create(c.Context, f.Name)
					if err != nil {
						return apiError(err)
					}
					fmt.Fprintf(a.out, "Created customer #%d %s\n", cu.ID, cu.Name)
					return nil
				},
			},
			{
				Name:      "update",
				Usage:     "rename a customer",
				ArgsUsage: "CUSTOMER_ID NAME",
				Action: func(c *cli.Context) error {
					id, err := argInt(c, 0, "customer id")
					if err != nil {
						return err
					}
					f := form.Customer{Name: strings.TrimSpace(strings.Join(c.Args().Tail(), " "))}
					if err := form.Validate(f); err != nil {
						return err
					}
					cu, err := a.client.Customers.Update(c.Context, id, f.Name)
					if err != nil {
						return apiError(err)
					}
					fmt.Fprintf(a.out, "Updated customer #%d %s\n", cu.ID, cu.Name)
					return nil
				},
			},
			{
				Name:      "delete",
				Usage:     "delete a customer and release its card",
				ArgsUsage: "CUSTOMER_ID",
				Action: func(c *cli.Context) error {
					id, err := argInt(c, 0, "customer id")
					if err != nil {
						return err
					}
					if err := a.client.Customers.Delete(c.Context, id); err != nil {
						return apiError(err)
					}
					fmt.Fprintf(a.out, "Deleted customer #%d\n", id)
					return nil
				},
			},
			{
				Name:  "card",
				Usage: "issue a new loyalty card",
				Action: func(c *cli.Context) error {
					cardID, err := a.client.Customers.CreateCard(c.Context)
					if err != nil {
						return apiError(err)
					}
					fmt.Fprintf(a.out, "Issued card %s\n", cardID)
					return nil
				},
			},
			{
				Name:      "attach",
				Usage:     "attach a loyalty card to a customer",
				ArgsUsage: "CUSTOMER_ID CARD_ID",
				Action: func(c *cli.Context) error {
					id, err := argInt(c, 0, "customer id")
					if err != nil {
						return err
					}
					cardID, err := argString(c, 1, "card id")
					if err != nil {
						return err
					}
					if err := a.client.Customers.AttachCard(c.Context, id, cardID); err != nil {
						return apiError(err)
					}
					fmt.Fprintf(a.out, "Attached card %s to customer #%d\n", cardID, id)
					return nil
				},
			},
		},
	}
}

func productFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "description", Aliases: []string{"d"}},
		&cli.StringFlag{Name: "barcode", Aliases: []string{"b"}},
		&cli.StringFlag{Name: "price"},
		&cli.IntFlag{Name: "quantity"},
		&cli.StringFlag{Name: "position"},
		&cli.StringFlag{Name: "note"},
	}
}

// setString returns nil unless the flag was given on the command line.
func setString(c *cli.Context, name string) *string {
	if !c.IsSet(name) {
		return nil
	}
	v := c.String(name)
	return &v
}
