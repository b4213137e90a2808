package main

import (
	"bufio"
	"io"

	"github.com/urfave/cli/v2"

	"ezshop/terminal/internal/clock"
	"ezshop/terminal/internal/config"
)

func newCLI(cfg config.Config, in io.Reader, out io.Writer, errOut io.Writer) *cli.App {
	a := &app{
		cfg:    cfg,
		in:     bufio.NewReader(in),
		out:    &lockedWriter{w: out},
		errOut: &lockedWriter{w: errOut},
		clock:  clock.Real{},
	}

	return &cli.App{
		Name:      "ezshop",
		Usage:     "EZShop point-of-sale terminal",
		Reader:    in,
		Writer:    out,
		ErrWriter: errOut,
		Before: func(c *cli.Context) error {
			return a.setup(c.Context)
		},
		After: func(c *cli.Context) error {
			return a.close()
		},
		Commands: []*cli.Command{
			a.loginCommand(),
			a.logoutCommand(),
			a.whoamiCommand(),
			a.salesCommand(),
			a.returnsCommand(),
			a.productsCommand(),
			a.ordersCommand(),
			a.customersCommand(),
			a.usersCommand(),
			a.accountingCommand(),
			a.dashboardCommand(),
			a.reportCommand(),
			a.posCommand(),
		},
	}
}
