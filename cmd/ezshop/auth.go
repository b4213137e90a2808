package main

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"
)

func (a *app) loginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "log in and remember the session on this terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "username", Aliases: []string{"u"}, EnvVars: []string{"EZSHOP_USERNAME"}},
			&cli.StringFlag{Name: "password", Aliases: []string{"p"}, EnvVars: []string{"EZSHOP_PASSWORD"}, Usage: "read from stdin when omitted"},
		},
		Action: func(c *cli.Context) error {
			username := strings.TrimSpace(c.String("username"))
			var err error
			if username == "" {
				if username, err = a.readLine("Username: "); err != nil {
					return err
				}
				username = strings.TrimSpace(username)
			}
			password := c.String("password")
			if password == "" {
				if password, err = a.readLine("Password: "); err != nil {
					return err
				}
			}
			if username == "" || password == "" {
				return fmt.Errorf("username and password are required")
			}

			user, err := a.session.Login(c.Context, a.client.Auth, username, password)
			if err != nil {
				return apiError(err)
			}
			fmt.Fprintf(a.out, "Logged in as %s (%s)\n", user.Username, user.Type)
			return nil
		},
	}
}

func (a *app) logoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "forget the session on this terminal",
		Action: func(c *cli.Context) error {
			if err := a.session.Logout(c.Context); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Logged out")
			return nil
		},
	}
}

func (a *app) whoamiCommand() *cli.Command {
	return &cli.Command{
		Name:  "whoami",
		Usage: "show the logged-in operator",
		Action: func(c *cli.Context) error {
			user, err := a.requireUser()
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s (%s)", user.Username, user.Type)
			if exp := a.session.ExpiresAt(); !exp.IsZero() {
				fmt.Fprintf(a.out, ", session expires %s", exp.Local().Format("2006-01-02 15:04"))
			}
			fmt.Fprintln(a.out)
			return nil
		},
	}
}
