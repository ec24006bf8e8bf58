package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	zlog "github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/phenrril/rainydays/internal/adapters/export/xlsx"
	"github.com/phenrril/rainydays/internal/app"
	"github.com/phenrril/rainydays/internal/config"
	"github.com/phenrril/rainydays/internal/domain"
	"github.com/phenrril/rainydays/internal/usecase"
)

func productsCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "products",
		Usage: "list catalog products",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "gender", Usage: "only products for this gender"},
			&cli.StringFlag{Name: "tag", Usage: "only products with this tag"},
			&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "search title, description and tags"},
			&cli.BoolFlag{Name: "sale", Usage: "only products on sale"},
			&cli.IntFlag{Name: "limit", Usage: "show at most this many products"},
		},
		Action: withApp(cfg, func(c *cli.Context, a *app.App) error {
			f := domain.ProductFilter{
				Gender: c.String("gender"),
				Tag:    c.String("tag"),
				Query:  c.String("query"),
				Limit:  c.Int("limit"),
			}
			if c.IsSet("sale") {
				v := c.Bool("sale")
				f.OnSale = &v
			}
			list, err := a.ProductUC.List(c.Context, f)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tGENDER\tPRICE\tSIZES")
			for _, p := range list {
				price := domain.FormatPrice(p.EffectivePrice())
				if p.OnSale && p.DiscountedPrice != nil {
					price += " (was " + domain.FormatPrice(p.Price) + ")"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.Title, p.Gender, price, strings.Join(p.Sizes, ","))
			}
			return tw.Flush()
		}),
	}
}

func productCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "product",
		Usage:     "show one product",
		ArgsUsage: "ID",
		Action: withApp(cfg, func(c *cli.Context, a *app.App) error {
			p, err := a.ProductUC.Get(c.Context, domain.ProductID(c.Args().First()))
			if err != nil {
				return err
			}
			w := c.App.Writer
			fmt.Fprintf(w, "%s\n%s\n\n", p.Title, p.Description)
			fmt.Fprintf(w, "Price:  %s\n", domain.FormatPrice(p.EffectivePrice()))
			if len(p.Sizes) > 0 {
				fmt.Fprintf(w, "Sizes:  %s\n", strings.Join(p.Sizes, ", "))
			}
			if p.BaseColor != "" {
				fmt.Fprintf(w, "Color:  %s\n", p.BaseColor)
			}
			if len(p.Tags) > 0 {
				fmt.Fprintf(w, "Tags:   %s\n", strings.Join(p.Tags, ", "))
			}
			return nil
		}),
	}
}

// withView opens the cart view bound to the configured namespace.
func withView(cfg *config.Config, fn func(*cli.Context, *app.App, *usecase.CartStore, *usecase.OrderHistory) error) cli.ActionFunc {
	return withApp(cfg, func(c *cli.Context, a *app.App) error {
		cart, history, stop := a.NewView(c.Context, cfg.Namespace)
		defer stop()
		return fn(c, a, cart, history)
	})
}

func lineFlags() []cli.Flag {
	return []cli.Flag{&cli.StringFlag{Name: "size", Usage: "size of the cart line"}}
}

func cartCmd(cfg *config.Config) *cli.Command {
	show := func(c *cli.Context, _ *app.App, cart *usecase.CartStore, _ *usecase.OrderHistory) error {
		return printCart(c.App.Writer, cart.Snapshot())
	}
	lineOp := func(op func(*usecase.CartStore, *cli.Context, domain.ProductID, string) error) cli.ActionFunc {
		return withView(cfg, func(c *cli.Context, a *app.App, cart *usecase.CartStore, h *usecase.OrderHistory) error {
			if c.Args().Len() == 0 {
				return cli.Exit("missing product ID", 2)
			}
			if err := op(cart, c, domain.ProductID(c.Args().First()), c.String("size")); err != nil {
				return err
			}
			return show(c, a, cart, h)
		})
	}

	return &cli.Command{
		Name:  "cart",
		Usage: "inspect and change the cart",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "print the cart",
				Action: withView(cfg, show),
			},
			{
				Name:      "add",
				Usage:     "add a product to the cart",
				ArgsUsage: "ID",
				Flags: append(lineFlags(),
					&cli.IntFlag{Name: "qty", Value: 1, Usage: "quantity to add"},
				),
				Action: withView(cfg, func(c *cli.Context, a *app.App, cart *usecase.CartStore, h *usecase.OrderHistory) error {
					p, err := a.ProductUC.Get(c.Context, domain.ProductID(c.Args().First()))
					if err != nil {
						return err
					}
					size, err := p.SelectSize(c.String("size"))
					if err != nil {
						return err
					}
					if err := cart.AddItem(c.Context, *p, size, c.Int("qty")); err != nil {
						return err
					}
					return show(c, a, cart, h)
				}),
			},
			{
				Name:      "inc",
				Usage:     "increase a line's quantity by one",
				ArgsUsage: "ID",
				Flags:     lineFlags(),
				Action: lineOp(func(s *usecase.CartStore, c *cli.Context, id domain.ProductID, size string) error {
					return s.Increment(c.Context, id, size)
				}),
			},
			{
				Name:      "dec",
				Usage:     "decrease a line's quantity by one, removing it at zero",
				ArgsUsage: "ID",
				Flags:     lineFlags(),
				Action: lineOp(func(s *usecase.CartStore, c *cli.Context, id domain.ProductID, size string) error {
					return s.Decrement(c.Context, id, size)
				}),
			},
			{
				Name:      "remove",
				Usage:     "remove a line",
				ArgsUsage: "ID",
				Flags:     lineFlags(),
				Action: lineOp(func(s *usecase.CartStore, c *cli.Context, id domain.ProductID, size string) error {
					return s.RemoveItem(c.Context, id, size)
				}),
			},
			{
				Name:  "clear",
				Usage: "empty the cart",
				Action: withView(cfg, func(c *cli.Context, a *app.App, cart *usecase.CartStore, h *usecase.OrderHistory) error {
					if err := cart.Clear(c.Context); err != nil {
						return err
					}
					return show(c, a, cart, h)
				}),
			},
		},
	}
}

func printCart(w io.Writer, cart domain.Cart) error {
	if cart.IsEmpty() {
		_, err := fmt.Fprintln(w, "Your cart is empty.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tSIZE\tQTY\tPRICE\tSUBTOTAL")
	for _, l := range cart.Lines {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			l.ProductID, l.Title, l.Size, l.Quantity, domain.FormatPrice(l.Price), domain.FormatPrice(l.Subtotal()))
	}
	fmt.Fprintf(tw, "\t\t\t%d\tTotal\t%s\n", cart.ItemCount(), domain.FormatPrice(cart.Total()))
	return tw.Flush()
}

func checkoutCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "checkout",
		Usage: "place an order for the cart",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Required: true},
			&cli.StringFlag{Name: "email", Required: true},
			&cli.StringFlag{Name: "address", Required: true},
			&cli.StringFlag{Name: "phone", Required: true},
		},
		Action: withView(cfg, func(c *cli.Context, a *app.App, cart *usecase.CartStore, h *usecase.OrderHistory) error {
			customer := domain.CustomerInfo{
				Name:    c.String("name"),
				Email:   c.String("email"),
				Address: c.String("address"),
				Phone:   c.String("phone"),
			}
			zlog.Info().Msg("processing order")
			o, err := a.CheckoutUC.PlaceOrder(c.Context, cart, h, customer)
			if o == nil {
				return err
			}
			if err != nil {
				zlog.Error().Err(err).Str("order", o.OrderID).Msg("order placed but history not saved")
			}
			w := c.App.Writer
			fmt.Fprintf(w, "Thank you for your order, %s!\n\n", o.Name)
			fmt.Fprintf(w, "Order number:   %s\n", o.OrderID)
			fmt.Fprintf(w, "Total:          %s\n", domain.FormatPrice(o.Total))
			fmt.Fprintf(w, "Delivery by:    %s\n", o.DeliveryLabel())
			fmt.Fprintf(w, "Shipping to:    %s\n", o.Address)
			return nil
		}),
	}
}

func ordersCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "orders",
		Usage: "list placed orders",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "xlsx", Usage: "also write the orders to this spreadsheet"},
		},
		Action: withView(cfg, func(c *cli.Context, _ *app.App, _ *usecase.CartStore, h *usecase.OrderHistory) error {
			list, err := h.List(c.Context)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ORDER\tDATE\tDELIVERY\tNAME\tITEMS\tTOTAL")
			for _, o := range list {
				n := domain.Cart{Lines: o.Items}.ItemCount()
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
					o.OrderID, o.OrderDate.Format("2006-01-02"), o.DeliveryLabel(), o.Name, n, domain.FormatPrice(o.Total))
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			path := c.String("xlsx")
			if path == "" {
				return nil
			}
			f, err := os.Create(path)
			if err != nil {
				return err
			}
			if err := xlsx.WriteOrders(f, list); err != nil {
				_ = f.Close()
				return err
			}
			zlog.Info().Str("file", path).Int("orders", len(list)).Msg("orders exported")
			return f.Close()
		}),
	}
}
