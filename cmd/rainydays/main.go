package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/phenrril/rainydays/internal/app"
	"github.com/phenrril/rainydays/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCLI(cfg).RunContext(ctx, os.Args); err != nil {
		zlog.Fatal().Err(err).Msg("rainydays")
	}
}

func setupLogger(cfg *config.Config) {
	zerolog.TimeFieldFormat = time.RFC3339
	lvl, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	if cfg.IsDev() {
		zlog.Logger = zlog.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	} else {
		zlog.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}

func newCLI(cfg *config.Config) *cli.App {
	return &cli.App{
		Name:  "rainydays",
		Usage: "Rainy Days storefront: catalog, cart and checkout",
		Commands: []*cli.Command{
			serveCmd(cfg),
			productsCmd(cfg),
			productCmd(cfg),
			cartCmd(cfg),
			checkoutCmd(cfg),
			ordersCmd(cfg),
		},
	}
}

// withApp builds the application for a single command and closes it after.
func withApp(cfg *config.Config, fn func(*cli.Context, *app.App) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		a, err := app.NewApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(c, a)
	}
}

func serveCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the HTTP API",
		Action: withApp(cfg, func(c *cli.Context, a *app.App) error {
			ln, port, err := listen(cfg.Port)
			if err != nil {
				return err
			}
			server := &http.Server{Handler: a.HTTPHandler(), ReadHeaderTimeout: 10 * time.Second}

			g, ctx := errgroup.WithContext(c.Context)
			g.Go(func() error {
				zlog.Info().Str("port", port).Str("storage", cfg.StorageDriver).Msg("listening")
				if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
					return err
				}
				return nil
			})
			g.Go(func() error {
				return a.RunSignals(ctx)
			})
			g.Go(func() error {
				<-ctx.Done()
				sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return server.Shutdown(sctx)
			})
			return g.Wait()
		}),
	}
}

// listen binds the configured port, falling back to the first free port in
// 8081-8090 when it is taken.
func listen(port string) (net.Listener, string, error) {
	ln, err := net.Listen("tcp", ":"+port)
	if err == nil {
		return ln, port, nil
	}
	zlog.Warn().Err(err).Str("port", port).Msg("port busy, trying fallbacks")
	for p := 8081; p <= 8090; p++ {
		alt := fmt.Sprintf("%d", p)
		if l2, err2 := net.Listen("tcp", net.JoinHostPort("", alt)); err2 == nil {
			return l2, alt, nil
		}
	}
	return nil, "", errors.Wrap(err, "no free port")
}
