package app

import (
	"context"
	"net/http"
	"os"

	"github.com/pkg/errors"
	zlog "github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/phenrril/rainydays/internal/adapters/catalog/noroff"
	"github.com/phenrril/rainydays/internal/adapters/httpserver"
	pgrepo "github.com/phenrril/rainydays/internal/adapters/repo/postgres"
	"github.com/phenrril/rainydays/internal/adapters/signal"
	"github.com/phenrril/rainydays/internal/adapters/storage/localfs"
	"github.com/phenrril/rainydays/internal/adapters/storage/memory"
	"github.com/phenrril/rainydays/internal/config"
	"github.com/phenrril/rainydays/internal/domain"
	"github.com/phenrril/rainydays/internal/usecase"
)

type App struct {
	Cfg        *config.Config
	DB         *gorm.DB
	Store      domain.KVStore
	Hub        *signal.Hub
	Bridge     *signal.AMQPBridge
	Signal     domain.ChangeSignal
	ProductUC  *usecase.ProductUC
	CheckoutUC *usecase.CheckoutUC
}

func NewApp(cfg *config.Config) (*App, error) {
	a := &App{Cfg: cfg, Hub: signal.NewHub()}

	switch cfg.StorageDriver {
	case config.DriverMemory:
		a.Store = memory.New()
	case config.DriverPostgres:
		db, err := gorm.Open(postgres.Open(cfg.DBDSN), &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
		if err != nil {
			return nil, errors.Wrap(err, "connect to database")
		}
		repo := pgrepo.NewKVRepo(db)
		if err := repo.Migrate(); err != nil {
			return nil, errors.Wrap(err, "migrate kv_entries")
		}
		a.DB = db
		a.Store = repo
	default:
		if err := os.MkdirAll(cfg.StorageDir, 0755); err != nil {
			return nil, errors.Wrap(err, "create storage dir")
		}
		a.Store = localfs.New(cfg.StorageDir)
	}

	a.Signal = a.Hub
	if cfg.AMQPURL != "" {
		b := signal.NewAMQPBridge(cfg.AMQPURL, cfg.AMQPExchange, a.Hub)
		if err := b.Connect(); err != nil {
			return nil, err
		}
		a.Bridge = b
		a.Signal = b
	}

	a.ProductUC = &usecase.ProductUC{Products: noroff.NewClient(cfg.CatalogBaseURL, cfg.CatalogTimeout)}
	a.CheckoutUC = usecase.NewCheckoutUC(cfg.DeliveryDays, cfg.CheckoutDelay)
	return a, nil
}

// NewView opens a cart view on a namespace of the shared store: it loads the
// persisted cart and starts following changes made by other views.
func (a *App) NewView(ctx context.Context, namespace string) (*usecase.CartStore, *usecase.OrderHistory, func()) {
	cart := usecase.NewCartStore(a.Store, a.Signal, namespace)
	cart.Load(ctx)
	stop := cart.Watch()
	return cart, usecase.NewOrderHistory(a.Store, namespace), stop
}

func (a *App) HTTPHandler() http.Handler {
	return httpserver.New(httpserver.Deps{
		Products:       a.ProductUC,
		Checkout:       a.CheckoutUC,
		Views:          a.NewView,
		AllowedOrigins: a.Cfg.AllowedOrigins,
		SecureCookies:  !a.Cfg.IsDev(),
		SessionTTL:     a.Cfg.SessionTTL,
	})
}

// RunSignals consumes remote storage events until ctx ends. Without a broker
// there is nothing to consume and it just waits.
func (a *App) RunSignals(ctx context.Context) error {
	if a.Bridge == nil {
		<-ctx.Done()
		return nil
	}
	return a.Bridge.Run(ctx)
}

func (a *App) Close() {
	if a.Bridge != nil {
		if err := a.Bridge.Close(); err != nil {
			zlog.Warn().Err(err).Msg("close amqp bridge")
		}
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
