package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsdevblog/digimarket/internal/config"
	"github.com/fsdevblog/digimarket/internal/repository/pgrepo"
	"github.com/fsdevblog/digimarket/internal/repository/redisrepo"
	"github.com/fsdevblog/digimarket/internal/repository/repoargs"
	"github.com/fsdevblog/digimarket/internal/service"
	"github.com/fsdevblog/digimarket/internal/transport/api"
	"github.com/fsdevblog/digimarket/internal/transport/events"
	"github.com/fsdevblog/digimarket/internal/transport/lifecycle"
	"github.com/fsdevblog/digimarket/pkg/uow"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	// driver for migration applying postgres.
	_ "github.com/golang-migrate/migrate/v4/database/postgres" //nolint:revive
	// driver to get migrations from files (*.sql in our case).
	_ "github.com/golang-migrate/migrate/v4/source/file" //nolint:revive
)

const (
	shutdownTimeout          = 10 * time.Second
	readHeaderTimeout        = 5 * time.Second
	lifecycleLimitPerRun uint = 50
)

type App struct {
	Config *config.Config
	Logger *logrus.Logger
}

func New(conf *config.Config, l *logrus.Logger) *App {
	return &App{
		Config: conf,
		Logger: l,
	}
}

func (a *App) Run() error {
	notifyCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.Logger.WithFields(logrus.Fields{
		"address":        a.Config.RunAddress,
		"settlementMode": a.Config.SettlementMode,
		"redis":          a.Config.RedisAddr != "",
		"nats":           a.Config.NATSURL != "",
	}).Info("Starting app")

	conn, connErr := pgrepo.Connect(notifyCtx, pgrepo.ConnectArgs{
		DSN:           a.Config.DatabaseDSN,
		MigrationsDir: a.Config.MigrationsDir,
		LockTimeout:   a.Config.DBLockTimeout,
	}, a.Logger)
	if connErr != nil {
		return fmt.Errorf("app run: %w", connErr)
	}
	defer conn.Close()

	unitOfWork, uowErr := initUOW(conn)
	if uowErr != nil {
		return fmt.Errorf("app run: %s", uowErr.Error())
	}

	dedup, closeDedup, dedupErr := a.initDedup(notifyCtx, conn)
	if dedupErr != nil {
		return fmt.Errorf("app run: %w", dedupErr)
	}
	defer closeDedup()

	publisher, closePublisher, pubErr := a.initEvents()
	if pubErr != nil {
		return fmt.Errorf("app run: %w", pubErr)
	}
	defer closePublisher()

	services, sErr := service.Factory(unitOfWork, dedup, publisher, service.FactoryConfig{
		SettlementMode:  service.SettlementMode(a.Config.SettlementMode),
		DedupWindow:     a.Config.DedupWindow,
		EscrowPeriod:    a.Config.EscrowPeriod,
		PendingOrderTTL: a.Config.PendingOrderTTL,
		PaymentSecret:   []byte(a.Config.PaymentSecret),
	}, a.Logger)
	if sErr != nil {
		return fmt.Errorf("app run: %s", sErr.Error())
	}

	router, rErr := api.New(api.RouterArgs{
		Logger:                a.Logger,
		SettlementService:     services.Settlement,
		VoucherService:        services.Voucher,
		LedgerService:         services.Ledger,
		OrderService:          services.Order,
		WithdrawalService:     services.Withdrawal,
		PaymentService:        services.Payment,
		SettingsService:       services.Settings,
		ReconciliationService: services.Reconciliation,
		JWTSecretKey:          []byte(a.Config.JWTSecret),
	})
	if rErr != nil {
		return fmt.Errorf("app run: %w", rErr)
	}

	srv := &http.Server{
		Addr:              a.Config.RunAddress,
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	processor := lifecycle.New(services.Order, a.Logger).
		SetWorkers(a.Config.LifecycleWorkers).
		SetLimitPerIteration(lifecycleLimitPerRun)

	g, gCtx := errgroup.WithContext(notifyCtx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		processor.Run(gCtx)
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err //nolint:wrapcheck
	}
	// сервер закрылся только по сигналу
	return notifyCtx.Err() //nolint:wrapcheck
}

// initDedup выбирает хранилище окна дедупликации: Redis, если задан адрес, иначе таблица в Postgres.
func (a *App) initDedup(ctx context.Context, conn *pgxpool.Pool) (service.DedupStore, func(), error) {
	if a.Config.RedisAddr == "" {
		return pgrepo.NewPurchaseDedupRepository(conn), func() {}, nil
	}

	rdb := redis.NewClient(&redis.Options{Addr: a.Config.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	return redisrepo.NewPurchaseDedup(rdb), func() {
		if err := rdb.Close(); err != nil {
			a.Logger.WithError(err).Error("close redis")
		}
	}, nil
}

func (a *App) initEvents() (service.EventPublisher, func(), error) {
	if a.Config.NATSURL == "" {
		return events.NewNoop(a.Logger), func() {}, nil
	}
	nc, err := events.Connect(a.Config.NATSURL, a.Logger)
	if err != nil {
		return nil, nil, err //nolint:wrapcheck
	}
	return events.NewPublisher(nc, a.Logger), func() {
		if dErr := nc.Drain(); dErr != nil {
			a.Logger.WithError(dErr).Error("drain nats")
		}
	}, nil
}

func initUOW(conn *pgxpool.Pool) (*uow.UnitOfWork, error) {
	unitOfWork := uow.NewUnitOfWork(conn)

	factories := map[repoargs.RepositoryName]uow.RepositoryFactory{
		repoargs.AccountRepoName: func(dbtx uow.DBTX) uow.Repository {
			return pgrepo.NewAccountRepository(dbtx)
		},
		repoargs.LedgerEntryRepoName: func(dbtx uow.DBTX) uow.Repository {
			return pgrepo.NewLedgerEntryRepository(dbtx)
		},
		repoargs.VoucherRepoName: func(dbtx uow.DBTX) uow.Repository {
			return pgrepo.NewVoucherRepository(dbtx)
		},
		repoargs.ListingRepoName: func(dbtx uow.DBTX) uow.Repository {
			return pgrepo.NewListingRepository(dbtx)
		},
		repoargs.OrderRepoName: func(dbtx uow.DBTX) uow.Repository {
			return pgrepo.NewOrderRepository(dbtx)
		},
		repoargs.WithdrawalRepoName: func(dbtx uow.DBTX) uow.Repository {
			return pgrepo.NewWithdrawalRepository(dbtx)
		},
		repoargs.SettingsRepoName: func(dbtx uow.DBTX) uow.Repository {
			return pgrepo.NewSettingsRepository(dbtx)
		},
		repoargs.ReconciliationRepoName: func(dbtx uow.DBTX) uow.Repository {
			return pgrepo.NewReconciliationRepository(dbtx)
		},
	}
	for name, factory := range factories {
		if regErr := unitOfWork.Register(uow.RepositoryName(name), factory); regErr != nil {
			return nil, fmt.Errorf("init UOW: %s", regErr.Error())
		}
	}

	return unitOfWork, nil
}
