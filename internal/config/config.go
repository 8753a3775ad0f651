package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	SettlementTransactional = "transactional"
	SettlementSaga          = "saga"
)

type Config struct {
	RunAddress    string `env:"RUN_ADDRESS"`
	DatabaseDSN   string `env:"DATABASE_URI"`
	MigrationsDir string `env:"MIGRATIONS_DIR"`
	JWTSecret     string `env:"JWT_SECRET"`
	// RedisAddr пустой: окно дедупликации хранится в Postgres.
	RedisAddr string `env:"REDIS_ADDR"`
	// NATSURL пустой: события не публикуются.
	NATSURL       string `env:"NATS_URL"`
	PaymentSecret string `env:"PAYMENT_CALLBACK_SECRET"`
	LogLevel      string `env:"LOG_LEVEL"`

	SettlementMode   string        `env:"SETTLEMENT_MODE"`
	DedupWindow      time.Duration `env:"PURCHASE_DEDUP_WINDOW"`
	EscrowPeriod     time.Duration `env:"ESCROW_PERIOD"`
	PendingOrderTTL  time.Duration `env:"PENDING_ORDER_TTL"`
	DBLockTimeout    time.Duration `env:"DB_LOCK_TIMEOUT"`
	LifecycleWorkers uint          `env:"LIFECYCLE_WORKERS"`
}

func LoadConfig() (*Config, error) {
	// .env удобен локально, в проде переменные задаются окружением.
	_ = godotenv.Load()
	return loadConfig(os.Args[1:])
}

func MustLoadConfig() *Config {
	config, err := LoadConfig()
	if err != nil {
		panic(err)
	}
	return config
}

func loadConfig(args []string) (*Config, error) {
	var flagsConfig, envConfig Config

	if envParseErr := env.Parse(&envConfig); envParseErr != nil {
		return nil, fmt.Errorf("parse env config: %s", envParseErr.Error())
	}

	if flagsErr := loadFlags(&flagsConfig, args); flagsErr != nil {
		return nil, fmt.Errorf("parse flags: %s", flagsErr.Error())
	}

	conf := mergeConfig(&envConfig, &flagsConfig)
	if err := conf.validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

func loadFlags(flagConfig *Config, args []string) error {
	fs := flag.NewFlagSet("market", flag.ContinueOnError)

	fs.StringVar(&flagConfig.RunAddress, "a", "localhost:8080", "Run address in format host:port")
	fs.StringVar(&flagConfig.DatabaseDSN, "d", "", "Database DSN")
	fs.StringVar(&flagConfig.MigrationsDir, "m", "internal/db/migrations", "Database migrations directory")
	fs.StringVar(&flagConfig.JWTSecret, "j", "", "JWT secret key")
	fs.StringVar(&flagConfig.RedisAddr, "r", "", "Redis address for purchase dedup window")
	fs.StringVar(&flagConfig.NATSURL, "n", "", "NATS url for domain events")
	fs.StringVar(&flagConfig.SettlementMode, "settlement", SettlementTransactional, "Settlement mode: transactional|saga")
	fs.DurationVar(&flagConfig.DedupWindow, "dedup-window", 10*time.Second, "Purchase dedup window")  //nolint:mnd
	fs.DurationVar(&flagConfig.EscrowPeriod, "escrow", 72*time.Hour, "Escrow period of delivered orders") //nolint:mnd
	fs.DurationVar(&flagConfig.PendingOrderTTL, "pending-ttl", 30*time.Minute, "Pending order ttl")     //nolint:mnd
	fs.DurationVar(&flagConfig.DBLockTimeout, "lock-timeout", 2*time.Second, "Postgres lock_timeout")     //nolint:mnd
	fs.UintVar(&flagConfig.LifecycleWorkers, "workers", 5, "Lifecycle workers")                            //nolint:mnd

	return fs.Parse(args) //nolint:wrapcheck
}

func mergeConfig(envConfig, flagsConfig *Config) *Config {
	return &Config{
		RunAddress:    defaultIfBlank(envConfig.RunAddress, flagsConfig.RunAddress),
		DatabaseDSN:   defaultIfBlank(envConfig.DatabaseDSN, flagsConfig.DatabaseDSN),
		MigrationsDir: defaultIfBlank(envConfig.MigrationsDir, flagsConfig.MigrationsDir),
		JWTSecret:     defaultIfBlank(envConfig.JWTSecret, flagsConfig.JWTSecret),
		RedisAddr:     defaultIfBlank(envConfig.RedisAddr, flagsConfig.RedisAddr),
		NATSURL:       defaultIfBlank(envConfig.NATSURL, flagsConfig.NATSURL),
		PaymentSecret: envConfig.PaymentSecret,
		LogLevel:      envConfig.LogLevel,

		SettlementMode:   defaultIfBlank(envConfig.SettlementMode, flagsConfig.SettlementMode),
		DedupWindow:      defaultIfZero(envConfig.DedupWindow, flagsConfig.DedupWindow),
		EscrowPeriod:     defaultIfZero(envConfig.EscrowPeriod, flagsConfig.EscrowPeriod),
		PendingOrderTTL:  defaultIfZero(envConfig.PendingOrderTTL, flagsConfig.PendingOrderTTL),
		DBLockTimeout:    defaultIfZero(envConfig.DBLockTimeout, flagsConfig.DBLockTimeout),
		LifecycleWorkers: defaultIfZero(envConfig.LifecycleWorkers, flagsConfig.LifecycleWorkers),
	}
}

func (c *Config) validate() error {
	if c.DatabaseDSN == "" {
		return errors.New("database DSN is not set")
	}
	if c.JWTSecret == "" {
		return errors.New("jwt secret is not set")
	}
	if c.SettlementMode != SettlementTransactional && c.SettlementMode != SettlementSaga {
		return fmt.Errorf("unknown settlement mode `%s`", c.SettlementMode)
	}
	if c.DedupWindow < 0 || c.EscrowPeriod <= 0 || c.PendingOrderTTL <= 0 || c.DBLockTimeout < 0 {
		return errors.New("durations must be positive")
	}
	return nil
}

func defaultIfBlank(value string, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}

func defaultIfZero[T comparable](value, defaultValue T) T {
	var zero T
	if value == zero {
		return defaultValue
	}
	return value
}
