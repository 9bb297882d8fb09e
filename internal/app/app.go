package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexedwards/scs/goredisstore"
	"github.com/alexedwards/scs/v2"
	"github.com/exaring/otelpgx"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"

	"github.com/seatwise/seat-reservation-system/internal/domain"
	"github.com/seatwise/seat-reservation-system/internal/ledger"
	"github.com/seatwise/seat-reservation-system/internal/repository"
	"github.com/seatwise/seat-reservation-system/internal/reservation"
	appvalidator "github.com/seatwise/seat-reservation-system/internal/validator"
	"github.com/seatwise/seat-reservation-system/internal/vcs"
)

var (
	version = vcs.Version()
)

type Application struct {
	config         Config
	logger         *slog.Logger
	db             *pgxpool.Pool
	redis          redis.UniversalClient
	validator      *validator.Validate
	sessionManager *scs.SessionManager

	registry    domain.SeatRegistry
	coordinator *reservation.Coordinator
	broadcaster *reservation.Broadcaster
	reaper      *reservation.Reaper
}

type Config struct {
	Port             int
	Env              string
	DB               DBConfig
	Redis            RedisConfig
	Hold             HoldConfig
	AMQPUrl          string
	OtelCollectorUrl string
}

type DBConfig struct {
	DSN          string
	MaxOpenConns int
	MaxIdleTime  time.Duration
}

type RedisConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
	MaxIdleTime  time.Duration
}

type HoldConfig struct {
	TTL           time.Duration
	ReapInterval  time.Duration
	MaxExtensions int
	LockStore     string
}

func Run() error {
	var cfg Config

	flag.IntVar(&cfg.Port, "port", 3000, "server port")
	flag.StringVar(&cfg.Env, "env", "dev", "Environment (dev|staging|prod)")

	flag.StringVar(&cfg.DB.DSN, "db-dsn", "", "PostgreSQL DSN")
	flag.IntVar(&cfg.DB.MaxOpenConns, "db-max-open-conns", 25, "PostgreSQL max open connections")
	flag.DurationVar(&cfg.DB.MaxIdleTime, "db-max-idle-time", 15*time.Minute, "PostgreSQL max idle time for connections")

	flag.StringVar(&cfg.Redis.URL, "redis-url", "", "Redis URL")
	flag.IntVar(&cfg.Redis.MaxOpenConns, "redis-max-open-conns", 25, "Redis max open connections")
	flag.IntVar(&cfg.Redis.MaxIdleConns, "redis-max-idle-conns", 10, "Redis max idle connections")
	flag.DurationVar(&cfg.Redis.MaxIdleTime, "redis-max-idle-time", 2*time.Minute, "Redis max idle time for connections")

	flag.DurationVar(&cfg.Hold.TTL, "hold-ttl", 10*time.Minute, "Seat hold TTL")
	flag.DurationVar(&cfg.Hold.ReapInterval, "hold-reap-interval", 2*time.Second, "Expired hold reap interval")
	flag.IntVar(&cfg.Hold.MaxExtensions, "hold-max-extensions", 0, "Max hold extensions per seat (0 = unlimited)")
	flag.StringVar(&cfg.Hold.LockStore, "lock-store", "redis", "Lock table backend (redis|memory)")

	flag.StringVar(&cfg.AMQPUrl, "amqp-url", "", "RabbitMQ URL for the booking ledger handoff (empty = log only)")
	flag.StringVar(&cfg.OtelCollectorUrl, "otel-collector-url", "", "OpenTelemetry collector URL")

	displayVersion := flag.Bool("version", false, "Display version and exit")

	flag.Parse()

	if *displayVersion {
		fmt.Printf("Version:\t%s\n", version)
		os.Exit(0)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	app, err := New(cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	shutdownTelemetry, err := app.InitTelemetry()
	if err != nil {
		return err
	}
	defer shutdownTelemetry(context.Background())

	return app.serve()
}

// New wires the application from config. The reaper is constructed here but
// only started by serve (or by the caller in tests).
func New(cfg Config, logger *slog.Logger) (*Application, error) {
	db, err := newDatabasePool(cfg)
	if err != nil {
		return nil, err
	}

	redisClient, err := newRedisClient(cfg)
	if err != nil {
		db.Close()
		return nil, err
	}

	registry := repository.NewPostgresSeatRegistry(db)

	var locks domain.LockTable
	switch cfg.Hold.LockStore {
	case "memory":
		locks = reservation.NewMemoryLockTable()
	default:
		locks = reservation.NewRedisLockTable(redisClient)
	}

	var bookingLedger domain.BookingLedger
	if cfg.AMQPUrl != "" {
		bookingLedger, err = ledger.NewAMQPBookingLedger(cfg.AMQPUrl)
		if err != nil {
			db.Close()
			redisClient.Close()
			return nil, err
		}
	} else {
		bookingLedger = ledger.NewLogBookingLedger(logger)
	}

	broadcaster := reservation.NewBroadcaster(logger)
	coordinator := reservation.NewCoordinator(
		registry, locks, broadcaster, bookingLedger, logger, cfg.Hold.TTL, cfg.Hold.MaxExtensions)
	reaper := reservation.NewReaper(locks, broadcaster, cfg.Hold.ReapInterval, logger)

	app := &Application{
		config:         cfg,
		logger:         logger,
		db:             db,
		redis:          redisClient,
		validator:      appvalidator.NewValidator(),
		sessionManager: newSessionManager(redisClient),
		registry:       registry,
		coordinator:    coordinator,
		broadcaster:    broadcaster,
		reaper:         reaper,
	}

	return app, nil
}

func (app *Application) Close() {
	if app.db != nil {
		app.db.Close()
	}
	if app.redis != nil {
		app.redis.Close()
	}
}

// StartReaper runs the expiry reaper until the context is cancelled.
func (app *Application) StartReaper(ctx context.Context) {
	go app.reaper.Run(ctx)
}

func newSessionManager(client *redis.Client) *scs.SessionManager {
	sessionManager := scs.New()

	sessionManager.Store = goredisstore.New(client)
	sessionManager.IdleTimeout = 20 * time.Minute
	sessionManager.Cookie.Name = "session_id"

	return sessionManager
}

func newRedisClient(cfg Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:            cfg.Redis.URL,
		MaxIdleConns:    cfg.Redis.MaxIdleConns,
		MaxActiveConns:  cfg.Redis.MaxOpenConns,
		ConnMaxIdleTime: cfg.Redis.MaxIdleTime,
	})

	if err := redisotel.InstrumentTracing(rdb); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	err := rdb.Ping(ctx).Err()
	if err != nil {
		return nil, err
	}

	return rdb, nil
}

func newDatabasePool(cfg Config) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(cfg.DB.DSN)
	if err != nil {
		return nil, err
	}

	config.MaxConnIdleTime = cfg.DB.MaxIdleTime
	config.MaxConns = int32(cfg.DB.MaxOpenConns)
	config.ConnConfig.Tracer = otelpgx.NewTracer()

	db, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	err = db.Ping(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func (app *Application) serve() error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("0.0.0.0:%d", app.config.Port),
		Handler:      app.Routes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 0, // SSE streams outlive any fixed write deadline
		ErrorLog:     slog.NewLogLogger(app.logger.Handler(), slog.LevelDebug),
	}

	reaperCtx, stopReaper := context.WithCancel(context.Background())
	defer stopReaper()
	app.StartReaper(reaperCtx)

	shutdownError := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		app.logger.Info("shutting down server", "signal", s.String())

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		stopReaper()

		err := srv.Shutdown(ctx)
		if err != nil {
			shutdownError <- err
		}

		shutdownError <- nil
	}()

	app.logger.Info("starting server", "addr", srv.Addr, "env", app.config.Env)

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdownError
	if err != nil {
		return err
	}

	app.logger.Info("stopped server", "addr", srv.Addr)

	return nil
}
