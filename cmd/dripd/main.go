package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/drip/internal/api"
	"github.com/dmitrymomot/drip/internal/config"
	"github.com/dmitrymomot/drip/internal/trigger"
	"github.com/dmitrymomot/drip/pkg/channels"
	"github.com/dmitrymomot/drip/pkg/conversion"
	"github.com/dmitrymomot/drip/pkg/email"
	"github.com/dmitrymomot/drip/pkg/httpserver"
	"github.com/dmitrymomot/drip/pkg/logger"
	"github.com/dmitrymomot/drip/pkg/pg"
	"github.com/dmitrymomot/drip/pkg/redis"
	"github.com/dmitrymomot/drip/pkg/reminder"
	"github.com/dmitrymomot/drip/pkg/reminder/pgstore"
	"github.com/dmitrymomot/drip/pkg/reminder/sqlitestore"
	"github.com/dmitrymomot/drip/pkg/sms"
)

func main() {
	envFile := flag.String("env", "", "optional dotenv file loaded before the environment is parsed")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *envFile); err != nil {
		fmt.Fprintf(os.Stderr, "dripd: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, envFile string) error {
	var envFiles []string
	if envFile != "" {
		envFiles = append(envFiles, envFile)
	}
	cfg, err := config.Load(envFiles...)
	if err != nil {
		return err
	}

	log := logger.New(
		logger.WithEnvironment(cfg.App.Env, cfg.App.ServiceName),
		logger.WithLevelName(cfg.App.LogLevel),
		logger.WithContextExtractors(reminder.BatchIDExtractor),
	)
	logger.SetAsDefault(log)

	deps, err := openDependencies(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer deps.close(log)

	engine, err := buildEngine(cfg, deps, log)
	if err != nil {
		return err
	}

	router := api.Router(api.RouterOptions{
		Scheduler:   engine.scheduler,
		Canceller:   engine.canceller,
		Runner:      engine.processor,
		History:     deps.history,
		Conversions: deps.registry,
		Token:       cfg.Drip.TriggerToken,
		Logger:      log,
		ReadyChecks: deps.checks,
	})

	g, ctx := errgroup.WithContext(ctx)

	srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))
	g.Go(func() error { return srv.Run(ctx, router) })

	if cfg.Drip.TriggerSchedule != "" {
		tr, err := trigger.New(engine.processor, cfg.Drip.TriggerSchedule, trigger.WithLogger(log))
		if err != nil {
			return err
		}
		g.Go(func() error { return tr.Run(ctx) })
	} else {
		log.InfoContext(ctx, "in-process trigger disabled, waiting for POST /v1/reminders/run")
	}

	log.InfoContext(ctx, "dripd started",
		slog.String("store", cfg.Store.Driver),
		slog.String("delay_profile", engine.scheduler.DelayPolicy().Name))

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("dripd stopped")
	return nil
}

// dependencies are the external resources dripd talks to.
type dependencies struct {
	store    reminder.Store
	history  api.History
	oracle   reminder.ConversionOracle
	registry api.ConversionRecorder
	checks   []httpserver.Check
	closers  []io.Closer
}

func (d *dependencies) close(log *slog.Logger) {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i].Close(); err != nil {
			log.Error("failed to close dependency", logger.Error(err))
		}
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func openDependencies(ctx context.Context, cfg config.Config, log *slog.Logger) (*dependencies, error) {
	deps := &dependencies{}
	var oracles []reminder.ConversionOracle

	switch cfg.Store.Driver {
	case config.DriverPostgres:
		pool, err := pg.Connect(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		deps.closers = append(deps.closers, closerFunc(func() error { pool.Close(); return nil }))

		if err := pg.Migrate(ctx, pool, pgstore.Migrations, pgstore.MigrationsDir, cfg.Postgres, log); err != nil {
			deps.close(log)
			return nil, err
		}
		store, err := pgstore.New(pool)
		if err != nil {
			deps.close(log)
			return nil, err
		}
		deps.store, deps.history = store, store
		deps.checks = append(deps.checks, httpserver.Check{Name: "postgres", Ping: pg.Healthcheck(pool)})

		if cfg.Drip.AppointmentsQuery != "" {
			oracles = append(oracles, pgstore.NewAppointmentOracle(pool, cfg.Drip.AppointmentsQuery))
		}

	case config.DriverSQLite:
		store, err := sqlitestore.Open(ctx, cfg.Store.SQLitePath, log)
		if err != nil {
			return nil, err
		}
		deps.closers = append(deps.closers, store)
		deps.store, deps.history = store, store
		deps.checks = append(deps.checks, httpserver.Check{Name: "sqlite", Ping: store.DB().PingContext})

	default:
		store := reminder.NewMemoryStorage()
		deps.store, deps.history = store, store
		log.WarnContext(ctx, "using in-memory reminder store, tasks are lost on restart")
	}

	if cfg.Redis.ConnectionURL != "" {
		client, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			deps.close(log)
			return nil, err
		}
		deps.closers = append(deps.closers, client)

		registry, err := conversion.NewRedisRegistry(client, cfg.Redis.ConversionKey)
		if err != nil {
			deps.close(log)
			return nil, err
		}
		deps.registry = registry
		oracles = append(oracles, registry)
		deps.checks = append(deps.checks, httpserver.Check{Name: "redis", Ping: redis.Healthcheck(client)})
	}

	switch len(oracles) {
	case 0:
		deps.oracle = reminder.NeverConverted
		log.WarnContext(ctx, "no conversion oracle configured, only POST /v1/conversions halts chains")
	case 1:
		deps.oracle = oracles[0]
	default:
		deps.oracle = conversion.Any(oracles...)
	}

	return deps, nil
}

type engine struct {
	scheduler *reminder.Scheduler
	canceller *reminder.Canceller
	processor *reminder.Processor
}

func buildEngine(cfg config.Config, deps *dependencies, log *slog.Logger) (*engine, error) {
	delays, err := cfg.Drip.DelayPolicy()
	if err != nil {
		return nil, err
	}

	scheduler, err := reminder.NewScheduler(deps.store,
		reminder.WithDelayPolicy(delays),
		reminder.WithSchedulerLogger(log))
	if err != nil {
		return nil, err
	}
	canceller, err := reminder.NewCanceller(deps.store, reminder.WithCancellerLogger(log))
	if err != nil {
		return nil, err
	}

	senders, err := buildSenders(cfg, log)
	if err != nil {
		return nil, err
	}

	procOpts := []reminder.ProcessorOption{
		reminder.WithBatchLimit(cfg.Drip.BatchLimit),
		reminder.WithRetryPolicy(cfg.Drip.RetryPolicy()),
		reminder.WithProcessorLogger(log),
	}
	if cfg.Drip.SendTimeout > 0 {
		procOpts = append(procOpts, reminder.WithSendTimeout(cfg.Drip.SendTimeout))
	}
	if cfg.Drip.StaleClaimTimeout > 0 {
		procOpts = append(procOpts, reminder.WithStaleClaimTimeout(cfg.Drip.StaleClaimTimeout))
	}

	processor, err := reminder.NewProcessor(deps.store, scheduler, deps.oracle, senders, procOpts...)
	if err != nil {
		return nil, err
	}

	return &engine{scheduler: scheduler, canceller: canceller, processor: processor}, nil
}

func buildSenders(cfg config.Config, log *slog.Logger) (map[reminder.Channel]reminder.ChannelSender, error) {
	var mailer email.EmailSender
	if cfg.Email.DevDir != "" {
		mailer = email.NewDevSender(cfg.Email.DevDir)
		log.Info("emails are written to disk", slog.String("dir", cfg.Email.DevDir))
	} else {
		pm, err := email.NewPostmarkClient(cfg.Email)
		if err != nil {
			return nil, err
		}
		mailer = pm
	}

	emailChannel, err := channels.NewEmailChannel(mailer)
	if err != nil {
		return nil, err
	}
	senders := map[reminder.Channel]reminder.ChannelSender{
		reminder.ChannelEmail: emailChannel,
	}

	if cfg.SMS.Enabled() {
		client, err := sms.NewClient(cfg.SMS)
		if err != nil {
			return nil, err
		}
		smsChannel, err := channels.NewSMSChannel(client)
		if err != nil {
			return nil, err
		}
		senders[reminder.ChannelSMS] = smsChannel
	}

	return senders, nil
}
