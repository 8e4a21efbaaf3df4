package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"stayflow/internal/app/commands"
	bookingapp "stayflow/internal/app/handlers/booking"
	checkoutapp "stayflow/internal/app/handlers/checkout"
	depositsapp "stayflow/internal/app/handlers/deposits"
	ledgerapp "stayflow/internal/app/handlers/ledgerops"
	"stayflow/internal/app/middleware"
	appoutbox "stayflow/internal/app/outbox"
	"stayflow/internal/app/policies"
	"stayflow/internal/app/queries"
	"stayflow/internal/app/uow"
	domainledger "stayflow/internal/domain/ledger"
	"stayflow/internal/infra/broker/kafka"
	"stayflow/internal/infra/config"
	mongodb "stayflow/internal/infra/db/mongo"
	"stayflow/internal/infra/db/postgres"
	ginserver "stayflow/internal/infra/http/gin"
	"stayflow/internal/infra/inbox"
	"stayflow/internal/infra/notify"
	"stayflow/internal/infra/obs"
	infraoutbox "stayflow/internal/infra/outbox"
	"stayflow/internal/infra/payments/paypal"
	"stayflow/internal/infra/payments/stripe"
	"stayflow/internal/infra/schedule"
	"stayflow/internal/infra/storage/bolt"
	"stayflow/internal/infra/storage/memory"
	"stayflow/internal/infra/storage/s3"
	"stayflow/internal/infra/verification"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	logger := obs.NewLogger(cfg.Env)
	if err != nil {
		logger.Error("configuration invalid", "error", err)
		os.Exit(1)
	}

	app, err := buildApplication(ctx, cfg, logger)
	if err != nil {
		logger.Error("application wiring failed", "error", err)
		os.Exit(1)
	}
	defer app.close(logger)

	registry := prometheus.NewRegistry()
	app.metrics = obs.NewMetrics(registry)

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{
		Ready: app.ready,
	}, registry, app.httpHandlers(cfg, logger))

	app.startBackground(ctx, cfg, logger)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "env", cfg.Env)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("HTTP server stopped")
}

type application struct {
	commandBus commands.Bus
	queryBus   queries.Bus
	inboxStore inbox.Store
	outbox     appoutbox.Outbox
	scheduler  *schedule.TimerScheduler
	metrics    *obs.Metrics

	outboxWorker *infraoutbox.Worker
	producer     *kafka.Producer
	boltStore    *bolt.IdempotencyStore
	ledgerStore  *postgres.LedgerStore
	readyCheck   func() error
}

func buildApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (*application, error) {
	app := &application{
		scheduler:  schedule.NewTimerScheduler(logger),
		readyCheck: func() error { return nil },
	}

	// Persistence. Mongo holds transactions and the outbox; Postgres holds
	// the settlement ledger. Without a Mongo URI everything falls back to
	// in-memory stores for local runs.
	var (
		uowFactory uow.UoWFactory
		box        appoutbox.Outbox
	)

	if cfg.MongoURI != "" {
		client, err := mongodb.New(cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, fmt.Errorf("mongo: %w", err)
		}

		var ledgerRepo domainledger.Recorder
		if cfg.PostgresDSN != "" {
			store, err := postgres.NewLedgerStore(ctx, cfg.PostgresDSN)
			if err != nil {
				return nil, fmt.Errorf("ledger store: %w", err)
			}
			app.ledgerStore = store
			ledgerRepo = store
		} else {
			logger.Warn("POSTGRES_DSN not set, using in-memory ledger")
			ledgerRepo = memory.NewLedgerRecorder()
		}

		uowFactory = mongodb.Factory{
			DB:              client.DB,
			TransactionRepo: mongodb.NewTransactionRepository(client.DB),
			LedgerRepo:      ledgerRepo,
		}
		outboxStore := infraoutbox.NewStore(client.DB)
		box = outboxStore
		app.inboxStore = mongodb.NewInboxStore(client.DB)
		app.readyCheck = func() error { return client.Ping(context.Background()) }

		if len(cfg.KafkaBrokers) > 0 {
			producer, err := kafka.NewProducer(cfg.KafkaBrokers, nil)
			if err != nil {
				return nil, fmt.Errorf("kafka producer: %w", err)
			}
			app.producer = producer
			app.outboxWorker = &infraoutbox.Worker{
				Store:       outboxStore,
				Producer:    producer,
				Interval:    cfg.OutboxPollInterval,
				TopicPrefix: cfg.KafkaTopicPrefix,
			}
		} else {
			logger.Warn("KAFKA_BROKERS not set, outbox records stay unpublished")
		}
	} else {
		logger.Warn("MONGO_URI not set, using in-memory storage")
		uowFactory = memory.NewUoWFactory()
		box = memory.NewOutbox()
		app.inboxStore = inbox.NewMemoryStore()
	}
	app.outbox = box

	// Idempotency results survive restarts when a bolt path is configured.
	var idStore middleware.IdempotencyStore
	if cfg.BoltPath != "" {
		store, err := bolt.NewIdempotencyStore(cfg.BoltPath, cfg.IdempotencyTTL)
		if err != nil {
			return nil, fmt.Errorf("bolt idempotency store: %w", err)
		}
		app.boltStore = store
		idStore = store
	} else {
		idStore = memory.NewIdempotencyStore()
	}

	// Payment rails and the verification gate.
	card := stripe.NewClient(cfg.StripeBaseURL, cfg.StripeAPIKey, logger)
	payPal := paypal.NewClient(ctx, cfg.PayPalBaseURL, cfg.PayPalClientID, cfg.PayPalClientSecret, logger)
	gate := verification.NewGate(cfg.VerifyURL, cfg.VerifySecret, logger)
	var checkoutGate policies.VerificationGate
	if cfg.VerifyURL != "" {
		checkoutGate = gate
	}

	evidence, err := s3.NewEvidenceStore(cfg.S3Endpoint, cfg.S3UseSSL, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, logger)
	if err != nil {
		return nil, fmt.Errorf("evidence store: %w", err)
	}

	notifier := notify.Dispatcher{Publisher: publisherOrNil(app.producer), Logger: logger}
	encoder := appoutbox.JSONEventEncoder{}
	verify := bookingapp.TokenRetryPolicy{Gate: gate, Logger: logger}

	// Command handlers.
	commandBus := commands.NewInMemoryBus()
	commands.RegisterHandler(commandBus, checkoutapp.RequestPaymentCommand{}.Key(), &checkoutapp.RequestPaymentHandler{
		UoWFactory:    uowFactory,
		Card:          card,
		PayPal:        payPal,
		Gate:          checkoutGate,
		Outbox:        box,
		Encoder:       encoder,
		Logger:        logger,
		PayPalFloor:   cfg.PayPalFloorMinor,
		PaymentWindow: cfg.PaymentWindow,
	})
	commands.RegisterHandler(commandBus, bookingapp.AcceptCommand{}.Key(), &bookingapp.AcceptHandler{
		UoWFactory: uowFactory,
		Card:       card,
		PayPal:     payPal,
		Verify:     verify,
		Notifier:   notifier,
		Outbox:     box,
		Encoder:    encoder,
		Logger:     logger,
	})
	commands.RegisterHandler(commandBus, bookingapp.DeclineCommand{}.Key(), &bookingapp.DeclineHandler{
		UoWFactory: uowFactory,
		PayPal:     payPal,
		Notifier:   notifier,
		Outbox:     box,
		Encoder:    encoder,
		Scheduler:  app.scheduler,
		Logger:     logger,
	})
	commands.RegisterHandler(commandBus, bookingapp.CancelCommand{}.Key(), &bookingapp.CancelHandler{
		UoWFactory: uowFactory,
		Notifier:   notifier,
		Outbox:     box,
		Encoder:    encoder,
		Logger:     logger,
	})
	commands.RegisterHandler(commandBus, bookingapp.CompleteCommand{}.Key(), &bookingapp.CompleteHandler{
		UoWFactory: uowFactory,
		Notifier:   notifier,
		Outbox:     box,
		Encoder:    encoder,
		Logger:     logger,
	})
	commands.RegisterHandler(commandBus, bookingapp.ExpireSweepCommand{}.Key(), &bookingapp.ExpireSweepHandler{
		UoWFactory: uowFactory,
		Outbox:     box,
		Encoder:    encoder,
		Logger:     logger,
	})
	commands.RegisterHandler(commandBus, depositsapp.RefundCommand{}.Key(), &depositsapp.RefundHandler{
		UoWFactory: uowFactory,
		Card:       card,
		Scheduler:  app.scheduler,
		Outbox:     box,
		Encoder:    encoder,
		Logger:     logger,
	})
	commands.RegisterHandler(commandBus, depositsapp.RequestClaimCommand{}.Key(), &depositsapp.RequestClaimHandler{
		UoWFactory: uowFactory,
		Evidence:   evidence,
		Outbox:     box,
		Encoder:    encoder,
		Logger:     logger,
	})
	commands.RegisterHandler(commandBus, depositsapp.ResolveClaimCommand{}.Key(), &depositsapp.ResolveClaimHandler{
		UoWFactory: uowFactory,
		Outbox:     box,
		Encoder:    encoder,
		Logger:     logger,
	})
	commands.RegisterHandler(commandBus, ledgerapp.RepairPayoutCommand{}.Key(), &ledgerapp.RepairPayoutHandler{
		UoWFactory: uowFactory,
		Logger:     logger,
	})

	queryBus := queries.NewInMemoryBus()
	queries.RegisterHandler(queryBus, bookingapp.GetTransactionQuery{}.Key(), &bookingapp.GetTransactionHandler{
		UoWFactory: uowFactory,
	})
	queries.RegisterHandler(queryBus, checkoutapp.ListSavedInstrumentsQuery{}.Key(), &checkoutapp.ListSavedInstrumentsHandler{
		Card: card,
	})
	queries.RegisterHandler(queryBus, ledgerapp.ListEntriesQuery{}.Key(), &ledgerapp.ListEntriesHandler{
		UoWFactory: uowFactory,
	})

	app.commandBus = middleware.ChainCommands(
		commandBus,
		app.metricsMiddleware(),
		middleware.Serialize(),
		middleware.Idempotency(idStore, nil),
		middleware.Transaction(uowFactory, railTxOptions),
		middleware.OutboxFlush(box),
	)
	app.queryBus = middleware.ChainQueries(queryBus)

	// Delayed retries re-enter through the command bus so they pick up the
	// full middleware chain.
	app.scheduler.Register("deposit.refund_retry", func(ctx context.Context, payload any) error {
		params, ok := payload.(map[string]string)
		if !ok {
			return fmt.Errorf("refund retry: unexpected payload %T", payload)
		}
		_, err := app.commandBus.Dispatch(ctx, depositsapp.RefundCommand{
			TxID:        params["transaction_id"],
			RequestedBy: "scheduler",
		})
		return err
	})
	app.scheduler.Register("paypal.void_retry", func(ctx context.Context, payload any) error {
		params, ok := payload.(map[string]string)
		if !ok {
			return fmt.Errorf("void retry: unexpected payload %T", payload)
		}
		_, err := payPal.Void(ctx, params["authorization_ref"])
		return err
	})

	return app, nil
}

func (a *application) httpHandlers(cfg config.Config, logger *slog.Logger) ginserver.Handlers {
	return ginserver.Handlers{
		Checkout: ginserver.CheckoutHandler{
			Commands:                 a.commandBus,
			Queries:                  a.queryBus,
			DefaultDepositPercentage: cfg.DepositPercentage,
		},
		Transaction: ginserver.TransactionHandler{
			Commands: a.commandBus,
			Queries:  a.queryBus,
		},
		Ledger: ginserver.LedgerHandler{
			Commands: a.commandBus,
			Queries:  a.queryBus,
		},
		Webhook: ginserver.WebhookHandler{
			SigningSecret: []byte(cfg.StripeWebhookSecret),
			Inbox:         a.inboxStore,
			Outbox:        a.outbox,
			Logger:        logger,
		},
		AuthMiddleware: ginserver.AuthMiddleware{
			Secret: []byte(cfg.JWTSecret),
			Logger: logger,
		}.Handle,
	}
}

func (a *application) startBackground(ctx context.Context, cfg config.Config, logger *slog.Logger) {
	if a.outboxWorker != nil {
		go func() {
			if err := a.outboxWorker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("outbox worker stopped", "error", err)
			}
		}()
	}

	// Periodic sweep moves transactions past their payment deadline to
	// PAYMENT_EXPIRED.
	go func() {
		ticker := time.NewTicker(cfg.ExpirySweepEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := a.commandBus.Dispatch(ctx, bookingapp.ExpireSweepCommand{}); err != nil {
					logger.Error("expiry sweep failed", "error", err)
				}
			}
		}
	}()
}

func (a *application) ready() error {
	return a.readyCheck()
}

func (a *application) close(logger *slog.Logger) {
	a.scheduler.Close()
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			logger.Error("kafka producer close failed", "error", err)
		}
	}
	if a.boltStore != nil {
		if err := a.boltStore.Close(); err != nil {
			logger.Error("bolt store close failed", "error", err)
		}
	}
	if a.ledgerStore != nil {
		a.ledgerStore.Close()
	}
}

type busFunc func(ctx context.Context, cmd commands.Command) (any, error)

func (f busFunc) Dispatch(ctx context.Context, cmd commands.Command) (any, error) {
	return f(ctx, cmd)
}

// metricsMiddleware counts every dispatched command by outcome.
func (a *application) metricsMiddleware() middleware.CommandMiddleware {
	return func(next commands.Bus) commands.Bus {
		return busFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			result, err := next.Dispatch(ctx, cmd)
			outcome := "ok"
			if err != nil {
				outcome = "error"
			}
			a.metrics.CountTransition(cmd.Key(), outcome)
			return result, err
		})
	}
}

// railTxOptions exempts commands whose handlers call out to payment rails.
// Those handlers open short units around each phase themselves, keeping the
// provider round trip outside any open database transaction.
func railTxOptions(cmd commands.Command) uow.TxOptions {
	switch cmd.Key() {
	case checkoutapp.RequestPaymentCommand{}.Key(),
		bookingapp.AcceptCommand{}.Key(),
		bookingapp.DeclineCommand{}.Key(),
		depositsapp.RefundCommand{}.Key():
		return uow.TxOptions{HandlerManaged: true}
	}
	return uow.TxOptions{}
}

func publisherOrNil(p *kafka.Producer) notify.Publisher {
	if p == nil {
		return nil
	}
	return p
}
