// Package app assembles the verichain process from configuration: stores,
// ledger and asset adapters, services, HTTP routes and background workers.
//
// Every external dependency is optional. Without DATABASE_URL, REDIS_URL,
// KAFKA_BROKERS, S3_BUCKET or LEDGER_RPC_URL the matching in-memory adapter
// is used, which is how local runs and the end-to-end suite work.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"verichain/internal/credential/assets"
	credhandler "verichain/internal/credential/handler"
	"verichain/internal/credential/ledger"
	"verichain/internal/credential/lock"
	credmetrics "verichain/internal/credential/metrics"
	"verichain/internal/credential/reconcile"
	credservice "verichain/internal/credential/service"
	credstore "verichain/internal/credential/store/credential"
	"verichain/internal/credential/store/journal"
	"verichain/internal/credential/verifier"
	insthandler "verichain/internal/institution/handler"
	instservice "verichain/internal/institution/service"
	inststore "verichain/internal/institution/store"
	jwttoken "verichain/internal/jwt_token"
	"verichain/internal/lockout"
	"verichain/internal/platform/config"
	"verichain/internal/platform/database"
	"verichain/internal/platform/health"
	"verichain/internal/platform/kafka/producer"
	"verichain/internal/platform/metrics"
	redisclient "verichain/internal/platform/redis"
	phandler "verichain/internal/principal/handler"
	pservice "verichain/internal/principal/service"
	pstore "verichain/internal/principal/store"
	"verichain/internal/seeder"
	httptransport "verichain/internal/transport/http"
	"verichain/migrations"
	id "verichain/pkg/domain"
	"verichain/pkg/platform/circuit"
	"verichain/pkg/platform/outbox"
	outboxmetrics "verichain/pkg/platform/outbox/metrics"
	outboxmemory "verichain/pkg/platform/outbox/store/memory"
	outboxpostgres "verichain/pkg/platform/outbox/store/postgres"
	"verichain/pkg/platform/outbox/worker"
	"verichain/pkg/platform/tracer"
	"verichain/pkg/platform/tx"
	"verichain/pkg/secrets"
)

const poolStatsInterval = 15 * time.Second

type App struct {
	cfg    config.Config
	logger *slog.Logger

	handler   http.Handler
	outbox    *worker.Worker
	reconcile *reconcile.Worker

	pool     *database.Pool
	redis    *redisclient.Client
	producer *producer.Producer
	chain    *ethclient.Client
}

// stores groups the persistence adapters picked for this process.
type stores struct {
	institutions instservice.Store
	principals   pservice.Store
	credentials  credentialStore
	journal      credservice.Journal
	tx           credservice.TxRunner
	outbox       outbox.Store
}

// credentialStore is satisfied by both credential store adapters.
type credentialStore interface {
	credservice.Store
	pservice.CredentialCounter
}

// New builds the process. Callers must Close the App when New succeeds.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}
	ready := false
	defer func() {
		if !ready {
			a.Close(context.Background()) //nolint:errcheck // best-effort cleanup on init failure
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	st, err := a.openStores(ctx, reg)
	if err != nil {
		return nil, err
	}

	a.redis, err = redisclient.New(ctx, cfg.Redis, reg)
	if err != nil {
		return nil, err
	}
	var locker lock.Locker = lock.NewLocal()
	var attemptStore lockout.Store = lockout.NewInMemory()
	if a.redis != nil {
		locker = lock.NewRedis(a.redis.Client, lock.WithTTL(cfg.Redis.LockTTL))
		attemptStore = lockout.NewRedis(a.redis.Client)
	}
	attempts, err := lockout.New(attemptStore,
		lockout.WithLogger(logger),
		lockout.WithConfig(lockout.Config{
			Threshold:    cfg.Security.LockoutThreshold,
			Window:       cfg.Security.LockoutWindow,
			LockDuration: cfg.Security.LockoutDuration,
		}),
	)
	if err != nil {
		return nil, err
	}

	var publisher worker.Publisher = producer.NewNoop(logger)
	if cfg.Kafka.Brokers != "" {
		a.producer, err = producer.New(producer.Config{
			Brokers:         cfg.Kafka.Brokers,
			Acks:            cfg.Kafka.Acks,
			Retries:         cfg.Kafka.Retries,
			DeliveryTimeout: cfg.Kafka.DeliveryTimeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		publisher = a.producer
	}

	documents, err := a.openAssets(ctx)
	if err != nil {
		return nil, err
	}

	credMetrics := credmetrics.New(reg)
	credTracer := tracer.NewOTel("verichain/credential")

	chain, err := a.openLedger(ctx)
	if err != nil {
		return nil, err
	}
	guarded := ledger.NewGuarded(chain,
		ledger.WithMetrics(credMetrics),
		ledger.WithTracer(credTracer),
		ledger.WithLogger(logger),
		ledger.WithTimeouts(cfg.Ledger.SubmitTimeout, cfg.Ledger.ConfirmTimeout),
		ledger.WithBreakers(
			circuit.New("ledger_submit",
				circuit.WithFailureThreshold(cfg.Ledger.BreakerFailures),
				circuit.WithCooldown(cfg.Ledger.BreakerCooldown)),
			circuit.New("ledger_read",
				circuit.WithFailureThreshold(cfg.Ledger.BreakerFailures),
				circuit.WithCooldown(cfg.Ledger.BreakerCooldown)),
		),
	)

	fingerprints, err := verifier.NewFingerprinter([]byte(cfg.Security.FingerprintKey))
	if err != nil {
		return nil, err
	}
	params := verifier.DefaultParams
	params.Memory = cfg.Security.Argon2MemoryKiB
	params.Iterations = cfg.Security.Argon2Iterations
	factors := verifier.New(verifier.WithParams(params))

	tokens := jwttoken.NewJWTService(cfg.Security.JWTSigningKey, cfg.Security.JWTIssuer, cfg.Security.JWTAudience, cfg.Security.TokenTTL)

	institutions := instservice.New(st.institutions, instservice.WithLogger(logger))
	principals := pservice.New(st.principals, institutions, secrets.NewHasher(cfg.Security.BcryptCost), tokens,
		pservice.WithLogger(logger),
		pservice.WithCredentialCounter(st.credentials),
		pservice.WithAttemptLimiter(attempts),
		pservice.WithReservedAddresses(guarded.CustodyAccount()),
	)
	credentials := credservice.New(credservice.Deps{
		Credentials:  st.credentials,
		Journal:      st.journal,
		Tx:           st.tx,
		Ledger:       guarded,
		Assets:       documents,
		Hasher:       factors,
		Fingerprints: fingerprints,
		Principals:   principals,
		Institutions: institutions,
		Locker:       locker,
	},
		credservice.WithLogger(logger),
		credservice.WithMetrics(credMetrics),
		credservice.WithTracer(credTracer),
		credservice.WithEventSink(st.outbox),
		credservice.WithAttemptLimiter(attempts),
	)

	if cfg.Server.SeedDemo {
		_, err := seeder.New(institutions, principals, credentials, logger).SeedAll(ctx)
		switch {
		case errors.Is(err, seeder.ErrAlreadySeeded):
			logger.InfoContext(ctx, "demo data already present; skipping seed")
		case err != nil:
			return nil, err
		}
	}

	a.outbox = worker.New(st.outbox, publisher,
		worker.WithTopic(cfg.Kafka.Topic),
		worker.WithPollInterval(cfg.Workers.OutboxInterval),
		worker.WithRetention(cfg.Workers.OutboxRetention),
		worker.WithMetrics(outboxmetrics.New(reg)),
		worker.WithLogger(logger),
	)
	a.reconcile, err = reconcile.New(credentials,
		reconcile.WithInterval(cfg.Workers.ReconcileInterval),
		reconcile.WithMinAge(cfg.Workers.ReconcileMinAge),
		reconcile.WithMetrics(credMetrics),
		reconcile.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	httpMetrics := metrics.New(reg)
	a.handler = httptransport.NewRouter(httptransport.Handlers{
		Principals:   phandler.New(principals, logger),
		Institutions: insthandler.New(institutions, logger),
		Credentials:  credhandler.New(credentials, logger),
		Health:       a.healthChecks(),
	}, httptransport.RouterConfig{
		RequestTimeout: cfg.Server.RequestTimeout,
		ClaimTimeout:   cfg.Server.ClaimTimeout,
		AdminToken:     cfg.Security.AdminAPIToken,
		Tokens:         jwttoken.NewJWTServiceAdapter(tokens),
		Observer:       httpMetrics,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
	}, logger)

	logger.InfoContext(ctx, "verichain assembled",
		"environment", cfg.Server.Environment,
		"postgres", a.pool != nil,
		"redis", a.redis != nil,
		"kafka", a.producer != nil,
		"s3", cfg.Assets.Bucket != "",
		"ethereum", a.chain != nil,
	)
	ready = true
	return a, nil
}

func (a *App) openStores(ctx context.Context, reg prometheus.Registerer) (*stores, error) {
	if a.cfg.Database.URL == "" {
		return &stores{
			institutions: inststore.NewInMemory(),
			principals:   pstore.NewInMemory(),
			credentials:  credstore.NewInMemory(),
			journal:      journal.NewInMemory(),
			tx:           tx.NewMemory(),
			outbox:       outboxmemory.New(),
		}, nil
	}

	pool, err := database.New(ctx, database.Config{
		URL:             a.cfg.Database.URL,
		MaxOpenConns:    a.cfg.Database.MaxOpenConns,
		MaxIdleConns:    a.cfg.Database.MaxIdleConns,
		ConnMaxLifetime: a.cfg.Database.ConnMaxLifetime,
	}, reg)
	if err != nil {
		return nil, err
	}
	a.pool = pool
	if err := migrations.Up(ctx, pool.DB()); err != nil {
		return nil, err
	}

	db := pool.DB()
	return &stores{
		institutions: inststore.NewPostgres(db),
		principals:   pstore.NewPostgres(db),
		credentials:  credstore.NewPostgres(db),
		journal:      journal.NewPostgres(db),
		tx:           tx.NewPostgres(db),
		outbox:       outboxpostgres.New(db),
	}, nil
}

func (a *App) openAssets(ctx context.Context) (credservice.AssetStore, error) {
	cfg := a.cfg.Assets
	if cfg.Bucket == "" {
		return assets.NewMemory(), nil
	}
	client, err := assets.NewS3Client(ctx, assets.S3Config{
		Region:    cfg.Region,
		Endpoint:  cfg.Endpoint,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		Bucket:    cfg.Bucket,
		LinkTTL:   cfg.LinkTTL,
	})
	if err != nil {
		return nil, err
	}
	return assets.NewS3Store(client, s3.NewPresignClient(client), cfg.Bucket, cfg.LinkTTL), nil
}

func (a *App) openLedger(ctx context.Context) (ledger.Ledger, error) {
	cfg := a.cfg.Ledger
	if cfg.RPCURL == "" {
		custody, err := id.ParseAddress(cfg.CustodyAddress)
		if err != nil {
			return nil, fmt.Errorf("LEDGER_CUSTODY_ADDRESS: %w", err)
		}
		return ledger.NewMemory(custody), nil
	}

	minter, err := ledger.ParsePrivateKey(cfg.MinterKey)
	if err != nil {
		return nil, fmt.Errorf("LEDGER_MINTER_KEY: %w", err)
	}
	custody, err := ledger.ParsePrivateKey(cfg.CustodyKey)
	if err != nil {
		return nil, fmt.Errorf("LEDGER_CUSTODY_KEY: %w", err)
	}
	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, errors.New("LEDGER_CONTRACT_ADDRESS is not an address")
	}

	a.chain, err = ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial ledger rpc: %w", err)
	}
	return ledger.NewEthereum(ctx, a.chain, ledger.EthereumConfig{
		Contract:     common.HexToAddress(cfg.ContractAddress),
		MinterKey:    minter,
		CustodyKey:   custody,
		PollInterval: cfg.PollInterval,
	}, a.logger)
}

func (a *App) healthChecks() *health.Handler {
	h := health.New(a.cfg.Server.Environment)
	if a.pool != nil {
		h.RegisterCheck("database", a.pool.Health)
	}
	if a.redis != nil {
		h.RegisterCheck("redis", a.redis.Health)
	}
	if a.producer != nil {
		h.RegisterCheck("kafka", a.producer.Ping)
	}
	if a.chain != nil {
		h.RegisterOptionalCheck("ledger", func(ctx context.Context) error {
			_, err := a.chain.BlockNumber(ctx)
			return err
		})
	}
	return h
}

// Handler is the fully wired HTTP surface.
func (a *App) Handler() http.Handler {
	return a.handler
}

// Run serves HTTP and runs the background workers until ctx is cancelled or
// one of them fails.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.InfoContext(ctx, "starting http server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		a.logger.Info("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return a.outbox.Run(ctx)
	})
	g.Go(func() error {
		if err := a.reconcile.Start(ctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	if a.redis != nil {
		g.Go(func() error {
			ticker := time.NewTicker(poolStatsInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					a.redis.RecordPoolStats()
				}
			}
		})
	}
	return g.Wait()
}

// Close releases connections. The producer gets ctx to flush pending records.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.producer != nil {
		errs = append(errs, a.producer.Close(ctx))
	}
	if a.chain != nil {
		a.chain.Close()
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	errs = append(errs, a.pool.Close())
	return errors.Join(errs...)
}
