// Package bootstrap assembles the engine process from configuration and
// runs its servers until a termination signal arrives.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"mev_engine/internal/auth"
	"mev_engine/internal/core"
	"mev_engine/internal/engine/durable"
	"mev_engine/internal/engine/processor"
	"mev_engine/internal/infrastructure/engineapi"
	"mev_engine/internal/infrastructure/health"
	"mev_engine/internal/infrastructure/server"
	"mev_engine/internal/ledger"
	"mev_engine/internal/token"
	"mev_engine/internal/trading/arbitrage"
	"mev_engine/pkg/concurrency"
	"mev_engine/pkg/liveserver"
	"mev_engine/pkg/logging"
	"mev_engine/pkg/telemetry"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

// Runner is a component that serves until its context is cancelled
type Runner interface {
	Run(ctx context.Context) error
}

// RunnerFunc adapts a function to Runner
type RunnerFunc func(ctx context.Context) error

func (f RunnerFunc) Run(ctx context.Context) error { return f(ctx) }

// App holds the assembled engine and the runners serving it
type App struct {
	Cfg       *Config
	Logger    *logging.ZapLogger
	Store     ledger.Store
	Tokens    *token.MemoryProgram
	Venues    *VenueRegistry
	Processor *processor.Processor
	Hub       *liveserver.Hub
	Health    *health.HealthManager
	Scan      *ScanLoop

	telemetry *telemetry.Telemetry
	runtime   *durable.Runtime
	pool      *concurrency.WorkerPool
	runners   []Runner
}

// NewApp loads the config at configPath and assembles the engine
func NewApp(ctx context.Context, configPath string) (*App, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return New(ctx, cfg)
}

// New assembles the engine from an already validated config
func New(ctx context.Context, cfg *Config) (*App, error) {
	a := &App{Cfg: cfg}
	if err := a.assemble(ctx); err != nil {
		a.Close()
		return nil, err
	}
	a.runners = a.buildRunners()
	return a, nil
}

func (a *App) assemble(ctx context.Context) error {
	cfg := a.Cfg
	var err error

	if cfg.Telemetry.EnableMetrics {
		if a.telemetry, err = telemetry.Setup(cfg.Telemetry.ServiceName); err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
	}

	if a.Logger, err = InitLogger(cfg); err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	logger := a.Logger

	if a.Store, err = openStore(cfg); err != nil {
		return err
	}

	a.Tokens = token.NewMemoryProgram()
	for _, ta := range cfg.TokenAccounts {
		key, _ := core.ParsePubkey(ta.Key)
		owner, _ := core.ParsePubkey(ta.Owner)
		a.Tokens.CreateAccount(key, owner, ta.Amount)
	}

	if a.Venues, err = BuildVenues(cfg, logger); err != nil {
		return err
	}
	a.Hub = liveserver.NewHub(logger)

	if cfg.Scanner.Enabled {
		routes, err := BuildRoutes(cfg, a.Venues)
		if err != nil {
			return err
		}
		a.pool = concurrency.NewWorkerPool(concurrency.PoolConfig{
			Name:       "RouteScanner",
			MaxWorkers: cfg.Scanner.PoolSize,
		}, logger)
		scanner := arbitrage.NewRouteScanner(arbitrage.NewEvaluator(logger), a.pool, logger)
		a.Scan = NewScanLoop(scanner, routes, time.Duration(cfg.Scanner.IntervalMs)*time.Millisecond, a.Hub, logger)
	}

	opts := []processor.Option{processor.WithEventPublisher(a.Hub)}
	if cfg.App.EngineType == "dbos" {
		if a.runtime, err = durable.NewRuntime(ctx, cfg.Telemetry.ServiceName, cfg.App.DatabaseURL, logger); err != nil {
			return err
		}
		if err = a.runtime.Launch(); err != nil {
			return err
		}
		opts = append(opts, processor.WithRebalanceRunner(a.runtime.Rebalancer()))
	}

	a.Processor = processor.New(processor.Config{
		ProgramID:      cfg.ProgramKey(),
		TokenProgramID: cfg.TokenProgramKey(),
		Rent:           cfg.Rent(),
		RebalanceSteps: cfg.Engine.RebalanceSteps,
	}, a.Store, token.NewGateway(a.Tokens, logger), a.Venues, logger, opts...)

	a.Health = health.NewHealthManager(logger)
	store := a.Store
	a.Health.Register("store", func(ctx context.Context) error { return ledger.Ping(ctx, store) })
	for name, probe := range a.Venues.Probes() {
		a.Health.RegisterOptional(name, probe)
	}
	return nil
}

func openStore(cfg *Config) (ledger.Store, error) {
	switch cfg.App.StoreDriver {
	case "sqlite":
		store, err := ledger.NewSQLiteStore(cfg.App.StorePath)
		if err != nil {
			return nil, fmt.Errorf("store: %w", err)
		}
		return store, nil
	default:
		return ledger.NewMemoryStore(), nil
	}
}

func (a *App) buildRunners() []Runner {
	cfg := a.Cfg

	var validator *auth.APIKeyValidator
	if keys := cfg.APIKeys(); len(keys) > 0 {
		validator = auth.NewAPIKeyValidator(keys, cfg.Server.RateLimit, a.Logger)
	} else {
		a.Logger.Warn("No API keys configured, gRPC service is unauthenticated")
	}
	grpcServer, _ := engineapi.NewGRPCServer(engineapi.NewEngineService(a.Processor, a.Logger), validator)

	stream := liveserver.NewServer(a.Hub, a.Logger, []string{"*"})
	healthServer := server.NewHealthServer(cfg.Server.HTTPPort, a.Logger, a.Health, stream)
	healthServer.UpdateStatus("engine_type", cfg.App.EngineType)
	healthServer.UpdateStatus("store_driver", cfg.App.StoreDriver)

	runners := []Runner{
		RunnerFunc(func(ctx context.Context) error {
			a.Hub.Run(ctx)
			return nil
		}),
		&grpcRunner{server: grpcServer, port: cfg.Server.GRPCPort, logger: a.Logger},
		healthServer,
	}
	if a.Scan != nil {
		runners = append(runners, a.Scan)
	}
	if a.runtime != nil {
		runners = append(runners, a.runtime)
	}
	return runners
}

// Run serves every runner until SIGINT/SIGTERM or the first runner failure
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext serves every runner until ctx is cancelled or one of them fails
func (a *App) RunContext(ctx context.Context) error {
	defer a.Close()

	g, ctx := errgroup.WithContext(ctx)
	a.Logger.Info("Starting mev engine",
		"grpc_port", a.Cfg.Server.GRPCPort,
		"http_port", a.Cfg.Server.HTTPPort,
		"engine_type", a.Cfg.App.EngineType,
		"venues", a.Cfg.VenueNames(),
	)

	for _, r := range a.runners {
		r := r
		g.Go(func() error {
			return r.Run(ctx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error("Engine stopped with error", "error", err)
		return err
	}
	a.Logger.Info("Engine shut down gracefully")
	return nil
}

// Close releases the store, the worker pool and the telemetry providers
func (a *App) Close() {
	if a.pool != nil {
		a.pool.Stop()
		if a.Logger != nil {
			a.Logger.Info("Route scanner pool stopped", "stats", a.pool.Stats())
		}
		a.pool = nil
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil && a.Logger != nil {
			a.Logger.Warn("Failed to close store", "error", err)
		}
		a.Store = nil
	}
	if a.telemetry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.telemetry.Shutdown(ctx)
		a.telemetry = nil
	}
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
}

type grpcRunner struct {
	server *grpc.Server
	port   int
	logger core.ILogger
}

func (r *grpcRunner) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", net.JoinHostPort("", strconv.Itoa(r.port)))
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		r.logger.Info("Starting gRPC server", "addr", lis.Addr().String())
		errCh <- r.server.Serve(lis)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		r.server.GracefulStop()
		return nil
	}
}
