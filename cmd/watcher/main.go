package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"etoken-wallet/internal/balance"
	"etoken-wallet/internal/chronik"
	"etoken-wallet/internal/config"
	"etoken-wallet/internal/feed"
	"etoken-wallet/internal/invalidation"
	"etoken-wallet/internal/logging"
	"etoken-wallet/internal/observability"
	"etoken-wallet/internal/price"
	"etoken-wallet/internal/scanner"
	"etoken-wallet/internal/storage"
	chstore "etoken-wallet/internal/storage/clickhouse"
	"etoken-wallet/internal/storage/memory"
	"etoken-wallet/internal/storage/migrations"
	pgstore "etoken-wallet/internal/storage/postgres"
	"etoken-wallet/internal/wallet"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	owner := flag.String("owner", "", "Owner address (overrides config)")
	walletURL := flag.String("wallet-url", "", "Wallet JSON-RPC endpoint (overrides config)")
	chronikURL := flag.String("chronik-url", "", "Chronik WebSocket endpoint (overrides config)")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (overrides config)")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage even if DSNs are configured")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	override(&cfg.OwnerAddress, *owner)
	override(&cfg.WalletURL, *walletURL)
	override(&cfg.ChronikURL, *chronikURL)
	override(&cfg.MetricsAddr, *metricsAddr)
	override(&cfg.LogLevel, *logLevel)

	logger, err := logging.NewFromString(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := cfg.Resolve(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}
	if *useMemory {
		cfg.PostgresDSN = ""
		cfg.ClickHouseDSN = ""
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
			cancel()
		case <-done:
			return
		}
		select {
		case sig := <-sigCh:
			logger.Warn("second signal, forcing exit", zap.String("signal", sig.String()))
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Warn("graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	err = run(ctx, cfg, logger)
	close(done)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("watcher failed", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	w := wallet.NewRPCClient(cfg.WalletURL, wallet.WithTimeout(cfg.WalletTimeout))
	triggers := invalidation.NewTriggers()

	st, closeStores, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStores()

	defaultPrice, err := decimal.NewFromString(cfg.PriceDefault)
	if err != nil {
		return fmt.Errorf("price default: %w", err)
	}

	var broadcaster *invalidation.Broadcaster
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		broadcaster = invalidation.NewBroadcaster(client, cfg.RedisChannel, triggers, logger)
	}

	g, ctx := errgroup.WithContext(ctx)

	if cfg.MetricsAddr != "" {
		srv := metricsServer(cfg.MetricsAddr, st.health)
		g.Go(func() error {
			logger.Info("starting metrics server", zap.String("addr", cfg.MetricsAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		tick := time.NewTicker(time.Second)
		defer tick.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-tick.C:
				observability.AddUptime(1)
			}
		}
	})

	if broadcaster != nil {
		broadcaster.Attach(ctx)
		g.Go(func() error {
			if err := broadcaster.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("invalidation broadcaster stopped", zap.Error(err))
			}
			return nil
		})
	}

	cache := balance.NewCache(w, triggers.Balance, cfg.OwnerAddress, logger)
	g.Go(func() error {
		cache.Watch(ctx)
		return nil
	})

	prices := price.NewFetcher(price.Config{
		Endpoint: cfg.PriceURL,
		Rate:     cfg.PriceRate,
		Timeout:  cfg.PriceTimeout,
		Default:  defaultPrice,
	}, logger)
	g.Go(func() error {
		reportBalance(ctx, time.Minute, cache, prices, logger)
		return nil
	})

	sc := scanner.New(w, st.directory, st.favorites, st.snapshots, scanner.NewStore(), scanner.Config{
		OwnerAddress:    cfg.OwnerAddress,
		MetadataTimeout: cfg.MetadataTimeout,
		Concurrency:     cfg.ScanConcurrency,
	}, logger)
	g.Go(func() error {
		// The daemon has no entry view; it always scans in overview mode.
		sc.Watch(ctx, triggers, func() scanner.Mode { return scanner.Mode{Connected: true} })
		return nil
	})

	ws := chronik.NewWSClient(cfg.ChronikURL, nil, logger)
	f := feed.New(ws, triggers, feed.Config{
		ScriptType:    cfg.ScriptType,
		ScriptPayload: cfg.ScriptPayload,
		TxDelay:       cfg.TxDelay,
		BlockDelay:    cfg.BlockDelay,
		UnstableAfter: cfg.UnstableAfter,
	}, logger)
	g.Go(func() error {
		if err := f.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("feed: %w", err)
		}
		return nil
	})

	logger.Info("watcher started",
		zap.String("owner", cfg.OwnerAddress),
		zap.String("wallet", cfg.WalletURL),
		zap.String("chronik", cfg.ChronikURL),
	)
	return g.Wait()
}

type stores struct {
	directory storage.DirectoryStore
	favorites storage.FavoritesStore
	snapshots storage.SnapshotStore
	health    map[string]func(context.Context) error
}

func openStores(ctx context.Context, cfg config.Config, logger *zap.Logger) (stores, func(), error) {
	s := stores{
		directory: memory.NewDirectoryStore(),
		favorites: memory.NewFavoritesStore(),
		snapshots: memory.NewSnapshotStore(),
		health:    make(map[string]func(context.Context) error),
	}
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.PostgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return stores{}, nil, err
		}
		closers = append(closers, pool.Close)
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			closeAll()
			return stores{}, nil, fmt.Errorf("postgres migrations: %w", err)
		}
		s.directory = pgstore.NewDirectoryStore(pool)
		s.favorites = pgstore.NewFavoritesStore(pool)
		s.health["postgres"] = pool.Healthy
		logger.Info("using postgres storage")
	} else {
		logger.Warn("no postgres dsn configured, directory and favorites are in-memory")
	}

	if cfg.ClickHouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickHouseDSN)
		if err != nil {
			closeAll()
			return stores{}, nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
		closers = append(closers, func() { _ = conn.Close() })
		s.snapshots = chstore.NewSnapshotStore(conn)
		s.health["clickhouse"] = conn.Healthy
		logger.Info("using clickhouse snapshot storage")
	}

	return s, closeAll, nil
}

func metricsServer(addr string, checks map[string]func(context.Context) error) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		for name, check := range checks {
			if err := check(r.Context()); err != nil {
				http.Error(w, fmt.Sprintf("%s: %v", name, err), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}

// reportBalance periodically logs the cached balance and its fiat value.
func reportBalance(ctx context.Context, every time.Duration, cache *balance.Cache, prices *price.Fetcher, logger *zap.Logger) {
	tick := time.NewTicker(every)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}
		snap, ok := cache.Get()
		if !ok {
			continue
		}
		q := prices.Get(ctx)
		logger.Info("balance",
			zap.Int64("sats", snap.Sats),
			zap.Int64("total_sats", snap.TotalSats),
			zap.Uint64("version", snap.Version),
			zap.Bool("stale", cache.Stale()),
			zap.String("value", price.FiatValue(snap.Sats, q).StringFixed(2)),
			zap.String("currency", q.Currency),
			zap.Bool("price_stale", q.Stale),
		)
	}
}
