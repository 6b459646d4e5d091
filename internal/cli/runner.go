// Package cli implements the tokenctl command tree.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"etoken-wallet/internal/address"
	"etoken-wallet/internal/command"
	"etoken-wallet/internal/config"
	"etoken-wallet/internal/invalidation"
	"etoken-wallet/internal/logging"
	"etoken-wallet/internal/storage"
	"etoken-wallet/internal/storage/migrations"
	pgstore "etoken-wallet/internal/storage/postgres"
	"etoken-wallet/internal/storage/sqlite"
	"etoken-wallet/internal/wallet"
)

// Exit codes.
const (
	ExitOK         = 0
	ExitInternal   = 1
	ExitUsage      = 2
	ExitValidation = 3
	ExitWallet     = 4
)

// usageError marks bad flags or arguments.
type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

// Runner executes one tokenctl invocation.
type Runner struct {
	stdout io.Writer
	stderr io.Writer
	wallet wallet.Wallet
}

// NewRunner creates a runner writing to the process stdout and stderr.
func NewRunner() *Runner {
	return NewRunnerWithWriters(os.Stdout, os.Stderr)
}

// NewRunnerWithWriters creates a runner writing to the given streams.
func NewRunnerWithWriters(stdout, stderr io.Writer) *Runner {
	return &Runner{stdout: stdout, stderr: stderr}
}

// WithWallet makes the runner use w instead of dialing the configured endpoint.
func (r *Runner) WithWallet(w wallet.Wallet) *Runner {
	r.wallet = w
	return r
}

type globalFlags struct {
	configPath string
	owner      string
	walletURL  string
	dbPath     string
	logLevel   string
}

type runtimeState struct {
	runner   *Runner
	flags    globalFlags
	cfg      config.Config
	logger   *zap.Logger
	triggers *invalidation.Triggers
	wallet   wallet.Wallet

	history   storage.HistoryStore
	directory storage.DirectoryStore
	favorites storage.FavoritesStore
	closers   []func()
}

// Run parses args, executes the command and returns the process exit code.
func (r *Runner) Run(args []string) int {
	s := &runtimeState{runner: r, triggers: invalidation.NewTriggers()}
	root := s.newRootCommand()
	root.SetArgs(args)
	root.SetOut(r.stdout)
	root.SetErr(r.stderr)
	root.SilenceUsage = true
	root.SilenceErrors = true

	err := root.ExecuteContext(context.Background())
	s.close()
	if err == nil {
		return ExitOK
	}
	fmt.Fprintf(r.stderr, "error: %s\n", err.Error())
	return exitCode(err)
}

func exitCode(err error) int {
	var ue *usageError
	switch {
	case errors.As(err, &ue):
		return ExitUsage
	case command.IsValidation(err):
		return ExitValidation
	case command.IsWallet(err):
		return ExitWallet
	}
	return ExitInternal
}

func (s *runtimeState) newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tokenctl",
		Short: "eToken wallet actions and reconciliation",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			return s.setup()
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	cmd.PersistentFlags().StringVar(&s.flags.configPath, "config", "", "Path to config file")
	cmd.PersistentFlags().StringVar(&s.flags.owner, "owner", "", "Owner address (overrides config)")
	cmd.PersistentFlags().StringVar(&s.flags.walletURL, "wallet-url", "", "Wallet JSON-RPC endpoint (overrides config)")
	cmd.PersistentFlags().StringVar(&s.flags.dbPath, "db", "", "Local sqlite database path (overrides config)")
	cmd.PersistentFlags().StringVar(&s.flags.logLevel, "log-level", "warn", "Log level")

	cmd.AddCommand(s.newSendCommand())
	cmd.AddCommand(s.newSupplyCommand(actionMint))
	cmd.AddCommand(s.newSupplyCommand(actionBurn))
	cmd.AddCommand(s.newAirdropCommand())
	cmd.AddCommand(s.newEstimateCommand())
	cmd.AddCommand(s.newScanCommand())
	cmd.AddCommand(s.newHistoryCommand())
	cmd.AddCommand(s.newBalanceCommand())
	return cmd
}

func (s *runtimeState) setup() error {
	cfg, err := config.Load(s.flags.configPath)
	if err != nil {
		return usagef("load configuration: %v", err)
	}
	if s.flags.owner != "" {
		cfg.OwnerAddress = s.flags.owner
	}
	if s.flags.walletURL != "" {
		cfg.WalletURL = s.flags.walletURL
	}
	if s.flags.dbPath != "" {
		cfg.SQLitePath = s.flags.dbPath
		cfg.SQLiteLock = s.flags.dbPath + ".lock"
	}
	if cfg.OwnerAddress != "" {
		if err := cfg.Resolve(); err != nil {
			return usagef("%v", err)
		}
	}
	s.cfg = cfg

	lvl, err := logging.ParseLevel(s.flags.logLevel)
	if err != nil {
		return usagef("%v", err)
	}
	s.logger = logging.NewWithWriter(lvl, s.runner.stderr, false)
	return nil
}

func (s *runtimeState) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
	if s.logger != nil {
		_ = s.logger.Sync()
	}
}

func (s *runtimeState) walletClient() wallet.Wallet {
	if s.wallet == nil {
		s.wallet = s.runner.wallet
	}
	if s.wallet == nil {
		s.wallet = wallet.NewRPCClient(s.cfg.WalletURL, wallet.WithTimeout(s.cfg.WalletTimeout))
	}
	return s.wallet
}

func (s *runtimeState) validator() address.Validator {
	return address.Validator{Prefix: s.cfg.AddressPrefix, AllowLegacy: true}
}

func (s *runtimeState) requireOwner() error {
	if s.cfg.OwnerAddress == "" {
		return usagef("%v (use --owner or owner.address)", config.ErrNoOwner)
	}
	return nil
}

// openStores opens postgres when a DSN is configured, otherwise the local sqlite file.
func (s *runtimeState) openStores(ctx context.Context) error {
	if s.history != nil {
		return nil
	}
	if s.cfg.PostgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, s.cfg.PostgresDSN)
		if err != nil {
			return err
		}
		s.closers = append(s.closers, pool.Close)
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return fmt.Errorf("postgres migrations: %w", err)
		}
		s.history = pgstore.NewHistoryStore(pool)
		s.directory = pgstore.NewDirectoryStore(pool)
		s.favorites = pgstore.NewFavoritesStore(pool)
		return nil
	}

	db, err := sqlite.Open(s.cfg.SQLitePath, s.cfg.SQLiteLock)
	if err != nil {
		return err
	}
	s.closers = append(s.closers, func() { _ = db.Close() })
	s.history = sqlite.NewHistoryStore(db)
	s.directory = sqlite.NewDirectoryStore(db)
	s.favorites = sqlite.NewFavoritesStore(db)
	return nil
}

// relayInvalidation forwards local trigger bumps to a running watcher.
func (s *runtimeState) relayInvalidation(ctx context.Context) {
	if s.cfg.RedisAddr == "" {
		return
	}
	client := redis.NewClient(&redis.Options{Addr: s.cfg.RedisAddr})
	s.closers = append(s.closers, func() { _ = client.Close() })

	b := invalidation.NewBroadcaster(client, s.cfg.RedisChannel, s.triggers, s.logger)
	b.Attach(ctx)
	// Closers run in reverse, so pending bumps go out before the client closes.
	s.closers = append(s.closers, func() {
		fctx, cancel := context.WithTimeout(context.Background(), invalidation.DefaultPublishTimeout)
		defer cancel()
		if err := b.Flush(fctx); err != nil {
			s.logger.Warn("invalidation relay not flushed", zap.Error(err))
		}
	})
}

func (s *runtimeState) writeJSON(v any) error {
	enc := json.NewEncoder(s.runner.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
