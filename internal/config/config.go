// Package config loads wallet daemon and CLI settings from YAML with env overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"etoken-wallet/internal/address"
	"etoken-wallet/internal/feed"
	"etoken-wallet/internal/invalidation"
	"etoken-wallet/internal/price"
	"etoken-wallet/internal/scanner"
)

// Environment variables that override file values.
const (
	EnvPostgresDSN = "ETOKEN_POSTGRES_DSN"
	EnvRedisAddr   = "ETOKEN_REDIS_ADDR"
	EnvWalletURL   = "ETOKEN_WALLET_URL"
	EnvLogLevel    = "ETOKEN_LOG_LEVEL"
	EnvConcurrency = "ETOKEN_SCAN_CONCURRENCY"
)

// ErrNoOwner is returned by Resolve when no owner address is configured.
var ErrNoOwner = errors.New("owner address not configured")

// Config is the resolved configuration.
type Config struct {
	WalletURL     string
	WalletTimeout time.Duration
	ChronikURL    string

	OwnerAddress  string
	AddressPrefix string
	ScriptType    string
	ScriptPayload string

	PostgresDSN   string
	SQLitePath    string
	SQLiteLock    string
	ClickHouseDSN string

	RedisAddr    string
	RedisChannel string

	MetricsAddr string
	LogLevel    string

	TxDelay         time.Duration
	BlockDelay      time.Duration
	UnstableAfter   int
	MetadataTimeout time.Duration
	ScanConcurrency int

	PriceURL     string
	PriceRate    float64
	PriceTimeout time.Duration
	PriceDefault string
}

type fileConfig struct {
	Wallet struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"wallet"`
	Chronik struct {
		URL string `yaml:"url"`
	} `yaml:"chronik"`
	Owner struct {
		Address       string `yaml:"address"`
		Prefix        string `yaml:"prefix"`
		ScriptType    string `yaml:"script_type"`
		ScriptPayload string `yaml:"script_payload"`
	} `yaml:"owner"`
	Storage struct {
		PostgresDSN   string `yaml:"postgres_dsn"`
		SQLitePath    string `yaml:"sqlite_path"`
		SQLiteLock    string `yaml:"sqlite_lock_path"`
		ClickHouseDSN string `yaml:"clickhouse_dsn"`
	} `yaml:"storage"`
	Redis struct {
		Addr    string `yaml:"addr"`
		Channel string `yaml:"channel"`
	} `yaml:"redis"`
	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
	Feed struct {
		TxDelay       string `yaml:"tx_delay"`
		BlockDelay    string `yaml:"block_delay"`
		UnstableAfter *int   `yaml:"unstable_after"`
	} `yaml:"feed"`
	Scanner struct {
		MetadataTimeout string `yaml:"metadata_timeout"`
		Concurrency     *int   `yaml:"concurrency"`
	} `yaml:"scanner"`
	Price struct {
		URL     string   `yaml:"url"`
		Rate    *float64 `yaml:"rate"`
		Timeout string   `yaml:"timeout"`
		Default string   `yaml:"default"`
	} `yaml:"price"`
	LogLevel string `yaml:"log_level"`
}

// Default returns the built-in configuration.
func Default() (Config, error) {
	sqlitePath, lockPath, err := defaultDataPaths()
	if err != nil {
		return Config{}, err
	}
	return Config{
		WalletURL:       "http://127.0.0.1:8332",
		WalletTimeout:   30 * time.Second,
		ChronikURL:      "wss://chronik.e.cash/ws",
		AddressPrefix:   address.DefaultPrefix,
		ScriptType:      "p2pkh",
		SQLitePath:      sqlitePath,
		SQLiteLock:      lockPath,
		RedisChannel:    invalidation.DefaultChannel,
		MetricsAddr:     ":9090",
		LogLevel:        "info",
		TxDelay:         feed.DefaultTxDelay,
		BlockDelay:      feed.DefaultBlockDelay,
		UnstableAfter:   feed.DefaultUnstableAfter,
		MetadataTimeout: scanner.DefaultMetadataTimeout,
		ScanConcurrency: scanner.DefaultConcurrency,
		PriceURL:        "https://api.coingecko.com/api/v3/simple/price",
		PriceRate:       price.DefaultRate,
		PriceTimeout:    price.DefaultTimeout,
		PriceDefault:    "0",
	}, nil
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg, err := Default()
	if err != nil {
		return Config{}, err
	}
	if strings.TrimSpace(path) != "" {
		if err := applyFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

// Resolve normalizes the owner address and derives its output script when
// the script is not configured explicitly.
func (c *Config) Resolve() error {
	if c.OwnerAddress == "" {
		return ErrNoOwner
	}
	a, err := address.Parse(c.OwnerAddress, c.AddressPrefix)
	if err != nil && !strings.Contains(c.OwnerAddress, ":") {
		a, err = address.FromLegacy(c.OwnerAddress, c.AddressPrefix)
	}
	if err != nil {
		return fmt.Errorf("owner address: %w", err)
	}
	c.OwnerAddress = a.String()
	if c.ScriptPayload == "" {
		c.ScriptType = a.ScriptType()
		c.ScriptPayload = a.ScriptPayload()
	}
	return nil
}

func applyFile(path string, cfg *Config) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(buf, &fc); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}

	setString(&cfg.WalletURL, fc.Wallet.URL)
	setString(&cfg.ChronikURL, fc.Chronik.URL)
	setString(&cfg.OwnerAddress, fc.Owner.Address)
	setString(&cfg.AddressPrefix, fc.Owner.Prefix)
	setString(&cfg.ScriptType, fc.Owner.ScriptType)
	setString(&cfg.ScriptPayload, fc.Owner.ScriptPayload)
	setString(&cfg.PostgresDSN, fc.Storage.PostgresDSN)
	setString(&cfg.SQLitePath, fc.Storage.SQLitePath)
	setString(&cfg.SQLiteLock, fc.Storage.SQLiteLock)
	setString(&cfg.ClickHouseDSN, fc.Storage.ClickHouseDSN)
	setString(&cfg.RedisAddr, fc.Redis.Addr)
	setString(&cfg.RedisChannel, fc.Redis.Channel)
	setString(&cfg.MetricsAddr, fc.Metrics.Addr)
	setString(&cfg.PriceURL, fc.Price.URL)
	setString(&cfg.PriceDefault, fc.Price.Default)
	setString(&cfg.LogLevel, fc.LogLevel)

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"wallet.timeout", fc.Wallet.Timeout, &cfg.WalletTimeout},
		{"feed.tx_delay", fc.Feed.TxDelay, &cfg.TxDelay},
		{"feed.block_delay", fc.Feed.BlockDelay, &cfg.BlockDelay},
		{"scanner.metadata_timeout", fc.Scanner.MetadataTimeout, &cfg.MetadataTimeout},
		{"price.timeout", fc.Price.Timeout, &cfg.PriceTimeout},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = v
	}

	if fc.Feed.UnstableAfter != nil {
		cfg.UnstableAfter = *fc.Feed.UnstableAfter
	}
	if fc.Scanner.Concurrency != nil {
		cfg.ScanConcurrency = *fc.Scanner.Concurrency
	}
	if fc.Price.Rate != nil {
		cfg.PriceRate = *fc.Price.Rate
	}
	return nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.PostgresDSN, os.Getenv(EnvPostgresDSN))
	setString(&cfg.RedisAddr, os.Getenv(EnvRedisAddr))
	setString(&cfg.WalletURL, os.Getenv(EnvWalletURL))
	setString(&cfg.LogLevel, os.Getenv(EnvLogLevel))
	if v := os.Getenv(EnvConcurrency); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ScanConcurrency = n
		}
	}
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func defaultDataPaths() (string, string, error) {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", "", err
		}
		base = filepath.Join(home, ".local", "share")
	}
	dir := filepath.Join(base, "etoken")
	return filepath.Join(dir, "wallet.db"), filepath.Join(dir, "wallet.lock"), nil
}
