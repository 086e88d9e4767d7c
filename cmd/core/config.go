package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/JoeShih716/go-transfer-ledger/pkg/logger"
	"github.com/JoeShih716/go-transfer-ledger/pkg/mysql"
	"github.com/JoeShih716/go-transfer-ledger/pkg/postgres"
)

// Store 種類
const (
	StoreMemory     = "memory"
	StoreMemoryLoop = "memory-loop"
	StoreMySQL      = "mysql"
	StorePostgres   = "postgres"
)

type Config struct {
	Server   ServerConfig    `yaml:"server"`
	Log      logger.Config   `yaml:"log"`
	Store    StoreConfig     `yaml:"store"`
	Transfer TransferConfig  `yaml:"transfer"`
	MySQL    mysql.Config    `yaml:"mysql"`
	Postgres postgres.Config `yaml:"postgres"`
}

type ServerConfig struct {
	GRPCAddr        string        `yaml:"grpc_addr"`
	HTTPAddr        string        `yaml:"http_addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type StoreConfig struct {
	// Type: memory, memory-loop, mysql, postgres
	Type string `yaml:"type"`
	// WALPath memory store 的 WAL 路徑，空字串代表不持久化
	WALPath     string        `yaml:"wal_path"`
	LockTimeout time.Duration `yaml:"lock_timeout"`
	QueueSize   int           `yaml:"queue_size"`
}

type TransferConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BackoffBase time.Duration `yaml:"backoff_base"`
	// RetryAfter 回傳給客戶端的建議重試間隔
	RetryAfter time.Duration `yaml:"retry_after"`
}

// loadConfig 讀取 yaml，套用環境變數覆寫後補全預設值
//
// 參數:
//
//	path: 設定檔路徑，檔案不存在時只使用環境變數與預設值
//	lookup: 環境變數查詢 (os.LookupEnv)
func loadConfig(path string, lookup func(string) (string, bool)) (Config, error) {
	var cfg Config
	cfgData, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("read config file: %w", err)
	default:
		if err := yaml.Unmarshal(cfgData, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := applyEnv(&cfg, lookup); err != nil {
		return cfg, err
	}
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) withDefaults() Config {
	if c.Server.GRPCAddr == "" {
		c.Server.GRPCAddr = ":50051"
	}
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = ":8080"
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Store.Type == "" {
		c.Store.Type = StoreMemory
	}
	if c.Store.LockTimeout == 0 {
		c.Store.LockTimeout = 2 * time.Second
	}
	if c.Store.QueueSize == 0 {
		c.Store.QueueSize = 1000
	}
	if c.Transfer.MaxAttempts == 0 {
		c.Transfer.MaxAttempts = 3
	}
	if c.Transfer.BackoffBase == 0 {
		c.Transfer.BackoffBase = 10 * time.Millisecond
	}
	if c.Transfer.RetryAfter == 0 {
		c.Transfer.RetryAfter = time.Second
	}
	c.MySQL = c.MySQL.WithDefaults()
	c.Postgres = c.Postgres.WithDefaults()
	return c
}

func (c Config) validate() error {
	switch c.Store.Type {
	case StoreMemory, StoreMemoryLoop, StoreMySQL, StorePostgres:
	default:
		return fmt.Errorf("unknown store type %q", c.Store.Type)
	}
	if c.Store.LockTimeout < 0 {
		return fmt.Errorf("store.lock_timeout must not be negative")
	}
	return nil
}

// applyEnv 環境變數優先於設定檔
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"LEDGER_GRPC_ADDR":  &cfg.Server.GRPCAddr,
		"LEDGER_HTTP_ADDR":  &cfg.Server.HTTPAddr,
		"LEDGER_LOG_LEVEL":  &cfg.Log.Level,
		"LEDGER_LOG_FORMAT": &cfg.Log.Format,
		"LEDGER_STORE":      &cfg.Store.Type,
		"LEDGER_WAL_PATH":   &cfg.Store.WALPath,

		"MYSQL_HOST":     &cfg.MySQL.Host,
		"MYSQL_USER":     &cfg.MySQL.User,
		"MYSQL_PASSWORD": &cfg.MySQL.Password,
		"MYSQL_DBNAME":   &cfg.MySQL.DBName,

		"POSTGRES_URL":      &cfg.Postgres.URL,
		"POSTGRES_HOST":     &cfg.Postgres.Host,
		"POSTGRES_USER":     &cfg.Postgres.User,
		"POSTGRES_PASSWORD": &cfg.Postgres.Password,
		"POSTGRES_DBNAME":   &cfg.Postgres.DBName,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"MYSQL_PORT":             &cfg.MySQL.Port,
		"POSTGRES_PORT":          &cfg.Postgres.Port,
		"LEDGER_MAX_ATTEMPTS":    &cfg.Transfer.MaxAttempts,
		"LEDGER_LOOP_QUEUE_SIZE": &cfg.Store.QueueSize,
	}
	for key, dst := range ints {
		if v, ok := lookup(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("env %s: %w", key, err)
			}
			*dst = n
		}
	}

	durations := map[string]*time.Duration{
		"LEDGER_LOCK_TIMEOUT":     &cfg.Store.LockTimeout,
		"LEDGER_BACKOFF_BASE":     &cfg.Transfer.BackoffBase,
		"LEDGER_RETRY_AFTER":      &cfg.Transfer.RetryAfter,
		"LEDGER_SHUTDOWN_TIMEOUT": &cfg.Server.ShutdownTimeout,
	}
	for key, dst := range durations {
		if v, ok := lookup(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("env %s: %w", key, err)
			}
			*dst = d
		}
	}
	return nil
}
