package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Client 封裝 pgxpool 連線池
type Client struct {
	pool *pgxpool.Pool
}

// NewClient 建立連線池並確認可以連線
//
// 參數:
//
//	ctx: 上下文
//	cfg: Postgres 連線配置
//	log: logger
//
// 回傳值:
//
//	*Client: 封裝後的客戶端
//	error: 連線字串錯誤或 Ping 失敗
func NewClient(ctx context.Context, cfg Config, log *zap.Logger) (*Client, error) {
	cfg = cfg.WithDefaults()
	if log == nil {
		log = zap.NewNop()
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("unable to parse postgres config: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to connect to postgres: %w", err)
	}

	log.Info("connected to postgres",
		zap.String("host", poolCfg.ConnConfig.Host), zap.String("database", poolCfg.ConnConfig.Database))
	return &Client{pool: pool}, nil
}

// Pool 回傳底層連線池
func (c *Client) Pool() *pgxpool.Pool {
	return c.pool
}

// Close 關閉連線池
func (c *Client) Close() {
	c.pool.Close()
}
