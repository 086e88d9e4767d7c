package memory

import (
	"time"

	"go.uber.org/zap"
)

// DefaultLockTimeout 取得帳戶獨占存取的預設等待上限
const DefaultLockTimeout = 2 * time.Second

type options struct {
	lockTimeout time.Duration
	now         func() time.Time
	logger      *zap.Logger
	queueSize   int
}

// Option 定義 memory store 的配置選項函數
type Option func(*options)

// WithLockTimeout 設定等待帳戶鎖 (或等待 loop 取件) 的上限
func WithLockTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.lockTimeout = d
		}
	}
}

// WithClock 設定帳戶建立時間的來源
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger 設定 logger
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithQueueSize 設定 LoopStore 輸送帶的 buffer 大小
func WithQueueSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.queueSize = n
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		lockTimeout: DefaultLockTimeout,
		now:         func() time.Time { return time.Now().UTC() },
		logger:      zap.NewNop(),
		queueSize:   1000,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
