package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-transfer-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-transfer-ledger/internal/app/core/usecase"
)

// ErrStoreClosed loop 已停止，不再接受寫入
var ErrStoreClosed = errors.New("loop store closed")

// 請求狀態，loop 與呼叫端以 CAS 搶奪
const (
	reqPending int32 = iota
	reqRunning
	reqAbandoned
)

// loopRequest 寫入請求包裝 channel，讓呼叫端可以等待結果
type loopRequest struct {
	run    func() error
	result chan error
	status atomic.Int32
}

// LoopStore 單一寫入者的記憶體帳本 (LMAX 風格)
//
// 所有寫入 (轉帳、開戶、改名、刪除) 都放上輸送帶，由同一個 goroutine 依序執行，
// 因此不需要帳戶鎖。讀取直接走 state 的讀鎖。
//
// PostRequest(等待) -> Channel -> Run Loop -> fn + WAL -> State Update -> Result Channel -> 呼叫端
type LoopStore struct {
	state       *state
	requests    chan *loopRequest
	done        chan struct{}
	stopped     chan struct{}
	closeOnce   sync.Once
	lockTimeout time.Duration
	logger      *zap.Logger
}

// NewLoopStore 建立 LoopStore 並從 WAL 恢復狀態，需呼叫 Start 才會開始處理寫入
//
// 參數:
//
//	journal: Write-Ahead Log，nil 代表不持久化
//	opts: 配置選項
//
// 回傳:
//
//	*LoopStore: LoopStore 實例
//	error: WAL 恢復失敗
func NewLoopStore(journal Journal, opts ...Option) (*LoopStore, error) {
	o := buildOptions(opts)
	st := newState(journal)
	st.now = o.now
	if err := st.recover(); err != nil {
		return nil, fmt.Errorf("recover from wal: %w", err)
	}
	o.logger.Info("loop store ready",
		zap.Int("accounts", len(st.accounts)), zap.Int("transactions", len(st.ledger)))
	return &LoopStore{
		state:       st,
		requests:    make(chan *loopRequest, o.queueSize),
		done:        make(chan struct{}),
		stopped:     make(chan struct{}),
		lockTimeout: o.lockTimeout,
		logger:      o.logger,
	}, nil
}

// Start 啟動寫入 loop (非同步)，ctx 取消後處理完剩下的請求再停止
func (l *LoopStore) Start(ctx context.Context) {
	go l.run(ctx)
}

// Stopped loop 處理完剩下的請求後關閉，之後才能關閉 WAL
func (l *LoopStore) Stopped() <-chan struct{} {
	return l.stopped
}

func (l *LoopStore) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			l.closeOnce.Do(func() { close(l.done) })
			l.drain()
			close(l.stopped)
			l.logger.Info("loop store stopped")
			return
		case req := <-l.requests:
			l.process(req)
		}
	}
}

func (l *LoopStore) drain() {
	for {
		select {
		case req := <-l.requests:
			l.process(req)
		default:
			return
		}
	}
}

func (l *LoopStore) process(req *loopRequest) {
	// 呼叫端已放棄 (逾時或取消) 的請求不執行
	if !req.status.CompareAndSwap(reqPending, reqRunning) {
		return
	}
	req.result <- req.run()
}

// submit 把寫入放上輸送帶並等待結果
//
// 在 lockTimeout 內沒有被 loop 取走視為 contention；已被取走的請求一定等到結果。
func (l *LoopStore) submit(ctx context.Context, run func() error) error {
	select {
	case <-l.done:
		return domain.NewStorageError("submit", ErrStoreClosed)
	default:
	}

	req := &loopRequest{run: run, result: make(chan error, 1)}
	timer := time.NewTimer(l.lockTimeout)
	defer timer.Stop()

	select {
	case l.requests <- req:
	case <-timer.C:
		return fmt.Errorf("%w: write queue full for %s", domain.ErrContention, l.lockTimeout)
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", domain.ErrContention, ctx.Err())
	case <-l.done:
		return domain.NewStorageError("submit", ErrStoreClosed)
	}

	select {
	case err := <-req.result:
		return err
	case <-timer.C:
		if req.status.CompareAndSwap(reqPending, reqAbandoned) {
			return fmt.Errorf("%w: write not picked up within %s", domain.ErrContention, l.lockTimeout)
		}
	case <-ctx.Done():
		if req.status.CompareAndSwap(reqPending, reqAbandoned) {
			return fmt.Errorf("%w: %w", domain.ErrContention, ctx.Err())
		}
	case <-l.done:
		// drain 可能還在處理，沒搶到代表 loop 已經在執行
		if req.status.CompareAndSwap(reqPending, reqAbandoned) {
			return domain.NewStorageError("submit", ErrStoreClosed)
		}
	}
	return <-req.result
}

func (l *LoopStore) FindAccount(ctx context.Context, name string) (*domain.Account, error) {
	return l.state.find(name)
}

func (l *LoopStore) AccountsByID(ctx context.Context, ids []int64) (map[int64]*domain.Account, error) {
	return l.state.byID(ids), nil
}

func (l *LoopStore) ListAccounts(ctx context.Context) ([]*domain.Account, error) {
	return l.state.list(), nil
}

func (l *LoopStore) FindTransactionByRef(ctx context.Context, ref uuid.UUID) (*domain.Transaction, error) {
	return l.state.findRef(ref)
}

func (l *LoopStore) QueryTransactions(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	return l.state.query(filter), nil
}

func (l *LoopStore) CreateAccount(ctx context.Context, name string, balance decimal.Decimal) (*domain.Account, error) {
	var acc *domain.Account
	err := l.submit(ctx, func() error {
		var err error
		acc, err = l.state.create(name, balance)
		return err
	})
	if err != nil {
		return nil, err
	}
	return acc, nil
}

func (l *LoopStore) RenameAccount(ctx context.Context, name, newName string) (*domain.Account, error) {
	var acc *domain.Account
	err := l.submit(ctx, func() error {
		cur, err := l.state.find(name)
		if err != nil {
			return err
		}
		acc, err = l.state.rename(cur.ID, name, newName)
		return err
	})
	if err != nil {
		return nil, err
	}
	return acc, nil
}

func (l *LoopStore) DeleteAccount(ctx context.Context, name string) error {
	return l.submit(ctx, func() error {
		cur, err := l.state.find(name)
		if err != nil {
			return err
		}
		return l.state.remove(cur.ID, name)
	})
}

// Atomic 在 loop 上執行 fn，期間沒有其他寫入
func (l *LoopStore) Atomic(ctx context.Context, accountIDs []int64, fn func(tx usecase.Tx) error) error {
	return l.submit(ctx, func() error {
		tx := l.state.begin(accountIDs)
		if err := fn(tx); err != nil {
			return err
		}
		if err := l.state.commit(tx); err != nil {
			logCommitFailure(l.logger, accountIDs, err)
			return err
		}
		return nil
	})
}

var _ usecase.Store = (*LoopStore)(nil)
