package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-transfer-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-transfer-ledger/internal/app/core/usecase"
)

// MutexStore 以每個帳戶一把鎖實現的記憶體帳本
//
// 結構:
//
//	state: 帳戶與帳本資料，提交時持有寫鎖
//	locks: 帳戶 ID 對應一個容量 1 的 channel，放得進去代表取得鎖
//	lockTimeout: 取鎖等待上限，逾時回傳 domain.ErrContention
type MutexStore struct {
	state       *state
	locksMu     sync.Mutex
	locks       map[int64]chan struct{}
	lockTimeout time.Duration
	logger      *zap.Logger
}

// NewMutexStore 建立 MutexStore 並從 WAL 恢復狀態
//
// 參數:
//
//	journal: Write-Ahead Log，nil 代表不持久化
//	opts: 配置選項
//
// 回傳:
//
//	*MutexStore: MutexStore 實例
//	error: WAL 恢復失敗
func NewMutexStore(journal Journal, opts ...Option) (*MutexStore, error) {
	o := buildOptions(opts)
	st := newState(journal)
	st.now = o.now
	if err := st.recover(); err != nil {
		return nil, fmt.Errorf("recover from wal: %w", err)
	}
	o.logger.Info("mutex store ready",
		zap.Int("accounts", len(st.accounts)), zap.Int("transactions", len(st.ledger)))
	return &MutexStore{
		state:       st,
		locks:       make(map[int64]chan struct{}),
		lockTimeout: o.lockTimeout,
		logger:      o.logger,
	}, nil
}

func (m *MutexStore) lockFor(id int64) chan struct{} {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	ch, ok := m.locks[id]
	if !ok {
		ch = make(chan struct{}, 1)
		m.locks[id] = ch
	}
	return ch
}

// acquire 依 ID 由小到大取鎖，整組共用同一個逾時
func (m *MutexStore) acquire(ctx context.Context, ids []int64) (func(), error) {
	ordered := domain.LockOrder(ids...)
	held := make([]chan struct{}, 0, len(ordered))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			<-held[i]
		}
	}

	timer := time.NewTimer(m.lockTimeout)
	defer timer.Stop()
	for _, id := range ordered {
		ch := m.lockFor(id)
		select {
		case ch <- struct{}{}:
			held = append(held, ch)
		case <-timer.C:
			release()
			return nil, fmt.Errorf("%w: lock wait exceeded %s", domain.ErrContention, m.lockTimeout)
		case <-ctx.Done():
			release()
			return nil, fmt.Errorf("%w: %w", domain.ErrContention, ctx.Err())
		}
	}
	return release, nil
}

func (m *MutexStore) FindAccount(ctx context.Context, name string) (*domain.Account, error) {
	return m.state.find(name)
}

func (m *MutexStore) AccountsByID(ctx context.Context, ids []int64) (map[int64]*domain.Account, error) {
	return m.state.byID(ids), nil
}

func (m *MutexStore) ListAccounts(ctx context.Context) ([]*domain.Account, error) {
	return m.state.list(), nil
}

func (m *MutexStore) FindTransactionByRef(ctx context.Context, ref uuid.UUID) (*domain.Transaction, error) {
	return m.state.findRef(ref)
}

func (m *MutexStore) QueryTransactions(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	return m.state.query(filter), nil
}

func (m *MutexStore) CreateAccount(ctx context.Context, name string, balance decimal.Decimal) (*domain.Account, error) {
	return m.state.create(name, balance)
}

func (m *MutexStore) RenameAccount(ctx context.Context, name, newName string) (*domain.Account, error) {
	acc, err := m.state.find(name)
	if err != nil {
		return nil, err
	}
	release, err := m.acquire(ctx, []int64{acc.ID})
	if err != nil {
		return nil, err
	}
	defer release()
	return m.state.rename(acc.ID, name, newName)
}

func (m *MutexStore) DeleteAccount(ctx context.Context, name string) error {
	acc, err := m.state.find(name)
	if err != nil {
		return err
	}
	release, err := m.acquire(ctx, []int64{acc.ID})
	if err != nil {
		return err
	}
	defer release()
	return m.state.remove(acc.ID, name)
}

// Atomic 取得所有帳戶鎖後執行 fn，fn 成功才提交暫存的變動
func (m *MutexStore) Atomic(ctx context.Context, accountIDs []int64, fn func(tx usecase.Tx) error) error {
	release, err := m.acquire(ctx, accountIDs)
	if err != nil {
		return err
	}
	defer release()

	tx := m.state.begin(accountIDs)
	if err := fn(tx); err != nil {
		return err
	}
	if err := m.state.commit(tx); err != nil {
		logCommitFailure(m.logger, accountIDs, err)
		return err
	}
	return nil
}

var _ usecase.Store = (*MutexStore)(nil)
