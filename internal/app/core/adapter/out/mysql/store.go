package mysql

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/JoeShih716/go-transfer-ledger/internal/app/core/adapter/out/staged"
	"github.com/JoeShih716/go-transfer-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-transfer-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-transfer-ledger/pkg/mysql"
)

// DefaultLockTimeout 等待 row lock 的預設上限
const DefaultLockTimeout = 2 * time.Second

// Store 以 MySQL row lock 實現的帳本
//
// Atomic 在一個 DB Transaction 內依 ID 由小到大 SELECT ... FOR UPDATE，
// 鎖等待超過 innodb_lock_wait_timeout 或遇到 deadlock 回傳 domain.ErrContention。
type Store struct {
	db          *gorm.DB
	lockTimeout time.Duration
	logger      *zap.Logger
}

// Option 定義 Store 的配置選項函數
type Option func(*Store)

// WithLockTimeout 設定鎖等待上限，MySQL 以秒為單位，不足一秒以一秒計
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.lockTimeout = d
		}
	}
}

// WithLogger 設定 logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewStore(client *mysql.Client, opts ...Option) *Store {
	s := &Store{
		db:          client.DB(),
		lockTimeout: DefaultLockTimeout,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Migrate 建立或更新 accounts / transactions 表
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&accountRow{}, &transactionRow{}); err != nil {
		return domain.NewStorageError("migrate", err)
	}
	return nil
}

func (s *Store) lockWaitSeconds() int {
	return int(math.Max(1, math.Ceil(s.lockTimeout.Seconds())))
}

func (s *Store) FindAccount(ctx context.Context, name string) (*domain.Account, error) {
	var row accountRow
	err := s.db.WithContext(ctx).Where("name = ?", name).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, classify("find account", err, nil)
	}
	return row.toDomain(), nil
}

func (s *Store) AccountsByID(ctx context.Context, ids []int64) (map[int64]*domain.Account, error) {
	out := make(map[int64]*domain.Account, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []accountRow
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, classify("accounts by id", err, nil)
	}
	for i := range rows {
		out[rows[i].ID] = rows[i].toDomain()
	}
	return out, nil
}

func (s *Store) ListAccounts(ctx context.Context) ([]*domain.Account, error) {
	var rows []accountRow
	if err := s.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, classify("list accounts", err, nil)
	}
	out := make([]*domain.Account, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

func (s *Store) FindTransactionByRef(ctx context.Context, ref uuid.UUID) (*domain.Transaction, error) {
	var row transactionRow
	err := s.db.WithContext(ctx).Where("ref_id = ?", ref[:]).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrTransactionNotFound
	}
	if err != nil {
		return nil, classify("find transaction", err, nil)
	}
	tran := row.toDomain()
	return &tran, nil
}

func (s *Store) QueryTransactions(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	q := s.db.WithContext(ctx).Order("id")
	if filter.FromAccountID != nil {
		q = q.Where("from_account_id = ?", *filter.FromAccountID)
	}
	if filter.ToAccountID != nil {
		q = q.Where("to_account_id = ?", *filter.ToAccountID)
	}
	var rows []transactionRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, classify("query transactions", err, nil)
	}
	out := make([]domain.Transaction, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

func (s *Store) CreateAccount(ctx context.Context, name string, balance decimal.Decimal) (*domain.Account, error) {
	row := accountRow{Name: name, Balance: domain.Normalize(balance), CreatedAt: time.Now().UTC()}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, classify("create account", err, domain.ErrAccountAlreadyExists)
	}
	return row.toDomain(), nil
}

func (s *Store) RenameAccount(ctx context.Context, name, newName string) (*domain.Account, error) {
	var out *domain.Account
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		row, err := lockByName(tx, name)
		if err != nil {
			return err
		}
		if name != newName {
			if err := tx.Model(&accountRow{}).Where("id = ?", row.ID).Update("name", newName).Error; err != nil {
				return err
			}
			row.Name = newName
		}
		out = row.toDomain()
		return nil
	})
	if err != nil {
		return nil, classify("rename account", err, domain.ErrAccountAlreadyExists)
	}
	return out, nil
}

func (s *Store) DeleteAccount(ctx context.Context, name string) error {
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		row, err := lockByName(tx, name)
		if err != nil {
			return err
		}
		return tx.Delete(&accountRow{}, row.ID).Error
	})
	return classify("delete account", err, nil)
}

func lockByName(tx *gorm.DB, name string) (*accountRow, error) {
	var row accountRow
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("name = ?", name).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// transaction 開 DB Transaction 並設定本 session 的鎖等待上限
func (s *Store) transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SET SESSION innodb_lock_wait_timeout = ?", s.lockWaitSeconds()).Error; err != nil {
			return err
		}
		return fn(tx)
	})
}

// Atomic 依 ID 由小到大鎖住帳戶後執行 fn，fn 成功才寫回餘額與帳本
func (s *Store) Atomic(ctx context.Context, accountIDs []int64, fn func(tx usecase.Tx) error) error {
	ids := domain.LockOrder(accountIDs...)
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		var rows []accountRow
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id IN ?", ids).
			Order("id").
			Find(&rows).Error; err != nil {
			return err
		}

		stx := staged.New(ids)
		for i := range rows {
			stx.Load(rows[i].toDomain())
		}
		if err := fn(stx); err != nil {
			return err
		}
		if err := stx.Verify(); err != nil {
			return err
		}

		for id, acc := range stx.Dirty() {
			if err := tx.Model(&accountRow{}).Where("id = ?", id).Update("balance", acc.Balance).Error; err != nil {
				return err
			}
		}
		for _, entry := range stx.Entries() {
			row := newTransactionRow(entry)
			if err := tx.Create(row).Error; err != nil {
				return classify("append transaction", err, domain.ErrDuplicateTransaction)
			}
			entry.ID = row.ID
		}
		return nil
	})
	if err != nil {
		err = classify("atomic", err, nil)
		if errors.Is(err, domain.ErrStorageFailure) || errors.Is(err, domain.ErrInvariantViolation) {
			s.logger.Error("mysql commit failed", zap.Int64s("account_ids", ids), zap.Error(err))
		}
		return err
	}
	return nil
}

var _ usecase.Store = (*Store)(nil)
