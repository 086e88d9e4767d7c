package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-transfer-ledger/internal/app/core/adapter/out/staged"
	"github.com/JoeShih716/go-transfer-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-transfer-ledger/internal/app/core/usecase"
)

// DefaultLockTimeout 等待 row lock 的預設上限
const DefaultLockTimeout = 2 * time.Second

// Store 以 Postgres row lock 實現的帳本
//
// Atomic 在一個交易內 SET LOCAL lock_timeout，再依 ID 由小到大 SELECT ... FOR UPDATE。
type Store struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
	logger      *zap.Logger
}

// Option 定義 Store 的配置選項函數
type Option func(*Store)

// WithLockTimeout 設定鎖等待上限
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

func NewStore(pool *pgxpool.Pool, opts ...Option) *Store {
	s := &Store{
		pool:        pool,
		lockTimeout: DefaultLockTimeout,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Migrate 建立 accounts / transactions 表
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return domain.NewStorageError("migrate", err)
	}
	return nil
}

// rowScanner pgx.Row 與 pgx.Rows 共用
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*domain.Account, error) {
	var (
		acc     domain.Account
		balance string
	)
	if err := row.Scan(&acc.ID, &acc.Name, &balance, &acc.CreatedAt); err != nil {
		return nil, err
	}
	d, err := decimal.NewFromString(balance)
	if err != nil {
		return nil, fmt.Errorf("account %d balance %q: %w", acc.ID, balance, err)
	}
	acc.Balance = domain.Normalize(d)
	acc.CreatedAt = acc.CreatedAt.UTC()
	return &acc, nil
}

func scanTransaction(row rowScanner) (domain.Transaction, error) {
	var (
		tran   domain.Transaction
		ref    string
		amount string
	)
	if err := row.Scan(&tran.ID, &ref, &tran.FromAccountID, &tran.ToAccountID, &amount, &tran.Timestamp); err != nil {
		return tran, err
	}
	var err error
	if tran.RefID, err = uuid.Parse(ref); err != nil {
		return tran, fmt.Errorf("transaction %d ref_id %q: %w", tran.ID, ref, err)
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return tran, fmt.Errorf("transaction %d amount %q: %w", tran.ID, amount, err)
	}
	tran.Amount = domain.Normalize(d)
	tran.Timestamp = tran.Timestamp.UTC()
	return tran, nil
}

func (s *Store) FindAccount(ctx context.Context, name string) (*domain.Account, error) {
	acc, err := scanAccount(s.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE name = $1`, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, classify("find account", err, nil)
	}
	return acc, nil
}

func (s *Store) queryAccounts(ctx context.Context, q pgx.Tx, sql string, args ...any) ([]*domain.Account, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if q != nil {
		rows, err = q.Query(ctx, sql, args...)
	} else {
		rows, err = s.pool.Query(ctx, sql, args...)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]*domain.Account, 0)
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, acc)
	}
	return out, rows.Err()
}

func (s *Store) AccountsByID(ctx context.Context, ids []int64) (map[int64]*domain.Account, error) {
	out := make(map[int64]*domain.Account, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	accounts, err := s.queryAccounts(ctx, nil,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, classify("accounts by id", err, nil)
	}
	for _, acc := range accounts {
		out[acc.ID] = acc
	}
	return out, nil
}

func (s *Store) ListAccounts(ctx context.Context) ([]*domain.Account, error) {
	accounts, err := s.queryAccounts(ctx, nil, `SELECT `+accountColumns+` FROM accounts ORDER BY id`)
	if err != nil {
		return nil, classify("list accounts", err, nil)
	}
	return accounts, nil
}

func (s *Store) FindTransactionByRef(ctx context.Context, ref uuid.UUID) (*domain.Transaction, error) {
	tran, err := scanTransaction(s.pool.QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE ref_id = $1::uuid`, ref.String()))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTransactionNotFound
	}
	if err != nil {
		return nil, classify("find transaction", err, nil)
	}
	return &tran, nil
}

func (s *Store) QueryTransactions(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	// NULL 代表不過濾
	rows, err := s.pool.Query(ctx, `SELECT `+transactionColumns+` FROM transactions
		WHERE ($1::bigint IS NULL OR from_account_id = $1)
		  AND ($2::bigint IS NULL OR to_account_id = $2)
		ORDER BY id`, filter.FromAccountID, filter.ToAccountID)
	if err != nil {
		return nil, classify("query transactions", err, nil)
	}
	defer rows.Close()
	out := make([]domain.Transaction, 0)
	for rows.Next() {
		tran, err := scanTransaction(rows)
		if err != nil {
			return nil, classify("query transactions", err, nil)
		}
		out = append(out, tran)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("query transactions", err, nil)
	}
	return out, nil
}

func (s *Store) CreateAccount(ctx context.Context, name string, balance decimal.Decimal) (*domain.Account, error) {
	acc, err := scanAccount(s.pool.QueryRow(ctx,
		`INSERT INTO accounts (name, balance, created_at) VALUES ($1, $2::numeric, $3)
		 RETURNING `+accountColumns,
		name, domain.FormatAmount(domain.Normalize(balance)), time.Now().UTC()))
	if err != nil {
		return nil, classify("create account", err, domain.ErrAccountAlreadyExists)
	}
	return acc, nil
}

func (s *Store) RenameAccount(ctx context.Context, name, newName string) (*domain.Account, error) {
	var out *domain.Account
	err := s.transaction(ctx, func(tx pgx.Tx) error {
		acc, err := lockByName(ctx, tx, name)
		if err != nil {
			return err
		}
		if name != newName {
			if _, err := tx.Exec(ctx, `UPDATE accounts SET name = $1 WHERE id = $2`, newName, acc.ID); err != nil {
				return err
			}
			acc.Name = newName
		}
		out = acc
		return nil
	})
	if err != nil {
		return nil, classify("rename account", err, domain.ErrAccountAlreadyExists)
	}
	return out, nil
}

func (s *Store) DeleteAccount(ctx context.Context, name string) error {
	err := s.transaction(ctx, func(tx pgx.Tx) error {
		acc, err := lockByName(ctx, tx, name)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, acc.ID)
		return err
	})
	return classify("delete account", err, nil)
}

func lockByName(ctx context.Context, tx pgx.Tx, name string) (*domain.Account, error) {
	acc, err := scanAccount(tx.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE name = $1 FOR UPDATE`, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	return acc, err
}

// transaction 開交易並設定本交易的 lock_timeout，fn 回傳錯誤即 Rollback
func (s *Store) transaction(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// SET LOCAL 不接受參數綁定
	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())); err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Atomic 依 ID 由小到大鎖住帳戶後執行 fn，fn 成功才寫回餘額與帳本
func (s *Store) Atomic(ctx context.Context, accountIDs []int64, fn func(tx usecase.Tx) error) error {
	ids := domain.LockOrder(accountIDs...)
	err := s.transaction(ctx, func(tx pgx.Tx) error {
		accounts, err := s.queryAccounts(ctx, tx,
			`SELECT `+accountColumns+` FROM accounts WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids)
		if err != nil {
			return err
		}

		stx := staged.New(ids)
		for _, acc := range accounts {
			stx.Load(acc)
		}
		if err := fn(stx); err != nil {
			return err
		}
		if err := stx.Verify(); err != nil {
			return err
		}

		for id, acc := range stx.Dirty() {
			if _, err := tx.Exec(ctx, `UPDATE accounts SET balance = $1::numeric WHERE id = $2`,
				domain.FormatAmount(acc.Balance), id); err != nil {
				return err
			}
		}
		for _, entry := range stx.Entries() {
			err := tx.QueryRow(ctx,
				`INSERT INTO transactions (ref_id, from_account_id, to_account_id, amount, created_at)
				 VALUES ($1::uuid, $2, $3, $4::numeric, $5) RETURNING id`,
				entry.RefID.String(), entry.FromAccountID, entry.ToAccountID,
				domain.FormatAmount(entry.Amount), entry.Timestamp,
			).Scan(&entry.ID)
			if err != nil {
				return classify("append transaction", err, domain.ErrDuplicateTransaction)
			}
		}
		return nil
	})
	if err != nil {
		err = classify("atomic", err, nil)
		if errors.Is(err, domain.ErrStorageFailure) || errors.Is(err, domain.ErrInvariantViolation) {
			s.logger.Error("postgres commit failed", zap.Int64s("account_ids", ids), zap.Error(err))
		}
		return err
	}
	return nil
}

var _ usecase.Store = (*Store)(nil)
