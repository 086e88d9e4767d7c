package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-transfer-ledger/internal/app/core/domain"
)

const (
	DefaultMaxAttempts = 3
	DefaultBackoffBase = 10 * time.Millisecond
)

// TransferEngine 是搬動金額的唯一入口
//
// 流程: Validate (不加鎖) -> Admit (鎖內重新檢查餘額) -> Commit (扣款/入帳/記帳一起提交)
type TransferEngine struct {
	store       Store
	logger      *zap.Logger
	clock       func() time.Time
	maxAttempts int
	backoffBase time.Duration
}

// EngineOption 定義 TransferEngine 的配置選項函數
type EngineOption func(*TransferEngine)

// WithLogger 設定 logger，預設 zap.NewNop()
func WithLogger(logger *zap.Logger) EngineOption {
	return func(e *TransferEngine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClock 設定提交時間來源 (測試用)
func WithClock(clock func() time.Time) EngineOption {
	return func(e *TransferEngine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithRetry 設定 contention 時的重試次數 (含第一次) 與退避基準
func WithRetry(maxAttempts int, base time.Duration) EngineOption {
	return func(e *TransferEngine) {
		if maxAttempts > 0 {
			e.maxAttempts = maxAttempts
		}
		if base >= 0 {
			e.backoffBase = base
		}
	}
}

func NewTransferEngine(store Store, opts ...EngineOption) *TransferEngine {
	e := &TransferEngine{
		store:       store,
		logger:      zap.NewNop(),
		clock:       func() time.Time { return time.Now().UTC() },
		maxAttempts: DefaultMaxAttempts,
		backoffBase: DefaultBackoffBase,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Transfer 執行一筆轉帳
//
// 參數:
//
//	ctx: 上下文
//	req: 轉帳請求，RefID 為空時自動產生
//
// 回傳:
//
//	*domain.Transaction: 已提交的帳本紀錄 (RefID 重複時回傳既有紀錄)
//	error: 業務拒絕、domain.ErrContention 或 *domain.StorageError
func (e *TransferEngine) Transfer(ctx context.Context, req domain.TransferRequest) (*domain.Transaction, error) {
	if req.RefID == uuid.Nil {
		req.RefID = uuid.New()
	} else if existing, err := e.store.FindTransactionByRef(ctx, req.RefID); err == nil {
		e.logger.Info("transfer already processed", zap.Stringer("ref_id", req.RefID), zap.Int64("transaction_id", existing.ID))
		return existing, nil
	} else if !errors.Is(err, domain.ErrTransactionNotFound) {
		return nil, e.reject(req, domain.NewStorageError("find transaction", err))
	}

	// 1. Validate: 不取任何鎖
	from, to, amount, err := e.validate(ctx, req)
	if err != nil {
		return nil, e.reject(req, err)
	}

	// 2~3. Admit + Commit，contention 時整段重試
	var tran *domain.Transaction
	for attempt := 0; ; attempt++ {
		tran, err = e.commit(ctx, req, from, to, amount)
		if err == nil || !errors.Is(err, domain.ErrContention) || attempt+1 >= e.maxAttempts {
			break
		}
		delay := backoffDelay(e.backoffBase, attempt)
		e.logger.Debug("transfer contention, retrying",
			zap.Stringer("ref_id", req.RefID), zap.Int("attempt", attempt+1), zap.Duration("delay", delay))
		if waitErr := sleepContext(ctx, delay); waitErr != nil {
			err = fmt.Errorf("%w: %v", domain.ErrContention, waitErr)
			break
		}
	}

	switch {
	case err == nil:
	case errors.Is(err, domain.ErrDuplicateTransaction):
		// 同一個 RefID 在驗證後被另一個請求搶先提交
		existing, findErr := e.store.FindTransactionByRef(ctx, req.RefID)
		if findErr != nil {
			return nil, e.reject(req, domain.NewStorageError("find transaction", findErr))
		}
		return existing, nil
	default:
		return nil, e.reject(req, err)
	}

	if tran.ID <= 0 {
		// 提交成功卻沒有帳本 ID，代表 Store 實作有問題，不能回報成功
		return nil, e.reject(req, fmt.Errorf("%w: committed transfer has no ledger id", domain.ErrInvariantViolation))
	}

	e.logger.Info("transfer committed",
		zap.Int64("transaction_id", tran.ID),
		zap.Stringer("ref_id", tran.RefID),
		zap.String("from", from.Name),
		zap.String("to", to.Name),
		zap.String("amount", domain.FormatAmount(tran.Amount)),
	)
	return tran, nil
}

func (e *TransferEngine) validate(ctx context.Context, req domain.TransferRequest) (from, to *domain.Account, amount decimal.Decimal, err error) {
	fromName := strings.TrimSpace(req.FromAccountName)
	toName := strings.TrimSpace(req.ToAccountName)
	if fromName == "" {
		return nil, nil, decimal.Zero, &domain.AccountNotFoundError{Which: "from", Name: fromName}
	}
	if toName == "" {
		return nil, nil, decimal.Zero, &domain.AccountNotFoundError{Which: "to", Name: toName}
	}
	if fromName == toName {
		return nil, nil, decimal.Zero, domain.ErrSameAccount
	}
	amount, err = domain.ParseAmount(req.Amount)
	if err != nil {
		return nil, nil, decimal.Zero, err
	}
	from, err = e.findAccount(ctx, "from", fromName)
	if err != nil {
		return nil, nil, decimal.Zero, err
	}
	to, err = e.findAccount(ctx, "to", toName)
	if err != nil {
		return nil, nil, decimal.Zero, err
	}
	return from, to, amount, nil
}

func (e *TransferEngine) findAccount(ctx context.Context, which, name string) (*domain.Account, error) {
	acc, err := e.store.FindAccount(ctx, name)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return nil, &domain.AccountNotFoundError{Which: which, Name: name}
	}
	if err != nil {
		return nil, domain.NewStorageError("find account", err)
	}
	return acc, nil
}

// commit 在 Store 的原子範圍內重新檢查餘額並提交
func (e *TransferEngine) commit(ctx context.Context, req domain.TransferRequest, from, to *domain.Account, amount decimal.Decimal) (*domain.Transaction, error) {
	var tran *domain.Transaction
	err := e.store.Atomic(ctx, domain.LockOrder(from.ID, to.ID), func(tx Tx) error {
		// 驗證之後帳戶可能被刪除
		fromAcc, err := tx.Account(from.ID)
		if errors.Is(err, domain.ErrAccountNotFound) {
			return &domain.AccountNotFoundError{Which: "from", Name: from.Name}
		}
		if err != nil {
			return err
		}
		if _, err := tx.Account(to.ID); errors.Is(err, domain.ErrAccountNotFound) {
			return &domain.AccountNotFoundError{Which: "to", Name: to.Name}
		} else if err != nil {
			return err
		}

		// Admit: 以鎖內的餘額為準，不是驗證時讀到的餘額
		if fromAcc.Balance.LessThan(amount) {
			return domain.ErrInsufficientFunds
		}
		if err := tx.AdjustBalances(from.ID, to.ID, amount); err != nil {
			return err
		}
		tran = &domain.Transaction{
			RefID:         req.RefID,
			FromAccountID: from.ID,
			ToAccountID:   to.ID,
			Amount:        amount,
			Timestamp:     e.clock(),
		}
		return tx.Append(tran)
	})
	if err != nil {
		return nil, err
	}
	return tran, nil
}

// reject 記錄拒絕原因並把未分類的錯誤包成 StorageError
func (e *TransferEngine) reject(req domain.TransferRequest, err error) error {
	reason := domain.ReasonOf(err)
	fields := []zap.Field{
		zap.Stringer("ref_id", req.RefID),
		zap.String("from", req.FromAccountName),
		zap.String("to", req.ToAccountName),
		zap.String("amount", req.Amount),
		zap.String("reason", string(reason)),
		zap.Error(err),
	}
	switch {
	case errors.Is(err, domain.ErrInvariantViolation):
		e.logger.Error("transfer aborted: invariant violation", fields...)
		return err
	case reason.Business():
		e.logger.Info("transfer rejected", fields...)
		return err
	case reason.Retryable():
		e.logger.Warn("transfer contention", fields...)
		return err
	default:
		e.logger.Error("transfer failed", fields...)
		return domain.NewStorageError("transfer", err)
	}
}
