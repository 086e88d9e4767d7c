package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JoeShih716/go-transfer-ledger/internal/app/core/domain"
)

// SQLSTATE
const (
	codeUniqueViolation      = "23505"
	codeLockNotAvailable     = "55P03"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

var passthrough = []error{
	domain.ErrSameAccount,
	domain.ErrInvalidAmount,
	domain.ErrAccountNotFound,
	domain.ErrInsufficientFunds,
	domain.ErrAccountAlreadyExists,
	domain.ErrInvalidAccountName,
	domain.ErrContention,
	domain.ErrStorageFailure,
	domain.ErrInvariantViolation,
	domain.ErrTransactionNotFound,
	domain.ErrDuplicateTransaction,
}

// classify 把 pgx 錯誤轉成 domain 錯誤，onDup 為違反唯一鍵時的回傳值
func classify(op string, err error, onDup error) error {
	if err == nil {
		return nil
	}
	for _, target := range passthrough {
		if errors.Is(err, target) {
			return err
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", domain.ErrContention, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeLockNotAvailable, codeSerializationFailure, codeDeadlockDetected:
			return fmt.Errorf("%w: %s", domain.ErrContention, pgErr.Message)
		case codeUniqueViolation:
			if onDup != nil {
				return onDup
			}
		}
	}
	return domain.NewStorageError(op, err)
}
