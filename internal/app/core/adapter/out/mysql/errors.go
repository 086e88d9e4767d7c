package mysql

import (
	"context"
	"errors"
	"fmt"

	driver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"github.com/JoeShih716/go-transfer-ledger/internal/app/core/domain"
)

// MySQL error numbers
const (
	errDupEntry        = 1062
	errLockWaitTimeout = 1205
	errDeadlock        = 1213
)

// passthrough 已經是 domain 語意的錯誤直接往上丟
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

// classify 把 driver 錯誤轉成 domain 錯誤
//
// 參數:
//
//	op: 操作名稱，放進 StorageError
//	err: 原始錯誤
//	onDup: 違反唯一鍵時要回傳的錯誤
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
	var myErr *driver.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case errLockWaitTimeout, errDeadlock:
			return fmt.Errorf("%w: %s", domain.ErrContention, myErr.Message)
		case errDupEntry:
			if onDup != nil {
				return onDup
			}
		}
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) && onDup != nil {
		return onDup
	}
	return domain.NewStorageError(op, err)
}
