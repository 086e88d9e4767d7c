package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSameAccount 轉出與轉入帳戶相同
	ErrSameAccount = errors.New("from and to accounts cannot be the same")

	// ErrInvalidAmount 金額缺漏、非數字，或截位後不大於 0
	ErrInvalidAmount = errors.New("amount must be a positive number")

	// ErrInsufficientFunds 餘額不足
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrAccountNotFound 找不到帳戶
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountAlreadyExists 帳戶已存在
	ErrAccountAlreadyExists = errors.New("account already exists")

	// ErrInvalidAccountName 帳戶名稱空白
	ErrInvalidAccountName = errors.New("account name must not be blank")

	// ErrInvalidReference 冪等用的 RefID 不是合法 UUID
	ErrInvalidReference = errors.New("ref id must be a valid uuid")

	// ErrContention 在時限內無法取得帳戶的獨占存取，可整筆重試
	ErrContention = errors.New("account is busy, try again")

	// ErrStorageFailure 底層儲存無法完成提交
	ErrStorageFailure = errors.New("storage failure")

	// ErrInvariantViolation 帳本與餘額不一致，必須中止請求
	ErrInvariantViolation = errors.New("ledger invariant violated")

	// ErrTransactionNotFound 查無交易紀錄
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrDuplicateTransaction 相同 RefID 的交易已提交
	ErrDuplicateTransaction = errors.New("transaction already processed")
)

// Reason 是對外回報的拒絕原因，HTTP/gRPC 層依此轉換狀態碼
type Reason string

const (
	ReasonNone              Reason = ""
	ReasonSameAccount       Reason = "sameAccount"
	ReasonInvalidAmount     Reason = "invalidAmount"
	ReasonAccountNotFound   Reason = "accountNotFound"
	ReasonInsufficientFunds Reason = "insufficientFunds"
	ReasonContention        Reason = "contention"
	ReasonStorageFailure    Reason = "storageFailure"
	ReasonAccountExists     Reason = "accountExists"
	ReasonInvalidName       Reason = "invalidName"
	ReasonInvalidReference  Reason = "invalidReference"
)

// Retryable 只有 contention 可以整筆重試
func (r Reason) Retryable() bool {
	return r == ReasonContention
}

// Business 業務拒絕：呼叫端的錯，不會有任何狀態變更
func (r Reason) Business() bool {
	switch r {
	case ReasonSameAccount, ReasonInvalidAmount, ReasonAccountNotFound,
		ReasonInsufficientFunds, ReasonAccountExists, ReasonInvalidName, ReasonInvalidReference:
		return true
	}
	return false
}

// AccountNotFoundError 指出是哪一邊的帳戶不存在
type AccountNotFoundError struct {
	// Which: "from" / "to"，帳戶 CRUD 時為空
	Which string
	Name  string
}

func (e *AccountNotFoundError) Error() string {
	if e.Which == "" {
		return fmt.Sprintf("account %q not found", e.Name)
	}
	return fmt.Sprintf("%s account %q not found", e.Which, e.Name)
}

func (e *AccountNotFoundError) Is(target error) bool {
	return target == ErrAccountNotFound
}

// StorageError 包裝底層儲存錯誤，與業務拒絕分開
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrStorageFailure.Error(), e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorageFailure
}

// NewStorageError 已經分類過的錯誤原樣回傳，避免業務錯誤被包成技術錯誤
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	if ReasonOf(err) != ReasonStorageFailure || errors.Is(err, ErrStorageFailure) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// ReasonOf 把任意錯誤歸類成對外的拒絕原因，未知錯誤一律視為 storageFailure
func ReasonOf(err error) Reason {
	switch {
	case err == nil:
		return ReasonNone
	case errors.Is(err, ErrSameAccount):
		return ReasonSameAccount
	case errors.Is(err, ErrInvalidAmount):
		return ReasonInvalidAmount
	case errors.Is(err, ErrAccountNotFound):
		return ReasonAccountNotFound
	case errors.Is(err, ErrInsufficientFunds):
		return ReasonInsufficientFunds
	case errors.Is(err, ErrContention):
		return ReasonContention
	case errors.Is(err, ErrAccountAlreadyExists):
		return ReasonAccountExists
	case errors.Is(err, ErrInvalidAccountName):
		return ReasonInvalidName
	case errors.Is(err, ErrInvalidReference):
		return ReasonInvalidReference
	default:
		return ReasonStorageFailure
	}
}

// WhichOf 回傳 accountNotFound 的來源 ("from"/"to")
func WhichOf(err error) string {
	var nf *AccountNotFoundError
	if errors.As(err, &nf) {
		return nf.Which
	}
	return ""
}
