package usecase

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-transfer-ledger/internal/app/core/domain"
)

// Store 是帳戶與帳本的儲存介面 (Driven Port)
//
// 所有餘額變動只能透過 Atomic 進行；其餘方法都是單次讀取或帳戶 CRUD
type Store interface {
	// FindAccount 以名稱查詢帳戶，找不到回傳 domain.ErrAccountNotFound
	FindAccount(ctx context.Context, name string) (*domain.Account, error)
	// AccountsByID 批次查詢，已刪除的帳戶不會出現在結果中
	AccountsByID(ctx context.Context, ids []int64) (map[int64]*domain.Account, error)
	// ListAccounts 依 ID 排序列出所有帳戶
	ListAccounts(ctx context.Context) ([]*domain.Account, error)

	// FindTransactionByRef 依外部追蹤號查詢，找不到回傳 domain.ErrTransactionNotFound
	FindTransactionByRef(ctx context.Context, ref uuid.UUID) (*domain.Transaction, error)
	// QueryTransactions 依提交順序回傳符合條件的紀錄
	QueryTransactions(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error)

	// CreateAccount 名稱重複回傳 domain.ErrAccountAlreadyExists
	CreateAccount(ctx context.Context, name string, balance decimal.Decimal) (*domain.Account, error)
	// RenameAccount 需取得帳戶的獨占存取，不會與進行中的轉帳交錯
	RenameAccount(ctx context.Context, name, newName string) (*domain.Account, error)
	// DeleteAccount 帳本紀錄保留，查詢時名稱顯示為 domain.DeletedAccountName
	DeleteAccount(ctx context.Context, name string) error

	// Atomic 依 ID 由小到大取得帳戶的獨占存取後執行 fn
	//
	// fn 內的扣款、入帳、帳本寫入會一起提交，fn 回傳錯誤或提交失敗時全部回滾。
	// 在時限內拿不到存取權回傳 domain.ErrContention。
	Atomic(ctx context.Context, accountIDs []int64, fn func(tx Tx) error) error
}

// Tx 只在 Store.Atomic 的範圍內有效
type Tx interface {
	// Account 取得已鎖定帳戶的目前狀態 (含本次已暫存的變動)
	Account(id int64) (*domain.Account, error)
	// AdjustBalances 同時扣款與入帳，扣款方餘額不足回傳 domain.ErrInsufficientFunds
	AdjustBalances(debitID, creditID int64, amount decimal.Decimal) error
	// Append 寫入帳本，提交後 entry.ID 會被填入
	Append(entry *domain.Transaction) error
}
