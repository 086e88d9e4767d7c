package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DeletedAccountName 已刪除帳戶在查詢結果中的名稱
const DeletedAccountName = "<deleted>"

// Transaction 帳本紀錄，建立後不可變更也不會刪除
type Transaction struct {
	// ID: 依提交順序遞增 (1, 2, 3...)
	ID int64 `json:"id"`
	// RefID: 外部追蹤號 (UUID)，用於冪等
	RefID uuid.UUID `json:"ref_id"`
	// FromAccountID, ToAccountID: 帳戶 ID，記錄的是 ID 而不是名稱
	FromAccountID int64 `json:"from_account_id"`
	ToAccountID   int64 `json:"to_account_id"`
	// Amount: 兩位小數，> 0
	Amount decimal.Decimal `json:"amount"`
	// Timestamp: 提交當下由引擎寫入，不接受外部指定
	Timestamp time.Time `json:"timestamp"`
}

// LockOrder 不論轉帳方向，一律由小到大排序並去除重複
func LockOrder(ids ...int64) []int64 {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		i := len(out)
		for i > 0 && out[i-1] > id {
			i--
		}
		if i > 0 && out[i-1] == id {
			continue
		}
		out = append(out, 0)
		copy(out[i+1:], out[i:])
		out[i] = id
	}
	return out
}

// TransferRequest 轉帳請求，Amount 保留原始字串由引擎解析
type TransferRequest struct {
	RefID           uuid.UUID
	FromAccountName string
	ToAccountName   string
	Amount          string
}

// TransactionFilter 帳本查詢條件，nil 代表不過濾
type TransactionFilter struct {
	FromAccountID *int64
	ToAccountID   *int64
}

// Match 判斷紀錄是否符合條件
func (f TransactionFilter) Match(t *Transaction) bool {
	if f.FromAccountID != nil && *f.FromAccountID != t.FromAccountID {
		return false
	}
	if f.ToAccountID != nil && *f.ToAccountID != t.ToAccountID {
		return false
	}
	return true
}

// TransactionView 查詢結果，名稱以查詢當下的帳戶名稱解析
type TransactionView struct {
	ID              int64
	RefID           uuid.UUID
	FromAccountName string
	ToAccountName   string
	Amount          decimal.Decimal
	Timestamp       time.Time
}
