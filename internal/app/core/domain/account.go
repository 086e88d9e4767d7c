package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Account 帳戶
//
// Balance 只能由轉帳引擎在原子範圍內變更，Name 只能透過改名變更
type Account struct {
	ID        int64
	Name      string
	Balance   decimal.Decimal
	CreatedAt time.Time
}

// Clone 回傳值拷貝，避免呼叫端改到 Store 內部狀態
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	cp := *a
	return &cp
}

// Withdraw 扣款，餘額不足時不變更
func (a *Account) Withdraw(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if a.Balance.LessThan(amount) {
		return ErrInsufficientFunds
	}
	a.Balance = Normalize(a.Balance.Sub(amount))
	return nil
}

// Deposit 入帳
func (a *Account) Deposit(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	a.Balance = Normalize(a.Balance.Add(amount))
	return nil
}

// NormalizeName 去除前後空白，空白名稱回傳 ErrInvalidAccountName
func NormalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrInvalidAccountName
	}
	return name, nil
}
