// Package staged 提供 Store 共用的 usecase.Tx 實作：在原子範圍內暫存餘額與帳本變動，
// 由各 Store 在提交時驗證並寫回。
package staged

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-transfer-ledger/internal/app/core/domain"
)

// Tx 暫存一個原子單位內的變動，提交前對外不可見
type Tx struct {
	scope   map[int64]struct{}
	orig    map[int64]decimal.Decimal
	staged  map[int64]*domain.Account
	entries []*domain.Transaction
}

// New 建立只允許存取 ids 範圍內帳戶的 Tx
func New(ids []int64) *Tx {
	scope := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		scope[id] = struct{}{}
	}
	return &Tx{
		scope:  scope,
		orig:   make(map[int64]decimal.Decimal, len(ids)),
		staged: make(map[int64]*domain.Account, len(ids)),
	}
}

// Load 放入已取得獨占存取的帳戶狀態
func (t *Tx) Load(acc *domain.Account) {
	t.orig[acc.ID] = acc.Balance
	t.staged[acc.ID] = acc.Clone()
}

func (t *Tx) get(id int64) (*domain.Account, error) {
	if _, ok := t.scope[id]; !ok {
		return nil, fmt.Errorf("%w: account %d is outside the atomic scope", domain.ErrInvariantViolation, id)
	}
	acc, ok := t.staged[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return acc, nil
}

func (t *Tx) Account(id int64) (*domain.Account, error) {
	acc, err := t.get(id)
	if err != nil {
		return nil, err
	}
	return acc.Clone(), nil
}

func (t *Tx) AdjustBalances(debitID, creditID int64, amount decimal.Decimal) error {
	if debitID == creditID {
		return domain.ErrSameAccount
	}
	debit, err := t.get(debitID)
	if err != nil {
		return err
	}
	credit, err := t.get(creditID)
	if err != nil {
		return err
	}
	if err := debit.Withdraw(amount); err != nil {
		return err
	}
	return credit.Deposit(amount)
}

func (t *Tx) Append(entry *domain.Transaction) error {
	if entry == nil {
		return fmt.Errorf("%w: nil ledger entry", domain.ErrInvariantViolation)
	}
	t.entries = append(t.entries, entry)
	return nil
}

// Verify 餘額變動必須與帳本紀錄完全相符
func (t *Tx) Verify() error {
	after := make(map[int64]decimal.Decimal, len(t.staged))
	for id, acc := range t.staged {
		after[id] = acc.Balance
	}
	return domain.CheckPostings(t.orig, after, t.entries)
}

// Dirty 回傳餘額有變動的帳戶
func (t *Tx) Dirty() map[int64]*domain.Account {
	out := make(map[int64]*domain.Account)
	for id, acc := range t.staged {
		if !acc.Balance.Equal(t.orig[id]) {
			out[id] = acc
		}
	}
	return out
}

// Entries 本次要寫入的帳本紀錄，寫入後由 Store 填回 ID
func (t *Tx) Entries() []*domain.Transaction {
	return t.entries
}

// Empty 沒有任何變動
func (t *Tx) Empty() bool {
	return len(t.entries) == 0 && len(t.Dirty()) == 0
}
