package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// CheckPostings 確認一個原子單位內的餘額變動與帳本紀錄完全相符
//
// 參數:
//
//	before: 取得存取權時的餘額
//	after: 準備提交的餘額
//	entries: 本次要寫入的帳本紀錄
//
// 回傳:
//
//	error: 不相符時回傳 ErrInvariantViolation，整筆必須中止
func CheckPostings(before, after map[int64]decimal.Decimal, entries []*Transaction) error {
	expected := make(map[int64]decimal.Decimal, len(after))
	for _, e := range entries {
		if e == nil || !e.Amount.IsPositive() || e.FromAccountID == e.ToAccountID {
			return fmt.Errorf("%w: malformed ledger entry", ErrInvariantViolation)
		}
		expected[e.FromAccountID] = expected[e.FromAccountID].Sub(e.Amount)
		expected[e.ToAccountID] = expected[e.ToAccountID].Add(e.Amount)
	}
	for id, bal := range after {
		if bal.IsNegative() {
			return fmt.Errorf("%w: account %d would go negative", ErrInvariantViolation, id)
		}
		delta := bal.Sub(before[id])
		if !delta.Equal(expected[id]) {
			return fmt.Errorf("%w: account %d changed by %s but ledger records %s",
				ErrInvariantViolation, id, delta.String(), expected[id].String())
		}
		delete(expected, id)
	}
	for id, d := range expected {
		if !d.IsZero() {
			return fmt.Errorf("%w: ledger entry for account %d without balance change", ErrInvariantViolation, id)
		}
	}
	return nil
}
