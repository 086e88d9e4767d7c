package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// AmountScale 金額固定兩位小數
const AmountScale int32 = 2

// maxAmountLen 輸入字串長度上限，超過一律視為無效
const maxAmountLen = 64

// maxIntegerDigits decimal(19,2) 的整數位數
const maxIntegerDigits = 17

// MaxAmount 所有 Store 都能保存的最大金額 (decimal(19,2))
var MaxAmount = decimal.New(1, maxIntegerDigits).Sub(decimal.New(1, -AmountScale))

// ParseAmount 解析轉帳金額
//
// 多出的小數位直接截去 (round toward zero)，不做四捨五入，例如 "10.009" -> 10.00。
// 空白、非數字、超過 MaxAmount、或截位後 <= 0 都回傳 ErrInvalidAmount。
func ParseAmount(raw string) (decimal.Decimal, error) {
	d, err := parseBounded(raw)
	if err != nil {
		return decimal.Zero, err
	}
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// ParseBalance 解析開戶餘額，規則同 ParseAmount 但允許 0
func ParseBalance(raw string) (decimal.Decimal, error) {
	d, err := parseBounded(raw)
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// parseBounded 在截位之前先檢查數量級，避免超大 exponent 造成的巨量運算
func parseBounded(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(raw) > maxAmountLen {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if d.IsZero() {
		return decimal.Zero, nil
	}
	// |d| 介於 10^(magnitude-1) 與 10^magnitude 之間
	magnitude := int64(d.NumDigits()) + int64(d.Exponent())
	if magnitude > maxIntegerDigits {
		return decimal.Zero, ErrInvalidAmount
	}
	if magnitude < -int64(AmountScale) {
		// 小於 0.01，截位後為 0
		return decimal.Zero, nil
	}
	d = Normalize(d)
	if d.Abs().GreaterThan(MaxAmount) {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// Normalize 截成兩位小數並固定 exponent，讓 String/Equal 結果穩定
func Normalize(d decimal.Decimal) decimal.Decimal {
	return d.Truncate(AmountScale).Round(AmountScale)
}

// FormatAmount 對外一律輸出兩位小數
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(AmountScale)
}
