package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{raw: "10", want: "10.00"},
		{raw: "10.5", want: "10.50"},
		{raw: "10.009", want: "10.00"},
		{raw: " 7.999 ", want: "7.99"},
		{raw: "0.01", want: "0.01"},
		{raw: "0.009", wantErr: true},
		{raw: "0", wantErr: true},
		{raw: "-5", wantErr: true},
		{raw: "", wantErr: true},
		{raw: "abc", wantErr: true},
		{raw: "1e2", want: "100.00"},
		{raw: "99999999999999999.999", want: "99999999999999999.99"},
		{raw: "100000000000000000", wantErr: true},
		{raw: "1e17", wantErr: true},
		{raw: "1e999999999", wantErr: true},
		{raw: "1e9999999", wantErr: true},
		{raw: "1e-999999999", wantErr: true},
		{raw: "123456789e-999999999", wantErr: true},
		{raw: "5e-3", wantErr: true},
		{raw: "1" + strings.Repeat("0", 70), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseAmount(tt.raw)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, FormatAmount(got))
		})
	}
}

func TestParseBalanceAllowsZero(t *testing.T) {
	got, err := ParseBalance("0")
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	_, err = ParseBalance("-0.01")
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = ParseBalance("1e999999999")
	require.ErrorIs(t, err, ErrInvalidAmount)

	got, err = ParseBalance("1e-999999999")
	require.NoError(t, err)
	assert.Equal(t, "0.00", FormatAmount(got))

	_, err = ParseBalance("100000000000000000.00")
	require.ErrorIs(t, err, ErrInvalidAmount)

	got, err = ParseBalance("50.129")
	require.NoError(t, err)
	assert.Equal(t, "50.12", FormatAmount(got))
}

func TestLockOrder(t *testing.T) {
	assert.Equal(t, []int64{3, 5}, LockOrder(5, 3))
	assert.Equal(t, []int64{3, 5}, LockOrder(3, 5))
	assert.Equal(t, []int64{4}, LockOrder(4, 4))
	assert.Equal(t, []int64{1, 2, 9}, LockOrder(9, 1, 2, 9))
}

func TestAccountWithdrawDeposit(t *testing.T) {
	a := &Account{ID: 1, Name: "A", Balance: decimal.RequireFromString("10.00")}

	require.ErrorIs(t, a.Withdraw(decimal.RequireFromString("10.01")), ErrInsufficientFunds)
	assert.Equal(t, "10.00", FormatAmount(a.Balance))

	require.NoError(t, a.Withdraw(decimal.RequireFromString("10.00")))
	assert.True(t, a.Balance.IsZero())

	require.NoError(t, a.Deposit(decimal.RequireFromString("0.50")))
	assert.Equal(t, "0.50", FormatAmount(a.Balance))

	require.ErrorIs(t, a.Deposit(decimal.Zero), ErrInvalidAmount)
}

func TestReasonOf(t *testing.T) {
	tests := []struct {
		err  error
		want Reason
	}{
		{nil, ReasonNone},
		{ErrSameAccount, ReasonSameAccount},
		{fmt.Errorf("wrap: %w", ErrInvalidAmount), ReasonInvalidAmount},
		{&AccountNotFoundError{Which: "to", Name: "B"}, ReasonAccountNotFound},
		{ErrInsufficientFunds, ReasonInsufficientFunds},
		{fmt.Errorf("tx: %w", ErrContention), ReasonContention},
		{ErrAccountAlreadyExists, ReasonAccountExists},
		{ErrInvalidAccountName, ReasonInvalidName},
		{fmt.Errorf("parse ref: %w", ErrInvalidReference), ReasonInvalidReference},
		{errors.New("disk on fire"), ReasonStorageFailure},
		{&StorageError{Op: "commit", Err: errors.New("io")}, ReasonStorageFailure},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ReasonOf(tt.err), "err=%v", tt.err)
	}

	assert.True(t, ReasonContention.Retryable())
	assert.False(t, ReasonInsufficientFunds.Retryable())
	assert.True(t, ReasonInsufficientFunds.Business())
	assert.False(t, ReasonStorageFailure.Business())
}

func TestNewStorageErrorKeepsClassifiedErrors(t *testing.T) {
	require.Nil(t, NewStorageError("op", nil))

	err := NewStorageError("lock", ErrContention)
	assert.Same(t, ErrContention, err)

	err = NewStorageError("write", errors.New("broken pipe"))
	var se *StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "write", se.Op)
	assert.ErrorIs(t, err, ErrStorageFailure)

	// 已經是 StorageError 不重複包裝
	assert.Same(t, err, NewStorageError("again", err))
}

func TestAccountNotFoundError(t *testing.T) {
	err := fmt.Errorf("validate: %w", &AccountNotFoundError{Which: "from", Name: "X"})
	assert.ErrorIs(t, err, ErrAccountNotFound)
	assert.Equal(t, "from", WhichOf(err))
	assert.Equal(t, "", WhichOf(ErrAccountNotFound))
}

func TestTransactionFilterMatch(t *testing.T) {
	from, to := int64(1), int64(2)
	tran := &Transaction{FromAccountID: 1, ToAccountID: 2}

	assert.True(t, TransactionFilter{}.Match(tran))
	assert.True(t, TransactionFilter{FromAccountID: &from}.Match(tran))
	assert.True(t, TransactionFilter{FromAccountID: &from, ToAccountID: &to}.Match(tran))
	assert.False(t, TransactionFilter{FromAccountID: &to}.Match(tran))
	assert.False(t, TransactionFilter{ToAccountID: &from}.Match(tran))
}

func TestCheckPostings(t *testing.T) {
	d := decimal.RequireFromString
	entry := &Transaction{FromAccountID: 1, ToAccountID: 2, Amount: d("10")}

	tests := []struct {
		name    string
		before  map[int64]decimal.Decimal
		after   map[int64]decimal.Decimal
		entries []*Transaction
		wantErr bool
	}{
		{"balanced", map[int64]decimal.Decimal{1: d("50"), 2: d("0")}, map[int64]decimal.Decimal{1: d("40"), 2: d("10")}, []*Transaction{entry}, false},
		{"no changes", nil, nil, nil, false},
		{"balance change without entry", map[int64]decimal.Decimal{1: d("50"), 2: d("0")}, map[int64]decimal.Decimal{1: d("40"), 2: d("10")}, nil, true},
		{"entry without balance change", map[int64]decimal.Decimal{1: d("50"), 2: d("0")}, map[int64]decimal.Decimal{1: d("50"), 2: d("0")}, []*Transaction{entry}, true},
		{"amount mismatch", map[int64]decimal.Decimal{1: d("50"), 2: d("0")}, map[int64]decimal.Decimal{1: d("45"), 2: d("5")}, []*Transaction{entry}, true},
		{"negative result", map[int64]decimal.Decimal{1: d("5"), 2: d("0")}, map[int64]decimal.Decimal{1: d("-5"), 2: d("10")}, []*Transaction{entry}, true},
		{"entry for unlocked account", map[int64]decimal.Decimal{1: d("50")}, map[int64]decimal.Decimal{1: d("40")}, []*Transaction{entry}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckPostings(tt.before, tt.after, tt.entries)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvariantViolation)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestTransferMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "Successfully performed transfer from A to B"},
		{ErrSameAccount, "The to and from accounts cannot be the same"},
		{ErrInvalidAmount, "The Account Names and amount received were not valid"},
		{&AccountNotFoundError{Which: "from", Name: "A"}, "From account with name A does not exist"},
		{&AccountNotFoundError{Which: "to", Name: "B"}, "To account with name B does not exist"},
		{ErrInsufficientFunds, "From account with name A does not have enough money to perform this transfer"},
		{ErrContention, "Accounts A and B are busy, please retry the transfer"},
		{errors.New("disk"), "Unable to perform transfer from A to B"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TransferMessage(tt.err, "A", "B"))
	}
}

func TestQueryMessage(t *testing.T) {
	assert.Equal(t, "No transactions were found matching the criteria", QueryMessage(0))
	assert.Equal(t, "1 Transactions found", QueryMessage(1))
	assert.Equal(t, "6 Transactions found", QueryMessage(6))
}
