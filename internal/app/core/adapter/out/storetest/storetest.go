// Package storetest 是 usecase.Store 實作共用的行為測試
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JoeShih716/go-transfer-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-transfer-ledger/internal/app/core/usecase"
)

// Factory 每次呼叫回傳一個空的 Store
type Factory func(t *testing.T) usecase.Store

// Run 對 Store 執行所有行為測試
func Run(t *testing.T, newStore Factory) {
	t.Run("TransferAndQuery", func(t *testing.T) { testTransferAndQuery(t, newStore(t)) })
	t.Run("ConcurrentDoubleSpend", func(t *testing.T) { testDoubleSpend(t, newStore(t)) })
	t.Run("Conservation", func(t *testing.T) { testConservation(t, newStore(t)) })
	t.Run("RollbackOnError", func(t *testing.T) { testRollback(t, newStore(t)) })
	t.Run("Idempotency", func(t *testing.T) { testIdempotency(t, newStore(t)) })
	t.Run("AccountLifecycle", func(t *testing.T) { testAccountLifecycle(t, newStore(t)) })
}

func create(t *testing.T, s usecase.Store, name, balance string) *domain.Account {
	t.Helper()
	acc, err := s.CreateAccount(context.Background(), name, decimal.RequireFromString(balance))
	require.NoError(t, err)
	return acc
}

func balance(t *testing.T, s usecase.Store, name string) string {
	t.Helper()
	acc, err := s.FindAccount(context.Background(), name)
	require.NoError(t, err)
	return domain.FormatAmount(acc.Balance)
}

func testTransferAndQuery(t *testing.T, s usecase.Store) {
	ctx := context.Background()
	create(t, s, "A", "100")
	create(t, s, "B", "100")
	create(t, s, "C", "100")
	core := usecase.NewCoreUseCase(s, nil)

	for _, p := range [][2]string{{"A", "B"}, {"A", "B"}, {"B", "A"}, {"B", "C"}, {"B", "C"}, {"C", "B"}} {
		_, err := core.Transfers.Transfer(ctx, domain.TransferRequest{FromAccountName: p[0], ToAccountName: p[1], Amount: "10.009"})
		require.NoError(t, err)
	}

	counts := map[[2]string]int{{"B", ""}: 3, {"", "C"}: 2, {"B", "C"}: 2, {"", ""}: 6}
	for filter, want := range counts {
		views, err := core.Ledger.Query(ctx, filter[0], filter[1])
		require.NoError(t, err)
		assert.Len(t, views, want, "filter %v", filter)
	}

	views, err := core.Ledger.Query(ctx, "", "")
	require.NoError(t, err)
	for i := 1; i < len(views); i++ {
		assert.Greater(t, views[i].ID, views[i-1].ID)
	}
	assert.Equal(t, "10.00", domain.FormatAmount(views[0].Amount))
	assert.Equal(t, "90.00", balance(t, s, "A"))
	assert.Equal(t, "100.00", balance(t, s, "B"))
	assert.Equal(t, "110.00", balance(t, s, "C"))
}

func testDoubleSpend(t *testing.T, s usecase.Store) {
	create(t, s, "A", "10")
	create(t, s, "B", "0")
	engine := usecase.NewTransferEngine(s, usecase.WithRetry(10, 5*time.Millisecond))

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = engine.Transfer(context.Background(), domain.TransferRequest{
				FromAccountName: "A", ToAccountName: "B", Amount: "10.00",
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, "0.00", balance(t, s, "A"))
	assert.Equal(t, "10.00", balance(t, s, "B"))
}

func testConservation(t *testing.T, s usecase.Store) {
	names := []string{"A", "B", "C", "D"}
	for _, n := range names {
		create(t, s, n, "25")
	}
	engine := usecase.NewTransferEngine(s, usecase.WithRetry(10, 5*time.Millisecond))

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := engine.Transfer(context.Background(), domain.TransferRequest{
				FromAccountName: names[i%4], ToAccountName: names[(i+1+i/4)%4], Amount: "3.33",
			})
			if err != nil {
				reason := domain.ReasonOf(err)
				assert.Contains(t, []domain.Reason{domain.ReasonInsufficientFunds, domain.ReasonSameAccount, domain.ReasonContention}, reason)
			}
		}(i)
	}
	wg.Wait()

	accounts, err := s.ListAccounts(context.Background())
	require.NoError(t, err)
	total := decimal.Zero
	for _, acc := range accounts {
		assert.False(t, acc.Balance.IsNegative(), acc.Name)
		total = total.Add(acc.Balance)
	}
	assert.Equal(t, "100.00", domain.FormatAmount(total))
}

func testRollback(t *testing.T, s usecase.Store) {
	a := create(t, s, "A", "10")
	b := create(t, s, "B", "0")
	boom := errors.New("boom")

	err := s.Atomic(context.Background(), domain.LockOrder(a.ID, b.ID), func(tx usecase.Tx) error {
		if err := tx.AdjustBalances(a.ID, b.ID, decimal.NewFromInt(5)); err != nil {
			return err
		}
		if err := tx.Append(&domain.Transaction{
			RefID: uuid.New(), FromAccountID: a.ID, ToAccountID: b.ID,
			Amount: decimal.NewFromInt(5), Timestamp: time.Now().UTC(),
		}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	err = s.Atomic(context.Background(), domain.LockOrder(a.ID, b.ID), func(tx usecase.Tx) error {
		return tx.AdjustBalances(a.ID, b.ID, decimal.NewFromInt(5))
	})
	assert.ErrorIs(t, err, domain.ErrInvariantViolation)

	assert.Equal(t, "10.00", balance(t, s, "A"))
	assert.Equal(t, "0.00", balance(t, s, "B"))
	trans, err := s.QueryTransactions(context.Background(), domain.TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, trans)
}

func testIdempotency(t *testing.T, s usecase.Store) {
	create(t, s, "A", "10")
	create(t, s, "B", "0")
	engine := usecase.NewTransferEngine(s)
	req := domain.TransferRequest{RefID: uuid.New(), FromAccountName: "A", ToAccountName: "B", Amount: "2"}

	first, err := engine.Transfer(context.Background(), req)
	require.NoError(t, err)
	second, err := engine.Transfer(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "8.00", balance(t, s, "A"))

	found, err := s.FindTransactionByRef(context.Background(), req.RefID)
	require.NoError(t, err)
	assert.Equal(t, req.RefID, found.RefID)
}

func testAccountLifecycle(t *testing.T, s usecase.Store) {
	ctx := context.Background()
	a := create(t, s, "A", "1.239")
	assert.Equal(t, "1.23", domain.FormatAmount(a.Balance))
	create(t, s, "B", "0")

	_, err := s.CreateAccount(ctx, "A", decimal.Zero)
	assert.ErrorIs(t, err, domain.ErrAccountAlreadyExists)
	_, err = s.RenameAccount(ctx, "A", "B")
	assert.ErrorIs(t, err, domain.ErrAccountAlreadyExists)

	renamed, err := s.RenameAccount(ctx, "A", "Z")
	require.NoError(t, err)
	assert.Equal(t, a.ID, renamed.ID)
	_, err = s.FindAccount(ctx, "A")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	require.NoError(t, s.DeleteAccount(ctx, "Z"))
	assert.ErrorIs(t, s.DeleteAccount(ctx, "Z"), domain.ErrAccountNotFound)

	found, err := s.AccountsByID(ctx, []int64{a.ID})
	require.NoError(t, err)
	assert.Empty(t, found)

	accounts, err := s.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "B", accounts[0].Name)
}
