package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JoeShih716/go-transfer-ledger/internal/app/core/domain"
)

func TestAccountService_Create(t *testing.T) {
	svc := NewAccountService(newFakeStore(), nil)
	ctx := context.Background()

	acc, err := svc.Create(ctx, "  alice ", "12.349")
	require.NoError(t, err)
	assert.Equal(t, "alice", acc.Name)
	assert.Equal(t, "12.34", domain.FormatAmount(acc.Balance))

	zero, err := svc.Create(ctx, "bob", "0")
	require.NoError(t, err)
	assert.True(t, zero.Balance.IsZero())

	_, err = svc.Create(ctx, "alice", "1")
	assert.Equal(t, domain.ReasonAccountExists, domain.ReasonOf(err))
	_, err = svc.Create(ctx, " ", "1")
	assert.Equal(t, domain.ReasonInvalidName, domain.ReasonOf(err))
	_, err = svc.Create(ctx, "carol", "-1")
	assert.Equal(t, domain.ReasonInvalidAmount, domain.ReasonOf(err))
}

func TestAccountService_NotFoundCarriesName(t *testing.T) {
	svc := NewAccountService(newFakeStore(), nil)

	_, err := svc.Get(context.Background(), "ghost")
	var nf *domain.AccountNotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "ghost", nf.Name)
	assert.Empty(t, nf.Which)

	err = svc.Delete(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestAccountService_RenameAndList(t *testing.T) {
	store := newFakeStore()
	store.seed("a", "1")
	store.seed("b", "2")
	svc := NewAccountService(store, nil)
	ctx := context.Background()

	_, err := svc.Rename(ctx, "a", "b")
	assert.ErrorIs(t, err, domain.ErrAccountAlreadyExists)
	acc, err := svc.Rename(ctx, "a", "c")
	require.NoError(t, err)
	assert.Equal(t, "c", acc.Name)

	accounts, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "c", accounts[0].Name)
	assert.Equal(t, "b", accounts[1].Name)
}
