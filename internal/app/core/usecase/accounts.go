package usecase

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/JoeShih716/go-transfer-ledger/internal/app/core/domain"
)

// AccountService 帳戶 CRUD，不會動到餘額 (開戶餘額除外)
type AccountService struct {
	store  Store
	logger *zap.Logger
}

func NewAccountService(store Store, logger *zap.Logger) *AccountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountService{store: store, logger: logger}
}

// Create 以名稱與開戶餘額建立帳戶，餘額超過兩位小數的部分截去
func (s *AccountService) Create(ctx context.Context, name, openingBalance string) (*domain.Account, error) {
	name, err := domain.NormalizeName(name)
	if err != nil {
		return nil, err
	}
	balance, err := domain.ParseBalance(openingBalance)
	if err != nil {
		return nil, err
	}
	acc, err := s.store.CreateAccount(ctx, name, balance)
	if err != nil {
		return nil, s.fail("create", name, err)
	}
	s.logger.Info("account created",
		zap.Int64("account_id", acc.ID), zap.String("name", acc.Name), zap.String("balance", domain.FormatAmount(acc.Balance)))
	return acc, nil
}

// Get 以名稱查詢帳戶
func (s *AccountService) Get(ctx context.Context, name string) (*domain.Account, error) {
	name, err := domain.NormalizeName(name)
	if err != nil {
		return nil, err
	}
	acc, err := s.store.FindAccount(ctx, name)
	if err != nil {
		return nil, s.wrap(name, err)
	}
	return acc, nil
}

// List 列出所有帳戶
func (s *AccountService) List(ctx context.Context) ([]*domain.Account, error) {
	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		return nil, domain.NewStorageError("list accounts", err)
	}
	return accounts, nil
}

// Rename 改名，新名稱不可與其他帳戶重複
func (s *AccountService) Rename(ctx context.Context, name, newName string) (*domain.Account, error) {
	name, err := domain.NormalizeName(name)
	if err != nil {
		return nil, err
	}
	newName, err = domain.NormalizeName(newName)
	if err != nil {
		return nil, err
	}
	acc, err := s.store.RenameAccount(ctx, name, newName)
	if err != nil {
		return nil, s.fail("rename", name, err)
	}
	s.logger.Info("account renamed", zap.Int64("account_id", acc.ID), zap.String("from", name), zap.String("to", newName))
	return acc, nil
}

// Delete 刪除帳戶；帳本紀錄保留，查詢時顯示為已刪除
func (s *AccountService) Delete(ctx context.Context, name string) error {
	name, err := domain.NormalizeName(name)
	if err != nil {
		return err
	}
	if err := s.store.DeleteAccount(ctx, name); err != nil {
		return s.fail("delete", name, err)
	}
	s.logger.Info("account deleted", zap.String("name", name))
	return nil
}

func (s *AccountService) fail(op, name string, err error) error {
	err = s.wrap(name, err)
	if domain.ReasonOf(err) == domain.ReasonStorageFailure {
		s.logger.Error("account "+op+" failed", zap.String("name", name), zap.Error(err))
	}
	return err
}

func (s *AccountService) wrap(name string, err error) error {
	var nf *domain.AccountNotFoundError
	if errors.Is(err, domain.ErrAccountNotFound) && !errors.As(err, &nf) {
		return &domain.AccountNotFoundError{Name: name}
	}
	return domain.NewStorageError("account", err)
}
