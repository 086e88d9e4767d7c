package usecase

import (
	"go.uber.org/zap"
)

// CoreUseCase 是核心業務邏輯層，組合轉帳、帳本查詢與帳戶管理
type CoreUseCase struct {
	Transfers *TransferEngine
	Ledger    *LedgerQuery
	Accounts  *AccountService
}

func NewCoreUseCase(store Store, logger *zap.Logger, opts ...EngineOption) *CoreUseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	engineOpts := append([]EngineOption{WithLogger(logger.Named("transfer"))}, opts...)
	return &CoreUseCase{
		Transfers: NewTransferEngine(store, engineOpts...),
		Ledger:    NewLedgerQuery(store),
		Accounts:  NewAccountService(store, logger.Named("account")),
	}
}
