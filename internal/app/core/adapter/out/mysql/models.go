package mysql

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-transfer-ledger/internal/app/core/domain"
)

// accountRow 對應資料庫的 accounts 表
type accountRow struct {
	ID        int64           `gorm:"primaryKey;autoIncrement"`
	Name      string          `gorm:"type:varchar(191);not null;uniqueIndex:uk_accounts_name"`
	Balance   decimal.Decimal `gorm:"type:decimal(19,2);not null"`
	CreatedAt time.Time       `gorm:"type:datetime(6);not null"`
}

func (*accountRow) TableName() string {
	return "accounts"
}

func (r *accountRow) toDomain() *domain.Account {
	return &domain.Account{
		ID:        r.ID,
		Name:      r.Name,
		Balance:   domain.Normalize(r.Balance),
		CreatedAt: r.CreatedAt,
	}
}

// transactionRow 對應資料庫的 transactions 表
type transactionRow struct {
	ID            int64           `gorm:"primaryKey;autoIncrement"`
	RefID         []byte          `gorm:"column:ref_id;type:binary(16);uniqueIndex:uk_transactions_ref"`
	FromAccountID int64           `gorm:"not null;index:idx_transactions_from"`
	ToAccountID   int64           `gorm:"not null;index:idx_transactions_to"`
	Amount        decimal.Decimal `gorm:"type:decimal(19,2);not null"`
	CreatedAt     time.Time       `gorm:"type:datetime(6);not null"`
}

func (*transactionRow) TableName() string {
	return "transactions"
}

func newTransactionRow(t *domain.Transaction) *transactionRow {
	return &transactionRow{
		RefID:         t.RefID[:],
		FromAccountID: t.FromAccountID,
		ToAccountID:   t.ToAccountID,
		Amount:        domain.Normalize(t.Amount),
		CreatedAt:     t.Timestamp,
	}
}

func (r *transactionRow) toDomain() domain.Transaction {
	var ref uuid.UUID
	if len(r.RefID) == len(ref) {
		copy(ref[:], r.RefID)
	}
	return domain.Transaction{
		ID:            r.ID,
		RefID:         ref,
		FromAccountID: r.FromAccountID,
		ToAccountID:   r.ToAccountID,
		Amount:        domain.Normalize(r.Amount),
		Timestamp:     r.CreatedAt.UTC(),
	}
}
