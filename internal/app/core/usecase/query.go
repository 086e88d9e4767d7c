package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/JoeShih716/go-transfer-ledger/internal/app/core/domain"
)

// LedgerQuery 帳本查詢，不取鎖、不可中途取消 (單次讀取)
type LedgerQuery struct {
	store Store
}

func NewLedgerQuery(store Store) *LedgerQuery {
	return &LedgerQuery{store: store}
}

// Query 依轉出/轉入帳戶名稱過濾帳本，空字串代表不過濾
//
// 名稱以查詢當下的帳戶解析；不存在的帳戶名稱回傳空結果，
// 已刪除帳戶在結果中顯示為 domain.DeletedAccountName。
func (q *LedgerQuery) Query(ctx context.Context, fromName, toName string) ([]domain.TransactionView, error) {
	fromName = strings.TrimSpace(fromName)
	toName = strings.TrimSpace(toName)
	if fromName != "" && fromName == toName {
		return nil, domain.ErrSameAccount
	}

	var filter domain.TransactionFilter
	if fromName != "" {
		id, ok, err := q.resolve(ctx, fromName)
		if err != nil || !ok {
			return []domain.TransactionView{}, err
		}
		filter.FromAccountID = &id
	}
	if toName != "" {
		id, ok, err := q.resolve(ctx, toName)
		if err != nil || !ok {
			return []domain.TransactionView{}, err
		}
		filter.ToAccountID = &id
	}

	trans, err := q.store.QueryTransactions(ctx, filter)
	if err != nil {
		return nil, domain.NewStorageError("query transactions", err)
	}

	ids := make([]int64, 0, len(trans)*2)
	seen := make(map[int64]struct{}, len(trans)*2)
	for i := range trans {
		for _, id := range []int64{trans[i].FromAccountID, trans[i].ToAccountID} {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}
	accounts, err := q.store.AccountsByID(ctx, ids)
	if err != nil {
		return nil, domain.NewStorageError("resolve account names", err)
	}

	views := make([]domain.TransactionView, 0, len(trans))
	for i := range trans {
		t := &trans[i]
		views = append(views, domain.TransactionView{
			ID:              t.ID,
			RefID:           t.RefID,
			FromAccountName: nameOf(accounts, t.FromAccountID),
			ToAccountName:   nameOf(accounts, t.ToAccountID),
			Amount:          t.Amount,
			Timestamp:       t.Timestamp,
		})
	}
	return views, nil
}

func (q *LedgerQuery) resolve(ctx context.Context, name string) (int64, bool, error) {
	acc, err := q.store.FindAccount(ctx, name)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, domain.NewStorageError("find account", err)
	}
	return acc.ID, true, nil
}

func nameOf(accounts map[int64]*domain.Account, id int64) string {
	if acc, ok := accounts[id]; ok {
		return acc.Name
	}
	return domain.DeletedAccountName
}
