package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-transfer-ledger/internal/app/core/domain"
)

// fakeStore 單一 mutex 的 Store，可注入錯誤
type fakeStore struct {
	mu       sync.Mutex
	accounts map[int64]*domain.Account
	ledger   []domain.Transaction
	nextID   int64

	// atomicErrs 每次 Atomic 依序取出一個錯誤，在 fn 之前回傳
	atomicErrs []error
	// commitErr fn 成功後提交失敗
	commitErr error
	// skipLedgerID 提交後不填帳本 ID
	skipLedgerID bool
	// findErr FindAccount 的技術錯誤
	findErr error

	atomicCalls int
	lockedIDs   [][]int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{accounts: make(map[int64]*domain.Account)}
}

func (s *fakeStore) seed(name, balance string) *domain.Account {
	acc, err := s.CreateAccount(context.Background(), name, decimal.RequireFromString(balance))
	if err != nil {
		panic(err)
	}
	return acc
}

func (s *fakeStore) balance(name string) string {
	acc, err := s.FindAccount(context.Background(), name)
	if err != nil {
		panic(err)
	}
	return domain.FormatAmount(acc.Balance)
}

func (s *fakeStore) byName(name string) (*domain.Account, bool) {
	for _, acc := range s.accounts {
		if acc.Name == name {
			return acc, true
		}
	}
	return nil, false
}

func (s *fakeStore) FindAccount(ctx context.Context, name string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	acc, ok := s.byName(name)
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return acc.Clone(), nil
}

func (s *fakeStore) AccountsByID(ctx context.Context, ids []int64) (map[int64]*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]*domain.Account)
	for _, id := range ids {
		if acc, ok := s.accounts[id]; ok {
			out[id] = acc.Clone()
		}
	}
	return out, nil
}

func (s *fakeStore) ListAccounts(ctx context.Context) ([]*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.Account, 0, len(s.accounts))
	for _, acc := range s.accounts {
		out = append(out, acc.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeStore) FindTransactionByRef(ctx context.Context, ref uuid.UUID) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.ledger {
		if s.ledger[i].RefID == ref {
			tran := s.ledger[i]
			return &tran, nil
		}
	}
	return nil, domain.ErrTransactionNotFound
}

func (s *fakeStore) QueryTransactions(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Transaction
	for i := range s.ledger {
		if filter.Match(&s.ledger[i]) {
			out = append(out, s.ledger[i])
		}
	}
	return out, nil
}

func (s *fakeStore) CreateAccount(ctx context.Context, name string, balance decimal.Decimal) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byName(name); ok {
		return nil, domain.ErrAccountAlreadyExists
	}
	s.nextID++
	acc := &domain.Account{ID: s.nextID, Name: name, Balance: domain.Normalize(balance), CreatedAt: time.Now()}
	s.accounts[acc.ID] = acc
	return acc.Clone(), nil
}

func (s *fakeStore) RenameAccount(ctx context.Context, name, newName string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.byName(name)
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	if _, taken := s.byName(newName); taken && newName != name {
		return nil, domain.ErrAccountAlreadyExists
	}
	acc.Name = newName
	return acc.Clone(), nil
}

func (s *fakeStore) DeleteAccount(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.byName(name)
	if !ok {
		return domain.ErrAccountNotFound
	}
	delete(s.accounts, acc.ID)
	return nil
}

func (s *fakeStore) Atomic(ctx context.Context, accountIDs []int64, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.atomicCalls++
	s.lockedIDs = append(s.lockedIDs, append([]int64(nil), accountIDs...))
	if len(s.atomicErrs) > 0 {
		err := s.atomicErrs[0]
		s.atomicErrs = s.atomicErrs[1:]
		if err != nil {
			return err
		}
	}

	tx := &fakeTx{s: s, staged: make(map[int64]*domain.Account)}
	if err := fn(tx); err != nil {
		return err
	}
	if s.commitErr != nil {
		return s.commitErr
	}
	for _, e := range tx.entries {
		if e.RefID != uuid.Nil {
			for i := range s.ledger {
				if s.ledger[i].RefID == e.RefID {
					return domain.ErrDuplicateTransaction
				}
			}
		}
	}
	for id, acc := range tx.staged {
		s.accounts[id] = acc
	}
	for _, e := range tx.entries {
		if !s.skipLedgerID {
			e.ID = int64(len(s.ledger) + 1)
		}
		s.ledger = append(s.ledger, *e)
	}
	return nil
}

type fakeTx struct {
	s       *fakeStore
	staged  map[int64]*domain.Account
	entries []*domain.Transaction
}

func (t *fakeTx) get(id int64) (*domain.Account, error) {
	if acc, ok := t.staged[id]; ok {
		return acc, nil
	}
	acc, ok := t.s.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	t.staged[id] = acc.Clone()
	return t.staged[id], nil
}

func (t *fakeTx) Account(id int64) (*domain.Account, error) {
	acc, err := t.get(id)
	if err != nil {
		return nil, err
	}
	return acc.Clone(), nil
}

func (t *fakeTx) AdjustBalances(debitID, creditID int64, amount decimal.Decimal) error {
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

func (t *fakeTx) Append(entry *domain.Transaction) error {
	if entry == nil {
		return errors.New("nil entry")
	}
	t.entries = append(t.entries, entry)
	return nil
}
