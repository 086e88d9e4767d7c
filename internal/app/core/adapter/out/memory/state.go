package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-transfer-ledger/internal/app/core/adapter/out/staged"
	"github.com/JoeShih716/go-transfer-ledger/internal/app/core/domain"
)

// Journal 是 Write-Ahead Log 的介面，pkg/wal.WAL 實作此介面
type Journal interface {
	// Write 寫入一筆紀錄並刷入硬碟，回傳 nil 才算持久化
	Write(v any) error
	// ReadAll 依寫入順序回放所有紀錄
	ReadAll(callback func(jsonRaw []byte) error) error
}

// 日誌紀錄種類
const (
	opCreate = "create"
	opRename = "rename"
	opDelete = "delete"
	opCommit = "commit"
)

// record 是一筆 WAL 紀錄；commit 一次寫入整個原子單位
type record struct {
	Op           string               `json:"op"`
	Account      *accountRecord       `json:"account,omitempty"`
	Transactions []domain.Transaction `json:"transactions,omitempty"`
}

type accountRecord struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name,omitempty"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
}

// state 是兩種 memory store 共用的帳戶與帳本狀態
//
// 結構:
//
//	mu: 保護 accounts/names/ledger/refs；提交時持有寫鎖，讓兩邊餘額與帳本一起變為可見
//	accounts: 帳戶 ID 對應帳戶
//	names: 名稱對應帳戶 ID
//	ledger: 依提交順序的帳本
//	refs: RefID 對應 ledger index，用於冪等
type state struct {
	mu            sync.RWMutex
	accounts      map[int64]*domain.Account
	names         map[string]int64
	ledger        []domain.Transaction
	refs          map[uuid.UUID]int
	nextAccountID int64
	journal       Journal
	now           func() time.Time
}

func newState(journal Journal) *state {
	return &state{
		accounts: make(map[int64]*domain.Account),
		names:    make(map[string]int64),
		refs:     make(map[uuid.UUID]int),
		journal:  journal,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// recover 從 WAL 回放狀態，只在建構時 (單執行緒) 呼叫
func (s *state) recover() error {
	if s.journal == nil {
		return nil
	}
	return s.journal.ReadAll(func(jsonRaw []byte) error {
		var rec record
		if err := json.Unmarshal(jsonRaw, &rec); err != nil {
			return fmt.Errorf("decode wal record: %w", err)
		}
		return s.apply(&rec)
	})
}

// apply 套用一筆紀錄 (不寫 WAL)
func (s *state) apply(rec *record) error {
	switch rec.Op {
	case opCreate:
		acc := &domain.Account{
			ID:        rec.Account.ID,
			Name:      rec.Account.Name,
			Balance:   domain.Normalize(rec.Account.Balance),
			CreatedAt: rec.Account.CreatedAt,
		}
		s.accounts[acc.ID] = acc
		s.names[acc.Name] = acc.ID
		if acc.ID > s.nextAccountID {
			s.nextAccountID = acc.ID
		}
	case opRename:
		acc, ok := s.accounts[rec.Account.ID]
		if !ok {
			return fmt.Errorf("wal rename: account %d: %w", rec.Account.ID, domain.ErrAccountNotFound)
		}
		delete(s.names, acc.Name)
		acc.Name = rec.Account.Name
		s.names[acc.Name] = acc.ID
	case opDelete:
		acc, ok := s.accounts[rec.Account.ID]
		if !ok {
			return fmt.Errorf("wal delete: account %d: %w", rec.Account.ID, domain.ErrAccountNotFound)
		}
		delete(s.names, acc.Name)
		delete(s.accounts, acc.ID)
	case opCommit:
		for _, tran := range rec.Transactions {
			from, ok := s.accounts[tran.FromAccountID]
			if !ok {
				return fmt.Errorf("wal commit %d: from account %d: %w", tran.ID, tran.FromAccountID, domain.ErrAccountNotFound)
			}
			to, ok := s.accounts[tran.ToAccountID]
			if !ok {
				return fmt.Errorf("wal commit %d: to account %d: %w", tran.ID, tran.ToAccountID, domain.ErrAccountNotFound)
			}
			if err := from.Withdraw(tran.Amount); err != nil {
				return fmt.Errorf("wal commit %d: %w", tran.ID, err)
			}
			if err := to.Deposit(tran.Amount); err != nil {
				return fmt.Errorf("wal commit %d: %w", tran.ID, err)
			}
			s.appendLedger(tran)
		}
	default:
		return fmt.Errorf("unknown wal op %q", rec.Op)
	}
	return nil
}

func (s *state) appendLedger(tran domain.Transaction) {
	s.ledger = append(s.ledger, tran)
	if tran.RefID != uuid.Nil {
		s.refs[tran.RefID] = len(s.ledger) - 1
	}
}

// write 先寫 WAL，成功後才套用到記憶體
func (s *state) write(rec *record) error {
	if s.journal != nil {
		if err := s.journal.Write(rec); err != nil {
			return domain.NewStorageError("wal write", err)
		}
	}
	return s.apply(rec)
}

func (s *state) find(name string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.names[name]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return s.accounts[id].Clone(), nil
}

func (s *state) byID(ids []int64) map[int64]*domain.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int64]*domain.Account, len(ids))
	for _, id := range ids {
		if acc, ok := s.accounts[id]; ok {
			out[id] = acc.Clone()
		}
	}
	return out
}

func (s *state) list() []*domain.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Account, 0, len(s.accounts))
	for _, acc := range s.accounts {
		out = append(out, acc.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *state) findRef(ref uuid.UUID) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.refs[ref]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	tran := s.ledger[idx]
	return &tran, nil
}

func (s *state) query(filter domain.TransactionFilter) []domain.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Transaction, 0)
	for i := range s.ledger {
		if filter.Match(&s.ledger[i]) {
			out = append(out, s.ledger[i])
		}
	}
	return out
}

func (s *state) create(name string, balance decimal.Decimal) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.names[name]; ok {
		return nil, domain.ErrAccountAlreadyExists
	}
	rec := &record{Op: opCreate, Account: &accountRecord{
		ID:        s.nextAccountID + 1,
		Name:      name,
		Balance:   domain.Normalize(balance),
		CreatedAt: s.now(),
	}}
	if err := s.write(rec); err != nil {
		return nil, err
	}
	return s.accounts[rec.Account.ID].Clone(), nil
}

// rename 呼叫端需持有該帳戶的獨占存取
func (s *state) rename(id int64, name, newName string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok || acc.Name != name {
		// 取得存取權之前已被改名或刪除
		return nil, domain.ErrAccountNotFound
	}
	if name == newName {
		return acc.Clone(), nil
	}
	if _, taken := s.names[newName]; taken {
		return nil, domain.ErrAccountAlreadyExists
	}
	if err := s.write(&record{Op: opRename, Account: &accountRecord{ID: id, Name: newName}}); err != nil {
		return nil, err
	}
	return s.accounts[id].Clone(), nil
}

// remove 呼叫端需持有該帳戶的獨占存取
func (s *state) remove(id int64, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok || acc.Name != name {
		return domain.ErrAccountNotFound
	}
	return s.write(&record{Op: opDelete, Account: &accountRecord{ID: id}})
}

// begin 讀出已取得獨占存取的帳戶，交給 staged.Tx 暫存變動
func (s *state) begin(ids []int64) *staged.Tx {
	tx := staged.New(ids)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range ids {
		if acc, ok := s.accounts[id]; ok {
			tx.Load(acc)
		}
	}
	return tx
}

// commit 驗證後寫入 WAL，再一次套用所有暫存變動
func (s *state) commit(t *staged.Tx) error {
	if t.Empty() {
		return nil
	}
	if err := t.Verify(); err != nil {
		return err
	}
	entries := t.Entries()

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := &record{Op: opCommit, Transactions: make([]domain.Transaction, 0, len(entries))}
	nextID := int64(len(s.ledger))
	for _, e := range entries {
		if e.RefID != uuid.Nil {
			if _, dup := s.refs[e.RefID]; dup {
				return domain.ErrDuplicateTransaction
			}
		}
		nextID++
		tran := *e
		tran.ID = nextID
		tran.Amount = domain.Normalize(tran.Amount)
		if tran.Timestamp.IsZero() {
			tran.Timestamp = s.now()
		}
		rec.Transactions = append(rec.Transactions, tran)
	}
	if err := s.write(rec); err != nil {
		return err
	}
	for i, e := range entries {
		*e = rec.Transactions[i]
	}
	return nil
}

// logCommitFailure 只記錄技術性失敗，重複的 RefID 或已刪除帳戶交給上層處理
func logCommitFailure(logger *zap.Logger, accountIDs []int64, err error) {
	if errors.Is(err, domain.ErrStorageFailure) || errors.Is(err, domain.ErrInvariantViolation) {
		logger.Error("commit failed", zap.Int64s("account_ids", accountIDs), zap.Error(err))
	}
}
