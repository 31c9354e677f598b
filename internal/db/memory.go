package db

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	apperrors "github.com/abkawan/personal-banking/internal/errors"
	"github.com/abkawan/personal-banking/internal/models"
	"github.com/shopspring/decimal"
)

// Memory is an in-process Store. Units of work lock accounts individually,
// stage their writes and apply them under one short critical section on commit.
type Memory struct {
	mu           sync.RWMutex
	accounts     map[string]*models.Account
	transactions []*models.Transaction
	byID         map[string]*models.Transaction
	byReference  map[string]*models.Transaction
	limits       map[string]*models.TransferLimits

	locksMu sync.Mutex
	locks   map[string]chan struct{}
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		accounts:    make(map[string]*models.Account),
		byID:        make(map[string]*models.Transaction),
		byReference: make(map[string]*models.Transaction),
		limits:      make(map[string]*models.TransferLimits),
		locks:       make(map[string]chan struct{}),
	}
}

func (m *Memory) Close() error {
	return nil
}

func (m *Memory) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	tx := &memoryTx{
		store:  m,
		held:   make(map[string]bool),
		locked: make(map[string]*models.Account),
		dirty:  make(map[string]bool),
	}
	defer tx.release()

	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return apperrors.Unavailable(fmt.Errorf("unit of work aborted before commit: %w", err))
	}

	return m.commit(tx)
}

func (m *Memory) commit(tx *memoryTx) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, record := range tx.appended {
		if record.Reference == "" {
			continue
		}
		if _, exists := m.byReference[record.Reference]; exists {
			return apperrors.Conflict(fmt.Errorf("reference %s committed concurrently", record.Reference))
		}
	}

	for id := range tx.dirty {
		account := tx.locked[id].Clone()
		account.Version++
		m.accounts[id] = account
	}
	for _, record := range tx.appended {
		cp := *record
		m.transactions = append(m.transactions, &cp)
		m.byID[cp.ID] = &cp
		if cp.Reference != "" && cp.Status == models.Completed {
			m.byReference[cp.Reference] = &cp
		}
	}
	return nil
}

func (m *Memory) lockFor(key string) chan struct{} {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()

	ch, ok := m.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		m.locks[key] = ch
	}
	return ch
}

func (m *Memory) hasAccount(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.accounts[id]
	return ok
}

func (m *Memory) CreateAccount(ctx context.Context, account *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.accounts[account.ID]; exists {
		return apperrors.NewValidationError("id", "account already exists")
	}
	for _, existing := range m.accounts {
		if existing.AccountNumber == account.AccountNumber {
			return apperrors.NewValidationError("account_number", "account number already in use")
		}
	}
	if account.Balance.IsNegative() {
		return apperrors.ErrInsufficientFunds
	}

	m.accounts[account.ID] = account.Clone()
	return nil
}

func (m *Memory) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	account, ok := m.accounts[id]
	if !ok {
		return nil, apperrors.NotFound("account", id)
	}
	return account.Clone(), nil
}

func (m *Memory) ListAccounts(ctx context.Context, ownerID string, activeOnly bool) ([]*models.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var accounts []*models.Account
	for _, account := range m.accounts {
		if account.OwnerID != ownerID {
			continue
		}
		if activeOnly && account.Status != models.Active {
			continue
		}
		accounts = append(accounts, account.Clone())
	}

	sort.Slice(accounts, func(i, j int) bool {
		if accounts[i].CreatedAt.Equal(accounts[j].CreatedAt) {
			return accounts[i].ID < accounts[j].ID
		}
		return accounts[i].CreatedAt.Before(accounts[j].CreatedAt)
	})
	return accounts, nil
}

func (m *Memory) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	record, ok := m.byID[id]
	if !ok {
		return nil, apperrors.NotFound("transaction", id)
	}
	cp := *record
	return &cp, nil
}

func (m *Memory) ListTransactions(ctx context.Context, filter models.TransactionFilter) ([]*models.Transaction, error) {
	m.mu.RLock()
	var matched []*models.Transaction
	for _, record := range m.transactions {
		if filter.Matches(record) {
			cp := *record
			matched = append(matched, &cp)
		}
	}
	m.mu.RUnlock()

	// Appends are in commit order; newest first, stable for equal timestamps.
	for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
		matched[i], matched[j] = matched[j], matched[i]
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	return paginate(matched, filter.Limit, filter.Offset), nil
}

func paginate(records []*models.Transaction, limit, offset int) []*models.Transaction {
	if offset > 0 {
		if offset >= len(records) {
			return nil
		}
		records = records[offset:]
	}
	if limit > 0 && limit < len(records) {
		records = records[:limit]
	}
	return records
}

func (m *Memory) GetTransferLimits(ctx context.Context, ownerID string) (*models.TransferLimits, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	limits, ok := m.limits[ownerID]
	if !ok {
		return nil, apperrors.NotFound("transfer limits for owner", ownerID)
	}
	cp := *limits
	return &cp, nil
}

func (m *Memory) SaveTransferLimits(ctx context.Context, limits *models.TransferLimits) error {
	// Serialize with transfers holding the owner's limits.
	release, err := acquire(ctx, m.lockFor(limitsKey(limits.OwnerID)))
	if err != nil {
		return err
	}
	defer release()

	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *limits
	m.limits[limits.OwnerID] = &cp
	return nil
}

func accountKey(id string) string { return "account:" + id }

func limitsKey(ownerID string) string { return "limits:" + ownerID }

func acquire(ctx context.Context, ch chan struct{}) (func(), error) {
	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-ctx.Done():
		return nil, apperrors.Unavailable(fmt.Errorf("waiting for lock: %w", ctx.Err()))
	}
}

type memoryTx struct {
	store    *Memory
	held     map[string]bool
	releases []func()
	locked   map[string]*models.Account
	dirty    map[string]bool
	appended []*models.Transaction
}

func (tx *memoryTx) release() {
	for i := len(tx.releases) - 1; i >= 0; i-- {
		tx.releases[i]()
	}
	tx.releases = nil
}

func (tx *memoryTx) hold(ctx context.Context, key string) error {
	if tx.held[key] {
		return nil
	}
	release, err := acquire(ctx, tx.store.lockFor(key))
	if err != nil {
		return err
	}
	tx.held[key] = true
	tx.releases = append(tx.releases, release)
	return nil
}

func (tx *memoryTx) LockAccounts(ctx context.Context, ids ...string) (map[string]*models.Account, error) {
	ordered := canonicalOrder(ids)

	out := make(map[string]*models.Account, len(ordered))
	for _, id := range ordered {
		// Accounts are never removed, so a missing id stays missing and needs no lock entry.
		if !tx.store.hasAccount(id) {
			return nil, apperrors.NotFound("account", id)
		}
		if err := tx.hold(ctx, accountKey(id)); err != nil {
			return nil, err
		}
		if account, ok := tx.locked[id]; ok {
			out[id] = account
			continue
		}

		account, err := tx.store.GetAccount(ctx, id)
		if err != nil {
			return nil, err
		}
		tx.locked[id] = account
		out[id] = account
	}
	return out, nil
}

func (tx *memoryTx) LockTransferLimits(ctx context.Context, ownerID string) (*models.TransferLimits, error) {
	if err := tx.hold(ctx, limitsKey(ownerID)); err != nil {
		return nil, err
	}
	limits, err := tx.store.GetTransferLimits(ctx, ownerID)
	if apperrors.IsNotFound(err) {
		defaults := models.DefaultTransferLimits(ownerID)
		return &defaults, nil
	}
	return limits, err
}

func (tx *memoryTx) UpdateAccount(ctx context.Context, account *models.Account) error {
	if _, ok := tx.locked[account.ID]; !ok {
		return fmt.Errorf("account %s updated without holding its lock", account.ID)
	}
	if account.Balance.IsNegative() {
		return apperrors.ErrInsufficientFunds
	}
	tx.locked[account.ID] = account
	tx.dirty[account.ID] = true
	return nil
}

func (tx *memoryTx) AppendTransaction(ctx context.Context, record *models.Transaction) error {
	if record.Reference != "" {
		existing, err := tx.FindByReference(ctx, record.Reference)
		if err != nil {
			return err
		}
		if existing != nil {
			return apperrors.NewValidationError("reference", "reference already used")
		}
	}
	cp := *record
	tx.appended = append(tx.appended, &cp)
	return nil
}

func (tx *memoryTx) FindByReference(ctx context.Context, reference string) (*models.Transaction, error) {
	for _, record := range tx.appended {
		if record.Reference == reference && record.Status == models.Completed {
			cp := *record
			return &cp, nil
		}
	}

	tx.store.mu.RLock()
	defer tx.store.mu.RUnlock()

	if record, ok := tx.store.byReference[reference]; ok {
		cp := *record
		return &cp, nil
	}
	return nil, nil
}

func (tx *memoryTx) SumOutgoingTransfers(ctx context.Context, ownerID string, since time.Time) (decimal.Decimal, error) {
	total := decimal.Zero
	counts := func(record *models.Transaction, owner func(string) string) bool {
		return record.Type == models.Transfer &&
			record.Status == models.Completed &&
			!record.CreatedAt.Before(since) &&
			owner(record.FromAccountID) == ownerID
	}

	tx.store.mu.RLock()
	ownerOf := func(accountID string) string {
		if account, ok := tx.store.accounts[accountID]; ok {
			return account.OwnerID
		}
		return ""
	}
	for _, record := range tx.store.transactions {
		if counts(record, ownerOf) {
			total = total.Add(record.Amount)
		}
	}
	for _, record := range tx.appended {
		if counts(record, ownerOf) {
			total = total.Add(record.Amount)
		}
	}
	tx.store.mu.RUnlock()

	return total, nil
}

// canonicalOrder sorts and de-duplicates ids so every unit of work locks in the same order.
func canonicalOrder(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	ordered := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			ordered = append(ordered, id)
		}
	}
	sort.Strings(ordered)
	return ordered
}
