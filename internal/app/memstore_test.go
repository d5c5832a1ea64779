package app

import (
	"bytes"
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/engagely/points-service/internal/domain"
	"github.com/engagely/points-service/internal/logging"
	"github.com/engagely/points-service/internal/store"
	"github.com/google/uuid"
)

// memState is the data a memStore holds. Transactions work on a clone and swap it
// in on commit, so a failed transaction leaves nothing behind.
type memState struct {
	accounts    map[uuid.UUID]domain.Account
	entries     []domain.LedgerEntry
	tasks       map[uuid.UUID]domain.Task
	completions map[[2]uuid.UUID]int64
	settings    domain.PromotionSettings
}

func (s *memState) clone() *memState {
	c := &memState{
		accounts:    make(map[uuid.UUID]domain.Account, len(s.accounts)),
		entries:     append([]domain.LedgerEntry(nil), s.entries...),
		tasks:       make(map[uuid.UUID]domain.Task, len(s.tasks)),
		completions: make(map[[2]uuid.UUID]int64, len(s.completions)),
		settings:    s.settings,
	}
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.tasks {
		c.tasks[k] = v
	}
	for k, v := range s.completions {
		c.completions[k] = v
	}
	return c
}

// memStore is an in-memory store.Repository. One mutex serializes transactions,
// which is a coarse stand-in for row locks.
type memStore struct {
	mu        sync.Mutex
	state     *memState
	conflicts int
	txCount   int
	// completionRaces makes the next InsertCompletion calls behave as if another
	// transaction committed the same completion first.
	completionRaces int
	// lockLog records every LockAccount call in order.
	lockLog []uuid.UUID
}

func newMemStore() *memStore {
	return &memStore{state: &memState{
		accounts:    map[uuid.UUID]domain.Account{},
		tasks:       map[uuid.UUID]domain.Task{},
		completions: map[[2]uuid.UUID]int64{},
		settings:    domain.DefaultPromotionSettings(),
	}}
}

func (m *memStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txCount++
	if m.conflicts > 0 {
		m.conflicts--
		return store.ErrConcurrencyConflict
	}
	work := m.state.clone()
	if err := fn(&memTx{st: work, store: m}); err != nil {
		return err
	}
	m.state = work
	return nil
}

// seed inserts an account with an opening balance backed by a ledger entry so the
// ledger-sum invariant holds from the start.
func (m *memStore) seed(username string, balance int64) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.state.accounts[id] = domain.Account{
		ID:       id,
		UserID:   "user_" + username,
		Username: username,
		Kind:     domain.AccountKindUser,
		Balance:  balance,
	}
	if balance != 0 {
		m.state.entries = append(m.state.entries, domain.LedgerEntry{
			ID:           uuid.New(),
			AccountID:    id,
			Amount:       balance,
			Category:     domain.CategoryAdminAdjust,
			BalanceAfter: balance,
			CreatedAt:    time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
		})
	}
	return id
}

func (m *memStore) account(id uuid.UUID) domain.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.accounts[id]
}

func (m *memStore) task(id uuid.UUID) domain.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.tasks[id]
}

func (m *memStore) entriesFor(id uuid.UUID) []domain.LedgerEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.LedgerEntry
	for _, e := range m.state.entries {
		if e.AccountID == id {
			out = append(out, e)
		}
	}
	return out
}

// ledgerMismatches lists accounts whose balance differs from their entry sum or
// is negative.
func (m *memStore) ledgerMismatches() []uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	sums := map[uuid.UUID]int64{}
	for _, e := range m.state.entries {
		sums[e.AccountID] += e.Amount
	}
	var bad []uuid.UUID
	for id, a := range m.state.accounts {
		if a.Balance != sums[id] || a.Balance < 0 {
			bad = append(bad, id)
		}
	}
	return bad
}

func (m *memStore) FindAccountByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.state.accounts[id]
	if !ok {
		return nil, store.ErrAccountNotFound
	}
	return &a, nil
}

func (m *memStore) FindAccountByUserID(ctx context.Context, userID string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.state.accounts {
		if a.UserID == userID && a.Active() {
			return &a, nil
		}
	}
	return nil, store.ErrAccountNotFound
}

func (m *memStore) FindAccountByUsername(ctx context.Context, username string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.state.accounts {
		if strings.EqualFold(a.Username, username) && a.Active() {
			return &a, nil
		}
	}
	return nil, store.ErrAccountNotFound
}

func (m *memStore) ListLedgerEntries(ctx context.Context, accountID uuid.UUID, cursor *store.HistoryCursor, limit int) ([]domain.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []domain.LedgerEntry
	for _, e := range m.state.entries {
		if e.AccountID != accountID {
			continue
		}
		if cursor != nil && !entryBefore(e, cursor.CreatedAt, cursor.ID) {
			continue
		}
		matched = append(matched, e)
	}
	sort.Slice(matched, func(i, j int) bool {
		return entryBefore(matched[j], matched[i].CreatedAt, matched[i].ID)
	})
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// entryBefore reports whether e sorts strictly before (createdAt, id) in
// ascending (created_at, id) order.
func entryBefore(e domain.LedgerEntry, createdAt time.Time, id uuid.UUID) bool {
	if !e.CreatedAt.Equal(createdAt) {
		return e.CreatedAt.Before(createdAt)
	}
	return bytes.Compare(e.ID[:], id[:]) < 0
}

func (m *memStore) TopAccounts(ctx context.Context, limit int) ([]domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return topAccounts(m.state, limit), nil
}

func topAccounts(st *memState, limit int) []domain.Account {
	var out []domain.Account
	for _, a := range st.accounts {
		if a.Kind == domain.AccountKindUser && a.Active() {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Balance != out[j].Balance {
			return out[i].Balance > out[j].Balance
		}
		return bytes.Compare(out[i].ID[:], out[j].ID[:]) < 0
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (m *memStore) FindTaskByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.state.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	return &t, nil
}

func (m *memStore) ListTasks(ctx context.Context, filter domain.TaskFilter) ([]domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Task
	for _, t := range m.state.tasks {
		if filter.ActiveOnly && t.Status != domain.TaskStatusActive {
			continue
		}
		if filter.Platform != "" && t.Platform != filter.Platform {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (m *memStore) GetPromotionSettings(ctx context.Context) (domain.PromotionSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.settings, nil
}

func (m *memStore) UpdatePromotionSettings(ctx context.Context, settings domain.PromotionSettings) (domain.PromotionSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.settings = settings
	return settings, nil
}

func (m *memStore) ListAccountIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uuid.UUID
	for id := range m.state.accounts {
		if bytes.Compare(id[:], after[:]) > 0 {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return bytes.Compare(ids[i][:], ids[j][:]) < 0 })
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (m *memStore) AuditAccount(ctx context.Context, accountID uuid.UUID) (store.LedgerAudit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.state.accounts[accountID]
	if !ok {
		return store.LedgerAudit{}, store.ErrAccountNotFound
	}
	audit := store.LedgerAudit{AccountID: accountID, Balance: a.Balance}
	for _, e := range m.state.entries {
		if e.AccountID == accountID {
			audit.LedgerSum += e.Amount
			audit.EntryCount++
		}
	}
	return audit, nil
}

func (m *memStore) MarkExhaustedTasks(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, t := range m.state.tasks {
		if t.Status == domain.TaskStatusActive && !t.CanPayOut() {
			t.Status = domain.TaskStatusExhausted
			m.state.tasks[id] = t
			n++
		}
	}
	return n, nil
}

// memTx implements store.Tx against a cloned memState.
type memTx struct {
	st    *memState
	store *memStore
}

func (t *memTx) LockAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	if t.store != nil {
		t.store.lockLog = append(t.store.lockLog, id)
	}
	a, ok := t.st.accounts[id]
	if !ok || !a.Active() {
		return nil, store.ErrAccountNotFound
	}
	return &a, nil
}

func (t *memTx) LockAccountByUserID(ctx context.Context, userID string) (*domain.Account, error) {
	for _, a := range t.st.accounts {
		if a.UserID == userID && a.Active() {
			return &a, nil
		}
	}
	return nil, store.ErrAccountNotFound
}

func (t *memTx) InsertAccount(ctx context.Context, account *domain.Account) error {
	for _, a := range t.st.accounts {
		if a.UserID == account.UserID {
			return store.ErrDuplicate
		}
	}
	a := *account
	a.Balance = 0
	t.st.accounts[a.ID] = a
	return nil
}

func (t *memTx) SoftDeleteAccount(ctx context.Context, id uuid.UUID) error {
	a, ok := t.st.accounts[id]
	if !ok || !a.Active() {
		return store.ErrAccountNotFound
	}
	now := time.Now()
	a.DeletedAt = &now
	t.st.accounts[id] = a
	return nil
}

func (t *memTx) ApplyBalanceDelta(ctx context.Context, accountID uuid.UUID, amount int64) (int64, error) {
	a, ok := t.st.accounts[accountID]
	if !ok || !a.Active() {
		return 0, store.ErrAccountNotFound
	}
	if a.Balance+amount < 0 {
		return 0, store.ErrInsufficientFunds
	}
	a.Balance += amount
	t.st.accounts[accountID] = a
	return a.Balance, nil
}

func (t *memTx) InsertLedgerEntry(ctx context.Context, entry *domain.LedgerEntry) error {
	t.st.entries = append(t.st.entries, *entry)
	return nil
}

func (t *memTx) SaveDailyLoginState(ctx context.Context, accountID uuid.UUID, state domain.DailyLoginState) error {
	a := t.st.accounts[accountID]
	a.DailyLogin = state
	t.st.accounts[accountID] = a
	return nil
}

func (t *memTx) TopAccountIDs(ctx context.Context, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for _, a := range topAccounts(t.st, limit) {
		ids = append(ids, a.ID)
	}
	return ids, nil
}

func (t *memTx) LockTask(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	task, ok := t.st.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	return &task, nil
}

func (t *memTx) InsertTask(ctx context.Context, task *domain.Task) error {
	if _, ok := t.st.accounts[task.CreatorID]; !ok {
		return store.ErrAccountNotFound
	}
	t.st.tasks[task.ID] = *task
	return nil
}

func (t *memTx) UpdateTask(ctx context.Context, task *domain.Task) error {
	if _, ok := t.st.tasks[task.ID]; !ok {
		return store.ErrTaskNotFound
	}
	t.st.tasks[task.ID] = *task
	return nil
}

func (t *memTx) HasCompletion(ctx context.Context, taskID, accountID uuid.UUID) (bool, error) {
	_, ok := t.st.completions[[2]uuid.UUID{taskID, accountID}]
	return ok, nil
}

func (t *memTx) InsertCompletion(ctx context.Context, taskID, accountID uuid.UUID, payout int64) error {
	key := [2]uuid.UUID{taskID, accountID}
	if t.store != nil && t.store.completionRaces > 0 {
		// WithTx holds the store lock, so the committed state can be written here.
		t.store.completionRaces--
		t.store.state.completions[key] = payout
		return store.ErrDuplicate
	}
	if _, ok := t.st.completions[key]; ok {
		return store.ErrDuplicate
	}
	t.st.completions[key] = payout
	return nil
}

// recordingNotifier captures balance updates and can be told to fail.
type recordingNotifier struct {
	mu      sync.Mutex
	updates []domain.BalanceUpdate
	err     error
}

func (n *recordingNotifier) Notify(ctx context.Context, update domain.BalanceUpdate) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.updates = append(n.updates, update)
	return n.err
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.updates)
}

// testClock is a settable time source.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestService(repo store.Repository, notifier Notifier) (*Service, *testClock) {
	settings := DefaultSettings()
	settings.RetryBaseDelay = 0
	svc := NewService(repo, notifier, logging.Discard(), settings)
	clock := &testClock{now: time.Date(2026, time.September, 1, 9, 0, 0, 0, time.UTC)}
	svc.SetClock(clock.Now)
	svc.SetTargetDrawer(func(min, max int64) int64 { return 300 })
	return svc, clock
}

func assertLedgerConsistent(t interface {
	Helper()
	Fatalf(string, ...any)
}, repo *memStore) {
	t.Helper()
	if bad := repo.ledgerMismatches(); len(bad) > 0 {
		t.Fatalf("ledger does not match balances for accounts %v", bad)
	}
}
