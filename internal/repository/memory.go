package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"recharge_desk/internal/model"
)

type memoryData struct {
	users        []model.User
	admins       []model.Admin
	transactions []model.Transaction
	logs         []model.AdminLog
}

func (d *memoryData) clone() *memoryData {
	return &memoryData{
		users:        append([]model.User(nil), d.users...),
		admins:       append([]model.Admin(nil), d.admins...),
		transactions: append([]model.Transaction(nil), d.transactions...),
		logs:         append([]model.AdminLog(nil), d.logs...),
	}
}

// MemoryStore keeps everything in process memory. Nothing survives a
// restart; it backs local runs without PostgreSQL and handler tests.
type MemoryStore struct {
	mu   *sync.RWMutex
	data *memoryData
	// pending is set inside WithTx and collects the writes to replay on commit
	pending *[]memoryOp
}

// memoryOp is one write, replayable against another copy of the data
type memoryOp func(d *memoryData) error

// NewMemoryStore creates an empty in-memory Store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		mu:   &sync.RWMutex{},
		data: &memoryData{},
	}
}

func (s *MemoryStore) Users() UserRepository               { return memoryUsers{s} }
func (s *MemoryStore) Admins() AdminRepository             { return memoryAdmins{s} }
func (s *MemoryStore) Transactions() TransactionRepository { return memoryTransactions{s} }
func (s *MemoryStore) AdminLogs() AdminLogRepository       { return memoryLogs{s} }
func (s *MemoryStore) Ping(context.Context) error          { return nil }

// WithTx runs fn against a private copy of the data. Other callers never see
// its writes until fn succeeds; then the writes are replayed onto the live data
// and either all of them apply or none do.
func (s *MemoryStore) WithTx(ctx context.Context, fn func(tx Store) error) error {
	if s.pending != nil {
		return fn(s)
	}

	s.mu.RLock()
	work := s.data.clone()
	s.mu.RUnlock()

	ops := []memoryOp{}
	tx := &MemoryStore{mu: &sync.RWMutex{}, data: work, pending: &ops}
	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.data.clone()
	for _, op := range ops {
		if err := op(next); err != nil {
			return err
		}
	}
	*s.data = *next
	return nil
}

// apply runs op under the write lock and records it when inside a transaction
func (s *MemoryStore) apply(op memoryOp) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := op(s.data); err != nil {
		return err
	}
	if s.pending != nil {
		*s.pending = append(*s.pending, op)
	}
	return nil
}

type memoryUsers struct{ s *MemoryStore }

func (r memoryUsers) Create(_ context.Context, user *model.User) error {
	u := *user
	return r.s.apply(func(d *memoryData) error {
		for _, existing := range d.users {
			if existing.Email == u.Email || existing.ID == u.ID {
				return ErrAlreadyExists
			}
		}
		d.users = append(d.users, u)
		return nil
	})
}

func (r memoryUsers) FindByEmail(_ context.Context, email string) (*model.User, error) {
	return r.find(func(u model.User) bool { return u.Email == email })
}

func (r memoryUsers) FindByID(_ context.Context, id string) (*model.User, error) {
	return r.find(func(u model.User) bool { return u.ID == id })
}

func (r memoryUsers) find(match func(model.User) bool) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.data.users {
		if match(u) {
			found := u
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

type memoryAdmins struct{ s *MemoryStore }

func (r memoryAdmins) CreateIfAbsent(_ context.Context, admin *model.Admin) (bool, error) {
	a := *admin
	created := false
	err := r.s.apply(func(d *memoryData) error {
		created = false
		for _, existing := range d.admins {
			if existing.Username == a.Username {
				return nil
			}
		}
		d.admins = append(d.admins, a)
		created = true
		return nil
	})
	return created, err
}

func (r memoryAdmins) FindByUsername(_ context.Context, username string) (*model.Admin, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, a := range r.s.data.admins {
		if a.Username == username {
			found := a
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

type memoryTransactions struct{ s *MemoryStore }

func (r memoryTransactions) Create(_ context.Context, t *model.Transaction) error {
	row := *t
	return r.s.apply(func(d *memoryData) error {
		for _, existing := range d.transactions {
			if existing.ID == row.ID {
				return ErrAlreadyExists
			}
		}
		d.transactions = append(d.transactions, row)
		return nil
	})
}

func (r memoryTransactions) FindByID(_ context.Context, id string) (*model.Transaction, error) {
	return r.findOne(func(t model.Transaction) bool { return t.ID == id })
}

func (r memoryTransactions) FindOwned(_ context.Context, id, userID string) (*model.Transaction, error) {
	return r.findOne(func(t model.Transaction) bool { return t.ID == id && t.UserID == userID })
}

func (r memoryTransactions) FindByUser(_ context.Context, userID string) ([]model.Transaction, error) {
	return r.list(func(t model.Transaction) bool { return t.UserID == userID }), nil
}

func (r memoryTransactions) FindAll(_ context.Context, f model.TransactionFilters) ([]model.Transaction, error) {
	return r.list(func(t model.Transaction) bool {
		return (f.UserID == nil || t.UserID == *f.UserID) &&
			(f.Status == nil || t.Status == *f.Status) &&
			(f.TransactionType == nil || t.TransactionType == *f.TransactionType) &&
			(f.Operator == nil || t.Operator == *f.Operator)
	}), nil
}

func (r memoryTransactions) UpdateStatus(_ context.Context, id string, status model.Status, updatedAt time.Time) error {
	return r.update(id, func(t *model.Transaction) {
		t.Status = status
		t.UpdatedAt = updatedAt
	})
}

func (r memoryTransactions) AttachReceipt(_ context.Context, id, filename string, updatedAt time.Time) error {
	return r.update(id, func(t *model.Transaction) {
		name := filename
		t.ReceiptFilename = &name
		t.Status = model.StatusPaid
		t.UpdatedAt = updatedAt
	})
}

func (r memoryTransactions) Stats(_ context.Context) (*model.TransactionStats, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	stats := &model.TransactionStats{ByStatus: make(map[model.Status]int64)}
	for _, s := range model.Statuses {
		stats.ByStatus[s] = 0
	}
	for _, t := range r.s.data.transactions {
		stats.ByStatus[t.Status]++
		stats.Total++
		if t.Status == model.StatusCompleted {
			stats.CompletedTotal += t.Value()
		}
	}
	return stats, nil
}

func (r memoryTransactions) findOne(match func(model.Transaction) bool) (*model.Transaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, t := range r.s.data.transactions {
		if match(t) {
			found := t
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

func (r memoryTransactions) update(id string, change func(*model.Transaction)) error {
	return r.s.apply(func(d *memoryData) error {
		for i := range d.transactions {
			if d.transactions[i].ID == id {
				change(&d.transactions[i])
				return nil
			}
		}
		return ErrNotFound
	})
}

// list returns matches newest first; equal timestamps keep reverse insertion order
func (r memoryTransactions) list(match func(model.Transaction) bool) []model.Transaction {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []model.Transaction{}
	for i := len(r.s.data.transactions) - 1; i >= 0; i-- {
		if t := r.s.data.transactions[i]; match(t) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > model.MaxListResults {
		out = out[:model.MaxListResults]
	}
	return out
}

type memoryLogs struct{ s *MemoryStore }

func (r memoryLogs) Create(_ context.Context, entry *model.AdminLog) error {
	e := *entry
	return r.s.apply(func(d *memoryData) error {
		d.logs = append(d.logs, e)
		return nil
	})
}

func (r memoryLogs) FindAll(_ context.Context, f model.AdminLogFilters) ([]model.AdminLog, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []model.AdminLog{}
	for i := len(r.s.data.logs) - 1; i >= 0; i-- {
		entry := r.s.data.logs[i]
		if f.TransactionID != nil && entry.TransactionID != *f.TransactionID {
			continue
		}
		out = append(out, entry)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > model.MaxListResults {
		out = out[:model.MaxListResults]
	}
	return out, nil
}
