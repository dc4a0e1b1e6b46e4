// Package memory provides an in-memory implementation of the repository and
// writer interfaces, used for development and tests. Posting runs as a staged
// transaction: mutations buffer against a view and apply only if the whole
// unit of work succeeds, so a mid-flight failure leaves zero partial effects.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/erpcore/books/internal/errs"
	"github.com/erpcore/books/internal/ledger"
	"github.com/erpcore/books/internal/posting"
)

// Store is guarded by an RWMutex for concurrent reads and serialized writes.
type Store struct {
	mu               sync.RWMutex
	accounts         map[uuid.UUID]ledger.Account
	codes            map[string]uuid.UUID
	vouchers         map[uuid.UUID]ledger.Voucher
	entries          []ledger.LedgerEntry
	entriesByAccount map[uuid.UUID][]int
	entriesByVoucher map[uuid.UUID][]int
	numbers          map[ledger.VoucherType]uint64
	seq              uint64
}

// New constructs an empty in-memory store.
func New() *Store {
	return &Store{
		accounts:         make(map[uuid.UUID]ledger.Account),
		codes:            make(map[string]uuid.UUID),
		vouchers:         make(map[uuid.UUID]ledger.Voucher),
		entriesByAccount: make(map[uuid.UUID][]int),
		entriesByVoucher: make(map[uuid.UUID][]int),
		numbers:          make(map[ledger.VoucherType]uint64),
	}
}

// Ready implements the readiness probe; an in-memory store is always ready.
func (s *Store) Ready(context.Context) error { return nil }

// --- Account reads ---

func (s *Store) Account(_ context.Context, id uuid.UUID) (ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return ledger.Account{}, errs.ErrNotFound
	}
	return a, nil
}

func (s *Store) AccountByCode(_ context.Context, code string) (ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.codes[code]
	if !ok {
		return ledger.Account{}, errs.ErrNotFound
	}
	return s.accounts[id], nil
}

func (s *Store) Accounts(_ context.Context) ([]ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *Store) AccountsByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[uuid.UUID]ledger.Account, len(ids))
	for _, id := range ids {
		if a, ok := s.accounts[id]; ok {
			out[id] = a
		}
	}
	return out, nil
}

// --- Account writes ---

func (s *Store) CreateAccount(_ context.Context, a ledger.Account) (ledger.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[a.ID]; exists {
		return ledger.Account{}, fmt.Errorf("%w: account id exists", errs.ErrConflict)
	}
	if _, exists := s.codes[a.Code]; exists {
		return ledger.Account{}, fmt.Errorf("%w: account code %q exists", errs.ErrConflict, a.Code)
	}
	s.accounts[a.ID] = a
	s.codes[a.Code] = a.ID
	return a, nil
}

func (s *Store) UpdateAccount(_ context.Context, a ledger.Account) (ledger.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.accounts[a.ID]
	if !ok {
		return ledger.Account{}, errs.ErrNotFound
	}
	if cur.Code != a.Code {
		if _, exists := s.codes[a.Code]; exists {
			return ledger.Account{}, fmt.Errorf("%w: account code %q exists", errs.ErrConflict, a.Code)
		}
		delete(s.codes, cur.Code)
		s.codes[a.Code] = a.ID
	}
	s.accounts[a.ID] = a
	return a, nil
}

// --- Voucher reads ---

func (s *Store) Voucher(_ context.Context, id uuid.UUID) (ledger.Voucher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vouchers[id]
	if !ok {
		return ledger.Voucher{}, errs.ErrNotFound
	}
	return copyVoucher(v), nil
}

func (s *Store) Vouchers(_ context.Context) ([]ledger.Voucher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.Voucher, 0, len(s.vouchers))
	for _, v := range s.vouchers {
		out = append(out, copyVoucher(v))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

// --- Voucher writes ---

func (s *Store) CreateVoucher(_ context.Context, v ledger.Voucher) (ledger.Voucher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.vouchers[v.ID]; exists {
		return ledger.Voucher{}, fmt.Errorf("%w: voucher id exists", errs.ErrConflict)
	}
	s.vouchers[v.ID] = copyVoucher(v)
	return v, nil
}

func (s *Store) UpdateVoucher(_ context.Context, v ledger.Voucher) (ledger.Voucher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.vouchers[v.ID]
	if !ok {
		return ledger.Voucher{}, errs.ErrNotFound
	}
	// Posted vouchers are immutable outside the posting transaction.
	if cur.Status == ledger.VoucherStatusPosted {
		return ledger.Voucher{}, fmt.Errorf("%w: voucher %s is posted", errs.ErrState, cur.Number)
	}
	s.vouchers[v.ID] = copyVoucher(v)
	return v, nil
}

func (s *Store) NextVoucherNumber(_ context.Context, t ledger.VoucherType) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.numbers[t]++
	return fmt.Sprintf("%s-%06d", t, s.numbers[t]), nil
}

// --- Ledger reads ---

func (s *Store) LedgerEntriesByAccount(_ context.Context, accountID uuid.UUID) ([]ledger.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idxs := s.entriesByAccount[accountID]
	out := make([]ledger.LedgerEntry, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, s.entries[i])
	}
	return out, nil
}

func (s *Store) LedgerEntriesByVoucher(_ context.Context, voucherID uuid.UUID) ([]ledger.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idxs := s.entriesByVoucher[voucherID]
	out := make([]ledger.LedgerEntry, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, s.entries[i])
	}
	return out, nil
}

// LedgerEntries returns the whole ledger in sequence order.
func (s *Store) LedgerEntries(_ context.Context) ([]ledger.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.LedgerEntry, len(s.entries))
	copy(out, s.entries)
	return out, nil
}

// --- Posting transaction ---

// PostingTx implements posting.TxRunner. The write lock is held for the whole
// unit of work; fn's mutations stage against a buffer and apply only when fn
// returns nil.
func (s *Store) PostingTx(ctx context.Context, fn func(ctx context.Context, tx posting.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &postingTx{store: s, balances: make(map[uuid.UUID]stagedBalance)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	tx.applyLocked()
	return nil
}

type stagedBalance struct {
	balanceMinor int64
}

type postingTx struct {
	store    *Store
	appended []ledger.LedgerEntry
	balances map[uuid.UUID]stagedBalance
	voucher  uuid.UUID
	postedAt time.Time
	marked   bool
}

func (t *postingTx) AccountForUpdate(_ context.Context, id uuid.UUID) (ledger.Account, error) {
	a, ok := t.store.accounts[id]
	if !ok {
		return ledger.Account{}, errs.ErrNotFound
	}
	return a, nil
}

func (t *postingTx) AppendLedgerEntry(_ context.Context, le ledger.LedgerEntry) (ledger.LedgerEntry, error) {
	le.Seq = t.store.seq + uint64(len(t.appended)) + 1
	t.appended = append(t.appended, le)
	return le, nil
}

func (t *postingTx) UpdateAccountBalance(_ context.Context, id uuid.UUID, balanceMinor, expectedVersion int64) error {
	a, ok := t.store.accounts[id]
	if !ok {
		return errs.ErrNotFound
	}
	if a.Version != expectedVersion {
		return fmt.Errorf("%w: account %s version changed", errs.ErrConflict, a.Code)
	}
	t.balances[id] = stagedBalance{balanceMinor: balanceMinor}
	return nil
}

func (t *postingTx) MarkVoucherPosted(_ context.Context, id uuid.UUID, at time.Time) error {
	v, ok := t.store.vouchers[id]
	if !ok {
		return errs.ErrNotFound
	}
	if v.Status != ledger.VoucherStatusDraft {
		return fmt.Errorf("%w: voucher %s is %s", errs.ErrState, v.Number, v.Status)
	}
	t.voucher = id
	t.postedAt = at
	t.marked = true
	return nil
}

// applyLocked commits the staged mutations. Caller holds the write lock.
func (t *postingTx) applyLocked() {
	s := t.store
	for _, le := range t.appended {
		s.entries = append(s.entries, le)
		i := len(s.entries) - 1
		s.entriesByAccount[le.AccountID] = append(s.entriesByAccount[le.AccountID], i)
		s.entriesByVoucher[le.VoucherID] = append(s.entriesByVoucher[le.VoucherID], i)
	}
	s.seq += uint64(len(t.appended))
	for id, b := range t.balances {
		a := s.accounts[id]
		a.BalanceMinor = b.balanceMinor
		a.Version++
		s.accounts[id] = a
	}
	if t.marked {
		v := s.vouchers[t.voucher]
		v.Status = ledger.VoucherStatusPosted
		at := t.postedAt
		v.PostedAt = &at
		s.vouchers[t.voucher] = v
	}
}

// copyVoucher returns a deep copy so callers cannot alias stored entries.
func copyVoucher(v ledger.Voucher) ledger.Voucher {
	out := v
	out.Entries = make([]ledger.Entry, len(v.Entries))
	copy(out.Entries, v.Entries)
	if v.PostedAt != nil {
		at := *v.PostedAt
		out.PostedAt = &at
	}
	return out
}
