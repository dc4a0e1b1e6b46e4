// Package report derives balances and the trial balance purely from opening
// balances plus ledger replay. It is the independent check that the cached
// account balances have not drifted from ledger truth.
package report

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/erpcore/books/internal/errs"
	"github.com/erpcore/books/internal/ledger"
)

// Repo defines the read operations the reporter needs. All reads are against
// append-only data and therefore safe without locks.
type Repo interface {
	Accounts(ctx context.Context) ([]ledger.Account, error)
	LedgerEntriesByAccount(ctx context.Context, accountID uuid.UUID) ([]ledger.LedgerEntry, error)
}

// Row is one leaf account's position in the trial balance. The net sits on
// exactly one side.
type Row struct {
	AccountID   uuid.UUID          `json:"account_id"`
	Code        string             `json:"code"`
	Name        string             `json:"name"`
	Type        ledger.AccountType `json:"type"`
	DebitMinor  int64              `json:"debit_minor"`
	CreditMinor int64              `json:"credit_minor"`
}

// TrialBalance lists every leaf account's replayed position as of a moment.
type TrialBalance struct {
	AsOf             *time.Time `json:"as_of,omitempty"`
	Rows             []Row      `json:"rows"`
	TotalDebitMinor  int64      `json:"total_debit_minor"`
	TotalCreditMinor int64      `json:"total_credit_minor"`
	Balanced         bool       `json:"balanced"`
}

// Service exposes the reporting operations.
type Service interface {
	TrialBalance(ctx context.Context, asOf *time.Time) (TrialBalance, error)
	// ReplayedBalance computes a leaf account's natural balance from the
	// ledger alone, ignoring the cached balance.
	ReplayedBalance(ctx context.Context, accountID uuid.UUID, asOf *time.Time) (int64, error)
	// Reconcile compares every leaf account's cached balance against replay
	// and fails with ErrIntegrity on any drift.
	Reconcile(ctx context.Context) error
}

type service struct {
	repo Repo
}

// New constructs the reporter.
func New(repo Repo) Service { return &service{repo: repo} }

func (s *service) TrialBalance(ctx context.Context, asOf *time.Time) (TrialBalance, error) {
	accounts, err := s.repo.Accounts(ctx)
	if err != nil {
		return TrialBalance{}, err
	}
	tb := TrialBalance{AsOf: asOf, Rows: make([]Row, 0, len(accounts))}
	for _, a := range accounts {
		if a.IsGroup {
			continue
		}
		natural, err := s.replay(ctx, a, asOf)
		if err != nil {
			return TrialBalance{}, err
		}
		// Map the natural balance onto the debit-positive axis, then place
		// the net on the side it belongs to.
		net := natural
		if !a.Type.DebitNormal() {
			net = -natural
		}
		row := Row{AccountID: a.ID, Code: a.Code, Name: a.Name, Type: a.Type}
		if net >= 0 {
			row.DebitMinor = net
		} else {
			row.CreditMinor = -net
		}
		tb.Rows = append(tb.Rows, row)
		tb.TotalDebitMinor += row.DebitMinor
		tb.TotalCreditMinor += row.CreditMinor
	}
	sort.Slice(tb.Rows, func(i, j int) bool { return tb.Rows[i].Code < tb.Rows[j].Code })
	tb.Balanced = tb.TotalDebitMinor == tb.TotalCreditMinor
	return tb, nil
}

func (s *service) ReplayedBalance(ctx context.Context, accountID uuid.UUID, asOf *time.Time) (int64, error) {
	accounts, err := s.repo.Accounts(ctx)
	if err != nil {
		return 0, err
	}
	for _, a := range accounts {
		if a.ID != accountID {
			continue
		}
		if a.IsGroup {
			return 0, fmt.Errorf("%w: account %s is a group account", errs.ErrState, a.Code)
		}
		return s.replay(ctx, a, asOf)
	}
	return 0, errs.ErrNotFound
}

func (s *service) Reconcile(ctx context.Context) error {
	accounts, err := s.repo.Accounts(ctx)
	if err != nil {
		return err
	}
	var (
		mu      sync.Mutex
		drifted []string
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, a := range accounts {
		if a.IsGroup {
			continue
		}
		g.Go(func() error {
			replayed, err := s.replay(ctx, a, nil)
			if err != nil {
				return err
			}
			if replayed != a.BalanceMinor {
				mu.Lock()
				drifted = append(drifted, fmt.Sprintf("%s cached=%d replayed=%d", a.Code, a.BalanceMinor, replayed))
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if len(drifted) > 0 {
		sort.Strings(drifted)
		return fmt.Errorf("%w: balance drift on %s", errs.ErrIntegrity, strings.Join(drifted, ", "))
	}
	return nil
}

// replay folds opening balance plus ledger deltas up to asOf (inclusive).
func (s *service) replay(ctx context.Context, a ledger.Account, asOf *time.Time) (int64, error) {
	entries, err := s.repo.LedgerEntriesByAccount(ctx, a.ID)
	if err != nil {
		return 0, err
	}
	balance := a.OpeningMinor
	for _, le := range entries {
		if asOf != nil && le.PostedAt.After(*asOf) {
			continue
		}
		balance += le.Delta(a.Type)
	}
	return balance, nil
}
