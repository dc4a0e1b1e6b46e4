// Package posting implements the ledger posting engine: the one-way door that
// turns a validated draft voucher into immutable ledger entries and balance
// updates, atomically.
package posting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/erpcore/books/internal/errs"
	"github.com/erpcore/books/internal/ledger"
	"github.com/erpcore/books/internal/seq"
)

// Repo defines the read operations the engine needs outside a transaction.
type Repo interface {
	Voucher(ctx context.Context, id uuid.UUID) (ledger.Voucher, error)
	LedgerEntriesByVoucher(ctx context.Context, voucherID uuid.UUID) ([]ledger.LedgerEntry, error)
}

// Tx is the unit-of-work surface the engine drives inside one atomic commit.
// Implementations guarantee all-or-nothing semantics: if the callback passed
// to TxRunner fails, none of these calls leave any effect.
type Tx interface {
	// AccountForUpdate re-reads an account with an update lock held.
	AccountForUpdate(ctx context.Context, id uuid.UUID) (ledger.Account, error)
	// AppendLedgerEntry writes an immutable entry and assigns its global Seq.
	AppendLedgerEntry(ctx context.Context, le ledger.LedgerEntry) (ledger.LedgerEntry, error)
	// UpdateAccountBalance applies a new balance if the stored version still
	// matches expectedVersion; otherwise it fails with ErrConflict.
	UpdateAccountBalance(ctx context.Context, id uuid.UUID, balanceMinor, expectedVersion int64) error
	// MarkVoucherPosted flips a draft voucher to posted.
	MarkVoucherPosted(ctx context.Context, id uuid.UUID, at time.Time) error
}

// TxRunner opens the atomic unit of work for a posting.
type TxRunner interface {
	PostingTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Validator re-checks voucher content. Satisfied by voucher.Service.
type Validator interface {
	ValidateForPosting(ctx context.Context, v ledger.Voucher) error
}

// Result is the outcome of a successful (or idempotent) posting.
type Result struct {
	Voucher        ledger.Voucher
	LedgerEntryIDs []string
}

// Engine coordinates validation, locking and the atomic commit.
type Engine struct {
	repo      Repo
	runner    TxRunner
	validator Validator
	log       *slog.Logger

	now        func() time.Time
	newID      func() string
	maxRetries int
	backoff    time.Duration
}

// NewEngine constructs a posting engine with bounded conflict retries.
func NewEngine(repo Repo, runner TxRunner, validator Validator, log *slog.Logger) *Engine {
	return &Engine{
		repo:       repo,
		runner:     runner,
		validator:  validator,
		log:        log,
		now:        time.Now,
		newID:      seq.NewLedgerID,
		maxRetries: 3,
		backoff:    25 * time.Millisecond,
	}
}

// WithNow overrides the clock, for tests.
func (e *Engine) WithNow(now func() time.Time) {
	if now != nil {
		e.now = now
	}
}

// Post validates and posts the voucher in one atomic unit of work.
//
// Already-posted vouchers return their existing result without re-applying
// anything, so a retry after a crash cannot double-post. Conflicting
// concurrent balance updates are retried with backoff up to the bound; the
// final conflict surfaces as ErrConflict for the caller to retry.
func (e *Engine) Post(ctx context.Context, voucherID uuid.UUID) (Result, error) {
	v, err := e.repo.Voucher(ctx, voucherID)
	if err != nil {
		return Result{}, err
	}
	switch v.Status {
	case ledger.VoucherStatusPosted:
		existing, err := e.repo.LedgerEntriesByVoucher(ctx, v.ID)
		if err != nil {
			return Result{}, err
		}
		ids := make([]string, 0, len(existing))
		for _, le := range existing {
			ids = append(ids, le.ID)
		}
		return Result{Voucher: v, LedgerEntryIDs: ids}, nil
	case ledger.VoucherStatusCancelled:
		return Result{}, fmt.Errorf("%w: voucher %s is cancelled", errs.ErrState, v.Number)
	case ledger.VoucherStatusDraft:
		// proceed
	default:
		return Result{}, fmt.Errorf("%w: voucher %s has unknown status %q", errs.ErrState, v.Number, v.Status)
	}

	// Never trust a pre-validated flag from the caller.
	if err := e.validator.ValidateForPosting(ctx, v); err != nil {
		postingsTotal.WithLabelValues("validation_failed").Inc()
		return Result{}, err
	}

	var ids []string
	for attempt := 0; ; attempt++ {
		ids = nil
		postedAt := e.now().UTC()
		err = e.runner.PostingTx(ctx, func(ctx context.Context, tx Tx) error {
			var txErr error
			ids, txErr = e.apply(ctx, tx, v, postedAt)
			return txErr
		})
		if err == nil {
			v.Status = ledger.VoucherStatusPosted
			v.PostedAt = &postedAt
			break
		}
		if errors.Is(err, errs.ErrConflict) && attempt < e.maxRetries {
			postingsTotal.WithLabelValues("conflict_retry").Inc()
			e.log.Warn("posting conflict, retrying", "voucher", v.Number, "attempt", attempt+1, "err", err)
			select {
			case <-ctx.Done():
				return Result{}, ctx.Err()
			case <-time.After(e.backoff << attempt):
			}
			continue
		}
		if errors.Is(err, errs.ErrIntegrity) {
			postingsTotal.WithLabelValues("integrity").Inc()
			e.log.Error("posting aborted on integrity violation", "voucher", v.Number, "err", err)
		} else {
			postingsTotal.WithLabelValues("error").Inc()
		}
		return Result{}, err
	}

	postingsTotal.WithLabelValues("posted").Inc()
	e.log.Info("voucher posted", "voucher", v.Number, "entries", len(ids))
	return Result{Voucher: v, LedgerEntryIDs: ids}, nil
}

// apply runs inside the unit of work. It re-reads every referenced account
// under an update lock, computes balance deltas in entry order, appends the
// ledger entries and applies the balance updates with a version check.
func (e *Engine) apply(ctx context.Context, tx Tx, v ledger.Voucher, postedAt time.Time) ([]string, error) {
	accountIDs := distinctAccountIDs(v.Entries)
	// Stable lock order prevents deadlocks between concurrent postings.
	sort.Slice(accountIDs, func(i, j int) bool {
		return accountIDs[i].String() < accountIDs[j].String()
	})

	accounts := make(map[uuid.UUID]ledger.Account, len(accountIDs))
	for _, id := range accountIDs {
		acc, err := tx.AccountForUpdate(ctx, id)
		if err != nil {
			return nil, err
		}
		// Validation passed outside the transaction; a non-postable account
		// here means it changed concurrently.
		if !acc.Postable() {
			return nil, fmt.Errorf("%w: account %s became non-postable during posting", errs.ErrConflict, acc.Code)
		}
		accounts[id] = acc
	}

	if debit, credit := v.TotalsMinor(); debit != credit {
		return nil, fmt.Errorf("%w: voucher %s totals drifted inside transaction (debit=%d credit=%d)", errs.ErrIntegrity, v.Number, debit, credit)
	}

	balances := make(map[uuid.UUID]int64, len(accounts))
	for id, acc := range accounts {
		balances[id] = acc.BalanceMinor
	}

	ids := make([]string, 0, len(v.Entries))
	for _, entry := range v.Entries {
		acc := accounts[entry.AccountID]
		balances[entry.AccountID] += ledger.BalanceDelta(acc.Type, entry.Side, entry.AmountMinor())
		saved, err := tx.AppendLedgerEntry(ctx, ledger.LedgerEntry{
			ID:           e.newID(),
			VoucherID:    v.ID,
			EntryID:      entry.ID,
			AccountID:    entry.AccountID,
			Side:         entry.Side,
			AmountMinor:  entry.AmountMinor(),
			PostedAt:     postedAt,
			BalanceAfter: balances[entry.AccountID],
		})
		if err != nil {
			return nil, err
		}
		ids = append(ids, saved.ID)
	}

	for _, id := range accountIDs {
		if err := tx.UpdateAccountBalance(ctx, id, balances[id], accounts[id].Version); err != nil {
			return nil, err
		}
	}

	if err := tx.MarkVoucherPosted(ctx, v.ID, postedAt); err != nil {
		return nil, err
	}
	return ids, nil
}

func distinctAccountIDs(entries []ledger.Entry) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(entries))
	out := make([]uuid.UUID, 0, len(entries))
	for _, e := range entries {
		if _, ok := seen[e.AccountID]; ok {
			continue
		}
		seen[e.AccountID] = struct{}{}
		out = append(out, e.AccountID)
	}
	return out
}
