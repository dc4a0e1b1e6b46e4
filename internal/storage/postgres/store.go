package postgres

// Package postgres provides a pgx-backed storage implementation that satisfies
// the repository and writer interfaces used across the service layer.
//
// The posting transaction takes per-account row locks (select ... for update)
// and applies balance updates with an optimistic version check, so concurrent
// postings against the same account serialize and never lose an update.
// Migrations creating the expected schema live under db/migrations.

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/money"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/erpcore/books/internal/errs"
	"github.com/erpcore/books/internal/ledger"
	"github.com/erpcore/books/internal/posting"
)

// Store holds a pgx connection pool. All methods are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// Open establishes a pgx pool using the provided connection string.
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ready pings the pool to verify connectivity.
func (s *Store) Ready(ctx context.Context) error { return s.pool.Ping(ctx) }

const accountColumns = `id, code, name, type, category, is_group, parent_id, currency, system, active, opening_minor, balance_minor, version`

func scanAccount(row pgx.Row) (ledger.Account, error) {
	var a ledger.Account
	err := row.Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.Category, &a.IsGroup, &a.ParentID, &a.Currency, &a.System, &a.Active, &a.OpeningMinor, &a.BalanceMinor, &a.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Account{}, errs.ErrNotFound
	}
	if err != nil {
		return ledger.Account{}, err
	}
	return a, nil
}

// --- Account reads ---

func (s *Store) Account(ctx context.Context, id uuid.UUID) (ledger.Account, error) {
	return scanAccount(s.pool.QueryRow(ctx, `select `+accountColumns+` from accounts where id = $1`, id))
}

func (s *Store) AccountByCode(ctx context.Context, code string) (ledger.Account, error) {
	return scanAccount(s.pool.QueryRow(ctx, `select `+accountColumns+` from accounts where code = $1`, code))
}

func (s *Store) Accounts(ctx context.Context) ([]ledger.Account, error) {
	rows, err := s.pool.Query(ctx, `select `+accountColumns+` from accounts order by code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ledger.Account, 0)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) AccountsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]ledger.Account, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]ledger.Account{}, nil
	}
	rows, err := s.pool.Query(ctx, `select `+accountColumns+` from accounts where id = any($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[uuid.UUID]ledger.Account, len(ids))
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out[a.ID] = a
	}
	return out, rows.Err()
}

// --- Account writes ---

func (s *Store) CreateAccount(ctx context.Context, a ledger.Account) (ledger.Account, error) {
	_, err := s.pool.Exec(ctx, `
		insert into accounts (`+accountColumns+`)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, a.ID, a.Code, a.Name, a.Type, a.Category, a.IsGroup, a.ParentID, strings.ToUpper(a.Currency), a.System, a.Active, a.OpeningMinor, a.BalanceMinor, a.Version)
	if isUniqueViolation(err) {
		return ledger.Account{}, fmt.Errorf("%w: account code %q exists", errs.ErrConflict, a.Code)
	}
	if err != nil {
		return ledger.Account{}, err
	}
	return a, nil
}

// UpdateAccount updates metadata fields. Balances move only through the
// posting transaction.
func (s *Store) UpdateAccount(ctx context.Context, a ledger.Account) (ledger.Account, error) {
	ct, err := s.pool.Exec(ctx, `
		update accounts
		set name=$1, category=$2, parent_id=$3, active=$4
		where id=$5
	`, a.Name, a.Category, a.ParentID, a.Active, a.ID)
	if err != nil {
		return ledger.Account{}, err
	}
	if ct.RowsAffected() == 0 {
		return ledger.Account{}, errs.ErrNotFound
	}
	return a, nil
}

// --- Voucher reads ---

func (s *Store) Voucher(ctx context.Context, id uuid.UUID) (ledger.Voucher, error) {
	var v ledger.Voucher
	err := s.pool.QueryRow(ctx, `
		select id, number, type, date, narration, reference, status, posted_at
		from vouchers where id = $1
	`, id).Scan(&v.ID, &v.Number, &v.Type, &v.Date, &v.Narration, &v.Reference, &v.Status, &v.PostedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Voucher{}, errs.ErrNotFound
	}
	if err != nil {
		return ledger.Voucher{}, err
	}
	v.Entries, err = s.voucherEntries(ctx, v.ID)
	if err != nil {
		return ledger.Voucher{}, err
	}
	return v, nil
}

func (s *Store) Vouchers(ctx context.Context) ([]ledger.Voucher, error) {
	rows, err := s.pool.Query(ctx, `
		select id, number, type, date, narration, reference, status, posted_at
		from vouchers order by number
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ledger.Voucher, 0)
	for rows.Next() {
		var v ledger.Voucher
		if err := rows.Scan(&v.ID, &v.Number, &v.Type, &v.Date, &v.Narration, &v.Reference, &v.Status, &v.PostedAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Entries, err = s.voucherEntries(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Store) voucherEntries(ctx context.Context, voucherID uuid.UUID) ([]ledger.Entry, error) {
	rows, err := s.pool.Query(ctx, `
		select id, voucher_id, account_id, side, currency, amount_minor, description
		from voucher_entries where voucher_id = $1 order by position
	`, voucherID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ledger.Entry, 0)
	for rows.Next() {
		var e ledger.Entry
		var currency string
		var minor int64
		if err := rows.Scan(&e.ID, &e.VoucherID, &e.AccountID, &e.Side, &currency, &minor, &e.Description); err != nil {
			return nil, err
		}
		e.Amount, err = money.NewAmountFromMinorUnits(currency, minor)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// --- Voucher writes ---

func (s *Store) CreateVoucher(ctx context.Context, v ledger.Voucher) (ledger.Voucher, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return ledger.Voucher{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if _, err := tx.Exec(ctx, `
		insert into vouchers (id, number, type, date, narration, reference, status, posted_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8)
	`, v.ID, v.Number, v.Type, v.Date, v.Narration, v.Reference, v.Status, v.PostedAt); err != nil {
		return ledger.Voucher{}, err
	}
	if err := insertEntries(ctx, tx, v); err != nil {
		return ledger.Voucher{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return ledger.Voucher{}, err
	}
	return v, nil
}

// UpdateVoucher replaces the voucher header and entries. Posted vouchers are
// immutable; the status guard makes that hold even under a racing post.
func (s *Store) UpdateVoucher(ctx context.Context, v ledger.Voucher) (ledger.Voucher, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return ledger.Voucher{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	ct, err := tx.Exec(ctx, `
		update vouchers
		set date=$1, narration=$2, reference=$3, status=$4
		where id=$5 and status <> 'posted'
	`, v.Date, v.Narration, v.Reference, v.Status, v.ID)
	if err != nil {
		return ledger.Voucher{}, err
	}
	if ct.RowsAffected() == 0 {
		cur, err := s.Voucher(ctx, v.ID)
		if err != nil {
			return ledger.Voucher{}, err
		}
		return ledger.Voucher{}, fmt.Errorf("%w: voucher %s is posted", errs.ErrState, cur.Number)
	}
	if _, err := tx.Exec(ctx, `delete from voucher_entries where voucher_id = $1`, v.ID); err != nil {
		return ledger.Voucher{}, err
	}
	if err := insertEntries(ctx, tx, v); err != nil {
		return ledger.Voucher{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return ledger.Voucher{}, err
	}
	return v, nil
}

func insertEntries(ctx context.Context, tx pgx.Tx, v ledger.Voucher) error {
	for i, e := range v.Entries {
		minor, _ := e.Amount.MinorUnits()
		if _, err := tx.Exec(ctx, `
			insert into voucher_entries (id, voucher_id, account_id, side, currency, amount_minor, description, position)
			values ($1,$2,$3,$4,$5,$6,$7,$8)
		`, e.ID, v.ID, e.AccountID, e.Side, e.Amount.Curr().Code(), minor, e.Description, i); err != nil {
			return fmt.Errorf("insert entry: %w", err)
		}
	}
	return nil
}

func (s *Store) NextVoucherNumber(ctx context.Context, t ledger.VoucherType) (string, error) {
	var last int64
	err := s.pool.QueryRow(ctx, `
		insert into voucher_numbers (type, last) values ($1, 1)
		on conflict (type) do update set last = voucher_numbers.last + 1
		returning last
	`, t).Scan(&last)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%06d", t, last), nil
}

// --- Ledger reads ---

const ledgerColumns = `seq, id, voucher_id, entry_id, account_id, side, amount_minor, posted_at, balance_after`

func scanLedgerEntries(rows pgx.Rows) ([]ledger.LedgerEntry, error) {
	defer rows.Close()
	out := make([]ledger.LedgerEntry, 0)
	for rows.Next() {
		var le ledger.LedgerEntry
		if err := rows.Scan(&le.Seq, &le.ID, &le.VoucherID, &le.EntryID, &le.AccountID, &le.Side, &le.AmountMinor, &le.PostedAt, &le.BalanceAfter); err != nil {
			return nil, err
		}
		out = append(out, le)
	}
	return out, rows.Err()
}

func (s *Store) LedgerEntriesByAccount(ctx context.Context, accountID uuid.UUID) ([]ledger.LedgerEntry, error) {
	rows, err := s.pool.Query(ctx, `select `+ledgerColumns+` from ledger_entries where account_id = $1 order by seq`, accountID)
	if err != nil {
		return nil, err
	}
	return scanLedgerEntries(rows)
}

func (s *Store) LedgerEntriesByVoucher(ctx context.Context, voucherID uuid.UUID) ([]ledger.LedgerEntry, error) {
	rows, err := s.pool.Query(ctx, `select `+ledgerColumns+` from ledger_entries where voucher_id = $1 order by seq`, voucherID)
	if err != nil {
		return nil, err
	}
	return scanLedgerEntries(rows)
}

func (s *Store) LedgerEntries(ctx context.Context) ([]ledger.LedgerEntry, error) {
	rows, err := s.pool.Query(ctx, `select `+ledgerColumns+` from ledger_entries order by seq`)
	if err != nil {
		return nil, err
	}
	return scanLedgerEntries(rows)
}

// --- Posting transaction ---

// PostingTx implements posting.TxRunner over a pgx transaction.
func (s *Store) PostingTx(ctx context.Context, fn func(ctx context.Context, tx posting.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(ctx, &postingTx{tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

type postingTx struct {
	tx pgx.Tx
}

func (t *postingTx) AccountForUpdate(ctx context.Context, id uuid.UUID) (ledger.Account, error) {
	return scanAccount(t.tx.QueryRow(ctx, `select `+accountColumns+` from accounts where id = $1 for update`, id))
}

func (t *postingTx) AppendLedgerEntry(ctx context.Context, le ledger.LedgerEntry) (ledger.LedgerEntry, error) {
	err := t.tx.QueryRow(ctx, `
		insert into ledger_entries (id, voucher_id, entry_id, account_id, side, amount_minor, posted_at, balance_after)
		values ($1,$2,$3,$4,$5,$6,$7,$8)
		returning seq
	`, le.ID, le.VoucherID, le.EntryID, le.AccountID, le.Side, le.AmountMinor, le.PostedAt, le.BalanceAfter).Scan(&le.Seq)
	if err != nil {
		return ledger.LedgerEntry{}, err
	}
	return le, nil
}

func (t *postingTx) UpdateAccountBalance(ctx context.Context, id uuid.UUID, balanceMinor, expectedVersion int64) error {
	ct, err := t.tx.Exec(ctx, `
		update accounts set balance_minor=$1, version=version+1
		where id=$2 and version=$3
	`, balanceMinor, id, expectedVersion)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("%w: account %s version changed", errs.ErrConflict, id)
	}
	return nil
}

func (t *postingTx) MarkVoucherPosted(ctx context.Context, id uuid.UUID, at time.Time) error {
	ct, err := t.tx.Exec(ctx, `
		update vouchers set status='posted', posted_at=$1
		where id=$2 and status='draft'
	`, at, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("%w: voucher %s is not draft", errs.ErrState, id)
	}
	return nil
}

// isUniqueViolation matches Postgres error 23505 (unique_violation).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
