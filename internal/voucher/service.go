// Package voucher implements drafting and validation of vouchers: the mutable
// proposals that the posting engine turns into ledger history. All content
// validation funnels through ValidateForPosting so the HTTP layer and the
// engine can never diverge.
package voucher

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/erpcore/books/internal/errs"
	"github.com/erpcore/books/internal/ledger"
)

// MinNarrationLen is the minimum accepted narration length in bytes.
const MinNarrationLen = 5

// Repo defines read operations needed by the service.
type Repo interface {
	Voucher(ctx context.Context, id uuid.UUID) (ledger.Voucher, error)
	Vouchers(ctx context.Context) ([]ledger.Voucher, error)
	AccountsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]ledger.Account, error)
}

// Writer defines write operations needed by the service.
type Writer interface {
	CreateVoucher(ctx context.Context, v ledger.Voucher) (ledger.Voucher, error)
	UpdateVoucher(ctx context.Context, v ledger.Voucher) (ledger.Voucher, error)
	// NextVoucherNumber reserves the next sequential number for a type.
	NextVoucherNumber(ctx context.Context, t ledger.VoucherType) (string, error)
}

// Service exposes the voucher lifecycle up to (but excluding) posting.
type Service interface {
	CreateDraft(ctx context.Context, v ledger.Voucher) (ledger.Voucher, error)
	Get(ctx context.Context, id uuid.UUID) (ledger.Voucher, error)
	List(ctx context.Context) ([]ledger.Voucher, error)
	AddEntry(ctx context.Context, voucherID uuid.UUID, e ledger.Entry) (ledger.Voucher, error)
	UpdateEntry(ctx context.Context, voucherID uuid.UUID, e ledger.Entry) (ledger.Voucher, error)
	RemoveEntry(ctx context.Context, voucherID, entryID uuid.UUID) (ledger.Voucher, error)
	Cancel(ctx context.Context, id uuid.UUID) (ledger.Voucher, error)
	// Reverse creates a new draft whose entries mirror a posted voucher with
	// sides flipped. Posted vouchers are corrected this way, never edited.
	Reverse(ctx context.Context, id uuid.UUID, date time.Time) (ledger.Voucher, error)
	// ValidateForPosting checks full posting readiness and reports every
	// violation it finds. The posting engine re-runs this unconditionally.
	ValidateForPosting(ctx context.Context, v ledger.Voucher) error
}

type service struct {
	repo   Repo
	writer Writer
}

// New constructs the voucher service.
func New(repo Repo, writer Writer) Service { return &service{repo: repo, writer: writer} }

func (s *service) CreateDraft(ctx context.Context, v ledger.Voucher) (ledger.Voucher, error) {
	if violations := structuralViolations(v); len(violations) > 0 {
		return ledger.Voucher{}, errs.Validation(violations...)
	}
	number, err := s.writer.NextVoucherNumber(ctx, v.Type)
	if err != nil {
		return ledger.Voucher{}, err
	}
	v.ID = uuid.New()
	v.Number = number
	v.Status = ledger.VoucherStatusDraft
	v.PostedAt = nil
	for i := range v.Entries {
		v.Entries[i].ID = uuid.New()
		v.Entries[i].VoucherID = v.ID
	}
	return s.writer.CreateVoucher(ctx, v)
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (ledger.Voucher, error) {
	return s.repo.Voucher(ctx, id)
}

func (s *service) List(ctx context.Context) ([]ledger.Voucher, error) {
	return s.repo.Vouchers(ctx)
}

func (s *service) AddEntry(ctx context.Context, voucherID uuid.UUID, e ledger.Entry) (ledger.Voucher, error) {
	v, err := s.draftForEdit(ctx, voucherID)
	if err != nil {
		return ledger.Voucher{}, err
	}
	if violations := entryViolations(e, "entry"); len(violations) > 0 {
		return ledger.Voucher{}, errs.Validation(violations...)
	}
	e.ID = uuid.New()
	e.VoucherID = v.ID
	v.Entries = append(v.Entries, e)
	return s.writer.UpdateVoucher(ctx, v)
}

func (s *service) UpdateEntry(ctx context.Context, voucherID uuid.UUID, e ledger.Entry) (ledger.Voucher, error) {
	v, err := s.draftForEdit(ctx, voucherID)
	if err != nil {
		return ledger.Voucher{}, err
	}
	if violations := entryViolations(e, "entry"); len(violations) > 0 {
		return ledger.Voucher{}, errs.Validation(violations...)
	}
	for i := range v.Entries {
		if v.Entries[i].ID == e.ID {
			e.VoucherID = v.ID
			v.Entries[i] = e
			return s.writer.UpdateVoucher(ctx, v)
		}
	}
	return ledger.Voucher{}, errs.ErrNotFound
}

func (s *service) RemoveEntry(ctx context.Context, voucherID, entryID uuid.UUID) (ledger.Voucher, error) {
	v, err := s.draftForEdit(ctx, voucherID)
	if err != nil {
		return ledger.Voucher{}, err
	}
	if len(v.Entries) <= 2 {
		return ledger.Voucher{}, errs.Validation(errs.Violation{
			Field: "entries", Code: errs.CodeTooFewEntries, Message: "a voucher must keep at least 2 entries",
		})
	}
	kept := make([]ledger.Entry, 0, len(v.Entries)-1)
	found := false
	for _, e := range v.Entries {
		if e.ID == entryID {
			found = true
			continue
		}
		kept = append(kept, e)
	}
	if !found {
		return ledger.Voucher{}, errs.ErrNotFound
	}
	v.Entries = kept
	return s.writer.UpdateVoucher(ctx, v)
}

func (s *service) Cancel(ctx context.Context, id uuid.UUID) (ledger.Voucher, error) {
	v, err := s.repo.Voucher(ctx, id)
	if err != nil {
		return ledger.Voucher{}, err
	}
	if v.Status != ledger.VoucherStatusDraft {
		return ledger.Voucher{}, fmt.Errorf("%w: voucher %s is %s, only drafts can be cancelled", errs.ErrState, v.Number, v.Status)
	}
	v.Status = ledger.VoucherStatusCancelled
	return s.writer.UpdateVoucher(ctx, v)
}

func (s *service) Reverse(ctx context.Context, id uuid.UUID, date time.Time) (ledger.Voucher, error) {
	orig, err := s.repo.Voucher(ctx, id)
	if err != nil {
		return ledger.Voucher{}, err
	}
	if orig.Status != ledger.VoucherStatusPosted {
		return ledger.Voucher{}, fmt.Errorf("%w: voucher %s is %s, only posted vouchers can be reversed", errs.ErrState, orig.Number, orig.Status)
	}
	rev := ledger.Voucher{
		Type:      orig.Type,
		Date:      date,
		Narration: "reversal of " + orig.Number + ": " + orig.Narration,
		Reference: orig.Number,
		Entries:   make([]ledger.Entry, 0, len(orig.Entries)),
	}
	for _, e := range orig.Entries {
		rev.Entries = append(rev.Entries, ledger.Entry{
			AccountID:   e.AccountID,
			Side:        e.Side.Opposite(),
			Amount:      e.Amount,
			Description: e.Description,
		})
	}
	return s.CreateDraft(ctx, rev)
}

// ValidateForPosting is pure with respect to state: it reads accounts but
// mutates nothing, and collects every violation instead of failing fast.
func (s *service) ValidateForPosting(ctx context.Context, v ledger.Voucher) error {
	violations := structuralViolations(v)

	debit, credit := v.TotalsMinor()
	if debit != credit {
		violations = append(violations, errs.Violation{
			Field: "entries", Code: errs.CodeUnbalanced,
			Message: fmt.Sprintf("sum(debits)=%d must equal sum(credits)=%d", debit, credit),
		})
	}

	ids := make([]uuid.UUID, 0, len(v.Entries))
	for _, e := range v.Entries {
		if e.AccountID != uuid.Nil {
			ids = append(ids, e.AccountID)
		}
	}
	accounts, err := s.repo.AccountsByIDs(ctx, ids)
	if err != nil {
		return err
	}
	for i, e := range v.Entries {
		field := fmt.Sprintf("entries[%d].account_id", i)
		acc, ok := accounts[e.AccountID]
		if !ok {
			violations = append(violations, errs.Violation{Field: field, Code: errs.CodeAccountNotFound, Message: "account not found"})
			continue
		}
		if acc.IsGroup {
			violations = append(violations, errs.Violation{Field: field, Code: errs.CodeAccountNotLeaf, Message: "account " + acc.Code + " is a group account"})
		}
		if !acc.Active {
			violations = append(violations, errs.Violation{Field: field, Code: errs.CodeAccountInactive, Message: "account " + acc.Code + " is inactive"})
		}
		if cur := e.Amount.Curr().Code(); cur != acc.Currency {
			violations = append(violations, errs.Violation{
				Field: fmt.Sprintf("entries[%d].amount", i), Code: errs.CodeCurrencyMismatch,
				Message: fmt.Sprintf("entry currency %s does not match account currency %s", cur, acc.Currency),
			})
		}
	}

	if len(violations) > 0 {
		return errs.Validation(violations...)
	}
	return nil
}

// draftForEdit loads a voucher and rejects edits outside draft status.
func (s *service) draftForEdit(ctx context.Context, id uuid.UUID) (ledger.Voucher, error) {
	v, err := s.repo.Voucher(ctx, id)
	if err != nil {
		return ledger.Voucher{}, err
	}
	if v.Status != ledger.VoucherStatusDraft {
		return ledger.Voucher{}, fmt.Errorf("%w: voucher %s is %s, entries can only change while draft", errs.ErrState, v.Number, v.Status)
	}
	return v, nil
}

// structuralViolations covers the checks that apply from draft creation
// onward: type, date, narration, entry shape and debit/credit presence.
// Balance is deliberately excluded; drafts are built incrementally.
func structuralViolations(v ledger.Voucher) []errs.Violation {
	violations := make([]errs.Violation, 0)
	if !v.Type.Valid() {
		violations = append(violations, errs.Violation{Field: "voucher_type", Code: errs.CodeInvalidType, Message: "voucher type must be one of JV, PV, RV, CV"})
	}
	if v.Date.IsZero() {
		violations = append(violations, errs.Violation{Field: "voucher_date", Code: errs.CodeRequired, Message: "voucher date is required"})
	}
	if len(strings.TrimSpace(v.Narration)) < MinNarrationLen {
		violations = append(violations, errs.Violation{Field: "narration", Code: errs.CodeNarrationShort, Message: fmt.Sprintf("narration must be at least %d characters", MinNarrationLen)})
	}
	if len(v.Entries) < 2 {
		violations = append(violations, errs.Violation{Field: "entries", Code: errs.CodeTooFewEntries, Message: "a voucher needs at least 2 entries"})
	}
	var debits, credits int
	for i, e := range v.Entries {
		violations = append(violations, entryViolations(e, fmt.Sprintf("entries[%d]", i))...)
		switch e.Side {
		case ledger.SideDebit:
			debits++
		case ledger.SideCredit:
			credits++
		}
	}
	if len(v.Entries) > 0 && debits == 0 {
		violations = append(violations, errs.Violation{Field: "entries", Code: errs.CodeMissingDebit, Message: "at least one debit entry is required"})
	}
	if len(v.Entries) > 0 && credits == 0 {
		violations = append(violations, errs.Violation{Field: "entries", Code: errs.CodeMissingCredit, Message: "at least one credit entry is required"})
	}
	return violations
}

func entryViolations(e ledger.Entry, field string) []errs.Violation {
	violations := make([]errs.Violation, 0, 2)
	if e.AccountID == uuid.Nil {
		violations = append(violations, errs.Violation{Field: field + ".account_id", Code: errs.CodeRequired, Message: "account_id is required"})
	}
	if !e.Side.Valid() {
		violations = append(violations, errs.Violation{Field: field + ".side", Code: errs.CodeInvalidSide, Message: "side must be debit or credit"})
	}
	if e.AmountMinor() <= 0 {
		violations = append(violations, errs.Violation{Field: field + ".amount", Code: errs.CodeInvalidAmount, Message: "amount must be > 0"})
	}
	return violations
}
