package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/govalues/money"
)

// Side represents the accounting position of a voucher entry.
type Side string

const (
	// SideDebit records a value on the debit side of an account.
	SideDebit Side = "debit"
	// SideCredit records a value on the credit side of an account.
	SideCredit Side = "credit"
)

// Valid reports whether s is one of the two recognised sides.
func (s Side) Valid() bool { return s == SideDebit || s == SideCredit }

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideDebit {
		return SideCredit
	}
	return SideDebit
}

// AccountType enumerates the broad classification of an account in the chart.
type AccountType string

const (
	// AccountTypeAsset increases on the debit side and holds resources owned by the entity.
	AccountTypeAsset AccountType = "asset"
	// AccountTypeLiability increases on the credit side and tracks obligations.
	AccountTypeLiability AccountType = "liability"
	// AccountTypeEquity captures the owner's residual interest in the entity.
	AccountTypeEquity AccountType = "equity"
	// AccountTypeRevenue represents inflows that increase equity.
	AccountTypeRevenue AccountType = "revenue"
	// AccountTypeExpense represents outflows that decrease equity.
	AccountTypeExpense AccountType = "expense"
)

// Valid reports whether t is a recognised account type.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}

// DebitNormal reports whether accounts of this type increase on the debit side.
// Asset and expense accounts are debit-normal; liability, equity and revenue
// accounts are credit-normal.
func (t AccountType) DebitNormal() bool {
	return t == AccountTypeAsset || t == AccountTypeExpense
}

// BalanceDelta returns the signed minor-unit change a movement applies to an
// account's natural balance under the standard double-entry sign convention:
// debit-normal accounts grow on debit and shrink on credit, credit-normal
// accounts grow on credit and shrink on debit.
func BalanceDelta(t AccountType, side Side, amountMinor int64) int64 {
	if t.DebitNormal() == (side == SideDebit) {
		return amountMinor
	}
	return -amountMinor
}

// Account is a node in the chart of accounts. Group accounts aggregate their
// descendants and hold no postable balance of their own; leaf accounts carry
// the balances the ledger moves.
type Account struct {
	ID       uuid.UUID
	Code     string
	Name     string
	Type     AccountType
	Category string
	IsGroup  bool
	ParentID *uuid.UUID
	Currency string
	// System marks reserved accounts that cannot be edited or deactivated.
	System bool
	// Active indicates whether the account accepts postings (soft-delete when false).
	Active bool
	// OpeningMinor is the balance the account was created with, in minor units.
	OpeningMinor int64
	// BalanceMinor is the cached current balance in minor units. Leaf accounts
	// only; changed exclusively by the posting engine after creation.
	BalanceMinor int64
	// Version guards balance updates with optimistic concurrency.
	Version int64
	// Level is the depth in the account tree, root = 1. Derived, not stored.
	Level int
}

// Postable reports whether the account can appear on a voucher entry.
func (a Account) Postable() bool { return a.Active && !a.IsGroup }

// VoucherType enumerates the voucher number series.
type VoucherType string

const (
	// VoucherTypeJournal covers general journal adjustments.
	VoucherTypeJournal VoucherType = "JV"
	// VoucherTypePayment covers outgoing payments.
	VoucherTypePayment VoucherType = "PV"
	// VoucherTypeReceipt covers incoming receipts.
	VoucherTypeReceipt VoucherType = "RV"
	// VoucherTypeContra covers movements between cash/bank accounts.
	VoucherTypeContra VoucherType = "CV"
)

// Valid reports whether t is a recognised voucher type.
func (t VoucherType) Valid() bool {
	switch t {
	case VoucherTypeJournal, VoucherTypePayment, VoucherTypeReceipt, VoucherTypeContra:
		return true
	}
	return false
}

// VoucherStatus is the lifecycle state of a voucher.
type VoucherStatus string

const (
	// VoucherStatusDraft vouchers are mutable and have no ledger effect.
	VoucherStatusDraft VoucherStatus = "draft"
	// VoucherStatusPosted vouchers are immutable ledger history.
	VoucherStatusPosted VoucherStatus = "posted"
	// VoucherStatusCancelled vouchers were abandoned before posting.
	VoucherStatusCancelled VoucherStatus = "cancelled"
)

// Entry is a single debit or credit movement proposed by a voucher.
type Entry struct {
	ID          uuid.UUID
	VoucherID   uuid.UUID
	AccountID   uuid.UUID
	Side        Side
	Amount      money.Amount
	Description string
}

// AmountMinor returns the entry amount in minor units.
func (e Entry) AmountMinor() int64 {
	units, _ := e.Amount.MinorUnits()
	return units
}

// Voucher is an unposted proposal for a balanced set of movements. It becomes
// ledger history only through the posting engine.
type Voucher struct {
	ID        uuid.UUID
	Number    string
	Type      VoucherType
	Date      time.Time
	Narration string
	Reference string
	Status    VoucherStatus
	Entries   []Entry
	PostedAt  *time.Time
}

// TotalsMinor sums the debit and credit entries in minor units.
func (v Voucher) TotalsMinor() (debit, credit int64) {
	for _, e := range v.Entries {
		switch e.Side {
		case SideDebit:
			debit += e.AmountMinor()
		case SideCredit:
			credit += e.AmountMinor()
		}
	}
	return debit, credit
}

// Entry returns the entry with the given id, if present.
func (v Voucher) Entry(id uuid.UUID) (Entry, bool) {
	for _, e := range v.Entries {
		if e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

// LedgerEntry is an immutable movement produced by posting a voucher entry.
// Once written it is never updated or deleted.
type LedgerEntry struct {
	// ID is a ULID; ids sort lexicographically in posting order.
	ID string
	// Seq is the global posting sequence, strictly increasing across the ledger.
	Seq         uint64
	VoucherID   uuid.UUID
	EntryID     uuid.UUID
	AccountID   uuid.UUID
	Side        Side
	AmountMinor int64
	PostedAt    time.Time
	// BalanceAfter snapshots the account balance after this movement. It is an
	// optimisation; replaying the ledger must reproduce it.
	BalanceAfter int64
}

// Delta returns the signed balance change this movement applied, given the
// account's type.
func (le LedgerEntry) Delta(t AccountType) int64 {
	return BalanceDelta(t, le.Side, le.AmountMinor)
}
