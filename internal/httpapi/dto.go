package httpapi

import (
	"time"

	"github.com/google/uuid"
	"github.com/govalues/money"

	"github.com/erpcore/books/internal/ledger"
)

// Request DTOs are validated structurally (go-playground/validator) before the
// domain services run their own content validation. Amounts travel as integer
// minor units on the wire.

type createAccountRequest struct {
	Code            string     `json:"code" validate:"required"`
	Name            string     `json:"name" validate:"required"`
	Type            string     `json:"type" validate:"required,oneof=asset liability equity revenue expense"`
	Category        string     `json:"category" validate:"required"`
	IsGroup         bool       `json:"is_group"`
	ParentAccountID *uuid.UUID `json:"parent_account_id,omitempty"`
	Currency        string     `json:"currency" validate:"omitempty,len=3"`
	OpeningMinor    int64      `json:"opening_balance_minor"`
}

func (req createAccountRequest) toDomain(defaultCurrency string) ledger.Account {
	currency := req.Currency
	if currency == "" {
		currency = defaultCurrency
	}
	return ledger.Account{
		Code:         req.Code,
		Name:         req.Name,
		Type:         ledger.AccountType(req.Type),
		Category:     req.Category,
		IsGroup:      req.IsGroup,
		ParentID:     req.ParentAccountID,
		Currency:     currency,
		OpeningMinor: req.OpeningMinor,
	}
}

type updateAccountRequest struct {
	Name            *string    `json:"name,omitempty"`
	Category        *string    `json:"category,omitempty"`
	ParentAccountID *uuid.UUID `json:"parent_account_id,omitempty"`
	ClearParent     bool       `json:"clear_parent,omitempty"`
}

type accountResponse struct {
	ID           uuid.UUID  `json:"id"`
	Code         string     `json:"code"`
	Name         string     `json:"name"`
	Type         string     `json:"type"`
	Category     string     `json:"category"`
	IsGroup      bool       `json:"is_group"`
	ParentID     *uuid.UUID `json:"parent_account_id,omitempty"`
	Currency     string     `json:"currency"`
	System       bool       `json:"system"`
	Active       bool       `json:"active"`
	OpeningMinor int64      `json:"opening_balance_minor"`
	BalanceMinor int64      `json:"balance_minor"`
	Level        int        `json:"level"`
}

func toAccountResponse(a ledger.Account) accountResponse {
	return accountResponse{
		ID:           a.ID,
		Code:         a.Code,
		Name:         a.Name,
		Type:         string(a.Type),
		Category:     a.Category,
		IsGroup:      a.IsGroup,
		ParentID:     a.ParentID,
		Currency:     a.Currency,
		System:       a.System,
		Active:       a.Active,
		OpeningMinor: a.OpeningMinor,
		BalanceMinor: a.BalanceMinor,
		Level:        a.Level,
	}
}

type entryRequest struct {
	AccountID   uuid.UUID `json:"account_id" validate:"required"`
	Side        string    `json:"side" validate:"required,oneof=debit credit"`
	AmountMinor int64     `json:"amount_minor" validate:"required,gt=0"`
	Currency    string    `json:"currency" validate:"omitempty,len=3"`
	Description string    `json:"description"`
}

func (req entryRequest) toDomain(defaultCurrency string) (ledger.Entry, error) {
	currency := req.Currency
	if currency == "" {
		currency = defaultCurrency
	}
	amt, err := money.NewAmountFromMinorUnits(currency, req.AmountMinor)
	if err != nil {
		return ledger.Entry{}, err
	}
	return ledger.Entry{
		AccountID:   req.AccountID,
		Side:        ledger.Side(req.Side),
		Amount:      amt,
		Description: req.Description,
	}, nil
}

type createVoucherRequest struct {
	Type      string         `json:"voucher_type" validate:"required,oneof=JV PV RV CV"`
	Date      time.Time      `json:"voucher_date" validate:"required"`
	Narration string         `json:"narration" validate:"required"`
	Reference string         `json:"reference"`
	Entries   []entryRequest `json:"entries" validate:"required,min=2,dive"`
}

func (req createVoucherRequest) toDomain(defaultCurrency string) (ledger.Voucher, error) {
	v := ledger.Voucher{
		Type:      ledger.VoucherType(req.Type),
		Date:      req.Date,
		Narration: req.Narration,
		Reference: req.Reference,
		Entries:   make([]ledger.Entry, 0, len(req.Entries)),
	}
	for _, er := range req.Entries {
		e, err := er.toDomain(defaultCurrency)
		if err != nil {
			return ledger.Voucher{}, err
		}
		v.Entries = append(v.Entries, e)
	}
	return v, nil
}

type reverseVoucherRequest struct {
	Date time.Time `json:"voucher_date" validate:"required"`
}

type entryResponse struct {
	ID          uuid.UUID `json:"id"`
	AccountID   uuid.UUID `json:"account_id"`
	Side        string    `json:"side"`
	AmountMinor int64     `json:"amount_minor"`
	Currency    string    `json:"currency"`
	Description string    `json:"description,omitempty"`
}

type voucherResponse struct {
	ID          uuid.UUID       `json:"id"`
	Number      string          `json:"number"`
	Type        string          `json:"voucher_type"`
	Date        time.Time       `json:"voucher_date"`
	Narration   string          `json:"narration"`
	Reference   string          `json:"reference,omitempty"`
	Status      string          `json:"status"`
	Entries     []entryResponse `json:"entries"`
	PostedAt    *time.Time      `json:"posted_at,omitempty"`
	TotalDebit  int64           `json:"total_debit_minor"`
	TotalCredit int64           `json:"total_credit_minor"`
}

func toVoucherResponse(v ledger.Voucher) voucherResponse {
	debit, credit := v.TotalsMinor()
	resp := voucherResponse{
		ID:          v.ID,
		Number:      v.Number,
		Type:        string(v.Type),
		Date:        v.Date,
		Narration:   v.Narration,
		Reference:   v.Reference,
		Status:      string(v.Status),
		Entries:     make([]entryResponse, 0, len(v.Entries)),
		PostedAt:    v.PostedAt,
		TotalDebit:  debit,
		TotalCredit: credit,
	}
	for _, e := range v.Entries {
		resp.Entries = append(resp.Entries, entryResponse{
			ID:          e.ID,
			AccountID:   e.AccountID,
			Side:        string(e.Side),
			AmountMinor: e.AmountMinor(),
			Currency:    e.Amount.Curr().Code(),
			Description: e.Description,
		})
	}
	return resp
}

type postVoucherResponse struct {
	Voucher        voucherResponse `json:"voucher"`
	LedgerEntryIDs []string        `json:"ledger_entry_ids"`
}

type balanceResponse struct {
	AccountID    uuid.UUID `json:"account_id"`
	Code         string    `json:"code"`
	IsGroup      bool      `json:"is_group"`
	BalanceMinor int64     `json:"balance_minor"`
	Currency     string    `json:"currency"`
}
