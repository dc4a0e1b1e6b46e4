package report

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/govalues/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erpcore/books/internal/coa"
	"github.com/erpcore/books/internal/errs"
	"github.com/erpcore/books/internal/ledger"
	"github.com/erpcore/books/internal/posting"
	"github.com/erpcore/books/internal/storage/memory"
	"github.com/erpcore/books/internal/voucher"
)

type fixture struct {
	store    *memory.Store
	accounts coa.Service
	vouchers voucher.Service
	engine   *posting.Engine
	reports  Service
	cash     ledger.Account
	sales    ledger.Account
	rent     ledger.Account
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	accounts := coa.New(store, store)
	vouchers := voucher.New(store, store)
	engine := posting.NewEngine(store, store, vouchers, slog.New(slog.DiscardHandler))

	ctx := context.Background()
	cash, err := accounts.Create(ctx, ledger.Account{Code: "1101", Name: "Cash", Type: ledger.AccountTypeAsset, Category: "cash", Currency: "PKR", OpeningMinor: 20000})
	require.NoError(t, err)
	sales, err := accounts.Create(ctx, ledger.Account{Code: "4101", Name: "Sales", Type: ledger.AccountTypeRevenue, Category: "sales", Currency: "PKR"})
	require.NoError(t, err)
	rent, err := accounts.Create(ctx, ledger.Account{Code: "5301", Name: "Rent", Type: ledger.AccountTypeExpense, Category: "rent", Currency: "PKR"})
	require.NoError(t, err)

	return &fixture{store: store, accounts: accounts, vouchers: vouchers, engine: engine, reports: New(store), cash: cash, sales: sales, rent: rent}
}

func (f *fixture) post(t *testing.T, debitAcc, creditAcc ledger.Account, minor int64, narration string) ledger.Voucher {
	t.Helper()
	ctx := context.Background()
	amt, err := money.NewAmountFromMinorUnits("PKR", minor)
	require.NoError(t, err)
	v, err := f.vouchers.CreateDraft(ctx, ledger.Voucher{
		Type:      ledger.VoucherTypeJournal,
		Date:      time.Now().UTC(),
		Narration: narration,
		Entries: []ledger.Entry{
			{AccountID: debitAcc.ID, Side: ledger.SideDebit, Amount: amt},
			{AccountID: creditAcc.ID, Side: ledger.SideCredit, Amount: amt},
		},
	})
	require.NoError(t, err)
	res, err := f.engine.Post(ctx, v.ID)
	require.NoError(t, err)
	return res.Voucher
}

func TestTrialBalanceBalancesAndPlacesSides(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.post(t, f.cash, f.sales, 100000, "cash sales for the day")
	f.post(t, f.rent, f.cash, 30000, "march office rent paid")

	tb, err := f.reports.TrialBalance(ctx, nil)
	require.NoError(t, err)

	rows := make(map[string]Row, len(tb.Rows))
	for _, r := range tb.Rows {
		rows[r.Code] = r
	}
	// Cash: 20000 opening + 100000 - 30000 debit.
	assert.Equal(t, int64(90000), rows["1101"].DebitMinor)
	assert.Equal(t, int64(0), rows["1101"].CreditMinor)
	// Sales is credit-normal.
	assert.Equal(t, int64(100000), rows["4101"].CreditMinor)
	assert.Equal(t, int64(30000), rows["5301"].DebitMinor)

	assert.Equal(t, tb.TotalDebitMinor, int64(120000))
	// Opening balance on cash is not mirrored by a ledger entry, so totals
	// differ by exactly the opening amount.
	assert.Equal(t, tb.TotalCreditMinor, int64(100000))
	assert.False(t, tb.Balanced)
}

func TestTrialBalanceBalancedWhenOpeningsAreZero(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Neutralize the cash opening so all positions come from postings.
	f.cash.OpeningMinor = 0
	f.cash.BalanceMinor = 0
	_, err := f.store.UpdateAccount(ctx, f.cash)
	require.NoError(t, err)

	f.post(t, f.cash, f.sales, 100000, "cash sales for the day")
	f.post(t, f.rent, f.cash, 30000, "march office rent paid")

	tb, err := f.reports.TrialBalance(ctx, nil)
	require.NoError(t, err)
	// Cash nets to 70000 debit (100000 in, 30000 out), so each side totals
	// 100000, not the gross movement.
	assert.Equal(t, int64(100000), tb.TotalDebitMinor)
	assert.Equal(t, int64(100000), tb.TotalCreditMinor)
	assert.True(t, tb.Balanced)
}

func TestTrialBalanceAsOfExcludesLaterPostings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.engine.WithNow(func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) })
	f.post(t, f.cash, f.sales, 100000, "cash sales for the day")

	f.engine.WithNow(func() time.Time { return time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC) })
	f.post(t, f.rent, f.cash, 30000, "april office rent paid")

	asOf := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	tb, err := f.reports.TrialBalance(ctx, &asOf)
	require.NoError(t, err)

	rows := make(map[string]Row, len(tb.Rows))
	for _, r := range tb.Rows {
		rows[r.Code] = r
	}
	assert.Equal(t, int64(120000), rows["1101"].DebitMinor)
	assert.Equal(t, int64(0), rows["5301"].DebitMinor)
}

func TestReplayedBalanceMatchesCachedBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.post(t, f.cash, f.sales, 100000, "cash sales for the day")
	f.post(t, f.rent, f.cash, 30000, "march office rent paid")

	for _, a := range []ledger.Account{f.cash, f.sales, f.rent} {
		replayed, err := f.reports.ReplayedBalance(ctx, a.ID, nil)
		require.NoError(t, err)
		current, err := f.accounts.Get(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, current.BalanceMinor, replayed, "account %s", a.Code)
	}
}

func TestReconcileDetectsDrift(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.post(t, f.cash, f.sales, 100000, "cash sales for the day")
	require.NoError(t, f.reports.Reconcile(ctx))

	// Corrupt the cached balance behind the ledger's back.
	broken, err := f.store.Account(ctx, f.cash.ID)
	require.NoError(t, err)
	broken.BalanceMinor += 999
	_, err = f.store.UpdateAccount(ctx, broken)
	require.NoError(t, err)

	err = f.reports.Reconcile(ctx)
	require.ErrorIs(t, err, errs.ErrIntegrity)
	assert.Contains(t, err.Error(), "1101")
}
