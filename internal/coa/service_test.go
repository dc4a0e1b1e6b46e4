package coa

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erpcore/books/internal/errs"
	"github.com/erpcore/books/internal/ledger"
	"github.com/erpcore/books/internal/storage/memory"
)

func newService(t *testing.T) (Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	return New(store, store), store
}

func leaf(code, name string, typ ledger.AccountType, category string) ledger.Account {
	return ledger.Account{Code: code, Name: name, Type: typ, Category: category, Currency: "PKR"}
}

func TestCreateAssignsIdentityAndOpeningBalance(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	a := leaf("1101", "Cash in Hand", ledger.AccountTypeAsset, "cash")
	a.OpeningMinor = 50000
	created, err := svc.Create(ctx, a)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.True(t, created.Active)
	assert.Equal(t, int64(50000), created.BalanceMinor)
	assert.Equal(t, int64(0), created.Version)
	assert.Equal(t, 1, created.Level)
}

func TestCreateRejectsDuplicateCode(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, leaf("1101", "Cash", ledger.AccountTypeAsset, "cash"))
	require.NoError(t, err)

	_, err = svc.Create(ctx, leaf("1101", "Other Cash", ledger.AccountTypeAsset, "cash"))
	require.ErrorIs(t, err, errs.ErrConflict)
}

func TestCreateCollectsAllViolations(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.Create(context.Background(), ledger.Account{Type: "treasure", Category: "cash"})
	ve, ok := errs.AsValidation(err)
	require.True(t, ok)

	fields := make(map[string]string, len(ve.Violations))
	for _, v := range ve.Violations {
		fields[v.Field] = v.Code
	}
	assert.Equal(t, errs.CodeRequired, fields["code"])
	assert.Equal(t, errs.CodeRequired, fields["name"])
	assert.Equal(t, errs.CodeInvalidType, fields["type"])
	assert.Equal(t, errs.CodeRequired, fields["currency"])
}

func TestCreateValidatesCategoryForType(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.Create(context.Background(), leaf("5101", "Rent", ledger.AccountTypeExpense, "bank"))
	ve, ok := errs.AsValidation(err)
	require.True(t, ok)
	require.Len(t, ve.Violations, 1)
	assert.Equal(t, "category", ve.Violations[0].Field)
	assert.Equal(t, errs.CodeInvalidCategory, ve.Violations[0].Code)
}

func TestCreateParentConstraints(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	group := leaf("1100", "Current Assets", ledger.AccountTypeAsset, "current_asset")
	group.IsGroup = true
	parent, err := svc.Create(ctx, group)
	require.NoError(t, err)

	child := leaf("1101", "Cash", ledger.AccountTypeAsset, "cash")
	child.ParentID = &parent.ID
	created, err := svc.Create(ctx, child)
	require.NoError(t, err)
	assert.Equal(t, 2, created.Level)

	// Wrong type under an asset group.
	wrongType := leaf("4101", "Sales", ledger.AccountTypeRevenue, "sales")
	wrongType.ParentID = &parent.ID
	_, err = svc.Create(ctx, wrongType)
	ve, ok := errs.AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, errs.CodeParentInvalid, ve.Violations[0].Code)

	// A leaf cannot parent anything.
	underLeaf := leaf("1102", "Petty Cash", ledger.AccountTypeAsset, "cash")
	underLeaf.ParentID = &created.ID
	_, err = svc.Create(ctx, underLeaf)
	ve, ok = errs.AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, errs.CodeParentInvalid, ve.Violations[0].Code)
}

func TestDeactivateGuards(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	funded := leaf("1101", "Cash", ledger.AccountTypeAsset, "cash")
	funded.OpeningMinor = 100
	withBalance, err := svc.Create(ctx, funded)
	require.NoError(t, err)
	err = svc.Deactivate(ctx, withBalance.ID)
	require.ErrorIs(t, err, errs.ErrConflict)

	system := leaf("3201", "Retained Earnings", ledger.AccountTypeEquity, "retained_earnings")
	system.System = true
	sys, err := svc.Create(ctx, system)
	require.NoError(t, err)
	err = svc.Deactivate(ctx, sys.ID)
	require.ErrorIs(t, err, errs.ErrConflict)

	group := leaf("1100", "Current Assets", ledger.AccountTypeAsset, "current_asset")
	group.IsGroup = true
	g, err := svc.Create(ctx, group)
	require.NoError(t, err)
	child := leaf("1103", "Bank", ledger.AccountTypeAsset, "bank")
	child.ParentID = &g.ID
	c, err := svc.Create(ctx, child)
	require.NoError(t, err)

	err = svc.Deactivate(ctx, g.ID)
	require.ErrorIs(t, err, errs.ErrConflict)

	// Child has zero balance; deactivate it, then the group goes too.
	require.NoError(t, svc.Deactivate(ctx, c.ID))
	require.NoError(t, svc.Deactivate(ctx, g.ID))

	got, err := svc.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)
}

func TestEffectiveBalanceAggregatesActiveLeaves(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	group := leaf("1100", "Current Assets", ledger.AccountTypeAsset, "current_asset")
	group.IsGroup = true
	g, err := svc.Create(ctx, group)
	require.NoError(t, err)

	sub := leaf("1150", "Cash Accounts", ledger.AccountTypeAsset, "cash")
	sub.IsGroup = true
	sub.ParentID = &g.ID
	sg, err := svc.Create(ctx, sub)
	require.NoError(t, err)

	c1 := leaf("1101", "Cash", ledger.AccountTypeAsset, "cash")
	c1.ParentID = &sg.ID
	c1.OpeningMinor = 1000
	_, err = svc.Create(ctx, c1)
	require.NoError(t, err)

	c2 := leaf("1103", "Bank", ledger.AccountTypeAsset, "bank")
	c2.ParentID = &g.ID
	c2.OpeningMinor = 250
	_, err = svc.Create(ctx, c2)
	require.NoError(t, err)

	total, err := svc.EffectiveBalance(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1250), total)
}

func TestEffectiveBalanceDetectsCycle(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	g1 := leaf("1100", "A", ledger.AccountTypeAsset, "current_asset")
	g1.IsGroup = true
	a, err := svc.Create(ctx, g1)
	require.NoError(t, err)

	g2 := leaf("1200", "B", ledger.AccountTypeAsset, "current_asset")
	g2.IsGroup = true
	g2.ParentID = &a.ID
	b, err := svc.Create(ctx, g2)
	require.NoError(t, err)

	// Corrupt the tree behind the service's back: a's parent becomes b.
	a.ParentID = &b.ID
	_, err = store.UpdateAccount(ctx, a)
	require.NoError(t, err)

	_, err = svc.EffectiveBalance(ctx, a.ID)
	require.ErrorIs(t, err, errs.ErrIntegrity)
}

func TestListFilters(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, leaf("1101", "Cash in Hand", ledger.AccountTypeAsset, "cash"))
	require.NoError(t, err)
	sales, err := svc.Create(ctx, leaf("4101", "Product Sales", ledger.AccountTypeRevenue, "sales"))
	require.NoError(t, err)
	require.NoError(t, svc.Deactivate(ctx, sales.ID))

	typ := ledger.AccountTypeAsset
	byType, err := svc.List(ctx, Filter{Type: &typ})
	require.NoError(t, err)
	require.Len(t, byType, 1)
	assert.Equal(t, "1101", byType[0].Code)

	active := true
	byActive, err := svc.List(ctx, Filter{Active: &active})
	require.NoError(t, err)
	require.Len(t, byActive, 1)

	bySearch, err := svc.List(ctx, Filter{Search: "product"})
	require.NoError(t, err)
	require.Len(t, bySearch, 1)
	assert.Equal(t, "4101", bySearch[0].Code)

	byPrefix, err := svc.List(ctx, Filter{Search: "11"})
	require.NoError(t, err)
	require.Len(t, byPrefix, 1)
}

func TestUpdateMeta(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	group := leaf("1100", "Current Assets", ledger.AccountTypeAsset, "current_asset")
	group.IsGroup = true
	g, err := svc.Create(ctx, group)
	require.NoError(t, err)

	a, err := svc.Create(ctx, leaf("1101", "Cash", ledger.AccountTypeAsset, "cash"))
	require.NoError(t, err)

	name := "Cash in Hand"
	category := "bank"
	updated, err := svc.UpdateMeta(ctx, a.ID, Update{Name: &name, Category: &category, Parent: &g.ID})
	require.NoError(t, err)
	assert.Equal(t, "Cash in Hand", updated.Name)
	assert.Equal(t, "bank", updated.Category)
	require.NotNil(t, updated.ParentID)
	assert.Equal(t, g.ID, *updated.ParentID)
	assert.Equal(t, 2, updated.Level)

	// Invalid category for the account's type.
	bad := "sales"
	_, err = svc.UpdateMeta(ctx, a.ID, Update{Category: &bad})
	ve, ok := errs.AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, errs.CodeInvalidCategory, ve.Violations[0].Code)

	// Reparenting a group under its own descendant is refused.
	sub := leaf("1150", "Tills", ledger.AccountTypeAsset, "cash")
	sub.IsGroup = true
	sub.ParentID = &g.ID
	child, err := svc.Create(ctx, sub)
	require.NoError(t, err)
	_, err = svc.UpdateMeta(ctx, g.ID, Update{Parent: &child.ID})
	ve, ok = errs.AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, errs.CodeParentInvalid, ve.Violations[0].Code)

	// System accounts refuse edits.
	system := leaf("3201", "Retained Earnings", ledger.AccountTypeEquity, "retained_earnings")
	system.System = true
	sys, err := svc.Create(ctx, system)
	require.NoError(t, err)
	_, err = svc.UpdateMeta(ctx, sys.ID, Update{Name: &name})
	require.ErrorIs(t, err, errs.ErrConflict)

	// Clearing the parent brings the account back to root level.
	cleared, err := svc.UpdateMeta(ctx, a.ID, Update{ClearParent: true})
	require.NoError(t, err)
	assert.Nil(t, cleared.ParentID)
	assert.Equal(t, 1, cleared.Level)
}

func TestSeedStandardChart(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	created, err := svc.SeedStandardChart(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, created)

	byCode := make(map[string]ledger.Account, len(created))
	for _, a := range created {
		byCode[a.Code] = a
	}
	require.Contains(t, byCode, "1101")
	assert.False(t, byCode["1101"].IsGroup)
	require.Contains(t, byCode, "3201")
	assert.True(t, byCode["3201"].System)

	// Every parent reference resolves within the seeded chart.
	ids := make(map[uuid.UUID]struct{}, len(created))
	for _, a := range created {
		ids[a.ID] = struct{}{}
	}
	for _, a := range created {
		if a.ParentID != nil {
			_, ok := ids[*a.ParentID]
			assert.True(t, ok, "account %s has dangling parent", a.Code)
		}
	}

	_, err = svc.SeedStandardChart(ctx)
	require.ErrorIs(t, err, errs.ErrConflict)
}
