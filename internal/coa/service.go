// Package coa implements the chart-of-accounts directory: typed account tree,
// code uniqueness, parent/group constraints, soft-deactivation and the
// cycle-safe aggregation of group balances.
package coa

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/erpcore/books/internal/errs"
	"github.com/erpcore/books/internal/ledger"
)

// Repo defines read operations needed by the service.
type Repo interface {
	Account(ctx context.Context, id uuid.UUID) (ledger.Account, error)
	AccountByCode(ctx context.Context, code string) (ledger.Account, error)
	Accounts(ctx context.Context) ([]ledger.Account, error)
}

// Writer defines write operations needed by the service.
type Writer interface {
	CreateAccount(ctx context.Context, a ledger.Account) (ledger.Account, error)
	UpdateAccount(ctx context.Context, a ledger.Account) (ledger.Account, error)
}

// Filter narrows List results.
type Filter struct {
	Type   *ledger.AccountType
	Active *bool
	// Search matches code prefix or a case-insensitive name substring.
	Search string
}

// Update carries the editable metadata fields; nil leaves a field unchanged.
// Code, type and balances are not editable.
type Update struct {
	Name        *string
	Category    *string
	Parent      *uuid.UUID
	ClearParent bool
}

// Service exposes directory operations over the account tree.
type Service interface {
	ValidateCreate(ctx context.Context, a ledger.Account) error
	Create(ctx context.Context, a ledger.Account) (ledger.Account, error)
	Get(ctx context.Context, id uuid.UUID) (ledger.Account, error)
	List(ctx context.Context, f Filter) ([]ledger.Account, error)
	UpdateMeta(ctx context.Context, id uuid.UUID, upd Update) (ledger.Account, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
	// EffectiveBalance returns the leaf balance, or for group accounts the sum
	// of active descendant leaf balances, in minor units.
	EffectiveBalance(ctx context.Context, id uuid.UUID) (int64, error)
	// SeedStandardChart creates the default chart. No-op when any account exists.
	SeedStandardChart(ctx context.Context) ([]ledger.Account, error)
}

type service struct {
	repo   Repo
	writer Writer
}

// New constructs the account directory service.
func New(repo Repo, writer Writer) Service { return &service{repo: repo, writer: writer} }

func (s *service) ValidateCreate(ctx context.Context, a ledger.Account) error {
	violations := make([]errs.Violation, 0)
	if strings.TrimSpace(a.Code) == "" {
		violations = append(violations, errs.Violation{Field: "code", Code: errs.CodeRequired, Message: "code is required"})
	}
	if strings.TrimSpace(a.Name) == "" {
		violations = append(violations, errs.Violation{Field: "name", Code: errs.CodeRequired, Message: "name is required"})
	}
	if !a.Type.Valid() {
		violations = append(violations, errs.Violation{Field: "type", Code: errs.CodeInvalidType, Message: "invalid account type"})
	} else if !ValidCategory(a.Type, a.Category) {
		violations = append(violations, errs.Violation{Field: "category", Code: errs.CodeInvalidCategory, Message: "category not valid for type " + string(a.Type)})
	} else if !a.System && ReservedCategory(a.Type, a.Category) {
		violations = append(violations, errs.Violation{Field: "category", Code: errs.CodeInvalidCategory, Message: "category is reserved for system accounts"})
	}
	if strings.TrimSpace(a.Currency) == "" {
		violations = append(violations, errs.Violation{Field: "currency", Code: errs.CodeRequired, Message: "currency is required"})
	}
	if a.IsGroup && a.OpeningMinor != 0 {
		violations = append(violations, errs.Violation{Field: "opening_balance", Code: errs.CodeInvalidAmount, Message: "group accounts cannot carry an opening balance"})
	}
	if a.ParentID != nil {
		parent, err := s.repo.Account(ctx, *a.ParentID)
		switch {
		case err != nil:
			violations = append(violations, errs.Violation{Field: "parent_account_id", Code: errs.CodeParentInvalid, Message: "parent account not found"})
		case !parent.IsGroup:
			violations = append(violations, errs.Violation{Field: "parent_account_id", Code: errs.CodeParentInvalid, Message: "parent must be a group account"})
		case !parent.Active:
			violations = append(violations, errs.Violation{Field: "parent_account_id", Code: errs.CodeParentInvalid, Message: "parent account is inactive"})
		case parent.Type != a.Type:
			violations = append(violations, errs.Violation{Field: "parent_account_id", Code: errs.CodeParentInvalid, Message: "parent must be of type " + string(a.Type)})
		}
	}
	if len(violations) > 0 {
		return errs.Validation(violations...)
	}
	return nil
}

func (s *service) Create(ctx context.Context, a ledger.Account) (ledger.Account, error) {
	a.Code = strings.TrimSpace(a.Code)
	a.Name = strings.TrimSpace(a.Name)
	a.Currency = strings.ToUpper(strings.TrimSpace(a.Currency))
	if err := s.ValidateCreate(ctx, a); err != nil {
		return ledger.Account{}, err
	}
	if _, err := s.repo.AccountByCode(ctx, a.Code); err == nil {
		return ledger.Account{}, fmt.Errorf("%w: account code %q already exists", errs.ErrConflict, a.Code)
	}
	a.ID = uuid.New()
	a.Active = true
	a.BalanceMinor = a.OpeningMinor
	a.Version = 0
	created, err := s.writer.CreateAccount(ctx, a)
	if err != nil {
		return ledger.Account{}, err
	}
	return s.withLevel(ctx, created)
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (ledger.Account, error) {
	a, err := s.repo.Account(ctx, id)
	if err != nil {
		return ledger.Account{}, err
	}
	return s.withLevel(ctx, a)
}

func (s *service) List(ctx context.Context, f Filter) ([]ledger.Account, error) {
	all, err := s.repo.Accounts(ctx)
	if err != nil {
		return nil, err
	}
	byID := indexByID(all)
	out := make([]ledger.Account, 0, len(all))
	for _, a := range all {
		if f.Type != nil && a.Type != *f.Type {
			continue
		}
		if f.Active != nil && a.Active != *f.Active {
			continue
		}
		if f.Search != "" && !matchesSearch(a, f.Search) {
			continue
		}
		lvl, err := levelOf(a, byID)
		if err != nil {
			return nil, err
		}
		a.Level = lvl
		out = append(out, a)
	}
	return out, nil
}

// UpdateMeta edits name, category or parent. System accounts refuse edits. A
// parent change revalidates the parent constraints and must not close a cycle.
func (s *service) UpdateMeta(ctx context.Context, id uuid.UUID, upd Update) (ledger.Account, error) {
	a, err := s.repo.Account(ctx, id)
	if err != nil {
		return ledger.Account{}, err
	}
	if a.System {
		return ledger.Account{}, fmt.Errorf("%w: system account %s cannot be edited", errs.ErrConflict, a.Code)
	}
	violations := make([]errs.Violation, 0)
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			violations = append(violations, errs.Violation{Field: "name", Code: errs.CodeRequired, Message: "name is required"})
		}
		a.Name = name
	}
	if upd.Category != nil {
		if !ValidCategory(a.Type, *upd.Category) {
			violations = append(violations, errs.Violation{Field: "category", Code: errs.CodeInvalidCategory, Message: "category not valid for type " + string(a.Type)})
		} else if ReservedCategory(a.Type, *upd.Category) {
			violations = append(violations, errs.Violation{Field: "category", Code: errs.CodeInvalidCategory, Message: "category is reserved for system accounts"})
		}
		a.Category = *upd.Category
	}
	switch {
	case upd.ClearParent:
		a.ParentID = nil
	case upd.Parent != nil:
		parent, err := s.repo.Account(ctx, *upd.Parent)
		switch {
		case err != nil:
			violations = append(violations, errs.Violation{Field: "parent_account_id", Code: errs.CodeParentInvalid, Message: "parent account not found"})
		case !parent.IsGroup:
			violations = append(violations, errs.Violation{Field: "parent_account_id", Code: errs.CodeParentInvalid, Message: "parent must be a group account"})
		case !parent.Active:
			violations = append(violations, errs.Violation{Field: "parent_account_id", Code: errs.CodeParentInvalid, Message: "parent account is inactive"})
		case parent.Type != a.Type:
			violations = append(violations, errs.Violation{Field: "parent_account_id", Code: errs.CodeParentInvalid, Message: "parent must be of type " + string(a.Type)})
		default:
			if err := s.checkNoCycle(ctx, a.ID, parent); err != nil {
				violations = append(violations, errs.Violation{Field: "parent_account_id", Code: errs.CodeParentInvalid, Message: "parent change would create a cycle"})
			}
			a.ParentID = upd.Parent
		}
	}
	if len(violations) > 0 {
		return ledger.Account{}, errs.Validation(violations...)
	}
	saved, err := s.writer.UpdateAccount(ctx, a)
	if err != nil {
		return ledger.Account{}, err
	}
	return s.withLevel(ctx, saved)
}

// checkNoCycle walks up from the candidate parent; reaching id means the
// reparent would close a loop.
func (s *service) checkNoCycle(ctx context.Context, id uuid.UUID, parent ledger.Account) error {
	all, err := s.repo.Accounts(ctx)
	if err != nil {
		return err
	}
	byID := indexByID(all)
	visited := make(map[uuid.UUID]struct{})
	cur := parent
	for {
		if cur.ID == id {
			return fmt.Errorf("%w: cycle via %s", errs.ErrConflict, cur.Code)
		}
		if _, seen := visited[cur.ID]; seen {
			return fmt.Errorf("%w: cycle in parent chain at %s", errs.ErrIntegrity, cur.Code)
		}
		visited[cur.ID] = struct{}{}
		if cur.ParentID == nil {
			return nil
		}
		next, ok := byID[*cur.ParentID]
		if !ok {
			return nil
		}
		cur = next
	}
}

// Deactivate soft-deletes an account. System accounts and leaf accounts with
// a non-zero balance are protected; group accounts must have no active children.
func (s *service) Deactivate(ctx context.Context, id uuid.UUID) error {
	a, err := s.repo.Account(ctx, id)
	if err != nil {
		return err
	}
	if a.System {
		return fmt.Errorf("%w: system account %s cannot be deactivated", errs.ErrConflict, a.Code)
	}
	if !a.IsGroup && a.BalanceMinor != 0 {
		return fmt.Errorf("%w: account %s has a non-zero balance", errs.ErrConflict, a.Code)
	}
	if a.IsGroup {
		all, err := s.repo.Accounts(ctx)
		if err != nil {
			return err
		}
		for _, other := range all {
			if other.Active && other.ParentID != nil && *other.ParentID == a.ID {
				return fmt.Errorf("%w: group %s still has active children", errs.ErrConflict, a.Code)
			}
		}
	}
	a.Active = false
	_, err = s.writer.UpdateAccount(ctx, a)
	return err
}

// EffectiveBalance walks the subtree iteratively with a visited set so a
// corrupted parent chain fails with ErrIntegrity instead of looping.
func (s *service) EffectiveBalance(ctx context.Context, id uuid.UUID) (int64, error) {
	root, err := s.repo.Account(ctx, id)
	if err != nil {
		return 0, err
	}
	if !root.IsGroup {
		return root.BalanceMinor, nil
	}
	all, err := s.repo.Accounts(ctx)
	if err != nil {
		return 0, err
	}
	children := make(map[uuid.UUID][]ledger.Account, len(all))
	for _, a := range all {
		if a.ParentID != nil {
			children[*a.ParentID] = append(children[*a.ParentID], a)
		}
	}
	var total int64
	visited := map[uuid.UUID]struct{}{root.ID: {}}
	stack := []uuid.UUID{root.ID}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, child := range children[cur] {
			if _, seen := visited[child.ID]; seen {
				return 0, fmt.Errorf("%w: cycle in account tree at %s", errs.ErrIntegrity, child.Code)
			}
			visited[child.ID] = struct{}{}
			if !child.Active {
				continue
			}
			if child.IsGroup {
				stack = append(stack, child.ID)
				continue
			}
			total += child.BalanceMinor
		}
	}
	return total, nil
}

func (s *service) SeedStandardChart(ctx context.Context) ([]ledger.Account, error) {
	existing, err := s.repo.Accounts(ctx)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, fmt.Errorf("%w: chart already seeded", errs.ErrConflict)
	}
	byCode := make(map[string]uuid.UUID, len(standardChart))
	created := make([]ledger.Account, 0, len(standardChart))
	for _, t := range standardChart {
		a := ledger.Account{
			ID:       uuid.New(),
			Code:     t.Code,
			Name:     t.Name,
			Type:     t.Type,
			Category: t.Category,
			IsGroup:  t.IsGroup,
			Currency: "PKR",
			System:   t.System,
			Active:   true,
		}
		if t.Parent != "" {
			pid, ok := byCode[t.Parent]
			if !ok {
				return nil, fmt.Errorf("%w: template parent %s missing", errs.ErrIntegrity, t.Parent)
			}
			a.ParentID = &pid
		}
		saved, err := s.writer.CreateAccount(ctx, a)
		if err != nil {
			return nil, err
		}
		byCode[t.Code] = saved.ID
		created = append(created, saved)
	}
	return created, nil
}

// withLevel computes the derived tree depth for a single account.
func (s *service) withLevel(ctx context.Context, a ledger.Account) (ledger.Account, error) {
	all, err := s.repo.Accounts(ctx)
	if err != nil {
		return ledger.Account{}, err
	}
	lvl, err := levelOf(a, indexByID(all))
	if err != nil {
		return ledger.Account{}, err
	}
	a.Level = lvl
	return a, nil
}

// levelOf walks the parent chain; a revisited node means a cycle.
func levelOf(a ledger.Account, byID map[uuid.UUID]ledger.Account) (int, error) {
	level := 1
	visited := map[uuid.UUID]struct{}{a.ID: {}}
	cur := a
	for cur.ParentID != nil {
		parent, ok := byID[*cur.ParentID]
		if !ok {
			return 0, fmt.Errorf("%w: account %s references missing parent", errs.ErrIntegrity, cur.Code)
		}
		if _, seen := visited[parent.ID]; seen {
			return 0, fmt.Errorf("%w: cycle in parent chain at %s", errs.ErrIntegrity, parent.Code)
		}
		visited[parent.ID] = struct{}{}
		level++
		cur = parent
	}
	return level, nil
}

func indexByID(accounts []ledger.Account) map[uuid.UUID]ledger.Account {
	byID := make(map[uuid.UUID]ledger.Account, len(accounts))
	for _, a := range accounts {
		byID[a.ID] = a
	}
	return byID
}

func matchesSearch(a ledger.Account, term string) bool {
	term = strings.TrimSpace(term)
	if term == "" {
		return true
	}
	if strings.HasPrefix(a.Code, term) {
		return true
	}
	return strings.Contains(strings.ToLower(a.Name), strings.ToLower(term))
}
