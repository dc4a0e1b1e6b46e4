package httpapi

import (
	"net/http"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/erpcore/books/internal/coa"
	"github.com/erpcore/books/internal/ledger"
)

func (s *Server) createAccount(w http.ResponseWriter, r *http.Request) {
	if !requireJSON(w, r) {
		return
	}
	var req createAccountRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeRequestErr(w, err)
		return
	}
	created, err := s.accounts.Create(r.Context(), req.toDomain(s.defaultCurrency))
	if err != nil {
		s.writeDomainErr(w, r, err)
		return
	}
	toJSON(w, http.StatusCreated, toAccountResponse(created))
}

func (s *Server) listAccounts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f coa.Filter
	if raw := q.Get("type"); raw != "" {
		t := ledger.AccountType(raw)
		if !t.Valid() {
			badRequest(w, "invalid account type "+raw)
			return
		}
		f.Type = &t
	}
	if raw := q.Get("active"); raw != "" {
		active := raw == "true"
		f.Active = &active
	}
	f.Search = q.Get("search")

	accounts, err := s.accounts.List(r.Context(), f)
	if err != nil {
		s.writeDomainErr(w, r, err)
		return
	}
	out := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, toAccountResponse(a))
	}
	toJSON(w, http.StatusOK, out)
}

func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	a, err := s.accounts.Get(r.Context(), id)
	if err != nil {
		s.writeDomainErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, toAccountResponse(a))
}

// getAccountBalance returns the effective balance: the cached balance for a
// leaf, the aggregated active descendant total for a group.
func (s *Server) getAccountBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	a, err := s.accounts.Get(r.Context(), id)
	if err != nil {
		s.writeDomainErr(w, r, err)
		return
	}
	balance, err := s.accounts.EffectiveBalance(r.Context(), id)
	if err != nil {
		s.writeDomainErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, balanceResponse{
		AccountID:    a.ID,
		Code:         a.Code,
		IsGroup:      a.IsGroup,
		BalanceMinor: balance,
		Currency:     a.Currency,
	})
}

func (s *Server) updateAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	if !requireJSON(w, r) {
		return
	}
	var req updateAccountRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	updated, err := s.accounts.UpdateMeta(r.Context(), id, coa.Update{
		Name:        req.Name,
		Category:    req.Category,
		Parent:      req.ParentAccountID,
		ClearParent: req.ClearParent,
	})
	if err != nil {
		s.writeDomainErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, toAccountResponse(updated))
}

func (s *Server) deactivateAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	if err := s.accounts.Deactivate(r.Context(), id); err != nil {
		s.writeDomainErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) seedChart(w http.ResponseWriter, r *http.Request) {
	created, err := s.accounts.SeedStandardChart(r.Context())
	if err != nil {
		s.writeDomainErr(w, r, err)
		return
	}
	out := make([]accountResponse, 0, len(created))
	for _, a := range created {
		out = append(out, toAccountResponse(a))
	}
	toJSON(w, http.StatusCreated, out)
}

// parseID reads a uuid path parameter; writes 400 on failure.
func parseID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		badRequest(w, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}
