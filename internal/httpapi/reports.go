package httpapi

import (
	"net/http"
	"time"
)

func (s *Server) trialBalance(w http.ResponseWriter, r *http.Request) {
	var asOf *time.Time
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			badRequest(w, "as_of must be RFC3339")
			return
		}
		tt := t.UTC()
		asOf = &tt
	}
	tb, err := s.reports.TrialBalance(r.Context(), asOf)
	if err != nil {
		s.writeDomainErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, tb)
}

// reconcile checks every cached balance against ledger replay. Drift surfaces
// as a 500 integrity error.
func (s *Server) reconcile(w http.ResponseWriter, r *http.Request) {
	if err := s.reports.Reconcile(r.Context()); err != nil {
		s.writeDomainErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, map[string]bool{"reconciled": true})
}
