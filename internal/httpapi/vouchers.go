package httpapi

import (
	"net/http"
)

func (s *Server) createVoucher(w http.ResponseWriter, r *http.Request) {
	if !requireJSON(w, r) {
		return
	}
	var req createVoucherRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeRequestErr(w, err)
		return
	}
	v, err := req.toDomain(s.defaultCurrency)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	created, err := s.vouchers.CreateDraft(r.Context(), v)
	if err != nil {
		s.writeDomainErr(w, r, err)
		return
	}
	toJSON(w, http.StatusCreated, toVoucherResponse(created))
}

func (s *Server) listVouchers(w http.ResponseWriter, r *http.Request) {
	vouchers, err := s.vouchers.List(r.Context())
	if err != nil {
		s.writeDomainErr(w, r, err)
		return
	}
	out := make([]voucherResponse, 0, len(vouchers))
	for _, v := range vouchers {
		out = append(out, toVoucherResponse(v))
	}
	toJSON(w, http.StatusOK, out)
}

func (s *Server) getVoucher(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	v, err := s.vouchers.Get(r.Context(), id)
	if err != nil {
		s.writeDomainErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, toVoucherResponse(v))
}

func (s *Server) addEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	if !requireJSON(w, r) {
		return
	}
	var req entryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeRequestErr(w, err)
		return
	}
	e, err := req.toDomain(s.defaultCurrency)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	v, err := s.vouchers.AddEntry(r.Context(), id, e)
	if err != nil {
		s.writeDomainErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, toVoucherResponse(v))
}

func (s *Server) updateEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	entryID, ok := parseID(w, r, "entryID")
	if !ok {
		return
	}
	if !requireJSON(w, r) {
		return
	}
	var req entryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeRequestErr(w, err)
		return
	}
	e, err := req.toDomain(s.defaultCurrency)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	e.ID = entryID
	v, err := s.vouchers.UpdateEntry(r.Context(), id, e)
	if err != nil {
		s.writeDomainErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, toVoucherResponse(v))
}

func (s *Server) removeEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	entryID, ok := parseID(w, r, "entryID")
	if !ok {
		return
	}
	v, err := s.vouchers.RemoveEntry(r.Context(), id, entryID)
	if err != nil {
		s.writeDomainErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, toVoucherResponse(v))
}

// validateVoucher runs the full posting validation without posting, so clients
// can surface violations while a draft is being built.
func (s *Server) validateVoucher(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	v, err := s.vouchers.Get(r.Context(), id)
	if err != nil {
		s.writeDomainErr(w, r, err)
		return
	}
	if err := s.vouchers.ValidateForPosting(r.Context(), v); err != nil {
		s.writeDomainErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, map[string]bool{"valid": true})
}

func (s *Server) postVoucher(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	result, err := s.engine.Post(r.Context(), id)
	if err != nil {
		s.writeDomainErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, postVoucherResponse{
		Voucher:        toVoucherResponse(result.Voucher),
		LedgerEntryIDs: result.LedgerEntryIDs,
	})
}

func (s *Server) cancelVoucher(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	v, err := s.vouchers.Cancel(r.Context(), id)
	if err != nil {
		s.writeDomainErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, toVoucherResponse(v))
}

func (s *Server) reverseVoucher(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	if !requireJSON(w, r) {
		return
	}
	var req reverseVoucherRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeRequestErr(w, err)
		return
	}
	v, err := s.vouchers.Reverse(r.Context(), id, req.Date)
	if err != nil {
		s.writeDomainErr(w, r, err)
		return
	}
	toJSON(w, http.StatusCreated, toVoucherResponse(v))
}
