package http

import (
	"net/http"
	"strconv"

	"pace/internal/core"
	"pace/internal/storage"
)

type createTransactionRequest struct {
	Type        string `json:"type"`
	Amount      string `json:"amount"`
	Date        string `json:"date"`
	AccountID   int64  `json:"account_id"`
	CategoryID  *int64 `json:"category_id"`
	ToAccountID *int64 `json:"to_account_id"`
	Note        string `json:"note"`
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid JSON body: "+err.Error())
		return
	}

	amount, err := core.ParseMoney(req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		badRequest(w, "invalid date, expected YYYY-MM-DD")
		return
	}

	in := core.CreateTransactionInput{
		Type:        core.TransactionType(req.Type),
		Amount:      amount,
		Date:        date,
		AccountID:   req.AccountID,
		CategoryID:  req.CategoryID,
		ToAccountID: req.ToAccountID,
		Note:        sanitizeInput(req.Note),
	}

	t, err := s.ledger.CreateTransaction(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}

	s.invalidateReports()
	writeJSON(w, http.StatusCreated, toTransactionDTO(t))
}

type updateTransactionRequest struct {
	Type        *string      `json:"type"`
	Amount      *string      `json:"amount"`
	Date        *string      `json:"date"`
	AccountID   *int64       `json:"account_id"`
	CategoryID  jsonOptional `json:"category_id"`
	ToAccountID jsonOptional `json:"to_account_id"`
	Note        *string      `json:"note"`
}

// jsonOptional distinguishes an absent key from an explicit null.
type jsonOptional struct {
	Set   bool
	Value *int64
}

func (o *jsonOptional) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}
	v, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return err
	}
	o.Value = &v
	return nil
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "invalid transaction id")
		return
	}

	var req updateTransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid JSON body: "+err.Error())
		return
	}

	var patch core.TransactionPatch
	if req.Type != nil {
		typ := core.TransactionType(*req.Type)
		patch.Type = &typ
	}
	if req.Amount != nil {
		amount, err := core.ParseMoney(*req.Amount)
		if err != nil {
			writeError(w, err)
			return
		}
		patch.Amount = &amount
	}
	if req.Date != nil {
		date, err := parseDate(*req.Date)
		if err != nil {
			badRequest(w, "invalid date, expected YYYY-MM-DD")
			return
		}
		patch.Date = &date
	}
	patch.AccountID = req.AccountID
	if req.CategoryID.Set {
		patch.CategoryID = core.Opt(req.CategoryID.Value)
	}
	if req.ToAccountID.Set {
		patch.ToAccountID = core.Opt(req.ToAccountID.Value)
	}
	if req.Note != nil {
		patch.Note = core.Opt(sanitizeInput(*req.Note))
	}

	t, err := s.ledger.UpdateTransaction(r.Context(), id, patch)
	if err != nil {
		writeError(w, err)
		return
	}

	s.invalidateReports()
	writeJSON(w, http.StatusOK, toTransactionDTO(t))
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "invalid transaction id")
		return
	}
	t, err := s.ledger.GetTransaction(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(t))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "invalid transaction id")
		return
	}
	if err := s.ledger.DeleteTransaction(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	s.invalidateReports()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	var params storage.ListTransactionsParams
	q := r.URL.Query()

	if v := q.Get("account_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			badRequest(w, "invalid account_id")
			return
		}
		params.AccountID = &id
	}
	if v := q.Get("category_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			badRequest(w, "invalid category_id")
			return
		}
		params.CategoryID = &id
	}
	if v := q.Get("type"); v != "" {
		typ := core.TransactionType(v)
		if !typ.Valid() {
			badRequest(w, "invalid type")
			return
		}
		params.Type = &typ
	}
	if v := q.Get("from"); v != "" {
		from, err := parseDate(v)
		if err != nil {
			badRequest(w, "invalid from date, expected YYYY-MM-DD")
			return
		}
		params.From = &from
	}
	if v := q.Get("to"); v != "" {
		to, err := parseDate(v)
		if err != nil {
			badRequest(w, "invalid to date, expected YYYY-MM-DD")
			return
		}
		params.To = &to
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.ParseInt(v, 10, 64)
		if err != nil || limit < 0 {
			badRequest(w, "invalid limit")
			return
		}
		params.Limit = limit
	}
	if v := q.Get("offset"); v != "" {
		offset, err := strconv.ParseInt(v, 10, 64)
		if err != nil || offset < 0 {
			badRequest(w, "invalid offset")
			return
		}
		params.Offset = offset
	}

	ts, err := s.ledger.ListTransactions(r.Context(), params)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTOs(ts))
}
