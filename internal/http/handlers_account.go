package http

import (
	"net/http"

	"pace/internal/core"
)

type createAccountRequest struct {
	Name                string `json:"name"`
	Type                string `json:"type"`
	Currency            string `json:"currency"`
	InitialBalanceCents int64  `json:"initial_balance_cents"`
	IncludeInTotal      *bool  `json:"include_in_total"`
	Color               string `json:"color"`
	Icon                string `json:"icon"`
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid JSON body: "+err.Error())
		return
	}

	in := core.CreateAccountInput{
		Name:           sanitizeInput(req.Name),
		Type:           core.AccountType(req.Type),
		Currency:       req.Currency,
		InitialBalance: core.Money{Cents: req.InitialBalanceCents},
		IncludeInTotal: true,
		Color:          req.Color,
		Icon:           req.Icon,
	}
	if in.Currency == "" {
		in.Currency = "EUR"
	}
	if req.IncludeInTotal != nil {
		in.IncludeInTotal = *req.IncludeInTotal
	}

	a, err := s.ledger.CreateAccount(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}

	s.invalidateReports()
	writeJSON(w, http.StatusCreated, toAccountDTO(a))
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "invalid account id")
		return
	}
	a, err := s.ledger.GetAccount(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountDTO(a))
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.ledger.ListAccounts(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]accountDTO, len(accounts))
	for i, a := range accounts {
		out[i] = toAccountDTO(a)
	}
	writeJSON(w, http.StatusOK, out)
}

type updateAccountRequest struct {
	Name           *string `json:"name"`
	Type           *string `json:"type"`
	Currency       *string `json:"currency"`
	IncludeInTotal *bool   `json:"include_in_total"`
	Color          *string `json:"color"`
	Icon           *string `json:"icon"`
}

func (s *Server) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "invalid account id")
		return
	}

	var req updateAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		// Balance fields are rejected here: DisallowUnknownFields keeps the
		// engine the only writer of balances.
		badRequest(w, "invalid JSON body: "+err.Error())
		return
	}

	var patch core.AccountPatch
	if req.Name != nil {
		name := sanitizeInput(*req.Name)
		patch.Name = &name
	}
	if req.Type != nil {
		typ := core.AccountType(*req.Type)
		patch.Type = &typ
	}
	patch.Currency = req.Currency
	patch.IncludeInTotal = req.IncludeInTotal
	patch.Color = req.Color
	patch.Icon = req.Icon

	a, err := s.ledger.UpdateAccount(r.Context(), id, patch)
	if err != nil {
		writeError(w, err)
		return
	}

	s.invalidateReports()
	writeJSON(w, http.StatusOK, toAccountDTO(a))
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "invalid account id")
		return
	}
	if err := s.ledger.DeleteAccount(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	s.invalidateReports()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAuditAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "invalid account id")
		return
	}
	report, err := s.ledger.VerifyAccount(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAuditDTO(report))
}

type createCategoryRequest struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Icon     string `json:"icon"`
	Color    string `json:"color"`
	ParentID *int64 `json:"parent_id"`
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid JSON body: "+err.Error())
		return
	}

	c, err := s.ledger.CreateCategory(r.Context(), core.Category{
		Name:     sanitizeInput(req.Name),
		Type:     core.TransactionType(req.Type),
		Icon:     req.Icon,
		Color:    req.Color,
		ParentID: req.ParentID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCategoryDTO(c))
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.ledger.ListCategories(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]categoryDTO, len(categories))
	for i, c := range categories {
		out[i] = toCategoryDTO(c)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "invalid category id")
		return
	}
	if err := s.ledger.DeleteCategory(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
