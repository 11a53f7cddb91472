package http

import (
	"net/http"

	"cuentas/internal/core"
	"cuentas/internal/services"
)

type createAccountRequest struct {
	ProjectID           int64  `json:"project_id"`
	Name                string `json:"name"`
	Type                string `json:"type"`
	Currency            string `json:"currency"`
	InitialBalanceCents int64  `json:"initial_balance_cents"`
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	var req createAccountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}

	account, err := s.svc.Accounts.Create(r.Context(), userID, services.CreateAccountParams{
		ProjectID:      req.ProjectID,
		Name:           req.Name,
		Type:           core.AccountType(req.Type),
		Currency:       req.Currency,
		InitialBalance: core.Money{Cents: req.InitialBalanceCents},
	})
	if err != nil {
		writeError(r, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountJSON(account))
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		badRequest(w, err)
		return
	}

	account, err := s.svc.Accounts.Get(r.Context(), userID, id)
	if err != nil {
		writeError(r, w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountJSON(account))
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	projectID, err := queryInt64(r, "project_id")
	if err != nil || projectID == 0 {
		badRequest(w, errMissingProject(err))
		return
	}

	accounts, err := s.svc.Accounts.List(r.Context(), userID, projectID)
	if err != nil {
		writeError(r, w, err)
		return
	}
	out := make([]accountJSON, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, toAccountJSON(a))
	}
	writeJSON(w, http.StatusOK, out)
}

type createTransactionRequest struct {
	ProjectID   int64  `json:"project_id"`
	AccountID   *int64 `json:"account_id"`
	Type        string `json:"type"`
	AmountCents int64  `json:"amount_cents"`
	// Amount is the decimal-string alternative to AmountCents.
	Amount        string `json:"amount"`
	Date          string `json:"date"`
	Description   string `json:"description"`
	Category      string `json:"category"`
	IsPaid        bool   `json:"is_paid"`
	IsSavingsFund bool   `json:"is_savings_fund"`
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	var req createTransactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		badRequest(w, err)
		return
	}
	cents, err := amountCents(req.AmountCents, req.Amount)
	if err != nil {
		writeError(r, w, err)
		return
	}

	tx, err := s.svc.Ledger.Create(r.Context(), userID, services.CreateTransactionParams{
		ProjectID:     req.ProjectID,
		AccountID:     req.AccountID,
		Type:          core.TransactionType(req.Type),
		Amount:        core.Money{Cents: cents},
		Date:          date,
		Description:   req.Description,
		Category:      req.Category,
		IsPaid:        req.IsPaid,
		IsSavingsFund: req.IsSavingsFund,
	})
	if err != nil {
		writeError(r, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionJSON(tx))
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		badRequest(w, err)
		return
	}

	tx, err := s.svc.Ledger.Get(r.Context(), userID, id)
	if err != nil {
		writeError(r, w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionJSON(tx))
}

// updateTransactionRequest distinguishes absent fields (left alone)
// from supplied ones. ClearAccount detaches the transaction from its
// account, which a nullable pointer field cannot express over JSON.
type updateTransactionRequest struct {
	AccountID     *int64  `json:"account_id"`
	ClearAccount  bool    `json:"clear_account"`
	Type          *string `json:"type"`
	AmountCents   *int64  `json:"amount_cents"`
	Date          *string `json:"date"`
	Description   *string `json:"description"`
	Category      *string `json:"category"`
	IsPaid        *bool   `json:"is_paid"`
	IsSavingsFund *bool   `json:"is_savings_fund"`
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	var req updateTransactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}

	var p services.UpdateTransactionParams
	if req.ClearAccount {
		p.AccountID = services.Some[*int64](nil)
	} else if req.AccountID != nil {
		p.AccountID = services.Some(req.AccountID)
	}
	if req.Type != nil {
		p.Type = services.Some(core.TransactionType(*req.Type))
	}
	if req.AmountCents != nil {
		p.Amount = services.Some(core.Money{Cents: *req.AmountCents})
	}
	if req.Date != nil {
		date, err := parseDate(*req.Date)
		if err != nil {
			badRequest(w, err)
			return
		}
		p.Date = services.Some(date)
	}
	if req.Description != nil {
		p.Description = services.Some(*req.Description)
	}
	if req.Category != nil {
		p.Category = services.Some(*req.Category)
	}
	if req.IsPaid != nil {
		p.IsPaid = services.Some(*req.IsPaid)
	}
	if req.IsSavingsFund != nil {
		p.IsSavingsFund = services.Some(*req.IsSavingsFund)
	}

	tx, err := s.svc.Ledger.Update(r.Context(), userID, id, p)
	if err != nil {
		writeError(r, w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionJSON(tx))
}

func (s *Server) handleTogglePaid(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	var req struct {
		Paid bool `json:"paid"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}

	tx, err := s.svc.Ledger.TogglePaid(r.Context(), userID, id, req.Paid)
	if err != nil {
		writeError(r, w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionJSON(tx))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		badRequest(w, err)
		return
	}

	if err := s.svc.Ledger.Delete(r.Context(), userID, id); err != nil {
		writeError(r, w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}
