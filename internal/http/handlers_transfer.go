package http

import (
	"net/http"

	"cuentas/internal/core"
	"cuentas/internal/services"
)

type createTransferRequest struct {
	ProjectID     int64  `json:"project_id"`
	FromAccountID int64  `json:"from_account_id"`
	ToAccountID   int64  `json:"to_account_id"`
	AmountCents   int64  `json:"amount_cents"`
	Amount        string `json:"amount"`
	Date          string `json:"date"`
	Description   string `json:"description"`
}

func (s *Server) handleCreateTransfer(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	var req createTransferRequest
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

	pair, err := s.svc.Transfers.CreateTransfer(r.Context(), userID, services.CreateTransferParams{
		ProjectID:     req.ProjectID,
		FromAccountID: req.FromAccountID,
		ToAccountID:   req.ToAccountID,
		Amount:        core.Money{Cents: cents},
		Date:          date,
		Description:   req.Description,
	})
	if err != nil {
		writeError(r, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransferPairJSON(pair))
}

type updateTransferRequest struct {
	FromAccountID *int64  `json:"from_account_id"`
	ToAccountID   *int64  `json:"to_account_id"`
	AmountCents   *int64  `json:"amount_cents"`
	Date          *string `json:"date"`
	Description   *string `json:"description"`
}

// handleUpdateTransfer addresses the pair through either leg's ID.
func (s *Server) handleUpdateTransfer(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	legID, err := pathID(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	var req updateTransferRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}

	var p services.UpdateTransferParams
	if req.FromAccountID != nil {
		p.FromAccountID = services.Some(*req.FromAccountID)
	}
	if req.ToAccountID != nil {
		p.ToAccountID = services.Some(*req.ToAccountID)
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

	pair, err := s.svc.Transfers.UpdateTransfer(r.Context(), userID, legID, p)
	if err != nil {
		writeError(r, w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransferPairJSON(pair))
}

func (s *Server) handleDeleteTransfer(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	legID, err := pathID(r)
	if err != nil {
		badRequest(w, err)
		return
	}

	if err := s.svc.Transfers.DeleteTransfer(r.Context(), userID, legID); err != nil {
		writeError(r, w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

type payCardInstallmentsRequest struct {
	ProjectID           int64   `json:"project_id"`
	SourceAccountID     int64   `json:"source_account_id"`
	CardAccountID       int64   `json:"card_account_id"`
	TransactionIDs      []int64 `json:"transaction_ids"`
	Date                string  `json:"date"`
	InterestAmountCents int64   `json:"interest_amount_cents"`
}

func (s *Server) handlePayCardInstallments(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	var req payCardInstallmentsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		badRequest(w, err)
		return
	}

	pair, err := s.svc.Transfers.PayCardInstallments(r.Context(), userID, services.PayCardInstallmentsParams{
		ProjectID:       req.ProjectID,
		SourceAccountID: req.SourceAccountID,
		CardAccountID:   req.CardAccountID,
		TransactionIDs:  req.TransactionIDs,
		Date:            date,
		InterestAmount:  core.Money{Cents: req.InterestAmountCents},
	})
	if err != nil {
		writeError(r, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransferPairJSON(pair))
}
