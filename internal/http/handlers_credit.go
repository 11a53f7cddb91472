package http

import (
	"errors"
	"io"
	"net/http"

	"cuentas/internal/core"
	"cuentas/internal/services"
)

type createCreditRequest struct {
	ProjectID              int64  `json:"project_id"`
	Description            string `json:"description"`
	Category               string `json:"category"`
	PrincipalAmountCents   int64  `json:"principal_amount_cents"`
	InstallmentAmountCents int64  `json:"installment_amount_cents"`
	Installments           int    `json:"installments"`
	StartDate              string `json:"start_date"`
	Frequency              string `json:"frequency"`
	AccountID              *int64 `json:"account_id"`
	PaidInstallments       *int   `json:"paid_installments"`
}

type createCreditResponse struct {
	Credit                     creditJSON `json:"credit"`
	CalculatedPaidInstallments int        `json:"calculated_paid_installments"`
}

func (s *Server) handleCreateCredit(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	var req createCreditRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}
	start, err := parseDate(req.StartDate)
	if err != nil {
		badRequest(w, err)
		return
	}

	result, err := s.svc.Credits.CreateCredit(r.Context(), userID, services.CreateCreditParams{
		ProjectID:         req.ProjectID,
		Description:       req.Description,
		Category:          req.Category,
		PrincipalAmount:   core.Money{Cents: req.PrincipalAmountCents},
		InstallmentAmount: core.Money{Cents: req.InstallmentAmountCents},
		Installments:      req.Installments,
		StartDate:         start,
		Frequency:         core.Frequency(req.Frequency),
		AccountID:         req.AccountID,
		PaidInstallments:  req.PaidInstallments,
	})
	if err != nil {
		writeError(r, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createCreditResponse{
		Credit:                     toCreditJSON(result.Credit),
		CalculatedPaidInstallments: result.CalculatedPaidInstallments,
	})
}

func (s *Server) handleGetCredit(w http.ResponseWriter, r *http.Request) {
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

	detail, err := s.svc.Credits.GetCredit(r.Context(), userID, id)
	if err != nil {
		writeError(r, w, err)
		return
	}
	writeJSON(w, http.StatusOK, creditDetailJSON{
		Credit:           toCreditJSON(detail.Credit),
		Legs:             toTransactionListJSON(detail.Legs),
		PaidInstallments: detail.PaidInstallments,
	})
}

type generateInstallmentsRequest struct {
	All       bool   `json:"all"`
	AccountID *int64 `json:"account_id"`
}

func (s *Server) handleGenerateInstallments(w http.ResponseWriter, r *http.Request) {
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
	// Empty body means "generate the next one".
	var req generateInstallmentsRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(w, err)
		return
	}

	var legs []core.Transaction
	if req.All {
		legs, err = s.svc.Credits.GenerateAllRemainingInstallments(r.Context(), userID, id, req.AccountID)
	} else {
		var leg core.Transaction
		leg, err = s.svc.Credits.GenerateNextInstallment(r.Context(), userID, id, req.AccountID)
		legs = []core.Transaction{leg}
	}
	if err != nil {
		writeError(r, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionListJSON(legs))
}

func (s *Server) handleDeleteCredit(w http.ResponseWriter, r *http.Request) {
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

	if err := s.svc.Credits.DeleteCredit(r.Context(), userID, id); err != nil {
		writeError(r, w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}
