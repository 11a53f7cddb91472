package http

import (
	"net/http"

	"cuentas/internal/core"
	"cuentas/internal/services"
)

type createCardPurchaseRequest struct {
	ProjectID           int64   `json:"project_id"`
	AccountID           int64   `json:"account_id"`
	Description         string  `json:"description"`
	Category            string  `json:"category"`
	OriginalAmountCents int64   `json:"original_amount_cents"`
	OriginalAmount      string  `json:"original_amount"`
	InterestRate        float64 `json:"interest_rate"`
	Installments        int     `json:"installments"`
	FirstChargeDate     string  `json:"first_charge_date"`
	IsExternal          bool    `json:"is_external"`
}

func (s *Server) handleCreateCardPurchase(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	var req createCardPurchaseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}
	firstCharge, err := parseDate(req.FirstChargeDate)
	if err != nil {
		badRequest(w, err)
		return
	}
	cents, err := amountCents(req.OriginalAmountCents, req.OriginalAmount)
	if err != nil {
		writeError(r, w, err)
		return
	}

	purchase, err := s.svc.Cards.CreateCardPurchase(r.Context(), userID, services.CreateCardPurchaseParams{
		ProjectID:       req.ProjectID,
		AccountID:       req.AccountID,
		Description:     req.Description,
		Category:        req.Category,
		OriginalAmount:  core.Money{Cents: cents},
		InterestRate:    req.InterestRate,
		Installments:    req.Installments,
		FirstChargeDate: firstCharge,
		IsExternal:      req.IsExternal,
	})
	if err != nil {
		writeError(r, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCardPurchaseJSON(purchase))
}

func (s *Server) handleGetCardPurchase(w http.ResponseWriter, r *http.Request) {
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

	detail, err := s.svc.Cards.GetCardPurchase(r.Context(), userID, id)
	if err != nil {
		writeError(r, w, err)
		return
	}
	writeJSON(w, http.StatusOK, cardPurchaseDetailJSON{
		Purchase:        toCardPurchaseJSON(detail.Purchase),
		Legs:            toTransactionListJSON(detail.Legs),
		ReconciledCount: detail.ReconciledCount,
	})
}

func (s *Server) handleListCardPurchases(w http.ResponseWriter, r *http.Request) {
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

	purchases, err := s.svc.Cards.ListActivePurchases(r.Context(), userID, projectID)
	if err != nil {
		writeError(r, w, err)
		return
	}
	out := make([]cardPurchaseJSON, 0, len(purchases))
	for _, p := range purchases {
		out = append(out, toCardPurchaseJSON(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteCardPurchase(w http.ResponseWriter, r *http.Request) {
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

	if err := s.svc.Cards.DeleteCardPurchase(r.Context(), userID, id); err != nil {
		writeError(r, w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}
