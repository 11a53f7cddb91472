package http

import (
	"net/http"

	"cuentas/internal/core"
	"cuentas/internal/services"
)

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}

	id, err := s.svc.Projects.CreateProject(r.Context(), userID, req.Name)
	if err != nil {
		writeError(r, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"project_id": id})
}

func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	projectID, err := pathID(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	var req struct {
		UserID int64 `json:"user_id"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}

	if err := s.svc.Projects.AddMember(r.Context(), userID, projectID, req.UserID); err != nil {
		writeError(r, w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// handleSetDebtLimit sets or clears the monthly debt limit. A null
// limit_cents clears it.
func (s *Server) handleSetDebtLimit(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	projectID, err := pathID(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	var req struct {
		LimitCents *int64 `json:"limit_cents"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}

	var limit *core.Money
	if req.LimitCents != nil {
		limit = &core.Money{Cents: *req.LimitCents}
	}
	if err := s.svc.Projects.SetDebtLimit(r.Context(), userID, projectID, limit); err != nil {
		writeError(r, w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

type createTemplateRequest struct {
	AccountID   *int64 `json:"account_id"`
	Type        string `json:"type"`
	AmountCents int64  `json:"amount_cents"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	projectID, err := pathID(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	var req createTemplateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}

	tpl, err := s.svc.Recurring.CreateTemplate(r.Context(), userID, services.CreateTemplateParams{
		ProjectID:   projectID,
		AccountID:   req.AccountID,
		Type:        core.TransactionType(req.Type),
		Amount:      core.Money{Cents: req.AmountCents},
		Description: req.Description,
		Category:    req.Category,
	})
	if err != nil {
		writeError(r, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTemplateJSON(tpl))
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	projectID, err := pathID(r)
	if err != nil {
		badRequest(w, err)
		return
	}

	templates, err := s.svc.Recurring.ListActive(r.Context(), userID, projectID)
	if err != nil {
		writeError(r, w, err)
		return
	}
	out := make([]templateJSON, 0, len(templates))
	for _, t := range templates {
		out = append(out, toTemplateJSON(t))
	}
	writeJSON(w, http.StatusOK, out)
}
