package http

import (
	"errors"
	"io"
	"net/http"

	"cuentas/internal/core"
	"cuentas/internal/services"
)

type createCycleRequest struct {
	ProjectID int64  `json:"project_id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

func (s *Server) handleCreateCycle(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	var req createCycleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}
	start, err := parseDate(req.StartDate)
	if err != nil {
		badRequest(w, err)
		return
	}
	end, err := parseDate(req.EndDate)
	if err != nil {
		badRequest(w, err)
		return
	}

	cycle, err := s.svc.Cycles.CreateCycle(r.Context(), userID, services.CreateCycleParams{
		ProjectID: req.ProjectID,
		StartDate: start,
		EndDate:   end,
	})
	if err != nil {
		writeError(r, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCycleJSON(cycle))
}

func (s *Server) handleCycleReport(w http.ResponseWriter, r *http.Request) {
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

	report, err := s.svc.Cycles.GetCycleReport(r.Context(), userID, id)
	if err != nil {
		writeError(r, w, err)
		return
	}
	writeJSON(w, http.StatusOK, cycleReportJSON{
		Cycle:  toCycleJSON(report.Cycle),
		Totals: toSnapshotJSON(report.Totals),
	})
}

type closeCycleRequest struct {
	EndDate *string `json:"end_date"`
}

func (s *Server) handleCloseCycle(w http.ResponseWriter, r *http.Request) {
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
	var req closeCycleRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(w, err)
		return
	}
	var end *core.Date
	if req.EndDate != nil {
		d, err := parseDate(*req.EndDate)
		if err != nil {
			badRequest(w, err)
			return
		}
		end = &d
	}

	cycle, err := s.svc.Cycles.CloseCycle(r.Context(), userID, id, end)
	if err != nil {
		writeError(r, w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCycleJSON(cycle))
}

func (s *Server) handleReopenCycle(w http.ResponseWriter, r *http.Request) {
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

	cycle, err := s.svc.Cycles.ReopenCycle(r.Context(), userID, id)
	if err != nil {
		writeError(r, w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCycleJSON(cycle))
}

func (s *Server) handleRecalculateCycle(w http.ResponseWriter, r *http.Request) {
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

	cycle, err := s.svc.Cycles.RecalculateCycle(r.Context(), userID, id)
	if err != nil {
		writeError(r, w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCycleJSON(cycle))
}

func (s *Server) handleDeleteCycle(w http.ResponseWriter, r *http.Request) {
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

	if err := s.svc.Cycles.DeleteCycle(r.Context(), userID, id); err != nil {
		writeError(r, w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleCapacityReport(w http.ResponseWriter, r *http.Request) {
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

	report, err := s.svc.Capacity.Report(r.Context(), userID, projectID)
	if err != nil {
		writeError(r, w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCapacityReportJSON(report))
}
