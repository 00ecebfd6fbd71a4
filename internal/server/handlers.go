package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/zombor/expense-tracker/internal/report"
)

const (
	defaultLimit = 50
	maxLimit     = 1000
	defaultDays  = 30
)

type statsResponse struct {
	Total decimal.Decimal `json:"total"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// positiveQueryInt reads an optional positive integer query parameter no
// larger than maxValue
func positiveQueryInt(r *http.Request, name string, fallback, maxValue int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 || n > maxValue {
		return 0, fmt.Errorf("%s must be an integer from 1 to %d", name, maxValue)
	}
	return n, nil
}

// handleListExpenses returns the most recent expenses, newest first
func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	limit, err := positiveQueryInt(r, "limit", defaultLimit, math.MaxInt)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit = min(limit, maxLimit)

	expenses, err := s.db.Recent(r.Context(), limit)
	if err != nil {
		slog.Error("Error listing expenses", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, expenses)
}

// handleStats returns the total of all expenses
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	total, err := s.db.Sum(r.Context())
	if err != nil {
		slog.Error("Error summing expenses", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{Total: total})
}

func (s *Server) buildReport(w http.ResponseWriter, r *http.Request) (*report.Report, bool) {
	days, err := positiveQueryInt(r, "days", defaultDays, report.MaxDays)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}

	rep, err := report.Build(r.Context(), s.db, days, s.now())
	if err != nil {
		slog.Error("Error building report", "days", days, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return nil, false
	}
	return rep, true
}

// handleReport returns the expenses of the last n days with their total
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.buildReport(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// handleExportReport returns the report as a CSV attachment
func (s *Server) handleExportReport(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.buildReport(w, r)
	if !ok {
		return
	}

	data, err := rep.CSV()
	if err != nil {
		slog.Error("Error exporting report", "days", rep.Days, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", rep.Filename()))
	w.Write(data)
}

// handleDeleteExpenses removes every saved expense
func (s *Server) handleDeleteExpenses(w http.ResponseWriter, r *http.Request) {
	if err := s.db.DeleteAll(r.Context()); err != nil {
		slog.Error("Error deleting expenses", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
