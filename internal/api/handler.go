package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/opensource-finance/kestrel/internal/detection"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/report"
	"github.com/opensource-finance/kestrel/internal/velocity"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo     domain.Repository
	cache    domain.Cache
	detector *detection.Detector
	velocity velocity.Settings
	version  string
	now      func() time.Time
}

// NewHandler creates a new API handler. cache may be nil.
func NewHandler(repo domain.Repository, cache domain.Cache, detector *detection.Detector, settings velocity.Settings, version string) *Handler {
	return &Handler{
		repo:     repo,
		cache:    cache,
		detector: detector,
		velocity: settings,
		version:  version,
		now:      time.Now,
	}
}

// AlertsResponse is the response for GET /accounts/{id}/alerts.
type AlertsResponse struct {
	AccountID string               `json:"accountId"`
	Alerts    []*domain.FraudAlert `json:"alerts"`
	Count     int                  `json:"count"`
}

// VelocityResponse is the response for GET /accounts/{id}/velocity.
type VelocityResponse struct {
	AccountID     string `json:"accountId"`
	WindowSeconds int    `json:"windowSeconds"`
	Count         int64  `json:"count"`
	Limit         int    `json:"limit"`
	Exceeded      bool   `json:"exceeded"`
}

// RuleInfo describes one active rule.
type RuleInfo struct {
	Position   int    `json:"position"`
	Name       string `json:"name"`
	Expression string `json:"expression,omitempty"`
}

// RulesResponse is the response for GET /rules.
type RulesResponse struct {
	Rules      []RuleInfo           `json:"rules"`
	Count      int                  `json:"count"`
	Thresholds detection.Thresholds `json:"thresholds"`
	Velocity   struct {
		WindowSeconds   int `json:"windowSeconds"`
		Limit           int `json:"limit"`
		VelocityWeight  int `json:"velocityWeight"`
		DuplicateWeight int `json:"duplicateWeight"`
	} `json:"velocity"`
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if err := h.repo.Ping(r.Context()); err != nil {
		status = "degraded"
	}

	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready reports whether the store answers.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.Ping(r.Context()); err != nil {
		slog.Warn("readiness check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"ready": "false",
			"error": "repository unavailable",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// ListAlerts returns the newest alerts of an account.
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")

	limit := domain.DefaultAlertLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	alerts, err := h.repo.AlertsByAccount(r.Context(), accountID, limit)
	if err != nil {
		slog.Error("failed to list alerts", "account_id", accountID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list alerts")
		return
	}
	if alerts == nil {
		alerts = []*domain.FraudAlert{}
	}

	writeJSON(w, http.StatusOK, AlertsResponse{
		AccountID: accountID,
		Alerts:    alerts,
		Count:     len(alerts),
	})
}

// AccountSummary aggregates the alerts of an account.
func (h *Handler) AccountSummary(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")

	alerts, err := h.repo.AlertsByAccount(r.Context(), accountID, report.Limit)
	if err != nil {
		slog.Error("failed to summarize alerts", "account_id", accountID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to summarize alerts")
		return
	}

	writeJSON(w, http.StatusOK, report.Summarize(accountID, alerts))
}

// AccountVelocity counts the account's transactions inside the velocity window.
func (h *Handler) AccountVelocity(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")

	count, err := velocity.TransactionCount(r.Context(), h.repo, accountID, h.velocity.Window, h.now())
	if err != nil {
		slog.Error("failed to count transactions", "account_id", accountID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to count transactions")
		return
	}

	writeJSON(w, http.StatusOK, VelocityResponse{
		AccountID:     accountID,
		WindowSeconds: int(h.velocity.Window / time.Second),
		Count:         count,
		Limit:         h.velocity.Limit,
		Exceeded:      count >= int64(h.velocity.Limit),
	})
}

// GetTransaction retrieves a transaction by ID.
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	txID := chi.URLParam(r, "id")

	tx, err := h.repo.GetTransaction(r.Context(), txID)
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "transaction not found")
		return
	}
	if err != nil {
		slog.Error("failed to get transaction", "tx_id", txID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get transaction")
		return
	}

	writeJSON(w, http.StatusOK, tx)
}

// ListRules returns the active rule set in evaluation order with the scoring parameters.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	active := h.detector.Rules()

	resp := RulesResponse{
		Rules:      make([]RuleInfo, 0, len(active)),
		Count:      len(active),
		Thresholds: h.detector.Thresholds(),
	}
	for i, rule := range active {
		info := RuleInfo{Position: i + 1, Name: rule.Name()}
		if expr, ok := rule.(interface{ Expression() string }); ok {
			info.Expression = expr.Expression()
		}
		resp.Rules = append(resp.Rules, info)
	}
	resp.Velocity.WindowSeconds = int(h.velocity.Window / time.Second)
	resp.Velocity.Limit = h.velocity.Limit
	resp.Velocity.VelocityWeight = h.velocity.VelocityWeight
	resp.Velocity.DuplicateWeight = h.velocity.DuplicateWeight

	writeJSON(w, http.StatusOK, resp)
}

// Assess scores a transaction without persisting anything.
func (h *Handler) Assess(w http.ResponseWriter, r *http.Request) {
	var tx domain.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}
	if tx.ID == "" || tx.AccountID == "" {
		writeError(w, http.StatusBadRequest, "transactionId and accountId are required")
		return
	}
	if tx.Amount.IsNegative() {
		writeError(w, http.StatusBadRequest, "amount must not be negative")
		return
	}

	assessment, err := h.detector.Assess(r.Context(), &tx)
	if err != nil {
		slog.Error("assessment failed", "tx_id", tx.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "assessment failed")
		return
	}

	writeJSON(w, http.StatusOK, assessment)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}
