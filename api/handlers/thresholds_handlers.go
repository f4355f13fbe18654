package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"coldwatch/core/store"
	"coldwatch/core/utils"
)

type ThresholdsHandler struct {
	thresholds store.ThresholdsStore
	audits     store.AuditStore
	logger     *utils.Logger
}

func NewThresholdsHandler(thresholds store.ThresholdsStore, audits store.AuditStore, logger *utils.Logger) *ThresholdsHandler {
	return &ThresholdsHandler{thresholds: thresholds, audits: audits, logger: logger}
}

func (h *ThresholdsHandler) Get(w http.ResponseWriter, r *http.Request) {
	t, err := h.thresholds.Get(r.Context())
	if err != nil {
		h.logger.Errorf("threshold get: %v", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"min_temp":   t.MinTemp,
		"max_temp":   t.MaxTemp,
		"updated_at": t.UpdatedAt.UTC().Format(time.RFC3339),
	})
}

func (h *ThresholdsHandler) Update(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	var body struct {
		MinTemp float64 `json:"min_temp"`
		MaxTemp float64 `json:"max_temp"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "error": "Invalid JSON"})
		return
	}
	if body.MinTemp >= body.MaxTemp {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "error": "min_temp doit être inférieur à max_temp"})
		return
	}
	t, err := h.thresholds.Update(r.Context(), body.MinTemp, body.MaxTemp, sess.UserID)
	if err != nil {
		h.logger.Errorf("threshold update: %v", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	_ = h.audits.Log(r.Context(), sess.Username, "thresholds.update", fmt.Sprintf("min=%.1f max=%.1f", t.MinTemp, t.MaxTemp))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"min_temp": t.MinTemp,
		"max_temp": t.MaxTemp,
	})
}
