package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"coldwatch/core/incident"
	"coldwatch/core/rbac"
	"coldwatch/core/store"
	"coldwatch/core/utils"
)

type IncidentsHandler struct {
	incidents store.IncidentsStore
	audits    store.AuditStore
	logger    *utils.Logger
}

func NewIncidentsHandler(incidents store.IncidentsStore, audits store.AuditStore, logger *utils.Logger) *IncidentsHandler {
	return &IncidentsHandler{incidents: incidents, audits: audits, logger: logger}
}

// Status reports the active incident together with the caller's capabilities.
// Operation fields are present for all three operations; staged visibility by
// counter is applied on the consumer side.
func (h *IncidentsHandler) Status(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	perms := rbac.PermissionsForRole(sess.Role)
	inc, err := h.incidents.Active(r.Context())
	if err != nil {
		h.logger.Errorf("incident status: %v", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	if inc == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"incident_actif": false,
			"compteur":       0,
			"permissions":    perms,
		})
		return
	}
	comments, err := h.incidents.ListComments(r.Context(), inc.ID)
	if err != nil {
		h.logger.Errorf("incident comments: %v", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	commentsData := make([]map[string]interface{}, 0, len(comments))
	for _, c := range comments {
		commentsData = append(commentsData, map[string]interface{}{
			"author":     c.Author,
			"content":    c.Content,
			"created_at": c.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	body := map[string]interface{}{
		"incident_actif":              true,
		"id":                          inc.ID,
		"compteur":                    inc.Counter,
		"date_debut":                  inc.StartedAt.UTC().Format(time.RFC3339),
		"temperature":                 inc.Temperature,
		"humidity":                    inc.Humidity,
		"accuse_reception":            inc.Acknowledged,
		"accuse_reception_operateur":  strOrNil(inc.AckOperator),
		"accuse_reception_date":       isoOrNil(inc.AckAt),
		"comments":                    commentsData,
		"permissions":                 perms,
	}
	for i, op := range inc.Ops {
		prefix := fmt.Sprintf("op%d", i+1)
		body[prefix+"_checked"] = op.Checked
		body[prefix+"_comment"] = op.Comment
		body[prefix+"_operateur"] = strOrNil(op.Operator)
		body[prefix+"_date"] = isoOrNil(op.UpdatedAt)
	}
	writeJSON(w, http.StatusOK, body)
}

type updateIncidentRequest struct {
	AccuseReception *bool   `json:"accuse_reception"`
	Op1Checked      *bool   `json:"op1_checked"`
	Op1Comment      *string `json:"op1_comment"`
	Op2Checked      *bool   `json:"op2_checked"`
	Op2Comment      *string `json:"op2_comment"`
	Op3Checked      *bool   `json:"op3_checked"`
	Op3Comment      *string `json:"op3_comment"`
}

func (req *updateIncidentRequest) operation(n int) (*bool, *string) {
	switch n {
	case 1:
		return req.Op1Checked, req.Op1Comment
	case 2:
		return req.Op2Checked, req.Op2Comment
	case 3:
		return req.Op3Checked, req.Op3Comment
	}
	return nil, nil
}

// Update mutates the active incident. Permission and payload checks run for
// every touched field before the first write, so a rejected request leaves
// the incident untouched.
func (h *IncidentsHandler) Update(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	perms := rbac.PermissionsForRole(sess.Role)
	inc, err := h.incidents.Active(r.Context())
	if err != nil {
		h.logger.Errorf("incident update: %v", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	if inc == nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "Aucun incident actif"})
		return
	}
	var req updateIncidentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "Invalid JSON"})
		return
	}
	if req.AccuseReception != nil && !perms.CanAcknowledgeReceipt {
		writeJSON(w, http.StatusForbidden, map[string]interface{}{"error": "Permission refusée"})
		return
	}
	for n := 1; n <= incident.OperationCount; n++ {
		checked, comment := req.operation(n)
		if checked == nil && comment == nil {
			continue
		}
		allowed, opErr := perms.CanEditOperation(n)
		if opErr != nil || !allowed {
			writeJSON(w, http.StatusForbidden, map[string]interface{}{"error": fmt.Sprintf("Permission refusée pour op%d", n)})
			return
		}
		if comment != nil && strings.TrimSpace(*comment) == "" {
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": fmt.Sprintf("Commentaire vide pour op%d", n)})
			return
		}
	}
	now := utils.NowUTC()
	if req.AccuseReception != nil {
		if err := h.incidents.SetAcknowledgement(r.Context(), inc.ID, *req.AccuseReception, sess.Username, now); err != nil {
			h.logger.Errorf("incident acknowledgement: %v", err)
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}
		_ = h.audits.Log(r.Context(), sess.Username, "incident.acknowledge", fmt.Sprintf("incident=%d value=%t", inc.ID, *req.AccuseReception))
	}
	for n := 1; n <= incident.OperationCount; n++ {
		checked, comment := req.operation(n)
		if checked == nil && comment == nil {
			continue
		}
		upd := store.OperationUpdate{Checked: checked, Comment: comment, Operator: sess.Username, At: now}
		if err := h.incidents.UpdateOperation(r.Context(), inc.ID, n, upd); err != nil {
			h.logger.Errorf("incident op%d update: %v", n, err)
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}
		_ = h.audits.Log(r.Context(), sess.Username, "incident.update_op", fmt.Sprintf("incident=%d op=%d", inc.ID, n))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (h *IncidentsHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "error": "Invalid incident id"})
		return
	}
	inc, err := h.incidents.Get(r.Context(), id)
	if err != nil {
		h.logger.Errorf("incident comment: %v", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	if inc == nil || !inc.Active {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"success": false, "error": "Incident non trouvé"})
		return
	}
	var body struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "error": "Invalid JSON"})
		return
	}
	content := strings.TrimSpace(body.Content)
	if content == "" {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "error": "Commentaire vide"})
		return
	}
	c := &store.IncidentComment{IncidentID: inc.ID, Author: sess.Username, Content: content, CreatedAt: utils.NowUTC()}
	if _, err := h.incidents.AddComment(r.Context(), c); err != nil {
		h.logger.Errorf("incident comment save: %v", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	_ = h.audits.Log(r.Context(), sess.Username, "incident.comment", fmt.Sprintf("incident=%d", inc.ID))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"comment": map[string]interface{}{
			"id":         c.ID,
			"author":     c.Author,
			"content":    c.Content,
			"created_at": c.CreatedAt.UTC().Format(time.RFC3339),
		},
	})
}

func (h *IncidentsHandler) ArchiveList(w http.ResponseWriter, r *http.Request) {
	list, err := h.incidents.ListArchived(r.Context(), 0)
	if err != nil {
		h.logger.Errorf("archive list: %v", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	archives := make([]map[string]interface{}, 0, len(list))
	for i := range list {
		archives = append(archives, archivedJSON(&list[i]))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"archives": archives})
}

func (h *IncidentsHandler) ArchiveDetail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "Invalid incident id"})
		return
	}
	arch, err := h.incidents.GetArchived(r.Context(), id)
	if err != nil {
		h.logger.Errorf("archive detail: %v", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	if arch == nil {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"error": "Incident non trouvé"})
		return
	}
	writeJSON(w, http.StatusOK, archivedJSON(arch))
}

func archivedJSON(a *store.ArchivedIncident) map[string]interface{} {
	body := map[string]interface{}{
		"id":                         a.ID,
		"incident_id":                a.IncidentID,
		"date_debut":                 a.StartedAt.UTC().Format(time.RFC3339),
		"date_fin":                   a.EndedAt.UTC().Format(time.RFC3339),
		"compteur":                   a.Counter,
		"status":                     a.Status,
		"temperature":                a.Temperature,
		"humidity":                   a.Humidity,
		"accuse_reception":           a.Acknowledged,
		"accuse_reception_operateur": strOrNil(a.AckOperator),
		"accuse_reception_date":      isoOrNil(a.AckAt),
	}
	for i, op := range a.Ops {
		prefix := fmt.Sprintf("op%d", i+1)
		body[prefix+"_name"] = op.Name
		body[prefix+"_checked"] = op.Checked
		body[prefix+"_comment"] = op.Comment
		body[prefix+"_operateur"] = strOrNil(op.Operator)
		body[prefix+"_date"] = isoOrNil(op.UpdatedAt)
	}
	return body
}
