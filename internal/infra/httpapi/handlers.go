// internal/infra/httpapi/handlers.go
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"student_progress_notifier/internal/app"
	"student_progress_notifier/internal/domain/notification"
	idb "student_progress_notifier/internal/infra/database"
	"student_progress_notifier/internal/infra/snapshot"
)

// Handler exposes the core's entire outward mutation surface: ingest plus
// the four ledger operations (queue/insert, decision and mark-* transitions,
// edit-message, list).
type Handler struct {
	ingestor app.Ingestor
	ledger   *app.LedgerService
	logger   *logrus.Entry
}

func NewHandler(ingestor app.Ingestor, ledger *app.LedgerService, logger *logrus.Entry) *Handler {
	return &Handler{ingestor: ingestor, ledger: ledger, logger: logger}
}

// Routes returns the API mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.health)
	mux.HandleFunc("POST /ingest", h.ingest)
	mux.HandleFunc("GET /notifications", h.listNotifications)
	mux.HandleFunc("POST /queue", h.queue)
	mux.HandleFunc("POST /decision", h.decision)
	mux.HandleFunc("POST /mark-sent", h.markSent)
	mux.HandleFunc("POST /mark-failed", h.markFailed)
	mux.HandleFunc("POST /edit-message", h.editMessage)
	return mux
}

type notificationJSON struct {
	ID              string `json:"id"`
	StudentID       string `json:"studentId"`
	StudentName     string `json:"studentName"`
	MessagingHandle string `json:"messagingHandle"`
	Message         string `json:"message"`
	CreatedAtISO    string `json:"createdAtIso"`
	Status          string `json:"status"`
}

func toJSON(n *notification.Notification) notificationJSON {
	return notificationJSON{
		ID:              n.ID,
		StudentID:       n.StudentID,
		StudentName:     n.StudentName,
		MessagingHandle: n.MessagingHandle,
		Message:         n.Message,
		CreatedAtISO:    n.CreatedAt.Format(time.RFC3339Nano),
		Status:          string(n.Status),
	}
}

func toJSONList(notifications []*notification.Notification) []notificationJSON {
	out := make([]notificationJSON, 0, len(notifications))
	for _, n := range notifications {
		out = append(out, toJSON(n))
	}
	return out
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	h.respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

type ingestRequest struct {
	DataPath   string `json:"dataPath"`
	MessageAll bool   `json:"messageAll"`
}

func (h *Handler) ingest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if !h.decode(w, r, &req) {
		return
	}
	queued, err := h.ingestor.Ingest(r.Context(), req.DataPath, req.MessageAll)
	if err != nil {
		if errors.Is(err, snapshot.ErrInvalidSnapshot) {
			h.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.WithError(err).Error("Ingestion run failed")
		h.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.respond(w, http.StatusOK, toJSONList(queued))
}

func (h *Handler) listNotifications(w http.ResponseWriter, r *http.Request) {
	statusFilter := notification.Status(r.URL.Query().Get("status"))
	if statusFilter != "" && !statusFilter.IsValid() {
		h.respondError(w, http.StatusBadRequest, "unknown status filter")
		return
	}
	notifications, err := h.ledger.List(r.Context(), statusFilter)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list notifications")
		h.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.respond(w, http.StatusOK, toJSONList(notifications))
}

type queueRequest struct {
	StudentID       string `json:"studentId"`
	StudentName     string `json:"studentName"`
	MessagingHandle string `json:"messagingHandle"`
	Message         string `json:"message"`
}

// queue inserts a manually drafted notification, bypassing rule evaluation.
// The ledger still applies the dedup rule.
func (h *Handler) queue(w http.ResponseWriter, r *http.Request) {
	var req queueRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.StudentID == "" || req.MessagingHandle == "" || req.Message == "" {
		h.respondError(w, http.StatusBadRequest, "studentId, messagingHandle and message are required")
		return
	}
	n, err := h.ledger.Insert(r.Context(), notification.Draft{
		StudentID:       req.StudentID,
		StudentName:     req.StudentName,
		MessagingHandle: req.MessagingHandle,
		Message:         req.Message,
	})
	if err != nil {
		h.logger.WithError(err).Error("Failed to queue notification")
		h.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.respond(w, http.StatusOK, toJSON(n))
}

type decisionRequest struct {
	NotificationID string `json:"notificationId"`
	Decision       string `json:"decision"` // approve | deny
}

type decisionResponse struct {
	Action          string `json:"action"` // deliver | none
	MessagingHandle string `json:"messagingHandle,omitempty"`
	Message         string `json:"message,omitempty"`
}

// decision records the reviewer's verdict. Approval hands the message back to
// the caller for delivery; the delivery surface reports the outcome through
// mark-sent or mark-failed.
func (h *Handler) decision(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Decision != "approve" && req.Decision != "deny" {
		h.respondError(w, http.StatusBadRequest, "decision must be approve|deny")
		return
	}

	next := notification.StatusApproved
	if req.Decision == "deny" {
		next = notification.StatusDenied
	}
	n, err := h.ledger.Transition(r.Context(), req.NotificationID, next)
	if err != nil {
		h.respondLedgerError(w, err)
		return
	}

	if next == notification.StatusDenied {
		h.respond(w, http.StatusOK, decisionResponse{Action: "none"})
		return
	}
	h.respond(w, http.StatusOK, decisionResponse{
		Action:          "deliver",
		MessagingHandle: n.MessagingHandle,
		Message:         n.Message,
	})
}

func (h *Handler) markSent(w http.ResponseWriter, r *http.Request) {
	h.mark(w, r, notification.StatusSent)
}

func (h *Handler) markFailed(w http.ResponseWriter, r *http.Request) {
	h.mark(w, r, notification.StatusFailed)
}

func (h *Handler) mark(w http.ResponseWriter, r *http.Request, next notification.Status) {
	var req decisionRequest
	if !h.decode(w, r, &req) {
		return
	}
	if _, err := h.ledger.Transition(r.Context(), req.NotificationID, next); err != nil {
		h.respondLedgerError(w, err)
		return
	}
	h.respond(w, http.StatusOK, map[string]bool{"ok": true})
}

type editMessageRequest struct {
	NotificationID string `json:"notificationId"`
	Message        string `json:"message"`
}

func (h *Handler) editMessage(w http.ResponseWriter, r *http.Request) {
	var req editMessageRequest
	if !h.decode(w, r, &req) {
		return
	}
	n, err := h.ledger.EditMessage(r.Context(), req.NotificationID, req.Message)
	if err != nil {
		h.respondLedgerError(w, err)
		return
	}
	h.respond(w, http.StatusOK, toJSON(n))
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func (h *Handler) respondLedgerError(w http.ResponseWriter, err error) {
	var invalid *notification.InvalidTransitionError
	switch {
	case errors.Is(err, idb.ErrNotificationNotFound):
		h.respondError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &invalid):
		h.respondError(w, http.StatusConflict, err.Error())
	default:
		h.logger.WithError(err).Error("Ledger operation failed")
		h.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.WithError(err).Error("Failed to encode response")
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, detail string) {
	h.respond(w, status, map[string]string{"detail": detail})
}
