package queueapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"

	"github.com/linnemanlabs/focus/internal/source"
	"github.com/linnemanlabs/focus/internal/workitem"
)

type ensureRequest struct {
	OwnerID    string `json:"owner_id"`
	SourceType string `json:"source_type"`
	SourceID   string `json:"source_id"`
}

type snoozeRequest struct {
	Until time.Time `json:"until"`
}

type reflagRequest struct {
	ReasonCodes []string `json:"reason_codes"`
}

func (a *API) handleEnsure(w http.ResponseWriter, r *http.Request) {
	var req ensureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid payload"}`, http.StatusBadRequest)
		return
	}
	t := source.Type(req.SourceType)
	if req.OwnerID == "" || req.SourceID == "" || !t.Valid() {
		http.Error(w, `{"error":"owner_id, source_type and source_id are required"}`, http.StatusBadRequest)
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.String("focus.owner", req.OwnerID),
		attribute.String("focus.source_type", req.SourceType),
	)

	item, created, err := a.svc.Ensure(r.Context(), req.OwnerID, t, req.SourceID)
	if err != nil {
		a.logger.Error(r.Context(), err, "ensure failed",
			"owner", req.OwnerID, "source_type", req.SourceType, "source_id", req.SourceID)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if created {
		w.WriteHeader(http.StatusCreated)
	}
	_ = json.NewEncoder(w).Encode(item)
}

// itemKey pulls the owner and source key out of a request; writes the error
// response itself and reports ok=false.
func (a *API) itemKey(w http.ResponseWriter, r *http.Request) (owner string, t source.Type, sourceID string, ok bool) {
	owner = r.URL.Query().Get("owner")
	if owner == "" {
		http.Error(w, `{"error":"owner is required"}`, http.StatusBadRequest)
		return "", "", "", false
	}
	t = source.Type(chi.URLParam(r, "sourceType"))
	if !t.Valid() {
		http.Error(w, `{"error":"unknown source type"}`, http.StatusBadRequest)
		return "", "", "", false
	}
	sourceID = chi.URLParam(r, "sourceID")
	return owner, t, sourceID, true
}

func (a *API) handleGetItem(w http.ResponseWriter, r *http.Request) {
	owner, t, sourceID, ok := a.itemKey(w, r)
	if !ok {
		return
	}

	item, found, err := a.svc.Get(r.Context(), owner, t, sourceID)
	if err != nil {
		a.logger.Error(r.Context(), err, "get item failed",
			"owner", owner, "source_type", t, "source_id", sourceID)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if !found {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(item)
}

func (a *API) handleTrust(w http.ResponseWriter, r *http.Request) {
	owner, t, sourceID, ok := a.itemKey(w, r)
	if !ok {
		return
	}
	item, err := a.svc.Trust(r.Context(), owner, t, sourceID)
	a.writeActionResult(w, r, "trust", item, err)
}

func (a *API) handleSnooze(w http.ResponseWriter, r *http.Request) {
	owner, t, sourceID, ok := a.itemKey(w, r)
	if !ok {
		return
	}
	var req snoozeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Until.IsZero() {
		http.Error(w, `{"error":"until is required"}`, http.StatusBadRequest)
		return
	}
	if !req.Until.After(time.Now()) {
		http.Error(w, `{"error":"until must be in the future"}`, http.StatusBadRequest)
		return
	}
	item, err := a.svc.Snooze(r.Context(), owner, t, sourceID, req.Until)
	a.writeActionResult(w, r, "snooze", item, err)
}

func (a *API) handleIgnore(w http.ResponseWriter, r *http.Request) {
	owner, t, sourceID, ok := a.itemKey(w, r)
	if !ok {
		return
	}
	item, err := a.svc.Ignore(r.Context(), owner, t, sourceID)
	a.writeActionResult(w, r, "ignore", item, err)
}

func (a *API) handleReflag(w http.ResponseWriter, r *http.Request) {
	owner, t, sourceID, ok := a.itemKey(w, r)
	if !ok {
		return
	}
	var req reflagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.ReasonCodes) == 0 {
		http.Error(w, `{"error":"reason_codes is required"}`, http.StatusBadRequest)
		return
	}
	item, err := a.svc.Reflag(r.Context(), owner, t, sourceID, req.ReasonCodes)
	a.writeActionResult(w, r, "reflag", item, err)
}

func (a *API) writeActionResult(w http.ResponseWriter, r *http.Request, action string, item *workitem.WorkItem, err error) {
	if err != nil {
		switch {
		case errors.Is(err, workitem.ErrNotFound):
			http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		case errors.Is(err, workitem.ErrInvalidTransition):
			http.Error(w, `{"error":"invalid transition"}`, http.StatusConflict)
		default:
			a.logger.Error(r.Context(), err, "action failed", "action", action)
			http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		}
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("focus.item.status", string(item.Status)))

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(item)
}
