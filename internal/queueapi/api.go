// Package queueapi exposes the attention queue over HTTP.
package queueapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/focus/internal/source"
	"github.com/linnemanlabs/focus/internal/workitem"
)

// QueueService defines the business operations queueapi needs.
type QueueService interface {
	Queue(ctx context.Context, ownerID string, opts workitem.QueueOptions) (*workitem.QueueResult, error)
	Ensure(ctx context.Context, ownerID string, t source.Type, sourceID string) (*workitem.WorkItem, bool, error)
	Get(ctx context.Context, ownerID string, t source.Type, sourceID string) (*workitem.WorkItem, bool, error)
	Trust(ctx context.Context, ownerID string, t source.Type, sourceID string) (*workitem.WorkItem, error)
	Snooze(ctx context.Context, ownerID string, t source.Type, sourceID string, until time.Time) (*workitem.WorkItem, error)
	Ignore(ctx context.Context, ownerID string, t source.Type, sourceID string) (*workitem.WorkItem, error)
	Reflag(ctx context.Context, ownerID string, t source.Type, sourceID string, codes []string) (*workitem.WorkItem, error)
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger   log.Logger
	svc      QueueService
	defaults workitem.QueueOptions
}

// New creates a new API handler. defaults fill in queue parameters the
// request leaves unset.
func New(logger log.Logger, svc QueueService, defaults workitem.QueueOptions) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("queue service is required"))
	}
	return &API{
		logger:   logger,
		svc:      svc,
		defaults: defaults,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/queue", a.handleQueue)
		r.Post("/items/ensure", a.handleEnsure)
		r.Route("/items/{sourceType}/{sourceID}", func(r chi.Router) {
			r.Get("/", a.handleGetItem)
			r.Post("/trust", a.handleTrust)
			r.Post("/snooze", a.handleSnooze)
			r.Post("/ignore", a.handleIgnore)
			r.Post("/reflag", a.handleReflag)
		})
	})
}

func (a *API) handleQueue(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	if owner == "" {
		http.Error(w, `{"error":"owner is required"}`, http.StatusBadRequest)
		return
	}

	opts, err := a.queueOptions(r)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusBadRequest)
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("focus.owner", owner))

	res, err := a.svc.Queue(r.Context(), owner, opts)
	if err != nil {
		a.logger.Error(r.Context(), err, "queue read failed", "owner", owner)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	span.SetAttributes(
		attribute.Int("focus.queue.items", len(res.Items)),
		attribute.Int("focus.queue.scored", res.Scored),
	)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(res)
}

// queueOptions merges request query parameters over the configured defaults.
func (a *API) queueOptions(r *http.Request) (workitem.QueueOptions, error) {
	opts := a.defaults
	q := r.URL.Query()

	if v := q.Get("max_items"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return opts, xerrors.New("invalid max_items")
		}
		opts.MaxItems = n
	}
	if v := q.Get("max_per_source"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return opts, xerrors.New("invalid max_per_source")
		}
		opts.MaxPerSource = n
	}
	if v := q.Get("min_score"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 1 {
			return opts, xerrors.New("invalid min_score")
		}
		opts.MinScore = f
	}
	if v := q.Get("plain"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, xerrors.New("invalid plain")
		}
		opts.Plain = b
	}
	if v := q.Get("max_effort"); v != "" {
		switch source.Effort(v) {
		case source.EffortQuick, source.EffortMedium, source.EffortLong:
			opts.MaxEffort = source.Effort(v)
		default:
			return opts, xerrors.New("invalid max_effort")
		}
	}
	return opts, nil
}
