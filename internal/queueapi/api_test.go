package queueapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/focus/internal/source"
	"github.com/linnemanlabs/focus/internal/workitem"
)

// mockService records calls and serves canned responses.
type mockService struct {
	mu       sync.Mutex
	queueRes *workitem.QueueResult
	queueErr error
	item     *workitem.WorkItem
	found    bool
	created  bool
	err      error

	lastOwner  string
	lastOpts   workitem.QueueOptions
	lastUntil  time.Time
	lastCodes  []string
	lastAction string
}

func (m *mockService) Queue(_ context.Context, ownerID string, opts workitem.QueueOptions) (*workitem.QueueResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastOwner = ownerID
	m.lastOpts = opts
	if m.queueErr != nil {
		return nil, m.queueErr
	}
	if m.queueRes != nil {
		return m.queueRes, nil
	}
	return &workitem.QueueResult{GeneratedAt: time.Now()}, nil
}

func (m *mockService) Ensure(_ context.Context, ownerID string, t source.Type, sourceID string) (*workitem.WorkItem, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastOwner = ownerID
	m.lastAction = "ensure"
	return m.item, m.created, m.err
}

func (m *mockService) Get(_ context.Context, ownerID string, t source.Type, sourceID string) (*workitem.WorkItem, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastOwner = ownerID
	return m.item, m.found, m.err
}

func (m *mockService) Trust(_ context.Context, ownerID string, t source.Type, sourceID string) (*workitem.WorkItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastAction = "trust"
	return m.item, m.err
}

func (m *mockService) Snooze(_ context.Context, ownerID string, t source.Type, sourceID string, until time.Time) (*workitem.WorkItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastAction = "snooze"
	m.lastUntil = until
	return m.item, m.err
}

func (m *mockService) Ignore(_ context.Context, ownerID string, t source.Type, sourceID string) (*workitem.WorkItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastAction = "ignore"
	return m.item, m.err
}

func (m *mockService) Reflag(_ context.Context, ownerID string, t source.Type, sourceID string, codes []string) (*workitem.WorkItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastAction = "reflag"
	m.lastCodes = codes
	return m.item, m.err
}

func sampleItem() *workitem.WorkItem {
	return &workitem.WorkItem{
		ID:         "01H5K3TESTITEM",
		OwnerID:    "u1",
		SourceType: source.TypeEmail,
		SourceID:   "m1",
		Status:     workitem.StatusNeedsReview,
	}
}

func newTestRouter(t *testing.T, svc *mockService) chi.Router {
	t.Helper()
	api := New(nil, svc, workitem.QueueOptions{MaxItems: 10, MaxPerSource: 3})
	r := chi.NewRouter()
	api.RegisterRoutes(r)
	return r
}

//  New / constructor

func TestNew_NilLogger(t *testing.T) {
	t.Parallel()

	api := New(nil, &mockService{}, workitem.QueueOptions{})
	if api == nil {
		t.Fatal("New(nil, svc) returned nil API")
	}
	if api.logger == nil {
		t.Fatal("New(nil, svc) left logger nil; expected Nop logger")
	}
}

func TestNew_NilService_Panics(t *testing.T) {
	t.Parallel()

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("New(nil, nil) did not panic; expected panic for nil service")
		}
	}()
	New(log.Nop(), nil, workitem.QueueOptions{})
}

// Queue

func TestQueue_RequiresOwner(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, &mockService{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/queue", http.NoBody)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestQueue_DefaultsAndOverrides(t *testing.T) {
	t.Parallel()

	svc := &mockService{}
	r := newTestRouter(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/queue?owner=u1", http.NoBody)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if svc.lastOwner != "u1" {
		t.Errorf("owner = %q, want u1", svc.lastOwner)
	}
	if svc.lastOpts.MaxItems != 10 || svc.lastOpts.MaxPerSource != 3 {
		t.Errorf("defaults not applied: %+v", svc.lastOpts)
	}

	req = httptest.NewRequest(http.MethodGet,
		"/api/v1/queue?owner=u1&max_items=5&max_per_source=2&min_score=0.4&plain=true&max_effort=quick", http.NoBody)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	opts := svc.lastOpts
	if opts.MaxItems != 5 || opts.MaxPerSource != 2 || opts.MinScore != 0.4 || !opts.Plain || opts.MaxEffort != source.EffortQuick {
		t.Errorf("overrides not applied: %+v", opts)
	}
}

func TestQueue_InvalidParams(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, &mockService{})

	paths := []string{
		"/api/v1/queue?owner=u1&max_items=zero",
		"/api/v1/queue?owner=u1&max_items=-1",
		"/api/v1/queue?owner=u1&min_score=1.5",
		"/api/v1/queue?owner=u1&plain=perhaps",
		"/api/v1/queue?owner=u1&max_effort=gargantuan",
	}
	for _, p := range paths {
		req := httptest.NewRequest(http.MethodGet, p, http.NoBody)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("GET %s = %d, want 400", p, rec.Code)
		}
	}
}

func TestQueue_ServiceError(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, &mockService{queueErr: errors.New("store down")})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/queue?owner=u1", http.NoBody)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestQueue_EncodesResult(t *testing.T) {
	t.Parallel()

	svc := &mockService{queueRes: &workitem.QueueResult{
		Items:  []workitem.PriorityItem{{WorkItem: *sampleItem(), Title: "Contract question", Score: 0.81}},
		Scored: 1,
	}}
	r := newTestRouter(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/queue?owner=u1", http.NoBody)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var got workitem.QueueResult
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(got.Items) != 1 || got.Items[0].Title != "Contract question" {
		t.Errorf("body = %+v", got)
	}
}

// Ensure

func TestEnsure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       string
		svc        *mockService
		wantStatus int
	}{
		{"created", `{"owner_id":"u1","source_type":"email","source_id":"m1"}`,
			&mockService{item: sampleItem(), created: true}, http.StatusCreated},
		{"existing", `{"owner_id":"u1","source_type":"email","source_id":"m1"}`,
			&mockService{item: sampleItem()}, http.StatusOK},
		{"invalid JSON", `{bad`, &mockService{}, http.StatusBadRequest},
		{"missing owner", `{"source_type":"email","source_id":"m1"}`, &mockService{}, http.StatusBadRequest},
		{"unknown type", `{"owner_id":"u1","source_type":"fax","source_id":"m1"}`, &mockService{}, http.StatusBadRequest},
		{"service error", `{"owner_id":"u1","source_type":"email","source_id":"m1"}`,
			&mockService{err: errors.New("boom")}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := newTestRouter(t, tt.svc)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/items/ensure", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

// Item actions

func TestGetItem(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, &mockService{item: sampleItem(), found: true})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/items/email/m1/?owner=u1", http.NoBody)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var got workitem.WorkItem
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if got.ID != "01H5K3TESTITEM" {
		t.Errorf("ID = %q", got.ID)
	}
}

func TestGetItem_NotFound(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, &mockService{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/items/email/m1/?owner=u1", http.NoBody)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestActions_StatusMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"ok", nil, http.StatusOK},
		{"not found", workitem.ErrNotFound, http.StatusNotFound},
		{"invalid transition", workitem.ErrInvalidTransition, http.StatusConflict},
		{"internal", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc := &mockService{err: tt.err}
			if tt.err == nil {
				svc.item = sampleItem()
			}
			r := newTestRouter(t, svc)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/items/email/m1/trust?owner=u1", http.NoBody)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestSnooze(t *testing.T) {
	t.Parallel()

	svc := &mockService{item: sampleItem()}
	r := newTestRouter(t, svc)
	until := time.Now().Add(2 * time.Hour).UTC().Truncate(time.Second)

	body, _ := json.Marshal(snoozeRequest{Until: until})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/items/email/m1/snooze?owner=u1", strings.NewReader(string(body)))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if !svc.lastUntil.Equal(until) {
		t.Errorf("until = %v, want %v", svc.lastUntil, until)
	}
}

func TestSnooze_Validation(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, &mockService{item: sampleItem()})

	for _, body := range []string{
		`{}`,
		`{bad`,
		`{"until":"2020-01-01T00:00:00Z"}`, // in the past
	} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/items/email/m1/snooze?owner=u1", strings.NewReader(body))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestReflag(t *testing.T) {
	t.Parallel()

	svc := &mockService{item: sampleItem()}
	r := newTestRouter(t, svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/items/email/m1/reflag?owner=u1",
		strings.NewReader(`{"reason_codes":["manual_hold"]}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if len(svc.lastCodes) != 1 || svc.lastCodes[0] != "manual_hold" {
		t.Errorf("codes = %v", svc.lastCodes)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/items/email/m1/reflag?owner=u1",
		strings.NewReader(`{"reason_codes":[]}`))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty codes: status = %d, want 400", rec.Code)
	}
}

func TestRoutes_UnknownSourceType(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, &mockService{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/items/fax/m1/trust?owner=u1", http.NoBody)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestRoutes_MethodNotAllowed(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, &mockService{})

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/v1/queue"},
		{http.MethodGet, "/api/v1/items/ensure"},
		{http.MethodDelete, "/api/v1/items/email/m1/trust"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, http.NoBody)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s %s = %d, want 405", tt.method, tt.path, rec.Code)
		}
	}
}
