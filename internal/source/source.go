// Package source defines the closed set of work-record source types, the
// normalized record shape adapters return, and the adapter registry with
// best-effort fan-out fetching.
package source

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/linnemanlabs/focus/internal/linker"
)

// Type is the category of an underlying work record. The set is closed so
// per-type counters and scoring switches stay exhaustive.
type Type string

const (
	TypeEmail      Type = "email"
	TypeTask       Type = "task"
	TypeEvent      Type = "event"
	TypeNote       Type = "note"
	TypeReading    Type = "reading"
	TypeCommitment Type = "commitment"
	TypeDeal       Type = "deal"
	TypeHabit      Type = "habit"
)

// All lists every source type, in stable order.
var All = []Type{
	TypeEmail,
	TypeTask,
	TypeEvent,
	TypeNote,
	TypeReading,
	TypeCommitment,
	TypeDeal,
	TypeHabit,
}

// Valid reports whether t is a member of the closed source-type set.
func (t Type) Valid() bool {
	for _, known := range All {
		if t == known {
			return true
		}
	}
	return false
}

// Effort is the rough time bucket needed to act on an item. Used for
// filtering and batch suggestions, never blended into the priority score.
type Effort string

const (
	EffortQuick  Effort = "quick"
	EffortMedium Effort = "medium"
	EffortLong   Effort = "long"
)

var effortRank = map[Effort]int{EffortQuick: 1, EffortMedium: 2, EffortLong: 3}

// Within reports whether e is no heavier than max. Unknown tiers rank as
// medium.
func (e Effort) Within(max Effort) bool {
	er, ok := effortRank[e]
	if !ok {
		er = effortRank[EffortMedium]
	}
	mr, ok := effortRank[max]
	if !ok {
		mr = effortRank[EffortMedium]
	}
	return er <= mr
}

// Tier values for task priority.
const (
	TierHigh   = "high"
	TierMedium = "medium"
	TierLow    = "low"
)

// Implied urgency tags on commitments.
const (
	UrgencyASAP     = "asap"
	UrgencyToday    = "today"
	UrgencyThisWeek = "this_week"
	UrgencyWhenever = "whenever"
)

// Inputs carries the scoring-relevant fields of a record. Zero values mean
// the source did not supply that field; scoring treats them as missing and
// falls back to its defaults rather than erroring.
type Inputs struct {
	// email
	ReceivedAt time.Time
	Unread     bool

	// task
	ScheduledFor time.Time
	Tier         string

	// calendar event
	StartsAt time.Time
	EndsAt   time.Time

	// commitment
	DueAt          time.Time
	ExpectedBy     time.Time
	ImpliedUrgency string
	VIP            bool
	OwedByMe       bool

	// shared
	LastActivityAt time.Time
	Effort         Effort
}

// Record is the normalized shape every adapter returns per ID.
type Record struct {
	ID      string
	Title   string
	Snippet string
	Inputs  Inputs

	// Linking fields, inspected by the entity linker.
	ContactEmails []string
	DirectLink    *linker.Target
	InboxLink     *linker.Target
}

// HasLink reports whether the record itself carries an embedded link,
// independent of the entity_links table.
func (r Record) HasLink() bool {
	return r.DirectLink != nil || r.InboxLink != nil
}

// LinkerRecord projects the record onto the linker's input shape.
func (r Record) LinkerRecord() linker.Record {
	return linker.Record{
		ContactEmails: r.ContactEmails,
		DirectLink:    r.DirectLink,
		InboxLink:     r.InboxLink,
	}
}

// Adapter fetches normalized records for one source type. Implemented by
// the hosting application; the queue treats every adapter as best-effort.
type Adapter interface {
	Type() Type
	FetchBatch(ctx context.Context, ownerID string, ids []string) (map[string]Record, error)
}

// Registry holds the registered adapters, keyed by source type.
type Registry struct {
	adapters map[Type]Adapter
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[Type]Adapter)}
}

// Register adds an adapter, keyed by its Type. Later registrations replace
// earlier ones.
func (r *Registry) Register(a Adapter) {
	r.adapters[a.Type()] = a
}

// Get retrieves the adapter for a source type.
func (r *Registry) Get(t Type) (Adapter, bool) {
	a, ok := r.adapters[t]
	return a, ok
}

// FetchOne fetches a single record through the type's adapter.
func (r *Registry) FetchOne(ctx context.Context, ownerID string, t Type, id string) (Record, bool, error) {
	a, ok := r.adapters[t]
	if !ok {
		return Record{}, false, nil
	}
	batch, err := a.FetchBatch(ctx, ownerID, []string{id})
	if err != nil {
		return Record{}, false, err
	}
	rec, ok := batch[id]
	return rec, ok, nil
}

// FetchAll fans out one batch fetch per source type and merges the results.
// A failing source type is reported in the returned error map and its items
// are simply absent from the result; other sources are unaffected.
func (r *Registry) FetchAll(ctx context.Context, ownerID string, ids map[Type][]string) (map[Type]map[string]Record, map[Type]error) {
	var (
		mu      sync.Mutex
		records = make(map[Type]map[string]Record, len(ids))
		errs    = make(map[Type]error)
	)

	var g errgroup.Group
	for t, batch := range ids {
		if len(batch) == 0 {
			continue
		}
		a, ok := r.adapters[t]
		if !ok {
			continue
		}
		g.Go(func() error {
			got, err := a.FetchBatch(ctx, ownerID, batch)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs[t] = err
				return nil // best-effort: never abort sibling fetches
			}
			records[t] = got
			return nil
		})
	}
	_ = g.Wait()

	return records, errs
}
