package workitem

import (
	"context"
	"errors"
	"time"

	"github.com/linnemanlabs/focus/internal/source"
)

// ErrDuplicate is returned by InsertWorkItem when a row for the same
// (owner, source type, source ID) already exists. Callers treat it as "a
// concurrent creator won" and re-fetch, never as a failure.
var ErrDuplicate = errors.New("work item already exists")

// ErrNotFound is returned by update operations on a missing row.
var ErrNotFound = errors.New("work item not found")

// Store is the persistence interface for the work-item registry.
type Store interface {
	// GetWorkItem fetches one row by its unique key.
	GetWorkItem(ctx context.Context, ownerID string, t source.Type, sourceID string) (*WorkItem, bool, error)

	// InsertWorkItem creates a row, returning ErrDuplicate if the unique
	// key is already taken.
	InsertWorkItem(ctx context.Context, item *WorkItem) error

	// UpdateWorkItem persists status, reason codes, snooze and the review
	// timestamps of an existing row. Returns ErrNotFound for missing rows.
	UpdateWorkItem(ctx context.Context, item *WorkItem) error

	// ListReviewable returns the owner's items eligible for the queue:
	// needs_review, enriched_pending, and snoozed items whose snooze has
	// elapsed, ordered by creation time.
	ListReviewable(ctx context.Context, ownerID string, now time.Time) ([]WorkItem, error)

	// UpsertEntityLink is idempotent on the full link key; repeating a
	// discovery is safe.
	UpsertEntityLink(ctx context.Context, link *EntityLink) error

	// ListEntityLinks returns all links for an owner.
	ListEntityLinks(ctx context.Context, ownerID string) ([]EntityLink, error)

	// GetExtract fetches one cached extract.
	GetExtract(ctx context.Context, ownerID string, t source.Type, sourceID, extractType string) (*ItemExtract, bool, error)

	// UpsertExtract stores an extract, replacing any previous content for
	// the same key.
	UpsertExtract(ctx context.Context, ex *ItemExtract) error

	// ListExtracts returns all extracts of one type for an owner.
	ListExtracts(ctx context.Context, ownerID, extractType string) ([]ItemExtract, error)
}

// LinkKey identifies the source side of an entity link.
type LinkKey struct {
	SourceType source.Type
	SourceID   string
}

// LinkSet indexes an owner's links by source record for reconciliation.
type LinkSet map[LinkKey][]EntityLink

// NewLinkSet builds the per-record index from a flat link list.
func NewLinkSet(links []EntityLink) LinkSet {
	set := make(LinkSet, len(links))
	for _, l := range links {
		k := LinkKey{SourceType: l.SourceType, SourceID: l.SourceID}
		set[k] = append(set[k], l)
	}
	return set
}

// Has reports whether any link exists for the given source record.
func (s LinkSet) Has(t source.Type, sourceID string) bool {
	return len(s[LinkKey{SourceType: t, SourceID: sourceID}]) > 0
}
