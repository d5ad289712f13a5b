// Package memstore provides an in-memory implementation of workitem.Store.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/linnemanlabs/focus/internal/source"
	"github.com/linnemanlabs/focus/internal/workitem"
)

type itemKey struct {
	ownerID    string
	sourceType source.Type
	sourceID   string
}

type linkKey struct {
	itemKey
	targetType string
	targetID   string
}

type extractKey struct {
	itemKey
	extractType string
}

// Store holds work items in memory. Suitable for dev/testing.
type Store struct {
	mu       sync.RWMutex
	items    map[itemKey]*workitem.WorkItem
	links    map[linkKey]*workitem.EntityLink
	extracts map[extractKey]*workitem.ItemExtract
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		items:    make(map[itemKey]*workitem.WorkItem),
		links:    make(map[linkKey]*workitem.EntityLink),
		extracts: make(map[extractKey]*workitem.ItemExtract),
	}
}

func keyOf(ownerID string, t source.Type, sourceID string) itemKey {
	return itemKey{ownerID: ownerID, sourceType: t, sourceID: sourceID}
}

func copyItem(it *workitem.WorkItem) *workitem.WorkItem {
	cp := *it
	cp.ReasonCodes = append([]string(nil), it.ReasonCodes...)
	return &cp
}

// GetWorkItem retrieves a work item by its unique key. Returns a copy.
func (s *Store) GetWorkItem(_ context.Context, ownerID string, t source.Type, sourceID string) (*workitem.WorkItem, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.items[keyOf(ownerID, t, sourceID)]
	if !ok {
		return nil, false, nil
	}
	return copyItem(it), true, nil
}

// InsertWorkItem stores a copy of a new work item. Returns
// workitem.ErrDuplicate when the unique key is already taken.
func (s *Store) InsertWorkItem(_ context.Context, item *workitem.WorkItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := keyOf(item.OwnerID, item.SourceType, item.SourceID)
	if _, ok := s.items[k]; ok {
		return workitem.ErrDuplicate
	}
	s.items[k] = copyItem(item)
	return nil
}

// UpdateWorkItem replaces an existing work item. Returns
// workitem.ErrNotFound when the item does not exist.
func (s *Store) UpdateWorkItem(_ context.Context, item *workitem.WorkItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := keyOf(item.OwnerID, item.SourceType, item.SourceID)
	if _, ok := s.items[k]; !ok {
		return workitem.ErrNotFound
	}
	s.items[k] = copyItem(item)
	return nil
}

// ListReviewable returns the owner's items eligible for a queue read:
// needs_review, enriched_pending, and snoozed items whose snooze has
// elapsed. Ordered by creation time, then ID. Returns copies.
func (s *Store) ListReviewable(_ context.Context, ownerID string, now time.Time) ([]workitem.WorkItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []workitem.WorkItem
	for k, it := range s.items {
		if k.ownerID != ownerID {
			continue
		}
		switch it.Status {
		case workitem.StatusNeedsReview, workitem.StatusEnrichedPending:
			out = append(out, *copyItem(it))
		case workitem.StatusSnoozed:
			if !it.SnoozeUntil.After(now) {
				out = append(out, *copyItem(it))
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// UpsertEntityLink stores a copy of the link, replacing any previous link
// for the same record and target.
func (s *Store) UpsertEntityLink(_ context.Context, link *workitem.EntityLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := linkKey{
		itemKey:    keyOf(link.OwnerID, link.SourceType, link.SourceID),
		targetType: link.TargetType,
		targetID:   link.TargetID,
	}
	cp := *link
	s.links[k] = &cp
	return nil
}

// ListEntityLinks returns all links for an owner. Returns copies.
func (s *Store) ListEntityLinks(_ context.Context, ownerID string) ([]workitem.EntityLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []workitem.EntityLink
	for k, l := range s.links {
		if k.ownerID == ownerID {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SourceType != out[j].SourceType {
			return out[i].SourceType < out[j].SourceType
		}
		if out[i].SourceID != out[j].SourceID {
			return out[i].SourceID < out[j].SourceID
		}
		return out[i].TargetID < out[j].TargetID
	})
	return out, nil
}

// GetExtract retrieves one cached extract. Returns a copy.
func (s *Store) GetExtract(_ context.Context, ownerID string, t source.Type, sourceID, extractType string) (*workitem.ItemExtract, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ex, ok := s.extracts[extractKey{itemKey: keyOf(ownerID, t, sourceID), extractType: extractType}]
	if !ok {
		return nil, false, nil
	}
	cp := *ex
	return &cp, true, nil
}

// UpsertExtract stores a copy of the extract, replacing any previous one of
// the same type for the record.
func (s *Store) UpsertExtract(_ context.Context, ex *workitem.ItemExtract) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *ex
	s.extracts[extractKey{itemKey: keyOf(ex.OwnerID, ex.SourceType, ex.SourceID), extractType: ex.Type}] = &cp
	return nil
}

// ListExtracts returns all of an owner's extracts of one type. Returns copies.
func (s *Store) ListExtracts(_ context.Context, ownerID, extractType string) ([]workitem.ItemExtract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []workitem.ItemExtract
	for k, ex := range s.extracts {
		if k.ownerID == ownerID && k.extractType == extractType {
			out = append(out, *ex)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SourceType != out[j].SourceType {
			return out[i].SourceType < out[j].SourceType
		}
		return out[i].SourceID < out[j].SourceID
	})
	return out, nil
}
