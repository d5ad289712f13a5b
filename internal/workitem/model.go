package workitem

import (
	"time"

	"github.com/linnemanlabs/focus/internal/scoring"
	"github.com/linnemanlabs/focus/internal/source"
)

// Status tracks where a work item is in its review lifecycle.
type Status string

const (
	// StatusNeedsReview means unresolved reason codes exist.
	StatusNeedsReview Status = "needs_review"

	// StatusEnrichedPending means enrichment ran but the item still awaits
	// human review.
	StatusEnrichedPending Status = "enriched_pending"

	// StatusTrusted means no further automatic review is needed. An item
	// can be reopened by an explicit re-flag.
	StatusTrusted Status = "trusted"

	// StatusSnoozed means excluded from the queue until SnoozeUntil.
	StatusSnoozed Status = "snoozed"

	// StatusIgnored is terminal: excluded from all future queue reads.
	StatusIgnored Status = "ignored"
)

// Reason codes naming unresolved deficiencies. An empty set is the trust
// condition.
const (
	ReasonUnlinkedCompany = "unlinked_company"
	ReasonMissingSummary  = "missing_summary"
	ReasonMissingScoring  = "missing_scoring"
)

// WorkItem is one registry row per (owner, source type, source ID). Rows
// are never deleted, only status-transitioned, to preserve review history.
type WorkItem struct {
	ID          string        `json:"id"`
	OwnerID     string        `json:"owner_id"`
	SourceType  source.Type   `json:"source_type"`
	SourceID    string        `json:"source_id"`
	Status      Status        `json:"status"`
	ReasonCodes []string      `json:"reason_codes"`
	Priority    int           `json:"priority"`
	SnoozeUntil time.Time     `json:"snooze_until,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	LastTouched time.Time     `json:"last_touched_at,omitempty"`
	ReviewedAt  time.Time     `json:"reviewed_at,omitempty"`
	TrustedAt   time.Time     `json:"trusted_at,omitempty"`
}

// HasReason reports whether the item carries the given reason code.
func (w *WorkItem) HasReason(code string) bool {
	for _, c := range w.ReasonCodes {
		if c == code {
			return true
		}
	}
	return false
}

// SnoozeExpired reports whether a snoozed item is due back in the queue.
// Computed at read time; there is no background sweep.
func (w *WorkItem) SnoozeExpired(now time.Time) bool {
	return w.Status == StatusSnoozed && !w.SnoozeUntil.IsZero() && !w.SnoozeUntil.After(now)
}

// EntityLink associates a source record with a company or deal.
type EntityLink struct {
	OwnerID    string      `json:"owner_id"`
	SourceType source.Type `json:"source_type"`
	SourceID   string      `json:"source_id"`
	TargetType string      `json:"target_type"`
	TargetID   string      `json:"target_id"`
	LinkReason string      `json:"link_reason"`
	Confidence float64     `json:"confidence"`
	CreatedAt  time.Time   `json:"created_at"`
}

// Extract types.
const ExtractSummary = "summary"

// ItemExtract is a cached one-line summary for a source record, produced by
// the summarization collaborator and consumed read-only by the queue.
type ItemExtract struct {
	OwnerID    string      `json:"owner_id"`
	SourceType source.Type `json:"source_type"`
	SourceID   string      `json:"source_id"`
	Type       string      `json:"extract_type"`
	Content    string      `json:"content"`
	CreatedAt  time.Time   `json:"created_at"`
}

// PriorityItem is a work item joined with its source record and runtime
// score. It exists only for the duration of one queue read.
type PriorityItem struct {
	WorkItem WorkItem           `json:"work_item"`
	Title    string             `json:"title"`
	Snippet  string             `json:"snippet,omitempty"`
	Extract  string             `json:"extract,omitempty"`
	Dims     scoring.Dimensions `json:"dimensions"`
	Score    float64            `json:"priority_score"`
}

// PriorityScore implements selection.Scored.
func (p PriorityItem) PriorityScore() float64 { return p.Score }

// Source implements selection.Scored.
func (p PriorityItem) Source() string { return string(p.WorkItem.SourceType) }

// basePriority is the coarse creation-time weight per source type, distinct
// from the runtime score.
var basePriority = map[source.Type]int{
	source.TypeCommitment: 80,
	source.TypeDeal:       75,
	source.TypeTask:       70,
	source.TypeEvent:      65,
	source.TypeEmail:      60,
	source.TypeHabit:      40,
	source.TypeNote:       30,
	source.TypeReading:    20,
}

// BasePriority returns the creation-time base weight for a source type.
func BasePriority(t source.Type) int {
	if p, ok := basePriority[t]; ok {
		return p
	}
	return 30
}
