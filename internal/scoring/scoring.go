// Package scoring computes the per-source urgency/importance dimensions and
// blends them into one scalar priority score. All functions are pure and
// deterministic for a fixed "now"; missing inputs fall back to a mid-low
// default instead of erroring so partial source failures degrade gracefully.
package scoring

import (
	"math"
	"time"

	"github.com/linnemanlabs/focus/internal/source"
)

// DefaultDimension is used when a source did not supply enough data to
// compute a dimension.
const DefaultDimension = 0.3

// Blend weights. Urgency dominates importance roughly 60/40; the extended
// combinator folds in recency and commitment weight at the margins.
const (
	urgencyWeight    = 0.6
	importanceWeight = 0.4

	extUrgencyWeight    = 0.5
	extImportanceWeight = 0.3
	extRecencyWeight    = 0.1
	extItemWeight       = 0.1
)

// Dimensions are the scoring inputs for one item. Effort is carried for
// filtering and batching but is never blended into the score.
type Dimensions struct {
	Urgency    float64
	Importance float64
	Recency    float64
	Weight     float64
	Effort     source.Effort
}

// Score computes the dimensions for one record. Weight is left at the
// default; callers that track a per-item base priority overwrite it via
// WeightFromPriority.
func Score(t source.Type, in source.Inputs, now time.Time) Dimensions {
	d := Dimensions{
		Recency: recency(in.LastActivityAt, now),
		Weight:  DefaultDimension,
		Effort:  in.Effort,
	}
	if d.Effort == "" {
		d.Effort = source.EffortMedium
	}

	switch t {
	case source.TypeEmail:
		d.Urgency = emailUrgency(in.ReceivedAt, now)
		if in.Unread {
			d.Importance = 0.7
		} else {
			d.Importance = 0.35
		}
	case source.TypeTask:
		d.Urgency = dueUrgency(in.ScheduledFor, now)
		d.Importance = tierImportance(in.Tier)
	case source.TypeEvent:
		d.Urgency = eventUrgency(in.StartsAt, in.EndsAt, now)
		// Meetings are time-boxed; stakes are not inferred.
		d.Importance = 0.5
	case source.TypeCommitment:
		d.Urgency = commitmentUrgency(in, now)
		d.Importance = commitmentImportance(in)
	case source.TypeNote:
		d.Urgency, d.Importance = 0.2, 0.25
	case source.TypeReading:
		d.Urgency, d.Importance = 0.15, 0.2
	case source.TypeDeal:
		d.Urgency, d.Importance = 0.35, 0.65
	case source.TypeHabit:
		d.Urgency = habitUrgency(in.ScheduledFor, now)
		d.Importance = 0.4
	default:
		d.Urgency, d.Importance = DefaultDimension, DefaultDimension
	}

	d.Urgency = clamp01(d.Urgency)
	d.Importance = clamp01(d.Importance)
	return d
}

// Combine blends urgency and importance into one score, favoring urgency.
func Combine(d Dimensions) float64 {
	return clamp01(urgencyWeight*d.Urgency + importanceWeight*d.Importance)
}

// CombineExtended additionally folds in recency and the item's base weight.
// Monotonic in every dimension.
func CombineExtended(d Dimensions) float64 {
	return clamp01(extUrgencyWeight*d.Urgency +
		extImportanceWeight*d.Importance +
		extRecencyWeight*d.Recency +
		extItemWeight*d.Weight)
}

// WeightFromPriority normalizes a coarse integer base priority (0..100)
// into the weight dimension.
func WeightFromPriority(priority int) float64 {
	if priority <= 0 {
		return DefaultDimension
	}
	return clamp01(float64(priority) / 100)
}

// emailUrgency decays with age since receipt: a brand new email scores 0.9,
// halving roughly every 24 hours, with a small floor so old mail never
// quite reaches zero.
func emailUrgency(receivedAt, now time.Time) float64 {
	if receivedAt.IsZero() {
		return DefaultDimension
	}
	age := now.Sub(receivedAt)
	if age < 0 {
		age = 0
	}
	u := 0.9 * math.Exp(-age.Hours()/36)
	if u < 0.05 {
		u = 0.05
	}
	return u
}

// dueUrgency buckets a hard deadline: overdue > due today > due soon > later.
func dueUrgency(due, now time.Time) float64 {
	switch {
	case due.IsZero():
		return DefaultDimension
	case due.Before(now) && !sameDay(due, now):
		return 0.95
	case sameDay(due, now):
		return 0.85
	case due.Sub(now) <= 72*time.Hour:
		return 0.6
	default:
		return 0.4
	}
}

// eventUrgency peaks as the start time approaches, holds through the event
// itself, and drops to zero once it has ended.
func eventUrgency(startsAt, endsAt time.Time, now time.Time) float64 {
	if startsAt.IsZero() {
		return DefaultDimension
	}
	if endsAt.IsZero() {
		endsAt = startsAt.Add(time.Hour)
	}
	if now.After(endsAt) {
		return 0
	}
	if !now.Before(startsAt) {
		return 1.0
	}
	until := startsAt.Sub(now)
	switch {
	case until <= 15*time.Minute:
		return 0.95
	case until <= time.Hour:
		return 0.85
	case until <= 4*time.Hour:
		return 0.65
	case until <= 24*time.Hour:
		return 0.45
	default:
		return 0.2
	}
}

// commitmentUrgency blends the explicit due date, the softer "expected by"
// date, and the implied-urgency tag, taking the strongest signal.
func commitmentUrgency(in source.Inputs, now time.Time) float64 {
	var due, expected float64
	if !in.DueAt.IsZero() {
		due = dueUrgency(in.DueAt, now)
	}
	if !in.ExpectedBy.IsZero() {
		switch {
		case in.ExpectedBy.Before(now) && !sameDay(in.ExpectedBy, now):
			expected = 0.7
		case sameDay(in.ExpectedBy, now):
			expected = 0.6
		case in.ExpectedBy.Sub(now) <= 72*time.Hour:
			expected = 0.45
		default:
			expected = 0.3
		}
	}
	implied := impliedUrgency(in.ImpliedUrgency)

	u := math.Max(due, math.Max(expected, implied))
	if u == 0 {
		return DefaultDimension
	}
	return u
}

func impliedUrgency(tag string) float64 {
	switch tag {
	case source.UrgencyASAP:
		return 0.95
	case source.UrgencyToday:
		return 0.85
	case source.UrgencyThisWeek:
		return 0.6
	case source.UrgencyWhenever:
		return 0.3
	default:
		return 0
	}
}

// commitmentImportance starts at a baseline and boosts for VIP
// counterparties and for debts you owe over debts owed to you.
func commitmentImportance(in source.Inputs) float64 {
	imp := 0.5
	if in.VIP {
		imp += 0.2
	}
	if in.OwedByMe {
		imp += 0.15
	}
	return imp
}

func tierImportance(tier string) float64 {
	switch tier {
	case source.TierHigh:
		return 0.9
	case source.TierMedium:
		return 0.6
	case source.TierLow:
		return 0.3
	default:
		return DefaultDimension
	}
}

// habitUrgency nudges a habit up on its scheduled day, low otherwise.
func habitUrgency(scheduledFor, now time.Time) float64 {
	if scheduledFor.IsZero() {
		return DefaultDimension
	}
	if sameDay(scheduledFor, now) || scheduledFor.Before(now) {
		return 0.45
	}
	return 0.25
}

// recency rewards records with fresh underlying activity.
func recency(lastActivity, now time.Time) float64 {
	if lastActivity.IsZero() {
		return DefaultDimension
	}
	age := now.Sub(lastActivity)
	switch {
	case age <= 24*time.Hour:
		return 0.8
	case age <= 72*time.Hour:
		return 0.6
	case age <= 7*24*time.Hour:
		return 0.4
	default:
		return 0.2
	}
}

func sameDay(a, b time.Time) bool {
	ay, ad := a.Year(), a.YearDay()
	by, bd := b.Year(), b.YearDay()
	return ay == by && ad == bd
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
