// Package insight turns a scored queue into short human-readable
// observations and suggested batch actions. Every rule is a pure function
// of its inputs, independently evaluable, and ordered by a numeric priority
// derived from counts and ratios.
package insight

import (
	"fmt"
	"sort"
	"time"
)

// Nominal minutes per effort tier, used for batch sizing.
const (
	quickMinutes  = 5
	mediumMinutes = 25
)

// Item is the slice of a scored work item the rules need.
type Item struct {
	Source string
	Title  string
	Score  float64
	Effort string // quick/medium/long
}

// Event is an upcoming calendar event, used for gap-filling suggestions.
type Event struct {
	Title    string
	StartsAt time.Time
}

// Counts are the aggregate counters over the full scored set.
type Counts struct {
	BySource       map[string]int
	ByReason       map[string]int
	BelowThreshold int
}

// Insight is one observation line.
type Insight struct {
	Priority float64 `json:"priority"`
	Text     string  `json:"text"`
}

// Batch is one suggested batch action over concrete items.
type Batch struct {
	Priority float64  `json:"priority"`
	Label    string   `json:"label"`
	Items    []string `json:"items"`
	Minutes  int      `json:"minutes,omitempty"`
}

// Generate evaluates every rule against the inputs. Outputs are sorted by
// descending priority with a stable order for equal priorities, so
// identical inputs always produce identical output.
func Generate(items []Item, counts Counts, upcoming []Event, now time.Time) ([]Insight, []Batch) {
	var insights []Insight
	var batches []Batch

	if in, ok := ruleUrgentPressure(items); ok {
		insights = append(insights, in)
	}
	if in, ok := ruleSourceFlood(items, counts); ok {
		insights = append(insights, in)
	}
	if in, ok := ruleUnlinked(counts); ok {
		insights = append(insights, in)
	}
	if in, ok := ruleHeldBack(counts); ok {
		insights = append(insights, in)
	}

	if b, ok := ruleQuickWins(items); ok {
		batches = append(batches, b)
	}
	if b, ok := ruleGapFill(items, upcoming, now); ok {
		batches = append(batches, b)
	}

	sort.SliceStable(insights, func(i, j int) bool { return insights[i].Priority > insights[j].Priority })
	sort.SliceStable(batches, func(i, j int) bool { return batches[i].Priority > batches[j].Priority })
	return insights, batches
}

// ruleUrgentPressure flags how much of the queue demands attention now.
func ruleUrgentPressure(items []Item) (Insight, bool) {
	var urgent int
	for _, it := range items {
		if it.Score >= 0.85 {
			urgent++
		}
	}
	if urgent == 0 {
		return Insight{}, false
	}
	text := fmt.Sprintf("%d items need attention right now", urgent)
	if urgent == 1 {
		text = "1 item needs attention right now"
	}
	return Insight{
		Priority: clamp01(0.8 + float64(urgent)*0.02),
		Text:     text,
	}, true
}

// ruleSourceFlood fires when one source type holds more than half the queue.
func ruleSourceFlood(items []Item, counts Counts) (Insight, bool) {
	total := len(items)
	if total < 6 {
		return Insight{}, false
	}
	// Sorted keys keep the winning source deterministic on ties.
	sources := make([]string, 0, len(counts.BySource))
	for s := range counts.BySource {
		sources = append(sources, s)
	}
	sort.Strings(sources)

	for _, s := range sources {
		n := counts.BySource[s]
		if n*2 > total {
			ratio := float64(n) / float64(total)
			return Insight{
				Priority: clamp01(0.4 + ratio/2),
				Text:     fmt.Sprintf("%ss dominate your queue (%d of %d), consider a batch sweep", s, n, total),
			}, true
		}
	}
	return Insight{}, false
}

func ruleUnlinked(counts Counts) (Insight, bool) {
	n := counts.ByReason["unlinked_company"]
	if n == 0 {
		return Insight{}, false
	}
	return Insight{
		Priority: clamp01(0.3 + float64(n)*0.02),
		Text:     fmt.Sprintf("%d item%s waiting on a company link", n, pluralIs(n)),
	}, true
}

func ruleHeldBack(counts Counts) (Insight, bool) {
	if counts.BelowThreshold == 0 {
		return Insight{}, false
	}
	return Insight{
		Priority: 0.15,
		Text: fmt.Sprintf("%d low-priority item%s held below the score threshold",
			counts.BelowThreshold, pluralIs(counts.BelowThreshold)),
	}, true
}

// ruleQuickWins suggests clearing the decent-scoring quick items in one go.
func ruleQuickWins(items []Item) (Batch, bool) {
	var titles []string
	for _, it := range items {
		if it.Effort == "quick" && it.Score >= 0.5 {
			titles = append(titles, it.Title)
		}
	}
	if len(titles) < 2 {
		return Batch{}, false
	}
	return Batch{
		Priority: clamp01(0.5 + float64(len(titles))*0.05),
		Label:    fmt.Sprintf("Clear %d quick wins", len(titles)),
		Items:    titles,
		Minutes:  len(titles) * quickMinutes,
	}, true
}

// ruleGapFill suggests filling the gap before the next meeting with items
// whose effort fits the available time.
func ruleGapFill(items []Item, upcoming []Event, now time.Time) (Batch, bool) {
	next, ok := nextEvent(upcoming, now)
	if !ok {
		return Batch{}, false
	}
	gap := next.StartsAt.Sub(now)
	if gap < 15*time.Minute || gap > 2*time.Hour {
		return Batch{}, false
	}

	perItem := quickMinutes
	maxEffort := "quick"
	if gap >= time.Hour {
		perItem = mediumMinutes
		maxEffort = "medium"
	}

	var titles []string
	for _, it := range items {
		if it.Source == "event" {
			continue
		}
		if effortFits(it.Effort, maxEffort) {
			titles = append(titles, it.Title)
		}
		if len(titles) == 3 {
			break
		}
	}
	if len(titles) == 0 {
		return Batch{}, false
	}

	gapMin := int(gap.Minutes())
	return Batch{
		Priority: 0.7,
		Label:    fmt.Sprintf("Fill the %d-minute gap before %q", gapMin, next.Title),
		Items:    titles,
		Minutes:  len(titles) * perItem,
	}, true
}

func nextEvent(upcoming []Event, now time.Time) (Event, bool) {
	var next Event
	found := false
	for _, ev := range upcoming {
		if !ev.StartsAt.After(now) {
			continue
		}
		if !found || ev.StartsAt.Before(next.StartsAt) {
			next = ev
			found = true
		}
	}
	return next, found
}

func effortFits(effort, maxEffort string) bool {
	rank := map[string]int{"quick": 0, "medium": 1, "long": 2}
	e, ok := rank[effort]
	if !ok {
		return false
	}
	return e <= rank[maxEffort]
}

func pluralIs(n int) string {
	if n == 1 {
		return " is"
	}
	return "s are"
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
