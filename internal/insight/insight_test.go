package insight

import (
	"strings"
	"testing"
	"time"
)

var now = time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

func findInsight(insights []Insight, substr string) (Insight, bool) {
	for _, in := range insights {
		if strings.Contains(in.Text, substr) {
			return in, true
		}
	}
	return Insight{}, false
}

func findBatch(batches []Batch, substr string) (Batch, bool) {
	for _, b := range batches {
		if strings.Contains(b.Label, substr) {
			return b, true
		}
	}
	return Batch{}, false
}

func TestGenerate_Empty(t *testing.T) {
	t.Parallel()

	insights, batches := Generate(nil, Counts{}, nil, now)
	if len(insights) != 0 || len(batches) != 0 {
		t.Errorf("empty input produced insights=%v batches=%v", insights, batches)
	}
}

func TestRuleUrgentPressure(t *testing.T) {
	t.Parallel()

	items := []Item{
		{Source: "task", Title: "Overdue report", Score: 0.92},
		{Source: "email", Title: "Old mail", Score: 0.4},
	}
	insights, _ := Generate(items, Counts{}, nil, now)
	in, ok := findInsight(insights, "needs attention right now")
	if !ok {
		t.Fatalf("missing urgent-pressure insight in %v", insights)
	}
	if !strings.HasPrefix(in.Text, "1 item") {
		t.Errorf("text = %q, want singular count", in.Text)
	}
	if in.Priority < 0.8 {
		t.Errorf("priority = %v, want >= 0.8", in.Priority)
	}
}

func TestRuleSourceFlood(t *testing.T) {
	t.Parallel()

	var items []Item
	for i := 0; i < 5; i++ {
		items = append(items, Item{Source: "email", Title: "m", Score: 0.5})
	}
	items = append(items, Item{Source: "task", Title: "t", Score: 0.5})

	insights, _ := Generate(items, Counts{
		BySource: map[string]int{"email": 5, "task": 1},
	}, nil, now)

	in, ok := findInsight(insights, "dominate your queue")
	if !ok {
		t.Fatalf("missing flood insight in %v", insights)
	}
	if !strings.Contains(in.Text, "emails dominate your queue (5 of 6), consider a batch sweep") {
		t.Errorf("text = %q", in.Text)
	}

	// Below the six-item floor the rule stays quiet.
	insights, _ = Generate(items[:3], Counts{BySource: map[string]int{"email": 3}}, nil, now)
	if _, ok := findInsight(insights, "dominate"); ok {
		t.Error("flood rule fired on a small queue")
	}
}

func TestRuleUnlinkedAndHeldBack(t *testing.T) {
	t.Parallel()

	insights, _ := Generate(nil, Counts{
		ByReason:       map[string]int{"unlinked_company": 3},
		BelowThreshold: 2,
	}, nil, now)

	if in, ok := findInsight(insights, "waiting on a company link"); !ok {
		t.Error("missing unlinked insight")
	} else if !strings.HasPrefix(in.Text, "3 items are") {
		t.Errorf("text = %q", in.Text)
	}
	if _, ok := findInsight(insights, "held below the score threshold"); !ok {
		t.Error("missing held-back insight")
	}
}

func TestRuleQuickWins(t *testing.T) {
	t.Parallel()

	items := []Item{
		{Source: "task", Title: "Reply to Sam", Score: 0.7, Effort: "quick"},
		{Source: "email", Title: "Confirm invoice", Score: 0.6, Effort: "quick"},
		{Source: "task", Title: "Write strategy doc", Score: 0.9, Effort: "long"},
		{Source: "task", Title: "Low quick thing", Score: 0.2, Effort: "quick"},
	}
	_, batches := Generate(items, Counts{}, nil, now)
	b, ok := findBatch(batches, "quick wins")
	if !ok {
		t.Fatalf("missing quick-wins batch in %v", batches)
	}
	if len(b.Items) != 2 {
		t.Errorf("batch items = %v, want the 2 scoring quick items", b.Items)
	}
	if b.Minutes != 2*quickMinutes {
		t.Errorf("minutes = %d, want %d", b.Minutes, 2*quickMinutes)
	}

	// A single quick item is not worth a batch.
	_, batches = Generate(items[:1], Counts{}, nil, now)
	if _, ok := findBatch(batches, "quick wins"); ok {
		t.Error("quick-wins batch fired for a single item")
	}
}

func TestRuleGapFill(t *testing.T) {
	t.Parallel()

	items := []Item{
		{Source: "task", Title: "Quick reply", Score: 0.8, Effort: "quick"},
		{Source: "task", Title: "Medium review", Score: 0.7, Effort: "medium"},
		{Source: "event", Title: "The meeting itself", Score: 0.9, Effort: "quick"},
		{Source: "reading", Title: "Long read", Score: 0.3, Effort: "long"},
	}
	upcoming := []Event{
		{Title: "1:1 with Dana", StartsAt: now.Add(40 * time.Minute)},
		{Title: "Later sync", StartsAt: now.Add(3 * time.Hour)},
	}

	_, batches := Generate(items, Counts{}, upcoming, now)
	b, ok := findBatch(batches, "40-minute gap")
	if !ok {
		t.Fatalf("missing gap-fill batch in %v", batches)
	}
	if !strings.Contains(b.Label, "1:1 with Dana") {
		t.Errorf("label = %q, want nearest event named", b.Label)
	}
	for _, title := range b.Items {
		if title == "The meeting itself" {
			t.Error("gap-fill suggested the event itself")
		}
		if title == "Medium review" || title == "Long read" {
			t.Errorf("gap under an hour admitted non-quick item %q", title)
		}
	}

	// A one-hour-plus gap admits medium effort too.
	_, batches = Generate(items, Counts{}, []Event{{Title: "Board call", StartsAt: now.Add(90 * time.Minute)}}, now)
	b, ok = findBatch(batches, "90-minute gap")
	if !ok {
		t.Fatalf("missing 90-minute gap batch in %v", batches)
	}
	foundMedium := false
	for _, title := range b.Items {
		if title == "Medium review" {
			foundMedium = true
		}
	}
	if !foundMedium {
		t.Error("90-minute gap should admit medium-effort items")
	}

	// No gap batch when the next event is too close or too far.
	_, batches = Generate(items, Counts{}, []Event{{Title: "Now-ish", StartsAt: now.Add(5 * time.Minute)}}, now)
	if _, ok := findBatch(batches, "gap"); ok {
		t.Error("gap-fill fired for a 5-minute gap")
	}
}

func TestGenerate_OrderedByPriorityAndDeterministic(t *testing.T) {
	t.Parallel()

	items := []Item{
		{Source: "task", Title: "Urgent", Score: 0.95, Effort: "quick"},
		{Source: "task", Title: "Also urgent", Score: 0.9, Effort: "quick"},
	}
	counts := Counts{
		ByReason:       map[string]int{"unlinked_company": 1},
		BelowThreshold: 4,
	}

	first, firstBatches := Generate(items, counts, nil, now)
	for i := 1; i < len(first); i++ {
		if first[i].Priority > first[i-1].Priority {
			t.Fatalf("insights not sorted by priority: %v", first)
		}
	}

	for trial := 0; trial < 5; trial++ {
		again, againBatches := Generate(items, counts, nil, now)
		if len(again) != len(first) || len(againBatches) != len(firstBatches) {
			t.Fatal("output length changed between identical runs")
		}
		for i := range again {
			if again[i] != first[i] {
				t.Fatalf("insight order changed: %v vs %v", again, first)
			}
		}
	}
}
