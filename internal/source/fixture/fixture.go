// Package fixture provides static source adapters and a static directory
// for development and demos, until real connectors exist.
package fixture

import (
	"context"
	"time"

	"github.com/linnemanlabs/focus/internal/linker"
	"github.com/linnemanlabs/focus/internal/source"
)

// Adapter serves a fixed record set for one source type. Records are shared
// across owners.
type Adapter struct {
	typ  source.Type
	recs map[string]source.Record
}

// NewAdapter creates a static adapter for the given type.
func NewAdapter(t source.Type, recs map[string]source.Record) *Adapter {
	return &Adapter{typ: t, recs: recs}
}

// Type implements source.Adapter.
func (a *Adapter) Type() source.Type { return a.typ }

// FetchBatch implements source.Adapter.
func (a *Adapter) FetchBatch(_ context.Context, _ string, ids []string) (map[string]source.Record, error) {
	out := make(map[string]source.Record, len(ids))
	for _, id := range ids {
		if rec, ok := a.recs[id]; ok {
			out[id] = rec
		}
	}
	return out, nil
}

// Directory is a static workitem.DirectoryProvider.
type Directory struct {
	dir linker.Directory
}

// Directory implements the provider interface.
func (d *Directory) Directory(context.Context, string) (linker.Directory, error) {
	return d.dir, nil
}

// DemoDirectory returns a small company/deal directory for demos.
func DemoDirectory() *Directory {
	return &Directory{dir: linker.Directory{
		Companies: []linker.Entity{
			{ID: "co-acme", Name: "Acme Corp", Domain: "acme.com"},
			{ID: "co-initech", Name: "Initech", Domain: "initech.io"},
		},
		Deals: []linker.Entity{
			{ID: "deal-acme-renewal", Name: "Acme renewal", Domain: "acme.com"},
		},
	}}
}

// DemoRegistry returns a registry with one adapter per source type, holding
// a handful of records anchored to the given time.
func DemoRegistry(now time.Time) *source.Registry {
	reg := source.NewRegistry()

	reg.Register(NewAdapter(source.TypeEmail, map[string]source.Record{
		"email-acme-contract": {
			ID: "email-acme-contract", Title: "Contract question from Acme",
			Snippet:       "Can you confirm clause 7 covers the new region?",
			Inputs:        source.Inputs{ReceivedAt: now.Add(-2 * time.Hour), Unread: true},
			ContactEmails: []string{"jo@acme.com"},
		},
		"email-newsletter": {
			ID: "email-newsletter", Title: "Weekly industry digest",
			Inputs:        source.Inputs{ReceivedAt: now.Add(-26 * time.Hour)},
			ContactEmails: []string{"digest@newsletters.example"},
		},
	}))

	reg.Register(NewAdapter(source.TypeTask, map[string]source.Record{
		"task-report": {
			ID: "task-report", Title: "File the quarterly report",
			Inputs: source.Inputs{ScheduledFor: now.Add(5 * time.Hour), Tier: source.TierHigh, Effort: source.EffortMedium},
		},
		"task-backlog": {
			ID: "task-backlog", Title: "Groom the backlog",
			Inputs: source.Inputs{ScheduledFor: now.Add(9 * 24 * time.Hour), Tier: source.TierLow, Effort: source.EffortLong},
		},
	}))

	reg.Register(NewAdapter(source.TypeEvent, map[string]source.Record{
		"event-standup": {
			ID: "event-standup", Title: "Team standup",
			Inputs: source.Inputs{StartsAt: now.Add(45 * time.Minute), EndsAt: now.Add(60 * time.Minute)},
		},
	}))

	reg.Register(NewAdapter(source.TypeCommitment, map[string]source.Record{
		"commit-intro": {
			ID: "commit-intro", Title: "Intro Jo to the partnerships team",
			Snippet: "Promised during Tuesday's call.",
			Inputs: source.Inputs{
				ExpectedBy: now.Add(24 * time.Hour), OwedByMe: true, VIP: true,
				ImpliedUrgency: source.UrgencyToday,
			},
			ContactEmails: []string{"jo@acme.com"},
		},
	}))

	reg.Register(NewAdapter(source.TypeDeal, map[string]source.Record{
		"deal-acme-renewal": {
			ID: "deal-acme-renewal", Title: "Acme renewal",
			Inputs:     source.Inputs{LastActivityAt: now.Add(-4 * 24 * time.Hour)},
			DirectLink: &linker.Target{Type: "deal", ID: "deal-acme-renewal"},
		},
	}))

	reg.Register(NewAdapter(source.TypeNote, map[string]source.Record{
		"note-ideas": {
			ID: "note-ideas", Title: "Product ideas from offsite",
			Inputs: source.Inputs{LastActivityAt: now.Add(-6 * 24 * time.Hour)},
		},
	}))

	reg.Register(NewAdapter(source.TypeReading, map[string]source.Record{
		"read-paper": {
			ID: "read-paper", Title: "Queueing theory survey",
			Inputs: source.Inputs{Effort: source.EffortLong},
		},
	}))

	reg.Register(NewAdapter(source.TypeHabit, map[string]source.Record{
		"habit-review": {
			ID: "habit-review", Title: "Daily inbox review",
			Inputs: source.Inputs{ScheduledFor: now, Effort: source.EffortQuick},
		},
	}))

	return reg
}
