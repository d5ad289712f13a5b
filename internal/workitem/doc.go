// Package workitem implements the attention-queue core: a lifecycle
// registry of items drawn from external sources, per-source scoring, and a
// reconciling read path that serves the prioritized queue.
//
// Work items are created idempotently, keyed by (owner, source type, source
// ID). Items land in needs_review with machine reason codes describing what
// enrichment is missing; codes are pruned at read time as the underlying
// facts change, and items whose codes all resolve are promoted to trusted
// without user involvement. User actions (trust, snooze, ignore, reflag)
// always take precedence over automatic transitions.
//
// The queue read never blocks on persistence: all state repairs discovered
// while reading are handed to a bounded write-back worker, and a lost
// write-back merely means the next read repeats the repair.
package workitem
