package workitem

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/linnemanlabs/focus/internal/insight"
	"github.com/linnemanlabs/focus/internal/linker"
	"github.com/linnemanlabs/focus/internal/scoring"
	"github.com/linnemanlabs/focus/internal/selection"
	"github.com/linnemanlabs/focus/internal/source"
	"github.com/linnemanlabs/focus/internal/writeback"
)

// ErrInvalidTransition is returned for user actions the lifecycle does not
// allow (e.g. snoozing an ignored item).
var ErrInvalidTransition = errors.New("invalid status transition")

// Default selection parameters, used when the caller leaves QueueOptions
// fields at their zero values.
const (
	DefaultMaxItems     = 10
	DefaultMaxPerSource = 3
)

// DirectoryProvider supplies the owner's linkable company/deal registries.
// Implemented by the hosting application.
type DirectoryProvider interface {
	Directory(ctx context.Context, ownerID string) (linker.Directory, error)
}

// Summarizer produces one-line extracts for source records. Optional; when
// absent, missing_summary codes are only ever cleared out-of-band.
type Summarizer interface {
	Summarize(ctx context.Context, title, snippet string) (string, error)
}

// QueueOptions control one queue read. Zero values select the defaults:
// diversity-constrained selection with DefaultMaxItems/DefaultMaxPerSource.
type QueueOptions struct {
	MaxItems     int
	MaxPerSource int
	MinScore     float64
	// Plain disables the diversity walk and takes a straight top-K.
	Plain bool
	// MaxEffort drops items heavier than the given tier before selection.
	// Empty admits every tier.
	MaxEffort source.Effort
}

func (o QueueOptions) normalized() QueueOptions {
	if o.MaxItems <= 0 {
		o.MaxItems = DefaultMaxItems
	}
	if o.MaxPerSource <= 0 {
		o.MaxPerSource = DefaultMaxPerSource
	}
	return o
}

// QueueResult is the outcome of one queue read.
type QueueResult struct {
	Items          []PriorityItem    `json:"items"`
	Insights       []insight.Insight `json:"insights"`
	Batches        []insight.Batch   `json:"suggested_batches"`
	Scored         int               `json:"scored"`
	AutoResolved   int               `json:"auto_resolved"`
	BelowThreshold int               `json:"below_threshold"`
	DiversitySkips int               `json:"diversity_skips"`
	EffortFiltered int               `json:"effort_filtered"`
	GeneratedAt    time.Time         `json:"generated_at"`
}

// Service is the business boundary for the work-item registry: idempotent
// creation, explicit user actions, and the reconciling queue read.
type Service struct {
	store      Store
	sources    *source.Registry
	dirs       DirectoryProvider
	summarizer Summarizer
	wb         *writeback.Worker
	metrics    *Metrics
	logger     log.Logger
	nowFn      func() time.Time
	ownsWorker bool
}

// NewService creates a work-item service. metrics and wb may be nil; a
// private registry and worker are used in that case (handy for tests).
func NewService(store Store, sources *source.Registry, dirs DirectoryProvider, logger log.Logger, metrics *Metrics, wb *writeback.Worker) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	if metrics == nil {
		metrics = NewMetrics(prometheus.NewRegistry())
	}
	s := &Service{
		store:   store,
		sources: sources,
		dirs:    dirs,
		wb:      wb,
		metrics: metrics,
		logger:  logger,
		nowFn:   time.Now,
	}
	if s.wb == nil {
		s.wb = writeback.New(logger, 128, func(name string) {
			metrics.WritebackDropsTotal.WithLabelValues(name).Inc()
		})
		s.ownsWorker = true
	}
	s.wb.Start()
	return s
}

// SetSummarizer wires the optional extract producer.
func (s *Service) SetSummarizer(sum Summarizer) {
	s.summarizer = sum
}

// Close drains the write-back worker if the service owns it.
func (s *Service) Close() {
	if s.ownsWorker {
		s.wb.Close()
	}
}

// Flush waits for pending write-backs to run; the worker stays usable.
// Test helper; production code relies on read-time self-healing instead.
func (s *Service) Flush() {
	s.wb.Flush()
}

// Get fetches one work item by its unique key.
func (s *Service) Get(ctx context.Context, ownerID string, t source.Type, sourceID string) (*WorkItem, bool, error) {
	return s.store.GetWorkItem(ctx, ownerID, t, sourceID)
}

// Ensure is the idempotent create-or-fetch for a source record. The second
// return value reports whether a new row was created. A unique-key race
// with a concurrent creator is resolved by returning the winner's row.
func (s *Service) Ensure(ctx context.Context, ownerID string, t source.Type, sourceID string) (*WorkItem, bool, error) {
	if !t.Valid() {
		return nil, false, fmt.Errorf("unknown source type %q", t)
	}
	if ownerID == "" || sourceID == "" {
		return nil, false, fmt.Errorf("owner and source ID are required")
	}

	if existing, ok, err := s.store.GetWorkItem(ctx, ownerID, t, sourceID); err != nil {
		return nil, false, err
	} else if ok {
		s.metrics.EnsuresTotal.WithLabelValues("existing").Inc()
		return existing, false, nil
	}

	now := s.nowFn()
	codes, links := s.enrich(ctx, ownerID, t, sourceID)

	item := &WorkItem{
		ID:          ulid.Make().String(),
		OwnerID:     ownerID,
		SourceType:  t,
		SourceID:    sourceID,
		Status:      StatusNeedsReview,
		ReasonCodes: codes,
		Priority:    BasePriority(t),
		CreatedAt:   now,
		UpdatedAt:   now,
		LastTouched: now,
	}
	if len(codes) == 0 {
		item.Status = StatusTrusted
		item.TrustedAt = now
	}

	if err := s.store.InsertWorkItem(ctx, item); err != nil {
		if errors.Is(err, ErrDuplicate) {
			// A concurrent creator won the race; their row is ours too.
			winner, ok, gerr := s.store.GetWorkItem(ctx, ownerID, t, sourceID)
			if gerr != nil {
				return nil, false, gerr
			}
			if !ok {
				return nil, false, fmt.Errorf("duplicate work item vanished: %s/%s/%s", ownerID, t, sourceID)
			}
			s.metrics.EnsuresTotal.WithLabelValues("raced").Inc()
			return winner, false, nil
		}
		return nil, false, err
	}

	for i := range links {
		links[i].CreatedAt = now
		if err := s.store.UpsertEntityLink(ctx, &links[i]); err != nil {
			// The in-memory result already reflects the intended state;
			// the next read rediscovers the link.
			s.logger.Error(ctx, err, "entity link write failed",
				"owner", ownerID, "source_type", t, "source_id", sourceID)
		}
	}

	s.metrics.EnsuresTotal.WithLabelValues("created").Inc()
	return item, true, nil
}

// enrich runs the entity linker and the per-source deterministic rules for
// a record about to enter the registry.
func (s *Service) enrich(ctx context.Context, ownerID string, t source.Type, sourceID string) (codes []string, links []EntityLink) {
	rec, haveRec, err := s.sources.FetchOne(ctx, ownerID, t, sourceID)
	if err != nil {
		s.metrics.AdapterFailuresTotal.WithLabelValues(string(t)).Inc()
		s.logger.Warn(ctx, "adapter fetch failed during ensure, degrading",
			"source_type", t, "source_id", sourceID, "error", err)
	}
	if err != nil || !haveRec {
		// Without the record we can neither score precisely nor link.
		return []string{ReasonUnlinkedCompany, ReasonMissingScoring}, nil
	}

	if rec.HasLink() {
		// The record carries its own link; mirror it into entity_links.
		lk, _ := linker.Match(rec.LinkerRecord(), linker.Directory{})
		links = append(links, EntityLink{
			OwnerID:    ownerID,
			SourceType: t,
			SourceID:   sourceID,
			TargetType: lk.Target.Type,
			TargetID:   lk.Target.ID,
			LinkReason: lk.Reason,
			Confidence: lk.Confidence,
		})
	} else {
		dir, derr := s.dirs.Directory(ctx, ownerID)
		if derr != nil {
			s.logger.Warn(ctx, "directory fetch failed, skipping domain match", "error", derr)
		}
		if lk, ok := linker.Match(rec.LinkerRecord(), dir); ok {
			links = append(links, EntityLink{
				OwnerID:    ownerID,
				SourceType: t,
				SourceID:   sourceID,
				TargetType: lk.Target.Type,
				TargetID:   lk.Target.ID,
				LinkReason: lk.Reason,
				Confidence: lk.Confidence,
			})
		} else {
			codes = append(codes, ReasonUnlinkedCompany)
		}
	}

	if _, ok, gerr := s.store.GetExtract(ctx, ownerID, t, sourceID, ExtractSummary); gerr == nil && !ok {
		codes = append(codes, ReasonMissingSummary)
	}

	return codes, links
}

// Trust marks an item as reviewed and trusted. Allowed from every state
// except ignored.
func (s *Service) Trust(ctx context.Context, ownerID string, t source.Type, sourceID string) (*WorkItem, error) {
	return s.transition(ctx, "trust", ownerID, t, sourceID, func(item *WorkItem, now time.Time) error {
		if item.Status == StatusIgnored {
			return ErrInvalidTransition
		}
		item.Status = StatusTrusted
		item.ReasonCodes = nil
		item.SnoozeUntil = time.Time{}
		item.ReviewedAt = now
		item.TrustedAt = now
		return nil
	})
}

// Snooze excludes an item from the queue until the given time.
func (s *Service) Snooze(ctx context.Context, ownerID string, t source.Type, sourceID string, until time.Time) (*WorkItem, error) {
	return s.transition(ctx, "snooze", ownerID, t, sourceID, func(item *WorkItem, now time.Time) error {
		if !until.After(now) {
			return fmt.Errorf("snooze time %s is not in the future", until.Format(time.RFC3339))
		}
		switch item.Status {
		case StatusNeedsReview, StatusEnrichedPending, StatusSnoozed:
			item.Status = StatusSnoozed
			item.SnoozeUntil = until
			return nil
		default:
			return ErrInvalidTransition
		}
	})
}

// Ignore permanently excludes an item from queue reads. Idempotent.
func (s *Service) Ignore(ctx context.Context, ownerID string, t source.Type, sourceID string) (*WorkItem, error) {
	return s.transition(ctx, "ignore", ownerID, t, sourceID, func(item *WorkItem, now time.Time) error {
		item.Status = StatusIgnored
		item.SnoozeUntil = time.Time{}
		item.ReviewedAt = now
		return nil
	})
}

// Reflag reopens a trusted item with explicit reason codes. This is the
// deliberate counterpart to the auto-trust promotion.
func (s *Service) Reflag(ctx context.Context, ownerID string, t source.Type, sourceID string, codes []string) (*WorkItem, error) {
	if len(codes) == 0 {
		return nil, fmt.Errorf("reflag requires at least one reason code")
	}
	return s.transition(ctx, "reflag", ownerID, t, sourceID, func(item *WorkItem, now time.Time) error {
		if item.Status != StatusTrusted {
			return ErrInvalidTransition
		}
		item.Status = StatusNeedsReview
		item.ReasonCodes = append([]string(nil), codes...)
		item.TrustedAt = time.Time{}
		return nil
	})
}

func (s *Service) transition(ctx context.Context, action, ownerID string, t source.Type, sourceID string, mutate func(*WorkItem, time.Time) error) (*WorkItem, error) {
	item, ok, err := s.store.GetWorkItem(ctx, ownerID, t, sourceID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}

	now := s.nowFn()
	if err := mutate(item, now); err != nil {
		return nil, err
	}
	item.UpdatedAt = now
	item.LastTouched = now

	if err := s.store.UpdateWorkItem(ctx, item); err != nil {
		return nil, err
	}
	s.metrics.ActionsTotal.WithLabelValues(action).Inc()
	return item, nil
}

// Queue is the read path: reconcile, score, select, and annotate the
// owner's reviewable items. Only store connectivity failures surface as
// errors; everything else degrades.
func (s *Service) Queue(ctx context.Context, ownerID string, opts QueueOptions) (*QueueResult, error) {
	start := time.Now()
	res, err := s.queue(ctx, ownerID, opts.normalized())

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.metrics.QueueReadsTotal.WithLabelValues(outcome).Inc()
	s.metrics.QueueReadDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	return res, err
}

func (s *Service) queue(ctx context.Context, ownerID string, opts QueueOptions) (*QueueResult, error) {
	now := s.nowFn()

	items, err := s.store.ListReviewable(ctx, ownerID, now)
	if err != nil {
		return nil, fmt.Errorf("list reviewable: %w", err)
	}

	// Link and extract lookups degrade: without them this cycle simply
	// prunes nothing, and the next read self-heals.
	linkSet, linksOK := s.loadLinks(ctx, ownerID)
	extracts, extractsOK := s.loadExtracts(ctx, ownerID)

	ids := make(map[source.Type][]string)
	for _, it := range items {
		ids[it.SourceType] = append(ids[it.SourceType], it.SourceID)
	}
	records, adapterErrs := s.sources.FetchAll(ctx, ownerID, ids)
	for t, aerr := range adapterErrs {
		s.metrics.AdapterFailuresTotal.WithLabelValues(string(t)).Inc()
		s.logger.Warn(ctx, "adapter batch fetch failed, falling back to default scoring",
			"source_type", t, "error", aerr)
	}

	res := &QueueResult{GeneratedAt: now}
	counts := insight.Counts{
		BySource: make(map[string]int),
		ByReason: make(map[string]int),
	}
	var scored []PriorityItem
	var upcoming []insight.Event

	for i := range items {
		it := items[i]
		rec, haveRec := records[it.SourceType][it.SourceID]
		key := LinkKey{SourceType: it.SourceType, SourceID: it.SourceID}

		st := recordState{
			linked:     (linksOK && linkSet.Has(it.SourceType, it.SourceID)) || (haveRec && rec.HasLink()),
			hasExtract: extractsOK && extracts[key] != "",
			hasRecord:  haveRec,
		}

		codes, changed := reconcileCodes(it.ReasonCodes, st)
		if len(codes) == 0 {
			// Fully resolved: never show it, promote it off the queue.
			res.AutoResolved++
			s.metrics.AutoResolvedTotal.Inc()
			s.enqueuePromote(it, now)
			continue
		}

		wake := it.SnoozeExpired(now)
		if changed || wake {
			s.enqueueReconcile(it, codes, wake, now)
		}
		it.ReasonCodes = codes
		if wake {
			it.Status = StatusNeedsReview
			it.SnoozeUntil = time.Time{}
		}

		dims := scoring.Score(it.SourceType, rec.Inputs, now)
		dims.Weight = scoring.WeightFromPriority(it.Priority)
		pi := PriorityItem{
			WorkItem: it,
			Title:    rec.Title,
			Snippet:  rec.Snippet,
			Extract:  extracts[key],
			Dims:     dims,
			Score:    scoring.CombineExtended(dims),
		}
		scored = append(scored, pi)

		counts.BySource[string(it.SourceType)]++
		for _, c := range codes {
			counts.ByReason[c]++
		}

		if it.SourceType == source.TypeEvent && haveRec && rec.Inputs.StartsAt.After(now) {
			upcoming = append(upcoming, insight.Event{Title: rec.Title, StartsAt: rec.Inputs.StartsAt})
		}

		if s.summarizer != nil && !st.hasExtract && haveRec && it.HasReason(ReasonMissingSummary) {
			s.enqueueSummarize(it, rec)
		}
	}

	res.Scored = len(scored)
	s.metrics.ItemsScored.Observe(float64(len(scored)))

	eligible := scored
	if opts.MaxEffort != "" {
		eligible = make([]PriorityItem, 0, len(scored))
		for _, pi := range scored {
			if pi.Dims.Effort.Within(opts.MaxEffort) {
				eligible = append(eligible, pi)
			} else {
				res.EffortFiltered++
			}
		}
	}

	sel := selection.Pick(eligible, selection.Options{
		MaxItems:     opts.MaxItems,
		MaxPerSource: opts.MaxPerSource,
		MinScore:     opts.MinScore,
		Diverse:      !opts.Plain,
	})
	res.Items = sel.Items
	res.BelowThreshold = sel.BelowThreshold
	res.DiversitySkips = sel.DiversitySkips
	counts.BelowThreshold = sel.BelowThreshold
	s.metrics.ItemsSelected.Observe(float64(len(sel.Items)))
	s.metrics.BelowThresholdTotal.Add(float64(sel.BelowThreshold))
	s.metrics.DiversitySkipsTotal.Add(float64(sel.DiversitySkips))

	insightItems := make([]insight.Item, len(scored))
	for i, pi := range scored {
		insightItems[i] = insight.Item{
			Source: string(pi.WorkItem.SourceType),
			Title:  pi.Title,
			Score:  pi.Score,
			Effort: string(pi.Dims.Effort),
		}
	}
	res.Insights, res.Batches = insight.Generate(insightItems, counts, upcoming, now)

	return res, nil
}

func (s *Service) loadLinks(ctx context.Context, ownerID string) (LinkSet, bool) {
	links, err := s.store.ListEntityLinks(ctx, ownerID)
	if err != nil {
		s.logger.Warn(ctx, "entity link lookup failed, skipping stale-code pruning this cycle", "error", err)
		return nil, false
	}
	return NewLinkSet(links), true
}

func (s *Service) loadExtracts(ctx context.Context, ownerID string) (map[LinkKey]string, bool) {
	extracts, err := s.store.ListExtracts(ctx, ownerID, ExtractSummary)
	if err != nil {
		s.logger.Warn(ctx, "extract lookup failed, skipping summary pruning this cycle", "error", err)
		return nil, false
	}
	byKey := make(map[LinkKey]string, len(extracts))
	for _, ex := range extracts {
		byKey[LinkKey{SourceType: ex.SourceType, SourceID: ex.SourceID}] = ex.Content
	}
	return byKey, true
}

// enqueuePromote persists the auto-trust transition for a fully-resolved
// item. The read already excluded it; a lost write self-heals next read.
func (s *Service) enqueuePromote(it WorkItem, now time.Time) {
	s.wb.Enqueue(writeback.Task{Name: "auto_trust", Do: func(ctx context.Context) error {
		fresh, ok, err := s.store.GetWorkItem(ctx, it.OwnerID, it.SourceType, it.SourceID)
		if err != nil || !ok {
			return err
		}
		if fresh.Status == StatusIgnored || fresh.Status == StatusTrusted {
			return nil // a user action or another read got here first
		}
		fresh.Status = StatusTrusted
		fresh.ReasonCodes = nil
		fresh.SnoozeUntil = time.Time{}
		fresh.TrustedAt = now
		fresh.UpdatedAt = now
		return s.store.UpdateWorkItem(ctx, fresh)
	}})
}

// enqueueReconcile persists pruned reason codes and/or a snooze expiry.
func (s *Service) enqueueReconcile(it WorkItem, codes []string, wake bool, now time.Time) {
	s.wb.Enqueue(writeback.Task{Name: "prune_codes", Do: func(ctx context.Context) error {
		fresh, ok, err := s.store.GetWorkItem(ctx, it.OwnerID, it.SourceType, it.SourceID)
		if err != nil || !ok {
			return err
		}
		if fresh.Status == StatusIgnored || fresh.Status == StatusTrusted {
			return nil
		}
		fresh.ReasonCodes = codes
		if wake && fresh.Status == StatusSnoozed {
			fresh.Status = StatusNeedsReview
			fresh.SnoozeUntil = time.Time{}
		}
		fresh.UpdatedAt = now
		return s.store.UpdateWorkItem(ctx, fresh)
	}})
}

func (s *Service) enqueueSummarize(it WorkItem, rec source.Record) {
	s.wb.Enqueue(writeback.Task{Name: "summarize", Do: func(ctx context.Context) error {
		content, err := s.summarizer.Summarize(ctx, rec.Title, rec.Snippet)
		if err != nil {
			return fmt.Errorf("summarize %s/%s: %w", it.SourceType, it.SourceID, err)
		}
		return s.store.UpsertExtract(ctx, &ItemExtract{
			OwnerID:    it.OwnerID,
			SourceType: it.SourceType,
			SourceID:   it.SourceID,
			Type:       ExtractSummary,
			Content:    content,
			CreatedAt:  time.Now(),
		})
	}})
}
