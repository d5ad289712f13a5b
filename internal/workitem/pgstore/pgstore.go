// Package pgstore provides a PostgreSQL implementation of workitem.Store.
package pgstore

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/focus/internal/source"
	"github.com/linnemanlabs/focus/internal/workitem"
)

var tracer = otel.Tracer("github.com/linnemanlabs/focus/internal/workitem/pgstore")

//go:embed schema.sql
var schema string

const uniqueViolation = "23505"

// Store persists work items in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema on the given pool and returns a ready Store. The
// caller owns the pool's lifecycle.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

const itemColumns = `id, owner_id, source_type, source_id, status, reason_codes, priority,
	snooze_until, created_at, updated_at, last_touched_at, reviewed_at, trusted_at`

// GetWorkItem retrieves a work item by its unique key.
func (s *Store) GetWorkItem(ctx context.Context, ownerID string, t source.Type, sourceID string) (*workitem.WorkItem, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.GetWorkItem", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + itemColumns + ` FROM work_items
		WHERE owner_id = $1 AND source_type = $2 AND source_id = $3`
	item, err := scanItemRow(s.pool.QueryRow(ctx, query, ownerID, string(t), sourceID))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	if item == nil {
		return nil, false, nil
	}
	return item, true, nil
}

// InsertWorkItem inserts a new work item. Returns workitem.ErrDuplicate when
// the (owner, source type, source ID) key is already taken.
func (s *Store) InsertWorkItem(ctx context.Context, item *workitem.WorkItem) error {
	ctx, span := tracer.Start(ctx, "pgstore.InsertWorkItem", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "INSERT"),
	))
	defer span.End()

	query := `INSERT INTO work_items (` + itemColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`
	_, err := s.pool.Exec(ctx, query,
		item.ID, item.OwnerID, string(item.SourceType), item.SourceID, string(item.Status),
		codesOrEmpty(item.ReasonCodes), item.Priority,
		nullableTime(item.SnoozeUntil), item.CreatedAt, item.UpdatedAt,
		nullableTime(item.LastTouched), nullableTime(item.ReviewedAt), nullableTime(item.TrustedAt),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return workitem.ErrDuplicate
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("insert work item: %w", err)
	}
	return nil
}

// UpdateWorkItem replaces an existing work item's mutable fields. Returns
// workitem.ErrNotFound when no row matches the unique key.
func (s *Store) UpdateWorkItem(ctx context.Context, item *workitem.WorkItem) error {
	ctx, span := tracer.Start(ctx, "pgstore.UpdateWorkItem", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPDATE"),
	))
	defer span.End()

	query := `UPDATE work_items SET
		status          = $4,
		reason_codes    = $5,
		priority        = $6,
		snooze_until    = $7,
		updated_at      = $8,
		last_touched_at = $9,
		reviewed_at     = $10,
		trusted_at      = $11
	WHERE owner_id = $1 AND source_type = $2 AND source_id = $3`
	tag, err := s.pool.Exec(ctx, query,
		item.OwnerID, string(item.SourceType), item.SourceID,
		string(item.Status), codesOrEmpty(item.ReasonCodes), item.Priority,
		nullableTime(item.SnoozeUntil), item.UpdatedAt,
		nullableTime(item.LastTouched), nullableTime(item.ReviewedAt), nullableTime(item.TrustedAt),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("update work item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return workitem.ErrNotFound
	}
	return nil
}

// ListReviewable returns the owner's items eligible for a queue read:
// needs_review, enriched_pending, and snoozed items whose snooze has elapsed.
func (s *Store) ListReviewable(ctx context.Context, ownerID string, now time.Time) ([]workitem.WorkItem, error) {
	ctx, span := tracer.Start(ctx, "pgstore.ListReviewable", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + itemColumns + ` FROM work_items
		WHERE owner_id = $1
		  AND (status IN ('needs_review', 'enriched_pending')
		       OR (status = 'snoozed' AND snooze_until <= $2))
		ORDER BY created_at, id`
	rows, err := s.pool.Query(ctx, query, ownerID, now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("query reviewable: %w", err)
	}
	defer rows.Close()

	var out []workitem.WorkItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		out = append(out, *item)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("iterate reviewable: %w", err)
	}
	return out, nil
}

// UpsertEntityLink inserts or refreshes a link between a source record and a
// directory entity.
func (s *Store) UpsertEntityLink(ctx context.Context, link *workitem.EntityLink) error {
	ctx, span := tracer.Start(ctx, "pgstore.UpsertEntityLink", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPSERT"),
	))
	defer span.End()

	query := `INSERT INTO entity_links (
		owner_id, source_type, source_id, target_type, target_id, link_reason, confidence, created_at
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	ON CONFLICT (owner_id, source_type, source_id, target_type, target_id) DO UPDATE SET
		link_reason = EXCLUDED.link_reason,
		confidence  = EXCLUDED.confidence`
	_, err := s.pool.Exec(ctx, query,
		link.OwnerID, string(link.SourceType), link.SourceID,
		link.TargetType, link.TargetID, link.LinkReason, link.Confidence, link.CreatedAt,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("upsert entity link: %w", err)
	}
	return nil
}

// ListEntityLinks returns all links for an owner.
func (s *Store) ListEntityLinks(ctx context.Context, ownerID string) ([]workitem.EntityLink, error) {
	ctx, span := tracer.Start(ctx, "pgstore.ListEntityLinks", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	rows, err := s.pool.Query(ctx,
		`SELECT owner_id, source_type, source_id, target_type, target_id, link_reason, confidence, created_at
		 FROM entity_links WHERE owner_id = $1 ORDER BY source_type, source_id, target_id`,
		ownerID,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("query entity links: %w", err)
	}
	defer rows.Close()

	var out []workitem.EntityLink
	for rows.Next() {
		var l workitem.EntityLink
		var sourceType string
		if err := rows.Scan(&l.OwnerID, &sourceType, &l.SourceID, &l.TargetType, &l.TargetID,
			&l.LinkReason, &l.Confidence, &l.CreatedAt); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("scan entity link: %w", err)
		}
		l.SourceType = source.Type(sourceType)
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("iterate entity links: %w", err)
	}
	return out, nil
}

// GetExtract retrieves one cached extract for a source record.
func (s *Store) GetExtract(ctx context.Context, ownerID string, t source.Type, sourceID, extractType string) (*workitem.ItemExtract, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.GetExtract", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	var ex workitem.ItemExtract
	var sourceType string
	err := s.pool.QueryRow(ctx,
		`SELECT owner_id, source_type, source_id, extract_type, content, created_at
		 FROM item_extracts
		 WHERE owner_id = $1 AND source_type = $2 AND source_id = $3 AND extract_type = $4`,
		ownerID, string(t), sourceID, extractType,
	).Scan(&ex.OwnerID, &sourceType, &ex.SourceID, &ex.Type, &ex.Content, &ex.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, fmt.Errorf("scan extract: %w", err)
	}
	ex.SourceType = source.Type(sourceType)
	return &ex, true, nil
}

// UpsertExtract inserts or refreshes a cached extract.
func (s *Store) UpsertExtract(ctx context.Context, ex *workitem.ItemExtract) error {
	ctx, span := tracer.Start(ctx, "pgstore.UpsertExtract", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPSERT"),
	))
	defer span.End()

	query := `INSERT INTO item_extracts (
		owner_id, source_type, source_id, extract_type, content, created_at
	) VALUES ($1,$2,$3,$4,$5,$6)
	ON CONFLICT (owner_id, source_type, source_id, extract_type) DO UPDATE SET
		content    = EXCLUDED.content,
		created_at = EXCLUDED.created_at`
	_, err := s.pool.Exec(ctx, query,
		ex.OwnerID, string(ex.SourceType), ex.SourceID, ex.Type, ex.Content, ex.CreatedAt,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("upsert extract: %w", err)
	}
	return nil
}

// ListExtracts returns all of an owner's extracts of one type.
func (s *Store) ListExtracts(ctx context.Context, ownerID, extractType string) ([]workitem.ItemExtract, error) {
	ctx, span := tracer.Start(ctx, "pgstore.ListExtracts", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	rows, err := s.pool.Query(ctx,
		`SELECT owner_id, source_type, source_id, extract_type, content, created_at
		 FROM item_extracts WHERE owner_id = $1 AND extract_type = $2
		 ORDER BY source_type, source_id`,
		ownerID, extractType,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("query extracts: %w", err)
	}
	defer rows.Close()

	var out []workitem.ItemExtract
	for rows.Next() {
		var ex workitem.ItemExtract
		var sourceType string
		if err := rows.Scan(&ex.OwnerID, &sourceType, &ex.SourceID, &ex.Type, &ex.Content, &ex.CreatedAt); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("scan extract: %w", err)
		}
		ex.SourceType = source.Type(sourceType)
		out = append(out, ex)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("iterate extracts: %w", err)
	}
	return out, nil
}

// scanItemRow scans a single work-item row. Returns (nil, nil) when no row
// is found.
func scanItemRow(row pgx.Row) (*workitem.WorkItem, error) {
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return item, nil
}

func scanItem(row pgx.Row) (*workitem.WorkItem, error) {
	var (
		item        workitem.WorkItem
		sourceType  string
		status      string
		snoozeUntil *time.Time
		lastTouched *time.Time
		reviewedAt  *time.Time
		trustedAt   *time.Time
	)
	err := row.Scan(
		&item.ID, &item.OwnerID, &sourceType, &item.SourceID, &status,
		&item.ReasonCodes, &item.Priority,
		&snoozeUntil, &item.CreatedAt, &item.UpdatedAt,
		&lastTouched, &reviewedAt, &trustedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan work item: %w", err)
	}

	item.SourceType = source.Type(sourceType)
	item.Status = workitem.Status(status)
	item.SnoozeUntil = timeOrZero(snoozeUntil)
	item.LastTouched = timeOrZero(lastTouched)
	item.ReviewedAt = timeOrZero(reviewedAt)
	item.TrustedAt = timeOrZero(trustedAt)
	if len(item.ReasonCodes) == 0 {
		item.ReasonCodes = nil
	}
	return &item, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func codesOrEmpty(codes []string) []string {
	if codes == nil {
		return []string{}
	}
	return codes
}
