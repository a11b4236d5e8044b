package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-webhooks/core"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type DeadLetterStore struct {
	db   *bun.DB
	repo repository.Repository[*deadLetterRecord]
}

func NewDeadLetterStore(db *bun.DB) (*DeadLetterStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*deadLetterRecord](db, deadLetterHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid dead letter repository wiring: %w", err)
		}
	}
	return &DeadLetterStore{
		db:   db,
		repo: repo,
	}, nil
}

// Create relies on the unique attempt_id constraint for idempotency: an
// exhausted attempt dead-letters exactly once, and re-creating returns the
// existing entry.
func (s *DeadLetterStore) Create(ctx context.Context, entry core.DeadLetterEntry) (core.DeadLetterEntry, error) {
	if s == nil || s.db == nil {
		return core.DeadLetterEntry{}, fmt.Errorf("sqlstore: dead letter store is not configured")
	}
	attemptID := strings.TrimSpace(entry.AttemptID)
	if attemptID == "" {
		return core.DeadLetterEntry{}, fmt.Errorf("sqlstore: dead letter attempt id is required")
	}
	if strings.TrimSpace(entry.ID) == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	record := deadLetterToRecord(entry)
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return s.GetByAttempt(ctx, attemptID)
		}
		return core.DeadLetterEntry{}, err
	}
	return deadLetterToDomain(record), nil
}

func (s *DeadLetterStore) GetByID(ctx context.Context, id string) (core.DeadLetterEntry, error) {
	if s == nil || s.db == nil {
		return core.DeadLetterEntry{}, fmt.Errorf("sqlstore: dead letter store is not configured")
	}
	return s.get(ctx, "?TableAlias.id = ?", strings.TrimSpace(id))
}

func (s *DeadLetterStore) GetByAttempt(ctx context.Context, attemptID string) (core.DeadLetterEntry, error) {
	if s == nil || s.db == nil {
		return core.DeadLetterEntry{}, fmt.Errorf("sqlstore: dead letter store is not configured")
	}
	return s.get(ctx, "?TableAlias.attempt_id = ?", strings.TrimSpace(attemptID))
}

func (s *DeadLetterStore) get(ctx context.Context, where string, value string) (core.DeadLetterEntry, error) {
	record := &deadLetterRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where(where, value).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.DeadLetterEntry{}, core.ErrDeadLetterNotFound
		}
		return core.DeadLetterEntry{}, err
	}
	return deadLetterToDomain(record), nil
}

func (s *DeadLetterStore) List(ctx context.Context, ownerID string, includeResolved bool, limit int) ([]core.DeadLetterEntry, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: dead letter store is not configured")
	}
	records := []*deadLetterRecord{}
	query := s.db.NewSelect().
		Model(&records).
		Order("created_at DESC", "id ASC")
	if ownerID = strings.TrimSpace(ownerID); ownerID != "" {
		query = query.Where("?TableAlias.owner_id = ?", ownerID)
	}
	if !includeResolved {
		query = query.Where("?TableAlias.resolved = ?", false)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]core.DeadLetterEntry, 0, len(records))
	for _, record := range records {
		out = append(out, deadLetterToDomain(record))
	}
	return out, nil
}

func (s *DeadLetterStore) Resolve(ctx context.Context, id string, note string, at time.Time) (core.DeadLetterEntry, error) {
	if s == nil || s.db == nil {
		return core.DeadLetterEntry{}, fmt.Errorf("sqlstore: dead letter store is not configured")
	}
	result, err := s.db.NewUpdate().
		Model((*deadLetterRecord)(nil)).
		Set("resolved = ?", true).
		Set("note = ?", strings.TrimSpace(note)).
		Set("resolved_at = ?", at.UTC()).
		Where("id = ?", strings.TrimSpace(id)).
		Exec(ctx)
	if err != nil {
		return core.DeadLetterEntry{}, err
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return core.DeadLetterEntry{}, core.ErrDeadLetterNotFound
	}
	return s.GetByID(ctx, id)
}

func deadLetterToRecord(entry core.DeadLetterEntry) *deadLetterRecord {
	record := &deadLetterRecord{
		ID:         entry.ID,
		AttemptID:  strings.TrimSpace(entry.AttemptID),
		EndpointID: strings.TrimSpace(entry.EndpointID),
		OwnerID:    strings.TrimSpace(entry.OwnerID),
		EventType:  string(entry.EventType),
		Payload:    append([]byte(nil), entry.Payload...),
		Error:      entry.Error,
		Resolved:   entry.Resolved,
		Note:       entry.Note,
		CreatedAt:  entry.CreatedAt,
	}
	if entry.ResolvedAt != nil {
		resolved := entry.ResolvedAt.UTC()
		record.ResolvedAt = &resolved
	}
	return record
}

func deadLetterToDomain(record *deadLetterRecord) core.DeadLetterEntry {
	if record == nil {
		return core.DeadLetterEntry{}
	}
	entry := core.DeadLetterEntry{
		ID:         record.ID,
		AttemptID:  record.AttemptID,
		EndpointID: record.EndpointID,
		OwnerID:    record.OwnerID,
		EventType:  core.EventType(record.EventType),
		Payload:    append([]byte(nil), record.Payload...),
		Error:      record.Error,
		Resolved:   record.Resolved,
		Note:       record.Note,
		CreatedAt:  record.CreatedAt,
	}
	if record.ResolvedAt != nil {
		resolved := *record.ResolvedAt
		entry.ResolvedAt = &resolved
	}
	return entry
}

func isUniqueViolation(err error) bool {
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}

var _ core.DeadLetterStore = (*DeadLetterStore)(nil)
