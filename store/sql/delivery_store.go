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

type DeliveryStore struct {
	db   *bun.DB
	repo repository.Repository[*deliveryAttemptRecord]
}

func NewDeliveryStore(db *bun.DB) (*DeliveryStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*deliveryAttemptRecord](db, deliveryAttemptHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid delivery repository wiring: %w", err)
		}
	}
	return &DeliveryStore{
		db:   db,
		repo: repo,
	}, nil
}

func (s *DeliveryStore) Create(ctx context.Context, attempt core.DeliveryAttempt) (core.DeliveryAttempt, error) {
	if s == nil || s.db == nil {
		return core.DeliveryAttempt{}, fmt.Errorf("sqlstore: delivery store is not configured")
	}
	if strings.TrimSpace(attempt.ID) == "" {
		attempt.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = now
	}
	attempt.UpdatedAt = now
	if attempt.Status == "" {
		attempt.Status = core.DeliveryStatusPending
	}

	record := deliveryAttemptToRecord(attempt)
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return core.DeliveryAttempt{}, err
	}
	return deliveryAttemptToDomain(record), nil
}

func (s *DeliveryStore) Update(ctx context.Context, attempt core.DeliveryAttempt) (core.DeliveryAttempt, error) {
	if s == nil || s.db == nil {
		return core.DeliveryAttempt{}, fmt.Errorf("sqlstore: delivery store is not configured")
	}
	attempt.UpdatedAt = time.Now().UTC()

	record := deliveryAttemptToRecord(attempt)
	result, err := s.db.NewUpdate().
		Model(record).
		WherePK().
		Exec(ctx)
	if err != nil {
		return core.DeliveryAttempt{}, err
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return core.DeliveryAttempt{}, core.ErrDeliveryNotFound
	}
	return deliveryAttemptToDomain(record), nil
}

func (s *DeliveryStore) GetByID(ctx context.Context, id string) (core.DeliveryAttempt, error) {
	if s == nil || s.db == nil {
		return core.DeliveryAttempt{}, fmt.Errorf("sqlstore: delivery store is not configured")
	}
	record := &deliveryAttemptRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", strings.TrimSpace(id)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.DeliveryAttempt{}, core.ErrDeliveryNotFound
		}
		return core.DeliveryAttempt{}, err
	}
	return deliveryAttemptToDomain(record), nil
}

func (s *DeliveryStore) ListByEndpoint(ctx context.Context, endpointID string, limit int) ([]core.DeliveryAttempt, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: delivery store is not configured")
	}
	return s.list(ctx, "?TableAlias.endpoint_id = ?", strings.TrimSpace(endpointID), limit)
}

func (s *DeliveryStore) ListByOwner(ctx context.Context, ownerID string, limit int) ([]core.DeliveryAttempt, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: delivery store is not configured")
	}
	return s.list(ctx, "?TableAlias.owner_id = ?", strings.TrimSpace(ownerID), limit)
}

func (s *DeliveryStore) list(ctx context.Context, where string, value string, limit int) ([]core.DeliveryAttempt, error) {
	records := []*deliveryAttemptRecord{}
	query := s.db.NewSelect().
		Model(&records).
		Where(where, value).
		Order("created_at DESC", "id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]core.DeliveryAttempt, 0, len(records))
	for _, record := range records {
		out = append(out, deliveryAttemptToDomain(record))
	}
	return out, nil
}

func deliveryAttemptToRecord(attempt core.DeliveryAttempt) *deliveryAttemptRecord {
	record := &deliveryAttemptRecord{
		ID:             attempt.ID,
		EndpointID:     strings.TrimSpace(attempt.EndpointID),
		OwnerID:        strings.TrimSpace(attempt.OwnerID),
		EventType:      string(attempt.EventType),
		Payload:        append([]byte(nil), attempt.Payload...),
		Status:         string(attempt.Status),
		RetryCount:     attempt.RetryCount,
		ResponseStatus: attempt.ResponseStatus,
		LatencyMs:      attempt.LatencyMs,
		LastError:      attempt.LastError,
		CreatedAt:      attempt.CreatedAt,
		UpdatedAt:      attempt.UpdatedAt,
	}
	if attempt.NextAttemptAt != nil {
		next := attempt.NextAttemptAt.UTC()
		record.NextAttemptAt = &next
	}
	return record
}

func deliveryAttemptToDomain(record *deliveryAttemptRecord) core.DeliveryAttempt {
	if record == nil {
		return core.DeliveryAttempt{}
	}
	attempt := core.DeliveryAttempt{
		ID:             record.ID,
		EndpointID:     record.EndpointID,
		OwnerID:        record.OwnerID,
		EventType:      core.EventType(record.EventType),
		Payload:        append([]byte(nil), record.Payload...),
		Status:         core.DeliveryStatus(record.Status),
		RetryCount:     record.RetryCount,
		ResponseStatus: record.ResponseStatus,
		LatencyMs:      record.LatencyMs,
		LastError:      record.LastError,
		CreatedAt:      record.CreatedAt,
		UpdatedAt:      record.UpdatedAt,
	}
	if record.NextAttemptAt != nil {
		next := *record.NextAttemptAt
		attempt.NextAttemptAt = &next
	}
	return attempt
}

var _ core.DeliveryStore = (*DeliveryStore)(nil)
