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

type InboundLogStore struct {
	db   *bun.DB
	repo repository.Repository[*inboundLogRecord]
}

func NewInboundLogStore(db *bun.DB) (*InboundLogStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*inboundLogRecord](db, inboundLogHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid inbound log repository wiring: %w", err)
		}
	}
	return &InboundLogStore{
		db:   db,
		repo: repo,
	}, nil
}

func (s *InboundLogStore) Create(ctx context.Context, log core.InboundLog) (core.InboundLog, error) {
	if s == nil || s.db == nil {
		return core.InboundLog{}, fmt.Errorf("sqlstore: inbound log store is not configured")
	}
	if strings.TrimSpace(log.ID) == "" {
		log.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if log.CreatedAt.IsZero() {
		log.CreatedAt = now
	}
	log.UpdatedAt = now

	record := inboundLogToRecord(log)
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return core.InboundLog{}, err
	}
	return inboundLogToDomain(record), nil
}

func (s *InboundLogStore) GetByID(ctx context.Context, id string) (core.InboundLog, error) {
	if s == nil || s.db == nil {
		return core.InboundLog{}, fmt.Errorf("sqlstore: inbound log store is not configured")
	}
	record := &inboundLogRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", strings.TrimSpace(id)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.InboundLog{}, fmt.Errorf("sqlstore: inbound log not found")
		}
		return core.InboundLog{}, err
	}
	return inboundLogToDomain(record), nil
}

func (s *InboundLogStore) MarkOutcome(ctx context.Context, id string, processed bool, recordID string, errMsg string, at time.Time) (core.InboundLog, error) {
	if s == nil || s.db == nil {
		return core.InboundLog{}, fmt.Errorf("sqlstore: inbound log store is not configured")
	}
	result, err := s.db.NewUpdate().
		Model((*inboundLogRecord)(nil)).
		Set("processed = ?", processed).
		Set("record_id = ?", strings.TrimSpace(recordID)).
		Set("error = ?", strings.TrimSpace(errMsg)).
		Set("updated_at = ?", at.UTC()).
		Where("id = ?", strings.TrimSpace(id)).
		Exec(ctx)
	if err != nil {
		return core.InboundLog{}, err
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return core.InboundLog{}, fmt.Errorf("sqlstore: inbound log not found")
	}
	return s.GetByID(ctx, id)
}

func (s *InboundLogStore) ListByToken(ctx context.Context, tokenID string, limit int) ([]core.InboundLog, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: inbound log store is not configured")
	}
	records := []*inboundLogRecord{}
	query := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.token_id = ?", strings.TrimSpace(tokenID)).
		Order("created_at DESC", "id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]core.InboundLog, 0, len(records))
	for _, record := range records {
		out = append(out, inboundLogToDomain(record))
	}
	return out, nil
}

func inboundLogToRecord(log core.InboundLog) *inboundLogRecord {
	return &inboundLogRecord{
		ID:        log.ID,
		TokenID:   strings.TrimSpace(log.TokenID),
		OwnerID:   strings.TrimSpace(log.OwnerID),
		Payload:   append([]byte(nil), log.Payload...),
		Processed: log.Processed,
		Error:     log.Error,
		RecordID:  log.RecordID,
		CreatedAt: log.CreatedAt,
		UpdatedAt: log.UpdatedAt,
	}
}

func inboundLogToDomain(record *inboundLogRecord) core.InboundLog {
	if record == nil {
		return core.InboundLog{}
	}
	return core.InboundLog{
		ID:        record.ID,
		TokenID:   record.TokenID,
		OwnerID:   record.OwnerID,
		Payload:   append([]byte(nil), record.Payload...),
		Processed: record.Processed,
		Error:     record.Error,
		RecordID:  record.RecordID,
		CreatedAt: record.CreatedAt,
		UpdatedAt: record.UpdatedAt,
	}
}

var _ core.InboundLogStore = (*InboundLogStore)(nil)
