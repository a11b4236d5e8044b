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

type EndpointStore struct {
	db   *bun.DB
	repo repository.Repository[*endpointRecord]
}

func NewEndpointStore(db *bun.DB) (*EndpointStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*endpointRecord](db, endpointHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid endpoint repository wiring: %w", err)
		}
	}
	return &EndpointStore{
		db:   db,
		repo: repo,
	}, nil
}

func (s *EndpointStore) Create(ctx context.Context, endpoint core.Endpoint) (core.Endpoint, error) {
	if s == nil || s.db == nil {
		return core.Endpoint{}, fmt.Errorf("sqlstore: endpoint store is not configured")
	}
	if err := endpoint.Validate(); err != nil {
		return core.Endpoint{}, err
	}
	if strings.TrimSpace(endpoint.ID) == "" {
		endpoint.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if endpoint.CreatedAt.IsZero() {
		endpoint.CreatedAt = now
	}
	endpoint.UpdatedAt = now

	record := endpointToRecord(endpoint)
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return core.Endpoint{}, err
	}
	return endpointToDomain(record), nil
}

func (s *EndpointStore) Update(ctx context.Context, endpoint core.Endpoint) (core.Endpoint, error) {
	if s == nil || s.db == nil {
		return core.Endpoint{}, fmt.Errorf("sqlstore: endpoint store is not configured")
	}
	if err := endpoint.Validate(); err != nil {
		return core.Endpoint{}, err
	}
	endpoint.UpdatedAt = time.Now().UTC()

	record := endpointToRecord(endpoint)
	result, err := s.db.NewUpdate().
		Model(record).
		WherePK().
		Exec(ctx)
	if err != nil {
		return core.Endpoint{}, err
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return core.Endpoint{}, core.ErrEndpointNotFound
	}
	return endpointToDomain(record), nil
}

func (s *EndpointStore) GetByID(ctx context.Context, id string) (core.Endpoint, error) {
	if s == nil || s.db == nil {
		return core.Endpoint{}, fmt.Errorf("sqlstore: endpoint store is not configured")
	}
	record := &endpointRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", strings.TrimSpace(id)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Endpoint{}, core.ErrEndpointNotFound
		}
		return core.Endpoint{}, err
	}
	return endpointToDomain(record), nil
}

func (s *EndpointStore) ListByOwner(ctx context.Context, ownerID string) ([]core.Endpoint, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: endpoint store is not configured")
	}
	records := []*endpointRecord{}
	err := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.owner_id = ?", strings.TrimSpace(ownerID)).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]core.Endpoint, 0, len(records))
	for _, record := range records {
		out = append(out, endpointToDomain(record))
	}
	return out, nil
}

// ListActiveByEvent filters subscriptions in process; the events column is a
// JSON document and membership queries over it are not portable across the
// supported dialects.
func (s *EndpointStore) ListActiveByEvent(ctx context.Context, ownerID string, eventType core.EventType) ([]core.Endpoint, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: endpoint store is not configured")
	}
	records := []*endpointRecord{}
	err := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.owner_id = ?", strings.TrimSpace(ownerID)).
		Where("?TableAlias.active = ?", true).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]core.Endpoint, 0, len(records))
	for _, record := range records {
		endpoint := endpointToDomain(record)
		if endpoint.SubscribedTo(eventType) {
			out = append(out, endpoint)
		}
	}
	return out, nil
}

func (s *EndpointStore) RotateSecret(ctx context.Context, id string, secret string) (core.Endpoint, error) {
	if s == nil || s.db == nil {
		return core.Endpoint{}, fmt.Errorf("sqlstore: endpoint store is not configured")
	}
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return core.Endpoint{}, fmt.Errorf("sqlstore: endpoint secret is required")
	}
	now := time.Now().UTC()
	result, err := s.db.NewUpdate().
		Model((*endpointRecord)(nil)).
		Set("secret = ?", secret).
		Set("updated_at = ?", now).
		Where("id = ?", strings.TrimSpace(id)).
		Exec(ctx)
	if err != nil {
		return core.Endpoint{}, err
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return core.Endpoint{}, core.ErrEndpointNotFound
	}
	return s.GetByID(ctx, id)
}

func (s *EndpointStore) SetActive(ctx context.Context, id string, active bool) (core.Endpoint, error) {
	if s == nil || s.db == nil {
		return core.Endpoint{}, fmt.Errorf("sqlstore: endpoint store is not configured")
	}
	now := time.Now().UTC()
	result, err := s.db.NewUpdate().
		Model((*endpointRecord)(nil)).
		Set("active = ?", active).
		Set("updated_at = ?", now).
		Where("id = ?", strings.TrimSpace(id)).
		Exec(ctx)
	if err != nil {
		return core.Endpoint{}, err
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return core.Endpoint{}, core.ErrEndpointNotFound
	}
	return s.GetByID(ctx, id)
}

func (s *EndpointStore) Delete(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: endpoint store is not configured")
	}
	result, err := s.db.NewDelete().
		Model((*endpointRecord)(nil)).
		Where("id = ?", strings.TrimSpace(id)).
		Exec(ctx)
	if err != nil {
		return err
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return core.ErrEndpointNotFound
	}
	return nil
}

func endpointToRecord(endpoint core.Endpoint) *endpointRecord {
	events := make([]string, 0, len(endpoint.Events))
	for _, event := range endpoint.Events {
		events = append(events, string(event))
	}
	record := &endpointRecord{
		ID:        endpoint.ID,
		OwnerID:   strings.TrimSpace(endpoint.OwnerID),
		URL:       strings.TrimSpace(endpoint.URL),
		Events:    events,
		Secret:    endpoint.Secret,
		Active:    endpoint.Active,
		CreatedAt: endpoint.CreatedAt,
		UpdatedAt: endpoint.UpdatedAt,
	}
	if len(endpoint.CustomHeaders) > 0 {
		headers := make(map[string]string, len(endpoint.CustomHeaders))
		for key, value := range endpoint.CustomHeaders {
			headers[key] = value
		}
		record.CustomHeaders = headers
	}
	return record
}

func endpointToDomain(record *endpointRecord) core.Endpoint {
	if record == nil {
		return core.Endpoint{}
	}
	events := make([]core.EventType, 0, len(record.Events))
	for _, event := range record.Events {
		events = append(events, core.EventType(event))
	}
	endpoint := core.Endpoint{
		ID:        record.ID,
		OwnerID:   record.OwnerID,
		URL:       record.URL,
		Events:    events,
		Secret:    record.Secret,
		Active:    record.Active,
		CreatedAt: record.CreatedAt,
		UpdatedAt: record.UpdatedAt,
	}
	if len(record.CustomHeaders) > 0 {
		headers := make(map[string]string, len(record.CustomHeaders))
		for key, value := range record.CustomHeaders {
			headers[key] = value
		}
		endpoint.CustomHeaders = headers
	}
	return endpoint
}

var _ core.EndpointStore = (*EndpointStore)(nil)
