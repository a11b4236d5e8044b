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

type TokenStore struct {
	db   *bun.DB
	repo repository.Repository[*inboundTokenRecord]
}

func NewTokenStore(db *bun.DB) (*TokenStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*inboundTokenRecord](db, inboundTokenHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid inbound token repository wiring: %w", err)
		}
	}
	return &TokenStore{
		db:   db,
		repo: repo,
	}, nil
}

func (s *TokenStore) Create(ctx context.Context, token core.InboundToken) (core.InboundToken, error) {
	if s == nil || s.db == nil {
		return core.InboundToken{}, fmt.Errorf("sqlstore: token store is not configured")
	}
	if strings.TrimSpace(token.Token) == "" {
		return core.InboundToken{}, fmt.Errorf("sqlstore: inbound token value is required")
	}
	if err := token.ActionType.Validate(); err != nil {
		return core.InboundToken{}, err
	}
	if strings.TrimSpace(token.ID) == "" {
		token.ID = uuid.NewString()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}

	record := inboundTokenToRecord(token)
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return core.InboundToken{}, fmt.Errorf("sqlstore: inbound token value is already in use")
		}
		return core.InboundToken{}, err
	}
	return inboundTokenToDomain(record), nil
}

func (s *TokenStore) GetByID(ctx context.Context, id string) (core.InboundToken, error) {
	if s == nil || s.db == nil {
		return core.InboundToken{}, fmt.Errorf("sqlstore: token store is not configured")
	}
	record := &inboundTokenRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", strings.TrimSpace(id)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.InboundToken{}, core.ErrTokenNotFound
		}
		return core.InboundToken{}, err
	}
	return inboundTokenToDomain(record), nil
}

func (s *TokenStore) GetByToken(ctx context.Context, provider string, token string) (core.InboundToken, error) {
	if s == nil || s.db == nil {
		return core.InboundToken{}, fmt.Errorf("sqlstore: token store is not configured")
	}
	record := &inboundTokenRecord{}
	query := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.token = ?", strings.TrimSpace(token)).
		Limit(1)
	if provider = strings.TrimSpace(provider); provider != "" {
		query = query.Where("?TableAlias.provider = ?", provider)
	}
	if err := query.Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.InboundToken{}, core.ErrTokenNotFound
		}
		return core.InboundToken{}, err
	}
	return inboundTokenToDomain(record), nil
}

func (s *TokenStore) ListByOwner(ctx context.Context, ownerID string) ([]core.InboundToken, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: token store is not configured")
	}
	records := []*inboundTokenRecord{}
	err := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.owner_id = ?", strings.TrimSpace(ownerID)).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]core.InboundToken, 0, len(records))
	for _, record := range records {
		out = append(out, inboundTokenToDomain(record))
	}
	return out, nil
}

// Revoke deactivates the token and stamps revoked_at once; a second revoke
// keeps the original timestamp.
func (s *TokenStore) Revoke(ctx context.Context, id string, at time.Time) (core.InboundToken, error) {
	if s == nil || s.db == nil {
		return core.InboundToken{}, fmt.Errorf("sqlstore: token store is not configured")
	}
	result, err := s.db.NewUpdate().
		Model((*inboundTokenRecord)(nil)).
		Set("active = ?", false).
		Set("revoked_at = COALESCE(revoked_at, ?)", at.UTC()).
		Where("id = ?", strings.TrimSpace(id)).
		Exec(ctx)
	if err != nil {
		return core.InboundToken{}, err
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return core.InboundToken{}, core.ErrTokenNotFound
	}
	return s.GetByID(ctx, id)
}

func inboundTokenToRecord(token core.InboundToken) *inboundTokenRecord {
	record := &inboundTokenRecord{
		ID:         token.ID,
		OwnerID:    strings.TrimSpace(token.OwnerID),
		Provider:   strings.TrimSpace(token.Provider),
		Token:      strings.TrimSpace(token.Token),
		ActionType: string(token.ActionType),
		Active:     token.Active,
		CreatedAt:  token.CreatedAt,
	}
	if len(token.FieldMapping) > 0 {
		mapping := make(map[string]string, len(token.FieldMapping))
		for key, value := range token.FieldMapping {
			mapping[key] = value
		}
		record.FieldMapping = mapping
	}
	if token.RevokedAt != nil {
		revoked := token.RevokedAt.UTC()
		record.RevokedAt = &revoked
	}
	return record
}

func inboundTokenToDomain(record *inboundTokenRecord) core.InboundToken {
	if record == nil {
		return core.InboundToken{}
	}
	token := core.InboundToken{
		ID:         record.ID,
		OwnerID:    record.OwnerID,
		Provider:   record.Provider,
		Token:      record.Token,
		ActionType: core.ActionType(record.ActionType),
		Active:     record.Active,
		CreatedAt:  record.CreatedAt,
	}
	if len(record.FieldMapping) > 0 {
		mapping := make(map[string]string, len(record.FieldMapping))
		for key, value := range record.FieldMapping {
			mapping[key] = value
		}
		token.FieldMapping = mapping
	}
	if record.RevokedAt != nil {
		revoked := *record.RevokedAt
		token.RevokedAt = &revoked
	}
	return token
}

var _ core.TokenStore = (*TokenStore)(nil)
