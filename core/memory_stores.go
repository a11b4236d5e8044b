package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory-backed stores cover tests and single-process embedding. Durable
// implementations live in store/sql.

type MemoryEndpointStore struct {
	mu      sync.RWMutex
	entries map[string]Endpoint
}

func NewMemoryEndpointStore() *MemoryEndpointStore {
	return &MemoryEndpointStore{entries: map[string]Endpoint{}}
}

func (s *MemoryEndpointStore) Create(_ context.Context, endpoint Endpoint) (Endpoint, error) {
	if s == nil {
		return Endpoint{}, fmt.Errorf("core: endpoint store is not configured")
	}
	if err := endpoint.Validate(); err != nil {
		return Endpoint{}, err
	}
	if strings.TrimSpace(endpoint.ID) == "" {
		endpoint.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if endpoint.CreatedAt.IsZero() {
		endpoint.CreatedAt = now
	}
	endpoint.UpdatedAt = now

	s.mu.Lock()
	s.entries[endpoint.ID] = cloneEndpoint(endpoint)
	s.mu.Unlock()
	return endpoint, nil
}

func (s *MemoryEndpointStore) Update(_ context.Context, endpoint Endpoint) (Endpoint, error) {
	if s == nil {
		return Endpoint{}, fmt.Errorf("core: endpoint store is not configured")
	}
	if err := endpoint.Validate(); err != nil {
		return Endpoint{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[endpoint.ID]; !ok {
		return Endpoint{}, ErrEndpointNotFound
	}
	endpoint.UpdatedAt = time.Now().UTC()
	s.entries[endpoint.ID] = cloneEndpoint(endpoint)
	return endpoint, nil
}

func (s *MemoryEndpointStore) GetByID(_ context.Context, id string) (Endpoint, error) {
	if s == nil {
		return Endpoint{}, fmt.Errorf("core: endpoint store is not configured")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	endpoint, ok := s.entries[strings.TrimSpace(id)]
	if !ok {
		return Endpoint{}, ErrEndpointNotFound
	}
	return cloneEndpoint(endpoint), nil
}

func (s *MemoryEndpointStore) ListByOwner(_ context.Context, ownerID string) ([]Endpoint, error) {
	if s == nil {
		return nil, fmt.Errorf("core: endpoint store is not configured")
	}
	ownerID = strings.TrimSpace(ownerID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Endpoint, 0)
	for _, endpoint := range s.entries {
		if endpoint.OwnerID == ownerID {
			out = append(out, cloneEndpoint(endpoint))
		}
	}
	sortEndpoints(out)
	return out, nil
}

func (s *MemoryEndpointStore) ListActiveByEvent(_ context.Context, ownerID string, eventType EventType) ([]Endpoint, error) {
	if s == nil {
		return nil, fmt.Errorf("core: endpoint store is not configured")
	}
	ownerID = strings.TrimSpace(ownerID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Endpoint, 0)
	for _, endpoint := range s.entries {
		if endpoint.OwnerID != ownerID || !endpoint.Active {
			continue
		}
		if !endpoint.SubscribedTo(eventType) {
			continue
		}
		out = append(out, cloneEndpoint(endpoint))
	}
	sortEndpoints(out)
	return out, nil
}

func (s *MemoryEndpointStore) RotateSecret(_ context.Context, id string, secret string) (Endpoint, error) {
	if s == nil {
		return Endpoint{}, fmt.Errorf("core: endpoint store is not configured")
	}
	if strings.TrimSpace(secret) == "" {
		return Endpoint{}, fmt.Errorf("core: endpoint secret is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	endpoint, ok := s.entries[strings.TrimSpace(id)]
	if !ok {
		return Endpoint{}, ErrEndpointNotFound
	}
	endpoint.Secret = strings.TrimSpace(secret)
	endpoint.UpdatedAt = time.Now().UTC()
	s.entries[endpoint.ID] = endpoint
	return cloneEndpoint(endpoint), nil
}

func (s *MemoryEndpointStore) SetActive(_ context.Context, id string, active bool) (Endpoint, error) {
	if s == nil {
		return Endpoint{}, fmt.Errorf("core: endpoint store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	endpoint, ok := s.entries[strings.TrimSpace(id)]
	if !ok {
		return Endpoint{}, ErrEndpointNotFound
	}
	endpoint.Active = active
	endpoint.UpdatedAt = time.Now().UTC()
	s.entries[endpoint.ID] = endpoint
	return cloneEndpoint(endpoint), nil
}

func (s *MemoryEndpointStore) Delete(_ context.Context, id string) error {
	if s == nil {
		return fmt.Errorf("core: endpoint store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id = strings.TrimSpace(id)
	if _, ok := s.entries[id]; !ok {
		return ErrEndpointNotFound
	}
	delete(s.entries, id)
	return nil
}

type MemoryDeliveryStore struct {
	mu      sync.RWMutex
	entries map[string]DeliveryAttempt
}

func NewMemoryDeliveryStore() *MemoryDeliveryStore {
	return &MemoryDeliveryStore{entries: map[string]DeliveryAttempt{}}
}

func (s *MemoryDeliveryStore) Create(_ context.Context, attempt DeliveryAttempt) (DeliveryAttempt, error) {
	if s == nil {
		return DeliveryAttempt{}, fmt.Errorf("core: delivery store is not configured")
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
		attempt.Status = DeliveryStatusPending
	}

	s.mu.Lock()
	s.entries[attempt.ID] = cloneDeliveryAttempt(attempt)
	s.mu.Unlock()
	return attempt, nil
}

func (s *MemoryDeliveryStore) Update(_ context.Context, attempt DeliveryAttempt) (DeliveryAttempt, error) {
	if s == nil {
		return DeliveryAttempt{}, fmt.Errorf("core: delivery store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[attempt.ID]; !ok {
		return DeliveryAttempt{}, ErrDeliveryNotFound
	}
	attempt.UpdatedAt = time.Now().UTC()
	s.entries[attempt.ID] = cloneDeliveryAttempt(attempt)
	return attempt, nil
}

func (s *MemoryDeliveryStore) GetByID(_ context.Context, id string) (DeliveryAttempt, error) {
	if s == nil {
		return DeliveryAttempt{}, fmt.Errorf("core: delivery store is not configured")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	attempt, ok := s.entries[strings.TrimSpace(id)]
	if !ok {
		return DeliveryAttempt{}, ErrDeliveryNotFound
	}
	return cloneDeliveryAttempt(attempt), nil
}

func (s *MemoryDeliveryStore) ListByEndpoint(_ context.Context, endpointID string, limit int) ([]DeliveryAttempt, error) {
	if s == nil {
		return nil, fmt.Errorf("core: delivery store is not configured")
	}
	endpointID = strings.TrimSpace(endpointID)
	return s.list(func(attempt DeliveryAttempt) bool {
		return attempt.EndpointID == endpointID
	}, limit), nil
}

func (s *MemoryDeliveryStore) ListByOwner(_ context.Context, ownerID string, limit int) ([]DeliveryAttempt, error) {
	if s == nil {
		return nil, fmt.Errorf("core: delivery store is not configured")
	}
	ownerID = strings.TrimSpace(ownerID)
	return s.list(func(attempt DeliveryAttempt) bool {
		return attempt.OwnerID == ownerID
	}, limit), nil
}

func (s *MemoryDeliveryStore) list(match func(DeliveryAttempt) bool, limit int) []DeliveryAttempt {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]DeliveryAttempt, 0)
	for _, attempt := range s.entries {
		if match(attempt) {
			out = append(out, cloneDeliveryAttempt(attempt))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

type MemoryDeadLetterStore struct {
	mu        sync.RWMutex
	entries   map[string]DeadLetterEntry
	byAttempt map[string]string
}

func NewMemoryDeadLetterStore() *MemoryDeadLetterStore {
	return &MemoryDeadLetterStore{
		entries:   map[string]DeadLetterEntry{},
		byAttempt: map[string]string{},
	}
}

func (s *MemoryDeadLetterStore) Create(_ context.Context, entry DeadLetterEntry) (DeadLetterEntry, error) {
	if s == nil {
		return DeadLetterEntry{}, fmt.Errorf("core: dead letter store is not configured")
	}
	attemptID := strings.TrimSpace(entry.AttemptID)
	if attemptID == "" {
		return DeadLetterEntry{}, fmt.Errorf("core: dead letter attempt id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	// One entry per exhausted attempt: re-creating is an idempotent no-op.
	if existingID, ok := s.byAttempt[attemptID]; ok {
		return cloneDeadLetterEntry(s.entries[existingID]), nil
	}
	if strings.TrimSpace(entry.ID) == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.entries[entry.ID] = cloneDeadLetterEntry(entry)
	s.byAttempt[attemptID] = entry.ID
	return entry, nil
}

func (s *MemoryDeadLetterStore) GetByID(_ context.Context, id string) (DeadLetterEntry, error) {
	if s == nil {
		return DeadLetterEntry{}, fmt.Errorf("core: dead letter store is not configured")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[strings.TrimSpace(id)]
	if !ok {
		return DeadLetterEntry{}, ErrDeadLetterNotFound
	}
	return cloneDeadLetterEntry(entry), nil
}

func (s *MemoryDeadLetterStore) GetByAttempt(_ context.Context, attemptID string) (DeadLetterEntry, error) {
	if s == nil {
		return DeadLetterEntry{}, fmt.Errorf("core: dead letter store is not configured")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byAttempt[strings.TrimSpace(attemptID)]
	if !ok {
		return DeadLetterEntry{}, ErrDeadLetterNotFound
	}
	return cloneDeadLetterEntry(s.entries[id]), nil
}

func (s *MemoryDeadLetterStore) List(_ context.Context, ownerID string, includeResolved bool, limit int) ([]DeadLetterEntry, error) {
	if s == nil {
		return nil, fmt.Errorf("core: dead letter store is not configured")
	}
	ownerID = strings.TrimSpace(ownerID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]DeadLetterEntry, 0)
	for _, entry := range s.entries {
		if ownerID != "" && entry.OwnerID != ownerID {
			continue
		}
		if !includeResolved && entry.Resolved {
			continue
		}
		out = append(out, cloneDeadLetterEntry(entry))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryDeadLetterStore) Resolve(_ context.Context, id string, note string, at time.Time) (DeadLetterEntry, error) {
	if s == nil {
		return DeadLetterEntry{}, fmt.Errorf("core: dead letter store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[strings.TrimSpace(id)]
	if !ok {
		return DeadLetterEntry{}, ErrDeadLetterNotFound
	}
	entry.Resolved = true
	entry.Note = strings.TrimSpace(note)
	resolvedAt := at.UTC()
	entry.ResolvedAt = &resolvedAt
	s.entries[entry.ID] = entry
	return cloneDeadLetterEntry(entry), nil
}

type MemoryTokenStore struct {
	mu      sync.RWMutex
	entries map[string]InboundToken
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{entries: map[string]InboundToken{}}
}

func (s *MemoryTokenStore) Create(_ context.Context, token InboundToken) (InboundToken, error) {
	if s == nil {
		return InboundToken{}, fmt.Errorf("core: token store is not configured")
	}
	if strings.TrimSpace(token.Token) == "" {
		return InboundToken{}, fmt.Errorf("core: inbound token value is required")
	}
	if err := token.ActionType.Validate(); err != nil {
		return InboundToken{}, err
	}
	if strings.TrimSpace(token.ID) == "" {
		token.ID = uuid.NewString()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	s.entries[token.ID] = cloneInboundToken(token)
	s.mu.Unlock()
	return token, nil
}

func (s *MemoryTokenStore) GetByID(_ context.Context, id string) (InboundToken, error) {
	if s == nil {
		return InboundToken{}, fmt.Errorf("core: token store is not configured")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	token, ok := s.entries[strings.TrimSpace(id)]
	if !ok {
		return InboundToken{}, ErrTokenNotFound
	}
	return cloneInboundToken(token), nil
}

func (s *MemoryTokenStore) GetByToken(_ context.Context, provider string, token string) (InboundToken, error) {
	if s == nil {
		return InboundToken{}, fmt.Errorf("core: token store is not configured")
	}
	provider = strings.TrimSpace(provider)
	token = strings.TrimSpace(token)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, candidate := range s.entries {
		if candidate.Token != token {
			continue
		}
		if provider != "" && candidate.Provider != provider {
			continue
		}
		return cloneInboundToken(candidate), nil
	}
	return InboundToken{}, ErrTokenNotFound
}

func (s *MemoryTokenStore) ListByOwner(_ context.Context, ownerID string) ([]InboundToken, error) {
	if s == nil {
		return nil, fmt.Errorf("core: token store is not configured")
	}
	ownerID = strings.TrimSpace(ownerID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]InboundToken, 0)
	for _, token := range s.entries {
		if token.OwnerID == ownerID {
			out = append(out, cloneInboundToken(token))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryTokenStore) Revoke(_ context.Context, id string, at time.Time) (InboundToken, error) {
	if s == nil {
		return InboundToken{}, fmt.Errorf("core: token store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.entries[strings.TrimSpace(id)]
	if !ok {
		return InboundToken{}, ErrTokenNotFound
	}
	// Revocation is irreversible.
	token.Active = false
	if token.RevokedAt == nil {
		revokedAt := at.UTC()
		token.RevokedAt = &revokedAt
	}
	s.entries[token.ID] = token
	return cloneInboundToken(token), nil
}

type MemoryInboundLogStore struct {
	mu      sync.RWMutex
	entries map[string]InboundLog
}

func NewMemoryInboundLogStore() *MemoryInboundLogStore {
	return &MemoryInboundLogStore{entries: map[string]InboundLog{}}
}

func (s *MemoryInboundLogStore) Create(_ context.Context, log InboundLog) (InboundLog, error) {
	if s == nil {
		return InboundLog{}, fmt.Errorf("core: inbound log store is not configured")
	}
	if strings.TrimSpace(log.ID) == "" {
		log.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if log.CreatedAt.IsZero() {
		log.CreatedAt = now
	}
	log.UpdatedAt = now

	s.mu.Lock()
	s.entries[log.ID] = cloneInboundLog(log)
	s.mu.Unlock()
	return log, nil
}

func (s *MemoryInboundLogStore) GetByID(_ context.Context, id string) (InboundLog, error) {
	if s == nil {
		return InboundLog{}, fmt.Errorf("core: inbound log store is not configured")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	log, ok := s.entries[strings.TrimSpace(id)]
	if !ok {
		return InboundLog{}, fmt.Errorf("core: inbound log not found")
	}
	return cloneInboundLog(log), nil
}

func (s *MemoryInboundLogStore) MarkOutcome(_ context.Context, id string, processed bool, recordID string, errMsg string, at time.Time) (InboundLog, error) {
	if s == nil {
		return InboundLog{}, fmt.Errorf("core: inbound log store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	log, ok := s.entries[strings.TrimSpace(id)]
	if !ok {
		return InboundLog{}, fmt.Errorf("core: inbound log not found")
	}
	log.Processed = processed
	log.RecordID = strings.TrimSpace(recordID)
	log.Error = strings.TrimSpace(errMsg)
	log.UpdatedAt = at.UTC()
	s.entries[log.ID] = log
	return cloneInboundLog(log), nil
}

func (s *MemoryInboundLogStore) ListByToken(_ context.Context, tokenID string, limit int) ([]InboundLog, error) {
	if s == nil {
		return nil, fmt.Errorf("core: inbound log store is not configured")
	}
	tokenID = strings.TrimSpace(tokenID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]InboundLog, 0)
	for _, log := range s.entries {
		if log.TokenID == tokenID {
			out = append(out, cloneInboundLog(log))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func sortEndpoints(endpoints []Endpoint) {
	sort.Slice(endpoints, func(i, j int) bool { return endpoints[i].ID < endpoints[j].ID })
}

func cloneEndpoint(endpoint Endpoint) Endpoint {
	cloned := endpoint
	cloned.Events = append([]EventType(nil), endpoint.Events...)
	if len(endpoint.CustomHeaders) > 0 {
		headers := make(map[string]string, len(endpoint.CustomHeaders))
		for key, value := range endpoint.CustomHeaders {
			headers[key] = value
		}
		cloned.CustomHeaders = headers
	}
	return cloned
}

func cloneDeliveryAttempt(attempt DeliveryAttempt) DeliveryAttempt {
	cloned := attempt
	cloned.Payload = append([]byte(nil), attempt.Payload...)
	if attempt.NextAttemptAt != nil {
		next := *attempt.NextAttemptAt
		cloned.NextAttemptAt = &next
	}
	return cloned
}

func cloneDeadLetterEntry(entry DeadLetterEntry) DeadLetterEntry {
	cloned := entry
	cloned.Payload = append([]byte(nil), entry.Payload...)
	if entry.ResolvedAt != nil {
		resolved := *entry.ResolvedAt
		cloned.ResolvedAt = &resolved
	}
	return cloned
}

func cloneInboundToken(token InboundToken) InboundToken {
	cloned := token
	if len(token.FieldMapping) > 0 {
		mapping := make(map[string]string, len(token.FieldMapping))
		for key, value := range token.FieldMapping {
			mapping[key] = value
		}
		cloned.FieldMapping = mapping
	}
	if token.RevokedAt != nil {
		revoked := *token.RevokedAt
		cloned.RevokedAt = &revoked
	}
	return cloned
}

func cloneInboundLog(log InboundLog) InboundLog {
	cloned := log
	cloned.Payload = append([]byte(nil), log.Payload...)
	return cloned
}

var (
	_ EndpointStore   = (*MemoryEndpointStore)(nil)
	_ DeliveryStore   = (*MemoryDeliveryStore)(nil)
	_ DeadLetterStore = (*MemoryDeadLetterStore)(nil)
	_ TokenStore      = (*MemoryTokenStore)(nil)
	_ InboundLogStore = (*MemoryInboundLogStore)(nil)
)
