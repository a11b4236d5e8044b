package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type endpointRecord struct {
	bun.BaseModel `bun:"table:webhook_endpoints,alias:we"`

	ID            string            `bun:"id,pk"`
	OwnerID       string            `bun:"owner_id,notnull"`
	URL           string            `bun:"url,notnull"`
	Events        []string          `bun:"events,type:jsonb,notnull"`
	CustomHeaders map[string]string `bun:"custom_headers,type:jsonb"`
	Secret        string            `bun:"secret,notnull"`
	Active        bool              `bun:"active,notnull"`
	CreatedAt     time.Time         `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time         `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type deliveryAttemptRecord struct {
	bun.BaseModel `bun:"table:webhook_delivery_attempts,alias:wda"`

	ID             string     `bun:"id,pk"`
	EndpointID     string     `bun:"endpoint_id,notnull"`
	OwnerID        string     `bun:"owner_id,notnull"`
	EventType      string     `bun:"event_type,notnull"`
	Payload        []byte     `bun:"payload,notnull"`
	Status         string     `bun:"status,notnull"`
	RetryCount     int        `bun:"retry_count,notnull"`
	ResponseStatus int        `bun:"response_status"`
	LatencyMs      int64      `bun:"latency_ms"`
	LastError      string     `bun:"last_error"`
	NextAttemptAt  *time.Time `bun:"next_attempt_at,nullzero"`
	CreatedAt      time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type deadLetterRecord struct {
	bun.BaseModel `bun:"table:webhook_dead_letters,alias:wdl"`

	ID         string     `bun:"id,pk"`
	AttemptID  string     `bun:"attempt_id,notnull,unique"`
	EndpointID string     `bun:"endpoint_id,notnull"`
	OwnerID    string     `bun:"owner_id,notnull"`
	EventType  string     `bun:"event_type,notnull"`
	Payload    []byte     `bun:"payload,notnull"`
	Error      string     `bun:"error,notnull"`
	Resolved   bool       `bun:"resolved,notnull"`
	Note       string     `bun:"note"`
	CreatedAt  time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	ResolvedAt *time.Time `bun:"resolved_at,nullzero"`
}

type inboundTokenRecord struct {
	bun.BaseModel `bun:"table:inbound_tokens,alias:it"`

	ID           string            `bun:"id,pk"`
	OwnerID      string            `bun:"owner_id,notnull"`
	Provider     string            `bun:"provider,notnull"`
	Token        string            `bun:"token,notnull,unique"`
	ActionType   string            `bun:"action_type,notnull"`
	FieldMapping map[string]string `bun:"field_mapping,type:jsonb"`
	Active       bool              `bun:"active,notnull"`
	CreatedAt    time.Time         `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	RevokedAt    *time.Time        `bun:"revoked_at,nullzero"`
}

type inboundLogRecord struct {
	bun.BaseModel `bun:"table:inbound_logs,alias:il"`

	ID        string    `bun:"id,pk"`
	TokenID   string    `bun:"token_id,notnull"`
	OwnerID   string    `bun:"owner_id,notnull"`
	Payload   []byte    `bun:"payload,notnull"`
	Processed bool      `bun:"processed,notnull"`
	Error     string    `bun:"error"`
	RecordID  string    `bun:"record_id"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
