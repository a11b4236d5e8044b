package core

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

var (
	ErrUnknownEventType                = errors.New("core: unknown event type")
	ErrInvalidDeliveryStatusTransition = errors.New("core: invalid delivery status transition")
	ErrUnknownActionType               = errors.New("core: unknown action type")
	ErrEndpointNotFound                = errors.New("core: endpoint not found")
	ErrDeliveryNotFound                = errors.New("core: delivery attempt not found")
	ErrDeadLetterNotFound              = errors.New("core: dead letter entry not found")
	ErrTokenNotFound                   = errors.New("core: inbound token not found")
	ErrTokenRevoked                    = errors.New("core: inbound token is revoked")
)

type EventType string

const (
	EventCustomerCreated    EventType = "customer.created"
	EventCustomerUpdated    EventType = "customer.updated"
	EventCustomerChurnRisk  EventType = "customer.churn_risk"
	EventHealthScoreChanged EventType = "health_score.changed"
	EventHealthScoreUp      EventType = "health_score.improved"
	EventHealthScoreDown    EventType = "health_score.declined"
	EventRenewalUpcoming    EventType = "renewal.upcoming"
	EventRenewalAtRisk      EventType = "renewal.at_risk"
	EventRenewalCompleted   EventType = "renewal.completed"
	EventTaskCreated        EventType = "task.created"
	EventTaskCompleted      EventType = "task.completed"
	EventTaskOverdue        EventType = "task.overdue"
	EventActivityLogged     EventType = "activity.logged"
	EventStakeholderAdded   EventType = "stakeholder.added"
	EventRiskSignalCreated  EventType = "risk_signal.created"
	EventNPSSubmitted       EventType = "nps.submitted"
	EventPlaybookStarted    EventType = "playbook.started"
	EventPlaybookCompleted  EventType = "playbook.completed"
)

// EventCatalog returns the closed set of domain event types producers may
// trigger and endpoints may subscribe to.
func EventCatalog() []EventType {
	return []EventType{
		EventCustomerCreated,
		EventCustomerUpdated,
		EventCustomerChurnRisk,
		EventHealthScoreChanged,
		EventHealthScoreUp,
		EventHealthScoreDown,
		EventRenewalUpcoming,
		EventRenewalAtRisk,
		EventRenewalCompleted,
		EventTaskCreated,
		EventTaskCompleted,
		EventTaskOverdue,
		EventActivityLogged,
		EventStakeholderAdded,
		EventRiskSignalCreated,
		EventNPSSubmitted,
		EventPlaybookStarted,
		EventPlaybookCompleted,
	}
}

func (t EventType) Validate() error {
	normalized := EventType(strings.TrimSpace(strings.ToLower(string(t))))
	for _, known := range EventCatalog() {
		if normalized == known {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownEventType, t)
}

type Endpoint struct {
	ID            string
	OwnerID       string
	URL           string
	Events        []EventType
	CustomHeaders map[string]string
	Secret        string
	Active        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (e Endpoint) Validate() error {
	if strings.TrimSpace(e.OwnerID) == "" {
		return fmt.Errorf("core: endpoint owner id is required")
	}
	parsed, err := url.Parse(strings.TrimSpace(e.URL))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("core: endpoint url %q is invalid", e.URL)
	}
	if len(e.Events) == 0 {
		return fmt.Errorf("core: endpoint requires at least one subscribed event")
	}
	for _, event := range e.Events {
		if err := event.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// SubscribedTo reports whether the endpoint subscribes to eventType.
func (e Endpoint) SubscribedTo(eventType EventType) bool {
	for _, event := range e.Events {
		if event == eventType {
			return true
		}
	}
	return false
}

// Provider derives the remote dependency key for this endpoint, used as the
// default circuit-breaker key: one breaker per target host.
func (e Endpoint) Provider() string {
	parsed, err := url.Parse(strings.TrimSpace(e.URL))
	if err != nil || parsed.Host == "" {
		return strings.TrimSpace(e.URL)
	}
	return strings.ToLower(parsed.Host)
}

type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "pending"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusRetrying  DeliveryStatus = "retrying"
	DeliveryStatusFailed    DeliveryStatus = "failed"
)

// Terminal reports whether the status ends the automatic delivery lifecycle.
// A terminal failed attempt may still be reopened by an operator retry.
func (s DeliveryStatus) Terminal() bool {
	return s == DeliveryStatusDelivered || s == DeliveryStatusFailed
}

type DeliveryAttempt struct {
	ID             string
	EndpointID     string
	OwnerID        string
	EventType      EventType
	Payload        []byte
	Status         DeliveryStatus
	RetryCount     int
	ResponseStatus int
	LatencyMs      int64
	LastError      string
	NextAttemptAt  *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TransitionTo guards the delivery status machine. Terminal attempts only
// accept the operator-retry reopen to pending, which also resets the retry
// counter.
func (a *DeliveryAttempt) TransitionTo(status DeliveryStatus, now time.Time) error {
	if a == nil {
		return nil
	}
	if a.Status.Terminal() {
		if a.Status == DeliveryStatusFailed && status == DeliveryStatusPending {
			a.Status = DeliveryStatusPending
			a.RetryCount = 0
			a.LastError = ""
			a.NextAttemptAt = nil
			a.UpdatedAt = now
			return nil
		}
		return fmt.Errorf("%w: %s -> %s", ErrInvalidDeliveryStatusTransition, a.Status, status)
	}
	switch status {
	case DeliveryStatusPending, DeliveryStatusDelivered, DeliveryStatusRetrying, DeliveryStatusFailed:
		a.Status = status
		a.UpdatedAt = now
		return nil
	default:
		return fmt.Errorf("%w: %s -> %s", ErrInvalidDeliveryStatusTransition, a.Status, status)
	}
}

type DeadLetterEntry struct {
	ID         string
	AttemptID  string
	EndpointID string
	OwnerID    string
	EventType  EventType
	Payload    []byte
	Error      string
	Resolved   bool
	Note       string
	CreatedAt  time.Time
	ResolvedAt *time.Time
}

type ActionType string

const (
	ActionCreateCustomer    ActionType = "create_customer"
	ActionUpdateCustomer    ActionType = "update_customer"
	ActionAddStakeholder    ActionType = "add_stakeholder"
	ActionLogActivity       ActionType = "log_activity"
	ActionCreateTask        ActionType = "create_task"
	ActionCreateRiskSignal  ActionType = "create_risk_signal"
	ActionUpdateHealthScore ActionType = "update_health_score"
)

// ActionCatalog returns the fixed set of inbound actions a token may target.
func ActionCatalog() []ActionType {
	return []ActionType{
		ActionCreateCustomer,
		ActionUpdateCustomer,
		ActionAddStakeholder,
		ActionLogActivity,
		ActionCreateTask,
		ActionCreateRiskSignal,
		ActionUpdateHealthScore,
	}
}

func (t ActionType) Validate() error {
	normalized := ActionType(strings.TrimSpace(strings.ToLower(string(t))))
	for _, known := range ActionCatalog() {
		if normalized == known {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownActionType, t)
}

type InboundToken struct {
	ID           string
	OwnerID      string
	Provider     string
	Token        string
	ActionType   ActionType
	FieldMapping map[string]string
	Active       bool
	CreatedAt    time.Time
	RevokedAt    *time.Time
}

type InboundLog struct {
	ID        string
	TokenID   string
	OwnerID   string
	Payload   []byte
	Processed bool
	Error     string
	RecordID  string
	CreatedAt time.Time
	UpdatedAt time.Time
}
