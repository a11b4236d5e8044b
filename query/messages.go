package query

import (
	"fmt"
	"strings"
)

const (
	TypeGetEndpoint           = "webhooks.query.endpoint.get"
	TypeListEndpoints         = "webhooks.query.endpoint.list"
	TypeGetDelivery           = "webhooks.query.delivery.get"
	TypeListEndpointDelivery  = "webhooks.query.delivery.list_by_endpoint"
	TypeListOwnerDelivery     = "webhooks.query.delivery.list_by_owner"
	TypeGetDeadLetter         = "webhooks.query.dead_letter.get"
	TypeListDeadLetters       = "webhooks.query.dead_letter.list"
	TypeListInboundTokens     = "webhooks.query.token.list"
	TypeListInboundLogHistory = "webhooks.query.inbound_log.list"
	TypeBreakerStats          = "webhooks.query.breaker.stats"
)

type GetEndpointMessage struct {
	EndpointID string
}

func (GetEndpointMessage) Type() string { return TypeGetEndpoint }

func (m GetEndpointMessage) Validate() error {
	if strings.TrimSpace(m.EndpointID) == "" {
		return fmt.Errorf("query: endpoint id is required")
	}
	return nil
}

type ListEndpointsMessage struct {
	OwnerID string
}

func (ListEndpointsMessage) Type() string { return TypeListEndpoints }

func (m ListEndpointsMessage) Validate() error {
	if strings.TrimSpace(m.OwnerID) == "" {
		return fmt.Errorf("query: owner id is required")
	}
	return nil
}

type GetDeliveryMessage struct {
	AttemptID string
}

func (GetDeliveryMessage) Type() string { return TypeGetDelivery }

func (m GetDeliveryMessage) Validate() error {
	if strings.TrimSpace(m.AttemptID) == "" {
		return fmt.Errorf("query: attempt id is required")
	}
	return nil
}

type ListEndpointDeliveryMessage struct {
	EndpointID string
	Limit      int
}

func (ListEndpointDeliveryMessage) Type() string { return TypeListEndpointDelivery }

func (m ListEndpointDeliveryMessage) Validate() error {
	if strings.TrimSpace(m.EndpointID) == "" {
		return fmt.Errorf("query: endpoint id is required")
	}
	if m.Limit < 0 {
		return fmt.Errorf("query: limit must be >= 0")
	}
	return nil
}

type ListOwnerDeliveryMessage struct {
	OwnerID string
	Limit   int
}

func (ListOwnerDeliveryMessage) Type() string { return TypeListOwnerDelivery }

func (m ListOwnerDeliveryMessage) Validate() error {
	if strings.TrimSpace(m.OwnerID) == "" {
		return fmt.Errorf("query: owner id is required")
	}
	if m.Limit < 0 {
		return fmt.Errorf("query: limit must be >= 0")
	}
	return nil
}

type GetDeadLetterMessage struct {
	EntryID string
}

func (GetDeadLetterMessage) Type() string { return TypeGetDeadLetter }

func (m GetDeadLetterMessage) Validate() error {
	if strings.TrimSpace(m.EntryID) == "" {
		return fmt.Errorf("query: dead letter entry id is required")
	}
	return nil
}

// ListDeadLettersMessage pages the dead letter queue. OwnerID blank
// means every owner, and resolved entries stay hidden unless asked for.
type ListDeadLettersMessage struct {
	OwnerID         string
	IncludeResolved bool
	Limit           int
}

func (ListDeadLettersMessage) Type() string { return TypeListDeadLetters }

func (m ListDeadLettersMessage) Validate() error {
	if m.Limit < 0 {
		return fmt.Errorf("query: limit must be >= 0")
	}
	return nil
}

type ListInboundTokensMessage struct {
	OwnerID string
}

func (ListInboundTokensMessage) Type() string { return TypeListInboundTokens }

func (m ListInboundTokensMessage) Validate() error {
	if strings.TrimSpace(m.OwnerID) == "" {
		return fmt.Errorf("query: owner id is required")
	}
	return nil
}

type ListInboundLogHistoryMessage struct {
	TokenID string
	Limit   int
}

func (ListInboundLogHistoryMessage) Type() string { return TypeListInboundLogHistory }

func (m ListInboundLogHistoryMessage) Validate() error {
	if strings.TrimSpace(m.TokenID) == "" {
		return fmt.Errorf("query: token id is required")
	}
	if m.Limit < 0 {
		return fmt.Errorf("query: limit must be >= 0")
	}
	return nil
}

type BreakerStatsMessage struct{}

func (BreakerStatsMessage) Type() string { return TypeBreakerStats }

func (BreakerStatsMessage) Validate() error { return nil }
