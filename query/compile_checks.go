package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-webhooks/breaker"
	"github.com/goliatone/go-webhooks/core"
)

var (
	_ gocmd.Querier[GetEndpointMessage, core.Endpoint]                   = (*GetEndpointQuery)(nil)
	_ gocmd.Querier[ListEndpointsMessage, []core.Endpoint]               = (*ListEndpointsQuery)(nil)
	_ gocmd.Querier[GetDeliveryMessage, core.DeliveryAttempt]            = (*GetDeliveryQuery)(nil)
	_ gocmd.Querier[ListEndpointDeliveryMessage, []core.DeliveryAttempt] = (*ListEndpointDeliveryQuery)(nil)
	_ gocmd.Querier[ListOwnerDeliveryMessage, []core.DeliveryAttempt]    = (*ListOwnerDeliveryQuery)(nil)
	_ gocmd.Querier[GetDeadLetterMessage, core.DeadLetterEntry]          = (*GetDeadLetterQuery)(nil)
	_ gocmd.Querier[ListDeadLettersMessage, []core.DeadLetterEntry]      = (*ListDeadLettersQuery)(nil)
	_ gocmd.Querier[ListInboundTokensMessage, []core.InboundToken]       = (*ListInboundTokensQuery)(nil)
	_ gocmd.Querier[ListInboundLogHistoryMessage, []core.InboundLog]     = (*ListInboundLogHistoryQuery)(nil)
	_ gocmd.Querier[BreakerStatsMessage, []breaker.Stats]                = (*BreakerStatsQuery)(nil)
)
