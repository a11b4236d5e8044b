package query

import (
	"context"

	"github.com/goliatone/go-webhooks/breaker"
	"github.com/goliatone/go-webhooks/core"
)

type EndpointReader interface {
	GetByID(ctx context.Context, id string) (core.Endpoint, error)
	ListByOwner(ctx context.Context, ownerID string) ([]core.Endpoint, error)
}

type DeliveryReader interface {
	GetByID(ctx context.Context, id string) (core.DeliveryAttempt, error)
	ListByEndpoint(ctx context.Context, endpointID string, limit int) ([]core.DeliveryAttempt, error)
	ListByOwner(ctx context.Context, ownerID string, limit int) ([]core.DeliveryAttempt, error)
}

type DeadLetterReader interface {
	GetByID(ctx context.Context, id string) (core.DeadLetterEntry, error)
	List(ctx context.Context, ownerID string, includeResolved bool, limit int) ([]core.DeadLetterEntry, error)
}

type TokenReader interface {
	ListByOwner(ctx context.Context, ownerID string) ([]core.InboundToken, error)
}

type InboundLogReader interface {
	ListByToken(ctx context.Context, tokenID string, limit int) ([]core.InboundLog, error)
}

// BreakerStatsReader exposes circuit-breaker snapshots.
// breaker.Registry implements it.
type BreakerStatsReader interface {
	Stats() []breaker.Stats
}

type GetEndpointQuery struct {
	reader EndpointReader
}

func NewGetEndpointQuery(reader EndpointReader) *GetEndpointQuery {
	return &GetEndpointQuery{reader: reader}
}

func (q *GetEndpointQuery) Query(ctx context.Context, msg GetEndpointMessage) (core.Endpoint, error) {
	if q == nil || q.reader == nil {
		return core.Endpoint{}, queryDependencyError("query: endpoint reader is required")
	}
	return q.reader.GetByID(ctx, msg.EndpointID)
}

type ListEndpointsQuery struct {
	reader EndpointReader
}

func NewListEndpointsQuery(reader EndpointReader) *ListEndpointsQuery {
	return &ListEndpointsQuery{reader: reader}
}

func (q *ListEndpointsQuery) Query(ctx context.Context, msg ListEndpointsMessage) ([]core.Endpoint, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: endpoint reader is required")
	}
	return q.reader.ListByOwner(ctx, msg.OwnerID)
}

type GetDeliveryQuery struct {
	reader DeliveryReader
}

func NewGetDeliveryQuery(reader DeliveryReader) *GetDeliveryQuery {
	return &GetDeliveryQuery{reader: reader}
}

func (q *GetDeliveryQuery) Query(ctx context.Context, msg GetDeliveryMessage) (core.DeliveryAttempt, error) {
	if q == nil || q.reader == nil {
		return core.DeliveryAttempt{}, queryDependencyError("query: delivery reader is required")
	}
	return q.reader.GetByID(ctx, msg.AttemptID)
}

type ListEndpointDeliveryQuery struct {
	reader DeliveryReader
}

func NewListEndpointDeliveryQuery(reader DeliveryReader) *ListEndpointDeliveryQuery {
	return &ListEndpointDeliveryQuery{reader: reader}
}

func (q *ListEndpointDeliveryQuery) Query(
	ctx context.Context,
	msg ListEndpointDeliveryMessage,
) ([]core.DeliveryAttempt, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: delivery reader is required")
	}
	return q.reader.ListByEndpoint(ctx, msg.EndpointID, msg.Limit)
}

type ListOwnerDeliveryQuery struct {
	reader DeliveryReader
}

func NewListOwnerDeliveryQuery(reader DeliveryReader) *ListOwnerDeliveryQuery {
	return &ListOwnerDeliveryQuery{reader: reader}
}

func (q *ListOwnerDeliveryQuery) Query(
	ctx context.Context,
	msg ListOwnerDeliveryMessage,
) ([]core.DeliveryAttempt, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: delivery reader is required")
	}
	return q.reader.ListByOwner(ctx, msg.OwnerID, msg.Limit)
}

type GetDeadLetterQuery struct {
	reader DeadLetterReader
}

func NewGetDeadLetterQuery(reader DeadLetterReader) *GetDeadLetterQuery {
	return &GetDeadLetterQuery{reader: reader}
}

func (q *GetDeadLetterQuery) Query(ctx context.Context, msg GetDeadLetterMessage) (core.DeadLetterEntry, error) {
	if q == nil || q.reader == nil {
		return core.DeadLetterEntry{}, queryDependencyError("query: dead letter reader is required")
	}
	return q.reader.GetByID(ctx, msg.EntryID)
}

type ListDeadLettersQuery struct {
	reader DeadLetterReader
}

func NewListDeadLettersQuery(reader DeadLetterReader) *ListDeadLettersQuery {
	return &ListDeadLettersQuery{reader: reader}
}

func (q *ListDeadLettersQuery) Query(
	ctx context.Context,
	msg ListDeadLettersMessage,
) ([]core.DeadLetterEntry, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: dead letter reader is required")
	}
	return q.reader.List(ctx, msg.OwnerID, msg.IncludeResolved, msg.Limit)
}

type ListInboundTokensQuery struct {
	reader TokenReader
}

func NewListInboundTokensQuery(reader TokenReader) *ListInboundTokensQuery {
	return &ListInboundTokensQuery{reader: reader}
}

func (q *ListInboundTokensQuery) Query(
	ctx context.Context,
	msg ListInboundTokensMessage,
) ([]core.InboundToken, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: token reader is required")
	}
	return q.reader.ListByOwner(ctx, msg.OwnerID)
}

type ListInboundLogHistoryQuery struct {
	reader InboundLogReader
}

func NewListInboundLogHistoryQuery(reader InboundLogReader) *ListInboundLogHistoryQuery {
	return &ListInboundLogHistoryQuery{reader: reader}
}

func (q *ListInboundLogHistoryQuery) Query(
	ctx context.Context,
	msg ListInboundLogHistoryMessage,
) ([]core.InboundLog, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: inbound log reader is required")
	}
	return q.reader.ListByToken(ctx, msg.TokenID, msg.Limit)
}

type BreakerStatsQuery struct {
	reader BreakerStatsReader
}

func NewBreakerStatsQuery(reader BreakerStatsReader) *BreakerStatsQuery {
	return &BreakerStatsQuery{reader: reader}
}

func (q *BreakerStatsQuery) Query(_ context.Context, _ BreakerStatsMessage) ([]breaker.Stats, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: breaker stats reader is required")
	}
	return q.reader.Stats(), nil
}
