package webhooks

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-webhooks/breaker"
	"github.com/goliatone/go-webhooks/command"
	"github.com/goliatone/go-webhooks/core"
	"github.com/goliatone/go-webhooks/inbound"
	"github.com/goliatone/go-webhooks/outbound"
	"github.com/goliatone/go-webhooks/query"
	"github.com/goliatone/go-webhooks/transport"
)

// Commands bundles one instance of every mutating handler, wired to the
// service's stores and dispatcher.
type Commands struct {
	TriggerEvent         *command.TriggerEventCommand
	TestWebhook          *command.TestWebhookCommand
	RetryDelivery        *command.RetryDeliveryCommand
	ResolveDeadLetter    *command.ResolveDeadLetterCommand
	RegisterEndpoint     *command.RegisterEndpointCommand
	UpdateEndpoint       *command.UpdateEndpointCommand
	RotateEndpointSecret *command.RotateEndpointSecretCommand
	SetEndpointActive    *command.SetEndpointActiveCommand
	CreateInboundToken   *command.CreateInboundTokenCommand
	RevokeInboundToken   *command.RevokeInboundTokenCommand
	ProcessInbound       *command.ProcessInboundCommand
}

// Queries bundles the read-side handlers.
type Queries struct {
	GetEndpoint           *query.GetEndpointQuery
	ListEndpoints         *query.ListEndpointsQuery
	GetDelivery           *query.GetDeliveryQuery
	ListEndpointDelivery  *query.ListEndpointDeliveryQuery
	ListOwnerDelivery     *query.ListOwnerDeliveryQuery
	GetDeadLetter         *query.GetDeadLetterQuery
	ListDeadLetters       *query.ListDeadLettersQuery
	ListInboundTokens     *query.ListInboundTokensQuery
	ListInboundLogHistory *query.ListInboundLogHistoryQuery
	BreakerStats          *query.BreakerStatsQuery
}

// Service assembles the delivery and ingestion subsystems behind one
// constructor. Stores default to the in-memory implementations; swap in
// the sqlstore factory output for durability.
type Service struct {
	config      core.Config
	endpoints   core.EndpointStore
	deliveries  core.DeliveryStore
	deadLetters core.DeadLetterStore
	tokens      core.TokenStore
	inboundLogs core.InboundLogStore
	breakers    *breaker.Registry
	bus         core.EventBus
	dispatcher  *outbound.Dispatcher
	gateway     *inbound.Gateway
	commands    Commands
	queries     Queries
}

type serviceOptions struct {
	endpoints   core.EndpointStore
	deliveries  core.DeliveryStore
	deadLetters core.DeadLetterStore
	tokens      core.TokenStore
	inboundLogs core.InboundLogStore
	transport   core.DeliveryTransport
	scheduler   outbound.RetryScheduler
	executor    core.ActionExecutor
	bus         core.EventBus
	logger      core.Logger
	metrics     core.MetricsRecorder
	breakerKey  outbound.BreakerKeyFunc
	provider    core.ConfigProvider
	resolver    core.OptionsResolver
}

type Option func(*serviceOptions)

func WithEndpointStore(store core.EndpointStore) Option {
	return func(o *serviceOptions) { o.endpoints = store }
}

func WithDeliveryStore(store core.DeliveryStore) Option {
	return func(o *serviceOptions) { o.deliveries = store }
}

func WithDeadLetterStore(store core.DeadLetterStore) Option {
	return func(o *serviceOptions) { o.deadLetters = store }
}

func WithTokenStore(store core.TokenStore) Option {
	return func(o *serviceOptions) { o.tokens = store }
}

func WithInboundLogStore(store core.InboundLogStore) Option {
	return func(o *serviceOptions) { o.inboundLogs = store }
}

func WithTransport(t core.DeliveryTransport) Option {
	return func(o *serviceOptions) { o.transport = t }
}

func WithRetryScheduler(scheduler outbound.RetryScheduler) Option {
	return func(o *serviceOptions) { o.scheduler = scheduler }
}

func WithActionExecutor(executor core.ActionExecutor) Option {
	return func(o *serviceOptions) { o.executor = executor }
}

func WithEventBus(bus core.EventBus) Option {
	return func(o *serviceOptions) { o.bus = bus }
}

func WithLogger(logger core.Logger) Option {
	return func(o *serviceOptions) { o.logger = logger }
}

func WithMetrics(metrics core.MetricsRecorder) Option {
	return func(o *serviceOptions) { o.metrics = metrics }
}

func WithBreakerKey(key outbound.BreakerKeyFunc) Option {
	return func(o *serviceOptions) { o.breakerKey = key }
}

func WithConfigProvider(provider core.ConfigProvider) Option {
	return func(o *serviceOptions) { o.provider = provider }
}

func WithOptionsResolver(resolver core.OptionsResolver) Option {
	return func(o *serviceOptions) { o.resolver = resolver }
}

// New builds a Service from cfg. Zero-valued sections take defaults.
func New(cfg Config, opts ...Option) (*Service, error) {
	defaults := core.DefaultConfig()
	if strings.TrimSpace(cfg.ServiceName) == "" {
		cfg.ServiceName = defaults.ServiceName
	}
	if cfg.Breaker == (core.BreakerConfig{}) {
		cfg.Breaker = defaults.Breaker
	}
	deliverySet := cfg.Delivery.MaxRetries != 0 ||
		cfg.Delivery.TimeoutSeconds != 0 ||
		len(cfg.Delivery.BackoffSeconds) > 0 ||
		cfg.Delivery.RatePerEndpoint != 0 ||
		cfg.Delivery.RateBurst != 0
	if !deliverySet {
		cfg.Delivery = defaults.Delivery
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := serviceOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&options)
	}

	endpoints := options.endpoints
	if endpoints == nil {
		endpoints = core.NewMemoryEndpointStore()
	}
	deliveries := options.deliveries
	if deliveries == nil {
		deliveries = core.NewMemoryDeliveryStore()
	}
	deadLetters := options.deadLetters
	if deadLetters == nil {
		deadLetters = core.NewMemoryDeadLetterStore()
	}
	tokens := options.tokens
	if tokens == nil {
		tokens = core.NewMemoryTokenStore()
	}
	inboundLogs := options.inboundLogs
	if inboundLogs == nil {
		inboundLogs = core.NewMemoryInboundLogStore()
	}
	bus := options.bus
	if bus == nil {
		bus = core.NewInMemoryEventBus()
	}

	breakers, err := breaker.NewRegistry(breaker.Config{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		SuccessThreshold: cfg.Breaker.SuccessThreshold,
		Timeout:          time.Duration(cfg.Breaker.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		return nil, err
	}

	deliveryConfig := outbound.ConfigFromCore(cfg.Delivery)
	deliveryTransport := options.transport
	if deliveryTransport == nil {
		deliveryTransport = transport.NewRESTClient(&http.Client{Timeout: deliveryConfig.CallTimeout})
	}

	var limiter *outbound.EndpointLimiter
	if cfg.Delivery.RatePerEndpoint > 0 {
		limiter = outbound.NewEndpointLimiter(float64(cfg.Delivery.RatePerEndpoint), cfg.Delivery.RateBurst)
	}

	dispatcher, err := outbound.NewDispatcher(outbound.Dependencies{
		Endpoints:   endpoints,
		Deliveries:  deliveries,
		DeadLetters: deadLetters,
		Transport:   deliveryTransport,
		Breakers:    breakers,
		Scheduler:   options.scheduler,
		Bus:         bus,
		Logger:      options.logger,
		Metrics:     options.metrics,
		Limiter:     limiter,
		BreakerKey:  options.breakerKey,
	}, deliveryConfig)
	if err != nil {
		return nil, err
	}

	service := &Service{
		config:      cfg,
		endpoints:   endpoints,
		deliveries:  deliveries,
		deadLetters: deadLetters,
		tokens:      tokens,
		inboundLogs: inboundLogs,
		breakers:    breakers,
		bus:         bus,
		dispatcher:  dispatcher,
	}

	// Ingestion only runs when the embedder supplies the action surface.
	if options.executor != nil {
		gateway, err := inbound.NewGateway(inbound.Dependencies{
			Tokens:   tokens,
			Logs:     inboundLogs,
			Executor: options.executor,
			Bus:      bus,
			Logger:   options.logger,
			Metrics:  options.metrics,
		})
		if err != nil {
			return nil, err
		}
		service.gateway = gateway
	}

	service.commands = Commands{
		TriggerEvent:         command.NewTriggerEventCommand(dispatcher),
		TestWebhook:          command.NewTestWebhookCommand(dispatcher),
		RetryDelivery:        command.NewRetryDeliveryCommand(dispatcher),
		ResolveDeadLetter:    command.NewResolveDeadLetterCommand(deadLetters),
		RegisterEndpoint:     command.NewRegisterEndpointCommand(endpoints),
		UpdateEndpoint:       command.NewUpdateEndpointCommand(endpoints),
		RotateEndpointSecret: command.NewRotateEndpointSecretCommand(endpoints),
		SetEndpointActive:    command.NewSetEndpointActiveCommand(endpoints),
		CreateInboundToken:   command.NewCreateInboundTokenCommand(tokens),
		RevokeInboundToken:   command.NewRevokeInboundTokenCommand(tokens),
	}
	if service.gateway != nil {
		service.commands.ProcessInbound = command.NewProcessInboundCommand(service.gateway)
	}
	service.queries = Queries{
		GetEndpoint:           query.NewGetEndpointQuery(endpoints),
		ListEndpoints:         query.NewListEndpointsQuery(endpoints),
		GetDelivery:           query.NewGetDeliveryQuery(deliveries),
		ListEndpointDelivery:  query.NewListEndpointDeliveryQuery(deliveries),
		ListOwnerDelivery:     query.NewListOwnerDeliveryQuery(deliveries),
		GetDeadLetter:         query.NewGetDeadLetterQuery(deadLetters),
		ListDeadLetters:       query.NewListDeadLettersQuery(deadLetters),
		ListInboundTokens:     query.NewListInboundTokensQuery(tokens),
		ListInboundLogHistory: query.NewListInboundLogHistoryQuery(inboundLogs),
		BreakerStats:          query.NewBreakerStatsQuery(breakers),
	}

	return service, nil
}

// Setup resolves the configuration through the provider and resolver
// options before building the Service.
func Setup(ctx context.Context, cfg Config, opts ...Option) (*Service, error) {
	options := serviceOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&options)
	}

	defaults := core.DefaultConfig()
	loaded := defaults
	if options.provider != nil {
		var err error
		loaded, err = options.provider.Load(ctx, defaults)
		if err != nil {
			return nil, err
		}
	}
	resolver := options.resolver
	if resolver == nil {
		resolver = core.GoOptionsResolver{}
	}
	resolved, err := resolver.Resolve(defaults, loaded, cfg)
	if err != nil {
		return nil, err
	}
	return New(resolved, opts...)
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dispatcher() *outbound.Dispatcher {
	if s == nil {
		return nil
	}
	return s.dispatcher
}

// Gateway returns the inbound gateway, or nil when no action executor
// was configured.
func (s *Service) Gateway() *inbound.Gateway {
	if s == nil {
		return nil
	}
	return s.gateway
}

func (s *Service) Breakers() *breaker.Registry {
	if s == nil {
		return nil
	}
	return s.breakers
}

func (s *Service) Bus() core.EventBus {
	if s == nil {
		return nil
	}
	return s.bus
}

func (s *Service) EndpointStore() core.EndpointStore {
	if s == nil {
		return nil
	}
	return s.endpoints
}

func (s *Service) DeliveryStore() core.DeliveryStore {
	if s == nil {
		return nil
	}
	return s.deliveries
}

func (s *Service) DeadLetterStore() core.DeadLetterStore {
	if s == nil {
		return nil
	}
	return s.deadLetters
}

func (s *Service) TokenStore() core.TokenStore {
	if s == nil {
		return nil
	}
	return s.tokens
}

func (s *Service) InboundLogStore() core.InboundLogStore {
	if s == nil {
		return nil
	}
	return s.inboundLogs
}

func (s *Service) Commands() Commands {
	if s == nil {
		return Commands{}
	}
	return s.commands
}

func (s *Service) Queries() Queries {
	if s == nil {
		return Queries{}
	}
	return s.queries
}

// InboundHandler mounts the HTTP gateway surface. It fails when the
// service was built without an action executor.
func (s *Service) InboundHandler() (*transport.InboundHandler, error) {
	if s == nil || s.gateway == nil {
		return nil, fmt.Errorf("webhooks: inbound gateway is not configured")
	}
	return transport.NewInboundHandler(s.gateway, nil)
}
