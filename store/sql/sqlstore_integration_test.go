package sqlstore_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"testing"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/goliatone/go-webhooks/core"
	webhookmigrations "github.com/goliatone/go-webhooks/migrations"
	sqlstore "github.com/goliatone/go-webhooks/store/sql"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

type testPersistenceConfig struct {
	driver string
	server string
}

func (c testPersistenceConfig) GetDebug() bool {
	return false
}

func (c testPersistenceConfig) GetDriver() string {
	return c.driver
}

func (c testPersistenceConfig) GetServer() string {
	return c.server
}

func (c testPersistenceConfig) GetPingTimeout() time.Duration {
	return time.Second
}

func (c testPersistenceConfig) GetOtelIdentifier() string {
	return "go-webhooks-tests"
}

func newSQLiteClient(t *testing.T) (*persistence.Client, func()) {
	t.Helper()

	dsn := fmt.Sprintf(
		"file:webhooks-test-%d?mode=memory&cache=shared&_foreign_keys=on",
		time.Now().UnixNano(),
	)
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	cfg := testPersistenceConfig{
		driver: "sqlite3",
		server: dsn,
	}
	client, err := persistence.New(cfg, sqlDB, sqlitedialect.New())
	if err != nil {
		_ = sqlDB.Close()
		t.Fatalf("new persistence client: %v", err)
	}

	ctx := context.Background()
	_, err = webhookmigrations.Register(ctx, func(_ context.Context, dialect string, _ string, fsys fs.FS) error {
		if dialect != webhookmigrations.DialectSQLite {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	}, webhookmigrations.WithValidationTargets(webhookmigrations.DialectSQLite))
	if err != nil {
		_ = client.Close()
		t.Fatalf("register migrations: %v", err)
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		t.Fatalf("migrate: %v", err)
	}

	return client, func() {
		_ = client.Close()
	}
}

func TestMigrationSmokeApplySQLite(t *testing.T) {
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	for _, table := range []string{
		"webhook_endpoints",
		"webhook_delivery_attempts",
		"webhook_dead_letters",
		"inbound_tokens",
		"inbound_logs",
	} {
		var tableName string
		if err := client.DB().NewRaw(
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?",
			table,
		).Scan(context.Background(), &tableName); err != nil {
			t.Fatalf("query sqlite master for %s: %v", table, err)
		}
		if tableName != table {
			t.Fatalf("expected %s table, got %q", table, tableName)
		}
	}
}

func TestEndpointStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	store := factory.EndpointStore()
	if store == nil {
		t.Fatal("expected endpoint store from factory")
	}

	endpoint, err := store.Create(ctx, core.Endpoint{
		OwnerID: "tenant-1",
		URL:     "https://hooks.acme.example.com/cs",
		Events:  []core.EventType{core.EventCustomerCreated, core.EventHealthScoreChanged},
		CustomHeaders: map[string]string{
			"X-Team": "success",
		},
		Secret: "whsec_abc123",
		Active: true,
	})
	if err != nil {
		t.Fatalf("create endpoint: %v", err)
	}
	if endpoint.ID == "" {
		t.Fatal("expected generated endpoint id")
	}

	loaded, err := store.GetByID(ctx, endpoint.ID)
	if err != nil {
		t.Fatalf("get endpoint: %v", err)
	}
	if loaded.URL != endpoint.URL || loaded.CustomHeaders["X-Team"] != "success" {
		t.Fatalf("unexpected endpoint round trip: %+v", loaded)
	}
	if len(loaded.Events) != 2 {
		t.Fatalf("expected two subscribed events, got %v", loaded.Events)
	}

	subscribed, err := store.ListActiveByEvent(ctx, "tenant-1", core.EventCustomerCreated)
	if err != nil {
		t.Fatalf("list active by event: %v", err)
	}
	if len(subscribed) != 1 || subscribed[0].ID != endpoint.ID {
		t.Fatalf("expected one subscriber, got %+v", subscribed)
	}

	unsubscribed, err := store.ListActiveByEvent(ctx, "tenant-1", core.EventTaskCompleted)
	if err != nil {
		t.Fatalf("list active by event: %v", err)
	}
	if len(unsubscribed) != 0 {
		t.Fatalf("expected no subscribers for unsubscribed event, got %+v", unsubscribed)
	}

	rotated, err := store.RotateSecret(ctx, endpoint.ID, "whsec_next")
	if err != nil {
		t.Fatalf("rotate secret: %v", err)
	}
	if rotated.Secret != "whsec_next" {
		t.Fatalf("expected rotated secret, got %q", rotated.Secret)
	}

	deactivated, err := store.SetActive(ctx, endpoint.ID, false)
	if err != nil {
		t.Fatalf("set active: %v", err)
	}
	if deactivated.Active {
		t.Fatal("expected inactive endpoint")
	}
	subscribed, err = store.ListActiveByEvent(ctx, "tenant-1", core.EventCustomerCreated)
	if err != nil {
		t.Fatalf("list active by event: %v", err)
	}
	if len(subscribed) != 0 {
		t.Fatal("inactive endpoints must not be listed for dispatch")
	}

	if err := store.Delete(ctx, endpoint.ID); err != nil {
		t.Fatalf("delete endpoint: %v", err)
	}
	if _, err := store.GetByID(ctx, endpoint.ID); !errors.Is(err, core.ErrEndpointNotFound) {
		t.Fatalf("expected ErrEndpointNotFound, got %v", err)
	}
}

func TestDeliveryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	store := factory.DeliveryStore()

	attempt, err := store.Create(ctx, core.DeliveryAttempt{
		EndpointID: "ep-1",
		OwnerID:    "tenant-1",
		EventType:  core.EventCustomerCreated,
		Payload:    []byte(`{"event":"customer.created"}`),
	})
	if err != nil {
		t.Fatalf("create attempt: %v", err)
	}
	if attempt.Status != core.DeliveryStatusPending {
		t.Fatalf("expected pending status, got %s", attempt.Status)
	}

	next := time.Now().UTC().Add(5 * time.Second).Truncate(time.Second)
	attempt.Status = core.DeliveryStatusRetrying
	attempt.RetryCount = 1
	attempt.LastError = "HTTP 503"
	attempt.NextAttemptAt = &next
	updated, err := store.Update(ctx, attempt)
	if err != nil {
		t.Fatalf("update attempt: %v", err)
	}
	if updated.RetryCount != 1 || updated.NextAttemptAt == nil {
		t.Fatalf("unexpected updated attempt: %+v", updated)
	}

	loaded, err := store.GetByID(ctx, attempt.ID)
	if err != nil {
		t.Fatalf("get attempt: %v", err)
	}
	if loaded.Status != core.DeliveryStatusRetrying || loaded.LastError != "HTTP 503" {
		t.Fatalf("unexpected attempt round trip: %+v", loaded)
	}
	if loaded.NextAttemptAt == nil || !loaded.NextAttemptAt.Equal(next) {
		t.Fatalf("expected next attempt at %v, got %v", next, loaded.NextAttemptAt)
	}

	byEndpoint, err := store.ListByEndpoint(ctx, "ep-1", 10)
	if err != nil {
		t.Fatalf("list by endpoint: %v", err)
	}
	if len(byEndpoint) != 1 {
		t.Fatalf("expected one attempt, got %d", len(byEndpoint))
	}
	byOwner, err := store.ListByOwner(ctx, "tenant-1", 10)
	if err != nil {
		t.Fatalf("list by owner: %v", err)
	}
	if len(byOwner) != 1 {
		t.Fatalf("expected one attempt, got %d", len(byOwner))
	}

	if _, err := store.GetByID(ctx, "missing"); !errors.Is(err, core.ErrDeliveryNotFound) {
		t.Fatalf("expected ErrDeliveryNotFound, got %v", err)
	}
}

func TestDeadLetterStoreIdempotentCreateAndResolve(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	store := factory.DeadLetterStore()

	entry, err := store.Create(ctx, core.DeadLetterEntry{
		AttemptID:  "attempt-1",
		EndpointID: "ep-1",
		OwnerID:    "tenant-1",
		EventType:  core.EventCustomerCreated,
		Payload:    []byte(`{}`),
		Error:      "HTTP 500 after max retries",
	})
	if err != nil {
		t.Fatalf("create dead letter: %v", err)
	}

	// Re-creating for the same attempt returns the existing entry.
	duplicate, err := store.Create(ctx, core.DeadLetterEntry{
		AttemptID:  "attempt-1",
		EndpointID: "ep-1",
		OwnerID:    "tenant-1",
		EventType:  core.EventCustomerCreated,
		Payload:    []byte(`{}`),
		Error:      "HTTP 500 after max retries",
	})
	if err != nil {
		t.Fatalf("duplicate create: %v", err)
	}
	if duplicate.ID != entry.ID {
		t.Fatalf("expected idempotent create, got %q and %q", entry.ID, duplicate.ID)
	}

	unresolved, err := store.List(ctx, "tenant-1", false, 10)
	if err != nil {
		t.Fatalf("list unresolved: %v", err)
	}
	if len(unresolved) != 1 {
		t.Fatalf("expected one unresolved entry, got %d", len(unresolved))
	}

	resolved, err := store.Resolve(ctx, entry.ID, "redelivered manually", time.Now().UTC())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !resolved.Resolved || resolved.ResolvedAt == nil || resolved.Note != "redelivered manually" {
		t.Fatalf("unexpected resolved entry: %+v", resolved)
	}

	unresolved, err = store.List(ctx, "tenant-1", false, 10)
	if err != nil {
		t.Fatalf("list unresolved: %v", err)
	}
	if len(unresolved) != 0 {
		t.Fatal("resolved entries must be excluded by default")
	}
	all, err := store.List(ctx, "tenant-1", true, 10)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected one entry with resolved included, got %d", len(all))
	}
}

func TestTokenStoreUniquenessAndRevocation(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	store := factory.TokenStore()

	token, err := store.Create(ctx, core.InboundToken{
		OwnerID:    "tenant-1",
		Provider:   "zendesk",
		Token:      "tok_primary",
		ActionType: core.ActionCreateTask,
		FieldMapping: map[string]string{
			"ticket.subject": "title",
		},
		Active: true,
	})
	if err != nil {
		t.Fatalf("create token: %v", err)
	}

	if _, err := store.Create(ctx, core.InboundToken{
		OwnerID:    "tenant-2",
		Provider:   "intercom",
		Token:      "tok_primary",
		ActionType: core.ActionCreateTask,
		Active:     true,
	}); err == nil {
		t.Fatal("expected unique token constraint violation")
	}

	resolved, err := store.GetByToken(ctx, "zendesk", "tok_primary")
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if resolved.ID != token.ID || resolved.FieldMapping["ticket.subject"] != "title" {
		t.Fatalf("unexpected token round trip: %+v", resolved)
	}
	if _, err := store.GetByToken(ctx, "intercom", "tok_primary"); !errors.Is(err, core.ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound for provider mismatch, got %v", err)
	}

	firstRevokeAt := time.Now().UTC().Add(-time.Minute).Truncate(time.Second)
	revoked, err := store.Revoke(ctx, token.ID, firstRevokeAt)
	if err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if revoked.Active || revoked.RevokedAt == nil {
		t.Fatalf("unexpected revoked token: %+v", revoked)
	}

	// A second revoke keeps the original timestamp.
	again, err := store.Revoke(ctx, token.ID, time.Now().UTC())
	if err != nil {
		t.Fatalf("second revoke: %v", err)
	}
	if again.RevokedAt == nil || !again.RevokedAt.Equal(*revoked.RevokedAt) {
		t.Fatalf("expected first revocation timestamp preserved, got %v", again.RevokedAt)
	}
}

func TestInboundLogStoreOutcome(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	store := factory.InboundLogStore()

	log, err := store.Create(ctx, core.InboundLog{
		TokenID: "tok-1",
		OwnerID: "tenant-1",
		Payload: []byte(`{"company":{"name":"Acme"}}`),
	})
	if err != nil {
		t.Fatalf("create log: %v", err)
	}
	if log.Processed {
		t.Fatal("expected unprocessed log on create")
	}

	marked, err := store.MarkOutcome(ctx, log.ID, true, "record-9", "", time.Now().UTC())
	if err != nil {
		t.Fatalf("mark outcome: %v", err)
	}
	if !marked.Processed || marked.RecordID != "record-9" || marked.Error != "" {
		t.Fatalf("unexpected marked log: %+v", marked)
	}

	logs, err := store.ListByToken(ctx, "tok-1", 10)
	if err != nil {
		t.Fatalf("list by token: %v", err)
	}
	if len(logs) != 1 || string(logs[0].Payload) != `{"company":{"name":"Acme"}}` {
		t.Fatalf("unexpected logs: %+v", logs)
	}
}
