package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strings"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun/dialect/pgdialect"

	webhookmigrations "github.com/goliatone/go-webhooks/migrations"
)

// PostgresConfig carries the connection settings for NewPostgresClient
// and satisfies the persistence client's config contract.
type PostgresConfig struct {
	DSN            string
	Debug          bool
	PingTimeout    time.Duration
	OtelIdentifier string
}

func (c PostgresConfig) GetDebug() bool { return c.Debug }

func (c PostgresConfig) GetDriver() string { return "postgres" }

func (c PostgresConfig) GetServer() string { return c.DSN }

func (c PostgresConfig) GetPingTimeout() time.Duration {
	if c.PingTimeout <= 0 {
		return 5 * time.Second
	}
	return c.PingTimeout
}

func (c PostgresConfig) GetOtelIdentifier() string {
	if strings.TrimSpace(c.OtelIdentifier) == "" {
		return "go-webhooks"
	}
	return c.OtelIdentifier
}

// NewPostgresClient opens a lib/pq connection, wraps it in a persistence
// client on the postgres dialect, and registers the embedded postgres
// migration tree. The caller runs client.Migrate and owns the close.
func NewPostgresClient(ctx context.Context, cfg PostgresConfig) (*persistence.Client, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("sqlstore: postgres dsn is required")
	}
	sqlDB, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open postgres connection: %w", err)
	}
	client, err := persistence.New(cfg, sqlDB, pgdialect.New())
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	_, err = webhookmigrations.Register(ctx, func(_ context.Context, dialect string, _ string, fsys fs.FS) error {
		if dialect != webhookmigrations.DialectPostgres {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	}, webhookmigrations.WithValidationTargets(webhookmigrations.DialectPostgres))
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
