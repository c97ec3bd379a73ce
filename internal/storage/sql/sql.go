package sql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	"go.opentelemetry.io/otel/attribute"

	// import the postgres driver - "pgx"
	_ "github.com/jackc/pgx/v5/stdlib"

	// import the sqlite driver - "sqlite"
	_ "modernc.org/sqlite"

	"github.com/BenMacKenzie/db-mlops/internal/abstractions"
	"github.com/BenMacKenzie/db-mlops/internal/storage/sql/schemas"
)

const (
	// These are the only drivers currently supported
	SQLITE_DRIVER   = "sqlite"
	POSTGRES_DRIVER = "pgx"

	TABLE_PROJECTS = "projects"

	COLUMN_JOB_ID = "job_id"

	defaultPingTimeout = 1 * time.Second
)

type SQLStorage struct {
	sqlConfig *SQLDatabaseConfig
	pool      *sql.DB
	logger    *slog.Logger
	ctx       context.Context
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func dbSystem(driver string) string {
	if driver == POSTGRES_DRIVER {
		return "postgresql"
	}
	return driver
}

func NewStorage(config map[string]any, logger *slog.Logger) (abstractions.Storage, error) {
	var sqlConfig SQLDatabaseConfig
	err := mapstructure.Decode(config, &sqlConfig)
	if err != nil {
		return nil, err
	}

	// check that the driver is supported
	switch sqlConfig.Driver {
	case SQLITE_DRIVER:
		break
	case POSTGRES_DRIVER:
		break
	default:
		return nil, getUnsupportedDriverError(sqlConfig.Driver)
	}

	logger.Info("Creating SQL storage", "driver", sqlConfig.Driver, "url", sqlConfig.URL)

	otelOpts := []otelsql.Option{
		otelsql.WithAttributes(attribute.String("db.system", dbSystem(sqlConfig.Driver))),
	}
	if sqlConfig.DatabaseName != "" {
		otelOpts = append(otelOpts, otelsql.WithDBName(sqlConfig.DatabaseName))
	}
	pool, err := otelsql.Open(sqlConfig.Driver, sqlConfig.URL, otelOpts...)
	if err != nil {
		return nil, err
	}

	if sqlConfig.ConnMaxLifetime != nil {
		pool.SetConnMaxLifetime(*sqlConfig.ConnMaxLifetime)
	}
	if sqlConfig.MaxIdleConns != nil {
		pool.SetMaxIdleConns(*sqlConfig.MaxIdleConns)
	}
	if sqlConfig.MaxOpenConns != nil {
		pool.SetMaxOpenConns(*sqlConfig.MaxOpenConns)
	}

	storage := &SQLStorage{
		sqlConfig: &sqlConfig,
		pool:      pool,
		logger:    logger,
		ctx:       context.Background(),
	}

	// ping the database to verify the DSN provided by the user is valid and the server is accessible
	pingTimeout := defaultPingTimeout
	if sqlConfig.PingTimeout != nil {
		pingTimeout = *sqlConfig.PingTimeout
	}
	logger.Info("Pinging SQL storage", "driver", sqlConfig.Driver, "url", sqlConfig.URL)
	if err := storage.Ping(pingTimeout); err != nil {
		_ = pool.Close()
		return nil, err
	}

	logger.Info("Ensuring schemas are created", "driver", sqlConfig.Driver, "url", sqlConfig.URL)
	if err := storage.EnsureSchema(); err != nil {
		_ = pool.Close()
		return nil, err
	}

	return storage, nil
}

func (s *SQLStorage) WithLogger(logger *slog.Logger) abstractions.Storage {
	return &SQLStorage{
		sqlConfig: s.sqlConfig,
		pool:      s.pool,
		logger:    logger,
		ctx:       s.ctx,
	}
}

func (s *SQLStorage) WithContext(ctx context.Context) abstractions.Storage {
	return &SQLStorage{
		sqlConfig: s.sqlConfig,
		pool:      s.pool,
		logger:    s.logger,
		ctx:       ctx,
	}
}

// Ping the database to verify DSN provided by the user is valid and the
// server accessible.
func (s *SQLStorage) Ping(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()

	return s.pool.PingContext(ctx)
}

func (s *SQLStorage) GetDatasourceName() string {
	return s.sqlConfig.Driver
}

func (s *SQLStorage) exec(q queryer, query string, args ...any) (sql.Result, error) {
	return q.ExecContext(s.ctx, rebind(s.sqlConfig.Driver, query), args...)
}

func (s *SQLStorage) query(q queryer, query string, args ...any) (*sql.Rows, error) {
	return q.QueryContext(s.ctx, rebind(s.sqlConfig.Driver, query), args...)
}

func (s *SQLStorage) queryRow(q queryer, query string, args ...any) *sql.Row {
	return q.QueryRowContext(s.ctx, rebind(s.sqlConfig.Driver, query), args...)
}

// EnsureSchema creates the tables and then adds the columns that older databases
// do not have yet. Running it again changes nothing.
func (s *SQLStorage) EnsureSchema() error {
	schema := schemas.SchemaForDriver(s.sqlConfig.Driver)
	if schema == "" {
		return getUnsupportedDriverError(s.sqlConfig.Driver)
	}
	if _, err := s.pool.ExecContext(s.ctx, schema); err != nil {
		return fmt.Errorf("failed to create the %s table: %w", TABLE_PROJECTS, err)
	}

	exists, err := s.columnExists(COLUMN_JOB_ID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	s.logger.Info("Adding missing column", "table", TABLE_PROJECTS, "column", COLUMN_JOB_ID)
	if _, err := s.pool.ExecContext(s.ctx, schemas.ADD_JOB_ID_COLUMN); err != nil {
		// another instance may have added the column in the meantime
		if exists, probeErr := s.columnExists(COLUMN_JOB_ID); probeErr == nil && exists {
			return nil
		}
		return fmt.Errorf("failed to add the %s column: %w", COLUMN_JOB_ID, err)
	}
	return nil
}

func (s *SQLStorage) columnExists(column string) (bool, error) {
	var count int
	if err := s.pool.QueryRowContext(s.ctx, schemas.ColumnExistsForDriver(s.sqlConfig.Driver), column).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check for the %s column: %w", column, err)
	}
	return count > 0, nil
}

func (s *SQLStorage) Close() error {
	return s.pool.Close()
}
