package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	jsoniter "github.com/json-iterator/go"

	"github.com/mediguard/mediguard/backend/simulator"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// PostgresStore implements AlertStore using a PostgreSQL backend.
type PostgresStore struct {
	pool *pgxpool.Pool
}

const alertsSchema = `
	CREATE TABLE IF NOT EXISTS alerts (
		id                 TEXT PRIMARY KEY,
		ts                 TIMESTAMPTZ NOT NULL,
		level              TEXT NOT NULL,
		manufacturer       TEXT NOT NULL,
		manufacturer_phone TEXT,
		message            TEXT NOT NULL,
		data               JSONB
	)`

// NewPostgresStore connects, verifies the connection and ensures the alerts
// table exists.
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, err
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if _, err := pool.Exec(ctx, alertsSchema); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Append(ctx context.Context, alert *Alert) error {
	data, err := json.Marshal(alert.Event)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO alerts (id, ts, level, manufacturer, manufacturer_phone, message, data)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`
	_, err = s.pool.Exec(ctx, query,
		alert.ID, alert.Timestamp, alert.Level, alert.Manufacturer,
		nullable(alert.ManufacturerPhone), alert.Message, data,
	)
	return err
}

func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]*Alert, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, ts, level, manufacturer, COALESCE(manufacturer_phone, ''), message, data
		FROM alerts ORDER BY ts DESC LIMIT $1
	`
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []*Alert
	for rows.Next() {
		var a Alert
		var data []byte
		if err := rows.Scan(
			&a.ID, &a.Timestamp, &a.Level, &a.Manufacturer,
			&a.ManufacturerPhone, &a.Message, &data,
		); err != nil {
			return nil, err
		}
		if len(data) > 0 {
			var ev simulator.TestEvent
			if err := json.Unmarshal(data, &ev); err == nil {
				a.Event = ev
			}
		}
		alerts = append(alerts, &a)
	}
	return alerts, rows.Err()
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
