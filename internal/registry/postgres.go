package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"segweaver/internal/cluster"
)

// Schema creates the table used by PostgresRegistry.
const Schema = `CREATE TABLE IF NOT EXISTS cluster_models (
	name       TEXT PRIMARY KEY,
	algorithm  TEXT NOT NULL,
	k          INTEGER NOT NULL,
	model      JSONB NOT NULL,
	saved_at   TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresRegistry stores models in the cluster_models table.
type PostgresRegistry struct {
	db *pgxpool.Pool
}

// NewPostgresRegistry wraps an existing pool. Call Migrate once before use.
func NewPostgresRegistry(db *pgxpool.Pool) *PostgresRegistry {
	return &PostgresRegistry{db: db}
}

// ConnectPostgresRegistry opens a pool for dsn, checks connectivity and
// applies Schema.
func ConnectPostgresRegistry(ctx context.Context, dsn string) (*PostgresRegistry, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect registry: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping registry: %w", err)
	}
	r := NewPostgresRegistry(pool)
	if err := r.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return r, nil
}

// Migrate creates the cluster_models table if it does not exist.
func (r *PostgresRegistry) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("migrate registry: %w", err)
	}
	return nil
}

// Close releases the pool.
func (r *PostgresRegistry) Close() {
	r.db.Close()
}

func (r *PostgresRegistry) Save(ctx context.Context, model *cluster.Model, name string) error {
	const op = "registry save"
	if err := checkName(op, name); err != nil {
		return err
	}
	if err := checkModel(op, model); err != nil {
		return err
	}
	doc, err := sonic.Marshal(model)
	if err != nil {
		return fmt.Errorf("marshal model %s: %w", name, err)
	}
	_, err = r.db.Exec(ctx, `INSERT INTO cluster_models (name, algorithm, k, model, saved_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (name) DO UPDATE
		SET algorithm = EXCLUDED.algorithm, k = EXCLUDED.k, model = EXCLUDED.model, saved_at = EXCLUDED.saved_at`,
		name, string(model.Algorithm), model.K, string(doc))
	if err != nil {
		return fmt.Errorf("save model %s: %w", name, err)
	}
	return nil
}

func (r *PostgresRegistry) Load(ctx context.Context, name string) (*cluster.Model, error) {
	const op = "registry load"
	if err := checkName(op, name); err != nil {
		return nil, err
	}
	var doc string
	err := r.db.QueryRow(ctx, "SELECT model::text FROM cluster_models WHERE name = $1", name).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound(op, name)
		}
		return nil, fmt.Errorf("load model %s: %w", name, err)
	}
	var model cluster.Model
	if err := sonic.UnmarshalString(doc, &model); err != nil {
		return nil, fmt.Errorf("decode model %s: %w", name, err)
	}
	if err := checkModel(op, &model); err != nil {
		return nil, fmt.Errorf("invalid model in database: %w", err)
	}
	return &model, nil
}

func (r *PostgresRegistry) List(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, "SELECT name FROM cluster_models ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}
