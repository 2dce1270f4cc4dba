package store

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const notifyChannel = "kv_changes"

// Schema creates the node table used by PostgresStore.
const Schema = `
	CREATE TABLE IF NOT EXISTS kv_nodes (
		path       TEXT PRIMARY KEY,
		parent     TEXT NOT NULL,
		data       JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_kv_nodes_parent ON kv_nodes(parent);
`

// PostgresStore keeps one JSONB row per node. Changes are announced with
// NOTIFY inside the writing transaction, so watchers only see committed data.
type PostgresStore struct {
	pool   *pgxpool.Pool
	keys   *KeyGenerator
	logger *zap.Logger
}

// NewPostgresStore wraps an open pool. The schema must already exist.
func NewPostgresStore(pool *pgxpool.Pool, keys *KeyGenerator, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{pool: pool, keys: keys, logger: logger}
}

func (s *PostgresStore) Get(ctx context.Context, path string, dest interface{}) (bool, error) {
	path, err := CleanPath(path)
	if err != nil {
		return false, err
	}
	data, err := s.getRaw(ctx, path)
	if err != nil || data == nil {
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, errors.Wrapf(err, "Cannot decode %s", path)
	}
	return true, nil
}

func (s *PostgresStore) getRaw(ctx context.Context, path string) ([]byte, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM kv_nodes WHERE path = $1`, path).Scan(&data)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "Cannot read %s", path)
	}
	return data, nil
}

func (s *PostgresStore) Set(ctx context.Context, path string, value interface{}) error {
	path, err := CleanPath(path)
	if err != nil {
		return err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "Cannot encode %s", path)
	}

	query := `
		INSERT INTO kv_nodes (path, parent, data, updated_at)
		VALUES ($1, $2, $3::jsonb, NOW())
		ON CONFLICT (path) DO UPDATE
		SET data = EXCLUDED.data, updated_at = NOW()
	`
	return s.writeAndNotify(ctx, EventPut, path, query, path, parentOf(path), data)
}

func (s *PostgresStore) Create(ctx context.Context, path string, value interface{}) (bool, error) {
	path, err := CleanPath(path)
	if err != nil {
		return false, err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return false, errors.Wrapf(err, "Cannot encode %s", path)
	}
	payload, err := json.Marshal(Event{Type: EventPut, Path: path})
	if err != nil {
		return false, errors.Wrap(err, "Cannot encode change event")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, errors.Wrap(err, "Cannot begin transaction")
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO kv_nodes (path, parent, data, updated_at)
		VALUES ($1, $2, $3::jsonb, NOW())
		ON CONFLICT (path) DO NOTHING
	`, path, parentOf(path), data)
	if err != nil {
		return false, errors.Wrapf(err, "Cannot create %s", path)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}
	if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, string(payload)); err != nil {
		return false, errors.Wrap(err, "Cannot notify change")
	}
	if err := tx.Commit(ctx); err != nil {
		return false, errors.Wrapf(err, "Cannot commit %s", path)
	}
	return true, nil
}

func (s *PostgresStore) Update(ctx context.Context, path string, fields map[string]interface{}) error {
	path, err := CleanPath(path)
	if err != nil {
		return err
	}
	patch, err := mergeFields(nil, fields)
	if err != nil {
		return errors.Wrapf(err, "Cannot update %s", path)
	}

	query := `
		INSERT INTO kv_nodes (path, parent, data, updated_at)
		VALUES ($1, $2, $3::jsonb, NOW())
		ON CONFLICT (path) DO UPDATE
		SET data = kv_nodes.data || EXCLUDED.data, updated_at = NOW()
	`
	return s.writeAndNotify(ctx, EventPut, path, query, path, parentOf(path), patch)
}

func (s *PostgresStore) Delete(ctx context.Context, path string) error {
	path, err := CleanPath(path)
	if err != nil {
		return err
	}
	query := `DELETE FROM kv_nodes WHERE path = $1 OR starts_with(path, $1 || '/')`
	return s.writeAndNotify(ctx, EventDelete, path, query, path)
}

func (s *PostgresStore) writeAndNotify(ctx context.Context, eventType, path, query string, args ...interface{}) error {
	payload, err := json.Marshal(Event{Type: eventType, Path: path})
	if err != nil {
		return errors.Wrap(err, "Cannot encode change event")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "Cannot begin transaction")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return errors.Wrapf(err, "Cannot write %s", path)
	}
	if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, string(payload)); err != nil {
		return errors.Wrap(err, "Cannot notify change")
	}
	if err := tx.Commit(ctx); err != nil {
		return errors.Wrapf(err, "Cannot commit %s", path)
	}
	return nil
}

func (s *PostgresStore) Children(ctx context.Context, path string) (map[string]json.RawMessage, error) {
	path, err := CleanPath(path)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `SELECT path, data FROM kv_nodes WHERE parent = $1`, path)
	if err != nil {
		return nil, errors.Wrapf(err, "Cannot list %s", path)
	}
	defer rows.Close()

	out := make(map[string]json.RawMessage)
	for rows.Next() {
		var p string
		var data []byte
		if err := rows.Scan(&p, &data); err != nil {
			return nil, errors.Wrapf(err, "Cannot scan child of %s", path)
		}
		out[lastSegment(p)] = data
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "Cannot list %s", path)
	}
	return out, nil
}

func (s *PostgresStore) Push(ctx context.Context, path string, value interface{}) (string, error) {
	key := s.keys.Next()
	if err := s.Set(ctx, Join(path, key), value); err != nil {
		return "", err
	}
	return key, nil
}

// Watch holds a dedicated pool connection in LISTEN mode for the lifetime of ctx.
func (s *PostgresStore) Watch(ctx context.Context, path string) (<-chan Event, error) {
	path, err := CleanPath(path)
	if err != nil {
		return nil, err
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "Cannot acquire listener connection")
	}
	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		conn.Release()
		return nil, errors.Wrap(err, "Cannot listen for changes")
	}

	ch := make(chan Event, watchBuffer)
	go func() {
		defer close(ch)
		defer func() {
			_, _ = conn.Exec(context.Background(), "UNLISTEN *")
			conn.Release()
		}()

		for {
			n, err := conn.Conn().WaitForNotification(ctx)
			if err != nil {
				if ctx.Err() == nil {
					s.logger.Warn("Change feed interrupted", zap.String("path", path), zap.Error(err))
				}
				return
			}

			var ev Event
			if err := json.Unmarshal([]byte(n.Payload), &ev); err != nil {
				s.logger.Warn("Malformed change notification", zap.String("payload", n.Payload))
				continue
			}
			if !within(ev.Path, path) && !within(path, ev.Path) {
				continue
			}
			if ev.Type == EventPut {
				data, err := s.getRaw(ctx, ev.Path)
				if err != nil || data == nil {
					continue
				}
				ev.Data = data
			}

			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close is a no-op; the pool is owned by the caller.
func (s *PostgresStore) Close() error {
	return nil
}
