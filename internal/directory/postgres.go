package directory

import (
	"context"
	"database/sql"

	"github.com/HannahMarsh/simple-onion-routing/internal/api/structs"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
)

const createRelaysTable = `
CREATE TABLE IF NOT EXISTS relays (
	id            INTEGER PRIMARY KEY,
	public_key    TEXT NOT NULL,
	registered_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const upsertRelay = `
INSERT INTO relays (id, public_key, registered_at) VALUES ($1, $2, now())
ON CONFLICT (id) DO UPDATE SET public_key = EXCLUDED.public_key, registered_at = EXCLUDED.registered_at`

const listRelays = `SELECT id, public_key FROM relays ORDER BY id`

// PostgresStore keeps entries in a relays table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "directory.NewPostgresStore(): failed to open database")
	}
	if _, err = db.Exec(createRelaysTable); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "directory.NewPostgresStore(): failed to create relays table")
	}
	return &PostgresStore{db: db}, nil
}

func (ps *PostgresStore) Put(ctx context.Context, relay structs.PublicRelayApi) error {
	if _, err := ps.db.ExecContext(ctx, upsertRelay, relay.ID, relay.PublicKey); err != nil {
		return errors.Wrapf(err, "directory.PostgresStore.Put(): failed to store relay %d", relay.ID)
	}
	return nil
}

func (ps *PostgresStore) List(ctx context.Context) ([]structs.PublicRelayApi, error) {
	rows, err := ps.db.QueryContext(ctx, listRelays)
	if err != nil {
		return nil, errors.Wrap(err, "directory.PostgresStore.List(): query failed")
	}
	defer rows.Close()

	relays := make([]structs.PublicRelayApi, 0)
	for rows.Next() {
		var relay structs.PublicRelayApi
		if err = rows.Scan(&relay.ID, &relay.PublicKey); err != nil {
			return nil, errors.Wrap(err, "directory.PostgresStore.List(): scan failed")
		}
		relays = append(relays, relay)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "directory.PostgresStore.List(): iteration failed")
	}
	return relays, nil
}

func (ps *PostgresStore) Close() error {
	return ps.db.Close()
}
