package directory

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"time"

	"github.com/HannahMarsh/simple-onion-routing/internal/api/structs"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

var bucketRelays = []byte("relays")

// BoltStore persists entries in a bbolt file, one JSON value per relay under its
// big-endian id so that a cursor walks them in id order.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) the database file at path.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "directory.NewBoltStore(): failed to open %s", path)
	}
	if err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketRelays)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "directory.NewBoltStore(): failed to create bucket")
	}
	return &BoltStore{db: db}, nil
}

func relayKey(id int) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(id))
	return key
}

func (bs *BoltStore) Put(_ context.Context, relay structs.PublicRelayApi) error {
	data, err := json.Marshal(relay)
	if err != nil {
		return errors.Wrap(err, "directory.BoltStore.Put(): failed to marshal relay")
	}
	return bs.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRelays).Put(relayKey(relay.ID), data)
	})
}

func (bs *BoltStore) List(_ context.Context) ([]structs.PublicRelayApi, error) {
	relays := make([]structs.PublicRelayApi, 0)
	err := bs.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRelays).ForEach(func(_, v []byte) error {
			var relay structs.PublicRelayApi
			if err := json.Unmarshal(v, &relay); err != nil {
				return errors.Wrap(err, "directory.BoltStore.List(): corrupt entry")
			}
			relays = append(relays, relay)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return relays, nil
}

func (bs *BoltStore) Close() error {
	return bs.db.Close()
}
