package directory

import (
	"context"
	"sync"

	"github.com/HannahMarsh/simple-onion-routing/config"
	"github.com/HannahMarsh/simple-onion-routing/internal/api/structs"
	"github.com/emirpasic/gods/maps/treemap"
	"github.com/pkg/errors"
)

// Store holds the directory's relay entries. Put replaces an entry with the same id;
// List returns entries ordered by id.
type Store interface {
	Put(ctx context.Context, relay structs.PublicRelayApi) error
	List(ctx context.Context) ([]structs.PublicRelayApi, error)
	Close() error
}

// NewStore opens the store selected by cfg.Driver.
func NewStore(cfg config.Store) (Store, error) {
	switch cfg.Driver {
	case config.StoreMemory, "":
		return NewMemoryStore(), nil
	case config.StoreBolt:
		return NewBoltStore(cfg.BoltPath)
	case config.StorePostgres:
		return NewPostgresStore(cfg.PostgresDSN)
	default:
		return nil, errors.Errorf("directory.NewStore(): unknown store driver %q", cfg.Driver)
	}
}

// MemoryStore keeps entries in a tree map keyed by relay id.
type MemoryStore struct {
	relays *treemap.Map
	mu     sync.RWMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		relays: treemap.NewWithIntComparator(),
	}
}

func (ms *MemoryStore) Put(_ context.Context, relay structs.PublicRelayApi) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.relays.Put(relay.ID, relay)
	return nil
}

func (ms *MemoryStore) List(_ context.Context) ([]structs.PublicRelayApi, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	relays := make([]structs.PublicRelayApi, 0, ms.relays.Size())
	it := ms.relays.Iterator()
	for it.Next() {
		relays = append(relays, it.Value().(structs.PublicRelayApi))
	}
	return relays, nil
}

func (ms *MemoryStore) Close() error {
	return nil
}
