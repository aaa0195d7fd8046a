package directory

import (
	"context"
	"log/slog"

	"github.com/HannahMarsh/simple-onion-routing/internal/api/structs"
	"github.com/HannahMarsh/simple-onion-routing/internal/onion/keys"
	"github.com/pkg/errors"
)

// ErrInvalidRelay means a registration carries a negative id or an unparseable public key.
var ErrInvalidRelay = errors.New("invalid relay registration")

// Directory is the registry relays announce themselves to and senders read circuits from.
type Directory struct {
	store Store
}

func NewDirectory(store Store) *Directory {
	return &Directory{
		store: store,
	}
}

// RegisterRelay adds relay, or replaces the entry with the same id. A restarted relay
// comes back with a fresh key pair, so the newest registration wins.
func (d *Directory) RegisterRelay(ctx context.Context, relay structs.PublicRelayApi) error {
	if relay.ID < 0 {
		return errors.Wrapf(ErrInvalidRelay, "directory.RegisterRelay(): negative id %d", relay.ID)
	}
	if _, err := keys.DecodePublicKey(relay.PublicKey); err != nil {
		return errors.Wrapf(ErrInvalidRelay, "directory.RegisterRelay(): relay %d: %v", relay.ID, err)
	}
	if err := d.store.Put(ctx, relay); err != nil {
		return errors.Wrap(err, "directory.RegisterRelay(): failed to store relay")
	}
	slog.Info("Registered relay", "id", relay.ID)
	return nil
}

// GetRelays returns every registered relay ordered by id.
func (d *Directory) GetRelays(ctx context.Context) (structs.RelayListApi, error) {
	relays, err := d.store.List(ctx)
	if err != nil {
		return structs.RelayListApi{}, errors.Wrap(err, "directory.GetRelays(): failed to list relays")
	}
	return structs.RelayListApi{Relays: relays}, nil
}

func (d *Directory) Close() error {
	return d.store.Close()
}
