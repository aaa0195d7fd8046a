package onion

import (
	"github.com/HannahMarsh/simple-onion-routing/internal/onion/keys"
	"github.com/pkg/errors"
)

var (
	// ErrInsufficientRelays means fewer distinct relays are known than a circuit needs.
	ErrInsufficientRelays = errors.New("insufficient relays")
	// ErrInvalidCircuit means a circuit is not CircuitLength distinct relays.
	ErrInvalidCircuit = errors.New("invalid circuit")
	// ErrFraming means an envelope or decrypted body violates the fixed-width layout.
	ErrFraming = errors.New("framing error")
	// ErrDecryption means a layer could not be decrypted with the given key.
	ErrDecryption = keys.ErrDecryption
	// ErrAddressResolution means a next-hop address does not name a reachable party.
	ErrAddressResolution = errors.New("address resolution failed")
)
