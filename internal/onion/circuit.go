package onion

import (
	"crypto/rsa"
	"math/rand"

	"github.com/HannahMarsh/simple-onion-routing/pkg/utils"
	"github.com/pkg/errors"
)

// CircuitLength is the number of relays every message is routed through.
const CircuitLength = 3

// RelayIdentity is what every party knows about a relay through the directory.
type RelayIdentity struct {
	ID        int
	PublicKey *rsa.PublicKey
}

// Circuit is an ordered path of distinct relays; Circuit[0] is the entry relay.
type Circuit []RelayIdentity

// IDs returns the relay ids in path order.
func (c Circuit) IDs() []int {
	return utils.Map(c, func(r RelayIdentity) int {
		return r.ID
	})
}

// HopAddresser maps a relay to the fixed-width address other relays forward to.
type HopAddresser interface {
	RelayAddress(id int) (string, error)
}

// SelectCircuit draws count distinct relays uniformly at random without replacement.
// knownRelays is not modified; relays sharing an id count once.
func SelectCircuit(knownRelays []RelayIdentity, count int) (Circuit, error) {
	seen := make(map[int]bool, len(knownRelays))
	candidates := utils.Filter(knownRelays, func(r RelayIdentity) bool {
		if seen[r.ID] {
			return false
		}
		seen[r.ID] = true
		return true
	})

	if count <= 0 || len(candidates) < count {
		return nil, errors.Wrapf(ErrInsufficientRelays, "onion.SelectCircuit(): need %d distinct relays, %d known", count, len(candidates))
	}

	// partial Fisher-Yates: the first count slots end up holding the draw
	for i := 0; i < count; i++ {
		j := i + rand.Intn(len(candidates)-i)
		candidates[i], candidates[j] = candidates[j], candidates[i]
	}

	return Circuit(candidates[:count:count]), nil
}

// BuildOnionMessage wraps message in one layer per relay of circuit.
// Layers are applied from the exit relay outwards, so the result must be sent to
// circuit[0], which peels first. The exit relay learns finalAddress; every other relay
// learns the address of the next relay in the circuit.
func BuildOnionMessage(circuit Circuit, finalAddress, message string, hops HopAddresser) (string, error) {
	if err := validateCircuit(circuit); err != nil {
		return "", err
	}

	envelope := message
	nextHop := finalAddress
	for i := len(circuit) - 1; i >= 0; i-- {
		relay := circuit[i]

		layer, err := BuildLayer(nextHop, envelope, relay.PublicKey)
		if err != nil {
			return "", errors.Wrapf(err, "onion.BuildOnionMessage(): failed to build layer for relay %d", relay.ID)
		}
		envelope = layer

		if nextHop, err = hops.RelayAddress(relay.ID); err != nil {
			return "", errors.Wrapf(err, "onion.BuildOnionMessage(): no address for relay %d", relay.ID)
		}
	}

	return envelope, nil
}

func validateCircuit(circuit Circuit) error {
	if len(circuit) != CircuitLength {
		return errors.Wrapf(ErrInvalidCircuit, "onion.BuildOnionMessage(): circuit has %d relays, expected %d", len(circuit), CircuitLength)
	}
	seen := make(map[int]bool, len(circuit))
	for _, r := range circuit {
		if seen[r.ID] {
			return errors.Wrapf(ErrInvalidCircuit, "onion.BuildOnionMessage(): relay %d appears twice", r.ID)
		}
		if r.PublicKey == nil {
			return errors.Wrapf(ErrInvalidCircuit, "onion.BuildOnionMessage(): relay %d has no public key", r.ID)
		}
		seen[r.ID] = true
	}
	return nil
}
