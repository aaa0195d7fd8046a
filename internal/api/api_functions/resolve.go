package api_functions

import (
	"fmt"

	"github.com/HannahMarsh/simple-onion-routing/internal/onion"
	"github.com/pkg/errors"
)

// Resolver turns a fixed-width next-hop address into the URL of the party behind it.
type Resolver interface {
	Resolve(address string) (string, error)
}

// PortResolver resolves addresses with the overlay's port scheme: every party listens on
// Host, on the port its address encodes.
type PortResolver struct {
	Host  string
	Ports onion.PortMap
}

func (pr PortResolver) Resolve(address string) (string, error) {
	party, err := pr.Ports.Resolve(address)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("http://%s:%d", pr.Host, party.Port), nil
}

// StaticResolver resolves from a fixed address -> URL table.
type StaticResolver map[string]string

func (sr StaticResolver) Resolve(address string) (string, error) {
	if url, ok := sr[address]; ok {
		return url, nil
	}
	return "", errors.Wrapf(onion.ErrAddressResolution, "api_functions.StaticResolver.Resolve(): unknown address %q", address)
}
