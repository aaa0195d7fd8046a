package onion

import (
	"fmt"

	"github.com/pkg/errors"
)

type PartyKind string

const (
	RelayParty PartyKind = "relay"
	UserParty  PartyKind = "user"
)

// Party is the participant an address resolves to.
type Party struct {
	Kind PartyKind
	ID   int
	Port int
}

func (p Party) String() string {
	return fmt.Sprintf("%s %d (port %d)", p.Kind, p.ID, p.Port)
}

// PortMap is the address scheme of the overlay: relay i listens on BaseRelayPort+i and
// user i on BaseUserPort+i. Addresses on the wire are those port numbers, zero-padded.
type PortMap struct {
	BaseRelayPort int
	BaseUserPort  int
	NumRelays     int // relay ids are 0..NumRelays-1
	NumUsers      int // user ids are 0..NumUsers-1
}

func (pm PortMap) RelayPort(id int) int {
	return pm.BaseRelayPort + id
}

func (pm PortMap) UserPort(id int) int {
	return pm.BaseUserPort + id
}

// RelayAddress returns the wire address of relay id.
func (pm PortMap) RelayAddress(id int) (string, error) {
	return EncodeAddress(pm.RelayPort(id))
}

// UserAddress returns the wire address of user id.
func (pm PortMap) UserAddress(id int) (string, error) {
	return EncodeAddress(pm.UserPort(id))
}

// Resolve maps a wire address back to the relay or user listening on that port.
// The two address spaces are told apart only by port range.
func (pm PortMap) Resolve(address string) (Party, error) {
	port, err := DecodeAddress(address)
	if err != nil {
		return Party{}, errors.Wrap(ErrAddressResolution, err.Error())
	}
	if port < 1 || port > 65535 {
		return Party{}, errors.Wrapf(ErrAddressResolution, "onion.PortMap.Resolve(): %d is not a valid port", port)
	}
	if id := port - pm.BaseRelayPort; id >= 0 && id < pm.NumRelays {
		return Party{Kind: RelayParty, ID: id, Port: port}, nil
	}
	if id := port - pm.BaseUserPort; id >= 0 && id < pm.NumUsers {
		return Party{Kind: UserParty, ID: id, Port: port}, nil
	}
	return Party{}, errors.Wrapf(ErrAddressResolution, "onion.PortMap.Resolve(): no relay or user listens on port %d", port)
}
