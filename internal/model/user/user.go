package user

import (
	"context"
	"log/slog"
	"time"

	"github.com/HannahMarsh/simple-onion-routing/internal/api/api_functions"
	"github.com/HannahMarsh/simple-onion-routing/internal/api/structs"
	"github.com/HannahMarsh/simple-onion-routing/internal/metrics"
	"github.com/HannahMarsh/simple-onion-routing/internal/onion"
	"github.com/pkg/errors"
)

// RelaySource lists the relays a circuit can be drawn from.
type RelaySource interface {
	GetRelays(ctx context.Context) ([]onion.RelayIdentity, error)
}

// invalidator is implemented by relay sources that cache.
type invalidator interface {
	Invalidate()
}

// User sends messages through fresh three-relay circuits and receives plaintext at its
// own /deliver endpoint.
type User struct {
	ID          int
	relays      RelaySource
	ports       onion.PortMap
	resolver    api_functions.Resolver
	sendTimeout time.Duration
	status      *structs.UserStatus
}

func NewUser(id int, relays RelaySource, ports onion.PortMap, resolver api_functions.Resolver, sendTimeout time.Duration) *User {
	return &User{
		ID:          id,
		relays:      relays,
		ports:       ports,
		resolver:    resolver,
		sendTimeout: sendTimeout,
		status:      structs.NewUserStatus(id),
	}
}

// GetStatus returns the current status of the user.
func (c *User) GetStatus() string {
	return c.status.GetStatus()
}

// SendMessage wraps message for a newly drawn circuit and hands it to the entry relay.
// The returned record carries the circuit that was used. A nil error only means the
// entry relay accepted the envelope.
func (c *User) SendMessage(ctx context.Context, message string, destinationUserID int) (structs.Message, error) {
	msg := structs.NewMessage(destinationUserID, message)

	finalAddress, err := c.ports.UserAddress(destinationUserID)
	if err != nil {
		return msg, errors.Wrap(err, "user.SendMessage(): invalid destination")
	}
	if party, err := c.ports.Resolve(finalAddress); err != nil {
		return msg, errors.Wrapf(err, "user.SendMessage(): unknown user %d", destinationUserID)
	} else if party.Kind != onion.UserParty {
		return msg, errors.Wrapf(onion.ErrAddressResolution, "user.SendMessage(): %s is not a user", party)
	}

	relays, err := c.relays.GetRelays(ctx)
	if err != nil {
		return msg, errors.Wrap(err, "user.SendMessage(): failed to get relays")
	}

	circuit, err := onion.SelectCircuit(relays, onion.CircuitLength)
	if err != nil {
		if cache, ok := c.relays.(invalidator); ok {
			cache.Invalidate()
		}
		return msg, errors.Wrap(err, "user.SendMessage()")
	}
	msg.Circuit = circuit.IDs()

	envelope, err := onion.BuildOnionMessage(circuit, finalAddress, message, c.ports)
	if err != nil {
		return msg, errors.Wrap(err, "user.SendMessage()")
	}

	entryAddress, err := c.ports.RelayAddress(circuit[0].ID)
	if err != nil {
		return msg, errors.Wrap(err, "user.SendMessage()")
	}
	url, err := c.resolver.Resolve(entryAddress)
	if err != nil {
		return msg, errors.Wrapf(err, "user.SendMessage(): cannot reach entry relay %d", circuit[0].ID)
	}

	if err = api_functions.SendEnvelope(ctx, url, envelope, c.sendTimeout); err != nil {
		return msg, errors.Wrap(err, "user.SendMessage()")
	}

	msg.TimeSent = time.Now()
	c.status.RecordSent(msg)
	metrics.Inc(metrics.MESSAGES_SENT)
	slog.Info("Sent message", "id", c.ID, "messageId", msg.ID, "to", destinationUserID, "circuit", msg.Circuit)
	return msg, nil
}

// Receive accepts the plaintext delivered by an exit relay.
func (c *User) Receive(message string) error {
	c.status.RecordReceived(message)
	metrics.Inc(metrics.MESSAGES_RECEIVED)
	slog.Info("Received message", "id", c.ID, "length", len(message))
	return nil
}
