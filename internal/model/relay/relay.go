package relay

import (
	"context"
	"crypto/rsa"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/HannahMarsh/simple-onion-routing/internal/api/api_functions"
	"github.com/HannahMarsh/simple-onion-routing/internal/api/structs"
	"github.com/HannahMarsh/simple-onion-routing/internal/metrics"
	"github.com/HannahMarsh/simple-onion-routing/internal/onion"
	"github.com/HannahMarsh/simple-onion-routing/internal/onion/keys"
	"github.com/pkg/errors"
)

// Registrar announces a relay to the directory.
type Registrar interface {
	RegisterRelay(ctx context.Context, relay structs.PublicRelayApi) error
}

// Relay represents a participating relay in the network.
type Relay struct {
	ID          int                    // Unique identifier for the relay.
	PublicKey   string                 // Encoded public key, as published in the directory.
	privateKey  *rsa.PrivateKey        // Peels the layers built for this relay. Never logged or exposed.
	status      *structs.RelayStatus   // Last processed envelope, for the diagnostic endpoints.
	resolver    api_functions.Resolver // Maps next-hop addresses to URLs.
	sendTimeout time.Duration          // Bounds each forward.
	wg          sync.WaitGroup         // In-flight forwards.
}

// NewRelay creates a relay with a fresh key pair.
func NewRelay(id int, resolver api_functions.Resolver, sendTimeout time.Duration) (*Relay, error) {
	if privateKey, err := keys.GenerateAsymmetricKeyPair(); err != nil {
		return nil, errors.Wrap(err, "relay.NewRelay(): failed to generate key pair")
	} else if publicKey, err := keys.EncodePublicKey(&privateKey.PublicKey); err != nil {
		return nil, errors.Wrap(err, "relay.NewRelay(): failed to encode public key")
	} else {
		return &Relay{
			ID:          id,
			PublicKey:   publicKey,
			privateKey:  privateKey,
			status:      structs.NewRelayStatus(id),
			resolver:    resolver,
			sendTimeout: sendTimeout,
		}, nil
	}
}

// Identity is what senders learn about this relay through the directory.
func (n *Relay) Identity() onion.RelayIdentity {
	return onion.RelayIdentity{ID: n.ID, PublicKey: &n.privateKey.PublicKey}
}

// GetStatus returns the current status of the relay.
func (n *Relay) GetStatus() string {
	return n.status.GetStatus()
}

// RegisterWithDirectory publishes the relay's id and public key.
func (n *Relay) RegisterWithDirectory(ctx context.Context, directory Registrar) error {
	slog.Info("Sending relay registration request.", "id", n.ID)
	if err := directory.RegisterRelay(ctx, structs.PublicRelayApi{ID: n.ID, PublicKey: n.PublicKey}); err != nil {
		return errors.Wrap(err, "relay.RegisterWithDirectory(): failed to register")
	}
	return nil
}

// Receive peels one layer off envelope and forwards the inner payload to the next hop.
// An envelope that does not peel is rejected with 400, one whose next hop does not
// resolve with 422. Forwarding itself happens in the background and is never retried.
func (n *Relay) Receive(envelope string) error {
	timeReceived := time.Now()
	n.status.RecordReceived(envelope)

	layer, err := onion.PeelLayer(envelope, n.privateKey)
	metrics.Observe(metrics.PEEL_TIME, time.Since(timeReceived).Seconds())
	if err != nil {
		metrics.Inc(metrics.ENVELOPE_COUNT, metrics.MALFORMED)
		slog.Warn("Dropping envelope that failed to peel", "id", n.ID, "length", len(envelope), "err", err)
		return api_functions.WithStatus(errors.Wrap(err, "relay.Receive()"), http.StatusBadRequest)
	}

	// PeelLayer only returns all-digit addresses
	destination, _ := onion.DecodeAddress(layer.NextHopAddress)
	n.status.RecordPeeled(layer.InnerPayload, destination)

	url, err := n.resolver.Resolve(layer.NextHopAddress)
	if err != nil {
		metrics.Inc(metrics.ENVELOPE_COUNT, metrics.UNRESOLVABLE)
		slog.Error("Dropping envelope with unresolvable next hop", "id", n.ID, "nextHop", layer.NextHopAddress, "err", err)
		return api_functions.WithStatus(errors.Wrap(err, "relay.Receive()"), http.StatusUnprocessableEntity)
	}

	slog.Info("Received envelope", "id", n.ID, "nextHop", layer.NextHopAddress, "length", len(envelope))
	metrics.Inc(metrics.ENVELOPE_COUNT, metrics.FORWARDED)

	n.wg.Add(1)
	go n.sendToNode(url, layer.InnerPayload)

	return nil
}

// sendToNode forwards the peeled payload to url.
func (n *Relay) sendToNode(url, payload string) {
	defer n.wg.Done()
	if err := api_functions.SendEnvelope(context.Background(), url, payload, n.sendTimeout); err != nil {
		slog.Error("Error forwarding envelope", "id", n.ID, "to", url, "err", err)
	}
}

// Wait blocks until every forward started by Receive has finished.
func (n *Relay) Wait() {
	n.wg.Wait()
}
