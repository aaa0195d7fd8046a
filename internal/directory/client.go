package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/HannahMarsh/simple-onion-routing/internal/api/structs"
	"github.com/HannahMarsh/simple-onion-routing/internal/onion"
	"github.com/HannahMarsh/simple-onion-routing/internal/onion/keys"
	"github.com/bluele/gcache"
	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
)

const relaysCacheKey = "relays"

// Client talks to the directory at Address. GetRelays answers from a short-lived cache.
type Client struct {
	Address       string        // http://host:port of the directory.
	CacheTTL      time.Duration // Zero disables caching.
	RetryInterval time.Duration // Initial wait between registration attempts.
	MaxRetries    uint64        // Registration attempts after the first one.
	httpClient    *http.Client
	relays        gcache.Cache
}

func NewClient(address string, cacheTTL time.Duration) *Client {
	return &Client{
		Address:       address,
		CacheTTL:      cacheTTL,
		RetryInterval: 500 * time.Millisecond,
		MaxRetries:    10,
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		relays:        gcache.New(1).LRU().Build(),
	}
}

// RegisterRelay announces relay to the directory, retrying with exponential backoff
// while the directory is unreachable. A 4xx answer is not retried.
func (c *Client) RegisterRelay(ctx context.Context, relay structs.PublicRelayApi) error {
	data, err := json.Marshal(relay)
	if err != nil {
		return errors.Wrap(err, "directory.Client.RegisterRelay(): failed to marshal relay")
	}
	url := c.Address + "/registerRelay"

	register := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return errors.Wrapf(err, "failed to send POST request to %s", url)
		}
		defer closeBody(resp.Body)

		switch {
		case resp.StatusCode == http.StatusCreated:
			return nil
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			return backoff.Permanent(errors.Errorf("directory rejected relay %d, status code: %d", relay.ID, resp.StatusCode))
		default:
			return errors.Errorf("unexpected status code: %d", resp.StatusCode)
		}
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.RetryInterval
	b.MaxElapsedTime = 0

	err = backoff.RetryNotify(register,
		backoff.WithContext(backoff.WithMaxRetries(b, c.MaxRetries), ctx),
		func(retryErr error, wait time.Duration) {
			slog.Warn("Relay registration failed, retrying", "id", relay.ID, "wait", wait, "err", retryErr)
		},
	)
	if err != nil {
		return errors.Wrapf(err, "directory.Client.RegisterRelay(): failed to register relay %d", relay.ID)
	}
	slog.Info("Registered with directory", "id", relay.ID, "directory", c.Address)
	return nil
}

// GetRelays returns the directory's relays with their decoded public keys.
// Entries whose key does not decode are skipped.
func (c *Client) GetRelays(ctx context.Context) ([]onion.RelayIdentity, error) {
	if c.CacheTTL > 0 {
		if cached, err := c.relays.Get(relaysCacheKey); err == nil {
			return cached.([]onion.RelayIdentity), nil
		}
	}

	relays, err := c.fetchRelays(ctx)
	if err != nil {
		return nil, err
	}

	if c.CacheTTL > 0 {
		if err = c.relays.SetWithExpire(relaysCacheKey, relays, c.CacheTTL); err != nil {
			slog.Error("Error caching relay list", "err", err)
		}
	}
	return relays, nil
}

// Invalidate drops the cached relay list so the next GetRelays asks the directory.
func (c *Client) Invalidate() {
	c.relays.Remove(relaysCacheKey)
}

func (c *Client) fetchRelays(ctx context.Context) ([]onion.RelayIdentity, error) {
	url := fmt.Sprintf("%s/relays", c.Address)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "directory.Client.GetRelays(): failed to create request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "directory.Client.GetRelays(): error making GET request to %s", url)
	}
	defer closeBody(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("directory.Client.GetRelays(): unexpected status code: %d", resp.StatusCode)
	}

	var list structs.RelayListApi
	if err = json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, errors.Wrap(err, "directory.Client.GetRelays(): error decoding response body")
	}

	relays := make([]onion.RelayIdentity, 0, len(list.Relays))
	for _, r := range list.Relays {
		if publicKey, err := keys.DecodePublicKey(r.PublicKey); err != nil {
			slog.Warn("Skipping relay with invalid public key", "id", r.ID, "err", err)
		} else {
			relays = append(relays, onion.RelayIdentity{ID: r.ID, PublicKey: publicKey})
		}
	}
	return relays, nil
}

func closeBody(body io.ReadCloser) {
	if err := body.Close(); err != nil {
		slog.Error("Error closing response body", "err", err)
	}
}
