package directory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/HannahMarsh/simple-onion-routing/internal/api/structs"
	"github.com/HannahMarsh/simple-onion-routing/internal/onion/keys"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRelay(t *testing.T, id int) structs.PublicRelayApi {
	t.Helper()
	privateKey, err := keys.GenerateAsymmetricKeyPair()
	require.NoError(t, err)
	publicKey, err := keys.EncodePublicKey(&privateKey.PublicKey)
	require.NoError(t, err)
	return structs.PublicRelayApi{ID: id, PublicKey: publicKey}
}

func newTestDirectory(t *testing.T) (*Directory, *httptest.Server) {
	t.Helper()
	d := NewDirectory(NewMemoryStore())
	server := httptest.NewServer(d.Handler())
	t.Cleanup(func() {
		server.Close()
		_ = d.Close()
	})
	return d, server
}

func TestRegisterRelay(t *testing.T) {
	d := NewDirectory(NewMemoryStore())
	ctx := context.Background()

	relay := newTestRelay(t, 1)
	require.NoError(t, d.RegisterRelay(ctx, relay))

	assert.ErrorIs(t, d.RegisterRelay(ctx, structs.PublicRelayApi{ID: -1, PublicKey: relay.PublicKey}), ErrInvalidRelay)
	assert.ErrorIs(t, d.RegisterRelay(ctx, structs.PublicRelayApi{ID: 2, PublicKey: "not a key"}), ErrInvalidRelay)

	list, err := d.GetRelays(ctx)
	require.NoError(t, err)
	assert.Equal(t, []structs.PublicRelayApi{relay}, list.Relays)
}

func TestDirectoryHandler(t *testing.T) {
	_, server := newTestDirectory(t)

	resp, err := http.Get(server.URL + "/relays")
	require.NoError(t, err)
	var list structs.RelayListApi
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	resp.Body.Close()
	assert.NotNil(t, list.Relays)
	assert.Empty(t, list.Relays)

	body, _ := json.Marshal(newTestRelay(t, 3))
	resp, err = http.Post(server.URL+"/registerRelay", "application/json", strings.NewReader(string(body)))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = http.Post(server.URL+"/registerRelay", "application/json", strings.NewReader(`{"id":4,"publicKey":"bad"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Post(server.URL+"/registerRelay", "application/json", strings.NewReader(`{`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(server.URL + "/relays")
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	resp.Body.Close()
	require.Len(t, list.Relays, 1)
	assert.Equal(t, 3, list.Relays[0].ID)

	resp, err = http.Get(server.URL + "/status")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestClient(t *testing.T) {
	_, server := newTestDirectory(t)
	client := NewClient(server.URL, time.Minute)
	ctx := context.Background()

	for id := 1; id <= 3; id++ {
		require.NoError(t, client.RegisterRelay(ctx, newTestRelay(t, id)))
	}

	relays, err := client.GetRelays(ctx)
	require.NoError(t, err)
	require.Len(t, relays, 3)
	for i, r := range relays {
		assert.Equal(t, i+1, r.ID)
		assert.NotNil(t, r.PublicKey)
	}

	// served from cache until invalidated
	require.NoError(t, client.RegisterRelay(ctx, newTestRelay(t, 4)))
	relays, err = client.GetRelays(ctx)
	require.NoError(t, err)
	assert.Len(t, relays, 3)

	client.Invalidate()
	relays, err = client.GetRelays(ctx)
	require.NoError(t, err)
	assert.Len(t, relays, 4)
}

func TestClientRegisterRetries(t *testing.T) {
	d := NewDirectory(NewMemoryStore())
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		d.Handler().ServeHTTP(w, r)
	}))
	defer server.Close()

	client := NewClient(server.URL, 0)
	client.RetryInterval = time.Millisecond
	require.NoError(t, client.RegisterRelay(context.Background(), newTestRelay(t, 1)))
	assert.Equal(t, int32(3), attempts.Load())
}

func TestClientRegisterRejected(t *testing.T) {
	_, server := newTestDirectory(t)
	client := NewClient(server.URL, 0)
	client.RetryInterval = time.Millisecond

	err := client.RegisterRelay(context.Background(), structs.PublicRelayApi{ID: 1, PublicKey: "bad"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestClientUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := NewClient(url, 0)
	client.RetryInterval = time.Millisecond
	client.MaxRetries = 2
	assert.Error(t, client.RegisterRelay(context.Background(), newTestRelay(t, 1)))

	_, err := client.GetRelays(context.Background())
	assert.Error(t, err)
}
