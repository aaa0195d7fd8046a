package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/HannahMarsh/simple-onion-routing/internal/api/api_functions"
	"github.com/HannahMarsh/simple-onion-routing/internal/api/structs"
	"github.com/HannahMarsh/simple-onion-routing/internal/onion"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testPorts = onion.PortMap{BaseRelayPort: 4000, BaseUserPort: 3000, NumRelays: 10, NumUsers: 10}

type recipient struct {
	server   *httptest.Server
	received chan string
}

func newRecipient(t *testing.T) *recipient {
	t.Helper()
	r := &recipient{received: make(chan string, 1)}
	r.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		api_functions.HandleReceiveEnvelope(w, req, func(message string) error {
			r.received <- message
			return nil
		})
	}))
	t.Cleanup(r.server.Close)
	return r
}

// newTestCircuit starts relays 1..3 on httptest servers wired to each other and to the
// recipient at user address 2.
func newTestCircuit(t *testing.T) ([]*Relay, []*httptest.Server, *recipient) {
	t.Helper()
	resolver := api_functions.StaticResolver{}
	to := newRecipient(t)
	userAddress, _ := testPorts.UserAddress(2)
	resolver[userAddress] = to.server.URL

	relays := make([]*Relay, 3)
	servers := make([]*httptest.Server, 3)
	for i := range relays {
		relay, err := NewRelay(i+1, resolver, time.Second)
		require.NoError(t, err)
		relays[i] = relay
		servers[i] = httptest.NewServer(relay.Handler())
		t.Cleanup(servers[i].Close)

		address, _ := testPorts.RelayAddress(relay.ID)
		resolver[address] = servers[i].URL
	}
	return relays, servers, to
}

func getResult[T any](t *testing.T, url string) *T {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	var result structs.ResultApi[T]
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	return result.Result
}

func TestRelayForwardsThroughCircuit(t *testing.T) {
	relays, servers, to := newTestCircuit(t)
	circuit := onion.Circuit{relays[0].Identity(), relays[1].Identity(), relays[2].Identity()}
	userAddress, _ := testPorts.UserAddress(2)

	envelope, err := onion.BuildOnionMessage(circuit, userAddress, "hello", testPorts)
	require.NoError(t, err)
	require.NoError(t, api_functions.SendEnvelope(context.Background(), servers[0].URL, envelope, time.Second))

	select {
	case msg := <-to.received:
		assert.Equal(t, "hello", msg)
	case <-time.After(5 * time.Second):
		t.Fatal("message did not reach the recipient")
	}

	for _, relay := range relays {
		relay.Wait()
	}

	// entry relay saw the full envelope and forwarded to relay 2
	assert.Equal(t, envelope, *relays[0].status.GetLastReceivedEncryptedMessage())
	assert.Equal(t, 4002, *relays[0].status.GetLastMessageDestination())
	// exit relay saw the plaintext and the recipient's port
	assert.Equal(t, "hello", *relays[2].status.GetLastReceivedDecryptedMessage())
	assert.Equal(t, 3002, *relays[2].status.GetLastMessageDestination())

	destination := getResult[int](t, servers[1].URL+"/getLastMessageDestination")
	require.NotNil(t, destination)
	assert.Equal(t, 4003, *destination)

	decrypted := getResult[string](t, servers[2].URL+"/getLastReceivedDecryptedMessage")
	require.NotNil(t, decrypted)
	assert.Equal(t, "hello", *decrypted)
}

func TestRelayRejectsMalformedEnvelope(t *testing.T) {
	relays, servers, _ := newTestCircuit(t)

	assert.Nil(t, getResult[string](t, servers[0].URL+"/getLastReceivedEncryptedMessage"))

	err := relays[0].Receive("too short")
	require.Error(t, err)
	assert.ErrorIs(t, err, onion.ErrFraming)

	// a layer built for relay 2 does not peel at relay 1
	userAddress, _ := testPorts.UserAddress(2)
	envelope, err := onion.BuildLayer(userAddress, "hello", relays[1].Identity().PublicKey)
	require.NoError(t, err)

	err = api_functions.SendEnvelope(context.Background(), servers[0].URL, envelope, time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")

	assert.Equal(t, envelope, *relays[0].status.GetLastReceivedEncryptedMessage())
	assert.Nil(t, relays[0].status.GetLastReceivedDecryptedMessage())
	assert.Nil(t, relays[0].status.GetLastMessageDestination())
}

func TestRelayRejectsUnresolvableNextHop(t *testing.T) {
	relays, servers, _ := newTestCircuit(t)

	envelope, err := onion.BuildLayer("0000009999", "hello", relays[0].Identity().PublicKey)
	require.NoError(t, err)

	err = relays[0].Receive(envelope)
	assert.ErrorIs(t, err, onion.ErrAddressResolution)

	err = api_functions.SendEnvelope(context.Background(), servers[0].URL, envelope, time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")

	assert.Equal(t, 9999, *relays[0].status.GetLastMessageDestination())
}

func TestRelayStatusEndpoints(t *testing.T) {
	_, servers, _ := newTestCircuit(t)

	resp, err := http.Get(servers[0].URL + "/status")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(servers[0].URL + "/getStatus")
	require.NoError(t, err)
	var status map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	resp.Body.Close()
	assert.EqualValues(t, 1, status["ID"])
}

type fakeRegistrar struct {
	registered []structs.PublicRelayApi
}

func (f *fakeRegistrar) RegisterRelay(_ context.Context, relay structs.PublicRelayApi) error {
	f.registered = append(f.registered, relay)
	return nil
}

func TestRegisterWithDirectory(t *testing.T) {
	relay, err := NewRelay(5, api_functions.StaticResolver{}, time.Second)
	require.NoError(t, err)

	registrar := &fakeRegistrar{}
	require.NoError(t, relay.RegisterWithDirectory(context.Background(), registrar))
	require.Len(t, registrar.registered, 1)
	assert.Equal(t, 5, registrar.registered[0].ID)
	assert.Equal(t, relay.PublicKey, registrar.registered[0].PublicKey)
}
