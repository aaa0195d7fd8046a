package relay

import (
	"log/slog"
	"net/http"

	"github.com/HannahMarsh/simple-onion-routing/internal/api/api_functions"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// HandleReceiveEnvelope handles envelopes delivered to the relay.
func (n *Relay) HandleReceiveEnvelope(w http.ResponseWriter, r *http.Request) {
	api_functions.HandleReceiveEnvelope(w, r, n.Receive)
}

// HandleGetStatus returns the current status of the relay in response to an HTTP request.
func (n *Relay) HandleGetStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(n.GetStatus())); err != nil {
		slog.Error("Error writing response", "err", err)
	}
}

// HandleGetLastReceivedEncryptedMessage returns the last envelope as it arrived.
func (n *Relay) HandleGetLastReceivedEncryptedMessage(w http.ResponseWriter, r *http.Request) {
	api_functions.WriteResult(w, n.status.GetLastReceivedEncryptedMessage())
}

// HandleGetLastReceivedDecryptedMessage returns the payload left after peeling the last envelope.
func (n *Relay) HandleGetLastReceivedDecryptedMessage(w http.ResponseWriter, r *http.Request) {
	api_functions.WriteResult(w, n.status.GetLastReceivedDecryptedMessage())
}

// HandleGetLastMessageDestination returns the port the last envelope was forwarded to.
func (n *Relay) HandleGetLastMessageDestination(w http.ResponseWriter, r *http.Request) {
	api_functions.WriteResult(w, n.status.GetLastMessageDestination())
}

// Handler routes the relay's endpoints.
func (n *Relay) Handler() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/deliver", n.HandleReceiveEnvelope).Methods(http.MethodPost)
	router.HandleFunc("/status", api_functions.HandleLive).Methods(http.MethodGet)
	router.HandleFunc("/getStatus", n.HandleGetStatus).Methods(http.MethodGet)
	router.HandleFunc("/getLastReceivedEncryptedMessage", n.HandleGetLastReceivedEncryptedMessage).Methods(http.MethodGet)
	router.HandleFunc("/getLastReceivedDecryptedMessage", n.HandleGetLastReceivedDecryptedMessage).Methods(http.MethodGet)
	router.HandleFunc("/getLastMessageDestination", n.HandleGetLastMessageDestination).Methods(http.MethodGet)
	return cors.Default().Handler(router)
}
