package user

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/HannahMarsh/simple-onion-routing/internal/api/api_functions"
	"github.com/HannahMarsh/simple-onion-routing/internal/api/structs"
	"github.com/HannahMarsh/simple-onion-routing/internal/onion"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/rs/cors"
)

// HandleReceive handles messages delivered to the user by exit relays.
func (c *User) HandleReceive(w http.ResponseWriter, r *http.Request) {
	api_functions.HandleReceiveEnvelope(w, r, c.Receive)
}

// HandleSendMessage sends {"message","destinationUserId"} and answers with the message record.
func (c *User) HandleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req structs.SendMessageApi
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Error decoding send request", "err", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	msg, err := c.SendMessage(r.Context(), req.Message, req.DestinationUserID)
	if err != nil {
		slog.Error("Error sending message", "id", c.ID, "err", err)
		switch {
		case errors.Is(err, onion.ErrAddressResolution), errors.Is(err, onion.ErrFraming):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, onion.ErrInsufficientRelays):
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
		default:
			http.Error(w, err.Error(), http.StatusBadGateway)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err = json.NewEncoder(w).Encode(msg); err != nil {
		slog.Error("Error writing response", "err", err)
	}
}

// HandleGetStatus returns the current status of the user in response to an HTTP request.
func (c *User) HandleGetStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(c.GetStatus())); err != nil {
		slog.Error("Error writing response", "err", err)
	}
}

// HandleGetLastReceivedMessage returns the last plaintext delivered to the user.
func (c *User) HandleGetLastReceivedMessage(w http.ResponseWriter, r *http.Request) {
	api_functions.WriteResult(w, c.status.GetLastReceivedMessage())
}

// HandleGetLastSentMessage returns the last message the user sent.
func (c *User) HandleGetLastSentMessage(w http.ResponseWriter, r *http.Request) {
	api_functions.WriteResult(w, c.status.GetLastSentMessage())
}

// HandleGetLastCircuit returns the relay ids of the last sent message, entry relay first.
func (c *User) HandleGetLastCircuit(w http.ResponseWriter, r *http.Request) {
	circuit := c.status.GetLastCircuit()
	api_functions.WriteResult(w, &circuit)
}

// Handler routes the user's endpoints.
func (c *User) Handler() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/deliver", c.HandleReceive).Methods(http.MethodPost)
	router.HandleFunc("/sendMessage", c.HandleSendMessage).Methods(http.MethodPost)
	router.HandleFunc("/status", api_functions.HandleLive).Methods(http.MethodGet)
	router.HandleFunc("/getStatus", c.HandleGetStatus).Methods(http.MethodGet)
	router.HandleFunc("/getLastReceivedMessage", c.HandleGetLastReceivedMessage).Methods(http.MethodGet)
	router.HandleFunc("/getLastSentMessage", c.HandleGetLastSentMessage).Methods(http.MethodGet)
	router.HandleFunc("/getLastCircuit", c.HandleGetLastCircuit).Methods(http.MethodGet)
	return cors.Default().Handler(router)
}
