package directory

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/HannahMarsh/simple-onion-routing/internal/api/api_functions"
	"github.com/HannahMarsh/simple-onion-routing/internal/api/structs"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/rs/cors"
)

// HandleRegisterRelay processes HTTP requests for registering a relay.
func (d *Directory) HandleRegisterRelay(w http.ResponseWriter, r *http.Request) {
	var relay structs.PublicRelayApi

	if err := json.NewDecoder(r.Body).Decode(&relay); err != nil {
		slog.Error("Error decoding relay registration request", "err", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := d.RegisterRelay(r.Context(), relay); err != nil {
		slog.Error("Error registering relay", "id", relay.ID, "err", err)
		if errors.Is(err, ErrInvalidRelay) {
			http.Error(w, err.Error(), http.StatusBadRequest)
		} else {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusCreated)
}

// HandleGetRelays answers GET /relays with the full relay list.
func (d *Directory) HandleGetRelays(w http.ResponseWriter, r *http.Request) {
	relays, err := d.GetRelays(r.Context())
	if err != nil {
		slog.Error("Error listing relays", "err", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err = json.NewEncoder(w).Encode(relays); err != nil {
		slog.Error("Error writing response", "err", err)
	}
}

// Handler routes the directory's endpoints.
func (d *Directory) Handler() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/registerRelay", d.HandleRegisterRelay).Methods(http.MethodPost)
	router.HandleFunc("/relays", d.HandleGetRelays).Methods(http.MethodGet)
	router.HandleFunc("/status", api_functions.HandleLive).Methods(http.MethodGet)
	return cors.Default().Handler(router)
}
