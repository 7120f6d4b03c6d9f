package handler

import (
	"log/slog"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/dukerupert/courier/internal/model"
	"github.com/dukerupert/courier/internal/relay"
)

const (
	nonceMinLen = 8
	nonceMaxLen = 256
)

type RelayHandler struct {
	store       *relay.Store
	relaySecret string
	logger      *slog.Logger
}

func NewRelayHandler(store *relay.Store, relaySecret string, logger *slog.Logger) *RelayHandler {
	return &RelayHandler{store: store, relaySecret: relaySecret, logger: logger}
}

type challengeRequest struct {
	Nonce string `json:"nonce"`
}

// Challenge handles POST /v1/validation/challenge. The response proves the
// relay holds the expected shared secret without revealing it.
func (h *RelayHandler) Challenge(w http.ResponseWriter, r *http.Request) {
	var req challengeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if n := utf8.RuneCountInString(req.Nonce); n < nonceMinLen || n > nonceMaxLen {
		writeError(w, http.StatusBadRequest, "nonce must be between 8 and 256 characters")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"signature":   relay.SignChallenge(h.relaySecret, req.Nonce),
		"fingerprint": relay.Fingerprint(h.relaySecret),
	})
}

type publishRequest struct {
	Envelope *model.Envelope `json:"envelope"`
}

// Publish handles POST /v1/relay/publish. Zero delivered is not an error: it
// signals the recipient is offline and the caller should retry later, since
// the relay performs no store-and-forward.
func (h *RelayHandler) Publish(w http.ResponseWriter, r *http.Request) {
	var req publishRequest
	if err := decodeJSON(r, &req); err != nil || req.Envelope == nil {
		writeError(w, http.StatusBadRequest, "envelope is required")
		return
	}

	env := *req.Envelope
	if env.V != model.EnvelopeVersion {
		writeError(w, http.StatusBadRequest, "unsupported envelope version")
		return
	}
	if env.OwnerID == "" || env.FromDeviceID == "" || env.ToDeviceID == "" || env.Ciphertext == "" {
		writeError(w, http.StatusBadRequest, "owner_id, from_device_id, to_device_id, and ciphertext are required")
		return
	}
	if h.store.DeviceRevoked(env.OwnerID, env.FromDeviceID) {
		writeError(w, http.StatusForbidden, "sending device has been revoked")
		return
	}
	if !env.Broadcast() && h.store.DeviceRevoked(env.OwnerID, env.ToDeviceID) {
		writeError(w, http.StatusForbidden, "target device has been revoked")
		return
	}
	if env.SentAt.IsZero() {
		env.SentAt = time.Now().UTC()
	}

	h.store.TouchDevice(env.OwnerID, env.FromDeviceID)
	delivered := h.store.PublishEnvelope(env)

	writeJSON(w, http.StatusOK, map[string]int{"delivered": delivered})
}
