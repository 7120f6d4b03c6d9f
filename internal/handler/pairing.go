package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/dukerupert/courier/internal/relay"
)

const confirmationCodeLen = 6

type PairingHandler struct {
	store          *relay.Store
	deepLinkScheme string
	logger         *slog.Logger
}

func NewPairingHandler(store *relay.Store, deepLinkScheme string, logger *slog.Logger) *PairingHandler {
	return &PairingHandler{store: store, deepLinkScheme: deepLinkScheme, logger: logger}
}

type createPairingRequest struct {
	OwnerID          string `json:"owner_id"`
	DesktopDeviceID  string `json:"desktop_device_id"`
	DesktopPublicKey string `json:"desktop_public_key"`
	DesktopLabel     string `json:"desktop_label"`
	DeepLinkScheme   string `json:"deep_link_scheme"`
}

type createPairingResponse struct {
	PairingID        string    `json:"pairing_id"`
	OneTimeToken     string    `json:"one_time_token"`
	ConfirmationCode string    `json:"confirmation_code"`
	QRPayload        string    `json:"qr_payload"`
	ExpiresAt        time.Time `json:"expires_at"`
}

// Create handles POST /v1/pairings (desktop side, API-key gated).
func (h *PairingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createPairingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.OwnerID == "" || req.DesktopDeviceID == "" || req.DesktopPublicKey == "" {
		writeError(w, http.StatusBadRequest, "owner_id, desktop_device_id, and desktop_public_key are required")
		return
	}

	rec, err := h.store.CreatePairing(relay.CreatePairingParams{
		OwnerID:          req.OwnerID,
		DesktopDeviceID:  req.DesktopDeviceID,
		DesktopPublicKey: req.DesktopPublicKey,
		DesktopLabel:     req.DesktopLabel,
	})
	if err != nil {
		h.logger.Error("create pairing", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create pairing")
		return
	}

	scheme := req.DeepLinkScheme
	if scheme == "" {
		scheme = h.deepLinkScheme
	}
	qr := fmt.Sprintf("%s://pair?pairing_id=%s&token=%s",
		scheme, url.QueryEscape(rec.ID), url.QueryEscape(rec.OneTimeToken))

	writeJSON(w, http.StatusCreated, createPairingResponse{
		PairingID:        rec.ID,
		OneTimeToken:     rec.OneTimeToken,
		ConfirmationCode: rec.ConfirmationCode,
		QRPayload:        qr,
		ExpiresAt:        rec.ExpiresAt,
	})
}

type claimPairingRequest struct {
	PairingID        string `json:"pairing_id"`
	OneTimeToken     string `json:"one_time_token"`
	ConfirmationCode string `json:"confirmation_code"`
	MobileDeviceID   string `json:"mobile_device_id"`
	MobilePublicKey  string `json:"mobile_public_key"`
	MobileLabel      string `json:"mobile_label"`
	MobilePlatform   string `json:"mobile_platform"`
}

type claimPairingResponse struct {
	PairingID string    `json:"pairing_id"`
	ClaimedAt time.Time `json:"claimed_at"`
	OwnerID   string    `json:"owner_id"`
}

// Claim handles POST /v1/pairings/claim (unauthenticated mobile side).
// Every failure is a 400 with the same message, so a caller probing ids
// cannot distinguish a miss from a mismatch.
func (h *PairingHandler) Claim(w http.ResponseWriter, r *http.Request) {
	var req claimPairingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.PairingID == "" || req.OneTimeToken == "" || req.MobileDeviceID == "" || req.MobilePublicKey == "" {
		writeError(w, http.StatusBadRequest, "pairing_id, one_time_token, mobile_device_id, and mobile_public_key are required")
		return
	}
	if len(req.ConfirmationCode) != confirmationCodeLen || !isDigits(req.ConfirmationCode) {
		writeError(w, http.StatusBadRequest, "confirmation_code must be 6 digits")
		return
	}

	rec, err := h.store.ClaimPairing(relay.ClaimPairingParams{
		PairingID:        req.PairingID,
		OneTimeToken:     req.OneTimeToken,
		ConfirmationCode: req.ConfirmationCode,
		MobileDeviceID:   req.MobileDeviceID,
		MobilePublicKey:  req.MobilePublicKey,
		MobileLabel:      req.MobileLabel,
		MobilePlatform:   req.MobilePlatform,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "pairing not found, expired, or credentials invalid")
		return
	}

	writeJSON(w, http.StatusOK, claimPairingResponse{
		PairingID: rec.ID,
		ClaimedAt: *rec.ClaimedAt,
		OwnerID:   rec.OwnerID,
	})
}

type approvePairingRequest struct {
	PairingID string `json:"pairing_id"`
	OwnerID   string `json:"owner_id"`
	Approved  *bool  `json:"approved"`
}

// Approve handles POST /v1/pairings/approve (desktop side, API-key gated).
func (h *PairingHandler) Approve(w http.ResponseWriter, r *http.Request) {
	var req approvePairingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.PairingID == "" || req.OwnerID == "" || req.Approved == nil {
		writeError(w, http.StatusBadRequest, "pairing_id, owner_id, and approved are required")
		return
	}

	rec, dev, err := h.store.ApprovePairing(req.PairingID, req.OwnerID, *req.Approved)
	switch {
	case errors.Is(err, relay.ErrPairingNotFound):
		writeError(w, http.StatusNotFound, "pairing not found")
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"pairing_id": rec.ID,
		"approved":   *req.Approved,
		"device":     dev,
	})
}
