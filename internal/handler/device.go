package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/courier/internal/relay"
)

type DeviceHandler struct {
	store  *relay.Store
	logger *slog.Logger
}

func NewDeviceHandler(store *relay.Store, logger *slog.Logger) *DeviceHandler {
	return &DeviceHandler{store: store, logger: logger}
}

// List handles GET /v1/devices/{owner_id}.
func (h *DeviceHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID := r.PathValue("owner_id")
	if ownerID == "" {
		writeError(w, http.StatusBadRequest, "owner_id is required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": h.store.ListDevices(ownerID),
	})
}

// Revoke handles DELETE /v1/devices/{owner_id}/{device_id}. A second revoke
// of the same device reports not found, matching an unknown device.
func (h *DeviceHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	ownerID := r.PathValue("owner_id")
	deviceID := r.PathValue("device_id")

	if !h.store.RevokeDevice(ownerID, deviceID) {
		writeError(w, http.StatusNotFound, "device not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
