package websocket

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/courier/internal/relay"
)

// HandleRelay returns an HTTP handler that upgrades connections to WebSocket
// and runs them as relay clients. owner_id and device_id query parameters
// are mandatory; connections without them are closed with a policy
// violation, as are connections for revoked devices.
func HandleRelay(store *relay.Store, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			InsecureSkipVerify: true, // Native mobile clients send no browser origin
		})
		if err != nil {
			logger.Warn("websocket accept", "error", err)
			return
		}

		q := r.URL.Query()
		ownerID := q.Get("owner_id")
		deviceID := q.Get("device_id")
		if ownerID == "" || deviceID == "" {
			conn.Close(ws.StatusPolicyViolation, "owner_id and device_id are required")
			return
		}
		if store.DeviceRevoked(ownerID, deviceID) {
			conn.Close(ws.StatusPolicyViolation, "device revoked")
			return
		}

		conn.SetReadLimit(maxMessageBytes)

		client := NewClient(store, conn, ownerID, deviceID, logger)

		hello, err := json.Marshal(connectedFrame{
			Type:     TypeConnected,
			OwnerID:  ownerID,
			DeviceID: deviceID,
			Now:      time.Now().UTC(),
		})
		if err != nil {
			logger.Error("marshal hello", "error", err)
			conn.Close(ws.StatusInternalError, "")
			return
		}
		client.Send(hello)

		store.TouchDevice(ownerID, deviceID)
		client.Run(r.Context())
	}
}
