package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dukerupert/courier/internal/relay"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *relay.Store {
	t.Helper()
	return relay.NewStore(5*time.Minute, testLogger())
}

func postJSON(t *testing.T, h http.HandlerFunc, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest("POST", "/", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func createPairing(t *testing.T, h *PairingHandler, ownerID string) createPairingResponse {
	t.Helper()
	rec := postJSON(t, h.Create, map[string]string{
		"owner_id":           ownerID,
		"desktop_device_id":  "desktop-1",
		"desktop_public_key": "desktop-pub-key",
		"desktop_label":      "Office desktop",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create pairing: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp createPairingResponse
	decodeBody(t, rec, &resp)
	return resp
}

func TestCreatePairing(t *testing.T) {
	h := NewPairingHandler(newTestStore(t), "courier", testLogger())

	resp := createPairing(t, h, "u1")

	if resp.PairingID == "" || resp.OneTimeToken == "" {
		t.Fatal("create pairing returned empty credentials")
	}
	if len(resp.ConfirmationCode) != confirmationCodeLen {
		t.Errorf("confirmation code = %q, want %d digits", resp.ConfirmationCode, confirmationCodeLen)
	}
	if !strings.HasPrefix(resp.QRPayload, "courier://pair?pairing_id=") {
		t.Errorf("qr payload = %q, want courier deep link", resp.QRPayload)
	}
	if !strings.Contains(resp.QRPayload, "token="+resp.OneTimeToken) {
		t.Errorf("qr payload %q does not carry the one-time token", resp.QRPayload)
	}
	if !resp.ExpiresAt.After(time.Now()) {
		t.Error("pairing should not be created already expired")
	}
}

func TestCreatePairingCustomScheme(t *testing.T) {
	h := NewPairingHandler(newTestStore(t), "courier", testLogger())

	rec := postJSON(t, h.Create, map[string]string{
		"owner_id":           "u1",
		"desktop_device_id":  "desktop-1",
		"desktop_public_key": "desktop-pub-key",
		"deep_link_scheme":   "myapp",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp createPairingResponse
	decodeBody(t, rec, &resp)
	if !strings.HasPrefix(resp.QRPayload, "myapp://pair?") {
		t.Errorf("qr payload = %q, want myapp scheme", resp.QRPayload)
	}
}

func TestCreatePairingMissingFields(t *testing.T) {
	h := NewPairingHandler(newTestStore(t), "courier", testLogger())

	rec := postJSON(t, h.Create, map[string]string{"owner_id": "u1"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	var resp errorResponse
	decodeBody(t, rec, &resp)
	if resp.Success {
		t.Error("error responses must report success=false")
	}
	if resp.Error == "" {
		t.Error("error responses must carry a message")
	}
}

func TestCreatePairingInvalidJSON(t *testing.T) {
	h := NewPairingHandler(newTestStore(t), "courier", testLogger())

	req := httptest.NewRequest("POST", "/", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.Create(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func claimBody(created createPairingResponse) map[string]string {
	return map[string]string{
		"pairing_id":        created.PairingID,
		"one_time_token":    created.OneTimeToken,
		"confirmation_code": created.ConfirmationCode,
		"mobile_device_id":  "mobile-1",
		"mobile_public_key": "mobile-pub-key",
		"mobile_label":      "Pixel",
		"mobile_platform":   "android",
	}
}

func TestClaimPairing(t *testing.T) {
	h := NewPairingHandler(newTestStore(t), "courier", testLogger())
	created := createPairing(t, h, "u1")

	rec := postJSON(t, h.Claim, claimBody(created))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp claimPairingResponse
	decodeBody(t, rec, &resp)
	if resp.PairingID != created.PairingID {
		t.Errorf("pairing_id = %q, want %q", resp.PairingID, created.PairingID)
	}
	if resp.OwnerID != "u1" {
		t.Errorf("owner_id = %q, want u1", resp.OwnerID)
	}
	if resp.ClaimedAt.IsZero() {
		t.Error("claimed_at missing")
	}
}

func TestClaimPairingFailuresAreUniform(t *testing.T) {
	h := NewPairingHandler(newTestStore(t), "courier", testLogger())
	created := createPairing(t, h, "u1")

	wrongToken := claimBody(created)
	wrongToken["one_time_token"] = strings.Repeat("0", len(created.OneTimeToken))

	wrongCode := claimBody(created)
	wrongCode["confirmation_code"] = "000000"
	if wrongCode["confirmation_code"] == created.ConfirmationCode {
		wrongCode["confirmation_code"] = "000001"
	}

	unknownID := claimBody(created)
	unknownID["pairing_id"] = "11111111-2222-3333-4444-555555555555"

	cases := map[string]map[string]string{
		"wrong token": wrongToken,
		"wrong code":  wrongCode,
		"unknown id":  unknownID,
	}

	var messages []string
	for name, body := range cases {
		rec := postJSON(t, h.Claim, body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want %d", name, rec.Code, http.StatusBadRequest)
		}
		var resp errorResponse
		decodeBody(t, rec, &resp)
		messages = append(messages, resp.Error)
	}
	for _, msg := range messages[1:] {
		if msg != messages[0] {
			t.Errorf("claim failures leak detail: %q vs %q", msg, messages[0])
		}
	}

	// The pairing survives a failed claim and can still be claimed correctly.
	rec := postJSON(t, h.Claim, claimBody(created))
	if rec.Code != http.StatusOK {
		t.Errorf("claim after failed attempts: status = %d", rec.Code)
	}
}

func TestClaimPairingBadConfirmationCodeShape(t *testing.T) {
	h := NewPairingHandler(newTestStore(t), "courier", testLogger())
	created := createPairing(t, h, "u1")

	for _, code := range []string{"", "12345", "1234567", "12a456"} {
		body := claimBody(created)
		body["confirmation_code"] = code
		rec := postJSON(t, h.Claim, body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("code %q: status = %d, want %d", code, rec.Code, http.StatusBadRequest)
		}
	}
}

func TestClaimPairingOnlyOnce(t *testing.T) {
	h := NewPairingHandler(newTestStore(t), "courier", testLogger())
	created := createPairing(t, h, "u1")

	if rec := postJSON(t, h.Claim, claimBody(created)); rec.Code != http.StatusOK {
		t.Fatalf("first claim: status = %d", rec.Code)
	}
	if rec := postJSON(t, h.Claim, claimBody(created)); rec.Code != http.StatusBadRequest {
		t.Errorf("second claim: status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func approveBody(pairingID, ownerID string, approved bool) map[string]any {
	return map[string]any{
		"pairing_id": pairingID,
		"owner_id":   ownerID,
		"approved":   approved,
	}
}

func TestApprovePairing(t *testing.T) {
	store := newTestStore(t)
	h := NewPairingHandler(store, "courier", testLogger())
	created := createPairing(t, h, "u1")
	postJSON(t, h.Claim, claimBody(created))

	rec := postJSON(t, h.Approve, approveBody(created.PairingID, "u1", true))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		PairingID string `json:"pairing_id"`
		Approved  bool   `json:"approved"`
		Device    struct {
			ID          string `json:"id"`
			Platform    string `json:"platform"`
			Fingerprint string `json:"fingerprint"`
		} `json:"device"`
	}
	decodeBody(t, rec, &resp)
	if !resp.Approved {
		t.Error("approved = false, want true")
	}
	if resp.Device.ID != "mobile-1" {
		t.Errorf("device id = %q, want mobile-1", resp.Device.ID)
	}
	if resp.Device.Fingerprint == "" {
		t.Error("approved device should carry a key fingerprint")
	}

	devices := store.ListDevices("u1")
	if len(devices) != 1 || devices[0].ID != "mobile-1" {
		t.Errorf("devices after approve = %+v, want [mobile-1]", devices)
	}
}

func TestDenyPairing(t *testing.T) {
	store := newTestStore(t)
	h := NewPairingHandler(store, "courier", testLogger())
	created := createPairing(t, h, "u1")
	postJSON(t, h.Claim, claimBody(created))

	rec := postJSON(t, h.Approve, approveBody(created.PairingID, "u1", false))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if devices := store.ListDevices("u1"); len(devices) != 0 {
		t.Errorf("deny linked a device: %+v", devices)
	}
}

func TestApprovePairingUnknownID(t *testing.T) {
	h := NewPairingHandler(newTestStore(t), "courier", testLogger())

	rec := postJSON(t, h.Approve, approveBody("11111111-2222-3333-4444-555555555555", "u1", true))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestApprovePairingOwnerMismatch(t *testing.T) {
	h := NewPairingHandler(newTestStore(t), "courier", testLogger())
	created := createPairing(t, h, "u1")
	postJSON(t, h.Claim, claimBody(created))

	// A different owner cannot even learn the pairing exists.
	rec := postJSON(t, h.Approve, approveBody(created.PairingID, "intruder", true))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestApprovePairingBeforeClaim(t *testing.T) {
	h := NewPairingHandler(newTestStore(t), "courier", testLogger())
	created := createPairing(t, h, "u1")

	rec := postJSON(t, h.Approve, approveBody(created.PairingID, "u1", true))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestApprovePairingMissingApproved(t *testing.T) {
	h := NewPairingHandler(newTestStore(t), "courier", testLogger())
	created := createPairing(t, h, "u1")

	rec := postJSON(t, h.Approve, map[string]string{
		"pairing_id": created.PairingID,
		"owner_id":   "u1",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}
