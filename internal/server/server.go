package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/courier/internal/config"
	"github.com/dukerupert/courier/internal/handler"
	"github.com/dukerupert/courier/internal/middleware"
	"github.com/dukerupert/courier/internal/relay"
	ws "github.com/dukerupert/courier/internal/websocket"
)

const (
	serviceName     = "courier"
	protocolVersion = 1
)

type Server struct {
	cfg         config.Config
	store       *relay.Store
	rateLimiter *middleware.RateLimiter
	pairingH    *handler.PairingHandler
	deviceH     *handler.DeviceHandler
	relayH      *handler.RelayHandler
	logger      *slog.Logger
}

func New(cfg config.Config, logger *slog.Logger) *Server {
	store := relay.NewStore(cfg.PairingTTL, logger.With("component", "store"))

	return &Server{
		cfg:         cfg,
		store:       store,
		rateLimiter: middleware.NewRateLimiter(),
		pairingH:    handler.NewPairingHandler(store, cfg.DeepLinkScheme, logger.With("component", "pairing")),
		deviceH:     handler.NewDeviceHandler(store, logger.With("component", "device")),
		relayH:      handler.NewRelayHandler(store, cfg.RelaySecret, logger.With("component", "relay")),
		logger:      logger,
	}
}

// Store returns the relay store for cleanup tasks and tests.
func (s *Server) Store() *relay.Store {
	return s.store
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("GET /.well-known/courier", s.wellKnownHandler)

	mux.HandleFunc("POST /v1/validation/challenge", s.rateLimited(s.relayH.Challenge))
	mux.HandleFunc("POST /v1/pairings", s.apiKeyed(s.rateLimited(s.pairingH.Create)))
	mux.HandleFunc("POST /v1/pairings/claim", s.rateLimited(s.pairingH.Claim))
	mux.HandleFunc("POST /v1/pairings/approve", s.apiKeyed(s.rateLimited(s.pairingH.Approve)))

	mux.HandleFunc("GET /v1/devices/{owner_id}", s.deviceH.List)
	mux.HandleFunc("DELETE /v1/devices/{owner_id}/{device_id}", s.apiKeyed(s.deviceH.Revoke))

	mux.HandleFunc("POST /v1/relay/publish", s.rateLimited(s.relayH.Publish))
	mux.HandleFunc("GET /v1/relay/ws", ws.HandleRelay(s.store, s.logger.With("component", "websocket")))

	mux.HandleFunc("GET /v1/stats", s.apiKeyed(s.statsHandler))

	return middleware.RequestLogger(s.logger.With("component", "http"))(mux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"ok":      true,
		"service": serviceName,
		"now":     time.Now().UTC(),
	})
}

// wellKnownHandler serves the capability and discovery document. The
// fingerprint identifies the relay secret without disclosing it.
func (s *Server) wellKnownHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"service":          serviceName,
		"protocol_version": protocolVersion,
		"relay_kind":       s.cfg.RelayKind,
		"capabilities":     []string{"pairing", "relay", "challenge"},
		"requires_tls":     s.cfg.RelayKind == config.KindManagedCloud,
		"requires_e2ee":    true,
		"fingerprint":      relay.Fingerprint(s.cfg.RelaySecret),
	})
}

func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{
		"pending_pairings": s.store.PendingPairings(),
		"linked_devices":   s.store.LinkedDevices(),
		"live_sockets":     s.store.LiveSockets(),
	})
}

func (s *Server) rateLimited(h http.HandlerFunc) http.HandlerFunc {
	rl := middleware.RateLimit(s.rateLimiter, middleware.ClientKey, s.cfg.RateLimit, s.cfg.RateLimitWindow)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) apiKeyed(h http.HandlerFunc) http.HandlerFunc {
	ak := middleware.RequireAPIKey(s.cfg.APIKey)
	return func(w http.ResponseWriter, r *http.Request) {
		ak(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}
