package relay

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/courier/internal/model"
)

var (
	ErrPairingNotFound    = errors.New("pairing not found")
	ErrPairingClaimed     = errors.New("pairing already claimed")
	ErrPairingResolved    = errors.New("pairing already resolved")
	ErrPairingNotClaimed  = errors.New("pairing has not been claimed")
	ErrCredentialMismatch = errors.New("pairing credentials do not match")
	ErrDeviceNotFound     = errors.New("device not found")
	ErrDeviceRevoked      = errors.New("device revoked")
)

const oneTimeTokenBytes = 32

// Conn is a live bidirectional connection the store can push envelopes to.
// Send must not block; it reports whether the payload was accepted.
type Conn interface {
	Send(data []byte) bool
}

// Store is the authoritative in-memory relay state: pairing records, device
// registries, and live socket registries, all keyed by owner. One coarse
// mutex guards every multi-step transition so claim and approve stay atomic
// under concurrent handlers.
type Store struct {
	mu       sync.Mutex
	pairings map[string]*model.Pairing
	devices  map[string]map[string]*model.Device
	sockets  map[string]map[string]map[Conn]struct{}

	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// NewStore creates an empty Store with the given pairing TTL.
func NewStore(ttl time.Duration, logger *slog.Logger) *Store {
	return &Store{
		pairings: make(map[string]*model.Pairing),
		devices:  make(map[string]map[string]*model.Device),
		sockets:  make(map[string]map[string]map[Conn]struct{}),
		ttl:      ttl,
		now:      time.Now,
		logger:   logger,
	}
}

// CreatePairingParams carries the desktop-side fields of a new pairing.
type CreatePairingParams struct {
	OwnerID          string
	DesktopDeviceID  string
	DesktopPublicKey string
	DesktopLabel     string
}

// CreatePairing stores a new pairing record with a fresh one-time token and
// 6-digit confirmation code, expiring after the store TTL.
func (s *Store) CreatePairing(p CreatePairingParams) (*model.Pairing, error) {
	token, err := generateToken()
	if err != nil {
		return nil, err
	}
	code, err := generateCode()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	rec := &model.Pairing{
		ID:               uuid.NewString(),
		OwnerID:          p.OwnerID,
		DesktopDeviceID:  p.DesktopDeviceID,
		DesktopPublicKey: p.DesktopPublicKey,
		DesktopLabel:     p.DesktopLabel,
		OneTimeToken:     token,
		ConfirmationCode: code,
		CreatedAt:        now,
		ExpiresAt:        now.Add(s.ttl),
	}
	s.pairings[rec.ID] = rec

	cp := *rec
	return &cp, nil
}

// GetPairing returns a snapshot of the pairing, treating an expired record
// as not found and deleting it lazily.
func (s *Store) GetPairing(id string) (*model.Pairing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.lookupPairing(id)
	if err != nil {
		return nil, err
	}
	cp := *rec
	return &cp, nil
}

// lookupPairing fetches a live pairing record. Expired records are removed
// and reported as not found; every read path goes through here so a pairing
// can never be advanced past its TTL. Caller must hold s.mu.
func (s *Store) lookupPairing(id string) (*model.Pairing, error) {
	rec, ok := s.pairings[id]
	if !ok {
		return nil, ErrPairingNotFound
	}
	if rec.Expired(s.now()) {
		delete(s.pairings, id)
		return nil, ErrPairingNotFound
	}
	return rec, nil
}

// ClaimPairingParams carries the mobile-side fields supplied at claim time.
type ClaimPairingParams struct {
	PairingID        string
	OneTimeToken     string
	ConfirmationCode string
	MobileDeviceID   string
	MobilePublicKey  string
	MobileLabel      string
	MobilePlatform   string
}

// ClaimPairing attaches the mobile side to a pairing. Only the first correct
// claim succeeds; any later claim on the same id is rejected even with
// correct credentials, so an intercepted confirmation code cannot be reused.
func (s *Store) ClaimPairing(p ClaimPairingParams) (*model.Pairing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.lookupPairing(p.PairingID)
	if err != nil {
		return nil, err
	}
	if rec.Resolved() {
		return nil, ErrPairingResolved
	}
	if rec.Claimed() {
		return nil, ErrPairingClaimed
	}
	tokenOK := subtle.ConstantTimeCompare([]byte(p.OneTimeToken), []byte(rec.OneTimeToken)) == 1
	codeOK := subtle.ConstantTimeCompare([]byte(p.ConfirmationCode), []byte(rec.ConfirmationCode)) == 1
	if !tokenOK || !codeOK {
		return nil, ErrCredentialMismatch
	}

	now := s.now()
	rec.MobileDeviceID = p.MobileDeviceID
	rec.MobilePublicKey = p.MobilePublicKey
	rec.MobileLabel = p.MobileLabel
	rec.MobilePlatform = model.NormalizePlatform(p.MobilePlatform)
	rec.ClaimedAt = &now

	cp := *rec
	return &cp, nil
}

// ApprovePairing resolves a claimed pairing. With approved=false the record
// is denied and no device is created. With approved=true the mobile side is
// upserted into the owner's device registry and returned alongside the
// pairing. Resolution happens at most once per record.
func (s *Store) ApprovePairing(id, ownerID string, approved bool) (*model.Pairing, *model.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.lookupPairing(id)
	if err != nil {
		return nil, nil, err
	}
	if rec.OwnerID != ownerID {
		return nil, nil, ErrPairingNotFound
	}
	if rec.Resolved() {
		return nil, nil, ErrPairingResolved
	}

	now := s.now()
	if !approved {
		rec.DeniedAt = &now
		cp := *rec
		return &cp, nil, nil
	}
	if !rec.Claimed() {
		return nil, nil, ErrPairingNotClaimed
	}

	rec.ApprovedAt = &now
	dev := &model.Device{
		ID:          rec.MobileDeviceID,
		OwnerID:     rec.OwnerID,
		Label:       rec.MobileLabel,
		Platform:    rec.MobilePlatform,
		PublicKey:   rec.MobilePublicKey,
		Fingerprint: Fingerprint(rec.MobilePublicKey),
		LinkedAt:    now,
		LastSeenAt:  now,
	}
	owned, ok := s.devices[rec.OwnerID]
	if !ok {
		owned = make(map[string]*model.Device)
		s.devices[rec.OwnerID] = owned
	}
	owned[dev.ID] = dev

	s.logger.Info("device linked",
		"owner_id", dev.OwnerID,
		"device_id", dev.ID,
		"platform", dev.Platform,
		"fingerprint", dev.Fingerprint)

	cp := *rec
	dcp := *dev
	return &cp, &dcp, nil
}

// PruneExpiredPairings removes every pairing whose TTL has elapsed and
// returns the count removed.
func (s *Store) PruneExpiredPairings() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, rec := range s.pairings {
		if rec.Expired(now) {
			delete(s.pairings, id)
			removed++
		}
	}
	return removed
}

// PendingPairings returns the number of stored, unexpired pairing records.
func (s *Store) PendingPairings() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	n := 0
	for _, rec := range s.pairings {
		if !rec.Expired(now) {
			n++
		}
	}
	return n
}

// generateToken returns an unguessable hex-encoded one-time token.
func generateToken() (string, error) {
	buf := make([]byte, oneTimeTokenBytes)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// generateCode returns a 6-digit numeric code (100000-999999).
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
