package relay

import (
	"sort"

	"github.com/dukerupert/courier/internal/model"
)

// ListDevices returns the owner's non-revoked devices, most recently active
// first. An unknown owner yields an empty list.
func (s *Store) ListDevices(ownerID string) []model.Device {
	s.mu.Lock()
	defer s.mu.Unlock()

	devices := make([]model.Device, 0, len(s.devices[ownerID]))
	for _, dev := range s.devices[ownerID] {
		if dev.Revoked() {
			continue
		}
		devices = append(devices, *dev)
	}
	sort.Slice(devices, func(i, j int) bool {
		return devices[i].LastSeenAt.After(devices[j].LastSeenAt)
	})
	return devices
}

// GetDevice returns a snapshot of one device, revoked or not.
func (s *Store) GetDevice(ownerID, deviceID string) (*model.Device, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dev, ok := s.devices[ownerID][deviceID]
	if !ok {
		return nil, false
	}
	cp := *dev
	return &cp, true
}

// RevokeDevice marks a device as revoked. Revocation is terminal: the record
// is retained for audit but excluded from listings. Returns false if the
// device is unknown or already revoked.
func (s *Store) RevokeDevice(ownerID, deviceID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	dev, ok := s.devices[ownerID][deviceID]
	if !ok || dev.Revoked() {
		return false
	}
	now := s.now()
	dev.RevokedAt = &now

	s.logger.Info("device revoked", "owner_id", ownerID, "device_id", deviceID)
	return true
}

// DeviceRevoked reports whether the device exists and has been revoked.
func (s *Store) DeviceRevoked(ownerID, deviceID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	dev, ok := s.devices[ownerID][deviceID]
	return ok && dev.Revoked()
}

// TouchDevice advances the device's last-seen time. LastSeenAt never moves
// backwards; unknown devices are a no-op.
func (s *Store) TouchDevice(ownerID, deviceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dev, ok := s.devices[ownerID][deviceID]
	if !ok {
		return
	}
	if now := s.now(); now.After(dev.LastSeenAt) {
		dev.LastSeenAt = now
	}
}

// LinkedDevices returns the number of non-revoked devices across all owners.
func (s *Store) LinkedDevices() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, owned := range s.devices {
		for _, dev := range owned {
			if !dev.Revoked() {
				n++
			}
		}
	}
	return n
}
