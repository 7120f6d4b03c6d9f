package model

import "time"

// Pairing lifecycle: created -> claimed -> (approved | denied).
// A pairing past its ExpiresAt is invisible to every read path.
type Pairing struct {
	ID      string `json:"pairing_id"`
	OwnerID string `json:"owner_id"`

	DesktopDeviceID  string `json:"desktop_device_id"`
	DesktopPublicKey string `json:"desktop_public_key"`
	DesktopLabel     string `json:"desktop_label,omitempty"`

	OneTimeToken     string `json:"-"`
	ConfirmationCode string `json:"-"`

	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	ClaimedAt  *time.Time `json:"claimed_at,omitempty"`
	ApprovedAt *time.Time `json:"approved_at,omitempty"`
	DeniedAt   *time.Time `json:"denied_at,omitempty"`

	MobileDeviceID  string `json:"mobile_device_id,omitempty"`
	MobilePublicKey string `json:"mobile_public_key,omitempty"`
	MobileLabel     string `json:"mobile_label,omitempty"`
	MobilePlatform  string `json:"mobile_platform,omitempty"`
}

// Claimed reports whether the mobile side has claimed this pairing.
func (p *Pairing) Claimed() bool { return p.ClaimedAt != nil }

// Resolved reports whether the pairing has been approved or denied.
func (p *Pairing) Resolved() bool { return p.ApprovedAt != nil || p.DeniedAt != nil }

// Expired reports whether the pairing TTL has elapsed at the given instant.
func (p *Pairing) Expired(now time.Time) bool { return !p.ExpiresAt.After(now) }
