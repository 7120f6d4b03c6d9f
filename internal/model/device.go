package model

import "time"

// Device platform constants
const (
	PlatformIOS     = "ios"
	PlatformAndroid = "android"
	PlatformWeb     = "web"
	PlatformDesktop = "desktop"
	PlatformUnknown = "unknown"
)

// NormalizePlatform maps arbitrary input to one of the platform constants.
func NormalizePlatform(p string) string {
	switch p {
	case PlatformIOS, PlatformAndroid, PlatformWeb, PlatformDesktop:
		return p
	default:
		return PlatformUnknown
	}
}

// Device is a durable link between an owner and an authorized device,
// created only as the result of an approved pairing. Revocation is terminal:
// the record is retained but excluded from listings.
type Device struct {
	ID          string     `json:"device_id"`
	OwnerID     string     `json:"owner_id"`
	Label       string     `json:"label,omitempty"`
	Platform    string     `json:"platform"`
	PublicKey   string     `json:"public_key"`
	Fingerprint string     `json:"fingerprint"`
	LinkedAt    time.Time  `json:"linked_at"`
	LastSeenAt  time.Time  `json:"last_seen_at"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty"`
}

// Revoked reports whether the device link has been revoked.
func (d *Device) Revoked() bool { return d.RevokedAt != nil }
