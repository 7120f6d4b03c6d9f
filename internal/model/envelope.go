package model

import "time"

// EnvelopeVersion is the current relay envelope protocol version.
const EnvelopeVersion = 1

// BroadcastDevice addresses every live socket of the owner.
const BroadcastDevice = "*"

// Envelope is an opaque end-to-end-encrypted message. The relay routes on
// OwnerID/ToDeviceID only and never inspects Ciphertext or AuthTag.
type Envelope struct {
	V            int       `json:"v"`
	OwnerID      string    `json:"owner_id"`
	ThreadID     string    `json:"thread_id"`
	FromDeviceID string    `json:"from_device_id"`
	ToDeviceID   string    `json:"to_device_id"`
	Nonce        string    `json:"nonce"`
	Ciphertext   string    `json:"ciphertext"`
	AuthTag      string    `json:"auth_tag"`
	SentAt       time.Time `json:"sent_at"`
}

// Broadcast reports whether the envelope addresses all of the owner's devices.
func (e *Envelope) Broadcast() bool { return e.ToDeviceID == BroadcastDevice }
