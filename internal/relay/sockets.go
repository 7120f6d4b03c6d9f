package relay

import (
	"encoding/json"

	"github.com/dukerupert/courier/internal/model"
)

// RegisterSocket adds a live connection for the given owner and device. A
// device may hold several concurrent connections; all of them receive
// published envelopes.
func (s *Store) RegisterSocket(ownerID, deviceID string, c Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	owned, ok := s.sockets[ownerID]
	if !ok {
		owned = make(map[string]map[Conn]struct{})
		s.sockets[ownerID] = owned
	}
	conns, ok := owned[deviceID]
	if !ok {
		conns = make(map[Conn]struct{})
		owned[deviceID] = conns
	}
	conns[c] = struct{}{}
}

// UnregisterSocket removes a connection, garbage-collecting empty device and
// owner entries so memory stays bounded by active connections.
func (s *Store) UnregisterSocket(ownerID, deviceID string, c Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	owned, ok := s.sockets[ownerID]
	if !ok {
		return
	}
	conns, ok := owned[deviceID]
	if !ok {
		return
	}
	delete(conns, c)
	if len(conns) == 0 {
		delete(owned, deviceID)
	}
	if len(owned) == 0 {
		delete(s.sockets, ownerID)
	}
}

// PublishEnvelope writes the envelope to every live socket of the addressed
// device, or of all the owner's devices when addressed to the broadcast
// wildcard. Delivery is best effort: sockets that refuse the write are
// skipped, and the count of successful writes is returned. Zero means the
// recipient is offline; the relay performs no store-and-forward.
func (s *Store) PublishEnvelope(env model.Envelope) int {
	data, err := json.Marshal(env)
	if err != nil {
		s.logger.Error("marshal envelope", "error", err)
		return 0
	}

	s.mu.Lock()
	var targets []Conn
	for deviceID, conns := range s.sockets[env.OwnerID] {
		if !env.Broadcast() && deviceID != env.ToDeviceID {
			continue
		}
		for c := range conns {
			targets = append(targets, c)
		}
	}
	s.mu.Unlock()

	delivered := 0
	for _, c := range targets {
		if c.Send(data) {
			delivered++
		}
	}
	return delivered
}

// LiveSockets returns the number of registered connections across all owners.
func (s *Store) LiveSockets() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, owned := range s.sockets {
		for _, conns := range owned {
			n += len(conns)
		}
	}
	return n
}
