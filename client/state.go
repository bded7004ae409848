// Copyright 2022-2023 The MaxMQ Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package client

import (
	"errors"
	"sync"
	"time"

	"github.com/coremq/coremq/internal/mqtt/packet"
)

// connState represents the client's connection FSM state, the mirror image
// of the broker-side Connection FSM.
type connState int32

const (
	stateDisconnected connState = iota
	stateConnecting
	stateConnected
	stateClosing
)

func (s connState) String() string {
	switch s {
	case stateDisconnected:
		return "disconnected"
	case stateConnecting:
		return "connecting"
	case stateConnected:
		return "connected"
	case stateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// errIDsExhausted is returned by the packet-id allocator when every value in
// the 16-bit space is currently in-flight.
var errIDsExhausted = errors.New("client: no packet identifiers available")

// idAllocator hands out packet identifiers for QoS 1 and QoS 2 publications
// and subscribe/unsubscribe requests, and reclaims them once the exchange
// completes (MQTT-2.3.1-1).
type idAllocator struct {
	mu   sync.Mutex
	next packet.ID
	used map[packet.ID]struct{}
}

func newIDAllocator() *idAllocator {
	return &idAllocator{next: 1, used: make(map[packet.ID]struct{})}
}

// acquire returns an unused, non-zero packet identifier and marks it in use.
func (a *idAllocator) acquire() (packet.ID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := 0; i < 65535; i++ {
		id := a.next
		a.next++
		if a.next == 0 {
			a.next = 1
		}

		if _, inUse := a.used[id]; !inUse {
			a.used[id] = struct{}{}
			return id, nil
		}
	}

	return 0, errIDsExhausted
}

// release frees a packet identifier for reuse.
func (a *idAllocator) release(id packet.ID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.used, id)
}

// outboundState is the QoS 1/2 delivery state of a message this client
// published.
type outboundState int

const (
	outboundAwaitingPubAck outboundState = iota
	outboundAwaitingPubRec
	outboundAwaitingPubComp
)

// outboundMessage tracks an in-flight QoS 1 or QoS 2 publication awaiting
// acknowledgement, resent with dup=1 on timeout.
type outboundMessage struct {
	pkt      *packet.Publish
	rel      *packet.PubRel
	state    outboundState
	lastSent time.Time
	done     chan error
}

// inflightTable is the client's outbound in-flight table: one entry per
// unacknowledged QoS 1 or QoS 2 publication, keyed by packet identifier.
type inflightTable struct {
	mu      sync.Mutex
	entries map[packet.ID]*outboundMessage
}

func newInflightTable() *inflightTable {
	return &inflightTable{entries: make(map[packet.ID]*outboundMessage)}
}

func (t *inflightTable) store(id packet.ID, m *outboundMessage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[id] = m
}

func (t *inflightTable) load(id packet.ID) (*outboundMessage, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.entries[id]
	return m, ok
}

func (t *inflightTable) delete(id packet.ID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, id)
}

func (t *inflightTable) snapshotIDs() []packet.ID {
	t.mu.Lock()
	defer t.mu.Unlock()

	ids := make([]packet.ID, 0, len(t.entries))
	for id := range t.entries {
		ids = append(ids, id)
	}
	return ids
}

// inboundQoS2Set is the receiver-side "pubrec-sent" set (MQTT-4.3.3-2):
// packet identifiers of QoS 2 PUBLISH packets that have been delivered to
// the application and PUBREC'd, but not yet released by PUBREL.
type inboundQoS2Set struct {
	mu  sync.Mutex
	ids map[packet.ID]struct{}
}

func newInboundQoS2Set() *inboundQoS2Set {
	return &inboundQoS2Set{ids: make(map[packet.ID]struct{})}
}

// markSeen records id as delivered and reports whether it was already
// present (a duplicate PUBLISH that must not be redelivered).
func (s *inboundQoS2Set) markSeen(id packet.ID) (duplicate bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, duplicate = s.ids[id]
	s.ids[id] = struct{}{}
	return duplicate
}

// release removes id from the set on PUBREL, as PUBCOMP is idempotent even
// for an id it has never seen.
func (s *inboundQoS2Set) release(id packet.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ids, id)
}
