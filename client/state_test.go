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
	"testing"

	"github.com/coremq/coremq/internal/mqtt/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDAllocatorAcquireRelease(t *testing.T) {
	a := newIDAllocator()

	id1, err := a.acquire()
	require.Nil(t, err)
	assert.Equal(t, packet.ID(1), id1)

	id2, err := a.acquire()
	require.Nil(t, err)
	assert.Equal(t, packet.ID(2), id2)

	a.release(id1)
	id3, err := a.acquire()
	require.Nil(t, err)
	assert.NotEqual(t, packet.ID(0), id3)
}

func TestIDAllocatorNeverReturnsZero(t *testing.T) {
	a := newIDAllocator()
	for i := 0; i < 5; i++ {
		id, err := a.acquire()
		require.Nil(t, err)
		assert.NotEqual(t, packet.ID(0), id)
	}
}

func TestIDAllocatorExhausted(t *testing.T) {
	a := newIDAllocator()
	for i := 0; i < 65535; i++ {
		_, err := a.acquire()
		require.Nil(t, err)
	}

	_, err := a.acquire()
	assert.Equal(t, errIDsExhausted, err)
}

func TestInflightTableStoreLoadDelete(t *testing.T) {
	tbl := newInflightTable()
	msg := &outboundMessage{pkt: &packet.Publish{PacketID: 7}}

	tbl.store(7, msg)
	got, ok := tbl.load(7)
	require.True(t, ok)
	assert.Same(t, msg, got)

	tbl.delete(7)
	_, ok = tbl.load(7)
	assert.False(t, ok)
}

func TestInboundQoS2SetDedup(t *testing.T) {
	s := newInboundQoS2Set()

	dup := s.markSeen(42)
	assert.False(t, dup)

	dup = s.markSeen(42)
	assert.True(t, dup)

	s.release(42)
	dup = s.markSeen(42)
	assert.False(t, dup)
}

func TestInboundQoS2SetReleaseUnknownIDIsNoop(t *testing.T) {
	s := newInboundQoS2Set()
	assert.NotPanics(t, func() { s.release(999) })
}
