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

package handler

import "github.com/coremq/coremq/internal/mqtt/packet"

// Configuration holds the tunables shared by every packet handler.
type Configuration struct {
	// TCPAddress is the address, in "host:port" form, the server listens for
	// TCP connections on.
	TCPAddress string

	// BufferSize is the size, in bytes, of the reader/writer buffers.
	BufferSize int

	// ConnectTimeout is the number of seconds the server waits for a CONNECT
	// packet after accepting the network connection.
	ConnectTimeout int

	// DefaultVersion is the MQTT version assumed before the CONNECT packet
	// is parsed.
	DefaultVersion int

	// MaxPacketSize is the maximum packet size, in bytes, accepted by the
	// server.
	MaxPacketSize int

	// MaximumQoS is the maximum QoS accepted for PUBLISH packets.
	MaximumQoS int

	// MaxTopicAlias is the maximum number of topic aliases an MQTT v5 client
	// may create.
	MaxTopicAlias int

	// MaxInflightMessages is the maximum number of QoS 1 and QoS 2
	// publications the server processes concurrently for a client.
	MaxInflightMessages int

	// MaxInflightRetries is the maximum number of retries for an in-flight
	// message before the connection is dropped.
	MaxInflightRetries int

	// MaxClientIDLen is the maximum length accepted for a client-supplied
	// client identifier.
	MaxClientIDLen int

	// MaxKeepAlive is the maximum keep-alive, in seconds, accepted from a
	// client. Zero means no limit.
	MaxKeepAlive int

	// MaxSessionExpiryInterval is the maximum session expiry interval, in
	// seconds, the server honors for MQTT v5 clients.
	MaxSessionExpiryInterval uint32

	// MaxMessageExpiryInterval is the maximum message expiry interval, in
	// seconds, applied to retained and queued messages.
	MaxMessageExpiryInterval uint32

	// AllowEmptyClientID indicates whether the server accepts an empty
	// client identifier in the CONNECT packet, generating one itself.
	AllowEmptyClientID bool

	// ClientIDPrefix is prepended to every server-generated client ID.
	ClientIDPrefix []byte

	// RetainAvailable indicates whether the server supports retained
	// messages.
	RetainAvailable bool

	// WildcardSubscriptionAvailable indicates whether the server supports
	// wildcard subscriptions.
	WildcardSubscriptionAvailable bool

	// SubscriptionIDAvailable indicates whether the server supports
	// subscription identifiers.
	SubscriptionIDAvailable bool

	// SharedSubscriptionAvailable indicates whether the server supports
	// shared subscriptions.
	SharedSubscriptionAvailable bool

	// RequestProblemInfo indicates whether reason strings and user
	// properties are included in responses by default.
	RequestProblemInfo bool

	// UserProperties are the user properties the server adds to CONNACK
	// packets.
	UserProperties map[string]string

	// MetricsEnabled indicates whether Prometheus metrics are recorded.
	MetricsEnabled bool

	// AllowAnonymous indicates whether the server accepts a CONNECT that
	// carries no user name. While Credentials is non-empty, a user name
	// absent from it is rejected regardless of AllowAnonymous.
	AllowAnonymous bool

	// Credentials is the user name/password table used by the default
	// CredentialAuthenticator. A nil or empty table means every CONNECT is
	// judged solely by AllowAnonymous.
	Credentials map[string][]byte
}

// Authenticator validates the credentials carried in a CONNECT packet. A
// ConnectHandler with no Authenticator accepts any client; the connection
// manager installs a CredentialAuthenticator built from AllowAnonymous and
// Credentials.
type Authenticator interface {
	// Authenticate returns true if the given client is allowed to connect.
	Authenticate(id packet.ClientID, username, password []byte) bool
}
