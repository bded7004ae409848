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
	"os"
	"time"

	"github.com/coremq/coremq/internal/logger"
	"github.com/coremq/coremq/internal/mqtt/packet"
	"github.com/google/uuid"
)

// Will carries the Last Will and Testament announced during CONNECT and
// published by the broker if the connection closes abnormally.
type Will struct {
	Topic   string
	Payload []byte
	QoS     packet.QoS
	Retain  bool
}

// Options configures a Client created with New.
type Options struct {
	// BrokerAddress is the "host:port" the client dials.
	BrokerAddress string

	// ClientID identifies the client to the broker. An empty ClientID is
	// replaced by a generated "coremq-" prefixed UUID.
	ClientID string

	// UserName and Password carry optional CONNECT credentials.
	UserName string
	Password []byte

	// CleanSession requests a fresh session, discarding any prior one.
	CleanSession bool

	// KeepAlive is the interval, in seconds, of PINGREQ cadence when idle.
	// Zero disables keep-alive.
	KeepAlive uint16

	// ConnectTimeout bounds how long Connect waits for the TCP handshake and
	// CONNACK.
	ConnectTimeout time.Duration

	// ReadTimeout and WriteTimeout bound individual socket operations once
	// connected. Zero means no deadline beyond keep-alive.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Will, if non-nil, is announced during CONNECT.
	Will *Will

	// InflightQueueSize is the buffer size of the Recv channel. It does not
	// bound the outbound in-flight table.
	InflightQueueSize int

	// ResendInterval is how long an unacknowledged QoS 1/2 PUBLISH or PUBREL
	// waits before being resent. A resent PUBLISH carries dup=1
	// (MQTT-4.3.2-1, MQTT-4.3.3-1); a PUBREL is resent unchanged.
	ResendInterval time.Duration

	log *logger.Logger
}

// Option configures Options.
type Option func(*Options)

// WithClientID sets the client identifier.
func WithClientID(id string) Option {
	return func(o *Options) { o.ClientID = id }
}

// WithCredentials sets the CONNECT username and password.
func WithCredentials(userName string, password []byte) Option {
	return func(o *Options) {
		o.UserName = userName
		o.Password = password
	}
}

// WithCleanSession sets whether the broker discards any prior session.
func WithCleanSession(clean bool) Option {
	return func(o *Options) { o.CleanSession = clean }
}

// WithKeepAlive sets the keep-alive interval, in seconds.
func WithKeepAlive(seconds uint16) Option {
	return func(o *Options) { o.KeepAlive = seconds }
}

// WithConnectTimeout bounds the TCP handshake and CONNACK wait.
func WithConnectTimeout(d time.Duration) Option {
	return func(o *Options) { o.ConnectTimeout = d }
}

// WithReadTimeout bounds individual read operations.
func WithReadTimeout(d time.Duration) Option {
	return func(o *Options) { o.ReadTimeout = d }
}

// WithWriteTimeout bounds individual write operations.
func WithWriteTimeout(d time.Duration) Option {
	return func(o *Options) { o.WriteTimeout = d }
}

// WithWill announces a Last Will and Testament during CONNECT.
func WithWill(w Will) Option {
	return func(o *Options) { o.Will = &w }
}

// WithInflightQueueSize sets the buffer size of the Recv channel. It does
// not bound the outbound in-flight table.
func WithInflightQueueSize(n int) Option {
	return func(o *Options) { o.InflightQueueSize = n }
}

// WithResendInterval sets how long an unacknowledged QoS 1/2 PUBLISH or
// PUBREL waits before being resent. A resent PUBLISH carries dup=1; a PUBREL
// is resent unchanged.
func WithResendInterval(d time.Duration) Option {
	return func(o *Options) { o.ResendInterval = d }
}

// WithLogger sets the logger used by the client.
func WithLogger(l *logger.Logger) Option {
	return func(o *Options) { o.log = l }
}

func newOptions(brokerAddress string, opts ...Option) Options {
	o := Options{
		BrokerAddress:     brokerAddress,
		CleanSession:      true,
		KeepAlive:         60,
		ConnectTimeout:    10 * time.Second,
		InflightQueueSize: 32,
		ResendInterval:    20 * time.Second,
	}

	for _, opt := range opts {
		opt(&o)
	}

	if o.ClientID == "" {
		o.ClientID = "coremq-" + uuid.New().String()
	}

	if o.log == nil {
		o.log = logger.New(os.Stdout, nil)
	}

	return o
}
