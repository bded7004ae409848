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

package mqtt

import (
	"errors"
	"net"

	"github.com/coremq/coremq/internal/logger"
	"github.com/coremq/coremq/internal/mqtt/handler"
	tcplistener "github.com/coremq/coremq/internal/mqtt/listener"
)

// IDGenerator generates identifiers used across the broker: session
// identifiers and message identifiers.
type IDGenerator interface {
	// NextID generates a new identifier.
	NextID() uint64
}

// ListenerOption configures a Listener created with NewListener.
type ListenerOption func(*listenerOptions)

type listenerOptions struct {
	conf  *handler.Configuration
	log   *logger.Logger
	idGen IDGenerator
}

// WithConfiguration sets the Configuration used to build the connection manager.
func WithConfiguration(c handler.Configuration) ListenerOption {
	return func(o *listenerOptions) {
		o.conf = &c
	}
}

// WithLogger sets the Logger used across the listener and its connection manager.
func WithLogger(l *logger.Logger) ListenerOption {
	return func(o *listenerOptions) {
		o.log = l
	}
}

// WithIDGenerator sets the IDGenerator used to assign session and message identifiers.
func WithIDGenerator(g IDGenerator) ListenerOption {
	return func(o *listenerOptions) {
		o.idGen = g
	}
}

// Listener accepts TCP connections and hands each one to a connectionManager.
type Listener struct {
	log     *logger.Logger
	tcp     *tcplistener.TCPListener
	connMgr *connectionManager
}

// NewListener creates a Listener. WithConfiguration, WithLogger and
// WithIDGenerator are all required.
func NewListener(opts ...ListenerOption) (*Listener, error) {
	var o listenerOptions
	for _, opt := range opts {
		opt(&o)
	}

	if o.conf == nil {
		return nil, errors.New("missing configuration")
	}
	if o.log == nil {
		return nil, errors.New("missing logger")
	}
	if o.idGen == nil {
		return nil, errors.New("missing ID generator")
	}

	log := o.log.WithPrefix("listener")
	mt := newMetrics(o.conf.MetricsEnabled, log)
	st := newSessionStore(o.idGen, log)
	cm := newConnectionManager(o.conf, st, mt, o.idGen, log)

	return &Listener{
		log:     log,
		tcp:     tcplistener.NewTCPListener(o.conf.TCPAddress, log),
		connMgr: cm,
	}, nil
}

// Listen starts accepting TCP connections and blocks until Stop is called
// or the TCP listener fails to start.
func (l *Listener) Listen() error {
	connStream, err := l.tcp.Listen()
	if err != nil {
		return err
	}

	l.connMgr.start()
	defer l.connMgr.stop()

	for nc := range connStream {
		go l.handleConnection(nc)
	}

	return nil
}

// Stop stops accepting new connections, closing the underlying TCP listener.
func (l *Listener) Stop() {
	l.log.Debug().Msg("Stopping listener")
	_ = l.tcp.Close()
}

func (l *Listener) handleConnection(nc net.Conn) {
	c := l.connMgr.newConnection(nc)
	l.connMgr.handle(c)
}
