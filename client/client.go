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

// Package client implements an MQTT 3.1.1 client, the mirror image of the
// broker's Connection FSM (internal/mqtt.connection): it drives the same
// CONNECT/CONNACK handshake, the same QoS 1/2 delivery state machines from
// the receiving side, and its own outbound in-flight table, from the other
// end of the wire.
package client

import (
	"bufio"
	"errors"
	"fmt"
	"math"
	"net"
	"sync"
	"time"

	"github.com/coremq/coremq/internal/logger"
	"github.com/coremq/coremq/internal/mqtt/packet"
	"github.com/coremq/coremq/internal/safe"
)

// ErrNotConnected is returned by operations that require an established
// connection.
var ErrNotConnected = errors.New("client: not connected")

// ErrConnectTimeout is returned by Connect when no CONNACK arrives within
// Options.ConnectTimeout.
var ErrConnectTimeout = errors.New("client: timed out waiting for CONNACK")

// Message is an application message delivered by the broker.
type Message struct {
	Topic   string
	Payload []byte
	QoS     packet.QoS
	Retain  bool
	Dup     bool
}

// MessageHandler is invoked by Listen for every delivered Message.
type MessageHandler func(Message)

// Client is an MQTT 3.1.1 client connection. The zero value is not usable;
// create one with New.
type Client struct {
	opts Options
	log  *logger.Logger

	mu    sync.Mutex
	conn  net.Conn
	br    *bufio.Reader
	state connState

	pktReader packet.Reader

	ids      *idAllocator
	inflight *inflightTable
	qos2In   *inboundQoS2Set

	pendingConnAck chan connAck
	pendingSubAck  chan packet.ID
	subAckWaiters  map[packet.ID]chan []packet.ReasonCode
	unsubWaiters   map[packet.ID]chan struct{}
	waitersMu      sync.Mutex

	incoming chan Message
	handler  safe.Value[MessageHandler]

	lastSent safe.Value[time.Time]

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a Client configured to dial brokerAddress. It does not
// connect; call Connect to establish the session.
func New(brokerAddress string, opts ...Option) *Client {
	o := newOptions(brokerAddress, opts...)

	c := &Client{
		opts:          o,
		log:           o.log.WithPrefix("client"),
		state:         stateDisconnected,
		ids:           newIDAllocator(),
		inflight:      newInflightTable(),
		qos2In:        newInboundQoS2Set(),
		subAckWaiters: make(map[packet.ID]chan []packet.ReasonCode),
		unsubWaiters:  make(map[packet.ID]chan struct{}),
		incoming:      make(chan Message, o.InflightQueueSize),
	}
	c.pktReader = packet.NewReader(packet.ReaderOptions{
		BufferSize:    4096,
		MaxPacketSize: 256 * 1024 * 1024,
	})

	return c
}

// Connect dials the broker, performs the CONNECT/CONNACK handshake, and
// starts the background read loop and keep-alive timer. sessionPresent
// reports whether the broker resumed a prior session.
func (c *Client) Connect() (sessionPresent bool, err error) {
	c.mu.Lock()
	if c.state != stateDisconnected {
		c.mu.Unlock()
		return false, errors.New("client: already connected")
	}
	c.state = stateConnecting
	c.mu.Unlock()

	conn, err := net.DialTimeout("tcp", c.opts.BrokerAddress, c.opts.ConnectTimeout)
	if err != nil {
		c.setState(stateDisconnected)
		return false, fmt.Errorf("failed to dial broker: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.br = bufio.NewReader(conn)
	c.mu.Unlock()

	c.stop = make(chan struct{})
	ack := make(chan connAck, 1)
	c.waitersMu.Lock()
	c.pendingConnAck = ack
	c.waitersMu.Unlock()

	if err = c.writeRaw(encodeConnect(c.opts)); err != nil {
		c.teardown()
		return false, fmt.Errorf("failed to send CONNECT: %w", err)
	}

	c.wg.Add(1)
	go c.readLoop()

	select {
	case a := <-ack:
		if a.reasonCode != packet.ReasonCodeV3ConnectionAccepted {
			c.teardown()
			return false, fmt.Errorf("connect refused: reason code %v", a.reasonCode)
		}
		c.setState(stateConnected)
		c.touchLastSent()
		if c.opts.KeepAlive > 0 {
			c.wg.Add(1)
			go c.keepAliveLoop()
		}
		c.wg.Add(1)
		go c.resendLoop()
		return a.sessionPresent, nil
	case <-time.After(c.opts.ConnectTimeout):
		c.teardown()
		return false, ErrConnectTimeout
	}
}

// IsConnected reports whether the client currently holds an open session.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == stateConnected
}

// Disconnect sends DISCONNECT and closes the network connection. Per
// MQTT-3.1.2-10, a client-initiated DISCONNECT means the broker must not
// publish the client's Will.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	if c.state != stateConnected {
		c.mu.Unlock()
		return ErrNotConnected
	}
	c.state = stateClosing
	c.mu.Unlock()

	d := packet.NewDisconnect(packet.MQTT311, packet.ReasonCodeV5Success, nil)
	_ = c.writePacket(&d)

	c.teardown()
	return nil
}

// Publish sends an application message at the given QoS. For QoS 0 it
// returns once the bytes are written; for QoS 1/2 it blocks until the
// delivery handshake (PUBACK, or PUBREC/PUBREL/PUBCOMP) completes.
func (c *Client) Publish(topic string, qos packet.QoS, retain bool, payload []byte) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	p := &packet.Publish{
		TopicName: topic,
		Payload:   payload,
		QoS:       qos,
		Version:   packet.MQTT311,
	}
	if retain {
		p.Retain = 1
	}

	if qos == packet.QoS0 {
		return c.writePacket(p)
	}

	id, err := c.ids.acquire()
	if err != nil {
		return err
	}
	p.PacketID = id

	done := make(chan error, 1)
	state := outboundAwaitingPubAck
	if qos == packet.QoS2 {
		state = outboundAwaitingPubRec
	}
	c.inflight.store(id, &outboundMessage{pkt: p, state: state, lastSent: time.Now(), done: done})

	if err = c.writePacket(p); err != nil {
		c.inflight.delete(id)
		c.ids.release(id)
		return err
	}

	select {
	case err = <-done:
		return err
	case <-c.stop:
		return ErrNotConnected
	}
}

// Subscribe requests a subscription to filter at the given maximum QoS and
// blocks until SUBACK arrives, returning the granted reason code.
func (c *Client) Subscribe(filter string, qos packet.QoS) (packet.ReasonCode, error) {
	if !c.IsConnected() {
		return 0, ErrNotConnected
	}

	id, err := c.ids.acquire()
	if err != nil {
		return 0, err
	}
	defer c.ids.release(id)

	wait := make(chan []packet.ReasonCode, 1)
	c.waitersMu.Lock()
	c.subAckWaiters[id] = wait
	c.waitersMu.Unlock()

	frame := encodeSubscribe(id, []packet.Topic{{Name: filter, QoS: qos}})
	if err = c.writeRaw(frame); err != nil {
		c.waitersMu.Lock()
		delete(c.subAckWaiters, id)
		c.waitersMu.Unlock()
		return 0, err
	}

	select {
	case codes := <-wait:
		if len(codes) == 0 {
			return 0, errors.New("client: empty SUBACK")
		}
		return codes[0], nil
	case <-c.stop:
		return 0, ErrNotConnected
	}
}

// Unsubscribe removes a subscription and blocks until UNSUBACK arrives.
func (c *Client) Unsubscribe(filter string) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	id, err := c.ids.acquire()
	if err != nil {
		return err
	}
	defer c.ids.release(id)

	wait := make(chan struct{}, 1)
	c.waitersMu.Lock()
	c.unsubWaiters[id] = wait
	c.waitersMu.Unlock()

	frame := encodeUnsubscribe(id, []string{filter})
	if err = c.writeRaw(frame); err != nil {
		c.waitersMu.Lock()
		delete(c.unsubWaiters, id)
		c.waitersMu.Unlock()
		return err
	}

	select {
	case <-wait:
		return nil
	case <-c.stop:
		return ErrNotConnected
	}
}

// Recv blocks until the next delivered Message is available or the client
// disconnects.
func (c *Client) Recv() (Message, error) {
	select {
	case m, ok := <-c.incoming:
		if !ok {
			return Message{}, ErrNotConnected
		}
		return m, nil
	case <-c.stop:
		return Message{}, ErrNotConnected
	}
}

// SetMessageHandler installs a callback invoked by Listen for every
// delivered message, in place of draining Recv manually.
func (c *Client) SetMessageHandler(fn MessageHandler) {
	c.handler.Store(fn)
}

// Listen runs the callback-style delivery loop, invoking the handler set by
// SetMessageHandler for every message until the client disconnects.
func (c *Client) Listen() {
	for {
		m, err := c.Recv()
		if err != nil {
			return
		}

		if h := c.handler.Load(); h != nil {
			h(m)
		}
	}
}

func (c *Client) setState(s connState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Client) touchLastSent() {
	c.lastSent.Store(time.Now())
}

func (c *Client) writeRaw(b []byte) error {
	c.mu.Lock()
	conn := c.conn
	wt := c.opts.WriteTimeout
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	if wt > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(wt))
	}
	_, err := conn.Write(b)
	c.touchLastSent()
	return err
}

func (c *Client) writePacket(p packet.Packet) error {
	c.mu.Lock()
	conn := c.conn
	wt := c.opts.WriteTimeout
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	if wt > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(wt))
	}

	bw := bufio.NewWriter(conn)
	if err := p.Write(bw); err != nil {
		return err
	}
	c.touchLastSent()
	return bw.Flush()
}

// nextReadDeadline mirrors the broker's nextConnectionDeadline: 1.5x the
// keep-alive interval, per MQTT-3.1.2-24.
func (c *Client) nextReadDeadline() time.Time {
	if c.opts.KeepAlive == 0 {
		return time.Time{}
	}
	secs := math.Ceil(float64(c.opts.KeepAlive) * 1.5)
	return time.Now().Add(time.Duration(secs) * time.Second)
}

func (c *Client) keepAliveLoop() {
	defer c.wg.Done()

	interval := time.Duration(c.opts.KeepAlive) * time.Second
	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			last := c.lastSent.Load()
			if time.Since(last) >= interval {
				if err := c.writeRaw(encodePingReq()); err != nil {
					c.log.Warn().Msg("failed to send PINGREQ: " + err.Error())
					c.teardown()
					return
				}
			}
		}
	}
}

// resendLoop implements the QoS 1/2 retransmission rule (MQTT-4.3.2-1,
// MQTT-4.3.3-1): a PUBLISH awaiting PUBACK or PUBREC is resent with dup=1,
// and a PUBREL awaiting PUBCOMP is resent unchanged.
func (c *Client) resendLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.opts.ResendInterval / 2)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			for _, id := range c.inflight.snapshotIDs() {
				msg, ok := c.inflight.load(id)
				if !ok || time.Since(msg.lastSent) < c.opts.ResendInterval {
					continue
				}

				var err error
				switch msg.state {
				case outboundAwaitingPubAck, outboundAwaitingPubRec:
					msg.pkt.Dup = 1
					err = c.writePacket(msg.pkt)
				case outboundAwaitingPubComp:
					err = c.writePacket(msg.rel)
				}

				if err != nil {
					c.log.Warn().Msg("failed to resend in-flight packet: " + err.Error())
					continue
				}
				msg.lastSent = time.Now()
			}
		}
	}
}

func (c *Client) readLoop() {
	defer c.wg.Done()
	defer c.teardown()

	for {
		c.mu.Lock()
		conn := c.conn
		br := c.br
		rt := c.opts.ReadTimeout
		c.mu.Unlock()
		if conn == nil {
			return
		}

		deadline := c.nextReadDeadline()
		if rt > 0 && (deadline.IsZero() || time.Now().Add(rt).Before(deadline)) {
			deadline = time.Now().Add(rt)
		}
		_ = conn.SetReadDeadline(deadline)

		typeByte, err := br.Peek(1)
		if err != nil {
			c.log.Debug().Msg("read loop ending: " + err.Error())
			return
		}

		typ := packet.Type(typeByte[0] >> ctrlTypeShift)
		switch typ {
		case packet.CONNACK, packet.SUBACK, packet.UNSUBACK, packet.PINGRESP:
			if err = c.handleAckOnlyFrame(br); err != nil {
				c.log.Warn().Msg("failed to decode packet: " + err.Error())
				return
			}
		default:
			pkt, err := c.pktReader.ReadPacket(br, packet.MQTT311)
			if err != nil {
				c.log.Warn().Msg("failed to read packet: " + err.Error())
				return
			}
			c.dispatch(pkt)
		}
	}
}

func (c *Client) handleAckOnlyFrame(br *bufio.Reader) error {
	frame, err := readFrame(br)
	if err != nil {
		return err
	}

	switch frame.typ {
	case packet.CONNACK:
		ack, err := decodeConnAck(frame.body)
		if err != nil {
			return err
		}
		c.waitersMu.Lock()
		ch := c.pendingConnAck
		c.waitersMu.Unlock()
		if ch != nil {
			ch <- ack
		}

	case packet.SUBACK:
		id, codes, err := decodeSubAck(frame.body)
		if err != nil {
			return err
		}
		c.waitersMu.Lock()
		ch, ok := c.subAckWaiters[id]
		delete(c.subAckWaiters, id)
		c.waitersMu.Unlock()
		if ok {
			ch <- codes
		}

	case packet.UNSUBACK:
		id, err := decodeUnsubAck(frame.body)
		if err != nil {
			return err
		}
		c.waitersMu.Lock()
		ch, ok := c.unsubWaiters[id]
		delete(c.unsubWaiters, id)
		c.waitersMu.Unlock()
		if ok {
			ch <- struct{}{}
		}

	case packet.PINGRESP:
		// No action: receipt alone proves liveness.
	}

	return nil
}

func (c *Client) dispatch(pkt packet.Packet) {
	switch p := pkt.(type) {
	case *packet.Publish:
		c.handlePublish(p)
	case *packet.PubAck:
		c.completeOutbound(p.PacketID, nil)
	case *packet.PubRec:
		c.handlePubRec(p)
	case *packet.PubComp:
		c.completeOutbound(p.PacketID, nil)
	case *packet.PubRel:
		c.handlePubRel(p)
	case *packet.Disconnect:
		c.teardown()
	}
}

// handlePublish implements the QoS 0/1/2 inbound delivery rules (MQTT-4.3.1-1,
// MQTT-4.3.2-1, MQTT-4.3.3-1).
func (c *Client) handlePublish(p *packet.Publish) {
	switch p.QoS {
	case packet.QoS0:
		c.deliver(p)

	case packet.QoS1:
		c.deliver(p)
		ack := packet.NewPubAck(p.PacketID, packet.MQTT311, packet.ReasonCodeV5Success, nil)
		_ = c.writePacket(&ack)

	case packet.QoS2:
		if !c.qos2In.markSeen(p.PacketID) {
			c.deliver(p)
		}
		rec := packet.NewPubRec(p.PacketID, packet.MQTT311, packet.ReasonCodeV5Success, nil)
		_ = c.writePacket(&rec)
	}
}

func (c *Client) handlePubRec(p *packet.PubRec) {
	msg, ok := c.inflight.load(p.PacketID)
	if !ok {
		return
	}

	rel := packet.NewPubRel(p.PacketID, packet.MQTT311, packet.ReasonCodeV5Success, nil)
	msg.rel = &rel
	msg.state = outboundAwaitingPubComp
	msg.lastSent = time.Now()
	c.inflight.store(p.PacketID, msg)

	if err := c.writePacket(msg.rel); err != nil {
		c.completeOutbound(p.PacketID, err)
	}
}

func (c *Client) handlePubRel(p *packet.PubRel) {
	c.qos2In.release(p.PacketID)
	comp := packet.NewPubComp(p.PacketID, packet.MQTT311, packet.ReasonCodeV5Success, nil)
	_ = c.writePacket(&comp)
}

func (c *Client) completeOutbound(id packet.ID, err error) {
	msg, ok := c.inflight.load(id)
	if !ok {
		return
	}
	c.inflight.delete(id)
	c.ids.release(id)
	msg.done <- err
}

func (c *Client) deliver(p *packet.Publish) {
	m := Message{
		Topic:   p.TopicName,
		Payload: p.Payload,
		QoS:     p.QoS,
		Retain:  p.Retain == 1,
		Dup:     p.Dup == 1,
	}

	select {
	case c.incoming <- m:
	case <-c.stop:
	}
}

func (c *Client) teardown() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})

	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.state = stateDisconnected
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
}

// Close releases the underlying connection and background goroutines
// without sending DISCONNECT, letting the broker treat the closure as
// abnormal (publishing the client's Will, if any).
func (c *Client) Close() error {
	c.teardown()
	c.wg.Wait()
	return nil
}
