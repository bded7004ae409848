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
	"sync"
	"time"

	"github.com/coremq/coremq/internal/logger"
	"github.com/coremq/coremq/internal/mqtt/handler"
	"github.com/coremq/coremq/internal/mqtt/packet"
)

type packetDeliverer interface {
	deliverPacket(id packet.ClientID, p *packet.Publish) error
}

// pubSubManager implements handler.SubscriptionManager. It keeps the topic
// tree and fans out every published message to its matching subscribers
// concurrently, one goroutine per subscriber.
func newPubSubManager(pd packetDeliverer, st handler.SessionStore, mt *metrics, l *logger.Logger) *pubSubManager {
	tree := handler.NewSubscriptionTree()
	return &pubSubManager{
		deliverer:    pd,
		sessionStore: st,
		metrics:      mt,
		log:          l.WithPrefix("pubsub"),
		tree:         &tree,
	}
}

type pubSubManager struct {
	deliverer    packetDeliverer
	sessionStore handler.SessionStore
	metrics      *metrics
	log          *logger.Logger
	tree         *handler.SubscriptionTree
	wg           sync.WaitGroup
}

func (ps *pubSubManager) start() {
	ps.log.Trace().Msg("Starting pub-sub manager")
}

func (ps *pubSubManager) stop() {
	ps.log.Trace().Msg("Stopping pub-sub manager")
	ps.wg.Wait()
	ps.log.Debug().Msg("Pub-sub manager stopped with success")
}

// Subscribe adds the given Subscription to the topic tree.
func (ps *pubSubManager) Subscribe(s *handler.Subscription) error {
	ps.log.Trace().
		Str("ClientId", string(s.ClientID)).
		Bool("NoLocal", s.NoLocal).
		Uint8("QoS", byte(s.QoS)).
		Bool("RetainAsPublished", s.RetainAsPublished).
		Uint8("RetainHandling", s.RetainHandling).
		Int("SubscriptionId", s.ID).
		Str("TopicFilter", s.TopicFilter).
		Msg("Subscribing to topic")

	exists, err := ps.tree.Insert(*s)
	if err != nil {
		ps.log.Warn().
			Str("ClientId", string(s.ClientID)).
			Str("TopicFilter", s.TopicFilter).
			Msg("Failed to subscribe to topic: " + err.Error())
		return err
	}

	if !exists {
		ps.metrics.recordSubscribe()
	}

	ps.log.Debug().
		Str("ClientId", string(s.ClientID)).
		Int("SubscriptionId", s.ID).
		Str("TopicFilter", s.TopicFilter).
		Msg("Subscribed to topic")

	return nil
}

// Unsubscribe removes the Subscription for the given client identifier and topic.
func (ps *pubSubManager) Unsubscribe(id packet.ClientID, topic string) error {
	ps.log.Trace().
		Str("ClientId", string(id)).
		Str("TopicFilter", topic).
		Msg("Unsubscribing from topic")

	err := ps.tree.Remove(id, topic)
	if err != nil {
		ps.log.Debug().
			Str("ClientId", string(id)).
			Str("TopicFilter", topic).
			Msg("Failed to unsubscribe from topic: " + err.Error())
		return err
	}

	ps.metrics.recordUnsubscribe()
	ps.log.Debug().
		Str("ClientId", string(id)).
		Str("TopicFilter", topic).
		Msg("Unsubscribed from topic")

	return nil
}

// Publish publishes the given message to every matching subscription.
func (ps *pubSubManager) Publish(msg *handler.Message) error {
	subs := ps.tree.FindMatches(msg.Packet.TopicName)
	if len(subs) == 0 {
		ps.log.Trace().
			Uint64("MessageId", uint64(msg.ID)).
			Uint16("PacketId", uint16(msg.PacketID)).
			Str("TopicName", msg.Packet.TopicName).
			Msg("No subscription found")
		return nil
	}

	ps.log.Trace().
		Uint64("MessageId", uint64(msg.ID)).
		Uint16("PacketId", uint16(msg.PacketID)).
		Uint8("QoS", uint8(msg.Packet.QoS)).
		Int("Subscriptions", len(subs)).
		Str("TopicName", msg.Packet.TopicName).
		Msg("Publishing message to subscribers")

	ps.wg.Add(len(subs))
	for _, sub := range subs {
		go func(s handler.Subscription) {
			defer ps.wg.Done()
			ps.publishToClient(s, msg.Clone())
		}(sub)
	}

	return nil
}

func (ps *pubSubManager) publishToClient(sub handler.Subscription, msg *handler.Message) {
	s, err := ps.sessionStore.ReadSession(sub.ClientID)
	if err != nil {
		ps.log.Error().
			Str("ClientId", string(sub.ClientID)).
			Uint64("MessageId", uint64(msg.ID)).
			Str("TopicName", msg.Packet.TopicName).
			Msg("Failed to read session (PUBSUB): " + err.Error())
		return
	}

	s.Mutex.Lock()
	defer s.Mutex.Unlock()

	if sub.NoLocal && sub.ClientID == msg.PublisherID {
		return
	}

	qos := msg.Packet.QoS
	if sub.QoS < qos {
		qos = sub.QoS
	}

	pkt := msg.Packet.Clone()
	pkt.Version = s.Version
	pkt.QoS = qos
	if !sub.RetainAsPublished {
		pkt.Retain = 0
	}
	msg.Packet = pkt

	if qos > packet.QoS0 {
		msg.PacketID = s.NextPacketID()
		pkt.PacketID = msg.PacketID
	}

	ps.log.Trace().
		Str("ClientId", string(s.ClientID)).
		Bool("Connected", s.Connected).
		Int("InflightMessages", s.InflightMessages.Len()).
		Uint64("MessageId", uint64(msg.ID)).
		Uint16("PacketId", uint16(msg.PacketID)).
		Uint8("QoS", uint8(pkt.QoS)).
		Uint64("SessionId", uint64(s.SessionID)).
		Str("TopicName", pkt.TopicName).
		Msg("Publishing message to client")

	if qos > packet.QoS0 {
		if s.Connected {
			msg.Tries = 1
			msg.LastSent = time.Now().UnixMicro()
		}
		msg.QueuedAt = time.Now().UnixMicro()
		s.InflightMessages.PushBack(msg)

		if err = ps.sessionStore.SaveSession(s); err != nil {
			ps.log.Error().
				Str("ClientId", string(s.ClientID)).
				Uint64("MessageId", uint64(msg.ID)).
				Uint64("SessionId", uint64(s.SessionID)).
				Msg("Failed to save session (PUBSUB): " + err.Error())
			return
		}
	}

	if !s.Connected {
		ps.log.Debug().
			Str("ClientId", string(s.ClientID)).
			Uint64("MessageId", uint64(msg.ID)).
			Uint64("SessionId", uint64(s.SessionID)).
			Msg("Client not connected")
		return
	}

	if msg.Expired() {
		ps.log.Debug().
			Str("ClientId", string(s.ClientID)).
			Uint64("MessageId", uint64(msg.ID)).
			Uint32("ExpiryInterval", msg.ExpiryInterval).
			Msg("Dropping expired message")
		return
	}

	err = ps.deliverer.deliverPacket(s.ClientID, pkt)
	if err != nil {
		ps.log.Error().
			Str("ClientId", string(s.ClientID)).
			Uint64("MessageId", uint64(msg.ID)).
			Uint16("PacketId", uint16(msg.PacketID)).
			Str("TopicName", pkt.TopicName).
			Msg("Failed to deliver message: " + err.Error())
		return
	}

	ps.log.Debug().
		Str("ClientId", string(s.ClientID)).
		Uint64("MessageId", uint64(msg.ID)).
		Uint16("PacketId", uint16(msg.PacketID)).
		Uint8("QoS", uint8(pkt.QoS)).
		Str("TopicName", pkt.TopicName).
		Msg("Message delivered to client")
}
