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

// This file hand-encodes/decodes the four packet types internal/mqtt/packet
// only supports in the broker's direction: CONNECT, SUBSCRIBE, UNSUBSCRIBE
// and PINGREQ are broker-inbound-only there (Write returns "unsupported"),
// while CONNACK, SUBACK, UNSUBACK and PINGRESP are broker-outbound-only
// (Read returns "unsupported"). A client needs exactly the opposite
// direction for each, so it cannot reuse those eight types and instead
// mirrors the byte layout already visible in the broker's Write methods for
// the ack side, and in its Read methods for the request side.
package client

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/coremq/coremq/internal/mqtt/packet"
)

const (
	ctrlTypeShift = 4

	connectFlagUserName     = 0x80
	connectFlagPassword     = 0x40
	connectFlagWillRetain   = 0x20
	connectFlagWillQoSShift = 3
	connectFlagWillFlag     = 0x04
	connectFlagCleanSession = 0x02

	connAckFlagSessionPresent = 0x01
)

// readVarInt reads an MQTT variable-length integer, mirroring
// internal/mqtt/packet's unexported readVarInteger (not reusable outside
// that package).
func readVarInt(r io.ByteReader) (int, error) {
	var val int
	multiplier := 1

	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, fmt.Errorf("failed to read variable integer: %w", err)
		}

		val += int(b&0x7F) * multiplier
		if b&0x80 == 0 {
			return val, nil
		}

		multiplier *= 128
		if multiplier > 128*128*128 {
			return 0, errors.New("invalid variable integer")
		}
	}
}

// writeVarInt writes an MQTT variable-length integer.
func writeVarInt(buf *bytes.Buffer, val int) {
	for {
		b := byte(val % 128)
		val /= 128
		if val > 0 {
			b |= 0x80
		}
		buf.WriteByte(b)
		if val == 0 {
			return
		}
	}
}

func writeUTF8(buf *bytes.Buffer, s string) {
	_ = binary.Write(buf, binary.BigEndian, uint16(len(s)))
	buf.WriteString(s)
}

func writeBinaryField(buf *bytes.Buffer, b []byte) {
	_ = binary.Write(buf, binary.BigEndian, uint16(len(b)))
	buf.Write(b)
}

// encodeConnect builds a CONNECT packet for MQTT 3.1.1.
func encodeConnect(o Options) []byte {
	var body bytes.Buffer
	writeUTF8(&body, "MQTT")
	body.WriteByte(byte(packet.MQTT311))

	var flags byte
	if o.CleanSession {
		flags |= connectFlagCleanSession
	}
	if o.Will != nil {
		flags |= connectFlagWillFlag
		flags |= byte(o.Will.QoS) << connectFlagWillQoSShift
		if o.Will.Retain {
			flags |= connectFlagWillRetain
		}
	}
	if o.UserName != "" {
		flags |= connectFlagUserName
	}
	if len(o.Password) > 0 {
		flags |= connectFlagPassword
	}
	body.WriteByte(flags)

	_ = binary.Write(&body, binary.BigEndian, o.KeepAlive)

	writeUTF8(&body, o.ClientID)
	if o.Will != nil {
		writeUTF8(&body, o.Will.Topic)
		writeBinaryField(&body, o.Will.Payload)
	}
	if o.UserName != "" {
		writeUTF8(&body, o.UserName)
	}
	if len(o.Password) > 0 {
		writeBinaryField(&body, o.Password)
	}

	var out bytes.Buffer
	out.WriteByte(byte(packet.CONNECT) << ctrlTypeShift)
	writeVarInt(&out, body.Len())
	out.Write(body.Bytes())
	return out.Bytes()
}

// connAck is the decoded form of a CONNACK packet.
type connAck struct {
	sessionPresent bool
	reasonCode     packet.ReasonCode
}

func decodeConnAck(body []byte) (connAck, error) {
	if len(body) < 2 {
		return connAck{}, errors.New("malformed CONNACK: too short")
	}
	return connAck{
		sessionPresent: body[0]&connAckFlagSessionPresent != 0,
		reasonCode:     packet.ReasonCode(body[1]),
	}, nil
}

// encodeSubscribe builds a SUBSCRIBE packet for MQTT 3.1.1.
func encodeSubscribe(id packet.ID, topics []packet.Topic) []byte {
	var body bytes.Buffer
	_ = binary.Write(&body, binary.BigEndian, uint16(id))
	for _, t := range topics {
		writeUTF8(&body, t.Name)
		body.WriteByte(byte(t.QoS))
	}

	var out bytes.Buffer
	out.WriteByte(byte(packet.SUBSCRIBE)<<ctrlTypeShift | 0x02)
	writeVarInt(&out, body.Len())
	out.Write(body.Bytes())
	return out.Bytes()
}

func decodeSubAck(body []byte) (packet.ID, []packet.ReasonCode, error) {
	if len(body) < 2 {
		return 0, nil, errors.New("malformed SUBACK: too short")
	}

	id := packet.ID(binary.BigEndian.Uint16(body[:2]))
	codes := make([]packet.ReasonCode, len(body)-2)
	for i, b := range body[2:] {
		codes[i] = packet.ReasonCode(b)
	}
	return id, codes, nil
}

// encodeUnsubscribe builds an UNSUBSCRIBE packet for MQTT 3.1.1.
func encodeUnsubscribe(id packet.ID, topics []string) []byte {
	var body bytes.Buffer
	_ = binary.Write(&body, binary.BigEndian, uint16(id))
	for _, t := range topics {
		writeUTF8(&body, t)
	}

	var out bytes.Buffer
	out.WriteByte(byte(packet.UNSUBSCRIBE)<<ctrlTypeShift | 0x02)
	writeVarInt(&out, body.Len())
	out.Write(body.Bytes())
	return out.Bytes()
}

func decodeUnsubAck(body []byte) (packet.ID, error) {
	if len(body) < 2 {
		return 0, errors.New("malformed UNSUBACK: too short")
	}
	return packet.ID(binary.BigEndian.Uint16(body[:2])), nil
}

// encodePingReq builds a PINGREQ packet.
func encodePingReq() []byte {
	return []byte{byte(packet.PINGREQ) << ctrlTypeShift, 0}
}

// wireFrame is a fully-read, not-yet-decoded packet: its type and its
// remaining-length body.
type wireFrame struct {
	typ  packet.Type
	body []byte
}

// readFrame reads one control byte, variable-length integer and body off r.
func readFrame(r *bufio.Reader) (wireFrame, error) {
	ctrl, err := r.ReadByte()
	if err != nil {
		return wireFrame{}, err
	}

	remainLen, err := readVarInt(r)
	if err != nil {
		return wireFrame{}, err
	}

	body := make([]byte, remainLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return wireFrame{}, fmt.Errorf("failed to read packet body: %w", err)
	}

	return wireFrame{typ: packet.Type(ctrl >> ctrlTypeShift), body: body}, nil
}
