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

package packet

import (
	"fmt"
)

var (
	// ErrV3UnacceptableProtocolVersion indicates that the broker does not
	// support the level of the MQTT protocol requested by the client.
	ErrV3UnacceptableProtocolVersion = &Error{
		ReasonCode: ReasonCodeV3UnacceptableProtocolVersion,
		Reason:     "unacceptable protocol version",
	}

	// ErrV3IdentifierRejected indicates that the client identifier is
	// correct UTF-8 but not allowed by the broker.
	ErrV3IdentifierRejected = &Error{
		ReasonCode: ReasonCodeV3IdentifierRejected,
		Reason:     "client ID not allowed",
	}

	// ErrV3BadUsernamePassword indicates that the data in the user name or
	// password is malformed.
	ErrV3BadUsernamePassword = &Error{
		ReasonCode: ReasonCodeV3BadUsernamePassword,
		Reason:     "bad user name or password",
	}

	// ErrV5MalformedPacket indicates that the data within the packet could
	// not be correctly parsed.
	ErrV5MalformedPacket = &Error{
		ReasonCode: ReasonCodeV5MalformedPacket,
		Reason:     "malformed packet",
	}

	// ErrV5ProtocolError indicates that the data in the packet does not
	// conform with the V5 specification.
	ErrV5ProtocolError = &Error{
		ReasonCode: ReasonCodeV5ProtocolError,
		Reason:     "protocol error",
	}

	// ErrV5InvalidClientID indicates that the client identifier is not
	// allowed by the broker.
	ErrV5InvalidClientID = &Error{
		ReasonCode: ReasonCodeV5InvalidClientID,
		Reason:     "client ID not allowed",
	}

	// ErrV5BadUserNameOrPassword indicates that the broker does not accept
	// the given user name or password.
	ErrV5BadUserNameOrPassword = &Error{
		ReasonCode: ReasonCodeV5BadUserNameOrPassword,
		Reason:     "bad user name or password",
	}

	// ErrV5SubscriptionIDNotSupported indicates that the broker received a
	// subscription identifier but does not support it.
	ErrV5SubscriptionIDNotSupported = &Error{
		ReasonCode: ReasonCodeV5SubscriptionIDNotSupported,
		Reason:     "subscription identifiers not supported",
	}
)

// Error represents an error related to the MQTT protocol, carrying the
// reason code that must be sent back to the client.
type Error struct {
	// ReasonCode is the reason/return code to report to the client.
	ReasonCode ReasonCode

	// Reason is a human-friendly message describing the error.
	Reason string
}

// Error returns a string with the reason code and the reason of the error.
func (err *Error) Error() string {
	return fmt.Sprintf("%d (%s)", err.ReasonCode, err.Reason)
}

func newErrMalformedPacket(msg string) error {
	return fmt.Errorf("%w: %s", ErrV5MalformedPacket, msg)
}
