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

import (
	"bytes"

	"github.com/coremq/coremq/internal/mqtt/packet"
)

// CredentialAuthenticator is the default in-memory Authenticator: a flat
// user name/password table plus an allow-anonymous switch.
type CredentialAuthenticator struct {
	allowAnonymous bool
	credentials    map[string][]byte
}

// NewCredentialAuthenticator creates a CredentialAuthenticator. credentials
// maps user name to password; a nil or empty table means no client carrying
// a user name can ever match, so allowAnonymous governs every CONNECT.
func NewCredentialAuthenticator(allowAnonymous bool, credentials map[string][]byte) *CredentialAuthenticator {
	return &CredentialAuthenticator{allowAnonymous: allowAnonymous, credentials: credentials}
}

// Authenticate reports whether the given client is allowed to connect. A
// CONNECT with no user name is judged solely by allowAnonymous. A CONNECT
// carrying a user name is accepted only if it matches an entry in the
// table; with no table configured, it falls back to allowAnonymous too,
// so installing a CredentialAuthenticator without any entries does not
// start rejecting clients that were previously accepted.
func (a *CredentialAuthenticator) Authenticate(_ packet.ClientID, username, password []byte) bool {
	if len(username) == 0 {
		return a.allowAnonymous
	}
	if len(a.credentials) == 0 {
		return a.allowAnonymous
	}

	want, ok := a.credentials[string(username)]
	if !ok {
		return false
	}
	return bytes.Equal(want, password)
}
