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

package cli

import (
	"bytes"
	"os"
	"testing"
	"time"

	"github.com/coremq/coremq/internal/logger"
	"github.com/coremq/coremq/internal/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartLoadConfig(t *testing.T) {
	c, found, err := loadConfig()
	assert.Nil(t, err)
	assert.False(t, found)
	assert.NotEmpty(t, c.MQTTTCPAddress)
}

func TestStartNewLogger(t *testing.T) {
	sf, err := snowflake.New(0)
	require.Nil(t, err)

	l, err := newLogger(logger.Pretty, "trace", sf)
	assert.Nil(t, err)
	assert.NotNil(t, l)
}

func TestStartNewLoggerInvalidLevel(t *testing.T) {
	sf, err := snowflake.New(0)
	require.Nil(t, err)

	l, err := newLogger(logger.Pretty, "invalid", sf)
	assert.NotNil(t, err)
	assert.Nil(t, l)
}

func TestStartNewServer(t *testing.T) {
	out := bytes.NewBufferString("")
	log := logger.New(out, nil)

	c, _, err := loadConfig()
	require.Nil(t, err)
	c.MQTTTCPAddress = ":0"

	s, err := newServer(c, log, 0)
	require.Nil(t, err)
	require.NotNil(t, s)

	err = s.Start()
	require.Nil(t, err)
	<-time.After(50 * time.Millisecond)
	s.Stop()
}

func TestStartCommand(t *testing.T) {
	cmd := newCommandStart()
	assert.Equal(t, "start", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
}

func TestStartStopServerWithProfile(t *testing.T) {
	out := bytes.NewBufferString("")
	log := logger.New(out, nil)

	c, _, err := loadConfig()
	require.Nil(t, err)
	c.MQTTTCPAddress = ":0"

	s, err := newServer(c, log, 0)
	require.Nil(t, err)

	startServer(s, log, true)
	<-time.After(50 * time.Millisecond)
	stopServer(s, log, true)

	_ = os.Remove("cpu.prof")
	_ = os.Remove("heap.prof")
}
