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

package logger

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Event is a log entry being built. Terminate the chain with Msg to emit it.
type Event = zerolog.Event

// IDGenerator generates the identifier attached to every log entry, so
// entries can be correlated across a distributed deployment.
type IDGenerator interface {
	// NextID generates a new log identifier.
	NextID() uint64
}

// LogFormat selects how log entries are rendered.
type LogFormat int

const (
	// LogFormatPretty renders a colorized, human-friendly console line.
	LogFormatPretty LogFormat = iota

	// LogFormatJson renders each entry as a single JSON object.
	LogFormatJson

	// LogFormatText renders each entry as logfmt-style key=value pairs.
	LogFormatText

	// Short aliases for the formats above.
	Pretty = LogFormatPretty
	Json   = LogFormatJson
	Text   = LogFormatText
)

const (
	reset  = "\x1b[0m"
	red    = "\x1b[31m"
	green  = "\x1b[32m"
	yellow = "\x1b[33m"
	blue   = "\x1b[34m"
	cyan   = "\x1b[36m"
	white  = "\x1b[37m"
	bgRed  = "\x1b[41m"
	gray   = "\x1b[90m"
)

var levelColor = map[string]string{
	"TRACE": gray,
	"DEBUG": blue,
	"INFO":  green,
	"WARN":  yellow,
	"ERROR": red,
	"FATAL": bgRed,
}

var levelCode = map[string]zerolog.Level{
	"trace":   zerolog.TraceLevel,
	"TRACE":   zerolog.TraceLevel,
	"debug":   zerolog.DebugLevel,
	"DEBUG":   zerolog.DebugLevel,
	"info":    zerolog.InfoLevel,
	"INFO":    zerolog.InfoLevel,
	"warn":    zerolog.WarnLevel,
	"WARN":    zerolog.WarnLevel,
	"warning": zerolog.WarnLevel,
	"WARNING": zerolog.WarnLevel,
	"error":   zerolog.ErrorLevel,
	"ERROR":   zerolog.ErrorLevel,
	"fatal":   zerolog.FatalLevel,
	"FATAL":   zerolog.FatalLevel,
}

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMicro
}

// Logger represents a logging object responsible for generating structured
// output to an io.Writer. Loggers are cheap to derive: WithPrefix returns a
// child Logger that tags every entry with a component name, without
// affecting the parent.
type Logger struct {
	zl zerolog.Logger
}

type idHook struct {
	gen IDGenerator
}

func (h idHook) Run(e *zerolog.Event, _ zerolog.Level, _ string) {
	e.Uint64("LogId", h.gen.NextID())
}

// New creates a new Logger which writes log entries into out. If gen is not
// nil, every entry carries a LogId field from it. format selects the output
// rendering; it defaults to LogFormatPretty when omitted.
func New(out io.Writer, gen IDGenerator, format ...LogFormat) *Logger {
	f := LogFormatPretty
	if len(format) > 0 {
		f = format[0]
	}

	var w io.Writer = out
	if f == LogFormatPretty {
		cw := &zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339Nano}
		cw.FormatTimestamp = formatTimestamp
		cw.FormatLevel = formatLevel
		cw.FormatMessage = formatMessage
		cw.FormatFieldName = formatFieldName
		cw.FormatFieldValue = formatFieldValue
		cw.FormatErrFieldName = formatFieldName
		cw.FormatErrFieldValue = formatFieldValue
		w = cw
	}

	zl := zerolog.New(w).With().Timestamp().Logger()
	if f == LogFormatText {
		zl = zl.Output(zerolog.ConsoleWriter{Out: out, NoColor: true, TimeFormat: time.RFC3339Nano})
	}
	if gen != nil {
		zl = zl.Hook(idHook{gen: gen})
	}

	return &Logger{zl: zl}
}

// WithPrefix returns a child Logger which tags every entry with the given
// component name.
func (l *Logger) WithPrefix(prefix string) *Logger {
	return &Logger{zl: l.zl.With().Str("prefix", prefix).Logger()}
}

// Trace starts a new log entry with trace level.
func (l *Logger) Trace() *zerolog.Event {
	return l.zl.Trace()
}

// Debug starts a new log entry with debug level.
func (l *Logger) Debug() *zerolog.Event {
	return l.zl.Debug()
}

// Info starts a new log entry with info level.
func (l *Logger) Info() *zerolog.Event {
	return l.zl.Info()
}

// Warn starts a new log entry with warn level.
func (l *Logger) Warn() *zerolog.Event {
	return l.zl.Warn()
}

// Error starts a new log entry with error level.
func (l *Logger) Error() *zerolog.Event {
	return l.zl.Error()
}

// Fatal starts a new log entry with fatal level. The entry exits the
// program with status code 1 once its Msg/Msgf/Send method is called.
func (l *Logger) Fatal() *zerolog.Event {
	return l.zl.Fatal()
}

// SetSeverityLevel sets the minimal severity level which the logs will be
// produced, across every Logger in the process.
func SetSeverityLevel(level string) error {
	l, ok := levelCode[level]
	if !ok {
		return errors.New("invalid log level")
	}

	zerolog.SetGlobalLevel(l)
	return nil
}

func formatTimestamp(i interface{}) string {
	v, _ := strconv.ParseInt(fmt.Sprintf("%v", i), 10, 64)
	t := time.UnixMicro(v)
	return colorize(white, t.Format("2006-01-02 15:04:05.000000 -0700"))
}

func formatLevel(i interface{}) string {
	level := strings.ToUpper(fmt.Sprintf("%s", i))
	color := levelColor[level]
	return fmt.Sprintf("| %-14s |", colorize(color, level))
}

func formatMessage(i interface{}) string {
	return colorize(cyan, fmt.Sprintf("%s", i))
}

func formatFieldName(i interface{}) string {
	return colorize(gray, fmt.Sprintf("%s=", i))
}

func formatFieldValue(i interface{}) string {
	return colorize(gray, fmt.Sprintf("%s", i))
}

func colorize(color, msg string) string {
	return color + msg + reset
}
