// Copyright 2019-2020 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package stompsession

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-stomp/stomp/v3"
	"github.com/go-stomp/stomp/v3/frame"
)

const (
	maxHeartBeatDuration = time.Duration(999999999) * time.Millisecond
)

// commandRule lists the structural requirements of one command.
type commandRule struct {
	required  []string
	anyOf     []string
	values    map[string][]string
	allowBody bool
}

// protocolHandler holds the rules of one STOMP protocol version.
type protocolHandler struct {
	v         stomp.Version
	heartBeat bool
	rules     map[string]*commandRule
}

var (
	ackModesV10 = []string{"auto", "client"}
	ackModesV11 = []string{"auto", "client", "client-individual"}
)

func newCommonRules() map[string]*commandRule {
	return map[string]*commandRule{
		frame.CONNECT:    {},
		frame.STOMP:      {},
		frame.SEND:       {required: []string{frame.Destination}, allowBody: true},
		frame.BEGIN:      {required: []string{frame.Transaction}},
		frame.COMMIT:     {required: []string{frame.Transaction}},
		frame.ABORT:      {required: []string{frame.Transaction}},
		frame.DISCONNECT: {},
	}
}

func newProtocolHandlerV10() *protocolHandler {
	rules := newCommonRules()
	rules[frame.SUBSCRIBE] = &commandRule{
		required: []string{frame.Destination},
		values:   map[string][]string{frame.Ack: ackModesV10},
	}
	rules[frame.UNSUBSCRIBE] = &commandRule{anyOf: []string{frame.Id, frame.Destination}}
	rules[frame.ACK] = &commandRule{required: []string{frame.MessageId}}
	return &protocolHandler{v: stomp.V10, rules: rules}
}

func newProtocolHandlerV11() *protocolHandler {
	rules := newCommonRules()
	rules[frame.SUBSCRIBE] = &commandRule{
		required: []string{frame.Destination, frame.Id},
		values:   map[string][]string{frame.Ack: ackModesV11},
	}
	rules[frame.UNSUBSCRIBE] = &commandRule{required: []string{frame.Id}}
	rules[frame.ACK] = &commandRule{required: []string{frame.MessageId, frame.Subscription}}
	rules[frame.NACK] = &commandRule{required: []string{frame.MessageId, frame.Subscription}}
	return &protocolHandler{v: stomp.V11, heartBeat: true, rules: rules}
}

func newProtocolHandlerV12() *protocolHandler {
	rules := newCommonRules()
	rules[frame.SUBSCRIBE] = &commandRule{
		required: []string{frame.Destination, frame.Id},
		values:   map[string][]string{frame.Ack: ackModesV11},
	}
	rules[frame.UNSUBSCRIBE] = &commandRule{required: []string{frame.Id}}
	rules[frame.ACK] = &commandRule{required: []string{frame.Id}}
	rules[frame.NACK] = &commandRule{required: []string{frame.Id}}
	return &protocolHandler{v: stomp.V12, heartBeat: true, rules: rules}
}

var protocolHandlers = map[stomp.Version]*protocolHandler{
	stomp.V10: newProtocolHandlerV10(),
	stomp.V11: newProtocolHandlerV11(),
	stomp.V12: newProtocolHandlerV12(),
}

// highest first
var supportedVersions = []stomp.Version{stomp.V12, stomp.V11, stomp.V10}

// knownCommands are all client verbs of any supported version.
var knownCommands = map[string]bool{
	frame.CONNECT:     true,
	frame.STOMP:       true,
	frame.SEND:        true,
	frame.SUBSCRIBE:   true,
	frame.UNSUBSCRIBE: true,
	frame.ACK:         true,
	frame.NACK:        true,
	frame.BEGIN:       true,
	frame.COMMIT:      true,
	frame.ABORT:       true,
	frame.DISCONNECT:  true,
}

func isConnectCommand(command string) bool {
	return command == frame.CONNECT || command == frame.STOMP
}

// negotiateVersion picks the highest version offered in accept-version that the server
// supports. A frame without accept-version is a STOMP 1.0 client.
func negotiateVersion(f *frame.Frame) (*protocolHandler, error) {
	acceptVersion, ok := f.Header.Contains(frame.AcceptVersion)
	if !ok {
		return protocolHandlers[stomp.V10], nil
	}

	offered := make(map[string]bool)
	for _, v := range strings.Split(acceptVersion, ",") {
		offered[strings.TrimSpace(v)] = true
	}
	for _, supportedVersion := range supportedVersions {
		if offered[supportedVersion.String()] {
			return protocolHandlers[supportedVersion], nil
		}
	}
	return nil, unsupportedVersionError
}

func (h *protocolHandler) version() stomp.Version {
	return h.v
}

func (h *protocolHandler) supports(command string) bool {
	_, ok := h.rules[command]
	return ok
}

// validate checks the frame against the rules of its command, which the handler must
// support.
func (h *protocolHandler) validate(f *frame.Frame) error {
	rule := h.rules[f.Command]

	for _, name := range rule.required {
		if _, ok := f.Header.Contains(name); !ok {
			return missingHeader(name, f.Command)
		}
	}

	if len(rule.anyOf) > 0 && !containsHeader(f, rule.anyOf...) {
		return missingAnyHeader(rule.anyOf, f.Command)
	}

	for name, allowed := range rule.values {
		value, ok := f.Header.Contains(name)
		if ok && !contains(allowed, value) {
			return invalidHeaderValue(name, value, f.Command)
		}
	}

	if !rule.allowBody && len(f.Body) > 0 {
		return bodyNotAllowed(f.Command)
	}

	if isConnectCommand(f.Command) && h.heartBeat {
		if hb, ok := f.Header.Contains(frame.HeartBeat); ok {
			if _, _, err := frame.ParseHeartBeat(hb); err != nil {
				return invalidHeaderValue(frame.HeartBeat, hb, f.Command)
			}
		}
	}
	return nil
}

// heartBeatIntervals returns how often the client promises to send (cx) and wants to receive (cy)
// frames, raised to the server minimum. Both are zero for versions without heart-beating.
func (h *protocolHandler) heartBeatIntervals(f *frame.Frame, minMs int64) (cx, cy time.Duration, err error) {
	if !h.heartBeat {
		return 0, 0, nil
	}
	if hb, ok := f.Header.Contains(frame.HeartBeat); ok {
		cx, cy, err = frame.ParseHeartBeat(hb)
		if err != nil {
			return 0, 0, err
		}
	}

	min := time.Duration(minMs) * time.Millisecond
	if min > maxHeartBeatDuration {
		min = maxHeartBeatDuration
	}

	// apply a minimum heartbeat
	if cx > 0 && (min == 0 || cx < min) {
		cx = min
	}
	if cy > 0 && (min == 0 || cy < min) {
		cy = min
	}
	return cx, cy, nil
}

// connectedFrame builds the reply to a successful CONNECT.
func (h *protocolHandler) connectedFrame(sessionId string, serverName string, cx, cy time.Duration) *frame.Frame {
	f := frame.New(frame.CONNECTED,
		frame.Session, sessionId,
		frame.Server, serverName)

	if h.v != stomp.V10 {
		f.Header.Add(frame.Version, h.v.String())
	}
	if h.heartBeat {
		f.Header.Add(frame.HeartBeat, fmt.Sprintf("%d,%d",
			int64(cy/time.Millisecond), int64(cx/time.Millisecond)))
	}
	return f
}

// Returns true if the frame contains ANY of the specified
// headers
func containsHeader(f *frame.Frame, headers ...string) bool {
	for _, h := range headers {
		if _, ok := f.Header.Contains(h); ok {
			return true
		}
	}
	return false
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
