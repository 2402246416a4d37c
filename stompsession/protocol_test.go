// Copyright 2019-2020 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package stompsession

import (
	"testing"

	"github.com/go-stomp/stomp/v3"
	"github.com/go-stomp/stomp/v3/frame"
	"github.com/stretchr/testify/assert"
)

func TestNegotiateVersion_Unsupported(t *testing.T) {
	h, err := negotiateVersion(frame.New(frame.CONNECT, frame.AcceptVersion, "2.1,2.2"))
	assert.Nil(t, h)
	assert.Equal(t, unsupportedVersionError, err)

	h, err = negotiateVersion(frame.New(frame.CONNECT, frame.AcceptVersion, ""))
	assert.Nil(t, h)
	assert.NotNil(t, err)
}

func TestNegotiateVersion_Missing(t *testing.T) {
	h, err := negotiateVersion(frame.New(frame.STOMP))
	assert.Nil(t, err)
	assert.Equal(t, stomp.V10, h.version())
}

func TestProtocolHandler_Validate(t *testing.T) {
	tests := []struct {
		version stomp.Version
		frame   *frame.Frame
		err     string
	}{
		{stomp.V10, frame.New(frame.SEND), "Header 'destination' is required for SEND"},
		{stomp.V12, frame.New(frame.SEND, frame.Destination, "/q"), ""},
		{stomp.V10, frame.New(frame.SUBSCRIBE, frame.Destination, "/q"), ""},
		{stomp.V11, frame.New(frame.SUBSCRIBE, frame.Destination, "/q"), "Header 'id' is required for SUBSCRIBE"},
		{stomp.V12, frame.New(frame.SUBSCRIBE, frame.Id, "1"), "Header 'destination' is required for SUBSCRIBE"},
		{stomp.V10, frame.New(frame.SUBSCRIBE, frame.Destination, "/q", frame.Ack, "client-individual"),
			"Header 'ack' has invalid value 'client-individual' for SUBSCRIBE"},
		{stomp.V12, frame.New(frame.SUBSCRIBE, frame.Destination, "/q", frame.Id, "1", frame.Ack, "client-individual"), ""},
		{stomp.V10, frame.New(frame.UNSUBSCRIBE), "Header 'id' or 'destination' is required for UNSUBSCRIBE"},
		{stomp.V10, frame.New(frame.UNSUBSCRIBE, frame.Destination, "/q"), ""},
		{stomp.V11, frame.New(frame.UNSUBSCRIBE, frame.Destination, "/q"), "Header 'id' is required for UNSUBSCRIBE"},
		{stomp.V10, frame.New(frame.ACK), "Header 'message-id' is required for ACK"},
		{stomp.V11, frame.New(frame.ACK, frame.MessageId, "1"), "Header 'subscription' is required for ACK"},
		{stomp.V12, frame.New(frame.ACK, frame.MessageId, "1"), "Header 'id' is required for ACK"},
		{stomp.V10, frame.New(frame.NACK, frame.MessageId, "1"), "No such command"},
		{stomp.V11, frame.New(frame.NACK, frame.MessageId, "1", frame.Subscription, "s"), ""},
		{stomp.V12, frame.New(frame.NACK), "Header 'id' is required for NACK"},
		{stomp.V11, frame.New(frame.BEGIN), "Header 'transaction' is required for BEGIN"},
		{stomp.V11, frame.New(frame.COMMIT), "Header 'transaction' is required for COMMIT"},
		{stomp.V11, frame.New(frame.ABORT), "Header 'transaction' is required for ABORT"},
		{stomp.V12, frame.New(frame.DISCONNECT), ""},
		{stomp.V11, frame.New(frame.CONNECT, frame.HeartBeat, "x"), "Header 'heart-beat' has invalid value 'x' for CONNECT"},
		{stomp.V10, frame.New(frame.CONNECT, frame.HeartBeat, "x"), ""},
	}

	for _, tt := range tests {
		err := protocolHandlers[tt.version].validate(tt.frame)
		if tt.err == "" {
			assert.Nil(t, err, "%s %s", tt.version, tt.frame.Command)
		} else {
			assert.EqualError(t, err, tt.err, "%s %s", tt.version, tt.frame.Command)
		}
	}
}

func TestProtocolHandler_BodyNotAllowed(t *testing.T) {
	f := frame.New(frame.BEGIN, frame.Transaction, "tx")
	f.Body = []byte("payload")
	assert.EqualError(t, protocolHandlers[stomp.V12].validate(f), "Frame body is not allowed for BEGIN")

	f = frame.New(frame.SEND, frame.Destination, "/q")
	f.Body = []byte("payload")
	assert.Nil(t, protocolHandlers[stomp.V12].validate(f))
}

func TestProtocolHandler_ConnectedFrame(t *testing.T) {
	f := protocolHandlers[stomp.V10].connectedFrame("s1", "srv", 0, 0)
	verifyFrame(t, f, frame.New(frame.CONNECTED, frame.Session, "s1", frame.Server, "srv"), true)

	f = protocolHandlers[stomp.V12].connectedFrame("s1", "srv", 0, 0)
	verifyFrame(t, f, frame.New(frame.CONNECTED,
		frame.Session, "s1",
		frame.Server, "srv",
		frame.Version, "1.2",
		frame.HeartBeat, "0,0"), true)
}

func TestProtocolHandler_HeartBeatIntervalsV10(t *testing.T) {
	cx, cy, err := protocolHandlers[stomp.V10].heartBeatIntervals(
		frame.New(frame.CONNECT, frame.HeartBeat, "1000,1000"), 500)
	assert.Nil(t, err)
	assert.Zero(t, cx)
	assert.Zero(t, cy)
}
