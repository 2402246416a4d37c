// Copyright 2019-2020 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package stompserver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-stomp/stomp/v3/frame"
	"github.com/stretchr/testify/assert"
	"github.com/vmware/stompsession-go/stompsession"
)

func TestRawFrameLayer_ReadFrames(t *testing.T) {
	rawConn := NewMockRawConnection()
	l := NewRawFrameLayer(rawConn)

	rawConn.SendConnectFrame()
	// heart-beats are not delivered
	rawConn.incomingFrames <- nil
	rawConn.incomingFrames <- frame.New(frame.SEND, frame.Destination, "/queue/a")

	f := <-l.Frames()
	verifyFrame(t, f, frame.New(frame.CONNECT, frame.AcceptVersion, "1.2"), true)
	f = <-l.Frames()
	verifyFrame(t, f, frame.New(frame.SEND, frame.Destination, "/queue/a"), true)

	assert.Equal(t, time.Time{}, rawConn.getCurrentReadDeadline())

	rawConn.incomingFrames <- errors.New("connection reset")
	_, ok := <-l.Frames()
	assert.False(t, ok)
}

func TestRawFrameLayer_Send(t *testing.T) {
	rawConn := NewMockRawConnection()
	l := NewRawFrameLayer(rawConn)

	assert.Nil(t, l.Send(context.Background(), frame.New(frame.RECEIPT, frame.ReceiptId, "1")))
	assert.Equal(t, 1, len(rawConn.SentFrames()))

	rawConn.nextWriteErr = errors.New("write-error")
	assert.EqualError(t, l.Send(context.Background(), frame.New(frame.RECEIPT)), "write-error")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, context.Canceled, l.Send(ctx, frame.New(frame.RECEIPT)))

	assert.Nil(t, l.Close())
	assert.False(t, rawConn.IsConnected())
	assert.Nil(t, l.Close())
	assert.Equal(t, stompsession.ErrFrameLayerClosed, l.Send(context.Background(), frame.New(frame.RECEIPT)))
	assert.Equal(t, 1, len(rawConn.SentFrames()))

	_, ok := <-l.Frames()
	assert.False(t, ok)
}

func TestRawFrameLayer_ReadDeadline(t *testing.T) {
	rawConn := NewMockRawConnection()
	l := NewRawFrameLayer(rawConn)

	l.SetHeartBeat(5*time.Second, 0)
	deadline := rawConn.getCurrentReadDeadline()
	assert.True(t, deadline.After(time.Now().Add(4*time.Second)))

	// the deadline is refreshed before every read
	rawConn.incomingFrames <- nil
	rawConn.incomingFrames <- nil
	assert.True(t, !rawConn.getCurrentReadDeadline().Before(deadline))
	l.Close()
}

func TestRawFrameLayer_WriteHeartBeats(t *testing.T) {
	rawConn := NewMockRawConnection()
	l := NewRawFrameLayer(rawConn)

	l.SetHeartBeat(0, 20*time.Millisecond)
	rawConn.waitForWrites(t, 2)
	l.Close()

	sent := rawConn.SentFrames()
	assert.True(t, len(sent) >= 2)
	assert.Nil(t, sent[0])
	assert.Nil(t, sent[1])
}

func TestRawFrameLayer_Session(t *testing.T) {
	rawConn := NewMockRawConnection()
	session := stompsession.NewSession(NewRawFrameLayer(rawConn), &stompsession.CommandListenerFuncs{},
		stompsession.SessionConfig{Id: "s1"})
	session.Start(context.Background())

	rawConn.SendConnectFrame()
	rawConn.incomingFrames <- frame.New(frame.SEND, frame.Destination, "/queue/a", frame.Receipt, "r1")
	rawConn.waitForWrites(t, 2)

	sent := rawConn.SentFrames()
	verifyFrame(t, sent[0], frame.New(frame.CONNECTED, frame.Version, "1.2", frame.Session, "s1"), false)
	verifyFrame(t, sent[1], frame.New(frame.RECEIPT, frame.ReceiptId, "r1"), true)

	rawConn.incomingFrames <- frame.New(frame.DISCONNECT, frame.Receipt, "bye")
	rawConn.waitForWrites(t, 1)
	verifyFrame(t, rawConn.SentFrames()[2], frame.New(frame.RECEIPT, frame.ReceiptId, "bye"), true)
	assert.True(t, rawConn.IsConnected())

	// the peer hangs up
	rawConn.incomingFrames <- errors.New("EOF")
	<-session.Done()
	assert.False(t, rawConn.IsConnected())
}
