// Copyright 2019-2020 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package stompserver

import (
	"sync"
	"testing"
	"time"

	"github.com/go-stomp/stomp/v3/frame"
	"github.com/stretchr/testify/assert"
)

type MockRawConnection struct {
	connected       bool
	incomingFrames  chan interface{}
	lock            sync.Mutex
	currentDeadline time.Time
	sentFrames      []*frame.Frame
	nextWriteErr    error
	writes          chan *frame.Frame
	closed          chan struct{}
	closeOnce       sync.Once
}

func NewMockRawConnection() *MockRawConnection {
	return &MockRawConnection{
		connected:      true,
		incomingFrames: make(chan interface{}),
		sentFrames:     []*frame.Frame{},
		writes:         make(chan *frame.Frame, 64),
		closed:         make(chan struct{}),
	}
}

func (con *MockRawConnection) ReadFrame() (*frame.Frame, error) {
	var obj interface{}
	select {
	case obj = <-con.incomingFrames:
	case <-con.closed:
		return nil, listenerClosedError
	}

	if obj == nil {
		// heart-beat
		return nil, nil
	}

	f, ok := obj.(*frame.Frame)
	if ok {
		return f, nil
	}

	return nil, obj.(error)
}

func (con *MockRawConnection) WriteFrame(frame *frame.Frame) error {
	con.lock.Lock()
	defer con.lock.Unlock()

	if con.nextWriteErr != nil {
		err := con.nextWriteErr
		con.nextWriteErr = nil
		return err
	}

	con.sentFrames = append(con.sentFrames, frame)
	select {
	case con.writes <- frame:
	default:
	}
	return nil
}

func (con *MockRawConnection) SentFrames() []*frame.Frame {
	con.lock.Lock()
	defer con.lock.Unlock()
	frames := make([]*frame.Frame, len(con.sentFrames))
	copy(frames, con.sentFrames)
	return frames
}

// waitForWrites blocks until count more frames have been written.
func (con *MockRawConnection) waitForWrites(t *testing.T, count int) {
	for i := 0; i < count; i++ {
		select {
		case <-con.writes:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for write %d", i+1)
		}
	}
}

func (con *MockRawConnection) SetReadDeadline(t time.Time) {
	con.lock.Lock()
	con.currentDeadline = t
	con.lock.Unlock()
}

func (con *MockRawConnection) getCurrentReadDeadline() time.Time {
	con.lock.Lock()
	defer con.lock.Unlock()
	return con.currentDeadline
}

func (con *MockRawConnection) GetRemoteAddr() string {
	return "127.0.0.1:61613"
}

func (con *MockRawConnection) Close() error {
	con.lock.Lock()
	con.connected = false
	con.lock.Unlock()
	con.closeOnce.Do(func() {
		close(con.closed)
	})
	return nil
}

func (con *MockRawConnection) IsConnected() bool {
	con.lock.Lock()
	defer con.lock.Unlock()
	return con.connected
}

func (con *MockRawConnection) SendConnectFrame() {
	con.incomingFrames <- frame.New(
		frame.CONNECT,
		frame.AcceptVersion, "1.2")
}

func verifyFrame(t *testing.T, actualFrame *frame.Frame, expectedFrame *frame.Frame, exactHeaderMatch bool) {
	assert.Equal(t, expectedFrame.Command, actualFrame.Command)
	if exactHeaderMatch {
		assert.Equal(t, expectedFrame.Header.Len(), actualFrame.Header.Len())
	}

	for i := 0; i < expectedFrame.Header.Len(); i++ {
		key, value := expectedFrame.Header.GetAt(i)
		assert.Equal(t, value, actualFrame.Header.Get(key))
	}
}
