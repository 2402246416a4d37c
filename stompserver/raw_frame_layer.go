// Copyright 2019-2020 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package stompserver

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-stomp/stomp/v3/frame"
	"github.com/vmware/stompsession-go/stompsession"
)

// RawFrameLayer adapts a RawConnection to the stompsession.FrameLayer contract and
// enforces negotiated heart-beats.
type RawFrameLayer struct {
	rawConnection RawConnection
	frames        chan *frame.Frame
	readTimeoutMs int64
	writeLock     sync.Mutex
	wroteFrame    bool
	closed        chan struct{}
	closeOnce     sync.Once
}

func NewRawFrameLayer(rawConnection RawConnection) *RawFrameLayer {
	l := &RawFrameLayer{
		rawConnection: rawConnection,
		frames:        make(chan *frame.Frame, 32),
		closed:        make(chan struct{}),
	}
	go l.readInFrames()
	return l
}

func (l *RawFrameLayer) Frames() <-chan *frame.Frame {
	return l.frames
}

func (l *RawFrameLayer) Send(ctx context.Context, f *frame.Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-l.closed:
		return stompsession.ErrFrameLayerClosed
	default:
	}

	l.writeLock.Lock()
	defer l.writeLock.Unlock()
	l.wroteFrame = true
	return l.rawConnection.WriteFrame(f)
}

func (l *RawFrameLayer) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.closed)
		err = l.rawConnection.Close()
	})
	return err
}

// SetHeartBeat applies the intervals negotiated on CONNECT. The client must send
// something at least every readTimeout and the server writes a heart-beat whenever
// writeInterval elapses without any frame being written.
func (l *RawFrameLayer) SetHeartBeat(readTimeout time.Duration, writeInterval time.Duration) {
	atomic.StoreInt64(&l.readTimeoutMs, int64(readTimeout/time.Millisecond))
	if readTimeout > 0 {
		l.rawConnection.SetReadDeadline(time.Now().Add(readTimeout))
	}
	if writeInterval > 0 {
		go l.writeHeartBeats(writeInterval)
	}
}

func (l *RawFrameLayer) writeHeartBeats(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.closed:
			return
		case <-ticker.C:
			l.writeLock.Lock()
			var err error
			if !l.wroteFrame {
				// a nil frame is written as a heart-beat
				err = l.rawConnection.WriteFrame(nil)
			}
			l.wroteFrame = false
			l.writeLock.Unlock()

			if err != nil {
				return
			}
		}
	}
}

func (l *RawFrameLayer) readInFrames() {
	defer close(l.frames)

	infiniteTimeout := time.Time{}
	for {
		readTimeoutMs := atomic.LoadInt64(&l.readTimeoutMs)
		if readTimeoutMs > 0 {
			l.rawConnection.SetReadDeadline(time.Now().Add(
				time.Duration(readTimeoutMs) * time.Millisecond))
		} else {
			l.rawConnection.SetReadDeadline(infiniteTimeout)
		}

		f, err := l.rawConnection.ReadFrame()
		if err != nil {
			return
		}

		if f == nil {
			// heartbeat frame
			continue
		}

		select {
		case l.frames <- f:
		case <-l.closed:
			return
		}
	}
}
