// Copyright 2019-2020 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package stompsession

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-stomp/stomp/v3/frame"
)

var ErrFrameLayerClosed = errors.New("frame layer closed")

// FrameLayer delivers parsed frames from a client and sends frames back to it.
type FrameLayer interface {
	// Frames emits one frame per received message, in arrival order.
	// The channel is closed when the peer goes away.
	Frames() <-chan *frame.Frame
	// Send transmits a frame to the peer.
	Send(ctx context.Context, f *frame.Frame) error
	// Close terminates the underlying connection.
	Close() error
}

// HeartBeater is implemented by frame layers able to enforce negotiated heart-beats.
// A zero duration disables the corresponding side.
type HeartBeater interface {
	SetHeartBeat(readTimeout time.Duration, writeInterval time.Duration)
}

// ChannelFrameLayer is an in-memory FrameLayer. Frames pushed with Deliver are handed to
// the session and every frame the session sends is recorded.
type ChannelFrameLayer struct {
	incoming chan *frame.Frame
	lock     sync.Mutex
	sent     []*frame.Frame
	closed   bool
	doneOnce sync.Once
	peerOnce sync.Once
	done     chan struct{}

	// SendFn and CloseFn, when set, are called in place of the default behavior.
	SendFn  func(f *frame.Frame) error
	CloseFn func() error
}

func NewChannelFrameLayer(bufferSize int) *ChannelFrameLayer {
	return &ChannelFrameLayer{
		incoming: make(chan *frame.Frame, bufferSize),
		sent:     []*frame.Frame{},
		done:     make(chan struct{}),
	}
}

// Deliver hands a frame to the session. It returns false if the layer was closed.
func (l *ChannelFrameLayer) Deliver(f *frame.Frame) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.incoming <- f:
		return true
	case <-l.done:
		return false
	}
}

// Disconnect simulates the peer going away. It must not be called concurrently with
// Deliver.
func (l *ChannelFrameLayer) Disconnect() {
	l.markDone()
	l.peerOnce.Do(func() {
		close(l.incoming)
	})
}

func (l *ChannelFrameLayer) markDone() {
	l.doneOnce.Do(func() {
		close(l.done)
	})
}

func (l *ChannelFrameLayer) Frames() <-chan *frame.Frame {
	return l.incoming
}

func (l *ChannelFrameLayer) Send(ctx context.Context, f *frame.Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.lock.Lock()
	closed := l.closed
	l.lock.Unlock()
	if closed {
		return ErrFrameLayerClosed
	}

	if l.SendFn != nil {
		if err := l.SendFn(f); err != nil {
			return err
		}
	}

	l.lock.Lock()
	l.sent = append(l.sent, f)
	l.lock.Unlock()
	return nil
}

func (l *ChannelFrameLayer) Close() error {
	l.lock.Lock()
	l.closed = true
	l.lock.Unlock()

	var err error
	if l.CloseFn != nil {
		err = l.CloseFn()
	}
	l.markDone()
	return err
}

// SentFrames returns a copy of the frames sent so far.
func (l *ChannelFrameLayer) SentFrames() []*frame.Frame {
	l.lock.Lock()
	defer l.lock.Unlock()
	frames := make([]*frame.Frame, len(l.sent))
	copy(frames, l.sent)
	return frames
}

// IsClosed reports whether Close was called.
func (l *ChannelFrameLayer) IsClosed() bool {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.closed
}
