// Copyright 2019-2020 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package stompserver

import (
	"time"

	"github.com/go-stomp/stomp/v3/frame"
)

type RawConnection interface {
	// ReadFrame Reads a single frame object. A nil frame is a heart-beat.
	ReadFrame() (*frame.Frame, error)
	// WriteFrame Sends a single frame object. A nil frame writes a heart-beat.
	WriteFrame(frame *frame.Frame) error
	// SetReadDeadline Set deadline for reading frames
	SetReadDeadline(t time.Time)
	// GetRemoteAddr Returns the remote address of the connection
	GetRemoteAddr() string
	// Close the connection
	Close() error
}

type RawConnectionListener interface {
	// Accept Blocks until a new RawConnection is established.
	Accept() (RawConnection, error)
	// Close Stops the connection listener.
	Close() error
}
