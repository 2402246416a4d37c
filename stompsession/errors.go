// Copyright 2019-2020 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package stompsession

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-stomp/stomp/v3/frame"
)

const (
	unsupportedVersionError = stompErrorMessage("Supported protocol versions are: 1.0, 1.1, 1.2")
	unknownCommandError     = stompErrorMessage("No such command")
	notConnectedError       = stompErrorMessage("You must first issue a CONNECT command")
	alreadyConnectedError   = stompErrorMessage("Already connected")
)

type stompErrorMessage string

func (e stompErrorMessage) Error() string {
	return string(e)
}

func missingHeader(name string, command string) stompErrorMessage {
	return stompErrorMessage(fmt.Sprintf("Header '%s' is required for %s", name, command))
}

func missingAnyHeader(names []string, command string) stompErrorMessage {
	return stompErrorMessage(fmt.Sprintf("Header '%s' is required for %s",
		strings.Join(names, "' or '"), command))
}

func invalidHeaderValue(name string, value string, command string) stompErrorMessage {
	return stompErrorMessage(fmt.Sprintf("Header '%s' has invalid value '%s' for %s", name, value, command))
}

func bodyNotAllowed(command string) stompErrorMessage {
	return stompErrorMessage("Frame body is not allowed for " + command)
}

// ErrorKind classifies why an ERROR frame was produced.
type ErrorKind int

const (
	ListenerFailure ErrorKind = iota
	NegotiationFailure
	PrematureCommand
	UnknownCommand
	ValidationFailure
)

func (k ErrorKind) String() string {
	switch k {
	case NegotiationFailure:
		return "negotiation_failure"
	case PrematureCommand:
		return "premature_command"
	case UnknownCommand:
		return "unknown_command"
	case ValidationFailure:
		return "validation_failure"
	}
	return "listener_failure"
}

// ProtocolError is a failure that is reported to the peer as an ERROR frame.
// ReceiptId is empty when the failing frame did not request a receipt.
type ProtocolError struct {
	Kind      ErrorKind
	Message   string
	ReceiptId string
}

func (e *ProtocolError) Error() string {
	return e.Message
}

// ToFrame builds the ERROR frame sent for this failure.
func (e *ProtocolError) ToFrame() *frame.Frame {
	f := frame.New(frame.ERROR, frame.Message, e.Message)
	if e.ReceiptId != "" {
		f.Header.Add(frame.ReceiptId, e.ReceiptId)
	}
	return f
}

// NewProtocolError creates a ProtocolError of the given kind for the frame being
// processed, carrying its receipt header forward when present. Unknown and premature
// commands are never correlated with a receipt.
func NewProtocolError(kind ErrorKind, err error, f *frame.Frame) *ProtocolError {
	pe := &ProtocolError{Kind: kind, Message: err.Error()}

	var inner *ProtocolError
	if errors.As(err, &inner) {
		pe.Message = inner.Message
	}

	if f != nil && kind != UnknownCommand && kind != PrematureCommand {
		if receipt, ok := f.Header.Contains(frame.Receipt); ok {
			pe.ReceiptId = receipt
		}
	}
	return pe
}
