// Copyright 2019-2020 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package stompsession

import (
	"context"

	"github.com/go-stomp/stomp/v3"
	"github.com/go-stomp/stomp/v3/frame"
)

// CommandListener is implemented by the application to handle client commands.
// A returned error is reported to the client as an ERROR frame whose message is the
// error text.
type CommandListener interface {
	Connect(ctx context.Context, headers *frame.Header) error
	Send(ctx context.Context, headers *frame.Header, body []byte) error
	Subscribe(ctx context.Context, headers *frame.Header) error
	Unsubscribe(ctx context.Context, headers *frame.Header) error
	Ack(ctx context.Context, headers *frame.Header) error
	Nack(ctx context.Context, headers *frame.Header) error
	Begin(ctx context.Context, headers *frame.Header) error
	Commit(ctx context.Context, headers *frame.Header) error
	Abort(ctx context.Context, headers *frame.Header) error
	Disconnect(ctx context.Context, headers *frame.Header) error
}

type HeaderHandlerFunction func(ctx context.Context, headers *frame.Header) error

type SendHandlerFunction func(ctx context.Context, headers *frame.Header, body []byte) error

// CommandListenerFuncs implements CommandListener with optional functions.
// Commands without a function succeed.
type CommandListenerFuncs struct {
	OnConnect     HeaderHandlerFunction
	OnSend        SendHandlerFunction
	OnSubscribe   HeaderHandlerFunction
	OnUnsubscribe HeaderHandlerFunction
	OnAck         HeaderHandlerFunction
	OnNack        HeaderHandlerFunction
	OnBegin       HeaderHandlerFunction
	OnCommit      HeaderHandlerFunction
	OnAbort       HeaderHandlerFunction
	OnDisconnect  HeaderHandlerFunction
}

func call(fn HeaderHandlerFunction, ctx context.Context, headers *frame.Header) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, headers)
}

func (l *CommandListenerFuncs) Connect(ctx context.Context, headers *frame.Header) error {
	return call(l.OnConnect, ctx, headers)
}

func (l *CommandListenerFuncs) Send(ctx context.Context, headers *frame.Header, body []byte) error {
	if l.OnSend == nil {
		return nil
	}
	return l.OnSend(ctx, headers, body)
}

func (l *CommandListenerFuncs) Subscribe(ctx context.Context, headers *frame.Header) error {
	return call(l.OnSubscribe, ctx, headers)
}

func (l *CommandListenerFuncs) Unsubscribe(ctx context.Context, headers *frame.Header) error {
	return call(l.OnUnsubscribe, ctx, headers)
}

func (l *CommandListenerFuncs) Ack(ctx context.Context, headers *frame.Header) error {
	return call(l.OnAck, ctx, headers)
}

func (l *CommandListenerFuncs) Nack(ctx context.Context, headers *frame.Header) error {
	return call(l.OnNack, ctx, headers)
}

func (l *CommandListenerFuncs) Begin(ctx context.Context, headers *frame.Header) error {
	return call(l.OnBegin, ctx, headers)
}

func (l *CommandListenerFuncs) Commit(ctx context.Context, headers *frame.Header) error {
	return call(l.OnCommit, ctx, headers)
}

func (l *CommandListenerFuncs) Abort(ctx context.Context, headers *frame.Header) error {
	return call(l.OnAbort, ctx, headers)
}

func (l *CommandListenerFuncs) Disconnect(ctx context.Context, headers *frame.Header) error {
	return call(l.OnDisconnect, ctx, headers)
}

// dispatch invokes the listener method matching the frame command.
func dispatch(ctx context.Context, l CommandListener, f *frame.Frame) error {
	headers := f.Header.Clone()
	switch f.Command {
	case frame.CONNECT, frame.STOMP:
		return l.Connect(ctx, headers)
	case frame.SEND:
		body := make([]byte, len(f.Body))
		copy(body, f.Body)
		return l.Send(ctx, headers, body)
	case frame.SUBSCRIBE:
		return l.Subscribe(ctx, headers)
	case frame.UNSUBSCRIBE:
		return l.Unsubscribe(ctx, headers)
	case frame.ACK:
		return l.Ack(ctx, headers)
	case frame.NACK:
		return l.Nack(ctx, headers)
	case frame.BEGIN:
		return l.Begin(ctx, headers)
	case frame.COMMIT:
		return l.Commit(ctx, headers)
	case frame.ABORT:
		return l.Abort(ctx, headers)
	case frame.DISCONNECT:
		return l.Disconnect(ctx, headers)
	}
	return unknownCommandError
}

type sessionInfoKey struct{}

// SessionInfo describes the session a listener call belongs to.
type SessionInfo struct {
	Id      string
	Version stomp.Version
}

func withSessionInfo(ctx context.Context, info SessionInfo) context.Context {
	return context.WithValue(ctx, sessionInfoKey{}, info)
}

// SessionInfoFromContext returns the session of a listener call.
func SessionInfoFromContext(ctx context.Context) (SessionInfo, bool) {
	info, ok := ctx.Value(sessionInfoKey{}).(SessionInfo)
	return info, ok
}
