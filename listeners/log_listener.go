// Copyright 2019-2020 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package listeners

import (
	"context"

	"github.com/go-stomp/stomp/v3/frame"
	"github.com/sirupsen/logrus"
	"github.com/vmware/stompsession-go/log"
	"github.com/vmware/stompsession-go/stompsession"
)

// NewLogListener returns a listener accepting every command and logging it at debug level.
func NewLogListener() stompsession.CommandListener {
	logFrame := func(command string) stompsession.HeaderHandlerFunction {
		return func(ctx context.Context, headers *frame.Header) error {
			logCommand(ctx, command, headers)
			return nil
		}
	}
	return &stompsession.CommandListenerFuncs{
		OnConnect: logFrame(frame.CONNECT),
		OnSend: func(ctx context.Context, headers *frame.Header, body []byte) error {
			logCommand(ctx, frame.SEND, headers)
			return nil
		},
		OnSubscribe:   logFrame(frame.SUBSCRIBE),
		OnUnsubscribe: logFrame(frame.UNSUBSCRIBE),
		OnAck:         logFrame(frame.ACK),
		OnNack:        logFrame(frame.NACK),
		OnBegin:       logFrame(frame.BEGIN),
		OnCommit:      logFrame(frame.COMMIT),
		OnAbort:       logFrame(frame.ABORT),
		OnDisconnect:  logFrame(frame.DISCONNECT),
	}
}

func logCommand(ctx context.Context, command string, headers *frame.Header) {
	entry := log.Log.WithField("command", command)
	if info, ok := stompsession.SessionInfoFromContext(ctx); ok {
		entry = entry.WithFields(logrus.Fields{"session": info.Id, "version": info.Version.String()})
	}
	if destination, ok := headers.Contains(frame.Destination); ok {
		entry = entry.WithField("destination", destination)
	}
	entry.Debug("command accepted")
}
