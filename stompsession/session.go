// Copyright 2019-2020 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package stompsession

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-stomp/stomp/v3"
	"github.com/go-stomp/stomp/v3/frame"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/vmware/stompsession-go/log"
	"github.com/vmware/stompsession-go/metrics"
)

const DefaultServerName = "stompsession/1.0"

type SessionConfig struct {
	// Id identifies the session. A random UUID is used when empty.
	Id string
	// ServerName is reported in the CONNECTED frame.
	ServerName string
	// HeartBeatMs is the minimum heart-beat interval. Zero disables heart-beating.
	HeartBeatMs int64
}

type sessionState struct {
	authenticated bool
	handler       *protocolHandler
}

// Session runs the server side of one STOMP connection. Frames are handled one at a
// time in arrival order by the goroutine executing Run.
type Session struct {
	id         string
	config     SessionConfig
	frameLayer FrameLayer
	listener   CommandListener
	stateLock  sync.RWMutex
	state      sessionState
	closing    bool
	runOnce    sync.Once
	done       chan struct{}
	log        *logrus.Entry
}

func NewSession(frameLayer FrameLayer, listener CommandListener, config SessionConfig) *Session {
	if config.Id == "" {
		config.Id = uuid.New().String()
	}
	if config.ServerName == "" {
		config.ServerName = DefaultServerName
	}
	return &Session{
		id:         config.Id,
		config:     config,
		frameLayer: frameLayer,
		listener:   listener,
		done:       make(chan struct{}),
		log:        log.Log.WithSession(config.Id),
	}
}

func (s *Session) GetId() string {
	return s.id
}

// Version returns the negotiated protocol version, or an empty version before negotiation.
func (s *Session) Version() stomp.Version {
	s.stateLock.RLock()
	defer s.stateLock.RUnlock()
	if s.state.handler == nil {
		return ""
	}
	return s.state.handler.version()
}

func (s *Session) Authenticated() bool {
	s.stateLock.RLock()
	defer s.stateLock.RUnlock()
	return s.state.authenticated
}

// Done is closed when Run returns.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Start runs the session in a new goroutine.
func (s *Session) Start(ctx context.Context) {
	go s.Run(ctx)
}

// Run processes frames until the peer goes away, ctx is cancelled or the session closes
// the connection itself. The frame layer is always closed when Run returns.
func (s *Session) Run(ctx context.Context) {
	s.runOnce.Do(func() {
		defer close(s.done)
		defer s.close()

		frames := s.frameLayer.Frames()
		for {
			select {
			case <-ctx.Done():
				return
			case f, ok := <-frames:
				if !ok {
					s.log.Debug("frame stream closed")
					return
				}
				s.handleFrame(ctx, f)
				if s.closing {
					return
				}
			}
		}
	})
}

func (s *Session) handleFrame(ctx context.Context, f *frame.Frame) {
	metrics.FramesReceived.WithLabelValues(commandLabel(f.Command)).Inc()

	if pe := s.processFrame(ctx, f); pe != nil {
		s.sendError(ctx, pe)
		if pe.Kind == PrematureCommand {
			s.close()
		}
	}
}

func (s *Session) processFrame(ctx context.Context, f *frame.Frame) *ProtocolError {
	if !knownCommands[f.Command] {
		return NewProtocolError(UnknownCommand, unknownCommandError, f)
	}

	if isConnectCommand(f.Command) {
		return s.handleConnect(ctx, f)
	}

	authenticated, handler := s.snapshot()
	if !authenticated {
		return NewProtocolError(PrematureCommand, notConnectedError, f)
	}
	if !handler.supports(f.Command) {
		return NewProtocolError(UnknownCommand, unknownCommandError, f)
	}
	if err := handler.validate(f); err != nil {
		return NewProtocolError(ValidationFailure, err, f)
	}
	if err := s.invoke(ctx, f, handler); err != nil {
		return NewProtocolError(ListenerFailure, err, f)
	}

	s.sendReceipt(ctx, f)
	return nil
}

func (s *Session) handleConnect(ctx context.Context, f *frame.Frame) *ProtocolError {
	authenticated, handler := s.snapshot()
	if authenticated {
		return NewProtocolError(ValidationFailure, alreadyConnectedError, f)
	}

	if s.Version() == "" {
		negotiated, err := negotiateVersion(f)
		if err != nil {
			s.log.Debugf("cannot negotiate version from accept-version '%s'",
				f.Header.Get(frame.AcceptVersion))
			return NewProtocolError(NegotiationFailure, err, f)
		}
		handler = negotiated
		s.stateLock.Lock()
		s.state.handler = handler
		s.stateLock.Unlock()
		metrics.NegotiatedVersions.WithLabelValues(handler.version().String()).Inc()
	}

	if err := handler.validate(f); err != nil {
		return NewProtocolError(ValidationFailure, err, f)
	}

	cx, cy, err := handler.heartBeatIntervals(f, s.config.HeartBeatMs)
	if err != nil {
		return NewProtocolError(ValidationFailure, err, f)
	}

	if err := s.invoke(ctx, f, handler); err != nil {
		return NewProtocolError(ListenerFailure, err, f)
	}

	s.stateLock.Lock()
	s.state.authenticated = true
	s.stateLock.Unlock()

	if hb, ok := s.frameLayer.(HeartBeater); ok {
		hb.SetHeartBeat(cx, cy)
	}

	s.log.Debugf("connected with STOMP %s", handler.version())
	s.send(ctx, handler.connectedFrame(s.id, s.config.ServerName, cx, cy))
	s.sendReceipt(ctx, f)
	return nil
}

// snapshot returns the authentication flag and the active protocol handler.
// Sessions flagged authenticated without a negotiated version use STOMP 1.0 rules.
func (s *Session) snapshot() (bool, *protocolHandler) {
	s.stateLock.RLock()
	defer s.stateLock.RUnlock()
	handler := s.state.handler
	if handler == nil {
		handler = protocolHandlers[stomp.V10]
	}
	return s.state.authenticated, handler
}

func (s *Session) invoke(ctx context.Context, f *frame.Frame, handler *protocolHandler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorf("listener panic on %s: %v", f.Command, r)
			err = fmt.Errorf("%v", r)
		}
	}()
	ctx = withSessionInfo(ctx, SessionInfo{Id: s.id, Version: handler.version()})
	return dispatch(ctx, s.listener, f)
}

func (s *Session) sendReceipt(ctx context.Context, f *frame.Frame) {
	if receipt, ok := f.Header.Contains(frame.Receipt); ok {
		s.send(ctx, frame.New(frame.RECEIPT, frame.ReceiptId, receipt))
	}
}

func (s *Session) sendError(ctx context.Context, pe *ProtocolError) {
	metrics.ProtocolErrors.WithLabelValues(pe.Kind.String()).Inc()
	s.log.WithField("kind", pe.Kind.String()).Debugf("sending ERROR: %s", pe.Message)
	s.send(ctx, pe.ToFrame())
}

func (s *Session) send(ctx context.Context, f *frame.Frame) {
	if s.closing {
		return
	}
	if err := s.frameLayer.Send(ctx, f); err != nil {
		s.log.Warnf("failed to send %s frame: %v", f.Command, err)
		return
	}
	metrics.FramesSent.WithLabelValues(f.Command).Inc()
}

func (s *Session) close() {
	if s.closing {
		return
	}
	s.closing = true
	if err := s.frameLayer.Close(); err != nil {
		s.log.Debugf("failed to close frame layer: %v", err)
	}
}

func commandLabel(command string) string {
	if knownCommands[command] {
		return command
	}
	return "UNKNOWN"
}
