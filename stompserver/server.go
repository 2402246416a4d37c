// Copyright 2019-2020 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package stompserver

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/vmware/stompsession-go/log"
	"github.com/vmware/stompsession-go/metrics"
	"github.com/vmware/stompsession-go/stompsession"
)

// ListenerFactory creates the application listener for a new session.
type ListenerFactory func(sessionId string, remoteAddr string) stompsession.CommandListener

type StompServer interface {
	// Start accepts connections until Stop is called. It blocks.
	Start() error
	// Stop closes the connection listener and every running session.
	Stop()
	// SessionCount returns the number of running sessions.
	SessionCount() int
	// SetSessionEventCallback registers a callback for SessionStarted or SessionClosed events.
	SetSessionEventCallback(eventType SessionEventType, cb func(e *SessionEvent))
}

type SessionEventType int

const (
	SessionStarted SessionEventType = iota
	SessionClosed
)

type SessionEvent struct {
	SessionId  string
	RemoteAddr string
	EventType  SessionEventType
	Session    *stompsession.Session
}

type stompServer struct {
	connectionListener RawConnectionListener
	config             StompConfig
	listenerFactory    ListenerFactory
	lock               sync.RWMutex
	sessions           map[string]*stompsession.Session
	callbacks          map[SessionEventType]func(e *SessionEvent)
	running            bool
	ctx                context.Context
	cancel             context.CancelFunc
	sessionsWg         sync.WaitGroup
}

func NewStompServer(listener RawConnectionListener, config StompConfig, factory ListenerFactory) StompServer {
	ctx, cancel := context.WithCancel(context.Background())
	return &stompServer{
		connectionListener: listener,
		config:             config,
		listenerFactory:    factory,
		sessions:           make(map[string]*stompsession.Session),
		callbacks:          make(map[SessionEventType]func(e *SessionEvent)),
		ctx:                ctx,
		cancel:             cancel,
	}
}

func (s *stompServer) SetSessionEventCallback(eventType SessionEventType, cb func(e *SessionEvent)) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.callbacks[eventType] = cb
}

func (s *stompServer) SessionCount() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return len(s.sessions)
}

func (s *stompServer) Start() error {
	s.lock.Lock()
	if s.running {
		s.lock.Unlock()
		return serverRunningError
	}
	s.running = true
	s.lock.Unlock()

	defer func() {
		s.lock.Lock()
		s.running = false
		s.lock.Unlock()
	}()

	for {
		rawConn, err := s.connectionListener.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return nil
			default:
			}
			log.Log.Warnf("failed to establish client connection: %v", err)
			continue
		}
		s.startSession(rawConn)
	}
}

// Stop is final, the server cannot be started again.
func (s *stompServer) Stop() {
	s.lock.Lock()
	s.running = false
	s.lock.Unlock()

	s.cancel()
	s.connectionListener.Close()
	s.sessionsWg.Wait()
}

func (s *stompServer) startSession(rawConn RawConnection) {
	sessionId := uuid.New().String()
	remoteAddr := rawConn.GetRemoteAddr()

	session := stompsession.NewSession(
		NewRawFrameLayer(rawConn),
		s.listenerFactory(sessionId, remoteAddr),
		stompsession.SessionConfig{
			Id:          sessionId,
			ServerName:  s.config.ServerName(),
			HeartBeatMs: s.config.HeartBeat(),
		})

	event := &SessionEvent{
		SessionId:  sessionId,
		RemoteAddr: remoteAddr,
		EventType:  SessionStarted,
		Session:    session,
	}

	s.lock.Lock()
	if !s.running {
		s.lock.Unlock()
		rawConn.Close()
		return
	}
	s.sessions[sessionId] = session
	s.sessionsWg.Add(1)
	s.lock.Unlock()
	metrics.ActiveSessions.Inc()
	log.Log.WithSession(sessionId).Debugf("session started for %s", remoteAddr)
	s.fireEvent(event)

	go func() {
		defer s.sessionsWg.Done()
		session.Run(s.ctx)

		s.lock.Lock()
		delete(s.sessions, sessionId)
		s.lock.Unlock()
		metrics.ActiveSessions.Dec()
		log.Log.WithSession(sessionId).Debug("session closed")

		s.fireEvent(&SessionEvent{
			SessionId:  sessionId,
			RemoteAddr: remoteAddr,
			EventType:  SessionClosed,
			Session:    session,
		})
	}()
}

func (s *stompServer) fireEvent(e *SessionEvent) {
	s.lock.RLock()
	fn, exists := s.callbacks[e.EventType]
	s.lock.RUnlock()
	if exists {
		fn(e)
	}
}
