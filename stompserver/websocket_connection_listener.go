// Copyright 2019-2020 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package stompserver

import (
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-stomp/stomp/v3/frame"
	"github.com/gorilla/websocket"
)

type webSocketStompConnection struct {
	wsCon *websocket.Conn
}

func (c *webSocketStompConnection) ReadFrame() (*frame.Frame, error) {
	_, r, err := c.wsCon.NextReader()
	if err != nil {
		return nil, err
	}
	frameR := frame.NewReader(r)
	return frameR.Read()
}

func (c *webSocketStompConnection) WriteFrame(f *frame.Frame) error {
	wr, err := c.wsCon.NextWriter(websocket.TextMessage)
	if err != nil {
		return err
	}
	frameWr := frame.NewWriter(wr)
	err = frameWr.Write(f)
	if err != nil {
		return err
	}
	return wr.Close()
}

func (c *webSocketStompConnection) SetReadDeadline(t time.Time) {
	c.wsCon.SetReadDeadline(t)
}

func (c *webSocketStompConnection) GetRemoteAddr() string {
	if addr := c.wsCon.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

func (c *webSocketStompConnection) Close() error {
	return c.wsCon.Close()
}

type webSocketConnectionListener struct {
	httpServer            *http.Server
	requestHandler        *http.ServeMux
	tcpConnectionListener net.Listener
	connectionsChannel    chan rawConnResult
	allowedOrigins        []string
	done                  chan struct{}
	closeOnce             sync.Once
}

type rawConnResult struct {
	conn RawConnection
	err  error
}

// NewWebSocketConnectionListener serves STOMP over WebSocket on the given endpoint.
// Origins other than the request host must be listed in allowedOrigins unless the
// list is empty.
func NewWebSocketConnectionListener(addr string, endpoint string, allowedOrigins []string) (RawConnectionListener, error) {
	rh := http.NewServeMux()
	l := &webSocketConnectionListener{
		requestHandler: rh,
		httpServer: &http.Server{
			Addr:    addr,
			Handler: rh,
		},
		connectionsChannel: make(chan rawConnResult),
		allowedOrigins:     allowedOrigins,
		done:               make(chan struct{}),
	}

	var upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		Subprotocols:    []string{"v12.stomp", "v11.stomp", "v10.stomp"},
	}

	upgrader.CheckOrigin = l.checkOrigin

	rh.HandleFunc(endpoint, func(writer http.ResponseWriter, request *http.Request) {
		var result rawConnResult
		conn, err := upgrader.Upgrade(writer, request, nil)
		if err != nil {
			result.err = err
		} else {
			result.conn = &webSocketStompConnection{wsCon: conn}
		}

		select {
		case l.connectionsChannel <- result:
		case <-l.done:
			if conn != nil {
				conn.Close()
			}
		}
	})

	var err error
	l.tcpConnectionListener, err = net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	go l.httpServer.Serve(l.tcpConnectionListener)
	return l, nil
}

func (l *webSocketConnectionListener) checkOrigin(r *http.Request) bool {
	if len(l.allowedOrigins) == 0 {
		return true
	}

	origin := r.Header["Origin"]
	if len(origin) == 0 {
		return true
	}
	u, err := url.Parse(origin[0])
	if err != nil {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}

	for _, allowedOrigin := range l.allowedOrigins {
		if strings.EqualFold(u.Host, allowedOrigin) {
			return true
		}
	}

	return false
}

func (l *webSocketConnectionListener) Accept() (RawConnection, error) {
	select {
	case cr := <-l.connectionsChannel:
		return cr.conn, cr.err
	case <-l.done:
		return nil, listenerClosedError
	}
}

// Addr returns the address the listener is bound to.
func (l *webSocketConnectionListener) Addr() net.Addr {
	return l.tcpConnectionListener.Addr()
}

func (l *webSocketConnectionListener) Close() error {
	l.closeOnce.Do(func() {
		close(l.done)
	})
	return l.httpServer.Close()
}
