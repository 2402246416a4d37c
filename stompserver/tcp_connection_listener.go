// Copyright 2019-2020 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package stompserver

import (
	"bufio"
	"net"
	"time"

	"github.com/go-stomp/stomp/v3/frame"
)

type tcpStompConnection struct {
	tcpCon net.Conn
	reader *frame.Reader
	writer *frame.Writer
}

func newTcpStompConnection(conn net.Conn) *tcpStompConnection {
	return &tcpStompConnection{
		tcpCon: conn,
		reader: frame.NewReader(bufio.NewReader(conn)),
		writer: frame.NewWriter(conn),
	}
}

func (c *tcpStompConnection) ReadFrame() (*frame.Frame, error) {
	return c.reader.Read()
}

func (c *tcpStompConnection) WriteFrame(f *frame.Frame) error {
	return c.writer.Write(f)
}

func (c *tcpStompConnection) SetReadDeadline(t time.Time) {
	c.tcpCon.SetReadDeadline(t)
}

func (c *tcpStompConnection) GetRemoteAddr() string {
	if addr := c.tcpCon.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

func (c *tcpStompConnection) Close() error {
	return c.tcpCon.Close()
}

type tcpConnectionListener struct {
	listener net.Listener
}

func NewTcpConnectionListener(addr string) (RawConnectionListener, error) {
	tcpListener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &tcpConnectionListener{listener: tcpListener}, nil
}

func (l *tcpConnectionListener) Accept() (RawConnection, error) {
	conn, err := l.listener.Accept()

	if err != nil {
		return nil, err
	}

	return newTcpStompConnection(conn), nil
}

// Addr returns the address the listener is bound to.
func (l *tcpConnectionListener) Addr() net.Addr {
	return l.listener.Addr()
}

func (l *tcpConnectionListener) Close() error {
	return l.listener.Close()
}
