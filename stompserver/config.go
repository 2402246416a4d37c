// Copyright 2019-2020 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package stompserver

import "github.com/vmware/stompsession-go/stompsession"

type StompConfig interface {
	// Minimum heart-beat interval in milliseconds, 0 disables heart-beating
	HeartBeat() int64
	// Server name reported in CONNECTED frames
	ServerName() string
}

type stompConfig struct {
	heartbeat  int64
	serverName string
}

func NewStompConfig(heartBeatMs int64, serverName string) StompConfig {
	if serverName == "" {
		serverName = stompsession.DefaultServerName
	}
	if heartBeatMs < 0 {
		heartBeatMs = 0
	}
	return &stompConfig{
		heartbeat:  heartBeatMs,
		serverName: serverName,
	}
}

func (c *stompConfig) HeartBeat() int64 {
	return c.heartbeat
}

func (c *stompConfig) ServerName() string {
	return c.serverName
}
