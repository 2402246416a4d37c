// Copyright 2019-2020 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/streadway/amqp"
	"github.com/vmware/stompsession-go/config"
	"github.com/vmware/stompsession-go/listeners"
	"github.com/vmware/stompsession-go/log"
	"github.com/vmware/stompsession-go/metrics"
	"github.com/vmware/stompsession-go/stompserver"
	"github.com/vmware/stompsession-go/stompsession"
)

type daemon struct {
	cfg           *config.Config
	factory       stompserver.ListenerFactory
	servers       []stompserver.StompServer
	metricsServer *http.Server
	cronJob       *cron.Cron
	amqpConn      *amqp.Connection
}

func newDaemon(cfg *config.Config) (*daemon, error) {
	d := &daemon{cfg: cfg}

	var auth *listeners.Authenticator
	if cfg.AuthEnabled() {
		var err error
		auth, err = listeners.NewAuthenticator(credentials(cfg.Users))
		if err != nil {
			return nil, err
		}
	}

	var publisher listeners.Publisher
	if cfg.Amqp.Url != "" {
		conn, ch, err := listeners.DialPublisher(cfg.Amqp.Url)
		if err != nil {
			return nil, err
		}
		d.amqpConn = conn
		publisher = ch
	}

	d.factory = newListenerFactory(auth, publisher, cfg.Amqp.Exchange)
	return d, nil
}

func credentials(users []config.UserConfig) []listeners.Credentials {
	result := make([]listeners.Credentials, 0, len(users))
	for _, u := range users {
		result = append(result, listeners.Credentials{
			Login:        u.Login,
			PasscodeHash: u.PasscodeHash,
			Destinations: u.Destinations,
		})
	}
	return result
}

// newListenerFactory composes the listener of each session: every command is logged,
// SEND frames are forwarded when a publisher is set and credentials are checked first
// when auth is set.
func newListenerFactory(auth *listeners.Authenticator, publisher listeners.Publisher, exchange string) stompserver.ListenerFactory {
	return func(sessionId string, remoteAddr string) stompsession.CommandListener {
		var l stompsession.CommandListener = listeners.NewLogListener()
		if publisher != nil {
			l = listeners.Chain(l, listeners.NewAmqpListener(publisher, exchange))
		}
		if auth != nil {
			l = auth.NewListener(l)
		}
		return l
	}
}

func (d *daemon) start() error {
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return err
	}

	if d.cfg.StatsSchedule != "" {
		d.cronJob = cron.New()
		if _, err := d.cronJob.AddFunc(d.cfg.StatsSchedule, d.logStats); err != nil {
			return fmt.Errorf("invalid stats schedule %q: %w", d.cfg.StatsSchedule, err)
		}
	}

	stompConfig := stompserver.NewStompConfig(d.cfg.Stomp.HeartBeatMs, d.cfg.Stomp.ServerName)

	if d.cfg.Tcp.Enabled {
		l, err := stompserver.NewTcpConnectionListener(d.cfg.Tcp.Address)
		if err != nil {
			return fmt.Errorf("failed to start tcp listener: %w", err)
		}
		d.servers = append(d.servers, stompserver.NewStompServer(l, stompConfig, d.factory))
	}

	if d.cfg.WebSocket.Enabled {
		l, err := stompserver.NewWebSocketConnectionListener(d.cfg.WebSocket.Address,
			d.cfg.WebSocket.Endpoint, d.cfg.WebSocket.AllowedOrigins)
		if err != nil {
			return fmt.Errorf("failed to start websocket listener: %w", err)
		}
		d.servers = append(d.servers, stompserver.NewStompServer(l, stompConfig, d.factory))
	}

	for _, s := range d.servers {
		s.SetSessionEventCallback(stompserver.SessionStarted, func(e *stompserver.SessionEvent) {
			log.Log.WithSession(e.SessionId).Infof("client connected from %s", e.RemoteAddr)
		})
		s.SetSessionEventCallback(stompserver.SessionClosed, func(e *stompserver.SessionEvent) {
			log.Log.WithSession(e.SessionId).Infof("client %s disconnected", e.RemoteAddr)
		})
		go func(s stompserver.StompServer) {
			if err := s.Start(); err != nil {
				log.Log.Errorf("stomp server failed: %v", err)
			}
		}(s)
	}

	if d.cronJob != nil {
		d.cronJob.Start()
	}

	if d.cfg.Metrics.Enabled {
		var accessLog io.Writer
		if d.cfg.Metrics.AccessLog {
			accessLog = os.Stdout
		}
		d.metricsServer = &http.Server{
			Addr:    d.cfg.Metrics.Address,
			Handler: metrics.NewRouter(prometheus.DefaultGatherer, accessLog),
		}
		go func() {
			if err := d.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Log.Errorf("metrics server failed: %v", err)
			}
		}()
	}

	return nil
}

func (d *daemon) sessionCount() int {
	count := 0
	for _, s := range d.servers {
		count += s.SessionCount()
	}
	return count
}

func (d *daemon) logStats() {
	log.Log.Infof("%d active sessions", d.sessionCount())
}

func (d *daemon) stop() {
	if d.cronJob != nil {
		<-d.cronJob.Stop().Done()
	}
	for _, s := range d.servers {
		s.Stop()
	}
	if d.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.metricsServer.Shutdown(ctx); err != nil {
			log.Log.Warnf("failed to stop metrics server: %v", err)
		}
	}
	if d.amqpConn != nil {
		d.amqpConn.Close()
	}
	log.Log.Infoln("server stopped")
}
