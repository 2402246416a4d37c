// Copyright 2019-2021 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ActiveSessions is the number of STOMP sessions currently running.
	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "stomp_active_sessions",
			Help: "Number of STOMP sessions currently running",
		})

	FramesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stomp_frames_received_total",
			Help: "How many frames were received from clients, by command",
		},
		[]string{"command"})

	FramesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stomp_frames_sent_total",
			Help: "How many frames were sent to clients, by command",
		},
		[]string{"command"})

	ProtocolErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stomp_protocol_errors_total",
			Help: "How many ERROR frames were produced, by failure kind",
		},
		[]string{"kind"})

	NegotiatedVersions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stomp_negotiated_versions_total",
			Help: "How many sessions negotiated each protocol version",
		},
		[]string{"version"})
)

// Collectors returns every collector of the package.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		ActiveSessions,
		FramesReceived,
		FramesSent,
		ProtocolErrors,
		NegotiatedVersions,
	}
}

// Register registers all collectors with the given registerer. Collectors that are
// already registered are ignored.
func Register(r prometheus.Registerer) error {
	for _, c := range Collectors() {
		if err := r.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}
