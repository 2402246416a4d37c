// Copyright 2019-2021 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package metrics

import (
	"io"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter returns a router exposing /metrics for the given gatherer and a /health
// probe. Requests are access-logged to accessLog when it is not nil.
func NewRouter(gatherer prometheus.Gatherer, accessLog io.Writer) http.Handler {
	r := mux.NewRouter()
	r.Path("/metrics").Name("metrics").Methods(http.MethodGet).Handler(
		promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		}))
	r.Path("/health").Name("health").Methods(http.MethodGet).HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		})

	var h http.Handler = handlers.RecoveryHandler()(r)
	if accessLog != nil {
		h = handlers.LoggingHandler(accessLog, h)
	}
	return h
}
