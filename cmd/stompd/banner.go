// Copyright 2019-2020 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/vmware/stompsession-go/config"
)

// printBanner prints the server title and a brief summary of the configuration
func printBanner(w io.Writer, cfg *config.Config, version string) {
	fmt.Fprintf(w, "\n")
	title := color.New(color.BgHiWhite, color.FgHiBlack, color.Bold)
	title.Fprintf(w, " S T O M P D ")
	fmt.Fprintf(w, " %s\n", version)

	label := color.New(color.FgHiCyan)
	entry := func(name string, value string) {
		label.Fprintf(w, "%-20s", name)
		fmt.Fprintln(w, value)
	}

	entry("Server name", cfg.Stomp.ServerName)
	if cfg.Tcp.Enabled {
		entry("TCP", cfg.Tcp.Address)
	}
	if cfg.WebSocket.Enabled {
		entry("WebSocket", cfg.WebSocket.Address+cfg.WebSocket.Endpoint)
		if len(cfg.WebSocket.AllowedOrigins) > 0 {
			entry("Allowed origins", strings.Join(cfg.WebSocket.AllowedOrigins, ", "))
		}
	}
	if cfg.Stomp.HeartBeatMs > 0 {
		entry("Heart-beat", fmt.Sprintf("%dms", cfg.Stomp.HeartBeatMs))
	} else {
		entry("Heart-beat", "disabled")
	}
	if cfg.Metrics.Enabled {
		entry("Metrics", cfg.Metrics.Address+"/metrics")
	}
	if cfg.Amqp.Url != "" {
		entry("AMQP exchange", cfg.Amqp.Exchange)
	}
	if cfg.AuthEnabled() {
		entry("Users", fmt.Sprintf("%d", len(cfg.Users)))
	} else {
		entry("Users", "anonymous access")
	}
	fmt.Fprintln(w)
}
