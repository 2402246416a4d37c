// Copyright 2019-2020 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli"
	"github.com/vmware/stompsession-go/config"
	"github.com/vmware/stompsession-go/listeners"
	"github.com/vmware/stompsession-go/log"
)

var version = "dev"

var startFlags = []cli.Flag{
	cli.StringFlag{
		Name:   "config, c",
		Usage:  "path to a yaml, json or toml configuration file",
		EnvVar: "STOMPD_CONFIG",
	},
	cli.StringFlag{
		Name:  "tcp",
		Usage: "address of the STOMP over TCP listener",
	},
	cli.StringFlag{
		Name:  "ws",
		Usage: "address of the STOMP over WebSocket listener, enables the WebSocket transport",
	},
	cli.StringFlag{
		Name:  "metrics",
		Usage: "address of the metrics endpoint, enables metrics",
	},
	cli.StringFlag{
		Name:  "log-level",
		Usage: "log level (trace, debug, info, warn, error)",
	},
}

func main() {
	app := cli.NewApp()
	app.Name = "stompd"
	app.Version = version
	app.Usage = "STOMP 1.0/1.1/1.2 session server"
	app.Commands = []cli.Command{
		{
			Name:   "start",
			Usage:  "Start the server",
			Flags:  startFlags,
			Action: runStart,
		},
		{
			Name:      "hash-password",
			Usage:     "Print the bcrypt hash of a passcode for the users table",
			ArgsUsage: "<passcode>",
			Action:    runHashPassword,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runStart(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if err := log.Configure(&cfg.Log); err != nil {
		return err
	}

	printBanner(os.Stdout, cfg, version)

	d, err := newDaemon(cfg)
	if err != nil {
		return err
	}
	if err := d.start(); err != nil {
		d.stop()
		return err
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	sig := <-signals
	log.Log.Infof("received %s, shutting down", sig)
	d.stop()
	return nil
}

// loadConfig reads the configuration file and applies command line overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}

	if c.IsSet("tcp") {
		cfg.Tcp.Enabled = true
		cfg.Tcp.Address = c.String("tcp")
	}
	if c.IsSet("ws") {
		cfg.WebSocket.Enabled = true
		cfg.WebSocket.Address = c.String("ws")
	}
	if c.IsSet("metrics") {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Address = c.String("metrics")
	}
	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	return cfg, cfg.Validate()
}

func runHashPassword(c *cli.Context) error {
	passcode := c.Args().First()
	if passcode == "" {
		return cli.NewExitError("passcode argument is required", 1)
	}
	hash, err := listeners.HashPasscode(passcode)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, hash)
	return nil
}
