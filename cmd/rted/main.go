// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Command rted runs the Remote Task Executor coordination daemon: an
// in-memory server.Server exposed over HTTP by transport/rpcserver.
// It is grounded on the teacher's cmd/coordinated daemon (flag
// layout, YAML config loading, Prometheus Observe loop) generalized
// from a CBOR-RPC Coordinate server to RTE's JSON-over-HTTP wire
// protocol.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/diffeo/go-rte/config"
	"github.com/diffeo/go-rte/metrics"
	"github.com/diffeo/go-rte/server"
	"github.com/diffeo/go-rte/transport/rpcserver"
)

func main() {
	bind := flag.String("bind", "", "[ip]:port to listen on (overrides config file)")
	configPath := flag.String("config", "", "YAML configuration file")
	flag.Parse()

	log := logrus.New()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.WithField("error", err).Fatal("could not load configuration")
		}
	}
	if *bind != "" {
		cfg.Bind = *bind
	}

	srv := server.New(cfg.TaskTimeout)
	srv.OnTimeout = func(id uint64) { metrics.CountTimeout() }
	defer srv.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	go metrics.Observe(ctx, srv, cfg.RefreshTime, log)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info("rted shutting down")
		cancel()
		srv.ReleaseWaitingWorkers()
		os.Exit(0)
	}()

	log.WithField("bind", cfg.Bind).Info("rted listening")
	if err := rpcserver.Listen(cfg.Bind, srv, log); err != nil {
		fmt.Fprintf(os.Stderr, "rted: %v\n", err)
		os.Exit(1)
	}
}
