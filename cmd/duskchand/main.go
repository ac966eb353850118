// main.go - duskchand demo binary: dial or listen, handshake, echo.
// Copyright (C) 2026  the duskchan authors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Command duskchand exercises the full duskchan stack end to end: it
// either listens for or dials a peer, runs the RSA/AES handshake, and
// echoes every secure message it receives back to its sender.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"

	"github.com/carlmjohnson/versioninfo"
	charmlog "github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"

	"github.com/nightproto/duskchan/config"
	"github.com/nightproto/duskchan/handshake"
	"github.com/nightproto/duskchan/ledger"
	"github.com/nightproto/duskchan/listener"
	"github.com/nightproto/duskchan/metrics"
	"github.com/nightproto/duskchan/securechan"
	"github.com/nightproto/duskchan/wire"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML configuration file")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(versioninfo.Short())
		return
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "duskchand: loading config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	log := charmlog.NewWithOptions(os.Stderr, charmlog.Options{ReportTimestamp: true, Prefix: "duskchand"})
	level, err := charmlog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = charmlog.InfoLevel
	}
	log.SetLevel(level)

	var collector *metrics.Collector
	if cfg.MetricsAddr != "" {
		collector, err = metrics.NewCollector(prometheus.DefaultRegisterer)
		if err != nil {
			log.Fatal("registering metrics", "err", err)
		}
		go func() {
			http.Handle("/metrics", promhttp.Handler())
			log.Error("metrics server exited", "err", http.ListenAndServe(cfg.MetricsAddr, nil))
		}()
	}

	var led *ledger.Ledger
	if cfg.LedgerPath != "" {
		led, err = ledger.Open(cfg.LedgerPath)
		if err != nil {
			log.Fatal("opening ledger", "err", err)
		}
		defer led.Close()
	}

	onChannel := func(ch *wire.Channel, initiate bool) {
		runHandshake(log, led, ch, initiate)
	}

	if cfg.ListenAddr != "" {
		l, err := listener.NewListener(cfg.ListenAddr, listener.WithChannelOptions(
			wire.WithLogger(log), wire.WithMetrics(collector),
		))
		if err != nil {
			log.Fatal("listening", "err", err)
		}
		l.Start(func(ch *wire.Channel) { onChannel(ch, true) })
		log.Info("listening", "addr", l.Addr())
		defer l.Stop()
	}

	if cfg.DialAddr != "" {
		conn, err := net.Dial("tcp", cfg.DialAddr)
		if err != nil {
			log.Fatal("dialing", "err", err)
		}
		ch := wire.NewChannel(conn, wire.WithLogger(log), wire.WithMetrics(collector))
		onChannel(ch, true)
	}

	waitForSignal()
}

func runHandshake(log *charmlog.Logger, led *ledger.Ledger, ch *wire.Channel, initiate bool) {
	hs, err := handshake.New(ch, handshake.WithLogger(log), handshake.WithHandlers(handshake.Handlers{
		Completed: func(sc *securechan.Channel) { onSecureChannel(log, led, sc) },
		Errored: func(e *handshake.Error) {
			log.Error("handshake failed", "reason", e.Reason, "err", e.Detail)
		},
	}))
	if err != nil {
		log.Error("starting handshake", "err", err)
		return
	}
	if initiate {
		if err := hs.Initiate(); err != nil {
			log.Error("initiating handshake", "err", err)
		}
	}
}

func onSecureChannel(log *charmlog.Logger, led *ledger.Ledger, sc *securechan.Channel) {
	log.Info("secure channel established")
	if led != nil {
		outbound, inbound := sc.Fingerprints()
		if err := led.Record(outbound, inbound); err != nil {
			log.Warn("recording handshake to ledger", "err", err)
		}
	}
	sc.AddHandlers(&securechan.Handlers{
		MessageReceived: func(context uint64, attrs *wire.Attributes) {
			log.Debug("secure message received", "context", context, "attrs", attrs.Len())
			if _, err := sc.Send(attrs); err != nil {
				log.Error("echoing secure message", "err", err)
			}
		},
		Errored: func(e *securechan.Error) {
			log.Error("secure channel error", "kind", e.Kind, "err", e.Detail)
		},
		Disconnected: func() {
			log.Info("secure channel disconnected")
		},
	})
}

func waitForSignal() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	<-sigCh
}
