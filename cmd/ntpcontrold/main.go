/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	sd "github.com/coreos/go-systemd/daemon"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/timekeep/timekeep/ntp/controld"
	"github.com/timekeep/timekeep/ntp/controld/mru"
	"github.com/timekeep/timekeep/ntp/controld/server"
	"github.com/timekeep/timekeep/ntp/controld/stats"
)

const version = "ntpcontrold 1.0.0"

func main() {
	s := server.Server{}

	var (
		logLevel   string
		configFile string
		debugger   bool
	)

	flag.StringVar(&logLevel, "loglevel", "info", "Set a log level. Can be: debug, info, warning, error")
	flag.StringVar(&configFile, "config", "", "Path to a YAML config file")
	flag.IntVar(&s.Config.Port, "port", 123, "Port to run service on")
	flag.IntVar(&s.Config.MonitoringPort, "monitoringport", 0, "Port to run monitoring server on")
	flag.IntVar(&s.Config.MRUDepth, "mrudepth", 1024, "Max entries kept in the MRU client table")
	flag.StringVar(&s.Config.KeysFile, "keys", "", "Path to the symmetric keys file")
	var controlKey uint
	flag.UintVar(&controlKey, "controlkey", 0, "Key id that authenticates write requests")
	flag.Var(&s.Config.IPs, "ip", fmt.Sprintf("IP to listen to. Repeat for multiple. Default: %s", server.DefaultServerIPs))
	flag.BoolVar(&debugger, "pprof", false, "Enable pprof")
	flag.Parse()

	switch logLevel {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warning":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		log.Fatalf("Unrecognized log level: %v", logLevel)
	}

	if configFile != "" {
		if err := server.ReadConfig(configFile, &s.Config); err != nil {
			log.Fatalf("Config file is invalid: %v", err)
		}
	}
	s.Config.IPs.SetDefault()
	if controlKey != 0 {
		s.Config.ControlKeyID = uint32(controlKey)
	}
	if err := s.Config.Validate(); err != nil {
		log.Fatalf("Config is invalid: %v", err)
	}

	if debugger {
		log.Warning("Starting profiler on localhost:6060")
		go func() {
			log.Println(http.ListenAndServe("localhost:6060", nil))
		}()
	}

	keys := controld.NewSymKeyStore()
	if s.Config.KeysFile != "" {
		loaded, err := controld.LoadKeysFile(s.Config.KeysFile)
		if err != nil {
			log.Fatalf("Failed to load keys: %v", err)
		}
		keys = loaded
	}

	mruList := mru.NewList(s.Config.MRUDepth)
	restrict := &controld.MemRestrictions{}
	sysState := controld.NewHostState(version)
	peers := &controld.MemPeerStore{SysIdx: -1}
	clock := controld.SystemClock{}

	if err := s.Bind(); err != nil {
		log.Fatalf("Failed to bind: %v", err)
	}

	responder := controld.New(controld.Deps{
		Transport:    &s,
		Keys:         keys,
		Peers:        peers,
		Refclocks:    &controld.MemRefclocks{},
		System:       sysState,
		MRU:          mruList,
		Endpoints:    &controld.MemEndpoints{Eps: s.Endpoints()},
		Restrictions: restrict,
		Configurer:   controld.NopConfigurer{},
		Random:       controld.CryptoRandom{},
		Clock:        clock,
		Stats:        stats.NewPromStats(prometheus.DefaultRegisterer),
	})
	responder.AuthKeyID = s.Config.ControlKeyID

	s.Responder = responder
	s.MRU = mruList
	s.Restrict = restrict
	s.Clock = clock

	if s.Config.MonitoringPort != 0 {
		go func() {
			http.Handle("/metrics", promhttp.Handler())
			addr := fmt.Sprintf(":%d", s.Config.MonitoringPort)
			log.Infof("Starting monitoring server on %s", addr)
			log.Println(http.ListenAndServe(addr, nil))
		}()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if ok, err := sd.SdNotify(false, sd.SdNotifyReady); err != nil {
		log.Debugf("systemd notify skipped (ok=%v): %v", ok, err)
	}

	if err := s.Start(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("Server failed: %v", err)
	}
}
