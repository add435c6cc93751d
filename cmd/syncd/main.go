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
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "net/http/pprof"

	"github.com/coreos/go-systemd/daemon"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/ptpcore/sync/bmca"
	"github.com/ptpcore/sync/clockctl"
	"github.com/ptpcore/sync/config"
	"github.com/ptpcore/sync/harness"
	"github.com/ptpcore/sync/leapsectz"
	"github.com/ptpcore/sync/phc"
	"github.com/ptpcore/sync/pps"
	"github.com/ptpcore/sync/ptp/port"
	ptp "github.com/ptpcore/sync/ptp/protocol"
)

// leapLookahead is how far into the future a leap-second entry must
// fall to be advertised as pending in Announce traffic; IERS bulletins
// are published at least this far ahead of any leap second they name.
const leapLookahead = 24 * time.Hour

func main() {
	cfgPath := flag.String("config", "", "path to syncd YAML config")
	logLevel := flag.String("loglevel", "info", "log level: debug, info, warning, error")
	flag.Parse()

	lvl, err := log.ParseLevel(*logLevel)
	if err != nil {
		log.Fatalf("parsing log level: %v", err)
	}
	log.SetLevel(lvl)

	if *cfgPath == "" {
		log.Fatal("-config is required")
	}
	cfg, err := config.ReadConfig(*cfgPath)
	if err != nil {
		log.Fatalf("reading config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("received shutdown signal")
		cancel()
	}()

	h := harness.New(cfg.Harness.StatsPeriod)

	if err := h.EnableProcessStats(prometheus.DefaultRegisterer); err != nil {
		log.Warnf("enabling process stats: %v", err)
	}

	if err := registerPorts(h, cfg); err != nil {
		log.Fatalf("registering PTP ports: %v", err)
	}
	if err := registerPPS(h, cfg); err != nil {
		log.Fatalf("registering PPS instances: %v", err)
	}

	if info, err := loadLeapSecondInfo(time.Now()); err != nil {
		log.Warnf("loading leap second table: %v", err)
	} else {
		h.Broadcast(harness.ControlUpdateLeapSecond, info)
	}

	if cfg.Harness.MetricsListenAddr != "" {
		go serveMetrics(cfg.Harness.MetricsListenAddr)
	}

	go periodicSaveState(ctx, h, cfg)

	if cfg.Harness.SdNotify {
		if supported, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
			log.Warnf("sd_notify: %v", err)
		} else if !supported {
			log.Debug("sd_notify: NOTIFY_SOCKET not set")
		}
	}

	if err := h.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("harness run: %v", err)
	}
	log.Info("syncd exiting")
}

// loadLeapSecondInfo derives the current UTC offset and any near-term
// pending leap second from the system's right/UTC zoneinfo table.
func loadLeapSecondInfo(now time.Time) (harness.LeapSecondInfo, error) {
	entries, err := leapsectz.Parse()
	if err != nil {
		return harness.LeapSecondInfo{}, err
	}
	if len(entries) == 0 {
		return harness.LeapSecondInfo{}, fmt.Errorf("no leap second entries found")
	}

	// Nleap is the cumulative leap-second count; TAI-UTC was already 10s
	// before the first entry (1972).
	const taiUTCBase = 10
	info := harness.LeapSecondInfo{CurrentUTCOffset: int16(entries[0].Nleap + taiUTCBase)}
	for i := range entries {
		t := entries[i].Time()
		if !t.After(now) {
			info.CurrentUTCOffset = int16(entries[i].Nleap + taiUTCBase)
			continue
		}
		if t.Sub(now) <= leapLookahead {
			info.At = t
			info.Positive = entries[i].Nleap+taiUTCBase > int32(info.CurrentUTCOffset)
		}
		break
	}
	return info, nil
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Warnf("metrics server: %v", err)
	}
}

// openTransport opens pc's configured socket layer: "raw" for PTP
// directly over Ethernet 0x88f7, "udp" (the default) for UDPv4/UDPv6
// multicast per §6.
func openTransport(pc config.PortConfig, clockID ptp.ClockIdentity) (port.Transport, error) {
	if pc.Transport == "raw" {
		return port.NewRawTransport(pc.Iface, clockID)
	}
	return port.NewUDPTransport(pc.Iface, clockID, true, pc.DSCP)
}

func registerPorts(h *harness.Harness, cfg *config.Config) error {
	for i := range cfg.Ports {
		pc := cfg.Ports[i]
		clockID, err := clockctl.NewClockIdentity(pc.Iface)
		if err != nil {
			return fmt.Errorf("deriving clock identity for %s: %w", pc.Iface, err)
		}
		portIdentity := ptp.PortIdentity{ClockIdentity: clockID, PortNumber: 1}

		transport, err := openTransport(pc, clockID)
		if err != nil {
			return fmt.Errorf("opening transport on %s: %w", pc.Iface, err)
		}

		portCfg := pc.ToPortConfig(cfg.Servo.ToPipelineConfig())
		portCfg.PortIdentity = portIdentity
		portCfg.Local = bmca.LocalClock{
			PortIdentity: portIdentity,
			Priority1:    pc.Priority1,
			Priority2:    pc.Priority2,
			ClockClass:   ptp.ClockClass(pc.ClockClass),
			SlaveOnly:    pc.SlaveOnly,
		}

		driver := clockctl.NewSystemClock()
		mod, err := NewPortModule(fmt.Sprintf("ptp-%s", pc.Iface), portCfg, transport, driver, "CLOCK_REALTIME")
		if err != nil {
			return err
		}
		if err := h.Register(mod, 32); err != nil {
			return err
		}
	}
	return nil
}

func registerPPS(h *harness.Harness, cfg *config.Config) error {
	for i := range cfg.PPS {
		ppsCfg := cfg.PPS[i]

		phcClock, err := clockctl.OpenPHCClock(ppsCfg.Device)
		if err != nil {
			return fmt.Errorf("opening PHC device %s: %w", ppsCfg.Device, err)
		}

		var tod pps.ToDSource = noopToD{}
		if ppsCfg.SerialPort != "" {
			serialTod, err := pps.OpenSerialToD(ppsCfg.SerialPort, 9600)
			if err != nil {
				return fmt.Errorf("opening ToD serial port %s: %w", ppsCfg.SerialPort, err)
			}
			tod = serialTod
		}

		sinkPin := uint(ppsCfg.SinkPin)
		if sinkPin == 0 {
			sinkPin = phc.DefaultTs2PhcSinkIndex
		}
		sink, err := phcClock.ActivatePPSSink(sinkPin)
		if err != nil {
			return fmt.Errorf("activating PPS sink on %s pin %d: %w", ppsCfg.Device, sinkPin, err)
		}

		instCfg := pps.DefaultConfig()
		instance := pps.NewInstance(ppsCfg.Name, sink, tod, phcClock, instCfg)
		mod := NewPPSModule(fmt.Sprintf("pps-%s", ppsCfg.Name), instance, ppsCfg.Device)
		if err := h.Register(mod, 32); err != nil {
			return err
		}
	}
	return nil
}

// noopToD is used when a PPS instance has no external time-of-day
// source configured: OffsetFromMaster always fails, keeping the
// instance in LISTENING/UNCALIBRATED rather than fabricating an offset.
type noopToD struct{}

func (noopToD) OffsetFromMaster(time.Time) (time.Duration, error) {
	return 0, fmt.Errorf("no time-of-day source configured")
}
func (noopToD) NotifyStepped(time.Duration) {}

func periodicSaveState(ctx context.Context, h *harness.Harness, cfg *config.Config) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			states := collectStates(ctx, h)
			if err := harness.SaveState(cfg.Harness.StateFile, cfg.Harness.FreqFileDir, states); err != nil {
				log.Warnf("saving state: %v", err)
			}
		}
	}
}

func collectStates(ctx context.Context, h *harness.Harness) []harness.InstanceState {
	var states []harness.InstanceState
	for _, name := range h.Names() {
		mailbox := h.Mailbox(name)
		if mailbox == nil {
			continue
		}
		qctx, cancel := context.WithTimeout(ctx, time.Second)
		resp, err := mailbox.SendWait(qctx, harness.ControlGetStatus, nil)
		cancel()
		if err != nil {
			continue
		}
		if st, ok := resp.(harness.InstanceState); ok {
			states = append(states, st)
		}
	}
	return states
}
