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

package harness

import (
	"os"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/process"
)

// ProcessStats exposes the daemon's own resource usage as Prometheus
// gauges, grounded on ptp/sptp/client/sysstats.go's CollectRuntimeStats
// (RSS/VMS/FD/thread counts via gopsutil, goroutine/heap counts via the Go
// runtime) but published through client_golang instead of that teacher's
// internal stats-map/fb303 sink, since the synchronization core already
// exports everything else through promhttp.
type ProcessStats struct {
	uptime     prometheus.Gauge
	cpuPercent prometheus.Gauge
	rss        prometheus.Gauge
	vms        prometheus.Gauge
	numFDs     prometheus.Gauge
	numThreads prometheus.Gauge
	goroutines prometheus.Gauge
	heapAlloc  prometheus.Gauge

	proc      *process.Process
	startedAt time.Time
}

// NewProcessStats registers the process gauges with reg and returns a
// collector ready for periodic Collect calls.
func NewProcessStats(reg prometheus.Registerer) (*ProcessStats, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	mk := func(name, help string) prometheus.Gauge {
		g := prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "syncd", Subsystem: "process", Name: name, Help: help})
		reg.MustRegister(g)
		return g
	}
	return &ProcessStats{
		uptime:     mk("uptime_seconds", "seconds since the daemon started"),
		cpuPercent: mk("cpu_percent", "process CPU usage percent since the previous collection"),
		rss:        mk("rss_bytes", "resident set size"),
		vms:        mk("vms_bytes", "virtual memory size"),
		numFDs:     mk("num_fds", "open file descriptor count"),
		numThreads: mk("num_threads", "OS thread count"),
		goroutines: mk("goroutines", "Go runtime goroutine count"),
		heapAlloc:  mk("heap_alloc_bytes", "Go runtime heap bytes in use"),
		proc:       proc,
		startedAt:  time.Now(),
	}, nil
}

// Collect refreshes every gauge; the harness calls this once per
// STATS_END_PERIOD tick alongside the per-module LOG_STATS broadcast.
func (s *ProcessStats) Collect() {
	s.uptime.Set(time.Since(s.startedAt).Seconds())

	if pct, err := s.proc.Percent(0); err == nil {
		s.cpuPercent.Set(pct)
	}
	if mem, err := s.proc.MemoryInfo(); err == nil {
		s.rss.Set(float64(mem.RSS))
		s.vms.Set(float64(mem.VMS))
	}
	if n, err := s.proc.NumFDs(); err == nil {
		s.numFDs.Set(float64(n))
	}
	if n, err := s.proc.NumThreads(); err == nil {
		s.numThreads.Set(float64(n))
	}

	s.goroutines.Set(float64(runtime.NumGoroutine()))
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	s.heapAlloc.Set(float64(m.HeapAlloc))
}
