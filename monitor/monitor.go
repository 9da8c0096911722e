// Package monitor exposes the tracer's cache statistics over HTTP, so
// a long emulation can be inspected without waiting for teardown.
package monitor

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/gorilla/mux"

	"github.com/sarchlab/memtrace/cachesim"
)

// levelStats is the wire form of one level's counters.
type levelStats struct {
	Name          string  `json:"name"`
	BytesRead     uint64  `json:"bytes_read"`
	BytesWritten  uint64  `json:"bytes_written"`
	ReadAccesses  uint64  `json:"read_accesses"`
	WriteAccesses uint64  `json:"write_accesses"`
	ReadMisses    uint64  `json:"read_misses"`
	WriteMisses   uint64  `json:"write_misses"`
	Writebacks    uint64  `json:"writebacks"`
	MissRate      float64 `json:"miss_rate"`
}

// Monitor turns a tracing run into a small read-only server.
type Monitor struct {
	portNumber int
	levels     []*cachesim.Cache
	topology   map[string]string
}

// NewMonitor creates a monitor with no levels registered.
func NewMonitor() *Monitor {
	return &Monitor{topology: make(map[string]string)}
}

// WithPortNumber sets the listening port. Ports below 1000 are
// rejected and replaced with a random one.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is not allowed for the monitoring server. "+
				"Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber
	return m
}

// RegisterLevel adds a cache level to the set reported by the server.
func (m *Monitor) RegisterLevel(c *cachesim.Cache) {
	m.levels = append(m.levels, c)
}

// RegisterTopology records a configuration string to be echoed by the
// /api/config endpoint, e.g. "l1" -> "64:4:64".
func (m *Monitor) RegisterTopology(key, value string) {
	m.topology[key] = value
}

// Router returns the monitor's HTTP routes.
func (m *Monitor) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/stats", m.serveStats)
	r.HandleFunc("/api/config", m.serveConfig)
	return r
}

// StartServer starts serving in a background goroutine and prints the
// bound address. The caller's single-threaded contract is preserved:
// handlers only read counter snapshots.
func (m *Monitor) StartServer() error {
	r := m.Router()

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", m.portNumber))
	if err != nil {
		return fmt.Errorf("cannot start monitoring server: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Monitoring server listening at %s\n",
		listener.Addr().String())

	go func() {
		_ = http.Serve(listener, r)
	}()

	return nil
}

func (m *Monitor) serveStats(w http.ResponseWriter, _ *http.Request) {
	stats := make([]levelStats, 0, len(m.levels))
	for _, c := range m.levels {
		s := c.Snapshot()
		stats = append(stats, levelStats{
			Name:          c.Name(),
			BytesRead:     s.BytesRead,
			BytesWritten:  s.BytesWritten,
			ReadAccesses:  s.ReadAccesses,
			WriteAccesses: s.WriteAccesses,
			ReadMisses:    s.ReadMisses,
			WriteMisses:   s.WriteMisses,
			Writebacks:    s.Writebacks,
			MissRate:      s.MissRate(),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(stats)
}

func (m *Monitor) serveConfig(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(m.topology)
}
