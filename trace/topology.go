package trace

import (
	"encoding/json"
	"fmt"
	"os"
)

// Topology declares a full tracing setup in one JSON file, as an
// alternative to passing every knob on the command line. Empty fields
// leave the corresponding feature unconfigured.
type Topology struct {
	// L1 is the geometry of the split L1 caches, "sets:ways:linesize".
	L1 string `json:"l1"`

	// L2 is the geometry of the unified L2. Requires L1.
	L2 string `json:"l2"`

	// L3 is the geometry of the L3. Requires L2.
	L3 string `json:"l3"`

	// Region is the physical-address filter window, "<start>:<end>"
	// in hex. Empty traces the whole address space.
	Region string `json:"region"`

	// Output is the trace sink path. Empty or "-" selects stdout.
	Output string `json:"output"`

	// TraceCode enables direct trace records for instruction fetches
	// when no cache hierarchy is configured.
	TraceCode bool `json:"trace_code"`
}

// DefaultTopology returns a cache-less topology tracing everything to
// stdout.
func DefaultTopology() *Topology {
	return &Topology{
		Output:    "-",
		TraceCode: true,
	}
}

// LoadTopology loads a Topology from a JSON file.
func LoadTopology(path string) (*Topology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read topology file: %w", err)
	}

	topo := DefaultTopology()
	if err := json.Unmarshal(data, topo); err != nil {
		return nil, fmt.Errorf("failed to parse topology: %w", err)
	}

	return topo, nil
}

// SaveTopology writes the Topology to a JSON file.
func (t *Topology) SaveTopology(path string) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize topology: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write topology file: %w", err)
	}

	return nil
}

// Apply configures a System from the topology: region first, then
// cache levels inside-out, then Finalize with the output path.
func (t *Topology) Apply(s *System) error {
	s.traceCode = t.TraceCode

	if t.Region != "" {
		if err := s.SetRegion(t.Region); err != nil {
			return err
		}
	}

	if t.L1 != "" {
		if err := s.InitL1(t.L1); err != nil {
			return err
		}
	}
	if t.L2 != "" {
		if err := s.InitL2(t.L2); err != nil {
			return err
		}
	}
	if t.L3 != "" {
		if err := s.InitL3(t.L3); err != nil {
			return err
		}
	}

	return s.Finalize(t.Output)
}
