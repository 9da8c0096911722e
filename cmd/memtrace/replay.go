package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sarchlab/memtrace/monitor"
	"github.com/sarchlab/memtrace/record"
	"github.com/sarchlab/memtrace/trace"
)

var (
	replayL1     string
	replayL2     string
	replayL3     string
	replayRegion string
	replayOut    string
	replayTopo   string
	replayDB     string
	replayHTTP   int
	replayNoCode bool
	verbose      bool
)

var replayCmd = &cobra.Command{
	Use:   "replay <tracefile>",
	Short: "Replay a recorded access stream through the tracing core",
	Long: `Replay reads an access stream with one access per line:

  L <hex-vaddr> <size>   guest load
  S <hex-vaddr> <size>   guest store
  F <hex-vaddr> <size>   instruction fetch

Blank lines and lines starting with '#' are skipped. Addresses are
translated with the identity mapping, so paddr == vaddr.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)

	flags := replayCmd.Flags()
	flags.StringVar(&replayL1, "l1", "",
		"L1 cache geometry, sets:ways:linesize (env MEMTRACE_L1)")
	flags.StringVar(&replayL2, "l2", "",
		"L2 cache geometry, requires --l1 (env MEMTRACE_L2)")
	flags.StringVar(&replayL3, "l3", "",
		"L3 cache geometry, requires --l2 (env MEMTRACE_L3)")
	flags.StringVar(&replayRegion, "region", "",
		"physical-address filter window, <start>:<end> in hex (env MEMTRACE_REGION)")
	flags.StringVar(&replayOut, "out", "-",
		"trace output path, - for stdout (env MEMTRACE_OUT)")
	flags.StringVar(&replayTopo, "config", "",
		"JSON topology file; explicit flags override its fields")
	flags.StringVar(&replayDB, "db", "",
		"also record trace and statistics into <path>.sqlite3 (env MEMTRACE_DB)")
	flags.IntVar(&replayHTTP, "http", 0,
		"serve statistics over HTTP on this port while replaying")
	flags.BoolVar(&replayNoCode, "no-code", false,
		"drop instruction fetches when no cache is configured")
	flags.BoolVarP(&verbose, "verbose", "v", false, "print a replay summary")
}

// applyEnvDefaults fills flags the user left unset from the
// environment. Runs after Execute has loaded any .env file.
func applyEnvDefaults(cmd *cobra.Command) {
	fromEnv := func(flag, key string, dst *string) {
		if !cmd.Flags().Changed(flag) {
			if v := os.Getenv(key); v != "" {
				*dst = v
			}
		}
	}

	fromEnv("l1", "MEMTRACE_L1", &replayL1)
	fromEnv("l2", "MEMTRACE_L2", &replayL2)
	fromEnv("l3", "MEMTRACE_L3", &replayL3)
	fromEnv("region", "MEMTRACE_REGION", &replayRegion)
	fromEnv("out", "MEMTRACE_OUT", &replayOut)
	fromEnv("db", "MEMTRACE_DB", &replayDB)
}

func runReplay(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	applyEnvDefaults(cmd)

	topo, err := assembleTopology(cmd)
	if err != nil {
		return err
	}

	var opts []trace.Option
	if replayDB != "" {
		opts = append(opts, trace.WithRecorder(record.NewRecorder(replayDB)))
	}

	sys := trace.NewSystem(opts...)
	if err := topo.Apply(sys); err != nil {
		return err
	}

	if replayHTTP != 0 {
		if err := startMonitor(sys, topo); err != nil {
			return err
		}
	}

	sys.Start()
	accesses, err := replayFile(sys, args[0])
	if err != nil {
		return err
	}
	sys.Shutdown()

	if verbose {
		printSummary(sys, accesses)
	}
	return nil
}

// assembleTopology merges the topology file, environment defaults, and
// explicit flags, with flags winning.
func assembleTopology(cmd *cobra.Command) (*trace.Topology, error) {
	topo := trace.DefaultTopology()

	if replayTopo != "" {
		loaded, err := trace.LoadTopology(replayTopo)
		if err != nil {
			return nil, err
		}
		topo = loaded
	}

	if replayL1 != "" {
		topo.L1 = replayL1
	}
	if replayL2 != "" {
		topo.L2 = replayL2
	}
	if replayL3 != "" {
		topo.L3 = replayL3
	}
	if replayRegion != "" {
		topo.Region = replayRegion
	}
	if cmd.Flags().Changed("out") || replayTopo == "" {
		topo.Output = replayOut
	}
	if replayNoCode {
		topo.TraceCode = false
	}

	return topo, nil
}

func startMonitor(sys *trace.System, topo *trace.Topology) error {
	m := monitor.NewMonitor().WithPortNumber(replayHTTP)
	for _, c := range sys.Hierarchy().Levels() {
		m.RegisterLevel(c)
	}
	m.RegisterTopology("l1", topo.L1)
	m.RegisterTopology("l2", topo.L2)
	m.RegisterTopology("l3", topo.L3)
	m.RegisterTopology("region", topo.Region)
	return m.StartServer()
}

// replayFile feeds every access in the file to the system and returns
// the number of accesses replayed.
func replayFile(sys *trace.System, path string) (uint64, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("cannot open trace input: %w", err)
	}
	defer file.Close()

	var accesses uint64
	lineNo := 0
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		kind, vaddr, size, err := parseAccess(line)
		if err != nil {
			return accesses, fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}

		switch kind {
		case trace.Load:
			sys.OnLoad(vaddr, size)
		case trace.Store:
			sys.OnStore(vaddr, size)
		case trace.Fetch:
			sys.OnFetch(vaddr, size)
		}
		accesses++
	}

	if err := scanner.Err(); err != nil {
		return accesses, fmt.Errorf("reading trace input: %w", err)
	}
	return accesses, nil
}

// parseAccess parses one "<kind> <hex-vaddr> <size>" line.
func parseAccess(line string) (trace.AccessKind, uint64, int, error) {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return 0, 0, 0, fmt.Errorf("want '<L|S|F> <hex-vaddr> <size>', got %q", line)
	}

	var kind trace.AccessKind
	switch fields[0] {
	case "L":
		kind = trace.Load
	case "S":
		kind = trace.Store
	case "F":
		kind = trace.Fetch
	default:
		return 0, 0, 0, fmt.Errorf("unknown access kind %q", fields[0])
	}

	addrText := strings.TrimPrefix(strings.TrimPrefix(fields[1], "0x"), "0X")
	vaddr, err := strconv.ParseUint(addrText, 16, 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("bad address %q", fields[1])
	}

	size, err := strconv.Atoi(fields[2])
	if err != nil || size <= 0 {
		return 0, 0, 0, fmt.Errorf("bad access size %q", fields[2])
	}

	return kind, vaddr, size, nil
}

func printSummary(sys *trace.System, accesses uint64) {
	heading := color.New(color.FgCyan, color.Bold)

	heading.Fprintf(os.Stderr, "Replayed %d accesses\n", accesses)
	for _, c := range sys.Hierarchy().Levels() {
		s := c.Snapshot()
		heading.Fprintf(os.Stderr, "%s:", c.Name())
		fmt.Fprintf(os.Stderr,
			" %d reads, %d writes, %d misses, %d writebacks, %.3f%% miss rate\n",
			s.ReadAccesses, s.WriteAccesses,
			s.ReadMisses+s.WriteMisses, s.Writebacks, s.MissRate())
	}
}
