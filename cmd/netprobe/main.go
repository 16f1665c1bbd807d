package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/marcuoli/go-netprobe/internal/config"
	"github.com/marcuoli/go-netprobe/internal/limits"
	"github.com/marcuoli/go-netprobe/internal/progress"
	"github.com/marcuoli/go-netprobe/pkg/netprobe"
	"github.com/marcuoli/go-netprobe/pkg/netprobe/arp"
	"github.com/marcuoli/go-netprobe/pkg/netprobe/ifaces"
	"github.com/marcuoli/go-netprobe/pkg/netprobe/oui"
	"github.com/marcuoli/go-netprobe/pkg/netprobe/target"
)

const (
	exitOK        = 0
	exitError     = 1
	exitUsage     = 2
	exitInterrupt = 130
)

// Ports probed by discover when -ports is not given.
const defaultDiscoverPorts = "22,23,53,80,139,443,445,631,8000,8080,8443"

// enumerator is replaced in tests.
var enumerator = ifaces.NewEnumerator()

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func usage(w io.Writer) {
	fmt.Fprintf(w, `%s

Usage:
  netprobe probe [flags] <target> [start_port end_port]
  netprobe discover [flags]
  netprobe networks [-all]
  netprobe version

<target> is an IPv4 address or CIDR block (e.g. 192.168.1.0/24).
Ports default to 1-1024. Run "netprobe <command> -h" for flags.
`, netprobe.VersionInfo())
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return exitUsage
	}

	switch args[0] {
	case "probe":
		return runProbe(ctx, args[1:], stdout, stderr)
	case "discover":
		return runDiscover(ctx, args[1:], stdout, stderr)
	case "networks":
		return runNetworks(ctx, args[1:], stdout, stderr)
	case "version":
		fmt.Fprintln(stdout, netprobe.VersionInfo())
		return exitOK
	case "help", "-h", "-help", "--help":
		usage(stdout)
		return exitOK
	default:
		fmt.Fprintf(stderr, "error: unknown command %q\n\n", args[0])
		usage(stderr)
		return exitUsage
	}
}

// parseExit maps a flag parsing error to an exit code; -h is not an error.
func parseExit(err error) int {
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	return exitUsage
}

func isSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(fl *flag.Flag) {
		if fl.Name == name {
			found = true
		}
	})
	return found
}

// scanFlags are shared by probe and discover.
type scanFlags struct {
	workers  int
	timeout  time.Duration
	stopEx   bool
	resolve  bool
	mac      bool
	ouiPath  string
	progress bool
	verbose  bool
	trace    bool
	config   string
}

func (f *scanFlags) register(fs *flag.FlagSet) {
	fs.IntVar(&f.workers, "c", netprobe.DefaultWorkers, "Number of concurrent connect attempts")
	fs.DurationVar(&f.timeout, "t", netprobe.DefaultTimeout, "Per-attempt connect timeout")
	fs.BoolVar(&f.stopEx, "stop-on-exhaustion", false, "Stop dispatching when the process runs out of file descriptors")
	fs.BoolVar(&f.resolve, "resolve", false, "Resolve hostnames of hosts with open ports (reverse DNS)")
	fs.BoolVar(&f.mac, "mac", false, "Look up MAC addresses of hosts with open ports (ARP, local link only)")
	fs.StringVar(&f.ouiPath, "oui", "", "IEEE oui.txt file for MAC vendor names (implies -mac)")
	fs.BoolVar(&f.progress, "progress", false, "Show a progress bar on stderr when it is a terminal")
	fs.BoolVar(&f.verbose, "v", false, "Verbose output")
	fs.BoolVar(&f.trace, "vv", false, "Very verbose output (every attempt)")
	fs.StringVar(&f.config, "config", "", "INI file with default settings (default: user config dir)")
}

// applyConfig fills flags the user did not set from the config file.
func (f *scanFlags) applyConfig(fs *flag.FlagSet) error {
	set := make(map[string]bool)
	fs.Visit(func(fl *flag.Flag) { set[fl.Name] = true })

	var cfg *config.Config
	var err error
	if set["config"] {
		cfg, err = config.Load(f.config)
	} else {
		cfg, err = config.LoadOptional(config.DefaultPath())
	}
	if err != nil {
		return err
	}

	if !set["c"] {
		f.workers = cfg.Scan.Workers
	}
	if !set["t"] {
		f.timeout = cfg.Scan.Timeout
	}
	if !set["stop-on-exhaustion"] {
		f.stopEx = cfg.Scan.StopOnExhaustion
	}
	if !set["resolve"] {
		f.resolve = cfg.Output.Resolve
	}
	if !set["mac"] {
		f.mac = cfg.Output.MAC
	}
	if !set["oui"] {
		f.ouiPath = cfg.Output.OUIDatabase
	}
	if !set["progress"] {
		f.progress = cfg.Output.Progress
	}
	if !set["v"] && !set["vv"] {
		f.verbose = cfg.General.Debug >= 1
		f.trace = cfg.General.Debug >= 2
	}
	return nil
}

func (f *scanFlags) debugLevel() netprobe.DebugLevel {
	switch {
	case f.trace:
		return netprobe.DebugVerbose
	case f.verbose:
		return netprobe.DebugBasic
	default:
		return netprobe.DebugOff
	}
}

func setupLogging(level netprobe.DebugLevel, stderr io.Writer) {
	if level == netprobe.DebugOff {
		netprobe.SetDebugLogger(nil)
		netprobe.SetDebugLevel(netprobe.DebugOff)
		return
	}
	logger := log.New(stderr, "", log.LstdFlags|log.Lmicroseconds)
	netprobe.SetDebugLogger(func(c netprobe.Component, format string, args ...interface{}) {
		logger.Printf(netprobe.ComponentToPrefix(c)+" "+format, args...)
	})
	netprobe.SetDebugLevel(level)
}

func runProbe(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("probe", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var f scanFlags
	f.register(fs)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: netprobe probe [flags] <target> [start_port end_port]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return parseExit(err)
	}
	if err := f.applyConfig(fs); err != nil {
		fmt.Fprintf(stderr, "error: config: %v\n", err)
		return exitUsage
	}

	pos := fs.Args()
	if len(pos) != 1 && len(pos) != 3 {
		fmt.Fprintln(stderr, "error: expected <target> and optionally <start_port> <end_port>")
		fs.Usage()
		return exitUsage
	}

	spec, err := target.ParseSpec(pos[0])
	if err != nil {
		fmt.Fprintf(stderr, "error: target: %v\n", err)
		return exitUsage
	}
	ports := target.PortRange{Start: 1, End: 1024}
	if len(pos) == 3 {
		ports, err = target.ParsePortRange(pos[1], pos[2])
		if err != nil {
			fmt.Fprintf(stderr, "error: ports: %v\n", err)
			return exitUsage
		}
	}

	scan, err := target.New([]target.Spec{spec}, ports)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitUsage
	}
	return scanAndPrint(ctx, scan, &f, stdout, stderr)
}

func runDiscover(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("discover", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var f scanFlags
	f.register(fs)
	portsStr := fs.String("ports", defaultDiscoverPorts, "Comma-separated TCP ports to probe")
	minPrefix := fs.Int("min-prefix", 20, "Skip attached networks wider than this prefix length")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: netprobe discover [flags]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return parseExit(err)
	}
	if fs.NArg() != 0 {
		fmt.Fprintf(stderr, "error: unexpected arguments: %v\n", fs.Args())
		return exitUsage
	}
	if err := f.applyConfig(fs); err != nil {
		fmt.Fprintf(stderr, "error: config: %v\n", err)
		return exitUsage
	}
	// Whole-network sweeps size the pool from the CPU count unless told otherwise.
	if !isSet(fs, "c") && f.workers == netprobe.DefaultWorkers {
		f.workers = limits.SuggestedWorkers()
	}
	if *minPrefix < 0 || *minPrefix > 32 {
		fmt.Fprintf(stderr, "error: -min-prefix %d out of range [0, 32]\n", *minPrefix)
		return exitUsage
	}

	ports, err := parsePorts(*portsStr)
	if err != nil {
		fmt.Fprintf(stderr, "error: invalid ports: %v\n", err)
		return exitUsage
	}

	setupLogging(f.debugLevel(), stderr)

	subnets, err := enumerator.Subnets(ctx, ifaces.Options{})
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitError
	}
	own, err := enumerator.Addresses(ctx, ifaces.Options{})
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitError
	}

	var specs []target.Spec
	for _, p := range subnets {
		if p.Bits() < *minPrefix {
			fmt.Fprintf(stderr, "warning: skipping %s (wider than /%d)\n", p, *minPrefix)
			continue
		}
		spec, err := target.ParseSpec(p.String())
		if err != nil {
			continue
		}
		specs = append(specs, spec)
	}
	if len(specs) == 0 {
		fmt.Fprintln(stderr, "No networks to scan.")
		return exitOK
	}
	for _, s := range specs {
		fmt.Fprintf(stderr, "Scanning %s\n", s)
	}

	scan, err := target.NewWithPorts(specs, ports, own...)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitUsage
	}
	return scanAndPrint(ctx, scan, &f, stdout, stderr)
}

func runNetworks(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("networks", flag.ContinueOnError)
	fs.SetOutput(stderr)
	all := fs.Bool("all", false, "Include loopback and down interfaces")
	if err := fs.Parse(args); err != nil {
		return parseExit(err)
	}

	recs, err := enumerator.List(ctx, ifaces.Options{IncludeLoopback: *all, IncludeDown: *all})
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitError
	}

	tw := tabwriter.NewWriter(stdout, 0, 2, 2, ' ', 0)
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Name, r.Address, r.Prefix)
	}
	if err := tw.Flush(); err != nil {
		return exitError
	}
	return exitOK
}

// scanAndPrint runs scan and writes the report. It returns the exit code.
func scanAndPrint(ctx context.Context, scan *target.Scan, f *scanFlags, stdout, stderr io.Writer) int {
	setupLogging(f.debugLevel(), stderr)

	cfg := netprobe.Config{
		Workers:          f.workers,
		Timeout:          f.timeout,
		StopOnExhaustion: f.stopEx,
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitUsage
	}
	if cfg.Workers = limits.ClampWorkers(f.workers); cfg.Workers < f.workers {
		fmt.Fprintf(stderr, "warning: lowering workers from %d to %d (open file limit)\n", f.workers, cfg.Workers)
	}

	exec, err := netprobe.NewExecutor(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitUsage
	}

	annotator, err := f.annotator(stderr)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitUsage
	}

	var bar *progress.Bar
	if file, ok := stderr.(*os.File); ok && f.progress {
		bar = progress.New(file, "probing")
	}

	rep, err := exec.Run(ctx, scan, func(_ netprobe.Outcome, accounted, expected uint64) {
		bar.Update(accounted, expected)
	})
	bar.Finish()

	interrupted := errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)

	if rep != nil {
		if annotator != nil && !interrupted {
			_ = netprobe.WriteHostInfo(stdout, annotator.Annotate(ctx, rep))
		} else {
			_ = rep.WriteText(stdout)
		}
		if len(rep.Hosts) == 0 {
			fmt.Fprintln(stderr, "No open ports found.")
		}
		if rep.Summary.Errored > 0 {
			fmt.Fprintf(stderr, "%d probes failed", rep.Summary.Errored)
			if len(rep.Failures) > 0 {
				fmt.Fprintf(stderr, " (first: %s: %s)", rep.Failures[0].Candidate, rep.Failures[0].Reason())
			}
			fmt.Fprintln(stderr)
		}
	}

	switch {
	case interrupted:
		if rep != nil {
			fmt.Fprintf(stderr, "interrupted: partial results (%d of %d probes)\n", rep.Accounted, rep.Expected)
		}
		return exitInterrupt
	case err != nil:
		var sysErr *netprobe.SystemError
		if errors.As(err, &sysErr) {
			fmt.Fprintf(stderr, "error: %v (raise the open file limit or lower -c)\n", sysErr)
		} else {
			fmt.Fprintf(stderr, "error: %v\n", err)
		}
		return exitError
	}
	return exitOK
}

// annotator builds the host annotator requested by the flags, or nil.
func (f *scanFlags) annotator(stderr io.Writer) (*netprobe.Annotator, error) {
	wantMAC := f.mac || f.ouiPath != ""
	if !f.resolve && !wantMAC {
		return nil, nil
	}

	var db *oui.DB
	if f.ouiPath != "" {
		var err error
		if db, err = oui.Open(f.ouiPath); err != nil {
			return nil, err
		}
	}
	if wantMAC && !arp.IsSupported() {
		wantMAC = false
		fmt.Fprintln(stderr, "warning: MAC lookup is not supported on this platform")
	}

	opts := netprobe.DefaultAnnotateOptions()
	opts.EnableDNS = f.resolve
	opts.EnableARP = wantMAC
	opts.EnableVendor = wantMAC && db != nil
	an, err := netprobe.NewAnnotator(opts)
	if err != nil {
		return nil, err
	}
	an.Vendor = db
	return an, nil
}

func parsePorts(s string) ([]uint16, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("ports list is empty")
	}
	parts := strings.Split(s, ",")
	ports := make([]uint16, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if lo, hi, ok := strings.Cut(p, "-"); ok {
			r, err := target.ParsePortRange(lo, hi)
			if err != nil {
				return nil, err
			}
			ports = append(ports, r.Ports()...)
			continue
		}
		v, err := strconv.Atoi(p)
		if err != nil || v <= 0 || v > 65535 {
			return nil, fmt.Errorf("invalid port: %q", p)
		}
		ports = append(ports, uint16(v))
	}
	return ports, nil
}
