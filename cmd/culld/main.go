package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/cull-io/cull/internal/config"
)

var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "--version" || os.Args[1] == "-version") {
		fmt.Printf("culld version %s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	subcommand := os.Args[1]
	switch subcommand {
	case "reap":
		runReap(os.Args[2:], false)
	case "once":
		runReap(os.Args[2:], true)
	case "version":
		fmt.Printf("culld version %s (built %s, commit %s)\n", version, buildTime, gitCommit)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", subcommand)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Usage: culld <command> [options]

Commands:
  reap        Run the reaper loop over the configured RSEs
  once        Run a single reap pass and exit
  version     Print version information

Run 'culld <command> --help' for more information on a command.`)
}

func runReap(args []string, once bool) {
	name := "reap"
	if once {
		name = "once"
	}
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	rses := fs.String("rses", "", "Override RSE list (comma-separated)")
	immediate := fs.Bool("immediate-cleanup", false, "Enable incremental catalog cleanup")
	chunkSize := fs.Int("chunk-size", 0, "Override selector batch / sub-chunk size")
	metricsAddr := fs.String("metrics-addr", "", "Override metrics endpoint address (e.g., :9090)")

	fs.Usage = func() {
		fmt.Printf(`Usage: culld %s [options]

Delete eligible replicas at the configured RSEs and reconcile the catalog.

Options:
`, name)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFromPath(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if *rses != "" {
		cfg.Reaper.RSEs = splitList(*rses)
	}
	if *immediate {
		cfg.Reaper.EnableImmediateCleanup = true
	}
	if *chunkSize > 0 {
		cfg.Reaper.ChunkSize = *chunkSize
	}
	if *metricsAddr != "" {
		cfg.Observability.MetricsAddr = *metricsAddr
	}

	if len(cfg.Reaper.RSEs) == 0 {
		fmt.Fprintln(os.Stderr, "no RSEs configured; set reaper.rses or pass --rses")
		os.Exit(1)
	}

	if err := run(cfg, once); err != nil {
		fmt.Fprintf(os.Stderr, "culld: %v\n", err)
		os.Exit(1)
	}
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
