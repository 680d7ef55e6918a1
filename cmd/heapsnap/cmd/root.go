// Package cmd implements the heapsnap command line.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/heap-snapshot/internal/parser/hprof"
	"github.com/heap-snapshot/internal/service"
	"github.com/heap-snapshot/pkg/config"
	"github.com/heap-snapshot/pkg/pprof"
	"github.com/heap-snapshot/pkg/telemetry"
	"github.com/heap-snapshot/pkg/utils"
)

// rootOptions holds the global flags and what they set up.
type rootOptions struct {
	configPath string
	verbose    bool
	baseline   string
	jsonOut    bool

	pprofEnabled  bool
	pprofDir      string
	pprofProfiles string
	pprofCPURate  int

	cfg      *config.Config
	logger   utils.Logger
	profiler *pprof.Profiler
	shutdown telemetry.ShutdownFunc
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	root, _ := newRootCmd()
	return root
}

func newRootCmd() (*cobra.Command, *rootOptions) {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   BinName(),
		Short: "Inspect Java heap dumps",
		Long: `heapsnap loads HPROF heap dumps into a navigable object graph.

It prints class histograms, GC roots and individual objects, computes the
set of objects reachable from an object and the reference chains that keep
it alive, and can compare a dump against a baseline to find new objects.
Dumps may be plain, gzip or zstd compressed, on local disk or in COS.`,
		SilenceUsage:      true,
		PersistentPreRunE: opts.setup,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "Path to configuration file")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose output")
	flags.StringVarP(&opts.baseline, "baseline", "b", "", "Baseline dump; objects missing from it are marked new")
	flags.BoolVar(&opts.jsonOut, "json", false, "Print results as JSON")

	flags.BoolVar(&opts.pprofEnabled, "pprof", false, "Profile heapsnap itself while it runs")
	flags.StringVar(&opts.pprofDir, "pprof-dir", "./pprof", "Output directory for pprof data")
	flags.StringVar(&opts.pprofProfiles, "pprof-profiles", "cpu,heap,goroutine", "Comma-separated profile types: cpu,heap,goroutine,block,mutex,allocs")
	flags.IntVar(&opts.pprofCPURate, "pprof-cpu-rate", 0, "CPU profiling rate in Hz (0 keeps the runtime default)")

	binName := BinName()
	root.Example = `  # Summarize a dump
  ` + binName + ` summary ./app.hprof

  # Largest application classes, compared with an earlier dump
  ` + binName + ` histo ./app.hprof --baseline ./before.hprof --app-only --top 20

  # What keeps an object alive
  ` + binName + ` chains ./app.hprof 0x7f0a1c40

  # Save the summary and list earlier runs
  ` + binName + ` summary ./app.hprof --save
  ` + binName + ` history ./app.hprof`

	root.AddCommand(
		newSummaryCmd(opts),
		newHistoCmd(opts),
		newRootsCmd(opts),
		newShowCmd(opts),
		newReachableCmd(opts),
		newChainsCmd(opts),
		newHistoryCmd(opts),
		newPruneCmd(opts),
		newExportCmd(opts),
		newVersionCmd(),
	)
	return root, opts
}

// Execute runs the command line and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// Run executes args against a fresh command tree. Results go to stdout,
// logs to stderr.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root, opts := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	opts.teardown(ctx)
	return err
}

// BinName returns the base name of the current executable
func BinName() string {
	return filepath.Base(os.Args[0])
}

// setup loads the configuration and starts logging, tracing and
// self-profiling.
func (o *rootOptions) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	o.cfg = cfg

	level := utils.ParseLogLevel(cfg.Log.Level)
	if o.verbose {
		level = utils.LevelDebug
	}
	if cfg.Log.OutputPath != "" {
		fl, err := utils.NewFileLogger(level, cfg.Log.OutputPath)
		if err != nil {
			return err
		}
		o.logger = fl
	} else {
		o.logger = utils.NewDefaultLogger(level, cmd.ErrOrStderr())
	}

	shutdown, err := telemetry.Init(cmd.Context())
	if err != nil {
		o.logger.Warn("Tracing disabled: %v", err)
	}
	o.shutdown = shutdown

	if o.pprofEnabled {
		profiles, err := pprof.ParseProfileTypes(o.pprofProfiles)
		if err != nil {
			return err
		}
		p, err := pprof.Start(pprof.Config{Dir: o.pprofDir, Profiles: profiles, CPURate: o.pprofCPURate})
		if err != nil {
			return err
		}
		o.profiler = p
		o.logger.Info("pprof collection started (dir: %s)", p.Dir())
	}
	return nil
}

func (o *rootOptions) teardown(ctx context.Context) {
	if o.profiler != nil {
		files, err := o.profiler.Stop()
		if err != nil {
			o.logger.Warn("Failed to stop pprof collection: %v", err)
		}
		o.logger.Info("pprof data saved to: %s (%d files)", o.profiler.Dir(), len(files))
		for _, f := range files {
			sum, err := pprof.Summarize(f, 3)
			if err != nil {
				o.logger.Warn("%v", err)
				continue
			}
			o.logger.Debug("%s: %d samples, %d %s %s", filepath.Base(f), sum.Samples, sum.Total, sum.Unit, sum.SampleType)
			for _, top := range sum.Top {
				o.logger.Debug("  %d %s", top.Flat, top.Name)
			}
		}
		o.profiler = nil
	}
	if o.shutdown != nil {
		if err := o.shutdown(ctx); err != nil {
			o.logger.Warn("Failed to flush traces: %v", err)
		}
		o.shutdown = nil
	}
}

// newService opens storage and, when enabled, the summary database.
func (o *rootOptions) newService(ctx context.Context, mutate func(*config.Config)) (*service.Service, error) {
	cfg := *o.cfg
	if mutate != nil {
		mutate(&cfg)
	}

	svc, err := service.New(&cfg, o.logger)
	if err != nil {
		return nil, err
	}
	if err := svc.Initialize(ctx); err != nil {
		svc.Close()
		return nil, err
	}
	return svc, nil
}

// withDump opens key, compared against the baseline flag when set, and
// hands it to fn.
func (o *rootOptions) withDump(ctx context.Context, key string, mutate func(*config.Config),
	fn func(svc *service.Service, dump *hprof.Dump) error) error {
	svc, err := o.newService(ctx, mutate)
	if err != nil {
		return err
	}
	defer svc.Close()

	if o.baseline == "" {
		dump, err := svc.Open(ctx, key)
		if err != nil {
			return err
		}
		defer dump.Close()
		return fn(svc, dump)
	}

	pair, err := svc.OpenPair(ctx, o.baseline, key)
	if err != nil {
		return err
	}
	defer pair.Close()
	return fn(svc, pair.Current)
}
