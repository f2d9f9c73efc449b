package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/marmos91/duraprobe/internal/logger"
	"github.com/marmos91/duraprobe/pkg/config"
	"github.com/marmos91/duraprobe/pkg/probe"
	"github.com/spf13/cobra"
)

var (
	runDir        string
	runWritePath  string
	runExtendSync string
	runWriteSync  string
	runPolicy     string
	runIterations int
	runIdle       time.Duration
	runVersions   int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the transaction simulator against a fresh test file",
	Long: `Run repeated file-growth and page-write transactions until interrupted.

A fresh test file named test-<timestamp>.dat is created in the working
directory; running against an existing file is a setup error. Each
transaction extends the file, rewrites body pages, and commits a header,
applying the configured barrier lists after the extension and after each
write group. The run is meant to be ended by cutting power; afterwards,
inspect the survivor with "duraprobe verify".

Barrier lists are comma-separated and order-preserving. Tokens:
none, msync, fsync, fsyncparent, fullfsync.

Examples:
  # mmap writes, msync then fullfsync after every write group
  duraprobe run --write-path mmap --write-sync msync,fullfsync

  # pwrite with no barriers at all: the kernel's write-back baseline
  duraprobe run --write-path write --extend-sync none --write-sync none

  # the multi-slot versioned policy with a shorter operator window
  duraprobe run --policy slots --idle 200ms`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runDir, "dir", "", "working directory for test files")
	runCmd.Flags().StringVar(&runWritePath, "write-path", "", "write path: mmap or write")
	runCmd.Flags().StringVar(&runExtendSync, "extend-sync", "", "barrier list applied after each extension")
	runCmd.Flags().StringVar(&runWriteSync, "write-sync", "", "barrier list applied after each write group")
	runCmd.Flags().StringVar(&runPolicy, "policy", "", "growth policy: grow or slots")
	runCmd.Flags().IntVar(&runIterations, "iterations", 0, "number of transactions or growth steps")
	runCmd.Flags().DurationVar(&runIdle, "idle", 0, "pause between write groups")
	runCmd.Flags().IntVar(&runVersions, "versions-per-size", 0, "slot rewrites per growth step (slots policy)")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return err
	}
	applyRunFlags(cmd, cfg)

	if err := InitLogger(cfg); err != nil {
		return err
	}

	simCfg, err := buildSimulatorConfig(cfg)
	if err != nil {
		if probe.IsConfigError(err) {
			_ = cmd.Usage()
		}
		return err
	}

	fileName := fmt.Sprintf("test-%s.dat", time.Now().Format("2006-01-02-15-04-05"))
	handle, err := probe.Create(cfg.Run.Dir, fileName, simCfg.WritePath)
	if err != nil {
		return err
	}
	defer func() {
		if err := handle.Close(); err != nil {
			logger.Warn("failed to release test file", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sim := probe.NewSimulator(handle, simCfg)
	if err := sim.Run(ctx); err != nil {
		return err
	}

	logger.Info("simulation completed", "file", handle.Path(), "bytes", handle.Length())
	return nil
}

// applyRunFlags overlays changed CLI flags on the loaded configuration.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("dir") {
		cfg.Run.Dir = runDir
	}
	if cmd.Flags().Changed("write-path") {
		cfg.Run.WritePath = runWritePath
	}
	if cmd.Flags().Changed("extend-sync") {
		cfg.Run.ExtendSync = runExtendSync
	}
	if cmd.Flags().Changed("write-sync") {
		cfg.Run.WriteSync = runWriteSync
	}
	if cmd.Flags().Changed("policy") {
		cfg.Run.Policy = runPolicy
	}
	if cmd.Flags().Changed("iterations") {
		cfg.Run.Iterations = runIterations
	}
	if cmd.Flags().Changed("idle") {
		cfg.Run.Idle = runIdle
	}
	if cmd.Flags().Changed("versions-per-size") {
		cfg.Run.VersionsPerSize = runVersions
	}
}

// buildSimulatorConfig parses the configuration's tokens into the validated
// value the simulator runs from.
func buildSimulatorConfig(cfg *config.Config) (*probe.SimulatorConfig, error) {
	writePath, err := probe.ParseWritePath(cfg.Run.WritePath)
	if err != nil {
		return nil, err
	}
	extendSync, err := probe.ParseBarrierList(cfg.Run.ExtendSync)
	if err != nil {
		return nil, fmt.Errorf("--extend-sync: %w", err)
	}
	writeSync, err := probe.ParseBarrierList(cfg.Run.WriteSync)
	if err != nil {
		return nil, fmt.Errorf("--write-sync: %w", err)
	}
	policy, err := probe.ParsePolicy(cfg.Run.Policy)
	if err != nil {
		return nil, err
	}

	return &probe.SimulatorConfig{
		WritePath:       writePath,
		Policy:          policy,
		ExtendSync:      extendSync,
		WriteSync:       writeSync,
		Iterations:      cfg.Run.Iterations,
		Idle:            cfg.Run.Idle,
		VersionsPerSize: cfg.Run.VersionsPerSize,
	}, nil
}
