package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"swiftslice/internal/core/app"
	"swiftslice/internal/core/config"
	"swiftslice/internal/core/ports"
	"swiftslice/internal/data/slicestore"
	"swiftslice/internal/engine/toolchain"
	"swiftslice/internal/shared/observability"
	"swiftslice/internal/shared/util"
	"syscall"
	"time"

	"github.com/joho/godotenv"
)

var (
	configPath = flag.String("config", config.DefaultFileName, "Path to config file")
	root       = flag.String("root", ".", "Swift package (or, with -multi, directory tree) to slice")
	multi      = flag.Bool("multi", false, "Slice every Swift package found below -root")
	outDir     = flag.String("out", "", "Directory for <project>.slices.json files (overrides output.dir)")
	watch      = flag.Bool("watch", false, "Re-slice when Swift sources or manifests change")
	history    = flag.Duration("history", 0, "Print recorded runs of -root from this far back and exit")
	last       = flag.Bool("last", false, "Print the most recent recorded run of -root and exit")
	doctor     = flag.Bool("doctor", false, "Check that swift and sourcekitten are installed and exit")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	version    = flag.Bool("version", false, "Print version and exit")
)

const VERSION = "0.3.0"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("swiftslice v%s\n", VERSION)
		os.Exit(0)
	}

	// SWIFT_* overrides are often kept next to the package in a .env file.
	_ = godotenv.Load()

	slog.SetDefault(newLogger(os.Stderr, *verbose))

	cfg, err := loadConfig(*configPath, flagWasSet("config"))
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *multi {
		cfg.Scan.MultiProject = true
	}
	if *outDir != "" {
		cfg.Output.Dir = *outDir
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, cfg))
}

func flagWasSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func loadConfig(path string, explicit bool) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(path, explicit)
	if err != nil {
		return nil, err
	}
	config.ApplyEnvOverrides(cfg)
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config) int {
	cwd, err := os.Getwd()
	if err != nil {
		slog.Error("failed to resolve working directory", "error", err)
		return 1
	}
	paths, err := config.ResolvePaths(cfg, cwd)
	if err != nil {
		slog.Error("failed to resolve paths", "error", err)
		return 1
	}

	tc := toolchain.New(toolchain.Options{
		SwiftBin:        cfg.Toolchain.SwiftBin,
		SourceKittenBin: cfg.Toolchain.SourceKittenBin,
		Timeout:         cfg.Toolchain.Timeout,
		BuildTimeout:    cfg.Toolchain.BuildTimeout,
		Limiter:         util.NewLimiter(cfg.Toolchain.RateLimit, cfg.Toolchain.Burst),
	})

	if *doctor {
		return runDoctor(tc)
	}

	if cfg.Observability.EnableTracing {
		shutdown, err := observability.InitTracing(ctx, observability.TracingConfig{
			Endpoint:    cfg.Observability.OTLPEndpoint,
			ServiceName: cfg.Observability.ServiceName,
			Insecure:    cfg.Observability.OTLPInsecure,
		})
		if err != nil {
			slog.Warn("tracing disabled", "error", err)
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(shutdownCtx); err != nil {
					slog.Warn("failed to flush traces", "error", err)
				}
			}()
		}
	}

	var store *slicestore.Store
	deps := app.Dependencies{Toolchain: tc, OutputDir: paths.OutputDir}
	if cfg.DB.Enabled {
		store, err = slicestore.Open(paths.DBPath, cfg.DB.BusyTimeout)
		if err != nil {
			slog.Error("failed to open slice store", "path", paths.DBPath, "error", err)
			if hint := storeOpenHint(err); hint != "" {
				slog.Error(hint, "path", paths.DBPath)
			}
			return 1
		}
		defer store.Close()
		slog.Debug("slice store opened", "path", store.Path())
		deps.Store = store
	}

	a, err := app.NewWithDependencies(cfg, deps)
	if err != nil {
		slog.Error("failed to initialize app", "error", err)
		return 1
	}

	rootDir, err := filepath.Abs(*root)
	if err != nil {
		slog.Error("invalid root", "root", *root, "error", err)
		return 1
	}

	if *history > 0 {
		return printHistory(a, rootDir, time.Now().Add(-*history))
	}
	if *last {
		return printLatest(a, rootDir)
	}

	if cfg.Observability.Enabled {
		srv := observability.NewServer(cfg.Observability.Addr(), app.NewHealthService(a))
		if err := srv.Start(ctx); err != nil {
			slog.Warn("observability server disabled", "error", err)
		} else {
			defer func() {
				stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Stop(stopCtx)
			}()
		}
	}

	req := ports.SliceRequest{Root: rootDir, MultiProject: cfg.Scan.MultiProject}
	result, err := a.Run(ctx, req)
	code := exitCode(result, err)
	if err != nil {
		slog.Error("slicing finished with errors", "error", err)
	}

	if !*watch {
		return code
	}

	if err := a.StartWatcher(ctx, req); err != nil {
		slog.Error("failed to start watcher", "error", err)
		return 1
	}
	slog.Info("watching for changes", "root", rootDir, "debounce", cfg.Watch.Debounce)
	<-ctx.Done()
	a.StopWatcher()
	return 0
}

// exitCode is 0 when at least one project was sliced.
func exitCode(result ports.SliceResult, err error) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, context.Canceled) {
		return 130
	}
	for _, p := range result.Projects {
		if p.Status == slicestore.StatusDone {
			return 0
		}
	}
	return 1
}

func runDoctor(tc *toolchain.Exec) int {
	missing := tc.Available()
	for bin, err := range missing {
		slog.Error("toolchain binary unavailable", "binary", bin, "error", err)
	}
	if len(missing) > 0 {
		return 1
	}
	slog.Info("swift and sourcekitten found")
	return 0
}

func printHistory(a *app.App, rootDir string, since time.Time) int {
	runs, err := a.History(rootDir, since)
	if err != nil {
		slog.Error("failed to load slice history", "error", err)
		return 1
	}
	for _, r := range runs {
		fmt.Println(formatRun(r))
	}
	return 0
}

func printLatest(a *app.App, rootDir string) int {
	run, ok, err := a.LatestRun(rootDir)
	if err != nil {
		slog.Error("failed to load latest slice run", "error", err)
		return 1
	}
	if !ok {
		slog.Info("no recorded runs", "root", rootDir)
		return 1
	}
	fmt.Println(formatRun(run))
	return 0
}

// storeOpenHint explains how to recover from an unreadable store file.
func storeOpenHint(err error) string {
	if slicestore.IsCorruptError(err) {
		return "slice store is corrupt; remove the file or set db.enabled = false"
	}
	return ""
}

func formatRun(r slicestore.Run) string {
	line := fmt.Sprintf("%s  %s  %-8s %6s  args=%d modules=%d build_modules=%d files=%d indexed=%d",
		r.StartedAt.Local().Format("2006-01-02 15:04:05"),
		r.RunID,
		r.Status,
		r.Duration().Round(time.Millisecond),
		r.CompilerArgs, r.Modules, r.BuildModules, r.Files, r.IndexedFiles,
	)
	if r.ErrorCode != "" {
		line += "  error=" + r.ErrorCode
	}
	return line
}
