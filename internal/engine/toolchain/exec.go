// Package toolchain runs the Swift package manager and SourceKitten as
// scoped subprocesses.
package toolchain

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"swiftslice/internal/core/errors"
	"swiftslice/internal/core/ports"
	"swiftslice/internal/shared/observability"
	"swiftslice/internal/shared/util"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Command labels used for metrics, spans and error context.
const (
	CmdClean      = "clean"
	CmdBuild      = "build"
	CmdDump       = "dump-package"
	CmdModuleInfo = "module-info"
	CmdStructure  = "structure"
	CmdIndex      = "index"
)

const stderrTail = 2048

// Options configures the binaries and limits of an Exec.
type Options struct {
	SwiftBin        string
	SourceKittenBin string
	Timeout         time.Duration
	BuildTimeout    time.Duration
	Limiter         *util.Limiter
	Env             []string
}

// Output is what one subprocess produced.
type Output struct {
	Stdout []byte
	Stderr []byte
}

// Runner starts one process and waits for it.
type Runner func(ctx context.Context, dir, name string, args []string, env []string) (Output, error)

// Exec implements ports.Toolchain on top of os/exec.
type Exec struct {
	opts Options
	run  Runner
}

var _ ports.Toolchain = (*Exec)(nil)

func New(opts Options) *Exec {
	return NewWithRunner(opts, RunProcess)
}

// NewWithRunner swaps the process runner, mainly for tests.
func NewWithRunner(opts Options, run Runner) *Exec {
	if opts.SwiftBin == "" {
		opts.SwiftBin = "swift"
	}
	if opts.SourceKittenBin == "" {
		opts.SourceKittenBin = "sourcekitten"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Minute
	}
	if opts.BuildTimeout <= 0 {
		opts.BuildTimeout = 30 * time.Minute
	}
	return &Exec{opts: opts, run: run}
}

// RunProcess spawns name with args in dir and captures both streams in full.
// The process is killed when ctx is done.
func RunProcess(ctx context.Context, dir, name string, args []string, env []string) (Output, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	err := cmd.Run()
	return Output{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}, err
}

func (e *Exec) Clean(ctx context.Context, projectDir string) error {
	_, err := e.invoke(ctx, CmdClean, e.opts.Timeout, projectDir, e.opts.SwiftBin, []string{"package", "clean"})
	return err
}

// VerboseBuild returns stdout and stderr of a verbose debug build. A failed
// build still returns whatever transcript it produced alongside the error.
func (e *Exec) VerboseBuild(ctx context.Context, projectDir string) (string, error) {
	args := []string{"build", "-c", "debug", "--verbose", "-Xcc", "-Wno-error"}
	out, err := e.invoke(ctx, CmdBuild, e.opts.BuildTimeout, projectDir, e.opts.SwiftBin, args)
	transcript := string(out.Stdout)
	if len(out.Stderr) > 0 {
		transcript += "\n" + string(out.Stderr)
	}
	return transcript, err
}

func (e *Exec) DumpPackage(ctx context.Context, projectDir string) ([]byte, error) {
	out, err := e.invoke(ctx, CmdDump, e.opts.Timeout, projectDir, e.opts.SwiftBin, []string{"package", "dump-package"})
	return out.Stdout, err
}

func (e *Exec) ModuleInfo(ctx context.Context, projectDir, module string, compilerArgs []string) ([]byte, error) {
	args := []string{"module-info", "--module", module}
	if len(compilerArgs) > 0 {
		args = append(args, "--")
		args = append(args, compilerArgs...)
	}
	out, err := e.invoke(ctx, CmdModuleInfo, e.opts.Timeout, projectDir, e.opts.SourceKittenBin, args)
	if err != nil {
		return nil, errors.AddContext(err, errors.CtxModule, module)
	}
	return out.Stdout, nil
}

func (e *Exec) Structure(ctx context.Context, filePath string) ([]byte, error) {
	out, err := e.invoke(ctx, CmdStructure, e.opts.Timeout, "", e.opts.SourceKittenBin, []string{"structure", "--file", filePath})
	if err != nil {
		return nil, errors.AddContext(err, errors.CtxPath, filePath)
	}
	return out.Stdout, nil
}

// Index always passes the file again after the compiler arguments, which is
// what sourcekitten expects for a single-file index request.
func (e *Exec) Index(ctx context.Context, filePath string, compilerArgs []string) ([]byte, error) {
	args := []string{"index", "--file", filePath, "--"}
	args = append(args, compilerArgs...)
	args = append(args, filePath)
	out, err := e.invoke(ctx, CmdIndex, e.opts.Timeout, "", e.opts.SourceKittenBin, args)
	if err != nil {
		return nil, errors.AddContext(err, errors.CtxPath, filePath)
	}
	return out.Stdout, nil
}

// Available reports which configured binaries cannot be found on PATH.
func (e *Exec) Available() map[string]error {
	missing := make(map[string]error)
	for _, bin := range []string{e.opts.SwiftBin, e.opts.SourceKittenBin} {
		if _, err := exec.LookPath(bin); err != nil {
			missing[bin] = err
		}
	}
	return missing
}

func (e *Exec) invoke(ctx context.Context, label string, timeout time.Duration, dir, bin string, args []string) (Output, error) {
	if err := e.opts.Limiter.Wait(ctx, 1); err != nil {
		return Output{}, errors.AddContext(errors.Wrap(err, errors.CodeIntrospectionFailed, "waiting for toolchain slot"), errors.CtxCommand, label)
	}

	ctx, span := observability.Tracer.Start(ctx, "toolchain."+label, trace.WithAttributes(
		attribute.String("toolchain.binary", bin),
		attribute.String("toolchain.dir", dir),
	))
	defer span.End()

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	out, err := e.run(runCtx, dir, bin, args, e.opts.Env)
	elapsed := time.Since(start)
	observability.ToolchainDuration.WithLabelValues(label).Observe(elapsed.Seconds())

	if err == nil {
		observability.ToolchainCallsTotal.WithLabelValues(label, "ok").Inc()
		slog.Debug("toolchain call finished", "command", label, "duration", elapsed, "stdout_bytes", len(out.Stdout))
		return out, nil
	}

	outcome, derr := classifyFailure(runCtx, label, bin, out, err)
	observability.ToolchainCallsTotal.WithLabelValues(label, outcome).Inc()
	span.RecordError(derr)
	span.SetStatus(codes.Error, outcome)
	slog.Debug("toolchain call failed", "command", label, "outcome", outcome, "duration", elapsed, "error", err)
	return out, derr
}

func classifyFailure(ctx context.Context, label, bin string, out Output, err error) (string, error) {
	var derr error
	outcome := "error"
	switch {
	case errors.Is(err, exec.ErrNotFound):
		outcome = "unavailable"
		derr = errors.Wrap(err, errors.CodeToolchainUnavailable, fmt.Sprintf("%s not found", bin))
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		outcome = "timeout"
		derr = errors.Wrap(err, errors.CodeIntrospectionFailed, fmt.Sprintf("%s %s timed out", bin, label))
	case errors.Is(ctx.Err(), context.Canceled):
		outcome = "canceled"
		derr = errors.Wrap(ctx.Err(), errors.CodeIntrospectionFailed, fmt.Sprintf("%s %s canceled", bin, label))
	default:
		derr = errors.Wrap(err, errors.CodeIntrospectionFailed, fmt.Sprintf("%s %s failed", bin, label))
	}
	derr = errors.AddContext(derr, errors.CtxCommand, label)
	if tail := tailOf(out.Stderr); tail != "" {
		derr = errors.AddContext(derr, "stderr", tail)
	}
	return outcome, derr
}

func tailOf(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > stderrTail {
		s = s[len(s)-stderrTail:]
	}
	return s
}
