package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/gobwas/glob"
)

// Validate checks a defaulted configuration.
func Validate(cfg *Config) error {
	validators := []func(*Config) error{
		validateVersion,
		validateToolchain,
		validateScan,
		validateSlice,
		validateOutput,
		validateDatabase,
		validateObservability,
	}
	for _, v := range validators {
		if err := v(cfg); err != nil {
			return err
		}
	}
	return nil
}

func validateVersion(cfg *Config) error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported config version %d; supported version is 1", cfg.Version)
	}
	return nil
}

func validateToolchain(cfg *Config) error {
	tc := cfg.Toolchain
	if strings.ContainsAny(tc.SwiftBin, "\n\t") || strings.ContainsAny(tc.SourceKittenBin, "\n\t") {
		return fmt.Errorf("toolchain binaries must not contain control whitespace")
	}
	if tc.Timeout < time.Second {
		return fmt.Errorf("toolchain.timeout must be >= 1s, got %s", tc.Timeout)
	}
	if tc.BuildTimeout < tc.Timeout {
		return fmt.Errorf("toolchain.build_timeout (%s) must be >= toolchain.timeout (%s)", tc.BuildTimeout, tc.Timeout)
	}
	if tc.RateLimit < 0 {
		return fmt.Errorf("toolchain.rate_limit must be >= 0")
	}
	return nil
}

func validateScan(cfg *Config) error {
	for i, p := range cfg.Scan.ExcludeDirs {
		if _, err := glob.Compile(p); err != nil {
			return fmt.Errorf("scan.exclude_dirs[%d]: invalid pattern %q: %w", i, p, err)
		}
	}
	for i, p := range cfg.Scan.ExcludeFiles {
		if _, err := glob.Compile(p); err != nil {
			return fmt.Errorf("scan.exclude_files[%d]: invalid pattern %q: %w", i, p, err)
		}
	}
	return nil
}

func validateSlice(cfg *Config) error {
	if cfg.Slice.Workers < 1 || cfg.Slice.Workers > 64 {
		return fmt.Errorf("slice.workers must be between 1 and 64")
	}
	if strings.ContainsAny(cfg.Slice.BuildDir, "*?[]{}") {
		return fmt.Errorf("slice.build_dir must be a plain directory name, got %q", cfg.Slice.BuildDir)
	}
	return nil
}

func validateOutput(cfg *Config) error {
	if !strings.HasSuffix(cfg.Output.Suffix, ".json") {
		return fmt.Errorf("output.suffix must end in .json, got %q", cfg.Output.Suffix)
	}
	return nil
}

func validateDatabase(cfg *Config) error {
	if !cfg.DB.Enabled {
		return nil
	}
	if strings.TrimSpace(cfg.DB.Path) == "" {
		return fmt.Errorf("db.path must not be empty when db.enabled=true")
	}
	return nil
}

func validateObservability(cfg *Config) error {
	o := cfg.Observability
	if o.Port < 1 || o.Port > 65535 {
		return fmt.Errorf("observability.port must be between 1 and 65535")
	}
	if o.EnableTracing && strings.TrimSpace(o.OTLPEndpoint) == "" {
		return fmt.Errorf("observability.otlp_endpoint must be set when observability.enable_tracing=true")
	}
	return nil
}
