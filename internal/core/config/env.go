package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Toolchain contract variables honoured regardless of the SWIFTSLICE_ prefix.
const (
	EnvCompilerArgs      = "SWIFT_COMPILER_ARGS"
	EnvSDKArgs           = "SWIFT_SDK_ARGS"
	EnvCompilerExtraArgs = "SWIFT_COMPILER_EXTRA_ARGS"
	EnvInContainer       = "SWIFTSLICE_IN_CONTAINER"
)

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Pattern: SWIFTSLICE_[SECTION]_[KEY] (e.g., SWIFTSLICE_SLICE_WORKERS).
func ApplyEnvOverrides(cfg *Config) {
	// Toolchain
	setEnvString(&cfg.Toolchain.SwiftBin, "SWIFTSLICE_TOOLCHAIN_SWIFT_BIN")
	setEnvString(&cfg.Toolchain.SourceKittenBin, "SWIFTSLICE_TOOLCHAIN_SOURCEKITTEN_BIN")
	setEnvDuration(&cfg.Toolchain.Timeout, "SWIFTSLICE_TOOLCHAIN_TIMEOUT")
	setEnvDuration(&cfg.Toolchain.BuildTimeout, "SWIFTSLICE_TOOLCHAIN_BUILD_TIMEOUT")
	setEnvFloat64(&cfg.Toolchain.RateLimit, "SWIFTSLICE_TOOLCHAIN_RATE_LIMIT")
	setEnvInt(&cfg.Toolchain.Burst, "SWIFTSLICE_TOOLCHAIN_BURST")
	setEnvString(&cfg.Toolchain.CompilerArgs, EnvCompilerArgs)
	setEnvString(&cfg.Toolchain.SDKArgs, EnvSDKArgs)
	setEnvString(&cfg.Toolchain.ExtraArgs, EnvCompilerExtraArgs)
	setEnvBool(&cfg.Toolchain.InContainer, EnvInContainer)

	// Scan
	setEnvBool(&cfg.Scan.MultiProject, "SWIFTSLICE_SCAN_MULTI_PROJECT")

	// Slice
	setEnvInt(&cfg.Slice.Workers, "SWIFTSLICE_SLICE_WORKERS")
	setEnvString(&cfg.Slice.BuildDir, "SWIFTSLICE_SLICE_BUILD_DIR")
	setEnvInt(&cfg.Slice.ModuleCacheSize, "SWIFTSLICE_SLICE_MODULE_CACHE_SIZE")

	// Output
	setEnvString(&cfg.Output.Dir, "SWIFTSLICE_OUTPUT_DIR")

	// Database
	setEnvBool(&cfg.DB.Enabled, "SWIFTSLICE_DB_ENABLED")
	setEnvString(&cfg.DB.Path, "SWIFTSLICE_DB_PATH")
	setEnvDuration(&cfg.DB.BusyTimeout, "SWIFTSLICE_DB_BUSY_TIMEOUT")
	setEnvBool(&cfg.DB.StorePayload, "SWIFTSLICE_DB_STORE_PAYLOAD")

	// Observability
	setEnvBool(&cfg.Observability.Enabled, "SWIFTSLICE_OBSERVABILITY_ENABLED")
	setEnvInt(&cfg.Observability.Port, "SWIFTSLICE_OBSERVABILITY_PORT")
	setEnvString(&cfg.Observability.OTLPEndpoint, "SWIFTSLICE_OBSERVABILITY_OTLP_ENDPOINT")
	setEnvBool(&cfg.Observability.EnableTracing, "SWIFTSLICE_OBSERVABILITY_ENABLE_TRACING")

	// Watch
	setEnvDuration(&cfg.Watch.Debounce, "SWIFTSLICE_WATCH_DEBOUNCE")
}

func setEnvString(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		log.Printf("Applying env override: %s=%s", key, val)
		*target = val
	}
}

func setEnvInt(target *int, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			log.Printf("Applying env override: %s=%s", key, val)
			*target = i
		}
	}
}

func setEnvBool(target *bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(strings.ToLower(val))
		if err == nil {
			log.Printf("Applying env override: %s=%s", key, val)
			*target = b
		}
	}
}

func setEnvFloat64(target *float64, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			log.Printf("Applying env override: %s=%s", key, val)
			*target = f
		}
	}
}

func setEnvDuration(target *time.Duration, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			log.Printf("Applying env override: %s=%s", key, val)
			*target = d
		}
	}
}
