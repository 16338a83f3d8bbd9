package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// DefaultFileName is looked up in the working directory when no -config flag
// is given.
const DefaultFileName = "swiftslice.toml"

type Config struct {
	Version       int           `toml:"version"`
	Toolchain     Toolchain     `toml:"toolchain"`
	Scan          Scan          `toml:"scan"`
	Slice         Slice         `toml:"slice"`
	Output        Output        `toml:"output"`
	DB            Database      `toml:"db"`
	Observability Observability `toml:"observability"`
	Watch         Watch         `toml:"watch"`
}

// Toolchain holds the external binaries and the compiler-argument overrides.
type Toolchain struct {
	SwiftBin        string        `toml:"swift_bin"`
	SourceKittenBin string        `toml:"sourcekitten_bin"`
	Timeout         time.Duration `toml:"timeout"`
	BuildTimeout    time.Duration `toml:"build_timeout"`
	// CompilerArgs skips the clean + verbose build when set.
	CompilerArgs string `toml:"compiler_args"`
	// SDKArgs is appended as -sdk when CompilerArgs carries none.
	SDKArgs      string `toml:"sdk_args"`
	// ExtraArgs are prepended to every extracted argument list.
	ExtraArgs   string  `toml:"extra_args"`
	InContainer bool    `toml:"in_container"`
	RateLimit   float64 `toml:"rate_limit"`
	Burst       int     `toml:"burst"`
}

type Scan struct {
	MultiProject bool     `toml:"multi_project"`
	ExcludeDirs  []string `toml:"exclude_dirs"`
	ExcludeFiles []string `toml:"exclude_files"`
	UseGitignore *bool    `toml:"use_gitignore"`
}

type Slice struct {
	Workers         int    `toml:"workers"`
	BuildDir        string `toml:"build_dir"`
	ModuleCacheSize int    `toml:"module_cache_size"`
}

type Output struct {
	Dir    string `toml:"dir"`
	Suffix string `toml:"suffix"`
}

type Database struct {
	Enabled      bool          `toml:"enabled"`
	Path         string        `toml:"path"`
	BusyTimeout  time.Duration `toml:"busy_timeout"`
	StorePayload bool          `toml:"store_payload"`
}

type Observability struct {
	Enabled       bool   `toml:"enabled"`
	Port          int    `toml:"port"`
	OTLPEndpoint  string `toml:"otlp_endpoint"`
	OTLPInsecure  bool   `toml:"otlp_insecure"`
	EnableTracing bool   `toml:"enable_tracing"`
	ServiceName   string `toml:"service_name"`
}

type Watch struct {
	Debounce time.Duration `toml:"debounce"`
}

// DefaultConfig is what an empty swiftslice.toml resolves to.
func DefaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(string(data))
}

// Parse decodes, defaults and validates a TOML document.
func Parse(data string) (*Config, error) {
	var cfg Config
	md, err := toml.Decode(data, &cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}

	applyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads path when it exists and falls back to DefaultConfig.
// An explicitly requested path must exist.
func LoadOrDefault(path string, explicit bool) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && !explicit {
			return DefaultConfig(), nil
		}
		return nil, err
	}
	return Load(path)
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}

	if strings.TrimSpace(cfg.Toolchain.SwiftBin) == "" {
		cfg.Toolchain.SwiftBin = "swift"
	}
	if strings.TrimSpace(cfg.Toolchain.SourceKittenBin) == "" {
		cfg.Toolchain.SourceKittenBin = "sourcekitten"
	}
	if cfg.Toolchain.Timeout <= 0 {
		cfg.Toolchain.Timeout = 2 * time.Minute
	}
	if cfg.Toolchain.BuildTimeout <= 0 {
		cfg.Toolchain.BuildTimeout = 30 * time.Minute
	}
	if cfg.Toolchain.Burst <= 0 {
		cfg.Toolchain.Burst = 1
	}

	if cfg.Scan.ExcludeDirs == nil {
		cfg.Scan.ExcludeDirs = []string{".build", ".git", ".swiftpm", "Pods", "Carthage", "DerivedData", "node_modules"}
	}

	if cfg.Slice.Workers <= 0 {
		cfg.Slice.Workers = 4
	}
	if strings.TrimSpace(cfg.Slice.BuildDir) == "" {
		cfg.Slice.BuildDir = ".build"
	}
	if cfg.Slice.ModuleCacheSize <= 0 {
		cfg.Slice.ModuleCacheSize = 256
	}

	if strings.TrimSpace(cfg.Output.Dir) == "" {
		cfg.Output.Dir = "."
	}
	if strings.TrimSpace(cfg.Output.Suffix) == "" {
		cfg.Output.Suffix = ".slices.json"
	}

	if strings.TrimSpace(cfg.DB.Path) == "" {
		cfg.DB.Path = "swiftslice.db"
	}
	if cfg.DB.BusyTimeout <= 0 {
		cfg.DB.BusyTimeout = 2 * time.Second
	}

	if cfg.Observability.Port == 0 {
		cfg.Observability.Port = 9464
	}
	if strings.TrimSpace(cfg.Observability.ServiceName) == "" {
		cfg.Observability.ServiceName = "swiftslice"
	}

	if cfg.Watch.Debounce <= 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
}

// GitignoreEnabled defaults to true when use_gitignore is unset.
func (s Scan) GitignoreEnabled() bool {
	if s.UseGitignore == nil {
		return true
	}
	return *s.UseGitignore
}

// HasCompilerOverride reports whether the verbose build can be skipped.
func (t Toolchain) HasCompilerOverride() bool {
	return strings.TrimSpace(t.CompilerArgs) != ""
}

// ObservabilityAddr is the listen address of the metrics server.
func (o Observability) Addr() string {
	return fmt.Sprintf(":%d", o.Port)
}
