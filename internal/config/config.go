// Package config loads the coordinator's TOML configuration file (§6),
// applying defaults for any field the file omits — the same
// defaulted-constructor-then-override shape as original_source's
// `RuntimeConfig::new()` / `from_toml`, adapted onto `BurntSushi/toml`
// since the format itself is pinned by the spec (not the teacher's own
// `yaml.v3` loader).
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/zkstage/coordinator/pkg/types"
)

// WorkerEndpoint is one worker process entry in the config file.
type WorkerEndpoint struct {
	Address  string `toml:"address"`
	Kind     string `toml:"kind"`     // "general" or "snark"
	Prover   string `toml:"prover"`   // "v1" or "v2"
	ProveCap int    `toml:"prove_cap,omitempty"`
}

// Config is the coordinator's full runtime configuration, as described by
// §6: listen address, metrics address, Badger directory, worker endpoints,
// fileserver URL, proving-key paths by prover version, and optional TLS
// material paths.
type Config struct {
	ListenAddr  string `toml:"listen_addr"`
	MetricsAddr string `toml:"metrics_addr"`

	DataDir string `toml:"data_dir"`
	BaseDir string `toml:"base_dir"`

	Workers []WorkerEndpoint `toml:"workers"`

	FileserverURL string `toml:"fileserver_url,omitempty"`

	ProvingKeyPathV1 string `toml:"proving_key_path_v1,omitempty"`
	ProvingKeyPathV2 string `toml:"proving_key_path_v2,omitempty"`

	CACertPath string `toml:"ca_cert_path,omitempty"`
	CertPath   string `toml:"cert_path,omitempty"`
	KeyPath    string `toml:"key_path,omitempty"`

	TaskTimeout    Duration `toml:"task_timeout,omitempty"`
	WorkerProbeTO  Duration `toml:"worker_probe_timeout,omitempty"`
	WorkerStaleAge Duration `toml:"worker_stale_after,omitempty"`
}

// Duration wraps time.Duration so it can be decoded from a TOML string
// like "5s" instead of a raw nanosecond integer.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("config: parse duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

// Default returns a Config with the same fallback values
// original_source's RuntimeConfig::new() hardcodes, translated to this
// engine's field names.
func Default() Config {
	return Config{
		ListenAddr:  "0.0.0.0:50000",
		MetricsAddr: "0.0.0.0:50010",
		DataDir:     "/tmp/zkstage/db",
		BaseDir:     "/tmp/zkstage",
		Workers:     []WorkerEndpoint{{Address: "0.0.0.0:50051", Kind: "general", Prover: "v1"}},
	}
}

// Load reads and decodes a TOML file at path over top of Default(), so any
// field the file omits keeps its default value.
func Load(path string) (Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if len(cfg.Workers) == 0 {
		return Config{}, fmt.Errorf("config: at least one worker endpoint is required")
	}
	return cfg, nil
}

// ProvingKeyPath returns the configured proving-key path for a prover
// version, mirroring RuntimeConfig::get_proving_key_path's version switch.
func (c Config) ProvingKeyPath(kind types.ProverKind) (string, error) {
	switch kind {
	case types.ProverV1:
		return c.ProvingKeyPathV1, nil
	case types.ProverV2:
		return c.ProvingKeyPathV2, nil
	default:
		return "", fmt.Errorf("config: unknown prover kind %q", kind)
	}
}
