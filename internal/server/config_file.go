package server

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk subset of Config: the parts an operator
// reasonably wants to set without recompiling. StartingState and
// Delegates are Go closures and have no file representation; they stay
// the embedding program's job to set directly on the Config it builds
// from LoadFileConfig's result.
type FileConfig struct {
	Port                 uint16 `yaml:"port"`
	ByteServerAddr       string `yaml:"byte_server_addr"`
	JSONDumpPath         string `yaml:"json_dump_path"`
	QueueCapacity        int    `yaml:"queue_capacity"`
	InboundQueueCapacity int    `yaml:"inbound_queue_capacity"`
	ShutdownDrainTimeout string `yaml:"shutdown_drain_timeout"`
}

// LoadFileConfig reads and parses a YAML config file at path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return fc, fmt.Errorf("server: read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("server: parse config %s: %w", path, err)
	}
	return fc, nil
}

// ApplyTo overlays fc's set fields onto cfg, leaving cfg's existing
// value wherever fc's is the zero value.
func (fc FileConfig) ApplyTo(cfg *Config) error {
	if fc.Port != 0 {
		cfg.Port = fc.Port
	}
	if fc.ByteServerAddr != "" {
		cfg.ByteServerAddr = fc.ByteServerAddr
	}
	if fc.JSONDumpPath != "" {
		cfg.JSONDumpPath = fc.JSONDumpPath
	}
	if fc.QueueCapacity != 0 {
		cfg.QueueCapacity = fc.QueueCapacity
	}
	if fc.InboundQueueCapacity != 0 {
		cfg.InboundQueueCapacity = fc.InboundQueueCapacity
	}
	if fc.ShutdownDrainTimeout != "" {
		d, err := time.ParseDuration(fc.ShutdownDrainTimeout)
		if err != nil {
			return fmt.Errorf("server: parse shutdown_drain_timeout %q: %w", fc.ShutdownDrainTimeout, err)
		}
		cfg.ShutdownDrainTimeout = d
	}
	return nil
}
