package main

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/BiekeSurfOrg/palm-BLE-GATT-scanner/palmki"
)

// Duration parses "5s" style strings from YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return errors.Wrapf(err, "invalid duration %q", s)
	}
	*d = Duration(v)
	return nil
}

type Config struct {
	Listen         string   `yaml:"listen"`
	RequestTimeout Duration `yaml:"request_timeout"`

	Marker             string `yaml:"marker"`
	ServiceUUID        string `yaml:"service_uuid"`
	CharacteristicUUID string `yaml:"characteristic_uuid"`

	ScanWindow     Duration `yaml:"scan_window"`
	ConnectTimeout Duration `yaml:"connect_timeout"`
	StreamBudget   Duration `yaml:"stream_budget"`
	ProbeBudget    Duration `yaml:"probe_budget"`
	ProbeStep      Duration `yaml:"probe_step"`
	QueueDepth     int      `yaml:"queue_depth"`

	AvailabilityProbe *bool `yaml:"availability_probe"`
	EventDrivenScan   *bool `yaml:"event_driven_scan"`

	Level string `yaml:"level"`
}

func defaultConfig() Config {
	return Config{
		Listen:         ":5001",
		RequestTimeout: Duration(60 * time.Second),
		Level:          "info",
	}
}

// loadConfig reads the YAML file when path is non-empty; missing keys
// keep their defaults.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "read config")
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, errors.Wrap(err, "parse config")
	}
	return cfg, nil
}

// workflow maps the file config onto the workflow's budgets; zero values
// fall back to the palmki defaults.
func (c Config) workflow() palmki.Config {
	return palmki.Config{
		Marker:             c.Marker,
		ServiceUUID:        c.ServiceUUID,
		CharacteristicUUID: c.CharacteristicUUID,
		ScanWindow:         time.Duration(c.ScanWindow),
		ConnectTimeout:     time.Duration(c.ConnectTimeout),
		StreamBudget:       time.Duration(c.StreamBudget),
		ProbeBudget:        time.Duration(c.ProbeBudget),
		ProbeStep:          time.Duration(c.ProbeStep),
		QueueDepth:         c.QueueDepth,
	}
}
