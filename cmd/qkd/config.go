package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/alan-christopher/bb84sim/bb84/photon"
	log "github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"
	"gopkg.in/yaml.v2"
)

// Config holds the settings shared by every qkd command. Each field may be
// set from the YAML file named by --config; flags given on the command line
// take precedence.
type Config struct {
	LogLevel  string        `yaml:"log_level"`
	LogFormat string        `yaml:"log_format"`
	Keystore  string        `yaml:"keystore"`
	Seed      int64         `yaml:"seed"`
	MaxQubits int           `yaml:"max_qubits"`
	Channel   photon.Config `yaml:",inline"`
}

func defaultConfig() Config {
	return Config{
		LogLevel:  "info",
		LogFormat: "text",
		Keystore:  "qkd.db",
		Channel:   photon.Config{Kind: photon.KindCircuit},
	}
}

func (c *Config) registerFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Logging verbosity: debug, info, warn or error.")
	fs.StringVar(&c.LogFormat, "log-format", c.LogFormat, "Logging format: text or json.")
	fs.StringVar(&c.Keystore, "keystore", c.Keystore, "Path of the database holding negotiated keys.")
	fs.Int64Var(&c.Seed, "seed", c.Seed, "Seed for all randomness. Zero seeds from the clock.")
	fs.IntVar(&c.MaxQubits, "max-qubits", c.MaxQubits, "Largest number of qubits exchanged per key. Zero uses the library default.")
	fs.StringVar(&c.Channel.Kind, "oracle", c.Channel.Kind, "Quantum channel simulation: ideal or circuit.")
	fs.Float64Var(&c.Channel.QBER, "qber", c.Channel.QBER, "Probability of a bit flip on the quantum channel.")
	fs.Float64Var(&c.Channel.Eavesdrop, "eavesdrop", c.Channel.Eavesdrop, "Probability that an eavesdropper intercepts each qubit.")
}

// parseYAMLConfig overlays the settings in path onto config.
func parseYAMLConfig(config *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.UnmarshalStrict(data, config)
}

// loadConfig applies the file named by configPath, if any, then reapplies the
// flags the user set explicitly so that they win over the file.
func loadConfig(fs *flag.FlagSet, config *Config, configPath string) error {
	if configPath == "" {
		return nil
	}
	if err := parseYAMLConfig(config, configPath); err != nil {
		return fmt.Errorf("loading config %s: %w", configPath, err)
	}
	var err error
	fs.Visit(func(f *flag.Flag) {
		if err == nil {
			err = fs.Set(f.Name, f.Value.String())
		}
	})
	return err
}

func setupLogging(c Config) error {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return err
	}
	log.SetLevel(level)
	switch strings.ToLower(c.LogFormat) {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "text", "":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	log.SetOutput(os.Stderr)
	return nil
}
