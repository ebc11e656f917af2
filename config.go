package main

import (
	"os"
	"path/filepath"
	"time"

	"github.com/btcsuite/btcutil"
	"gopkg.in/yaml.v2"

	"github.com/douglaz/feeaugur/collect/corerpc"
	"github.com/douglaz/feeaugur/engine"
)

const (
	defaultConfigFileName = "config.yml"
	configFileEnv         = "FEEAUGUR_CONFIG"
	dataDirEnv            = "FEEAUGUR_DATADIR"
)

var (
	defaultConfig = config{
		BitcoinRPC: corerpc.Config{
			Host:    "localhost",
			Port:    "8332",
			Timeout: 30,
		},
		HTTPServer: HTTPServerConfig{
			Host: "localhost",
			Port: "8350",
		},
		Collect: CollectConfig{
			PollPeriod:      10 * time.Second,
			RetentionWindow: 24 * time.Hour,
		},
		Engine: EngineConfig{
			Probabilities:   []float64{0.05, 0.20, 0.50, 0.80, 0.95},
			BlockTargets:    []float64{3, 6, 9, 12, 18, 24, 36, 48, 72, 96, 144},
			ShortTermWindow: 30 * time.Minute,
			LongTermWindow:  24 * time.Hour,
		},
		DataDir: btcutil.AppDataDir("feeaugur", false),
	}
	defaultConfigFile  = filepath.Join(defaultConfig.DataDir, defaultConfigFileName)
	defaultLogFileName = "feeaugur.log"
)

// config is the top-level on-disk/daemon configuration, loaded from YAML
// with environment-variable and CLI-flag overrides for the file location.
type config struct {
	BitcoinRPC corerpc.Config   `yaml:"bitcoinrpc" json:"bitcoinrpc"`
	HTTPServer HTTPServerConfig `yaml:"httpserver" json:"httpserver"`
	Collect    CollectConfig    `yaml:"collect" json:"collect"`
	Engine     EngineConfig     `yaml:"engine" json:"engine"`
	DataDir    string           `yaml:"datadir" json:"datadir"`
	LogFile    string           `yaml:"logfile" json:"logfile"`
}

// HTTPServerConfig controls the REST API's listen address.
type HTTPServerConfig struct {
	Host string `yaml:"host" json:"host"`
	Port string `yaml:"port" json:"port"`
}

// CollectConfig controls mempool polling and in-memory retention.
type CollectConfig struct {
	PollPeriod      time.Duration `yaml:"pollperiod" json:"pollperiod"`
	RetentionWindow time.Duration `yaml:"retentionwindow" json:"retentionwindow"`
}

// EngineConfig mirrors engine.Config in a YAML-friendly shape.
type EngineConfig struct {
	Probabilities   []float64     `yaml:"probabilities" json:"probabilities"`
	BlockTargets    []float64     `yaml:"blocktargets" json:"blocktargets"`
	ShortTermWindow time.Duration `yaml:"shorttermwindow" json:"shorttermwindow"`
	LongTermWindow  time.Duration `yaml:"longtermwindow" json:"longtermwindow"`
}

func (c EngineConfig) toEngineConfig() engine.Config {
	return engine.Config{
		Probabilities:   c.Probabilities,
		BlockTargets:    c.BlockTargets,
		ShortTermWindow: c.ShortTermWindow,
		LongTermWindow:  c.LongTermWindow,
	}
}

// loadConfig loads the config. The input arguments specify the path to the
// config file / data directory.
// They can also be specified through env variables (configFileEnv / dataDirEnv),
// with lower precedence.
// If not specified, they are set to default values.
func loadConfig(configFile, dataDir string) (config, error) {
	cfg := defaultConfig

	if configFile == "" {
		configFile = os.Getenv(configFileEnv)
	}
	if dataDir == "" {
		dataDir = os.Getenv(dataDirEnv)
	}

	if configFile != "" {
		// Config file was specified explicitly, so return an error if it
		// couldn't be read.
		if c, err := os.ReadFile(configFile); err != nil {
			return cfg, err
		} else if err := yaml.Unmarshal(c, &cfg); err != nil {
			return cfg, err
		}
	} else {
		// Check the default config file location. No error if it couldn't be
		// read, but error if the yaml could not be unmarshaled.
		if dataDir == "" {
			configFile = defaultConfigFile
		} else {
			configFile = filepath.Join(dataDir, defaultConfigFileName)
		}
		if c, err := os.ReadFile(configFile); err == nil {
			if err := yaml.Unmarshal(c, &cfg); err != nil {
				return cfg, err
			}
		}
	}

	// dataDir specified by env or input argument takes precedence
	if dataDir != "" {
		cfg.DataDir = dataDir
	}

	if cfg.LogFile == "" {
		cfg.LogFile = filepath.Join(cfg.DataDir, defaultLogFileName)
	}

	// Create the datadir if not exists
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return cfg, err
	}

	return cfg, nil
}
