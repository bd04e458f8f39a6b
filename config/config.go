// Package config loads the YAML or JSON file that drives a backtest: where
// the bars come from, the grid parameters, and where results go.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/gridtrader/backtest"
	"github.com/rustyeddy/gridtrader/market"
)

const (
	SourceCSV       = "csv"
	SourceOANDA     = "oanda"
	SourceDukascopy = "dukascopy"

	JournalNone   = "none"
	JournalCSV    = "csv"
	JournalSQLite = "sqlite"
)

// Config represents the complete backtest configuration
type Config struct {
	Symbol   string          `json:"symbol" yaml:"symbol"`
	Data     DataConfig      `json:"data" yaml:"data"`
	Backtest backtest.Params `json:"backtest" yaml:"backtest"`
	Sweep    SweepConfig     `json:"sweep" yaml:"sweep"`
	Journal  JournalConfig   `json:"journal" yaml:"journal"`
	Log      LogConfig       `json:"log" yaml:"log"`
	Server   ServerConfig    `json:"server" yaml:"server"`
}

// DataConfig selects the bar source and window.
type DataConfig struct {
	Source   string `json:"source" yaml:"source" default:"csv"` // "csv", "oanda" or "dukascopy"
	Path     string `json:"path,omitempty" yaml:"path,omitempty"`
	Interval string `json:"interval" yaml:"interval" default:"1h"`
	Start    string `json:"start,omitempty" yaml:"start,omitempty"`
	End      string `json:"end,omitempty" yaml:"end,omitempty"`

	OANDA     OANDAConfig     `json:"oanda" yaml:"oanda"`
	Dukascopy DukascopyConfig `json:"dukascopy" yaml:"dukascopy"`
}

// OANDAConfig holds the candles API settings. The token is read from the
// environment variable named by TokenEnv, never from the file.
type OANDAConfig struct {
	Env      string `json:"env" yaml:"env" default:"practice"` // "practice" or "live"
	TokenEnv string `json:"token_env" yaml:"token_env" default:"OANDA_TOKEN"`
}

// DukascopyConfig controls the tick archive download. An empty CacheDir
// disables the on-disk cache of hourly files.
type DukascopyConfig struct {
	CacheDir string `json:"cache_dir,omitempty" yaml:"cache_dir,omitempty"`
	Workers  int    `json:"workers,omitempty" yaml:"workers,omitempty"`
}

// SweepConfig lists the parameter axes for the sweep command.
type SweepConfig struct {
	Workers int          `json:"workers" yaml:"workers"`
	Rank    string       `json:"rank" yaml:"rank" default:"sharpe_ratio"`
	Axes    []AxisConfig `json:"axes,omitempty" yaml:"axes,omitempty"`
}

type AxisConfig struct {
	Name   string    `json:"name" yaml:"name"`
	Values []float64 `json:"values" yaml:"values"`
}

// JournalConfig contains journaling parameters
type JournalConfig struct {
	Type        string `json:"type" yaml:"type" default:"none"` // "none", "csv" or "sqlite"
	Dir         string `json:"dir,omitempty" yaml:"dir,omitempty"`
	DBPath      string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	MetricsJSON string `json:"metrics_json,omitempty" yaml:"metrics_json,omitempty"`
	OrgPath     string `json:"org_path,omitempty" yaml:"org_path,omitempty"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level" default:"info"`
	Format string `json:"format" yaml:"format" default:"console"` // "console" or "json"
}

type ServerConfig struct {
	Addr           string   `json:"addr" yaml:"addr" default:":8080"`
	AllowedOrigins []string `json:"allowed_origins,omitempty" yaml:"allowed_origins,omitempty"`
}

// LoadFromFile loads configuration from a file, fills asset and default
// values, and validates it.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Resolve(); err != nil {
		return nil, err
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Resolve fills grid fields left at zero from the symbol's asset defaults,
// then applies the remaining defaults.
func (c *Config) Resolve() error {
	c.ApplyAsset()
	if err := defaults.Set(c); err != nil {
		return fmt.Errorf("apply defaults: %w", err)
	}
	return nil
}

// ApplyAsset copies reference, distance and range from the asset table for
// fields the file left unset. It reports whether the symbol was found.
func (c *Config) ApplyAsset() (market.Asset, bool) {
	a, ok := market.LookupAsset(c.Symbol)
	if !ok {
		return market.Asset{}, false
	}
	p := &c.Backtest
	if p.ReferencePrice == 0 {
		p.ReferencePrice = a.Reference
	}
	if p.GridDistance == 0 {
		p.GridDistance = a.GridDistance
	}
	if p.GridRange == 0 {
		p.GridRange = a.GridRange
	}
	return a, true
}

// SaveToFile saves configuration to a file (YAML for .yaml/.yml, JSON otherwise)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}

	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Data.Source {
	case SourceCSV:
		if c.Data.Path == "" {
			return market.Configf("data.path is required for the csv source")
		}
	case SourceOANDA:
		if c.Symbol == "" {
			return market.Configf("symbol is required for the oanda source")
		}
		if c.Data.OANDA.Env != "practice" && c.Data.OANDA.Env != "live" {
			return market.Configf("data.oanda.env must be 'practice' or 'live'")
		}
	case SourceDukascopy:
		if c.Symbol == "" {
			return market.Configf("symbol is required for the dukascopy source")
		}
		if c.Data.Start == "" {
			return market.Configf("data.start is required for the dukascopy source")
		}
		if c.Data.Dukascopy.Workers < 0 {
			return market.Configf("data.dukascopy.workers must not be negative")
		}
	default:
		return market.Configf("data.source must be 'csv', 'oanda' or 'dukascopy'")
	}
	if _, err := market.ParseInterval(c.Data.Interval); err != nil {
		return err
	}
	start, end, err := c.Window()
	if err != nil {
		return err
	}
	if !start.IsZero() && !end.IsZero() && !end.After(start) {
		return market.Configf("data.end must be after data.start")
	}

	if err := c.Backtest.Validate(); err != nil {
		return err
	}
	for _, ax := range c.Sweep.Axes {
		p := c.Backtest
		if err := p.Set(ax.Name, 0); err != nil {
			return err
		}
	}
	if c.Sweep.Workers < 0 {
		return market.Configf("sweep.workers must not be negative")
	}

	switch c.Journal.Type {
	case JournalNone:
	case JournalCSV:
		if c.Journal.Dir == "" {
			return market.Configf("journal dir required for CSV type")
		}
	case JournalSQLite:
		if c.Journal.DBPath == "" {
			return market.Configf("journal db_path required for SQLite type")
		}
	default:
		return market.Configf("journal.type must be 'none', 'csv' or 'sqlite'")
	}

	if c.Log.Format != "console" && c.Log.Format != "json" {
		return market.Configf("log.format must be 'console' or 'json'")
	}
	return nil
}

// Window parses data.start and data.end. Empty values are zero times.
func (c *Config) Window() (start, end time.Time, err error) {
	if c.Data.Start != "" {
		if start, err = market.ParseTime(c.Data.Start); err != nil {
			return start, end, market.Configf("data.start: %v", err)
		}
	}
	if c.Data.End != "" {
		if end, err = market.ParseTime(c.Data.End); err != nil {
			return start, end, market.Configf("data.end: %v", err)
		}
	}
	return start, end, nil
}

// Axes converts the sweep section to backtest axes.
func (c *Config) Axes() []backtest.Axis {
	out := make([]backtest.Axis, 0, len(c.Sweep.Axes))
	for _, ax := range c.Sweep.Axes {
		out = append(out, backtest.Axis{Name: ax.Name, Values: ax.Values})
	}
	return out
}

// Default returns a configuration for gold futures read from a CSV file
func Default() *Config {
	cfg := &Config{
		Symbol: "GC=F",
		Data: DataConfig{
			Source: SourceCSV,
			Path:   "./data/GC=F.csv",
		},
		Sweep: SweepConfig{
			Axes: []AxisConfig{
				{Name: "grid_distance", Values: []float64{25, 50, 100}},
				{Name: "max_trades", Values: []float64{3, 5, 10}},
			},
		},
		Journal: JournalConfig{
			Type:   JournalSQLite,
			DBPath: "./gridtrader.db",
		},
	}
	_ = cfg.Resolve()
	return cfg
}
