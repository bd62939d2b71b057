package config

import (
	"fmt"
	"os"
	"reflect"
	"time"

	"monte/internal/market"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config is the root configuration for one replay run.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Simulation SimulationConfig `mapstructure:"simulation"`
	Source     SourceConfig     `mapstructure:"source"`
	Cache      CacheConfig      `mapstructure:"cache"`
	HTTP       HTTPConfig       `mapstructure:"http"`
}

type AppConfig struct {
	LogLevel string `mapstructure:"log_level"`
	LogPath  string `mapstructure:"log_path"`
	// ReportPath, when set, receives an HTML kline report at the end of the run.
	ReportPath string `mapstructure:"report_path"`
}

// SimulationConfig carries the settings the core consumes. Range checks live
// in validate(); anything that passes here is trusted downstream.
type SimulationConfig struct {
	StartDate       string            `mapstructure:"start_date"`
	EndDate         string            `mapstructure:"end_date"`
	Resolution      market.Resolution `mapstructure:"resolution"`
	Symbols         []string          `mapstructure:"symbols"`
	ReferenceSymbol string            `mapstructure:"reference_symbol"`
	MaxRows         int               `mapstructure:"max_rows"`
	StartBufferDays int               `mapstructure:"start_buffer_days"`
	DataBufferDays  int               `mapstructure:"data_buffer_days"`
	TimeZone        string            `mapstructure:"time_zone"`
	DerivedColumns  []string          `mapstructure:"derived_columns"`
	Calendar        string            `mapstructure:"calendar"` // equity | continuous
	Holidays        []string          `mapstructure:"holidays"`
}

type SourceConfig struct {
	Kind            string `mapstructure:"kind"` // alpaca | binance
	BaseURL         string `mapstructure:"base_url"`
	KeyID           string `mapstructure:"key_id"`
	SecretKey       string `mapstructure:"secret_key"`
	RateLimitPerMin int    `mapstructure:"rate_limit_per_min"`
}

type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

type HTTPConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// Load reads and validates a YAML config file.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file failed (%s): %w", path, err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(resolutionHook)
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	cfg.applyDefaults()
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// resolutionHook decodes "15Min"-style strings into market.Resolution.
func resolutionHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != reflect.TypeOf(market.Resolution{}) {
		return data, nil
	}
	return market.ParseResolution(data.(string))
}

func (c *Config) applyDefaults() {
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Simulation.ReferenceSymbol == "" {
		c.Simulation.ReferenceSymbol = "SPY"
	}
	if c.Simulation.MaxRows == 0 {
		c.Simulation.MaxRows = 1000
	}
	if c.Simulation.StartBufferDays == 0 {
		c.Simulation.StartBufferDays = 5
	}
	if c.Simulation.DataBufferDays == 0 {
		c.Simulation.DataBufferDays = 30
	}
	if c.Simulation.TimeZone == "" {
		c.Simulation.TimeZone = "America/New_York"
	}
	if c.Simulation.Calendar == "" {
		c.Simulation.Calendar = "equity"
	}
	if c.Simulation.Resolution == (market.Resolution{}) {
		c.Simulation.Resolution = market.Resolution{Amount: 1, Unit: market.UnitDay}
	}
	if c.Source.Kind == "" {
		c.Source.Kind = "alpaca"
	}
	// Credentials may live in the environment instead of the config file.
	if c.Source.KeyID == "" {
		c.Source.KeyID = os.Getenv("APCA_API_KEY_ID")
	}
	if c.Source.SecretKey == "" {
		c.Source.SecretKey = os.Getenv("APCA_API_SECRET_KEY")
	}
	if c.Source.RateLimitPerMin == 0 {
		c.Source.RateLimitPerMin = 200
	}
	if c.Cache.Dir == "" {
		c.Cache.Dir = "data/bars"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":9980"
	}
}

func validate(c *Config) error {
	sim := &c.Simulation
	if err := sim.Resolution.Validate(); err != nil {
		return err
	}
	start, err := sim.Start()
	if err != nil {
		return err
	}
	end, err := sim.End()
	if err != nil {
		return err
	}
	if !start.Before(end) {
		return fmt.Errorf("start_date %s must be before end_date %s", sim.StartDate, sim.EndDate)
	}
	if sim.MaxRows <= 0 {
		return fmt.Errorf("max_rows must be > 0, got %d", sim.MaxRows)
	}
	if sim.StartBufferDays <= 0 {
		return fmt.Errorf("start_buffer_days must be > 0, got %d", sim.StartBufferDays)
	}
	if sim.DataBufferDays < 7 {
		return fmt.Errorf("data_buffer_days must be >= 7, got %d", sim.DataBufferDays)
	}
	if len(sim.Symbols) == 0 {
		return fmt.Errorf("at least one symbol is required")
	}
	if _, err := sim.Location(); err != nil {
		return err
	}
	switch sim.Calendar {
	case "equity", "continuous":
	default:
		return fmt.Errorf("unknown calendar %q (want equity or continuous)", sim.Calendar)
	}
	switch c.Source.Kind {
	case "alpaca", "binance":
	default:
		return fmt.Errorf("unknown source kind %q (want alpaca or binance)", c.Source.Kind)
	}
	return nil
}

// Location resolves the configured time zone.
func (s *SimulationConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(s.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid time_zone %q: %w", s.TimeZone, err)
	}
	return loc, nil
}

// Start parses start_date in the configured zone.
func (s *SimulationConfig) Start() (time.Time, error) {
	return s.parseDate(s.StartDate, "start_date")
}

// End parses end_date in the configured zone.
func (s *SimulationConfig) End() (time.Time, error) {
	return s.parseDate(s.EndDate, "end_date")
}

func (s *SimulationConfig) parseDate(value, field string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("%s is required", field)
	}
	loc, err := s.Location()
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.ParseInLocation("2006-01-02", value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s %q: %w", field, value, err)
	}
	return t, nil
}
