/*
Package config loads server configuration.

PURPOSE:
  One place for every tunable of the server: where it listens, where it
  stores runs, how loud it logs and the engine settings (mass balance
  tolerance, k-factor bands, output rounding).

SOURCES (later wins):
  1. Defaults
  2. Optional YAML file
  3. Environment: PORT, DB_PATH, LOG_LEVEL, PROFILES_PATH
  4. Command-line flags (applied by cmd/server)

YAML LAYOUT:
  port: "8080"
  db_path: ./joint-cost.db
  log_level: info
  profiles_path: ./profiles.yaml
  engine:
    mass_balance_tolerance_pct: "0.005"
    scenario_tolerance_kg: "0"
    rounding_places: 4
    k_factor:
      profitable_below: "1.0"
      stressed_from: "1.0"

Engine numbers are strings so they parse straight into decimals.
*/
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/warp/joint-cost-engine/costing"
)

const (
	defaultPort           = "8080"
	defaultDBPath         = "./joint-cost.db"
	defaultLogLevel       = "info"
	defaultRoundingPlaces = 4
)

// Config is the full server configuration.
type Config struct {
	Port         string `yaml:"port"`
	DBPath       string `yaml:"db_path"`
	LogLevel     string `yaml:"log_level"`
	ProfilesPath string `yaml:"profiles_path"`
	Engine       Engine `yaml:"engine"`
}

// Engine holds the costing tunables.
type Engine struct {
	MassBalanceTolerancePct string  `yaml:"mass_balance_tolerance_pct"`
	ScenarioToleranceKg     string  `yaml:"scenario_tolerance_kg"`
	RoundingPlaces          int32   `yaml:"rounding_places"`
	KFactor                 KFactor `yaml:"k_factor"`
}

// KFactor holds the band thresholds.
type KFactor struct {
	ProfitableBelow string `yaml:"profitable_below"`
	StressedFrom    string `yaml:"stressed_from"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Port:     defaultPort,
		DBPath:   defaultDBPath,
		LogLevel: defaultLogLevel,
		Engine: Engine{
			MassBalanceTolerancePct: "0.005",
			ScenarioToleranceKg:     "0",
			RoundingPlaces:          defaultRoundingPlaces,
			KFactor: KFactor{
				ProfitableBelow: "1.0",
				StressedFrom:    "1.0",
			},
		},
	}
}

// Load reads the YAML file at path on top of the defaults, then applies the
// environment. An empty path or a missing file leaves the defaults in place.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("unmarshal %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)

	if _, err := cfg.Settings(); err != nil {
		return Config{}, err
	}
	if cfg.Engine.RoundingPlaces < 0 {
		return Config{}, fmt.Errorf("engine.rounding_places must be >= 0, got %d", cfg.Engine.RoundingPlaces)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("PROFILES_PATH"); v != "" {
		cfg.ProfilesPath = v
	}
}

// Settings converts the engine section into validated costing settings.
func (c Config) Settings() (costing.Settings, error) {
	tol, err := parseDecimal("engine.mass_balance_tolerance_pct", c.Engine.MassBalanceTolerancePct)
	if err != nil {
		return costing.Settings{}, err
	}
	scenarioTol, err := parseDecimal("engine.scenario_tolerance_kg", c.Engine.ScenarioToleranceKg)
	if err != nil {
		return costing.Settings{}, err
	}
	profitable, err := parseDecimal("engine.k_factor.profitable_below", c.Engine.KFactor.ProfitableBelow)
	if err != nil {
		return costing.Settings{}, err
	}
	stressed, err := parseDecimal("engine.k_factor.stressed_from", c.Engine.KFactor.StressedFrom)
	if err != nil {
		return costing.Settings{}, err
	}

	s := costing.Settings{
		MassBalanceTolerancePct: tol,
		ScenarioToleranceKg:     scenarioTol,
		KFactor: costing.KFactorThresholds{
			ProfitableBelow: profitable,
			StressedFrom:    stressed,
		},
	}
	if err := s.Validate(); err != nil {
		return costing.Settings{}, fmt.Errorf("engine: %w", err)
	}
	return s, nil
}

// parseDecimal treats an empty value as zero.
func parseDecimal(field, v string) (decimal.Decimal, error) {
	if v == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %q is not a decimal", field, v)
	}
	return d, nil
}
