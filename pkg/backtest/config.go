package backtest

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xhit/go-str2duration/v2"
	"gopkg.in/yaml.v3"

	"github.com/yourusername/pairs-arb-backtest/pkg/coint"
	"github.com/yourusername/pairs-arb-backtest/pkg/errs"
	"github.com/yourusername/pairs-arb-backtest/pkg/strategy/signal"
	"github.com/yourusername/pairs-arb-backtest/pkg/strategy/spread"
)

// DateLayout is the date format used in configuration and exported files
const DateLayout = "2006-01-02"

// Config represents the backtest configuration
type Config struct {
	Data         DataSettings         `yaml:"data"`
	Strategy     StrategySettings     `yaml:"strategy"`
	Simulation   SimulationSettings   `yaml:"simulation"`
	Analysis     AnalysisSettings     `yaml:"analysis"`
	Optimization OptimizationSettings `yaml:"optimization"`
	Output       OutputSettings       `yaml:"output"`
	Publish      PublishSettings      `yaml:"publish"`
	Archive      ArchiveSettings      `yaml:"archive"`
}

// DataSettings contains data source settings
type DataSettings struct {
	Source    string `yaml:"source"` // csv, clickhouse
	SymbolA   string `yaml:"symbol_a"`
	SymbolB   string `yaml:"symbol_b"`
	DataPath  string `yaml:"data_path"`
	StartDate string `yaml:"start_date"`
	EndDate   string `yaml:"end_date"`
	// Lookback such as "156w" or "1095d", used when start_date is empty
	Lookback        string `yaml:"lookback"`
	ClickHouseDSN   string `yaml:"clickhouse_dsn"`
	ClickHouseTable string `yaml:"clickhouse_table"`
}

// StrategySettings contains spread and signal parameters
type StrategySettings struct {
	Spread           string  `yaml:"spread"` // return_differential, price_differential
	HedgeRatio       float64 `yaml:"hedge_ratio"`
	HedgeRatioMethod string  `yaml:"hedge_ratio_method"` // fixed, ols
	ReturnBasis      string  `yaml:"return_basis"`       // pct_change, notional
	Window           int     `yaml:"window"`
	ZEntry           float64 `yaml:"z_entry"`
	ZExit            float64 `yaml:"z_exit"`
	Policy           string  `yaml:"policy"`  // stateful, vectorized
	Missing          string  `yaml:"missing"` // hold, flat
}

// SimulationSettings contains unit portfolio settings
type SimulationSettings struct {
	Enabled     bool    `yaml:"enabled"`
	InitialCash float64 `yaml:"initial_cash"`
	UnitsA      float64 `yaml:"units_a"`
	UnitsB      float64 `yaml:"units_b"`
}

// AnalysisSettings contains performance analysis settings
type AnalysisSettings struct {
	Annualization     int      `yaml:"annualization"`
	RiskFreeRate      *float64 `yaml:"risk_free_rate"`
	AllowZeroRiskFree bool     `yaml:"allow_zero_risk_free"`
	CointMethod       string   `yaml:"coint_method"` // adf, engle_granger
}

// OptimizationSettings contains grid search settings
type OptimizationSettings struct {
	Windows  []int     `yaml:"windows"`
	ZEntries []float64 `yaml:"z_entries"`
	ZExits   []float64 `yaml:"z_exits"`
	Goal     string    `yaml:"goal"` // sharpe, return, calmar
	Workers  int       `yaml:"workers"`
	TopN     int       `yaml:"top_n"`
}

// OutputSettings contains output settings
type OutputSettings struct {
	ResultDir      string `yaml:"result_dir"`
	SaveFrame      bool   `yaml:"save_frame"`
	GenerateReport bool   `yaml:"generate_report"`
	ReportFormat   string `yaml:"report_format"` // markdown, json, both
}

// PublishSettings contains NATS publication settings
type PublishSettings struct {
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
}

// ArchiveSettings contains MySQL archive settings
type ArchiveSettings struct {
	MySQLDSN string `yaml:"mysql_dsn"`
}

// DefaultConfig returns the gold/silver defaults
func DefaultConfig() *Config {
	return &Config{
		Data: DataSettings{
			Source:          "csv",
			SymbolA:         "GC=F",
			SymbolB:         "SI=F",
			DataPath:        "./data",
			Lookback:        "156w",
			ClickHouseTable: "daily_close",
		},
		Strategy: StrategySettings{
			Spread:           string(spread.ReturnDifferential),
			HedgeRatio:       1.0,
			HedgeRatioMethod: string(spread.HedgeFixed),
			ReturnBasis:      string(BasisPctChange),
			Window:           spread.DefaultWindow,
			ZEntry:           2.0,
			ZExit:            0.5,
			Policy:           string(signal.PolicyStateful),
			Missing:          string(signal.MissingHold),
		},
		Simulation: SimulationSettings{
			InitialCash: 10000,
			UnitsA:      1,
			UnitsB:      1,
		},
		Analysis: AnalysisSettings{
			Annualization: DefaultAnnualization,
			CointMethod:   string(coint.MethodADF),
		},
		Optimization: OptimizationSettings{
			Windows:  []int{20, 30, 60},
			ZEntries: []float64{1.5, 2.0, 2.5},
			ZExits:   []float64{0.0, 0.5, 1.0},
			Goal:     string(GoalSharpeRatio),
			Workers:  4,
			TopN:     5,
		},
		Output: OutputSettings{
			ResultDir:      "./backtest_results",
			SaveFrame:      true,
			GenerateReport: true,
			ReportFormat:   "markdown",
		},
		Publish: PublishSettings{
			Subject: "pairs.backtest.result",
		},
	}
}

// LoadConfig loads configuration from a YAML file over the defaults
func LoadConfig(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// ${VAR} references let DSNs and URLs stay out of the file
	data = []byte(os.ExpandEnv(string(data)))

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", errs.Configf("%v", err))
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

// SaveConfig writes config as YAML, creating the parent directory
func SaveConfig(path string, config *Config) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Data.SymbolA == "" || c.Data.SymbolB == "" {
		return errs.Configf("symbol_a and symbol_b are required")
	}
	if c.Data.SymbolA == c.Data.SymbolB {
		return errs.Configf("symbol_a and symbol_b must differ")
	}
	switch c.Data.Source {
	case "csv":
		if c.Data.DataPath == "" {
			return errs.Configf("data_path is required for csv source")
		}
	case "clickhouse":
		if c.Data.ClickHouseDSN == "" {
			return errs.Configf("clickhouse_dsn is required for clickhouse source")
		}
	default:
		return errs.Configf("invalid data source: %s (must be csv or clickhouse)", c.Data.Source)
	}
	if _, _, err := c.DateRange(time.Now()); err != nil {
		return err
	}

	if _, err := c.RunParams(); err != nil {
		return err
	}

	if c.Simulation.Enabled {
		if err := c.SimulationParams().Validate(); err != nil {
			return err
		}
	}

	if c.Analysis.Annualization <= 0 {
		return errs.Configf("annualization must be positive")
	}
	if _, err := coint.ParseMethod(c.Analysis.CointMethod); err != nil {
		return err
	}

	if _, err := ParseGoal(c.Optimization.Goal); err != nil {
		return err
	}

	switch c.Output.ReportFormat {
	case "", "markdown", "json", "both":
	default:
		return errs.Configf("invalid report format: %s (must be markdown, json, or both)", c.Output.ReportFormat)
	}

	return nil
}

// DateRange resolves the requested window. A zero start means unbounded.
func (c *Config) DateRange(now time.Time) (time.Time, time.Time, error) {
	end := now.UTC()
	if c.Data.EndDate != "" {
		d, err := time.Parse(DateLayout, c.Data.EndDate)
		if err != nil {
			return time.Time{}, time.Time{}, errs.Configf("invalid end_date format (expected YYYY-MM-DD): %v", err)
		}
		end = d
	}

	var start time.Time
	switch {
	case c.Data.StartDate != "":
		d, err := time.Parse(DateLayout, c.Data.StartDate)
		if err != nil {
			return time.Time{}, time.Time{}, errs.Configf("invalid start_date format (expected YYYY-MM-DD): %v", err)
		}
		start = d
	case c.Data.Lookback != "":
		lookback, err := str2duration.ParseDuration(c.Data.Lookback)
		if err != nil {
			return time.Time{}, time.Time{}, errs.Configf("invalid lookback %q: %v", c.Data.Lookback, err)
		}
		start = end.Add(-lookback)
	}

	if !start.IsZero() && end.Before(start) {
		return time.Time{}, time.Time{}, errs.Configf("end_date must be after start_date")
	}
	return start, end, nil
}

// RunParams converts the strategy section into typed parameters
func (c *Config) RunParams() (RunParams, error) {
	s := c.Strategy
	spreadType, err := spread.ParseSpreadType(s.Spread)
	if err != nil {
		return RunParams{}, err
	}
	hedge, err := spread.ParseHedgeMethod(s.HedgeRatioMethod)
	if err != nil {
		return RunParams{}, err
	}
	basis, err := ParseReturnBasis(s.ReturnBasis)
	if err != nil {
		return RunParams{}, err
	}
	policy, err := signal.ParsePolicy(s.Policy)
	if err != nil {
		return RunParams{}, err
	}
	missing, err := signal.ParseMissingPolicy(s.Missing)
	if err != nil {
		return RunParams{}, err
	}

	params := RunParams{
		Spread: spread.Config{
			Type:        spreadType,
			HedgeRatio:  s.HedgeRatio,
			HedgeMethod: hedge,
			Window:      s.Window,
		},
		Signal: signal.Params{
			ZEntry:  s.ZEntry,
			ZExit:   s.ZExit,
			Policy:  policy,
			Missing: missing,
		},
		ReturnBasis: basis,
	}
	if err := params.Validate(); err != nil {
		return RunParams{}, err
	}
	return params, nil
}

// Validate checks both the spread and the signal parameters
func (p RunParams) Validate() error {
	if err := p.Spread.Validate(); err != nil {
		return err
	}
	return p.Signal.Validate()
}

// SimulationParams returns the unit simulation parameters
func (c *Config) SimulationParams() SimulationParams {
	return SimulationParams{
		InitialCash: c.Simulation.InitialCash,
		UnitsA:      c.Simulation.UnitsA,
		UnitsB:      c.Simulation.UnitsB,
	}
}

// AnalysisParams returns the analyzer parameters
func (c *Config) AnalysisParams() AnalysisParams {
	return AnalysisParams{
		Annualization:     c.Analysis.Annualization,
		RiskFreeRate:      c.Analysis.RiskFreeRate,
		AllowZeroRiskFree: c.Analysis.AllowZeroRiskFree,
	}
}

// CointMethod returns the configured cointegration test
func (c *Config) CointMethod() coint.Method {
	m, err := coint.ParseMethod(c.Analysis.CointMethod)
	if err != nil {
		return coint.MethodADF
	}
	return m
}
