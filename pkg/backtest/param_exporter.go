package backtest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// OptimalParams represents optimized parameters ready to feed back into a config
type OptimalParams struct {
	// Metadata
	GeneratedAt      time.Time `yaml:"generated_at"`
	DataPeriod       string    `yaml:"data_period"`
	OptimizationGoal string    `yaml:"optimization_goal"`

	Strategy    StrategyInfo       `yaml:"strategy"`
	Parameters  Parameters         `yaml:"parameters"`
	Performance PerformanceMetrics `yaml:"performance"`
}

// StrategyInfo contains strategy identification
type StrategyInfo struct {
	Symbols     []string `yaml:"symbols"`
	Spread      string   `yaml:"spread"`
	Policy      string   `yaml:"policy"`
	Missing     string   `yaml:"missing"`
	ReturnBasis string   `yaml:"return_basis"`
}

// PerformanceMetrics contains backtest performance
type PerformanceMetrics struct {
	CumulativeReturn     float64 `yaml:"cumulative_return"`
	AnnualizedReturn     float64 `yaml:"annualized_return"`
	AnnualizedVolatility float64 `yaml:"annualized_volatility"`
	SharpeRatio          float64 `yaml:"sharpe_ratio"`
	SortinoRatio         float64 `yaml:"sortino_ratio"`
	CalmarRatio          float64 `yaml:"calmar_ratio"`
	MaxDrawdown          float64 `yaml:"max_drawdown"`
	Trades               int     `yaml:"trades"`
}

func metricsFrom(r *PerformanceReport) PerformanceMetrics {
	if r == nil {
		return PerformanceMetrics{}
	}
	return PerformanceMetrics{
		CumulativeReturn:     r.CumulativeReturn,
		AnnualizedReturn:     r.AnnualizedReturn,
		AnnualizedVolatility: r.AnnualizedVolatility,
		SharpeRatio:          r.SharpeRatio,
		SortinoRatio:         r.SortinoRatio,
		CalmarRatio:          r.CalmarRatio,
		MaxDrawdown:          r.MaxDrawdown,
		Trades:               r.Trades,
	}
}

// ParamExporter exports optimized parameters
type ParamExporter struct {
	outputDir string
	now       func() time.Time
}

// NewParamExporter creates a new parameter exporter
func NewParamExporter(outputDir string) *ParamExporter {
	return &ParamExporter{
		outputDir: outputDir,
		now:       time.Now,
	}
}

func (e *ParamExporter) strategyInfo(config *Config) StrategyInfo {
	return StrategyInfo{
		Symbols:     []string{config.Data.SymbolA, config.Data.SymbolB},
		Spread:      config.Strategy.Spread,
		Policy:      config.Strategy.Policy,
		Missing:     config.Strategy.Missing,
		ReturnBasis: config.Strategy.ReturnBasis,
	}
}

// symbolTag joins symbols into a file-name friendly tag: GC=F, SI=F -> GCF_SIF
func symbolTag(symbols ...string) string {
	r := strings.NewReplacer("=", "", "/", "", " ", "")
	parts := make([]string, len(symbols))
	for i, s := range symbols {
		parts[i] = r.Replace(s)
	}
	return strings.Join(parts, "_")
}

// ExportOptimalParams writes the best grid point to a YAML file
func (e *ParamExporter) ExportOptimalParams(config *Config, best *OptimizationResult, goal OptimizationGoal, dataPeriod string) (string, error) {
	if best == nil {
		return "", fmt.Errorf("no optimization result to export")
	}
	if err := os.MkdirAll(e.outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	now := e.now()
	params := &OptimalParams{
		GeneratedAt:      now,
		DataPeriod:       dataPeriod,
		OptimizationGoal: string(goal),
		Strategy:         e.strategyInfo(config),
		Parameters:       best.Parameters,
		Performance:      metricsFrom(best.Metrics),
	}

	filename := fmt.Sprintf("optimal_params_%s_%s.yaml", symbolTag(config.Data.SymbolA, config.Data.SymbolB), now.Format("20060102"))
	path := filepath.Join(e.outputDir, filename)

	data, err := yaml.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("failed to marshal parameters: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write parameters file: %w", err)
	}
	return path, nil
}

// ExportOptimizationResults exports all ranked results
func (e *ParamExporter) ExportOptimizationResults(config *Config, results []*OptimizationResult, goal OptimizationGoal) (string, error) {
	if err := os.MkdirAll(e.outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	type row struct {
		Rank        int                `yaml:"rank"`
		Score       float64            `yaml:"score"`
		Parameters  Parameters         `yaml:"parameters"`
		Performance PerformanceMetrics `yaml:"performance"`
	}
	now := e.now()
	export := struct {
		GeneratedAt      time.Time    `yaml:"generated_at"`
		OptimizationGoal string       `yaml:"optimization_goal"`
		Strategy         StrategyInfo `yaml:"strategy"`
		TotalTests       int          `yaml:"total_tests"`
		Results          []row        `yaml:"results"`
	}{
		GeneratedAt:      now,
		OptimizationGoal: string(goal),
		Strategy:         e.strategyInfo(config),
		TotalTests:       len(results),
	}
	for _, r := range results {
		export.Results = append(export.Results, row{
			Rank:        r.Rank,
			Score:       r.Score,
			Parameters:  r.Parameters,
			Performance: metricsFrom(r.Metrics),
		})
	}

	filename := fmt.Sprintf("optimization_results_%s_%s.yaml", symbolTag(config.Data.SymbolA, config.Data.SymbolB), now.Format("20060102_150405"))
	path := filepath.Join(e.outputDir, filename)

	data, err := yaml.Marshal(export)
	if err != nil {
		return "", fmt.Errorf("failed to marshal results: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write results file: %w", err)
	}
	return path, nil
}

// LoadOptimalParams loads optimal parameters from file
func LoadOptimalParams(path string) (*OptimalParams, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read parameters file: %w", err)
	}

	var params OptimalParams
	if err := yaml.Unmarshal(data, &params); err != nil {
		return nil, fmt.Errorf("failed to parse parameters: %w", err)
	}
	return &params, nil
}

// Apply copies the optimized window and thresholds into config
func (p *OptimalParams) Apply(config *Config) error {
	config.Strategy.Window = p.Parameters.Window
	config.Strategy.ZEntry = p.Parameters.ZEntry
	config.Strategy.ZExit = p.Parameters.ZExit
	_, err := config.RunParams()
	return err
}

// ArchiveOptimalParams copies a parameter file into archiveDir, tagging the
// name with the date and Sharpe ratio
func (e *ParamExporter) ArchiveOptimalParams(currentFile, archiveDir string) (string, error) {
	if err := os.MkdirAll(archiveDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	params, err := LoadOptimalParams(currentFile)
	if err != nil {
		return "", fmt.Errorf("failed to load current params: %w", err)
	}

	archiveFilename := fmt.Sprintf("optimal_params_%s_%s_sharpe%.2f.yaml",
		symbolTag(params.Strategy.Symbols...),
		e.now().Format("20060102"),
		params.Performance.SharpeRatio)
	archivePath := filepath.Join(archiveDir, archiveFilename)

	data, err := os.ReadFile(currentFile)
	if err != nil {
		return "", fmt.Errorf("failed to read current file: %w", err)
	}
	if err := os.WriteFile(archivePath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write archive file: %w", err)
	}
	return archivePath, nil
}

// CompareParams renders a baseline/current comparison
func CompareParams(baseline, current *OptimalParams) string {
	var b strings.Builder
	b.WriteString("Parameter Comparison\n")
	b.WriteString("====================\n\n")
	fmt.Fprintf(&b, "Symbols: %v  Spread: %s  Policy: %s\n\n",
		current.Strategy.Symbols, current.Strategy.Spread, current.Strategy.Policy)

	b.WriteString("Performance Metrics:\n")
	fmt.Fprintf(&b, "  Sharpe Ratio:      %.4f -> %.4f\n", baseline.Performance.SharpeRatio, current.Performance.SharpeRatio)
	fmt.Fprintf(&b, "  Cumulative Return: %.2f%% -> %.2f%%\n", baseline.Performance.CumulativeReturn*100, current.Performance.CumulativeReturn*100)
	fmt.Fprintf(&b, "  Max Drawdown:      %.2f%% -> %.2f%%\n", baseline.Performance.MaxDrawdown*100, current.Performance.MaxDrawdown*100)
	b.WriteString("\nParameter Changes:\n")
	fmt.Fprintf(&b, "  %-8s: %d -> %d\n", "window", baseline.Parameters.Window, current.Parameters.Window)
	fmt.Fprintf(&b, "  %-8s: %.2f -> %.2f\n", "z_entry", baseline.Parameters.ZEntry, current.Parameters.ZEntry)
	fmt.Fprintf(&b, "  %-8s: %.2f -> %.2f\n", "z_exit", baseline.Parameters.ZExit, current.Parameters.ZExit)
	return b.String()
}
