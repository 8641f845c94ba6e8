package backtest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/yourusername/pairs-arb-backtest/pkg/stats"
)

// ReportGenerator generates backtest reports in various formats
type ReportGenerator struct {
	config  *Config
	result  *Result
	printer *message.Printer
	now     func() time.Time
}

// NewReportGenerator creates a new report generator
func NewReportGenerator(config *Config, result *Result) *ReportGenerator {
	return &ReportGenerator{
		config:  config,
		result:  result,
		printer: message.NewPrinter(language.English),
		now:     time.Now,
	}
}

// Generate writes the reports selected by output.report_format and returns their paths
func (g *ReportGenerator) Generate() ([]string, error) {
	var paths []string
	format := g.config.Output.ReportFormat
	if format == "" || format == "markdown" || format == "both" {
		p, err := g.GenerateMarkdown()
		if err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	if format == "json" || format == "both" {
		p, err := g.GenerateJSON()
		if err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	p, err := g.SaveTrades()
	if err != nil {
		return nil, err
	}
	return append(paths, p), nil
}

func (g *ReportGenerator) outputPath(prefix, ext string) (string, error) {
	outputDir := g.config.Output.ResultDir
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	timestamp := g.now().Format("20060102_150405")
	return filepath.Join(outputDir, fmt.Sprintf("%s_%s.%s", prefix, timestamp, ext)), nil
}

// GenerateMarkdown generates a markdown report
func (g *ReportGenerator) GenerateMarkdown() (string, error) {
	filename, err := g.outputPath("backtest_report", "md")
	if err != nil {
		return "", err
	}
	file, err := os.Create(filename)
	if err != nil {
		return "", fmt.Errorf("failed to create report file: %w", err)
	}
	defer file.Close()

	g.WriteMarkdown(file)
	return filename, nil
}

// WriteMarkdown writes the markdown content
func (g *ReportGenerator) WriteMarkdown(w io.Writer) {
	r := g.result
	perf := r.Performance
	p := g.printer

	fmt.Fprintf(w, "# 配对交易回测报告\n\n")
	fmt.Fprintf(w, "**品种**: %s / %s\n", r.SymbolA, r.SymbolB)
	fmt.Fprintf(w, "**日期**: %s 至 %s\n", r.StartDate.Format(DateLayout), r.EndDate.Format(DateLayout))
	fmt.Fprintf(w, "**运行 ID**: %s\n\n", r.RunID)
	fmt.Fprintf(w, "---\n\n")

	fmt.Fprintf(w, "## 绩效摘要\n\n")
	fmt.Fprintf(w, "| 指标 | 数值 |\n")
	fmt.Fprintf(w, "|------|------|\n")
	fmt.Fprintf(w, "| **累计收益率** | %s |\n", pct(perf.CumulativeReturn))
	fmt.Fprintf(w, "| **年化收益率** | %s |\n", pct(perf.AnnualizedReturn))
	fmt.Fprintf(w, "| **年化波动率** | %s |\n", pct(perf.AnnualizedVolatility))
	fmt.Fprintf(w, "| **Sharpe Ratio** | %s |\n", num(perf.SharpeRatio))
	fmt.Fprintf(w, "| **Sortino Ratio** | %s |\n", num(perf.SortinoRatio))
	fmt.Fprintf(w, "| **Calmar Ratio** | %s |\n", num(perf.CalmarRatio))
	fmt.Fprintf(w, "| **最大回撤** | %s |\n", pct(perf.MaxDrawdown))
	fmt.Fprintf(w, "| **最大回撤持续期** | %d 个交易日 |\n", perf.MaxDrawdownDuration)
	fmt.Fprintf(w, "| **无风险利率** | %s |\n", pct(perf.RiskFreeRate))
	fmt.Fprintf(w, "| **有效交易日** | %d |\n", perf.DaysHeld)
	fmt.Fprintf(w, "| **换仓次数** | %d |\n", perf.Trades)
	fmt.Fprintf(w, "| **持仓占比** | %s |\n\n", pct(perf.Exposure))

	if c := r.Coint; c != nil {
		fmt.Fprintf(w, "## 协整检验\n\n")
		fmt.Fprintf(w, "- **方法**: %s\n", c.Method)
		fmt.Fprintf(w, "- **统计量**: %s (p=%s)\n", num(c.Statistic), num(c.PValue))
		fmt.Fprintf(w, "- **临界值**: 1%% %s, 5%% %s, 10%% %s\n",
			num(c.CriticalValues.OnePct), num(c.CriticalValues.FivePct), num(c.CriticalValues.TenPct))
		if !math.IsNaN(c.HedgeRatio) {
			fmt.Fprintf(w, "- **对冲比率**: %.4f\n", c.HedgeRatio)
		}
		fmt.Fprintf(w, "- **半衰期**: %s\n", num(c.HalfLife))
		fmt.Fprintf(w, "- **结论**: %s\n", c.Verdict)
		if c.Note != "" {
			fmt.Fprintf(w, "- **备注**: %s\n", c.Note)
		}
		fmt.Fprintf(w, "\n")
	}

	if pf := r.Portfolio; pf != nil && len(pf.Value) > 0 {
		last := len(pf.Value) - 1
		fmt.Fprintf(w, "## 组合模拟\n\n")
		p.Fprintf(w, "- **初始资金**: %.2f\n", g.config.Simulation.InitialCash)
		p.Fprintf(w, "- **期末市值**: %.2f\n", pf.Value[last])
		p.Fprintf(w, "- **期末现金**: %.2f\n", pf.Cash[last])
		fmt.Fprintf(w, "- **组合收益率**: %s\n\n", pct(pf.Path.CumulativeReturn[last]))
	}

	if len(r.Trades) > 0 {
		fmt.Fprintf(w, "## 换仓记录（前10笔）\n\n")
		fmt.Fprintf(w, "| 日期 | 从 | 到 | Z-Score | %s | %s |\n", r.SymbolA, r.SymbolB)
		fmt.Fprintf(w, "|------|----|----|---------|-----|-----|\n")
		limit := 10
		if len(r.Trades) < limit {
			limit = len(r.Trades)
		}
		for _, t := range r.Trades[:limit] {
			p.Fprintf(w, "| %s | %s | %s | %s | %.2f | %.2f |\n",
				t.Date.Format(DateLayout), t.From, t.To, num(t.ZScore), t.PriceA, t.PriceB)
		}
		fmt.Fprintf(w, "\n")
		if len(r.Trades) > limit {
			fmt.Fprintf(w, "*...共 %d 笔，仅显示前 %d 笔*\n\n", len(r.Trades), limit)
		}
	}

	fmt.Fprintf(w, "## 风险分析\n\n")
	fmt.Fprintf(w, "- **Sharpe Ratio**: %s %s\n", num(perf.SharpeRatio), evaluateSharpe(perf.SharpeRatio))
	fmt.Fprintf(w, "- **Sortino Ratio**: %s %s\n", num(perf.SortinoRatio), evaluateSharpe(perf.SortinoRatio))
	fmt.Fprintf(w, "- **最大回撤**: %s %s\n\n", pct(perf.MaxDrawdown), evaluateDrawdown(perf.MaxDrawdown))

	params := r.Params
	fmt.Fprintf(w, "## 配置信息\n\n")
	fmt.Fprintf(w, "- **Spread**: %s\n", params.Spread.Type)
	if !math.IsNaN(r.Spread.HedgeRatio) {
		fmt.Fprintf(w, "- **对冲比率**: %.4f (%s)\n", r.Spread.HedgeRatio, params.Spread.HedgeMethod)
	}
	fmt.Fprintf(w, "- **收益口径**: %s\n", params.ReturnBasis)
	fmt.Fprintf(w, "- **滚动窗口**: %d\n", params.Spread.Window)
	fmt.Fprintf(w, "- **入场/出场阈值**: %.2f / %.2f\n", params.Signal.ZEntry, params.Signal.ZExit)
	fmt.Fprintf(w, "- **信号策略**: %s (缺失 z-score: %s)\n\n", params.Signal.Policy, params.Signal.Missing)

	fmt.Fprintf(w, "---\n\n")
	fmt.Fprintf(w, "**报告生成时间**: %s\n", g.now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "**回测耗时**: %v\n", r.Duration)
}

// jsonNumber maps undefined values to null
func jsonNumber(v float64) *float64 {
	if stats.IsUndefined(v) {
		return nil
	}
	return &v
}

type jsonPerformance struct {
	CumulativeReturn     *float64 `json:"cumulative_return"`
	AnnualizedReturn     *float64 `json:"annualized_return"`
	AnnualizedVolatility *float64 `json:"annualized_volatility"`
	SharpeRatio          *float64 `json:"sharpe_ratio"`
	SortinoRatio         *float64 `json:"sortino_ratio"`
	CalmarRatio          *float64 `json:"calmar_ratio"`
	MaxDrawdown          *float64 `json:"max_drawdown"`
	MaxDrawdownDuration  int      `json:"max_drawdown_duration"`
	DaysHeld             int      `json:"days_held"`
	RiskFreeRate         *float64 `json:"risk_free_rate"`
	Trades               int      `json:"trades"`
	Exposure             *float64 `json:"exposure"`
}

type jsonCoint struct {
	Method         string              `json:"method"`
	Statistic      *float64            `json:"statistic"`
	PValue         *float64            `json:"p_value"`
	CriticalValues map[string]*float64 `json:"critical_values"`
	UsedLag        int                 `json:"used_lag"`
	NObs           int                 `json:"nobs"`
	HedgeRatio     *float64            `json:"hedge_ratio"`
	HalfLife       *float64            `json:"half_life"`
	Verdict        string              `json:"verdict"`
	Note           string              `json:"note,omitempty"`
}

type jsonResult struct {
	RunID       string          `json:"run_id"`
	SymbolA     string          `json:"symbol_a"`
	SymbolB     string          `json:"symbol_b"`
	StartDate   string          `json:"start_date"`
	EndDate     string          `json:"end_date"`
	Spread      string          `json:"spread"`
	HedgeRatio  *float64        `json:"hedge_ratio"`
	ReturnBasis string          `json:"return_basis"`
	Window      int             `json:"window"`
	ZEntry      float64         `json:"z_entry"`
	ZExit       float64         `json:"z_exit"`
	Policy      string          `json:"policy"`
	Missing     string          `json:"missing"`
	Performance jsonPerformance `json:"performance"`
	Coint       *jsonCoint      `json:"cointegration,omitempty"`
	FinalValue  *float64        `json:"final_portfolio_value,omitempty"`
	DurationMs  int64           `json:"duration_ms"`
}

// MarshalResultJSON encodes the result summary; undefined numbers become null
func MarshalResultJSON(r *Result) ([]byte, error) {
	perf := r.Performance
	out := jsonResult{
		RunID:       r.RunID,
		SymbolA:     r.SymbolA,
		SymbolB:     r.SymbolB,
		StartDate:   r.StartDate.Format(DateLayout),
		EndDate:     r.EndDate.Format(DateLayout),
		Spread:      string(r.Params.Spread.Type),
		ReturnBasis: string(r.Params.ReturnBasis),
		Window:      r.Params.Spread.Window,
		ZEntry:      r.Params.Signal.ZEntry,
		ZExit:       r.Params.Signal.ZExit,
		Policy:      string(r.Params.Signal.Policy),
		Missing:     string(r.Params.Signal.Missing),
		Performance: jsonPerformance{
			CumulativeReturn:     jsonNumber(perf.CumulativeReturn),
			AnnualizedReturn:     jsonNumber(perf.AnnualizedReturn),
			AnnualizedVolatility: jsonNumber(perf.AnnualizedVolatility),
			SharpeRatio:          jsonNumber(perf.SharpeRatio),
			SortinoRatio:         jsonNumber(perf.SortinoRatio),
			CalmarRatio:          jsonNumber(perf.CalmarRatio),
			MaxDrawdown:          jsonNumber(perf.MaxDrawdown),
			MaxDrawdownDuration:  perf.MaxDrawdownDuration,
			DaysHeld:             perf.DaysHeld,
			RiskFreeRate:         jsonNumber(perf.RiskFreeRate),
			Trades:               perf.Trades,
			Exposure:             jsonNumber(perf.Exposure),
		},
		DurationMs: r.Duration.Milliseconds(),
	}
	if r.Spread != nil {
		out.HedgeRatio = jsonNumber(r.Spread.HedgeRatio)
	}
	if c := r.Coint; c != nil {
		out.Coint = &jsonCoint{
			Method:    string(c.Method),
			Statistic: jsonNumber(c.Statistic),
			PValue:    jsonNumber(c.PValue),
			CriticalValues: map[string]*float64{
				"1%":  jsonNumber(c.CriticalValues.OnePct),
				"5%":  jsonNumber(c.CriticalValues.FivePct),
				"10%": jsonNumber(c.CriticalValues.TenPct),
			},
			UsedLag:    c.UsedLag,
			NObs:       c.NObs,
			HedgeRatio: jsonNumber(c.HedgeRatio),
			HalfLife:   jsonNumber(c.HalfLife),
			Verdict:    string(c.Verdict),
			Note:       c.Note,
		}
	}
	if pf := r.Portfolio; pf != nil && len(pf.Value) > 0 {
		out.FinalValue = jsonNumber(pf.Value[len(pf.Value)-1])
	}
	return json.MarshalIndent(out, "", "  ")
}

// GenerateJSON generates a JSON report
func (g *ReportGenerator) GenerateJSON() (string, error) {
	filename, err := g.outputPath("backtest_report", "json")
	if err != nil {
		return "", err
	}
	data, err := MarshalResultJSON(g.result)
	if err != nil {
		return "", fmt.Errorf("failed to marshal result: %w", err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write JSON file: %w", err)
	}
	return filename, nil
}

// SaveTrades saves position changes to CSV
func (g *ReportGenerator) SaveTrades() (string, error) {
	filename, err := g.outputPath("trades", "csv")
	if err != nil {
		return "", err
	}
	file, err := os.Create(filename)
	if err != nil {
		return "", fmt.Errorf("failed to create trades file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"Date", "From", "To", "ZScore", "PriceA", "PriceB"}); err != nil {
		return "", err
	}
	for _, t := range g.result.Trades {
		if err := writer.Write([]string{
			t.Date.Format(DateLayout),
			t.From.String(),
			t.To.String(),
			fmt.Sprintf("%.4f", t.ZScore),
			fmt.Sprintf("%.4f", t.PriceA),
			fmt.Sprintf("%.4f", t.PriceB),
		}); err != nil {
			return "", err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", fmt.Errorf("failed to write trades file: %w", err)
	}
	return filename, nil
}

// WriteSummary prints a plain-text summary of the results
func WriteSummary(w io.Writer, r *Result) {
	perf := r.Performance
	fmt.Fprintln(w, "\n"+strings.Repeat("=", 60))
	fmt.Fprintln(w, "PAIRS BACKTEST SUMMARY")
	fmt.Fprintln(w, strings.Repeat("=", 60))

	fmt.Fprintf(w, "\nPair:   %s / %s\n", r.SymbolA, r.SymbolB)
	fmt.Fprintf(w, "Period: %s to %s (%d periods)\n",
		r.StartDate.Format(DateLayout), r.EndDate.Format(DateLayout), r.Path.Len())
	if c := r.Coint; c != nil {
		fmt.Fprintf(w, "Cointegration (%s): statistic=%s p=%s -> %s\n",
			c.Method, num(c.Statistic), num(c.PValue), c.Verdict)
	}

	fmt.Fprintf(w, "\nPerformance Metrics:\n")
	fmt.Fprintf(w, "  Cumulative Return:     %s\n", pct(perf.CumulativeReturn))
	fmt.Fprintf(w, "  Annualized Return:     %s\n", pct(perf.AnnualizedReturn))
	fmt.Fprintf(w, "  Annualized Volatility: %s\n", pct(perf.AnnualizedVolatility))
	fmt.Fprintf(w, "  Sharpe Ratio:          %s\n", num(perf.SharpeRatio))
	fmt.Fprintf(w, "  Sortino Ratio:         %s\n", num(perf.SortinoRatio))
	fmt.Fprintf(w, "  Max Drawdown:          %s\n", pct(perf.MaxDrawdown))
	fmt.Fprintf(w, "  Calmar Ratio:          %s\n", num(perf.CalmarRatio))
	fmt.Fprintf(w, "  Position Changes:      %d\n", perf.Trades)
	fmt.Fprintf(w, "  Exposure:              %s\n", pct(perf.Exposure))
	fmt.Fprintln(w, strings.Repeat("=", 60))
}

func num(v float64) string {
	if stats.IsUndefined(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.4f", v)
}

func pct(v float64) string {
	if stats.IsUndefined(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.2f%%", v*100)
}

// Helper functions for evaluation

func evaluateSharpe(sharpe float64) string {
	switch {
	case math.IsNaN(sharpe):
		return "(无法计算)"
	case sharpe > 2.0:
		return "(优秀)"
	case sharpe > 1.0:
		return "(良好)"
	case sharpe > 0.5:
		return "(一般)"
	}
	return "(较差)"
}

func evaluateDrawdown(dd float64) string {
	switch {
	case dd > -0.05:
		return "(优秀)"
	case dd > -0.10:
		return "(良好)"
	case dd > -0.20:
		return "(可接受)"
	}
	return "(风险较高)"
}
