// Package excel writes the report bundle as a single xlsx workbook, one
// sheet per summary table, with a native column chart on the ranking sheet.
package excel

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/couchcryptid/covid-state-metrics/internal/report"
)

// WorkbookFile is the workbook name inside the output directory.
const WorkbookFile = "covid_report.xlsx"

// Sheet names.
const (
	sheetMonthly   = "MonthlyFocus"
	sheetTimeline  = "FocusTimeline"
	sheetAnomalies = "Anomalies"
	sheetRanks     = "StateRanks"
	sheetSummaries = "StateSummaries"
)

// Renderer writes the workbook into the output directory.
type Renderer struct {
	outputDir string
	logger    *slog.Logger
}

// NewRenderer creates a workbook renderer targeting outputDir.
func NewRenderer(outputDir string, logger *slog.Logger) *Renderer {
	return &Renderer{outputDir: outputDir, logger: logger}
}

func (r *Renderer) Name() string { return "workbook" }

// Render writes every summary table and saves the workbook.
func (r *Renderer) Render(ctx context.Context, b *report.Bundle) error {
	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := writeMonthly(f, b); err != nil {
		return err
	}
	if err := writeTimeline(f, b); err != nil {
		return err
	}
	if err := writeAnomalies(f, b); err != nil {
		return err
	}
	if err := writeRanks(f, b); err != nil {
		return err
	}
	if err := writeSummaries(f, b); err != nil {
		return err
	}

	// Drop the default sheet excelize creates.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("delete default sheet: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	path := filepath.Join(r.outputDir, WorkbookFile)
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	r.logger.Debug("workbook written", "path", path)
	return nil
}

func writeMonthly(f *excelize.File, b *report.Bundle) error {
	rows := make([][]any, 0, len(b.MonthlyFocus))
	for _, m := range b.MonthlyFocus {
		rows = append(rows, []any{m.Month.Format("2006-01"), m.ConfirmedCases, m.Deaths})
	}
	return writeSheet(f, sheetMonthly, []string{"month", "confirmed_cases", "deaths"}, rows)
}

func writeTimeline(f *excelize.File, b *report.Bundle) error {
	rows := make([][]any, 0, len(b.FocusTimeline))
	for _, p := range b.FocusTimeline {
		rows = append(rows, []any{p.Date.Format("2006-01-02"), cellValue(p.CasesZ), cellValue(p.DeathsZ)})
	}
	return writeSheet(f, sheetTimeline, []string{"date", "confirmed_cases_day_zscore", "deaths_day_zscore"}, rows)
}

func writeAnomalies(f *excelize.File, b *report.Bundle) error {
	rows := make([][]any, 0, len(b.Anomalies))
	for _, a := range b.Anomalies {
		rows = append(rows, []any{a.Date.Format("2006-01-02"), a.Metric, a.Delta, a.Score})
	}
	return writeSheet(f, sheetAnomalies, []string{"date", "metric", "delta", "zscore"}, rows)
}

func writeRanks(f *excelize.File, b *report.Bundle) error {
	rows := make([][]any, 0, len(b.StateRanks))
	for _, rank := range b.StateRanks {
		rows = append(rows, []any{
			rank.State,
			rank.HighestMonthlyConfirmedCases,
			cellInt(rank.Population, rank.PopulationMissing),
			cellValue(rank.PerCapita),
			rank.PopulationMissing,
		})
	}
	headers := []string{"state_name", "highest_monthly_confirmed_cases", "population", "per_capita", "population_missing"}
	if err := writeSheet(f, sheetRanks, headers, rows); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	return addRankChart(f, len(rows))
}

// addRankChart puts a column chart of the ranking next to the table.
func addRankChart(f *excelize.File, rowCount int) error {
	err := f.AddChart(sheetRanks, "G2", &excelize.Chart{
		Type: excelize.Col,
		Series: []excelize.ChartSeries{{
			Name:       fmt.Sprintf("%s!$B$1", sheetRanks),
			Categories: fmt.Sprintf("%s!$A$2:$A$%d", sheetRanks, rowCount+1),
			Values:     fmt.Sprintf("%s!$B$2:$B$%d", sheetRanks, rowCount+1),
		}},
		Title: []excelize.RichTextRun{{Text: "Highest Monthly Confirmed Cases by State"}},
	})
	if err != nil {
		return fmt.Errorf("add rank chart: %w", err)
	}
	return nil
}

func writeSummaries(f *excelize.File, b *report.Bundle) error {
	rows := make([][]any, 0, len(b.Summaries))
	for _, s := range b.Summaries {
		rows = append(rows, []any{s.State, s.Observations, s.Mean, s.StdDev, s.Min, s.Q25, s.Median, s.Q75, s.Max})
	}
	headers := []string{"state_name", "observations", "mean", "stddev", "min", "q25", "median", "q75", "max"}
	return writeSheet(f, sheetSummaries, headers, rows)
}

func writeSheet(f *excelize.File, sheet string, headers []string, rows [][]any) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", sheet, err)
	}

	for col, h := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("sheet %s header: %w", sheet, err)
		}
	}

	for i, row := range rows {
		for col, v := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("sheet %s row %d: %w", sheet, i+2, err)
			}
		}
	}
	return nil
}

// cellValue maps a nil metric to an empty cell instead of zero, so undefined
// and zero stay distinguishable in the workbook.
func cellValue(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}

func cellInt(v int64, missing bool) any {
	if missing {
		return ""
	}
	return v
}
