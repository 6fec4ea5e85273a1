// Package chart renders report bundles as offline plotly HTML files.
package chart

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	grob "github.com/MetalBlueberry/go-plotly/graph_objects"
	"github.com/MetalBlueberry/go-plotly/offline"

	"github.com/couchcryptid/covid-state-metrics/internal/report"
)

// Chart colors, one per series kind.
const (
	colorCases     = "#2980B9"
	colorDeaths    = "#E74C3C"
	colorAnomaly   = "#C0392B"
	colorPerCapita = "#27AE60"
)

// Renderer writes one HTML file per chart into the output directory.
type Renderer struct {
	outputDir string
	logger    *slog.Logger
}

// NewRenderer creates a plotly renderer targeting outputDir.
func NewRenderer(outputDir string, logger *slog.Logger) *Renderer {
	return &Renderer{outputDir: outputDir, logger: logger}
}

func (r *Renderer) Name() string { return "plotly" }

// Render writes the monthly-deaths bars, the z-score timeline with anomaly
// markers, and the two state ranking charts.
func (r *Renderer) Render(ctx context.Context, b *report.Bundle) error {
	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	figs := map[string]*grob.Fig{
		"monthly_deaths_" + slug(b.FocusState):  monthlyDeathsFig(b),
		"zscore_timeline_" + slug(b.FocusState): timelineFig(b),
		"highest_monthly_by_state":              rankFig(b.StateRanks, false),
		"highest_monthly_by_state_per_capita":   rankFig(b.PerCapitaRanks, true),
	}

	for name, fig := range figs {
		if err := ctx.Err(); err != nil {
			return err
		}

		path := filepath.Join(r.outputDir, name+".html")
		offline.ToHtml(fig, path)
		// ToHtml reports nothing, so verify the file landed.
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("write chart %s: %w", name, err)
		}
		r.logger.Debug("chart written", "path", path)
	}
	return nil
}

// monthlyDeathsFig mirrors the original monthly aggregate deaths bar chart.
func monthlyDeathsFig(b *report.Bundle) *grob.Fig {
	months := make([]string, len(b.MonthlyFocus))
	deaths := make([]int64, len(b.MonthlyFocus))
	for i, m := range b.MonthlyFocus {
		months[i] = m.Month.Format("2006-01")
		deaths[i] = m.Deaths
	}

	fig := newFigure(
		fmt.Sprintf("Monthly Aggregate Deaths in %s", b.FocusState),
		"Month", "Aggregate Deaths")
	fig.AddTraces(&grob.Bar{
		Name:   "Deaths",
		X:      months,
		Y:      deaths,
		Marker: &grob.BarMarker{Color: colorDeaths},
	})
	return fig
}

// timelineFig plots both delta z-score series and overlays anomaly markers.
func timelineFig(b *report.Bundle) *grob.Fig {
	dates := make([]string, len(b.FocusTimeline))
	casesZ := make([]any, len(b.FocusTimeline))
	deathsZ := make([]any, len(b.FocusTimeline))
	for i, p := range b.FocusTimeline {
		dates[i] = p.Date.Format("2006-01-02")
		// nil marshals to JSON null, which plotly renders as a gap.
		casesZ[i] = floatOrNil(p.CasesZ)
		deathsZ[i] = floatOrNil(p.DeathsZ)
	}

	fig := newFigure(
		fmt.Sprintf("Daily Cases and Deaths Z-Score for %s", b.FocusState),
		"Date", "Z-Score")
	fig.AddTraces(
		&grob.Scatter{
			Name: "Confirmed Cases Day Z-Score",
			X:    dates, Y: casesZ,
			Mode: grob.ScatterModeLines,
			Line: &grob.ScatterLine{Color: colorCases},
		},
		&grob.Scatter{
			Name: "Deaths Day Z-Score",
			X:    dates, Y: deathsZ,
			Mode: grob.ScatterModeLines,
			Line: &grob.ScatterLine{Color: colorDeaths},
		},
	)

	if markers := anomalyTrace(b.Anomalies); markers != nil {
		fig.AddTraces(markers)
	}
	return fig
}

func anomalyTrace(anomalies []report.Anomaly) *grob.Scatter {
	if len(anomalies) == 0 {
		return nil
	}
	dates := make([]string, len(anomalies))
	scores := make([]float64, len(anomalies))
	for i, a := range anomalies {
		dates[i] = a.Date.Format("2006-01-02")
		scores[i] = a.Score
	}
	return &grob.Scatter{
		Name: "Anomalies",
		X:    dates, Y: scores,
		Mode:   grob.ScatterModeMarkers,
		Marker: &grob.ScatterMarker{Color: colorAnomaly},
	}
}

// rankFig plots one bar per state. The per-capita variant skips states
// flagged as missing from the population table.
func rankFig(ranks []report.StateRank, perCapita bool) *grob.Fig {
	states := make([]string, 0, len(ranks))
	values := make([]float64, 0, len(ranks))
	for _, rank := range ranks {
		if perCapita {
			if rank.PerCapita == nil {
				continue
			}
			values = append(values, *rank.PerCapita)
		} else {
			values = append(values, float64(rank.HighestMonthlyConfirmedCases))
		}
		states = append(states, rank.State)
	}

	title := "Highest Monthly Confirmed Cases by State"
	yLabel := "Highest Monthly Confirmed Cases"
	color := colorCases
	if perCapita {
		title += " per Capita"
		yLabel += " per Capita"
		color = colorPerCapita
	}

	fig := newFigure(title, "State", yLabel)
	fig.AddTraces(&grob.Bar{
		X:      states,
		Y:      values,
		Marker: &grob.BarMarker{Color: color},
	})
	return fig
}

func newFigure(title, xLabel, yLabel string) *grob.Fig {
	return &grob.Fig{
		Layout: &grob.Layout{
			Width:  1200,
			Height: 600,
			Title:  &grob.LayoutTitle{Text: title},
			Xaxis:  &grob.LayoutXaxis{Title: &grob.LayoutXaxisTitle{Text: xLabel}},
			Yaxis:  &grob.LayoutYaxis{Title: &grob.LayoutYaxisTitle{Text: yLabel}},
		},
	}
}

func floatOrNil(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

// slug turns a state name into a file-name-safe fragment.
func slug(state string) string {
	return strings.ReplaceAll(strings.ToLower(state), " ", "_")
}
