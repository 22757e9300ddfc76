package bot

import (
	"bytes"
	"fmt"
	"time"

	"github.com/vexlio/doorkeep/internal/database/types"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Chart dimensions and styling constants control the visual appearance
// of the leaderboard activity chart.
const (
	titleFontSize   = 12.0
	xAxisFontSize   = 10.0
	yAxisFontSize   = 12.0
	xAxisRotation   = 45.0
	gridLineWidth   = 1.0
	seriesLineWidth = 3.0
	seriesDotWidth  = 4.0
	paddingTop      = 30
	paddingBottom   = 30
	paddingLeft     = 20
	paddingRight    = 20
)

// ChartBuilder renders a guild's daily join activity as a PNG line chart.
type ChartBuilder struct {
	stats []*types.DailyJoinStats
	days  int
}

// NewChartBuilder loads daily join statistics to create a new chart builder.
func NewChartBuilder(stats []*types.DailyJoinStats, days int) *ChartBuilder {
	return &ChartBuilder{
		stats: stats,
		days:  days,
	}
}

// Build renders the chart to a PNG buffer. Returns nil when the window has
// no data at all, so callers can skip the attachment.
func (b *ChartBuilder) Build() (*bytes.Buffer, error) {
	if len(b.stats) == 0 {
		return nil, nil
	}

	xValues, joinSeries, validatedSeries, leftEarlySeries := b.prepareDataSeries()
	gridLines, ticks := b.prepareGridLinesAndTicks()

	graph := &chart.Chart{
		Title:      fmt.Sprintf("Join Activity (%dd)", b.days),
		TitleStyle: b.getTitleStyle(),
		Background: b.getBackgroundStyle(),
		XAxis:      b.getXAxis(gridLines, ticks),
		YAxis:      b.getYAxis(),
		Series: []chart.Series{
			b.createSeries("Joins", xValues, joinSeries, chart.ColorBlue),
			b.createSeries("Validated", xValues, validatedSeries, chart.ColorGreen),
			b.createSeries("Left Early", xValues, leftEarlySeries, chart.ColorRed),
		},
	}

	graph.Elements = []chart.Renderable{
		chart.Legend(graph),
	}

	buf := new(bytes.Buffer)
	if err := graph.Render(chart.PNG, buf); err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}

	return buf, nil
}

// prepareDataSeries maps the sparse per-day rows onto a dense trailing
// window, filling days without joins with zeroes.
func (b *ChartBuilder) prepareDataSeries() ([]float64, []float64, []float64, []float64) {
	xValues := make([]float64, b.days)
	joinSeries := make([]float64, b.days)
	validatedSeries := make([]float64, b.days)
	leftEarlySeries := make([]float64, b.days)

	statsMap := make(map[time.Time]*types.DailyJoinStats, len(b.stats))
	for _, stat := range b.stats {
		statsMap[stat.Date.Truncate(24*time.Hour)] = stat
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)

	for i := range b.days {
		day := today.AddDate(0, 0, -(b.days - 1 - i))
		xValues[i] = float64(i)

		if stat, ok := statsMap[day]; ok {
			joinSeries[i] = float64(stat.Joins)
			validatedSeries[i] = float64(stat.Validated)
			leftEarlySeries[i] = float64(stat.LeftEarly)
		}
	}

	return xValues, joinSeries, validatedSeries, leftEarlySeries
}

// prepareGridLinesAndTicks builds one grid line and axis label per day.
func (b *ChartBuilder) prepareGridLinesAndTicks() ([]chart.GridLine, []chart.Tick) {
	gridLines := make([]chart.GridLine, b.days)
	ticks := make([]chart.Tick, b.days)

	today := time.Now().UTC().Truncate(24 * time.Hour)

	for i := range b.days {
		day := today.AddDate(0, 0, -(b.days - 1 - i))

		gridLines[i] = chart.GridLine{Value: float64(i)}
		ticks[i] = chart.Tick{
			Value: float64(i),
			Label: day.Format("01/02"),
		}
	}

	return gridLines, ticks
}

func (b *ChartBuilder) getTitleStyle() chart.Style {
	return chart.Style{
		FontSize: titleFontSize,
	}
}

func (b *ChartBuilder) getBackgroundStyle() chart.Style {
	return chart.Style{
		Padding: chart.Box{
			Top:    paddingTop,
			Left:   paddingLeft,
			Right:  paddingRight,
			Bottom: paddingBottom,
		},
	}
}

func (b *ChartBuilder) getXAxis(gridLines []chart.GridLine, ticks []chart.Tick) chart.XAxis {
	return chart.XAxis{
		Style: chart.Style{
			FontSize:            xAxisFontSize,
			TextRotationDegrees: xAxisRotation,
		},
		GridLines: gridLines,
		Ticks:     ticks,
		GridMajorStyle: chart.Style{
			StrokeColor: chart.ColorAlternateGray,
			StrokeWidth: gridLineWidth,
		},
	}
}

func (b *ChartBuilder) getYAxis() chart.YAxis {
	return chart.YAxis{
		Style: chart.Style{
			FontSize: yAxisFontSize,
		},
		ValueFormatter: func(v any) string {
			if value, ok := v.(float64); ok {
				return fmt.Sprintf("%.0f", value)
			}

			return ""
		},
	}
}

func (b *ChartBuilder) createSeries(name string, xValues, yValues []float64, color drawing.Color) chart.Series {
	return chart.ContinuousSeries{
		Name:    name,
		XValues: xValues,
		YValues: yValues,
		Style: chart.Style{
			StrokeColor: color,
			StrokeWidth: seriesLineWidth,
			DotColor:    color,
			DotWidth:    seriesDotWidth,
		},
	}
}
