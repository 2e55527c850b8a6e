// Package report renders calibration diagnostics: an interactive echarts
// page and a static PNG histogram of fitted scores.
//
// Dependency rule: report depends on gaze and gaze/calibration. It never
// touches storage or transport.
package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/gaze.intent/internal/gaze"
	"github.com/banshee-data/gaze.intent/internal/gaze/calibration"
)

// PageInput is everything the calibration page draws from. Samples and
// Attempt may each be empty; the matching charts are then omitted.
type PageInput struct {
	Samples    map[string][]gaze.CalibrationSample
	Profile    *gaze.CalibrationProfile
	Attempt    *gaze.AttemptRecord
	AssetsHost string
}

var labelColors = map[gaze.ClassLabel]string{
	gaze.ClassLeft:   "#3e4989",
	gaze.ClassCenter: "#35b779",
	gaze.ClassRight:  "#fde725",
}

// CalibrationPage renders the diagnostics page to w.
func CalibrationPage(w io.Writer, in PageInput) error {
	page := components.NewPage()
	page.PageTitle = "Gaze Calibration"
	if in.AssetsHost != "" {
		page.SetAssetsHost(in.AssetsHost)
	}

	if len(in.Samples) > 0 {
		page.AddCharts(samplesScatter(in))
	}
	if in.Profile != nil {
		page.AddCharts(scoreLine(*in.Profile, in.AssetsHost))
	}
	if in.Attempt != nil {
		page.AddCharts(countsBar(*in.Attempt, in.AssetsHost))
		if in.Attempt.Validation != nil {
			page.AddCharts(accuracyBar(*in.Attempt.Validation, in.AssetsHost))
		}
	}

	if err := page.Render(w); err != nil {
		return fmt.Errorf("render calibration page: %w", err)
	}
	return nil
}

// samplesScatter plots feature x against point ordinal, one series per
// class bucket.
func samplesScatter(in PageInput) *charts.Scatter {
	series := map[gaze.ClassLabel][]opts.ScatterData{}
	names := make([]string, 0, 9)
	total := 0
	for i, p := range calibration.CalibrationPoints() {
		names = append(names, p.ID)
		for _, s := range in.Samples[p.ID] {
			series[p.Class] = append(series[p.Class], opts.ScatterData{Value: []interface{}{i, s.X, s.Y}})
			total++
		}
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Calibration samples", Width: "900px", Height: "500px", AssetsHost: in.AssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "Calibration samples", Subtitle: fmt.Sprintf("points=%d samples=%d", len(in.Samples), total)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Data: names, Name: "Point", NameLocation: "middle", NameGap: 30}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: 1, Name: "Feature x", NameLocation: "middle", NameGap: 35}),
	)
	for _, label := range []gaze.ClassLabel{gaze.ClassLeft, gaze.ClassCenter, gaze.ClassRight} {
		scatter.AddSeries(string(label), series[label],
			charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 5}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: labelColors[label]}),
		)
	}
	return scatter
}

// scoreLine draws the fitted score over x in [0, 1] with the deadzone band.
func scoreLine(p gaze.CalibrationProfile, assets string) *charts.Line {
	const steps = 20
	xs := make([]string, 0, steps+1)
	ys := make([]opts.LineData, 0, steps+1)
	for i := 0; i <= steps; i++ {
		x := float64(i) / steps
		xs = append(xs, fmt.Sprintf("%.2f", x))
		ys = append(ys, opts.LineData{Value: p.Regression.Score(x)})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "400px", AssetsHost: assets}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Fitted score",
			Subtitle: fmt.Sprintf("w=%.3f b=%.3f deadzone=%.3f", p.Regression.W, p.Regression.B, p.DeadzoneScore),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Feature x", NameLocation: "middle", NameGap: 30}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Score", NameLocation: "middle", NameGap: 35}),
	)
	line.SetXAxis(xs).AddSeries("score", ys,
		charts.WithMarkLineNameYAxisItemOpts(
			opts.MarkLineNameYAxisItem{Name: "+deadzone", YAxis: p.DeadzoneScore},
			opts.MarkLineNameYAxisItem{Name: "-deadzone", YAxis: -p.DeadzoneScore},
		),
	)
	return line
}

// countsBar shows raw samples kept per point, failed points included.
func countsBar(a gaze.AttemptRecord, assets string) *charts.Bar {
	x := make([]string, 0, len(a.PointSampleCounts))
	y := make([]opts.BarData, 0, len(a.PointSampleCounts))
	for _, id := range calibration.CalibrationPointIDs() {
		x = append(x, id)
		y = append(y, opts.BarData{Value: a.PointSampleCounts[id]})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "400px", AssetsHost: assets}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Samples per point",
			Subtitle: fmt.Sprintf("status=%s reason=%s retries=%d", a.Status, a.Reason, a.RetryCount),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).AddSeries("samples", y,
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
	)
	return bar
}

func accuracyBar(v gaze.ValidationSummary, assets string) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "600px", Height: "400px", AssetsHost: assets}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Validation accuracy",
			Subtitle: fmt.Sprintf("passed=%t frames=%d center frames=%d", v.Passed, v.FrameCount, v.CenterFrameCount),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: 1}),
	)
	bar.SetXAxis([]string{"Overall", "Center"}).AddSeries("accuracy",
		[]opts.BarData{{Value: v.OverallAccuracy}, {Value: v.CenterAccuracy}},
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
	)
	return bar
}
